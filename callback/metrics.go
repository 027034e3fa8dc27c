// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package callback

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dispatch results used as metric labels
const (
	resultOK      = "ok"
	resultError   = "error"
	resultDropped = "dropped"
)

type dispatchMetrics struct {
	callbacksTotal *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	lanes          prometheus.Gauge
}

func (d *Dispatcher) initMetrics(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	d.metrics = &dispatchMetrics{
		callbacksTotal: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courtroom_callbacks_total",
				Help: "total number of callback events dispatched",
			},
			[]string{"type", "result"},
		),
		duration: promautoFactory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "courtroom_callback_duration_seconds",
				Help:    "time spent handling a callback event",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		lanes: promautoFactory.NewGauge(
			prometheus.GaugeOpts{
				Name: "courtroom_callback_lanes",
				Help: "current number of active per-conference lanes",
			},
		),
	}
}
