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

package cache

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds counters shared by every cache kind. One instance is
// created per process and handed to each cache through its Config
type Metrics struct {
	Hits   atomic.Uint64
	Misses atomic.Uint64
	Errors atomic.Uint64

	// Prometheus metrics (nil until Register is called)
	hitsCounter   *prometheus.CounterVec
	missesCounter *prometheus.CounterVec
	errorsCounter *prometheus.CounterVec

	registerOnce sync.Once
}

// Register registers Prometheus metrics with the given registry.
// If registry is nil, this is a no-op. Subsequent calls are no-ops
func (m *Metrics) Register(registry prometheus.Registerer) {
	if registry == nil {
		return
	}
	m.registerOnce.Do(func() {
		factory := promauto.With(registry)
		m.hitsCounter = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courtroom_cache_hits_total",
				Help: "total number of cache hits",
			},
			[]string{"cache"},
		)
		m.missesCounter = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courtroom_cache_misses_total",
				Help: "total number of cache misses, including expired entries",
			},
			[]string{"cache"},
		)
		m.errorsCounter = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courtroom_cache_errors_total",
				Help: "total number of store or codec errors swallowed by a cache",
			},
			[]string{"cache"},
		)
	})
}

func (m *Metrics) incHit(kind string) {
	if m == nil {
		return
	}
	m.Hits.Add(1)
	if m.hitsCounter != nil {
		m.hitsCounter.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) incMiss(kind string) {
	if m == nil {
		return
	}
	m.Misses.Add(1)
	if m.missesCounter != nil {
		m.missesCounter.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) incError(kind string) {
	if m == nil {
		return
	}
	m.Errors.Add(1)
	if m.errorsCounter != nil {
		m.errorsCounter.WithLabelValues(kind).Inc()
	}
}
