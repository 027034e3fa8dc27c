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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/blinklabs-io/courtroom/cache"
	"github.com/blinklabs-io/courtroom/conference"
	"github.com/blinklabs-io/courtroom/notify"
	"github.com/blinklabs-io/courtroom/upstream"
)

const (
	tracerName = "github.com/blinklabs-io/courtroom/callback"

	DefaultMaxLaneDepth = 1024
)

var (
	ErrDispatcherClosed    = errors.New("dispatcher is closed")
	ErrLaneFull            = errors.New("conference lane is full")
	ErrMissingConferenceID = errors.New("callback event has no conference id")
	ErrHandlerPanic        = errors.New("handler panic")
)

type DispatcherOption func(*Dispatcher)

func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithPromRegistry(registry prometheus.Registerer) DispatcherOption {
	return func(d *Dispatcher) {
		d.promRegistry = registry
	}
}

func WithTracerProvider(tp trace.TracerProvider) DispatcherOption {
	return func(d *Dispatcher) {
		d.tracer = tp.Tracer(tracerName)
	}
}

// WithMaxLaneDepth bounds the events queued for a single conference
func WithMaxLaneDepth(depth int) DispatcherOption {
	return func(d *Dispatcher) {
		d.maxLaneDepth = depth
	}
}

// Dispatcher routes callback events to their handlers. Events for one
// conference run one at a time in arrival order on a lane goroutine that
// exits once its queue is empty
type Dispatcher struct {
	registry     *Registry
	conferences  *cache.ConferenceCache
	source       upstream.Source
	sender       notify.Sender
	logger       *slog.Logger
	promRegistry prometheus.Registerer
	tracer       trace.Tracer
	metrics      *dispatchMetrics
	lanes        map[string]*lane
	wg           sync.WaitGroup
	mu           sync.Mutex
	maxLaneDepth int
	closed       bool
}

type lane struct {
	queue []job
}

type job struct {
	ctx     context.Context
	evt     *CallbackEvent
	handler Handler
	result  chan error
}

func NewDispatcher(
	registry *Registry,
	conferences *cache.ConferenceCache,
	source upstream.Source,
	sender notify.Sender,
	opts ...DispatcherOption,
) *Dispatcher {
	d := &Dispatcher{
		registry:     registry,
		conferences:  conferences,
		source:       source,
		sender:       sender,
		lanes:        make(map[string]*lane),
		maxLaneDepth: DefaultMaxLaneDepth,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer(tracerName)
	}
	d.initMetrics(d.promRegistry)
	return d
}

// Handle dispatches evt and waits for its handler to finish. Events without
// a handler return ErrNoHandler. An event whose subject cannot be found is
// dropped with a nil error
func (d *Dispatcher) Handle(ctx context.Context, evt *CallbackEvent) error {
	if evt == nil {
		return errors.New("nil callback event")
	}
	h, err := d.registry.Lookup(evt.EventType)
	if err != nil {
		d.logger.Warn(
			"unhandled callback event",
			"component", "callback",
			"event_type", evt.EventType,
			"conference_id", evt.ConferenceID,
		)
		return err
	}
	if h.Refresh() == RefreshNone {
		return d.process(ctx, evt, h)
	}
	if evt.ConferenceID == "" {
		return ErrMissingConferenceID
	}
	result := make(chan error, 1)
	if err := d.enqueue(job{ctx: ctx, evt: evt, handler: h, result: result}); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		// The queued job still runs, with a cancelled context
		return ctx.Err()
	}
}

// LaneCount returns the number of conferences with queued or running events
func (d *Dispatcher) LaneCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.lanes)
}

// Close stops accepting events and waits for every lane to drain
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) enqueue(j job) error {
	id := j.evt.ConferenceID
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	l, ok := d.lanes[id]
	if !ok {
		l = &lane{}
		d.lanes[id] = l
		d.metrics.lanes.Inc()
		d.wg.Add(1)
		go d.runLane(id, l)
	}
	if len(l.queue) >= d.maxLaneDepth {
		return fmt.Errorf("%w: %s", ErrLaneFull, id)
	}
	l.queue = append(l.queue, j)
	return nil
}

func (d *Dispatcher) runLane(id string, l *lane) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		if len(l.queue) == 0 {
			delete(d.lanes, id)
			d.metrics.lanes.Dec()
			d.mu.Unlock()
			return
		}
		j := l.queue[0]
		l.queue[0] = job{}
		l.queue = l.queue[1:]
		d.mu.Unlock()
		j.result <- d.process(j.ctx, j.evt, j.handler)
	}
}

func (d *Dispatcher) process(ctx context.Context, evt *CallbackEvent, h Handler) error {
	start := time.Now()
	ctx, span := d.tracer.Start(
		ctx,
		"callback."+string(evt.EventType),
		trace.WithAttributes(
			attribute.String("courtroom.event_type", string(evt.EventType)),
			attribute.String("courtroom.conference_id", evt.ConferenceID),
		),
	)
	defer span.End()
	logger := d.logger.With(
		"component", "callback",
		"event_type", evt.EventType,
		"conference_id", evt.ConferenceID,
	)
	result, err := d.dispatch(ctx, logger, evt, h)
	d.metrics.callbacksTotal.WithLabelValues(string(evt.EventType), result).Inc()
	d.metrics.duration.WithLabelValues(string(evt.EventType)).Observe(
		time.Since(start).Seconds(),
	)
	span.SetAttributes(attribute.String("courtroom.result", result))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("failed to handle callback event", "error", err)
		return err
	}
	return nil
}

func (d *Dispatcher) dispatch(
	ctx context.Context,
	logger *slog.Logger,
	evt *CallbackEvent,
	h Handler,
) (string, error) {
	hctx := &Context{Event: evt, Logger: logger}
	if h.Refresh() != RefreshNone {
		found, err := d.load(ctx, hctx, h)
		if err != nil {
			return resultError, err
		}
		if !found {
			logger.Warn(
				"event subject not found, dropping event",
				"subject", h.Subject().String(),
				"participant_id", evt.ParticipantID,
				"endpoint_id", evt.EndpointID,
				"telephone_participant_id", evt.TelephoneParticipantID,
			)
			return resultDropped, nil
		}
	}
	outcome, err := runHandler(ctx, h, hctx)
	if err != nil {
		return resultError, err
	}
	if hctx.Conference != nil {
		switch {
		case outcome.Remove:
			err = d.conferences.Remove(ctx, hctx.Conference)
		case outcome.Persist:
			err = d.conferences.Update(ctx, hctx.Conference)
		}
		if err != nil {
			return resultError, fmt.Errorf("persist conference: %w", err)
		}
	}
	if len(outcome.Notifications) > 0 && d.sender != nil {
		if err := d.sender.Send(ctx, outcome.Notifications...); err != nil {
			logger.Warn("notifications not sent", "error", err)
		}
	}
	return resultOK, nil
}

// load fetches the conference and resolves the subject. A missing subject
// triggers one forced refresh unless the conference was just fetched
func (d *Dispatcher) load(ctx context.Context, hctx *Context, h Handler) (bool, error) {
	id := hctx.Event.ConferenceID
	refresh := cache.SourceRefresh(d.source, id)
	var conf *conference.Conference
	refreshed := h.Refresh() == RefreshForce
	if !refreshed {
		var ok bool
		conf, ok = d.conferences.Get(ctx, id)
		refreshed = !ok
	}
	if conf == nil {
		var err error
		conf, err = d.conferences.ForceRefresh(ctx, id, refresh)
		if err != nil {
			return false, err
		}
	}
	if resolveSubject(hctx, conf, h.Subject()) {
		return true, nil
	}
	if refreshed {
		return false, nil
	}
	hctx.Logger.Debug("event subject not cached, refreshing conference")
	conf, err := d.conferences.ForceRefresh(ctx, id, refresh)
	if err != nil {
		return false, err
	}
	return resolveSubject(hctx, conf, h.Subject()), nil
}

func resolveSubject(
	hctx *Context,
	conf *conference.Conference,
	kind SubjectKind,
) bool {
	hctx.Conference = conf
	hctx.Participant, hctx.Endpoint, hctx.Telephone = nil, nil, nil
	evt := hctx.Event
	switch kind {
	case SubjectParticipant:
		hctx.Participant = conf.Participant(evt.ParticipantID)
		return hctx.Participant != nil
	case SubjectEndpoint:
		hctx.Endpoint = conf.Endpoint(evt.EndpointID)
		return hctx.Endpoint != nil
	case SubjectTelephone:
		hctx.Telephone = findTelephone(conf, evt)
		return hctx.Telephone != nil
	case SubjectParticipantOrEndpoint:
		if evt.EndpointID != "" {
			return resolveSubject(hctx, conf, SubjectEndpoint)
		}
		return resolveSubject(hctx, conf, SubjectParticipant)
	}
	return true
}

func runHandler(ctx context.Context, h Handler, hctx *Context) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrHandlerPanic, h.EventType(), r)
		}
	}()
	return h.Handle(ctx, hctx)
}
