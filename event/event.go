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

// Package event is the in-process notification bus. Topics are notification
// group keys and subscribers are either in-memory channels or network
// adapters such as websocket connections.
package event

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	EventQueueSize      = 20
	AsyncQueueSize      = 1000
	AsyncWorkerPoolSize = 4
)

// Topic is the group key a message is addressed to
type Topic string

type SubscriberId int

type HandlerFunc func(Event)

type Event struct {
	Timestamp time.Time
	Payload   any
	Topic     Topic
	Type      string
}

func NewEvent(topic Topic, msgType string, payload any) Event {
	return Event{
		Topic:     topic,
		Type:      msgType,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// asyncEvent wraps an event with its topic for the async queue
type asyncEvent struct {
	topic Topic
	event Event
}

type EventBus struct {
	subscribers  map[Topic]map[SubscriberId]Subscriber
	metrics      *eventMetrics
	lastSubId    SubscriberId
	mu           sync.RWMutex
	logger       *slog.Logger
	subscriberWg sync.WaitGroup

	// Async publishing infrastructure
	asyncQueue chan asyncEvent
	asyncWg    sync.WaitGroup
	stopCh     chan struct{}
	stopped    bool
	workers    bool
	stopMu     sync.RWMutex
	stopOpMu   sync.Mutex // Serializes Stop() calls to prevent duplicate worker pools
}

// NewEventBus creates a new EventBus. The async worker pool starts with the
// first PublishAsync
func NewEventBus(
	promRegistry prometheus.Registerer,
	logger *slog.Logger,
) *EventBus {
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	e := &EventBus{
		subscribers: make(map[Topic]map[SubscriberId]Subscriber),
		logger:      logger,
		asyncQueue:  make(chan asyncEvent, AsyncQueueSize),
		stopCh:      make(chan struct{}),
	}
	if promRegistry != nil {
		e.initMetrics(promRegistry)
	}
	return e
}

// startWorkersLocked starts the async worker pool on first use. Callers
// must hold stopMu for writing
func (e *EventBus) startWorkersLocked() {
	if e.workers {
		return
	}
	e.workers = true
	for range AsyncWorkerPoolSize {
		e.asyncWg.Add(1)
		go e.asyncWorker(e.asyncQueue, e.stopCh)
	}
}

// asyncWorker processes events from the async queue
func (e *EventBus) asyncWorker(queue <-chan asyncEvent, stopCh <-chan struct{}) {
	defer e.asyncWg.Done()
	for {
		select {
		case <-stopCh:
			return
		case ae, ok := <-queue:
			if !ok {
				return
			}
			e.Publish(ae.topic, ae.event)
		}
	}
}

// Subscriber is a delivery abstraction that allows the EventBus to deliver
// events to in-memory channels and to network-backed subscribers via the
// same interface.
// Implementations must ensure Close() is idempotent and safe to call multiple times.
type Subscriber interface {
	Deliver(Event) error
	Close()
}

// channelSubscriber is the in-memory subscriber adapter. Deliver never
// blocks: when the buffer is full the event is dropped
type channelSubscriber struct {
	ch     chan Event
	logger *slog.Logger
	mu     sync.RWMutex
	closed bool
}

func newChannelSubscriber(buffer int, logger *slog.Logger) *channelSubscriber {
	return &channelSubscriber{
		ch:     make(chan Event, buffer),
		logger: logger,
	}
}

func (c *channelSubscriber) Deliver(evt Event) error {
	// Hold the read lock across the send so Close cannot close the channel
	// underneath us
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		// Subscriber already closed; drop the event without returning an error.
		return nil
	}
	select {
	case c.ch <- evt:
	default:
		if c.logger != nil {
			c.logger.Debug(
				"subscriber buffer full, dropping event",
				"component", "event",
				"topic", evt.Topic,
				"type", evt.Type,
			)
		}
	}
	return nil
}

func (c *channelSubscriber) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}

// Subscribe allows a consumer to receive events for a topic via a channel
func (e *EventBus) Subscribe(topic Topic) (SubscriberId, <-chan Event) {
	chSub := newChannelSubscriber(EventQueueSize, e.logger)
	subId := e.addSubscriber(topic, chSub, "in-memory")
	return subId, chSub.ch
}

// SubscribeFunc allows a consumer to receive events for a topic via a
// callback function. Panics in the callback are recovered and logged.
// It returns 0 if the bus is stopping
func (e *EventBus) SubscribeFunc(topic Topic, handlerFunc HandlerFunc) SubscriberId {
	// Hold stopMu through Add so Stop cannot reach Wait first
	e.stopMu.RLock()
	defer e.stopMu.RUnlock()
	if e.stopped {
		return 0
	}
	subId, evtCh := e.Subscribe(topic)
	e.subscriberWg.Add(1)
	go func() {
		defer e.subscriberWg.Done()
		for evt := range evtCh {
			e.callHandler(handlerFunc, evt)
		}
	}()
	return subId
}

func (e *EventBus) callHandler(handlerFunc HandlerFunc, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error(
				fmt.Sprintf("event handler panic: %v", r),
				"component", "event",
				"topic", evt.Topic,
				"type", evt.Type,
			)
		}
	}()
	handlerFunc(evt)
}

// RegisterSubscriber allows external adapters (e.g., network-backed subscribers)
// to register with the EventBus. It returns the assigned subscriber id.
func (e *EventBus) RegisterSubscriber(topic Topic, sub Subscriber) SubscriberId {
	return e.addSubscriber(topic, sub, "remote")
}

func (e *EventBus) addSubscriber(topic Topic, sub Subscriber, kind string) SubscriberId {
	e.mu.Lock()
	defer e.mu.Unlock()
	subId := e.lastSubId + 1
	e.lastSubId = subId
	if _, ok := e.subscribers[topic]; !ok {
		e.subscribers[topic] = make(map[SubscriberId]Subscriber)
	}
	e.subscribers[topic][subId] = sub
	if e.metrics != nil {
		e.metrics.subscribers.WithLabelValues(kind).Inc()
	}
	return subId
}

// Unsubscribe stops delivery of events for a topic for an existing subscriber
func (e *EventBus) Unsubscribe(topic Topic, subId SubscriberId) {
	e.mu.Lock()
	var subToClose Subscriber
	if topicSubs, ok := e.subscribers[topic]; ok {
		if sub, ok2 := topicSubs[subId]; ok2 {
			subToClose = sub
			delete(topicSubs, subId)
			if len(topicSubs) == 0 {
				delete(e.subscribers, topic)
			}
			if e.metrics != nil {
				e.metrics.subscribers.WithLabelValues(subscriberKind(sub)).Dec()
			}
		}
	}
	e.mu.Unlock()

	if subToClose != nil {
		subToClose.Close()
	}
}

// SubscriberCount returns the number of subscribers for a topic
func (e *EventBus) SubscriberCount(topic Topic) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subscribers[topic])
}

// Publish sends an event to all subscribers of a topic. A subscriber whose
// Deliver fails or panics is unregistered
func (e *EventBus) Publish(topic Topic, evt Event) {
	// Build list of subscribers inside read lock to avoid map race condition
	e.mu.RLock()
	subs := e.subscribers[topic]
	type subItem struct {
		sub Subscriber
		id  SubscriberId
	}
	subList := make([]subItem, 0, len(subs))
	for id, sub := range subs {
		subList = append(subList, subItem{id: id, sub: sub})
	}
	e.mu.RUnlock()
	for _, item := range subList {
		// Protect against panics inside subscriber Deliver implementations.
		var deliverErr error
		func() {
			defer func() {
				if r := recover(); r != nil {
					deliverErr = fmt.Errorf("subscriber deliver panic: %v", r)
				}
			}()
			deliverErr = item.sub.Deliver(evt)
		}()
		if deliverErr != nil {
			e.Unsubscribe(topic, item.id)
			if e.metrics != nil {
				e.metrics.deliveryErrors.WithLabelValues(subscriberKind(item.sub)).
					Inc()
			}
			e.logger.Debug(
				"event delivery error",
				"component", "event",
				"topic", topic,
				"error", deliverErr,
			)
		}
	}
	if e.metrics != nil {
		e.metrics.eventsTotal.WithLabelValues(evt.Type).Inc()
	}
}

// PublishAsync enqueues an event for asynchronous delivery to all subscribers.
// This method returns immediately without blocking on subscriber delivery.
// Returns false if the EventBus is stopped or the async queue is full.
func (e *EventBus) PublishAsync(topic Topic, evt Event) bool {
	e.stopMu.Lock()
	defer e.stopMu.Unlock()
	if e.stopped {
		return false
	}
	e.startWorkersLocked()
	select {
	case e.asyncQueue <- asyncEvent{topic: topic, event: evt}:
		return true
	default:
		e.logger.Warn(
			"async event queue full, dropping event",
			"component", "event",
			"topic", topic,
			"type", evt.Type,
		)
		if e.metrics != nil {
			e.metrics.deliveryErrors.WithLabelValues("async-dropped").Inc()
		}
		return false
	}
}

// Stop closes all subscribers and clears the subscribers map.
// This ensures that SubscribeFunc goroutines exit cleanly during shutdown.
// The EventBus can still be reused after Stop() is called.
func (e *EventBus) Stop() {
	e.stopOpMu.Lock()
	defer e.stopOpMu.Unlock()

	// Mark as stopped to prevent new async publishes and subscriptions
	e.stopMu.Lock()
	e.stopped = true
	close(e.stopCh)
	e.stopMu.Unlock()
	e.asyncWg.Wait()

	e.mu.Lock()
	subsCopy := e.subscribers
	e.subscribers = make(map[Topic]map[SubscriberId]Subscriber)
	e.mu.Unlock()

	// Close subscribers outside of lock
	for _, topicSubs := range subsCopy {
		for _, sub := range topicSubs {
			sub.Close()
		}
	}
	e.subscriberWg.Wait()

	if e.metrics != nil {
		e.metrics.subscribers.Reset()
	}

	// Reinitialize async infrastructure to allow continued use
	e.stopMu.Lock()
	e.asyncQueue = make(chan asyncEvent, AsyncQueueSize)
	e.stopCh = make(chan struct{})
	e.stopped = false
	e.workers = false
	e.stopMu.Unlock()
}

func subscriberKind(sub Subscriber) string {
	if _, ok := sub.(*channelSubscriber); ok {
		return "in-memory"
	}
	return "remote"
}
