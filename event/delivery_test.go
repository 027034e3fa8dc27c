package event

import (
	"fmt"
	"testing"
	"time"
)

// mockSubscriber returns an error on Deliver to simulate a failing remote client.
type mockSubscriber struct {
	closed bool
}

func (m *mockSubscriber) Deliver(evt Event) error {
	return fmt.Errorf("deliver failed")
}

func (m *mockSubscriber) Close() {
	m.closed = true
}

// panicSubscriber panics on Deliver
type panicSubscriber struct {
	closed bool
}

func (p *panicSubscriber) Deliver(evt Event) error {
	panic("websocket gone")
}

func (p *panicSubscriber) Close() {
	p.closed = true
}

func TestDeliverFailureUnregisters(t *testing.T) {
	eb := NewEventBus(nil, nil)
	defer eb.Stop()
	sub := &mockSubscriber{}
	subId := eb.RegisterSubscriber("vhofficers", sub)
	if subId == 0 {
		t.Fatalf("expected non-zero sub id")
	}
	eb.Publish("vhofficers", NewEvent("vhofficers", "ParticipantStatusMessage", "x"))
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	if subs, ok := eb.subscribers["vhofficers"]; ok {
		if _, exists := subs[subId]; exists {
			t.Fatalf("expected subscriber to be removed after deliver failure")
		}
	}
	if !sub.closed {
		t.Fatalf(
			"expected subscriber Close() to be called after deliver failure",
		)
	}
}

func TestDeliverPanicUnregisters(t *testing.T) {
	eb := NewEventBus(nil, nil)
	defer eb.Stop()
	bad := &panicSubscriber{}
	eb.RegisterSubscriber("judge@court.test", bad)
	_, good := eb.Subscribe("judge@court.test")
	eb.Publish("judge@court.test", NewEvent("judge@court.test", "HearingStatusMessage", 1))
	if !bad.closed {
		t.Fatalf("expected panicking subscriber to be closed")
	}
	if eb.SubscriberCount("judge@court.test") != 1 {
		t.Fatalf("expected only the healthy subscriber to remain")
	}
	select {
	case <-good:
	case <-time.After(time.Second):
		t.Fatalf("healthy subscriber did not receive event")
	}
}

// TestChannelSubscriberDeliverNonBlocking verifies that channelSubscriber.Deliver
// does not block when the channel buffer is full.
func TestChannelSubscriberDeliverNonBlocking(t *testing.T) {
	const bufferSize = 5
	sub := newChannelSubscriber(bufferSize, nil)

	// Fill the buffer completely
	for i := range bufferSize {
		err := sub.Deliver(NewEvent("test", "test", i))
		if err != nil {
			t.Fatalf("unexpected error on buffered deliver: %v", err)
		}
	}

	// Deliver to the full buffer should return immediately without blocking.
	done := make(chan error, 1)
	go func() {
		done <- sub.Deliver(NewEvent("test", "test", "overflow"))
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error on non-blocking deliver: %v", err)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Deliver blocked on full channel buffer; expected non-blocking drop")
	}

	for range bufferSize {
		select {
		case <-sub.ch:
		default:
			t.Fatal("expected buffered event not found")
		}
	}

	// The overflow should have been dropped
	select {
	case evt := <-sub.ch:
		t.Fatalf("unexpected extra event in channel: %v", evt)
	default:
	}
}

// TestChannelSubscriberDeliverAfterClose verifies that Deliver to a closed
// subscriber returns nil (not a panic) and does not block.
func TestChannelSubscriberDeliverAfterClose(t *testing.T) {
	sub := newChannelSubscriber(5, nil)
	sub.Close()
	sub.Close()

	done := make(chan error, 1)
	go func() {
		done <- sub.Deliver(NewEvent("test", "test", "after-close"))
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Deliver after Close should return nil, got: %v", err)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Deliver blocked after Close")
	}
}
