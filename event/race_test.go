package event

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Groups a single officer connection listens on
var officerGroups = []Topic{
	"officer@court.test",
	"VhOfficers",
	"conf-1_Hosts",
}

// sharedSubscriber is one connection registered on several groups. It
// fails every delivery once closed
type sharedSubscriber struct {
	delivered atomic.Int32
	closes    atomic.Int32
	closed    atomic.Bool
}

func (s *sharedSubscriber) Deliver(Event) error {
	if s.closed.Load() {
		return errors.New("connection closed")
	}
	s.delivered.Add(1)
	return nil
}

func (s *sharedSubscriber) Close() {
	s.closes.Add(1)
	s.closed.Store(true)
}

// TestGroupFanOutUnsubscribeRace publishes to every group of a shared
// subscriber while the connection drops its registrations
func TestGroupFanOutUnsubscribeRace(t *testing.T) {
	const iters = 500
	for range iters {
		eb := NewEventBus(nil, nil)
		sub := &sharedSubscriber{}
		subIds := make([]SubscriberId, len(officerGroups))
		for idx, group := range officerGroups {
			subIds[idx] = eb.RegisterSubscriber(group, sub)
		}

		var wg sync.WaitGroup
		for _, group := range officerGroups {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := range 10 {
					eb.Publish(group, NewEvent(group, "ParticipantStatusMessage", j))
				}
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx, group := range officerGroups {
				eb.Unsubscribe(group, subIds[idx])
			}
		}()
		wg.Wait()

		for _, group := range officerGroups {
			require.Zero(t, eb.SubscriberCount(group), "group %s", group)
		}
		require.True(t, sub.closed.Load())
		eb.Stop()
	}
}

// TestClosedSharedSubscriberLeavesEveryGroup checks that one failed
// delivery does not leave the connection registered on its other groups
func TestClosedSharedSubscriberLeavesEveryGroup(t *testing.T) {
	eb := NewEventBus(nil, nil)
	defer eb.Stop()
	sub := &sharedSubscriber{}
	for _, group := range officerGroups {
		eb.RegisterSubscriber(group, sub)
	}
	hosts := Topic("conf-1_Hosts")
	eb.Publish(hosts, NewEvent(hosts, "ConferenceStatusMessage", nil))
	assert.Equal(t, int32(1), sub.delivered.Load())

	sub.Close()
	for _, group := range officerGroups {
		eb.Publish(group, NewEvent(group, "HelpMessage", nil))
		assert.Zero(t, eb.SubscriberCount(group), "group %s", group)
	}
	assert.Equal(t, int32(1), sub.delivered.Load())
}

// TestSubscribeGroupsStopRace subscribes handlers on several groups while
// the bus stops. Late subscriptions get id 0 and no goroutine
func TestSubscribeGroupsStopRace(t *testing.T) {
	const iters = 500
	for range iters {
		eb := NewEventBus(nil, nil)

		var wg sync.WaitGroup
		var subscribed atomic.Int32
		for _, group := range officerGroups {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if eb.SubscribeFunc(group, func(Event) {}) != 0 {
					subscribed.Add(1)
				}
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			eb.Stop()
		}()
		wg.Wait()

		require.LessOrEqual(t, subscribed.Load(), int32(len(officerGroups)))
		require.Zero(t, eb.SubscribeFunc("VhOfficers", func(Event) {}))
		eb.Stop()
	}
}

// TestFullGroupDoesNotBlockOtherGroups fills the officers' buffer and
// checks that the hosts still get their message
func TestFullGroupDoesNotBlockOtherGroups(t *testing.T) {
	eb := NewEventBus(nil, nil)
	defer eb.Stop()
	officers := Topic("VhOfficers")
	hosts := Topic("conf-1_Hosts")
	_, officerCh := eb.Subscribe(officers)
	_, hostCh := eb.Subscribe(hosts)

	for range EventQueueSize {
		eb.Publish(officers, NewEvent(officers, "ParticipantStatusMessage", nil))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		eb.Publish(officers, NewEvent(officers, "HelpMessage", nil))
		eb.Publish(hosts, NewEvent(hosts, "ConferenceStatusMessage", nil))
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full group")
	}

	select {
	case evt := <-hostCh:
		assert.Equal(t, "ConferenceStatusMessage", evt.Type)
	case <-time.After(time.Second):
		t.Fatal("hosts message not delivered")
	}
	for range EventQueueSize {
		evt := <-officerCh
		require.Equal(t, "ParticipantStatusMessage", evt.Type)
	}
	select {
	case evt := <-officerCh:
		t.Fatalf("overflow message should have been dropped: %s", evt.Type)
	default:
	}
}

// TestUnsubscribeDuringStormOnFullGroup drops a saturated subscriber while
// messages keep arriving for its group
func TestUnsubscribeDuringStormOnFullGroup(t *testing.T) {
	const iters = 200
	officers := Topic("VhOfficers")
	for range iters {
		eb := NewEventBus(nil, nil)
		subId, ch := eb.Subscribe(officers)
		for range EventQueueSize {
			eb.Publish(officers, NewEvent(officers, "ParticipantStatusMessage", nil))
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 50 {
				eb.Publish(officers, NewEvent(officers, "HelpMessage", nil))
			}
		}()
		go func() {
			defer wg.Done()
			eb.Unsubscribe(officers, subId)
		}()
		drained := make(chan struct{})
		go func() {
			defer close(drained)
			for range ch {
			}
		}()

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("deadlock: Unsubscribe and Publish blocked for 5s")
		}
		<-drained
		eb.Stop()
	}
}
