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

package callback_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/blinklabs-io/courtroom/callback"
	"github.com/blinklabs-io/courtroom/conference"
	"github.com/blinklabs-io/courtroom/notify"
	"github.com/blinklabs-io/courtroom/rules"
	"github.com/blinklabs-io/courtroom/upstream"
)

func TestJoinedNotifiesParticipantAndOfficers(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.handle(callback.CallbackEvent{
		EventType:     callback.EventTypeJoined,
		ParticipantID: "ind",
	}))
	conf := h.conference(t)
	p := conf.Participant("ind")
	assert.Equal(t, conference.ParticipantStatusAvailable, p.Status)
	require.NotNil(t, p.CurrentRoom)
	assert.Equal(t, string(conference.RoomTypeWaitingRoom), p.CurrentRoom.Label)

	envs := h.sender.byType(notify.MessageParticipantStatus)
	groups := groupsOf(envs)
	assert.Contains(t, groups, "ind@example.test")
	assert.Contains(t, groups, notify.GroupOfficers)
	for _, env := range envs {
		payload, ok := env.Payload.(notify.ParticipantStatusPayload)
		require.True(t, ok)
		assert.Equal(t, "ind", payload.ParticipantID)
		assert.Equal(t, conference.ParticipantStatusAvailable, payload.Status)
	}
}

func TestJoinedInSessionWithoutMeetingRoom(t *testing.T) {
	h := newHarness(t)
	h.source.update(testConferenceID, func(cd *upstream.ConferenceDetails) {
		cd.CurrentStatus = "InSession"
	})
	require.NoError(t, h.handle(callback.CallbackEvent{
		EventType:     callback.EventTypeJoined,
		ParticipantID: "judge",
	}))
	// No virtual meeting room, so the participant waits
	assert.Equal(
		t,
		conference.ParticipantStatusAvailable,
		h.conference(t).Participant("judge").Status,
	)
}

func TestJoinedInSessionWithMeetingRoomGoesToHearing(t *testing.T) {
	h := newHarness(t)
	h.source.update(testConferenceID, func(cd *upstream.ConferenceDetails) {
		cd.CurrentStatus = "InSession"
		cd.Participants[1].VirtualMeetingRoom = &upstream.RoomDetails{
			ID:    "vmr-1",
			Label: "Interpreter1",
		}
	})
	require.NoError(t, h.handle(callback.CallbackEvent{
		EventType:     callback.EventTypeJoined,
		ParticipantID: "ind",
	}))
	p := h.conference(t).Participant("ind")
	assert.Equal(t, conference.ParticipantStatusInHearing, p.Status)
	assert.Equal(t, string(conference.RoomTypeHearingRoom), p.CurrentRoom.Label)
}

func TestJoinTransferLeaveDisconnects(t *testing.T) {
	for _, id := range []string{"judge", "ind", "staff"} {
		t.Run(id, func(t *testing.T) {
			h := newHarness(t)
			events := []callback.CallbackEvent{
				{EventType: callback.EventTypeJoined, ParticipantID: id},
				{
					EventType:     callback.EventTypeTransfer,
					ParticipantID: id,
					TransferFrom:  "WaitingRoom",
					TransferTo:    "HearingRoom",
				},
				{EventType: callback.EventTypeLeave, ParticipantID: id},
			}
			for _, evt := range events {
				require.NoError(t, h.handle(evt))
			}
			p := h.conference(t).Participant(id)
			assert.Equal(t, conference.ParticipantStatusDisconnected, p.Status)
			assert.Nil(t, p.CurrentRoom)
		})
	}
}

func TestLeaveWhileAvailableIsIgnored(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.handle(callback.CallbackEvent{
		EventType:     callback.EventTypeJoined,
		ParticipantID: "ind",
	}))
	sent := h.sender.count()
	require.NoError(t, h.handle(callback.CallbackEvent{
		EventType:     callback.EventTypeLeave,
		ParticipantID: "ind",
		Reason:        "browser tab closed",
	}))
	assert.Equal(
		t,
		conference.ParticipantStatusAvailable,
		h.conference(t).Participant("ind").Status,
	)
	assert.Equal(t, sent, h.sender.count())

	require.NoError(t, h.handle(callback.CallbackEvent{
		EventType:     callback.EventTypeLeave,
		ParticipantID: "ind",
		Reason:        "Participant connected on another device",
	}))
	p := h.conference(t).Participant("ind")
	assert.Equal(t, conference.ParticipantStatusDisconnected, p.Status)
	assert.Equal(t, "Participant connected on another device", p.DisconnectReason)
}

func TestTransferToAdHocConsultationRoom(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.handle(callback.CallbackEvent{
		EventType:     callback.EventTypeTransfer,
		ParticipantID: "ind",
		TransferFrom:  "WaitingRoom",
		TransferTo:    "ConsultationRoom1",
	}))
	conf := h.conference(t)
	p := conf.Participant("ind")
	assert.Equal(t, conference.ParticipantStatusInConsultation, p.Status)
	require.NotNil(t, p.CurrentRoom)
	assert.Equal(t, "ConsultationRoom1", p.CurrentRoom.Label)
	room := conf.Room("ConsultationRoom1")
	require.NotNil(t, room)
	assert.Equal(t, []string{"ind"}, room.ParticipantIDs)
	assert.NotEmpty(t, h.sender.byType(notify.MessageRoomUpdate))

	// Back to the waiting room empties the consultation room
	require.NoError(t, h.handle(callback.CallbackEvent{
		EventType:     callback.EventTypeTransfer,
		ParticipantID: "ind",
		TransferTo:    "WaitingRoom",
	}))
	conf = h.conference(t)
	assert.Equal(t, conference.ParticipantStatusAvailable, conf.Participant("ind").Status)
	assert.Nil(t, conf.Room("ConsultationRoom1"))
}

func TestTransferToUnknownRoomChangesNothing(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.handle(callback.CallbackEvent{
		EventType:     callback.EventTypeJoined,
		ParticipantID: "ind",
	}))
	sent := h.sender.count()
	err := h.handle(callback.CallbackEvent{
		EventType:     callback.EventTypeTransfer,
		ParticipantID: "ind",
		TransferTo:    "UnknownRoom",
	})
	require.ErrorIs(t, err, rules.ErrUnrecognizedRoom)
	var roomErr *rules.UnrecognizedRoomError
	require.ErrorAs(t, err, &roomErr)
	assert.Equal(t, "UnknownRoom", roomErr.Room)

	p := h.conference(t).Participant("ind")
	assert.Equal(t, conference.ParticipantStatusAvailable, p.Status)
	assert.Equal(t, string(conference.RoomTypeWaitingRoom), p.CurrentRoom.Label)
	assert.Equal(t, sent, h.sender.count())
}

func TestDisconnectKeepsUpstreamRooms(t *testing.T) {
	h := newHarness(t)
	h.source.update(testConferenceID, func(cd *upstream.ConferenceDetails) {
		cd.CivilianRooms = []upstream.RoomDetails{
			{
				ID:     "JudgeJOHConsultationRoom1",
				Label:  "JudgeJOHConsultationRoom1",
				Locked: true,
			},
		}
	})
	require.NoError(t, h.handle(callback.CallbackEvent{
		EventType:     callback.EventTypeJoined,
		ParticipantID: "ind",
	}))
	require.Len(t, h.conference(t).CivilianRooms, 1)

	require.NoError(t, h.handle(callback.CallbackEvent{
		EventType:     callback.EventTypeDisconnected,
		ParticipantID: "ind",
	}))
	require.NoError(t, h.handle(callback.CallbackEvent{
		EventType:     callback.EventTypeTransfer,
		ParticipantID: "judge",
		TransferTo:    "HearingRoom",
	}))
	conf := h.conference(t)
	require.Len(t, conf.CivilianRooms, 1)
	room := conf.Room("JudgeJOHConsultationRoom1")
	require.NotNil(t, room)
	assert.True(t, room.Locked)
	assert.False(t, room.AdHoc)
}

func TestMissingSubjectRefreshesOnceThenDrops(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.handle(callback.CallbackEvent{
		EventType:     callback.EventTypeJoined,
		ParticipantID: "ind",
	}))
	require.Equal(t, 1, h.source.fetches())
	sent := h.sender.count()

	require.NoError(t, h.handle(callback.CallbackEvent{
		EventType:     callback.EventTypeJoined,
		ParticipantID: "ghost",
	}))
	assert.Equal(t, 2, h.source.fetches())
	assert.Equal(t, sent, h.sender.count())

	// Once upstream knows the participant the forced refresh finds it
	h.source.update(testConferenceID, func(cd *upstream.ConferenceDetails) {
		cd.Participants = append(cd.Participants, upstream.ParticipantDetails{
			ID:       "ghost",
			Username: "ghost@example.test",
			UserRole: "Observer",
		})
	})
	require.NoError(t, h.handle(callback.CallbackEvent{
		EventType:     callback.EventTypeJoined,
		ParticipantID: "ghost",
	}))
	assert.Equal(t, 3, h.source.fetches())
	assert.Equal(
		t,
		conference.ParticipantStatusAvailable,
		h.conference(t).Participant("ghost").Status,
	)
}

func TestUnknownConferenceReturnsError(t *testing.T) {
	h := newHarness(t)
	err := h.handle(callback.CallbackEvent{
		EventType:     callback.EventTypeJoined,
		ConferenceID:  "nope",
		ParticipantID: "ind",
	})
	require.ErrorIs(t, err, upstream.ErrConferenceNotFound)
}

func TestUnknownEventType(t *testing.T) {
	h := newHarness(t)
	err := h.handle(callback.CallbackEvent{EventType: "Teleport"})
	require.ErrorIs(t, err, callback.ErrNoHandler)
}

func TestMissingConferenceID(t *testing.T) {
	h := newHarness(t)
	err := h.dispatcher.Handle(context.Background(), &callback.CallbackEvent{
		EventType:     callback.EventTypeJoined,
		ParticipantID: "ind",
	})
	require.ErrorIs(t, err, callback.ErrMissingConferenceID)
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	reg := callback.NewRegistry()
	require.NoError(t, reg.Register(callback.HandlerFunc{
		Type: "Boom",
		Mode: callback.RefreshNone,
		Fn: func(context.Context, *callback.Context) (callback.Outcome, error) {
			panic("kaboom")
		},
	}))
	d := callback.NewDispatcher(reg, nil, nil, &recordingSender{})
	defer d.Close()
	err := d.Handle(context.Background(), &callback.CallbackEvent{EventType: "Boom"})
	require.ErrorIs(t, err, callback.ErrHandlerPanic)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestHandlerErrorSkipsPersistAndNotify(t *testing.T) {
	h := newHarness(t)
	reg := callback.NewRegistry()
	errBroken := errors.New("broken")
	require.NoError(t, reg.Register(callback.HandlerFunc{
		Type:     "Broken",
		Mode:     callback.RefreshIfMissing,
		SubjectK: callback.SubjectParticipant,
		Fn: func(_ context.Context, hctx *callback.Context) (callback.Outcome, error) {
			hctx.Participant.Status = conference.ParticipantStatusInHearing
			return callback.Outcome{
				Persist:       true,
				Notifications: []notify.Envelope{{Group: "g", Type: "m"}},
			}, errBroken
		},
	}))
	d := callback.NewDispatcher(reg, h.conferences, h.source, h.sender)
	defer d.Close()
	err := d.Handle(context.Background(), &callback.CallbackEvent{
		EventType:     "Broken",
		ConferenceID:  testConferenceID,
		ParticipantID: "ind",
	})
	require.ErrorIs(t, err, errBroken)
	// The refresh wrote the upstream snapshot, the handler change was dropped
	assert.Equal(
		t,
		conference.ParticipantStatusNotSignedIn,
		h.conference(t).Participant("ind").Status,
	)
	assert.Zero(t, h.sender.count())
}

func TestLanesSerializePerConference(t *testing.T) {
	h := newHarness(t)
	var inFlight, maxInFlight atomic.Int32
	reg := callback.NewRegistry()
	require.NoError(t, reg.Register(callback.HandlerFunc{
		Type: "Slow",
		Mode: callback.RefreshIfMissing,
		Fn: func(context.Context, *callback.Context) (callback.Outcome, error) {
			n := inFlight.Add(1)
			for {
				m := maxInFlight.Load()
				if n <= m || maxInFlight.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			inFlight.Add(-1)
			return callback.Outcome{}, nil
		},
	}))
	d := callback.NewDispatcher(reg, h.conferences, h.source, h.sender)
	defer d.Close()
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, d.Handle(context.Background(), &callback.CallbackEvent{
				EventType:    "Slow",
				ConferenceID: testConferenceID,
			}))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInFlight.Load())
	assert.Eventually(
		t,
		func() bool { return d.LaneCount() == 0 },
		time.Second,
		5*time.Millisecond,
	)
}

func TestLanesRunConferencesInParallel(t *testing.T) {
	h := newHarness(t)
	started := make(chan string, 2)
	release := make(chan struct{})
	reg := callback.NewRegistry()
	require.NoError(t, reg.Register(callback.HandlerFunc{
		Type: "Block",
		Mode: callback.RefreshIfMissing,
		Fn: func(_ context.Context, hctx *callback.Context) (callback.Outcome, error) {
			started <- hctx.Conference.ID
			<-release
			return callback.Outcome{}, nil
		},
	}))
	d := callback.NewDispatcher(reg, h.conferences, h.source, h.sender)
	defer d.Close()
	var wg sync.WaitGroup
	for _, id := range []string{testConferenceID, "conf-2"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, d.Handle(context.Background(), &callback.CallbackEvent{
				EventType:    "Block",
				ConferenceID: id,
			}))
		}()
	}
	seen := map[string]bool{}
	for range 2 {
		select {
		case id := <-started:
			seen[id] = true
		case <-time.After(2 * time.Second):
			t.Fatal("conferences did not run in parallel")
		}
	}
	assert.Equal(t, 2, d.LaneCount())
	close(release)
	wg.Wait()
	assert.True(t, seen[testConferenceID])
	assert.True(t, seen["conf-2"])
}

func TestClosedDispatcherRejectsEvents(t *testing.T) {
	h := newHarness(t)
	h.dispatcher.Close()
	err := h.handle(callback.CallbackEvent{
		EventType:     callback.EventTypeJoined,
		ParticipantID: "ind",
	})
	require.ErrorIs(t, err, callback.ErrDispatcherClosed)
}

func TestDispatchMetricsAndSpans(t *testing.T) {
	reg := prometheus.NewRegistry()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() {
		_ = tp.Shutdown(context.Background())
	}()
	h := newHarness(
		t,
		callback.WithPromRegistry(reg),
		callback.WithTracerProvider(tp),
	)
	require.NoError(t, h.handle(callback.CallbackEvent{
		EventType:     callback.EventTypeJoined,
		ParticipantID: "ind",
	}))
	require.NoError(t, h.handle(callback.CallbackEvent{
		EventType:     callback.EventTypeJoined,
		ParticipantID: "ghost",
	}))

	families, err := reg.Gather()
	require.NoError(t, err)
	results := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "courtroom_callbacks_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "result" {
					results[l.GetValue()] += m.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, map[string]float64{"ok": 1, "dropped": 1}, results)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "callback.Joined", spans[0].Name())
}
