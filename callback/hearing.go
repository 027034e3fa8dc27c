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
	"slices"

	"github.com/blinklabs-io/courtroom/conference"
	"github.com/blinklabs-io/courtroom/notify"
)

var ErrMissingOfficer = errors.New("allocation event has no officer username")

func hearingHandlers(deps Deps) []Handler {
	return []Handler{
		hearingBroadcast(
			EventTypeCountdownFinished,
			notify.MessageCountdownFinished,
			RefreshIfMissing,
		),
		hearingBroadcast(
			EventTypeHearingDateTimeChanged,
			notify.MessageHearingDateTimeChanged,
			RefreshForce,
		),
		hearingBroadcast(
			EventTypeHearingDetailsUpdated,
			notify.MessageHearingDetailsUpdated,
			RefreshForce,
		),
		hearingBroadcast(
			EventTypeNewConferenceAdded,
			notify.MessageNewConferenceAdded,
			RefreshForce,
		),
		HandlerFunc{
			Type: EventTypeHearingCancelled,
			Mode: RefreshIfMissing,
			Fn:   handleHearingCancelled,
		},
		HandlerFunc{
			Type: EventTypeAllocationHearings,
			Mode: RefreshNone,
			Fn:   handleAllocationHearings,
		},
		HandlerFunc{
			Type: EventTypeParticipantsUpdated,
			Mode: RefreshForce,
			Fn:   handleParticipantsUpdated,
		},
		HandlerFunc{
			Type: EventTypeRecordingConnectionFailed,
			Mode: RefreshIfMissing,
			Fn:   handleRecordingConnectionFailed,
		},
		&selfTestFailedHandler{deps: deps},
	}
}

// hearingBroadcast notifies everyone without changing state. The force
// refreshed variants have already written the new snapshot
func hearingBroadcast(t EventType, msgType string, mode RefreshMode) Handler {
	return HandlerFunc{
		Type: t,
		Mode: mode,
		Fn: func(_ context.Context, hctx *Context) (Outcome, error) {
			return broadcast(notify.Hearing(hctx.Conference, msgType, hctx.Event.Reason))
		},
	}
}

func handleHearingCancelled(_ context.Context, hctx *Context) (Outcome, error) {
	return Outcome{
		Remove: true,
		Notifications: notify.Hearing(
			hctx.Conference,
			notify.MessageHearingCancelled,
			hctx.Event.Reason,
		),
	}, nil
}

func handleAllocationHearings(_ context.Context, hctx *Context) (Outcome, error) {
	evt := hctx.Event
	if evt.AllocatedOfficerUsername == "" {
		return Outcome{}, ErrMissingOfficer
	}
	return broadcast(notify.Address(
		nil,
		notify.Audience{Users: []string{evt.AllocatedOfficerUsername}},
		notify.MessageAllocationsUpdated,
		notify.AllocationsUpdatedPayload{
			Officer:    evt.AllocatedOfficerUsername,
			HearingIDs: slices.Clone(evt.HearingIDs),
		},
	))
}

// handleParticipantsUpdated runs after a forced refresh. Participants named
// by the event that the upstream snapshot does not carry yet are added
func handleParticipantsUpdated(_ context.Context, hctx *Context) (Outcome, error) {
	conf := hctx.Conference
	for _, p := range hctx.Event.Participants {
		if p.ID == "" || conf.HasMember(p.ID) {
			continue
		}
		conf.Participants = append(conf.Participants, p)
	}
	if err := conf.Validate(); err != nil {
		return Outcome{}, err
	}
	return persist(notify.ParticipantsUpdated(conf, hctx.Event.ParticipantsToNotify))
}

func handleRecordingConnectionFailed(_ context.Context, hctx *Context) (Outcome, error) {
	conf := hctx.Conference
	return broadcast(notify.Address(
		conf,
		notify.Audience{Officers: true, Hosts: true},
		notify.MessageRecordingConnectionFailed,
		notify.AlertPayload{
			ConferenceID: conf.ID,
			Reason:       hctx.Event.Reason,
		},
	))
}

// selfTestFailedHandler records a failed self test for the participant.
// It does not touch the conference snapshot
type selfTestFailedHandler struct {
	deps Deps
}

func (h *selfTestFailedHandler) EventType() EventType { return EventTypeSelfTestFailed }

func (h *selfTestFailedHandler) Refresh() RefreshMode { return RefreshNone }

func (h *selfTestFailedHandler) Subject() SubjectKind { return SubjectNone }

func (h *selfTestFailedHandler) Handle(
	ctx context.Context,
	hctx *Context,
) (Outcome, error) {
	evt := hctx.Event
	if h.deps.TestCalls != nil && evt.ParticipantID != "" {
		result := &conference.TestCallResult{
			Passed:      false,
			Reason:      evt.Reason,
			CompletedAt: evt.TimeStampUTC,
		}
		if err := h.deps.TestCalls.Write(ctx, evt.ParticipantID, result); err != nil {
			return Outcome{}, err
		}
	}
	return broadcast(notify.Address(
		nil,
		notify.Audience{Officers: true},
		notify.MessageSelfTestFailed,
		notify.AlertPayload{
			ConferenceID:  evt.ConferenceID,
			ParticipantID: evt.ParticipantID,
			Reason:        evt.Reason,
		},
	))
}
