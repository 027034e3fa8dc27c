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

	"github.com/blinklabs-io/courtroom/conference"
	"github.com/blinklabs-io/courtroom/notify"
	"github.com/blinklabs-io/courtroom/rules"
)

var (
	// ErrRoomLocked is returned when another instance holds the room lock
	ErrRoomLocked      = errors.New("consultation room is locked")
	ErrNoVideoPlatform = errors.New("no video platform configured")

	ErrMissingInvitationID = errors.New("missing invitation id")
	ErrInvalidAnswer       = errors.New("invalid consultation answer")
	ErrNotInvited          = errors.New("participant was not invited")
)

// vhoRequester is recorded on invitations started by an officer call
const vhoRequester = "VHO"

func consultationHandlers(deps Deps) []Handler {
	return []Handler{
		HandlerFunc{
			Type:     EventTypeHelp,
			Mode:     RefreshIfMissing,
			SubjectK: SubjectParticipant,
			Fn:       handleHelp,
		},
		&vhoCallHandler{deps: deps},
		&consultationResponseHandler{deps: deps},
	}
}

func handleHelp(_ context.Context, hctx *Context) (Outcome, error) {
	conf, p := hctx.Conference, hctx.Participant
	return broadcast(notify.Address(
		conf,
		notify.Audience{Officers: true},
		notify.MessageHelp,
		notify.HelpPayload{
			ConferenceID:     conf.ID,
			HearingVenueName: conf.HearingVenueName,
			ParticipantName:  p.DisplayName,
		},
	))
}

// RoomLockKey is the room lock key for a consultation room
func RoomLockKey(conferenceID string, roomLabel string) string {
	return conferenceID + "_" + roomLabel
}

// vhoCallHandler pulls a participant or endpoint into a consultation room
type vhoCallHandler struct {
	deps Deps
}

func (h *vhoCallHandler) EventType() EventType { return EventTypeVhoCall }

func (h *vhoCallHandler) Refresh() RefreshMode { return RefreshIfMissing }

func (h *vhoCallHandler) Subject() SubjectKind { return SubjectParticipantOrEndpoint }

func (h *vhoCallHandler) Handle(ctx context.Context, hctx *Context) (Outcome, error) {
	label := hctx.Event.TransferTo
	if !rules.IsConsultationRoom(label) {
		return Outcome{}, &rules.UnrecognizedRoomError{Room: label}
	}
	if hctx.Endpoint != nil {
		return h.joinEndpoint(ctx, hctx, label)
	}
	return h.invite(ctx, hctx, label)
}

func (h *vhoCallHandler) joinEndpoint(
	ctx context.Context,
	hctx *Context,
	label string,
) (Outcome, error) {
	if h.deps.VideoPlatform == nil {
		return Outcome{}, ErrNoVideoPlatform
	}
	conf, ep := hctx.Conference, hctx.Endpoint
	lockKey := RoomLockKey(conf.ID, label)
	if h.deps.RoomLocks != nil {
		held, err := h.deps.RoomLocks.AcquireLock(ctx, lockKey, 0)
		if err != nil {
			return Outcome{}, err
		}
		if held {
			return Outcome{}, fmt.Errorf("%w: %s", ErrRoomLocked, lockKey)
		}
		defer func() {
			// A cancelled request still frees the room
			releaseCtx := context.WithoutCancel(ctx)
			if err := h.deps.RoomLocks.ReleaseLock(releaseCtx, lockKey); err != nil {
				hctx.Logger.Warn("failed to release room lock", "room", lockKey, "error", err)
			}
		}()
	}
	err := h.deps.VideoPlatform.JoinEndpointToConsultation(
		ctx,
		conf.ID,
		ep.ID,
		label,
		hctx.Event.ParticipantID,
	)
	if err != nil {
		return Outcome{}, fmt.Errorf("join endpoint %s to %s: %w", ep.ID, label, err)
	}
	moveEndpoint(
		conf,
		ep,
		conference.EndpointStatusInConsultation,
		rules.Room{Label: label, Type: conference.RoomTypeConsultationRoom, AdHoc: true},
	)
	envs := notify.EndpointStatus(conf, ep)
	envs = append(envs, roomUpdate(conf, conf.Room(label))...)
	return persist(envs)
}

func (h *vhoCallHandler) invite(
	ctx context.Context,
	hctx *Context,
	label string,
) (Outcome, error) {
	conf, p := hctx.Conference, hctx.Participant
	inv := conference.NewInvitation(conf.ID, label, vhoRequester, p.ID)
	if h.deps.Invitations != nil {
		if err := h.deps.Invitations.Write(ctx, inv); err != nil {
			return Outcome{}, err
		}
	}
	return broadcast(notify.Address(
		conf,
		notify.Audience{Users: []string{p.Username}},
		notify.MessageConsultationRequested,
		notify.ConsultationRequestedPayload{
			ConferenceID: conf.ID,
			InvitationID: inv.ID,
			RoomLabel:    label,
			RequestedBy:  vhoRequester,
			RequestedFor: p.ID,
		},
	))
}

// consultationResponseHandler records an invitee's answer. An invitation
// that is no longer cached has timed out and the answer becomes a rejection.
// A complete invitation is removed, otherwise the answer is written back
type consultationResponseHandler struct {
	deps Deps
}

func (h *consultationResponseHandler) EventType() EventType {
	return EventTypeConsultationResponse
}

func (h *consultationResponseHandler) Refresh() RefreshMode { return RefreshIfMissing }

func (h *consultationResponseHandler) Subject() SubjectKind { return SubjectParticipant }

func (h *consultationResponseHandler) Handle(
	ctx context.Context,
	hctx *Context,
) (Outcome, error) {
	conf, p, evt := hctx.Conference, hctx.Participant, hctx.Event
	if evt.InvitationID == "" {
		return Outcome{}, ErrMissingInvitationID
	}
	if !evt.Answer.Valid() {
		return Outcome{}, fmt.Errorf("%w: %q", ErrInvalidAnswer, evt.Answer)
	}
	var inv *conference.Invitation
	if h.deps.Invitations != nil {
		if cached, ok := h.deps.Invitations.Read(ctx, evt.InvitationID); ok &&
			cached.ConferenceID == conf.ID {
			inv = cached
		}
	}
	if inv == nil {
		hctx.Logger.Info(
			"consultation invitation timed out",
			"invitation_id", evt.InvitationID,
			"participant_id", p.ID,
		)
		return broadcast(consultationAnswered(conf, p, notify.ConsultationAnsweredPayload{
			ConferenceID: conf.ID,
			InvitationID: evt.InvitationID,
			RequestedFor: p.ID,
			Answer:       conference.AnswerRejected,
			TimedOut:     true,
			Complete:     true,
		}, ""))
	}
	if _, invited := inv.Answers[p.ID]; !invited {
		return Outcome{}, fmt.Errorf("%w: %s", ErrNotInvited, p.ID)
	}
	inv.SetAnswer(p.ID, evt.Answer)
	complete := inv.Complete()
	var err error
	if complete {
		err = h.deps.Invitations.Remove(ctx, inv.ID)
	} else {
		err = h.deps.Invitations.Write(ctx, inv)
	}
	if err != nil {
		return Outcome{}, err
	}
	return broadcast(consultationAnswered(conf, p, notify.ConsultationAnsweredPayload{
		ConferenceID: conf.ID,
		InvitationID: inv.ID,
		RoomLabel:    inv.RoomLabel,
		RequestedBy:  inv.RequestedBy,
		RequestedFor: p.ID,
		Answer:       evt.Answer,
		Complete:     complete,
		AllAccepted:  complete && inv.AllAccepted(),
	}, inv.RequestedBy))
}

// consultationAnswered addresses the answer to the invitee and the
// requester. Officer calls and timed out invitations go to the officers
func consultationAnswered(
	conf *conference.Conference,
	invitee *conference.Participant,
	payload notify.ConsultationAnsweredPayload,
	requestedBy string,
) []notify.Envelope {
	aud := notify.Audience{Users: []string{invitee.Username}}
	if requester := conf.Participant(requestedBy); requester != nil {
		aud.Users = append(aud.Users, requester.Username)
	} else {
		aud.Officers = true
	}
	return notify.Address(conf, aud, notify.MessageConsultationAnswered, payload)
}
