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
	"slices"

	"github.com/blinklabs-io/courtroom/conference"
	"github.com/blinklabs-io/courtroom/notify"
	"github.com/blinklabs-io/courtroom/rules"
)

func participantHandlers() []Handler {
	return []Handler{
		participantHandler(EventTypeJoined, handleJoined),
		participantHandler(EventTypeJoining, handleJoining),
		participantHandler(EventTypeLeave, handleLeave),
		participantHandler(EventTypeDisconnected, handleDisconnected),
		participantHandler(EventTypeTransfer, handleTransfer),
	}
}

func participantHandler(
	t EventType,
	fn func(context.Context, *Context) (Outcome, error),
) Handler {
	return HandlerFunc{
		Type:     t,
		Mode:     RefreshIfMissing,
		SubjectK: SubjectParticipant,
		Fn:       fn,
	}
}

// fixedRoom is the room value used for the waiting and hearing rooms
func fixedRoom(rt conference.RoomType) *conference.Room {
	return &conference.Room{ID: string(rt), Label: string(rt)}
}

func handleJoined(_ context.Context, hctx *Context) (Outcome, error) {
	conf, p := hctx.Conference, hctx.Participant
	p.Status = rules.ParticipantStatusOnJoined(conf, p)
	p.DisconnectReason = ""
	if p.Status == conference.ParticipantStatusInHearing {
		p.CurrentRoom = fixedRoom(conference.RoomTypeHearingRoom)
	} else {
		p.CurrentRoom = fixedRoom(conference.RoomTypeWaitingRoom)
	}
	return persist(notify.ParticipantStatus(conf, p, ""))
}

func handleJoining(_ context.Context, hctx *Context) (Outcome, error) {
	p := hctx.Participant
	p.Status = conference.ParticipantStatusJoining
	return persist(notify.ParticipantStatus(hctx.Conference, p, ""))
}

func handleLeave(_ context.Context, hctx *Context) (Outcome, error) {
	p := hctx.Participant
	if !rules.ShouldDisconnectOnLeave(p.Status, hctx.Event.Reason) {
		hctx.Logger.Debug(
			"ignoring leave from idle session",
			"participant_id", p.ID,
			"status", p.Status,
		)
		return Outcome{}, nil
	}
	return disconnectParticipant(hctx)
}

func handleDisconnected(_ context.Context, hctx *Context) (Outcome, error) {
	return disconnectParticipant(hctx)
}

func disconnectParticipant(hctx *Context) (Outcome, error) {
	conf, p := hctx.Conference, hctx.Participant
	p.Status = conference.ParticipantStatusDisconnected
	p.DisconnectReason = hctx.Event.Reason
	p.CurrentRoom = nil
	conf.RemoveFromRooms(p.ID)
	return persist(notify.ParticipantStatus(conf, p, hctx.Event.Reason))
}

func handleTransfer(_ context.Context, hctx *Context) (Outcome, error) {
	conf, p := hctx.Conference, hctx.Participant
	status, room, err := rules.ParticipantStatusOnTransfer(hctx.Event.TransferTo)
	if err != nil {
		return Outcome{}, err
	}
	p.Status = status
	var civ *conference.Room
	if room.Type == conference.RoomTypeConsultationRoom {
		civ = conf.MoveToRoom(p.ID, room.Label)
		p.CurrentRoom = &conference.Room{ID: civ.ID, Label: civ.Label}
	} else {
		conf.RemoveFromRooms(p.ID)
		p.CurrentRoom = fixedRoom(room.Type)
	}
	envs := notify.ParticipantStatus(conf, p, "")
	if civ != nil {
		envs = append(envs, roomUpdate(conf, civ)...)
	}
	return persist(envs)
}

func roomUpdate(conf *conference.Conference, room *conference.Room) []notify.Envelope {
	return notify.Address(
		conf,
		notify.Everyone,
		notify.MessageRoomUpdate,
		notify.RoomUpdatePayload{
			ConferenceID: conf.ID,
			Room: conference.Room{
				ID:             room.ID,
				Label:          room.Label,
				Locked:         room.Locked,
				ParticipantIDs: slices.Clone(room.ParticipantIDs),
			},
		},
	)
}
