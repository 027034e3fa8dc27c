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

	"github.com/blinklabs-io/courtroom/conference"
	"github.com/blinklabs-io/courtroom/notify"
	"github.com/blinklabs-io/courtroom/rules"
)

func endpointHandlers() []Handler {
	return []Handler{
		endpointHandler(EventTypeEndpointJoined, handleEndpointJoined),
		endpointHandler(EventTypeEndpointDisconnected, handleEndpointDisconnected),
		endpointHandler(EventTypeEndpointTransfer, handleEndpointTransfer),
	}
}

func endpointHandler(
	t EventType,
	fn func(context.Context, *Context) (Outcome, error),
) Handler {
	return HandlerFunc{
		Type:     t,
		Mode:     RefreshIfMissing,
		SubjectK: SubjectEndpoint,
		Fn:       fn,
	}
}

func handleEndpointJoined(_ context.Context, hctx *Context) (Outcome, error) {
	conf, ep := hctx.Conference, hctx.Endpoint
	ep.Status = conference.EndpointStatusConnected
	ep.CurrentRoom = fixedRoom(conference.RoomTypeWaitingRoom)
	return persist(notify.EndpointStatus(conf, ep))
}

func handleEndpointDisconnected(_ context.Context, hctx *Context) (Outcome, error) {
	conf, ep := hctx.Conference, hctx.Endpoint
	ep.Status = conference.EndpointStatusDisconnected
	ep.CurrentRoom = nil
	conf.RemoveFromRooms(ep.ID)
	return persist(notify.EndpointStatus(conf, ep))
}

func handleEndpointTransfer(_ context.Context, hctx *Context) (Outcome, error) {
	conf, ep := hctx.Conference, hctx.Endpoint
	status, room, err := rules.EndpointStatusOnTransfer(hctx.Event.TransferTo)
	if err != nil {
		return Outcome{}, err
	}
	moveEndpoint(conf, ep, status, room)
	envs := notify.EndpointStatus(conf, ep)
	if civ := conf.Room(room.Label); civ != nil {
		envs = append(envs, roomUpdate(conf, civ)...)
	}
	return persist(envs)
}

// moveEndpoint applies a status and room change to ep
func moveEndpoint(
	conf *conference.Conference,
	ep *conference.Endpoint,
	status conference.EndpointStatus,
	room rules.Room,
) {
	ep.Status = status
	if room.Type == conference.RoomTypeConsultationRoom {
		civ := conf.MoveToRoom(ep.ID, room.Label)
		ep.CurrentRoom = &conference.Room{ID: civ.ID, Label: civ.Label}
		return
	}
	conf.RemoveFromRooms(ep.ID)
	ep.CurrentRoom = fixedRoom(room.Type)
}
