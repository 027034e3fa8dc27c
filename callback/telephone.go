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
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blinklabs-io/courtroom/conference"
	"github.com/blinklabs-io/courtroom/notify"
	"github.com/blinklabs-io/courtroom/rules"
)

// telephoneDisconnectRetention is how long a hung-up caller is remembered
// after removal
const telephoneDisconnectRetention = 10 * time.Minute

func telephoneHandlers() []Handler {
	return []Handler{
		HandlerFunc{
			Type:     EventTypeTelephoneJoined,
			Mode:     RefreshIfMissing,
			SubjectK: SubjectNone,
			Fn:       handleTelephoneJoined,
		},
		HandlerFunc{
			Type:     EventTypeTelephoneDisconnected,
			Mode:     RefreshIfMissing,
			SubjectK: SubjectTelephone,
			Fn:       handleTelephoneDisconnected,
		},
		HandlerFunc{
			Type:     EventTypeTelephoneTransfer,
			Mode:     RefreshIfMissing,
			SubjectK: SubjectTelephone,
			Fn:       handleTelephoneTransfer,
		},
	}
}

// findTelephone looks the telephone participant up by id, falling back to
// the phone number
func findTelephone(
	conf *conference.Conference,
	evt *CallbackEvent,
) *conference.TelephoneParticipant {
	if evt.TelephoneParticipantID != "" {
		if tp := conf.TelephoneParticipant(evt.TelephoneParticipantID); tp != nil {
			return tp
		}
	}
	if evt.PhoneNumber != "" {
		return conf.TelephoneByNumber(evt.PhoneNumber)
	}
	return nil
}

// stale reports and logs a telephone event older than the last one applied
func stale(hctx *Context, tp *conference.TelephoneParticipant) bool {
	if rules.AcceptTelephoneEvent(tp, hctx.Event.TimeStampUTC) {
		return false
	}
	hctx.Logger.Debug(
		"ignoring stale telephone event",
		"telephone_participant_id", tp.ID,
		"event_time", hctx.Event.TimeStampUTC,
		"last_event_time", tp.LastEventTime,
	)
	return true
}

func handleTelephoneJoined(_ context.Context, hctx *Context) (Outcome, error) {
	conf, evt := hctx.Conference, hctx.Event
	tp := findTelephone(conf, evt)
	if tp == nil {
		gone := conf.TelephoneDisconnect(evt.TelephoneParticipantID, evt.PhoneNumber)
		if gone != nil && !evt.TimeStampUTC.After(gone.At) {
			hctx.Logger.Debug(
				"ignoring telephone join older than its disconnect",
				"phone_number", evt.PhoneNumber,
				"event_time", evt.TimeStampUTC,
				"disconnected_at", gone.At,
			)
			return Outcome{}, nil
		}
		id := evt.TelephoneParticipantID
		if id == "" {
			id = uuid.NewString()
		}
		added := conf.AddTelephoneParticipant(conference.TelephoneParticipant{
			ID:            id,
			PhoneNumber:   evt.PhoneNumber,
			Room:          conference.RoomTypeWaitingRoom,
			Connected:     true,
			LastEventTime: evt.TimeStampUTC,
		})
		if !added {
			return Outcome{}, fmt.Errorf("telephone participant id %q already in use", id)
		}
		return persist(notify.TelephoneParticipants(conf))
	}
	if stale(hctx, tp) {
		return Outcome{}, nil
	}
	tp.Connected = true
	tp.Room = conference.RoomTypeWaitingRoom
	tp.LastEventTime = evt.TimeStampUTC
	return persist(notify.TelephoneParticipants(conf))
}

func handleTelephoneDisconnected(_ context.Context, hctx *Context) (Outcome, error) {
	conf, tp := hctx.Conference, hctx.Telephone
	if stale(hctx, tp) {
		return Outcome{}, nil
	}
	conf.RecordTelephoneDisconnect(*tp, hctx.Event.TimeStampUTC, telephoneDisconnectRetention)
	conf.RemoveTelephoneParticipant(tp.ID)
	return persist(notify.TelephoneParticipants(conf))
}

func handleTelephoneTransfer(_ context.Context, hctx *Context) (Outcome, error) {
	conf, tp := hctx.Conference, hctx.Telephone
	if stale(hctx, tp) {
		return Outcome{}, nil
	}
	rt, err := rules.TelephoneRoomOnTransfer(hctx.Event.TransferTo)
	if err != nil {
		return Outcome{}, err
	}
	tp.Room = rt
	tp.LastEventTime = hctx.Event.TimeStampUTC
	return persist(notify.TelephoneParticipants(conf))
}
