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

// Package rules derives participant, endpoint, telephone and conference
// state from callback events. Everything here is pure.
package rules

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blinklabs-io/courtroom/conference"
)

var ErrUnrecognizedRoom = errors.New("unrecognized room")

// UnrecognizedRoomError reports a transfer target that is neither a known
// room nor an ad hoc consultation room
type UnrecognizedRoomError struct {
	Room string
}

func (e *UnrecognizedRoomError) Error() string {
	return fmt.Sprintf("unrecognized room: %q", e.Room)
}

func (e *UnrecognizedRoomError) Unwrap() error {
	return ErrUnrecognizedRoom
}

// anotherDevice is matched against leave reasons
const anotherDevice = "another device"

// Room is a parsed transfer target
type Room struct {
	// Label is the raw room name from the event
	Label string
	Type  conference.RoomType
	// AdHoc is set when the room was recognised only by its name
	AdHoc bool
}

// ParseRoom parses a transfer target. Known room names match
// case-insensitively; any other name containing "consultation" is an ad hoc
// consultation room
func ParseRoom(name string) (Room, error) {
	for _, rt := range []conference.RoomType{
		conference.RoomTypeWaitingRoom,
		conference.RoomTypeHearingRoom,
		conference.RoomTypeConsultationRoom,
	} {
		if strings.EqualFold(strings.TrimSpace(name), string(rt)) {
			return Room{Label: name, Type: rt}, nil
		}
	}
	if IsConsultationRoom(name) {
		return Room{
			Label: name,
			Type:  conference.RoomTypeConsultationRoom,
			AdHoc: true,
		}, nil
	}
	return Room{}, &UnrecognizedRoomError{Room: name}
}

func IsConsultationRoom(name string) bool {
	return strings.Contains(strings.ToLower(name), "consultation")
}

// ParticipantStatusOnJoined is InHearing when the conference is in session
// and the participant sits in a virtual meeting room, otherwise Available
func ParticipantStatusOnJoined(
	conf *conference.Conference,
	p *conference.Participant,
) conference.ParticipantStatus {
	if conf.CurrentStatus == conference.StatusInSession &&
		p.VirtualMeetingRoom != nil {
		return conference.ParticipantStatusInHearing
	}
	return conference.ParticipantStatusAvailable
}

// ShouldDisconnectOnLeave reports whether a leave event disconnects the
// participant. A leave from an idle session, such as a second browser tab,
// is ignored unless the participant signed in on another device
func ShouldDisconnectOnLeave(
	current conference.ParticipantStatus,
	reason string,
) bool {
	if current == conference.ParticipantStatusInHearing ||
		current == conference.ParticipantStatusInConsultation {
		return true
	}
	return strings.Contains(strings.ToLower(reason), anotherDevice)
}

func ParticipantStatusOnTransfer(
	transferTo string,
) (conference.ParticipantStatus, Room, error) {
	room, err := ParseRoom(transferTo)
	if err != nil {
		return "", Room{}, err
	}
	switch room.Type {
	case conference.RoomTypeWaitingRoom:
		return conference.ParticipantStatusAvailable, room, nil
	case conference.RoomTypeHearingRoom:
		return conference.ParticipantStatusInHearing, room, nil
	default:
		return conference.ParticipantStatusInConsultation, room, nil
	}
}

// EndpointStatusOnTransfer mirrors the participant rule. Endpoints are
// Connected in either the waiting or the hearing room
func EndpointStatusOnTransfer(
	transferTo string,
) (conference.EndpointStatus, Room, error) {
	room, err := ParseRoom(transferTo)
	if err != nil {
		return "", Room{}, err
	}
	if room.Type == conference.RoomTypeConsultationRoom {
		return conference.EndpointStatusInConsultation, room, nil
	}
	return conference.EndpointStatusConnected, room, nil
}

// TelephoneRoomOnTransfer returns the room type a telephone participant
// occupies after a transfer
func TelephoneRoomOnTransfer(transferTo string) (conference.RoomType, error) {
	room, err := ParseRoom(transferTo)
	if err != nil {
		return conference.RoomTypeNone, err
	}
	return room.Type, nil
}

// AcceptTelephoneEvent accepts only events strictly after the last accepted
// event for the telephone participant
func AcceptTelephoneEvent(
	tp *conference.TelephoneParticipant,
	eventTime time.Time,
) bool {
	return eventTime.After(tp.LastEventTime)
}

// ConferenceStatusFor maps a status event name to the conference status it
// sets. The second return value is false for other events
func ConferenceStatusFor(eventType string) (conference.Status, bool) {
	switch eventType {
	case "Start":
		return conference.StatusInSession, true
	case "Pause":
		return conference.StatusPaused, true
	case "Suspend":
		return conference.StatusSuspended, true
	case "Close":
		return conference.StatusClosed, true
	}
	return "", false
}

// AcceptConferenceStatus rejects status events older than the newest one
// already applied. Events without a timestamp are always accepted
func AcceptConferenceStatus(
	conf *conference.Conference,
	eventTime time.Time,
) bool {
	if eventTime.IsZero() || conf.LastStatusEventTime.IsZero() {
		return true
	}
	return !eventTime.Before(conf.LastStatusEventTime)
}
