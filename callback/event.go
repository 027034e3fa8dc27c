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
	"time"

	"github.com/blinklabs-io/courtroom/conference"
)

// EventType is the discriminator of a callback event
type EventType string

const (
	EventTypeJoined                    EventType = "Joined"
	EventTypeJoining                   EventType = "ParticipantJoining"
	EventTypeLeave                     EventType = "Leave"
	EventTypeDisconnected              EventType = "Disconnected"
	EventTypeTransfer                  EventType = "Transfer"
	EventTypeEndpointJoined            EventType = "EndpointJoined"
	EventTypeEndpointDisconnected      EventType = "EndpointDisconnected"
	EventTypeEndpointTransfer          EventType = "EndpointTransfer"
	EventTypeTelephoneJoined           EventType = "TelephoneJoined"
	EventTypeTelephoneDisconnected     EventType = "TelephoneDisconnected"
	EventTypeTelephoneTransfer         EventType = "TelephoneTransfer"
	EventTypePause                     EventType = "Pause"
	EventTypeSuspend                   EventType = "Suspend"
	EventTypeStart                     EventType = "Start"
	EventTypeClose                     EventType = "Close"
	EventTypeHelp                      EventType = "Help"
	EventTypeVhoCall                   EventType = "VhoCall"
	EventTypeConsultationResponse      EventType = "ConsultationResponse"
	EventTypeCountdownFinished         EventType = "CountdownFinished"
	EventTypeHearingCancelled          EventType = "HearingCancelled"
	EventTypeHearingDateTimeChanged    EventType = "HearingDateTimeChanged"
	EventTypeHearingDetailsUpdated     EventType = "HearingDetailsUpdated"
	EventTypeNewConferenceAdded        EventType = "NewConferenceAdded"
	EventTypeAllocationHearings        EventType = "AllocationHearings"
	EventTypeParticipantsUpdated       EventType = "ParticipantsUpdated"
	EventTypeRecordingConnectionFailed EventType = "RecordingConnectionFailed"
	EventTypeSelfTestFailed            EventType = "SelfTestFailed"
)

// EventTypes lists every event type with a built-in handler
var EventTypes = []EventType{
	EventTypeJoined,
	EventTypeJoining,
	EventTypeLeave,
	EventTypeDisconnected,
	EventTypeTransfer,
	EventTypeEndpointJoined,
	EventTypeEndpointDisconnected,
	EventTypeEndpointTransfer,
	EventTypeTelephoneJoined,
	EventTypeTelephoneDisconnected,
	EventTypeTelephoneTransfer,
	EventTypePause,
	EventTypeSuspend,
	EventTypeStart,
	EventTypeClose,
	EventTypeHelp,
	EventTypeVhoCall,
	EventTypeConsultationResponse,
	EventTypeCountdownFinished,
	EventTypeHearingCancelled,
	EventTypeHearingDateTimeChanged,
	EventTypeHearingDetailsUpdated,
	EventTypeNewConferenceAdded,
	EventTypeAllocationHearings,
	EventTypeParticipantsUpdated,
	EventTypeRecordingConnectionFailed,
	EventTypeSelfTestFailed,
}

// CallbackEvent is one asynchronous notification from the video platform.
// It is never persisted
type CallbackEvent struct {
	TimeStampUTC             time.Time                `json:"time_stamp_utc"`
	EventType                EventType                `json:"event_type"`
	ConferenceID             string                   `json:"conference_id"`
	ParticipantID            string                   `json:"participant_id,omitempty"`
	EndpointID               string                   `json:"endpoint_id,omitempty"`
	TelephoneParticipantID   string                   `json:"telephone_participant_id,omitempty"`
	PhoneNumber              string                   `json:"phone_number,omitempty"`
	Reason                   string                   `json:"reason,omitempty"`
	TransferFrom             string                   `json:"transfer_from,omitempty"`
	TransferTo               string                   `json:"transfer_to,omitempty"`
	InvitationID             string                   `json:"invitation_id,omitempty"`
	Answer                   conference.Answer        `json:"answer,omitempty"`
	AllocatedOfficerUsername string                   `json:"allocated_officer_username,omitempty"`
	Participants             []conference.Participant `json:"participants,omitempty"`
	ParticipantsToNotify     []string                 `json:"participants_to_notify,omitempty"`
	HearingIDs               []string                 `json:"hearing_ids,omitempty"`
}

// NewConsultationResponse builds the event recording an invitee's answer to
// a consultation invitation
func NewConsultationResponse(
	conferenceID string,
	invitationID string,
	participantID string,
	answer conference.Answer,
) *CallbackEvent {
	return &CallbackEvent{
		TimeStampUTC:  time.Now().UTC(),
		EventType:     EventTypeConsultationResponse,
		ConferenceID:  conferenceID,
		ParticipantID: participantID,
		InvitationID:  invitationID,
		Answer:        answer,
	}
}
