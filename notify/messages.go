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

package notify

import (
	"time"

	"github.com/blinklabs-io/courtroom/conference"
)

const (
	MessageParticipantStatus         = "ParticipantStatusMessage"
	MessageEndpointStatus            = "EndpointStatusMessage"
	MessageTelephoneParticipants     = "TelephoneParticipantsMessage"
	MessageConferenceStatus          = "ConferenceStatusMessage"
	MessageHelp                      = "HelpMessage"
	MessageConsultationRequested     = "RequestedConsultationMessage"
	MessageConsultationAnswered      = "ConsultationRequestResponseMessage"
	MessageHearingLayoutChanged      = "HearingLayoutChangedMessage"
	MessageRoomUpdate                = "RoomUpdateMessage"
	MessageCountdownFinished         = "CountdownFinishedMessage"
	MessageHearingCancelled          = "HearingCancelledMessage"
	MessageHearingDateTimeChanged    = "HearingDateTimeChangedMessage"
	MessageHearingDetailsUpdated     = "HearingDetailsUpdatedMessage"
	MessageNewConferenceAdded        = "NewConferenceAddedMessage"
	MessageAllocationsUpdated        = "AllocationsUpdatedMessage"
	MessageParticipantsUpdated       = "ParticipantsUpdatedMessage"
	MessageRecordingConnectionFailed = "RecordingConnectionFailedMessage"
	MessageSelfTestFailed            = "SelfTestFailedMessage"
)

// Envelope is one message addressed to one group
type Envelope struct {
	Payload any    `json:"payload"`
	Group   string `json:"group"`
	Type    string `json:"type"`
}

type ParticipantSummary struct {
	ID          string                       `json:"id"`
	DisplayName string                       `json:"display_name"`
	Username    string                       `json:"username"`
	Role        conference.Role              `json:"role"`
	Status      conference.ParticipantStatus `json:"status"`
	Room        string                       `json:"room,omitempty"`
}

type ParticipantStatusPayload struct {
	ConferenceID  string                       `json:"conference_id"`
	ParticipantID string                       `json:"participant_id"`
	Username      string                       `json:"username"`
	Status        conference.ParticipantStatus `json:"status"`
	Reason        string                       `json:"reason,omitempty"`
	Participants  []ParticipantSummary         `json:"participants"`
}

type EndpointStatusPayload struct {
	ConferenceID string                    `json:"conference_id"`
	EndpointID   string                    `json:"endpoint_id"`
	Status       conference.EndpointStatus `json:"status"`
	Room         string                    `json:"room,omitempty"`
}

type TelephoneParticipantsPayload struct {
	ConferenceID          string                            `json:"conference_id"`
	TelephoneParticipants []conference.TelephoneParticipant `json:"telephone_participants"`
}

type ConferenceStatusPayload struct {
	ConferenceID string            `json:"conference_id"`
	Status       conference.Status `json:"status"`
}

type HelpPayload struct {
	ConferenceID     string `json:"conference_id"`
	HearingVenueName string `json:"hearing_venue_name"`
	ParticipantName  string `json:"participant_name"`
}

type ConsultationRequestedPayload struct {
	ConferenceID string `json:"conference_id"`
	InvitationID string `json:"invitation_id"`
	RoomLabel    string `json:"room_label"`
	RequestedBy  string `json:"requested_by"`
	RequestedFor string `json:"requested_for"`
}

type ConsultationAnsweredPayload struct {
	ConferenceID string            `json:"conference_id"`
	InvitationID string            `json:"invitation_id"`
	RoomLabel    string            `json:"room_label,omitempty"`
	RequestedBy  string            `json:"requested_by,omitempty"`
	RequestedFor string            `json:"requested_for"`
	Answer       conference.Answer `json:"answer"`
	TimedOut     bool              `json:"timed_out,omitempty"`
	Complete     bool              `json:"complete"`
	AllAccepted  bool              `json:"all_accepted"`
}

type HearingLayoutChangedPayload struct {
	UpdatedAt    time.Time                `json:"updated_at"`
	ConferenceID string                   `json:"conference_id"`
	Layout       conference.HearingLayout `json:"layout"`
	ChangedBy    string                   `json:"changed_by,omitempty"`
}

type RoomUpdatePayload struct {
	ConferenceID string          `json:"conference_id"`
	Room         conference.Room `json:"room"`
}

// HearingPayload is shared by the broadcast-only hearing messages
type HearingPayload struct {
	ScheduledDateTime time.Time `json:"scheduled_date_time"`
	ConferenceID      string    `json:"conference_id"`
	CaseName          string    `json:"case_name"`
	CaseNumber        string    `json:"case_number"`
	Reason            string    `json:"reason,omitempty"`
}

type AllocationsUpdatedPayload struct {
	Officer    string   `json:"officer"`
	HearingIDs []string `json:"hearing_ids"`
}

type ParticipantsUpdatedPayload struct {
	ConferenceID string               `json:"conference_id"`
	Participants []ParticipantSummary `json:"participants"`
}

type AlertPayload struct {
	ConferenceID  string `json:"conference_id"`
	ParticipantID string `json:"participant_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
}
