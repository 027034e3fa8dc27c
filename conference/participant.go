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

package conference

import "time"

type Role string

const (
	RoleNone                 Role = "None"
	RoleJudge                Role = "Judge"
	RoleIndividual           Role = "Individual"
	RoleRepresentative       Role = "Representative"
	RolePanelMember          Role = "PanelMember"
	RoleObserver             Role = "Observer"
	RoleVideoHearingsOfficer Role = "VideoHearingsOfficer"
	RoleStaffMember          Role = "StaffMember"
	RoleJudicialOfficeHolder Role = "JudicialOfficeHolder"
	RoleQuickLinkParticipant Role = "QuickLinkParticipant"
	RoleQuickLinkObserver    Role = "QuickLinkObserver"
	RoleWinger               Role = "Winger"
)

type ParticipantStatus string

const (
	ParticipantStatusNone           ParticipantStatus = "None"
	ParticipantStatusNotSignedIn    ParticipantStatus = "NotSignedIn"
	ParticipantStatusJoining        ParticipantStatus = "Joining"
	ParticipantStatusAvailable      ParticipantStatus = "Available"
	ParticipantStatusInHearing      ParticipantStatus = "InHearing"
	ParticipantStatusInConsultation ParticipantStatus = "InConsultation"
	ParticipantStatusDisconnected   ParticipantStatus = "Disconnected"
)

type EndpointStatus string

const (
	EndpointStatusNotYetJoined   EndpointStatus = "NotYetJoined"
	EndpointStatusConnected      EndpointStatus = "Connected"
	EndpointStatusInConsultation EndpointStatus = "InConsultation"
	EndpointStatusDisconnected   EndpointStatus = "Disconnected"
)

type LinkType string

const (
	LinkTypeInterpreter LinkType = "Interpreter"
)

type LinkedParticipant struct {
	LinkedID string   `json:"linked_id"`
	LinkType LinkType `json:"link_type"`
}

// Participant is a person taking part in a hearing. Username is the
// notification address and compares case-insensitively
type Participant struct {
	CurrentRoom        *Room               `json:"current_room,omitempty"`
	VirtualMeetingRoom *Room               `json:"virtual_meeting_room,omitempty"`
	ID                 string              `json:"id"`
	DisplayName        string              `json:"display_name"`
	Username           string              `json:"username"`
	Role               Role                `json:"role"`
	Status             ParticipantStatus   `json:"status"`
	CaseTypeGroup      string              `json:"case_type_group,omitempty"`
	HearingRole        string              `json:"hearing_role,omitempty"`
	DisconnectReason   string              `json:"disconnect_reason,omitempty"`
	LinkedParticipants []LinkedParticipant `json:"linked_participants,omitempty"`
}

// IsHost reports whether the participant can run the hearing
func (p *Participant) IsHost() bool {
	return p.Role == RoleJudge || p.Role == RoleStaffMember
}

func (p *Participant) IsJudicial() bool {
	switch p.Role {
	case RoleJudge, RolePanelMember, RoleJudicialOfficeHolder, RoleStaffMember:
		return true
	}
	return false
}

// Endpoint is a video endpoint such as a courtroom or prison system
type Endpoint struct {
	CurrentRoom             *Room          `json:"current_room,omitempty"`
	ID                      string         `json:"id"`
	DisplayName             string         `json:"display_name"`
	SipAddress              string         `json:"sip_address,omitempty"`
	Status                  EndpointStatus `json:"status"`
	DefenceAdvocateUsername string         `json:"defence_advocate_username,omitempty"`
}

// TelephoneParticipant is a dial-in caller. LastEventTime guards against
// stale transfer events
type TelephoneParticipant struct {
	LastEventTime time.Time `json:"last_event_time"`
	ID            string    `json:"id"`
	PhoneNumber   string    `json:"phone_number"`
	Room          RoomType  `json:"room"`
	Connected     bool      `json:"connected"`
}

// TelephoneDisconnect remembers when a removed caller hung up, so older
// events for the same call can still be recognized
type TelephoneDisconnect struct {
	At          time.Time `json:"at"`
	ID          string    `json:"id"`
	PhoneNumber string    `json:"phone_number"`
}
