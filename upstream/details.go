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

package upstream

import (
	"time"
)

// ConferenceDetails is the video platform's view of a conference
type ConferenceDetails struct {
	ScheduledDateTime     time.Time            `json:"scheduled_date_time" yaml:"scheduledDateTime"`
	ID                    string               `json:"id" yaml:"id"`
	HearingID             string               `json:"hearing_id" yaml:"hearingId"`
	CaseName              string               `json:"case_name" yaml:"caseName"`
	CaseNumber            string               `json:"case_number" yaml:"caseNumber"`
	CurrentStatus         string               `json:"current_status" yaml:"currentStatus"`
	Participants          []ParticipantDetails `json:"participants" yaml:"participants"`
	Endpoints             []EndpointDetails    `json:"endpoints" yaml:"endpoints"`
	TelephoneParticipants []TelephoneDetails   `json:"telephone_participants" yaml:"telephoneParticipants"`
	CivilianRooms         []RoomDetails        `json:"civilian_rooms" yaml:"civilianRooms"`
}

type ParticipantDetails struct {
	CurrentRoom        *RoomDetails    `json:"current_room,omitempty" yaml:"currentRoom,omitempty"`
	VirtualMeetingRoom *RoomDetails    `json:"virtual_meeting_room,omitempty" yaml:"virtualMeetingRoom,omitempty"`
	ID                 string          `json:"id" yaml:"id"`
	RefID              string          `json:"ref_id,omitempty" yaml:"refId,omitempty"`
	DisplayName        string          `json:"display_name" yaml:"displayName"`
	Username           string          `json:"username" yaml:"username"`
	UserRole           string          `json:"user_role" yaml:"userRole"`
	HearingRole        string          `json:"hearing_role,omitempty" yaml:"hearingRole,omitempty"`
	CaseTypeGroup      string          `json:"case_type_group,omitempty" yaml:"caseTypeGroup,omitempty"`
	CurrentStatus      string          `json:"current_status" yaml:"currentStatus"`
	LinkedParticipants []LinkedDetails `json:"linked_participants,omitempty" yaml:"linkedParticipants,omitempty"`
}

type LinkedDetails struct {
	LinkedID string `json:"linked_id" yaml:"linkedId"`
	Type     string `json:"type" yaml:"type"`
}

type EndpointDetails struct {
	CurrentRoom             *RoomDetails `json:"current_room,omitempty" yaml:"currentRoom,omitempty"`
	ID                      string       `json:"id" yaml:"id"`
	DisplayName             string       `json:"display_name" yaml:"displayName"`
	SipAddress              string       `json:"sip_address" yaml:"sipAddress"`
	Status                  string       `json:"status" yaml:"status"`
	DefenceAdvocateUsername string       `json:"defence_advocate,omitempty" yaml:"defenceAdvocate,omitempty"`
}

type TelephoneDetails struct {
	ID          string `json:"id" yaml:"id"`
	PhoneNumber string `json:"phone_number" yaml:"phoneNumber"`
	Room        string `json:"room" yaml:"room"`
	Connected   bool   `json:"connected" yaml:"connected"`
}

type RoomDetails struct {
	ID             string   `json:"id" yaml:"id"`
	Label          string   `json:"label" yaml:"label"`
	ParticipantIDs []string `json:"participants,omitempty" yaml:"participants,omitempty"`
	Locked         bool     `json:"locked" yaml:"locked"`
}

// HearingDetails is the booking service's view of the hearing behind a
// conference
type HearingDetails struct {
	ID                       string `json:"id" yaml:"id"`
	HearingVenueName         string `json:"hearing_venue_name" yaml:"hearingVenueName"`
	AllocatedOfficerUsername string `json:"allocated_officer,omitempty" yaml:"allocatedOfficer,omitempty"`
}

// UserProfileDetails is the identity service's view of a user
type UserProfileDetails struct {
	Username    string   `json:"username" yaml:"username"`
	FirstName   string   `json:"first_name" yaml:"firstName"`
	LastName    string   `json:"last_name" yaml:"lastName"`
	DisplayName string   `json:"display_name" yaml:"displayName"`
	Roles       []string `json:"roles" yaml:"roles"`
}
