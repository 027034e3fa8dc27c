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
	"slices"

	"github.com/blinklabs-io/courtroom/conference"
)

// Audience selects the groups a message goes to
type Audience struct {
	// ExcludeRoles drops participants with these roles from the
	// per-participant groups
	ExcludeRoles []conference.Role
	// Users are extra usernames addressed 1:1
	Users        []string
	Participants bool
	Officers     bool
	Staff        bool
	Hosts        bool
}

// Everyone is every participant plus the officer group
var Everyone = Audience{Participants: true, Officers: true}

// Address builds one envelope per distinct group selected by aud. The order
// is participants, extra users, hosts, staff, officers
func Address(
	conf *conference.Conference,
	aud Audience,
	msgType string,
	payload any,
) []Envelope {
	var groups []string
	add := func(group string) {
		if group == "" || slices.Contains(groups, group) {
			return
		}
		groups = append(groups, group)
	}
	if aud.Participants && conf != nil {
		for _, p := range conf.Participants {
			if slices.Contains(aud.ExcludeRoles, p.Role) {
				continue
			}
			add(UserGroup(p.Username))
		}
	}
	for _, u := range aud.Users {
		add(UserGroup(u))
	}
	if aud.Hosts && conf != nil {
		add(HostGroup(conf.ID))
	}
	if aud.Staff {
		add(GroupStaffMembers)
	}
	if aud.Officers {
		add(GroupOfficers)
	}
	ret := make([]Envelope, 0, len(groups))
	for _, g := range groups {
		ret = append(ret, Envelope{Group: g, Type: msgType, Payload: payload})
	}
	return ret
}

// ParticipantSummaries is the conference-wide participant list carried by
// status messages
func ParticipantSummaries(conf *conference.Conference) []ParticipantSummary {
	ret := make([]ParticipantSummary, 0, len(conf.Participants))
	for _, p := range conf.Participants {
		s := ParticipantSummary{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			Username:    p.Username,
			Role:        p.Role,
			Status:      p.Status,
		}
		if p.CurrentRoom != nil {
			s.Room = p.CurrentRoom.Label
		}
		ret = append(ret, s)
	}
	return ret
}

// ParticipantStatus builds the status message for p, sent to every
// participant and the officers
func ParticipantStatus(
	conf *conference.Conference,
	p *conference.Participant,
	reason string,
) []Envelope {
	return Address(
		conf,
		Everyone,
		MessageParticipantStatus,
		ParticipantStatusPayload{
			ConferenceID:  conf.ID,
			ParticipantID: p.ID,
			Username:      p.Username,
			Status:        p.Status,
			Reason:        reason,
			Participants:  ParticipantSummaries(conf),
		},
	)
}

func EndpointStatus(conf *conference.Conference, ep *conference.Endpoint) []Envelope {
	payload := EndpointStatusPayload{
		ConferenceID: conf.ID,
		EndpointID:   ep.ID,
		Status:       ep.Status,
	}
	if ep.CurrentRoom != nil {
		payload.Room = ep.CurrentRoom.Label
	}
	aud := Everyone
	if ep.DefenceAdvocateUsername != "" {
		aud.Users = []string{ep.DefenceAdvocateUsername}
	}
	return Address(conf, aud, MessageEndpointStatus, payload)
}

func TelephoneParticipants(conf *conference.Conference) []Envelope {
	return Address(
		conf,
		Audience{Participants: true, Officers: true, Hosts: true},
		MessageTelephoneParticipants,
		TelephoneParticipantsPayload{
			ConferenceID:          conf.ID,
			TelephoneParticipants: slices.Clone(conf.TelephoneParticipants),
		},
	)
}

func ConferenceStatus(conf *conference.Conference) []Envelope {
	return Address(
		conf,
		Audience{Participants: true, Officers: true, Staff: true},
		MessageConferenceStatus,
		ConferenceStatusPayload{
			ConferenceID: conf.ID,
			Status:       conf.CurrentStatus,
		},
	)
}

// Hearing builds one of the broadcast-only hearing messages, sent to every
// participant, the officers and the staff
func Hearing(conf *conference.Conference, msgType string, reason string) []Envelope {
	return Address(
		conf,
		Audience{Participants: true, Officers: true, Staff: true},
		msgType,
		HearingPayload{
			ConferenceID:      conf.ID,
			CaseName:          conf.CaseName,
			CaseNumber:        conf.CaseNumber,
			ScheduledDateTime: conf.ScheduledDateTime,
			Reason:            reason,
		},
	)
}

// ParticipantsUpdated notifies every non-staff participant, the staff group
// once, the officers and any extra usernames
func ParticipantsUpdated(conf *conference.Conference, extraUsers []string) []Envelope {
	return Address(
		conf,
		Audience{
			Participants: true,
			ExcludeRoles: []conference.Role{conference.RoleStaffMember},
			Users:        extraUsers,
			Staff:        true,
			Officers:     true,
		},
		MessageParticipantsUpdated,
		ParticipantsUpdatedPayload{
			ConferenceID: conf.ID,
			Participants: ParticipantSummaries(conf),
		},
	)
}

// HearingLayoutChanged tells the hosts and the officers about a new layout
func HearingLayoutChanged(conf *conference.Conference, layout *conference.Layout) []Envelope {
	return Address(
		conf,
		Audience{Hosts: true, Officers: true},
		MessageHearingLayoutChanged,
		HearingLayoutChangedPayload{
			ConferenceID: conf.ID,
			Layout:       layout.Layout,
			ChangedBy:    layout.ChangedBy,
			UpdatedAt:    layout.UpdatedAt,
		},
	)
}
