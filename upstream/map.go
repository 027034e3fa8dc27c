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
	"errors"
	"fmt"
	"strings"

	"github.com/blinklabs-io/courtroom/conference"
)

// MapConference builds the cached conference aggregate from the upstream
// conference and hearing details. The hearing details are optional
func MapConference(
	cd *ConferenceDetails,
	hd *HearingDetails,
) (*conference.Conference, error) {
	if cd == nil {
		return nil, errors.New("no conference details")
	}
	conf := &conference.Conference{
		ID:                cd.ID,
		HearingID:         cd.HearingID,
		CaseName:          cd.CaseName,
		CaseNumber:        cd.CaseNumber,
		ScheduledDateTime: cd.ScheduledDateTime.UTC(),
		CurrentStatus:     mapConferenceStatus(cd.CurrentStatus),
	}
	if hd != nil {
		conf.HearingVenueName = hd.HearingVenueName
		conf.AllocatedOfficerUsername = hd.AllocatedOfficerUsername
		if conf.HearingID == "" {
			conf.HearingID = hd.ID
		}
	}
	for _, p := range cd.Participants {
		conf.Participants = append(conf.Participants, mapParticipant(p))
	}
	for _, e := range cd.Endpoints {
		conf.Endpoints = append(conf.Endpoints, conference.Endpoint{
			ID:                      e.ID,
			DisplayName:             e.DisplayName,
			SipAddress:              e.SipAddress,
			Status:                  mapEndpointStatus(e.Status),
			DefenceAdvocateUsername: e.DefenceAdvocateUsername,
			CurrentRoom:             mapRoom(e.CurrentRoom),
		})
	}
	for _, tp := range cd.TelephoneParticipants {
		conf.TelephoneParticipants = append(
			conf.TelephoneParticipants,
			conference.TelephoneParticipant{
				ID:          tp.ID,
				PhoneNumber: tp.PhoneNumber,
				Connected:   tp.Connected,
				Room:        mapRoomType(tp.Room),
			},
		)
	}
	for _, r := range cd.CivilianRooms {
		conf.CivilianRooms = append(conf.CivilianRooms, *mapRoom(&r))
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid conference details: %w", err)
	}
	return conf, nil
}

func mapParticipant(p ParticipantDetails) conference.Participant {
	ret := conference.Participant{
		ID:                 p.ID,
		DisplayName:        p.DisplayName,
		Username:           p.Username,
		Role:               mapRole(p.UserRole),
		Status:             mapParticipantStatus(p.CurrentStatus),
		HearingRole:        p.HearingRole,
		CaseTypeGroup:      p.CaseTypeGroup,
		CurrentRoom:        mapRoom(p.CurrentRoom),
		VirtualMeetingRoom: mapRoom(p.VirtualMeetingRoom),
	}
	for _, lp := range p.LinkedParticipants {
		ret.LinkedParticipants = append(
			ret.LinkedParticipants,
			conference.LinkedParticipant{
				LinkedID: lp.LinkedID,
				LinkType: conference.LinkType(lp.Type),
			},
		)
	}
	return ret
}

// MapUserProfile builds the cached claims snapshot of a user
func MapUserProfile(ud *UserProfileDetails) (*conference.UserProfile, error) {
	if ud == nil || strings.TrimSpace(ud.Username) == "" {
		return nil, errors.New("user profile without username")
	}
	return &conference.UserProfile{
		Username:    ud.Username,
		FirstName:   ud.FirstName,
		LastName:    ud.LastName,
		DisplayName: ud.DisplayName,
		Roles:       append([]string(nil), ud.Roles...),
	}, nil
}

func mapRoom(r *RoomDetails) *conference.Room {
	if r == nil {
		return nil
	}
	return &conference.Room{
		ID:             r.ID,
		Label:          r.Label,
		Locked:         r.Locked,
		ParticipantIDs: append([]string(nil), r.ParticipantIDs...),
	}
}

var roles = []conference.Role{
	conference.RoleJudge,
	conference.RoleIndividual,
	conference.RoleRepresentative,
	conference.RolePanelMember,
	conference.RoleObserver,
	conference.RoleVideoHearingsOfficer,
	conference.RoleStaffMember,
	conference.RoleJudicialOfficeHolder,
	conference.RoleQuickLinkParticipant,
	conference.RoleQuickLinkObserver,
	conference.RoleWinger,
}

func mapRole(s string) conference.Role {
	for _, r := range roles {
		if strings.EqualFold(string(r), s) {
			return r
		}
	}
	return conference.RoleNone
}

var conferenceStatuses = []conference.Status{
	conference.StatusNotStarted,
	conference.StatusInSession,
	conference.StatusPaused,
	conference.StatusSuspended,
	conference.StatusClosed,
}

func mapConferenceStatus(s string) conference.Status {
	for _, st := range conferenceStatuses {
		if strings.EqualFold(string(st), s) {
			return st
		}
	}
	return conference.StatusNotStarted
}

var participantStatuses = []conference.ParticipantStatus{
	conference.ParticipantStatusNotSignedIn,
	conference.ParticipantStatusJoining,
	conference.ParticipantStatusAvailable,
	conference.ParticipantStatusInHearing,
	conference.ParticipantStatusInConsultation,
	conference.ParticipantStatusDisconnected,
}

func mapParticipantStatus(s string) conference.ParticipantStatus {
	if s == "" {
		return conference.ParticipantStatusNotSignedIn
	}
	for _, st := range participantStatuses {
		if strings.EqualFold(string(st), s) {
			return st
		}
	}
	return conference.ParticipantStatusNone
}

var endpointStatuses = []conference.EndpointStatus{
	conference.EndpointStatusNotYetJoined,
	conference.EndpointStatusConnected,
	conference.EndpointStatusInConsultation,
	conference.EndpointStatusDisconnected,
}

func mapEndpointStatus(s string) conference.EndpointStatus {
	for _, st := range endpointStatuses {
		if strings.EqualFold(string(st), s) {
			return st
		}
	}
	return conference.EndpointStatusNotYetJoined
}

func mapRoomType(s string) conference.RoomType {
	switch {
	case strings.EqualFold(s, string(conference.RoomTypeWaitingRoom)):
		return conference.RoomTypeWaitingRoom
	case strings.EqualFold(s, string(conference.RoomTypeHearingRoom)):
		return conference.RoomTypeHearingRoom
	case strings.EqualFold(s, string(conference.RoomTypeConsultationRoom)):
		return conference.RoomTypeConsultationRoom
	}
	return conference.RoomTypeWaitingRoom
}
