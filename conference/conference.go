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

// Package conference holds the live-state aggregate for a hearing and the
// entities it owns.
package conference

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

type Status string

const (
	StatusNotStarted Status = "NotStarted"
	StatusInSession  Status = "InSession"
	StatusPaused     Status = "Paused"
	StatusSuspended  Status = "Suspended"
	StatusClosed     Status = "Closed"
)

// RoomType identifies the fixed virtual rooms of a hearing
type RoomType string

const (
	RoomTypeNone             RoomType = ""
	RoomTypeWaitingRoom      RoomType = "WaitingRoom"
	RoomTypeHearingRoom      RoomType = "HearingRoom"
	RoomTypeConsultationRoom RoomType = "ConsultationRoom"
)

// Room is a named sub-room, used for civilian and judicial consultations.
// AdHoc rooms were opened by a transfer rather than sent by upstream
type Room struct {
	ID             string   `json:"id"`
	Label          string   `json:"label"`
	ParticipantIDs []string `json:"participant_ids,omitempty"`
	Locked         bool     `json:"locked"`
	AdHoc          bool     `json:"ad_hoc,omitempty"`
}

// Conference is the cached live-state aggregate of one scheduled hearing
type Conference struct {
	ScheduledDateTime        time.Time              `json:"scheduled_date_time"`
	LastStatusEventTime      time.Time              `json:"last_status_event_time"`
	ID                       string                 `json:"id"`
	HearingID                string                 `json:"hearing_id"`
	CaseName                 string                 `json:"case_name"`
	CaseNumber               string                 `json:"case_number"`
	HearingVenueName         string                 `json:"hearing_venue_name"`
	AllocatedOfficerUsername string                 `json:"allocated_officer_username,omitempty"`
	CurrentStatus            Status                 `json:"current_status"`
	Participants             []Participant          `json:"participants"`
	Endpoints                []Endpoint             `json:"endpoints"`
	TelephoneParticipants    []TelephoneParticipant `json:"telephone_participants"`
	CivilianRooms            []Room                 `json:"civilian_rooms"`
	TelephoneDisconnects     []TelephoneDisconnect  `json:"telephone_disconnects,omitempty"`
}

// Validate checks that every participant, endpoint and telephone id is
// unique within the conference
func (c *Conference) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("conference has no id")
	}
	seen := make(map[string]struct{})
	check := func(kind, id string) error {
		if id == "" {
			return fmt.Errorf("conference %s: %s with empty id", c.ID, kind)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("conference %s: duplicate id %s", c.ID, id)
		}
		seen[id] = struct{}{}
		return nil
	}
	for _, p := range c.Participants {
		if err := check("participant", p.ID); err != nil {
			return err
		}
	}
	for _, e := range c.Endpoints {
		if err := check("endpoint", e.ID); err != nil {
			return err
		}
	}
	for _, tp := range c.TelephoneParticipants {
		if err := check("telephone participant", tp.ID); err != nil {
			return err
		}
	}
	return nil
}

// Participant returns a pointer into the participant list, or nil
func (c *Conference) Participant(id string) *Participant {
	for i := range c.Participants {
		if c.Participants[i].ID == id {
			return &c.Participants[i]
		}
	}
	return nil
}

// ParticipantByUsername matches usernames case-insensitively
func (c *Conference) ParticipantByUsername(username string) *Participant {
	for i := range c.Participants {
		if strings.EqualFold(c.Participants[i].Username, username) {
			return &c.Participants[i]
		}
	}
	return nil
}

func (c *Conference) Endpoint(id string) *Endpoint {
	for i := range c.Endpoints {
		if c.Endpoints[i].ID == id {
			return &c.Endpoints[i]
		}
	}
	return nil
}

func (c *Conference) TelephoneParticipant(id string) *TelephoneParticipant {
	for i := range c.TelephoneParticipants {
		if c.TelephoneParticipants[i].ID == id {
			return &c.TelephoneParticipants[i]
		}
	}
	return nil
}

func (c *Conference) TelephoneByNumber(phoneNumber string) *TelephoneParticipant {
	for i := range c.TelephoneParticipants {
		if c.TelephoneParticipants[i].PhoneNumber == phoneNumber {
			return &c.TelephoneParticipants[i]
		}
	}
	return nil
}

// AddTelephoneParticipant appends the telephone participant. It returns
// false if the id is already used by any member of the conference
func (c *Conference) AddTelephoneParticipant(tp TelephoneParticipant) bool {
	if c.HasMember(tp.ID) {
		return false
	}
	c.TelephoneParticipants = append(c.TelephoneParticipants, tp)
	return true
}

// RemoveTelephoneParticipant removes by id and reports whether it was present
func (c *Conference) RemoveTelephoneParticipant(id string) bool {
	before := len(c.TelephoneParticipants)
	c.TelephoneParticipants = slices.DeleteFunc(
		c.TelephoneParticipants,
		func(tp TelephoneParticipant) bool { return tp.ID == id },
	)
	return len(c.TelephoneParticipants) != before
}

// RecordTelephoneDisconnect remembers that tp hung up at the given time,
// replacing any older record for the same call. Records more than keep
// older than at are dropped
func (c *Conference) RecordTelephoneDisconnect(
	tp TelephoneParticipant,
	at time.Time,
	keep time.Duration,
) {
	cutoff := at.Add(-keep)
	c.TelephoneDisconnects = slices.DeleteFunc(
		c.TelephoneDisconnects,
		func(d TelephoneDisconnect) bool {
			return d.ID == tp.ID ||
				(tp.PhoneNumber != "" && d.PhoneNumber == tp.PhoneNumber) ||
				d.At.Before(cutoff)
		},
	)
	c.TelephoneDisconnects = append(c.TelephoneDisconnects, TelephoneDisconnect{
		At:          at,
		ID:          tp.ID,
		PhoneNumber: tp.PhoneNumber,
	})
}

// TelephoneDisconnect returns the disconnect record matching the id or,
// failing that, the phone number
func (c *Conference) TelephoneDisconnect(id string, phoneNumber string) *TelephoneDisconnect {
	for i := range c.TelephoneDisconnects {
		if id != "" && c.TelephoneDisconnects[i].ID == id {
			return &c.TelephoneDisconnects[i]
		}
	}
	for i := range c.TelephoneDisconnects {
		if phoneNumber != "" && c.TelephoneDisconnects[i].PhoneNumber == phoneNumber {
			return &c.TelephoneDisconnects[i]
		}
	}
	return nil
}

// HasMember reports whether any participant, endpoint or telephone
// participant uses the id
func (c *Conference) HasMember(id string) bool {
	return c.Participant(id) != nil ||
		c.Endpoint(id) != nil ||
		c.TelephoneParticipant(id) != nil
}

// Judge returns the first participant with the judge role
func (c *Conference) Judge() *Participant {
	for i := range c.Participants {
		if c.Participants[i].Role == RoleJudge {
			return &c.Participants[i]
		}
	}
	return nil
}

// Hosts returns the participants able to host the hearing
func (c *Conference) Hosts() []Participant {
	var ret []Participant
	for _, p := range c.Participants {
		if p.IsHost() {
			ret = append(ret, p)
		}
	}
	return ret
}

// Room returns the civilian room with the given label, or nil
func (c *Conference) Room(label string) *Room {
	for i := range c.CivilianRooms {
		if c.CivilianRooms[i].Label == label {
			return &c.CivilianRooms[i]
		}
	}
	return nil
}

// RemoveFromRooms takes the member out of every civilian room. An ad hoc,
// unlocked room that this removal leaves empty is dropped; rooms from
// upstream stay even when empty
func (c *Conference) RemoveFromRooms(memberID string) {
	emptied := make(map[string]struct{})
	for i := range c.CivilianRooms {
		room := &c.CivilianRooms[i]
		before := len(room.ParticipantIDs)
		room.ParticipantIDs = slices.DeleteFunc(
			room.ParticipantIDs,
			func(id string) bool { return id == memberID },
		)
		if before > 0 && len(room.ParticipantIDs) == 0 {
			emptied[room.ID] = struct{}{}
		}
	}
	c.CivilianRooms = slices.DeleteFunc(
		c.CivilianRooms,
		func(r Room) bool {
			_, ok := emptied[r.ID]
			return ok && r.AdHoc && !r.Locked
		},
	)
}

// MoveToRoom places the member in the named room, creating it if needed,
// and returns the room. The member is removed from any other room first
func (c *Conference) MoveToRoom(memberID string, label string) *Room {
	c.RemoveFromRooms(memberID)
	room := c.Room(label)
	if room == nil {
		c.CivilianRooms = append(c.CivilianRooms, Room{
			ID:    label,
			Label: label,
			AdHoc: true,
		})
		room = &c.CivilianRooms[len(c.CivilianRooms)-1]
	}
	room.ParticipantIDs = append(room.ParticipantIDs, memberID)
	return room
}
