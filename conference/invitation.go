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

import (
	"time"

	"github.com/google/uuid"
)

type Answer string

const (
	AnswerPending  Answer = "Pending"
	AnswerAccepted Answer = "Accepted"
	AnswerRejected Answer = "Rejected"
	AnswerFailed   Answer = "Failed"
)

// Invitation is a pending consultation request. It lives only as a short
// TTL cache entry; a missing invitation means it timed out
type Invitation struct {
	CreatedAt    time.Time         `json:"created_at"`
	Answers      map[string]Answer `json:"answers"`
	ID           string            `json:"id"`
	ConferenceID string            `json:"conference_id"`
	RoomLabel    string            `json:"room_label"`
	RequestedBy  string            `json:"requested_by"`
	InvitedID    string            `json:"invited_id"`
}

// NewInvitation creates an invitation with a fresh id and every invitee
// marked pending
func NewInvitation(
	conferenceID string,
	roomLabel string,
	requestedBy string,
	invitees ...string,
) *Invitation {
	inv := &Invitation{
		ID:           uuid.New().String(),
		ConferenceID: conferenceID,
		RoomLabel:    roomLabel,
		RequestedBy:  requestedBy,
		CreatedAt:    time.Now().UTC(),
		Answers:      make(map[string]Answer, len(invitees)),
	}
	if len(invitees) > 0 {
		inv.InvitedID = invitees[0]
	}
	for _, id := range invitees {
		inv.Answers[id] = AnswerPending
	}
	return inv
}

// Answer returns the recorded answer, or AnswerPending for unknown invitees
func (i *Invitation) Answer(id string) Answer {
	if a, ok := i.Answers[id]; ok {
		return a
	}
	return AnswerPending
}

func (i *Invitation) SetAnswer(id string, answer Answer) {
	if i.Answers == nil {
		i.Answers = make(map[string]Answer)
	}
	i.Answers[id] = answer
}

func (i *Invitation) AllAccepted() bool {
	if len(i.Answers) == 0 {
		return false
	}
	for _, a := range i.Answers {
		if a != AnswerAccepted {
			return false
		}
	}
	return true
}

// Pending reports whether any invitee has not answered yet
func (i *Invitation) Pending() bool {
	for _, a := range i.Answers {
		if a == AnswerPending {
			return true
		}
	}
	return false
}

// Complete reports whether the invitation needs no more answers: everyone
// answered, or someone declined
func (i *Invitation) Complete() bool {
	return !i.Pending() || i.AnyRejected()
}

// Valid reports whether a is an answer an invitee can give
func (a Answer) Valid() bool {
	return a == AnswerAccepted || a == AnswerRejected || a == AnswerFailed
}

// AnyRejected reports whether any invitee rejected or failed to join
func (i *Invitation) AnyRejected() bool {
	for _, a := range i.Answers {
		if a == AnswerRejected || a == AnswerFailed {
			return true
		}
	}
	return false
}
