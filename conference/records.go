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
	"errors"
	"slices"
	"time"
)

var (
	ErrInvalidLayout = errors.New("invalid hearing layout")
	ErrNotHost       = errors.New("user is not a host of the conference")
)

type HearingLayout string

const (
	HearingLayoutDynamic      HearingLayout = "Dynamic"
	HearingLayoutOnePlus7     HearingLayout = "OnePlus7"
	HearingLayoutTwoPlus21    HearingLayout = "TwoPlus21"
	HearingLayoutNineEqual    HearingLayout = "NineEqual"
	HearingLayoutSixteenEqual HearingLayout = "SixteenEqual"
)

func (l HearingLayout) Valid() bool {
	switch l {
	case HearingLayoutDynamic,
		HearingLayoutOnePlus7,
		HearingLayoutTwoPlus21,
		HearingLayoutNineEqual,
		HearingLayoutSixteenEqual:
		return true
	}
	return false
}

// Layout is the video layout a host picked for the hearing room
type Layout struct {
	UpdatedAt    time.Time     `json:"updated_at"`
	ConferenceID string        `json:"conference_id"`
	Layout       HearingLayout `json:"layout"`
	ChangedBy    string        `json:"changed_by"`
}

// UserProfile is a snapshot of a user's identity claims
type UserProfile struct {
	Username    string   `json:"username"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	DisplayName string   `json:"display_name"`
	Roles       []string `json:"roles"`
}

func (u *UserProfile) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

// TestCallResult records the outcome of a participant's self test
type TestCallResult struct {
	CompletedAt time.Time `json:"completed_at"`
	Reason      string    `json:"reason,omitempty"`
	Score       string    `json:"score"`
	Passed      bool      `json:"passed"`
}
