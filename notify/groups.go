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

// Package notify addresses typed messages to notification groups and
// delivers them through the event bus.
package notify

import (
	"strings"

	"github.com/blinklabs-io/courtroom/conference"
)

const (
	GroupOfficers     = "VhOfficers"
	GroupStaffMembers = "StaffMembers"
)

// Role claims that put a user in a fixed role group
const (
	ClaimVideoHearingsOfficer = "VideoHearingsOfficer"
	ClaimStaffMember          = "StaffMember"
)

// UserGroup is the 1:1 group of a user. Usernames compare
// case-insensitively so the group key is lower-cased
func UserGroup(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// HostGroup is the group of users hosting a conference
func HostGroup(conferenceID string) string {
	return conferenceID + "_Hosts"
}

// UserGroups returns every group a user receives messages on: their own
// group plus the role groups their claims grant
func UserGroups(profile *conference.UserProfile) []string {
	groups := []string{UserGroup(profile.Username)}
	if profile.HasRole(ClaimVideoHearingsOfficer) {
		groups = append(groups, GroupOfficers)
	}
	if profile.HasRole(ClaimStaffMember) {
		groups = append(groups, GroupStaffMembers)
	}
	return groups
}
