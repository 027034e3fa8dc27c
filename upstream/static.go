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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	_ Source        = (*Client)(nil)
	_ VideoPlatform = (*Client)(nil)
	_ Source        = (*Static)(nil)
	_ VideoPlatform = (*Static)(nil)
	_ ProfileSource = (*Client)(nil)
	_ ProfileSource = (*Static)(nil)
)

// Static serves conferences from an in-memory fixture set, for development
// and replay. Endpoint joins are logged and otherwise ignored
type Static struct {
	conferences map[string]ConferenceDetails
	hearings    map[string]HearingDetails
	profiles    map[string]UserProfileDetails
	logger      *slog.Logger
	mu          sync.RWMutex
}

type staticFile struct {
	Conferences []ConferenceDetails  `yaml:"conferences"`
	Hearings    []HearingDetails     `yaml:"hearings"`
	Profiles    []UserProfileDetails `yaml:"profiles"`
}

func NewStatic(logger *slog.Logger) *Static {
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Static{
		conferences: make(map[string]ConferenceDetails),
		hearings:    make(map[string]HearingDetails),
		profiles:    make(map[string]UserProfileDetails),
		logger:      logger,
	}
}

// LoadStatic reads a YAML fixture file
func LoadStatic(path string, logger *slog.Logger) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixtures: %w", err)
	}
	return ParseStatic(data, logger)
}

func ParseStatic(data []byte, logger *slog.Logger) (*Static, error) {
	var f staticFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing fixtures: %w", err)
	}
	s := NewStatic(logger)
	for _, hd := range f.Hearings {
		s.hearings[hd.ID] = hd
	}
	for _, ud := range f.Profiles {
		s.profiles[strings.ToLower(ud.Username)] = ud
	}
	for _, cd := range f.Conferences {
		if cd.ID == "" {
			return nil, errors.New("parsing fixtures: conference without id")
		}
		if _, ok := s.conferences[cd.ID]; ok {
			return nil, fmt.Errorf("parsing fixtures: duplicate conference %s", cd.ID)
		}
		s.conferences[cd.ID] = cd
	}
	return s, nil
}

// Put adds or replaces a conference and, if hd is not nil, its hearing
func (s *Static) Put(cd ConferenceDetails, hd *HearingDetails) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conferences[cd.ID] = cd
	if hd != nil {
		s.hearings[hd.ID] = *hd
	}
}

// PutProfile adds or replaces a user profile
func (s *Static) PutProfile(ud UserProfileDetails) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[strings.ToLower(ud.Username)] = ud
}

// ConferenceIDs returns the ids of all fixture conferences, sorted
func (s *Static) ConferenceIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make([]string, 0, len(s.conferences))
	for id := range s.conferences {
		ret = append(ret, id)
	}
	slices.Sort(ret)
	return ret
}

func (s *Static) FetchConferenceDetails(
	ctx context.Context,
	conferenceID string,
) (*ConferenceDetails, *HearingDetails, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cd, ok := s.conferences[conferenceID]
	if !ok {
		return nil, nil, ErrConferenceNotFound
	}
	cd.Participants = slices.Clone(cd.Participants)
	cd.Endpoints = slices.Clone(cd.Endpoints)
	cd.TelephoneParticipants = slices.Clone(cd.TelephoneParticipants)
	cd.CivilianRooms = slices.Clone(cd.CivilianRooms)
	hd, ok := s.hearings[cd.HearingID]
	if !ok {
		return &cd, nil, nil
	}
	return &cd, &hd, nil
}

// FetchUserProfile matches usernames case-insensitively
func (s *Static) FetchUserProfile(
	ctx context.Context,
	username string,
) (*UserProfileDetails, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ud, ok := s.profiles[strings.ToLower(username)]
	if !ok {
		return nil, ErrUserNotFound
	}
	ud.Roles = slices.Clone(ud.Roles)
	return &ud, nil
}

func (s *Static) JoinEndpointToConsultation(
	ctx context.Context,
	conferenceID string,
	endpointID string,
	roomLabel string,
	requestedBy string,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	_, ok := s.conferences[conferenceID]
	s.mu.RUnlock()
	if !ok {
		return ErrConferenceNotFound
	}
	s.logger.Info(
		"joining endpoint to consultation",
		"component", "upstream",
		"conference_id", conferenceID,
		"endpoint_id", endpointID,
		"room", roomLabel,
		"requested_by", requestedBy,
	)
	return nil
}
