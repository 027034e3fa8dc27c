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

// Package upstream talks to the external services that own the ground truth
// for conferences: the video platform and the booking service.
package upstream

import (
	"context"
	"errors"
)

var (
	ErrConferenceNotFound = errors.New("conference not found")
	ErrUserNotFound       = errors.New("user not found")
)

// Source provides the ground truth for a conference. It is only consulted
// on a cache miss or a forced refresh
type Source interface {
	FetchConferenceDetails(
		ctx context.Context,
		conferenceID string,
	) (*ConferenceDetails, *HearingDetails, error)
}

// VideoPlatform performs side effects on the external video platform
type VideoPlatform interface {
	JoinEndpointToConsultation(
		ctx context.Context,
		conferenceID string,
		endpointID string,
		roomLabel string,
		requestedBy string,
	) error
}

// ProfileSource provides the identity claims of a user
type ProfileSource interface {
	FetchUserProfile(ctx context.Context, username string) (*UserProfileDetails, error)
}
