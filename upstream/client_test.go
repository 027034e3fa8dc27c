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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(
	t *testing.T,
	handler http.HandlerFunc,
) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestFetchConferenceDetails(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		// Use t.Errorf (not require) because httptest handlers
		// run in a separate goroutine
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token")
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/conferences/conf-1":
			_ = json.NewEncoder(w).Encode(ConferenceDetails{
				ID:        "conf-1",
				HearingID: "hearing-1",
				CaseName:  "Smith v Jones",
				Participants: []ParticipantDetails{
					{ID: "judge", Username: "judge@court.test", UserRole: "Judge"},
				},
			})
		case "/api/hearings/hearing-1":
			_ = json.NewEncoder(w).Encode(HearingDetails{
				ID:               "hearing-1",
				HearingVenueName: "Taylor House",
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	c := NewClient(server.URL+"/api/", WithToken("secret"))
	cd, hd, err := c.FetchConferenceDetails(context.Background(), "conf-1")
	require.NoError(t, err)
	assert.Equal(t, "Smith v Jones", cd.CaseName)
	require.Len(t, cd.Participants, 1)
	require.NotNil(t, hd)
	assert.Equal(t, "Taylor House", hd.HearingVenueName)
}

func TestFetchConferenceDetailsMissingHearing(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/conferences/conf-1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(ConferenceDetails{
			ID:        "conf-1",
			HearingID: "gone",
		})
	})
	cd, hd, err := NewClient(server.URL).FetchConferenceDetails(
		context.Background(),
		"conf-1",
	)
	require.NoError(t, err)
	assert.Equal(t, "conf-1", cd.ID)
	assert.Nil(t, hd)
}

func TestFetchConferenceDetailsNotFound(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, _, err := NewClient(server.URL).FetchConferenceDetails(
		context.Background(),
		"conf-1",
	)
	require.ErrorIs(t, err, ErrConferenceNotFound)
}

func TestFetchConferenceDetailsServerError(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream timeout"))
	})
	_, _, err := NewClient(server.URL).FetchConferenceDetails(
		context.Background(),
		"conf-1",
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 502: upstream timeout")
}

func TestFetchConferenceDetailsCancelled(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewClient(server.URL).FetchConferenceDetails(ctx, "conf-1")
	require.ErrorIs(t, err, context.Canceled)
}

func TestJoinEndpointToConsultation(t *testing.T) {
	var got joinEndpointRequest
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/conferences/conf-1/consultations/endpoint" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected json content type")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	})
	err := NewClient(server.URL).JoinEndpointToConsultation(
		context.Background(),
		"conf-1",
		"ep-1",
		"ConsultationRoom1",
		"judge",
	)
	require.NoError(t, err)
	assert.Equal(t, joinEndpointRequest{
		EndpointID:  "ep-1",
		RoomLabel:   "ConsultationRoom1",
		RequestedBy: "judge",
	}, got)
}

func TestFetchUserProfile(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/officer@court.test/profile":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(UserProfileDetails{
				Username:    "officer@court.test",
				DisplayName: "Officer O",
				Roles:       []string{"VideoHearingsOfficer"},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	c := NewClient(server.URL)
	ud, err := c.FetchUserProfile(context.Background(), "officer@court.test")
	require.NoError(t, err)
	assert.Equal(t, "Officer O", ud.DisplayName)
	profile, err := MapUserProfile(ud)
	require.NoError(t, err)
	assert.True(t, profile.HasRole("VideoHearingsOfficer"))

	_, err = c.FetchUserProfile(context.Background(), "nobody@court.test")
	require.ErrorIs(t, err, ErrUserNotFound)
	assert.NotErrorIs(t, err, ErrConferenceNotFound)
}
