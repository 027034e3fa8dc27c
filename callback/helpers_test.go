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

package callback_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/blinklabs-io/courtroom/cache"
	"github.com/blinklabs-io/courtroom/callback"
	"github.com/blinklabs-io/courtroom/conference"
	"github.com/blinklabs-io/courtroom/notify"
	"github.com/blinklabs-io/courtroom/store/memory"
	"github.com/blinklabs-io/courtroom/upstream"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testConferenceID = "conf-1"

func testDetails(id string) *upstream.ConferenceDetails {
	return &upstream.ConferenceDetails{
		ID:            id,
		HearingID:     "hearing-" + id,
		CaseName:      "Smith v Jones",
		CaseNumber:    "CN-001",
		CurrentStatus: "NotStarted",
		Participants: []upstream.ParticipantDetails{
			{
				ID:          "judge",
				Username:    "judge@court.test",
				DisplayName: "Judge J",
				UserRole:    "Judge",
			},
			{
				ID:          "ind",
				Username:    "ind@example.test",
				DisplayName: "Individual I",
				UserRole:    "Individual",
			},
			{
				ID:       "staff",
				Username: "staff@court.test",
				UserRole: "StaffMember",
			},
		},
		Endpoints: []upstream.EndpointDetails{
			{
				ID:                      "ep-1",
				DisplayName:             "Endpoint 1",
				SipAddress:              "ep1@sip.test",
				DefenceAdvocateUsername: "Rep@Example.test",
			},
		},
	}
}

// fakeSource serves conference details from memory and counts fetches
type fakeSource struct {
	details map[string]*upstream.ConferenceDetails
	calls   int
	mu      sync.Mutex
}

func newFakeSource(ids ...string) *fakeSource {
	s := &fakeSource{details: make(map[string]*upstream.ConferenceDetails)}
	for _, id := range ids {
		s.details[id] = testDetails(id)
	}
	return s
}

func (s *fakeSource) FetchConferenceDetails(
	_ context.Context,
	conferenceID string,
) (*upstream.ConferenceDetails, *upstream.HearingDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	cd, ok := s.details[conferenceID]
	if !ok {
		return nil, nil, upstream.ErrConferenceNotFound
	}
	ret := *cd
	hd := &upstream.HearingDetails{
		ID:               cd.HearingID,
		HearingVenueName: "Taylor House",
	}
	return &ret, hd, nil
}

func (s *fakeSource) update(conferenceID string, fn func(*upstream.ConferenceDetails)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.details[conferenceID])
}

func (s *fakeSource) fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingSender struct {
	envs []notify.Envelope
	mu   sync.Mutex
}

func (r *recordingSender) Send(_ context.Context, envs ...notify.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs = append(r.envs, envs...)
	return nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.envs)
}

func (r *recordingSender) byType(msgType string) []notify.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ret []notify.Envelope
	for _, e := range r.envs {
		if e.Type == msgType {
			ret = append(ret, e)
		}
	}
	return ret
}

func groupsOf(envs []notify.Envelope) []string {
	ret := make([]string, 0, len(envs))
	for _, e := range envs {
		ret = append(ret, e.Group)
	}
	return ret
}

type joinCall struct {
	conferenceID string
	endpointID   string
	roomLabel    string
	requestedBy  string
}

type fakePlatform struct {
	calls []joinCall
	err   error
	mu    sync.Mutex
}

func (p *fakePlatform) JoinEndpointToConsultation(
	_ context.Context,
	conferenceID string,
	endpointID string,
	roomLabel string,
	requestedBy string,
) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.calls = append(p.calls, joinCall{
		conferenceID: conferenceID,
		endpointID:   endpointID,
		roomLabel:    roomLabel,
		requestedBy:  requestedBy,
	})
	return nil
}

type harness struct {
	conferences *cache.ConferenceCache
	invitations *cache.InvitationCache
	roomLocks   *cache.RoomLockCache
	testCalls   *cache.TestCallCache
	source      *fakeSource
	sender      *recordingSender
	platform    *fakePlatform
	dispatcher  *callback.Dispatcher
}

func newHarness(t *testing.T, opts ...callback.DispatcherOption) *harness {
	t.Helper()
	st := memory.New()
	cfg := cache.Config{Store: st}
	h := &harness{
		conferences: cache.NewConferenceCache(cfg),
		invitations: cache.NewInvitationCache(cfg),
		roomLocks:   cache.NewRoomLockCache(cfg),
		testCalls:   cache.NewTestCallCache(cfg),
		source:      newFakeSource(testConferenceID, "conf-2"),
		sender:      &recordingSender{},
		platform:    &fakePlatform{},
	}
	reg, err := callback.NewDefaultRegistry(callback.Deps{
		Invitations:   h.invitations,
		RoomLocks:     h.roomLocks,
		TestCalls:     h.testCalls,
		VideoPlatform: h.platform,
	})
	require.NoError(t, err)
	h.dispatcher = callback.NewDispatcher(reg, h.conferences, h.source, h.sender, opts...)
	t.Cleanup(func() {
		h.dispatcher.Close()
		_ = st.Close()
	})
	return h
}

func (h *harness) handle(evt callback.CallbackEvent) error {
	if evt.ConferenceID == "" {
		evt.ConferenceID = testConferenceID
	}
	return h.dispatcher.Handle(context.Background(), &evt)
}

func (h *harness) conference(t *testing.T) *conference.Conference {
	t.Helper()
	conf, ok := h.conferences.Get(context.Background(), testConferenceID)
	require.True(t, ok, "conference not cached")
	return conf
}
