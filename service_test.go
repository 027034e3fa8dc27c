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

package courtroom

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/blinklabs-io/courtroom/callback"
	"github.com/blinklabs-io/courtroom/conference"
	"github.com/blinklabs-io/courtroom/event"
	"github.com/blinklabs-io/courtroom/notify"
	"github.com/blinklabs-io/courtroom/store/memory"
	"github.com/blinklabs-io/courtroom/upstream"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testSource() *upstream.Static {
	src := upstream.NewStatic(nil)
	src.Put(
		upstream.ConferenceDetails{
			ID:            "conf-1",
			HearingID:     "hearing-1",
			CaseName:      "Smith v Jones",
			CurrentStatus: "NotStarted",
			Participants: []upstream.ParticipantDetails{
				{
					ID:       "judge",
					Username: "judge@court.test",
					UserRole: "Judge",
				},
				{
					ID:       "ind",
					Username: "ind@example.test",
					UserRole: "Individual",
				},
			},
		},
		&upstream.HearingDetails{
			ID:               "hearing-1",
			HearingVenueName: "Taylor House",
		},
	)
	src.PutProfile(upstream.UserProfileDetails{
		Username: "Officer@Court.test",
		Roles:    []string{notify.ClaimVideoHearingsOfficer},
	})
	return src
}

func startService(t *testing.T, opts ...ConfigOptionFunc) *Service {
	t.Helper()
	src := testSource()
	st := memory.New()
	opts = append(
		[]ConfigOptionFunc{
			WithSource(src),
			WithProfileSource(src),
			WithVideoPlatform(src),
			WithStore(st),
			WithPrometheusRegistry(prometheus.NewRegistry()),
		},
		opts...,
	)
	svc, err := New(NewConfig(opts...))
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() {
		require.NoError(t, svc.Stop())
		require.NoError(t, st.Close())
	})
	return svc
}

func TestServiceHandlesCallback(t *testing.T) {
	svc := startService(t)
	_, officers := svc.EventBus().Subscribe(event.Topic(notify.GroupOfficers))

	err := svc.Handle(context.Background(), &callback.CallbackEvent{
		EventType:     callback.EventTypeJoined,
		ConferenceID:  "conf-1",
		ParticipantID: "ind",
		TimeStampUTC:  time.Now(),
	})
	require.NoError(t, err)

	conf, err := svc.Conference(context.Background(), "conf-1")
	require.NoError(t, err)
	assert.Equal(t, "Taylor House", conf.HearingVenueName)
	ind := conf.Participant("ind")
	require.NotNil(t, ind)
	assert.Equal(t, conference.ParticipantStatusAvailable, ind.Status)

	select {
	case evt := <-officers:
		assert.Equal(t, notify.MessageParticipantStatus, evt.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no officer notification")
	}
}

func TestServiceUnknownConference(t *testing.T) {
	svc := startService(t)
	_, err := svc.Conference(context.Background(), "conf-9")
	require.ErrorIs(t, err, upstream.ErrConferenceNotFound)
}

func TestServiceCaches(t *testing.T) {
	svc := startService(t, WithTestCallTTL(time.Minute))
	caches := svc.Caches()
	require.NotNil(t, caches)

	ctx := context.Background()
	require.NoError(t, caches.Layouts.Write(ctx, &conference.Layout{
		ConferenceID: "conf-1",
		Layout:       conference.HearingLayoutOnePlus7,
	}))
	layout, ok := caches.Layouts.Read(ctx, "conf-1")
	require.True(t, ok)
	assert.Equal(t, conference.HearingLayoutOnePlus7, layout.Layout)

	err := svc.Handle(ctx, &callback.CallbackEvent{
		EventType:     callback.EventTypeSelfTestFailed,
		ParticipantID: "ind",
		Reason:        "camera",
	})
	require.NoError(t, err)
	result, ok := caches.TestCalls.Read(ctx, "ind")
	require.True(t, ok)
	assert.False(t, result.Passed)
}

func TestServiceSetLayoutNotifiesHosts(t *testing.T) {
	svc := startService(t)
	ctx := context.Background()
	_, hosts := svc.EventBus().Subscribe(event.Topic(notify.HostGroup("conf-1")))

	_, ok := svc.Layout(ctx, "conf-1")
	assert.False(t, ok)
	layout, err := svc.SetLayout(ctx, "conf-1", conference.HearingLayoutTwoPlus21, "Judge@Court.test")
	require.NoError(t, err)
	assert.Equal(t, "judge@court.test", layout.ChangedBy)
	got, ok := svc.Layout(ctx, "conf-1")
	require.True(t, ok)
	assert.Equal(t, conference.HearingLayoutTwoPlus21, got.Layout)

	select {
	case evt := <-hosts:
		assert.Equal(t, notify.MessageHearingLayoutChanged, evt.Type)
		payload, ok := evt.Payload.(notify.HearingLayoutChangedPayload)
		require.True(t, ok)
		assert.Equal(t, conference.HearingLayoutTwoPlus21, payload.Layout)
	case <-time.After(2 * time.Second):
		t.Fatal("no host notification")
	}

	_, err = svc.SetLayout(ctx, "conf-1", conference.HearingLayoutDynamic, "ind@example.test")
	require.ErrorIs(t, err, conference.ErrNotHost)
	_, err = svc.SetLayout(ctx, "conf-1", "Mosaic", "")
	require.ErrorIs(t, err, conference.ErrInvalidLayout)
	_, err = svc.SetLayout(ctx, "conf-9", conference.HearingLayoutDynamic, "")
	require.ErrorIs(t, err, upstream.ErrConferenceNotFound)
	got, ok = svc.Layout(ctx, "conf-1")
	require.True(t, ok)
	assert.Equal(t, conference.HearingLayoutTwoPlus21, got.Layout, "rejected changes leave the layout")
}

func TestServiceUserGroups(t *testing.T) {
	svc := startService(t)
	ctx := context.Background()
	groups, err := svc.UserGroups(ctx, "officer@court.test")
	require.NoError(t, err)
	assert.Equal(t, []string{"officer@court.test", notify.GroupOfficers}, groups)
	profile, ok := svc.Caches().UserProfiles.Read(ctx, "officer@court.test")
	require.True(t, ok, "claims are cached")
	assert.Equal(t, "Officer@Court.test", profile.Username)

	_, err = svc.UserGroups(ctx, "nobody@court.test")
	require.ErrorIs(t, err, upstream.ErrUserNotFound)
}

func TestServiceRespondToConsultation(t *testing.T) {
	svc := startService(t)
	ctx := context.Background()
	inv := conference.NewInvitation("conf-1", "JudgeConsultationRoom1", "judge", "ind")
	require.NoError(t, svc.Caches().Invitations.Write(ctx, inv))
	_, judge := svc.EventBus().Subscribe(event.Topic(notify.UserGroup("judge@court.test")))

	require.NoError(t, svc.RespondToConsultation(ctx, "conf-1", inv.ID, "ind", conference.AnswerAccepted))
	_, ok := svc.Caches().Invitations.Read(ctx, inv.ID)
	assert.False(t, ok)
	select {
	case evt := <-judge:
		assert.Equal(t, notify.MessageConsultationAnswered, evt.Type)
		payload, ok := evt.Payload.(notify.ConsultationAnsweredPayload)
		require.True(t, ok)
		assert.True(t, payload.AllAccepted)
	case <-time.After(2 * time.Second):
		t.Fatal("no answer notification")
	}

	err := svc.RespondToConsultation(ctx, "conf-1", inv.ID, "ind", "Maybe")
	require.ErrorIs(t, err, callback.ErrInvalidAnswer)
}

func TestServiceIngress(t *testing.T) {
	svc := startService(t, WithListenAddress("127.0.0.1:0"))
	addr := svc.IngressAddr()
	require.NotEmpty(t, addr)

	resp, err := http.Post(
		"http://"+addr+"/callback",
		"application/json",
		strings.NewReader(
			`{"event_type":"Start","conference_id":"conf-1","time_stamp_utc":"2025-06-02T10:00:00Z"}`,
		),
	)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	conf, err := svc.Conference(context.Background(), "conf-1")
	require.NoError(t, err)
	assert.Equal(t, conference.StatusInSession, conf.CurrentStatus)
	http.DefaultClient.CloseIdleConnections()
}

func TestServiceStartOnce(t *testing.T) {
	svc := startService(t)
	require.Error(t, svc.Start(context.Background()))
}

func TestServiceStopBeforeStart(t *testing.T) {
	svc, err := New(NewConfig(WithSource(testSource())))
	require.NoError(t, err)
	require.Error(t, svc.Handle(context.Background(), &callback.CallbackEvent{
		EventType:    callback.EventTypeStart,
		ConferenceID: "conf-1",
	}))
	require.NoError(t, svc.Stop())
	require.NoError(t, svc.Stop())
}

func TestServiceRunReturnsOnStop(t *testing.T) {
	src := testSource()
	svc, err := New(NewConfig(WithSource(src)))
	require.NoError(t, err)
	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Run(context.Background())
	}()
	require.Eventually(t, func() bool {
		return svc.Caches() != nil
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, svc.Stop())
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}
