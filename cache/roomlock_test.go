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

package cache_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/courtroom/cache"
	"github.com/blinklabs-io/courtroom/conference"
	"github.com/blinklabs-io/courtroom/store"
)

func TestAcquireLockTwice(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	locks := cache.NewRoomLockCache(cache.Config{Store: s})

	held, err := locks.AcquireLock(ctx, "conf-1_JudgeJOHConsultationRoom1", 0)
	require.NoError(t, err)
	assert.False(t, held)
	held, err = locks.AcquireLock(ctx, "conf-1_JudgeJOHConsultationRoom1", 0)
	require.NoError(t, err)
	assert.True(t, held)

	require.NoError(t, locks.ReleaseLock(ctx, "conf-1_JudgeJOHConsultationRoom1"))
	held, err = locks.AcquireLock(ctx, "conf-1_JudgeJOHConsultationRoom1", 0)
	require.NoError(t, err)
	assert.False(t, held)
}

func TestLockExpires(t *testing.T) {
	s, clk := newTestStore()
	ctx := context.Background()
	locks := cache.NewRoomLockCache(cache.Config{Store: s})
	held, err := locks.AcquireLock(ctx, "room", 5*time.Second)
	require.NoError(t, err)
	require.False(t, held)
	clk.Advance(6 * time.Second)
	assert.False(t, locks.IsLocked(ctx, "room"))
	held, err = locks.AcquireLock(ctx, "room", 5*time.Second)
	require.NoError(t, err)
	assert.False(t, held)
}

// readBarrier holds the first n reads until all n have been served, so
// concurrent callers all read before any of them writes
type readBarrier struct {
	store.Store
	reads   atomic.Int32
	n       int32
	arrived sync.WaitGroup
}

func newReadBarrier(s store.Store, n int) *readBarrier {
	b := &readBarrier{Store: s, n: int32(n)}
	b.arrived.Add(n)
	return b
}

func (b *readBarrier) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.Store.Get(ctx, key)
	if b.reads.Add(1) <= b.n {
		b.arrived.Done()
		b.arrived.Wait()
	}
	return data, err
}

// Two acquirers that both observe the lock as absent, as happens right at
// TTL expiry, both come away believing they own it
func TestLockBoundaryRaceBothOwn(t *testing.T) {
	s, clk := newTestStore()
	ctx := context.Background()
	seed := cache.NewRoomLockCache(cache.Config{Store: s})
	_, err := seed.AcquireLock(ctx, "room", 5*time.Second)
	require.NoError(t, err)
	clk.Advance(5 * time.Second)

	barrier := newReadBarrier(s, 2)
	first := cache.NewRoomLockCache(cache.Config{Store: barrier})
	second := cache.NewRoomLockCache(cache.Config{Store: barrier})
	var wg sync.WaitGroup
	held := make([]bool, 2)
	errs := make([]error, 2)
	for i, locks := range []*cache.RoomLockCache{first, second} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			held[i], errs[i] = locks.AcquireLock(ctx, "room", 5*time.Second)
		}()
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.False(t, held[0], "first acquirer believes it owns the lock")
	assert.False(t, held[1], "second acquirer believes it owns the lock")
	assert.True(t, seed.IsLocked(ctx, "room"))
}

func TestLockKeepsOwnerTTL(t *testing.T) {
	s, clk := newTestStore()
	ctx := context.Background()
	locks := cache.NewRoomLockCache(cache.Config{Store: s})
	held, err := locks.AcquireLock(ctx, "room", 2*time.Second)
	require.NoError(t, err)
	require.False(t, held)

	// A competing acquirer backs off without extending the lock
	clk.Advance(time.Second)
	held, err = locks.AcquireLock(ctx, "room", 2*time.Second)
	require.NoError(t, err)
	require.True(t, held)
	clk.Advance(1500 * time.Millisecond)
	assert.False(t, locks.IsLocked(ctx, "room"))

	// IsLocked slides by the owner's TTL, not the cache default
	_, err = locks.AcquireLock(ctx, "room", 2*time.Second)
	require.NoError(t, err)
	clk.Advance(1500 * time.Millisecond)
	require.True(t, locks.IsLocked(ctx, "room"))
	clk.Advance(1500 * time.Millisecond)
	require.True(t, locks.IsLocked(ctx, "room"))
	clk.Advance(2500 * time.Millisecond)
	assert.False(t, locks.IsLocked(ctx, "room"))
	clk.Advance(10 * time.Second)
	assert.False(t, locks.IsLocked(ctx, "room"))
}

func TestSetLocked(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	locks := cache.NewRoomLockCache(cache.Config{Store: s})
	assert.False(t, locks.IsLocked(ctx, "room"))
	require.NoError(t, locks.SetLocked(ctx, "room", true))
	assert.True(t, locks.IsLocked(ctx, "room"))
	require.NoError(t, locks.SetLocked(ctx, "room", false))
	assert.False(t, locks.IsLocked(ctx, "room"))
	_, err := s.Get(ctx, cache.RoomLockPrefix+"room")
	require.NoError(t, err)
}

func TestInvitationRoundTripAndTimeout(t *testing.T) {
	s, clk := newTestStore()
	ctx := context.Background()
	invs := cache.NewInvitationCache(cache.Config{Store: s})
	inv := conference.NewInvitation("conf-1", "JudgeJOHConsultationRoom1", "judge", "ind")
	require.NoError(t, invs.Write(ctx, inv))

	got, ok := invs.Read(ctx, inv.ID)
	require.True(t, ok)
	assert.Equal(t, inv.Answers, got.Answers)
	assert.Equal(t, inv.RoomLabel, got.RoomLabel)
	assert.True(t, inv.CreatedAt.Equal(got.CreatedAt))

	got.SetAnswer("ind", conference.AnswerAccepted)
	require.NoError(t, invs.Write(ctx, got))
	got, ok = invs.Read(ctx, inv.ID)
	require.True(t, ok)
	assert.True(t, got.AllAccepted())

	clk.Advance(cache.DefaultInvitationTTL + time.Second)
	_, ok = invs.Read(ctx, inv.ID)
	assert.False(t, ok)
}

func TestSupplementalCaches(t *testing.T) {
	s, clk := newTestStore()
	ctx := context.Background()
	cfg := cache.Config{Store: s}

	layouts := cache.NewLayoutCache(cfg)
	layout := &conference.Layout{
		ConferenceID: "conf-1",
		Layout:       conference.HearingLayoutOnePlus7,
		ChangedBy:    "judge",
		UpdatedAt:    time.Date(2025, 6, 2, 10, 5, 0, 0, time.UTC),
	}
	require.NoError(t, layouts.Write(ctx, layout))
	gotLayout, ok := layouts.Read(ctx, "conf-1")
	require.True(t, ok)
	assert.Equal(t, layout, gotLayout)
	_, err := s.Get(ctx, "layout_conf-1")
	require.NoError(t, err)

	profiles := cache.NewUserProfileCache(cfg)
	profile := &conference.UserProfile{Username: "judge@court.test", Roles: []string{"Judge"}}
	require.NoError(t, profiles.Write(ctx, "judge@court.test", profile))
	gotProfile, ok := profiles.Read(ctx, "judge@court.test")
	require.True(t, ok)
	assert.True(t, gotProfile.HasRole("Judge"))
	_, err = s.Get(ctx, "userclaims_judge@court.test")
	require.NoError(t, err)

	tests := cache.NewTestCallCache(cfg)
	result := &conference.TestCallResult{Score: "Bad", Reason: "camera"}
	require.NoError(t, tests.Write(ctx, "ind", result))
	gotResult, ok := tests.Read(ctx, "ind")
	require.True(t, ok)
	assert.Equal(t, "Bad", gotResult.Score)
	_, err = s.Get(ctx, "ind_SelfTestCompleted")
	require.NoError(t, err)

	// User profiles expire absolutely, so reads do not extend them
	clk.Advance(20 * time.Minute)
	_, ok = profiles.Read(ctx, "judge@court.test")
	require.True(t, ok)
	clk.Advance(11 * time.Minute)
	_, ok = profiles.Read(ctx, "judge@court.test")
	assert.False(t, ok)
}
