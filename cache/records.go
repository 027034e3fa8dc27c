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

package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/blinklabs-io/courtroom/conference"
	"github.com/blinklabs-io/courtroom/upstream"
)

const (
	DefaultLayoutTTL      = 4 * time.Hour
	DefaultUserProfileTTL = 30 * time.Minute
	DefaultTestCallTTL    = time.Hour

	LayoutPrefix      = "layout_"
	UserProfilePrefix = "userclaims_"
	TestCallSuffix    = "_SelfTestCompleted"
)

// LayoutCache holds the hearing layout picked per conference
type LayoutCache struct {
	cache *Cache[conference.Layout]
}

func NewLayoutCache(cfg Config) *LayoutCache {
	if cfg.Kind == "" {
		cfg.Kind = "layout"
	}
	if cfg.Prefix == "" {
		cfg.Prefix = LayoutPrefix
	}
	if cfg.Policy.TTL == 0 {
		cfg.Policy = Policy{TTL: DefaultLayoutTTL, Sliding: true}
	}
	return &LayoutCache{cache: New[conference.Layout](cfg)}
}

func (c *LayoutCache) Write(ctx context.Context, layout *conference.Layout) error {
	return c.cache.WriteToCache(ctx, layout.ConferenceID, layout)
}

func (c *LayoutCache) Read(ctx context.Context, conferenceID string) (*conference.Layout, bool) {
	return c.cache.ReadFromCache(ctx, conferenceID)
}

func (c *LayoutCache) Remove(ctx context.Context, conferenceID string) error {
	return c.cache.RemoveFromCache(ctx, conferenceID)
}

// UserProfileCache holds claims snapshots keyed by lower-cased username.
// Entries expire absolutely so role changes are picked up
type UserProfileCache struct {
	cache *Cache[conference.UserProfile]
}

func NewUserProfileCache(cfg Config) *UserProfileCache {
	if cfg.Kind == "" {
		cfg.Kind = "userprofile"
	}
	if cfg.Prefix == "" {
		cfg.Prefix = UserProfilePrefix
	}
	if cfg.Policy.TTL == 0 {
		cfg.Policy = Policy{TTL: DefaultUserProfileTTL}
	}
	return &UserProfileCache{cache: New[conference.UserProfile](cfg)}
}

// ProfileKey is the cache key of a username
func ProfileKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (c *UserProfileCache) Write(
	ctx context.Context,
	key string,
	profile *conference.UserProfile,
) error {
	return c.cache.WriteToCache(ctx, key, profile)
}

func (c *UserProfileCache) Read(
	ctx context.Context,
	key string,
) (*conference.UserProfile, bool) {
	return c.cache.ReadFromCache(ctx, key)
}

// GetOrAdd returns the cached claims of username, fetching them from src on
// a miss
func (c *UserProfileCache) GetOrAdd(
	ctx context.Context,
	username string,
	src upstream.ProfileSource,
) (*conference.UserProfile, error) {
	key := ProfileKey(username)
	if profile, ok := c.cache.ReadFromCache(ctx, key); ok {
		return profile, nil
	}
	ud, err := src.FetchUserProfile(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("refresh profile %s: %w", key, err)
	}
	profile, err := upstream.MapUserProfile(ud)
	if err != nil {
		return nil, fmt.Errorf("refresh profile %s: %w", key, err)
	}
	if err := c.cache.WriteToCache(ctx, key, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// TestCallCache holds self-test results. The key is suffixed rather than
// prefixed
type TestCallCache struct {
	cache *Cache[conference.TestCallResult]
}

func NewTestCallCache(cfg Config) *TestCallCache {
	if cfg.Kind == "" {
		cfg.Kind = "testcall"
	}
	if cfg.Suffix == "" {
		cfg.Suffix = TestCallSuffix
	}
	if cfg.Policy.TTL == 0 {
		cfg.Policy = Policy{TTL: DefaultTestCallTTL}
	}
	return &TestCallCache{cache: New[conference.TestCallResult](cfg)}
}

func (c *TestCallCache) Write(
	ctx context.Context,
	key string,
	result *conference.TestCallResult,
) error {
	return c.cache.WriteToCache(ctx, key, result)
}

func (c *TestCallCache) Read(
	ctx context.Context,
	key string,
) (*conference.TestCallResult, bool) {
	return c.cache.ReadFromCache(ctx, key)
}
