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
	"time"

	"github.com/blinklabs-io/courtroom/conference"
	"github.com/blinklabs-io/courtroom/upstream"
)

const DefaultConferenceTTL = 4 * time.Hour

// RefreshFunc fetches the ground truth for a conference
type RefreshFunc func(ctx context.Context) (*upstream.ConferenceDetails, *upstream.HearingDetails, error)

// SourceRefresh returns a RefreshFunc that fetches the conference from src
func SourceRefresh(src upstream.Source, conferenceID string) RefreshFunc {
	return func(ctx context.Context) (*upstream.ConferenceDetails, *upstream.HearingDetails, error) {
		return src.FetchConferenceDetails(ctx, conferenceID)
	}
}

// ConferenceCache is the read-through, write-back cache of conference
// aggregates, keyed by the bare conference id. Concurrent misses for the
// same id may each call the refresh func; the last write wins
type ConferenceCache struct {
	cache *Cache[conference.Conference]
}

func NewConferenceCache(cfg Config) *ConferenceCache {
	if cfg.Kind == "" {
		cfg.Kind = "conference"
	}
	if cfg.Policy.TTL == 0 {
		cfg.Policy = Policy{TTL: DefaultConferenceTTL, Sliding: true}
	}
	return &ConferenceCache{
		cache: New[conference.Conference](cfg),
	}
}

// Get returns the cached conference without consulting upstream
func (c *ConferenceCache) Get(
	ctx context.Context,
	conferenceID string,
) (*conference.Conference, bool) {
	return c.cache.ReadFromCache(ctx, conferenceID)
}

// GetOrAdd returns the cached conference, populating it with refresh on a miss
func (c *ConferenceCache) GetOrAdd(
	ctx context.Context,
	conferenceID string,
	refresh RefreshFunc,
) (*conference.Conference, error) {
	if conf, ok := c.cache.ReadFromCache(ctx, conferenceID); ok {
		return conf, nil
	}
	return c.ForceRefresh(ctx, conferenceID, refresh)
}

// ForceRefresh rebuilds the conference from upstream and overwrites the
// cached copy. Refresh errors are returned to the caller
func (c *ConferenceCache) ForceRefresh(
	ctx context.Context,
	conferenceID string,
	refresh RefreshFunc,
) (*conference.Conference, error) {
	cd, hd, err := refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh conference %s: %w", conferenceID, err)
	}
	conf, err := upstream.MapConference(cd, hd)
	if err != nil {
		return nil, fmt.Errorf("refresh conference %s: %w", conferenceID, err)
	}
	if conf.ID != conferenceID {
		return nil, fmt.Errorf(
			"refresh conference %s: upstream returned conference %s",
			conferenceID,
			conf.ID,
		)
	}
	if err := c.cache.WriteToCache(ctx, conferenceID, conf); err != nil {
		return nil, err
	}
	return conf, nil
}

// Update overwrites the cached conference
func (c *ConferenceCache) Update(
	ctx context.Context,
	conf *conference.Conference,
) error {
	return c.cache.WriteToCache(ctx, conf.ID, conf)
}

func (c *ConferenceCache) Remove(
	ctx context.Context,
	conf *conference.Conference,
) error {
	return c.cache.RemoveFromCache(ctx, conf.ID)
}
