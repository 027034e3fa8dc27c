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
	"time"

	"github.com/blinklabs-io/courtroom/conference"
)

const (
	DefaultInvitationTTL = 150 * time.Second
	InvitationPrefix     = "invitation_"
)

// InvitationCache holds pending consultation invitations. An invitation
// that has expired reads as absent, which callers treat as a timeout
type InvitationCache struct {
	cache *Cache[conference.Invitation]
}

func NewInvitationCache(cfg Config) *InvitationCache {
	if cfg.Kind == "" {
		cfg.Kind = "invitation"
	}
	if cfg.Prefix == "" {
		cfg.Prefix = InvitationPrefix
	}
	if cfg.Policy.TTL == 0 {
		cfg.Policy = Policy{TTL: DefaultInvitationTTL, Sliding: true}
	}
	return &InvitationCache{
		cache: New[conference.Invitation](cfg),
	}
}

func (c *InvitationCache) Write(
	ctx context.Context,
	inv *conference.Invitation,
) error {
	return c.cache.WriteToCache(ctx, inv.ID, inv)
}

func (c *InvitationCache) Read(
	ctx context.Context,
	invitationID string,
) (*conference.Invitation, bool) {
	return c.cache.ReadFromCache(ctx, invitationID)
}

func (c *InvitationCache) Remove(ctx context.Context, invitationID string) error {
	return c.cache.RemoveFromCache(ctx, invitationID)
}
