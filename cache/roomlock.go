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
)

const (
	DefaultRoomLockTTL = 15 * time.Second
	RoomLockPrefix     = "roomlock_"
)

// RoomLockCache holds advisory, time-boxed room locks.
//
// AcquireLock is a read followed by a write with no compare-and-swap, so it
// is not a mutex: two callers that both read an absent or just-expired entry
// will both be told they own the lock. Callers must tolerate that.
//
// Each entry remembers the TTL it was written with. IsLocked slides the
// entry by that TTL; AcquireLock only looks, so callers backing off never
// keep an abandoned lock alive.
type RoomLockCache struct {
	cache *Cache[lockEntry]
}

type lockEntry struct {
	Locked bool          `json:"locked"`
	TTL    time.Duration `json:"ttl"`
}

func NewRoomLockCache(cfg Config) *RoomLockCache {
	if cfg.Kind == "" {
		cfg.Kind = "roomlock"
	}
	if cfg.Prefix == "" {
		cfg.Prefix = RoomLockPrefix
	}
	if cfg.Policy.TTL == 0 {
		cfg.Policy = Policy{TTL: DefaultRoomLockTTL, Sliding: true}
	}
	return &RoomLockCache{
		cache: New[lockEntry](cfg),
	}
}

// SetLocked records the lock state of a room using the default TTL
func (c *RoomLockCache) SetLocked(ctx context.Context, roomKey string, locked bool) error {
	return c.write(ctx, roomKey, locked, c.cache.Policy().TTL)
}

// IsLocked reports the lock state. An absent entry is unlocked
func (c *RoomLockCache) IsLocked(ctx context.Context, roomKey string) bool {
	entry, ok := c.cache.Peek(ctx, roomKey)
	if !ok {
		return false
	}
	if c.cache.Policy().Sliding && entry.TTL > 0 {
		// Only context errors come back, and the read already succeeded
		_ = c.write(ctx, roomKey, entry.Locked, entry.TTL)
	}
	return entry.Locked
}

// AcquireLock returns true if the room is already locked, and the caller
// should back off. Otherwise it marks the room locked for ttl and returns
// false, making the caller the owner. A ttl of zero uses the cache default
func (c *RoomLockCache) AcquireLock(
	ctx context.Context,
	roomKey string,
	ttl time.Duration,
) (bool, error) {
	if entry, ok := c.cache.Peek(ctx, roomKey); ok && entry.Locked {
		return true, nil
	}
	if ttl <= 0 {
		ttl = c.cache.Policy().TTL
	}
	if err := c.write(ctx, roomKey, true, ttl); err != nil {
		return false, err
	}
	return false, nil
}

func (c *RoomLockCache) ReleaseLock(ctx context.Context, roomKey string) error {
	return c.cache.RemoveFromCache(ctx, roomKey)
}

func (c *RoomLockCache) write(
	ctx context.Context,
	roomKey string,
	locked bool,
	ttl time.Duration,
) error {
	return c.cache.WriteWithTTL(ctx, roomKey, &lockEntry{Locked: locked, TTL: ttl}, ttl)
}
