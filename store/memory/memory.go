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

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/blinklabs-io/courtroom/store"
	"github.com/blinklabs-io/courtroom/store/plugin"
)

// purgeEvery controls how many writes pass between sweeps of expired entries
const purgeEvery = 256

type entry struct {
	expiresAt time.Time
	value     []byte
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Store keeps entries in process memory. It is only shared between
// goroutines of a single instance
type Store struct {
	now     func() time.Time
	entries map[string]entry
	mu      sync.RWMutex
	writes  int
	closed  bool
}

type StoreOptionFunc func(*Store)

// WithClock overrides the time source, mainly for tests that need to step past a TTL
func WithClock(now func() time.Time) StoreOptionFunc {
	return func(s *Store) {
		s.now = now
	}
}

func New(opts ...StoreOptionFunc) *Store {
	s := &Store{
		now:     time.Now,
		entries: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func init() {
	plugin.Register(
		plugin.PluginEntry{
			Name:        "memory",
			Description: "in-process map, not shared between instances",
			NewFromOptionsFunc: func() (store.Store, error) {
				return New(), nil
			},
		},
	)
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, store.ErrStoreClosed
	}
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrKeyNotFound
	}
	if e.expired(s.now()) {
		s.mu.Lock()
		// Re-check under the write lock in case of a concurrent Set
		if cur, ok := s.entries[key]; ok && cur.expired(s.now()) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, store.ErrKeyNotFound
	}
	return append([]byte(nil), e.value...), nil
}

func (s *Store) Set(
	ctx context.Context,
	key string,
	value []byte,
	ttl time.Duration,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrStoreClosed
	}
	s.entries[key] = e
	s.writes++
	if s.writes%purgeEvery == 0 {
		s.purgeLocked()
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrStoreClosed
	}
	delete(s.entries, key)
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.entries = make(map[string]entry)
	return nil
}

// Len returns the number of entries, including expired ones not yet purged
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) purgeLocked() {
	now := s.now()
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
		}
	}
}
