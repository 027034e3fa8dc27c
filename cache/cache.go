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

// Package cache provides the advisory TTL caches that hold conference state
// and the short-lived coordination entries around it.
//
// Every cache is a thin typed layer over a store.Store. Store and codec
// failures are logged and reported as a miss or no-op, so a cache is never
// the only source of truth.
package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/blinklabs-io/courtroom/codec"
	"github.com/blinklabs-io/courtroom/store"
)

// Policy is the expiry policy of a cache kind. A sliding policy resets the
// TTL on every successful read
type Policy struct {
	TTL     time.Duration
	Sliding bool
}

// Config is the explicit construction input of a cache
type Config struct {
	Store   store.Store
	Logger  *slog.Logger
	Metrics *Metrics
	// Kind names the cache in logs and metric labels
	Kind   string
	Prefix string
	Suffix string
	Policy Policy
}

// Cache is a typed, namespaced view of a store
type Cache[T any] struct {
	store   store.Store
	logger  *slog.Logger
	metrics *Metrics
	kind    string
	prefix  string
	suffix  string
	policy  Policy
}

func New[T any](cfg Config) *Cache[T] {
	c := &Cache[T]{
		store:   cfg.Store,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		kind:    cfg.Kind,
		prefix:  cfg.Prefix,
		suffix:  cfg.Suffix,
		policy:  cfg.Policy,
	}
	if c.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		c.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if c.kind == "" {
		c.kind = "default"
	}
	return c
}

// Key returns the namespaced store key for a cache key
func (c *Cache[T]) Key(key string) string {
	return c.prefix + key + c.suffix
}

func (c *Cache[T]) Policy() Policy {
	return c.policy
}

// WriteToCache stores value under key with the cache policy TTL
func (c *Cache[T]) WriteToCache(ctx context.Context, key string, value *T) error {
	return c.WriteWithTTL(ctx, key, value, c.policy.TTL)
}

// WriteWithTTL stores value with an explicit TTL. Only context errors are
// returned; anything else is logged and dropped
func (c *Cache[T]) WriteWithTTL(
	ctx context.Context,
	key string,
	value *T,
	ttl time.Duration,
) error {
	data, err := codec.Marshal(value)
	if err != nil {
		c.failed("encode", key, err)
		return nil
	}
	if err := c.store.Set(ctx, c.Key(key), data, ttl); err != nil {
		if isContextErr(err) {
			return err
		}
		c.failed("write", key, err)
	}
	return nil
}

// ReadFromCache returns the cached value and true, or false when the entry
// is absent, expired or unreadable
func (c *Cache[T]) ReadFromCache(ctx context.Context, key string) (*T, bool) {
	return c.read(ctx, key, c.policy.Sliding)
}

// Peek is ReadFromCache without the sliding refresh
func (c *Cache[T]) Peek(ctx context.Context, key string) (*T, bool) {
	return c.read(ctx, key, false)
}

func (c *Cache[T]) read(ctx context.Context, key string, refresh bool) (*T, bool) {
	fullKey := c.Key(key)
	data, err := c.store.Get(ctx, fullKey)
	if err != nil {
		if !errors.Is(err, store.ErrKeyNotFound) && !isContextErr(err) {
			c.failed("read", key, err)
		}
		c.metrics.incMiss(c.kind)
		return nil, false
	}
	ret := new(T)
	if err := codec.Unmarshal(data, ret); err != nil {
		c.failed("decode", key, err)
		c.metrics.incMiss(c.kind)
		return nil, false
	}
	c.metrics.incHit(c.kind)
	if refresh && c.policy.TTL > 0 {
		if err := c.store.Set(ctx, fullKey, data, c.policy.TTL); err != nil &&
			!isContextErr(err) {
			c.failed("refresh", key, err)
		}
	}
	return ret, true
}

// RemoveFromCache deletes the entry. Only context errors are returned
func (c *Cache[T]) RemoveFromCache(ctx context.Context, key string) error {
	if err := c.store.Delete(ctx, c.Key(key)); err != nil {
		if isContextErr(err) {
			return err
		}
		c.failed("remove", key, err)
	}
	return nil
}

func (c *Cache[T]) failed(op string, key string, err error) {
	c.metrics.incError(c.kind)
	c.logger.Warn(
		"cache "+op+" failed",
		"component", "cache",
		"cache", c.kind,
		"key", c.Key(key),
		"error", err,
	)
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
