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

// Package store defines the key/value contract shared by every cache
// backend. Backends live in sub-packages and register themselves with
// the plugin registry.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by Get when the key is absent or has expired
var ErrKeyNotFound = errors.New("key not found")

// ErrStoreClosed is returned when an operation is attempted on a closed store
var ErrStoreClosed = errors.New("store closed")

// Store is a namespaced-by-caller key/value store with per-entry expiry.
//
// Implementations must honor context cancellation by aborting before any
// write is committed, so that a cancelled Set or Delete leaves the prior
// entry untouched.
type Store interface {
	// Get returns the stored value, or ErrKeyNotFound if missing or expired
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores the value. A ttl <= 0 means the entry never expires
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes the key. Deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
	// Close releases the backend
	Close() error
}
