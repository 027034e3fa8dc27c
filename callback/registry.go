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

package callback

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/blinklabs-io/courtroom/cache"
	"github.com/blinklabs-io/courtroom/upstream"
)

var (
	ErrNoHandler        = errors.New("no handler registered for event type")
	ErrDuplicateHandler = errors.New("handler already registered for event type")
)

// Deps are the collaborators of the built-in handlers
type Deps struct {
	Invitations   *cache.InvitationCache
	RoomLocks     *cache.RoomLockCache
	TestCalls     *cache.TestCallCache
	VideoPlatform upstream.VideoPlatform
	Logger        *slog.Logger
}

// Registry maps each event type to exactly one handler
type Registry struct {
	handlers map[EventType]Handler
	mu       sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[EventType]Handler),
	}
}

// NewDefaultRegistry returns a registry with a handler for every type in
// EventTypes
func NewDefaultRegistry(deps Deps) (*Registry, error) {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	r := NewRegistry()
	handlers := slices.Concat(
		participantHandlers(),
		endpointHandlers(),
		telephoneHandlers(),
		statusHandlers(),
		consultationHandlers(deps),
		hearingHandlers(deps),
	)
	for _, h := range handlers {
		if err := r.Register(h); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[h.EventType()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, h.EventType())
	}
	r.handlers[h.EventType()] = h
	return nil
}

func (r *Registry) Lookup(eventType EventType) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[eventType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoHandler, eventType)
	}
	return h, nil
}

// Types returns the registered event types, sorted
func (r *Registry) Types() []EventType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]EventType, 0, len(r.handlers))
	for t := range r.handlers {
		ret = append(ret, t)
	}
	slices.Sort(ret)
	return ret
}
