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

// Package callback turns video platform callback events into conference
// state changes and client notifications.
//
// The Dispatcher loads the conference a handler needs, resolves the event's
// subject, runs the handler, persists the returned outcome and only then
// fans out the notifications. Events for the same conference are handled
// in arrival order, events for different conferences run in parallel.
package callback

import (
	"context"
	"log/slog"

	"github.com/blinklabs-io/courtroom/conference"
	"github.com/blinklabs-io/courtroom/notify"
)

// RefreshMode controls how the dispatcher loads the conference before a
// handler runs
type RefreshMode int

const (
	// RefreshNone handlers are not scoped to a cached conference
	RefreshNone RefreshMode = iota
	// RefreshIfMissing reads the cache and fetches upstream on a miss
	RefreshIfMissing
	// RefreshForce always fetches upstream and overwrites the cache
	RefreshForce
)

// SubjectKind names the conference member an event is about
type SubjectKind int

const (
	SubjectNone SubjectKind = iota
	SubjectParticipant
	SubjectEndpoint
	SubjectTelephone
	// SubjectParticipantOrEndpoint resolves an endpoint when the event
	// carries an endpoint id and a participant otherwise
	SubjectParticipantOrEndpoint
)

func (s SubjectKind) String() string {
	switch s {
	case SubjectParticipant:
		return "participant"
	case SubjectEndpoint:
		return "endpoint"
	case SubjectTelephone:
		return "telephone"
	case SubjectParticipantOrEndpoint:
		return "participant_or_endpoint"
	default:
		return "none"
	}
}

// Context is what a handler gets to work with. The subject pointers point
// into Conference, so mutating them mutates the conference
type Context struct {
	Event       *CallbackEvent
	Conference  *conference.Conference
	Participant *conference.Participant
	Endpoint    *conference.Endpoint
	Telephone   *conference.TelephoneParticipant
	Logger      *slog.Logger
}

// Outcome is what a handler wants done once it returns. Remove wins over
// Persist. Notifications are sent after the cache write succeeds
type Outcome struct {
	Notifications []notify.Envelope
	Persist       bool
	Remove        bool
}

// Handler handles one event type
type Handler interface {
	EventType() EventType
	Refresh() RefreshMode
	Subject() SubjectKind
	Handle(ctx context.Context, hctx *Context) (Outcome, error)
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc struct {
	Fn       func(ctx context.Context, hctx *Context) (Outcome, error)
	Type     EventType
	Mode     RefreshMode
	SubjectK SubjectKind
}

func (h HandlerFunc) EventType() EventType { return h.Type }

func (h HandlerFunc) Refresh() RefreshMode { return h.Mode }

func (h HandlerFunc) Subject() SubjectKind { return h.SubjectK }

func (h HandlerFunc) Handle(ctx context.Context, hctx *Context) (Outcome, error) {
	return h.Fn(ctx, hctx)
}

// persist is the common outcome of a handler that changed the conference
func persist(envs []notify.Envelope) (Outcome, error) {
	return Outcome{Persist: true, Notifications: envs}, nil
}

// broadcast is the common outcome of a handler that only notifies
func broadcast(envs []notify.Envelope) (Outcome, error) {
	return Outcome{Notifications: envs}, nil
}
