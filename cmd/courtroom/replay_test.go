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

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/courtroom/callback"
)

type fakeHandler struct {
	seen []callback.EventType
	fail callback.EventType
}

func (h *fakeHandler) Handle(_ context.Context, evt *callback.CallbackEvent) error {
	h.seen = append(h.seen, evt.EventType)
	if evt.EventType == h.fail {
		return errors.New("failed")
	}
	return nil
}

func TestReadEvents(t *testing.T) {
	input := `
# hearing starts
{"event_type":"Start","conference_id":"conf-1","time_stamp_utc":"2025-06-02T10:00:00Z"}

{"event_type":"Joined","conference_id":"conf-1","participant_id":"judge"}
`
	events, err := readEvents(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, callback.EventTypeStart, events[0].EventType)
	assert.Equal(t, "judge", events[1].ParticipantID)
}

func TestReadEventsErrors(t *testing.T) {
	_, err := readEvents(strings.NewReader("{\"event_type\":\"Start\"}\nnot json\n"))
	require.ErrorContains(t, err, "line 2")

	_, err = readEvents(strings.NewReader(`{"conference_id":"conf-1"}`))
	require.ErrorContains(t, err, "missing event_type")
}

func TestReplayEventsKeepsOrderAndCountsFailures(t *testing.T) {
	events, err := readEvents(strings.NewReader(strings.Join([]string{
		`{"event_type":"Start","conference_id":"conf-1"}`,
		`{"event_type":"Pause","conference_id":"conf-1"}`,
		`{"event_type":"Close","conference_id":"conf-1"}`,
	}, "\n")))
	require.NoError(t, err)

	h := &fakeHandler{fail: callback.EventTypePause}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	failed := replayEvents(context.Background(), h, events, logger)
	assert.Equal(t, 1, failed)
	assert.Equal(
		t,
		[]callback.EventType{
			callback.EventTypeStart,
			callback.EventTypePause,
			callback.EventTypeClose,
		},
		h.seen,
	)
	for _, evt := range events {
		assert.False(t, evt.TimeStampUTC.IsZero())
	}
}

func TestListAllPlugins(t *testing.T) {
	out := listAllPlugins()
	assert.Contains(t, out, "memory:")
	assert.Contains(t, out, "badger:")
	assert.Contains(t, out, "--store-sql-dialect")
}
