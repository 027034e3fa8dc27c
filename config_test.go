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

package courtroom

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/courtroom/upstream"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.NotNil(t, cfg.logger)
	assert.Equal(t, "memory", cfg.storePlugin)
	assert.Empty(t, cfg.listenAddress)
	assert.Zero(t, cfg.conferenceTTL)
}

func TestConfigOptions(t *testing.T) {
	src := upstream.NewStatic(nil)
	cfg := NewConfig(
		WithSource(src),
		WithProfileSource(src),
		WithVideoPlatform(src),
		WithStorePlugin("badger"),
		WithListenAddress("127.0.0.1:0"),
		WithAllowedOrigins("https://a.test"),
		WithAllowedOrigins("https://b.test"),
		WithDispatchQueueSize(8),
		WithConferenceTTL(time.Hour),
		WithRoomLockTTL(5*time.Second),
		WithShutdownTimeout(time.Second),
	)
	assert.Same(t, src, cfg.profiles)
	assert.Equal(t, "badger", cfg.storePlugin)
	assert.Equal(t, "127.0.0.1:0", cfg.listenAddress)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.allowedOrigins)
	assert.Equal(t, 8, cfg.maxLaneDepth)
	assert.Equal(t, time.Hour, cfg.conferenceTTL)
	assert.Equal(t, 5*time.Second, cfg.roomLockTTL)
	assert.Equal(t, time.Second, cfg.shutdownTimeout)
	require.NoError(t, cfg.validate())
}

func TestConfigValidate(t *testing.T) {
	src := upstream.NewStatic(nil)
	tests := []struct {
		name string
		opts []ConfigOptionFunc
	}{
		{
			name: "no source",
			opts: nil,
		},
		{
			name: "no store",
			opts: []ConfigOptionFunc{WithSource(src), WithStorePlugin("")},
		},
		{
			name: "negative queue",
			opts: []ConfigOptionFunc{WithSource(src), WithDispatchQueueSize(-1)},
		},
		{
			name: "negative ttl",
			opts: []ConfigOptionFunc{WithSource(src), WithInvitationTTL(-time.Second)},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewConfig(tc.opts...)
			require.Error(t, cfg.validate())
			_, err := New(cfg)
			require.Error(t, err)
		})
	}
}
