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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/blinklabs-io/courtroom/cache"
	"github.com/blinklabs-io/courtroom/store"
	"github.com/blinklabs-io/courtroom/upstream"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

const defaultStorePlugin = "memory"

type Config struct {
	promRegistry   prometheus.Registerer
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
	store          store.Store
	source         upstream.Source
	profiles       upstream.ProfileSource
	videoPlatform  upstream.VideoPlatform
	storePlugin    string
	// Ingress listen address (empty = disabled)
	listenAddress  string
	allowedOrigins []string
	maxLaneDepth   int
	// Cache expiry (0 = use default)
	conferenceTTL   time.Duration
	invitationTTL   time.Duration
	roomLockTTL     time.Duration
	layoutTTL       time.Duration
	userProfileTTL  time.Duration
	testCallTTL     time.Duration
	shutdownTimeout time.Duration
}

func (c *Config) validate() error {
	if c.source == nil {
		return errors.New("no conference source configured")
	}
	if c.store == nil && c.storePlugin == "" {
		return errors.New("no store or store plugin configured")
	}
	if c.maxLaneDepth < 0 {
		return fmt.Errorf("invalid dispatch queue size: %d", c.maxLaneDepth)
	}
	for name, ttl := range map[string]time.Duration{
		"conference":   c.conferenceTTL,
		"invitation":   c.invitationTTL,
		"room lock":    c.roomLockTTL,
		"layout":       c.layoutTTL,
		"user profile": c.userProfileTTL,
		"test call":    c.testCallTTL,
	} {
		if ttl < 0 {
			return fmt.Errorf("invalid %s TTL: %s", name, ttl)
		}
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the service config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new courtroom config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:      slog.New(slog.NewJSONHandler(io.Discard, nil)),
		storePlugin: defaultStorePlugin,
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithTracerProvider specifies the OpenTelemetry tracer provider used for
// callback spans. This defaults to the global provider
func WithTracerProvider(tp trace.TracerProvider) ConfigOptionFunc {
	return func(c *Config) {
		c.tracerProvider = tp
	}
}

// WithStore specifies an already opened store. The caller keeps ownership
// and must close it after the service stops. This overrides the store plugin
func WithStore(s store.Store) ConfigOptionFunc {
	return func(c *Config) {
		c.store = s
	}
}

// WithStorePlugin specifies the store plugin to open on start. This defaults to "memory"
func WithStorePlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.storePlugin = plugin
	}
}

// WithSource specifies the ground-truth conference source
func WithSource(src upstream.Source) ConfigOptionFunc {
	return func(c *Config) {
		c.source = src
	}
}

// WithProfileSource specifies where user claims are fetched from when a
// websocket subscribes by username. Without it, only group subscriptions work
func WithProfileSource(src upstream.ProfileSource) ConfigOptionFunc {
	return func(c *Config) {
		c.profiles = src
	}
}

// WithVideoPlatform specifies the video platform used for endpoint
// consultations. Without it, endpoint consultation calls fail
func WithVideoPlatform(vp upstream.VideoPlatform) ConfigOptionFunc {
	return func(c *Config) {
		c.videoPlatform = vp
	}
}

// WithListenAddress specifies the ingress listen address. The default is to not start the ingress server
func WithListenAddress(addr string) ConfigOptionFunc {
	return func(c *Config) {
		c.listenAddress = addr
	}
}

// WithAllowedOrigins restricts the origins allowed to open notification websockets
func WithAllowedOrigins(origins ...string) ConfigOptionFunc {
	return func(c *Config) {
		c.allowedOrigins = append(c.allowedOrigins, origins...)
	}
}

// WithDispatchQueueSize specifies how many callback events may wait per conference
func WithDispatchQueueSize(size int) ConfigOptionFunc {
	return func(c *Config) {
		c.maxLaneDepth = size
	}
}

// WithConferenceTTL specifies the sliding expiry of cached conferences
func WithConferenceTTL(ttl time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.conferenceTTL = ttl
	}
}

// WithInvitationTTL specifies the sliding expiry of consultation invitations
func WithInvitationTTL(ttl time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.invitationTTL = ttl
	}
}

// WithRoomLockTTL specifies the sliding expiry of consultation room locks
func WithRoomLockTTL(ttl time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.roomLockTTL = ttl
	}
}

func WithLayoutTTL(ttl time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.layoutTTL = ttl
	}
}

func WithUserProfileTTL(ttl time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.userProfileTTL = ttl
	}
}

func WithTestCallTTL(ttl time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.testCallTTL = ttl
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. This defaults to 30s
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}

// cacheConfig returns the base cache config for a kind
func (c *Config) cacheConfig(
	s store.Store,
	metrics *cache.Metrics,
	ttl time.Duration,
	sliding bool,
) cache.Config {
	return cache.Config{
		Store:   s,
		Logger:  c.logger,
		Metrics: metrics,
		Policy:  cache.Policy{TTL: ttl, Sliding: sliding},
	}
}
