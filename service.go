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

// Package courtroom wires the conference event processing service: the
// cache store, the typed caches, the notification bus, the callback
// dispatcher and the ingress server.
package courtroom

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blinklabs-io/courtroom/cache"
	"github.com/blinklabs-io/courtroom/callback"
	"github.com/blinklabs-io/courtroom/conference"
	"github.com/blinklabs-io/courtroom/event"
	"github.com/blinklabs-io/courtroom/ingress"
	"github.com/blinklabs-io/courtroom/notify"
	"github.com/blinklabs-io/courtroom/store"
	"github.com/blinklabs-io/courtroom/store/plugin"

	// Register store plugins
	_ "github.com/blinklabs-io/courtroom/store/badger"
	_ "github.com/blinklabs-io/courtroom/store/memory"
	_ "github.com/blinklabs-io/courtroom/store/sql"
)

// Caches groups every typed cache sharing the service store
type Caches struct {
	Conferences  *cache.ConferenceCache
	Invitations  *cache.InvitationCache
	RoomLocks    *cache.RoomLockCache
	Layouts      *cache.LayoutCache
	UserProfiles *cache.UserProfileCache
	TestCalls    *cache.TestCallCache
}

type Service struct {
	store         store.Store
	eventBus      *event.EventBus
	notifier      *notify.Notifier
	caches        *Caches
	dispatcher    *callback.Dispatcher
	backend       *backend
	ingress       *ingress.Ingress
	shutdownFuncs []func(context.Context) error
	cancel        context.CancelFunc
	config        Config
	done          chan struct{}
	mu            sync.Mutex
	startOnce     sync.Once
	shutdownOnce  sync.Once
	ownsStore     bool
	stopped       bool
}

func New(cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	s := &Service{
		config:   cfg,
		eventBus: event.NewEventBus(cfg.promRegistry, cfg.logger),
		done:     make(chan struct{}),
	}
	return s, nil
}

// Start opens the store, builds the caches and dispatcher and starts the
// ingress server when a listen address is configured
func (s *Service) Start(ctx context.Context) error {
	err := errors.New("service already started")
	s.startOnce.Do(func() {
		err = s.start(ctx)
	})
	return err
}

func (s *Service) start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return errors.New("service stopped")
	}
	cfg := s.config
	// Open store
	s.store = cfg.store
	if s.store == nil {
		st, err := plugin.New(cfg.storePlugin)
		if err != nil {
			return err
		}
		s.store = st
		s.ownsStore = true
	}
	// Build caches
	metrics := &cache.Metrics{}
	metrics.Register(cfg.promRegistry)
	s.caches = &Caches{
		Conferences: cache.NewConferenceCache(
			cfg.cacheConfig(s.store, metrics, cfg.conferenceTTL, true),
		),
		Invitations: cache.NewInvitationCache(
			cfg.cacheConfig(s.store, metrics, cfg.invitationTTL, true),
		),
		RoomLocks: cache.NewRoomLockCache(
			cfg.cacheConfig(s.store, metrics, cfg.roomLockTTL, true),
		),
		Layouts: cache.NewLayoutCache(
			cfg.cacheConfig(s.store, metrics, cfg.layoutTTL, true),
		),
		UserProfiles: cache.NewUserProfileCache(
			cfg.cacheConfig(s.store, metrics, cfg.userProfileTTL, false),
		),
		TestCalls: cache.NewTestCallCache(
			cfg.cacheConfig(s.store, metrics, cfg.testCallTTL, false),
		),
	}
	// Notifications
	s.notifier = notify.NewNotifier(s.eventBus, cfg.logger)
	// Callback handling
	registry, err := callback.NewDefaultRegistry(callback.Deps{
		Invitations:   s.caches.Invitations,
		RoomLocks:     s.caches.RoomLocks,
		TestCalls:     s.caches.TestCalls,
		VideoPlatform: cfg.videoPlatform,
		Logger:        cfg.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to build handler registry: %w", err)
	}
	dispatchOpts := []callback.DispatcherOption{
		callback.WithLogger(cfg.logger),
		callback.WithPromRegistry(cfg.promRegistry),
	}
	if cfg.tracerProvider != nil {
		dispatchOpts = append(
			dispatchOpts,
			callback.WithTracerProvider(cfg.tracerProvider),
		)
	}
	if cfg.maxLaneDepth > 0 {
		dispatchOpts = append(
			dispatchOpts,
			callback.WithMaxLaneDepth(cfg.maxLaneDepth),
		)
	}
	s.dispatcher = callback.NewDispatcher(
		registry,
		s.caches.Conferences,
		cfg.source,
		s.notifier,
		dispatchOpts...,
	)
	s.backend = &backend{
		caches:   s.caches,
		source:   cfg.source,
		profiles: cfg.profiles,
		sender:   s.notifier,
		logger:   cfg.logger,
	}
	// Start ingress
	if cfg.listenAddress != "" {
		s.ingress = ingress.New(
			ingress.Config{
				ListenAddress:  cfg.listenAddress,
				AllowedOrigins: cfg.allowedOrigins,
			},
			s.dispatcher,
			s.eventBus,
			s.backend,
			cfg.logger,
		)
		ingressCtx, cancel := context.WithCancel(ctx)
		s.cancel = cancel
		if err := s.ingress.Start(ingressCtx); err != nil {
			return err
		}
	}
	cfg.logger.Info(
		"courtroom service started",
		"component", "courtroom",
		"store", s.storeName(),
	)
	return nil
}

func (s *Service) storeName() string {
	if s.ownsStore {
		return s.config.storePlugin
	}
	return "external"
}

// Run starts the service and blocks until Stop is called
func (s *Service) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	// Wait for shutdown signal
	<-s.done
	return nil
}

// Handle dispatches one callback event and waits for it to be applied
func (s *Service) Handle(ctx context.Context, evt *callback.CallbackEvent) error {
	s.mu.Lock()
	dispatcher := s.dispatcher
	s.mu.Unlock()
	if dispatcher == nil {
		return errors.New("service not started")
	}
	return dispatcher.Handle(ctx, evt)
}

func (s *Service) getBackend() (*backend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backend == nil {
		return nil, errors.New("service not started")
	}
	return s.backend, nil
}

// Conference returns the cached conference, loading it from the source on
// a miss
func (s *Service) Conference(
	ctx context.Context,
	conferenceID string,
) (*conference.Conference, error) {
	b, err := s.getBackend()
	if err != nil {
		return nil, err
	}
	return b.Conference(ctx, conferenceID)
}

// Layout returns the hearing layout last set for a conference
func (s *Service) Layout(
	ctx context.Context,
	conferenceID string,
) (*conference.Layout, bool) {
	b, err := s.getBackend()
	if err != nil {
		return nil, false
	}
	return b.Layout(ctx, conferenceID)
}

// SetLayout records a hearing layout and notifies the hosts and officers.
// A non-empty changedBy must be a host of the conference
func (s *Service) SetLayout(
	ctx context.Context,
	conferenceID string,
	layout conference.HearingLayout,
	changedBy string,
) (*conference.Layout, error) {
	b, err := s.getBackend()
	if err != nil {
		return nil, err
	}
	return b.SetLayout(ctx, conferenceID, layout, changedBy)
}

// UserGroups resolves the notification groups of a user from their cached
// claims
func (s *Service) UserGroups(ctx context.Context, username string) ([]string, error) {
	b, err := s.getBackend()
	if err != nil {
		return nil, err
	}
	return b.UserGroups(ctx, username)
}

// RespondToConsultation records an invitee's answer to a consultation
// invitation. The answer is applied in order with the conference's other
// callbacks
func (s *Service) RespondToConsultation(
	ctx context.Context,
	conferenceID string,
	invitationID string,
	participantID string,
	answer conference.Answer,
) error {
	return s.Handle(
		ctx,
		callback.NewConsultationResponse(conferenceID, invitationID, participantID, answer),
	)
}

// Caches returns the typed caches. It is nil until Start
func (s *Service) Caches() *Caches {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caches
}

// EventBus returns the notification bus
func (s *Service) EventBus() *event.EventBus {
	return s.eventBus
}

// IngressAddr returns the bound ingress address, or an empty string when
// ingress is disabled
func (s *Service) IngressAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ingress == nil {
		return ""
	}
	return s.ingress.Addr()
}

// AddShutdownFunc registers a function called after the service has
// stopped accepting work
func (s *Service) AddShutdownFunc(fn func(context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdownFuncs = append(s.shutdownFuncs, fn)
}

func (s *Service) Stop() error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.shutdown()
	})
	return err
}

func (s *Service) shutdown() error {
	// Create shutdown context with timeout (default 30s if not configured)
	shutdownTimeout := 30 * time.Second
	if s.config.shutdownTimeout > 0 {
		shutdownTimeout = s.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true

	var err error
	logger := s.config.logger.With("component", "courtroom")

	logger.Debug("starting graceful shutdown")

	// Phase 1: Stop accepting new work
	logger.Debug("shutdown phase 1: stopping new work")

	if s.ingress != nil {
		if stopErr := s.ingress.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("ingress shutdown: %w", stopErr))
		}
	}
	if s.cancel != nil {
		s.cancel()
	}

	// Phase 2: Drain queued callbacks
	logger.Debug("shutdown phase 2: draining callbacks")

	if s.dispatcher != nil {
		s.dispatcher.Close()
	}

	// Phase 3: Close notification subscribers
	logger.Debug("shutdown phase 3: closing subscribers")

	if s.eventBus != nil {
		s.eventBus.Stop()
	}

	// Phase 4: Cleanup resources
	logger.Debug("shutdown phase 4: cleanup resources")

	// Call registered shutdown functions
	for _, fn := range s.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	s.shutdownFuncs = nil

	if s.ownsStore && s.store != nil {
		if closeErr := s.store.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("store close: %w", closeErr))
		}
	}

	logger.Debug("graceful shutdown complete")
	close(s.done)
	return err
}
