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

// Package ingress is the HTTP surface of the service: the video platform
// posts callback events here and clients subscribe to notification groups
// over websockets.
package ingress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/blinklabs-io/courtroom/callback"
	"github.com/blinklabs-io/courtroom/conference"
	"github.com/blinklabs-io/courtroom/event"
)

const DefaultListenAddress = ":8080"

type Config struct {
	ListenAddress string
	// MaxBodyBytes bounds a callback request body. Zero means 1 MiB
	MaxBodyBytes int64
	// AllowedOrigins restricts websocket upgrades. Empty allows any origin
	AllowedOrigins []string
}

// Dispatcher is the part of the callback dispatcher ingress needs
type Dispatcher interface {
	Handle(ctx context.Context, evt *callback.CallbackEvent) error
}

// Bus is the part of the event bus websocket subscribers need
type Bus interface {
	RegisterSubscriber(topic event.Topic, sub event.Subscriber) event.SubscriberId
	Unsubscribe(topic event.Topic, subId event.SubscriberId)
}

// Backend serves conference reads, hearing layouts and user claims
type Backend interface {
	Conference(ctx context.Context, conferenceID string) (*conference.Conference, error)
	Layout(ctx context.Context, conferenceID string) (*conference.Layout, bool)
	SetLayout(
		ctx context.Context,
		conferenceID string,
		layout conference.HearingLayout,
		changedBy string,
	) (*conference.Layout, error)
	UserGroups(ctx context.Context, username string) ([]string, error)
}

// Ingress is the callback and websocket HTTP server
type Ingress struct {
	config     Config
	logger     *slog.Logger
	dispatcher Dispatcher
	bus        Bus
	backend    Backend
	httpServer *http.Server
	listenAddr string
	mu         sync.Mutex
}

// New creates a new ingress server instance. The bus and backend are
// optional
func New(
	cfg Config,
	dispatcher Dispatcher,
	bus Bus,
	backend Backend,
	logger *slog.Logger,
) *Ingress {
	if logger == nil {
		logger = slog.New(
			slog.NewJSONHandler(io.Discard, nil),
		)
	}
	logger = logger.With("component", "ingress")
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &Ingress{
		config:     cfg,
		logger:     logger,
		dispatcher: dispatcher,
		bus:        bus,
		backend:    backend,
	}
}

// Handler returns the HTTP handler serving every ingress route
func (i *Ingress) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", i.handleHealth)
	mux.HandleFunc("POST /callback", i.handleCallback)
	mux.HandleFunc("GET /conferences/{id}", i.handleConference)
	mux.HandleFunc("GET /conferences/{id}/layout", i.handleGetLayout)
	mux.HandleFunc("PUT /conferences/{id}/layout", i.handleSetLayout)
	mux.HandleFunc(
		"POST /conferences/{id}/consultations/{invitation}/answers",
		i.handleConsultationAnswer,
	)
	mux.HandleFunc("GET /ws", i.handleWebsocket)
	return mux
}

// Start starts the HTTP server in a background goroutine.
func (i *Ingress) Start(ctx context.Context) error {
	i.mu.Lock()
	if i.httpServer != nil {
		i.mu.Unlock()
		return errors.New("server already started")
	}
	server := &http.Server{
		Addr:              i.config.ListenAddress,
		Handler:           i.Handler(),
		ReadHeaderTimeout: 60 * time.Second,
	}
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		i.mu.Unlock()
		return fmt.Errorf("failed to listen for ingress server: %w", err)
	}
	i.httpServer = server
	i.listenAddr = ln.Addr().String()
	i.mu.Unlock()

	go func() {
		if err := server.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			i.logger.Error("ingress server error", "error", err)
		}
	}()
	i.logger.Info("ingress listener started on " + i.listenAddr)

	// Monitor context for cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			30*time.Second,
		)
		defer cancel()
		//nolint:contextcheck
		if err := i.Stop(shutdownCtx); err != nil {
			i.logger.Error(
				"failed to shutdown ingress server on context cancellation",
				"error", err,
			)
		}
	}()
	return nil
}

// Addr returns the bound listen address once started
func (i *Ingress) Addr() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.listenAddr
}

// Stop gracefully shuts down the HTTP server.
func (i *Ingress) Stop(ctx context.Context) error {
	i.mu.Lock()
	srv := i.httpServer
	i.httpServer = nil
	i.mu.Unlock()

	if srv != nil {
		i.logger.Debug("shutting down ingress server")
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown ingress server: %w", err)
		}
	}
	return nil
}
