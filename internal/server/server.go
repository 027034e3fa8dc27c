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

// Package server builds the courtroom service from the loaded config and runs
// it until a termination signal arrives.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blinklabs-io/courtroom"
	"github.com/blinklabs-io/courtroom/internal/config"
	"github.com/blinklabs-io/courtroom/upstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// upstreamSource is what both run modes provide as ground truth
type upstreamSource interface {
	upstream.Source
	upstream.ProfileSource
	upstream.VideoPlatform
}

func newSource(cfg *config.Config, logger *slog.Logger) (upstreamSource, error) {
	if cfg.RunMode.IsDevMode() {
		if cfg.FixturesPath == "" {
			logger.Warn(
				"dev mode without fixtures, every conference will be unknown",
				"component", "server",
			)
			return upstream.NewStatic(logger), nil
		}
		src, err := upstream.LoadStatic(cfg.FixturesPath, logger)
		if err != nil {
			return nil, err
		}
		logger.Info(
			fmt.Sprintf("loaded %d fixture conferences", len(src.ConferenceIDs())),
			"component", "server",
		)
		return src, nil
	}
	if cfg.UpstreamUrl == "" {
		return nil, errors.New("upstreamUrl is required in serve mode")
	}
	return upstream.NewClient(
		cfg.UpstreamUrl,
		upstream.WithToken(cfg.UpstreamToken),
		upstream.WithHTTPClient(&http.Client{Timeout: cfg.UpstreamTimeout}),
	), nil
}

// NewService builds a service from cfg. Extra options are applied last
func NewService(
	cfg *config.Config,
	logger *slog.Logger,
	opts ...courtroom.ConfigOptionFunc,
) (*courtroom.Service, error) {
	src, err := newSource(cfg, logger)
	if err != nil {
		return nil, err
	}
	svcOpts := []courtroom.ConfigOptionFunc{
		courtroom.WithLogger(logger),
		courtroom.WithSource(src),
		courtroom.WithProfileSource(src),
		courtroom.WithVideoPlatform(src),
		courtroom.WithStorePlugin(cfg.StorePlugin),
		courtroom.WithAllowedOrigins(cfg.AllowedOrigins...),
		courtroom.WithDispatchQueueSize(cfg.DispatchQueueSize),
		courtroom.WithConferenceTTL(cfg.ConferenceTtl),
		courtroom.WithInvitationTTL(cfg.InvitationTtl),
		courtroom.WithRoomLockTTL(cfg.RoomLockTtl),
		courtroom.WithLayoutTTL(cfg.LayoutTtl),
		courtroom.WithUserProfileTTL(cfg.UserProfileTtl),
		courtroom.WithTestCallTTL(cfg.TestCallTtl),
		courtroom.WithShutdownTimeout(cfg.ShutdownTimeout),
	}
	svcOpts = append(svcOpts, opts...)
	return courtroom.New(courtroom.NewConfig(svcOpts...))
}

func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "server")

	shutdownTimeout := config.DefaultShutdownTimeout
	if cfg.ShutdownTimeout > 0 {
		shutdownTimeout = cfg.ShutdownTimeout
	}

	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	opts := []courtroom.ConfigOptionFunc{
		courtroom.WithListenAddress(
			fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.Port),
		),
		// Enable metrics with default prometheus registry
		courtroom.WithPrometheusRegistry(prometheus.DefaultRegisterer),
	}
	var tracingShutdown func(context.Context) error
	if cfg.Tracing {
		tp, err := setupTracing(signalCtx, cfg.TracingStdout)
		if err != nil {
			return err
		}
		tracingShutdown = tp.Shutdown
		opts = append(opts, courtroom.WithTracerProvider(tp))
	}
	svc, err := NewService(cfg, logger, opts...)
	if err != nil {
		return err
	}
	if tracingShutdown != nil {
		svc.AddShutdownFunc(tracingShutdown)
	}

	// Metrics listener
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsAddr := fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.MetricsPort)
	logger.Info(
		"serving prometheus metrics on "+metricsAddr,
		"component",
		"server",
	)
	metricsServer := &http.Server{
		Addr:              metricsAddr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			logger.Error(
				fmt.Sprintf("failed to start metrics listener: %s", err),
				"component", "server",
			)
			os.Exit(1)
		}
	}()

	// Run service in goroutine
	errChan := make(chan error, 1)
	go func() {
		//nolint:contextcheck
		err := svc.Run(signalCtx)
		select {
		case errChan <- err:
		case <-signalCtx.Done():
		}
	}()

	shutdownMetrics := func() {
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}
	}

	// Wait for signal or error
	select {
	case <-signalCtx.Done():
		logger.Info("signal received, initiating graceful shutdown")
		shutdownMetrics()
		if err := svc.Stop(); err != nil {
			logger.Error("shutdown errors occurred", "error", err)
			return err
		}
		logger.Info("shutdown complete")
		return nil

	case err := <-errChan:
		if err == nil {
			logger.Info("service stopped")
			shutdownMetrics()
			return svc.Stop()
		}
		logger.Error("service error", "error", err)
		signalCtxStop()
		if stopErr := svc.Stop(); stopErr != nil {
			logger.Error(
				"shutdown errors occurred during error cleanup",
				"error",
				stopErr,
			)
		}
		shutdownMetrics()
		return err
	}
}
