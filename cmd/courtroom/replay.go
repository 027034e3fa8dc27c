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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/blinklabs-io/courtroom/callback"
	"github.com/blinklabs-io/courtroom/internal/config"
	"github.com/blinklabs-io/courtroom/internal/server"
	"github.com/spf13/cobra"
)

// maxReplayLine bounds a single JSON line of a replay file
const maxReplayLine = 1 << 20

var replayFlags = struct {
	strict bool
}{}

type eventHandler interface {
	Handle(ctx context.Context, evt *callback.CallbackEvent) error
}

// readEvents parses one callback event per line. Blank lines and lines
// starting with '#' are skipped
func readEvents(r io.Reader) ([]*callback.CallbackEvent, error) {
	var ret []*callback.CallbackEvent
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxReplayLine)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		var evt callback.CallbackEvent
		if err := json.Unmarshal(line, &evt); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if evt.EventType == "" {
			return nil, fmt.Errorf("line %d: missing event_type", lineNo)
		}
		ret = append(ret, &evt)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading events: %w", err)
	}
	return ret, nil
}

// replayEvents dispatches events in file order and returns how many failed
func replayEvents(
	ctx context.Context,
	h eventHandler,
	events []*callback.CallbackEvent,
	logger *slog.Logger,
) int {
	failed := 0
	for idx, evt := range events {
		if evt.TimeStampUTC.IsZero() {
			evt.TimeStampUTC = time.Now().UTC()
		}
		if err := h.Handle(ctx, evt); err != nil {
			failed++
			logger.Warn(
				"replayed event failed",
				"component", programName,
				"index", idx,
				"event_type", evt.EventType,
				"conference_id", evt.ConferenceID,
				"error", err,
			)
		}
	}
	return failed
}

func replayRun(ctx context.Context, args []string, cfg *config.Config) {
	logger := commonRun()

	f, err := os.Open(args[0])
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
	events, err := readEvents(f)
	f.Close()
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}

	svc, err := server.NewService(cfg, logger)
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
	if err := svc.Start(ctx); err != nil {
		slog.Error(err.Error())
		_ = svc.Stop()
		os.Exit(1)
	}
	failed := replayEvents(ctx, svc, events, logger)
	if err := svc.Stop(); err != nil {
		logger.Error("shutdown errors occurred", "error", err)
	}
	logger.Info(
		fmt.Sprintf("replayed %d events, %d failed", len(events), failed),
		"component", programName,
	)
	if failed > 0 && replayFlags.strict {
		os.Exit(1)
	}
}

func replayCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <events-file>",
		Short: "Dispatch JSON-lines callback events against the configured store and source",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				slog.Error("no config found in context")
				os.Exit(1)
			}
			replayRun(cmd.Context(), args, cfg)
		},
	}
	cmd.Flags().BoolVar(
		&replayFlags.strict,
		"strict",
		false,
		"exit with an error status if any event fails",
	)
	return cmd
}
