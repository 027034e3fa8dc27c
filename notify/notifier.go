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

package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/blinklabs-io/courtroom/event"
	"golang.org/x/sync/errgroup"
)

// maxParallelSends bounds the goroutines used for one Send call
const maxParallelSends = 16

// Publisher is the part of the event bus the notifier needs
type Publisher interface {
	Publish(event.Topic, event.Event)
}

// Sender delivers addressed envelopes
type Sender interface {
	Send(ctx context.Context, envs ...Envelope) error
}

type Notifier struct {
	bus    Publisher
	logger *slog.Logger
}

func NewNotifier(bus Publisher, logger *slog.Logger) *Notifier {
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Notifier{
		bus:    bus,
		logger: logger,
	}
}

// NotifyGroup sends a single typed message to a group
func (n *Notifier) NotifyGroup(
	ctx context.Context,
	group string,
	msgType string,
	payload any,
) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notify group %s: panic: %v", group, r)
		}
	}()
	topic := event.Topic(group)
	n.bus.Publish(topic, event.NewEvent(topic, msgType, payload))
	return nil
}

// Send delivers every envelope concurrently. Delivery is fire-and-forget per
// group: a failure is logged and does not stop delivery to other groups.
// Only a context error observed before sending is returned
func (n *Notifier) Send(ctx context.Context, envs ...Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var g errgroup.Group
	g.SetLimit(maxParallelSends)
	for _, env := range envs {
		g.Go(func() error {
			if err := n.NotifyGroup(ctx, env.Group, env.Type, env.Payload); err != nil {
				n.logger.Warn(
					"notification delivery failed",
					"component", "notify",
					"group", env.Group,
					"type", env.Type,
					"error", err,
				)
			}
			return nil
		})
	}
	return g.Wait()
}
