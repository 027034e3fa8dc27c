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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/blinklabs-io/courtroom/cache"
	"github.com/blinklabs-io/courtroom/conference"
	"github.com/blinklabs-io/courtroom/ingress"
	"github.com/blinklabs-io/courtroom/notify"
	"github.com/blinklabs-io/courtroom/upstream"
)

var errNoProfileSource = errors.New("no profile source configured")

// backend serves the ingress reads and the layout writes. It only holds the
// caches, so ingress handlers never take the service lock
type backend struct {
	caches   *Caches
	source   upstream.Source
	profiles upstream.ProfileSource
	sender   notify.Sender
	logger   *slog.Logger
}

var _ ingress.Backend = (*backend)(nil)

func (b *backend) Conference(
	ctx context.Context,
	conferenceID string,
) (*conference.Conference, error) {
	return b.caches.Conferences.GetOrAdd(
		ctx,
		conferenceID,
		cache.SourceRefresh(b.source, conferenceID),
	)
}

func (b *backend) Layout(
	ctx context.Context,
	conferenceID string,
) (*conference.Layout, bool) {
	return b.caches.Layouts.Read(ctx, conferenceID)
}

// SetLayout records the hearing layout and tells the hosts. A non-empty
// changedBy must be the username of one of the conference hosts
func (b *backend) SetLayout(
	ctx context.Context,
	conferenceID string,
	layout conference.HearingLayout,
	changedBy string,
) (*conference.Layout, error) {
	if !layout.Valid() {
		return nil, fmt.Errorf("%w: %q", conference.ErrInvalidLayout, layout)
	}
	conf, err := b.Conference(ctx, conferenceID)
	if err != nil {
		return nil, err
	}
	if changedBy != "" {
		p := conf.ParticipantByUsername(changedBy)
		if p == nil || !p.IsHost() {
			return nil, fmt.Errorf("%w: %s", conference.ErrNotHost, changedBy)
		}
	}
	rec := &conference.Layout{
		UpdatedAt:    time.Now().UTC(),
		ConferenceID: conf.ID,
		Layout:       layout,
		ChangedBy:    strings.ToLower(changedBy),
	}
	if err := b.caches.Layouts.Write(ctx, rec); err != nil {
		return nil, fmt.Errorf("write layout: %w", err)
	}
	if b.sender != nil {
		if err := b.sender.Send(ctx, notify.HearingLayoutChanged(conf, rec)...); err != nil {
			// The layout stays stored when the fan-out fails
			b.logger.Warn(
				"failed to send layout change",
				"component", "courtroom",
				"conference_id", conf.ID,
				"error", err,
			)
		}
	}
	return rec, nil
}

// UserGroups returns every notification group a user listens on
func (b *backend) UserGroups(ctx context.Context, username string) ([]string, error) {
	if b.profiles == nil {
		return nil, errNoProfileSource
	}
	profile, err := b.caches.UserProfiles.GetOrAdd(ctx, username, b.profiles)
	if err != nil {
		return nil, err
	}
	return notify.UserGroups(profile), nil
}
