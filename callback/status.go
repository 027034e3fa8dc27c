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

package callback

import (
	"context"
	"fmt"

	"github.com/blinklabs-io/courtroom/notify"
	"github.com/blinklabs-io/courtroom/rules"
)

func statusHandlers() []Handler {
	ret := make([]Handler, 0, 4)
	for _, t := range []EventType{
		EventTypeStart,
		EventTypePause,
		EventTypeSuspend,
		EventTypeClose,
	} {
		ret = append(ret, HandlerFunc{
			Type: t,
			Mode: RefreshIfMissing,
			Fn:   handleConferenceStatus,
		})
	}
	return ret
}

func handleConferenceStatus(_ context.Context, hctx *Context) (Outcome, error) {
	conf, evt := hctx.Conference, hctx.Event
	status, ok := rules.ConferenceStatusFor(string(evt.EventType))
	if !ok {
		return Outcome{}, fmt.Errorf("not a conference status event: %s", evt.EventType)
	}
	if !rules.AcceptConferenceStatus(conf, evt.TimeStampUTC) {
		hctx.Logger.Debug(
			"ignoring out of order status event",
			"event_time", evt.TimeStampUTC,
			"last_status_event_time", conf.LastStatusEventTime,
		)
		return Outcome{}, nil
	}
	conf.CurrentStatus = status
	if !evt.TimeStampUTC.IsZero() {
		conf.LastStatusEventTime = evt.TimeStampUTC
	}
	return persist(notify.ConferenceStatus(conf))
}
