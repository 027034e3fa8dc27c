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

package ingress

import (
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/blinklabs-io/courtroom/event"
	"github.com/blinklabs-io/courtroom/upstream"
	"github.com/gorilla/websocket"
)

const (
	wsSendQueueSize = 64
	wsWriteTimeout  = 10 * time.Second
)

var (
	errSubscriberClosed = errors.New("websocket subscriber closed")
	errSubscriberFull   = errors.New("websocket send queue full")
)

// Message is the JSON frame pushed to websocket clients
type Message struct {
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
	Group     string    `json:"group"`
	Type      string    `json:"type"`
}

// wsSubscriber is a network-backed bus subscriber. Deliver never blocks on
// the network: frames go through a bounded queue drained by one writer
// goroutine. A full queue fails delivery, which makes the bus drop the
// subscriber
type wsSubscriber struct {
	conn      *websocket.Conn
	send      chan event.Event
	done      chan struct{}
	closeOnce sync.Once
}

func newWSSubscriber(conn *websocket.Conn) *wsSubscriber {
	return &wsSubscriber{
		conn: conn,
		send: make(chan event.Event, wsSendQueueSize),
		done: make(chan struct{}),
	}
}

func (s *wsSubscriber) Deliver(evt event.Event) error {
	select {
	case <-s.done:
		return errSubscriberClosed
	default:
	}
	select {
	case s.send <- evt:
		return nil
	default:
		return errSubscriberFull
	}
}

func (s *wsSubscriber) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

func (s *wsSubscriber) writeLoop() {
	defer s.conn.Close()
	for {
		select {
		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			_ = s.conn.WriteMessage(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			)
			return
		case evt := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			err := s.conn.WriteJSON(Message{
				Timestamp: evt.Timestamp,
				Payload:   evt.Payload,
				Group:     string(evt.Topic),
				Type:      evt.Type,
			})
			if err != nil {
				s.Close()
				return
			}
		}
	}
}

func (i *Ingress) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if len(i.config.AllowedOrigins) == 0 {
				return true
			}
			return slices.Contains(
				i.config.AllowedOrigins,
				r.Header.Get("Origin"),
			)
		},
	}
}

// handleWebsocket subscribes the connection to one notification group, or
// to every group of a user when subscribing by username
func (i *Ingress) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	groups, ok := i.websocketGroups(w, r)
	if !ok {
		return
	}
	if i.bus == nil {
		writeError(w, http.StatusNotImplemented, "notifications disabled")
		return
	}
	conn, err := i.upgrader().Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		i.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	sub := newWSSubscriber(conn)
	subIds := make([]event.SubscriberId, len(groups))
	for idx, group := range groups {
		subIds[idx] = i.bus.RegisterSubscriber(event.Topic(group), sub)
	}
	i.logger.Debug(
		"websocket subscribed",
		"groups", groups,
		"subscriber_ids", subIds,
	)
	go sub.writeLoop()

	// Clients only listen. Reading detects disconnects and handles control
	// frames
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	for idx, group := range groups {
		i.bus.Unsubscribe(event.Topic(group), subIds[idx])
	}
	sub.Close()
	i.logger.Debug(
		"websocket closed",
		"groups", groups,
		"subscriber_ids", subIds,
	)
}

// websocketGroups resolves the groups a websocket request asks for. It
// writes the error reply itself
func (i *Ingress) websocketGroups(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	query := r.URL.Query()
	if group := query.Get("group"); group != "" {
		return []string{group}, true
	}
	username := query.Get("username")
	if username == "" {
		writeError(w, http.StatusBadRequest, "missing group or username")
		return nil, false
	}
	if i.backend == nil {
		writeError(w, http.StatusNotImplemented, "user subscriptions disabled")
		return nil, false
	}
	groups, err := i.backend.UserGroups(r.Context(), username)
	if err != nil {
		if errors.Is(err, upstream.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found: "+username)
			return nil, false
		}
		i.logger.Error(
			"failed to resolve user groups",
			"username", username,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return groups, true
}
