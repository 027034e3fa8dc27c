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
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/blinklabs-io/courtroom/callback"
	"github.com/blinklabs-io/courtroom/conference"
	"github.com/blinklabs-io/courtroom/rules"
	"github.com/blinklabs-io/courtroom/upstream"
)

// ErrorResponse is the JSON body of every non-2xx reply
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// LayoutRequest is the body of a hearing layout change
type LayoutRequest struct {
	Layout    conference.HearingLayout `json:"layout"`
	ChangedBy string                   `json:"changed_by,omitempty"`
}

// ConsultationAnswerRequest is the body of an invitee's answer
type ConsultationAnswerRequest struct {
	ParticipantID string            `json:"participant_id"`
	Answer        conference.Answer `json:"answer"`
}

// writeJSON writes a JSON response with the given status
// code.
func writeJSON(
	w http.ResponseWriter,
	status int,
	v any,
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

func writeError(
	w http.ResponseWriter,
	status int,
	message string,
) {
	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Error:      http.StatusText(status),
		Message:    message,
	})
}

func (i *Ingress) handleHealth(
	w http.ResponseWriter,
	_ *http.Request,
) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleCallback decodes one callback event and dispatches it. It replies
// once the event has been applied and its notifications sent
func (i *Ingress) handleCallback(
	w http.ResponseWriter,
	r *http.Request,
) {
	r.Body = http.MaxBytesReader(w, r.Body, i.config.MaxBodyBytes)
	var evt callback.CallbackEvent
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		writeError(w, http.StatusBadRequest, "invalid callback body: "+err.Error())
		return
	}
	if evt.EventType == "" {
		writeError(w, http.StatusBadRequest, "missing event_type")
		return
	}
	if evt.TimeStampUTC.IsZero() {
		evt.TimeStampUTC = time.Now().UTC()
	}
	if err := i.dispatcher.Handle(r.Context(), &evt); err != nil {
		writeError(w, dispatchStatus(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// dispatchStatus maps a dispatch error to its HTTP status
func dispatchStatus(err error) int {
	switch {
	case errors.Is(err, callback.ErrNoHandler),
		errors.Is(err, callback.ErrMissingConferenceID),
		errors.Is(err, callback.ErrMissingInvitationID),
		errors.Is(err, callback.ErrInvalidAnswer),
		errors.Is(err, callback.ErrNotInvited),
		errors.Is(err, rules.ErrUnrecognizedRoom):
		return http.StatusBadRequest
	case errors.Is(err, upstream.ErrConferenceNotFound):
		return http.StatusNotFound
	case errors.Is(err, callback.ErrLaneFull),
		errors.Is(err, callback.ErrDispatcherClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// handleConsultationAnswer dispatches an invitee's answer as a
// consultation response event
func (i *Ingress) handleConsultationAnswer(
	w http.ResponseWriter,
	r *http.Request,
) {
	r.Body = http.MaxBytesReader(w, r.Body, i.config.MaxBodyBytes)
	var req ConsultationAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid answer body: "+err.Error())
		return
	}
	if req.ParticipantID == "" {
		writeError(w, http.StatusBadRequest, "missing participant_id")
		return
	}
	evt := callback.NewConsultationResponse(
		r.PathValue("id"),
		r.PathValue("invitation"),
		req.ParticipantID,
		req.Answer,
	)
	if err := i.dispatcher.Handle(r.Context(), evt); err != nil {
		writeError(w, dispatchStatus(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (i *Ingress) handleConference(
	w http.ResponseWriter,
	r *http.Request,
) {
	if i.backend == nil {
		writeError(w, http.StatusNotImplemented, "conference lookup disabled")
		return
	}
	id := r.PathValue("id")
	conf, err := i.backend.Conference(r.Context(), id)
	if err != nil {
		i.writeBackendError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, conf)
}

func (i *Ingress) handleGetLayout(
	w http.ResponseWriter,
	r *http.Request,
) {
	if i.backend == nil {
		writeError(w, http.StatusNotImplemented, "layouts disabled")
		return
	}
	id := r.PathValue("id")
	layout, ok := i.backend.Layout(r.Context(), id)
	if !ok {
		writeError(w, http.StatusNotFound, "no layout set for conference: "+id)
		return
	}
	writeJSON(w, http.StatusOK, layout)
}

func (i *Ingress) handleSetLayout(
	w http.ResponseWriter,
	r *http.Request,
) {
	if i.backend == nil {
		writeError(w, http.StatusNotImplemented, "layouts disabled")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, i.config.MaxBodyBytes)
	var req LayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid layout body: "+err.Error())
		return
	}
	id := r.PathValue("id")
	layout, err := i.backend.SetLayout(r.Context(), id, req.Layout, req.ChangedBy)
	if err != nil {
		i.writeBackendError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, layout)
}

func (i *Ingress) writeBackendError(
	w http.ResponseWriter,
	conferenceID string,
	err error,
) {
	switch {
	case errors.Is(err, conference.ErrInvalidLayout):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, conference.ErrNotHost):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, upstream.ErrConferenceNotFound):
		writeError(w, http.StatusNotFound, "conference not found: "+conferenceID)
	default:
		i.logger.Error(
			"conference request failed",
			"conference_id", conferenceID,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
