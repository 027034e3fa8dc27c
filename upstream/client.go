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

package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxResponseBytes limits JSON API responses to 10 MiB
const maxResponseBytes = 10 << 20

// errNotFound is a 404 from the API, mapped to a resource error by callers
var errNotFound = errors.New("not found")

// Client is an HTTP client for the video platform REST API. It serves both
// as the conference Source and the VideoPlatform
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom *http.Client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithToken sets the bearer token sent with every request
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// NewClient creates a new video platform API client. The baseURL is the
// API root, for example "https://video.example.test/api"
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchConferenceDetails retrieves a conference and, when it names one, its
// hearing. Corresponds to GET /conferences/{id} and GET /hearings/{id}.
// A missing hearing is not an error
func (c *Client) FetchConferenceDetails(
	ctx context.Context,
	conferenceID string,
) (*ConferenceDetails, *HearingDetails, error) {
	var cd ConferenceDetails
	reqURL := c.baseURL + "/conferences/" + url.PathEscape(conferenceID)
	if err := c.getJSON(ctx, reqURL, &cd); err != nil {
		if errors.Is(err, errNotFound) {
			err = ErrConferenceNotFound
		}
		return nil, nil, fmt.Errorf(
			"getting conference %s: %w",
			conferenceID,
			err,
		)
	}
	if cd.HearingID == "" {
		return &cd, nil, nil
	}
	var hd HearingDetails
	reqURL = c.baseURL + "/hearings/" + url.PathEscape(cd.HearingID)
	if err := c.getJSON(ctx, reqURL, &hd); err != nil {
		if errors.Is(err, errNotFound) {
			return &cd, nil, nil
		}
		return nil, nil, fmt.Errorf(
			"getting hearing %s: %w",
			cd.HearingID,
			err,
		)
	}
	return &cd, &hd, nil
}

// FetchUserProfile retrieves the claims of a user. Corresponds to
// GET /users/{username}/profile
func (c *Client) FetchUserProfile(
	ctx context.Context,
	username string,
) (*UserProfileDetails, error) {
	var ud UserProfileDetails
	reqURL := c.baseURL + "/users/" + url.PathEscape(username) + "/profile"
	if err := c.getJSON(ctx, reqURL, &ud); err != nil {
		if errors.Is(err, errNotFound) {
			err = ErrUserNotFound
		}
		return nil, fmt.Errorf("getting profile %s: %w", username, err)
	}
	return &ud, nil
}

type joinEndpointRequest struct {
	EndpointID  string `json:"endpoint_id"`
	RoomLabel   string `json:"room_label"`
	RequestedBy string `json:"requested_by,omitempty"`
}

// JoinEndpointToConsultation asks the platform to move an endpoint into a
// consultation room. Corresponds to
// POST /conferences/{id}/consultations/endpoint
func (c *Client) JoinEndpointToConsultation(
	ctx context.Context,
	conferenceID string,
	endpointID string,
	roomLabel string,
	requestedBy string,
) error {
	reqURL := c.baseURL + "/conferences/" + url.PathEscape(conferenceID) +
		"/consultations/endpoint"
	payload, err := json.Marshal(joinEndpointRequest{
		EndpointID:  endpointID,
		RoomLabel:   roomLabel,
		RequestedBy: requestedBy,
	})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	body, err := c.do(ctx, http.MethodPost, reqURL, payload)
	if err != nil {
		if errors.Is(err, errNotFound) {
			err = ErrConferenceNotFound
		}
		return fmt.Errorf(
			"joining endpoint %s to %s: %w",
			endpointID,
			roomLabel,
			err,
		)
	}
	return body.Close()
}

func (c *Client) getJSON(ctx context.Context, reqURL string, dest any) error {
	body, err := c.do(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	defer body.Close()
	if err := json.NewDecoder(body).Decode(dest); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// do performs an HTTP request and returns the response body.
// The caller is responsible for closing the returned ReadCloser.
func (c *Client) do(
	ctx context.Context,
	method string,
	reqURL string,
	payload []byte,
) (io.ReadCloser, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	if resp == nil || resp.Body == nil {
		return nil, errors.New("nil response from server")
	}

	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, errNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(
			io.LimitReader(resp.Body, 1024),
		)
		return nil, fmt.Errorf(
			"unexpected status %d: %s",
			resp.StatusCode,
			string(bodyBytes),
		)
	}

	return &limitedReadCloser{
		Reader: io.LimitReader(resp.Body, maxResponseBytes),
		Closer: resp.Body,
	}, nil
}

// limitedReadCloser wraps a size-limited Reader with the
// underlying connection's Closer.
type limitedReadCloser struct {
	io.Reader
	io.Closer
}
