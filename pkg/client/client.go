// Copyright 2025 Emiliano Spinella (eminwux)
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
//
// SPDX-License-Identifier: Apache-2.0

// Package client is a typed HTTP client for the wemu API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/eminwux/wemu/internal/errdefs"
	"github.com/eminwux/wemu/pkg/api"
)

type Client interface {
	Health(ctx context.Context) error

	CreateSession(ctx context.Context, req api.CreateSessionRequest) (*api.Session, error)
	GetSession(ctx context.Context, id string) (*api.Session, error)
	ListSessions(ctx context.Context, status api.SessionStatus) ([]*api.Session, error)
	TerminateSession(ctx context.Context, id string) (*api.Session, error)

	ListApplications(ctx context.Context, skip, limit int) ([]*api.Application, error)
	CreateApplication(ctx context.Context, in api.ApplicationInput) (*api.Application, error)

	EmulatorStatus(ctx context.Context) (*api.EmulatorStatus, error)
	EmulatorInfo(ctx context.Context) (*api.EmulatorInfo, error)

	Templates(ctx context.Context) (*api.ComponentTemplates, error)
	ValidateWorkflow(ctx context.Context, wf *api.Workflow) (*api.WorkflowValidation, error)
	ExecuteWorkflow(ctx context.Context, wf *api.Workflow) (*api.WorkflowResult, error)
}

// Error is a non-2xx answer from the server.
type Error struct {
	StatusCode int
	Message    string

	body []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", errdefs.ErrRemote, e.StatusCode, e.Message)
}

func (e *Error) Unwrap() error { return errdefs.ErrRemote }

func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.StatusCode == http.StatusNotFound
}

type Option func(*opts)
type opts struct {
	Timeout    time.Duration
	HTTPClient *http.Client
}

func WithTimeout(d time.Duration) Option {
	return func(o *opts) { o.Timeout = d }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *opts) { o.HTTPClient = c }
}

type client struct {
	base string
	http *http.Client
}

// New returns a client for the server at baseURL.
func New(baseURL string, options ...Option) Client {
	cfg := opts{Timeout: 60 * time.Second}
	for _, o := range options {
		o(&cfg)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &client{base: strings.TrimRight(baseURL, "/"), http: hc}
}

func (c *client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb api.ErrorBody
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &eb) == nil && eb.Error != "" {
			msg = eb.Error
		}
		return &Error{StatusCode: resp.StatusCode, Message: msg, body: data}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func (c *client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *client) CreateSession(ctx context.Context, req api.CreateSessionRequest) (*api.Session, error) {
	var s api.Session
	if err := c.do(ctx, http.MethodPost, "/api/sessions/", req, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *client) GetSession(ctx context.Context, id string) (*api.Session, error) {
	var s api.Session
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(id), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *client) ListSessions(ctx context.Context, status api.SessionStatus) ([]*api.Session, error) {
	path := "/api/sessions/"
	if status != "" {
		path += "?status=" + url.QueryEscape(string(status))
	}
	var out []*api.Session
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) TerminateSession(ctx context.Context, id string) (*api.Session, error) {
	var s api.Session
	if err := c.do(ctx, http.MethodDelete, "/api/sessions/"+url.PathEscape(id), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *client) ListApplications(ctx context.Context, skip, limit int) ([]*api.Application, error) {
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))
	var out []*api.Application
	if err := c.do(ctx, http.MethodGet, "/api/applications/?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) CreateApplication(ctx context.Context, in api.ApplicationInput) (*api.Application, error) {
	var a api.Application
	if err := c.do(ctx, http.MethodPost, "/api/applications/", in, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// EmulatorStatus returns the reported status even when the server answers
// 503 for an unavailable emulator.
func (c *client) EmulatorStatus(ctx context.Context) (*api.EmulatorStatus, error) {
	var st api.EmulatorStatus
	err := c.do(ctx, http.MethodGet, "/api/emulator/status", nil, &st)
	var e *Error
	if errors.As(err, &e) && e.StatusCode == http.StatusServiceUnavailable {
		if json.Unmarshal(e.body, &st) == nil && st.Status != "" {
			return &st, nil
		}
		return &api.EmulatorStatus{Status: api.EmulatorUnavailable, Error: e.Message}, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *client) EmulatorInfo(ctx context.Context) (*api.EmulatorInfo, error) {
	var info api.EmulatorInfo
	if err := c.do(ctx, http.MethodGet, "/api/emulator/info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *client) Templates(ctx context.Context) (*api.ComponentTemplates, error) {
	var t api.ComponentTemplates
	if err := c.do(ctx, http.MethodGet, "/api/lowcode/templates", nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *client) ValidateWorkflow(ctx context.Context, wf *api.Workflow) (*api.WorkflowValidation, error) {
	var v api.WorkflowValidation
	if err := c.do(ctx, http.MethodPost, "/api/lowcode/workflow/validate", wf, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *client) ExecuteWorkflow(ctx context.Context, wf *api.Workflow) (*api.WorkflowResult, error) {
	var res api.WorkflowResult
	if err := c.do(ctx, http.MethodPost, "/api/lowcode/workflow/execute", wf, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
