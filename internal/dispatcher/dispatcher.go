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

package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/eminwux/wemu/internal/errdefs"
	"github.com/eminwux/wemu/internal/logging"
	"github.com/eminwux/wemu/internal/metrics"
	"github.com/eminwux/wemu/pkg/api"
)

// Dispatcher issues commands to the remote emulator service. Failures are
// reported inside the returned results, never as Go errors.
type Dispatcher interface {
	Status(ctx context.Context) api.EmulatorStatus
	Launch(ctx context.Context, req api.LaunchRequest) api.LaunchResult
	Execute(ctx context.Context, req api.ExecuteRequest) api.CommandResult
	Restart(ctx context.Context, req api.RestartRequest) api.CommandResult
	Screenshot(ctx context.Context) api.Screenshot
	Info() api.EmulatorInfo
}

const (
	DefaultStatusTimeout     = 5 * time.Second
	DefaultExecuteTimeout    = 30 * time.Second
	DefaultScreenshotTimeout = 10 * time.Second

	maxBodyBytes = 16 << 20
)

type Config struct {
	BaseURL           string
	StatusTimeout     time.Duration
	ExecuteTimeout    time.Duration
	ScreenshotTimeout time.Duration
	Display           string
	VNCPort           int
	WebPort           int
}

type Exec struct {
	cfg     Config
	client  *http.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewHTTP(cfg Config, client *http.Client, logger *slog.Logger, m *metrics.Metrics) *Exec {
	if cfg.StatusTimeout <= 0 {
		cfg.StatusTimeout = DefaultStatusTimeout
	}
	if cfg.ExecuteTimeout <= 0 {
		cfg.ExecuteTimeout = DefaultExecuteTimeout
	}
	if cfg.ScreenshotTimeout <= 0 {
		cfg.ScreenshotTimeout = DefaultScreenshotTimeout
	}
	if cfg.Display == "" {
		cfg.Display = ":0"
	}
	if cfg.VNCPort == 0 {
		cfg.VNCPort = 5900
	}
	if cfg.WebPort == 0 {
		cfg.WebPort = 8080
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Exec{cfg: cfg, client: client, logger: logger, metrics: m}
}

// commandReply is the emulator's answer to execute and restart. A 2xx
// reply succeeded unless it says "success": false. Error carries Wine's
// stderr, which is mostly fixme noise, so it never decides the outcome.
type commandReply struct {
	Success *bool  `json:"success"`
	Output  string `json:"output"`
	Error   string `json:"error"`
}

func (r commandReply) ok() bool { return r.Success == nil || *r.Success }

func (r commandReply) result() api.CommandResult {
	return api.CommandResult{Success: r.ok(), Output: r.Output, Error: r.Error}
}

type launchReply struct {
	commandReply
	Pid int `json:"pid"`
}

func (e *Exec) Status(ctx context.Context) api.EmulatorStatus {
	var st api.EmulatorStatus
	if err := e.call(ctx, "status", http.MethodGet, "/health", nil, &st, e.cfg.StatusTimeout); err != nil {
		return api.EmulatorStatus{Status: api.EmulatorUnavailable, Error: err.Error()}
	}
	if st.Status == "" {
		st.Status = api.EmulatorRunning
	}
	return st
}

func (e *Exec) Launch(ctx context.Context, req api.LaunchRequest) api.LaunchResult {
	var res launchReply
	if err := e.call(ctx, "launch", http.MethodPost, "/api/launch", req, &res, e.cfg.ExecuteTimeout); err != nil {
		return api.LaunchResult{Success: false, Error: err.Error()}
	}
	return api.LaunchResult{Success: res.ok(), Pid: res.Pid, Output: res.Output, Error: res.Error}
}

func (e *Exec) Execute(ctx context.Context, req api.ExecuteRequest) api.CommandResult {
	if req.Args == nil {
		req.Args = []string{}
	}
	var res commandReply
	if err := e.call(ctx, "execute", http.MethodPost, "/api/execute", req, &res, e.cfg.ExecuteTimeout); err != nil {
		return api.CommandResult{Success: false, Error: err.Error()}
	}
	return res.result()
}

func (e *Exec) Restart(ctx context.Context, req api.RestartRequest) api.CommandResult {
	var res commandReply
	if err := e.call(ctx, "restart", http.MethodPost, "/api/restart", req, &res, e.cfg.ExecuteTimeout); err != nil {
		return api.CommandResult{Success: false, Error: err.Error()}
	}
	return res.result()
}

func (e *Exec) Screenshot(ctx context.Context) api.Screenshot {
	var res api.Screenshot
	if err := e.call(ctx, "screenshot", http.MethodGet, "/api/screenshot", nil, &res, e.cfg.ScreenshotTimeout); err != nil {
		return api.Screenshot{Error: err.Error()}
	}
	return res
}

func (e *Exec) Info() api.EmulatorInfo {
	return api.EmulatorInfo{
		Arch:             "win64",
		Display:          e.cfg.Display,
		VNCPort:          e.cfg.VNCPort,
		WebPort:          e.cfg.WebPort,
		SupportedFormats: []string{".exe", ".msi", ".bat", ".com"},
		Features:         []string{"graphics", "audio", "networking", "file_system"},
	}
}

// call performs one bounded request. Any returned error wraps
// errdefs.ErrDispatchFailure.
func (e *Exec) call(
	ctx context.Context,
	op, method, path string,
	in, out any,
	timeout time.Duration,
) (err error) {
	start := time.Now()
	defer func() {
		e.metrics.Dispatch(op, err == nil, time.Since(start))
		if err != nil {
			e.logger.WarnContext(ctx, "emulator call failed", "op", op, "error", err)
		} else {
			e.logger.DebugContext(ctx, "emulator call done", "op", op, "elapsed", time.Since(start))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		b, errM := json.Marshal(in)
		if errM != nil {
			return fmt.Errorf("%w: encode %s request: %w", errdefs.ErrDispatchFailure, op, errM)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, e.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: %w", errdefs.ErrDispatchFailure, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s timed out after %s", errdefs.ErrDispatchFailure, op, timeout)
		}
		return fmt.Errorf("%w: %w", errdefs.ErrDispatchFailure, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read %s response: %w", errdefs.ErrDispatchFailure, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s returned HTTP %d: %s",
			errdefs.ErrDispatchFailure, op, resp.StatusCode, remoteMessage(raw))
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode %s response: %w", errdefs.ErrDispatchFailure, op, err)
	}
	return nil
}

// remoteMessage extracts the emulator's error text from a failed response.
func remoteMessage(raw []byte) string {
	var body struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Detail != "" {
			return body.Detail
		}
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 256 {
		s = s[:256]
	}
	return s
}
