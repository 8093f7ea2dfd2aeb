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

package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/eminwux/wemu/internal/errdefs"
	"github.com/eminwux/wemu/pkg/api"
)

// Handler runs one component and returns the output published under its id.
type Handler func(ctx context.Context, c *api.Component, st *State) (any, error)

const (
	defaultAPITimeout = 30 * time.Second
	maxResponseBytes  = 1 << 20
)

var errNoEmulator = errors.New("no emulator configured")

func (e *Engine) registerDefaults() {
	for _, t := range []api.ComponentType{
		api.ComponentButton, api.ComponentTextInput, api.ComponentDropdown, api.ComponentFileUpload,
	} {
		e.handlers[t] = uiHandler
	}
	e.handlers[api.ComponentAPICall] = e.apiCall
	e.handlers[api.ComponentWineExecute] = e.wineExecute
	e.handlers[api.ComponentWineInstall] = e.wineInstall
	e.handlers[api.ComponentWineConfig] = e.wineConfig
}

// uiHandler only records that the element was reached.
func uiHandler(_ context.Context, c *api.Component, _ *State) (any, error) {
	if v, ok := c.Config["value"]; ok {
		return v, nil
	}
	return nil, nil
}

func (e *Engine) apiCall(ctx context.Context, c *api.Component, _ *State) (any, error) {
	method := strings.ToUpper(configString(c.Config, "method"))
	if method == "" {
		method = http.MethodGet
	}
	timeout := defaultAPITimeout
	if secs, ok, _ := configInt(c.Config, "timeout_seconds"); ok && secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	contentType := ""
	switch b := c.Config["body"].(type) {
	case nil:
	case string:
		body = strings.NewReader(b)
		contentType = "text/plain; charset=utf-8"
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, configString(c.Config, "url"), body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range configStringMap(c.Config, "headers") {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var decoded any = string(raw)
	var js any
	if len(raw) > 0 && json.Unmarshal(raw, &js) == nil {
		decoded = js
	}
	out := map[string]any{"status_code": resp.StatusCode, "body": decoded}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, fmt.Errorf("%s %s returned HTTP %d", method, req.URL.Redacted(), resp.StatusCode)
	}
	return out, nil
}

func commandErr(res api.CommandResult) error {
	if res.Success {
		return nil
	}
	msg := res.Error
	if msg == "" {
		msg = "command reported failure"
	}
	return fmt.Errorf("%w: %s", errdefs.ErrDispatchFailure, msg)
}

func (e *Engine) wineExecute(ctx context.Context, c *api.Component, _ *State) (any, error) {
	if e.disp == nil {
		return nil, errNoEmulator
	}
	res := e.disp.Execute(ctx, api.ExecuteRequest{
		Command:    configString(c.Config, "command"),
		Args:       configStrings(c.Config, "args"),
		WinePrefix: configString(c.Config, "wine_prefix"),
	})
	return res, commandErr(res)
}

func installCommand(cfg map[string]any) api.ExecuteRequest {
	installer := configString(cfg, "installer")
	req := api.ExecuteRequest{WinePrefix: configString(cfg, "wine_prefix")}
	if strings.EqualFold(filepath.Ext(installer), ".msi") {
		req.Command = "msiexec"
		req.Args = []string{"/i", installer}
		if configBool(cfg, "silent") {
			req.Args = append(req.Args, "/qn")
		}
		return req
	}
	req.Command = "wine"
	req.Args = append([]string{installer}, configStrings(cfg, "args")...)
	return req
}

func (e *Engine) wineInstall(ctx context.Context, c *api.Component, _ *State) (any, error) {
	if e.disp == nil {
		return nil, errNoEmulator
	}
	res := e.disp.Execute(ctx, installCommand(c.Config))
	return res, commandErr(res)
}

func (e *Engine) wineConfig(ctx context.Context, c *api.Component, _ *State) (any, error) {
	if e.disp == nil {
		return nil, errNoEmulator
	}
	prefix := configString(c.Config, "wine_prefix")
	var steps []any

	if ver := configString(c.Config, "windows_version"); ver != "" {
		res := e.disp.Execute(ctx, api.ExecuteRequest{Command: "winecfg", Args: []string{"-v", ver}, WinePrefix: prefix})
		steps = append(steps, res)
		if err := commandErr(res); err != nil {
			return steps, fmt.Errorf("set windows version: %w", err)
		}
	}

	entries, err := registryEntries(c.Config)
	if err != nil {
		return steps, err
	}
	for _, entry := range entries {
		res := e.disp.Execute(ctx, api.ExecuteRequest{Command: "reg", Args: entry.args(), WinePrefix: prefix})
		steps = append(steps, res)
		if err := commandErr(res); err != nil {
			return steps, fmt.Errorf("registry %s: %w", entry.Key, err)
		}
	}

	if exe := configString(c.Config, "executable"); exe != "" {
		res := e.disp.Launch(ctx, api.LaunchRequest{
			Executable: exe,
			Args:       configStrings(c.Config, "args"),
			WinePrefix: prefix,
			Display:    configString(c.Config, "display"),
		})
		steps = append(steps, res)
		if !res.Success {
			return steps, fmt.Errorf("%w: launch %s: %s", errdefs.ErrDispatchFailure, exe, res.Error)
		}
	}
	return steps, nil
}
