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
	"context"
	"sync"

	"github.com/eminwux/wemu/pkg/api"
)

const errFuncNotSet = "test function not set"

// Fake is a test double for Dispatcher. Unset functions return a failed
// result. Every call is recorded.
type Fake struct {
	StatusFunc     func(ctx context.Context) api.EmulatorStatus
	LaunchFunc     func(ctx context.Context, req api.LaunchRequest) api.LaunchResult
	ExecuteFunc    func(ctx context.Context, req api.ExecuteRequest) api.CommandResult
	RestartFunc    func(ctx context.Context, req api.RestartRequest) api.CommandResult
	ScreenshotFunc func(ctx context.Context) api.Screenshot
	InfoFunc       func() api.EmulatorInfo

	mu       sync.Mutex
	Launches []api.LaunchRequest
	Executes []api.ExecuteRequest
	Restarts []api.RestartRequest
}

// NewOKFake returns a Fake whose commands all succeed.
func NewOKFake() *Fake {
	return &Fake{
		StatusFunc: func(context.Context) api.EmulatorStatus {
			return api.EmulatorStatus{Status: api.EmulatorRunning, WineVersion: "wine-9.0"}
		},
		LaunchFunc: func(context.Context, api.LaunchRequest) api.LaunchResult {
			return api.LaunchResult{Success: true, Pid: 4242}
		},
		ExecuteFunc: func(context.Context, api.ExecuteRequest) api.CommandResult {
			return api.CommandResult{Success: true}
		},
		RestartFunc: func(context.Context, api.RestartRequest) api.CommandResult {
			return api.CommandResult{Success: true}
		},
	}
}

func (f *Fake) Status(ctx context.Context) api.EmulatorStatus {
	if f.StatusFunc != nil {
		return f.StatusFunc(ctx)
	}
	return api.EmulatorStatus{Status: api.EmulatorUnavailable, Error: errFuncNotSet}
}

func (f *Fake) Launch(ctx context.Context, req api.LaunchRequest) api.LaunchResult {
	f.mu.Lock()
	f.Launches = append(f.Launches, req)
	f.mu.Unlock()
	if f.LaunchFunc != nil {
		return f.LaunchFunc(ctx, req)
	}
	return api.LaunchResult{Error: errFuncNotSet}
}

func (f *Fake) Execute(ctx context.Context, req api.ExecuteRequest) api.CommandResult {
	f.mu.Lock()
	f.Executes = append(f.Executes, req)
	f.mu.Unlock()
	if f.ExecuteFunc != nil {
		return f.ExecuteFunc(ctx, req)
	}
	return api.CommandResult{Error: errFuncNotSet}
}

func (f *Fake) Restart(ctx context.Context, req api.RestartRequest) api.CommandResult {
	f.mu.Lock()
	f.Restarts = append(f.Restarts, req)
	f.mu.Unlock()
	if f.RestartFunc != nil {
		return f.RestartFunc(ctx, req)
	}
	return api.CommandResult{Error: errFuncNotSet}
}

func (f *Fake) Screenshot(ctx context.Context) api.Screenshot {
	if f.ScreenshotFunc != nil {
		return f.ScreenshotFunc(ctx)
	}
	return api.Screenshot{Error: errFuncNotSet}
}

func (f *Fake) Info() api.EmulatorInfo {
	if f.InfoFunc != nil {
		return f.InfoFunc()
	}
	return api.EmulatorInfo{Arch: "win64", Display: ":0"}
}

// Calls returns copies of the recorded requests.
func (f *Fake) Calls() ([]api.LaunchRequest, []api.ExecuteRequest, []api.RestartRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.LaunchRequest(nil), f.Launches...),
		append([]api.ExecuteRequest(nil), f.Executes...),
		append([]api.RestartRequest(nil), f.Restarts...)
}
