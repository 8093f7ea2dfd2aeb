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

package api

// EmulatorStatus is the normalized answer of the emulator health probe.
type EmulatorStatus struct {
	Status       string `json:"status"`
	WineVersion  string `json:"wine_version,omitempty"`
	Display      string `json:"display,omitempty"`
	VNCAvailable bool   `json:"vnc_available"`
	Error        string `json:"error,omitempty"`
}

const (
	EmulatorRunning     = "running"
	EmulatorUnavailable = "unavailable"
)

func (s EmulatorStatus) Available() bool { return s.Status == EmulatorRunning }

// EmulatorInfo is static information about the emulation backend.
type EmulatorInfo struct {
	Arch             string   `json:"arch"             yaml:"arch"`
	Display          string   `json:"display"          yaml:"display"`
	VNCPort          int      `json:"vnc_port"         yaml:"vnc_port"`
	WebPort          int      `json:"web_port"         yaml:"web_port"`
	SupportedFormats []string `json:"supported_formats" yaml:"supported_formats"`
	Features         []string `json:"features"         yaml:"features"`
}

// LaunchRequest starts an executable on a display.
type LaunchRequest struct {
	Executable string            `json:"executable"`
	Args       []string          `json:"args,omitempty"`
	Env        map[string]string `json:"env,omitempty"`
	WinePrefix string            `json:"wine_prefix,omitempty"`
	Arch       string            `json:"arch,omitempty"`
	Display    string            `json:"display,omitempty"`
	Graphics   GraphicsConfig    `json:"graphics"`
	Audio      AudioConfig       `json:"audio"`
}

// LaunchResult is the normalized outcome of a launch.
type LaunchResult struct {
	Success bool   `json:"success"          yaml:"success"`
	Pid     int    `json:"pid,omitempty"    yaml:"pid,omitempty"`
	Output  string `json:"output,omitempty" yaml:"output,omitempty"`
	Error   string `json:"error,omitempty"  yaml:"error,omitempty"`
}

// ExecuteRequest runs a command inside the emulator.
type ExecuteRequest struct {
	Command    string   `json:"command"`
	Args       []string `json:"args"`
	WinePrefix string   `json:"wine_prefix,omitempty"`
}

// CommandResult is the normalized outcome of execute and restart.
type CommandResult struct {
	Success bool   `json:"success"         yaml:"success"`
	Output  string `json:"output"          yaml:"output"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

// RestartRequest restarts (stops) the process bound to a display.
type RestartRequest struct {
	Display string `json:"display,omitempty"`
}

// Screenshot carries a base64 encoded capture.
type Screenshot struct {
	Screenshot string `json:"screenshot,omitempty"`
	Error      string `json:"error,omitempty"`
}
