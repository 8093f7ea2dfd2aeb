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

import "time"

// Application is a registered Windows executable.
type Application struct {
	ID             int64          `json:"id"                    yaml:"id"`
	Name           string         `json:"name"                  yaml:"name"`
	ExecutablePath string         `json:"executable_path"       yaml:"executable_path"`
	Description    string         `json:"description,omitempty" yaml:"description,omitempty"`
	IconURL        string         `json:"icon_url,omitempty"    yaml:"icon_url,omitempty"`
	EmulatorConfig EmulatorConfig `json:"wine_config"           yaml:"wine_config"`
	Active         bool           `json:"is_active"             yaml:"is_active"`
	CreatedAt      time.Time      `json:"created_at"            yaml:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"            yaml:"updated_at"`
}

// EmulatorConfig describes how the emulator launches an application.
type EmulatorConfig struct {
	Env        map[string]string `json:"env,omitempty"         yaml:"env,omitempty"`
	Args       []string          `json:"args,omitempty"        yaml:"args,omitempty"`
	WinePrefix string            `json:"wine_prefix,omitempty" yaml:"wine_prefix,omitempty"`
	Arch       string            `json:"arch,omitempty"        yaml:"arch,omitempty"`
	Graphics   GraphicsConfig    `json:"graphics"              yaml:"graphics"`
	Audio      AudioConfig       `json:"audio"                 yaml:"audio"`
}

type GraphicsConfig struct {
	Resolution     string `json:"resolution,omitempty"      yaml:"resolution,omitempty"`
	VirtualDesktop bool   `json:"virtual_desktop,omitempty" yaml:"virtual_desktop,omitempty"`
	Renderer       string `json:"renderer,omitempty"        yaml:"renderer,omitempty"`
}

type AudioConfig struct {
	Driver   string `json:"driver,omitempty"   yaml:"driver,omitempty"`
	Disabled bool   `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// ApplicationInput is the writable part of an Application.
type ApplicationInput struct {
	Name           string         `json:"name"`
	ExecutablePath string         `json:"executable_path"`
	Description    string         `json:"description,omitempty"`
	IconURL        string         `json:"icon_url,omitempty"`
	EmulatorConfig EmulatorConfig `json:"wine_config"`
}

func (in ApplicationInput) Validate() error {
	if in.Name == "" {
		return errFieldRequired("name")
	}
	if in.ExecutablePath == "" {
		return errFieldRequired("executable_path")
	}
	return nil
}
