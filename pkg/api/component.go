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

type ComponentType string

const (
	ComponentButton     ComponentType = "button"
	ComponentTextInput  ComponentType = "input"
	ComponentDropdown   ComponentType = "dropdown"
	ComponentFileUpload ComponentType = "file_upload"

	ComponentConditional ComponentType = "conditional"
	ComponentLoop        ComponentType = "loop"
	ComponentAPICall     ComponentType = "api_call"

	ComponentWineExecute ComponentType = "wine_execute"
	ComponentWineInstall ComponentType = "wine_install"
	ComponentWineConfig  ComponentType = "wine_config"
)

type ComponentKind string

const (
	KindUI       ComponentKind = "ui"
	KindLogic    ComponentKind = "logic"
	KindEmulator ComponentKind = "wine"
	KindUnknown  ComponentKind = "unknown"
)

// Kind maps a component type onto its family.
func (t ComponentType) Kind() ComponentKind {
	switch t {
	case ComponentButton, ComponentTextInput, ComponentDropdown, ComponentFileUpload:
		return KindUI
	case ComponentConditional, ComponentLoop, ComponentAPICall:
		return KindLogic
	case ComponentWineExecute, ComponentWineInstall, ComponentWineConfig:
		return KindEmulator
	default:
		return KindUnknown
	}
}

func (t ComponentType) Valid() bool { return t.Kind() != KindUnknown }

// Position is a 2D layout hint for the builder canvas.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Component is one node of a workflow.
type Component struct {
	ID        string         `json:"id"                  yaml:"id"`
	Name      string         `json:"name"                yaml:"name"`
	Type      ComponentType  `json:"component_type"      yaml:"component_type"`
	Config    map[string]any `json:"config"              yaml:"config"`
	Position  *Position      `json:"position,omitempty"  yaml:"position,omitempty"`
	ParentID  *string        `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"          yaml:"created_at,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"          yaml:"updated_at,omitempty"`
}

// ComponentInput is the writable part of a Component.
type ComponentInput struct {
	Name     string         `json:"name"`
	Type     ComponentType  `json:"component_type"`
	Config   map[string]any `json:"config"`
	Position *Position      `json:"position,omitempty"`
	ParentID *string        `json:"parent_id,omitempty"`
}

func (in ComponentInput) Validate() error {
	if in.Name == "" {
		return errFieldRequired("name")
	}
	if !in.Type.Valid() {
		return &FieldError{Field: "component_type", Reason: "unknown type " + string(in.Type)}
	}
	return nil
}

// Connection is a directed execution dependency between two components.
type Connection struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// Workflow is a graph of components.
type Workflow struct {
	Name        string         `json:"name,omitempty"      yaml:"name,omitempty"`
	Components  []Component    `json:"components"          yaml:"components"`
	Connections []Connection   `json:"connections"         yaml:"connections"`
	Variables   map[string]any `json:"variables,omitempty" yaml:"variables,omitempty"`
	// OnError is "continue" (default) or "stop".
	OnError     string         `json:"on_error,omitempty"  yaml:"on_error,omitempty"`
}

// ComponentTemplate is a builder palette entry.
type ComponentTemplate struct {
	Type ComponentType `json:"type" yaml:"type"`
	Name string        `json:"name" yaml:"name"`
	Icon string        `json:"icon" yaml:"icon"`
}

// ComponentTemplates groups the palette by family.
type ComponentTemplates struct {
	UI    []ComponentTemplate `json:"ui_components"    yaml:"ui_components"`
	Logic []ComponentTemplate `json:"logic_components" yaml:"logic_components"`
	Wine  []ComponentTemplate `json:"wine_components"  yaml:"wine_components"`
}

func Templates() ComponentTemplates {
	return ComponentTemplates{
		UI: []ComponentTemplate{
			{Type: ComponentButton, Name: "Button", Icon: "🔘"},
			{Type: ComponentTextInput, Name: "Text Input", Icon: "📝"},
			{Type: ComponentDropdown, Name: "Dropdown", Icon: "📋"},
			{Type: ComponentFileUpload, Name: "File Upload", Icon: "📁"},
		},
		Logic: []ComponentTemplate{
			{Type: ComponentConditional, Name: "If/Else", Icon: "🔀"},
			{Type: ComponentLoop, Name: "Loop", Icon: "🔁"},
			{Type: ComponentAPICall, Name: "API Request", Icon: "🌐"},
		},
		Wine: []ComponentTemplate{
			{Type: ComponentWineExecute, Name: "Execute Windows App", Icon: "🍷"},
			{Type: ComponentWineInstall, Name: "Install Application", Icon: "📦"},
			{Type: ComponentWineConfig, Name: "Configure Wine", Icon: "⚙️"},
		},
	}
}
