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
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/eminwux/wemu/internal/errdefs"
	"github.com/eminwux/wemu/pkg/api"
)

func comp(id string, t api.ComponentType, cfg map[string]any) api.Component {
	if cfg == nil {
		cfg = map[string]any{}
	}
	return api.Component{ID: id, Name: strings.ToUpper(id), Type: t, Config: cfg}
}

func edges(pairs ...string) []api.Connection {
	out := make([]api.Connection, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, api.Connection{Source: pairs[i], Target: pairs[i+1]})
	}
	return out
}

func buttons(ids ...string) []api.Component {
	out := make([]api.Component, 0, len(ids))
	for _, id := range ids {
		out = append(out, comp(id, api.ComponentButton, nil))
	}
	return out
}

func Test_Compile_Order(t *testing.T) {
	tests := []struct {
		name  string
		wf    *api.Workflow
		order []string
	}{
		{
			name:  "empty",
			wf:    &api.Workflow{},
			order: []string{},
		},
		{
			name:  "declaration order breaks ties",
			wf:    &api.Workflow{Components: buttons("c", "a", "b")},
			order: []string{"c", "a", "b"},
		},
		{
			name:  "diamond",
			wf:    &api.Workflow{Components: buttons("d", "c", "b", "a"), Connections: edges("a", "b", "a", "c", "b", "d", "c", "d")},
			order: []string{"a", "c", "b", "d"},
		},
		{
			name:  "duplicate edges collapse",
			wf:    &api.Workflow{Components: buttons("a", "b"), Connections: edges("a", "b", "a", "b")},
			order: []string{"a", "b"},
		},
	}
	e := New(Config{}, nil, nil, nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := e.Compile(tt.wf)
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			if !slices.Equal(p.Order, tt.order) && !(len(p.Order) == 0 && len(tt.order) == 0) {
				t.Fatalf("expected '%v'; got: '%v'", tt.order, p.Order)
			}
		})
	}
}

func Test_Compile_Cycle(t *testing.T) {
	e := New(Config{}, nil, nil, nil, nil)
	wf := &api.Workflow{
		Components:  buttons("start", "a", "b", "c"),
		Connections: edges("start", "a", "a", "b", "b", "c", "c", "a"),
	}
	err := e.Validate(wf)
	if !errors.Is(err, errdefs.ErrCycleDetected) || !IsCycle(err) {
		t.Fatalf("expected '%v'; got: '%v'", errdefs.ErrCycleDetected, err)
	}
	if !strings.Contains(err.Error(), "a, b, c") || strings.Contains(err.Error(), "start") {
		t.Fatalf("error should name the residual components; got %q", err)
	}
}

func Test_Compile_Invalid(t *testing.T) {
	e := New(Config{MaxLoopIterations: 5}, nil, nil, nil, nil)
	tests := []struct {
		name string
		wf   *api.Workflow
	}{
		{"nil workflow", nil},
		{"missing id", &api.Workflow{Components: []api.Component{comp("", api.ComponentButton, nil)}}},
		{"duplicate id", &api.Workflow{Components: buttons("a", "a")}},
		{"unknown type", &api.Workflow{Components: []api.Component{comp("a", "teleport", nil)}}},
		{"unknown source", &api.Workflow{Components: buttons("a"), Connections: edges("x", "a")}},
		{"unknown target", &api.Workflow{Components: buttons("a"), Connections: edges("a", "x")}},
		{"self loop", &api.Workflow{Components: buttons("a"), Connections: edges("a", "a")}},
		{"bad policy", &api.Workflow{Components: buttons("a"), OnError: "explode"}},
		{"conditional without expression", &api.Workflow{Components: []api.Component{
			comp("c", api.ComponentConditional, nil),
		}}},
		{"conditional bad expression", &api.Workflow{Components: []api.Component{
			comp("c", api.ComponentConditional, map[string]any{"expression": "vars.x >"}),
		}}},
		{"conditional target not connected", &api.Workflow{
			Components: []api.Component{
				comp("c", api.ComponentConditional, map[string]any{"expression": "true", "true_target": "b"}),
				comp("b", api.ComponentButton, nil),
			},
		}},
		{"loop without bound", &api.Workflow{Components: []api.Component{comp("l", api.ComponentLoop, nil)}}},
		{"loop over cap", &api.Workflow{Components: []api.Component{
			comp("l", api.ComponentLoop, map[string]any{"iterations": 6}),
		}}},
		{"loop fractional", &api.Workflow{Components: []api.Component{
			comp("l", api.ComponentLoop, map[string]any{"iterations": 2.5}),
		}}},
		{"loop count and while", &api.Workflow{Components: []api.Component{
			comp("l", api.ComponentLoop, map[string]any{"iterations": 2, "while": "true"}),
		}}},
		{"api call without url", &api.Workflow{Components: []api.Component{comp("h", api.ComponentAPICall, nil)}}},
		{"api call bad method", &api.Workflow{Components: []api.Component{
			comp("h", api.ComponentAPICall, map[string]any{"url": "http://x", "method": "BREW"}),
		}}},
		{"execute without command", &api.Workflow{Components: []api.Component{comp("w", api.ComponentWineExecute, nil)}}},
		{"install without installer", &api.Workflow{Components: []api.Component{comp("w", api.ComponentWineInstall, nil)}}},
		{"config bad registry", &api.Workflow{Components: []api.Component{
			comp("w", api.ComponentWineConfig, map[string]any{"registry": "HKCU"}),
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := e.Validate(tt.wf); !errors.Is(err, errdefs.ErrInvalid) {
				t.Fatalf("expected '%v'; got: '%v'", errdefs.ErrInvalid, err)
			}
		})
	}
}

func Test_Plan_LoopBody(t *testing.T) {
	e := New(Config{}, nil, nil, nil, nil)
	wf := &api.Workflow{
		Components: []api.Component{
			comp("start", api.ComponentButton, nil),
			comp("loop", api.ComponentLoop, map[string]any{"iterations": 3}),
			comp("x", api.ComponentButton, nil),
			comp("y", api.ComponentButton, nil),
			comp("after", api.ComponentButton, nil),
		},
		Connections: edges("start", "loop", "loop", "x", "x", "y", "start", "after"),
	}
	p, err := e.Compile(wf)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if body := p.Body("loop"); !slices.Equal(body, []string{"x", "y"}) {
		t.Fatalf("expected '%v'; got: '%v'", []string{"x", "y"}, body)
	}
	if p.Body("start") != nil {
		t.Fatalf("non-loop components have no body")
	}
}

func Test_Plan_LoopBodyExcludesOuterJoin(t *testing.T) {
	e := New(Config{}, nil, nil, nil, nil)
	wf := &api.Workflow{
		Components: []api.Component{
			comp("a", api.ComponentButton, nil),
			comp("loop", api.ComponentLoop, map[string]any{"iterations": 2}),
			comp("b", api.ComponentButton, nil),
			comp("c", api.ComponentButton, nil),
			comp("d", api.ComponentButton, nil),
			comp("e", api.ComponentButton, nil),
		},
		Connections: edges("a", "loop", "loop", "b", "b", "d", "c", "d", "d", "e", "a", "b"),
	}
	p, err := e.Compile(wf)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if body := p.Body("loop"); !slices.Equal(body, []string{"b"}) {
		t.Fatalf("expected '%v'; got: '%v'", []string{"b"}, body)
	}
}
