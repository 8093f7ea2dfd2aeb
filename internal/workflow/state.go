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
	"encoding/json"
	"maps"
	"sync"
)

// State is the mutable context of one run. Handlers read variables and
// earlier outputs from it and publish their own output under their id.
type State struct {
	mu    sync.RWMutex
	vars  map[string]any
	nodes map[string]any
	loops map[string]any
}

func NewState(vars map[string]any) *State {
	s := &State{
		vars:  make(map[string]any, len(vars)),
		nodes: make(map[string]any),
		loops: make(map[string]any),
	}
	for k, v := range vars {
		s.vars[k] = plain(v)
	}
	return s
}

func (s *State) Var(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vars[key]
	return v, ok
}

func (s *State) SetVar(key string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars[key] = plain(v)
}

func (s *State) Output(id string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.nodes[id]
	return v, ok
}

func (s *State) SetOutput(id string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[id] = plain(v)
}

func (s *State) LoopIndex(id string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.loops[id].(int)
	return v, ok
}

func (s *State) setLoop(id string, i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loops[id] = i
}

// env is the expression environment. The maps are copies.
func (s *State) env() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vars, nodes, loops := maps.Clone(s.vars), maps.Clone(s.nodes), maps.Clone(s.loops)
	return map[string]any{
		"vars":  vars,
		"nodes": nodes,
		"loops": loops,
		"state": map[string]any{"vars": vars, "nodes": nodes, "loops": loops},
	}
}

// Snapshot returns the state as plain maps.
func (s *State) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{
		"vars":  maps.Clone(s.vars),
		"nodes": maps.Clone(s.nodes),
		"loops": maps.Clone(s.loops),
	}
}

// plain turns structs into the JSON shape expressions address them by.
func plain(v any) any {
	switch v.(type) {
	case nil, string, bool, int, int64, float64, map[string]any, []any:
		return v
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}
