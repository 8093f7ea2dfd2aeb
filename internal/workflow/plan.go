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
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/eminwux/wemu/internal/errdefs"
	"github.com/eminwux/wemu/pkg/api"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Plan is a validated workflow with its execution order.
type Plan struct {
	Workflow *api.Workflow
	// Order lists component ids in topological order. Ties keep
	// declaration order.
	Order  []string
	Policy Policy

	nodes map[string]*node
}

type node struct {
	comp  *api.Component
	index int
	in    []string
	out   []string

	cond        *vm.Program
	trueTarget  string
	falseTarget string

	iterations int
	while      *vm.Program
	body       []string
}

// Body returns the ids a loop component re-executes, in plan order.
func (p *Plan) Body(id string) []string {
	if n, ok := p.nodes[id]; ok {
		return slices.Clone(n.body)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errdefs.ErrInvalid, fmt.Sprintf(format, args...))
}

// exprEnv is the shape expressions are checked against. Every value is a
// map so member access on unknown keys compiles.
func exprEnv() map[string]any {
	return map[string]any{
		"vars":  map[string]any{},
		"nodes": map[string]any{},
		"loops": map[string]any{},
		"state": map[string]any{},
	}
}

func compileExpr(id, field, src string) (*vm.Program, error) {
	prog, err := expr.Compile(src, expr.Env(exprEnv()))
	if err != nil {
		return nil, invalid("component %q: %s: %v", id, field, err)
	}
	return prog, nil
}

func compile(wf *api.Workflow, maxLoop int) (*Plan, error) {
	if wf == nil {
		return nil, invalid("workflow is nil")
	}
	policy, err := ParsePolicy(wf.OnError)
	if err != nil {
		return nil, err
	}

	p := &Plan{Workflow: wf, Policy: policy, nodes: make(map[string]*node, len(wf.Components))}
	ids := make([]string, 0, len(wf.Components))
	for i := range wf.Components {
		c := &wf.Components[i]
		if strings.TrimSpace(c.ID) == "" {
			return nil, invalid("component #%d has no id", i)
		}
		if _, dup := p.nodes[c.ID]; dup {
			return nil, invalid("duplicate component id %q", c.ID)
		}
		if !c.Type.Valid() {
			return nil, invalid("component %q has unknown type %q", c.ID, c.Type)
		}
		p.nodes[c.ID] = &node{comp: c, index: i}
		ids = append(ids, c.ID)
	}

	seen := make(map[api.Connection]bool, len(wf.Connections))
	for _, e := range wf.Connections {
		src, ok := p.nodes[e.Source]
		if !ok {
			return nil, invalid("connection source %q is not a component", e.Source)
		}
		dst, ok := p.nodes[e.Target]
		if !ok {
			return nil, invalid("connection target %q is not a component", e.Target)
		}
		if e.Source == e.Target {
			return nil, invalid("component %q is connected to itself", e.Source)
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		src.out = append(src.out, e.Target)
		dst.in = append(dst.in, e.Source)
	}

	for _, id := range ids {
		if err := p.nodes[id].configure(maxLoop); err != nil {
			return nil, err
		}
	}

	order, residual := p.topoSort(ids)
	if len(residual) > 0 {
		return nil, fmt.Errorf("%w: unresolved components %s", errdefs.ErrCycleDetected, strings.Join(residual, ", "))
	}
	p.Order = order

	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	for _, id := range order {
		n := p.nodes[id]
		if n.comp.Type == api.ComponentLoop {
			n.body = p.loopBody(id, order, pos)
		}
	}
	return p, nil
}

// topoSort is Kahn's algorithm. The ready set is kept ordered by
// declaration index so the result is deterministic.
func (p *Plan) topoSort(ids []string) ([]string, []string) {
	inDegree := make(map[string]int, len(ids))
	for _, id := range ids {
		inDegree[id] = len(p.nodes[id].in)
	}

	ready := make([]*node, 0, len(ids))
	for _, id := range ids {
		if inDegree[id] == 0 {
			ready = append(ready, p.nodes[id])
		}
	}

	order := make([]string, 0, len(ids))
	for len(ready) > 0 {
		cur := ready[0]
		ready = ready[1:]
		order = append(order, cur.comp.ID)
		for _, next := range cur.out {
			inDegree[next]--
			if inDegree[next] == 0 {
				n := p.nodes[next]
				at, _ := slices.BinarySearchFunc(ready, n.index, func(r *node, idx int) int { return r.index - idx })
				ready = slices.Insert(ready, at, n)
			}
		}
	}

	var residual []string
	if len(order) != len(ids) {
		for _, id := range ids {
			if inDegree[id] > 0 {
				residual = append(residual, id)
			}
		}
	}
	return order, residual
}

// loopBody collects the components downstream of a loop whose every
// predecessor is the loop, another body component, or ordered before the
// loop. Anything else waits for the outer pass, along with its successors.
func (p *Plan) loopBody(loop string, order []string, pos map[string]int) []string {
	member := map[string]bool{loop: true}
	var body []string
	for _, id := range order[pos[loop]+1:] {
		fed := false
		ok := true
		for _, src := range p.nodes[id].in {
			switch {
			case member[src]:
				fed = true
			case pos[src] < pos[loop]:
			default:
				ok = false
			}
		}
		if fed && ok {
			member[id] = true
			body = append(body, id)
		}
	}
	return body
}

//nolint:gochecknoglobals // lookup table
var httpMethods = map[string]bool{
	http.MethodGet: true, http.MethodPost: true, http.MethodPut: true,
	http.MethodPatch: true, http.MethodDelete: true, http.MethodHead: true,
}

func (n *node) configure(maxLoop int) error {
	c := n.comp
	cfg := c.Config
	switch c.Type {
	case api.ComponentConditional:
		src := configString(cfg, "expression")
		if src == "" {
			return invalid("component %q: expression is required", c.ID)
		}
		prog, err := compileExpr(c.ID, "expression", src)
		if err != nil {
			return err
		}
		n.cond = prog
		n.trueTarget = configString(cfg, "true_target")
		n.falseTarget = configString(cfg, "false_target")
		for _, t := range []string{n.trueTarget, n.falseTarget} {
			if t != "" && !slices.Contains(n.out, t) {
				return invalid("component %q: branch target %q is not a direct successor", c.ID, t)
			}
		}

	case api.ComponentLoop:
		iterations, hasCount, err := configInt(cfg, "iterations")
		if err != nil {
			return invalid("component %q: iterations: %v", c.ID, err)
		}
		cond := configString(cfg, "while")
		switch {
		case hasCount && cond != "":
			return invalid("component %q: set either iterations or while, not both", c.ID)
		case hasCount:
			if iterations < 0 || iterations > maxLoop {
				return invalid("component %q: iterations must be between 0 and %d, got %d", c.ID, maxLoop, iterations)
			}
			n.iterations = iterations
		case cond != "":
			prog, err := compileExpr(c.ID, "while", cond)
			if err != nil {
				return err
			}
			n.while = prog
		default:
			return invalid("component %q: loop needs iterations or while", c.ID)
		}

	case api.ComponentAPICall:
		if configString(cfg, "url") == "" {
			return invalid("component %q: url is required", c.ID)
		}
		if m := strings.ToUpper(configString(cfg, "method")); m != "" && !httpMethods[m] {
			return invalid("component %q: unsupported method %q", c.ID, m)
		}
		if _, _, err := configInt(cfg, "timeout_seconds"); err != nil {
			return invalid("component %q: timeout_seconds: %v", c.ID, err)
		}

	case api.ComponentWineExecute:
		if configString(cfg, "command") == "" {
			return invalid("component %q: command is required", c.ID)
		}

	case api.ComponentWineInstall:
		if configString(cfg, "installer") == "" {
			return invalid("component %q: installer is required", c.ID)
		}

	case api.ComponentWineConfig:
		if _, err := registryEntries(cfg); err != nil {
			return invalid("component %q: registry: %v", c.ID, err)
		}

	case api.ComponentButton, api.ComponentTextInput, api.ComponentDropdown, api.ComponentFileUpload:
	}
	return nil
}
