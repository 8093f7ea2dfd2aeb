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

// Package workflow compiles component graphs into a topological plan and
// runs them against the emulator.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/eminwux/wemu/internal/dispatcher"
	"github.com/eminwux/wemu/internal/errdefs"
	"github.com/eminwux/wemu/internal/logging"
	"github.com/eminwux/wemu/internal/metrics"
	"github.com/eminwux/wemu/internal/naming"
	"github.com/eminwux/wemu/pkg/api"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

const (
	DefaultMaxLoopIterations = 100
	DefaultTimeout           = 10 * time.Minute
)

type Policy int

const (
	// ContinueOnError keeps running after a failed component. Its outgoing
	// edges stay active.
	ContinueOnError Policy = iota
	// StopOnError skips everything after the first failure.
	StopOnError
)

func (p Policy) String() string {
	if p == StopOnError {
		return "stop"
	}
	return "continue"
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "continue", "continue_on_error":
		return ContinueOnError, nil
	case "stop", "stop_on_error":
		return StopOnError, nil
	default:
		return ContinueOnError, invalid("unknown on_error policy %q", s)
	}
}

const (
	reasonInactive  = "no active incoming edge"
	reasonStopped   = "stopped"
	reasonCancelled = "cancelled"
	reasonLoopIdle  = "loop ran zero iterations"
)

type Config struct {
	MaxLoopIterations int
	// Timeout bounds a whole run. Zero means DefaultTimeout.
	Timeout time.Duration
}

type Engine struct {
	cfg      Config
	disp     dispatcher.Dispatcher
	client   *http.Client
	logger   *slog.Logger
	metrics  *metrics.Metrics
	handlers map[api.ComponentType]Handler

	Now      func() time.Time
	NewRunID func() string
}

var _ api.WorkflowController = (*Engine)(nil)

// New returns an engine. disp may be nil, in which case emulator
// components fail.
func New(cfg Config, disp dispatcher.Dispatcher, client *http.Client, logger *slog.Logger, m *metrics.Metrics) *Engine {
	if cfg.MaxLoopIterations <= 0 {
		cfg.MaxLoopIterations = DefaultMaxLoopIterations
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	e := &Engine{
		cfg:      cfg,
		disp:     disp,
		client:   client,
		logger:   logger,
		metrics:  m,
		handlers: make(map[api.ComponentType]Handler),
		Now:      func() time.Time { return time.Now().UTC() },
		NewRunID: naming.RandomID,
	}
	e.registerDefaults()
	return e
}

// Register replaces the handler for a non-logic component type.
func (e *Engine) Register(t api.ComponentType, h Handler) {
	e.handlers[t] = h
}

func (e *Engine) Compile(wf *api.Workflow) (*Plan, error) {
	return compile(wf, e.cfg.MaxLoopIterations)
}

func (e *Engine) Validate(wf *api.Workflow) error {
	_, err := e.Compile(wf)
	return err
}

// Execute compiles wf and runs it. Compile errors return no result. A run
// always yields a result, even when components fail or ctx ends.
func (e *Engine) Execute(ctx context.Context, wf *api.Workflow) (*api.WorkflowResult, error) {
	plan, err := e.Compile(wf)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, plan), nil
}

type run struct {
	e      *Engine
	plan   *Plan
	state  *State
	logger *slog.Logger

	status   map[string]api.NodeStatus
	outcomes map[string]*api.ComponentOutcome
	// inactive[src][dst] marks an edge closed by a conditional.
	inactive map[string]map[string]bool
	order    []string
	stopped  bool
}

// Run executes an already compiled plan.
func (e *Engine) Run(ctx context.Context, plan *Plan) *api.WorkflowResult {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	name := plan.Workflow.Name
	if name == "" {
		name = naming.RandomName()
	}
	runID := e.NewRunID()
	r := &run{
		e:        e,
		plan:     plan,
		state:    NewState(plan.Workflow.Variables),
		logger:   e.logger.With("run_id", runID, "workflow", name),
		status:   make(map[string]api.NodeStatus, len(plan.Order)),
		outcomes: make(map[string]*api.ComponentOutcome, len(plan.Order)),
		inactive: make(map[string]map[string]bool),
	}
	for _, id := range plan.Order {
		c := plan.nodes[id].comp
		r.status[id] = api.NodePending
		r.outcomes[id] = &api.ComponentOutcome{ID: id, Name: c.Name, Type: c.Type, Status: api.NodePending}
	}

	started := e.Now()
	r.logger.InfoContext(ctx, "workflow started", "components", len(plan.Order), "policy", plan.Policy)
	r.sequence(ctx, plan.Order)
	cancelled := ctx.Err() != nil

	res := &api.WorkflowResult{
		RunID:      runID,
		Name:       name,
		Order:      r.order,
		Outcomes:   make([]api.ComponentOutcome, 0, len(plan.Order)),
		State:      r.state.Snapshot(),
		StartedAt:  started,
		FinishedAt: e.Now(),
	}
	if res.Order == nil {
		res.Order = []string{}
	}
	for _, id := range plan.Order {
		o := r.outcomes[id]
		if o.Status == api.NodePending {
			o.Status = api.NodeSkipped
			o.Reason = reasonCancelled
		}
		switch o.Status {
		case api.NodeExecuted:
			res.Executed++
		case api.NodeFailed:
			res.Failed++
		case api.NodeSkipped:
			res.Skipped++
		case api.NodePending:
		}
		e.metrics.WorkflowNode(string(o.Type), string(o.Status))
		res.Outcomes = append(res.Outcomes, *o)
	}

	switch {
	case cancelled:
		res.Status = api.RunCancelled
	case res.Failed > 0 && res.Executed == 0:
		res.Status = api.RunFailed
	case res.Failed > 0:
		res.Status = api.RunPartial
	default:
		res.Status = api.RunSucceeded
	}
	e.metrics.WorkflowRun(string(res.Status))
	r.logger.InfoContext(ctx, "workflow finished", "status", res.Status,
		"executed", res.Executed, "skipped", res.Skipped, "failed", res.Failed)
	return res
}

// sequence visits ids in order. Components consumed by a loop earlier in
// the same sequence are not visited again.
func (r *run) sequence(ctx context.Context, ids []string) {
	consumed := map[string]bool{}
	for _, id := range ids {
		if consumed[id] {
			continue
		}
		r.visit(ctx, id)
		if n := r.plan.nodes[id]; n.comp.Type == api.ComponentLoop {
			for _, b := range n.body {
				consumed[b] = true
			}
		}
	}
}

func (r *run) skip(id, reason string) {
	r.status[id] = api.NodeSkipped
	o := r.outcomes[id]
	if o.Status != api.NodeFailed && o.Status != api.NodeExecuted {
		o.Status = api.NodeSkipped
		o.Reason = reason
	}
}

// eligible reports whether every predecessor of id has been visited and at
// least one incoming edge is active.
func (r *run) eligible(id string) bool {
	in := r.plan.nodes[id].in
	if len(in) == 0 {
		return true
	}
	active := false
	for _, src := range in {
		switch r.status[src] {
		case api.NodeExecuted, api.NodeFailed:
			if !r.inactive[src][id] {
				active = true
			}
		case api.NodePending:
			return false
		case api.NodeSkipped:
		}
	}
	return active
}

func (r *run) visit(ctx context.Context, id string) {
	n := r.plan.nodes[id]
	switch {
	case ctx.Err() != nil:
		r.skip(id, reasonCancelled)
		r.skipBody(n, reasonCancelled)
		return
	case r.stopped:
		r.skip(id, reasonStopped)
		r.skipBody(n, reasonStopped)
		return
	case !r.eligible(id):
		r.skip(id, reasonInactive)
		r.skipBody(n, reasonInactive)
		return
	}

	logger := r.logger.With("node_id", id, "type", n.comp.Type)
	logger.DebugContext(ctx, "component started")

	start := time.Now()
	var (
		out any
		err error
	)
	switch n.comp.Type {
	case api.ComponentConditional:
		out, err = r.conditional(n)
	case api.ComponentLoop:
		out, err = r.loop(ctx, n)
	default:
		h, ok := r.e.handlers[n.comp.Type]
		if !ok {
			err = fmt.Errorf("no handler for %s", n.comp.Type)
			break
		}
		out, err = h(ctx, n.comp, r.state)
	}
	elapsed := time.Since(start)

	r.order = append(r.order, id)
	o := r.outcomes[id]
	o.Runs++
	o.DurationMS += elapsed.Milliseconds()
	if out != nil {
		r.state.SetOutput(id, out)
		o.Output, _ = r.state.Output(id)
	}

	if err != nil {
		r.status[id] = api.NodeFailed
		o.Status = api.NodeFailed
		o.Reason = ""
		o.Error = err.Error()
		logger.WarnContext(ctx, "component failed", "error", err)
		if r.plan.Policy == StopOnError {
			r.stopped = true
		}
		return
	}
	r.status[id] = api.NodeExecuted
	if o.Status != api.NodeFailed {
		o.Status = api.NodeExecuted
		o.Reason = ""
	}
	logger.DebugContext(ctx, "component done", "elapsed", elapsed)
}

func (r *run) skipBody(n *node, reason string) {
	for _, b := range n.body {
		r.skip(b, reason)
	}
}

func evalBool(prog *vm.Program, env map[string]any) (bool, error) {
	v, err := expr.Run(prog, env)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("expression returned %T, want bool", v)
	}
	return b, nil
}

func (r *run) conditional(n *node) (any, error) {
	id := n.comp.ID
	result, err := evalBool(n.cond, r.state.env())
	if err != nil {
		delete(r.inactive, id)
		return nil, err
	}

	closed := map[string]bool{}
	switch {
	case n.trueTarget != "" || n.falseTarget != "":
		chosen, other := n.trueTarget, n.falseTarget
		if !result {
			chosen, other = other, chosen
		}
		if other != "" && other != chosen {
			closed[other] = true
		}
	case !result:
		for _, dst := range n.out {
			closed[dst] = true
		}
	}
	r.inactive[id] = closed
	return map[string]any{"result": result}, nil
}

// loop re-runs the body once per iteration. A while loop stops at the
// configured cap.
func (r *run) loop(ctx context.Context, n *node) (any, error) {
	id := n.comp.ID
	limit := n.iterations
	if n.while != nil {
		limit = r.e.cfg.MaxLoopIterations
	}

	// the loop node itself counts as executed while its body runs
	r.status[id] = api.NodeExecuted

	done := 0
	capped := false
	for i := 0; i < limit; i++ {
		if ctx.Err() != nil || r.stopped {
			break
		}
		r.state.setLoop(id, i)
		if n.while != nil {
			ok, err := evalBool(n.while, r.state.env())
			if err != nil {
				return map[string]any{"iterations": done}, fmt.Errorf("while: %w", err)
			}
			if !ok {
				break
			}
			if i == limit-1 {
				capped = true
			}
		}
		for _, b := range n.body {
			r.status[b] = api.NodePending
		}
		r.sequence(ctx, n.body)
		done++
	}
	if capped {
		r.logger.WarnContext(ctx, "loop reached iteration cap", "node_id", id, "cap", limit)
	}
	if done == 0 {
		r.skipBody(n, reasonLoopIdle)
	}
	return map[string]any{"iterations": done, "capped": capped}, nil
}

// IsCycle reports whether err is a cycle rejection.
func IsCycle(err error) bool { return errors.Is(err, errdefs.ErrCycleDetected) }
