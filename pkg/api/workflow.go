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

type NodeStatus string

const (
	NodePending  NodeStatus = "pending"
	NodeExecuted NodeStatus = "executed"
	NodeSkipped  NodeStatus = "skipped"
	NodeFailed   NodeStatus = "failed"
)

type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// ComponentOutcome reports what happened to one component during a run.
type ComponentOutcome struct {
	ID         string        `json:"id"                    yaml:"id"`
	Name       string        `json:"name,omitempty"        yaml:"name,omitempty"`
	Type       ComponentType `json:"component_type"        yaml:"component_type"`
	Status     NodeStatus    `json:"status"                yaml:"status"`
	Reason     string        `json:"reason,omitempty"      yaml:"reason,omitempty"`
	Error      string        `json:"error,omitempty"       yaml:"error,omitempty"`
	Runs       int           `json:"runs"                  yaml:"runs"`
	DurationMS int64         `json:"duration_ms"           yaml:"duration_ms"`
	Output     any           `json:"output,omitempty"      yaml:"output,omitempty"`
}

// WorkflowResult is the per-run report.
type WorkflowResult struct {
	RunID      string             `json:"run_id"              yaml:"run_id"`
	Name       string             `json:"name,omitempty"      yaml:"name,omitempty"`
	Status     RunStatus          `json:"status"              yaml:"status"`
	Executed   int                `json:"components_executed" yaml:"components_executed"`
	Skipped    int                `json:"components_skipped"  yaml:"components_skipped"`
	Failed     int                `json:"components_failed"   yaml:"components_failed"`
	Order      []string           `json:"order"               yaml:"order"`
	Outcomes   []ComponentOutcome `json:"outcomes"            yaml:"outcomes"`
	State      map[string]any     `json:"state,omitempty"     yaml:"state,omitempty"`
	StartedAt  time.Time          `json:"started_at"          yaml:"started_at"`
	FinishedAt time.Time          `json:"finished_at"         yaml:"finished_at"`
}

// Outcome returns the outcome recorded for a component id.
func (r *WorkflowResult) Outcome(id string) (ComponentOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.ID == id {
			return o, true
		}
	}
	return ComponentOutcome{}, false
}

// WorkflowValidation reports a successful compile and its execution order.
type WorkflowValidation struct {
	Valid bool     `json:"valid"           yaml:"valid"`
	Order []string `json:"order,omitempty" yaml:"order,omitempty"`
}
