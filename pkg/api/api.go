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

import "context"

// SessionController is the session surface exposed to the HTTP layer and CLI.
type SessionController interface {
	Create(ctx context.Context, req CreateSessionRequest) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	List(ctx context.Context, status SessionStatus) ([]*Session, error)
	Terminate(ctx context.Context, id string) (*Session, error)
	SweepExpired(ctx context.Context) ([]string, error)
}

// WorkflowController compiles and runs workflows.
type WorkflowController interface {
	Validate(wf *Workflow) error
	Execute(ctx context.Context, wf *Workflow) (*WorkflowResult, error)
}

// Empty is used where an operation has no payload.
type Empty struct{}

// Message is the generic acknowledgement body.
type Message struct {
	Message string `json:"message"`
}

// ErrorBody is returned by the HTTP API on failure.
type ErrorBody struct {
	Error string `json:"error"`
}
