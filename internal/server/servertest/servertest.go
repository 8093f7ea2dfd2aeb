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

// Package servertest starts an in-memory API server for tests.
package servertest

import (
	"net/http/httptest"
	"testing"

	"github.com/eminwux/wemu/internal/dispatcher"
	"github.com/eminwux/wemu/internal/server"
	"github.com/eminwux/wemu/internal/session"
	"github.com/eminwux/wemu/internal/slotpool"
	"github.com/eminwux/wemu/internal/store"
	"github.com/eminwux/wemu/internal/workflow"
)

type Server struct {
	*httptest.Server
	Store    store.Store
	Emulator *dispatcher.Fake
	Sessions *session.Manager
}

// New serves the full API over a memory store, a pool of slots slots and
// disp. A nil disp is replaced by dispatcher.NewOKFake().
func New(t *testing.T, slots int, disp *dispatcher.Fake) *Server {
	t.Helper()
	if disp == nil {
		disp = dispatcher.NewOKFake()
	}
	pool, err := slotpool.New(slotpool.Config{Base: 1, Size: slots, VNCBasePort: 5900})
	if err != nil {
		t.Fatalf("slotpool.New: %v", err)
	}
	st := store.NewMemStore()
	mgr := session.NewManager(session.Config{}, st, pool, disp, nil, nil)
	srv := server.New(server.Deps{
		Store:     st,
		Sessions:  mgr,
		Workflows: workflow.New(workflow.Config{}, disp, nil, nil, nil),
		Emulator:  disp,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &Server{Server: ts, Store: st, Emulator: disp, Sessions: mgr}
}
