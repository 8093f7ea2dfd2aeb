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

package client

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/eminwux/wemu/internal/dispatcher"
	"github.com/eminwux/wemu/internal/errdefs"
	"github.com/eminwux/wemu/internal/server/servertest"
	"github.com/eminwux/wemu/pkg/api"
)

func newTestClient(t *testing.T, disp *dispatcher.Fake) Client {
	t.Helper()
	ts := servertest.New(t, 2, disp)
	return New(ts.URL+"/", WithHTTPClient(ts.Client()))
}

func Test_Sessions(t *testing.T) {
	c := newTestClient(t, dispatcher.NewOKFake())
	ctx := context.Background()

	if err := c.Health(ctx); err != nil {
		t.Fatalf("expected '%v'; got: '%v'", nil, err)
	}

	s, err := c.CreateSession(ctx, api.CreateSessionRequest{DurationMinutes: 5})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if s.Status != api.SessionActive || s.Slot == 0 {
		t.Fatalf("expected '%v'; got: '%v'", api.SessionActive, s)
	}

	got, err := c.GetSession(ctx, s.ID)
	if err != nil || got.ID != s.ID {
		t.Fatalf("expected '%v'; got: '%v' (%v)", s.ID, got, err)
	}

	list, err := c.ListSessions(ctx, api.SessionActive)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected '%v'; got: '%v' (%v)", 1, len(list), err)
	}

	term, err := c.TerminateSession(ctx, s.ID)
	if err != nil || term.Status != api.SessionTerminated {
		t.Fatalf("expected '%v'; got: '%v' (%v)", api.SessionTerminated, term, err)
	}

	_, err = c.GetSession(ctx, "missing")
	if !IsNotFound(err) {
		t.Fatalf("expected '%v'; got: '%v'", "not found", err)
	}
	if !errors.Is(err, errdefs.ErrRemote) {
		t.Fatalf("expected '%v'; got: '%v'", errdefs.ErrRemote, err)
	}

	_, err = c.ListSessions(ctx, "bogus")
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnprocessableEntity || apiErr.Message == "" {
		t.Fatalf("expected '%v'; got: '%v'", http.StatusUnprocessableEntity, err)
	}
}

func Test_Applications(t *testing.T) {
	c := newTestClient(t, dispatcher.NewOKFake())
	ctx := context.Background()

	a, err := c.CreateApplication(ctx, api.ApplicationInput{Name: "notepad", ExecutablePath: "notepad.exe"})
	if err != nil {
		t.Fatalf("CreateApplication: %v", err)
	}
	apps, err := c.ListApplications(ctx, 0, 10)
	if err != nil || len(apps) != 1 || apps[0].ID != a.ID {
		t.Fatalf("expected '%v'; got: '%v' (%v)", a.ID, apps, err)
	}
	apps, err = c.ListApplications(ctx, 1, 10)
	if err != nil || len(apps) != 0 {
		t.Fatalf("expected '%v'; got: '%v' (%v)", 0, len(apps), err)
	}
}

func Test_EmulatorStatus(t *testing.T) {
	disp := dispatcher.NewOKFake()
	c := newTestClient(t, disp)
	ctx := context.Background()

	st, err := c.EmulatorStatus(ctx)
	if err != nil || !st.Available() {
		t.Fatalf("expected '%v'; got: '%v' (%v)", api.EmulatorRunning, st, err)
	}

	disp.StatusFunc = func(context.Context) api.EmulatorStatus {
		return api.EmulatorStatus{Status: api.EmulatorUnavailable, Error: "refused"}
	}
	st, err = c.EmulatorStatus(ctx)
	if err != nil {
		t.Fatalf("expected '%v'; got: '%v'", nil, err)
	}
	if st.Status != api.EmulatorUnavailable || st.Error != "refused" {
		t.Fatalf("expected '%v'; got: '%v'", "refused", st)
	}

	info, err := c.EmulatorInfo(ctx)
	if err != nil || info.Arch != "win64" {
		t.Fatalf("expected '%v'; got: '%v' (%v)", "win64", info, err)
	}
}

func Test_Workflow(t *testing.T) {
	c := newTestClient(t, dispatcher.NewOKFake())
	ctx := context.Background()

	wf := &api.Workflow{
		Components: []api.Component{
			{ID: "a", Type: api.ComponentButton},
			{ID: "b", Type: api.ComponentWineExecute, Config: map[string]any{"command": "notepad"}},
		},
		Connections: []api.Connection{{Source: "a", Target: "b"}},
	}
	v, err := c.ValidateWorkflow(ctx, wf)
	if err != nil || !v.Valid || len(v.Order) != 2 {
		t.Fatalf("expected '%v'; got: '%v' (%v)", "valid", v, err)
	}
	res, err := c.ExecuteWorkflow(ctx, wf)
	if err != nil || res.Executed != 2 {
		t.Fatalf("expected '%v'; got: '%v' (%v)", 2, res, err)
	}

	wf.Connections = append(wf.Connections, api.Connection{Source: "b", Target: "a"})
	if _, err := c.ValidateWorkflow(ctx, wf); err == nil {
		t.Fatalf("expected '%v'; got: '%v'", "cycle error", err)
	}

	tpl, err := c.Templates(ctx)
	if err != nil || len(tpl.Wine) != 3 {
		t.Fatalf("expected '%v'; got: '%v' (%v)", 3, tpl, err)
	}
}
