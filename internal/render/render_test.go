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

package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/eminwux/wemu/internal/errdefs"
	"github.com/eminwux/wemu/pkg/api"
	"gopkg.in/yaml.v3"
)

func sampleSessions() []*api.Session {
	appID := int64(7)
	exp := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)
	return []*api.Session{
		{
			ID: "s-live", ApplicationID: &appID, Slot: 1, VNCPort: 5901, Status: api.SessionActive,
			Metadata:  api.SessionMetadata{Display: ":1", DurationMinutes: 60},
			ExpiresAt: &exp,
		},
		{ID: "s-done", Slot: 2, VNCPort: 5902, Status: api.SessionTerminated},
	}
}

func Test_CheckFormat(t *testing.T) {
	for _, f := range []string{"", "json", "yaml"} {
		if err := CheckFormat(f); err != nil {
			t.Fatalf("expected '%v'; got: '%v'", nil, err)
		}
	}
	if err := CheckFormat("xml"); !errors.Is(err, errdefs.ErrInvalidOutputFormat) {
		t.Fatalf("expected '%v'; got: '%v'", errdefs.ErrInvalidOutputFormat, err)
	}
}

func Test_Print(t *testing.T) {
	sess := sampleSessions()[0]

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Print(&buf, sess, FormatJSON); err != nil {
			t.Fatalf("Print: %v", err)
		}
		var got api.Session
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.ID != sess.ID || got.Metadata.Display != ":1" {
			t.Fatalf("expected '%v'; got: '%v'", sess.ID, got)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Print(&buf, sess, FormatYAML); err != nil {
			t.Fatalf("Print: %v", err)
		}
		var got map[string]any
		if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got["session_id"] != "s-live" || got["status"] != "active" {
			t.Fatalf("expected '%v'; got: '%v'", "s-live", got)
		}
	})

	t.Run("human", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Print(&buf, sess, FormatHuman); err != nil {
			t.Fatalf("Print: %v", err)
		}
		out := buf.String()
		for _, want := range []string{"session_id: s-live", "status: active", "  display: :1", "expires_at: 2025-06-01T11:00:00Z"} {
			if !strings.Contains(out, want) {
				t.Fatalf("expected '%v'; got: '%v'", want, out)
			}
		}
		if strings.Contains(out, "user_id") {
			t.Fatalf("expected '%v'; got: '%v'", "no empty user_id", out)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if err := Print(&bytes.Buffer{}, sess, "toml"); !errors.Is(err, errdefs.ErrInvalidOutputFormat) {
			t.Fatalf("expected '%v'; got: '%v'", errdefs.ErrInvalidOutputFormat, err)
		}
	})
}

func Test_Sessions(t *testing.T) {
	tests := []struct {
		name     string
		sessions []*api.Session
		all      bool
		want     []string
		notWant  []string
	}{
		{"empty", nil, false, []string{"no sessions found"}, nil},
		{"live only", sampleSessions(), false, []string{"ID", "s-live", "active", ":1", "5901"}, []string{"s-done"}},
		{"all", sampleSessions(), true, []string{"s-live", "s-done", "terminated"}, nil},
		{"none live", sampleSessions()[1:], false, []string{"no live sessions found"}, []string{"s-done"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Sessions(&buf, tc.sessions, tc.all); err != nil {
				t.Fatalf("Sessions: %v", err)
			}
			out := buf.String()
			for _, w := range tc.want {
				if !strings.Contains(out, w) {
					t.Fatalf("expected '%v'; got: '%v'", w, out)
				}
			}
			for _, w := range tc.notWant {
				if strings.Contains(out, w) {
					t.Fatalf("expected no '%v'; got: '%v'", w, out)
				}
			}
			if strings.Contains(out, "\x1b[") {
				t.Fatalf("expected '%v'; got: '%q'", "no color", out)
			}
		})
	}
}

func Test_WorkflowResult(t *testing.T) {
	res := &api.WorkflowResult{
		RunID: "abcd1234", Name: "setup", Status: api.RunPartial,
		Executed: 1, Skipped: 1, Failed: 1,
		Outcomes: []api.ComponentOutcome{
			{ID: "a", Type: api.ComponentButton, Status: api.NodeExecuted, Runs: 1, DurationMS: 3},
			{ID: "b", Type: api.ComponentWineExecute, Status: api.NodeFailed, Runs: 1, Error: "exit 1"},
			{ID: "c", Type: api.ComponentButton, Status: api.NodeSkipped, Reason: "no active incoming edge"},
		},
	}
	var buf bytes.Buffer
	if err := WorkflowResult(&buf, res); err != nil {
		t.Fatalf("WorkflowResult: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"3ms", "exit 1", "no active incoming edge", "run abcd1234 (setup): partial, 1 executed, 1 skipped, 1 failed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected '%v'; got: '%v'", want, out)
		}
	}
}

func Test_Tables(t *testing.T) {
	var buf bytes.Buffer
	if err := Templates(&buf, &api.ComponentTemplates{Wine: []api.ComponentTemplate{{Type: api.ComponentWineConfig, Name: "Configure Wine"}}}); err != nil {
		t.Fatalf("Templates: %v", err)
	}
	if !strings.Contains(buf.String(), "wine_config  Configure Wine") {
		t.Fatalf("expected '%v'; got: '%v'", "wine row", buf.String())
	}

	buf.Reset()
	if err := Applications(&buf, []*api.Application{{ID: 1, Name: "notepad", ExecutablePath: "notepad.exe", Active: true}}); err != nil {
		t.Fatalf("Applications: %v", err)
	}
	if !strings.Contains(buf.String(), "notepad.exe") || !strings.Contains(buf.String(), "None") {
		t.Fatalf("expected '%v'; got: '%v'", "notepad row", buf.String())
	}

	buf.Reset()
	if err := EmulatorStatus(&buf, &api.EmulatorStatus{Status: api.EmulatorUnavailable, Error: "refused"}); err != nil {
		t.Fatalf("EmulatorStatus: %v", err)
	}
	if !strings.Contains(buf.String(), "unavailable") || !strings.Contains(buf.String(), "refused") {
		t.Fatalf("expected '%v'; got: '%v'", "unavailable", buf.String())
	}
}
