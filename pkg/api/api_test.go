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

import (
	"testing"
	"time"
)

func Test_SessionStatus_Terminal(t *testing.T) {
	tests := []struct {
		status   SessionStatus
		terminal bool
	}{
		{status: SessionPending, terminal: false},
		{status: SessionActive, terminal: false},
		{status: SessionExpired, terminal: true},
		{status: SessionTerminated, terminal: true},
		{status: SessionFailed, terminal: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Terminal(); got != tt.terminal {
				t.Errorf("SessionStatus(%q).Terminal() = %v, want %v", tt.status, got, tt.terminal)
			}
			if !tt.status.Valid() {
				t.Errorf("SessionStatus(%q).Valid() = false", tt.status)
			}
		})
	}

	if SessionStatus("bogus").Valid() {
		t.Errorf("expected bogus status to be invalid")
	}
	if got := SessionStatus("").String(); got != "unknown" {
		t.Errorf("empty status String() = %q", got)
	}
}

func Test_Session_Expired(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name    string
		session Session
		want    bool
	}{
		{name: "active past deadline", session: Session{Status: SessionActive, ExpiresAt: &past}, want: true},
		{name: "active exactly at deadline", session: Session{Status: SessionActive, ExpiresAt: &now}, want: true},
		{name: "active before deadline", session: Session{Status: SessionActive, ExpiresAt: &future}, want: false},
		{name: "terminated past deadline", session: Session{Status: SessionTerminated, ExpiresAt: &past}, want: false},
		{name: "no deadline", session: Session{Status: SessionActive}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.Expired(now); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_Session_Clone(t *testing.T) {
	appID := int64(7)
	exp := time.Now()
	s := &Session{
		ID:            "s1",
		ApplicationID: &appID,
		ExpiresAt:     &exp,
		Metadata: SessionMetadata{
			Launch: &LaunchResult{Success: true},
			Extra:  map[string]string{"k": "v"},
		},
	}
	c := s.Clone()
	*c.ApplicationID = 9
	c.Metadata.Extra["k"] = "changed"
	c.Metadata.Launch.Success = false

	if *s.ApplicationID != 7 || s.Metadata.Extra["k"] != "v" || !s.Metadata.Launch.Success {
		t.Fatalf("Clone() shares state with the original")
	}
}

func Test_ComponentType_Kind(t *testing.T) {
	tests := []struct {
		typ  ComponentType
		kind ComponentKind
	}{
		{typ: ComponentButton, kind: KindUI},
		{typ: ComponentTextInput, kind: KindUI},
		{typ: ComponentDropdown, kind: KindUI},
		{typ: ComponentFileUpload, kind: KindUI},
		{typ: ComponentConditional, kind: KindLogic},
		{typ: ComponentLoop, kind: KindLogic},
		{typ: ComponentAPICall, kind: KindLogic},
		{typ: ComponentWineExecute, kind: KindEmulator},
		{typ: ComponentWineInstall, kind: KindEmulator},
		{typ: ComponentWineConfig, kind: KindEmulator},
		{typ: ComponentType("teleport"), kind: KindUnknown},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			if got := tt.typ.Kind(); got != tt.kind {
				t.Errorf("ComponentType(%q).Kind() = %v, want %v", tt.typ, got, tt.kind)
			}
		})
	}
}

func Test_Templates_CoverVocabulary(t *testing.T) {
	tpl := Templates()
	all := append(append(append([]ComponentTemplate{}, tpl.UI...), tpl.Logic...), tpl.Wine...)
	if len(all) != 10 {
		t.Fatalf("expected 10 templates, got %d", len(all))
	}
	for _, c := range all {
		if !c.Type.Valid() {
			t.Errorf("template %q has invalid type", c.Type)
		}
	}
}

func Test_Inputs_Validate(t *testing.T) {
	if err := (ApplicationInput{Name: "x"}).Validate(); err == nil {
		t.Errorf("expected missing executable_path error")
	}
	if err := (ApplicationInput{Name: "x", ExecutablePath: "C:/x.exe"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (ComponentInput{Name: "n", Type: "nope"}).Validate(); err == nil {
		t.Errorf("expected unknown type error")
	}
	if err := (ComponentInput{Name: "n", Type: ComponentLoop}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
