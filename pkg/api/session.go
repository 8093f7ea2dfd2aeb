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

type SessionStatus string

const (
	SessionPending    SessionStatus = "pending"
	SessionActive     SessionStatus = "active"
	SessionExpired    SessionStatus = "expired"
	SessionTerminated SessionStatus = "terminated"
	SessionFailed     SessionStatus = "failed"
)

// Terminal reports whether no further status transition is allowed.
func (s SessionStatus) Terminal() bool {
	switch s {
	case SessionExpired, SessionTerminated, SessionFailed:
		return true
	default:
		return false
	}
}

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionPending, SessionActive, SessionExpired, SessionTerminated, SessionFailed:
		return true
	default:
		return false
	}
}

func (s SessionStatus) String() string {
	if s == "" {
		return "unknown"
	}
	return string(s)
}

// Session is a time-bounded handle on one emulated application instance.
type Session struct {
	ID            string          `json:"session_id"              yaml:"session_id"`
	ApplicationID *int64          `json:"application_id"          yaml:"application_id,omitempty"`
	UserID        string          `json:"user_id,omitempty"       yaml:"user_id,omitempty"`
	Slot          int             `json:"slot"                    yaml:"slot"`
	VNCPort       int             `json:"vnc_port"                yaml:"vnc_port"`
	Status        SessionStatus   `json:"status"                  yaml:"status"`
	Metadata      SessionMetadata `json:"metadata"                yaml:"metadata"`
	CreatedAt     time.Time       `json:"created_at"              yaml:"created_at"`
	ExpiresAt     *time.Time      `json:"expires_at"              yaml:"expires_at,omitempty"`
	UpdatedAt     time.Time       `json:"updated_at"              yaml:"updated_at"`
}

// Expired reports whether the session is non-terminal and past its deadline at now.
func (s *Session) Expired(now time.Time) bool {
	if s.Status.Terminal() || s.ExpiresAt == nil {
		return false
	}
	return !s.ExpiresAt.After(now)
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.ApplicationID != nil {
		id := *s.ApplicationID
		c.ApplicationID = &id
	}
	if s.ExpiresAt != nil {
		t := *s.ExpiresAt
		c.ExpiresAt = &t
	}
	c.Metadata = s.Metadata.Clone()
	return &c
}

// SessionMetadata is the fixed schema of what a session records about itself.
type SessionMetadata struct {
	DurationMinutes int               `json:"duration_minutes"  yaml:"duration_minutes"`
	Slot            int               `json:"slot"              yaml:"slot"`
	Display         string            `json:"display"           yaml:"display"`
	VNCPort         int               `json:"vnc_port"          yaml:"vnc_port"`
	Launch          *LaunchResult     `json:"launch,omitempty"  yaml:"launch,omitempty"`
	Stop            *CommandResult    `json:"stop,omitempty"    yaml:"stop,omitempty"`
	Extra           map[string]string `json:"extra,omitempty"   yaml:"extra,omitempty"`
}

func (m SessionMetadata) Clone() SessionMetadata {
	c := m
	if m.Launch != nil {
		l := *m.Launch
		c.Launch = &l
	}
	if m.Stop != nil {
		s := *m.Stop
		c.Stop = &s
	}
	if m.Extra != nil {
		c.Extra = make(map[string]string, len(m.Extra))
		for k, v := range m.Extra {
			c.Extra[k] = v
		}
	}
	return c
}

// CreateSessionRequest carries the inputs of session creation.
type CreateSessionRequest struct {
	ApplicationID   *int64 `json:"application_id,omitempty"`
	UserID          string `json:"user_id,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
}
