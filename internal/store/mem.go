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

package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/eminwux/wemu/internal/errdefs"
	"github.com/eminwux/wemu/pkg/api"
)

// MemStore keeps JSON-encoded records in process memory, so every read
// hands out an independent copy.
type MemStore struct {
	mu           sync.RWMutex
	nextAppID    int64
	applications map[int64][]byte
	sessions     map[string][]byte
	components   map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{
		applications: make(map[int64][]byte),
		sessions:     make(map[string][]byte),
		components:   make(map[string][]byte),
	}
}

func decode[T any](raw []byte) (*T, error) {
	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, storeErr(err)
	}
	return v, nil
}

func (m *MemStore) CreateApplication(_ context.Context, in api.ApplicationInput) (*api.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextAppID++
	a := newApplication(m.nextAppID, in)
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, storeErr(err)
	}
	m.applications[a.ID] = raw
	return decode[api.Application](raw)
}

func (m *MemStore) GetApplication(_ context.Context, id int64) (*api.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.applications[id]
	if !ok {
		return nil, errdefs.ErrApplicationNotFound
	}
	return decode[api.Application](raw)
}

func (m *MemStore) ListApplications(_ context.Context, skip, limit int, activeOnly bool) ([]*api.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*api.Application, 0, len(m.applications))
	for id := int64(1); id <= m.nextAppID; id++ {
		raw, ok := m.applications[id]
		if !ok {
			continue
		}
		a, err := decode[api.Application](raw)
		if err != nil {
			return nil, err
		}
		if activeOnly && !a.Active {
			continue
		}
		out = append(out, a)
	}
	return page(out, skip, limit), nil
}

func (m *MemStore) modifyApplication(id int64, fn func(*api.Application)) (*api.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.applications[id]
	if !ok {
		return nil, errdefs.ErrApplicationNotFound
	}
	a, err := decode[api.Application](raw)
	if err != nil {
		return nil, err
	}
	fn(a)
	raw, err = json.Marshal(a)
	if err != nil {
		return nil, storeErr(err)
	}
	m.applications[id] = raw
	return a, nil
}

func (m *MemStore) UpdateApplication(_ context.Context, id int64, in api.ApplicationInput) (*api.Application, error) {
	return m.modifyApplication(id, func(a *api.Application) { applyApplication(a, in) })
}

func (m *MemStore) DeactivateApplication(_ context.Context, id int64) error {
	_, err := m.modifyApplication(id, func(a *api.Application) {
		a.Active = false
		a.UpdatedAt = now()
	})
	return err
}

func (m *MemStore) CreateSession(_ context.Context, s *api.Session) error {
	if s == nil || s.ID == "" {
		return errdefs.ErrInvalid
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return storeErr(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return storeErr(errors.New("session " + s.ID + " already exists"))
	}
	m.sessions[s.ID] = raw
	return nil
}

func (m *MemStore) GetSession(_ context.Context, id string) (*api.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.sessions[id]
	if !ok {
		return nil, errdefs.ErrSessionNotFound
	}
	return decode[api.Session](raw)
}

func (m *MemStore) ListSessions(_ context.Context, status api.SessionStatus) ([]*api.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*api.Session, 0, len(m.sessions))
	for _, raw := range m.sessions {
		s, err := decode[api.Session](raw)
		if err != nil {
			return nil, err
		}
		if status != "" && s.Status != status {
			continue
		}
		out = append(out, s)
	}
	sortSessions(out)
	return out, nil
}

func (m *MemStore) UpdateSession(_ context.Context, id string, fn func(*api.Session) error) (*api.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.sessions[id]
	if !ok {
		return nil, errdefs.ErrSessionNotFound
	}
	s, err := decode[api.Session](raw)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	s.ID = id
	raw, err = json.Marshal(s)
	if err != nil {
		return nil, storeErr(err)
	}
	m.sessions[id] = raw
	return s, nil
}

func (m *MemStore) CreateComponent(_ context.Context, c *api.Component) error {
	if c == nil || c.ID == "" {
		return errdefs.ErrInvalid
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return storeErr(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.components[c.ID]; ok {
		return storeErr(errors.New("component " + c.ID + " already exists"))
	}
	m.components[c.ID] = raw
	return nil
}

func (m *MemStore) GetComponent(_ context.Context, id string) (*api.Component, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.components[id]
	if !ok {
		return nil, errdefs.ErrComponentNotFound
	}
	return decode[api.Component](raw)
}

func (m *MemStore) ListComponents(_ context.Context, typ api.ComponentType) ([]*api.Component, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*api.Component, 0, len(m.components))
	for _, raw := range m.components {
		c, err := decode[api.Component](raw)
		if err != nil {
			return nil, err
		}
		if typ != "" && c.Type != typ {
			continue
		}
		out = append(out, c)
	}
	sortComponents(out)
	return out, nil
}

func (m *MemStore) UpdateComponent(_ context.Context, id string, in api.ComponentInput) (*api.Component, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.components[id]
	if !ok {
		return nil, errdefs.ErrComponentNotFound
	}
	c, err := decode[api.Component](raw)
	if err != nil {
		return nil, err
	}
	applyComponent(c, in)
	raw, err = json.Marshal(c)
	if err != nil {
		return nil, storeErr(err)
	}
	m.components[id] = raw
	return decode[api.Component](raw)
}

func (m *MemStore) DeleteComponent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.components[id]; !ok {
		return errdefs.ErrComponentNotFound
	}
	delete(m.components, id)
	return nil
}

func (m *MemStore) Ping(context.Context) error { return nil }

func (m *MemStore) Close() error { return nil }
