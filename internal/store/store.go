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

// Package store persists applications, sessions and workflow components.
package store

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/eminwux/wemu/internal/errdefs"
	"github.com/eminwux/wemu/pkg/api"
)

const (
	DriverMemory = "memory"
	DriverBolt   = "bolt"
	DriverSQLite = "sqlite"
)

type Store interface {
	CreateApplication(ctx context.Context, in api.ApplicationInput) (*api.Application, error)
	GetApplication(ctx context.Context, id int64) (*api.Application, error)
	// ListApplications returns applications ordered by id. A limit <= 0
	// means no limit.
	ListApplications(ctx context.Context, skip, limit int, activeOnly bool) ([]*api.Application, error)
	UpdateApplication(ctx context.Context, id int64, in api.ApplicationInput) (*api.Application, error)
	DeactivateApplication(ctx context.Context, id int64) error

	CreateSession(ctx context.Context, s *api.Session) error
	GetSession(ctx context.Context, id string) (*api.Session, error)
	// ListSessions returns sessions ordered by creation time. An empty
	// status returns all of them.
	ListSessions(ctx context.Context, status api.SessionStatus) ([]*api.Session, error)
	// UpdateSession applies fn to the stored record and persists the result
	// atomically. An error from fn aborts the update and is returned as is.
	UpdateSession(ctx context.Context, id string, fn func(*api.Session) error) (*api.Session, error)

	CreateComponent(ctx context.Context, c *api.Component) error
	GetComponent(ctx context.Context, id string) (*api.Component, error)
	ListComponents(ctx context.Context, typ api.ComponentType) ([]*api.Component, error)
	UpdateComponent(ctx context.Context, id string, in api.ComponentInput) (*api.Component, error)
	DeleteComponent(ctx context.Context, id string) error

	Ping(ctx context.Context) error
	Close() error
}

// Open returns the store selected by driver. path is ignored by the memory
// driver.
func Open(driver, path string) (Store, error) {
	switch driver {
	case DriverMemory:
		return NewMemStore(), nil
	case DriverBolt, DriverSQLite, "sqlite3":
		if path == "" {
			return nil, fmt.Errorf("%w: %s store needs a path", errdefs.ErrOpenStore, driver)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("%w: %w", errdefs.ErrOpenStore, err)
		}
		if driver == DriverBolt {
			return OpenBolt(path)
		}
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("%w: %q", errdefs.ErrStoreDriver, driver)
	}
}

//nolint:gochecknoglobals // overridden in tests
var now = func() time.Time { return time.Now().UTC() }

func newApplication(id int64, in api.ApplicationInput) *api.Application {
	t := now()
	return &api.Application{
		ID:             id,
		Name:           in.Name,
		ExecutablePath: in.ExecutablePath,
		Description:    in.Description,
		IconURL:        in.IconURL,
		EmulatorConfig: in.EmulatorConfig,
		Active:         true,
		CreatedAt:      t,
		UpdatedAt:      t,
	}
}

func applyApplication(a *api.Application, in api.ApplicationInput) {
	a.Name = in.Name
	a.ExecutablePath = in.ExecutablePath
	a.Description = in.Description
	a.IconURL = in.IconURL
	a.EmulatorConfig = in.EmulatorConfig
	a.UpdatedAt = now()
}

func applyComponent(c *api.Component, in api.ComponentInput) {
	c.Name = in.Name
	c.Type = in.Type
	c.Config = in.Config
	c.Position = in.Position
	c.ParentID = in.ParentID
	c.UpdatedAt = now()
}

func page[T any](items []T, skip, limit int) []T {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(items) {
		return []T{}
	}
	items = items[skip:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func sortSessions(out []*api.Session) {
	slices.SortStableFunc(out, func(a, b *api.Session) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func sortComponents(out []*api.Component) {
	slices.SortStableFunc(out, func(a, b *api.Component) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %w", errdefs.ErrStore, err)
}

// mutateErr marks an error produced by an UpdateSession callback so it can
// be told apart from storage faults.
type mutateErr struct{ err error }

func (e *mutateErr) Error() string { return e.err.Error() }
func (e *mutateErr) Unwrap() error { return e.err }
