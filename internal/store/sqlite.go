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
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eminwux/wemu/internal/errdefs"
	"github.com/eminwux/wemu/pkg/api"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS applications (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	executable_path TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	icon_url TEXT NOT NULL DEFAULT '',
	wine_config TEXT NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	application_id INTEGER,
	user_id TEXT NOT NULL DEFAULT '',
	slot INTEGER NOT NULL,
	vnc_port INTEGER NOT NULL,
	status TEXT NOT NULL,
	metadata TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	expires_at INTEGER,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at);

CREATE TABLE IF NOT EXISTS components (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	component_type TEXT NOT NULL,
	config TEXT NOT NULL,
	position TEXT,
	parent_id TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_components_type ON components(component_type);
`

// SQLStore keeps records in a SQLite database. Timestamps are stored as
// unix nanoseconds.
type SQLStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", path+"?_txlock=immediate&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errdefs.ErrOpenStore, path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: create tables: %w", errdefs.ErrOpenStore, err)
	}
	return &SQLStore{db: db}, nil
}

func nanos(t time.Time) int64 { return t.UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

type scanner interface {
	Scan(dest ...any) error
}

const applicationColumns = `id, name, executable_path, description, icon_url, wine_config, is_active, created_at, updated_at`

func scanApplication(row scanner) (*api.Application, error) {
	var (
		a                api.Application
		cfg              string
		created, updated int64
	)
	if err := row.Scan(&a.ID, &a.Name, &a.ExecutablePath, &a.Description, &a.IconURL,
		&cfg, &a.Active, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(cfg), &a.EmulatorConfig); err != nil {
		return nil, err
	}
	a.CreatedAt = fromNanos(created)
	a.UpdatedAt = fromNanos(updated)
	return &a, nil
}

func (s *SQLStore) CreateApplication(ctx context.Context, in api.ApplicationInput) (*api.Application, error) {
	a := newApplication(0, in)
	cfg, err := json.Marshal(a.EmulatorConfig)
	if err != nil {
		return nil, storeErr(err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO applications (name, executable_path, description, icon_url, wine_config, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
		a.Name, a.ExecutablePath, a.Description, a.IconURL, string(cfg), nanos(a.CreatedAt), nanos(a.UpdatedAt))
	if err != nil {
		return nil, storeErr(err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return nil, storeErr(err)
	}
	return a, nil
}

func (s *SQLStore) GetApplication(ctx context.Context, id int64) (*api.Application, error) {
	a, err := scanApplication(s.db.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errdefs.ErrApplicationNotFound
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return a, nil
}

func (s *SQLStore) ListApplications(ctx context.Context, skip, limit int, activeOnly bool) ([]*api.Application, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT ` + applicationColumns + ` FROM applications`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY id LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, limit, skip)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	out := []*api.Application{}
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, storeErr(err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

func (s *SQLStore) UpdateApplication(ctx context.Context, id int64, in api.ApplicationInput) (*api.Application, error) {
	a, err := s.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	applyApplication(a, in)
	cfg, err := json.Marshal(a.EmulatorConfig)
	if err != nil {
		return nil, storeErr(err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE applications SET name = ?, executable_path = ?, description = ?, icon_url = ?,
		wine_config = ?, updated_at = ? WHERE id = ?`,
		a.Name, a.ExecutablePath, a.Description, a.IconURL, string(cfg), nanos(a.UpdatedAt), id)
	if err := affectedOne(res, err, errdefs.ErrApplicationNotFound); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *SQLStore) DeactivateApplication(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE applications SET is_active = 0, updated_at = ? WHERE id = ?`, nanos(now()), id)
	return affectedOne(res, err, errdefs.ErrApplicationNotFound)
}

func affectedOne(res sql.Result, err error, notFound error) error {
	if err != nil {
		return storeErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr(err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

const sessionColumns = `id, application_id, user_id, slot, vnc_port, status, metadata, created_at, expires_at, updated_at`

func scanSession(row scanner) (*api.Session, error) {
	var (
		sess             api.Session
		appID, expires   sql.NullInt64
		meta             string
		created, updated int64
	)
	if err := row.Scan(&sess.ID, &appID, &sess.UserID, &sess.Slot, &sess.VNCPort, &sess.Status,
		&meta, &created, &expires, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(meta), &sess.Metadata); err != nil {
		return nil, err
	}
	if appID.Valid {
		id := appID.Int64
		sess.ApplicationID = &id
	}
	if expires.Valid {
		t := fromNanos(expires.Int64)
		sess.ExpiresAt = &t
	}
	sess.CreatedAt = fromNanos(created)
	sess.UpdatedAt = fromNanos(updated)
	return &sess, nil
}

func sessionArgs(sess *api.Session) ([]any, error) {
	meta, err := json.Marshal(sess.Metadata)
	if err != nil {
		return nil, err
	}
	var appID, expires sql.NullInt64
	if sess.ApplicationID != nil {
		appID = sql.NullInt64{Int64: *sess.ApplicationID, Valid: true}
	}
	if sess.ExpiresAt != nil {
		expires = sql.NullInt64{Int64: nanos(*sess.ExpiresAt), Valid: true}
	}
	return []any{
		appID, sess.UserID, sess.Slot, sess.VNCPort, string(sess.Status), string(meta),
		nanos(sess.CreatedAt), expires, nanos(sess.UpdatedAt), sess.ID,
	}, nil
}

func (s *SQLStore) CreateSession(ctx context.Context, sess *api.Session) error {
	if sess == nil || sess.ID == "" {
		return errdefs.ErrInvalid
	}
	args, err := sessionArgs(sess)
	if err != nil {
		return storeErr(err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (application_id, user_id, slot, vnc_port, status, metadata, created_at, expires_at, updated_at, id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return storeErr(err)
	}
	return nil
}

func (s *SQLStore) GetSession(ctx context.Context, id string) (*api.Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errdefs.ErrSessionNotFound
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return sess, nil
}

func (s *SQLStore) ListSessions(ctx context.Context, status api.SessionStatus) ([]*api.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	out := []*api.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, storeErr(err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

// UpdateSession runs inside an immediate transaction so concurrent writers
// serialize on the database lock.
func (s *SQLStore) UpdateSession(ctx context.Context, id string, fn func(*api.Session) error) (*api.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	sess, err := scanSession(tx.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errdefs.ErrSessionNotFound
	}
	if err != nil {
		return nil, storeErr(err)
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	sess.ID = id

	args, err := sessionArgs(sess)
	if err != nil {
		return nil, storeErr(err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE sessions SET application_id = ?, user_id = ?, slot = ?, vnc_port = ?, status = ?,
		metadata = ?, created_at = ?, expires_at = ?, updated_at = ? WHERE id = ?`, args...); err != nil {
		return nil, storeErr(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, storeErr(err)
	}
	return sess, nil
}

const componentColumns = `id, name, component_type, config, position, parent_id, created_at, updated_at`

func scanComponent(row scanner) (*api.Component, error) {
	var (
		c                api.Component
		cfg              string
		pos, parent      sql.NullString
		created, updated int64
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Type, &cfg, &pos, &parent, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(cfg), &c.Config); err != nil {
		return nil, err
	}
	if pos.Valid {
		c.Position = &api.Position{}
		if err := json.Unmarshal([]byte(pos.String), c.Position); err != nil {
			return nil, err
		}
	}
	if parent.Valid {
		p := parent.String
		c.ParentID = &p
	}
	c.CreatedAt = fromNanos(created)
	c.UpdatedAt = fromNanos(updated)
	return &c, nil
}

func componentArgs(c *api.Component) ([]any, error) {
	cfg, err := json.Marshal(c.Config)
	if err != nil {
		return nil, err
	}
	var pos, parent sql.NullString
	if c.Position != nil {
		raw, err := json.Marshal(c.Position)
		if err != nil {
			return nil, err
		}
		pos = sql.NullString{String: string(raw), Valid: true}
	}
	if c.ParentID != nil {
		parent = sql.NullString{String: *c.ParentID, Valid: true}
	}
	return []any{
		c.Name, string(c.Type), string(cfg), pos, parent, nanos(c.CreatedAt), nanos(c.UpdatedAt), c.ID,
	}, nil
}

func (s *SQLStore) CreateComponent(ctx context.Context, c *api.Component) error {
	if c == nil || c.ID == "" {
		return errdefs.ErrInvalid
	}
	args, err := componentArgs(c)
	if err != nil {
		return storeErr(err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO components (name, component_type, config, position, parent_id, created_at, updated_at, id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return storeErr(err)
	}
	return nil
}

func (s *SQLStore) GetComponent(ctx context.Context, id string) (*api.Component, error) {
	c, err := scanComponent(s.db.QueryRowContext(ctx,
		`SELECT `+componentColumns+` FROM components WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errdefs.ErrComponentNotFound
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return c, nil
}

func (s *SQLStore) ListComponents(ctx context.Context, typ api.ComponentType) ([]*api.Component, error) {
	query := `SELECT ` + componentColumns + ` FROM components`
	var args []any
	if typ != "" {
		query += ` WHERE component_type = ?`
		args = append(args, string(typ))
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	out := []*api.Component{}
	for rows.Next() {
		c, err := scanComponent(rows)
		if err != nil {
			return nil, storeErr(err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

func (s *SQLStore) UpdateComponent(ctx context.Context, id string, in api.ComponentInput) (*api.Component, error) {
	c, err := s.GetComponent(ctx, id)
	if err != nil {
		return nil, err
	}
	applyComponent(c, in)
	args, err := componentArgs(c)
	if err != nil {
		return nil, storeErr(err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE components SET name = ?, component_type = ?, config = ?, position = ?, parent_id = ?,
		created_at = ?, updated_at = ? WHERE id = ?`, args...)
	if err := affectedOne(res, err, errdefs.ErrComponentNotFound); err != nil {
		return nil, err
	}
	return s.GetComponent(ctx, id)
}

func (s *SQLStore) DeleteComponent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM components WHERE id = ?`, id)
	return affectedOne(res, err, errdefs.ErrComponentNotFound)
}

func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storeErr(err)
	}
	return nil
}

func (s *SQLStore) Close() error { return s.db.Close() }
