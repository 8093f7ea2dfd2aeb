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

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eminwux/wemu/internal/dispatcher"
	"github.com/eminwux/wemu/internal/errdefs"
	"github.com/eminwux/wemu/internal/logging"
	"github.com/eminwux/wemu/internal/metrics"
	"github.com/eminwux/wemu/pkg/api"
	"github.com/google/uuid"
)

const (
	DefaultDurationMinutes    = 60
	DefaultMaxDurationMinutes = 1440
	DefaultSweepInterval      = time.Minute
)

// Store is the persistence the manager needs.
type Store interface {
	GetApplication(ctx context.Context, id int64) (*api.Application, error)
	CreateSession(ctx context.Context, s *api.Session) error
	GetSession(ctx context.Context, id string) (*api.Session, error)
	ListSessions(ctx context.Context, status api.SessionStatus) ([]*api.Session, error)
	UpdateSession(ctx context.Context, id string, fn func(*api.Session) error) (*api.Session, error)
}

// Slots is the slot allocator the manager draws from.
type Slots interface {
	Allocate() (int, error)
	Release(slot int) bool
	Reserve(slot int) error
	Display(slot int) string
	VNCPort(slot int) int
	Capacity() int
	InUse() int
}

type Config struct {
	DefaultDurationMinutes int
	MaxDurationMinutes     int
	SweepInterval          time.Duration
}

var _ api.SessionController = (*Manager)(nil)

type Manager struct {
	cfg     Config
	store   Store
	slots   Slots
	disp    dispatcher.Dispatcher
	logger  *slog.Logger
	metrics *metrics.Metrics

	locks   *keyedMutex
	sweepMu sync.Mutex

	// detached holds ids of stored sessions whose slot was already freed
	// by a failed Create. Finishing them must not stop or free that slot again.
	detached sync.Map

	Now   func() time.Time
	NewID func() string
}

func NewManager(
	cfg Config,
	st Store,
	slots Slots,
	disp dispatcher.Dispatcher,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Manager {
	if cfg.DefaultDurationMinutes <= 0 {
		cfg.DefaultDurationMinutes = DefaultDurationMinutes
	}
	if cfg.MaxDurationMinutes <= 0 {
		cfg.MaxDurationMinutes = DefaultMaxDurationMinutes
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	mgr := &Manager{
		cfg:     cfg,
		store:   st,
		slots:   slots,
		disp:    disp,
		logger:  logger,
		metrics: m,
		locks:   newKeyedMutex(),
		Now:     func() time.Time { return time.Now().UTC() },
		NewID:   uuid.NewString,
	}
	mgr.recordSlots()
	return mgr
}

func (m *Manager) recordSlots() {
	m.metrics.SetSlots(m.slots.Capacity(), m.slots.InUse())
}

func (m *Manager) release(sess *api.Session) {
	if m.slots.Release(sess.Slot) {
		m.logger.Debug("slot released", "session_id", sess.ID, "slot", sess.Slot)
	}
	m.recordSlots()
}

func (m *Manager) Create(ctx context.Context, req api.CreateSessionRequest) (*api.Session, error) {
	duration := req.DurationMinutes
	if duration == 0 {
		duration = m.cfg.DefaultDurationMinutes
	}
	if duration < 0 || duration > m.cfg.MaxDurationMinutes {
		m.metrics.SessionCreated("invalid")
		return nil, fmt.Errorf("%w: duration_minutes must be between 1 and %d, got %d",
			errdefs.ErrInvalid, m.cfg.MaxDurationMinutes, duration)
	}

	var app *api.Application
	if req.ApplicationID != nil {
		var err error
		app, err = m.store.GetApplication(ctx, *req.ApplicationID)
		if err != nil {
			m.metrics.SessionCreated("invalid")
			return nil, err
		}
		if !app.Active {
			m.metrics.SessionCreated("invalid")
			return nil, errdefs.ErrApplicationInactive
		}
	}

	slot, err := m.slots.Allocate()
	if err != nil {
		m.logger.WarnContext(ctx, "no slot available", "capacity", m.slots.Capacity())
		m.metrics.SessionCreated("exhausted")
		return nil, err
	}
	m.recordSlots()

	now := m.Now()
	expires := now.Add(time.Duration(duration) * time.Minute)
	sess := &api.Session{
		ID:            m.NewID(),
		ApplicationID: req.ApplicationID,
		UserID:        req.UserID,
		Slot:          slot,
		VNCPort:       m.slots.VNCPort(slot),
		Status:        api.SessionPending,
		Metadata: api.SessionMetadata{
			DurationMinutes: duration,
			Slot:            slot,
			Display:         m.slots.Display(slot),
			VNCPort:         m.slots.VNCPort(slot),
		},
		CreatedAt: now,
		ExpiresAt: &expires,
		UpdatedAt: now,
	}

	unlock := m.locks.Lock(sess.ID)
	defer unlock()

	if err := m.store.CreateSession(ctx, sess); err != nil {
		m.release(sess)
		m.metrics.SessionCreated("failed")
		return nil, err
	}
	logger := m.logger.With("session_id", sess.ID, "slot", slot)
	logger.InfoContext(ctx, "session created", "duration_minutes", duration)

	status := api.SessionActive
	var launch *api.LaunchResult
	if app != nil {
		res := m.disp.Launch(ctx, launchRequest(app, sess.Metadata.Display))
		launch = &res
		if !res.Success {
			status = api.SessionFailed
			logger.WarnContext(ctx, "launch failed", "application_id", app.ID, "error", res.Error)
		}
	}

	updated, err := m.store.UpdateSession(ctx, sess.ID, func(s *api.Session) error {
		s.Status = status
		s.Metadata.Launch = launch
		s.UpdatedAt = m.Now()
		return nil
	})
	if err != nil {
		logger.ErrorContext(ctx, "could not persist session status", "status", status, "error", err)
		if launch != nil && launch.Success {
			if stop := m.disp.Restart(ctx, api.RestartRequest{Display: sess.Metadata.Display}); !stop.Success {
				logger.WarnContext(ctx, "stop command failed", "error", stop.Error)
			}
		}
		m.detached.Store(sess.ID, struct{}{})
		m.release(sess)
		m.metrics.SessionCreated("failed")
		return nil, err
	}
	m.metrics.SessionTransition(string(status))

	if status == api.SessionFailed {
		m.release(updated)
		m.metrics.SessionCreated("failed")
		return updated, nil
	}
	m.metrics.SessionCreated("ok")
	return updated, nil
}

func launchRequest(app *api.Application, display string) api.LaunchRequest {
	cfg := app.EmulatorConfig
	return api.LaunchRequest{
		Executable: app.ExecutablePath,
		Args:       cfg.Args,
		Env:        cfg.Env,
		WinePrefix: cfg.WinePrefix,
		Arch:       cfg.Arch,
		Display:    display,
		Graphics:   cfg.Graphics,
		Audio:      cfg.Audio,
	}
}

func (m *Manager) Get(ctx context.Context, id string) (*api.Session, error) {
	return m.store.GetSession(ctx, id)
}

func (m *Manager) List(ctx context.Context, status api.SessionStatus) ([]*api.Session, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", errdefs.ErrInvalid, status)
	}
	return m.store.ListSessions(ctx, status)
}

// Terminate stops a session and frees its slot. A session already in a
// terminal state is returned unchanged.
func (m *Manager) Terminate(ctx context.Context, id string) (*api.Session, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	sess, err := m.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status.Terminal() {
		return sess, nil
	}
	return m.finish(ctx, sess, api.SessionTerminated)
}

// finish stops the emulator display for sess, persists the terminal status
// and releases the slot. The caller holds the session lock.
func (m *Manager) finish(ctx context.Context, sess *api.Session, status api.SessionStatus) (*api.Session, error) {
	logger := m.logger.With("session_id", sess.ID, "slot", sess.Slot)
	_, detached := m.detached.Load(sess.ID)

	var stop *api.CommandResult
	if !detached {
		res := m.disp.Restart(ctx, api.RestartRequest{Display: sess.Metadata.Display})
		if !res.Success {
			logger.WarnContext(ctx, "stop command failed", "error", res.Error)
		}
		stop = &res
	}

	updated, err := m.store.UpdateSession(ctx, sess.ID, func(s *api.Session) error {
		if s.Status.Terminal() {
			return errdefs.ErrSessionTerminal
		}
		s.Status = status
		s.Metadata.Stop = stop
		s.UpdatedAt = m.Now()
		return nil
	})
	if errors.Is(err, errdefs.ErrSessionTerminal) {
		return m.store.GetSession(ctx, sess.ID)
	}
	if err != nil {
		logger.ErrorContext(ctx, "could not persist session status", "status", status, "error", err)
		return nil, err
	}

	if detached {
		m.detached.Delete(sess.ID)
	} else {
		m.release(updated)
	}
	m.metrics.SessionTransition(string(status))
	logger.InfoContext(ctx, "session finished", "status", status)
	return updated, nil
}

// SweepExpired expires every non-terminal session whose deadline has
// passed and returns their ids. Concurrent sweeps run one after another.
func (m *Manager) SweepExpired(ctx context.Context) ([]string, error) {
	m.sweepMu.Lock()
	defer m.sweepMu.Unlock()
	defer m.metrics.Sweep()

	now := m.Now()
	all, err := m.store.ListSessions(ctx, "")
	if err != nil {
		return nil, err
	}

	expired := []string{}
	for _, s := range all {
		if !s.Expired(now) {
			continue
		}
		if ctx.Err() != nil {
			m.logger.WarnContext(ctx, "sweep interrupted", "expired", len(expired), "error", ctx.Err())
			return expired, fmt.Errorf("%w: %w", errdefs.ErrContextDone, ctx.Err())
		}
		ok, errE := m.expire(ctx, s.ID, now)
		if errE != nil {
			m.logger.ErrorContext(ctx, "could not expire session", "session_id", s.ID, "error", errE)
			continue
		}
		if ok {
			expired = append(expired, s.ID)
		}
	}
	if len(expired) > 0 {
		m.logger.InfoContext(ctx, "expired sessions swept", "count", len(expired))
	}
	return expired, nil
}

func (m *Manager) expire(ctx context.Context, id string, now time.Time) (bool, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	sess, err := m.store.GetSession(ctx, id)
	if err != nil {
		return false, err
	}
	if !sess.Expired(now) {
		return false, nil
	}
	updated, err := m.finish(ctx, sess, api.SessionExpired)
	if err != nil {
		return false, err
	}
	return updated.Status == api.SessionExpired, nil
}

// Restore reserves the slots of non-terminal sessions found in the store.
// Sessions whose slot cannot be reserved are marked failed.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	all, err := m.store.ListSessions(ctx, "")
	if err != nil {
		return 0, err
	}
	restored := 0
	for _, s := range all {
		if s.Status.Terminal() {
			continue
		}
		if errR := m.slots.Reserve(s.Slot); errR != nil {
			m.logger.WarnContext(ctx, "could not restore session slot",
				"session_id", s.ID, "slot", s.Slot, "error", errR)
			_, errU := m.store.UpdateSession(ctx, s.ID, func(sess *api.Session) error {
				sess.Status = api.SessionFailed
				if sess.Metadata.Extra == nil {
					sess.Metadata.Extra = map[string]string{}
				}
				sess.Metadata.Extra["restore_error"] = errR.Error()
				sess.UpdatedAt = m.Now()
				return nil
			})
			if errU != nil {
				return restored, errU
			}
			continue
		}
		restored++
	}
	m.recordSlots()
	m.logger.InfoContext(ctx, "sessions restored", "count", restored)
	return restored, nil
}

// RunSweeper calls SweepExpired every SweepInterval until ctx is done. Each
// run is bounded by the interval.
func (m *Manager) RunSweeper(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	m.logger.InfoContext(ctx, "sweeper started", "interval", m.cfg.SweepInterval)
	for {
		select {
		case <-ctx.Done():
			m.logger.InfoContext(ctx, "sweeper stopped")
			return nil
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, m.cfg.SweepInterval)
			if _, err := m.SweepExpired(runCtx); err != nil {
				m.logger.WarnContext(ctx, "sweep failed", "error", err)
			}
			cancel()
		}
	}
}
