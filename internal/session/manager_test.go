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
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eminwux/wemu/internal/dispatcher"
	"github.com/eminwux/wemu/internal/errdefs"
	"github.com/eminwux/wemu/internal/slotpool"
	"github.com/eminwux/wemu/internal/store"
	"github.com/eminwux/wemu/pkg/api"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// countingSlots records how many Release calls actually freed a slot.
type countingSlots struct {
	*slotpool.Pool
	mu       sync.Mutex
	released map[int]int
}

func (c *countingSlots) Release(slot int) bool {
	ok := c.Pool.Release(slot)
	if ok {
		c.mu.Lock()
		c.released[slot]++
		c.mu.Unlock()
	}
	return ok
}

func (c *countingSlots) releases(slot int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released[slot]
}

type fixture struct {
	mgr   *Manager
	store *store.MemStore
	slots *countingSlots
	disp  *dispatcher.Fake
	clock *fakeClock
}

func newFixture(t *testing.T, size int) *fixture {
	t.Helper()
	pool, err := slotpool.New(slotpool.Config{Base: 1, Size: size, VNCBasePort: 5900})
	if err != nil {
		t.Fatalf("slotpool.New: %v", err)
	}
	f := &fixture{
		store: store.NewMemStore(),
		slots: &countingSlots{Pool: pool, released: map[int]int{}},
		disp:  dispatcher.NewOKFake(),
		clock: &fakeClock{t: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)},
	}
	f.mgr = NewManager(Config{MaxDurationMinutes: 600, SweepInterval: 10 * time.Millisecond},
		f.store, f.slots, f.disp, nil, nil)
	f.mgr.Now = f.clock.Now
	return f
}

func (f *fixture) addApp(t *testing.T, active bool) int64 {
	t.Helper()
	ctx := context.Background()
	a, err := f.store.CreateApplication(ctx, api.ApplicationInput{
		Name:           "notepad",
		ExecutablePath: `C:\windows\notepad.exe`,
		EmulatorConfig: api.EmulatorConfig{WinePrefix: "/wine/notepad", Args: []string{"readme.txt"}},
	})
	if err != nil {
		t.Fatalf("CreateApplication: %v", err)
	}
	if !active {
		if err := f.store.DeactivateApplication(ctx, a.ID); err != nil {
			t.Fatalf("DeactivateApplication: %v", err)
		}
	}
	return a.ID
}

func Test_Create(t *testing.T) {
	f := newFixture(t, 4)
	appID := f.addApp(t, true)

	sess, err := f.mgr.Create(context.Background(), api.CreateSessionRequest{
		ApplicationID:   &appID,
		UserID:          "alice",
		DurationMinutes: 90,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.Status != api.SessionActive {
		t.Fatalf("expected '%v'; got: '%v'", api.SessionActive, sess.Status)
	}
	if got := sess.ExpiresAt.Sub(sess.CreatedAt); got != 90*time.Minute {
		t.Fatalf("expected '%v'; got: '%v'", 90*time.Minute, got)
	}
	if sess.VNCPort != 5900+sess.Slot || sess.Metadata.Display != fmt.Sprintf(":%d", sess.Slot) {
		t.Fatalf("unexpected slot wiring %+v", sess)
	}
	if sess.Metadata.DurationMinutes != 90 || sess.Metadata.Launch == nil || sess.Metadata.Launch.Pid != 4242 {
		t.Fatalf("unexpected metadata %+v", sess.Metadata)
	}

	launches, _, _ := f.disp.Calls()
	if len(launches) != 1 {
		t.Fatalf("expected 1 launch; got %d", len(launches))
	}
	l := launches[0]
	if l.Executable != `C:\windows\notepad.exe` || l.WinePrefix != "/wine/notepad" || l.Display != sess.Metadata.Display {
		t.Fatalf("unexpected launch request %+v", l)
	}
	if f.slots.InUse() != 1 {
		t.Fatalf("expected 1 slot in use; got %d", f.slots.InUse())
	}
	if f.mgr.locks.len() != 0 {
		t.Fatalf("session lock leaked")
	}
}

func Test_Create_DefaultDurationWithoutApplication(t *testing.T) {
	f := newFixture(t, 1)
	sess, err := f.mgr.Create(context.Background(), api.CreateSessionRequest{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.Status != api.SessionActive || sess.ApplicationID != nil {
		t.Fatalf("unexpected session %+v", sess)
	}
	if got := sess.ExpiresAt.Sub(sess.CreatedAt); got != DefaultDurationMinutes*time.Minute {
		t.Fatalf("expected '%v'; got: '%v'", DefaultDurationMinutes*time.Minute, got)
	}
	if launches, _, _ := f.disp.Calls(); len(launches) != 0 {
		t.Fatalf("no launch expected without an application")
	}
}

func Test_Create_Rejects(t *testing.T) {
	f := newFixture(t, 2)
	inactive := f.addApp(t, false)
	missing := int64(404)

	tests := []struct {
		name    string
		req     api.CreateSessionRequest
		wantErr error
	}{
		{"negative duration", api.CreateSessionRequest{DurationMinutes: -5}, errdefs.ErrInvalid},
		{"duration over max", api.CreateSessionRequest{DurationMinutes: 601}, errdefs.ErrInvalid},
		{"inactive application", api.CreateSessionRequest{ApplicationID: &inactive}, errdefs.ErrInvalid},
		{"unknown application", api.CreateSessionRequest{ApplicationID: &missing}, errdefs.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.mgr.Create(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected '%v'; got: '%v'", tt.wantErr, err)
			}
		})
	}
	if f.slots.InUse() != 0 {
		t.Fatalf("rejected requests must not hold slots; got %d", f.slots.InUse())
	}
}

func Test_Create_LaunchFailureReleasesSlot(t *testing.T) {
	f := newFixture(t, 1)
	appID := f.addApp(t, true)
	f.disp.LaunchFunc = func(context.Context, api.LaunchRequest) api.LaunchResult {
		return api.LaunchResult{Error: "wine: cannot find executable"}
	}

	sess, err := f.mgr.Create(context.Background(), api.CreateSessionRequest{ApplicationID: &appID})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.Status != api.SessionFailed {
		t.Fatalf("expected '%v'; got: '%v'", api.SessionFailed, sess.Status)
	}
	if sess.Metadata.Launch == nil || sess.Metadata.Launch.Error == "" {
		t.Fatalf("launch error not recorded: %+v", sess.Metadata)
	}
	if f.slots.InUse() != 0 || f.slots.releases(sess.Slot) != 1 {
		t.Fatalf("slot not released exactly once")
	}
}

// failingUpdates is a store whose UpdateSession fails while fail is set.
type failingUpdates struct {
	*store.MemStore
	fail atomic.Bool
}

func (s *failingUpdates) UpdateSession(
	ctx context.Context,
	id string,
	fn func(*api.Session) error,
) (*api.Session, error) {
	if s.fail.Load() {
		return nil, errors.New("disk full")
	}
	return s.MemStore.UpdateSession(ctx, id, fn)
}

func Test_Create_StatusWriteFailureReleasesSlot(t *testing.T) {
	f := newFixture(t, 1)
	st := &failingUpdates{MemStore: f.store}
	mgr := NewManager(Config{MaxDurationMinutes: 600}, st, f.slots, f.disp, nil, nil)
	mgr.Now = f.clock.Now
	appID := f.addApp(t, true)
	ctx := context.Background()

	st.fail.Store(true)
	if _, err := mgr.Create(ctx, api.CreateSessionRequest{ApplicationID: &appID}); err == nil {
		t.Fatalf("expected error from Create")
	}
	if f.slots.InUse() != 0 || f.slots.releases(1) != 1 {
		t.Fatalf("slot not released exactly once; in use %d", f.slots.InUse())
	}
	_, _, restarts := f.disp.Calls()
	if len(restarts) != 1 || restarts[0].Display != ":1" {
		t.Fatalf("expected one stop for display :1; got %+v", restarts)
	}
	orphans, err := f.store.ListSessions(ctx, api.SessionPending)
	if err != nil || len(orphans) != 1 {
		t.Fatalf("expected the pending record to remain; got %d (%v)", len(orphans), err)
	}

	st.fail.Store(false)
	next, err := mgr.Create(ctx, api.CreateSessionRequest{ApplicationID: &appID, DurationMinutes: 120})
	if err != nil {
		t.Fatalf("Create after release: %v", err)
	}
	if next.Slot != 1 {
		t.Fatalf("expected '%v'; got: '%v'", 1, next.Slot)
	}

	f.clock.Advance(61 * time.Minute)
	expired, err := mgr.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if !slices.Equal(expired, []string{orphans[0].ID}) {
		t.Fatalf("expected '%v'; got: '%v'", []string{orphans[0].ID}, expired)
	}
	if f.slots.InUse() != 1 || f.slots.releases(1) != 1 {
		t.Fatalf("expiring the orphan must not free the reused slot")
	}
	if _, _, restarts = f.disp.Calls(); len(restarts) != 1 {
		t.Fatalf("expiring the orphan must not stop the reused display; got %d stops", len(restarts))
	}
}

func Test_Create_PoolExhausted(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	for range 2 {
		if _, err := f.mgr.Create(ctx, api.CreateSessionRequest{}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	_, err := f.mgr.Create(ctx, api.CreateSessionRequest{})
	if !errors.Is(err, errdefs.ErrResourceExhausted) {
		t.Fatalf("expected '%v'; got: '%v'", errdefs.ErrResourceExhausted, err)
	}
	all, err := f.store.ListSessions(ctx, "")
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("exhausted create must persist nothing; got %d sessions", len(all))
	}
}

func Test_Terminate_Idempotent(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	sess, err := f.mgr.Create(ctx, api.CreateSessionRequest{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, err := f.mgr.Terminate(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if first.Status != api.SessionTerminated || first.Metadata.Stop == nil {
		t.Fatalf("unexpected session %+v", first)
	}

	f.clock.Advance(time.Minute)
	second, err := f.mgr.Terminate(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if second.Status != api.SessionTerminated || !second.UpdatedAt.Equal(first.UpdatedAt) {
		t.Fatalf("second terminate must return the session unchanged; got %+v", second)
	}
	if f.slots.releases(sess.Slot) != 1 {
		t.Fatalf("expected 1 release; got %d", f.slots.releases(sess.Slot))
	}
	if _, _, restarts := f.disp.Calls(); len(restarts) != 1 || restarts[0].Display != sess.Metadata.Display {
		t.Fatalf("expected one stop for %s; got %+v", sess.Metadata.Display, restarts)
	}

	if _, err := f.mgr.Terminate(ctx, "missing"); !errors.Is(err, errdefs.ErrSessionNotFound) {
		t.Fatalf("expected '%v'; got: '%v'", errdefs.ErrSessionNotFound, err)
	}
}

func Test_Terminate_StopFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	sess, _ := f.mgr.Create(ctx, api.CreateSessionRequest{})
	f.disp.RestartFunc = func(context.Context, api.RestartRequest) api.CommandResult {
		return api.CommandResult{Error: "emulator unreachable"}
	}

	got, err := f.mgr.Terminate(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if got.Status != api.SessionTerminated || got.Metadata.Stop.Success {
		t.Fatalf("unexpected session %+v", got)
	}
	if f.slots.InUse() != 0 {
		t.Fatalf("slot not released")
	}
}

func Test_SweepExpired(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	short, _ := f.mgr.Create(ctx, api.CreateSessionRequest{DurationMinutes: 10})
	exact, _ := f.mgr.Create(ctx, api.CreateSessionRequest{DurationMinutes: 30})
	long, _ := f.mgr.Create(ctx, api.CreateSessionRequest{DurationMinutes: 31})
	done, _ := f.mgr.Create(ctx, api.CreateSessionRequest{DurationMinutes: 5})
	if _, err := f.mgr.Terminate(ctx, done.ID); err != nil {
		t.Fatalf("Terminate: %v", err)
	}

	f.clock.Advance(30 * time.Minute)
	expired, err := f.mgr.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	slices.Sort(expired)
	want := []string{short.ID, exact.ID}
	slices.Sort(want)
	if !slices.Equal(expired, want) {
		t.Fatalf("expected '%v'; got: '%v'", want, expired)
	}

	for _, s := range []*api.Session{short, exact} {
		got, _ := f.mgr.Get(ctx, s.ID)
		if got.Status != api.SessionExpired {
			t.Fatalf("session %s: expected '%v'; got: '%v'", s.ID, api.SessionExpired, got.Status)
		}
		if f.slots.releases(s.Slot) != 1 {
			t.Fatalf("slot %d released %d times", s.Slot, f.slots.releases(s.Slot))
		}
	}
	if got, _ := f.mgr.Get(ctx, long.ID); got.Status != api.SessionActive {
		t.Fatalf("unexpired session changed: %+v", got)
	}
	if got, _ := f.mgr.Get(ctx, done.ID); got.Status != api.SessionTerminated {
		t.Fatalf("terminated session changed: %+v", got)
	}

	again, err := f.mgr.SweepExpired(ctx)
	if err != nil || len(again) != 0 {
		t.Fatalf("second sweep must be a no-op; got %v, %v", again, err)
	}
}

func Test_TerminateAndSweep_Race(t *testing.T) {
	const n = 8
	f := newFixture(t, n)
	ctx := context.Background()

	var stops atomic.Int64
	f.disp.RestartFunc = func(context.Context, api.RestartRequest) api.CommandResult {
		stops.Add(1)
		time.Sleep(time.Millisecond)
		return api.CommandResult{Success: true}
	}

	ids := make([]string, 0, n)
	for range n {
		s, err := f.mgr.Create(ctx, api.CreateSessionRequest{DurationMinutes: 1})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids = append(ids, s.ID)
	}
	f.clock.Advance(2 * time.Minute)

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.mgr.Terminate(ctx, id); err != nil {
				t.Errorf("Terminate: %v", err)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := f.mgr.SweepExpired(ctx); err != nil {
			t.Errorf("SweepExpired: %v", err)
		}
	}()
	wg.Wait()

	for _, id := range ids {
		s, _ := f.mgr.Get(ctx, id)
		if !s.Status.Terminal() {
			t.Fatalf("session %s left in %s", id, s.Status)
		}
		if f.slots.releases(s.Slot) != 1 {
			t.Fatalf("slot %d released %d times", s.Slot, f.slots.releases(s.Slot))
		}
	}
	if got := stops.Load(); got != n {
		t.Fatalf("expected %d stops; got %d", n, got)
	}
	if f.slots.InUse() != 0 {
		t.Fatalf("expected all slots free; got %d", f.slots.InUse())
	}
}

func Test_List(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	a, _ := f.mgr.Create(ctx, api.CreateSessionRequest{})
	f.clock.Advance(time.Second)
	b, _ := f.mgr.Create(ctx, api.CreateSessionRequest{})
	_, _ = f.mgr.Terminate(ctx, a.ID)

	all, err := f.mgr.List(ctx, "")
	if err != nil || len(all) != 2 || all[0].ID != a.ID || all[1].ID != b.ID {
		t.Fatalf("unexpected list %+v, %v", all, err)
	}
	active, err := f.mgr.List(ctx, api.SessionActive)
	if err != nil || len(active) != 1 || active[0].ID != b.ID {
		t.Fatalf("unexpected filtered list %+v, %v", active, err)
	}
	if _, err := f.mgr.List(ctx, "bogus"); !errors.Is(err, errdefs.ErrInvalid) {
		t.Fatalf("expected '%v'; got: '%v'", errdefs.ErrInvalid, err)
	}
}

func Test_Restore(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	now := f.clock.Now()
	exp := now.Add(time.Hour)
	records := []*api.Session{
		{ID: "live", Slot: 2, Status: api.SessionActive, CreatedAt: now, ExpiresAt: &exp},
		{ID: "gone", Slot: 3, Status: api.SessionTerminated, CreatedAt: now, ExpiresAt: &exp},
		{ID: "dup", Slot: 2, Status: api.SessionPending, CreatedAt: now.Add(time.Second), ExpiresAt: &exp},
		{ID: "outside", Slot: 99, Status: api.SessionActive, CreatedAt: now.Add(2 * time.Second), ExpiresAt: &exp},
	}
	for _, r := range records {
		if err := f.store.CreateSession(ctx, r); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}

	n, err := f.mgr.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected '%v'; got: '%v'", 1, n)
	}
	if !f.slots.Held(2) || f.slots.Held(3) {
		t.Fatalf("unexpected held slots %v", f.slots.Slots())
	}
	for _, id := range []string{"dup", "outside"} {
		s, _ := f.store.GetSession(ctx, id)
		if s.Status != api.SessionFailed || s.Metadata.Extra["restore_error"] == "" {
			t.Fatalf("session %s: expected failed with restore_error; got %+v", id, s)
		}
	}
}

func Test_RunSweeper(t *testing.T) {
	f := newFixture(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, _ := f.mgr.Create(ctx, api.CreateSessionRequest{DurationMinutes: 1})
	f.clock.Advance(time.Minute)

	done := make(chan error, 1)
	go func() { done <- f.mgr.RunSweeper(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		s, _ := f.mgr.Get(context.Background(), sess.ID)
		if s.Status == api.SessionExpired {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("sweeper did not expire the session")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunSweeper: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("sweeper did not stop")
	}
}

func Test_KeyedMutex(t *testing.T) {
	k := newKeyedMutex()
	var counter int
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("a")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	if counter != 50 || k.len() != 0 {
		t.Fatalf("counter=%d entries=%d", counter, k.len())
	}
}
