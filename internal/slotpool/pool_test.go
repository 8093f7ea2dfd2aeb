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

package slotpool

import (
	"errors"
	"sync"
	"testing"

	"github.com/eminwux/wemu/internal/errdefs"
)

func newPool(t *testing.T, size int) *Pool {
	t.Helper()
	p, err := New(Config{Base: 1, Size: size, VNCBasePort: 5900})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func Test_New_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "zero size", cfg: Config{Base: 1, Size: 0}},
		{name: "negative size", cfg: Config{Base: 1, Size: -2}},
		{name: "negative base", cfg: Config{Base: -1, Size: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); !errors.Is(err, errdefs.ErrConfig) {
				t.Fatalf("expected '%v'; got: '%v'", errdefs.ErrConfig, err)
			}
		})
	}
}

func Test_Allocate_ExhaustsAtCapacity(t *testing.T) {
	p := newPool(t, 3)
	seen := map[int]bool{}
	for range 3 {
		slot, err := p.Allocate()
		if err != nil {
			t.Fatalf("Allocate() error = %v", err)
		}
		if slot < 1 || slot > 3 {
			t.Fatalf("slot %d outside range [1,3]", slot)
		}
		if seen[slot] {
			t.Fatalf("slot %d handed out twice", slot)
		}
		seen[slot] = true
	}

	if _, err := p.Allocate(); !errors.Is(err, errdefs.ErrResourceExhausted) {
		t.Fatalf("expected '%v'; got: '%v'", errdefs.ErrResourceExhausted, err)
	}
	if p.InUse() != 3 || p.Free() != 0 {
		t.Fatalf("InUse()=%d Free()=%d", p.InUse(), p.Free())
	}
}

func Test_Allocate_Concurrent(t *testing.T) {
	const size = 16
	const callers = 64
	p := newPool(t, size)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		got      = map[int]int{}
		failures int
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			slot, err := p.Allocate()
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if !errors.Is(err, errdefs.ErrResourceExhausted) {
					t.Errorf("unexpected error: %v", err)
				}
				failures++
				return
			}
			got[slot]++
		}()
	}
	wg.Wait()

	if len(got) != size {
		t.Fatalf("expected %d distinct slots, got %d", size, len(got))
	}
	for slot, n := range got {
		if n != 1 {
			t.Errorf("slot %d allocated %d times", slot, n)
		}
	}
	if failures != callers-size {
		t.Fatalf("expected %d exhausted callers, got %d", callers-size, failures)
	}
}

func Test_Release_Idempotent(t *testing.T) {
	p := newPool(t, 2)
	slot, err := p.Allocate()
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}

	if !p.Release(slot) {
		t.Fatalf("first Release() should free the slot")
	}
	inUse := p.InUse()
	if p.Release(slot) {
		t.Fatalf("second Release() should be a no-op")
	}
	if p.InUse() != inUse || p.Held(slot) {
		t.Fatalf("second Release() changed pool state")
	}
	if p.Release(999) {
		t.Fatalf("Release() of out-of-range slot should be a no-op")
	}
}

func Test_Release_MakesSlotReusable(t *testing.T) {
	p := newPool(t, 1)
	slot, _ := p.Allocate()
	if _, err := p.Allocate(); !errors.Is(err, errdefs.ErrResourceExhausted) {
		t.Fatalf("expected exhaustion, got %v", err)
	}
	p.Release(slot)
	again, err := p.Allocate()
	if err != nil || again != slot {
		t.Fatalf("expected slot %d again, got %d err=%v", slot, again, err)
	}
}

func Test_Reserve(t *testing.T) {
	p := newPool(t, 2)
	if err := p.Reserve(2); err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	if err := p.Reserve(2); !errors.Is(err, errdefs.ErrSlotHeld) {
		t.Fatalf("expected '%v'; got: '%v'", errdefs.ErrSlotHeld, err)
	}
	if err := p.Reserve(5); !errors.Is(err, errdefs.ErrSlotOutOfRange) {
		t.Fatalf("expected '%v'; got: '%v'", errdefs.ErrSlotOutOfRange, err)
	}
	slot, err := p.Allocate()
	if err != nil || slot != 1 {
		t.Fatalf("expected remaining slot 1, got %d err=%v", slot, err)
	}
}

func Test_DisplayAndVNCPort(t *testing.T) {
	p := newPool(t, 2)
	if got := p.Display(2); got != ":2" {
		t.Errorf("Display(2) = %q", got)
	}
	if got := p.VNCPort(2); got != 5902 {
		t.Errorf("VNCPort(2) = %d", got)
	}
	if got := p.Slots(); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("Slots() = %v", got)
	}
}
