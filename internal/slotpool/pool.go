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

// Package slotpool tracks a fixed range of emulation slots (X displays, one
// VNC port each) and hands them out to sessions.
//
// Each slot is guarded by its own atomic flag. There is no pool-wide lock,
// so allocations for unrelated sessions never serialize on each other.
package slotpool

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/eminwux/wemu/internal/errdefs"
)

type Pool struct {
	base        int
	vncBasePort int
	held        []atomic.Bool
	next        atomic.Uint64
	inUse       atomic.Int64
}

// Config describes the slot range [Base, Base+Size).
type Config struct {
	Base        int
	Size        int
	VNCBasePort int
}

func New(cfg Config) (*Pool, error) {
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("%w: slot count must be positive, got %d", errdefs.ErrConfig, cfg.Size)
	}
	if cfg.Base < 0 {
		return nil, fmt.Errorf("%w: slot base must not be negative, got %d", errdefs.ErrConfig, cfg.Base)
	}
	return &Pool{
		base:        cfg.Base,
		vncBasePort: cfg.VNCBasePort,
		held:        make([]atomic.Bool, cfg.Size),
	}, nil
}

// Allocate claims a free slot or fails with ErrResourceExhausted.
// The scan starts at a rotating offset so freed slots are not reused
// immediately.
func (p *Pool) Allocate() (int, error) {
	n := uint64(len(p.held))
	start := p.next.Add(1) - 1
	for i := range n {
		idx := (start + i) % n
		if p.held[idx].CompareAndSwap(false, true) {
			p.inUse.Add(1)
			return p.base + int(idx), nil
		}
	}
	return 0, errdefs.ErrResourceExhausted
}

// Release frees slot. Releasing a free slot is a no-op. The return value
// reports whether this call did the freeing.
func (p *Pool) Release(slot int) bool {
	idx, ok := p.index(slot)
	if !ok {
		return false
	}
	if p.held[idx].CompareAndSwap(true, false) {
		p.inUse.Add(-1)
		return true
	}
	return false
}

// Reserve claims a specific slot, used when restoring sessions from the store.
func (p *Pool) Reserve(slot int) error {
	idx, ok := p.index(slot)
	if !ok {
		return fmt.Errorf("%w: %d", errdefs.ErrSlotOutOfRange, slot)
	}
	if !p.held[idx].CompareAndSwap(false, true) {
		return fmt.Errorf("%w: %d", errdefs.ErrSlotHeld, slot)
	}
	p.inUse.Add(1)
	return nil
}

// Held reports whether slot is currently allocated.
func (p *Pool) Held(slot int) bool {
	idx, ok := p.index(slot)
	if !ok {
		return false
	}
	return p.held[idx].Load()
}

func (p *Pool) Capacity() int { return len(p.held) }

func (p *Pool) InUse() int { return int(p.inUse.Load()) }

func (p *Pool) Free() int { return p.Capacity() - p.InUse() }

// Slots returns every slot number in the range.
func (p *Pool) Slots() []int {
	out := make([]int, len(p.held))
	for i := range out {
		out[i] = p.base + i
	}
	return out
}

// Display is the X display string for slot, e.g. ":3".
func (p *Pool) Display(slot int) string {
	return fmt.Sprintf(":%d", slot)
}

// VNCPort is the VNC port serving slot.
func (p *Pool) VNCPort(slot int) int {
	return p.vncBasePort + slot
}

func (p *Pool) index(slot int) (int, bool) {
	idx := slot - p.base
	if idx < 0 || idx >= len(p.held) {
		return 0, false
	}
	return idx, true
}

// IsExhausted reports whether err means the pool had no free slot.
func IsExhausted(err error) bool {
	return errors.Is(err, errdefs.ErrResourceExhausted)
}
