// rwlock.go: RW-mutex controller variant for the atomic reference cell
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package access

import (
	"sync"
	"sync/atomic"

	"github.com/manuelgdlvh/atomic-ref/errs"
)

// RWController is the correctness reference for Cell: straightforward
// multi-reader/single-writer exclusion backed by the host's reader-writer
// lock. Ordering and fairness are delegated entirely to sync.RWMutex.
type RWController struct {
	mu       sync.RWMutex
	poisoned atomic.Bool
}

// NewRWController returns a ready-to-use RW-lock controller.
func NewRWController() *RWController {
	return &RWController{}
}

// MarkPoisoned permanently fails this controller. Go's sync.RWMutex does
// not itself poison on a panicking critical section the way some hosts'
// reader-writer locks do; this is the closest available idiom — a writer
// that panics while holding the write permit poisons the controller, and
// every subsequent admission attempt hits the fatal "poisoned primitive"
// case.
func (c *RWController) MarkPoisoned() {
	c.poisoned.Store(true)
}

func (c *RWController) checkPoisoned() {
	if c.poisoned.Load() {
		errs.FatalInvariant(errs.ErrCodePoisoned, "rwlock controller poisoned by a prior panic while a write permit was held")
	}
}

func (c *RWController) Read() ReadPermit {
	c.checkPoisoned()
	c.mu.RLock()
	return rwReadPermit{c: c}
}

func (c *RWController) Write() WritePermit {
	c.checkPoisoned()
	c.mu.Lock()
	return rwWritePermit{c: c}
}

type rwReadPermit struct{ c *RWController }

func (p rwReadPermit) Release() { p.c.mu.RUnlock() }

type rwWritePermit struct{ c *RWController }

func (p rwWritePermit) Release() { p.c.mu.Unlock() }
