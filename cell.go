// cell.go: Atomic reference cell
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Package atomicref implements the atomic reference cell: a container
// holding a single value of type T that supports many concurrent readers
// and many concurrent writers, handing readers a stable refcounted
// snapshot and letting writers replace the value with a function of its
// current contents.
package atomicref

import (
	"sync/atomic"

	"github.com/manuelgdlvh/atomic-ref/access"
	"github.com/manuelgdlvh/atomic-ref/ref"
)

// idCounter is a process-wide monotonically increasing counter: it is
// used solely to give Transaction a global lock order and is never reset.
var idCounter atomic.Uint64

func nextID() uint64 {
	return idCounter.Add(1)
}

// Cell owns the currently installed Generation and the access controller
// arbitrating readers and writers over it.
type Cell[T any] struct {
	id      uint64
	current atomic.Pointer[ref.Generation[T]]
	ctrl    access.Controller
}

// NewRWCell builds a Cell backed by the RW-Lock controller — the
// correctness reference variant, suitable as a baseline to validate the
// phased variant against.
func NewRWCell[T any](initial T) *Cell[T] {
	return newCell[T](initial, access.NewRWController())
}

// NewPhasedCell builds a Cell backed by the Phased-CAS controller.
// maxWriteLine must be >= 1; violating that is a programmer error
// surfaced as a panic, consistent with how the rest of the controller's
// invariant violations are handled. Prefer the config.go constructors
// (NewCell with WithPhased) if you want this rejected as a recoverable
// error instead.
func NewPhasedCell[T any](initial T, maxWriteLine uint16) *Cell[T] {
	if maxWriteLine == 0 {
		panic("atomicref: max_write_line must be >= 1")
	}
	return newCell[T](initial, access.NewPhasedController(maxWriteLine))
}

func newCell[T any](initial T, ctrl access.Controller) *Cell[T] {
	c := &Cell[T]{id: nextID(), ctrl: ctrl}
	c.current.Store(ref.NewGeneration(initial))
	return c
}

// ID returns the cell's process-wide monotonic identity, used by
// Transaction to order lock acquisition across cells and deadlock-free by
// construction.
func (c *Cell[T]) ID() uint64 {
	return c.id
}

// Read acquires a read permit, loads the current generation, and returns a
// Snapshot that keeps it alive independent of any writes that follow.
func (c *Cell[T]) Read() *ref.Snapshot[T] {
	permit := c.ctrl.Read()
	defer permit.Release()

	gen := c.current.Load()
	return ref.FromGeneration(gen)
}

// Update acquires a write permit, computes f once over the current value,
// installs the result as a new Generation, and releases the old one's
// installed share — freeing it immediately if no reader holds a Snapshot
// of it. f may be called again on a future Update call but runs exactly
// once per call, under the write permit.
func (c *Cell[T]) Update(f func(T) T) {
	permit := c.ctrl.Write()
	defer func() {
		if r := recover(); r != nil {
			if p, ok := c.ctrl.(access.Poisoner); ok {
				p.MarkPoisoned()
			}
			permit.Release()
			panic(r)
		}
		permit.Release()
	}()

	old := c.current.Load()
	next := ref.NewGeneration(f(old.Data()))
	c.current.Store(next)
	old.Release()
}

// Close releases the cell's own installed share of its current Generation.
// Live Snapshots taken before Close keep that Generation alive past the
// cell's own lifetime.
func (c *Cell[T]) Close() {
	c.current.Load().Release()
}

// AcquireWrite acquires a write permit without also performing an update.
// This is the minimal capability package txn needs to drive a multi-cell
// transaction; ordinary single-cell callers should use Update instead.
func (c *Cell[T]) AcquireWrite() access.WritePermit {
	return c.ctrl.Write()
}

// Peek returns the currently installed Generation without acquiring a
// share of it. Safe to call while holding a write permit obtained from
// AcquireWrite, which is sufficient exclusion against other writers.
func (c *Cell[T]) Peek() *ref.Generation[T] {
	return c.current.Load()
}

// Swap installs next as the current Generation and returns the one it
// replaced, without releasing either side's refcount — the caller owns
// both the increment of next's installed share (already counted at
// construction) and the decrement of the returned Generation's installed
// share once it is safe to do so.
func (c *Cell[T]) Swap(next *ref.Generation[T]) *ref.Generation[T] {
	return c.current.Swap(next)
}

// Restore forces the current Generation pointer back to gen, without
// touching any refcount. Used by Transaction to roll a cell back to its
// pre-transaction value when a later step in the same transaction aborts.
func (c *Cell[T]) Restore(gen *ref.Generation[T]) {
	c.current.Store(gen)
}
