// ref.go: Refcounted value generations and reader snapshots
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Package ref implements the refcounted value generation and the
// Snapshot handle readers use to borrow it.
//
// A generation is allocated on every update and never mutated once
// installed; its only mutable field is the atomic refcount, which starts
// at 1 (the cell's own "installed" share) and is incremented once per
// outstanding Snapshot. The generation is freed the moment the count drops
// to zero, which can happen either when the cell swaps it out and its last
// reader drops, or — if no reader ever observed it — the instant the cell
// itself drops the installed share.
package ref

import "sync/atomic"

// liveGenerations is a test-support counter, not a production feature: it
// lets the suite assert that every Generation allocated is eventually
// freed, without hooking a custom allocator, which Go does not expose
// portably.
var liveGenerations atomic.Int64

// LiveGenerations returns the number of Generations currently allocated and
// not yet freed. Intended for tests only.
func LiveGenerations() int64 {
	return liveGenerations.Load()
}

// Generation is the immutable payload a Cell currently exposes.
type Generation[T any] struct {
	data T
	refs atomic.Int32
}

// NewGeneration allocates a Generation with refs=1, representing the single
// "installed in a cell" share. The caller owns that share and must
// eventually release it via Release.
func NewGeneration[T any](data T) *Generation[T] {
	g := &Generation[T]{data: data}
	g.refs.Store(1)
	liveGenerations.Add(1)
	return g
}

// Acquire increments the refcount, producing a new owned share of the same
// Generation. Used both by Snapshot.Clone and by the cell when it hands a
// freshly loaded pointer to a new Snapshot.
func (g *Generation[T]) Acquire() {
	g.refs.Add(1)
}

// Release decrements the refcount and frees the Generation's bookkeeping
// once the last share is gone. Safe to call concurrently from any number of
// goroutines, each releasing a share it owns exactly once.
func (g *Generation[T]) Release() {
	if g.refs.Add(-1) == 0 {
		liveGenerations.Add(-1)
	}
}

// Data returns the immutable payload.
func (g *Generation[T]) Data() T {
	return g.data
}

// Snapshot is a shared, read-only borrow of one Generation. Its pointer is
// never nil and never dangles for the Snapshot's lifetime: the Generation
// it refers to is kept alive by the share Snapshot owns.
type Snapshot[T any] struct {
	gen *Generation[T]
}

// newSnapshot wraps gen, taking ownership of the share the caller already
// acquired on gen (the cell's read path acquires before constructing the
// Snapshot).
func newSnapshot[T any](gen *Generation[T]) *Snapshot[T] {
	return &Snapshot[T]{gen: gen}
}

// FromGeneration acquires a new share of gen and returns a Snapshot owning
// it. This is the public entry point cells and transactions use to hand
// out a read-only view of a generation they currently hold installed.
func FromGeneration[T any](gen *Generation[T]) *Snapshot[T] {
	gen.Acquire()
	return newSnapshot(gen)
}

// Get returns the borrowed value. Valid for the lifetime of the Snapshot,
// independent of any writes that happen after it was taken.
func (s *Snapshot[T]) Get() T {
	return s.gen.Data()
}

// Clone returns a new Snapshot sharing the same Generation, incrementing
// its refcount.
func (s *Snapshot[T]) Clone() *Snapshot[T] {
	s.gen.Acquire()
	return newSnapshot(s.gen)
}

// Close releases this Snapshot's share. A Snapshot must not be used after
// Close. Closing more than once double-releases and is a caller bug, same
// as double-freeing any other owned resource.
func (s *Snapshot[T]) Close() {
	s.gen.Release()
}
