// txn.go: Multi-cell transactions for the atomic reference cell
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Package txn implements the multi-cell Transaction: a way to update
// several Cells as a single all-or-nothing unit, deadlock-free by always
// acquiring write permits in ascending cell-ID order.
//
// Because Transaction must hold steps over Cells of different type
// parameters in one slice, and Go methods cannot themselves be generic,
// each step is captured behind the small step interface below by a
// generic free function, Add. This mirrors the library's habit of
// dispatching across heterogeneous concrete types through a narrow
// capability interface rather than reaching for reflection.
package txn

import (
	"sort"

	"github.com/manuelgdlvh/atomic-ref/access"
	"github.com/manuelgdlvh/atomic-ref/ref"
)

// step is one cell's participation in a transaction. Execute drives every
// step through this same sequence regardless of the cell's value type.
type step interface {
	cellID() uint64
	acquire()
	apply() bool
	rollback()
	commitRelease()
	release()
}

// Transaction batches writes to one or more Cells so that either all of
// them apply or none do.
type Transaction struct {
	steps []step
}

// New returns an empty Transaction with room for capacity steps. capacity
// is a hint; Add grows the slice as needed.
func New(capacity int) *Transaction {
	return &Transaction{steps: make([]step, 0, capacity)}
}

// cell is the slice of Cell[T]'s API a transaction step needs. Satisfied
// by *atomicref.Cell[T]; declared here instead of imported to keep this
// package's only dependency on the root package expressed structurally,
// at the single call site (Add) rather than threaded through every type
// in this file.
type cell[T any] interface {
	ID() uint64
	AcquireWrite() access.WritePermit
	Peek() *ref.Generation[T]
	Swap(next *ref.Generation[T]) *ref.Generation[T]
	Restore(gen *ref.Generation[T])
}

// Add registers cell's participation in the transaction: when Execute
// runs, f is called with the cell's current value. Returning (v, true)
// proposes v as the cell's new value; returning (_, false) aborts the
// whole transaction, leaving every cell untouched.
//
// Add cannot be a method on Transaction because Go does not support
// generic methods; it is a free function instead, parameterized on the
// cell's value type at each call site.
func Add[T any](t *Transaction, c cell[T], f func(T) (T, bool)) *Transaction {
	t.steps = append(t.steps, &cellStep[T]{target: c, fn: f})
	return t
}

// cellStep is the concrete, per-T implementation of step.
type cellStep[T any] struct {
	target cell[T]
	fn     func(T) (T, bool)

	permit  access.WritePermit
	oldGen  *ref.Generation[T]
	newGen  *ref.Generation[T]
	applied bool
}

func (s *cellStep[T]) cellID() uint64 { return s.target.ID() }

func (s *cellStep[T]) acquire() {
	s.permit = s.target.AcquireWrite()
}

// apply computes the step's proposed value and, if accepted, installs it
// immediately. A later step's abort is undone by rollback, which restores
// oldGen and releases the speculative newGen. Execute holds every step's
// write permit from before the first apply until after commit or
// rollback, so readers of these cells are not admitted in between.
func (s *cellStep[T]) apply() bool {
	old := s.target.Peek()
	val, ok := s.fn(old.Data())
	if !ok {
		return false
	}

	next := ref.NewGeneration(val)
	s.oldGen = s.target.Swap(next)
	s.newGen = next
	s.applied = true
	return true
}

func (s *cellStep[T]) rollback() {
	if !s.applied {
		return
	}
	s.target.Restore(s.oldGen)
	s.newGen.Release()
}

func (s *cellStep[T]) commitRelease() {
	if s.oldGen != nil {
		s.oldGen.Release()
	}
}

func (s *cellStep[T]) release() {
	if s.permit != nil {
		s.permit.Release()
	}
}

// Execute sorts the steps by cell ID, acquires every write permit in that
// order, applies each step in turn, and either commits (decrementing
// every replaced generation's installed share) or rolls back (restoring
// every already-applied cell and discarding its speculative generation)
// before releasing all permits.
//
// Execute reports whether the transaction committed. It never panics on
// a logical abort — that is always a plain false.
func (t *Transaction) Execute() bool {
	sort.SliceStable(t.steps, func(i, j int) bool {
		return t.steps[i].cellID() < t.steps[j].cellID()
	})

	for _, s := range t.steps {
		s.acquire()
	}

	applied := make([]step, 0, len(t.steps))
	aborted := false
	for _, s := range t.steps {
		if !s.apply() {
			aborted = true
			break
		}
		applied = append(applied, s)
	}

	if aborted {
		for i := len(applied) - 1; i >= 0; i-- {
			applied[i].rollback()
		}
		for _, s := range t.steps {
			s.release()
		}
		return false
	}

	for _, s := range applied {
		s.commitRelease()
	}
	for _, s := range t.steps {
		s.release()
	}
	return true
}
