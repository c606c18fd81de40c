// txn_test.go: Tests for multi-cell transactions
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package txn

import (
	"sync"
	"testing"

	atomicref "github.com/manuelgdlvh/atomic-ref"
)

func TestTransactionCommitsAllOrNothing(t *testing.T) {
	a := atomicref.NewPhasedCell(10, 4)
	defer a.Close()
	b := atomicref.NewPhasedCell(20, 4)
	defer b.Close()

	tr := New(2)
	Add(tr, a, func(v int) (int, bool) { return v + 1, true })
	Add(tr, b, func(v int) (int, bool) { return v + 1, true })

	if ok := tr.Execute(); !ok {
		t.Fatal("expected Execute to commit")
	}

	snapA := a.Read()
	defer snapA.Close()
	snapB := b.Read()
	defer snapB.Close()

	if got := snapA.Get(); got != 11 {
		t.Fatalf("a = %d, want 11", got)
	}
	if got := snapB.Get(); got != 21 {
		t.Fatalf("b = %d, want 21", got)
	}
}

func TestTransactionAbortLeavesEveryCellUntouched(t *testing.T) {
	a := atomicref.NewPhasedCell(10, 4)
	defer a.Close()
	b := atomicref.NewPhasedCell(20, 4)
	defer b.Close()

	tr := New(2)
	Add(tr, a, func(v int) (int, bool) { return v + 1, true })
	Add(tr, b, func(v int) (int, bool) { return v, false }) // aborts the whole transaction

	if ok := tr.Execute(); ok {
		t.Fatal("expected Execute to abort")
	}

	snapA := a.Read()
	defer snapA.Close()
	snapB := b.Read()
	defer snapB.Close()

	if got := snapA.Get(); got != 10 {
		t.Fatalf("a = %d after abort, want unchanged 10", got)
	}
	if got := snapB.Get(); got != 20 {
		t.Fatalf("b = %d after abort, want unchanged 20", got)
	}
}

func TestTransactionHeterogeneousCellTypes(t *testing.T) {
	n := atomicref.NewPhasedCell(0, 4)
	defer n.Close()
	s := atomicref.NewPhasedCell("a", 4)
	defer s.Close()

	tr := New(2)
	Add(tr, n, func(v int) (int, bool) { return v + 1, true })
	Add(tr, s, func(v string) (string, bool) { return v + "b", true })

	if ok := tr.Execute(); !ok {
		t.Fatal("expected Execute to commit")
	}

	snapN := n.Read()
	defer snapN.Close()
	snapS := s.Read()
	defer snapS.Close()

	if got := snapN.Get(); got != 1 {
		t.Fatalf("n = %d, want 1", got)
	}
	if got := snapS.Get(); got != "ab" {
		t.Fatalf("s = %q, want %q", got, "ab")
	}
}

// TestTransactionConservation is a conservation-law check: concurrent
// transfer transactions between two cells must never change their sum,
// even when some transactions abort because a balance would go negative.
func TestTransactionConservation(t *testing.T) {
	const total = 1000
	a := atomicref.NewPhasedCell(total, 4)
	defer a.Close()
	b := atomicref.NewPhasedCell(0, 4)
	defer b.Close()

	const transfers = 2000
	var wg sync.WaitGroup
	wg.Add(transfers)
	for i := 0; i < transfers; i++ {
		go func(amount int) {
			defer wg.Done()
			tr := New(2)
			Add(tr, a, func(v int) (int, bool) {
				if v < amount {
					return v, false
				}
				return v - amount, true
			})
			Add(tr, b, func(v int) (int, bool) { return v + amount, true })
			tr.Execute()
		}(1)
	}
	wg.Wait()

	snapA := a.Read()
	defer snapA.Close()
	snapB := b.Read()
	defer snapB.Close()

	if got := snapA.Get() + snapB.Get(); got != total {
		t.Fatalf("a+b = %d, want %d (conservation violated)", got, total)
	}
	if v := snapA.Get(); v < 0 {
		t.Fatalf("a = %d, went negative", v)
	}
}
