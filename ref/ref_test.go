// ref_test.go: Tests for refcounted value generations and snapshots
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package ref

import "testing"

func TestGenerationRefcountClosure(t *testing.T) {
	before := LiveGenerations()

	g := NewGeneration(7)
	if got := LiveGenerations(); got != before+1 {
		t.Fatalf("LiveGenerations() = %d after construction, want %d", got, before+1)
	}

	g.Acquire()
	g.Release()
	if got := LiveGenerations(); got != before+1 {
		t.Fatalf("LiveGenerations() = %d after a balanced Acquire/Release, want %d", got, before+1)
	}

	g.Release()
	if got := LiveGenerations(); got != before {
		t.Fatalf("LiveGenerations() = %d after the installed share is released, want %d", got, before)
	}
}

func TestSnapshotGetIndependentOfFutureReleases(t *testing.T) {
	g := NewGeneration("hello")
	snap := FromGeneration(g)
	defer snap.Close()

	g.Release() // drop the cell's own installed share; snap still holds one
	if got := LiveGenerations(); got == 0 {
		// only meaningful when nothing else is concurrently freeing; a weak
		// sanity check that the generation survived the cell's release.
		t.Fatalf("generation was freed while a Snapshot still held a share")
	}

	if got := snap.Get(); got != "hello" {
		t.Fatalf("Get() = %q, want %q", got, "hello")
	}
}

func TestSnapshotCloneSharesData(t *testing.T) {
	g := NewGeneration(99)
	snap := FromGeneration(g)
	clone := snap.Clone()

	if snap.Get() != clone.Get() {
		t.Fatalf("clone diverged: %v != %v", snap.Get(), clone.Get())
	}

	g.Release() // installed share
	clone.Close()
	if got := snap.Get(); got != 99 {
		t.Fatalf("Get() = %v after clone closed, want 99 (original snapshot still live)", got)
	}
	snap.Close()
}

func TestGenerationFreesOnlyAtZero(t *testing.T) {
	before := LiveGenerations()
	g := NewGeneration(1)
	g.Acquire()
	g.Acquire()

	g.Release()
	if got := LiveGenerations(); got != before+1 {
		t.Fatalf("LiveGenerations() = %d after first release of three shares, want %d", got, before+1)
	}
	g.Release()
	if got := LiveGenerations(); got != before+1 {
		t.Fatalf("LiveGenerations() = %d after second release of three shares, want %d", got, before+1)
	}
	g.Release()
	if got := LiveGenerations(); got != before {
		t.Fatalf("LiveGenerations() = %d after final release, want %d", got, before)
	}
}
