// backoff.go: Exponential backoff spin helper
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Package backoff implements the exponential-backoff spin helper shared by
// every contending loop in the access controllers: CAS retries, slot
// reservation retries, and writer/reader admission waits.
//
// It deliberately holds no reference to any synchronization primitive and
// carries no state across acquisitions beyond its own step counter — a
// fresh Backoff is created at the start of each admission attempt and
// discarded once it succeeds, mirroring a thread-local spin budget.
package backoff

import "runtime"

const (
	// spinLimit is the highest step at which Snooze still performs a short
	// busy pause instead of yielding the thread. Each step doubles the pause
	// length, so by spinLimit the pause is already long enough that
	// yielding becomes cheaper than spinning further.
	spinLimit = 6

	// capStep bounds the step counter (the busy pause itself stops growing
	// at spinLimit, after which Snooze yields) and is also the point at
	// which IsCompleted starts reporting true — a hint
	// to callers with access to a blocking primitive that parking the
	// goroutine would now be cheaper than continuing to poll.
	capStep = 10
)

// Backoff is a mutable, non-threadsafe spin budget. Zero value is ready to
// use. Not safe for concurrent use — each goroutine must own its own
// Backoff value.
type Backoff struct {
	step int
}

// Snooze performs one backoff step: a short busy pause while the budget is
// small, or a scheduler yield once the budget has grown past spinLimit.
func (b *Backoff) Snooze() {
	if b.step <= spinLimit {
		spin(1 << uint(b.step))
	} else {
		runtime.Gosched()
	}
	if b.step < capStep {
		b.step++
	}
}

// IsCompleted reports whether the spin budget has reached its cap — a hint
// that the caller should fall back to a blocking primitive if one is
// available, rather than continuing to poll.
func (b *Backoff) IsCompleted() bool {
	return b.step >= capStep
}

// Reset clears the step counter, restarting the budget from its smallest
// pause. None of the current admission loops need it — each starts a
// fresh Backoff per attempt — but it's kept available for a caller that
// wants to reuse one Backoff value across multiple independent wait
// phases instead of allocating a new one for each.
func (b *Backoff) Reset() {
	b.step = 0
}

// spin performs n iterations of a tight, non-yielding loop. It stands in
// for a CPU pause instruction: cheap, no scheduler involvement, just long
// enough to give a contended cache line a chance to settle before retrying.
// The loop variable is kept alive so the compiler cannot prove the loop has
// no observable effect and elide it.
func spin(n int) {
	var x int
	for i := 0; i < n; i++ {
		x++
	}
	runtime.KeepAlive(x)
}
