// phased.go: Phase-batched CAS controller for the atomic reference cell
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package access

import (
	"github.com/manuelgdlvh/atomic-ref/errs"
	"github.com/manuelgdlvh/atomic-ref/internal/backoff"
	"github.com/manuelgdlvh/atomic-ref/internal/xatomic"
)

// readFlags bit layout: active_readers:16 | pending_readers:16 | read_slots:32.
const (
	activeReadersMask   uint64 = 0x0000_0000_0000_FFFF
	pendingReadersMask  uint64 = 0x0000_0000_FFFF_0000
	readSlotsMask       uint64 = 0xFFFF_FFFF_0000_0000
	pendingReadersShift uint64 = 16
	readSlotsShift      uint64 = 32
)

// PhasedController is the core algorithm: it admits readers and writers in
// alternating phases, batching up to maxWriteLine writers per phase while
// guaranteeing every reader that registered intent before a phase began a
// grace admission once that phase's initiator has set up the read-slot
// quota.
type PhasedController struct {
	readFlags xatomic.PaddedUint64

	writeSlots     xatomic.PaddedInt32
	nextWriterID   xatomic.PaddedInt32
	pendingWriters xatomic.PaddedInt32
	isWriting      xatomic.PaddedBool

	maxWriteLine int32
}

// NewPhasedController builds a controller bounding each write phase to at
// most maxWriteLine back-to-back writers. maxWriteLine must be >= 1; the
// caller (Cell's constructor) is responsible for rejecting 0 as a
// configuration error before reaching here.
func NewPhasedController(maxWriteLine uint16) *PhasedController {
	return &PhasedController{maxWriteLine: int32(maxWriteLine)}
}

func (c *PhasedController) incPendingReaders() {
	for {
		old := c.readFlags.Load()
		pending := (old & pendingReadersMask) >> pendingReadersShift
		next := (old &^ pendingReadersMask) | ((pending + 1) << pendingReadersShift)
		if c.readFlags.CompareAndSwap(old, next) {
			return
		}
	}
}

// initializeRead optimistically admits a reader that observed is_writing
// false: pending-1, active+1 in one CAS.
func (c *PhasedController) initializeRead() {
	for {
		old := c.readFlags.Load()
		pending := (old & pendingReadersMask) >> pendingReadersShift
		active := old & activeReadersMask
		next := (old &^ (activeReadersMask | pendingReadersMask)) |
			((pending - 1) << pendingReadersShift) | (active + 1)
		if c.readFlags.CompareAndSwap(old, next) {
			return
		}
	}
}

// tryReserveReadSlotOrReset is called right after initializeRead when
// is_writing turned out to be true. If a grace slot is available it is
// consumed (active/pending are left as initializeRead already set them);
// otherwise the optimistic admission is rolled back (pending+1, active-1).
// Returns whether a slot was consumed.
func (c *PhasedController) tryReserveReadSlotOrReset() bool {
	for {
		old := c.readFlags.Load()
		slots := (old & readSlotsMask) >> readSlotsShift
		var next uint64
		if slots == 0 {
			pending := (old & pendingReadersMask) >> pendingReadersShift
			active := old & activeReadersMask
			next = (old &^ (activeReadersMask | pendingReadersMask)) |
				((pending + 1) << pendingReadersShift) | (active - 1)
		} else {
			next = (old &^ readSlotsMask) | ((slots - 1) << readSlotsShift)
		}
		if c.readFlags.CompareAndSwap(old, next) {
			return slots != 0
		}
	}
}

// tryReserveReadSlot consumes one grace slot while is_writing is already
// known true: pending-1, active+1, slots-1 in one CAS.
func (c *PhasedController) tryReserveReadSlot() bool {
	for {
		old := c.readFlags.Load()
		slots := (old & readSlotsMask) >> readSlotsShift
		if slots == 0 {
			return false
		}
		pending := (old & pendingReadersMask) >> pendingReadersShift
		if pending == 0 {
			errs.FatalInvariant(errs.ErrCodeInvariantViolation, "pending reader count underflowed past zero")
		}
		active := old & activeReadersMask
		next := ((slots - 1) << readSlotsShift) | ((pending - 1) << pendingReadersShift) | (active + 1)
		if c.readFlags.CompareAndSwap(old, next) {
			return true
		}
	}
}

// initializeReadSlots installs the grace-slot quota the initiator computed
// from the pending-reader snapshot taken at phase start.
func (c *PhasedController) initializeReadSlots(slotsSize uint64) {
	for {
		old := c.readFlags.Load()
		next := old | (slotsSize << readSlotsShift)
		if c.readFlags.CompareAndSwap(old, next) {
			return
		}
	}
}

func (c *PhasedController) decActiveReaders() {
	for {
		old := c.readFlags.Load()
		active := old & activeReadersMask
		if active == 0 {
			errs.FatalInvariant(errs.ErrCodeInvariantViolation, "active reader count underflowed past zero")
		}
		next := (old &^ activeReadersMask) | (active - 1)
		if c.readFlags.CompareAndSwap(old, next) {
			return
		}
	}
}

func (c *PhasedController) tryReserveWriteSlot() (int32, bool) {
	for {
		slots := c.writeSlots.Load()
		if slots == 0 {
			return 0, false
		}
		if c.writeSlots.CompareAndSwap(slots, slots-1) {
			return slots, true
		}
	}
}

// Read implements reader admission: register intent, then either ride the
// OPEN fast path or consume a grace slot once a phase is under way.
func (c *PhasedController) Read() ReadPermit {
	c.incPendingReaders()

	var bo backoff.Backoff
	for {
		if c.isWriting.Load() {
			if c.tryReserveReadSlot() {
				break
			}
		} else {
			c.initializeRead()
			if !c.isWriting.Load() || c.tryReserveReadSlotOrReset() {
				break
			}
		}
		bo.Snooze()
	}

	return phasedReadPermit{c: c}
}

// Write implements writer admission: register intent, race to become the
// phase initiator or reserve a follower slot, then (for the initiator)
// hand out the reader grace quota and drain, or (for a follower) wait for
// the countdown to reach its slot index.
func (c *PhasedController) Write() WritePermit {
	c.pendingWriters.Add(1)

	var slotIdx int32
	var initiator bool
	var bo backoff.Backoff

	for {
		if c.isWriting.Load() {
			if v, ok := c.tryReserveWriteSlot(); ok {
				slotIdx = v
				initiator = false
				break
			}
		} else if c.isWriting.CompareAndSwap(false, true) {
			initiator = true
			pending := c.pendingWriters.Load()
			phaseSize := pending
			if phaseSize > c.maxWriteLine {
				phaseSize = c.maxWriteLine
			}
			c.writeSlots.Store(phaseSize - 1)
			slotIdx = phaseSize
			c.nextWriterID.Store(phaseSize)
			break
		} else if v, ok := c.tryReserveWriteSlot(); ok {
			slotIdx = v
			initiator = false
			break
		}
		bo.Snooze()
	}

	c.pendingWriters.Add(-1)

	if initiator {
		pendingReaders := (c.readFlags.Load() & pendingReadersMask) >> pendingReadersShift
		if pendingReaders > 0 {
			c.initializeReadSlots(pendingReaders)
		}

		var wbo backoff.Backoff
		for {
			flags := c.readFlags.Load()
			active := flags & activeReadersMask
			slots := (flags & readSlotsMask) >> readSlotsShift
			if active == 0 && slots == 0 {
				break
			}
			wbo.Snooze()
		}
	} else {
		var wbo backoff.Backoff
		for c.nextWriterID.Load() != slotIdx {
			wbo.Snooze()
		}
	}

	return phasedWritePermit{c: c}
}

type phasedReadPermit struct{ c *PhasedController }

func (p phasedReadPermit) Release() {
	p.c.decActiveReaders()
}

type phasedWritePermit struct{ c *PhasedController }

// Release decrements next_writer_id; the writer whose decrement observes
// the phase's last slot (old value 1, i.e. the new value hitting 0) clears
// is_writing, transitioning the cell back to OPEN.
func (p phasedWritePermit) Release() {
	if p.c.nextWriterID.Add(-1) == 0 {
		p.c.isWriting.Store(false)
	}
}
