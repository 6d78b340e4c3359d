// Package ringbuffer implements the daemon-side ring of trace-job slots a
// producer publishes into and a consumer daemon drains from. The Status
// field of each slot is the sole cross-process visibility barrier: a
// producer release-stores StatusReady after writing everything else
// in the slot, and a consumer acquire-loads Status before trusting the rest
// of the slot's contents.
package ringbuffer

import (
	"sync/atomic"

	"github.com/qorix-group/baselibs-sub006/internal/tracing/chunklist"
	"github.com/qorix-group/baselibs-sub006/internal/tracing/tracerrors"
)

// Status is the lifecycle state of one ring slot.
type Status uint32

const (
	// StatusEmpty means the slot holds no job and is available to a
	// producer via GetEmptyElement.
	StatusEmpty Status = iota
	// StatusAllocating means a producer has claimed the slot but has not
	// yet published it; a consumer must not read it.
	StatusAllocating
	// StatusReady means the slot is fully written and safe for a consumer
	// to read.
	StatusReady
)

// Slot is one entry of the ring. ChunkList identifies, by shared-memory
// location, the ShmChunkVector header holding the job's payload chunks. The
// slot's status lives in a parallel atomic array inside Buffer so Slot
// itself stays a plain copyable value.
type Slot struct {
	ClientID  uint64
	ContextID uint64
	ChunkList chunklist.ShmLocation
}

// Ring is the interface tracejob depends on, so a test double can stand in
// for a real Buffer.
type Ring interface {
	GetEmptyElement() (int, error)
	FreeElement(idx int)
	Publish(idx int, clientID, contextID uint64, loc chunklist.ShmLocation)
	StatusAt(idx int) Status
	SlotAt(idx int) Slot
	Reclaim(idx int) bool
	Capacity() int
}

// Buffer is a fixed-capacity ring of slots, cycling a next-claim cursor
// across GetEmptyElement calls so repeated allocation/deallocation doesn't
// pathologically favour low indices.
type Buffer struct {
	slots  []Slot
	status []atomic.Uint32
	next   atomic.Uint64
}

// New builds a Buffer with the given number of slots, all initially empty.
func New(capacity int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, tracerrors.InvalidArgument("ringbuffer.New", "capacity must be positive")
	}

	return &Buffer{slots: make([]Slot, capacity), status: make([]atomic.Uint32, capacity)}, nil
}

// Capacity returns the number of slots in the ring.
func (b *Buffer) Capacity() int { return len(b.slots) }

// GetEmptyElement claims the next available empty slot by CAS, scanning at
// most Capacity() slots starting from the cursor before giving up.
func (b *Buffer) GetEmptyElement() (int, error) {
	n := len(b.slots)

	start := int(b.next.Add(1)-1) % n

	for i := 0; i < n; i++ {
		idx := (start + i) % n

		if b.status[idx].CompareAndSwap(uint32(StatusEmpty), uint32(StatusAllocating)) {
			return idx, nil
		}
	}

	return 0, tracerrors.NoSpaceLeftForAllocation("ringbuffer.GetEmptyElement")
}

// FreeElement releases a claimed slot back to Empty without publishing it,
// e.g. when a trace-job allocation fails partway through and the slot
// reservation must be rolled back.
func (b *Buffer) FreeElement(idx int) {
	if idx < 0 || idx >= len(b.slots) {
		return
	}

	b.status[idx].Store(uint32(StatusEmpty))
}

// Publish writes the slot's payload fields and then release-stores
// StatusReady, making the slot visible to a consumer.
func (b *Buffer) Publish(idx int, clientID, contextID uint64, loc chunklist.ShmLocation) {
	if idx < 0 || idx >= len(b.slots) {
		return
	}

	s := &b.slots[idx]
	s.ClientID = clientID
	s.ContextID = contextID
	s.ChunkList = loc
	b.status[idx].Store(uint32(StatusReady))
}

// StatusAt returns the status of slot idx with acquire semantics.
func (b *Buffer) StatusAt(idx int) Status {
	if idx < 0 || idx >= len(b.slots) {
		return StatusEmpty
	}

	return Status(b.status[idx].Load())
}

// SlotAt returns a copy of slot idx's payload fields. Callers must check
// StatusAt returns StatusReady before trusting the result.
func (b *Buffer) SlotAt(idx int) Slot {
	if idx < 0 || idx >= len(b.slots) {
		return Slot{}
	}

	return b.slots[idx]
}

// Reclaim resets a StatusReady slot back to StatusEmpty once a consumer has
// finished with it, e.g. via DeallocateJob.
func (b *Buffer) Reclaim(idx int) bool {
	if idx < 0 || idx >= len(b.slots) {
		return false
	}

	return b.status[idx].CompareAndSwap(uint32(StatusReady), uint32(StatusEmpty))
}
