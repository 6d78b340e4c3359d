// Package fca implements the FlexibleCircularAllocator: a mutex-protected,
// best-fit-via-circular-first-fit byte allocator over a caller-provided
// buffer. All operations are serialised by one process-local mutex; it does
// not synchronise across processes: route allocation to one
// owner process, or use package lfca for cross-process allocation.
package fca

import (
	"sync"
	"unsafe"

	"github.com/qorix-group/baselibs-sub006/internal/tracing/tracerrors"
)

// MemoryBlock describes one block of memory by address and size, ordered by
// address within Allocator's internal free list.
type MemoryBlock struct {
	Address uintptr
	Size    uintptr
}

// Stats exposes the allocator's monitoring counters.
type Stats struct {
	AllocCount      uint64
	DeallocCount    uint64
	CumulativeUsage uint64
	LowestAvailable uint64
}

// Allocator is the mutex-protected FlexibleCircularAllocator.
type Allocator struct {
	mu sync.Mutex

	buf             []byte
	base            uintptr
	totalSize       uintptr
	latestAllocated uintptr

	free      []MemoryBlock
	allocated map[uintptr]MemoryBlock

	stats Stats
}

// New constructs an Allocator over buf. The entire buffer is immediately one
// free block.
func New(buf []byte) (*Allocator, error) {
	if buf == nil {
		return nil, tracerrors.BaseAddressVoid()
	}

	if len(buf) == 0 {
		return nil, tracerrors.SizeIsZero()
	}

	base := uintptr(unsafe.Pointer(&buf[0]))

	a := &Allocator{
		buf:       buf,
		base:      base,
		totalSize: uintptr(len(buf)),
		allocated: make(map[uintptr]MemoryBlock),
		free:      []MemoryBlock{{Address: base, Size: uintptr(len(buf))}},
	}
	a.latestAllocated = base
	a.stats.LowestAvailable = uint64(len(buf))

	return a, nil
}

func alignUp(size, alignment uintptr) uintptr {
	if alignment == 0 {
		return size
	}

	rem := size % alignment
	if rem == 0 {
		return size
	}

	return size + (alignment - rem)
}

// Allocate reserves aligned(size, alignment) bytes using circular first-fit
// starting from the free block at or after the most recently allocated
// address, wrapping around the free list. Alignment of 0 means "no
// alignment" and is not an error. Returns nil (not an error) when no block
// is large enough — the caller retries after peer deallocations.
func (a *Allocator) Allocate(size, alignment uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	aligned := alignUp(size, alignment)
	if aligned >= a.totalSize {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	idx, ok := a.findFitLocked(aligned)
	if !ok {
		return nil
	}

	block := a.free[idx]
	ptrAddr := block.Address

	if block.Size > aligned {
		a.free[idx].Address += aligned
		a.free[idx].Size -= aligned
	} else {
		a.free = append(a.free[:idx], a.free[idx+1:]...)
	}

	a.allocated[ptrAddr] = MemoryBlock{Address: ptrAddr, Size: aligned}
	a.latestAllocated = ptrAddr + aligned

	a.stats.AllocCount++
	a.stats.CumulativeUsage += uint64(aligned)

	if avail := a.availableLocked(); avail < a.stats.LowestAvailable {
		a.stats.LowestAvailable = avail
	}

	return unsafe.Pointer(ptrAddr) //nolint:govet // intentional: region-relative address, not a Go-managed pointer
}

// findFitLocked returns the index into a.free of the first block, scanning
// circularly from the block at or after latestAllocated, whose size is at
// least aligned. Callers must hold a.mu. The free list stays short, so a
// plain linear scan is enough.
func (a *Allocator) findFitLocked(aligned uintptr) (int, bool) {
	n := len(a.free)
	if n == 0 {
		return 0, false
	}

	start := 0
	for start < n && a.free[start].Address < a.latestAllocated {
		start++
	}

	for i := 0; i < n; i++ {
		idx := (start + i) % n
		if a.free[idx].Size >= aligned {
			return idx, true
		}
	}

	return 0, false
}

// Deallocate returns the block starting at ptr to the free list, merging
// with adjacent free neighbours. The block's recorded size governs; the
// size argument is ignored. Returns false (never
// panics) if ptr does not correspond to a live allocation from this
// Allocator.
func (a *Allocator) Deallocate(ptr unsafe.Pointer, size uintptr) bool {
	addr := uintptr(ptr)

	a.mu.Lock()
	defer a.mu.Unlock()

	block, ok := a.allocated[addr]
	if !ok {
		return false
	}

	delete(a.allocated, addr)
	a.insertFreeLocked(block)

	a.stats.DeallocCount++
	_ = size // the caller-supplied size is not trusted; the recorded block size governs reclamation

	return true
}

// insertFreeLocked inserts block into the sorted free list, merging with
// the preceding block, then the succeeding block (possibly dropping it),
// or inserting fresh if neither merge applies. Callers must hold a.mu.
func (a *Allocator) insertFreeLocked(block MemoryBlock) {
	n := len(a.free)

	idx := 0
	for idx < n && a.free[idx].Address < block.Address {
		idx++
	}

	if idx > 0 && a.free[idx-1].Address+a.free[idx-1].Size == block.Address {
		a.free[idx-1].Size += block.Size

		if idx < len(a.free) && a.free[idx-1].Address+a.free[idx-1].Size == a.free[idx].Address {
			a.free[idx-1].Size += a.free[idx].Size
			a.free = append(a.free[:idx], a.free[idx+1:]...)
		}

		return
	}

	if idx < n && block.Address+block.Size == a.free[idx].Address {
		a.free[idx].Address = block.Address
		a.free[idx].Size += block.Size

		return
	}

	a.free = append(a.free, MemoryBlock{})
	copy(a.free[idx+1:], a.free[idx:])
	a.free[idx] = block
}

// Available returns the total free bytes remaining.
func (a *Allocator) Available() uintptr {
	a.mu.Lock()
	defer a.mu.Unlock()

	return uintptr(a.availableLocked())
}

func (a *Allocator) availableLocked() uint64 {
	var sum uint64
	for _, b := range a.free {
		sum += uint64(b.Size)
	}

	return sum
}

// Base returns the address of the first byte of the underlying buffer.
func (a *Allocator) Base() unsafe.Pointer { return unsafe.Pointer(a.base) }

// Size returns the total size of the underlying buffer.
func (a *Allocator) Size() uintptr { return a.totalSize }

// InBounds reports whether [ptr, ptr+size) lies within the underlying
// buffer.
func (a *Allocator) InBounds(ptr unsafe.Pointer, size uintptr) bool {
	addr := uintptr(ptr)
	if addr < a.base || addr > a.base+a.totalSize {
		return false
	}

	end := addr + size

	return end >= addr && end <= a.base+a.totalSize
}

// Stats returns a snapshot of the monitoring counters.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.stats
}
