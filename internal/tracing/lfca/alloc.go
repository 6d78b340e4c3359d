package lfca

import (
	"unsafe"

	"github.com/qorix-group/baselibs-sub006/internal/tracing/tracerrors"
)

// Allocate satisfies the common allocator.Allocator interface: it returns
// nil on any failure (not enough memory, ring not initialized, zero size)
// without distinguishing the reason. Use AllocateDetailed to recover the
// failure kind.
func (a *Allocator) Allocate(size, alignment uintptr) unsafe.Pointer {
	ptr, _ := a.AllocateDetailed(size, alignment)

	return ptr
}

// AllocateDetailed implements the full allocation protocol: reserve a list
// entry via CAS, then publish a byte range either in the
// no-wrap fast path or, if that fails and no wrap is currently outstanding,
// via the wrap-around path, then write the BufferBlock header and publish
// the list entry with a release store.
func (a *Allocator) AllocateDetailed(size, alignment uintptr) (unsafe.Pointer, error) {
	if !a.initialized {
		return nil, tracerrors.RingBufferNotInitialized("lfca.Allocate")
	}

	if size == 0 {
		return nil, tracerrors.NotEnoughMemory("lfca.Allocate", 0, uintptr(a.Available()))
	}

	align := alignment
	if align < MaxAlign {
		align = MaxAlign
	}

	aligned := alignUp(uint64(size), uint64(align))
	if aligned > a.totalSize {
		return nil, tracerrors.NotEnoughMemory("lfca.Allocate", uintptr(aligned), uintptr(a.totalSize))
	}

	if aligned > 0xFFFF {
		// The packed list entry's length field is a u16; a single
		// allocation cannot exceed what it can record.
		return nil, tracerrors.NotEnoughMemory("lfca.Allocate", uintptr(aligned), uintptr(a.totalSize))
	}

	entryIdx, ok := a.reserveListEntry()
	if !ok {
		return nil, tracerrors.NoSpaceLeftForAllocation("lfca.Allocate")
	}

	rangeStart, ok := a.reserveByteRange(bufferBlockHeaderSize + aligned)
	if !ok {
		// Release the reserved list entry immediately so it doesn't leak as
		// a permanently in-use slot with no backing bytes.
		a.atomics.Store(a.entryPtr(entryIdx), pack(0, 0, FlagFree))
		a.drain()

		return nil, tracerrors.NotEnoughMemory("lfca.Allocate", uintptr(aligned), uintptr(a.Available()))
	}

	userOffset := rangeStart + bufferBlockHeaderSize

	*u32ptr(a.buf, a.dataOff+int(rangeStart)) = uint32(entryIdx)
	*u32ptr(a.buf, a.dataOff+int(rangeStart)+4) = uint32(aligned)

	a.atomics.Store(a.entryPtr(entryIdx), pack(uint32(userOffset), uint16(aligned), FlagInUse))

	total := bufferBlockHeaderSize + aligned
	a.atomics.Add(u64ptr(a.buf, offAllocCntr), 1)
	a.atomics.Add(u64ptr(a.buf, offCumulative), total)

	for {
		avail := a.atomics.Load(u64ptr(a.buf, offAvailable))
		if avail < total {
			break // defensive: never underflow the monitoring counter
		}

		if a.atomics.CAS(u64ptr(a.buf, offAvailable), avail, avail-total) {
			newAvail := avail - total

			for {
				lowest := a.atomics.Load(u64ptr(a.buf, offLowest))
				if newAvail >= lowest {
					break
				}

				if a.atomics.CAS(u64ptr(a.buf, offLowest), lowest, newAvail) {
					break
				}
			}

			break
		}
	}

	return unsafe.Pointer(&a.buf[a.dataOff+int(userOffset)]), nil
}

// reserveListEntry claims the next list-entry slot by CAS-advancing
// list_queue_head, failing only if doing so would lap list_queue_tail (the
// ring of N descriptors is itself full).
func (a *Allocator) reserveListEntry() (uint64, bool) {
	for {
		head := a.atomics.Load(u64ptr(a.buf, offLQHead))
		tail := a.atomics.Load(u64ptr(a.buf, offLQTail))

		if head-tail >= ListArraySize {
			return 0, false
		}

		if a.atomics.CAS(u64ptr(a.buf, offLQHead), head, head+1) {
			return head & (ListArraySize - 1), true
		}
	}
}

// reserveByteRange publishes a byte range of the given length (header +
// user bytes), returning its start offset within the user-allocatable
// area. It implements both the no-wrap and wrap-around publish paths.
func (a *Allocator) reserveByteRange(length uint64) (uint64, bool) {
	for {
		head := a.atomics.Load(u64ptr(a.buf, offBQHead))
		wrap := a.atomics.Load(u64ptr(a.buf, offWrap))

		if wrap != 0 {
			// A wrap is outstanding: live data from before the wrap still
			// occupies [buffer_queue_tail, gap_address), so the head may only
			// advance up to the tail, never to totalSize.
			tail := a.atomics.Load(u64ptr(a.buf, offBQTail))

			if head+length > tail {
				return 0, false // would overrun the not-yet-drained entries
			}

			if a.atomics.CAS(u64ptr(a.buf, offBQHead), head, head+length) {
				return head, true
			}

			continue
		}

		if head+length <= a.totalSize {
			if a.atomics.CAS(u64ptr(a.buf, offBQHead), head, head+length) {
				return head, true
			}

			continue
		}

		tail := a.atomics.Load(u64ptr(a.buf, offBQTail))

		if length > tail {
			return 0, false // wrapped region would still overrun the consumer
		}

		if !a.atomics.CAS(u64ptr(a.buf, offWrap), 0, 1) {
			continue // another producer claimed the wrap; retry from the top
		}

		a.atomics.Store(u64ptr(a.buf, offGap), head)

		if !a.atomics.CAS(u64ptr(a.buf, offBQHead), head, length) {
			// Unexpected contention after claiming the wrap: release it and retry.
			a.atomics.Store(u64ptr(a.buf, offWrap), 0)

			continue
		}

		return 0, true
	}
}

// Deallocate reads the BufferBlock header immediately preceding ptr, marks
// the corresponding list entry Free, then drains the tail past any
// contiguous run of Free entries.
func (a *Allocator) Deallocate(ptr unsafe.Pointer, _ uintptr) bool {
	if !a.initialized {
		return false
	}

	addr := uintptr(ptr)
	base := uintptr(a.Base())

	if addr < base || addr-base < bufferBlockHeaderSize {
		return false
	}

	headerAddr := addr - bufferBlockHeaderSize
	if headerAddr < base || headerAddr+bufferBlockHeaderSize > base+uintptr(a.totalSize) {
		return false
	}

	headerByteOff := int(headerAddr - base)
	entryIdx := uint64(*u32ptr(a.buf, a.dataOff+headerByteOff))

	if entryIdx >= ListArraySize {
		return false
	}

	entry := a.entryPtr(entryIdx)

	for {
		word := a.atomics.Load(entry)

		offset, length, flag := unpack(word)
		if flag == FlagFree {
			return false // double free, or a foreign/corrupted header
		}

		if a.atomics.CAS(entry, word, pack(offset, length, FlagFree)) {
			break
		}
	}

	a.drain()

	return true
}

// drain advances list_queue_tail past every contiguous run of Free entries
// starting at the current tail, crediting available_size for each and
// resetting buffer_queue_tail (and clearing wrap_around) whenever a drained
// entry's byte range reaches gap_address.
func (a *Allocator) drain() {
	for {
		tail := a.atomics.Load(u64ptr(a.buf, offLQTail))
		head := a.atomics.Load(u64ptr(a.buf, offLQHead))

		if tail == head {
			return
		}

		idx := tail & (ListArraySize - 1)
		entry := a.entryPtr(idx)
		word := a.atomics.Load(entry)

		offset, length, flag := unpack(word)
		if flag != FlagFree {
			return
		}

		if !a.atomics.CAS(u64ptr(a.buf, offLQTail), tail, tail+1) {
			continue // another drainer advanced tail first; re-read and retry
		}

		if offset == 0 && length == 0 {
			// A list entry released during a failed allocation, before any
			// bytes were reserved for it: advance past it without crediting.
			continue
		}

		credited := bufferBlockHeaderSize + uint64(length)
		rangeStart := uint64(offset) - bufferBlockHeaderSize

		wrap := a.atomics.Load(u64ptr(a.buf, offWrap))
		gap := a.atomics.Load(u64ptr(a.buf, offGap))

		if wrap != 0 && a.atomics.Load(u64ptr(a.buf, offBQTail)) == gap {
			// The tail byte cursor already sits at the gap (the wrap happened
			// with nothing pending before it); skip the dead space now.
			a.atomics.Store(u64ptr(a.buf, offBQTail), 0)
			a.atomics.Store(u64ptr(a.buf, offWrap), 0)
			wrap = 0
		}

		if wrap != 0 && rangeStart+credited == gap {
			a.atomics.Store(u64ptr(a.buf, offBQTail), 0)
			a.atomics.Store(u64ptr(a.buf, offWrap), 0)
		} else {
			a.atomics.Add(u64ptr(a.buf, offBQTail), credited)
		}

		a.atomics.Add(u64ptr(a.buf, offAvailable), credited)
		a.atomics.Add(u64ptr(a.buf, offDeallocCntr), 1)
	}
}
