// Package chunklist implements the fixed-capacity chunk lists a trace job
// is built out of: a LocalChunkList collects pointers into the producer's
// own process-local buffers, and once the job is ready to
// hand off to the daemon, SaveToSharedMemory copies every chunk into an
// allocator-owned ShmChunkVector and returns a ShmChunkList of the shared
// locations so the original local-memory chunks can be released.
package chunklist

import (
	"unsafe"

	"github.com/qorix-group/baselibs-sub006/internal/tracing/allocator"
	"github.com/qorix-group/baselibs-sub006/internal/tracing/sharedlist"
	"github.com/qorix-group/baselibs-sub006/internal/tracing/tracerrors"
)

// MaxChunksPerTraceRequest bounds how many chunks a single trace job may be
// assembled from.
const MaxChunksPerTraceRequest = 8

// Canary values bracketing every ShmChunk, so a consumer reading a
// corrupted or torn entry can tell rather than trust it silently.
const (
	CanaryStart uint32 = 0xDEADBEEF
	CanaryEnd   uint32 = 0xCAFEBABE
)

// Storage-estimate constants for the materialized vector: a flat allowance
// for the container's own bookkeeping plus a per-element pointer-sized
// overhead on top of each element's payload.
const (
	StlContainerStorageNeeds        = 1024
	StlContainerElementStorageNeeds = unsafe.Sizeof(uintptr(0))
)

// LocalChunk references a span of bytes in the producer's own address
// space, not yet copied into shared memory.
type LocalChunk struct {
	Start unsafe.Pointer
	Size  uintptr
}

func (c LocalChunk) valid() bool { return c.Start != nil && c.Size != 0 }

// ShmLocation is a handle to a byte span inside a shared-memory region:
// which region (by handle) and the byte offset into it. Unlike an
// offsetptr.Offset, it is meaningful independent of any holder address, so
// it can be handed whole to another process.
type ShmLocation struct {
	Handle int32
	Offset uintptr
}

// Equal reports whether two locations name the same shared-memory span.
func (l ShmLocation) Equal(other ShmLocation) bool {
	return l.Handle == other.Handle && l.Offset == other.Offset
}

// Less orders locations by handle then offset, so container keys built
// out of ShmLocation sort consistently.
func (l ShmLocation) Less(other ShmLocation) bool {
	if l.Handle != other.Handle {
		return l.Handle < other.Handle
	}

	return l.Offset < other.Offset
}

// ShmChunk is a chunk already materialized in shared memory, bracketed by
// canary values so consumers can detect corruption rather than trust a
// torn read.
type ShmChunk struct {
	Start       ShmLocation
	Size        uintptr
	CanaryStart uint32
	CanaryEnd   uint32
}

// NewShmChunk builds a ShmChunk with its canaries correctly set.
func NewShmChunk(start ShmLocation, size uintptr) ShmChunk {
	return ShmChunk{Start: start, Size: size, CanaryStart: CanaryStart, CanaryEnd: CanaryEnd}
}

func (c ShmChunk) valid() bool {
	return c.Size != 0 && c.CanaryStart == CanaryStart && c.CanaryEnd == CanaryEnd
}

// LocalChunkList is a fixed-capacity, append-only (front or back) list of
// LocalChunks. The zero value is an empty list.
type LocalChunkList struct {
	chunks [MaxChunksPerTraceRequest]LocalChunk
	count  int
}

// Append adds c to the end of the list. It is a no-op once the list is at
// capacity; callers that need to know are expected to check Size first.
func (l *LocalChunkList) Append(c LocalChunk) {
	if l.count >= MaxChunksPerTraceRequest {
		return
	}

	l.chunks[l.count] = c
	l.count++
}

// AppendFront inserts c at the front of the list, shifting existing
// elements back. If the list is already at capacity, the last element is
// dropped to make room (mirrors a fixed-capacity ring rather than growing).
func (l *LocalChunkList) AppendFront(c LocalChunk) {
	last := l.count
	if last >= MaxChunksPerTraceRequest {
		last = MaxChunksPerTraceRequest - 1
	}

	for i := last; i > 0; i-- {
		l.chunks[i] = l.chunks[i-1]
	}

	l.chunks[0] = c

	if l.count < MaxChunksPerTraceRequest {
		l.count++
	}
}

// Size returns the number of chunks currently held.
func (l *LocalChunkList) Size() int { return l.count }

// Clear empties the list.
func (l *LocalChunkList) Clear() {
	l.chunks = [MaxChunksPerTraceRequest]LocalChunk{}
	l.count = 0
}

// At returns the chunk at index i and whether i was in range.
func (l *LocalChunkList) At(i int) (LocalChunk, bool) {
	if i < 0 || i >= l.count {
		return LocalChunk{}, false
	}

	return l.chunks[i], true
}

// Equal reports structural equality: same count and same chunks across the
// entire fixed array, unused slots included (both sides keep them zeroed).
// Reflexive, symmetric and transitive since it compares plain value fields
// with ==.
func (l *LocalChunkList) Equal(other *LocalChunkList) bool {
	return l.count == other.count && l.chunks == other.chunks
}

// ShmChunkList is the shared-memory counterpart of LocalChunkList, holding
// already-materialized ShmChunks.
type ShmChunkList struct {
	chunks [MaxChunksPerTraceRequest]ShmChunk
	count  int
}

// Append adds c to the end of the list; a no-op past capacity.
func (l *ShmChunkList) Append(c ShmChunk) {
	if l.count >= MaxChunksPerTraceRequest {
		return
	}

	l.chunks[l.count] = c
	l.count++
}

// AppendFront inserts c at the front, shifting existing elements back and
// dropping the last element if already at capacity.
func (l *ShmChunkList) AppendFront(c ShmChunk) {
	last := l.count
	if last >= MaxChunksPerTraceRequest {
		last = MaxChunksPerTraceRequest - 1
	}

	for i := last; i > 0; i-- {
		l.chunks[i] = l.chunks[i-1]
	}

	l.chunks[0] = c

	if l.count < MaxChunksPerTraceRequest {
		l.count++
	}
}

// Size returns the number of chunks currently held.
func (l *ShmChunkList) Size() int { return l.count }

// Clear empties the list. It does not deallocate anything in shared
// memory; callers that own the allocation are responsible for that.
func (l *ShmChunkList) Clear() {
	l.chunks = [MaxChunksPerTraceRequest]ShmChunk{}
	l.count = 0
}

// At returns the chunk at index i and whether i was in range.
func (l *ShmChunkList) At(i int) (ShmChunk, bool) {
	if i < 0 || i >= l.count {
		return ShmChunk{}, false
	}

	return l.chunks[i], true
}

// Equal reports structural equality across the entire fixed array, unused
// slots included. A corrupted canary on either side simply makes the
// chunks compare unequal rather than panicking.
func (l *ShmChunkList) Equal(other *ShmChunkList) bool {
	return l.count == other.count && l.chunks == other.chunks
}

// Valid reports whether every chunk in the list passes its canary check.
// Used by a consumer before trusting a ShmChunkList it just read out of
// shared memory.
func (l *ShmChunkList) Valid() bool {
	for i := 0; i < l.count; i++ {
		if !l.chunks[i].valid() {
			return false
		}
	}

	return true
}

func alignedElementSize(size uintptr) uintptr {
	const maxAlign = sharedlist.MaxAlign

	switch {
	case size%maxAlign == 0:
		return size
	case size > maxAlign:
		return size + (maxAlign - size%maxAlign)
	default:
		return maxAlign
	}
}

// EstimateAllocationSize is the conservative storage estimate checked
// against the allocator's available space before a vector is materialized:
// a flat container allowance plus, per element, a pointer-sized overhead and
// the element's aligned storage. Payload bytes are not part of the estimate;
// their allocation failures roll the build back instead.
func EstimateAllocationSize(count int) uintptr {
	n := uintptr(count)

	return StlContainerStorageNeeds +
		n*StlContainerElementStorageNeeds +
		n*alignedElementSize(sharedlist.NodeSize[ShmChunk]())
}

// ShmChunkVector is the sharedlist.List backing materialized by
// SaveToSharedMemory: an offset-addressed list of ShmChunk whose header
// itself lives in the same allocator as the chunks it references, so its
// HeaderAddr is a real shared-memory location another participant can
// resolve.
type ShmChunkVector = sharedlist.List[ShmChunk]

// AttachVector wraps the ShmChunkVector whose header lives at loc inside
// alloc's region, without resetting it. This is how a participant that only
// holds a ShmLocation (e.g. the consumer daemon, or a producer resolving a
// published ring slot) reaches a vector another call materialized.
func AttachVector(alloc allocator.Allocator, loc ShmLocation) *ShmChunkVector {
	return sharedlist.Attach[ShmChunk](alloc, uintptr(alloc.Base())+loc.Offset)
}

// MaterializeToVector copies every chunk in chunks into newly allocated
// shared-memory storage (handle identifies the region the bytes belong to,
// for recording in each chunk's ShmLocation) and returns the resulting
// unbounded vector. Unlike LocalChunkList/ShmChunkList, chunks is not capped
// at MaxChunksPerTraceRequest — a trace-job allocator prepends synthetic
// prefix chunks ahead of up to MaxChunksPerTraceRequest payload chunks, so
// the vector this builds can hold more entries than either fixed-capacity
// list type. On any allocation failure partway through, every chunk copied
// so far and the vector header itself are released and the error is
// returned; no partial vector is left behind.
func MaterializeToVector(alloc allocator.Allocator, handle int32, chunks []LocalChunk) (*ShmChunkVector, error) {
	if alloc == nil || alloc.Base() == nil {
		return nil, tracerrors.BaseAddressVoid()
	}

	if handle == -1 {
		return nil, tracerrors.InvalidArgument("chunklist.MaterializeToVector", "shared memory handle is invalid")
	}

	if len(chunks) == 0 {
		return nil, tracerrors.InvalidArgument("chunklist.MaterializeToVector", "chunk list is empty")
	}

	if avail, need := alloc.Available(), EstimateAllocationSize(len(chunks)); avail < need {
		return nil, tracerrors.NotEnoughMemory("chunklist.MaterializeToVector", need, avail)
	}

	vector, err := sharedlist.New[ShmChunk](alloc)
	if err != nil {
		return nil, err
	}

	base := uintptr(alloc.Base())

	type payload struct {
		ptr  unsafe.Pointer
		size uintptr
	}

	var copied []payload

	rollback := func() {
		vector.Destroy()

		for _, p := range copied {
			alloc.Deallocate(p.ptr, p.size)
		}
	}

	for _, c := range chunks {
		if !c.valid() {
			continue // a null/zero-size element is skipped, not an error
		}

		dst := alloc.Allocate(c.Size, 1)
		if dst == nil {
			rollback()

			return nil, tracerrors.NoSpaceLeftForAllocation("chunklist.MaterializeToVector")
		}

		copy(unsafe.Slice((*byte)(dst), c.Size), unsafe.Slice((*byte)(c.Start), c.Size))
		copied = append(copied, payload{ptr: dst, size: c.Size})

		loc := ShmLocation{Handle: handle, Offset: uintptr(dst) - base}
		shm := NewShmChunk(loc, c.Size)

		if err := vector.PushBack(shm); err != nil {
			rollback()

			return nil, err
		}
	}

	return vector, nil
}

// MaterializeMixedToVector builds a vector from two sources: localPrefix
// chunks are copied into newly allocated shared-memory storage (as
// MaterializeToVector does), while existing chunks are assumed to already
// live in shared memory and are appended as-is, with no copy. This is how a
// trace-job allocator builds the synthetic timestamp/meta-info prefix ahead
// of a caller-supplied ShmChunkList payload without re-copying bytes the
// caller already placed in the region. On any failure, everything copied
// for localPrefix and the vector header are rolled back; existing chunks
// are never touched since this function never owned them.
func MaterializeMixedToVector(alloc allocator.Allocator, handle int32, localPrefix []LocalChunk, existing []ShmChunk) (*ShmChunkVector, error) {
	if alloc == nil || alloc.Base() == nil {
		return nil, tracerrors.BaseAddressVoid()
	}

	if handle == -1 {
		return nil, tracerrors.InvalidArgument("chunklist.MaterializeMixedToVector", "shared memory handle is invalid")
	}

	if len(localPrefix)+len(existing) == 0 {
		return nil, tracerrors.InvalidArgument("chunklist.MaterializeMixedToVector", "chunk list is empty")
	}

	if avail, need := alloc.Available(), EstimateAllocationSize(len(localPrefix)+len(existing)); avail < need {
		return nil, tracerrors.NotEnoughMemory("chunklist.MaterializeMixedToVector", need, avail)
	}

	vector, err := sharedlist.New[ShmChunk](alloc)
	if err != nil {
		return nil, err
	}

	base := uintptr(alloc.Base())

	type payload struct {
		ptr  unsafe.Pointer
		size uintptr
	}

	var copied []payload

	rollback := func() {
		vector.Destroy()

		for _, p := range copied {
			alloc.Deallocate(p.ptr, p.size)
		}
	}

	for _, c := range localPrefix {
		if !c.valid() {
			continue // a null/zero-size element is skipped, not an error
		}

		dst := alloc.Allocate(c.Size, 1)
		if dst == nil {
			rollback()

			return nil, tracerrors.NoSpaceLeftForAllocation("chunklist.MaterializeMixedToVector")
		}

		copy(unsafe.Slice((*byte)(dst), c.Size), unsafe.Slice((*byte)(c.Start), c.Size))
		copied = append(copied, payload{ptr: dst, size: c.Size})

		shm := NewShmChunk(ShmLocation{Handle: handle, Offset: uintptr(dst) - base}, c.Size)

		if err := vector.PushBack(shm); err != nil {
			rollback()

			return nil, err
		}
	}

	for _, c := range existing {
		if !c.valid() {
			continue // zero-size or canary-corrupt entries degrade to being skipped
		}

		if err := vector.PushBack(c); err != nil {
			rollback()

			return nil, err
		}
	}

	return vector, nil
}

// SaveToSharedMemory copies every chunk in local into newly allocated
// shared-memory storage and returns the resulting vector together with a
// ShmChunkList view of its entries.
func SaveToSharedMemory(alloc allocator.Allocator, handle int32, local *LocalChunkList) (*ShmChunkVector, ShmChunkList, error) {
	if local == nil || local.Size() == 0 {
		return nil, ShmChunkList{}, tracerrors.InvalidArgument("chunklist.SaveToSharedMemory", "local chunk list is empty")
	}

	chunks := make([]LocalChunk, 0, local.Size())

	for i := 0; i < local.Size(); i++ {
		c, _ := local.At(i)
		chunks = append(chunks, c)
	}

	vector, err := MaterializeToVector(alloc, handle, chunks)
	if err != nil {
		return nil, ShmChunkList{}, err
	}

	var out ShmChunkList

	for it := vector.Begin(); !it.AtEnd(); it.Next() {
		out.Append(it.Value())
	}

	return vector, out, nil
}
