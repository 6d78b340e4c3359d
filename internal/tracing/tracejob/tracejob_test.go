package tracejob

import (
	"testing"
	"unsafe"

	"go.uber.org/mock/gomock"

	"github.com/qorix-group/baselibs-sub006/internal/tracing/chunklist"
	"github.com/qorix-group/baselibs-sub006/internal/tracing/fca"
	"github.com/qorix-group/baselibs-sub006/internal/tracing/ringbuffer"
	"github.com/qorix-group/baselibs-sub006/internal/tracing/tracerrors"
)

func newAlloc(t *testing.T, size int) *fca.Allocator {
	t.Helper()

	a, err := fca.New(make([]byte, size))
	if err != nil {
		t.Fatalf("fca.New: %v", err)
	}

	return a
}

func localChunkOf(buf []byte) chunklist.LocalChunk {
	return chunklist.LocalChunk{Start: unsafe.Pointer(&buf[0]), Size: uintptr(len(buf))}
}

func testMeta() MetaInfo {
	return AraCom(AraComMetaInfo{Properties: AraComProperties{TracePoint: TracePointSkelEventSend}})
}

func TestAllocateLocalJobBuildsTimestampAndMetaPrefix(t *testing.T) {
	a := newAlloc(t, 1<<16)
	ring, err := ringbuffer.New(4)
	if err != nil {
		t.Fatalf("ringbuffer.New: %v", err)
	}

	alloc := NewAllocator(a, ring, 42)

	var payload chunklist.LocalChunkList
	for i := 0; i < chunklist.MaxChunksPerTraceRequest; i++ {
		buf := []byte{byte(i), byte(i + 1)}
		payload.Append(localChunkOf(buf))
	}

	ctx, err := alloc.AllocateLocalJob(1, testMeta(), BindingVector, AppIDOf("AppId_1"), &payload)
	if err != nil {
		t.Fatalf("AllocateLocalJob: %v", err)
	}

	record, ok := alloc.Container().Get(Key{Client: 1, Context: ctx})
	if !ok {
		t.Fatal("expected a container record for the allocated job")
	}

	// 2 synthetic prefix chunks (timestamp, meta-info) + 8 payload chunks.
	const want = 2 + chunklist.MaxChunksPerTraceRequest
	if got := record.Vector.Size(); got != want {
		t.Fatalf("vector size = %d, want %d", got, want)
	}

	first, err := record.Vector.At(0)
	if err != nil || first.Size != TimestampSize {
		t.Fatalf("entry 0 size = %d, %v; want the timestamp size %d", first.Size, err, TimestampSize)
	}

	second, err := record.Vector.At(1)
	if err != nil || second.Size != MetaInfoTraceFormatSize {
		t.Fatalf("entry 1 size = %d, %v; want the meta-info trace format size %d", second.Size, err, MetaInfoTraceFormatSize)
	}

	if got := ring.StatusAt(record.Slot); got != ringbuffer.StatusReady {
		t.Fatalf("slot status = %v, want StatusReady", got)
	}

	slot := ring.SlotAt(record.Slot)
	if slot.ClientID != 1 || slot.ContextID != uint64(record.GlobalContext) {
		t.Fatalf("published slot fields = %+v", slot)
	}

	if !slot.ChunkList.Equal(record.Location) {
		t.Fatalf("published location %+v does not match record %+v", slot.ChunkList, record.Location)
	}
}

func TestFirstAssignedContextIDIsZero(t *testing.T) {
	a := newAlloc(t, 1<<16)
	ring, _ := ringbuffer.New(2)
	alloc := NewAllocator(a, ring, 1)

	var payload chunklist.LocalChunkList
	payload.Append(localChunkOf([]byte("x")))

	ctx, err := alloc.AllocateLocalJob(7, testMeta(), BindingVector, AppIDOf("app"), &payload)
	if err != nil {
		t.Fatalf("AllocateLocalJob: %v", err)
	}

	if ctx != 0 {
		t.Fatalf("first assigned context id = %d, want 0", ctx)
	}
}

func TestAllocateShmJobPublishesPrefixedVector(t *testing.T) {
	a := newAlloc(t, 1<<16)
	ring, _ := ringbuffer.New(4)
	alloc := NewAllocator(a, ring, 1)

	base := uintptr(a.Base())

	// Eight payload chunks already resident in the region, sizes 10..17,
	// each filled with its own index.
	var payload chunklist.ShmChunkList

	for i := 0; i < chunklist.MaxChunksPerTraceRequest; i++ {
		size := uintptr(i + 10)

		p := a.Allocate(size, 16)
		if p == nil {
			t.Fatalf("payload allocation %d failed", i)
		}

		bytes := unsafe.Slice((*byte)(p), size)
		for j := range bytes {
			bytes[j] = byte(i)
		}

		payload.Append(chunklist.NewShmChunk(chunklist.ShmLocation{Handle: 1, Offset: uintptr(p) - base}, size))
	}

	ctx, err := alloc.AllocateShmJob(0x55, testMeta(), BindingVector, AppIDOf("AppId_1"), &payload)
	if err != nil {
		t.Fatalf("AllocateShmJob: %v", err)
	}

	record, ok := alloc.Container().Get(Key{Client: 0x55, Context: ctx})
	if !ok {
		t.Fatal("expected a container record")
	}

	if record.Type != JobShm {
		t.Fatalf("record type = %v, want JobShm", record.Type)
	}

	if got := record.Vector.Size(); got != 10 {
		t.Fatalf("vector size = %d, want 10 (2 synthetic + 8 payload)", got)
	}

	for i := 0; i < record.Vector.Size(); i++ {
		entry, err := record.Vector.At(i)
		if err != nil {
			t.Fatalf("vector.At(%d): %v", i, err)
		}

		switch i {
		case 0:
			if entry.Size != TimestampSize {
				t.Fatalf("entry 0 size = %d, want %d", entry.Size, TimestampSize)
			}
		case 1:
			if entry.Size != MetaInfoTraceFormatSize {
				t.Fatalf("entry 1 size = %d, want %d", entry.Size, MetaInfoTraceFormatSize)
			}
		default:
			wantSize := uintptr(i - 2 + 10)
			if entry.Size != wantSize {
				t.Fatalf("entry %d size = %d, want %d", i, entry.Size, wantSize)
			}

			bytes := unsafe.Slice((*byte)(unsafe.Pointer(base+entry.Start.Offset)), entry.Size)
			for _, b := range bytes {
				if b != byte(i-2) {
					t.Fatalf("entry %d payload byte = %d, want %d", i, b, i-2)
				}
			}
		}
	}
}

func TestAllocateLocalJobRejectsDltMetaInfo(t *testing.T) {
	a := newAlloc(t, 8192)
	ring, _ := ringbuffer.New(2)
	alloc := NewAllocator(a, ring, 1)

	var payload chunklist.LocalChunkList
	payload.Append(localChunkOf([]byte("x")))

	_, err := alloc.AllocateLocalJob(1, Dlt(), BindingVector, AppIDOf("app"), &payload)
	if !tracerrors.Is(err, tracerrors.KindNoMetaInfoProvided) {
		t.Fatalf("err = %v, want NoMetaInfoProvided", err)
	}

	// The reserved slot must have been rolled back.
	for i := 0; i < ring.Capacity(); i++ {
		if got := ring.StatusAt(i); got != ringbuffer.StatusEmpty {
			t.Fatalf("slot %d status = %v, want StatusEmpty after rollback", i, got)
		}
	}
}

func TestDeallocateJobReclaimsEverything(t *testing.T) {
	a := newAlloc(t, 1<<16)
	ring, _ := ringbuffer.New(2)
	alloc := NewAllocator(a, ring, 1)

	before := a.Available()

	var payload chunklist.LocalChunkList
	payload.Append(localChunkOf([]byte("payload")))

	ctx, err := alloc.AllocateLocalJob(9, testMeta(), BindingVector, AppIDOf("app"), &payload)
	if err != nil {
		t.Fatalf("AllocateLocalJob: %v", err)
	}

	record, _ := alloc.Container().Get(Key{Client: 9, Context: ctx})

	if err := alloc.DeallocateJob(record.Location, record.Type); err != nil {
		t.Fatalf("DeallocateJob: %v", err)
	}

	if _, ok := alloc.Container().Get(Key{Client: 9, Context: ctx}); ok {
		t.Fatal("record should be removed after DeallocateJob")
	}

	if got := ring.StatusAt(record.Slot); got != ringbuffer.StatusEmpty {
		t.Fatalf("slot status after deallocate = %v, want StatusEmpty", got)
	}

	if after := a.Available(); after != before {
		t.Fatalf("expected available to return to %d after full deallocation, got %d", before, after)
	}
}

func TestDeallocateShmJobLeavesProducerPayload(t *testing.T) {
	a := newAlloc(t, 1<<16)
	ring, _ := ringbuffer.New(2)
	alloc := NewAllocator(a, ring, 1)

	base := uintptr(a.Base())

	beforeAll := a.Available()

	// The producer places its own payload in the region and keeps
	// ownership of those bytes across the job's lifetime.
	type owned struct {
		ptr  unsafe.Pointer
		size uintptr
	}

	var payloads []owned

	var payload chunklist.ShmChunkList

	for i := 0; i < 3; i++ {
		size := uintptr(16 * (i + 1))

		p := a.Allocate(size, 16)
		if p == nil {
			t.Fatalf("payload allocation %d failed", i)
		}

		payloads = append(payloads, owned{ptr: p, size: size})
		payload.Append(chunklist.NewShmChunk(chunklist.ShmLocation{Handle: 1, Offset: uintptr(p) - base}, size))
	}

	afterPayload := a.Available()

	ctx, err := alloc.AllocateShmJob(3, testMeta(), BindingVector, AppIDOf("app"), &payload)
	if err != nil {
		t.Fatalf("AllocateShmJob: %v", err)
	}

	record, _ := alloc.Container().Get(Key{Client: 3, Context: ctx})

	if err := alloc.DeallocateJob(record.Location, record.Type); err != nil {
		t.Fatalf("DeallocateJob: %v", err)
	}

	// Only the synthetic prefix and the vector were freed; the producer's
	// payload bytes are still live.
	if after := a.Available(); after != afterPayload {
		t.Fatalf("available after deallocate = %d, want %d (payload still producer-owned)", after, afterPayload)
	}

	for i, p := range payloads {
		if !a.Deallocate(p.ptr, p.size) {
			t.Fatalf("producer's deallocation of payload %d should succeed", i)
		}
	}

	if after := a.Available(); after != beforeAll {
		t.Fatalf("available after producer frees payload = %d, want %d", after, beforeAll)
	}
}

func TestDeallocateJobRejectsForeignHandle(t *testing.T) {
	a := newAlloc(t, 8192)
	ring, _ := ringbuffer.New(1)
	alloc := NewAllocator(a, ring, 1)

	err := alloc.DeallocateJob(chunklist.ShmLocation{Handle: 99, Offset: 0}, JobLocal)
	if !tracerrors.Is(err, tracerrors.KindWrongHandle) {
		t.Fatalf("err = %v, want WrongHandle", err)
	}
}

func TestAllocateLocalJobRollsBackRingSlotOnAllocatorExhaustion(t *testing.T) {
	a := newAlloc(t, 2048)
	ring, _ := ringbuffer.New(2)
	alloc := NewAllocator(a, ring, 1)

	before := a.Available()

	var payload chunklist.LocalChunkList
	payload.Append(localChunkOf(make([]byte, 1<<20)))

	if _, err := alloc.AllocateLocalJob(1, testMeta(), BindingVector, AppIDOf("app"), &payload); err == nil {
		t.Fatal("expected allocation exhaustion to fail the job")
	}

	for i := 0; i < ring.Capacity(); i++ {
		if got := ring.StatusAt(i); got != ringbuffer.StatusEmpty {
			t.Fatalf("slot %d status = %v, want StatusEmpty after rollback", i, got)
		}
	}

	if after := a.Available(); after != before {
		t.Fatalf("expected rollback to restore available=%d, got %d", before, after)
	}
}

func TestAllocateLocalJobFailsWhenRingIsFull(t *testing.T) {
	ctrl := gomock.NewController(t)
	ring := ringbuffer.NewMockRing(ctrl)

	ring.EXPECT().Capacity().Return(4)

	a := newAlloc(t, 8192)
	alloc := NewAllocator(a, ring, 1)

	ring.EXPECT().GetEmptyElement().Return(0, tracerrors.NoSpaceLeftForAllocation("ringbuffer.GetEmptyElement"))

	var payload chunklist.LocalChunkList
	payload.Append(localChunkOf([]byte("x")))

	if _, err := alloc.AllocateLocalJob(1, testMeta(), BindingVector, AppIDOf("app"), &payload); err == nil {
		t.Fatal("expected GetEmptyElement's error to propagate")
	}
}

func TestAllocateJobWithoutRingReportsNotInitialized(t *testing.T) {
	a := newAlloc(t, 8192)
	alloc := NewAllocator(a, nil, 1)

	var payload chunklist.LocalChunkList
	payload.Append(localChunkOf([]byte("x")))

	_, err := alloc.AllocateLocalJob(1, testMeta(), BindingVector, AppIDOf("app"), &payload)
	if !tracerrors.Is(err, tracerrors.KindRingBufferNotInitialized) {
		t.Fatalf("err = %v, want RingBufferNotInitialized", err)
	}
}

func TestFullContainerRollsBackPublishedJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	ring := ringbuffer.NewMockRing(ctrl)

	// A zero-capacity container: the publish step succeeds, but the
	// container insert fails, forcing the undo path.
	ring.EXPECT().Capacity().Return(0)
	ring.EXPECT().GetEmptyElement().Return(0, nil)
	ring.EXPECT().Publish(0, gomock.Any(), gomock.Any(), gomock.Any())
	ring.EXPECT().FreeElement(0)

	a := newAlloc(t, 1<<16)
	alloc := NewAllocator(a, ring, 1)

	before := a.Available()

	var payload chunklist.LocalChunkList
	payload.Append(localChunkOf([]byte("x")))

	_, err := alloc.AllocateLocalJob(1, testMeta(), BindingVector, AppIDOf("app"), &payload)
	if !tracerrors.Is(err, tracerrors.KindNotEnoughMemory) {
		t.Fatalf("err = %v, want NotEnoughMemory from the full container", err)
	}

	if after := a.Available(); after != before {
		t.Fatalf("expected rollback to restore available=%d, got %d", before, after)
	}
}

func TestInjectedClockStampsTimestampChunk(t *testing.T) {
	a := newAlloc(t, 1<<16)
	ring, _ := ringbuffer.New(2)

	const stamp = uint64(0x1122334455667788)

	alloc := NewAllocator(a, ring, 1, WithClock(func() uint64 { return stamp }))

	var payload chunklist.LocalChunkList
	payload.Append(localChunkOf([]byte("x")))

	ctx, err := alloc.AllocateLocalJob(1, testMeta(), BindingVector, AppIDOf("app"), &payload)
	if err != nil {
		t.Fatalf("AllocateLocalJob: %v", err)
	}

	record, _ := alloc.Container().Get(Key{Client: 1, Context: ctx})

	entry, err := record.Vector.At(0)
	if err != nil {
		t.Fatalf("vector.At(0): %v", err)
	}

	base := uintptr(a.Base())
	bytes := unsafe.Slice((*byte)(unsafe.Pointer(base+entry.Start.Offset)), entry.Size)

	var got uint64
	for i := 7; i >= 0; i-- {
		got = got<<8 | uint64(bytes[i])
	}

	if got != stamp {
		t.Fatalf("timestamp chunk = %#x, want %#x", got, stamp)
	}
}
