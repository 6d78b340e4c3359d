// Package tracejob implements the trace-job allocator and container a
// producer process uses to hand a complete trace request off to the
// daemon: reserve a ring slot, materialize the job's chunks into shared
// memory with a synthetic timestamp and meta-info prefix, and publish the
// slot so the daemon can pick it up.
package tracejob

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/qorix-group/baselibs-sub006/internal/tracing/allocator"
	"github.com/qorix-group/baselibs-sub006/internal/tracing/chunklist"
	"github.com/qorix-group/baselibs-sub006/internal/tracing/ringbuffer"
	"github.com/qorix-group/baselibs-sub006/internal/tracing/tracerrors"
)

// ClientID identifies the producer that owns a job.
type ClientID uint64

// ContextID identifies one job within a client. Callers may supply their
// own; otherwise the allocator assigns them in increasing order starting
// at zero.
type ContextID uint64

// JobType says whether a job's payload chunks were copied out of producer
// memory or were already resident in the shared region.
type JobType uint8

const (
	JobLocal JobType = iota
	JobShm
)

// Key uniquely identifies a job in the Container.
type Key struct {
	Client  ClientID
	Context ContextID
}

// Record is everything the Container tracks about one allocated job. The
// GlobalContext is the allocator's monotonic counter value published to the
// daemon alongside the client id, so the daemon can disambiguate wrapped
// caller-supplied context ids.
type Record struct {
	Client        ClientID
	Context       ContextID
	GlobalContext ContextID
	Type          JobType
	Slot          int
	Location      chunklist.ShmLocation
	Vector        *chunklist.ShmChunkVector
}

// Container tracks every live job keyed by (ClientID, ContextID). Its
// capacity is fixed at construction; at most one record exists per ring
// slot, so the capacity matches the ring's.
type Container struct {
	mu       sync.RWMutex
	capacity int
	records  map[Key]Record
}

// NewContainer returns an empty job container holding at most capacity
// records.
func NewContainer(capacity int) *Container {
	return &Container{capacity: capacity, records: make(map[Key]Record, capacity)}
}

// Get returns the record for key, if present.
func (c *Container) Get(key Key) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.records[key]

	return r, ok
}

// FindByLocation returns the record whose vector lives at loc, if any.
func (c *Container) FindByLocation(loc chunklist.ShmLocation) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, r := range c.records {
		if r.Location.Equal(loc) {
			return r, true
		}
	}

	return Record{}, false
}

// Len returns the number of live jobs.
func (c *Container) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.records)
}

func (c *Container) put(key Key, r Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.records[key]; !exists && len(c.records) >= c.capacity {
		return tracerrors.NotEnoughMemory("tracejob.Container", 1, 0)
	}

	c.records[key] = r

	return nil
}

func (c *Container) removeByLocation(loc chunklist.ShmLocation) (Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, r := range c.records {
		if r.Location.Equal(loc) {
			delete(c.records, k)

			return r, true
		}
	}

	return Record{}, false
}

// Clock supplies the nanosecond timestamp written into every job's
// synthetic timestamp chunk. Injectable so a hardware logger-time source
// can replace the default, which is the wall clock (time.Now().UnixNano())
// and is not monotonic.
type Clock func() uint64

// Option configures an Allocator at construction.
type Option func(*Allocator)

// WithClock replaces the default timestamp source.
func WithClock(clock Clock) Option {
	return func(a *Allocator) { a.clock = clock }
}

// Allocator is the producer-side entry point: it owns a shared-memory
// allocator, the daemon ring-buffer handle, and the monotonic context-id
// counter, and publishes jobs through both.
type Allocator struct {
	alloc     allocator.Allocator
	ring      ringbuffer.Ring
	shmHandle int32
	clock     Clock
	nextCtx   atomic.Uint64
	nextGlob  atomic.Uint64
	container *Container
}

// NewAllocator builds a trace-job allocator over alloc (the allocator that
// owns the shared region's free space), ring (the daemon's slot ring), and
// shmHandle (recorded in every ShmLocation this allocator produces). The
// job container's capacity matches the ring's, since at most one record
// exists per ring slot.
func NewAllocator(alloc allocator.Allocator, ring ringbuffer.Ring, shmHandle int32, opts ...Option) *Allocator {
	capacity := 0
	if ring != nil {
		capacity = ring.Capacity()
	}

	a := &Allocator{
		alloc:     alloc,
		ring:      ring,
		shmHandle: shmHandle,
		clock:     func() uint64 { return uint64(time.Now().UnixNano()) },
		container: NewContainer(capacity),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Container returns the allocator's job container.
func (a *Allocator) Container() *Container { return a.container }

// AllocateLocalJob publishes a job whose payload chunks are copied out of
// the producer's local memory, with a context id assigned from the
// allocator's counter. It returns the assigned context id.
func (a *Allocator) AllocateLocalJob(client ClientID, meta MetaInfo, binding BindingType, app AppID, payload *chunklist.LocalChunkList) (ContextID, error) {
	ctx := ContextID(a.nextCtx.Add(1) - 1)

	return ctx, a.AllocateLocalJobWithContext(client, ctx, meta, binding, app, payload)
}

// AllocateLocalJobWithContext is AllocateLocalJob with a caller-chosen
// context id.
func (a *Allocator) AllocateLocalJobWithContext(client ClientID, ctx ContextID, meta MetaInfo, binding BindingType, app AppID, payload *chunklist.LocalChunkList) error {
	if payload == nil || payload.Size() == 0 {
		return tracerrors.InvalidArgument("tracejob.AllocateLocalJob", "payload chunk list is empty")
	}

	chunks := make([]chunklist.LocalChunk, 0, payload.Size())

	for i := 0; i < payload.Size(); i++ {
		c, _ := payload.At(i)
		chunks = append(chunks, c)
	}

	return a.allocateJob(client, ctx, meta, binding, app, chunks, nil, JobLocal)
}

// AllocateShmJob publishes a job whose payload chunks already live in the
// shared region: they are appended to the vector without copying, after the
// synthetic timestamp and meta-info prefix (which is producer-local and
// does get copied). It returns the assigned context id.
func (a *Allocator) AllocateShmJob(client ClientID, meta MetaInfo, binding BindingType, app AppID, payload *chunklist.ShmChunkList) (ContextID, error) {
	ctx := ContextID(a.nextCtx.Add(1) - 1)

	return ctx, a.AllocateShmJobWithContext(client, ctx, meta, binding, app, payload)
}

// AllocateShmJobWithContext is AllocateShmJob with a caller-chosen context
// id.
func (a *Allocator) AllocateShmJobWithContext(client ClientID, ctx ContextID, meta MetaInfo, binding BindingType, app AppID, payload *chunklist.ShmChunkList) error {
	if payload == nil || payload.Size() == 0 {
		return tracerrors.InvalidArgument("tracejob.AllocateShmJob", "payload chunk list is empty")
	}

	existing := make([]chunklist.ShmChunk, 0, payload.Size())

	for i := 0; i < payload.Size(); i++ {
		c, _ := payload.At(i)
		existing = append(existing, c)
	}

	return a.allocateJob(client, ctx, meta, binding, app, nil, existing, JobShm)
}

func (a *Allocator) allocateJob(client ClientID, ctx ContextID, meta MetaInfo, binding BindingType, app AppID, localPayload []chunklist.LocalChunk, shmPayload []chunklist.ShmChunk, jobType JobType) error {
	if a.ring == nil {
		return tracerrors.RingBufferNotInitialized("tracejob.allocateJob")
	}

	slot, err := a.ring.GetEmptyElement()
	if err != nil {
		return err
	}

	araInfo, ok := meta.araComOK()
	if !ok {
		a.ring.FreeElement(slot)

		return tracerrors.NoMetaInfoProvided()
	}

	tsBytes := make([]byte, TimestampSize)
	binary.LittleEndian.PutUint64(tsBytes, a.clock())

	format := AraComMetaInfoTraceFormat{MetaInfo: araInfo, Binding: binding, App: app}
	metaBytes := make([]byte, MetaInfoTraceFormatSize)
	copy(metaBytes, unsafe.Slice((*byte)(unsafe.Pointer(&format)), MetaInfoTraceFormatSize))

	prefix := []chunklist.LocalChunk{
		{Start: unsafe.Pointer(&tsBytes[0]), Size: TimestampSize},
		{Start: unsafe.Pointer(&metaBytes[0]), Size: MetaInfoTraceFormatSize},
	}

	var vector *chunklist.ShmChunkVector

	if jobType == JobLocal {
		vector, err = chunklist.MaterializeToVector(a.alloc, a.shmHandle, append(prefix, localPayload...))
	} else {
		vector, err = chunklist.MaterializeMixedToVector(a.alloc, a.shmHandle, prefix, shmPayload)
	}

	if err != nil {
		a.ring.FreeElement(slot)

		return err
	}

	loc := chunklist.ShmLocation{
		Handle: a.shmHandle,
		Offset: vector.HeaderAddr() - uintptr(a.alloc.Base()),
	}

	global := ContextID(a.nextGlob.Add(1) - 1)

	a.ring.Publish(slot, uint64(client), uint64(global), loc)

	record := Record{
		Client:        client,
		Context:       ctx,
		GlobalContext: global,
		Type:          jobType,
		Slot:          slot,
		Location:      loc,
		Vector:        vector,
	}

	if err := a.container.put(Key{Client: client, Context: ctx}, record); err != nil {
		// Undo in reverse: unpublish the slot, release the job's shared
		// memory, free the reservation. FreeElement covers both the
		// Ready->Empty revert and the reservation release.
		a.ring.FreeElement(slot)
		a.releaseVector(vector, jobType)

		return err
	}

	return nil
}

// releaseVector frees the job's share of the vector's chunk storage, then
// the vector's nodes and header. For a local job every chunk was copied in
// by this allocator, so every byte range is freed. For a shm job the
// producer placed the payload entries (index 2 onward) itself and frees
// them itself; only the two synthetic prefix chunks belong to the job.
func (a *Allocator) releaseVector(vector *chunklist.ShmChunkVector, jobType JobType) {
	base := uintptr(a.alloc.Base())

	idx := 0

	for it := vector.Begin(); !it.AtEnd(); it.Next() {
		c := it.Value()
		producerOwned := jobType == JobShm && idx >= syntheticChunkCount
		idx++

		if producerOwned || c.Start.Handle != a.shmHandle || c.Size == 0 {
			continue
		}

		a.alloc.Deallocate(unsafe.Pointer(base+c.Start.Offset), c.Size) //nolint:gosec // offset is region-relative by construction
	}

	vector.Destroy()
}

// DeallocateJob releases the job whose chunk vector lives at loc: the
// job-owned chunk bytes (everything for a local job; only the synthetic
// prefix for a shm job, whose payload the producer frees itself), the
// vector itself, the ring slot, and the container record. A location
// referring to another region is rejected with WrongHandle and nothing is
// deallocated.
func (a *Allocator) DeallocateJob(loc chunklist.ShmLocation, jobType JobType) error {
	if jobType != JobLocal && jobType != JobShm {
		return tracerrors.InvalidArgument("tracejob.DeallocateJob", "unknown job type")
	}

	if loc.Handle != a.shmHandle {
		return tracerrors.WrongHandle(a.shmHandle, loc.Handle)
	}

	if loc.Offset >= a.alloc.Size() {
		return tracerrors.InvalidArgument("tracejob.DeallocateJob", "location offset outside the region")
	}

	record, found := a.container.removeByLocation(loc)
	if found {
		a.releaseVector(record.Vector, jobType)
		a.ring.Reclaim(record.Slot)

		return nil
	}

	// No record (e.g. a consumer-side deallocation in another process):
	// attach to the vector at the given location and release it directly.
	vector := chunklist.AttachVector(a.alloc, loc)
	a.releaseVector(vector, jobType)

	return nil
}
