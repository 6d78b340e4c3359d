// Package allocator defines the common interface implemented by both
// circular allocator variants (fca.Allocator and lfca.Allocator) and a
// reference-counted factory for constructing either one over a caller
// buffer. Callers pick a variant once at construction and never switch,
// but chunk-list serialization and the shared list are written against
// this interface so they work with either.
package allocator

import (
	"sync/atomic"
	"unsafe"

	"github.com/qorix-group/baselibs-sub006/internal/tracing/tracerrors"
)

// Allocator is the contract shared by the mutex-protected FCA and the
// lock-free LFCA: allocate, deallocate, and the bookkeeping queries needed
// by chunk-list serialization and the shared list.
type Allocator interface {
	Allocate(size, alignment uintptr) unsafe.Pointer
	Deallocate(ptr unsafe.Pointer, size uintptr) bool
	Available() uintptr
	Base() unsafe.Pointer
	Size() uintptr
	InBounds(ptr unsafe.Pointer, size uintptr) bool
}

// Shared is a reference-counted handle to an Allocator. Cloning increments
// the refcount; Release decrements it and runs the closeFn given to
// NewShared (if any) at zero. sharedlist.List and the chunklist vector hold
// a plain Allocator, not a Shared handle.
type Shared struct {
	alloc   Allocator
	refs    *int64
	closeFn func()
}

// NewShared wraps alloc in a reference-counted handle with an initial
// refcount of 1. closeFn, if non-nil, runs once the last reference is
// released.
func NewShared(alloc Allocator, closeFn func()) *Shared {
	refs := int64(1)

	return &Shared{alloc: alloc, refs: &refs, closeFn: closeFn}
}

// Clone returns a new handle to the same allocator, incrementing the
// refcount. No list or vector in this module takes a Clone; their Clear
// releases no handle.
func (s *Shared) Clone() *Shared {
	atomic.AddInt64(s.refs, 1)

	return &Shared{alloc: s.alloc, refs: s.refs, closeFn: s.closeFn}
}

// Release decrements the refcount, running closeFn when it reaches zero.
// Calling Release more than once per Clone/NewShared is a caller bug but is
// tolerated defensively (the refcount will simply go negative and closeFn
// will not re-run, since it only fires on the transition to zero).
func (s *Shared) Release() {
	if s == nil || s.alloc == nil {
		return
	}

	if atomic.AddInt64(s.refs, -1) == 0 && s.closeFn != nil {
		s.closeFn()
	}
}

// Get returns the underlying Allocator.
func (s *Shared) Get() Allocator { return s.alloc }

// Factory precondition errors.
var (
	ErrBaseAddressVoid = tracerrors.BaseAddressVoid
	ErrSizeIsZero      = tracerrors.SizeIsZero
)

// ValidateBuffer applies the factory's stateless precondition checks common
// to both allocator variants: a non-null base address and a non-zero size.
func ValidateBuffer(buf []byte) error {
	if buf == nil {
		return ErrBaseAddressVoid()
	}

	if len(buf) == 0 {
		return ErrSizeIsZero()
	}

	return nil
}

// variantFactory is implemented by the package-level constructors of both
// allocator variants, letting NewFCA/NewLFCA share one code path.
type variantFactory func(buf []byte) (Allocator, error)

func newShared(buf []byte, build variantFactory) (*Shared, error) {
	if err := ValidateBuffer(buf); err != nil {
		return nil, err
	}

	a, err := build(buf)
	if err != nil {
		return nil, err
	}

	return NewShared(a, nil), nil
}
