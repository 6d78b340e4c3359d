package allocator

import (
	"github.com/qorix-group/baselibs-sub006/internal/tracing/fca"
	"github.com/qorix-group/baselibs-sub006/internal/tracing/lfca"
)

// NewFCA constructs a mutex-protected FlexibleCircularAllocator over buf and
// wraps it in a reference-counted Shared handle.
func NewFCA(buf []byte) (*Shared, error) {
	return newShared(buf, func(buf []byte) (Allocator, error) {
		return fca.New(buf)
	})
}

// NewLFCA constructs a LocklessFlexibleCircularAllocator over buf (which
// must be at least lfca.ControlSize+1 bytes: control header, list-entry
// ring, and user-allocatable area) and wraps it in a reference-counted
// Shared handle.
func NewLFCA(buf []byte) (*Shared, error) {
	return newShared(buf, func(buf []byte) (Allocator, error) {
		return lfca.New(buf)
	})
}
