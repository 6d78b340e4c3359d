// Package sharedlist implements an intrusive, offset-addressed doubly
// linked list: the header (head/tail/size) and every node's prev/next
// fields are signed byte offsets relative to the header's own address
// rather than absolute pointers, so the list is traversable by any
// participant that knows the header's address in its own address space.
// The header itself is placement-constructed inside an
// allocation from the allocator it holds, so a List's HeaderAddr is a real
// shared-memory location any participant can resolve an offset against.
//
// T must be a fixed-layout value type containing no Go pointers, slices,
// strings, or interfaces: node storage is carved directly out of allocator
// bytes and reinterpreted via unsafe, so T has to be safely copyable as raw
// bytes.
package sharedlist

import (
	"sync/atomic"
	"unsafe"

	"github.com/qorix-group/baselibs-sub006/internal/tracing/allocator"
	"github.com/qorix-group/baselibs-sub006/internal/tracing/offsetptr"
	"github.com/qorix-group/baselibs-sub006/internal/tracing/tracerrors"
)

// MaxAlign is the minimum alignment applied to every node allocation.
const MaxAlign = 16

// headerSize is the byte size of the in-memory header: head offset (8),
// tail offset (8), size (8).
const headerSize = 24

type node[T any] struct {
	Data T
	Prev offsetptr.Offset
	Next offsetptr.Offset
}

// List is a handle to an offset-addressed shared list. The handle itself
// carries no list state beyond where the header lives (self) and which
// allocator owns it; head/tail/size live at [self, self+headerSize) in the
// allocator's buffer.
type List[T any] struct {
	self  uintptr
	alloc allocator.Allocator
}

// New allocates a fresh header from alloc and returns an empty list handle.
func New[T any](alloc allocator.Allocator) (*List[T], error) {
	ptr := alloc.Allocate(headerSize, 8)
	if ptr == nil {
		return nil, tracerrors.NoSpaceLeftForAllocation("sharedlist.New")
	}

	l := &List[T]{alloc: alloc, self: uintptr(ptr)}
	l.setHead(offsetptr.Null)
	l.setTail(offsetptr.Null)
	atomic.StoreInt64(l.sizePtr(), 0)

	return l, nil
}

// Attach wraps an already-initialized header at headerAddr (created by New,
// possibly by another participant sharing the same region) without
// resetting it.
func Attach[T any](alloc allocator.Allocator, headerAddr uintptr) *List[T] {
	return &List[T]{alloc: alloc, self: headerAddr}
}

// HeaderAddr returns the address of this list's header, suitable for
// recording in a shared-memory location handed to another participant.
func (l *List[T]) HeaderAddr() uintptr { return l.self }

// HeaderSize is the byte size of a list's header allocation, exported so
// callers that allocated a List via New (and therefore own its header) can
// release it themselves, e.g. during construction rollback.
const HeaderSize = headerSize

// Destroy clears every element and then deallocates the header itself.
// Only call this for a list created by New in this process; a list
// obtained via Attach does not own its header and must not call Destroy.
func (l *List[T]) Destroy() {
	l.Clear()
	l.alloc.Deallocate(unsafe.Pointer(l.self), HeaderSize) //nolint:gosec
}

func (l *List[T]) headPtr() *int64 { return (*int64)(unsafe.Pointer(l.self)) }      //nolint:gosec
func (l *List[T]) tailPtr() *int64 { return (*int64)(unsafe.Pointer(l.self + 8)) }  //nolint:gosec
func (l *List[T]) sizePtr() *int64 { return (*int64)(unsafe.Pointer(l.self + 16)) } //nolint:gosec

func (l *List[T]) head() offsetptr.Offset     { return offsetptr.Offset(atomic.LoadInt64(l.headPtr())) }
func (l *List[T]) tail() offsetptr.Offset     { return offsetptr.Offset(atomic.LoadInt64(l.tailPtr())) }
func (l *List[T]) setHead(o offsetptr.Offset) { atomic.StoreInt64(l.headPtr(), int64(o)) }
func (l *List[T]) setTail(o offsetptr.Offset) { atomic.StoreInt64(l.tailPtr(), int64(o)) }

func nodeSize[T any]() uintptr {
	var n node[T]

	return unsafe.Sizeof(n)
}

// NodeSize reports the bytes one element of a List[T] occupies in the
// allocator, for callers that estimate storage needs before building a list.
func NodeSize[T any]() uintptr { return nodeSize[T]() }

func nodeAlign[T any]() uintptr {
	var n node[T]

	align := unsafe.Alignof(n)
	if align < MaxAlign {
		align = MaxAlign
	}

	return align
}

func (l *List[T]) nodeAt(o offsetptr.Offset) *node[T] {
	return (*node[T])(unsafe.Pointer(o.Resolve(l.self))) //nolint:gosec // offset is always within alloc's bounds by construction
}

func (l *List[T]) offsetOf(n *node[T]) offsetptr.Offset {
	return offsetptr.Of(l.self, uintptr(unsafe.Pointer(n)))
}

// PushBack appends v to the end of the list.
func (l *List[T]) PushBack(v T) error {
	ptr := l.alloc.Allocate(nodeSize[T](), nodeAlign[T]())
	if ptr == nil {
		return tracerrors.NoSpaceLeftForAllocation("sharedlist.PushBack")
	}

	n := (*node[T])(ptr)
	n.Data = v
	n.Next = offsetptr.Null
	n.Prev = l.tail()

	if prevTail := l.tail(); !prevTail.IsNull() {
		l.nodeAt(prevTail).Next = l.offsetOf(n)
	}

	newTail := l.offsetOf(n)
	l.setTail(newTail)

	if l.head().IsNull() {
		l.setHead(newTail)
	}

	atomic.AddInt64(l.sizePtr(), 1)

	return nil
}

// EmplaceBack constructs T via fn and appends it. Go has no placement-new
// distinct from PushBack, so this is a thin alias.
func (l *List[T]) EmplaceBack(fn func(*T)) error {
	var v T
	if fn != nil {
		fn(&v)
	}

	return l.PushBack(v)
}

// At returns a copy of the element at index i, in O(i).
func (l *List[T]) At(i int) (T, error) {
	var zero T

	if i < 0 || int64(i) >= atomic.LoadInt64(l.sizePtr()) {
		return zero, tracerrors.IndexOutOfBoundsInSharedList(i, l.Size())
	}

	cur := l.head()
	for j := 0; j < i; j++ {
		cur = l.nodeAt(cur).Next
	}

	return l.nodeAt(cur).Data, nil
}

// Size returns the number of elements in the list.
func (l *List[T]) Size() int { return int(atomic.LoadInt64(l.sizePtr())) }

// Empty reports whether the list has no elements.
func (l *List[T]) Empty() bool { return l.Size() == 0 }

// Clear deallocates every node and resets the list to empty. Idempotent.
// It does not release the header itself; Destroy does that for a list
// created by New.
func (l *List[T]) Clear() {
	cur := l.head()

	for !cur.IsNull() {
		n := l.nodeAt(cur)
		next := n.Next
		l.alloc.Deallocate(unsafe.Pointer(n), nodeSize[T]())
		cur = next
	}

	l.setHead(offsetptr.Null)
	l.setTail(offsetptr.Null)
	atomic.StoreInt64(l.sizePtr(), 0)
}

// Iterator walks the list bidirectionally, yielding copies of T. The zero
// Iterator (from End) holds a null current node.
type Iterator[T any] struct {
	list *List[T]
	cur  offsetptr.Offset
}

// Begin returns an iterator at the first element.
func (l *List[T]) Begin() *Iterator[T] { return &Iterator[T]{list: l, cur: l.head()} }

// End returns the past-the-end iterator.
func (l *List[T]) End() *Iterator[T] { return &Iterator[T]{list: l, cur: offsetptr.Null} }

// Next advances the iterator. Advancing past the end is a no-op.
func (it *Iterator[T]) Next() {
	if it.cur.IsNull() {
		return
	}

	it.cur = it.list.nodeAt(it.cur).Next
}

// Prev moves the iterator backward. From End, it moves to the last element.
func (it *Iterator[T]) Prev() {
	if it.cur.IsNull() {
		it.cur = it.list.tail()

		return
	}

	it.cur = it.list.nodeAt(it.cur).Prev
}

// AtEnd reports whether the iterator is past the last element.
func (it *Iterator[T]) AtEnd() bool { return it.cur.IsNull() }

// Value returns a copy of the element the iterator currently refers to.
// Dereferencing a past-the-end iterator returns the zero value of T; no
// placeholder node is ever allocated for it.
func (it *Iterator[T]) Value() T {
	var zero T

	if it.cur.IsNull() {
		return zero
	}

	return it.list.nodeAt(it.cur).Data
}

// Equal reports whether two iterators refer to the same node (or are both
// at the end).
func (it *Iterator[T]) Equal(other *Iterator[T]) bool { return it.cur == other.cur }
