// Package offsetptr implements holder-relative offset pointers: the sole
// cross-process reference type used by the tracing substrate. An Offset is
// a signed byte delta from some holder's address; it never stores an
// absolute address, so it stays valid no matter where a process maps the
// shared region.
package offsetptr

import (
	"sync"
)

// Offset is a signed byte delta relative to a holder address. Zero is the
// null sentinel.
type Offset int64

// Null is the zero offset, meaning "no target".
const Null Offset = 0

// IsNull reports whether the offset is the null sentinel.
func (o Offset) IsNull() bool { return o == Null }

// Resolve computes the target address for a holder at holderAddr. A null
// offset resolves to 0 regardless of holderAddr, matching the "offset
// pointer arithmetic must tolerate no holder" requirement.
func (o Offset) Resolve(holderAddr uintptr) uintptr {
	if o.IsNull() {
		return 0
	}

	return uintptr(int64(holderAddr) + int64(o))
}

// Of computes the offset from holderAddr to targetAddr. Resolving the
// result against holderAddr returns targetAddr (round-trip property),
// except when targetAddr is 0 or equal to holderAddr: both yield Null,
// which resolves to 0.
func Of(holderAddr, targetAddr uintptr) Offset {
	if targetAddr == 0 {
		return Null
	}

	return Offset(int64(targetAddr) - int64(holderAddr))
}

// RegionID identifies a mapped region for bounds-registry lookups.
type RegionID uint64

// Bounds is the half-open address range [Base, End) a region occupies in
// this process's address space.
type Bounds struct {
	Base uintptr
	End  uintptr
}

// Contains reports whether [addr, addr+size) lies entirely within b.
func (b Bounds) Contains(addr uintptr, size uintptr) bool {
	if addr < b.Base || addr > b.End {
		return false
	}

	end := addr + size

	return end >= addr && end <= b.End
}

// BoundsRegistry maps a RegionID to the address range the current process
// mapped it at. It is populated by whichever collaborator owns the mmap and
// consulted by Offset dereferences on audit builds; it must be safe for
// concurrent insert/lookup since multiple goroutines in one process may
// register or query regions concurrently.
type BoundsRegistry struct {
	mu      sync.RWMutex
	regions map[RegionID]Bounds
}

// NewBoundsRegistry creates an empty registry.
func NewBoundsRegistry() *BoundsRegistry {
	return &BoundsRegistry{regions: make(map[RegionID]Bounds)}
}

// Register records the bounds for a region identifier. Called once by the
// collaborator that mapped the region (init on first registration).
func (r *BoundsRegistry) Register(id RegionID, bounds Bounds) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regions[id] = bounds
}

// Unregister drops a region's bounds, e.g. on munmap (teardown at process
// exit or explicit close).
func (r *BoundsRegistry) Unregister(id RegionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.regions, id)
}

// Lookup returns the bounds registered for id, if any.
func (r *BoundsRegistry) Lookup(id RegionID) (Bounds, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.regions[id]

	return b, ok
}

// InBounds reports whether [addr, addr+size) lies within the registered
// bounds for id. An unregistered id is never in bounds.
func (r *BoundsRegistry) InBounds(id RegionID, addr uintptr, size uintptr) bool {
	b, ok := r.Lookup(id)
	if !ok {
		return false
	}

	return b.Contains(addr, size)
}

var global = NewBoundsRegistry()

// DefaultRegistry returns the process-wide bounds registry. Its lifecycle is
// init-on-first-use and it lives until process exit; the core only ever
// reads from it.
func DefaultRegistry() *BoundsRegistry { return global }

// ResolveChecked resolves o against holderAddr and, if reg is non-nil,
// additionally verifies the result lies in the bounds registered for id; an
// id that is not registered in reg fails the check. A Null offset always
// passes. This
// is the audit-build dereference path described by the offset pointer
// contract; callers that do not care about auditing can use Resolve
// directly.
func (o Offset) ResolveChecked(holderAddr uintptr, reg *BoundsRegistry, id RegionID, size uintptr) (uintptr, bool) {
	addr := o.Resolve(holderAddr)
	if o.IsNull() {
		return 0, true
	}

	if reg == nil {
		return addr, true
	}

	return addr, reg.InBounds(id, addr, size)
}
