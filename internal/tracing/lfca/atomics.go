// Package lfca implements the LocklessFlexibleCircularAllocator: a
// multi-producer, single-consumer-friendly byte allocator over a
// caller-provided buffer with no mutex on the fast path.
package lfca

import "sync/atomic"

// Atomics is the indirection over every atomic operation the allocator
// performs: production code gets realAtomics, mapping 1:1 onto
// sync/atomic; tests can substitute MockAtomics to force specific CAS
// calls to fail and exercise the allocator's retry paths.
type Atomics interface {
	CAS(addr *uint64, old, new uint64) bool
	Load(addr *uint64) uint64
	Store(addr *uint64, v uint64)
	Add(addr *uint64, delta uint64) uint64
}

// realAtomics is the production Atomics implementation.
type realAtomics struct{}

func (realAtomics) CAS(addr *uint64, old, new uint64) bool { return atomic.CompareAndSwapUint64(addr, old, new) }
func (realAtomics) Load(addr *uint64) uint64               { return atomic.LoadUint64(addr) }
func (realAtomics) Store(addr *uint64, v uint64)           { atomic.StoreUint64(addr, v) }
func (realAtomics) Add(addr *uint64, delta uint64) uint64  { return atomic.AddUint64(addr, delta) }

// RealAtomics is the shared production Atomics instance.
var RealAtomics Atomics = realAtomics{}
