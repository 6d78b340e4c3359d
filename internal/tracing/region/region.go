// Package region manages the lifecycle of the shared memory region the
// tracing substrate's allocators operate over: a caller-provided contiguous
// byte buffer, identically sized at every participant, mapped at whatever
// virtual address each process's kernel happens to choose. New creates (or
// truncates) the backing file and maps it, Open maps an existing one, and
// Close unmaps it; the backing file is never removed by this package.
package region

import (
	"crypto/rand"
	"encoding/binary"
	"unsafe"

	"golang.org/x/crypto/blake2b"

	"github.com/qorix-group/baselibs-sub006/internal/tracing/offsetptr"
	"github.com/qorix-group/baselibs-sub006/internal/tracing/tracerrors"
)

// headerMagic identifies a region that was initialized by this module,
// distinguishing it from an arbitrary file mapped by mistake.
const headerMagic uint64 = 0x5343_4F52_4554_5200 // "SCORETR\0" folded into 8 bytes

// Header is the fixed-size preamble written at the start of every region by
// New, and validated by Open. It covers what a cross-process consumer needs
// to validate: that it is looking at a region this module created, at the
// size it expects, and that the header bytes were not corrupted in transit.
type Header struct {
	Magic       uint64
	LayoutMajor uint32
	LayoutMinor uint32
	LayoutPatch uint32
	_           uint32 // padding to keep Checksum 8-byte aligned
	TotalSize   uint64
	Checksum    [32]byte // BLAKE2b-256 over the fields above
}

// HeaderSize is the on-wire size of Header, and therefore the byte offset at
// which the user-allocatable area of a region begins.
const HeaderSize = 8 + 4 + 4 + 4 + 4 + 8 + 32

// Region is a mapped, identically-sized-everywhere byte buffer. Buf is the
// entire mapping including the Header preamble; User is the slice an
// allocator should be constructed over.
type Region struct {
	ID     offsetptr.RegionID
	Buf    []byte
	User   []byte
	closer func() error
}

// Base returns the address of the start of the user-allocatable area.
func (r *Region) Base() uintptr {
	if len(r.User) == 0 {
		return 0
	}

	return uintptr(unsafe.Pointer(&r.User[0]))
}

// Size returns the length of the user-allocatable area.
func (r *Region) Size() uintptr { return uintptr(len(r.User)) }

// Bounds returns the [base, end) range of the user area, suitable for
// registration with an offsetptr.BoundsRegistry.
func (r *Region) Bounds() offsetptr.Bounds {
	base := r.Base()

	return offsetptr.Bounds{Base: base, End: base + uintptr(len(r.User))}
}

func computeChecksum(h *Header) [32]byte {
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint64(buf[0:8], h.Magic)
	binary.LittleEndian.PutUint32(buf[8:12], h.LayoutMajor)
	binary.LittleEndian.PutUint32(buf[12:16], h.LayoutMinor)
	binary.LittleEndian.PutUint32(buf[16:20], h.LayoutPatch)
	binary.LittleEndian.PutUint64(buf[24:32], h.TotalSize)

	return blake2b.Sum256(buf)
}

func writeHeader(buf []byte, totalSize uint64, major, minor, patch uint32) {
	h := Header{
		Magic:       headerMagic,
		LayoutMajor: major,
		LayoutMinor: minor,
		LayoutPatch: patch,
		TotalSize:   totalSize,
	}
	h.Checksum = computeChecksum(&h)

	binary.LittleEndian.PutUint64(buf[0:8], h.Magic)
	binary.LittleEndian.PutUint32(buf[8:12], h.LayoutMajor)
	binary.LittleEndian.PutUint32(buf[12:16], h.LayoutMinor)
	binary.LittleEndian.PutUint32(buf[16:20], h.LayoutPatch)
	binary.LittleEndian.PutUint64(buf[24:32], h.TotalSize)
	copy(buf[32:64], h.Checksum[:])
}

func readHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, tracerrors.InvalidArgument("region.Open", "buffer smaller than header")
	}

	var h Header

	h.Magic = binary.LittleEndian.Uint64(buf[0:8])
	h.LayoutMajor = binary.LittleEndian.Uint32(buf[8:12])
	h.LayoutMinor = binary.LittleEndian.Uint32(buf[12:16])
	h.LayoutPatch = binary.LittleEndian.Uint32(buf[16:20])
	h.TotalSize = binary.LittleEndian.Uint64(buf[24:32])
	copy(h.Checksum[:], buf[32:64])

	if h.Magic != headerMagic {
		return h, tracerrors.InvalidArgument("region.Open", "bad magic: region was not initialized by this module")
	}

	want := computeChecksum(&h)
	if want != h.Checksum {
		return h, tracerrors.InvalidArgument("region.Open", "header checksum mismatch: region corrupted")
	}

	return h, nil
}

// newID draws a random region identifier for bounds-registry keys, since
// regions are not otherwise ordered or counted by this module.
func newID() offsetptr.RegionID {
	var b [8]byte
	_, _ = rand.Read(b[:])

	return offsetptr.RegionID(binary.LittleEndian.Uint64(b[:]))
}

// Close releases any OS resources backing the region (munmap for an
// mmap-backed region; a no-op for an in-process buffer) and deregisters its
// bounds.
func (r *Region) Close() error {
	offsetptr.DefaultRegistry().Unregister(r.ID)

	if r.closer != nil {
		return r.closer()
	}

	return nil
}

// FromBytes wraps an already-allocated buffer (e.g. from a test, or from a
// collaborator that mapped the region through some other mechanism) without
// mmap/munmap involvement. The buffer must be at least HeaderSize bytes
// larger than the requested user size.
func FromBytes(buf []byte, major, minor, patch uint32, initialize bool) (*Region, error) {
	if len(buf) <= HeaderSize {
		return nil, tracerrors.InvalidArgument("region.FromBytes", "buffer too small for header")
	}

	userSize := uint64(len(buf) - HeaderSize)

	if initialize {
		writeHeader(buf, userSize, major, minor, patch)
	} else if _, err := readHeader(buf); err != nil {
		return nil, err
	}

	r := &Region{
		ID:   newID(),
		Buf:  buf,
		User: buf[HeaderSize:],
	}
	offsetptr.DefaultRegistry().Register(r.ID, r.Bounds())

	return r, nil
}
