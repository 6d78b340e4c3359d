//go:build unix

package region

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/qorix-group/baselibs-sub006/internal/tracing/offsetptr"
	"github.com/qorix-group/baselibs-sub006/internal/tracing/tracerrors"
)

// New creates (or truncates) the file at path, sizes it to hold a Header
// plus userSize bytes of user-allocatable area, and maps it MAP_SHARED so
// every process that later calls Open on the same path observes the same
// bytes. This is the region's birth: mmap of a backing file.
func New(path string, userSize uint64, major, minor, patch uint32) (*Region, error) {
	if userSize == 0 {
		return nil, tracerrors.SizeIsZero()
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, tracerrors.InvalidArgument("region.New", err.Error())
	}
	defer f.Close()

	total := int64(HeaderSize) + int64(userSize)
	if err := f.Truncate(total); err != nil {
		return nil, tracerrors.InvalidArgument("region.New", err.Error())
	}

	buf, err := unix.Mmap(int(f.Fd()), 0, int(total), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, tracerrors.InvalidArgument("region.New", err.Error())
	}

	writeHeader(buf, userSize, major, minor, patch)

	r := &Region{
		ID:   newID(),
		Buf:  buf,
		User: buf[HeaderSize:],
		closer: func() error {
			return unix.Munmap(buf)
		},
	}
	offsetptr.DefaultRegistry().Register(r.ID, r.Bounds())

	return r, nil
}

// Open maps an existing region file created by New (by this or another
// process) and validates its header before returning it. The region dies
// (is unmapped) when Close is called; the backing file itself is never
// removed by this package.
func Open(path string) (*Region, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, tracerrors.InvalidArgument("region.Open", err.Error())
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, tracerrors.InvalidArgument("region.Open", err.Error())
	}

	buf, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, tracerrors.InvalidArgument("region.Open", err.Error())
	}

	if _, err := readHeader(buf); err != nil {
		_ = unix.Munmap(buf)
		return nil, err
	}

	r := &Region{
		ID:   newID(),
		Buf:  buf,
		User: buf[HeaderSize:],
		closer: func() error {
			return unix.Munmap(buf)
		},
	}
	offsetptr.DefaultRegistry().Register(r.ID, r.Bounds())

	return r, nil
}
