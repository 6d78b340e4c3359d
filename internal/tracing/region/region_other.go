//go:build !unix

package region

import (
	"os"

	"github.com/qorix-group/baselibs-sub006/internal/tracing/offsetptr"
	"github.com/qorix-group/baselibs-sub006/internal/tracing/tracerrors"
)

// New on non-unix targets falls back to an in-process buffer backed by a
// plain file write/read (no shared mapping): cross-process sharing of the
// region is a unix-only capability of this module.
func New(path string, userSize uint64, major, minor, patch uint32) (*Region, error) {
	if userSize == 0 {
		return nil, tracerrors.SizeIsZero()
	}

	buf := make([]byte, int64(HeaderSize)+int64(userSize))
	writeHeader(buf, userSize, major, minor, patch)

	if err := os.WriteFile(path, buf, 0o600); err != nil {
		return nil, tracerrors.InvalidArgument("region.New", err.Error())
	}

	r := &Region{
		ID:   newID(),
		Buf:  buf,
		User: buf[HeaderSize:],
	}
	offsetptr.DefaultRegistry().Register(r.ID, r.Bounds())

	return r, nil
}

// Open reads back a region file written by New on this platform.
func Open(path string) (*Region, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, tracerrors.InvalidArgument("region.Open", err.Error())
	}

	if _, err := readHeader(buf); err != nil {
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
