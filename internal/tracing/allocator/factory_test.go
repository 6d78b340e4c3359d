package allocator

import (
	"testing"

	"github.com/qorix-group/baselibs-sub006/internal/tracing/lfca"
	"github.com/qorix-group/baselibs-sub006/internal/tracing/tracerrors"
)

func TestNewFCARoundTrip(t *testing.T) {
	shared, err := NewFCA(make([]byte, 4096))
	if err != nil {
		t.Fatalf("NewFCA: %v", err)
	}
	defer shared.Release()

	a := shared.Get()

	p := a.Allocate(64, 8)
	if p == nil {
		t.Fatal("allocation should succeed")
	}

	if !a.Deallocate(p, 64) {
		t.Fatal("deallocate should succeed")
	}
}

func TestNewLFCARoundTrip(t *testing.T) {
	shared, err := NewLFCA(make([]byte, lfca.ControlSize+4096))
	if err != nil {
		t.Fatalf("NewLFCA: %v", err)
	}
	defer shared.Release()

	a := shared.Get()

	p := a.Allocate(64, 0)
	if p == nil {
		t.Fatal("allocation should succeed")
	}

	if !a.Deallocate(p, 64) {
		t.Fatal("deallocate should succeed")
	}
}

func TestNewFCARejectsEmptyBuffer(t *testing.T) {
	err := newFCAErr(t, nil)
	if !tracerrors.Is(err, tracerrors.KindBaseAddressVoid) {
		t.Fatalf("err = %v, want BaseAddressVoid for a nil buffer", err)
	}

	err = newFCAErr(t, []byte{})
	if !tracerrors.Is(err, tracerrors.KindSizeIsZero) {
		t.Fatalf("err = %v, want SizeIsZero for an empty buffer", err)
	}
}

func newFCAErr(t *testing.T, buf []byte) error {
	t.Helper()

	_, err := NewFCA(buf)
	if err == nil {
		t.Fatal("expected an error")
	}

	return err
}

func TestSharedCloneAndReleaseRunsCloseOnce(t *testing.T) {
	closed := 0

	shared := NewShared(mustFCA(t), func() { closed++ })
	clone := shared.Clone()

	shared.Release()
	if closed != 0 {
		t.Fatal("close must not run while a clone is still live")
	}

	clone.Release()
	if closed != 1 {
		t.Fatalf("close should run exactly once, ran %d times", closed)
	}
}

func mustFCA(t *testing.T) Allocator {
	t.Helper()

	shared, err := NewFCA(make([]byte, 1024))
	if err != nil {
		t.Fatalf("NewFCA: %v", err)
	}

	return shared.Get()
}
