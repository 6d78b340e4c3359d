//go:build unix

package region

import (
	"path/filepath"
	"testing"
)

func TestNewAndOpenShareBytesThroughMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.region")

	w, err := New(path, 4096, 1, 0, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	msg := []byte("written-by-creator")
	copy(w.User, msg)

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if got := string(r.User[:len(msg)]); got != string(msg) {
		t.Fatalf("reader observed %q through the shared mapping", got)
	}
}
