package diag

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func newTestLogger(buf *bytes.Buffer) *Logger {
	return New(slog.New(slog.NewJSONHandler(buf, nil)))
}

func TestAllocateLogsStructuredFields(t *testing.T) {
	var buf bytes.Buffer

	d := newTestLogger(&buf)
	d.Allocate("fca", 128, 4096)

	var rec map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}

	if rec["msg"] != "allocate" || rec["component"] != "fca" {
		t.Fatalf("unexpected log record: %+v", rec)
	}
}

func TestCorruptionDetectedLogsAtErrorLevel(t *testing.T) {
	var buf bytes.Buffer

	d := newTestLogger(&buf)
	d.CorruptionDetected("region", "checksum mismatch")

	if !strings.Contains(buf.String(), `"level":"ERROR"`) {
		t.Fatalf("expected an ERROR-level record, got %s", buf.String())
	}
}
