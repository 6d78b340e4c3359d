// Package diag wraps log/slog for the tracing substrate's structured
// diagnostics: allocate, deallocate, drain, publish, and
// corruption-detected events, each carrying the allocator/ring identity as
// structured attributes rather than being interpolated into a message
// string.
package diag

import (
	"log/slog"
	"os"
)

// Logger is a thin facade over *slog.Logger naming the event kinds the
// tracing substrate emits, so call sites read as "what happened" rather
// than assembling slog.Attr lists inline at every call site.
type Logger struct {
	base *slog.Logger
}

// New wraps l (or a default JSON logger to stderr if l is nil).
func New(l *slog.Logger) *Logger {
	if l == nil {
		l = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}

	return &Logger{base: l}
}

// Allocate logs a successful allocation.
func (d *Logger) Allocate(component string, size, available uintptr) {
	d.base.Info("allocate", slog.String("component", component), slog.Uint64("size", uint64(size)), slog.Uint64("available", uint64(available)))
}

// Deallocate logs a successful deallocation.
func (d *Logger) Deallocate(component string, size, available uintptr) {
	d.base.Info("deallocate", slog.String("component", component), slog.Uint64("size", uint64(size)), slog.Uint64("available", uint64(available)))
}

// Drain logs an LFCA tail-drain crediting bytes back to the free pool.
func (d *Logger) Drain(credited uint64, wrapped bool) {
	d.base.Debug("drain", slog.Uint64("credited", credited), slog.Bool("wrapped", wrapped))
}

// Publish logs a ring slot transitioning to ready.
func (d *Logger) Publish(slot int, clientID, contextID uint64) {
	d.base.Info("publish", slog.Int("slot", slot), slog.Uint64("client_id", clientID), slog.Uint64("context_id", contextID))
}

// CorruptionDetected logs a canary or checksum mismatch. Always logged at
// Error level since it indicates a corrupted or hostile shared region.
func (d *Logger) CorruptionDetected(component, detail string) {
	d.base.Error("corruption_detected", slog.String("component", component), slog.String("detail", detail))
}
