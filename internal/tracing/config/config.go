// Package config loads the tracing substrate's construction-time settings
// (region path/size, ring-buffer slot count, max alignment) from a JSON
// file and hot-reloads it with fsnotify. A reload only replaces the in-memory Config snapshot a caller
// reads via Current; it never mutates a live allocator or region. A new
// region/allocator constructed after a reload is the only thing that
// observes the new values.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/qorix-group/baselibs-sub006/internal/tracing/tracerrors"
)

// Config is the set of values read from the JSON descriptor.
type Config struct {
	RegionPath    string `json:"region_path"`
	RegionSize    int64  `json:"region_size"`
	RingSlotCount int    `json:"ring_slot_count"`
	MaxAlignment  int    `json:"max_alignment"`
}

// Validate reports whether c's fields are usable to construct a region and
// ring buffer.
func (c Config) Validate() error {
	if c.RegionPath == "" {
		return tracerrors.InvalidArgument("config.Validate", "region_path must not be empty")
	}

	if c.RegionSize <= 0 {
		return tracerrors.InvalidArgument("config.Validate", "region_size must be positive")
	}

	if c.RingSlotCount <= 0 {
		return tracerrors.InvalidArgument("config.Validate", "ring_slot_count must be positive")
	}

	if c.MaxAlignment <= 0 || c.MaxAlignment&(c.MaxAlignment-1) != 0 {
		return tracerrors.InvalidArgument("config.Validate", "max_alignment must be a positive power of two")
	}

	return nil
}

// Load reads and parses the JSON descriptor at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-supplied configuration, not untrusted input
	if err != nil {
		return Config{}, tracerrors.InvalidArgument("config.Load", "reading "+path+": "+err.Error())
	}

	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, tracerrors.InvalidArgument("config.Load", "parsing "+path+": "+err.Error())
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

// Watcher holds the most recently loaded Config and keeps it current by
// watching its file for writes.
type Watcher struct {
	mu      sync.RWMutex
	current Config

	path    string
	watcher *fsnotify.Watcher
	done    chan struct{}

	onReload func(Config, error)
}

// NewWatcher loads path once and then watches its containing directory for
// changes, reloading on every write/create/rename event that targets path.
// onReload, if non-nil, is called (from the watcher goroutine) after every
// reload attempt, successful or not.
func NewWatcher(path string, onReload func(Config, error)) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, tracerrors.InvalidArgument("config.NewWatcher", "creating fsnotify watcher: "+err.Error())
	}

	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()

		return nil, tracerrors.InvalidArgument("config.NewWatcher", "watching "+filepath.Dir(path)+": "+err.Error())
	}

	w := &Watcher{current: cfg, path: path, watcher: fw, done: make(chan struct{}), onReload: onReload}

	go w.loop()

	return w, nil
}

func (w *Watcher) loop() {
	abs, err := filepath.Abs(w.path)
	if err != nil {
		abs = w.path
	}

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			evAbs, err := filepath.Abs(ev.Name)
			if err != nil {
				evAbs = ev.Name
			}

			if evAbs != abs {
				continue
			}

			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			cfg, err := Load(w.path)
			if err == nil {
				w.mu.Lock()
				w.current = cfg
				w.mu.Unlock()
			}

			if w.onReload != nil {
				w.onReload(cfg, err)
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Current returns the most recently loaded Config.
func (w *Watcher) Current() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.current
}

// Close stops the watcher goroutine and releases the underlying fsnotify
// watcher.
func (w *Watcher) Close() error {
	close(w.done)

	return w.watcher.Close()
}
