// config/holder.go
package config

import (
	"sync"
	"sync/atomic"
)

// Holder owns the live configuration snapshot. Readers load the current
// pointer without locking; Reload builds a complete new snapshot from disk
// and installs it in one store, so a configuration change is never partially
// applied.
type Holder struct {
	path string
	mu   sync.Mutex
	live atomic.Pointer[Snapshot]
}

// NewHolder loads the initial snapshot from path.
func NewHolder(path string) (*Holder, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	h := &Holder{path: path}
	h.live.Store(cfg)
	return h, nil
}

// NewStaticHolder wraps an already-built snapshot; Reload re-applies the
// same snapshot. Used by tests and embedded callers with no config file.
func NewStaticHolder(cfg *Snapshot) *Holder {
	h := &Holder{}
	h.live.Store(cfg)
	return h
}

// Current returns the live snapshot.
func (h *Holder) Current() *Snapshot {
	return h.live.Load()
}

// Reload re-reads the configuration file and atomically swaps the snapshot.
// On any load or validation error the previous snapshot stays live.
func (h *Holder) Reload() (*Snapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.path == "" {
		return h.live.Load(), nil
	}
	cfg, err := Load(h.path)
	if err != nil {
		return nil, err
	}
	h.live.Store(cfg)
	return cfg, nil
}

// Path returns the backing file path, empty for static holders.
func (h *Holder) Path() string { return h.path }
