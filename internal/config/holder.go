package config

import "sync"

// Holder is a concurrency-safe swap point for a loaded Config. The
// RunCoordinator and all three triggers share one Holder so a config reload
// takes effect on the next cycle without restarting any goroutine.
type Holder struct {
	mu  sync.RWMutex
	cfg *Config
}

// NewHolder wraps an already-loaded Config.
func NewHolder(cfg *Config) *Holder {
	return &Holder{cfg: cfg}
}

// Get returns the current Config. The returned pointer must be treated as
// read-only by the caller; use Set to publish a new one.
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

// Set publishes a new Config, visible to subsequent Get calls immediately.
func (h *Holder) Set(cfg *Config) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cfg = cfg
}

// Reload reads path again and, on success, publishes the result.
func (h *Holder) Reload(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	h.Set(cfg)
	return nil
}
