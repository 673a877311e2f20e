package rule

import (
	"sync"
	"time"

	"github.com/fernhill-labs/hearth-core/internal/devicectl"
)

// CommandEntry records the last state commanded to a device.
type CommandEntry struct {
	State devicectl.State
	Time  time.Time
}

// CommandRegistry caches the last commanded state per device and
// serializes command traffic per device.
//
// The registry is constructed explicitly and injected into the Manager;
// tests inject their own instance. At most one entry exists per device.
// WithDevice provides the per-device critical section around the
// dedup-check, state-read, command, registry-update sequence so two
// near-simultaneous commands cannot race on the same entry.
type CommandRegistry struct {
	mu      sync.Mutex
	entries map[string]CommandEntry
	locks   map[string]*sync.Mutex
}

// NewCommandRegistry creates an empty command registry.
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		entries: make(map[string]CommandEntry),
		locks:   make(map[string]*sync.Mutex),
	}
}

// WithDevice runs fn while holding the device's lock. Commands to
// different devices proceed independently.
func (r *CommandRegistry) WithDevice(deviceID string, fn func() error) error {
	r.mu.Lock()
	lock, ok := r.locks[deviceID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[deviceID] = lock
	}
	r.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	return fn()
}

// Get returns the last commanded state for a device.
func (r *CommandRegistry) Get(deviceID string) (CommandEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[deviceID]
	return entry, ok
}

// Set records the last commanded state for a device.
func (r *CommandRegistry) Set(deviceID string, state devicectl.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[deviceID] = CommandEntry{State: state, Time: time.Now().UTC()}
}

// Invalidate drops a device's entry, forcing the next command through.
// Used when the device's actual state is known to have diverged, e.g.
// after manual intervention detected by the reconciler.
func (r *CommandRegistry) Invalidate(deviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, deviceID)
}

// Entries returns a copy of all current entries.
func (r *CommandRegistry) Entries() map[string]CommandEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]CommandEntry, len(r.entries))
	for id, entry := range r.entries {
		out[id] = entry
	}
	return out
}
