package filters

import (
	"encoding/json"
	"sort"
	"sync"
)

// Entry is the state of one label: an inactive entry has an empty ID and no
// heartbeat.
type Entry struct {
	ID        string
	Heartbeat *Heartbeat
}

// Active reports whether a filter id is held.
func (e Entry) Active() bool {
	return e.ID != ""
}

// MarshalJSON renders inactive fields as null.
func (e Entry) MarshalJSON() ([]byte, error) {
	out := struct {
		ID        *string `json:"id"`
		Heartbeat *bool   `json:"heartbeat"`
	}{}
	if e.ID != "" {
		id := e.ID
		out.ID = &id
	}
	if e.Heartbeat != nil {
		running := e.Heartbeat.Running()
		out.Heartbeat = &running
	}
	return json.Marshal(out)
}

// Registry tracks which filters are live. The label set is fixed at
// construction.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewRegistry creates a registry holding the given labels, all inactive.
func NewRegistry(labels []string) *Registry {
	entries := make(map[string]Entry, len(labels))
	for _, label := range labels {
		entries[label] = Entry{}
	}
	return &Registry{entries: entries}
}

// Has reports whether label belongs to the registry.
func (r *Registry) Has(label string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[label]
	return ok
}

// Get returns the entry for label; unknown labels read as inactive.
func (r *Registry) Get(label string) Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[label]
}

// Set replaces both fields of the entry for label.
func (r *Registry) Set(label, id string, hb *Heartbeat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[label]; !ok {
		return ErrUnknownLabel
	}
	r.entries[label] = Entry{ID: id, Heartbeat: hb}
	return nil
}

// attachHeartbeat sets hb on label only while label still holds id without a
// heartbeat.
func (r *Registry) attachHeartbeat(label, id string, hb *Heartbeat) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[label]
	if !ok || e.ID != id || e.Heartbeat != nil {
		return false
	}
	e.Heartbeat = hb
	r.entries[label] = e
	return true
}

// Clear resets label to inactive and returns the previous entry. Clearing an
// inactive or unknown label is a no-op.
func (r *Registry) Clear(label string) Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.entries[label]
	if !ok {
		return Entry{}
	}
	r.entries[label] = Entry{}
	return prev
}

// AllRemoved reports whether every entry is inactive.
func (r *Registry) AllRemoved() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.ID != "" || e.Heartbeat != nil {
			return false
		}
	}
	return true
}

// Labels returns the registry labels, sorted.
func (r *Registry) Labels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for label := range r.entries {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// Snapshot copies every entry.
func (r *Registry) Snapshot() map[string]Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Entry, len(r.entries))
	for label, e := range r.entries {
		out[label] = e
	}
	return out
}
