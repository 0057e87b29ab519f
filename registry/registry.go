// Package registry tracks known participants and their capability metadata.
//
// The registry is read-mostly: turn coordinators read it concurrently while
// registration typically happens during setup. It implements core.Registry.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/quorum-ai/quorum/core"
)

// InMemoryRegistry is a process-local participant registry safe for
// concurrent access. Returned participants are copies to prevent external
// mutation of internal state.
type InMemoryRegistry struct {
	mu           sync.RWMutex
	participants map[string]core.Participant
}

// NewInMemoryRegistry constructs an empty registry.
func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{participants: make(map[string]core.Participant)}
}

// Register adds or replaces a participant. A zero Registered timestamp is
// stamped with the current time.
func (r *InMemoryRegistry) Register(p core.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.Registered.IsZero() {
		p.Registered = time.Now().UTC()
	}
	r.participants[p.ID] = p
}

// Deregister removes a participant from the registry. Sessions that already
// include the participant keep their historical responses.
func (r *InMemoryRegistry) Deregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.participants, id)
}

// Get returns the participant with the given ID.
func (r *InMemoryRegistry) Get(id string) (core.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[id]
	return p, ok
}

// List returns all registered participants sorted by ID for deterministic
// iteration.
func (r *InMemoryRegistry) List() []core.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Unknown returns the subset of ids not present in the registry, preserving
// input order.
func (r *InMemoryRegistry) Unknown(ids []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var missing []string
	for _, id := range ids {
		if _, ok := r.participants[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
