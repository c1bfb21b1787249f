package agent

import (
	"sync"

	"system-mqtt/internal/homeassistant"
)

// Registry tracks the entities this host advertises and which of them the
// current broker session has already seen a discovery config for. The
// announced flags are per-session state: a fresh session starts with none.
type Registry struct {
	mu        sync.Mutex
	order     []string
	entities  map[string]homeassistant.Entity
	announced map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entities:  make(map[string]homeassistant.Entity),
		announced: make(map[string]bool),
	}
}

// Register adds an entity. Registering an ID twice replaces the entity but
// keeps its original position, so announcement order stays stable.
func (r *Registry) Register(e homeassistant.Entity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entities[e.ID]; !ok {
		r.order = append(r.order, e.ID)
	}
	r.entities[e.ID] = e
}

// Entities returns the registered entities in registration order.
func (r *Registry) Entities() []homeassistant.Entity {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]homeassistant.Entity, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entities[id])
	}
	return out
}

// Announced reports whether the entity's discovery config reached the broker
// during the current session.
func (r *Registry) Announced(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.announced[id]
}

// MarkAnnounced records that the entity's discovery config reached the broker.
func (r *Registry) MarkAnnounced(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.announced[id] = true
}

// ResetAnnounced forgets every announcement so the next cycle republishes all
// discovery configs. Called after a reconnect or a hub restart.
func (r *Registry) ResetAnnounced() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.announced = make(map[string]bool)
}

// Pending returns how many registered entities still await announcement.
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	pending := 0
	for _, id := range r.order {
		if !r.announced[id] {
			pending++
		}
	}
	return pending
}
