package tools

import (
	"sort"
	"sync"
)

// Registry holds the adapter variants available to the orchestrator,
// keyed by tool id.
type Registry struct {
	adapters map[string]Adapter
	mutex    sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
	}
}

func (r *Registry) Register(adapter Adapter) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.adapters[adapter.ID()] = adapter
}

func (r *Registry) Get(id string) (Adapter, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	adapter, exists := r.adapters[id]
	return adapter, exists
}

// IDs returns the registered tool ids in stable order.
func (r *Registry) IDs() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// All returns the registered adapters in stable id order.
func (r *Registry) All() []Adapter {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	adapters := make([]Adapter, 0, len(ids))
	for _, id := range ids {
		adapters = append(adapters, r.adapters[id])
	}
	return adapters
}
