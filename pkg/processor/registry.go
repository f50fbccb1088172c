package processor

import (
	"fmt"
	"sort"
	"sync"
)

// Registry stores processor descriptors by key, providing discovery and
// duplication safeguards.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]Descriptor
}

// NewRegistry creates an empty registry instance.
func NewRegistry() *Registry {
	return &Registry{
		descriptors: make(map[string]Descriptor),
	}
}

// Register adds a descriptor by its Key. Duplicate keys return an error.
func (r *Registry) Register(d Descriptor) error {
	if d.Key == "" {
		return fmt.Errorf("processor: key is required")
	}
	if d.PreProcessor == nil {
		return fmt.Errorf("processor: %q has no pre-processor", d.Key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.descriptors[d.Key]; exists {
		return fmt.Errorf("processor: %q already registered", d.Key)
	}
	r.descriptors[d.Key] = d
	return nil
}

// Get retrieves a descriptor by key.
func (r *Registry) Get(key string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.descriptors[key]
	if !ok {
		return Descriptor{}, fmt.Errorf("processor: %q not found", key)
	}
	return d, nil
}

// List returns a sorted list of descriptor keys.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.descriptors))
	for key := range r.descriptors {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether a descriptor is registered.
func (r *Registry) Has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.descriptors[key]
	return ok
}
