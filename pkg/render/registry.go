package render

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry stores renderers by name. The HTTP host and the CLI share one so a
// form can be served as HTML or filled in a terminal from the same wiring.
type Registry struct {
	mu        sync.RWMutex
	renderers map[string]Renderer
	fallback  string
}

// NewRegistry creates an empty registry. fallback names the renderer Resolve
// uses when a caller does not ask for one.
func NewRegistry(fallback string) *Registry {
	return &Registry{
		renderers: make(map[string]Renderer),
		fallback:  fallback,
	}
}

// Register adds a renderer by its Name(). Duplicate names return an error.
func (r *Registry) Register(renderer Renderer) error {
	if renderer == nil {
		return errors.New("render: renderer is required")
	}
	name := renderer.Name()
	if name == "" {
		return errors.New("render: renderer name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.renderers[name]; exists {
		return fmt.Errorf("render: renderer %q already registered", name)
	}
	r.renderers[name] = renderer
	return nil
}

// Get retrieves a renderer by name.
func (r *Registry) Get(name string) (Renderer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	renderer, ok := r.renderers[name]
	if !ok {
		return nil, fmt.Errorf("render: renderer %q not found", name)
	}
	return renderer, nil
}

// Resolve returns the named renderer. An empty name selects the fallback
// renderer, then the first registered name.
func (r *Registry) Resolve(name string) (Renderer, error) {
	if name != "" {
		return r.Get(name)
	}
	if r.fallback != "" {
		if renderer, err := r.Get(r.fallback); err == nil {
			return renderer, nil
		}
	}
	names := r.List()
	if len(names) == 0 {
		return nil, errors.New("render: no renderers registered")
	}
	return r.Get(names[0])
}

// List returns a sorted list of renderer names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.renderers))
	for name := range r.renderers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
