package form

import (
	"fmt"
	"sort"
	"sync"
)

// Catalog stores validated form definitions by ID. Get hands out clones so
// callers can run filters without touching the stored definition.
type Catalog struct {
	mu    sync.RWMutex
	forms map[string]Form
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{forms: make(map[string]Form)}
}

// Add validates and stores a form. Duplicate IDs return an error.
func (c *Catalog) Add(f Form) error {
	f.Normalize()
	if err := f.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.forms[f.ID]; exists {
		return fmt.Errorf("form: %q already registered", f.ID)
	}
	c.forms[f.ID] = f.Clone()
	return nil
}

// Get returns a clone of the named form.
func (c *Catalog) Get(id string) (Form, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, ok := c.forms[id]
	if !ok {
		return Form{}, false
	}
	return f.Clone(), true
}

// IDs returns the stored form IDs sorted.
func (c *Catalog) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.forms))
	for id := range c.forms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len reports how many forms are stored.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.forms)
}
