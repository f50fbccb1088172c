package processor

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// DefaultPriority is used by filters registered without an explicit priority.
const DefaultPriority = 10

// FilterFunc transforms a value flowing through an extension point.
type FilterFunc[T any] func(ctx context.Context, value T) (T, error)

type filterEntry[T any] struct {
	name     string
	priority int
	seq      int
	fn       FilterFunc[T]
}

// Filters is an ordered chain of named callbacks. Lower priorities run first;
// equal priorities run in registration order.
type Filters[T any] struct {
	mu      sync.RWMutex
	entries []filterEntry[T]
	seq     int
}

// Add registers fn under name.
func (f *Filters[T]) Add(name string, priority int, fn FilterFunc[T]) error {
	if name == "" || fn == nil {
		return fmt.Errorf("processor: filter name and func are required")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.name == name {
			return fmt.Errorf("processor: filter %q already registered", name)
		}
	}
	f.seq++
	f.entries = append(f.entries, filterEntry[T]{name: name, priority: priority, seq: f.seq, fn: fn})
	sort.SliceStable(f.entries, func(i, j int) bool {
		if f.entries[i].priority != f.entries[j].priority {
			return f.entries[i].priority < f.entries[j].priority
		}
		return f.entries[i].seq < f.entries[j].seq
	})
	return nil
}

// Names lists registered filters in run order.
func (f *Filters[T]) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.name)
	}
	return out
}

// Apply threads value through every filter.
func (f *Filters[T]) Apply(ctx context.Context, value T) (T, error) {
	f.mu.RLock()
	entries := append([]filterEntry[T](nil), f.entries...)
	f.mu.RUnlock()

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return value, err
		}
		next, err := e.fn(ctx, value)
		if err != nil {
			return value, fmt.Errorf("processor: filter %q: %w", e.name, err)
		}
		value = next
	}
	return value, nil
}
