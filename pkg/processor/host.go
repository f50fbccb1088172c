package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/goliatone/go-formcrm/pkg/form"
)

// RenderContext is the value threaded through render filters.
type RenderContext struct {
	Form      form.Form
	SessionID string
}

// Outcome summarises a submission run.
type Outcome struct {
	Notes  []Note
	Halted bool
}

// Option customises a Host.
type Option func(*Host)

// WithLogger sets the host logger.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Host) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithRegistry injects a descriptor registry.
func WithRegistry(registry *Registry) Option {
	return func(h *Host) {
		if registry != nil {
			h.registry = registry
		}
	}
}

// Host runs processors and render filters for forms. Processors arrive
// through the ProcessorFilters chain and are registered on first use.
type Host struct {
	// ProcessorFilters collects processor descriptors.
	ProcessorFilters Filters[[]Descriptor]
	// RenderFilters rewrite a form before it is displayed.
	RenderFilters Filters[RenderContext]

	registry *Registry
	logger   *zap.Logger

	loadMu sync.Mutex
	loaded bool
}

// NewHost constructs a host with an empty registry.
func NewHost(options ...Option) *Host {
	h := &Host{
		registry: NewRegistry(),
		logger:   zap.NewNop(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h
}

// Registry returns the descriptor registry, loading descriptors from the
// processors filter first.
func (h *Host) Registry(ctx context.Context) (*Registry, error) {
	if err := h.load(ctx); err != nil {
		return nil, err
	}
	return h.registry, nil
}

// load registers the descriptors collected by ProcessorFilters. Only a
// successful load is kept; a failed one runs again on the next call.
func (h *Host) load(ctx context.Context) error {
	h.loadMu.Lock()
	defer h.loadMu.Unlock()
	if h.loaded {
		return nil
	}

	descriptors, err := h.ProcessorFilters.Apply(ctx, nil)
	if err != nil {
		return err
	}
	for _, d := range descriptors {
		if err := h.registry.Register(d); err != nil {
			return err
		}
		h.logger.Debug("processor registered", zap.String("key", d.Key))
	}
	h.loaded = true
	return nil
}

// Render runs the render filters over a clone of f.
func (h *Host) Render(ctx context.Context, f form.Form, sessionID string) (form.Form, error) {
	if ctx == nil {
		return form.Form{}, errors.New("processor: context is required")
	}
	out, err := h.RenderFilters.Apply(ctx, RenderContext{Form: f.Clone(), SessionID: sessionID})
	if err != nil {
		return form.Form{}, err
	}
	return out.Form, nil
}

// Submit runs the pre-processor of every processor configured on f, in
// processor ID order. The first error note halts the run.
func (h *Host) Submit(ctx context.Context, f form.Form, s form.Submission) (Outcome, error) {
	if ctx == nil {
		return Outcome{}, errors.New("processor: context is required")
	}
	if err := h.load(ctx); err != nil {
		return Outcome{}, err
	}

	var outcome Outcome
	for _, id := range f.ProcessorIDs() {
		cfg := f.Processors[id]
		d, err := h.registry.Get(cfg.Type)
		if err != nil {
			h.logger.Warn("skipping unknown processor",
				zap.String("form", f.ID),
				zap.String("processor", id),
				zap.String("type", cfg.Type),
			)
			continue
		}

		note, err := d.PreProcessor.PreProcess(ctx, cfg, f, s)
		if err != nil {
			return outcome, fmt.Errorf("processor: %s (%s): %w", id, cfg.Type, err)
		}
		if note == nil {
			continue
		}
		outcome.Notes = append(outcome.Notes, *note)
		if note.IsError() {
			h.logger.Info("submission halted",
				zap.String("form", f.ID),
				zap.String("processor", id),
				zap.String("process_id", s.ProcessID),
			)
			outcome.Halted = true
			return outcome, nil
		}
	}
	return outcome, nil
}
