// Package formcrm connects form definitions to a CiviCRM site: processors
// write submissions into the CRM and pre-render filters read CRM data back
// into field defaults.
package formcrm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/goliatone/go-formcrm/pkg/civicrm"
	"github.com/goliatone/go-formcrm/pkg/form"
	"github.com/goliatone/go-formcrm/pkg/orchestrator"
	"github.com/goliatone/go-formcrm/pkg/processor"
	"github.com/goliatone/go-formcrm/pkg/processor/website"
	"github.com/goliatone/go-formcrm/pkg/render"
	"github.com/goliatone/go-formcrm/pkg/transient"
)

// Form aliases form.Form for callers that only import the root package.
type Form = form.Form

// Submission aliases form.Submission.
type Submission = form.Submission

// Note aliases processor.Note.
type Note = processor.Note

// RenderOptions describes per-request overrides that renderers can use to
// prefill values or surface validation errors.
type RenderOptions = render.RenderOptions

// NewOrchestrator exposes the orchestrator constructor from the top-level
// module.
func NewOrchestrator(options ...orchestrator.Option) *orchestrator.Orchestrator {
	return orchestrator.New(options...)
}

// NewHost builds a processor host with the bundled processors registered
// against store and api.
func NewHost(store transient.Store, api civicrm.API, logger *zap.Logger) (*processor.Host, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	host := processor.NewHost(processor.WithLogger(logger))
	p, err := website.New(store, api, website.WithLogger(logger.Named(website.Key)))
	if err != nil {
		return nil, err
	}
	if err := p.Register(host); err != nil {
		return nil, fmt.Errorf("formcrm: register %s: %w", website.Key, err)
	}
	return host, nil
}

// GenerateHTML pre-renders f for sessionID and returns the HTML markup. It is
// the simplest entry point for callers that already wired a host.
func GenerateHTML(ctx context.Context, host *processor.Host, f Form, sessionID string) ([]byte, error) {
	gen := orchestrator.New(orchestrator.WithHost(host))
	out, _, err := gen.Generate(ctx, orchestrator.Request{Form: &f, SessionID: sessionID})
	return out, err
}
