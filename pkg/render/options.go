package render

import (
	theme "github.com/goliatone/go-theme"

	"github.com/goliatone/go-formcrm/pkg/processor"
)

// RenderOptions describe per-request data that renderers can use to customise
// their output without mutating the form.
type RenderOptions struct {
	// Action is the URL the form posts to. Empty posts back to the page.
	Action string
	// Method overrides the submission method; defaults to POST.
	Method string
	// Values pre-populates controls keyed by field ID. They win over field
	// defaults, so a re-rendered failed submission keeps what the visitor typed.
	Values map[string]any
	// Errors surfaces field-level feedback keyed by field ID.
	Errors map[string][]string
	// Notes are processor messages. Renderers must pass them through
	// SanitizeNotes before emitting markup.
	Notes []processor.Note
	// Hidden carries hidden inputs (session, form ID).
	Hidden map[string]string
	// Theme carries the resolved theme; nil renders unthemed.
	Theme *theme.RendererConfig
}
