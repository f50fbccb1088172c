// Package processor hosts form processors: callbacks the form builder runs
// before a submission completes (pre-processors) and filters it runs over a
// form before display (pre-renderers). Processors register descriptors
// through the host's processors filter, the same way the host's own extension
// points are exposed.
package processor

import (
	"context"

	"github.com/goliatone/go-formcrm/pkg/form"
)

// Note types surfaced to the visitor after a submission.
const (
	NoteError   = "error"
	NoteSuccess = "success"
	NoteWarning = "warning"
	NoteInfo    = "info"
)

// Note is a message a processor hands back to the host. An error note halts
// the submission.
type Note struct {
	Type    string `json:"type"`
	Message string `json:"note"`
}

// IsError reports whether the note stops the submission.
func (n *Note) IsError() bool {
	return n != nil && n.Type == NoteError
}

// PreProcessor runs at submission time for each configured processor
// instance.
type PreProcessor interface {
	PreProcess(ctx context.Context, cfg form.Processor, f form.Form, s form.Submission) (*Note, error)
}

// PreProcessorFunc adapts a function to PreProcessor.
type PreProcessorFunc func(ctx context.Context, cfg form.Processor, f form.Form, s form.Submission) (*Note, error)

// PreProcess calls fn.
func (fn PreProcessorFunc) PreProcess(ctx context.Context, cfg form.Processor, f form.Form, s form.Submission) (*Note, error) {
	return fn(ctx, cfg, f, s)
}

// Descriptor describes a processor type to the host.
type Descriptor struct {
	Key          string
	Name         string
	Description  string
	Author       string
	Template     []ConfigField
	PreProcessor PreProcessor
}

// ConfigField describes one processor setting for configuration screens.
type ConfigField struct {
	Key      string
	Label    string
	Kind     string
	Required bool
	Options  []form.Option
}

// Config field kinds.
const (
	ConfigKindSelect   = "select"
	ConfigKindFieldMap = "field"
)
