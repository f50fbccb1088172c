package render

import (
	"context"

	"github.com/goliatone/go-formcrm/pkg/form"
)

// Renderer converts a form into a byte representation (HTML, JSON, ...).
type Renderer interface {
	Name() string
	ContentType() string
	Render(ctx context.Context, f form.Form, options RenderOptions) ([]byte, error)
}
