package template

import (
	"io"
)

// TemplateRenderer executes named templates with a data context. Output is
// returned and, when writers are supplied, copied to each of them.
type TemplateRenderer interface {
	RenderTemplate(name string, data map[string]any, out ...io.Writer) (string, error)
	RegisterFilter(name string, fn func(input any, param any) (any, error)) error
}
