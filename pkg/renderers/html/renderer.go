package html

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	theme "github.com/goliatone/go-theme"

	"github.com/goliatone/go-formcrm/pkg/form"
	"github.com/goliatone/go-formcrm/pkg/render"
	rendertemplate "github.com/goliatone/go-formcrm/pkg/render/template"
	"github.com/goliatone/go-formcrm/pkg/render/template/gotemplate"
)

//go:embed templates/*.tpl
var embeddedTemplates embed.FS

// Name is the registry name of this renderer.
const Name = "html"

const formTemplate = "templates/form"

// Theme keys read from the selected theme.
const (
	// FormPartial names a template that replaces templates/form.
	FormPartial = "forms.form"
	// StylesheetAsset names the stylesheet linked ahead of the form.
	StylesheetAsset = "formcrm.stylesheet"
)

// TemplatesFS exposes the embedded template bundle.
func TemplatesFS() fs.FS {
	return embeddedTemplates
}

// Option configures the renderer.
type Option func(*config)

type config struct {
	templateFS       fs.FS
	templateRenderer rendertemplate.TemplateRenderer
	submitLabel      string
}

// WithTemplatesFS supplies an alternate template bundle. It must contain
// templates/form.tpl.
func WithTemplatesFS(files fs.FS) Option {
	return func(cfg *config) {
		cfg.templateFS = files
	}
}

// WithTemplatesDir loads templates from a directory on disk.
func WithTemplatesDir(path string) Option {
	return func(cfg *config) {
		if path == "" {
			return
		}
		cfg.templateFS = os.DirFS(path)
	}
}

// WithTemplateRenderer injects a custom template renderer implementation.
func WithTemplateRenderer(renderer rendertemplate.TemplateRenderer) Option {
	return func(cfg *config) {
		if renderer != nil {
			cfg.templateRenderer = renderer
		}
	}
}

// WithSubmitLabel changes the submit button text.
func WithSubmitLabel(label string) Option {
	return func(cfg *config) {
		if strings.TrimSpace(label) != "" {
			cfg.submitLabel = label
		}
	}
}

// Renderer renders forms as HTML.
type Renderer struct {
	templates   rendertemplate.TemplateRenderer
	submitLabel string
}

var _ render.Renderer = (*Renderer)(nil)

// New constructs the renderer applying any provided options.
func New(options ...Option) (*Renderer, error) {
	cfg := config{templateFS: TemplatesFS(), submitLabel: "Submit"}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	if cfg.templateFS == nil {
		cfg.templateFS = TemplatesFS()
	}

	renderer := cfg.templateRenderer
	if renderer == nil {
		engine, err := gotemplate.New(
			gotemplate.WithFS(cfg.templateFS),
			gotemplate.WithExtension(".tpl"),
		)
		if err != nil {
			return nil, fmt.Errorf("html renderer: configure template renderer: %w", err)
		}
		renderer = engine
	}

	return &Renderer{templates: renderer, submitLabel: cfg.submitLabel}, nil
}

func (r *Renderer) Name() string {
	return Name
}

func (r *Renderer) ContentType() string {
	return "text/html; charset=utf-8"
}

// Render emits the form markup. Submitted values win over field defaults.
func (r *Renderer) Render(ctx context.Context, f form.Form, opts render.RenderOptions) ([]byte, error) {
	if ctx == nil {
		return nil, errors.New("html renderer: context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.templates == nil {
		return nil, errors.New("html renderer: template renderer is nil")
	}

	method := strings.ToLower(strings.TrimSpace(opts.Method))
	if method == "" {
		method = "post"
	}

	notes := make([]map[string]any, 0, len(opts.Notes))
	for _, note := range render.SanitizeNotes(opts.Notes) {
		notes = append(notes, map[string]any{"type": note.Type, "message": note.Message})
	}

	hidden := make([]map[string]any, 0, len(opts.Hidden))
	for _, h := range render.SortedHiddenFields(opts.Hidden) {
		hidden = append(hidden, map[string]any{"name": h.Name, "value": h.Value})
	}

	fields := make([]map[string]any, 0, len(f.Fields))
	for _, field := range f.OrderedFields() {
		fields = append(fields, fieldView(field, opts))
	}

	name := formTemplate
	if opts.Theme != nil {
		if partial := strings.TrimSpace(opts.Theme.Partials[FormPartial]); partial != "" {
			name = partial
		}
	}

	result, err := r.templates.RenderTemplate(name, map[string]any{
		"form": map[string]any{
			"id":   f.ID,
			"name": f.Name,
		},
		"action": opts.Action,
		"method": method,
		"notes":  notes,
		"hidden": hidden,
		"fields": fields,
		"submit": r.submitLabel,
		"theme":  themeView(opts.Theme),
	})
	if err != nil {
		return nil, fmt.Errorf("html renderer: render template: %w", err)
	}
	return []byte(result), nil
}

func themeView(cfg *theme.RendererConfig) map[string]any {
	if cfg == nil {
		return map[string]any{}
	}
	view := map[string]any{
		"name":    cfg.Theme,
		"variant": cfg.Variant,
		"css":     cssVars(cfg.CSSVars),
	}
	if cfg.AssetURL != nil {
		view["stylesheet"] = cfg.AssetURL(StylesheetAsset)
	}
	return view
}

func cssVars(vars map[string]string) string {
	if len(vars) == 0 {
		return ""
	}
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(":root {")
	for _, key := range keys {
		b.WriteString(" ")
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(vars[key])
		b.WriteString(";")
	}
	b.WriteString(" }")
	return b.String()
}

func fieldView(field form.Field, opts render.RenderOptions) map[string]any {
	value := field.Config.Default
	if submitted, ok := opts.Values[field.ID]; ok {
		value = submitted
	}
	current := stringValue(value)

	options := make([]map[string]any, 0, len(field.Config.Options))
	for _, opt := range field.Config.Options {
		options = append(options, map[string]any{
			"value":    opt.Value,
			"label":    opt.Label,
			"selected": opt.Value == current,
		})
	}

	return map[string]any{
		"id":          field.ID,
		"slug":        field.Slug,
		"label":       field.Label,
		"kind":        inputKind(field.Type),
		"input_type":  inputType(field.Type),
		"required":    field.Required,
		"placeholder": field.Config.Placeholder,
		"value":       current,
		"checked":     current != "" && current != "0" && current != "false",
		"options":     options,
		"errors":      opts.Errors[field.ID],
	}
}

func inputKind(t form.FieldType) string {
	switch t {
	case form.FieldTypeTextArea:
		return "textarea"
	case form.FieldTypeSelect:
		return "select"
	case form.FieldTypeCheckbox:
		return "checkbox"
	case form.FieldTypeHidden:
		return "hidden"
	default:
		return "input"
	}
}

func inputType(t form.FieldType) string {
	switch t {
	case form.FieldTypeURL:
		return "url"
	case form.FieldTypeEmail:
		return "email"
	case form.FieldTypeNumber:
		return "number"
	default:
		return "text"
	}
}

func stringValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case []string:
		return strings.Join(value, ",")
	default:
		return fmt.Sprint(value)
	}
}
