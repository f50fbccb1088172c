package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"

	"github.com/goliatone/go-formcrm/pkg/form"
	"github.com/goliatone/go-formcrm/pkg/render"
)

// Name is the registry name of this renderer.
const Name = "tui"

// Renderer "renders" a form by prompting for every field in a terminal,
// seeded with the field defaults (so pre-rendered CRM data shows up as the
// suggested answer). The output is the collected submission.
type Renderer struct {
	driver       PromptDriver
	outputFormat OutputFormat
	out          io.Writer
}

var _ render.Renderer = (*Renderer)(nil)

// New constructs a TUI renderer with defaults (survey driver, JSON output).
func New(options ...Option) *Renderer {
	r := &Renderer{
		outputFormat: OutputFormatJSON,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(r)
	}
	if r.driver == nil {
		r.driver = newSurveyDriver(r.out)
	}
	return r
}

func (r *Renderer) Name() string {
	return Name
}

func (r *Renderer) ContentType() string {
	if r.outputFormat == OutputFormatFormURLEncoded {
		return "application/x-www-form-urlencoded"
	}
	return "application/json"
}

// Render prompts for each visible field and serializes the answers.
func (r *Renderer) Render(ctx context.Context, f form.Form, opts render.RenderOptions) ([]byte, error) {
	values, err := r.Collect(ctx, f, opts)
	if err != nil {
		return nil, err
	}
	return r.serialize(values)
}

// Collect prompts for each field and returns the answers keyed by field ID.
// Hidden fields keep their value without prompting. Notes are printed first.
func (r *Renderer) Collect(ctx context.Context, f form.Form, opts render.RenderOptions) (map[string]any, error) {
	if ctx == nil {
		return nil, errors.New("tui: context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.driver == nil {
		return nil, errors.New("tui: prompt driver is nil")
	}

	for _, note := range render.SanitizeNotes(opts.Notes) {
		if err := r.driver.Info(ctx, fmt.Sprintf("[%s] %s", note.Type, plainText(note.Message))); err != nil {
			return nil, err
		}
	}

	values := make(map[string]any, len(f.Fields))
	for _, field := range f.OrderedFields() {
		current := defaultString(field, opts)
		for _, message := range opts.Errors[field.ID] {
			_ = r.driver.Info(ctx, fmt.Sprintf("%s: %s", displayLabel(field), message))
		}

		value, err := r.promptField(ctx, field, current)
		if err != nil {
			return nil, err
		}
		values[field.ID] = value
	}
	return values, nil
}

func (r *Renderer) promptField(ctx context.Context, field form.Field, current string) (any, error) {
	label := displayLabel(field)
	switch field.Type {
	case form.FieldTypeHidden:
		return current, nil
	case form.FieldTypeCheckbox:
		checked, err := r.driver.Confirm(ctx, ConfirmConfig{
			Message: label,
			Default: current != "" && current != "0" && current != "false",
		})
		if err != nil {
			return nil, err
		}
		if checked {
			return "1", nil
		}
		return "", nil
	case form.FieldTypeSelect:
		return r.promptSelect(ctx, field, label, current)
	case form.FieldTypeTextArea:
		for {
			answer, err := r.driver.TextArea(ctx, TextAreaConfig{Message: label, Default: current})
			if err != nil {
				return nil, err
			}
			if field.Required && strings.TrimSpace(answer) == "" {
				_ = r.driver.Info(ctx, fmt.Sprintf("%s is required", label))
				continue
			}
			return answer, nil
		}
	default:
		return r.driver.Input(ctx, InputConfig{
			Message:   label,
			Default:   current,
			Help:      field.Config.Placeholder,
			Validator: validator(field),
		})
	}
}

func (r *Renderer) promptSelect(ctx context.Context, field form.Field, label, current string) (any, error) {
	if len(field.Config.Options) == 0 {
		return current, nil
	}
	labels := make([]string, 0, len(field.Config.Options))
	defaultIdx := -1
	for i, opt := range field.Config.Options {
		text := opt.Label
		if text == "" {
			text = opt.Value
		}
		labels = append(labels, text)
		if opt.Value == current {
			defaultIdx = i
		}
	}
	idx, err := r.driver.Select(ctx, SelectConfig{
		Message:      label,
		Options:      labels,
		DefaultIndex: defaultIdx,
	})
	if err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(field.Config.Options) {
		return "", nil
	}
	return field.Config.Options[idx].Value, nil
}

func validator(field form.Field) func(string) error {
	return func(answer string) error {
		trimmed := strings.TrimSpace(answer)
		if trimmed == "" {
			if field.Required {
				return errors.New("value is required")
			}
			return nil
		}
		if field.Type == form.FieldTypeURL {
			u, err := url.Parse(trimmed)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return errors.New("enter a full URL, e.g. https://example.org")
			}
		}
		return nil
	}
}

func (r *Renderer) serialize(values map[string]any) ([]byte, error) {
	if r.outputFormat == OutputFormatFormURLEncoded {
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		encoded := url.Values{}
		for _, k := range keys {
			encoded.Set(k, fmt.Sprint(values[k]))
		}
		return []byte(encoded.Encode()), nil
	}
	out, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("tui: encode values: %w", err)
	}
	return out, nil
}

func defaultString(field form.Field, opts render.RenderOptions) string {
	value := field.Config.Default
	if submitted, ok := opts.Values[field.ID]; ok {
		value = submitted
	}
	if value == nil {
		return ""
	}
	return fmt.Sprint(value)
}

func displayLabel(field form.Field) string {
	if field.Label != "" {
		return field.Label
	}
	if field.Slug != "" {
		return field.Slug
	}
	return field.ID
}

func plainText(markup string) string {
	replacer := strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<pre>", "", "</pre>", "", "<code>", "", "</code>", "")
	return replacer.Replace(markup)
}
