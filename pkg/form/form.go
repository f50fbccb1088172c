package form

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// FieldType is the host field kind. Renderers fall back to text inputs for
// unknown values.
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeURL      FieldType = "url"
	FieldTypeEmail    FieldType = "email"
	FieldTypeNumber   FieldType = "number"
	FieldTypeHidden   FieldType = "hidden"
	FieldTypeTextArea FieldType = "paragraph"
	FieldTypeSelect   FieldType = "dropdown"
	FieldTypeCheckbox FieldType = "checkbox"
)

// Option is a single choice offered by select-style fields.
type Option struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// FieldConfig carries the per-field settings processors are allowed to touch.
// Default is what pre-render filters overwrite when pre-populating a form.
type FieldConfig struct {
	Default     any      `json:"default,omitempty" yaml:"default,omitempty"`
	Placeholder string   `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Options     []Option `json:"options,omitempty" yaml:"options,omitempty"`
}

// Field is a single input of a form.
type Field struct {
	ID       string      `json:"id" yaml:"id"`
	Slug     string      `json:"slug" yaml:"slug"`
	Label    string      `json:"label,omitempty" yaml:"label,omitempty"`
	Type     FieldType   `json:"type" yaml:"type"`
	Required bool        `json:"required,omitempty" yaml:"required,omitempty"`
	Config   FieldConfig `json:"config" yaml:"config"`
}

// Processor is a processor instance attached to a form. Config maps processor
// settings (usually CRM field names) to literal values, field references, or
// magic tags.
type Processor struct {
	ID       string            `json:"id" yaml:"id"`
	Type     string            `json:"type" yaml:"type"`
	Runtimes map[string]bool   `json:"runtimes,omitempty" yaml:"runtimes,omitempty"`
	Config   map[string]string `json:"config,omitempty" yaml:"config,omitempty"`
}

// HasRuntimes reports whether the processor is enabled for at least one
// runtime. Pre-render filters only act on processors that run.
func (p Processor) HasRuntimes() bool {
	for _, enabled := range p.Runtimes {
		if enabled {
			return true
		}
	}
	return false
}

// Form is the host form configuration.
type Form struct {
	ID         string               `json:"id" yaml:"id"`
	Name       string               `json:"name,omitempty" yaml:"name,omitempty"`
	Fields     map[string]Field     `json:"fields" yaml:"fields"`
	Order      []string             `json:"order,omitempty" yaml:"order,omitempty"`
	Processors map[string]Processor `json:"processors,omitempty" yaml:"processors,omitempty"`
}

// Clone returns a deep copy of the form.
func (f Form) Clone() Form {
	out := Form{
		ID:   f.ID,
		Name: f.Name,
	}
	if f.Fields != nil {
		out.Fields = make(map[string]Field, len(f.Fields))
		for id, field := range f.Fields {
			out.Fields[id] = field.clone()
		}
	}
	if f.Order != nil {
		out.Order = append([]string(nil), f.Order...)
	}
	if f.Processors != nil {
		out.Processors = make(map[string]Processor, len(f.Processors))
		for id, processor := range f.Processors {
			out.Processors[id] = processor.clone()
		}
	}
	return out
}

func (f Field) clone() Field {
	out := f
	if f.Config.Options != nil {
		out.Config.Options = append([]Option(nil), f.Config.Options...)
	}
	return out
}

func (p Processor) clone() Processor {
	out := p
	if p.Runtimes != nil {
		out.Runtimes = make(map[string]bool, len(p.Runtimes))
		for key, value := range p.Runtimes {
			out.Runtimes[key] = value
		}
	}
	if p.Config != nil {
		out.Config = make(map[string]string, len(p.Config))
		for key, value := range p.Config {
			out.Config[key] = value
		}
	}
	return out
}

// FieldBySlug resolves a field reference. The reference may be a field ID, a
// slug, or a slug wrapped in %...% magic delimiters.
func (f Form) FieldBySlug(ref string) (Field, bool) {
	key := strings.TrimSpace(strings.ReplaceAll(ref, "%", ""))
	if key == "" {
		return Field{}, false
	}
	if field, ok := f.Fields[key]; ok {
		return field, true
	}
	for _, id := range f.sortedFieldIDs() {
		field := f.Fields[id]
		if field.Slug == key {
			return field, true
		}
	}
	return Field{}, false
}

// SetDefault assigns the default value of a field. It reports false when the
// field does not exist.
func (f *Form) SetDefault(fieldID string, value any) bool {
	if f == nil || f.Fields == nil {
		return false
	}
	field, ok := f.Fields[fieldID]
	if !ok {
		return false
	}
	field.Config.Default = value
	f.Fields[fieldID] = field
	return true
}

// OrderedFields returns the fields listed in Order first, followed by any
// remaining fields sorted by ID.
func (f Form) OrderedFields() []Field {
	if len(f.Fields) == 0 {
		return nil
	}
	out := make([]Field, 0, len(f.Fields))
	seen := make(map[string]struct{}, len(f.Fields))
	for _, id := range f.Order {
		field, ok := f.Fields[id]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, field)
	}
	for _, id := range f.sortedFieldIDs() {
		if _, ok := seen[id]; ok {
			continue
		}
		out = append(out, f.Fields[id])
	}
	return out
}

// ProcessorIDs returns processor IDs in a stable order.
func (f Form) ProcessorIDs() []string {
	ids := make([]string, 0, len(f.Processors))
	for id := range f.Processors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (f Form) sortedFieldIDs() []string {
	ids := make([]string, 0, len(f.Fields))
	for id := range f.Fields {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate checks structural consistency of a loaded form definition.
func (f Form) Validate() error {
	var errs []error
	if strings.TrimSpace(f.ID) == "" {
		errs = append(errs, errors.New("form: id is required"))
	}
	slugs := make(map[string]string, len(f.Fields))
	for key, field := range f.Fields {
		if field.ID != key {
			errs = append(errs, fmt.Errorf("form %s: field key %q does not match id %q", f.ID, key, field.ID))
		}
		slug := strings.TrimSpace(field.Slug)
		if slug == "" {
			continue
		}
		if other, exists := slugs[slug]; exists {
			errs = append(errs, fmt.Errorf("form %s: slug %q shared by %s and %s", f.ID, slug, other, key))
			continue
		}
		slugs[slug] = key
	}
	for key, processor := range f.Processors {
		if processor.ID != key {
			errs = append(errs, fmt.Errorf("form %s: processor key %q does not match id %q", f.ID, key, processor.ID))
		}
		if strings.TrimSpace(processor.Type) == "" {
			errs = append(errs, fmt.Errorf("form %s: processor %s has no type", f.ID, key))
		}
	}
	return errors.Join(errs...)
}

// Normalize fills field and processor IDs from their map keys when a
// definition omits them, and trims slugs.
func (f *Form) Normalize() {
	if f == nil {
		return
	}
	f.ID = strings.TrimSpace(f.ID)
	for key, field := range f.Fields {
		if field.ID == "" {
			field.ID = key
		}
		field.Slug = strings.TrimSpace(field.Slug)
		f.Fields[key] = field
	}
	for key, processor := range f.Processors {
		if processor.ID == "" {
			processor.ID = key
		}
		processor.Type = strings.TrimSpace(processor.Type)
		f.Processors[key] = processor
	}
}
