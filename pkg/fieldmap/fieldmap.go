// Package fieldmap moves values between processor configuration (CRM field
// name -> form field reference) and the two shapes it connects: submitted form
// values on the way into the CRM, and field defaults on the way back out.
package fieldmap

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-formcrm/pkg/civicrm"
	"github.com/goliatone/go-formcrm/pkg/form"
)

// Mapper resolves processor configuration against a form.
type Mapper struct {
	magic *form.Magic
}

// New returns a Mapper. A nil magic resolver uses the built-in tags.
func New(magic *form.Magic) *Mapper {
	if magic == nil {
		magic = form.NewMagic()
	}
	return &Mapper{magic: magic}
}

// ToProcessor collects CRM parameters from a submission. Every non-empty,
// non-ignored config entry is resolved: bracket magic values through the magic
// resolver, anything else as a field reference to the submitted value. Empty
// results are dropped, except the literal "0".
func (m *Mapper) ToProcessor(config map[string]string, f form.Form, s form.Submission, ignore []string) civicrm.Params {
	out := civicrm.Params{}
	for crmField, ref := range config {
		if strings.TrimSpace(ref) == "" || ignored(crmField, ignore) {
			continue
		}

		var value any
		if form.IsBracketMagic(ref) {
			value = m.magic.Resolve(ref, f, s)
		} else {
			field, ok := f.FieldBySlug(ref)
			if !ok {
				continue
			}
			value, ok = s.FieldValue(field.ID)
			if !ok {
				continue
			}
		}

		if isEmpty(value) {
			continue
		}
		out[crmField] = value
	}
	return out
}

// ToPrerender returns a clone of f with field defaults filled from entity.
// Config entries that are ignored, empty, missing from the entity, or point at
// unknown fields are skipped.
func (m *Mapper) ToPrerender(config map[string]string, f form.Form, ignore []string, entity civicrm.Result) form.Form {
	out := f.Clone()
	for crmField, ref := range config {
		if strings.TrimSpace(ref) == "" || ignored(crmField, ignore) {
			continue
		}
		value, ok := entity[crmField]
		if !ok {
			continue
		}
		field, ok := out.FieldBySlug(ref)
		if !ok {
			continue
		}
		out.SetDefault(field.ID, value)
	}
	return out
}

func ignored(key string, ignore []string) bool {
	for _, candidate := range ignore {
		if candidate == key {
			return true
		}
	}
	return false
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []string:
		return len(v) == 0
	case []any:
		return len(v) == 0
	case bool:
		return !v
	case int, int64, float64:
		return fmt.Sprint(v) == "0"
	default:
		return false
	}
}
