package render

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-formcrm/pkg/form"
)

// RequiredErrors reports required fields whose submitted value is empty.
func RequiredErrors(f form.Form, values map[string]any) map[string][]string {
	out := make(map[string][]string)
	for _, field := range f.OrderedFields() {
		if !field.Required || field.Type == form.FieldTypeHidden {
			continue
		}
		if strings.TrimSpace(stringValue(values[field.ID])) != "" {
			continue
		}
		label := field.Label
		if label == "" {
			label = field.ID
		}
		out[field.ID] = []string{label + " is required"}
	}
	if len(out) == 0 {
		return nil
	}
	return out
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
