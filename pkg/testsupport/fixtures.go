package testsupport

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/goliatone/go-formcrm/internal/form/loader"
	"github.com/goliatone/go-formcrm/pkg/form"
)

// Field and processor IDs used by WebsiteForm.
const (
	WebsiteFormID      = "CF_website"
	WebsiteFieldID     = "fld_website"
	WebsiteSlug        = "website"
	NameFieldID        = "fld_name"
	WebsiteProcessorID = "fp_website"
)

// WebsiteForm returns a form with a name field, a URL field, and a website
// processor bound to contact link 1 and website type 2.
func WebsiteForm(processorType string) form.Form {
	return form.Form{
		ID:    WebsiteFormID,
		Name:  "Your website",
		Order: []string{NameFieldID, WebsiteFieldID},
		Fields: map[string]form.Field{
			NameFieldID: {
				ID:    NameFieldID,
				Slug:  "first_name",
				Label: "First name",
				Type:  form.FieldTypeText,
			},
			WebsiteFieldID: {
				ID:       WebsiteFieldID,
				Slug:     WebsiteSlug,
				Label:    "Website",
				Type:     form.FieldTypeURL,
				Required: true,
			},
		},
		Processors: map[string]form.Processor{
			WebsiteProcessorID: {
				ID:       WebsiteProcessorID,
				Type:     processorType,
				Runtimes: map[string]bool{"insert": true},
				Config: map[string]string{
					"contact_link":    "1",
					"website_type_id": "2",
					"url":             "%" + WebsiteSlug + "%",
				},
			},
		},
	}
}

// MustLoadForm decodes a YAML or JSON form definition fixture.
func MustLoadForm(t *testing.T, path string) form.Form {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read form fixture: %v", err)
	}
	f, err := loader.Decode(data)
	if err != nil {
		t.Fatalf("decode form fixture: %v", err)
	}
	return f
}

// CaptureTemplateOutput executes a render function that writes to an io.Writer,
// returning both the string result and the writer contents.
func CaptureTemplateOutput(t *testing.T, render func(io.Writer) (string, error)) (string, string) {
	t.Helper()

	var buf bytes.Buffer
	out, err := render(&buf)
	if err != nil {
		t.Fatalf("render template: %v", err)
	}

	return out, buf.String()
}
