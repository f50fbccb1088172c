package render_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formcrm/pkg/render"
	"github.com/goliatone/go-formcrm/pkg/testsupport"
)

func TestRequiredErrors(t *testing.T) {
	f := testsupport.WebsiteForm("x")

	got := render.RequiredErrors(f, map[string]any{testsupport.WebsiteFieldID: "  "})
	want := map[string][]string{testsupport.WebsiteFieldID: {"Website is required"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("required mismatch (-want +got):\n%s", diff)
	}

	if got := render.RequiredErrors(f, map[string]any{testsupport.WebsiteFieldID: "https://example.org"}); got != nil {
		t.Fatalf("expected no errors, got %v", got)
	}
}
