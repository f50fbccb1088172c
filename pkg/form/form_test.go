package form_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formcrm/pkg/form"
)

func sampleForm() form.Form {
	return form.Form{
		ID: "CF_sample",
		Fields: map[string]form.Field{
			"fld_b":   {ID: "fld_b", Slug: "beta", Type: form.FieldTypeText},
			"fld_a":   {ID: "fld_a", Slug: "alpha", Type: form.FieldTypeText},
			"fld_url": {ID: "fld_url", Slug: "website", Type: form.FieldTypeURL},
		},
		Order: []string{"fld_url", "missing", "fld_url"},
		Processors: map[string]form.Processor{
			"fp_2": {ID: "fp_2", Type: "civicrm_website", Runtimes: map[string]bool{"insert": true}},
			"fp_1": {ID: "fp_1", Type: "civicrm_website", Config: map[string]string{"url": "%website%"}},
		},
	}
}

func TestFieldBySlug(t *testing.T) {
	f := sampleForm()

	cases := map[string]string{
		"fld_a":     "fld_a",
		"website":   "fld_url",
		"%website%": "fld_url",
		" beta ":    "fld_b",
	}
	for ref, want := range cases {
		field, ok := f.FieldBySlug(ref)
		if !ok {
			t.Fatalf("expected %q to resolve", ref)
		}
		if field.ID != want {
			t.Fatalf("ref %q: expected %s, got %s", ref, want, field.ID)
		}
	}

	for _, ref := range []string{"", "%%", "unknown"} {
		if _, ok := f.FieldBySlug(ref); ok {
			t.Fatalf("expected %q not to resolve", ref)
		}
	}
}

func TestOrderedFields(t *testing.T) {
	var ids []string
	for _, field := range sampleForm().OrderedFields() {
		ids = append(ids, field.ID)
	}
	want := []string{"fld_url", "fld_a", "fld_b"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}

	if got := (form.Form{}).OrderedFields(); got != nil {
		t.Fatalf("expected nil for empty form, got %v", got)
	}
}

func TestProcessorIDsSorted(t *testing.T) {
	if diff := cmp.Diff([]string{"fp_1", "fp_2"}, sampleForm().ProcessorIDs()); diff != "" {
		t.Fatalf("processor ids mismatch (-want +got):\n%s", diff)
	}
}

func TestHasRuntimes(t *testing.T) {
	f := sampleForm()
	if !f.Processors["fp_2"].HasRuntimes() {
		t.Fatalf("expected fp_2 to run")
	}
	if f.Processors["fp_1"].HasRuntimes() {
		t.Fatalf("expected fp_1 without runtimes")
	}
	disabled := form.Processor{Runtimes: map[string]bool{"insert": false}}
	if disabled.HasRuntimes() {
		t.Fatalf("expected disabled runtimes to report false")
	}
}

func TestCloneIsDeep(t *testing.T) {
	original := sampleForm()
	clone := original.Clone()

	clone.SetDefault("fld_url", "https://changed.example.org")
	clone.Order[0] = "fld_a"
	clone.Processors["fp_1"].Config["url"] = "%other%"

	if original.Fields["fld_url"].Config.Default != nil {
		t.Fatalf("default leaked into original")
	}
	if original.Order[0] != "fld_url" {
		t.Fatalf("order leaked into original")
	}
	if original.Processors["fp_1"].Config["url"] != "%website%" {
		t.Fatalf("processor config leaked into original")
	}
}

func TestSetDefault(t *testing.T) {
	f := sampleForm()
	if !f.SetDefault("fld_url", "https://a.example.org") {
		t.Fatalf("expected default to be set")
	}
	if got := f.Fields["fld_url"].Config.Default; got != "https://a.example.org" {
		t.Fatalf("unexpected default %v", got)
	}
	if f.SetDefault("missing", "x") {
		t.Fatalf("expected unknown field to report false")
	}
	var nilForm *form.Form
	if nilForm.SetDefault("fld_url", "x") {
		t.Fatalf("expected nil form to report false")
	}
}

func TestNormalizeAndValidate(t *testing.T) {
	f := form.Form{
		ID: " CF_x ",
		Fields: map[string]form.Field{
			"fld_one": {Slug: " one "},
		},
		Processors: map[string]form.Processor{
			"fp_one": {Type: " civicrm_website "},
		},
	}
	f.Normalize()
	if err := f.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.ID != "CF_x" || f.Fields["fld_one"].ID != "fld_one" || f.Fields["fld_one"].Slug != "one" {
		t.Fatalf("unexpected normalised form %+v", f)
	}
	if f.Processors["fp_one"].ID != "fp_one" || f.Processors["fp_one"].Type != "civicrm_website" {
		t.Fatalf("unexpected normalised processor %+v", f.Processors["fp_one"])
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	f := form.Form{
		Fields: map[string]form.Field{
			"fld_a": {ID: "fld_a", Slug: "dup"},
			"fld_b": {ID: "other", Slug: "dup"},
		},
		Processors: map[string]form.Processor{
			"fp_1": {ID: "fp_1"},
		},
	}
	err := f.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"id is required", `does not match id "other"`, `slug "dup"`, "has no type"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestSubmissionFieldValue(t *testing.T) {
	var empty form.Submission
	if _, ok := empty.FieldValue("x"); ok {
		t.Fatalf("expected no value on empty submission")
	}
	s := form.Submission{Values: map[string]any{"fld_url": "https://a.example.org"}}
	if v, ok := s.FieldValue("fld_url"); !ok || v != "https://a.example.org" {
		t.Fatalf("unexpected value %v %v", v, ok)
	}
}
