package tui

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formcrm/pkg/form"
	"github.com/goliatone/go-formcrm/pkg/processor"
	"github.com/goliatone/go-formcrm/pkg/render"
)

type stubDriver struct {
	inputs       []string
	selectIdx    []int
	confirm      []bool
	textAreas    []string
	infoMessages []string
	inputConfigs []InputConfig
	selectCfgs   []SelectConfig
	inputPos     int
	selectPos    int
	confirmPos   int
	textPos      int
}

func (s *stubDriver) Input(_ context.Context, cfg InputConfig) (string, error) {
	s.inputConfigs = append(s.inputConfigs, cfg)
	if s.inputPos >= len(s.inputs) {
		return "", errors.New("no input scripted")
	}
	val := s.inputs[s.inputPos]
	s.inputPos++
	return val, nil
}

func (s *stubDriver) Confirm(_ context.Context, _ ConfirmConfig) (bool, error) {
	if s.confirmPos >= len(s.confirm) {
		return false, errors.New("no confirm scripted")
	}
	val := s.confirm[s.confirmPos]
	s.confirmPos++
	return val, nil
}

func (s *stubDriver) Select(_ context.Context, cfg SelectConfig) (int, error) {
	s.selectCfgs = append(s.selectCfgs, cfg)
	if s.selectPos >= len(s.selectIdx) {
		return -1, errors.New("no select scripted")
	}
	val := s.selectIdx[s.selectPos]
	s.selectPos++
	return val, nil
}

func (s *stubDriver) TextArea(_ context.Context, _ TextAreaConfig) (string, error) {
	if s.textPos >= len(s.textAreas) {
		return "", errors.New("no text area scripted")
	}
	val := s.textAreas[s.textPos]
	s.textPos++
	return val, nil
}

func (s *stubDriver) Info(_ context.Context, msg string) error {
	s.infoMessages = append(s.infoMessages, msg)
	return nil
}

func sampleForm() form.Form {
	return form.Form{
		ID:    "CF1",
		Order: []string{"fld_url", "fld_kind", "fld_note", "fld_optin", "fld_token"},
		Fields: map[string]form.Field{
			"fld_url": {
				ID: "fld_url", Slug: "website", Label: "Website", Type: form.FieldTypeURL, Required: true,
				Config: form.FieldConfig{Default: "https://old.example.org"},
			},
			"fld_kind": {
				ID: "fld_kind", Slug: "kind", Label: "Kind", Type: form.FieldTypeSelect,
				Config: form.FieldConfig{
					Default: "2",
					Options: []form.Option{{Value: "1", Label: "Home"}, {Value: "2", Label: "Work"}},
				},
			},
			"fld_note":  {ID: "fld_note", Slug: "note", Label: "Note", Type: form.FieldTypeTextArea},
			"fld_optin": {ID: "fld_optin", Slug: "optin", Label: "Opt in", Type: form.FieldTypeCheckbox},
			"fld_token": {ID: "fld_token", Slug: "token", Type: form.FieldTypeHidden, Config: form.FieldConfig{Default: "abc"}},
		},
	}
}

func TestRendererCollectsAnswersKeyedByFieldID(t *testing.T) {
	driver := &stubDriver{
		inputs:    []string{"https://new.example.org"},
		selectIdx: []int{0},
		textAreas: []string{"hello"},
		confirm:   []bool{true},
	}
	renderer := New(WithPromptDriver(driver))

	out, err := renderer.Render(context.Background(), sampleForm(), render.RenderOptions{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	want := map[string]any{
		"fld_url":   "https://new.example.org",
		"fld_kind":  "1",
		"fld_note":  "hello",
		"fld_optin": "1",
		"fld_token": "abc",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}

	if len(driver.inputConfigs) != 1 || driver.inputConfigs[0].Default != "https://old.example.org" {
		t.Fatalf("expected url prompt seeded with default, got %+v", driver.inputConfigs)
	}
	if len(driver.selectCfgs) != 1 || driver.selectCfgs[0].DefaultIndex != 1 {
		t.Fatalf("expected select default index 1, got %+v", driver.selectCfgs)
	}
}

func TestRendererValuesOverrideDefaults(t *testing.T) {
	driver := &stubDriver{
		inputs:    []string{"x"},
		selectIdx: []int{1},
		textAreas: []string{""},
		confirm:   []bool{false},
	}
	renderer := New(WithPromptDriver(driver))

	_, err := renderer.Collect(context.Background(), sampleForm(), render.RenderOptions{
		Values: map[string]any{"fld_url": "https://typed.example.org"},
	})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if got := driver.inputConfigs[0].Default; got != "https://typed.example.org" {
		t.Fatalf("expected submitted value as default, got %q", got)
	}
}

func TestRendererPrintsNotesFirst(t *testing.T) {
	driver := &stubDriver{
		inputs:    []string{"https://a.example.org"},
		selectIdx: []int{0},
		textAreas: []string{""},
		confirm:   []bool{false},
	}
	renderer := New(WithPromptDriver(driver))

	_, err := renderer.Collect(context.Background(), sampleForm(), render.RenderOptions{
		Notes: []processor.Note{{Type: processor.NoteError, Message: "Bad URL<br><br><pre>detail</pre>"}},
	})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(driver.infoMessages) == 0 {
		t.Fatalf("expected note to be printed")
	}
	first := driver.infoMessages[0]
	if !strings.HasPrefix(first, "[error] Bad URL") || strings.Contains(first, "<pre>") {
		t.Fatalf("unexpected note output %q", first)
	}
}

func TestRendererFormEncodedOutput(t *testing.T) {
	driver := &stubDriver{
		inputs:    []string{"https://a.example.org"},
		selectIdx: []int{1},
		textAreas: []string{""},
		confirm:   []bool{false},
	}
	renderer := New(WithPromptDriver(driver), WithOutputFormat(OutputFormatFormURLEncoded))

	out, err := renderer.Render(context.Background(), sampleForm(), render.RenderOptions{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if renderer.ContentType() != "application/x-www-form-urlencoded" {
		t.Fatalf("unexpected content type %q", renderer.ContentType())
	}
	want := "fld_kind=2&fld_note=&fld_optin=&fld_token=abc&fld_url=https%3A%2F%2Fa.example.org"
	if string(out) != want {
		t.Fatalf("expected %q, got %q", want, string(out))
	}
}

func TestRendererPropagatesDriverErrors(t *testing.T) {
	renderer := New(WithPromptDriver(&stubDriver{}))
	_, err := renderer.Render(context.Background(), sampleForm(), render.RenderOptions{})
	if err == nil || !strings.Contains(err.Error(), "no input scripted") {
		t.Fatalf("expected driver error, got %v", err)
	}
}

func TestRendererRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	renderer := New(WithPromptDriver(&stubDriver{}))
	if _, err := renderer.Render(ctx, sampleForm(), render.RenderOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestURLValidator(t *testing.T) {
	validate := validator(form.Field{Type: form.FieldTypeURL, Required: true})
	cases := map[string]bool{
		"":                         false,
		"   ":                      false,
		"example.org":              false,
		"https://example.org":      true,
		"http://example.org/about": true,
	}
	for input, ok := range cases {
		err := validate(input)
		if ok && err != nil {
			t.Errorf("%q: unexpected error %v", input, err)
		}
		if !ok && err == nil {
			t.Errorf("%q: expected error", input)
		}
	}

	optional := validator(form.Field{Type: form.FieldTypeText})
	if err := optional(""); err != nil {
		t.Fatalf("optional field rejected empty answer: %v", err)
	}
}
