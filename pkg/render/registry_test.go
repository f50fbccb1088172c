package render_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formcrm/pkg/form"
	"github.com/goliatone/go-formcrm/pkg/render"
)

type namedRenderer string

func (n namedRenderer) Name() string        { return string(n) }
func (n namedRenderer) ContentType() string { return "text/plain" }
func (n namedRenderer) Render(context.Context, form.Form, render.RenderOptions) ([]byte, error) {
	return []byte(n), nil
}

func TestRegistry(t *testing.T) {
	registry := render.NewRegistry("html")

	if _, err := registry.Resolve(""); err == nil {
		t.Fatalf("expected error on empty registry")
	}

	for _, name := range []string{"tui", "html"} {
		if err := registry.Register(namedRenderer(name)); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	if err := registry.Register(namedRenderer("html")); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	if err := registry.Register(nil); err == nil {
		t.Fatalf("expected nil renderer to fail")
	}

	if diff := cmp.Diff([]string{"html", "tui"}, registry.List()); diff != "" {
		t.Fatalf("list mismatch (-want +got):\n%s", diff)
	}

	got, err := registry.Resolve("")
	if err != nil || got.Name() != "html" {
		t.Fatalf("expected fallback html, got %v, %v", got, err)
	}
	got, err = registry.Resolve("tui")
	if err != nil || got.Name() != "tui" {
		t.Fatalf("expected tui, got %v, %v", got, err)
	}
	if _, err := registry.Get("pdf"); err == nil {
		t.Fatalf("expected missing renderer error")
	}
}

func TestRegistry_FallsBackToFirstName(t *testing.T) {
	registry := render.NewRegistry("missing")
	_ = registry.Register(namedRenderer("b"))
	_ = registry.Register(namedRenderer("a"))

	got, err := registry.Resolve("")
	if err != nil || got.Name() != "a" {
		t.Fatalf("expected first sorted renderer, got %v, %v", got, err)
	}
}
