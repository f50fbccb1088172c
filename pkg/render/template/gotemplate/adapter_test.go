package gotemplate_test

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/goliatone/go-formcrm/pkg/render/template/gotemplate"
	"github.com/goliatone/go-formcrm/pkg/testsupport"
)

func templatesFS() fstest.MapFS {
	return fstest.MapFS{
		"hello.tpl":      {Data: []byte("Hello {{ name|trim }}!")},
		"use-global.tpl": {Data: []byte("env={{ settings.env }}")},
		"shout.tpl":      {Data: []byte("{{ word|shout }}")},
		"escape.tpl":     {Data: []byte("{{ markup }}|{{ markup|safe }}")},
	}
}

func TestEngine_RenderTemplate(t *testing.T) {
	engine, err := gotemplate.New(gotemplate.WithFS(templatesFS()))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	result, written := testsupport.CaptureTemplateOutput(t, func(w io.Writer) (string, error) {
		return engine.RenderTemplate("hello", map[string]any{"name": "  Ada "}, w)
	})
	if want := "Hello Ada!"; result != want || written != want {
		t.Fatalf("want %q, got result %q written %q", want, result, written)
	}

	// explicit extension resolves to the same cached template
	again, err := engine.RenderTemplate("hello.tpl", map[string]any{"name": "Grace"})
	if err != nil || again != "Hello Grace!" {
		t.Fatalf("unexpected second render %q, %v", again, err)
	}
}

func TestEngine_GlobalData(t *testing.T) {
	engine, err := gotemplate.New(
		gotemplate.WithFS(templatesFS()),
		gotemplate.WithGlobalData(map[string]any{"settings": map[string]any{"env": "staging"}}),
	)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	got, err := engine.RenderTemplate("use-global", nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "env=staging" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestEngine_AutoescapesUnlessSafe(t *testing.T) {
	engine, err := gotemplate.New(gotemplate.WithFS(templatesFS()))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	got, err := engine.RenderTemplate("escape", map[string]any{"markup": "<b>x</b>"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if want := "&lt;b&gt;x&lt;/b&gt;|<b>x</b>"; got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}

func TestEngine_RegisterFilter(t *testing.T) {
	engine, err := gotemplate.New(gotemplate.WithFS(templatesFS()))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	if err := engine.RegisterFilter("shout", func(in any, _ any) (any, error) {
		s, ok := in.(string)
		if !ok {
			return nil, errors.New("not a string")
		}
		return strings.ToUpper(s) + "!", nil
	}); err != nil {
		t.Fatalf("register filter: %v", err)
	}
	if err := engine.RegisterFilter("shout", func(in any, _ any) (any, error) { return in, nil }); err == nil {
		t.Fatalf("expected duplicate filter to fail")
	}
	if err := engine.RegisterFilter("", nil); err == nil {
		t.Fatalf("expected empty filter to fail")
	}

	got, err := engine.RenderTemplate("shout", map[string]any{"word": "hey"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "HEY!" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestEngine_Errors(t *testing.T) {
	if _, err := gotemplate.New(); err == nil {
		t.Fatalf("expected error without template source")
	}

	engine, err := gotemplate.New(gotemplate.WithFS(templatesFS()))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if _, err := engine.RenderTemplate("missing", nil); err == nil {
		t.Fatalf("expected missing template error")
	}
}
