package msgcat

import (
	"os"
	"strings"
	"testing"
)

func TestEmbeddedCatalogLoads(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, key := range []string{
		"errors.not_registered",
		"register.prompt_method",
		"register.bad_method",
		"abyss.current_caption",
		"abyss.previous_caption",
		"rewards.already_claimed",
	} {
		s, err := c.Render(key, nil)
		if err != nil {
			t.Fatalf("Render(%s): %v", key, err)
		}
		if strings.TrimSpace(s) == "" {
			t.Fatalf("Render(%s): empty message", key)
		}
	}
}

func TestRenderInterpolates(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s, err := c.Render("notes.text", map[string]any{"Resin": 40, "MaxResin": 160, "Recovery": "6h"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(s, "40/160") {
		t.Fatalf("rendered notes missing resin ratio: %q", s)
	}
}

func TestMustRenderFallsBackToKey(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.MustRender("no.such.key", nil); got != "no.such.key" {
		t.Fatalf("MustRender fallback = %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir+"/override.yaml", "errors:\n  not_registered: \"custom\"\n")
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.MustRender("errors.not_registered", nil); got != "custom" {
		t.Fatalf("override not applied: %q", got)
	}
	// untouched keys survive
	if got := c.MustRender("rewards.already_claimed", nil); got == "rewards.already_claimed" {
		t.Fatalf("embedded key lost after override")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
