package msgcat

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEmbeddedStatusTexts(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cases := map[string]string{
		"status.turn.white":         "your turn (white)",
		"status.turn.black":         "ai's turn (black)",
		"status.outcome.human_wins": "you win!",
	}
	for key, want := range cases {
		got, err := c.Render(key, nil)
		if err != nil {
			t.Fatalf("Render(%s): %v", key, err)
		}
		if got != want {
			t.Fatalf("Render(%s) = %q, want %q", key, got, want)
		}
	}
}

func TestRenderTemplateData(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("hud.moves", map[string]any{"Count": 3})
	if err != nil || got != "move 3" {
		t.Fatalf("Render(hud.moves) = %q, %v", got, err)
	}
	if _, err := c.Render("hud.moves", map[string]any{}); err == nil {
		t.Fatalf("missing template data should fail")
	}
	if got := c.RenderOr("nope.missing", nil, "fallback"); got != "fallback" {
		t.Fatalf("RenderOr fallback = %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("status:\n  outcome:\n    human_wins: \"checkmate-ish!\"\n"), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New(override): %v", err)
	}
	if got := c.RenderOr("status.outcome.human_wins", nil, ""); got != "checkmate-ish!" {
		t.Fatalf("override not applied: %q", got)
	}
	if got := c.RenderOr("status.turn.white", nil, ""); got != "your turn (white)" {
		t.Fatalf("embedded default lost: %q", got)
	}
}

func TestDuplicateOverrideKeys(t *testing.T) {
	dir := t.TempDir()
	body := []byte("hud:\n  title: \"x\"\n")
	for _, name := range []string{"a.yaml", "b.yml"} {
		if err := os.WriteFile(filepath.Join(dir, name), body, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("duplicate keys across override files should fail")
	}
}

func TestBrokenOverrideTemplateFailsLoad(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("hud:\n  moves: \"move {{.Count\"\n"), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("unparsable template should fail New")
	}
}

func TestKeysAndHas(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !c.Has("site.banner") || c.Has("site.missing") {
		t.Fatalf("Has mismatch")
	}
	keys := c.Keys()
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			t.Fatalf("keys not sorted: %v", keys)
		}
	}
	var nilCatalog *Catalog
	if nilCatalog.Has("site.banner") || nilCatalog.RenderOr("site.banner", nil, "x") != "x" {
		t.Fatalf("nil catalog should fall back")
	}
}
