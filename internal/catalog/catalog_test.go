package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCatalog(t *testing.T, doc string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "blocks.json")
	if err := os.WriteFile(p, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

const sample = `[
  {"block":"LODESTONE","alias":"home","radius":15},
  {"block":"EMERALD_BLOCK","alias":"outpost","radius":31,"allowed_worlds":["overworld"]},
  {"block":"OBSIDIAN","radius":7}
]`

func TestLoad(t *testing.T) {
	c, err := Load(writeCatalog(t, sample))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.Keys) != 3 {
		t.Fatalf("expected 3 block types, got %d", len(c.Keys))
	}
	if !c.IsWardBlock("LODESTONE") {
		t.Fatalf("LODESTONE should be a ward block")
	}
	if c.IsWardBlock("DIRT") {
		t.Fatalf("DIRT should not be a ward block")
	}
	// Missing alias falls back to the key.
	if got := c.Get("OBSIDIAN").Alias; got != "OBSIDIAN" {
		t.Fatalf("default alias: %q", got)
	}
	if c.Digest == "" {
		t.Fatalf("digest not computed")
	}
}

func TestFromAliasCaseInsensitive(t *testing.T) {
	c, err := Load(writeCatalog(t, sample))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b := c.FromAlias("HOME"); b == nil || b.Key != "LODESTONE" {
		t.Fatalf("alias match failed: %#v", b)
	}
	if b := c.FromAlias("emerald_block"); b == nil || b.Key != "EMERALD_BLOCK" {
		t.Fatalf("raw key match failed: %#v", b)
	}
	if c.FromAlias("castle") != nil {
		t.Fatalf("unknown alias should return nil")
	}
}

func TestLoadRejects(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"empty key", `[{"block":"","radius":5}]`},
		{"duplicate key", `[{"block":"LODESTONE","radius":5},{"block":"LODESTONE","radius":9}]`},
		{"negative radius", `[{"block":"LODESTONE","radius":-1}]`},
		{"not json", `{`},
	}
	for _, tc := range cases {
		if _, err := Load(writeCatalog(t, tc.doc)); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestAllowedIn(t *testing.T) {
	c, err := Load(writeCatalog(t, sample))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	b := c.Get("EMERALD_BLOCK")
	if !b.AllowedIn("overworld") {
		t.Fatalf("expected allowed in overworld")
	}
	if b.AllowedIn("nether") {
		t.Fatalf("expected denied outside allowed_worlds")
	}
	if !c.Get("LODESTONE").AllowedIn("nether") {
		t.Fatalf("empty allowed_worlds should mean everywhere")
	}
}

func TestLoadValidated(t *testing.T) {
	schema := filepath.Join("..", "..", "schemas", "blocks.schema.json")

	if _, err := LoadValidated(writeCatalog(t, sample), schema); err != nil {
		t.Fatalf("valid document rejected: %v", err)
	}

	// radius wrong type.
	bad := `[{"block":"LODESTONE","radius":"big"}]`
	if _, err := LoadValidated(writeCatalog(t, bad), schema); err == nil {
		t.Fatalf("expected schema violation")
	}

	// unknown field rejected by additionalProperties.
	bad = `[{"block":"LODESTONE","radius":5,"colour":"red"}]`
	if _, err := LoadValidated(writeCatalog(t, bad), schema); err == nil {
		t.Fatalf("expected schema violation for unknown field")
	}
}
