package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rubiojr/serp/pkg/api"
	"github.com/rubiojr/serp/pkg/facet"
)

const customFacets = `
[entity_prefixes]
W = "works"

[[facet]]
key = "type"
entity_type = "works"
display_name = "Kind"
type = "select"
`

func TestReloadFacets(t *testing.T) {
	srv := api.NewServer(nil, facet.Default())
	path := filepath.Join(t.TempDir(), "facets.toml")

	if err := os.WriteFile(path, []byte(customFacets), 0644); err != nil {
		t.Fatalf("failed to write facets: %v", err)
	}
	if err := reloadFacets(path, srv); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	cfg, ok := srv.Registry().Lookup("works", "type")
	if !ok || cfg.DisplayName != "Kind" {
		t.Fatalf("expected reloaded facet, got %+v", cfg)
	}

	if err := os.WriteFile(path, []byte("[[facet]]\nkey = 1\n"), 0644); err != nil {
		t.Fatalf("failed to write facets: %v", err)
	}
	if err := reloadFacets(path, srv); err == nil {
		t.Fatal("expected invalid facets to fail")
	}
	if srv.Registry().Len() != 1 {
		t.Errorf("expected previous facets to stay, got %d", srv.Registry().Len())
	}
}
