package integration_tests

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rubiojr/serp/cmd"
	"github.com/urfave/cli/v3"
)

// fakeCatalog emulates the read endpoints of the catalog API and records the
// requests it receives.
type fakeCatalog struct {
	mu       sync.Mutex
	requests []*url.URL
	server   *httptest.Server
}

func newFakeCatalog(t *testing.T) *fakeCatalog {
	t.Helper()
	fc := &fakeCatalog{}
	fc.server = httptest.NewServer(http.HandlerFunc(fc.handle))
	t.Cleanup(fc.server.Close)
	return fc
}

func (fc *fakeCatalog) URL() string {
	return fc.server.URL
}

func (fc *fakeCatalog) handle(w http.ResponseWriter, r *http.Request) {
	fc.mu.Lock()
	u := *r.URL
	fc.requests = append(fc.requests, &u)
	fc.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.EscapedPath(), "/"), "/")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case len(parts) == 1:
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"id": "https://openalex.org/W1", "display_name": "Graphene at scale", "publication_year": 2021, "cited_by_count": 120},
				{"id": "https://openalex.org/W2", "display_name": "Graphene in practice", "publication_year": 2019, "cited_by_count": 80},
			},
			"meta": map[string]any{"count": 200, "db_response_time_ms": 9, "page": 1, "per_page": 25},
		})
	case len(parts) == 3 && parts[1] == "filters":
		json.NewEncoder(w).Encode(map[string]any{
			"filters": []map[string]any{
				{"key": "type", "values": []map[string]any{
					{"value": "article", "display_name": "article", "count": 150},
					{"value": "book", "display_name": "book", "count": 50},
				}},
				{"key": "publication_year", "values": []map[string]any{
					{"value": 2021, "display_name": "2021", "count": 110},
					{"value": 2019, "display_name": "2019", "count": 90},
				}},
			},
		})
	case len(parts) == 2:
		json.NewEncoder(w).Encode(map[string]any{"id": "https://openalex.org/" + parts[1], "display_name": "Zoomed " + parts[1]})
	default:
		http.NotFound(w, r)
	}
}

// searches returns the query of every results request, in order.
func (fc *fakeCatalog) searches() []url.Values {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	var out []url.Values
	for _, u := range fc.requests {
		if strings.Count(strings.Trim(u.Path, "/"), "/") == 0 {
			out = append(out, u.Query())
		}
	}
	return out
}

// filterRequests returns the paths of the facet count requests.
func (fc *fakeCatalog) filterRequests() []string {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	var out []string
	for _, u := range fc.requests {
		if strings.Contains(u.Path, "/filters/") {
			out = append(out, u.Path)
		}
	}
	return out
}

// CreateTestConfig writes a config file pointing at apiURL and keeping its
// storage in tempDir.
func CreateTestConfig(t *testing.T, tempDir, apiURL string) string {
	t.Helper()
	configPath := filepath.Join(tempDir, "config.toml")
	content := fmt.Sprintf(`
api_url = '%s'
storage_dir = '%s'
timeout = "5s"
retry_max = 0
default_entity_type = "works"
`, apiURL, tempDir)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return configPath
}

// runCLI runs the command line with the given arguments the way main does.
func runCLI(ctx context.Context, configPath string, args ...string) error {
	app := &cli.Command{
		Name: "serp",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug"},
			&cli.StringFlag{Name: "config", Value: configPath},
		},
		Commands: []*cli.Command{
			cmd.SearchCommand(),
			cmd.HistoryCommand(),
			cmd.MigrateCommand(),
			cmd.FiltersCommand(),
		},
	}
	return app.Run(ctx, append([]string{"serp"}, args...))
}
