package cmd

import (
	"fmt"
	"os"

	"github.com/rubiojr/serp/pkg/client"
	"github.com/rubiojr/serp/pkg/config"
	"github.com/rubiojr/serp/pkg/facet"
	"github.com/rubiojr/serp/pkg/history"
	"github.com/rubiojr/serp/pkg/log"
	"github.com/rubiojr/serp/pkg/version"
	"github.com/urfave/cli/v3"
)

// loadConfig reads the config file named by the global --config flag and
// configures logging from it. --debug overrides the config file.
func loadConfig(c *cli.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	log.Configure(cfg.Debug || c.Bool("debug"), cfg.DebugServices)
	return cfg, nil
}

func newClient(cfg *config.Config) *client.Client {
	return client.New(cfg.APIURL,
		client.WithMailto(cfg.Mailto),
		client.WithRetryMax(cfg.RetryMax),
		client.WithTimeout(cfg.Timeout.Duration),
		client.WithUserAgent(version.UserAgent()),
	)
}

// loadRegistry returns the facet table from facets_file, or the built-in one.
func loadRegistry(cfg *config.Config) (*facet.Registry, error) {
	if cfg.FacetsFile == "" {
		return facet.Default(), nil
	}
	reg, err := facet.LoadFile(cfg.FacetsFile)
	if err != nil {
		return nil, fmt.Errorf("loading facets: %w", err)
	}
	return reg, nil
}

func openHistory(cfg *config.Config) (*history.Store, error) {
	if err := os.MkdirAll(cfg.StorageDir, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return history.Open(cfg.HistoryPath())
}

// entityTypeFlag resolves --entity-type against the configured default.
func entityTypeFlag(c *cli.Command, cfg *config.Config) string {
	if et := c.String("entity-type"); et != "" {
		return et
	}
	return cfg.DefaultEntityType
}
