package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rubiojr/serp/pkg/config"
	"github.com/rubiojr/serp/pkg/facet"
	"github.com/urfave/cli/v3"
)

// InitCommand creates the init command
func InitCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize configuration",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "facets",
				Usage: "Also write the built-in facet table next to the config for editing",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return initConfig(c.String("config"), c.Bool("facets"))
		},
	}
}

// initConfig writes the config template and, optionally, an editable copy
// of the built-in facet table referenced from it.
func initConfig(configPath string, withFacets bool) error {
	cfg, err := config.GetDefaultConfig()
	if err != nil {
		return err
	}

	if withFacets {
		facetsPath := filepath.Join(filepath.Dir(configPath), "facets.toml")
		if err := os.MkdirAll(filepath.Dir(facetsPath), 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
		if err := os.WriteFile(facetsPath, facet.Builtin(), 0644); err != nil {
			return fmt.Errorf("writing facets: %w", err)
		}
		cfg.FacetsFile = facetsPath
		fmt.Printf("Facet table written to %s\n", facetsPath)
	}

	if err := cfg.SaveTemplateConfig(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Printf("Configuration initialized at %s\n", configPath)
	return nil
}
