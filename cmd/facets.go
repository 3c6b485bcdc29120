package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rubiojr/serp/pkg/facet"
	"github.com/urfave/cli/v3"
)

// FacetsCommand creates the facets command
func FacetsCommand() *cli.Command {
	return &cli.Command{
		Name:  "facets",
		Usage: "List the facets known for each entity type",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "entity-type",
				Aliases: []string{"e"},
				Usage:   "Only list facets of this entity type",
			},
			&cli.BoolFlag{
				Name:  "check",
				Usage: "Report example identifiers matched by more than one facet",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			reg, err := loadRegistry(cfg)
			if err != nil {
				return err
			}

			if c.Bool("check") {
				return printAmbiguities(os.Stdout, reg)
			}

			entityTypes := reg.EntityTypes()
			if et := c.String("entity-type"); et != "" {
				entityTypes = []string{et}
			}
			return printFacets(os.Stdout, reg, entityTypes)
		},
	}
}

func printFacets(w io.Writer, reg *facet.Registry, entityTypes []string) error {
	for _, et := range entityTypes {
		configs := reg.ForEntityType(et)
		fmt.Fprintf(w, "%s (%d facets)\n", et, len(configs))
		for _, cfg := range configs {
			kind := cfg.Type
			if cfg.IsEntity {
				kind += ", entity"
			}
			if cfg.Regex != "" {
				kind += ", identifier"
			}
			fmt.Fprintf(w, "  %-32s %-24s %s\n", cfg.Key, cfg.DisplayName, kind)
		}
	}
	return nil
}

func printAmbiguities(w io.Writer, reg *facet.Registry) error {
	ambiguities := reg.Ambiguities()
	if len(ambiguities) == 0 {
		fmt.Fprintln(w, "No ambiguous identifiers")
		return nil
	}
	for _, a := range ambiguities {
		fmt.Fprintln(w, a.String())
	}
	return nil
}
