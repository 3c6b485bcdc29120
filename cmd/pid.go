package cmd

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rubiojr/serp/pkg/filter"
	"github.com/urfave/cli/v3"
)

// PIDCommand creates the pid command
func PIDCommand() *cli.Command {
	return &cli.Command{
		Name:      "pid",
		Usage:     "Turn a persistent identifier (DOI, ORCID, ISSN, id URL) into a filter",
		ArgsUsage: "<identifier>",
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			reg, err := loadRegistry(cfg)
			if err != nil {
				return err
			}

			id := c.Args().First()
			f, ok := filter.FromIdentifier(reg, id)
			if !ok {
				return fmt.Errorf("%q does not match any known identifier", id)
			}

			fmt.Printf("Entity type: %s\n", f.Config.EntityType)
			fmt.Printf("Facet:       %s (%s)\n", f.DisplayName(), f.Key)
			encoded := filter.MergeString([]filter.Filter{f})
			fmt.Printf("Filter:      %s\n", encoded)
			fmt.Printf("Search URL:  %s\n", newClient(cfg).URL(f.Config.EntityType, url.Values{"filter": {encoded}}))
			return nil
		},
	}
}
