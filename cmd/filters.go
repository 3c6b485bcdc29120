package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rubiojr/serp/pkg/facet"
	"github.com/rubiojr/serp/pkg/filter"
	"github.com/urfave/cli/v3"
)

// FiltersCommand creates the filters command with its codec subcommands
func FiltersCommand() *cli.Command {
	entityFlag := &cli.StringFlag{
		Name:    "entity-type",
		Aliases: []string{"e"},
		Usage:   "Entity type the filters apply to (defaults to default_entity_type)",
	}

	return &cli.Command{
		Name:  "filters",
		Usage: "Decode, encode and merge filter strings",
		Commands: []*cli.Command{
			{
				Name:      "decode",
				Usage:     "Show the filters an encoded filter string holds",
				ArgsUsage: "<filter string>",
				Flags:     []cli.Flag{entityFlag},
				Action: func(ctx context.Context, c *cli.Command) error {
					reg, entityType, err := filterContext(c)
					if err != nil {
						return err
					}
					return printDecoded(os.Stdout, filter.Decode(reg, entityType, c.Args().First()))
				},
			},
			{
				Name:      "encode",
				Usage:     "Encode filters as one comma separated string, one filter per key:value",
				ArgsUsage: "<key:value>...",
				Flags:     []cli.Flag{entityFlag},
				Action: func(ctx context.Context, c *cli.Command) error {
					reg, entityType, err := filterContext(c)
					if err != nil {
						return err
					}
					fmt.Println(filter.Encode(decodeArgs(reg, entityType, c.Args().Slice())))
					return nil
				},
			},
			{
				Name:      "merge",
				Usage:     "Merge filters into the compact form sent to the API",
				ArgsUsage: "<filter string>...",
				Flags:     []cli.Flag{entityFlag},
				Action: func(ctx context.Context, c *cli.Command) error {
					reg, entityType, err := filterContext(c)
					if err != nil {
						return err
					}
					fmt.Println(filter.MergeString(decodeArgs(reg, entityType, c.Args().Slice())))
					return nil
				},
			},
			{
				Name:      "counts",
				Usage:     "Show result counts per facet value for a filter string",
				ArgsUsage: "<filter string>",
				Flags:     []cli.Flag{entityFlag},
				Action: func(ctx context.Context, c *cli.Command) error {
					return showCounts(ctx, c)
				},
			},
			{
				Name:      "years",
				Usage:     "Show how a publication year range is displayed",
				ArgsUsage: "<from-to>",
				Action: func(ctx context.Context, c *cli.Command) error {
					from, to := filter.ParseYearRange(c.Args().First())
					fmt.Println(filter.DisplayYearRange(from, to))
					return nil
				},
			},
		},
	}
}

func filterContext(c *cli.Command) (*facet.Registry, string, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, "", err
	}
	reg, err := loadRegistry(cfg)
	if err != nil {
		return nil, "", err
	}
	return reg, entityTypeFlag(c, cfg), nil
}

func decodeArgs(reg *facet.Registry, entityType string, args []string) []filter.Filter {
	return filter.Decode(reg, entityType, strings.Join(args, ","))
}

func printDecoded(w io.Writer, filters []filter.Filter) error {
	if len(filters) == 0 {
		_, err := fmt.Fprintln(w, "No filters")
		return err
	}
	for _, f := range filters {
		var flags []string
		if f.IsNegated {
			flags = append(flags, "negated")
		}
		if f.IsNullValue {
			flags = append(flags, "null")
		}
		if f.IsEntity() {
			flags = append(flags, "entity")
		}
		if f.Degraded() {
			flags = append(flags, "unknown key")
		}
		line := fmt.Sprintf("%-40s %s = %s", f.AsStr, f.DisplayName(), f.Value)
		if len(flags) > 0 {
			line += " (" + strings.Join(flags, ", ") + ")"
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func showCounts(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}
	filterString := c.Args().First()
	if filterString == "" {
		return errors.New("a filter string is required")
	}

	entityType := entityTypeFlag(c, cfg)
	api := newClient(cfg)
	merged := filter.MergeString(filter.Decode(reg, entityType, filterString))

	results, err := api.Search(ctx, entityType, map[string][]string{"filter": {merged}, "per-page": {"1"}})
	if err != nil {
		return err
	}
	resp, err := api.Filters(ctx, entityType, merged)
	if err != nil {
		return err
	}

	counts := filter.FromAPI(reg, entityType, resp.Filters, results.Meta.Count)
	fmt.Printf("%s results for %s\n\n", formatNumber(results.Meta.Count), merged)
	fmt.Print(renderFacetCounts(counts))
	return nil
}
