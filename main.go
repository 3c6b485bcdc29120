package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rubiojr/serp/cmd"
	"github.com/rubiojr/serp/pkg/config"
	"github.com/rubiojr/serp/pkg/log"
	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:  "serp",
		Usage: "Faceted search over a scholarly catalog API",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
				Value: false,
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Configuration file path",
				Value: getDefaultConfigPathOrExit(),
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			log.SetGlobalDebug(c.Bool("debug"))
			return ctx, nil
		},
		Commands: []*cli.Command{
			cmd.InitCommand(),
			cmd.SearchCommand(),
			cmd.FiltersCommand(),
			cmd.PIDCommand(),
			cmd.FacetsCommand(),
			cmd.HistoryCommand(),
			cmd.MigrateCommand(),
			cmd.ServeCommand(),
			cmd.EventsCommand(),
			cmd.VersionCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.ForService("serp").Errorf("%v", err)
		os.Exit(1)
	}
}

func getDefaultConfigPathOrExit() string {
	path, err := config.GetDefaultConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get default config path: %v\n", err)
		os.Exit(1)
	}
	return path
}
