package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rubiojr/serp/pkg/history"
	"github.com/urfave/cli/v3"
)

// HistoryCommand creates the history command
func HistoryCommand() *cli.Command {
	sessionFlag := &cli.StringFlag{
		Name:  "session",
		Usage: "Session to inspect",
		Value: history.DefaultSession,
	}

	return &cli.Command{
		Name:  "history",
		Usage: "Inspect and manage the navigation history",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List the latest searches of a session",
				Flags: []cli.Flag{
					sessionFlag,
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of entries (0 for no limit)",
						Value: 20,
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return withHistory(c, func(store *history.Store) error {
						entries, err := store.List(ctx, c.String("session"), c.Int("limit"))
						if err != nil {
							return err
						}
						if len(entries) == 0 {
							fmt.Println("No history")
							return nil
						}
						for _, e := range entries {
							fmt.Printf("%5d  %-16s %s\n", e.ID, formatTime(e.CreatedAt), e.URL)
						}
						return nil
					})
				},
			},
			{
				Name:  "sessions",
				Usage: "List sessions, most recently active first",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withHistory(c, func(store *history.Store) error {
						sessions, err := store.Sessions(ctx)
						if err != nil {
							return err
						}
						for _, s := range sessions {
							fmt.Println(s)
						}
						return nil
					})
				},
			},
			{
				Name:  "back",
				Usage: "Drop the current search of a session and show the previous one",
				Flags: []cli.Flag{sessionFlag},
				Action: func(ctx context.Context, c *cli.Command) error {
					return withHistory(c, func(store *history.Store) error {
						loc, ok, err := store.Navigator(c.String("session")).Back(ctx)
						if err != nil {
							return err
						}
						if !ok {
							fmt.Println("Nothing to go back to")
							return nil
						}
						fmt.Println(loc)
						return nil
					})
				},
			},
			{
				Name:  "prune",
				Usage: "Delete entries older than a given age",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "older-than",
						Usage: "Age of the entries to delete",
						Value: 30 * 24 * time.Hour,
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return withHistory(c, func(store *history.Store) error {
						n, err := store.Prune(ctx, time.Now().Add(-c.Duration("older-than")))
						if err != nil {
							return err
						}
						fmt.Printf("Deleted %d entries\n", n)
						return nil
					})
				},
			},
		},
	}
}

func withHistory(c *cli.Command, fn func(*history.Store) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}
