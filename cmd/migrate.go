package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rubiojr/serp/pkg/db"
	"github.com/urfave/cli/v3"
)

// MigrateCommand creates the migrate command
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Run history database migrations",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "status",
				Usage: "Show migration status without applying migrations",
				Value: false,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			return RunMigrations(cfg.HistoryPath(), c.Bool("status"))
		},
	}
}

// RunMigrations shows or applies the migrations of the database at dbPath.
func RunMigrations(dbPath string, statusOnly bool) error {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Printf("Database does not exist, will be created on first use: %s\n", dbPath)
		return nil
	}

	conn, err := db.OpenWithoutMigrations(dbPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	manager := db.NewMigrationManager(conn)
	if statusOnly {
		return showMigrationStatus(manager)
	}
	if err := manager.ApplyPendingMigrations(); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	fmt.Println("All migrations completed successfully")
	return nil
}

func showMigrationStatus(manager *db.MigrationManager) error {
	status, err := manager.GetMigrationStatus()
	if err != nil {
		return err
	}

	fmt.Printf("Applied migrations: %d\n", len(status.Applied))
	for _, migration := range status.Applied {
		appliedTime := "unknown"
		if migration.AppliedAt != nil {
			appliedTime = migration.AppliedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("  ✓ %03d: %s (applied: %s)\n", migration.Version, migration.Name, appliedTime)
	}

	fmt.Printf("Pending migrations: %d\n", len(status.Pending))
	for _, migration := range status.Pending {
		fmt.Printf("  • %03d: %s\n", migration.Version, migration.Name)
	}
	if len(status.Pending) == 0 {
		fmt.Println("  (none - database is up to date)")
	}
	return nil
}
