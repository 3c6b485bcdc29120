package integration_tests

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/rubiojr/serp/pkg/db"
	"github.com/rubiojr/serp/pkg/history"
)

func TestMigrateCommand(t *testing.T) {
	catalog := newFakeCatalog(t)
	tempDir := t.TempDir()
	configPath := CreateTestConfig(t, tempDir, catalog.URL())
	ctx := context.Background()

	// nothing to migrate before the database exists
	if err := runCLI(ctx, configPath, "migrate", "--status"); err != nil {
		t.Fatalf("migrate --status failed: %v", err)
	}

	dbPath := filepath.Join(tempDir, "history.db")
	conn, err := db.OpenWithoutMigrations(dbPath)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	conn.Close()

	if err := runCLI(ctx, configPath, "migrate"); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	conn, err = db.OpenWithoutMigrations(dbPath)
	if err != nil {
		t.Fatalf("failed to reopen database: %v", err)
	}
	defer conn.Close()
	if !tableExists(t, conn, "navigations") {
		t.Error("expected navigations table after migrating")
	}
}

// TestHistoryWithCustomMigrations applies an extra migration directory on top
// of the history schema and checks the store keeps working.
func TestHistoryWithCustomMigrations(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "history.db")

	store, err := history.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open history: %v", err)
	}
	store.Close()

	migrationsDir := filepath.Join(tempDir, "migrations")
	if err := os.MkdirAll(migrationsDir, 0755); err != nil {
		t.Fatalf("failed to create migrations directory: %v", err)
	}
	extra := "CREATE TABLE IF NOT EXISTS bookmarks (id INTEGER PRIMARY KEY, navigation_id INTEGER REFERENCES navigations(id));"
	if err := os.WriteFile(filepath.Join(migrationsDir, "100_bookmarks.sql"), []byte(extra), 0644); err != nil {
		t.Fatalf("failed to write migration: %v", err)
	}

	conn, err := db.OpenWithoutMigrations(dbPath)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	manager := db.NewMigrationManagerFromPath(conn, migrationsDir)
	if err := manager.ApplyPendingMigrations(); err != nil {
		t.Fatalf("failed to apply custom migrations: %v", err)
	}
	if !tableExists(t, conn, "bookmarks") {
		t.Error("expected bookmarks table")
	}
	conn.Close()

	store, err = history.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to reopen history: %v", err)
	}
	defer store.Close()
	sessions, err := store.Sessions(context.Background())
	if err != nil {
		t.Fatalf("failed to list sessions: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("expected no sessions, got %v", sessions)
	}
}

func tableExists(t *testing.T, conn *sql.DB, name string) bool {
	t.Helper()
	var count int
	err := conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&count)
	if err != nil {
		t.Fatalf("failed to query sqlite_master: %v", err)
	}
	return count > 0
}
