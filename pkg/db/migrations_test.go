package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := GetEmbeddedMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "history", migrations[0].Name)
	assert.Contains(t, migrations[0].SQL, "CREATE TABLE IF NOT EXISTS navigations")
}

func TestOpenAppliesMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	db, err := Open(path)
	require.NoError(t, err)

	status, err := NewMigrationManager(db).GetMigrationStatus()
	require.NoError(t, err)
	assert.Empty(t, status.Pending)
	require.Len(t, status.Applied, len(status.Available))
	assert.NotNil(t, status.Applied[0].AppliedAt)

	_, err = db.Exec("INSERT INTO navigations (session, entity_type, location, created_at) VALUES ('s', 'works', '/works', CURRENT_TIMESTAMP)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// reopening is a no-op
	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM navigations").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestMigrationsFromPath(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"002_second.sql": "CREATE TABLE b (id INTEGER);",
		"001_first.sql":  "CREATE TABLE a (id INTEGER);",
		"notes.txt":      "ignored",
		"bad_name.sql":   "ignored",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	db, err := Open(filepath.Join(t.TempDir(), "custom.db"))
	require.NoError(t, err)
	defer db.Close()

	m := NewMigrationManagerFromPath(db, dir)
	available, err := m.GetAvailableMigrations()
	require.NoError(t, err)
	require.Len(t, available, 2)
	assert.Equal(t, "first", available[0].Name)
	assert.Equal(t, "second", available[1].Name)

	// versions 1 and 2: 1 is already applied by Open
	pending, err := m.GetPendingMigrations()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Version)

	require.NoError(t, m.ApplyPendingMigrations())
	_, err = db.Exec("INSERT INTO b (id) VALUES (1)")
	assert.NoError(t, err)
}

func TestFailedMigrationRollsBack(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "rollback.db"))
	require.NoError(t, err)
	defer db.Close()

	m := NewMigrationManager(db)
	err = m.ApplyMigration(Migration{Version: 99, Name: "broken", SQL: "CREATE TABLE ok (id INTEGER); NOT SQL;"})
	require.Error(t, err)

	applied, err := m.GetAppliedMigrations()
	require.NoError(t, err)
	assert.NotContains(t, applied, 99)

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name = 'ok'").Scan(&n))
	assert.Equal(t, 0, n)
}

func TestOpenWithoutMigrations(t *testing.T) {
	db, err := OpenWithoutMigrations(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer db.Close()

	status, err := NewMigrationManager(db).GetMigrationStatus()
	require.NoError(t, err)
	assert.Empty(t, status.Applied)
	assert.Len(t, status.Pending, len(status.Available))

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}
