// Package db opens the sqlite databases serp keeps on disk and applies the
// embedded schema migrations.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 30000",
	"PRAGMA temp_store = memory",
}

// Open opens the sqlite database at path and applies pending migrations.
// A single connection is kept so the pragmas hold for every statement.
func Open(path string) (*sql.DB, error) {
	db, err := OpenWithoutMigrations(path)
	if err != nil {
		return nil, err
	}
	if err := InitializeDatabase(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenWithoutMigrations opens the database at path leaving its schema alone.
func OpenWithoutMigrations(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}
	return db, nil
}
