// Package history persists navigation: every search location pushed by an
// orchestrator is appended to a per-session log in sqlite, and the latest
// entry is the session's current location.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rubiojr/serp/pkg/db"
	"github.com/rubiojr/serp/pkg/log"
	"github.com/rubiojr/serp/pkg/search"
)

// DefaultSession is used by the command line.
const DefaultSession = "cli"

// Entry is one pushed location.
type Entry struct {
	ID        int64           `json:"id"`
	Session   string          `json:"session"`
	Location  search.Location `json:"-"`
	URL       string          `json:"url"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store is the navigation log.
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

// Open opens or creates the navigation log at path.
func Open(path string) (*Store, error) {
	conn, err := db.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	return &Store{db: conn, logger: log.ForService("history")}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Navigator returns a search.Navigator bound to session.
func (s *Store) Navigator(session string) *Navigator {
	if session == "" {
		session = DefaultSession
	}
	return &Navigator{store: s, session: session}
}

// List returns the latest entries of session, newest first. limit <= 0
// returns every entry.
func (s *Store) List(ctx context.Context, session string, limit int) ([]Entry, error) {
	query := "SELECT id, session, location, created_at FROM navigations WHERE session = ? ORDER BY id DESC"
	args := []any{session}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Session, &e.URL, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		loc, err := search.ParseLocation(e.URL)
		if err != nil {
			s.logger.Warnf("skipping unreadable entry %d: %v", e.ID, err)
			continue
		}
		e.Location = loc
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Sessions returns the sessions with at least one entry, most recent first.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT session FROM navigations GROUP BY session ORDER BY MAX(id) DESC")
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []string
	for rows.Next() {
		var session string
		if err := rows.Scan(&session); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// Prune deletes entries older than the given time and reports how many went.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM navigations WHERE created_at < ?", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("pruning history: %w", err)
	}
	return res.RowsAffected()
}

// Navigator is the navigation layer of one session.
type Navigator struct {
	store   *Store
	session string
}

func (n *Navigator) Session() string {
	return n.session
}

// Current returns the latest location of the session, or the zero Location
// for a session without history.
func (n *Navigator) Current(ctx context.Context) (search.Location, error) {
	var raw string
	err := n.store.db.QueryRowContext(ctx,
		"SELECT location FROM navigations WHERE session = ? ORDER BY id DESC LIMIT 1", n.session,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return search.Location{}, nil
	}
	if err != nil {
		return search.Location{}, fmt.Errorf("reading current location: %w", err)
	}
	return search.ParseLocation(raw)
}

// Push appends loc to the session. Pushing the current location returns
// search.ErrNavigationDuplicated and stores nothing.
func (n *Navigator) Push(ctx context.Context, loc search.Location) error {
	tx, err := n.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	url := loc.String()
	var last string
	err = tx.QueryRowContext(ctx,
		"SELECT location FROM navigations WHERE session = ? ORDER BY id DESC LIMIT 1", n.session,
	).Scan(&last)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("reading current location: %w", err)
	case last == url:
		return search.ErrNavigationDuplicated
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO navigations (session, entity_type, location, created_at) VALUES (?, ?, ?, ?)",
		n.session, loc.EntityType, url, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("storing location: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing location: %w", err)
	}
	n.store.logger.Debugf("%s pushed %s", n.session, url)
	return nil
}

// Back drops the current location of the session and returns the one before
// it. ok is false when there is nothing to go back to.
func (n *Navigator) Back(ctx context.Context) (loc search.Location, ok bool, err error) {
	entries, err := n.store.List(ctx, n.session, 2)
	if err != nil {
		return search.Location{}, false, err
	}
	if len(entries) < 2 {
		return search.Location{}, false, nil
	}
	if _, err := n.store.db.ExecContext(ctx, "DELETE FROM navigations WHERE id = ?", entries[0].ID); err != nil {
		return search.Location{}, false, fmt.Errorf("going back: %w", err)
	}
	return entries[1].Location, true, nil
}
