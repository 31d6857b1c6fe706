// Package store persists session state to SQLite so a crashed or restarted
// process can resume an interview. The persisted shape per session is the
// phase, the objective ledger, the artifacts, and the pending tool
// operations.
package store

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"parley/internal/logging"
)

// LocalStore wraps the SQLite database. All exported methods are
// single-call atomic; callers never hold a transaction across other work.
type LocalStore struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// Open opens (or creates) the database at path and applies migrations.
// An empty path opens an in-memory database, used by tests.
func Open(path string) (*LocalStore, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	// modernc's driver serializes writes per connection; a single
	// connection avoids table-lock errors under concurrent use.
	db.SetMaxOpenConns(1)

	s := &LocalStore{db: db, path: dsn}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	logging.Store("opened session store at %s", dsn)
	return s, nil
}

// Close closes the database.
func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
