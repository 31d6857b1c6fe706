package store

import (
	"fmt"

	"parley/internal/logging"
)

// Schema versions:
// v1: sessions, objectives, artifacts, operations, record
const currentSchemaVersion = 1

var schemaV1 = []string{
	`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		phase      TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS objectives (
		session_id TEXT NOT NULL,
		id         TEXT NOT NULL,
		label      TEXT NOT NULL DEFAULT '',
		phase      TEXT NOT NULL,
		status     TEXT NOT NULL,
		PRIMARY KEY (session_id, id)
	)`,
	`CREATE TABLE IF NOT EXISTS artifacts (
		id             TEXT PRIMARY KEY,
		session_id     TEXT NOT NULL DEFAULT '',
		content_hash   TEXT NOT NULL,
		source_type    TEXT NOT NULL,
		filename       TEXT NOT NULL,
		raw_text       TEXT NOT NULL,
		summary        TEXT NOT NULL DEFAULT '',
		summary_state  TEXT NOT NULL DEFAULT 'none',
		size_bytes     INTEGER NOT NULL,
		ingested_at    DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_artifacts_session ON artifacts(session_id)`,
	`CREATE TABLE IF NOT EXISTS operations (
		session_id    TEXT NOT NULL,
		call_id       TEXT NOT NULL,
		tool          TEXT NOT NULL,
		state         TEXT NOT NULL,
		output        TEXT NOT NULL DEFAULT '',
		registered_at DATETIME NOT NULL,
		PRIMARY KEY (session_id, call_id)
	)`,
	`CREATE TABLE IF NOT EXISTS record (
		session_id TEXT NOT NULL,
		key        TEXT NOT NULL,
		value      TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (session_id, key)
	)`,
}

// migrate brings the database to the current schema version.
func (s *LocalStore) migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stmt := range schemaV1 {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if err != nil {
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, currentSchemaVersion); err != nil {
			return fmt.Errorf("migrate: write version: %w", err)
		}
		logging.StoreDebug("initialized schema at v%d", currentSchemaVersion)
		return nil
	}

	if version > currentSchemaVersion {
		return fmt.Errorf("migrate: database schema v%d is newer than supported v%d", version, currentSchemaVersion)
	}
	return nil
}
