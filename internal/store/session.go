package store

import (
	"database/sql"
	"fmt"
	"time"

	"parley/internal/artifact"
	"parley/internal/ledger"
	"parley/internal/logging"
	"parley/internal/ops"
	"parley/internal/phase"
)

// SessionSnapshot is the durable shape of one session.
type SessionSnapshot struct {
	SessionID         string
	Phase             phase.Phase
	Objectives        []ledger.Objective
	Artifacts         []artifact.Artifact
	PendingOperations []ops.Operation
	Record            map[string]string
}

// ErrSessionNotFound is returned by LoadSession for an unknown id.
var ErrSessionNotFound = sql.ErrNoRows

// SaveSession atomically replaces the persisted state of one session.
// Artifacts with an empty session id (archived) are saved too, so the
// archive survives restarts.
func (s *LocalStore) SaveSession(snap SessionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		`INSERT INTO sessions (id, phase, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET phase=excluded.phase, updated_at=excluded.updated_at`,
		snap.SessionID, snap.Phase.String(), time.Now(),
	); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM objectives WHERE session_id = ?`, snap.SessionID); err != nil {
		return fmt.Errorf("save objectives: %w", err)
	}
	for _, obj := range snap.Objectives {
		if _, err := tx.Exec(
			`INSERT INTO objectives (session_id, id, label, phase, status) VALUES (?, ?, ?, ?, ?)`,
			snap.SessionID, obj.ID, obj.Label, obj.Phase.String(), string(obj.Status),
		); err != nil {
			return fmt.Errorf("save objective %s: %w", obj.ID, err)
		}
	}

	for _, a := range snap.Artifacts {
		if _, err := tx.Exec(
			`INSERT INTO artifacts (id, session_id, content_hash, source_type, filename,
			                        raw_text, summary, summary_state, size_bytes, ingested_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   session_id=excluded.session_id,
			   summary=excluded.summary,
			   summary_state=excluded.summary_state`,
			a.ID, a.SessionID, a.ContentHash, string(a.SourceType), a.Filename,
			a.RawText, a.Summary, string(a.SummaryState), a.SizeBytes, a.IngestedAt,
		); err != nil {
			return fmt.Errorf("save artifact %s: %w", a.ID, err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM operations WHERE session_id = ?`, snap.SessionID); err != nil {
		return fmt.Errorf("save operations: %w", err)
	}
	for _, op := range snap.PendingOperations {
		if _, err := tx.Exec(
			`INSERT INTO operations (session_id, call_id, tool, state, output, registered_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			snap.SessionID, op.CallID, op.Tool, string(op.State), op.Output, op.RegisteredAt,
		); err != nil {
			return fmt.Errorf("save operation %s: %w", op.CallID, err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM record WHERE session_id = ?`, snap.SessionID); err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	for key, value := range snap.Record {
		if _, err := tx.Exec(
			`INSERT INTO record (session_id, key, value) VALUES (?, ?, ?)`,
			snap.SessionID, key, value,
		); err != nil {
			return fmt.Errorf("save record %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	logging.StoreDebug("saved session %s (phase=%s, %d objectives, %d artifacts, %d pending ops)",
		snap.SessionID, snap.Phase, len(snap.Objectives), len(snap.Artifacts), len(snap.PendingOperations))
	return nil
}

// LoadSession reads a full session snapshot. Archived artifacts are
// included so promoted documents remain reachable after resume.
func (s *LocalStore) LoadSession(sessionID string) (*SessionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &SessionSnapshot{SessionID: sessionID}

	var phaseName string
	if err := s.db.QueryRow(`SELECT phase FROM sessions WHERE id = ?`, sessionID).Scan(&phaseName); err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	ph, err := phase.Parse(phaseName)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	snap.Phase = ph

	rows, err := s.db.Query(
		`SELECT id, label, phase, status FROM objectives WHERE session_id = ? ORDER BY rowid`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load objectives: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var obj ledger.Objective
		var phName, status string
		if err := rows.Scan(&obj.ID, &obj.Label, &phName, &status); err != nil {
			return nil, fmt.Errorf("load objectives: %w", err)
		}
		if obj.Phase, err = phase.Parse(phName); err != nil {
			return nil, fmt.Errorf("load objectives: %w", err)
		}
		obj.Status = ledger.Status(status)
		snap.Objectives = append(snap.Objectives, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load objectives: %w", err)
	}

	artRows, err := s.db.Query(
		`SELECT id, session_id, content_hash, source_type, filename, raw_text,
		        summary, summary_state, size_bytes, ingested_at
		 FROM artifacts WHERE session_id = ? OR session_id = '' ORDER BY ingested_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load artifacts: %w", err)
	}
	defer artRows.Close()
	for artRows.Next() {
		var a artifact.Artifact
		var sourceType, summaryState string
		if err := artRows.Scan(&a.ID, &a.SessionID, &a.ContentHash, &sourceType, &a.Filename,
			&a.RawText, &a.Summary, &summaryState, &a.SizeBytes, &a.IngestedAt); err != nil {
			return nil, fmt.Errorf("load artifacts: %w", err)
		}
		a.SourceType = artifact.SourceType(sourceType)
		a.SummaryState = artifact.SummaryState(summaryState)
		snap.Artifacts = append(snap.Artifacts, a)
	}
	if err := artRows.Err(); err != nil {
		return nil, fmt.Errorf("load artifacts: %w", err)
	}

	opRows, err := s.db.Query(
		`SELECT call_id, tool, state, output, registered_at FROM operations WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load operations: %w", err)
	}
	defer opRows.Close()
	for opRows.Next() {
		var op ops.Operation
		var state string
		if err := opRows.Scan(&op.CallID, &op.Tool, &state, &op.Output, &op.RegisteredAt); err != nil {
			return nil, fmt.Errorf("load operations: %w", err)
		}
		op.State = ops.State(state)
		snap.PendingOperations = append(snap.PendingOperations, op)
	}
	if err := opRows.Err(); err != nil {
		return nil, fmt.Errorf("load operations: %w", err)
	}

	recRows, err := s.db.Query(
		`SELECT key, value FROM record WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load record: %w", err)
	}
	defer recRows.Close()
	for recRows.Next() {
		var key, value string
		if err := recRows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("load record: %w", err)
		}
		if snap.Record == nil {
			snap.Record = make(map[string]string)
		}
		snap.Record[key] = value
	}
	if err := recRows.Err(); err != nil {
		return nil, fmt.Errorf("load record: %w", err)
	}

	logging.Store("loaded session %s (phase=%s, %d objectives, %d artifacts)",
		sessionID, snap.Phase, len(snap.Objectives), len(snap.Artifacts))
	return snap, nil
}

// ListSessions returns the known session ids, most recently updated first.
func (s *LocalStore) ListSessions() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
