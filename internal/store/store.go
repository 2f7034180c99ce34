// Package store keeps the run history: one row per pipeline run, a
// versioned snapshot of every phase artifact, and the file hashes each run
// observed.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a run or artifact does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the SQLite data access layer for the history tables.
type Store struct {
	db *sql.DB
}

// NewStore opens the history database at dbPath in WAL mode with foreign
// keys enforced.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the history tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS runs (
  id              TEXT PRIMARY KEY,
  root            TEXT NOT NULL,
  mode            TEXT NOT NULL,
  status          TEXT NOT NULL,
  started_at      TIMESTAMP NOT NULL,
  finished_at     TIMESTAMP
);

CREATE TABLE IF NOT EXISTS artifacts (
  id              INTEGER PRIMARY KEY,
  run_id          TEXT NOT NULL REFERENCES runs(id),
  phase           TEXT NOT NULL,
  name            TEXT NOT NULL,
  status          TEXT,
  hash            TEXT NOT NULL,
  body            BLOB NOT NULL,
  created_at      TIMESTAMP NOT NULL,
  UNIQUE (run_id, name)
);

CREATE TABLE IF NOT EXISTS file_hashes (
  run_id          TEXT NOT NULL REFERENCES runs(id),
  path            TEXT NOT NULL,
  language        TEXT NOT NULL,
  hash            TEXT NOT NULL,
  PRIMARY KEY (run_id, path)
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_artifacts_run ON artifacts(run_id);
CREATE INDEX IF NOT EXISTS idx_artifacts_name ON artifacts(name);
CREATE INDEX IF NOT EXISTS idx_file_hashes_path ON file_hashes(path);
`

// DeleteRun transactionally removes a run and everything recorded for it.
// Deletes in reverse-dependency order to respect FK constraints.
func (s *Store) DeleteRun(runID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		"DELETE FROM file_hashes WHERE run_id = ?",
		"DELETE FROM artifacts WHERE run_id = ?",
		"DELETE FROM runs WHERE id = ?",
	} {
		if _, err := tx.Exec(q, runID); err != nil {
			return fmt.Errorf("delete run %s: %w", runID, err)
		}
	}
	return tx.Commit()
}

// Prune keeps the newest keep runs and deletes the rest. Returns the number
// of runs removed. keep <= 0 keeps everything.
func (s *Store) Prune(keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	rows, err := s.db.Query(
		"SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT -1 OFFSET ?", keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan run id: %w", err)
		}
		stale = append(stale, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}

	for _, id := range stale {
		if err := s.DeleteRun(id); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}
