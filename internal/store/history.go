package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// --- Run operations ---

func (s *Store) InsertRun(r *Run) error {
	if r.Status == "" {
		r.Status = RunRunning
	}
	_, err := s.db.Exec(
		"INSERT INTO runs (id, root, mode, status, started_at) VALUES (?, ?, ?, ?, ?)",
		r.ID, r.Root, r.Mode, r.Status, r.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun records the terminal status of a run.
func (s *Store) FinishRun(runID, status string, at time.Time) error {
	res, err := s.db.Exec(
		"UPDATE runs SET status = ?, finished_at = ? WHERE id = ?", status, at, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrNotFound)
	}
	return nil
}

const runColumns = "id, root, mode, status, started_at, finished_at"

func scanRun(scanner rowScanner) (*Run, error) {
	r := &Run{}
	var finished sql.NullTime
	if err := scanner.Scan(&r.ID, &r.Root, &r.Mode, &r.Status, &r.StartedAt, &finished); err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return r, nil
}

func (s *Store) RunByID(runID string) (*Run, error) {
	r, err := scanRun(s.db.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("run by id: %w", err)
	}
	return r, nil
}

// LatestRun returns the most recently started run with status, or with any
// status when status is empty.
func (s *Store) LatestRun(status string) (*Run, error) {
	query := "SELECT " + runColumns + " FROM runs"
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY started_at DESC, rowid DESC LIMIT 1"
	r, err := scanRun(s.db.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return r, nil
}

// Runs lists runs newest first. limit <= 0 lists all of them.
func (s *Store) Runs(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		"SELECT "+runColumns+" FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("runs: %w", err)
	}
	defer rows.Close()
	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// --- Artifact operations ---

// PutArtifact stores a phase artifact for a run, replacing an artifact of
// the same name recorded earlier in that run.
func (s *Store) PutArtifact(a *Artifact) (int64, error) {
	a.Hash = bodyHash(a.Body)
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	var id int64
	err := s.db.QueryRow(`
		INSERT INTO artifacts (run_id, phase, name, status, hash, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, name) DO UPDATE SET
		  phase = excluded.phase, status = excluded.status, hash = excluded.hash,
		  body = excluded.body, created_at = excluded.created_at
		RETURNING id`,
		a.RunID, a.Phase, a.Name, a.Status, a.Hash, a.Body, a.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("put artifact %s: %w", a.Name, err)
	}
	a.ID = id
	return id, nil
}

// ArtifactsByRun lists a run's artifacts in insertion order without bodies.
func (s *Store) ArtifactsByRun(runID string) ([]*Artifact, error) {
	rows, err := s.db.Query(
		"SELECT id, run_id, phase, name, status, hash, created_at FROM artifacts WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("artifacts by run: %w", err)
	}
	defer rows.Close()
	var out []*Artifact
	for rows.Next() {
		a := &Artifact{}
		var status sql.NullString
		if err := rows.Scan(&a.ID, &a.RunID, &a.Phase, &a.Name, &status, &a.Hash, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		a.Status = status.String
		out = append(out, a)
	}
	return out, rows.Err()
}

const artifactColumns = "a.id, a.run_id, a.phase, a.name, a.status, a.hash, a.body, a.created_at"

func scanArtifact(scanner rowScanner) (*Artifact, error) {
	a := &Artifact{}
	var status sql.NullString
	if err := scanner.Scan(&a.ID, &a.RunID, &a.Phase, &a.Name, &status, &a.Hash, &a.Body, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Status = status.String
	return a, nil
}

// Artifact returns the named artifact of a run, including its body.
func (s *Store) Artifact(runID, name string) (*Artifact, error) {
	a, err := scanArtifact(s.db.QueryRow(
		"SELECT "+artifactColumns+" FROM artifacts a WHERE a.run_id = ? AND a.name = ?", runID, name,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("artifact %s of run %s: %w", name, runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("artifact: %w", err)
	}
	return a, nil
}

// LatestArtifact returns the named artifact from the newest successful run
// that recorded it.
func (s *Store) LatestArtifact(name string) (*Artifact, error) {
	a, err := scanArtifact(s.db.QueryRow(`
		SELECT `+artifactColumns+` FROM artifacts a
		JOIN runs r ON r.id = a.run_id
		WHERE a.name = ? AND r.status = ?
		ORDER BY r.started_at DESC, r.rowid DESC LIMIT 1`,
		name, RunSuccess,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("artifact %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest artifact: %w", err)
	}
	return a, nil
}
