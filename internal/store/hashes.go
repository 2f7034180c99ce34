package store

import (
	"fmt"
	"sort"
)

// hashBatchRows bounds one multi-row insert well under SQLite's host
// parameter limit.
const hashBatchRows = 200

// RecordFileHashes stores the hashes a run observed within one transaction.
func (s *Store) RecordFileHashes(runID string, hashes []FileHash) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("record file hashes: begin: %w", err)
	}
	defer tx.Rollback()

	for start := 0; start < len(hashes); start += hashBatchRows {
		end := min(start+hashBatchRows, len(hashes))
		chunk := hashes[start:end]
		args := make([]any, 0, len(chunk)*4)
		for _, h := range chunk {
			args = append(args, runID, h.Path, h.Language, h.Hash)
		}
		q := "INSERT OR REPLACE INTO file_hashes (run_id, path, language, hash) VALUES " +
			rowPlaceholders(len(chunk), 4)
		if _, err := tx.Exec(q, args...); err != nil {
			return fmt.Errorf("record file hashes: %w", err)
		}
	}
	return tx.Commit()
}

// FileHashes returns path -> hash for a run.
func (s *Store) FileHashes(runID string) (map[string]string, error) {
	rows, err := s.db.Query("SELECT path, hash FROM file_hashes WHERE run_id = ?", runID)
	if err != nil {
		return nil, fmt.Errorf("file hashes: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, fmt.Errorf("scan file hash: %w", err)
		}
		out[path] = hash
	}
	return out, rows.Err()
}

// ChangedFiles lists paths whose hash differs between two runs, sorted by
// path. Paths present in only one run are included.
func (s *Store) ChangedFiles(previousRunID, currentRunID string) ([]FileChange, error) {
	prev, err := s.FileHashes(previousRunID)
	if err != nil {
		return nil, err
	}
	cur, err := s.FileHashes(currentRunID)
	if err != nil {
		return nil, err
	}
	var out []FileChange
	for path, h := range cur {
		if prev[path] != h {
			out = append(out, FileChange{Path: path, Previous: prev[path], Current: h})
		}
	}
	for path, h := range prev {
		if _, ok := cur[path]; !ok {
			out = append(out, FileChange{Path: path, Previous: h})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
