package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

// insertTestRun inserts a run started offset seconds after a fixed epoch.
func insertTestRun(t *testing.T, s *Store, id string, offset int, status string) *Run {
	t.Helper()
	r := &Run{
		ID:        id,
		Root:      "/project",
		Mode:      "full",
		Status:    status,
		StartedAt: time.Date(2026, 1, 1, 0, 0, offset, 0, time.UTC),
	}
	require.NoError(t, s.InsertRun(r))
	return r
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for _, table := range []string{"runs", "artifacts", "file_hashes"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate())
}

func TestMigrate_WALMode(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	var mode string
	err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode)
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)
}

// =============================================================================
// Runs
// =============================================================================

func TestRun_InsertFinishAndRetrieve(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	insertTestRun(t, s, "r1", 0, "")
	got, err := s.RunByID("r1")
	require.NoError(t, err)
	assert.Equal(t, RunRunning, got.Status)
	assert.Nil(t, got.FinishedAt)

	done := time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC)
	require.NoError(t, s.FinishRun("r1", RunSuccess, done))
	got, err = s.RunByID("r1")
	require.NoError(t, err)
	assert.Equal(t, RunSuccess, got.Status)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, done.Equal(*got.FinishedAt))

	assert.ErrorIs(t, s.FinishRun("ghost", RunFailed, done), ErrNotFound)
	_, err = s.RunByID("ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLatestRun_FiltersByStatus(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.LatestRun("")
	assert.ErrorIs(t, err, ErrNotFound)

	insertTestRun(t, s, "old", 0, RunSuccess)
	insertTestRun(t, s, "new", 10, RunFailed)

	got, err := s.LatestRun("")
	require.NoError(t, err)
	assert.Equal(t, "new", got.ID)

	got, err = s.LatestRun(RunSuccess)
	require.NoError(t, err)
	assert.Equal(t, "old", got.ID)

	runs, err := s.Runs(0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID)

	runs, err = s.Runs(1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

// =============================================================================
// Artifacts
// =============================================================================

func TestArtifact_PutReplacesWithinRun(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	insertTestRun(t, s, "r1", 0, RunRunning)

	a := &Artifact{RunID: "r1", Phase: "merge", Name: "code_knowledge_graph.json", Body: []byte(`{"v":1}`)}
	id, err := s.PutArtifact(a)
	require.NoError(t, err)
	require.Positive(t, id)
	assert.Len(t, a.Hash, 64)

	b := &Artifact{RunID: "r1", Phase: "merge", Name: "code_knowledge_graph.json", Status: "pass", Body: []byte(`{"v":2}`)}
	_, err = s.PutArtifact(b)
	require.NoError(t, err)

	list, err := s.ArtifactsByRun("r1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].Body)
	assert.Equal(t, "pass", list[0].Status)

	got, err := s.Artifact("r1", "code_knowledge_graph.json")
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(got.Body))
	assert.Equal(t, b.Hash, got.Hash)

	_, err = s.Artifact("r1", "missing.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArtifact_ForeignKeyEnforced(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	_, err := s.PutArtifact(&Artifact{RunID: "ghost", Phase: "merge", Name: "x.json", Body: []byte("{}")})
	assert.Error(t, err)
}

func TestLatestArtifact_SkipsFailedRuns(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	insertTestRun(t, s, "good", 0, RunSuccess)
	insertTestRun(t, s, "bad", 10, RunFailed)
	for _, run := range []string{"good", "bad"} {
		_, err := s.PutArtifact(&Artifact{RunID: run, Phase: "enrich", Name: "enriched.json", Body: []byte(run)})
		require.NoError(t, err)
	}

	got, err := s.LatestArtifact("enriched.json")
	require.NoError(t, err)
	assert.Equal(t, "good", got.RunID)
	assert.Equal(t, "good", string(got.Body))

	_, err = s.LatestArtifact("nothing.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

// =============================================================================
// File hashes
// =============================================================================

func TestFileHashes_BatchedAcrossChunks(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	insertTestRun(t, s, "r1", 0, RunRunning)

	var hashes []FileHash
	for i := range hashBatchRows*2 + 7 {
		hashes = append(hashes, FileHash{Path: fmt.Sprintf("pkg/m%03d.py", i), Language: "python", Hash: fmt.Sprintf("h%d", i)})
	}
	require.NoError(t, s.RecordFileHashes("r1", hashes))

	got, err := s.FileHashes("r1")
	require.NoError(t, err)
	assert.Len(t, got, len(hashes))
	assert.Equal(t, "h42", got["pkg/m042.py"])
}

func TestChangedFiles(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	insertTestRun(t, s, "a", 0, RunSuccess)
	insertTestRun(t, s, "b", 10, RunSuccess)

	require.NoError(t, s.RecordFileHashes("a", []FileHash{
		{Path: "keep.py", Language: "python", Hash: "1"},
		{Path: "edit.py", Language: "python", Hash: "1"},
		{Path: "gone.py", Language: "python", Hash: "1"},
	}))
	require.NoError(t, s.RecordFileHashes("b", []FileHash{
		{Path: "keep.py", Language: "python", Hash: "1"},
		{Path: "edit.py", Language: "python", Hash: "2"},
		{Path: "new.css", Language: "css", Hash: "3"},
	}))

	changes, err := s.ChangedFiles("a", "b")
	require.NoError(t, err)
	assert.Equal(t, []FileChange{
		{Path: "edit.py", Previous: "1", Current: "2"},
		{Path: "gone.py", Previous: "1"},
		{Path: "new.css", Current: "3"},
	}, changes)
}

// =============================================================================
// Deletion
// =============================================================================

func TestDeleteRunAndPrune(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	for i, id := range []string{"r1", "r2", "r3"} {
		insertTestRun(t, s, id, i, RunSuccess)
		_, err := s.PutArtifact(&Artifact{RunID: id, Phase: "merge", Name: "g.json", Body: []byte("{}")})
		require.NoError(t, err)
		require.NoError(t, s.RecordFileHashes(id, []FileHash{{Path: "a.py", Language: "python", Hash: id}}))
	}

	removed, err := s.Prune(0)
	require.NoError(t, err)
	assert.Zero(t, removed)

	removed, err = s.Prune(2)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	_, err = s.RunByID("r1")
	assert.ErrorIs(t, err, ErrNotFound)

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM artifacts WHERE run_id = 'r1'").Scan(&n))
	assert.Zero(t, n)
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM file_hashes WHERE run_id = 'r1'").Scan(&n))
	assert.Zero(t, n)

	require.NoError(t, s.DeleteRun("r3"))
	runs, err := s.Runs(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "r2", runs[0].ID)
}
