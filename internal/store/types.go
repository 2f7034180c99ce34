package store

import "time"

// Run statuses.
const (
	RunRunning = "running"
	RunSuccess = "success"
	RunFailed  = "failed"
)

type Run struct {
	ID         string
	Root       string
	Mode       string
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Artifact is one persisted phase output. Body is only populated by
// Artifact and LatestArtifact.
type Artifact struct {
	ID        int64
	RunID     string
	Phase     string
	Name      string
	Status    string
	Hash      string
	Body      []byte
	CreatedAt time.Time
}

type FileHash struct {
	Path     string
	Language string
	Hash     string
}

// FileChange compares one path across two runs. An empty hash means the
// path was absent from that run.
type FileChange struct {
	Path     string
	Previous string
	Current  string
}
