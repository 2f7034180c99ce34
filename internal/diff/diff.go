// Package diff classifies every node of a new merged graph against the
// previous enriched graph. File-kind nodes are compared by content hash and
// their status propagates to everything they contain.
package diff

import (
	"sort"

	"github.com/mpcoder1111/Spashta-CKG/internal/graph"
)

// Status is a node or file classification.
type Status string

const (
	Added     Status = "ADDED"
	Modified  Status = "MODIFIED"
	Unchanged Status = "UNCHANGED"
	Removed   Status = "REMOVED"
)

// Stats counts node statuses. The four counts partition the id union.
type Stats struct {
	Added     int `json:"added"`
	Modified  int `json:"modified"`
	Unchanged int `json:"unchanged"`
	Removed   int `json:"removed"`
}

// Report is the diff phase artifact.
type Report struct {
	Status     string            `json:"status"`
	Baseline   bool              `json:"baseline"`
	FileStatus map[string]Status `json:"file_status"`
	NodeStatus map[string]Status `json:"node_status"`
	Stats      Stats             `json:"stats"`
}

// Of returns the status of id, or "" when id is in neither graph.
func (r *Report) Of(id string) Status {
	return r.NodeStatus[id]
}

// IDs returns the ids with status s, sorted.
func (r *Report) IDs(s Status) []string {
	var out []string
	for id, st := range r.NodeStatus {
		if st == s {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func newReport() *Report {
	return &Report{
		Status:     "success",
		FileStatus: make(map[string]Status),
		NodeStatus: make(map[string]Status),
	}
}

func (r *Report) set(id string, s Status) {
	r.NodeStatus[id] = s
	switch s {
	case Added:
		r.Stats.Added++
	case Modified:
		r.Stats.Modified++
	case Unchanged:
		r.Stats.Unchanged++
	case Removed:
		r.Stats.Removed++
	}
}

// Compute diffs current against previous. A nil previous is the baseline
// case: every node is ADDED.
//
// A node present in both graphs is UNCHANGED only when its owning file is
// UNCHANGED. Nodes no file reaches through containment edges are always
// MODIFIED.
func Compute(current, previous *graph.Graph) *Report {
	r := newReport()
	if previous == nil {
		r.Baseline = true
		for _, n := range current.Nodes() {
			r.set(n.ID, Added)
			if n.Type.IsFileKind() {
				r.FileStatus[n.ID] = Added
			}
		}
		return r
	}

	newFiles := fileHashes(current)
	oldFiles := fileHashes(previous)
	for id, h := range newFiles {
		old, ok := oldFiles[id]
		switch {
		case !ok:
			r.FileStatus[id] = Added
		case h == "" || old == "":
			r.FileStatus[id] = Modified
		case h != old:
			r.FileStatus[id] = Modified
		default:
			r.FileStatus[id] = Unchanged
		}
	}
	for id := range oldFiles {
		if _, ok := newFiles[id]; !ok {
			r.FileStatus[id] = Removed
		}
	}

	owners := graph.Owners(current)
	for _, n := range current.Nodes() {
		if !previous.Has(n.ID) {
			r.set(n.ID, Added)
			continue
		}
		owner, ok := owners[n.ID]
		if !ok {
			r.set(n.ID, Modified)
			continue
		}
		switch r.FileStatus[owner] {
		case Unchanged:
			r.set(n.ID, Unchanged)
		default:
			r.set(n.ID, Modified)
		}
	}
	for _, n := range previous.Nodes() {
		if !current.Has(n.ID) {
			r.set(n.ID, Removed)
		}
	}
	return r
}

func fileHashes(g *graph.Graph) map[string]string {
	out := make(map[string]string)
	for _, n := range g.Nodes() {
		if n.Type.IsFileKind() {
			out[n.ID] = n.Hash
		}
	}
	return out
}
