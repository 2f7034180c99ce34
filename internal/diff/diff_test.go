package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mpcoder1111/Spashta-CKG/internal/graph"
)

func twoFiles(hashA, hashB string) *graph.Graph {
	g := graph.New()
	g.Put(graph.Node{ID: "File:a.py", Type: graph.NodeFile, Name: "a.py", Hash: hashA})
	g.Put(graph.Node{ID: "a.py::A", Type: graph.NodeClass, Name: "A"})
	g.Put(graph.Node{ID: "a.py::A::run", Type: graph.NodeMethod, Name: "run"})
	g.Put(graph.Node{ID: "File:b.py", Type: graph.NodeFile, Name: "b.py", Hash: hashB})
	g.Put(graph.Node{ID: "b.py::f", Type: graph.NodeFunction, Name: "f"})
	g.AddEdge(graph.Edge{Type: "defines", From: "File:a.py", To: "a.py::A"})
	g.AddEdge(graph.Edge{Type: "contains_member", From: "a.py::A", To: "a.py::A::run"})
	g.AddEdge(graph.Edge{Type: "defines", From: "File:b.py", To: "b.py::f"})
	g.AddEdge(graph.Edge{Type: "calls", From: "a.py::A::run", To: "b.py::f"})
	return g
}

func assertPartition(t *testing.T, current, previous *graph.Graph, r *Report) {
	t.Helper()
	union := map[string]bool{}
	for _, id := range current.IDs() {
		union[id] = true
	}
	if previous != nil {
		for _, id := range previous.IDs() {
			union[id] = true
		}
	}
	assert.Len(t, r.NodeStatus, len(union))
	st := r.Stats
	assert.Equal(t, len(union), st.Added+st.Modified+st.Unchanged+st.Removed)
}

func TestCompute_Baseline(t *testing.T) {
	t.Parallel()

	cur := twoFiles("1", "2")
	r := Compute(cur, nil)
	assert.True(t, r.Baseline)
	assert.Equal(t, Stats{Added: 5}, r.Stats)
	assert.Equal(t, Added, r.FileStatus["File:a.py"])
	assertPartition(t, cur, nil, r)
}

func TestCompute_OnlyEditedFileIsModified(t *testing.T) {
	t.Parallel()

	prev := twoFiles("1", "2")
	cur := twoFiles("1", "2-edited")
	r := Compute(cur, prev)

	assert.Equal(t, Unchanged, r.FileStatus["File:a.py"])
	assert.Equal(t, Modified, r.FileStatus["File:b.py"])
	assert.Equal(t, Unchanged, r.Of("a.py::A"))
	assert.Equal(t, Unchanged, r.Of("a.py::A::run"))
	assert.Equal(t, Modified, r.Of("b.py::f"))
	assert.Equal(t, []string{"File:b.py", "b.py::f"}, r.IDs(Modified))
	assertPartition(t, cur, prev, r)
}

func TestCompute_AddedAndRemoved(t *testing.T) {
	t.Parallel()

	prev := twoFiles("1", "2")
	prev.Put(graph.Node{ID: "b.py::gone", Type: graph.NodeFunction, Name: "gone"})
	cur := twoFiles("1", "2")
	cur.Put(graph.Node{ID: "File:c.py", Type: graph.NodeFile, Name: "c.py", Hash: "3"})

	r := Compute(cur, prev)
	assert.Equal(t, Removed, r.Of("b.py::gone"))
	assert.Equal(t, Added, r.Of("File:c.py"))
	assert.Equal(t, Added, r.FileStatus["File:c.py"])
	assert.Equal(t, Stats{Added: 1, Unchanged: 5, Removed: 1}, r.Stats)
	assertPartition(t, cur, prev, r)
}

func TestCompute_RemovedFile(t *testing.T) {
	t.Parallel()

	prev := twoFiles("1", "2")
	cur := graph.New()
	cur.Put(graph.Node{ID: "File:a.py", Type: graph.NodeFile, Name: "a.py", Hash: "1"})

	r := Compute(cur, prev)
	assert.Equal(t, Removed, r.FileStatus["File:b.py"])
	assert.Equal(t, Removed, r.Of("b.py::f"))
	assertPartition(t, cur, prev, r)
}

func TestCompute_MissingHashAndOrphansAreModified(t *testing.T) {
	t.Parallel()

	prev := twoFiles("", "2")
	prev.Put(graph.Node{ID: "Endpoint:/login", Type: graph.NodeEndpoint, Name: "/login"})
	cur := twoFiles("1", "2")
	cur.Put(graph.Node{ID: "Endpoint:/login", Type: graph.NodeEndpoint, Name: "/login"})

	r := Compute(cur, prev)
	assert.Equal(t, Modified, r.FileStatus["File:a.py"])
	assert.Equal(t, Modified, r.Of("a.py::A"))
	assert.Equal(t, Modified, r.Of("Endpoint:/login"))
	assert.Equal(t, Unchanged, r.Of("b.py::f"))
	assertPartition(t, cur, prev, r)
}
