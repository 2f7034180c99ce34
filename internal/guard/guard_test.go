package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpcoder1111/Spashta-CKG/internal/graph"
)

func sample() *graph.Graph {
	g := graph.New()
	g.Put(graph.Node{ID: "File:a.py", Type: graph.NodeFile, Name: "a.py", Hash: "1"})
	g.Put(graph.Node{ID: "a.py::A", Type: graph.NodeClass, Name: "A"})
	g.AddEdge(graph.Edge{Type: "defines", From: "File:a.py", To: "a.py::A"})
	g.Ambiguities = []graph.Ambiguity{graph.NewAmbiguity(graph.KindCallTargetUnknown, "x", "r", "a.py", "", 0)}
	return g
}

func kinds(r *Report) []string {
	out := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		out = append(out, v.Type)
	}
	return out
}

func TestVerify_RolesOnlyPass(t *testing.T) {
	t.Parallel()

	merged := sample()
	enriched := merged.Clone()
	n, _ := enriched.Node("a.py::A")
	n.AddRole("DataModel")

	r := Verify(merged, enriched)
	assert.True(t, r.Passed())
	assert.NoError(t, r.Err())
	assert.Empty(t, r.Violations)
}

func TestVerify_DetectsEveryKind(t *testing.T) {
	t.Parallel()

	merged := sample()
	enriched := graph.New()
	enriched.Put(graph.Node{ID: "File:a.py", Type: graph.NodeTemplate, Name: "a.py"})
	enriched.Put(graph.Node{ID: "extra", Type: graph.NodeEndpoint, Name: "extra"})
	enriched.Put(graph.Node{ID: "extra2", Type: graph.NodeEndpoint, Name: "extra2"})
	enriched.AddEdge(graph.Edge{Type: "calls", From: "File:a.py", To: "extra"})

	r := Verify(merged, enriched)
	assert.False(t, r.Passed())
	require.ErrorIs(t, r.Err(), ErrEquivalenceFailed)
	assert.Equal(t, []string{
		NodeCountMismatch,
		NodeTypeChanged,
		NodeRemoved,
		NodeAdded,
		NodeAdded,
		EdgeRemoved,
		EdgeAdded,
		AmbiguityMismatch,
	}, kinds(r))
}

func TestVerify_AmbiguityIdentity(t *testing.T) {
	t.Parallel()

	merged := sample()
	enriched := merged.Clone()
	enriched.Ambiguities = []graph.Ambiguity{graph.NewAmbiguity(graph.KindCallTargetUnknown, "y", "r", "a.py", "", 0)}

	r := Verify(merged, enriched)
	assert.Equal(t, []string{AmbiguityMismatch}, kinds(r))
}
