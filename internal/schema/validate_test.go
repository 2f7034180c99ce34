package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpcoder1111/Spashta-CKG/internal/graph"
)

func issues(list []Issue) []string {
	out := make([]string, 0, len(list))
	for _, i := range list {
		out = append(out, i.Issue)
	}
	return out
}

func TestValidate_CleanFragmentPasses(t *testing.T) {
	t.Parallel()

	f := graph.NewFragment("python")
	f.Nodes = append(f.Nodes,
		graph.Node{ID: "a.py", Type: graph.NodeFile, Name: "a.py", Hash: "h", Confidence: graph.ConfidenceStructural},
		graph.Node{ID: "a.py::C", Type: graph.NodeClass, Name: "C", Confidence: graph.ConfidenceStructural},
	)
	f.Edges = append(f.Edges, graph.Edge{Type: "defines", From: "a.py", To: "a.py::C"})
	f.Ambiguities = append(f.Ambiguities, graph.NewAmbiguity(graph.KindCallTargetUnknown, "render", "r", "a.py", "", 0))

	r := Validate(Default(), "python", f)
	assert.True(t, r.Passed())
	assert.NoError(t, r.Err())
	assert.Equal(t, 2, r.NodeCount)
	assert.Equal(t, 1, r.EdgeCount)
	assert.Equal(t, 1, r.AmbiguityCount)
	assert.Empty(t, r.SchemaErrors)
}

func TestValidate_ReportsEveryErrorClass(t *testing.T) {
	t.Parallel()

	doc := `{
	  "nodes": [
	    {"name": "noid", "node_type": "Class"},
	    {"id": "notype", "name": "notype"},
	    {"id": "w", "node_type": "Widget", "name": "w"},
	    {"id": "f.py", "node_type": "File", "name": "f.py"},
	    {"id": "f.py::C", "node_type": "Class", "name": "C"},
	    {"id": "f.py::g", "node_type": "Function", "name": "g"}
	  ],
	  "edges": [
	    {"edge": "defines", "from": "f.py"},
	    {"edge": "bogus", "from": "f.py", "to": "f.py::C"},
	    {"edge": "defines", "from": "ghost", "to": "f.py::C"},
	    {"edge": "defines", "from": "f.py", "to": "ghost"},
	    {"edge": "extends", "from": "f.py::g", "to": "f.py::g"}
	  ],
	  "ambiguities": [
	    {"id": "1", "kind": "call_target_unknown"},
	    {"id": "2", "kind": "k", "reason": "r", "confidence": "certain"}
	  ]
	}`
	var f graph.Fragment
	require.NoError(t, json.Unmarshal([]byte(doc), &f))

	r := Validate(Default(), "ext", &f)
	assert.False(t, r.Passed())
	require.Error(t, r.Err())
	assert.Equal(t, []string{
		"Missing Node ID",
		"Missing Node Type",
		"Invalid Node Type",
		"Missing File Hash",
		"Malformed Edge",
		"Invalid Edge Type",
		"Orphaned Edge Source",
		"Orphaned Edge Target",
		"Invalid Edge Relationship (Source)",
		"Invalid Edge Relationship (Target)",
		"Malformed Ambiguity Ticket",
	}, issues(r.SchemaErrors))
	assert.Equal(t, []string{"Non-Standard Ambiguity Confidence"}, issues(r.SchemaWarnings))
}
