package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpcoder1111/Spashta-CKG/internal/graph"
	"github.com/mpcoder1111/Spashta-CKG/internal/schema"
)

func newContext(t *testing.T) *Context {
	t.Helper()
	m, err := schema.LoadMapping("python")
	require.NoError(t, err)
	return NewContext(schema.Default(), m, nil)
}

func TestRegistry_FirstRegistrationWins(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	assert.True(t, r.Register("", graph.Node{ID: "a.py", Type: graph.NodeFile}))
	assert.True(t, r.Register("a.py", graph.Node{ID: "a.py::X", Type: graph.NodeVariable, Name: "X"}))
	assert.False(t, r.Register("a.py", graph.Node{ID: "a.py::X", Type: graph.NodeClass, Name: "X"}))

	assert.Equal(t, graph.NodeVariable, r.Type("a.py::X"))
	assert.Equal(t, graph.NodeUnknown, r.Type("nope"))
	assert.Equal(t, []string{"a.py::X"}, r.Children("a.py"))
	assert.Equal(t, []string{"a.py", "a.py::X"}, r.IDs())
	assert.Equal(t, 2, r.Len())
}

func TestContext_EmitEdge(t *testing.T) {
	t.Parallel()

	c := newContext(t)
	c.Register("", graph.Node{ID: "a.py", Type: graph.NodeFile, Name: "a.py", Hash: "h"})
	c.Register("a.py", graph.Node{ID: "a.py::C", Type: graph.NodeClass, Name: "C"})

	assert.True(t, c.EmitEdge("defines_class", "a.py", "a.py::C", 0))
	assert.True(t, c.EmitEdge("defines_class", "a.py", "a.py::C", 0))
	assert.False(t, c.EmitEdge("calls", "a.py", "ghost", 3))
	require.Len(t, c.Fragment().Edges, 1)
	assert.Equal(t, "defines", c.Fragment().Edges[0].Type)
	assert.Empty(t, c.Fragment().Ambiguities)

	assert.False(t, c.EmitEdge("contains_nested", "a.py::C", "a.py::C", 0))
	assert.False(t, c.EmitEdge("inherits_from", "a.py", "a.py::C", 0))
	amb := c.Fragment().Ambiguities
	require.Len(t, amb, 2)
	assert.Equal(t, graph.KindMappingViolation, amb[0].Kind)
	assert.Equal(t, graph.KindSchemaViolation, amb[1].Kind)
	assert.Equal(t, graph.ConfidenceStructuralViolation, amb[1].Confidence)
	assert.Equal(t, "a.py", amb[1].SourceScope)
	assert.NotEqual(t, amb[0].ID, amb[1].ID)
}

func TestContext_LogAndHash(t *testing.T) {
	t.Parallel()

	c := newContext(t)
	c.Log(LogParseError, "x.py", "invalid syntax at line 1")
	require.Len(t, c.Fragment().Logs, 1)
	assert.Equal(t, graph.LogEntry{Type: "parse_error", File: "x.py", Message: "invalid syntax at line 1"}, c.Fragment().Logs[0])

	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", ContentHash(nil))

	_, ok := Grammar("css")
	assert.True(t, ok)
	_, ok = Grammar("cobol")
	assert.False(t, ok)
}
