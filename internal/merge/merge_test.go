package merge

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpcoder1111/Spashta-CKG/internal/graph"
)

func TestCanonicalID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		node graph.Node
		want string
	}{
		{"file with path", graph.Node{ID: "app/models.py", Type: graph.NodeFile, Name: "models.py", FilePath: "app/models.py"}, "File:app/models.py"},
		{"template with path", graph.Node{ID: "t/index.html", Type: graph.NodeTemplate, Name: "index.html", FilePath: "t/index.html"}, "Template:t/index.html"},
		{"scoped symbol", graph.Node{ID: "app/models.py::Post", Type: graph.NodeClass, Name: "Post", FilePath: "app/models.py"}, "app/models.py::Post"},
		{"path without scope", graph.Node{ID: "x", Type: graph.NodeAsset, Name: "logo.png", FilePath: "static/logo.png"}, "Asset:static/logo.png::logo.png"},
		{"loose identity", graph.Node{ID: "e1", Type: graph.NodeEndpoint, Name: "/login"}, "Endpoint:/login"},
		{"file without path", graph.Node{ID: "f", Type: graph.NodeFile, Name: "f.py"}, "File:f.py"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CanonicalID(&tt.node))
		})
	}
}

func pythonFragment() *graph.Fragment {
	f := graph.NewFragment("python")
	f.Nodes = []graph.Node{
		{ID: "app/views.py", Type: graph.NodeFile, Name: "views.py", FilePath: "app/views.py", Hash: "h1"},
		{ID: "app/views.py::login", Type: graph.NodeFunction, Name: "login", FilePath: "app/views.py"},
	}
	f.Edges = []graph.Edge{
		{Type: "defines", From: "app/views.py", To: "app/views.py::login"},
		{Type: "defines", From: "app/views.py", To: "app/views.py::login"},
		{Type: "calls", From: "app/views.py::login", To: "app/views.py::login", CallLine: 4},
	}
	f.Ambiguities = []graph.Ambiguity{graph.NewAmbiguity(graph.KindCallTargetUnknown, "render", "r", "app/views.py::login", "", 0)}
	return f
}

func externalFragment() *graph.Fragment {
	f := graph.NewFragment("ext")
	f.Nodes = []graph.Node{
		{ID: "tpl", Type: graph.NodeTemplate, Name: "login.html", FilePath: "templates/login.html", Hash: "h2"},
		{ID: "ep-1", Type: graph.NodeEndpoint, Name: "/login"},
	}
	f.Edges = []graph.Edge{
		{Type: "submits_to", From: "tpl", To: "/login"},
		{Type: "references_asset", From: "login.html", To: "unknown-asset"},
	}
	return f
}

func TestMerge_LooseIdentityResolvesByName(t *testing.T) {
	t.Parallel()

	g, st := Merge([]*graph.Fragment{pythonFragment(), externalFragment()})

	assert.Equal(t, []string{
		"Template:templates/login.html",
		"Endpoint:/login",
		"File:app/views.py",
		"app/views.py::login",
	}, g.IDs())

	want := []graph.Edge{
		{Type: "submits_to", From: "Template:templates/login.html", To: "Endpoint:/login"},
		{Type: "references_asset", From: "Template:templates/login.html", To: "unknown-asset"},
		{Type: "defines", From: "File:app/views.py", To: "app/views.py::login"},
		{Type: "calls", From: "app/views.py::login", To: "app/views.py::login", CallLine: 4},
	}
	if diff := cmp.Diff(want, g.Edges); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}

	assert.Len(t, g.Ambiguities, 1)
	assert.Equal(t, Stats{
		Fragments:   2,
		Languages:   []string{"ext", "python"},
		InputNodes:  4,
		MergedNodes: 4,
		InputEdges:  5,
		MergedEdges: 4,
		Ambiguities: 1,
	}, st)
	assert.Equal(t, []string{"ext", "python"}, g.Meta["fragments_merged"])
}

func TestMerge_LaterNodeReplacesInPlace(t *testing.T) {
	t.Parallel()

	a := graph.NewFragment("a")
	a.Nodes = []graph.Node{
		{ID: "x.py", Type: graph.NodeFile, Name: "x.py", FilePath: "x.py", Hash: "old"},
		{ID: "x.py::f", Type: graph.NodeFunction, Name: "f"},
	}
	b := graph.NewFragment("b")
	b.Nodes = []graph.Node{
		{ID: "x.py", Type: graph.NodeFile, Name: "x.py", FilePath: "x.py", Hash: "new"},
	}

	g, st := Merge([]*graph.Fragment{b, a})
	assert.Equal(t, []string{"File:x.py", "x.py::f"}, g.IDs())
	n, ok := g.Node("File:x.py")
	require.True(t, ok)
	assert.Equal(t, "new", n.Hash)
	assert.Equal(t, 1, st.Collisions)
	assert.LessOrEqual(t, st.MergedNodes, st.InputNodes)
}

func TestMerge_DoesNotMutateFragments(t *testing.T) {
	t.Parallel()

	f := pythonFragment()
	Merge([]*graph.Fragment{f})
	assert.Equal(t, "app/views.py", f.Nodes[0].ID)
	assert.Equal(t, "app/views.py", f.Edges[0].From)
}

func TestMerge_Empty(t *testing.T) {
	t.Parallel()

	g, st := Merge(nil)
	assert.Equal(t, 0, g.Len())
	assert.Empty(t, g.Edges)
	assert.Equal(t, 0, st.Fragments)
}
