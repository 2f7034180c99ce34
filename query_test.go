package spashta

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpcoder1111/Spashta-CKG/internal/graph"
)

const viewsSource = "from app.models import Post\n" +
	"\n" +
	"\n" +
	"@login_required\n" +
	"def dashboard(request):\n" +
	"    return index(request)\n" +
	"\n" +
	"\n" +
	"def index(request):\n" +
	"    return Post.objects.all()\n"

func queryGraph() *graph.Graph {
	g := graph.New()
	g.Put(graph.Node{ID: "File:app/views.py", Type: graph.NodeFile, Name: "views.py", FilePath: "app/views.py", Hash: "v1"})
	g.Put(graph.Node{
		ID: "app/views.py::dashboard", Type: graph.NodeFunction, Name: "dashboard", FilePath: "app/views.py",
		LineStart: 4, LineEnd: 6, Docstring: "Show the dashboard.",
		Signature:     &graph.Signature{Args: []string{"request"}, Decorators: []string{"login_required"}},
		SemanticRoles: []string{"ProtectedView", "View"},
	})
	g.Put(graph.Node{ID: "app/views.py::index", Type: graph.NodeFunction, Name: "index", LineStart: 9, LineEnd: 10, SemanticRoles: []string{"View"}})
	g.Put(graph.Node{ID: "File:app/models.py", Type: graph.NodeFile, Name: "models.py", FilePath: "app/models.py", Hash: "m1"})
	g.Put(graph.Node{ID: "app/models.py::Post", Type: graph.NodeClass, Name: "Post", FilePath: "app/models.py", LineStart: 1, LineEnd: 2})
	g.Put(graph.Node{ID: "Template:templates/login.html", Type: graph.NodeTemplate, Name: "login.html", FilePath: "templates/login.html", Hash: "t1"})
	g.Put(graph.Node{
		ID: "templates/login.html::Endpoint::/login", Type: graph.NodeEndpoint, Name: "/login",
		Attributes: map[string]string{"tag": "form", "method": "POST"},
	})
	g.Put(graph.Node{ID: "escape.py::f", Type: graph.NodeFunction, Name: "f", FilePath: "../outside.py", LineStart: 1})
	for _, e := range []graph.Edge{
		{Type: "defines", From: "File:app/views.py", To: "app/views.py::dashboard"},
		{Type: "defines", From: "File:app/views.py", To: "app/views.py::index"},
		{Type: "defines", From: "File:app/models.py", To: "app/models.py::Post"},
		{Type: "imports", From: "File:app/views.py", To: "app/models.py::Post"},
		{Type: "calls", From: "app/views.py::dashboard", To: "app/views.py::index", CallLine: 6},
		{Type: "calls", From: "app/views.py::index", To: "app/services.py::load", CallLine: 10},
		{Type: "defines", From: "Template:templates/login.html", To: "templates/login.html::Endpoint::/login"},
	} {
		g.AddEdge(e)
	}
	g.Ambiguities = []graph.Ambiguity{
		graph.NewAmbiguity(graph.KindCallTargetUnknown, "render", "r", "app/views.py::index", "", 0),
	}
	g.Meta = map[string]any{"source": "test"}
	return g
}

func newTestQuery(t *testing.T) *QueryBuilder {
	t.Helper()
	root := t.TempDir()
	p := filepath.Join(root, "app", "views.py")
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(viewsSource), 0o644))
	return NewQueryBuilder(queryGraph(), root)
}

func ids(nodes []*graph.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

func TestSearch(t *testing.T) {
	t.Parallel()

	q := newTestQuery(t)
	tests := []struct {
		name       string
		term, kind string
		want       []string
	}{
		{"substring over name and id", "DASH", "", []string{"app/views.py::dashboard"}},
		{"substring with type", "views", "function", []string{"app/views.py::dashboard", "app/views.py::index"}},
		{"scoped ids are not filters", "app/views.py::index", "", []string{"app/views.py::index"}},
		{"attribute", "tag:form", "", []string{"templates/login.html::Endpoint::/login"}},
		{"attribute case-insensitive", "method:post", "", []string{"templates/login.html::Endpoint::/login"}},
		{"decorator", "decorator:login", "", []string{"app/views.py::dashboard"}},
		{"decorator shorthand", "@login_required", "", []string{"app/views.py::dashboard"}},
		{"role", "role:view", "", []string{"app/views.py::dashboard", "app/views.py::index"}},
		{"field", "name:post", "", []string{"app/models.py::Post"}},
		{"node type field", "node_type:template", "", []string{"Template:templates/login.html"}},
		{"no match", "zzz", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ids(q.Search(tt.term, tt.kind)))
		})
	}
}

func TestSearch_CapsResults(t *testing.T) {
	t.Parallel()

	g := graph.New()
	for i := range MaxSearchResults + 10 {
		g.Put(graph.Node{ID: "m.py::f" + string(rune('a'+i%26)) + string(rune('a'+i/26)), Type: graph.NodeFunction, Name: "f"})
	}
	q := NewQueryBuilder(g, t.TempDir())
	assert.Len(t, q.Search("f", ""), MaxSearchResults)
}

func TestLocate(t *testing.T) {
	t.Parallel()

	q := newTestQuery(t)
	loc, err := q.Locate("app/views.py::dashboard")
	require.NoError(t, err)
	assert.Equal(t, &Location{ID: "app/views.py::dashboard", File: "app/views.py", LineStart: 4, LineEnd: 6, Docstring: "Show the dashboard."}, loc)

	_, err = q.Locate("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRead(t *testing.T) {
	t.Parallel()

	q := newTestQuery(t)

	s, err := q.Read("app/views.py::dashboard")
	require.NoError(t, err)
	assert.Equal(t, ModeSnippet, s.Mode)
	assert.Equal(t, "4-6", s.Lines)
	assert.Equal(t, "@login_required\ndef dashboard(request):\n    return index(request)\n", s.Content)

	s, err = q.Read("app/views.py::index")
	require.NoError(t, err, "file path is inferred from the id")
	assert.Equal(t, "app/views.py", s.File)
	assert.Equal(t, "def index(request):\n    return Post.objects.all()\n", s.Content)

	s, err = q.Read("File:app/views.py")
	require.NoError(t, err)
	assert.Equal(t, ModeFullFile, s.Mode)
	assert.Equal(t, viewsSource, s.Content)

	_, err = q.Read("app/models.py::Post")
	assert.Error(t, err, "missing file")

	_, err = q.Read("escape.py::f")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside the project root")

	_, err = q.Read("templates/login.html::Endpoint::/login")
	assert.Error(t, err)

	_, err = q.Read("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRead_OutOfBounds(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.py"), []byte("x = 1\n"), 0o644))
	g := graph.New()
	g.Put(graph.Node{ID: "a.py::y", Type: graph.NodeVariable, Name: "y", FilePath: "a.py", LineStart: 5})
	_, err := NewQueryBuilder(g, root).Read("a.py::y")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of bounds")
}

func TestDetails_ReturnsCopy(t *testing.T) {
	t.Parallel()

	q := newTestQuery(t)
	n, err := q.Details("app/views.py::dashboard")
	require.NoError(t, err)
	assert.Equal(t, []string{"login_required"}, n.Signature.Decorators)

	n.SemanticRoles[0] = "Mutated"
	again, err := q.Details("app/views.py::dashboard")
	require.NoError(t, err)
	assert.Equal(t, "ProtectedView", again.SemanticRoles[0])
}

func TestImpactAndDependencies(t *testing.T) {
	t.Parallel()

	q := newTestQuery(t)

	got, err := q.Impact("app/views.py::index", DefaultImpactDepth)
	require.NoError(t, err)
	assert.Equal(t, []Relation{
		{ID: "File:app/views.py", Relation: "defines", Depth: 1, NodeType: "File"},
		{ID: "app/views.py::dashboard", Relation: "calls", Depth: 1, NodeType: "Function"},
	}, got)

	got, err = q.Dependencies("File:app/views.py", 2)
	require.NoError(t, err)
	assert.Equal(t, []Relation{
		{ID: "app/views.py::dashboard", Relation: "defines", Depth: 1, NodeType: "Function"},
		{ID: "app/views.py::index", Relation: "defines", Depth: 1, NodeType: "Function"},
		{ID: "app/models.py::Post", Relation: "imports", Depth: 1, NodeType: "Class"},
		{ID: "app/services.py::load", Relation: "calls", Depth: 2, NodeType: "Unknown"},
	}, got)

	got, err = q.Dependencies("File:app/views.py", 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = q.Impact("app/views.py::index", -1)
	assert.Error(t, err)
	_, err = q.Dependencies("nope", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTrace_CyclesTerminate(t *testing.T) {
	t.Parallel()

	g := graph.New()
	g.Put(graph.Node{ID: "a.py::a", Type: graph.NodeFunction, Name: "a"})
	g.Put(graph.Node{ID: "a.py::b", Type: graph.NodeFunction, Name: "b"})
	g.AddEdge(graph.Edge{Type: "calls", From: "a.py::a", To: "a.py::b"})
	g.AddEdge(graph.Edge{Type: "calls", From: "a.py::b", To: "a.py::a"})

	got, err := NewQueryBuilder(g, "").Dependencies("a.py::a", 1000)
	require.NoError(t, err)
	assert.Equal(t, []Relation{{ID: "a.py::b", Relation: "calls", Depth: 1, NodeType: "Function"}}, got)
}

func TestCallGraph(t *testing.T) {
	t.Parallel()

	q := newTestQuery(t)
	cg, err := q.CallGraph("app/views.py::index")
	require.NoError(t, err)
	assert.Equal(t, &CallGraph{
		NodeID:   "app/views.py::index",
		Calls:    []CallSite{{ID: "app/services.py::load", Name: "load", NodeType: "Unknown", CallLine: 10}},
		CalledBy: []CallSite{{ID: "app/views.py::dashboard", Name: "dashboard", NodeType: "Function", CallLine: 6}},
		Summary:  CallSummary{OutgoingCount: 1, IncomingCount: 1},
	}, cg)

	cg, err = q.CallGraph("app/models.py::Post")
	require.NoError(t, err)
	assert.Empty(t, cg.Calls)
	assert.Empty(t, cg.CalledBy)
}

func TestStats(t *testing.T) {
	t.Parallel()

	s := newTestQuery(t).Stats()
	assert.Equal(t, 8, s.Nodes)
	assert.Equal(t, 7, s.Edges)
	assert.Equal(t, 1, s.Ambiguities)
	assert.Equal(t, 3, s.NodeTypes["Function"])
	assert.Equal(t, 4, s.EdgeTypes["defines"])
	assert.Equal(t, map[string]int{graph.KindCallTargetUnknown: 1}, s.AmbiguityKinds)
	assert.Equal(t, map[string]int{"ProtectedView": 1, "View": 2}, s.Roles)
	assert.Equal(t, "test", s.Meta["source"])
}

func TestListFiles(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []FileEntry{
		{Path: "app/models.py", ID: "File:app/models.py", NodeType: "File", Hash: "m1"},
		{Path: "app/views.py", ID: "File:app/views.py", NodeType: "File", Hash: "v1"},
		{Path: "templates/login.html", ID: "Template:templates/login.html", NodeType: "Template", Hash: "t1"},
	}, newTestQuery(t).ListFiles())
}

func TestLoadQuery_RequiresEnrichedGraph(t *testing.T) {
	t.Parallel()

	out := t.TempDir()
	require.NoError(t, graph.WriteJSON(filepath.Join(out, ArtifactMerged), queryGraph()))
	_, err := LoadQuery(out, out)
	require.ErrorIs(t, err, graph.ErrNoArtifact)

	q, err := LoadMergedQuery(out, out)
	require.NoError(t, err)
	assert.Equal(t, ArtifactMerged, q.Source())
	assert.Equal(t, 8, q.Graph().Len())

	require.NoError(t, graph.WriteJSON(filepath.Join(out, ArtifactEnriched), queryGraph()))
	q, err = LoadQuery(out, out)
	require.NoError(t, err)
	assert.Equal(t, ArtifactEnriched, q.Source())
}
