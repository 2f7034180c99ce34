package spashta

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpcoder1111/Spashta-CKG/internal/config"
	"github.com/mpcoder1111/Spashta-CKG/internal/diff"
	"github.com/mpcoder1111/Spashta-CKG/internal/graph"
	"github.com/mpcoder1111/Spashta-CKG/internal/guard"
	"github.com/mpcoder1111/Spashta-CKG/internal/store"
)

var projectFiles = map[string]string{
	"app/models.py": "class Base:\n    pass\n\n\nclass Post(Base):\n    pass\n",
	"app/views.py": "from app.models import Post\n\n\n" +
		"def index(request):\n    \"\"\"List posts.\"\"\"\n    return render(request, \"index.html\")\n",
	"templates/index.html": "<html>\n<head>\n<link rel=\"stylesheet\" href=\"/static/site.css\">\n</head>\n" +
		"<body>\n<form action=\"/login\" method=\"POST\"></form>\n</body>\n</html>\n",
	"static/site.css":   ".btn { color: red; }\n#main { margin: 0; }\n",
	"README.md":         "not a source\n",
	"node_modules/x.py": "def ignored():\n    pass\n",
}

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		writeSource(t, root, rel, content)
	}
	return root
}

func writeSource(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func testProfile(root string) *config.Profile {
	p := config.Default(root)
	p.Frameworks = []string{"django"}
	p.Workers = 2
	return p
}

func newTestEngine(t *testing.T, p *config.Profile, opts ...Option) *Engine {
	t.Helper()
	e, err := New(p.ProjectRoot, append([]Option{WithProfile(p)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func readArtifact(t *testing.T, e *Engine, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(e.outPath(name))
	require.NoError(t, err, name)
	return data
}

func TestNew_RejectsInvalidProfile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	p := config.Default(root)
	p.Languages = []string{"cobol"}
	_, err := New(root, WithProfile(p))
	require.ErrorIs(t, err, config.ErrInvalidProfile)

	p = config.Default(root)
	p.Frameworks = []string{"rails"}
	_, err = New(root, WithProfile(p))
	require.ErrorIs(t, err, config.ErrInvalidProfile)
}

func TestNew_LoadsProfileFromDisk(t *testing.T) {
	t.Parallel()

	root := writeProject(t, map[string]string{
		".spashta/profile.yaml": "languages: [python]\nframeworks: [flask]\ncache:\n  enabled: false\n",
	})
	e, err := New(root)
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, []string{"python"}, e.Profile().Languages)
	assert.Len(t, e.builders, 1)
	assert.Nil(t, e.cache)
}

func TestRun_PublishesEveryArtifact(t *testing.T) {
	t.Parallel()

	root := writeProject(t, projectFiles)
	e := newTestEngine(t, testProfile(root))

	s, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, store.RunSuccess, s.Status)
	assert.Equal(t, ModeRun, s.Mode)
	assert.Equal(t, guard.StatusPass, s.Equivalence)

	langs := make([]string, 0, len(s.Languages))
	for _, l := range s.Languages {
		langs = append(langs, l.Language)
		assert.Equal(t, SourceBuilder, l.Source)
		assert.Equal(t, "pass", l.Status)
	}
	assert.Equal(t, []string{"css", "html", "python"}, langs)

	for _, name := range []string{
		FragmentPath("python"), FragmentPath("html"), FragmentPath("css"),
		ValidationPath("python"), ArtifactMerged, ArtifactDiff, ArtifactEnrichment,
		ArtifactEquivalence, ArtifactEnriched, ArtifactSummary, ArtifactMetrics,
	} {
		assert.FileExists(t, e.outPath(name))
	}

	merged, err := graph.ReadGraph(e.outPath(ArtifactMerged))
	require.NoError(t, err)
	assert.True(t, merged.Has("File:app/models.py"))
	assert.True(t, merged.Has("app/models.py::Post"))
	assert.False(t, merged.Has("File:node_modules/x.py"), "excluded directories are not discovered")

	enriched, err := graph.ReadGraph(e.outPath(ArtifactEnriched))
	require.NoError(t, err)
	post, ok := enriched.Node("app/models.py::Post")
	require.True(t, ok)
	assert.Contains(t, post.SemanticRoles, "DataModel")
	assert.Equal(t, merged.IDs(), enriched.IDs())

	var d diff.Report
	require.NoError(t, graph.ReadJSON(e.outPath(ArtifactDiff), &d))
	assert.True(t, d.Baseline)
	assert.Equal(t, merged.Len(), d.Stats.Added)

	run, err := e.History().LatestRun(store.RunSuccess)
	require.NoError(t, err)
	assert.Equal(t, s.RunID, run.ID)
	arts, err := e.History().ArtifactsByRun(s.RunID)
	require.NoError(t, err)
	assert.Len(t, arts, len(s.Artifacts)+1)
}

func TestRun_RepeatedRunsAreByteIdentical(t *testing.T) {
	t.Parallel()

	root := writeProject(t, projectFiles)
	e := newTestEngine(t, testProfile(root))
	ctx := context.Background()

	_, err := e.Run(ctx)
	require.NoError(t, err)
	first := map[string][]byte{}
	for _, name := range []string{ArtifactMerged, ArtifactEnriched, FragmentPath("python"), FragmentPath("html"), FragmentPath("css")} {
		first[name] = readArtifact(t, e, name)
	}

	s, err := e.Run(ctx)
	require.NoError(t, err)
	for name, want := range first {
		assert.Equal(t, string(want), string(readArtifact(t, e, name)), name)
	}
	for _, l := range s.Languages {
		assert.Equal(t, SourceCache, l.Source, l.Language)
	}
	assert.Empty(t, s.ChangedFiles)

	var d diff.Report
	require.NoError(t, graph.ReadJSON(e.outPath(ArtifactDiff), &d))
	assert.False(t, d.Baseline)
	assert.Zero(t, d.Stats.Added+d.Stats.Modified+d.Stats.Removed)
}

func TestRun_EditingOneFileModifiesOnlyIt(t *testing.T) {
	t.Parallel()

	root := writeProject(t, projectFiles)
	e := newTestEngine(t, testProfile(root))
	ctx := context.Background()

	_, err := e.Run(ctx)
	require.NoError(t, err)
	writeSource(t, root, "app/views.py", projectFiles["app/views.py"]+"\n\ndef about(request):\n    pass\n")

	s, err := e.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"app/views.py"}, s.ChangedFiles)

	var d diff.Report
	require.NoError(t, graph.ReadJSON(e.outPath(ArtifactDiff), &d))
	assert.Equal(t, diff.Modified, d.FileStatus["File:app/views.py"])
	assert.Equal(t, diff.Unchanged, d.FileStatus["File:app/models.py"])
	assert.Equal(t, diff.Added, d.NodeStatus["app/views.py::about"])
	assert.Equal(t, diff.Unchanged, d.NodeStatus["app/models.py::Post"])

	for _, l := range s.Languages {
		want := SourceCache
		if l.Language == "python" {
			want = SourceBuilder
		}
		assert.Equal(t, want, l.Source, l.Language)
	}
	require.NotNil(t, s.Enrichment)
	assert.Equal(t, "incremental", s.Enrichment.Mode)
}

func TestRun_InvalidExternalFragmentAbortsBeforeMerge(t *testing.T) {
	t.Parallel()

	root := writeProject(t, projectFiles)
	ext := filepath.Join(t.TempDir(), "legacy.json")
	require.NoError(t, os.WriteFile(ext, []byte(`{"nodes":[{"id":"w","node_type":"Widget","name":"w"}],"edges":[],"ambiguities":[]}`), 0o644))
	e := newTestEngine(t, testProfile(root), WithExternalFragments(ext))

	s, err := e.Run(context.Background())
	require.ErrorIs(t, err, ErrValidationFailed)
	assert.Contains(t, err.Error(), "legacy")
	assert.Equal(t, store.RunFailed, s.Status)

	assert.FileExists(t, e.outPath(ValidationPath("legacy")))
	assert.NoFileExists(t, e.outPath(ArtifactMerged))
	assert.NoFileExists(t, e.outPath(ArtifactEnriched))

	_, err = e.History().LatestRun(store.RunSuccess)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRun_ExternalFragmentIsMerged(t *testing.T) {
	t.Parallel()

	root := writeProject(t, projectFiles)
	ext := filepath.Join(t.TempDir(), "legacy.json")
	doc := `{"nodes":[
	  {"id":"tpl","node_type":"Template","name":"old.html","file_path":"legacy/old.html","hash":"h"},
	  {"id":"ep","node_type":"Endpoint","name":"/old"}
	],"edges":[{"type":"submits_to","from":"tpl","to":"ep"}],"ambiguities":[]}`
	require.NoError(t, os.WriteFile(ext, []byte(doc), 0o644))
	e := newTestEngine(t, testProfile(root), WithExternalFragments(ext))

	s, err := e.Run(context.Background())
	require.NoError(t, err)
	last := s.Languages[len(s.Languages)-1]
	assert.Equal(t, "legacy", last.Language)
	assert.Equal(t, SourceExternal, last.Source)

	merged, err := graph.ReadGraph(e.outPath(ArtifactMerged))
	require.NoError(t, err)
	assert.True(t, merged.Has("Template:legacy/old.html"))
	assert.Contains(t, merged.Meta["fragments_merged"], "legacy")
}

func TestRun_ExternalFragmentNameCollision(t *testing.T) {
	t.Parallel()

	root := writeProject(t, projectFiles)
	ext := filepath.Join(t.TempDir(), "python.json")
	require.NoError(t, os.WriteFile(ext, []byte(`{"nodes":[],"edges":[],"ambiguities":[]}`), 0o644))
	e := newTestEngine(t, testProfile(root), WithExternalFragments(ext))

	_, err := e.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already in use")
}

func TestRun_WithoutCacheAlwaysBuilds(t *testing.T) {
	t.Parallel()

	root := writeProject(t, projectFiles)
	p := testProfile(root)
	p.Cache.Enabled = false
	e := newTestEngine(t, p)
	ctx := context.Background()

	_, err := e.Run(ctx)
	require.NoError(t, err)
	s, err := e.Run(ctx)
	require.NoError(t, err)
	for _, l := range s.Languages {
		assert.Equal(t, SourceBuilder, l.Source)
	}
	assert.NoDirExists(t, p.CachePath())
}

func TestClearCache(t *testing.T) {
	t.Parallel()

	root := writeProject(t, projectFiles)
	e := newTestEngine(t, testProfile(root))
	ctx := context.Background()

	_, err := e.Run(ctx)
	require.NoError(t, err)
	langs, err := e.CachedLanguages()
	require.NoError(t, err)
	assert.Contains(t, langs, "python")

	cleared, err := e.ClearCache("python")
	require.NoError(t, err)
	assert.Equal(t, []string{"python"}, cleared)
	langs, err = e.CachedLanguages()
	require.NoError(t, err)
	assert.NotContains(t, langs, "python")

	s, err := e.Run(ctx)
	require.NoError(t, err)
	for _, l := range s.Languages {
		if l.Language == "python" {
			assert.Equal(t, SourceBuilder, l.Source)
		}
	}

	_, err = e.ClearCache()
	require.NoError(t, err)
	langs, err = e.CachedLanguages()
	require.NoError(t, err)
	assert.Empty(t, langs)
}

func TestClearCache_Disabled(t *testing.T) {
	t.Parallel()

	p := testProfile(t.TempDir())
	p.Cache.Enabled = false
	e := newTestEngine(t, p)
	_, err := e.CachedLanguages()
	assert.ErrorIs(t, err, ErrCacheDisabled)
	_, err = e.ClearCache()
	assert.ErrorIs(t, err, ErrCacheDisabled)
}

type versionedBuilder struct {
	lang, version string
}

func (b versionedBuilder) Language() string { return b.lang }
func (b versionedBuilder) Version() string  { return b.version }
func (b versionedBuilder) Build(context.Context, string, []string) (*graph.Fragment, error) {
	return &graph.Fragment{Language: b.lang}, nil
}

func TestFingerprint_CoversBuilderVersions(t *testing.T) {
	t.Parallel()

	root := writeProject(t, projectFiles)
	e := newTestEngine(t, testProfile(root))
	base, err := e.computeFingerprint()
	require.NoError(t, err)
	assert.Equal(t, e.fingerprint, base)

	e.builders = append(e.builders, versionedBuilder{lang: "toy", version: "1"})
	v1, err := e.computeFingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, base, v1)

	e.builders[len(e.builders)-1] = versionedBuilder{lang: "toy", version: "2"}
	v2, err := e.computeFingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)
}

func TestStagedCommands(t *testing.T) {
	t.Parallel()

	root := writeProject(t, projectFiles)
	e := newTestEngine(t, testProfile(root))
	ctx := context.Background()

	_, err := e.Diff(ctx)
	require.Error(t, err, "diff needs a merged graph")

	s, err := e.Build(ctx)
	require.NoError(t, err)
	assert.Equal(t, ModeBuild, s.Mode)
	assert.FileExists(t, e.outPath(ArtifactMerged))
	assert.NoFileExists(t, e.outPath(ArtifactDiff))

	_, err = e.Diff(ctx)
	require.NoError(t, err)
	assert.FileExists(t, e.outPath(ArtifactDiff))

	s, err = e.Enrich(ctx)
	require.NoError(t, err)
	assert.Equal(t, guard.StatusPass, s.Equivalence)
	assert.FileExists(t, e.outPath(ArtifactEnriched))

	s, err = e.Verify(ctx)
	require.NoError(t, err)
	assert.Equal(t, guard.StatusPass, s.Equivalence)

	runs, err := e.History().Runs(0)
	require.NoError(t, err)
	assert.Len(t, runs, 5)
}

func TestEnrich_AfterBuildUsesFreshDiff(t *testing.T) {
	t.Parallel()

	root := writeProject(t, projectFiles)
	e := newTestEngine(t, testProfile(root))
	ctx := context.Background()

	for range 2 {
		_, err := e.Run(ctx)
		require.NoError(t, err)
	}
	writeSource(t, root, "app/models.py", "import os\n\n\n"+projectFiles["app/models.py"])
	_, err := e.Build(ctx)
	require.NoError(t, err)

	s, err := e.Enrich(ctx)
	require.NoError(t, err)
	assert.Contains(t, s.Artifacts, ArtifactDiff)

	var d diff.Report
	require.NoError(t, graph.ReadJSON(e.outPath(ArtifactDiff), &d))
	assert.Equal(t, diff.Modified, d.FileStatus["File:app/models.py"])

	merged, err := graph.ReadGraph(e.outPath(ArtifactMerged))
	require.NoError(t, err)
	enriched, err := graph.ReadGraph(e.outPath(ArtifactEnriched))
	require.NoError(t, err)
	for _, id := range []string{"File:app/models.py", "app/models.py::Post"} {
		want, ok := merged.Node(id)
		require.True(t, ok, id)
		got, ok := enriched.Node(id)
		require.True(t, ok, id)
		assert.Equal(t, want.Hash, got.Hash, id)
		assert.Equal(t, want.LineStart, got.LineStart, id)
		assert.Equal(t, want.LineEnd, got.LineEnd, id)
	}
}

func TestVerify_DetectsTamperedGraph(t *testing.T) {
	t.Parallel()

	root := writeProject(t, projectFiles)
	e := newTestEngine(t, testProfile(root))
	ctx := context.Background()
	_, err := e.Run(ctx)
	require.NoError(t, err)

	enriched, err := graph.ReadGraph(e.outPath(ArtifactEnriched))
	require.NoError(t, err)
	enriched.Edges = enriched.Edges[1:]
	require.NoError(t, graph.WriteJSON(e.outPath(ArtifactEnriched), enriched))

	s, err := e.Verify(ctx)
	require.ErrorIs(t, err, guard.ErrEquivalenceFailed)
	assert.Equal(t, guard.StatusFail, s.Equivalence)

	var rep guard.Report
	require.NoError(t, graph.ReadJSON(e.outPath(ArtifactEquivalence), &rep))
	assert.False(t, rep.Passed())
}

func TestRun_PrunesHistory(t *testing.T) {
	t.Parallel()

	root := writeProject(t, projectFiles)
	p := testProfile(root)
	p.History.Keep = 2
	e := newTestEngine(t, p)
	ctx := context.Background()
	for range 3 {
		_, err := e.Run(ctx)
		require.NoError(t, err)
	}
	runs, err := e.History().Runs(0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestSkip(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	e := newTestEngine(t, testProfile(root))
	assert.False(t, e.Skip("app/views.py", false))
	assert.False(t, e.Skip("app", true))
	assert.True(t, e.Skip("README.md", false))
	assert.True(t, e.Skip(".spashta/code_knowledge_graph.json", false))
	assert.True(t, e.Skip("node_modules", true))
}

func TestWatch_RerunsOnChange(t *testing.T) {
	root := writeProject(t, projectFiles)
	e := newTestEngine(t, testProfile(root))

	var (
		mu    sync.Mutex
		modes []string
	)
	runs := make(chan struct{}, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- e.Watch(ctx, 50*time.Millisecond, func(s *RunSummary, err error) {
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				modes = append(modes, s.Status)
			}
			runs <- struct{}{}
		})
	}()

	select {
	case <-runs:
	case <-time.After(10 * time.Second):
		t.Fatal("initial run did not happen")
	}
	writeSource(t, root, "app/extra.py", "def extra():\n    pass\n")
	select {
	case <-runs:
	case <-time.After(10 * time.Second):
		t.Fatal("change did not trigger a run")
	}
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{store.RunSuccess, store.RunSuccess}, modes)

	merged, err := graph.ReadGraph(e.outPath(ArtifactMerged))
	require.NoError(t, err)
	assert.True(t, merged.Has("app/extra.py::extra"))
}
