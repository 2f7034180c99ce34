package spashta

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mpcoder1111/Spashta-CKG/internal/builder"
	"github.com/mpcoder1111/Spashta-CKG/internal/cache"
	"github.com/mpcoder1111/Spashta-CKG/internal/config"
	"github.com/mpcoder1111/Spashta-CKG/internal/diff"
	"github.com/mpcoder1111/Spashta-CKG/internal/enrich"
	"github.com/mpcoder1111/Spashta-CKG/internal/graph"
	"github.com/mpcoder1111/Spashta-CKG/internal/guard"
	"github.com/mpcoder1111/Spashta-CKG/internal/merge"
	"github.com/mpcoder1111/Spashta-CKG/internal/metrics"
	"github.com/mpcoder1111/Spashta-CKG/internal/resolver"
	"github.com/mpcoder1111/Spashta-CKG/internal/runtime"
	"github.com/mpcoder1111/Spashta-CKG/internal/schema"
	"github.com/mpcoder1111/Spashta-CKG/internal/store"
	"github.com/mpcoder1111/Spashta-CKG/scripts"
)

// Artifact names, relative to the output directory.
const (
	ArtifactMerged      = "code_knowledge_graph.json"
	ArtifactDiff        = "diff_report.json"
	ArtifactEnriched    = "code_knowledge_graph_enriched.json"
	ArtifactEnrichment  = "enrichment_report.json"
	ArtifactEquivalence = "equivalence_report.json"
	ArtifactSummary     = "run_summary.json"
	ArtifactMetrics     = "metrics.prom"

	// Written by an external agent from the enriched graph.
	ArtifactAgentGraph = "code_knowledge_graph_enriched_by_agent.json"
	// Agent bookkeeping, written by the agent commands.
	ArtifactAgentPending = "agent/files_to_enrich.json"
	ArtifactAgentStats   = "agent/enrichment_stats.json"
)

// Pipeline phases, used as artifact phase labels and metric labels.
const (
	PhaseBuild    = "build"
	PhaseValidate = "validate"
	PhaseMerge    = "merge"
	PhaseDiff     = "diff"
	PhaseEnrich   = "enrich"
	PhaseVerify   = "verify"
	PhaseSummary  = "summary"
)

// Run modes recorded in the history store.
const (
	ModeRun    = "run"
	ModeBuild  = "build"
	ModeDiff   = "diff"
	ModeEnrich = "enrich"
	ModeVerify = "verify"
)

// Fragment sources reported in a run summary.
const (
	SourceBuilder  = "builder"
	SourceCache    = "cache"
	SourceExternal = "external"
)

var (
	// ErrValidationFailed is returned when any fragment fails the schema gate.
	ErrValidationFailed = errors.New("spashta: fragment validation failed")

	// ErrNotFound is returned when a queried node does not exist.
	ErrNotFound = errors.New("spashta: node not found")

	// ErrCacheDisabled is returned by cache operations when the profile
	// disables the fragment cache.
	ErrCacheDisabled = errors.New("spashta: fragment cache disabled")
)

// FragmentPath returns the artifact name of a fragment.
func FragmentPath(name string) string {
	return "fragments/" + name + ".json"
}

// ValidationPath returns the artifact name of a fragment's validation report.
func ValidationPath(name string) string {
	return "validation/" + name + ".json"
}

// Engine runs the pipeline for one project: build, validate, merge, diff,
// enrich and verify. Every phase writes its artifact to the output
// directory and snapshots it in the history store.
type Engine struct {
	profile  *config.Profile
	schema   *schema.Schema
	builders []builder.Builder
	adapters []*enrich.Adapter
	history  *store.Store
	cache    *cache.Cache
	metrics  *metrics.Metrics
	logger   *zap.Logger

	scriptsDir  string
	external    []string
	fingerprint string
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithProfile uses p instead of loading the project profile.
func WithProfile(p *config.Profile) Option {
	return func(e *Engine) {
		e.profile = p
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithScriptsDir loads builder scripts from dir instead of the embedded set.
func WithScriptsDir(dir string) Option {
	return func(e *Engine) {
		e.scriptsDir = dir
	}
}

// WithExternalFragments adds pre-built fragment files to every build. Each
// is validated like builder output.
func WithExternalFragments(paths ...string) Option {
	return func(e *Engine) {
		e.external = append(e.external, paths...)
	}
}

// WithMetrics records into m instead of a private set of collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// Languages returns the languages a builder exists for.
func Languages() []string {
	return schema.Languages()
}

// New prepares an Engine for the project at root. The profile is loaded
// and validated, adapters pass governance, and the history store and
// fragment cache are opened under the output directory.
func New(root string, opts ...Option) (*Engine, error) {
	e := &Engine{logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	if e.profile == nil {
		p, err := config.Load(root, "")
		if err != nil {
			return nil, fmt.Errorf("spashta: %w", err)
		}
		e.profile = p
	}
	if e.metrics == nil {
		e.metrics = metrics.New()
	}

	// A profile with violations comes back as ErrInvalidProfile listing them.
	if _, err := config.Validate(e.profile, Languages()); err != nil {
		return nil, fmt.Errorf("spashta: %w", err)
	}

	var err error
	e.schema = schema.Default()
	if e.profile.SchemaPath != "" {
		if e.schema, err = schema.LoadFile(e.profile.SchemaPath); err != nil {
			return nil, fmt.Errorf("spashta: %w", err)
		}
	}
	if err := e.initBuilders(); err != nil {
		return nil, err
	}
	if e.fingerprint, err = e.computeFingerprint(); err != nil {
		return nil, err
	}

	if e.adapters, err = enrich.LoadAdapters(e.profile.Frameworks, e.profile.RulesDir); err != nil {
		return nil, fmt.Errorf("spashta: %w", err)
	}
	if _, err := enrich.GovernAll(e.schema, e.adapters); err != nil {
		return nil, fmt.Errorf("spashta: %w", err)
	}

	if err := os.MkdirAll(e.profile.OutputPath(), 0o755); err != nil {
		return nil, fmt.Errorf("spashta: create output dir: %w", err)
	}
	if e.history, err = store.NewStore(e.profile.HistoryPath()); err != nil {
		return nil, fmt.Errorf("spashta: open history: %w", err)
	}
	if err := e.history.Migrate(); err != nil {
		e.history.Close()
		return nil, fmt.Errorf("spashta: migrate history: %w", err)
	}
	if e.profile.Cache.Enabled {
		e.cache, err = cache.Open(cache.Config{Path: e.profile.CachePath(), Logger: e.logger})
		if err != nil {
			e.history.Close()
			return nil, fmt.Errorf("spashta: %w", err)
		}
	}
	return e, nil
}

// initBuilders creates one builder per profile language, sorted by
// language. Each scripted builder gets its own runtime.
func (e *Engine) initBuilders() error {
	langs := append([]string(nil), e.profile.Languages...)
	sort.Strings(langs)
	for _, lang := range langs {
		var (
			b   builder.Builder
			err error
		)
		switch lang {
		case resolver.Language:
			b, err = resolver.New(e.schema, resolver.WithLogger(e.logger))
		default:
			rtOpts := []runtime.RuntimeOption{runtime.WithLogger(e.logger)}
			if e.scriptsDir == "" {
				rtOpts = append(rtOpts, runtime.WithRuntimeFS(scripts.FS))
			}
			b, err = runtime.NewScriptBuilder(runtime.NewRuntime(e.scriptsDir, rtOpts...), lang, e.schema)
		}
		if err != nil {
			return fmt.Errorf("spashta: builder %s: %w", lang, err)
		}
		e.builders = append(e.builders, b)
	}
	return nil
}

// computeFingerprint hashes everything besides source that shapes a
// fragment: the schema, the embedded language mappings, the version of
// every Go builder and the builder scripts. It is part of every cache key.
func (e *Engine) computeFingerprint() (string, error) {
	h := sha256.New()
	fmt.Fprintf(h, "schema=%s\n", e.schema.Version())
	if e.profile.SchemaPath != "" {
		data, err := os.ReadFile(e.profile.SchemaPath)
		if err != nil {
			return "", fmt.Errorf("spashta: fingerprint schema: %w", err)
		}
		h.Write(data)
	}
	fmt.Fprintf(h, "data=%s\n", schema.DataDigest())
	for _, b := range e.builders {
		if v, ok := b.(builder.Versioned); ok {
			fmt.Fprintf(h, "builder:%s=%s\n", b.Language(), v.Version())
		}
	}

	var fsys fs.FS = scripts.FS
	if e.scriptsDir != "" {
		fsys = os.DirFS(e.scriptsDir)
	}
	var paths []string
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".risor") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("spashta: fingerprint scripts: %w", err)
	}
	sort.Strings(paths)
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return "", fmt.Errorf("spashta: fingerprint scripts: %w", err)
		}
		fmt.Fprintf(h, "%s=%x\n", p, sha256.Sum256(data))
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:16], nil
}

// Close releases the history store and the fragment cache.
func (e *Engine) Close() error {
	var err error
	if e.cache != nil {
		err = multierr.Append(err, e.cache.Close())
	}
	if e.history != nil {
		err = multierr.Append(err, e.history.Close())
	}
	return err
}

// Profile returns the profile in use.
func (e *Engine) Profile() *config.Profile {
	return e.profile
}

// History returns the run history store.
func (e *Engine) History() *store.Store {
	return e.history
}

// Metrics returns the engine's collectors.
func (e *Engine) Metrics() *metrics.Metrics {
	return e.metrics
}

func (e *Engine) outPath(name string) string {
	return filepath.Join(e.profile.OutputPath(), filepath.FromSlash(name))
}

// --- run bookkeeping ---

// LanguageSummary describes one fragment of a run.
type LanguageSummary struct {
	Language     string `json:"language"`
	Source       string `json:"source"`
	Units        int    `json:"units"`
	Nodes        int    `json:"nodes"`
	Edges        int    `json:"edges"`
	Ambiguities  int    `json:"ambiguities"`
	Logs         int    `json:"logs"`
	Status       string `json:"status"`
	SchemaErrors int    `json:"schema_errors"`
	Warnings     int    `json:"schema_warnings"`
}

// RunSummary is the final artifact of every run.
type RunSummary struct {
	RunID        string            `json:"run_id"`
	Mode         string            `json:"mode"`
	Status       string            `json:"status"`
	Error        string            `json:"error,omitempty"`
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   time.Time         `json:"finished_at"`
	Languages    []LanguageSummary `json:"languages,omitempty"`
	ChangedFiles []string          `json:"changed_files,omitempty"`
	Merge        *merge.Stats      `json:"merge,omitempty"`
	Diff         *diff.Stats       `json:"diff,omitempty"`
	Enrichment   *enrich.Report    `json:"enrichment,omitempty"`
	Equivalence  string            `json:"equivalence,omitempty"`
	Artifacts    []string          `json:"artifacts"`
}

type runState struct {
	id      string
	summary *RunSummary
}

func (e *Engine) begin(mode string) (*runState, error) {
	r := &runState{
		id: uuid.NewString(),
		summary: &RunSummary{
			Mode:      mode,
			Status:    store.RunRunning,
			StartedAt: e.now().UTC(),
			Artifacts: []string{},
		},
	}
	r.summary.RunID = r.id
	err := e.history.InsertRun(&store.Run{
		ID:        r.id,
		Root:      e.profile.ProjectRoot,
		Mode:      mode,
		Status:    store.RunRunning,
		StartedAt: r.summary.StartedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("spashta: record run: %w", err)
	}
	e.logger.Info("run started", zap.String("run_id", r.id), zap.String("mode", mode))
	return r, nil
}

// finish records the outcome of r, writes the run summary and the metrics
// textfile, and prunes old history. runErr is returned combined with any
// bookkeeping failure.
func (e *Engine) finish(r *runState, runErr error) (*RunSummary, error) {
	s := r.summary
	s.Status = store.RunSuccess
	if runErr != nil {
		s.Status = store.RunFailed
		s.Error = runErr.Error()
	}
	s.FinishedAt = e.now().UTC()

	err := runErr
	err = multierr.Append(err, e.writeArtifact(r, PhaseSummary, ArtifactSummary, s.Status, s))
	err = multierr.Append(err, e.history.FinishRun(r.id, s.Status, s.FinishedAt))
	e.metrics.RunFinished(s.Status)
	err = multierr.Append(err, e.metrics.WriteTextfile(e.outPath(ArtifactMetrics)))
	if n, perr := e.history.Prune(e.profile.History.Keep); perr != nil {
		err = multierr.Append(err, perr)
	} else if n > 0 {
		e.logger.Debug("history pruned", zap.Int("runs", n))
	}

	e.logger.Info("run finished",
		zap.String("run_id", r.id),
		zap.String("status", s.Status),
		zap.Duration("elapsed", s.FinishedAt.Sub(s.StartedAt)))
	return s, err
}

// writeArtifact atomically writes v to the output directory and snapshots
// the same bytes in the history store.
func (e *Engine) writeArtifact(r *runState, phase, name, status string, v any) error {
	data, err := graph.Encode(v)
	if err != nil {
		return fmt.Errorf("spashta: encode %s: %w", name, err)
	}
	if err := graph.WriteFile(e.outPath(name), data); err != nil {
		return fmt.Errorf("spashta: %w", err)
	}
	_, err = e.history.PutArtifact(&store.Artifact{
		RunID:  r.id,
		Phase:  phase,
		Name:   name,
		Status: status,
		Body:   data,
	})
	if err != nil {
		return fmt.Errorf("spashta: snapshot %s: %w", name, err)
	}
	if name != ArtifactSummary {
		r.summary.Artifacts = append(r.summary.Artifacts, name)
	}
	return nil
}

// --- discovery ---

type discovery struct {
	units  map[string][]string
	hashes []store.FileHash
}

// discover walks the project root and groups every file of an active
// language by language, with its content hash.
func (e *Engine) discover(ctx context.Context) (*discovery, error) {
	active := make(map[string]bool, len(e.builders))
	for _, b := range e.builders {
		active[b.Language()] = true
	}
	root := e.profile.ProjectRoot
	out := e.profile.OutputPath()
	d := &discovery{units: make(map[string][]string)}

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if entry.IsDir() {
			if path == out || e.profile.Exclude.Skip(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() || e.profile.Exclude.Skip(rel, false) {
			return nil
		}
		lang, ok := schema.LanguageForFile(rel)
		if !ok || !active[lang] {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			e.logger.Warn("unreadable source", zap.String("file", rel), zap.Error(err))
			return nil
		}
		d.units[lang] = append(d.units[lang], rel)
		d.hashes = append(d.hashes, store.FileHash{Path: rel, Language: lang, Hash: builder.ContentHash(content)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("spashta: discover: %w", err)
	}
	for lang := range d.units {
		sort.Strings(d.units[lang])
	}
	return d, nil
}

// Skip reports whether a root-relative path is outside discovery.
func (e *Engine) Skip(rel string, isDir bool) bool {
	if rel == "." || rel == "" {
		return false
	}
	abs := filepath.Join(e.profile.ProjectRoot, filepath.FromSlash(rel))
	out := e.profile.OutputPath()
	if abs == out || strings.HasPrefix(abs, out+string(filepath.Separator)) {
		return true
	}
	if isDir {
		return e.profile.Exclude.Skip(rel, true)
	}
	if e.profile.Exclude.Skip(rel, false) {
		return true
	}
	_, ok := schema.LanguageForFile(rel)
	return !ok
}

// --- phases ---

// buildPhase discovers sources, builds and validates every fragment, and
// returns the fragments in build order. Any schema failure aborts with
// ErrValidationFailed after every report has been written.
func (e *Engine) buildPhase(ctx context.Context, r *runState) ([]*graph.Fragment, error) {
	done := e.metrics.Phase(PhaseBuild)
	defer done()

	d, err := e.discover(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.history.RecordFileHashes(r.id, d.hashes); err != nil {
		return nil, fmt.Errorf("spashta: record hashes: %w", err)
	}
	if prev, err := e.history.LatestRun(store.RunSuccess); err == nil {
		changes, err := e.history.ChangedFiles(prev.ID, r.id)
		if err != nil {
			return nil, fmt.Errorf("spashta: changed files: %w", err)
		}
		for _, c := range changes {
			r.summary.ChangedFiles = append(r.summary.ChangedFiles, c.Path)
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("spashta: latest run: %w", err)
	}

	results, err := e.buildAll(ctx, d)
	if err != nil {
		return nil, err
	}
	ext, err := e.loadExternal()
	if err != nil {
		return nil, err
	}
	results = append(results, ext...)

	validateDone := e.metrics.Phase(PhaseValidate)
	defer validateDone()

	var (
		frags  []*graph.Fragment
		failed []string
	)
	for _, res := range results {
		rep := schema.Validate(e.schema, res.name, res.fragment)
		if err := e.writeArtifact(r, PhaseBuild, FragmentPath(res.name), rep.Status, res.fragment); err != nil {
			return nil, err
		}
		if err := e.writeArtifact(r, PhaseValidate, ValidationPath(res.name), rep.Status, rep); err != nil {
			return nil, err
		}
		r.summary.Languages = append(r.summary.Languages, LanguageSummary{
			Language:     res.name,
			Source:       res.source,
			Units:        res.units,
			Nodes:        len(res.fragment.Nodes),
			Edges:        len(res.fragment.Edges),
			Ambiguities:  len(res.fragment.Ambiguities),
			Logs:         len(res.fragment.Logs),
			Status:       rep.Status,
			SchemaErrors: len(rep.SchemaErrors),
			Warnings:     len(rep.SchemaWarnings),
		})
		e.metrics.SetCounts("fragment:"+res.name, len(res.fragment.Nodes), len(res.fragment.Edges), len(res.fragment.Ambiguities))
		if !rep.Passed() {
			e.logger.Warn("fragment rejected", zap.String("fragment", res.name), zap.Error(rep.Err()))
			failed = append(failed, res.name)
			continue
		}
		frags = append(frags, res.fragment)
	}
	if len(failed) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrValidationFailed, strings.Join(failed, ", "))
	}
	return frags, nil
}

// loadExternal reads the configured external fragments. A fragment is
// named after its file; a name that collides with a builder language is an
// error.
func (e *Engine) loadExternal() ([]*buildResult, error) {
	taken := make(map[string]bool, len(e.builders))
	for _, b := range e.builders {
		taken[b.Language()] = true
	}
	var out []*buildResult
	for _, path := range e.external {
		f, err := graph.ReadFragment(path)
		if err != nil {
			return nil, fmt.Errorf("spashta: external fragment: %w", err)
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if taken[name] {
			return nil, fmt.Errorf("spashta: external fragment %s: name %q already in use", path, name)
		}
		taken[name] = true
		if f.Language == "" {
			f.Language = name
		}
		out = append(out, &buildResult{name: name, source: SourceExternal, fragment: f})
	}
	return out, nil
}

func (e *Engine) mergePhase(r *runState, frags []*graph.Fragment) (*graph.Graph, error) {
	done := e.metrics.Phase(PhaseMerge)
	defer done()

	g, stats := merge.Merge(frags)
	if err := e.writeArtifact(r, PhaseMerge, ArtifactMerged, "success", g); err != nil {
		return nil, err
	}
	r.summary.Merge = &stats
	e.metrics.SetCounts(PhaseMerge, g.Len(), len(g.Edges), len(g.Ambiguities))
	e.logger.Info("merge complete",
		zap.Int("nodes", g.Len()),
		zap.Int("edges", len(g.Edges)),
		zap.Int("collisions", stats.Collisions))
	return g, nil
}

// previousEnriched loads the last published enriched graph, or nil when
// none exists.
func (e *Engine) previousEnriched() (*graph.Graph, error) {
	g, err := graph.ReadGraph(e.outPath(ArtifactEnriched))
	if errors.Is(err, graph.ErrNoArtifact) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("spashta: previous graph: %w", err)
	}
	return g, nil
}

func (e *Engine) diffPhase(r *runState, merged, previous *graph.Graph) (*diff.Report, error) {
	done := e.metrics.Phase(PhaseDiff)
	defer done()

	d := diff.Compute(merged, previous)
	if err := e.writeArtifact(r, PhaseDiff, ArtifactDiff, d.Status, d); err != nil {
		return nil, err
	}
	r.summary.Diff = &d.Stats
	e.logger.Info("diff complete",
		zap.Bool("baseline", d.Baseline),
		zap.Int("added", d.Stats.Added),
		zap.Int("modified", d.Stats.Modified),
		zap.Int("unchanged", d.Stats.Unchanged),
		zap.Int("removed", d.Stats.Removed))
	return d, nil
}

// enrichPhase overlays roles, verifies equivalence and publishes the
// enriched graph only when verification passes.
func (e *Engine) enrichPhase(r *runState, merged, previous *graph.Graph, d *diff.Report) (*graph.Graph, error) {
	done := e.metrics.Phase(PhaseEnrich)
	enriched, rep := enrich.New(e.adapters, enrich.WithLogger(e.logger)).Enrich(merged, previous, d)
	done()
	if err := e.writeArtifact(r, PhaseEnrich, ArtifactEnrichment, "success", rep); err != nil {
		return nil, err
	}
	r.summary.Enrichment = rep

	if err := e.verifyPhase(r, merged, enriched); err != nil {
		return nil, err
	}
	if err := e.writeArtifact(r, PhaseEnrich, ArtifactEnriched, "success", enriched); err != nil {
		return nil, err
	}
	e.metrics.SetCounts(PhaseEnrich, enriched.Len(), len(enriched.Edges), len(enriched.Ambiguities))
	e.metrics.SetRoles(roleCounts(enriched))
	return enriched, nil
}

func (e *Engine) verifyPhase(r *runState, merged, enriched *graph.Graph) error {
	done := e.metrics.Phase(PhaseVerify)
	defer done()

	rep := guard.Verify(merged, enriched)
	if err := e.writeArtifact(r, PhaseVerify, ArtifactEquivalence, rep.Status, rep); err != nil {
		return err
	}
	r.summary.Equivalence = rep.Status
	if !rep.Passed() {
		e.logger.Error("equivalence check failed", zap.Int("violations", len(rep.Violations)))
		return rep.Err()
	}
	return nil
}

func roleCounts(g *graph.Graph) map[string]int {
	counts := make(map[string]int)
	for _, n := range g.Nodes() {
		for _, role := range n.SemanticRoles {
			counts[role]++
		}
	}
	return counts
}

// --- public entry points ---

// Run executes the full pipeline as one recorded run.
func (e *Engine) Run(ctx context.Context) (*RunSummary, error) {
	r, err := e.begin(ModeRun)
	if err != nil {
		return nil, err
	}
	return e.finish(r, e.runAll(ctx, r))
}

func (e *Engine) runAll(ctx context.Context, r *runState) error {
	frags, err := e.buildPhase(ctx, r)
	if err != nil {
		return err
	}
	merged, err := e.mergePhase(r, frags)
	if err != nil {
		return err
	}
	previous, err := e.previousEnriched()
	if err != nil {
		return err
	}
	d, err := e.diffPhase(r, merged, previous)
	if err != nil {
		return err
	}
	_, err = e.enrichPhase(r, merged, previous, d)
	return err
}

// Build runs build, validation and merge, leaving the merged graph as the
// newest artifact.
func (e *Engine) Build(ctx context.Context) (*RunSummary, error) {
	r, err := e.begin(ModeBuild)
	if err != nil {
		return nil, err
	}
	err = func() error {
		frags, err := e.buildPhase(ctx, r)
		if err != nil {
			return err
		}
		_, err = e.mergePhase(r, frags)
		return err
	}()
	return e.finish(r, err)
}

// Diff compares the merged graph on disk against the last enriched graph.
func (e *Engine) Diff(ctx context.Context) (*RunSummary, error) {
	r, err := e.begin(ModeDiff)
	if err != nil {
		return nil, err
	}
	err = func() error {
		merged, err := e.readMerged()
		if err != nil {
			return err
		}
		previous, err := e.previousEnriched()
		if err != nil {
			return err
		}
		_, err = e.diffPhase(r, merged, previous)
		return err
	}()
	return e.finish(r, err)
}

// Enrich enriches the merged graph on disk, verifies it and publishes it.
// The diff is recomputed against the previous enriched graph and rewritten,
// so a report left by an earlier build cannot mark edited nodes unchanged.
func (e *Engine) Enrich(ctx context.Context) (*RunSummary, error) {
	r, err := e.begin(ModeEnrich)
	if err != nil {
		return nil, err
	}
	err = func() error {
		merged, err := e.readMerged()
		if err != nil {
			return err
		}
		previous, err := e.previousEnriched()
		if err != nil {
			return err
		}
		d, err := e.diffPhase(r, merged, previous)
		if err != nil {
			return err
		}
		_, err = e.enrichPhase(r, merged, previous, d)
		return err
	}()
	return e.finish(r, err)
}

// Verify checks the enriched graph on disk against the merged graph.
func (e *Engine) Verify(ctx context.Context) (*RunSummary, error) {
	r, err := e.begin(ModeVerify)
	if err != nil {
		return nil, err
	}
	err = func() error {
		merged, err := e.readMerged()
		if err != nil {
			return err
		}
		enriched, err := graph.ReadGraph(e.outPath(ArtifactEnriched))
		if err != nil {
			return fmt.Errorf("spashta: %w", err)
		}
		return e.verifyPhase(r, merged, enriched)
	}()
	return e.finish(r, err)
}

func (e *Engine) readMerged() (*graph.Graph, error) {
	g, err := graph.ReadGraph(e.outPath(ArtifactMerged))
	if err != nil {
		return nil, fmt.Errorf("spashta: merged graph: %w", err)
	}
	return g, nil
}
