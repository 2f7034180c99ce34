// Package spashta builds a deterministic code knowledge graph for mixed
// Python, HTML and CSS projects and answers structural queries over it.
//
// # Pipeline
//
// A run is phase-sequential with a hard barrier between phases:
//
//  1. Build: each language builder observes its units and emits a
//     fragment. The Python builder resolves references with a two-pass
//     scoped symbol resolver; the HTML and CSS builders are Risor scripts.
//     Every fragment is validated against the core schema before anything
//     is merged.
//  2. Merge: fragments are unified into one graph with canonical ids.
//  3. Diff: the merged graph is classified against the previous enriched
//     graph by file content hash.
//  4. Enrich: framework adapters attach semantic roles to existing nodes.
//     Unchanged nodes are carried over from the previous run.
//  5. Verify: the equivalence guard proves enrichment changed no structure
//     before the enriched graph is published.
//
// Each phase writes its JSON artifact to the output directory and a
// snapshot row to the SQLite run history.
//
// # Usage
//
//	e, err := spashta.New("path/to/project")
//	if err != nil { ... }
//	defer e.Close()
//
//	summary, err := e.Run(ctx)
//
//	q, err := spashta.LoadQuery(e.Profile().OutputPath(), e.Profile().ProjectRoot)
//	hits := q.Search("login", "")
//
// # Query API
//
// The [QueryBuilder] reads an enriched graph and offers search, locate,
// read, details, impact, dependencies, call-graph, stats and list-files.
package spashta
