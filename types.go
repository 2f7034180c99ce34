package spashta

import (
	"github.com/mpcoder1111/Spashta-CKG/internal/diff"
	"github.com/mpcoder1111/Spashta-CKG/internal/enrich"
	"github.com/mpcoder1111/Spashta-CKG/internal/graph"
	"github.com/mpcoder1111/Spashta-CKG/internal/guard"
	"github.com/mpcoder1111/Spashta-CKG/internal/merge"
	"github.com/mpcoder1111/Spashta-CKG/internal/schema"
)

// Public aliases for the internal types that appear in the Engine and
// QueryBuilder APIs.

type Node = graph.Node
type Edge = graph.Edge
type Ambiguity = graph.Ambiguity
type Graph = graph.Graph
type Fragment = graph.Fragment
type ValidationReport = schema.Report
type MergeStats = merge.Stats
type DiffReport = diff.Report
type EnrichmentReport = enrich.Report
type EquivalenceReport = guard.Report
