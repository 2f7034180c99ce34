package main

import (
	"github.com/spf13/cobra"

	spashta "github.com/mpcoder1111/Spashta-CKG"
	"github.com/mpcoder1111/Spashta-CKG/internal/graph"
)

func (c *cli) queryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query the published graph",
		Long:  "Run read-only queries against the published enriched graph. --merged queries the merged graph instead, which has no semantic roles and has not been verified. Line numbers are 1-based.",
	}
	var merged bool
	cmd.PersistentFlags().BoolVar(&merged, "merged", false, "query the merged graph instead of the enriched graph")

	var typeFilter string
	search := &cobra.Command{
		Use:   "search <term>",
		Short: "Find nodes by name or id substring, key:value filter, or @decorator",
		Args:  cobra.ExactArgs(1),
		RunE: c.withQuery(&merged, "search", func(q *spashta.QueryBuilder, args []string) (any, error) {
			return q.Search(args[0], typeFilter), nil
		}),
	}
	search.Flags().StringVar(&typeFilter, "type", "", "restrict results to a node type")

	var impactDepth, depsDepth int
	impact := &cobra.Command{
		Use:   "impact <id>",
		Short: "Trace incoming edges: what is affected if the node changes",
		Args:  cobra.ExactArgs(1),
		RunE: c.withQuery(&merged, "impact", func(q *spashta.QueryBuilder, args []string) (any, error) {
			return q.Impact(args[0], impactDepth)
		}),
	}
	impact.Flags().IntVar(&impactDepth, "depth", spashta.DefaultImpactDepth, "maximum hops")

	deps := &cobra.Command{
		Use:   "dependencies <id>",
		Short: "Trace outgoing edges: what the node relies on",
		Args:  cobra.ExactArgs(1),
		RunE: c.withQuery(&merged, "dependencies", func(q *spashta.QueryBuilder, args []string) (any, error) {
			return q.Dependencies(args[0], depsDepth)
		}),
	}
	deps.Flags().IntVar(&depsDepth, "depth", spashta.DefaultDependenciesDepth, "maximum hops")

	cmd.AddCommand(
		search,
		&cobra.Command{
			Use:   "locate <id>",
			Short: "Show the file and line range of a node",
			Args:  cobra.ExactArgs(1),
			RunE: c.withQuery(&merged, "locate", func(q *spashta.QueryBuilder, args []string) (any, error) {
				return q.Locate(args[0])
			}),
		},
		&cobra.Command{
			Use:   "read <id>",
			Short: "Print the source of a node",
			Args:  cobra.ExactArgs(1),
			RunE: c.withQuery(&merged, "read", func(q *spashta.QueryBuilder, args []string) (any, error) {
				return q.Read(args[0])
			}),
		},
		&cobra.Command{
			Use:   "details <id>",
			Short: "Show every field of a node",
			Args:  cobra.ExactArgs(1),
			RunE: c.withQuery(&merged, "details", func(q *spashta.QueryBuilder, args []string) (any, error) {
				return q.Details(args[0])
			}),
		},
		impact,
		deps,
		&cobra.Command{
			Use:   "call-graph <id>",
			Short: "Show direct callers and callees along calls edges",
			Args:  cobra.ExactArgs(1),
			RunE: c.withQuery(&merged, "call-graph", func(q *spashta.QueryBuilder, args []string) (any, error) {
				return q.CallGraph(args[0])
			}),
		},
		&cobra.Command{
			Use:   "stats",
			Short: "Count nodes, edges, ambiguities and roles",
			Args:  cobra.NoArgs,
			RunE: c.withQuery(&merged, "stats", func(q *spashta.QueryBuilder, args []string) (any, error) {
				return q.Stats(), nil
			}),
		},
		&cobra.Command{
			Use:   "list-files",
			Short: "List file-level nodes",
			Args:  cobra.NoArgs,
			RunE: c.withQuery(&merged, "list-files", func(q *spashta.QueryBuilder, args []string) (any, error) {
				return q.ListFiles(), nil
			}),
		},
	)
	return cmd
}

type queryFunc func(q *spashta.QueryBuilder, args []string) (any, error)

// withQuery loads the published graph, runs fn and writes its result.
// The envelope names the graph artifact that answered.
func (c *cli) withQuery(merged *bool, name string, fn queryFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		load := c.loadQuery
		if *merged {
			load = c.loadMergedQuery
		}
		q, err := load()
		if err != nil {
			return c.outputError(CLIResult{Command: name}, err)
		}
		v, err := fn(q, args)
		if err != nil {
			return c.outputError(CLIResult{Command: name, Graph: q.Source()}, err)
		}
		result := CLIResult{Command: name, Graph: q.Source(), Results: v}
		if isList(v) {
			n := resultLen(v)
			result.TotalCount = &n
		}
		return c.outputResult(result)
	}
}

func (c *cli) loadQuery() (*spashta.QueryBuilder, error) {
	p, err := c.loadProfile()
	if err != nil {
		return nil, err
	}
	return spashta.LoadQuery(p.OutputPath(), p.ProjectRoot)
}

func (c *cli) loadMergedQuery() (*spashta.QueryBuilder, error) {
	p, err := c.loadProfile()
	if err != nil {
		return nil, err
	}
	return spashta.LoadMergedQuery(p.OutputPath(), p.ProjectRoot)
}

func isList(v any) bool {
	switch v.(type) {
	case []*graph.Node, []spashta.Relation, []spashta.FileEntry:
		return true
	}
	return false
}
