package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	spashta "github.com/mpcoder1111/Spashta-CKG"
	"github.com/mpcoder1111/Spashta-CKG/internal/agent"
	"github.com/mpcoder1111/Spashta-CKG/internal/graph"
)

// outputResult writes a CLIResult to stdout in the selected format.
func (c *cli) outputResult(result CLIResult) error {
	if c.format == "text" {
		return outputResultText(c.out, result)
	}
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes result with err attached and returns err marked as
// reported. In JSON mode the envelope goes to stdout; in text mode any
// partial results go to stdout and the error to stderr.
func (c *cli) outputError(result CLIResult, err error) error {
	if c.format == "text" {
		if result.Results != nil {
			_ = outputResultText(c.out, result)
		}
		fmt.Fprintf(c.errOut, "Error: %s\n", err)
		return fmt.Errorf("%w: %w", errHandled, err)
	}
	result.Error = err.Error()
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return fmt.Errorf("%w: %w", errHandled, err)
}

func formatRunSummaryText(w io.Writer, s *spashta.RunSummary) {
	fmt.Fprintf(w, "Run %s (%s): %s\n", s.RunID, s.Mode, s.Status)
	if s.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", s.Error)
	}
	if len(s.Languages) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "FRAGMENT\tSOURCE\tUNITS\tNODES\tEDGES\tAMBIGUITIES\tSTATUS")
		for _, l := range s.Languages {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
				l.Language, l.Source, l.Units, l.Nodes, l.Edges, l.Ambiguities, l.Status)
		}
		tw.Flush()
	}
	if s.Merge != nil {
		fmt.Fprintf(w, "\nMerged: %d nodes, %d edges, %d ambiguities (%d collisions)\n",
			s.Merge.MergedNodes, s.Merge.MergedEdges, s.Merge.Ambiguities, s.Merge.Collisions)
	}
	if s.Diff != nil {
		fmt.Fprintf(w, "Diff: %d added, %d modified, %d unchanged, %d removed\n",
			s.Diff.Added, s.Diff.Modified, s.Diff.Unchanged, s.Diff.Removed)
	}
	if s.Enrichment != nil {
		fmt.Fprintf(w, "Enrichment (%s): %d enriched, %d preserved, %d roles\n",
			s.Enrichment.Mode, s.Enrichment.Enriched, s.Enrichment.Preserved, s.Enrichment.RolesApplied)
	}
	if s.Equivalence != "" {
		fmt.Fprintf(w, "Equivalence: %s\n", s.Equivalence)
	}
	if len(s.ChangedFiles) > 0 {
		fmt.Fprintf(w, "Changed files: %s\n", strings.Join(s.ChangedFiles, ", "))
	}
}

func formatValidateText(w io.Writer, r *ValidateResult) {
	fmt.Fprintf(w, "Validation: %s\n", r.Status)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tISSUE\tKEY\tVALUE")
	for _, v := range r.Profile.Violations {
		fmt.Fprintf(tw, "profile\t%s\t%s\t%s\n", v.Issue, v.Key, v.Value)
	}
	for _, g := range r.Governance {
		for _, v := range g.Violations {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", g.Framework, v.Issue, v.Key, v.Value)
		}
	}
	tw.Flush()
}

func formatPendingText(w io.Writer, r *agent.PendingReport) {
	fmt.Fprintf(w, "Files: %d total, %d pending, %d skipped (%s)\n",
		r.Summary.TotalFiles, r.Summary.Pending, r.Summary.Skipped, r.Mode)
	if len(r.Pending) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE	REASON	HASH")
	for _, f := range r.Pending {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.FilePath, f.Reason, f.CurrentHash)
	}
	tw.Flush()
}

func formatAgentReportText(w io.Writer, r *agent.Report) {
	fmt.Fprintf(w, "Agent graph: %s (%d errors, %d warnings)\n", r.Status, len(r.Errors), len(r.Warnings))
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  error: %s\n", e)
	}
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn)
	}
}

func formatAgentStatsText(w io.Writer, s *agent.Stats) {
	fmt.Fprintf(w, "Nodes: %d/%d enriched (%.1f%%)\n", s.Nodes.Enriched, s.Nodes.Total, s.Nodes.CoveragePercent)
	fmt.Fprintf(w, "Ambiguities: %d resolved, %d unresolved, %d not processed\n",
		s.Ambiguities.Resolved, s.Ambiguities.Unresolved, s.Ambiguities.NotProcessed)
}

func formatRunsText(w io.Writer, runs []RunRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMODE\tSTATUS\tSTARTED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Mode, r.Status, r.StartedAt.Format("2006-01-02 15:04:05"))
	}
	tw.Flush()
}

func formatNodesText(w io.Writer, nodes []*graph.Node) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tNAME\tFILE\tLINE")
	for _, n := range nodes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", n.ID, n.Type, n.Name, n.FilePath, n.LineStart)
	}
	tw.Flush()
}

func formatNodeText(w io.Writer, n *graph.Node) {
	fmt.Fprintf(w, "ID: %s\n", n.ID)
	fmt.Fprintf(w, "Type: %s\n", n.Type)
	fmt.Fprintf(w, "Name: %s\n", n.Name)
	if n.FilePath != "" {
		fmt.Fprintf(w, "File: %s:%d-%d\n", n.FilePath, n.LineStart, n.LineEnd)
	}
	if n.Confidence != "" {
		fmt.Fprintf(w, "Confidence: %s\n", n.Confidence)
	}
	if n.Signature != nil && len(n.Signature.Decorators) > 0 {
		fmt.Fprintf(w, "Decorators: %s\n", strings.Join(n.Signature.Decorators, ", "))
	}
	if len(n.SemanticRoles) > 0 {
		fmt.Fprintf(w, "Roles: %s\n", strings.Join(n.SemanticRoles, ", "))
	}
	if len(n.Attributes) > 0 {
		fmt.Fprintln(w, "Attributes:")
		for _, k := range sortedKeys(n.Attributes) {
			fmt.Fprintf(w, "  %s: %s\n", k, n.Attributes[k])
		}
	}
	if n.Docstring != "" {
		fmt.Fprintf(w, "\n%s\n", n.Docstring)
	}
}

func formatRelationsText(w io.Writer, rels []spashta.Relation) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DEPTH\tRELATION\tTYPE\tID")
	for _, r := range rels {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.Depth, r.Relation, r.NodeType, r.ID)
	}
	tw.Flush()
}

func formatCallGraphText(w io.Writer, cg *spashta.CallGraph) {
	fmt.Fprintf(w, "%s: %d calls, %d callers\n", cg.NodeID, cg.Summary.OutgoingCount, cg.Summary.IncomingCount)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DIRECTION\tNAME\tTYPE\tLINE\tID")
	for _, s := range cg.Calls {
		fmt.Fprintf(tw, "calls\t%s\t%s\t%d\t%s\n", s.Name, s.NodeType, s.CallLine, s.ID)
	}
	for _, s := range cg.CalledBy {
		fmt.Fprintf(tw, "called_by\t%s\t%s\t%d\t%s\n", s.Name, s.NodeType, s.CallLine, s.ID)
	}
	tw.Flush()
}

func formatStatsText(w io.Writer, s *spashta.Stats) {
	fmt.Fprintln(w, "Graph Summary")
	fmt.Fprintln(w, "=============")
	fmt.Fprintf(w, "Nodes: %d\nEdges: %d\nAmbiguities: %d\n", s.Nodes, s.Edges, s.Ambiguities)
	for _, section := range []struct {
		title  string
		counts map[string]int
	}{
		{"Node Types", s.NodeTypes},
		{"Edge Types", s.EdgeTypes},
		{"Ambiguity Kinds", s.AmbiguityKinds},
		{"Roles", s.Roles},
	} {
		if len(section.counts) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s:\n", section.title)
		for _, k := range sortedKeys(section.counts) {
			fmt.Fprintf(w, "  %s: %d\n", k, section.counts[k])
		}
	}
}

func formatFilesText(w io.Writer, files []spashta.FileEntry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tTYPE\tHASH")
	for _, f := range files {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Path, f.NodeType, f.Hash)
	}
	tw.Flush()
}

// outputResultText dispatches to the text formatter for the result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case *spashta.RunSummary:
		formatRunSummaryText(w, v)
	case *ValidateResult:
		formatValidateText(w, v)
	case []RunRecord:
		formatRunsText(w, v)
	case []*graph.Node:
		formatNodesText(w, v)
	case *graph.Node:
		formatNodeText(w, v)
	case *spashta.Location:
		fmt.Fprintf(w, "%s:%d-%d\n", v.File, v.LineStart, v.LineEnd)
	case *spashta.Snippet:
		fmt.Fprint(w, v.Content)
	case []spashta.Relation:
		formatRelationsText(w, v)
	case *spashta.CallGraph:
		formatCallGraphText(w, v)
	case *spashta.Stats:
		formatStatsText(w, v)
	case []spashta.FileEntry:
		formatFilesText(w, v)
	case *agent.PendingReport:
		formatPendingText(w, v)
	case *agent.Report:
		formatAgentReportText(w, v)
	case *agent.Stats:
		formatAgentStatsText(w, v)
	case []string:
		for _, line := range v {
			fmt.Fprintln(w, line)
		}
	case json.RawMessage:
		_, _ = w.Write(v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	if result.TotalCount != nil {
		count := *result.TotalCount
		if shown := resultLen(result.Results); shown < count {
			fmt.Fprintf(w, "\nShowing %d of %d results\n", shown, count)
		}
	}
	return nil
}

// resultLen returns the length of a result slice, or 1 for a single value.
func resultLen(v any) int {
	switch r := v.(type) {
	case []*graph.Node:
		return len(r)
	case []spashta.Relation:
		return len(r)
	case []spashta.FileEntry:
		return len(r)
	case []RunRecord:
		return len(r)
	case []string:
		return len(r)
	case nil:
		return 0
	default:
		return 1
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var validFormats = []string{"json", "text"}

func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
