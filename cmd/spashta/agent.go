package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	spashta "github.com/mpcoder1111/Spashta-CKG"
	"github.com/mpcoder1111/Spashta-CKG/internal/agent"
	"github.com/mpcoder1111/Spashta-CKG/internal/graph"
)

// agentInputs are the graphs the agent commands compare.
type agentInputs struct {
	outDir   string
	enriched *graph.Graph
	agent    *agent.Graph
}

func (c *cli) agentCmd() *cobra.Command {
	var graphPath string
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Track enrichment written by an external agent",
		Long: "An agent copies " + spashta.ArtifactEnriched + " to " + spashta.ArtifactAgentGraph +
			" and annotates nodes with llm_enrichment and ambiguities with llm_resolution. " +
			"These commands list what it still has to do, check what it wrote, and count its progress.",
	}
	cmd.PersistentFlags().StringVar(&graphPath, "graph", "", "agent graph (default: <out>/"+spashta.ArtifactAgentGraph+")")

	var full bool
	pending := &cobra.Command{
		Use:   "pending",
		Short: "List files whose hash differs from the hash they were enriched at",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := c.loadAgentInputs(graphPath, false)
			if err != nil {
				return c.outputError(CLIResult{Command: "agent pending"}, err)
			}
			r := agent.Pending(in.enriched, in.agent, full, time.Now())
			if err := graph.WriteJSON(filepath.Join(in.outDir, filepath.FromSlash(spashta.ArtifactAgentPending)), r); err != nil {
				return c.outputError(CLIResult{Command: "agent pending"}, err)
			}
			return c.outputResult(CLIResult{Command: "agent pending", Results: r})
		},
	}
	pending.Flags().BoolVar(&full, "full", false, "list every file regardless of hash")

	cmd.AddCommand(
		pending,
		&cobra.Command{
			Use:   "validate",
			Short: "Check the agent graph's annotations and structure",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				in, err := c.loadAgentInputs(graphPath, true)
				if err != nil {
					return c.outputError(CLIResult{Command: "agent validate"}, err)
				}
				r := agent.Validate(in.enriched, in.agent)
				result := CLIResult{Command: "agent validate", Results: r}
				if err := r.Err(); err != nil {
					return c.outputError(result, err)
				}
				return c.outputResult(result)
			},
		},
		&cobra.Command{
			Use:   "stats",
			Short: "Count enriched nodes and resolved ambiguities",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				in, err := c.loadAgentInputs(graphPath, false)
				if err != nil {
					return c.outputError(CLIResult{Command: "agent stats"}, err)
				}
				s := agent.Progress(in.enriched, in.agent, time.Now())
				if err := graph.WriteJSON(filepath.Join(in.outDir, filepath.FromSlash(spashta.ArtifactAgentStats)), s); err != nil {
					return c.outputError(CLIResult{Command: "agent stats"}, err)
				}
				return c.outputResult(CLIResult{Command: "agent stats", Results: s})
			},
		},
	)
	return cmd
}

// loadAgentInputs reads the enriched graph and the agent graph. A missing
// agent graph is an error only when required.
func (c *cli) loadAgentInputs(graphPath string, required bool) (*agentInputs, error) {
	p, err := c.loadProfile()
	if err != nil {
		return nil, err
	}
	in := &agentInputs{outDir: p.OutputPath()}
	if in.enriched, err = graph.ReadGraph(filepath.Join(in.outDir, spashta.ArtifactEnriched)); err != nil {
		return nil, fmt.Errorf("enriched graph: %w", err)
	}
	if graphPath == "" {
		graphPath = filepath.Join(in.outDir, spashta.ArtifactAgentGraph)
	}
	in.agent, err = agent.ReadGraph(graphPath)
	switch {
	case err == nil:
	case errors.Is(err, graph.ErrNoArtifact) && !required:
		c.logger.Debug("no agent graph yet")
	default:
		return nil, fmt.Errorf("agent graph: %w", err)
	}
	return in, nil
}
