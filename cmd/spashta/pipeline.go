package main

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	spashta "github.com/mpcoder1111/Spashta-CKG"
	"github.com/mpcoder1111/Spashta-CKG/internal/config"
	"github.com/mpcoder1111/Spashta-CKG/internal/enrich"
	"github.com/mpcoder1111/Spashta-CKG/internal/schema"
	"github.com/mpcoder1111/Spashta-CKG/internal/store"
	"github.com/mpcoder1111/Spashta-CKG/internal/watch"
)

// pipelineFunc is one of the Engine entry points.
type pipelineFunc func(e *spashta.Engine, ctx context.Context) (*spashta.RunSummary, error)

// engineFlags are shared by every command that constructs an Engine.
type engineFlags struct {
	scriptsDir string
	fragments  []string
}

func (f *engineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.scriptsDir, "scripts-dir", "", "load builder scripts from disk instead of embedded")
	cmd.Flags().StringSliceVar(&f.fragments, "fragment", nil, "external fragment JSON to validate and merge (repeatable)")
}

func (f *engineFlags) options() []spashta.Option {
	var opts []spashta.Option
	if f.scriptsDir != "" {
		opts = append(opts, spashta.WithScriptsDir(f.scriptsDir))
	}
	if len(f.fragments) > 0 {
		opts = append(opts, spashta.WithExternalFragments(f.fragments...))
	}
	return opts
}

func (c *cli) pipelineCmd(mode, short string, run pipelineFunc) *cobra.Command {
	var ef engineFlags
	cmd := &cobra.Command{
		Use:   mode,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := c.newEngine(ef.options()...)
			if err != nil {
				return err
			}
			defer e.Close()

			start := time.Now()
			s, err := run(e, cmd.Context())
			c.logger.Info("run finished",
				zap.String("mode", mode),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err))
			return c.outputRun(mode, s, err)
		},
	}
	ef.register(cmd)
	return cmd
}

// outputRun writes the run summary, with the error attached on failure.
func (c *cli) outputRun(command string, s *spashta.RunSummary, runErr error) error {
	if s == nil {
		return runErr
	}
	if runErr != nil {
		return c.outputError(CLIResult{Command: command, Results: s}, runErr)
	}
	return c.outputResult(CLIResult{Command: command, Results: s})
}

// ValidateResult combines the profile and adapter governance checks.
type ValidateResult struct {
	Status     string                     `json:"status"`
	Profile    *config.Report             `json:"profile"`
	Governance []*enrich.GovernanceReport `json:"governance"`
}

func (c *cli) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the project profile and framework adapters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.validate()
			if err != nil {
				return c.outputError(CLIResult{Command: "validate"}, err)
			}
			result := CLIResult{Command: "validate", Results: res}
			if res.Status != schema.StatusPass {
				return c.outputError(result, errValidateFailed)
			}
			return c.outputResult(result)
		},
	}
}

func (c *cli) validate() (*ValidateResult, error) {
	p, err := c.loadProfile()
	if err != nil {
		return nil, err
	}
	rep, err := config.Validate(p, spashta.Languages())
	res := &ValidateResult{Status: schema.StatusPass, Profile: rep, Governance: []*enrich.GovernanceReport{}}
	switch {
	case rep != nil && errors.Is(err, config.ErrInvalidProfile):
		// Violations are reported in the result, not as a command error.
		res.Status = schema.StatusFail
		return res, nil
	case err != nil:
		return nil, err
	}

	s := schema.Default()
	if p.SchemaPath != "" {
		if s, err = schema.LoadFile(p.SchemaPath); err != nil {
			return nil, err
		}
	}
	adapters, err := enrich.LoadAdapters(p.Frameworks, p.RulesDir)
	if err != nil {
		return nil, err
	}
	if res.Governance, err = enrich.GovernAll(s, adapters); err != nil {
		res.Status = schema.StatusFail
	}
	return res, nil
}

func (c *cli) watchCmd() *cobra.Command {
	var (
		ef       engineFlags
		debounce time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the pipeline, then again whenever source files change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := c.newEngine(ef.options()...)
			if err != nil {
				return err
			}
			defer e.Close()
			return e.Watch(cmd.Context(), debounce, func(s *spashta.RunSummary, err error) {
				if err != nil {
					c.logger.Warn("run failed", zap.Error(err))
				}
				// Each run is reported on its own; a failed run keeps the watch alive.
				_ = c.outputRun(spashta.ModeRun, s, err)
			})
		},
	}
	ef.register(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before a re-run")
	return cmd
}

// RunRecord is one row of the history listing.
type RunRecord struct {
	ID         string     `json:"id"`
	Mode       string     `json:"mode"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func (c *cli) historyCmd() *cobra.Command {
	var (
		limit    int
		artifact string
		runID    string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, newest first, or print an artifact snapshot",
		Long:  "Lists recorded runs. With --artifact, prints that artifact as recorded by --run, or by the newest successful run that wrote it.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := c.newEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			if artifact != "" {
				return c.outputSnapshot(e.History(), runID, artifact)
			}
			runs, err := e.History().Runs(limit)
			if err != nil {
				return c.outputError(CLIResult{Command: "history"}, err)
			}
			records := make([]RunRecord, 0, len(runs))
			for _, r := range runs {
				records = append(records, RunRecord{
					ID: r.ID, Mode: r.Mode, Status: r.Status,
					StartedAt: r.StartedAt, FinishedAt: r.FinishedAt,
				})
			}
			total := len(records)
			return c.outputResult(CLIResult{Command: "history", Results: records, TotalCount: &total})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list (0 for all)")
	cmd.Flags().StringVar(&artifact, "artifact", "", "artifact name to print, e.g. "+spashta.ArtifactSummary)
	cmd.Flags().StringVar(&runID, "run", "", "run id for --artifact (default: newest successful run)")
	return cmd
}

// outputSnapshot writes one stored artifact body as the results.
func (c *cli) outputSnapshot(h *store.Store, runID, name string) error {
	var (
		a   *store.Artifact
		err error
	)
	if runID != "" {
		a, err = h.Artifact(runID, name)
	} else {
		a, err = h.LatestArtifact(name)
	}
	if err != nil {
		return c.outputError(CLIResult{Command: "history"}, err)
	}
	return c.outputResult(CLIResult{Command: "history", Results: json.RawMessage(a.Body)})
}
