package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	spashta "github.com/mpcoder1111/Spashta-CKG"
	"github.com/mpcoder1111/Spashta-CKG/internal/config"
)

// errHandled marks an error that has already been written to stdout as a
// CLIResult, so main only sets the exit status.
var errHandled = errors.New("error already reported")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errHandled) {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

// cli holds the global flags and the logger shared by every command.
type cli struct {
	out    io.Writer
	errOut io.Writer

	root        string
	outDir      string
	profilePath string
	format      string
	verbose     bool

	logger *zap.Logger
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out, errOut: errOut, logger: zap.NewNop()}
	cmd := &cobra.Command{
		Use:           "spashta",
		Short:         "Deterministic code knowledge graph builder",
		Long:          "Spashta builds schema-validated fragments per language, merges them into one graph, diffs it against the previous run, and overlays framework roles without changing structure.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(c.format); err != nil {
				return err
			}
			return c.initLogger()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = c.logger.Sync()
		},
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	f := cmd.PersistentFlags()
	f.StringVar(&c.root, "root", ".", "project root")
	f.StringVar(&c.outDir, "out", "", "artifact directory (default: profile output_dir)")
	f.StringVar(&c.profilePath, "profile", "", "profile file (default: <out>/profile.yaml)")
	f.StringVar(&c.format, "format", "json", "output format: json|text")
	f.BoolVarP(&c.verbose, "verbose", "v", false, "debug logging on stderr")

	cmd.AddCommand(
		c.pipelineCmd(spashta.ModeRun, "Run every phase: build, validate, merge, diff, enrich, verify", (*spashta.Engine).Run),
		c.pipelineCmd(spashta.ModeBuild, "Build, validate and merge fragments", (*spashta.Engine).Build),
		c.pipelineCmd(spashta.ModeDiff, "Diff the published merged graph against the previous enriched graph", (*spashta.Engine).Diff),
		c.pipelineCmd(spashta.ModeEnrich, "Enrich the published merged graph", (*spashta.Engine).Enrich),
		c.pipelineCmd(spashta.ModeVerify, "Check the published enriched graph against the merged graph", (*spashta.Engine).Verify),
		c.validateCmd(),
		c.watchCmd(),
		c.serveCmd(),
		c.historyCmd(),
		c.cacheCmd(),
		c.agentCmd(),
		c.queryCmd(),
	)
	return cmd
}

// initLogger builds the production logger, writing to stderr so stdout
// carries only results.
func (c *cli) initLogger() error {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if c.verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	c.logger = l
	return nil
}

// projectRoot returns the absolute --root directory.
func (c *cli) projectRoot() (string, error) {
	abs, err := filepath.Abs(c.root)
	if err != nil {
		return "", fmt.Errorf("resolving root %q: %w", c.root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("project root not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// loadProfile reads the profile and applies --out.
func (c *cli) loadProfile() (*config.Profile, error) {
	root, err := c.projectRoot()
	if err != nil {
		return nil, err
	}
	p, err := config.Load(root, c.profilePath)
	if err != nil {
		return nil, err
	}
	if c.outDir != "" {
		p.OutputDir = c.outDir
	}
	return p, nil
}

func (c *cli) newEngine(opts ...spashta.Option) (*spashta.Engine, error) {
	p, err := c.loadProfile()
	if err != nil {
		return nil, err
	}
	opts = append([]spashta.Option{spashta.WithProfile(p), spashta.WithLogger(c.logger)}, opts...)
	return spashta.New(p.ProjectRoot, opts...)
}
