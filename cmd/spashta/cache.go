package main

import (
	"github.com/spf13/cobra"

	spashta "github.com/mpcoder1111/Spashta-CKG"
)

func (c *cli) cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the fragment cache",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List languages with a cached fragment",
			Args:  cobra.NoArgs,
			RunE: c.withEngine("cache list", func(e *spashta.Engine, args []string) ([]string, error) {
				return e.CachedLanguages()
			}),
		},
		&cobra.Command{
			Use:   "clear [language...]",
			Short: "Drop cached fragments so the next run rebuilds them",
			RunE: c.withEngine("cache clear", func(e *spashta.Engine, args []string) ([]string, error) {
				return e.ClearCache(args...)
			}),
		},
	)
	return cmd
}

// withEngine opens an Engine, runs fn and writes the languages it returns.
func (c *cli) withEngine(name string, fn func(*spashta.Engine, []string) ([]string, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := c.newEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		langs, err := fn(e, args)
		if err != nil {
			return c.outputError(CLIResult{Command: name}, err)
		}
		total := len(langs)
		return c.outputResult(CLIResult{Command: name, Results: langs, TotalCount: &total})
	}
}
