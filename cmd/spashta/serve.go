package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	spashta "github.com/mpcoder1111/Spashta-CKG"
	"github.com/mpcoder1111/Spashta-CKG/internal/server"
	"github.com/mpcoder1111/Spashta-CKG/internal/watch"
)

func (c *cli) serveCmd() *cobra.Command {
	var (
		addr     string
		rebuild  bool
		debounce time.Duration
		ef       engineFlags
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query API over HTTP",
		Long:  "Serves read-only queries over the published graph under /v1. With --watch the pipeline re-runs on source changes and the served graph is reloaded after each successful run.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !c.verbose {
				gin.SetMode(gin.ReleaseMode)
			}
			ctx := cmd.Context()

			var (
				e    *spashta.Engine
				opts = []server.Option{server.WithLogger(c.logger)}
			)
			if rebuild {
				var err error
				if e, err = c.newEngine(ef.options()...); err != nil {
					return err
				}
				defer e.Close()
				// The first run publishes the graph the server loads.
				if _, err := e.Run(ctx); err != nil {
					c.logger.Warn("initial run failed", zap.Error(err))
				}
				opts = append(opts, server.WithRegistry(e.Metrics().Registry()))
			}

			srv, err := server.New(c.loadQuery, opts...)
			if err != nil {
				return err
			}
			if e == nil {
				return srv.Serve(ctx, addr)
			}

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Serve(ctx, addr) })
			g.Go(func() error {
				w, err := watch.New(e.Profile().ProjectRoot,
					watch.WithDebounce(debounce),
					watch.WithSkip(e.Skip),
					watch.WithLogger(c.logger))
				if err != nil {
					return err
				}
				defer w.Close()
				return w.Run(ctx, func(ctx context.Context, changed []string) error {
					if _, err := e.Run(ctx); err != nil {
						c.logger.Warn("run failed", zap.Strings("changed", changed), zap.Error(err))
						return nil
					}
					if err := srv.Reload(); err != nil {
						c.logger.Warn("reload failed", zap.Error(err))
					}
					return nil
				})
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8420", "listen address")
	cmd.Flags().BoolVar(&rebuild, "watch", false, "re-run the pipeline on source changes and reload")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before a re-run")
	ef.register(cmd)
	return cmd
}
