package spashta

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mpcoder1111/Spashta-CKG/internal/watch"
)

// RunFunc observes the outcome of each run in watch mode.
type RunFunc func(s *RunSummary, err error)

// Watch runs the pipeline once, then again after every debounced batch of
// source changes, until ctx is done. Run failures are reported to onRun
// and do not stop watching. A zero debounce uses watch.DefaultDebounce.
func (e *Engine) Watch(ctx context.Context, debounce time.Duration, onRun RunFunc) error {
	if debounce <= 0 {
		debounce = watch.DefaultDebounce
	}
	w, err := watch.New(e.profile.ProjectRoot,
		watch.WithDebounce(debounce),
		watch.WithSkip(e.Skip),
		watch.WithLogger(e.logger))
	if err != nil {
		return err
	}
	defer w.Close()

	run := func(ctx context.Context) {
		s, err := e.Run(ctx)
		if onRun != nil {
			onRun(s, err)
		}
	}
	run(ctx)
	return w.Run(ctx, func(ctx context.Context, changed []string) error {
		e.logger.Info("rebuilding", zap.Strings("changed", changed))
		run(ctx)
		return nil
	})
}
