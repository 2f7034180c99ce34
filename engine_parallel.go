package spashta

import (
	"context"
	"fmt"
	goruntime "runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mpcoder1111/Spashta-CKG/internal/builder"
	"github.com/mpcoder1111/Spashta-CKG/internal/cache"
	"github.com/mpcoder1111/Spashta-CKG/internal/graph"
)

// buildResult is one fragment ready for validation.
type buildResult struct {
	name     string
	source   string
	units    int
	fragment *graph.Fragment
}

// buildWorkers returns the builder concurrency limit.
func (e *Engine) buildWorkers() int {
	if e.profile.Workers > 0 {
		return e.profile.Workers
	}
	return max(goruntime.NumCPU(), 1)
}

// buildAll runs every builder concurrently, each over its own language's
// units. Results keep builder order. The first builder error cancels the
// rest.
func (e *Engine) buildAll(ctx context.Context, d *discovery) ([]*buildResult, error) {
	hashes := make(map[string]map[string]string, len(e.builders))
	for _, fh := range d.hashes {
		if hashes[fh.Language] == nil {
			hashes[fh.Language] = make(map[string]string)
		}
		hashes[fh.Language][fh.Path] = fh.Hash
	}

	results := make([]*buildResult, len(e.builders))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.buildWorkers())
	for i, b := range e.builders {
		g.Go(func() error {
			res, err := e.buildOne(gctx, b, d.units[b.Language()], hashes[b.Language()])
			if err != nil {
				return fmt.Errorf("spashta: build %s: %w", b.Language(), err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// buildOne returns the cached fragment for lang when every unit hash
// matches, or runs the builder and caches its output.
func (e *Engine) buildOne(ctx context.Context, b builder.Builder, units []string, hashes map[string]string) (*buildResult, error) {
	lang := b.Language()
	res := &buildResult{name: lang, source: SourceBuilder, units: len(units)}

	var key string
	if e.cache != nil {
		key = cache.Key(lang, e.fingerprint, hashes)
		f, ok, err := e.cache.Get(key)
		if err != nil {
			e.logger.Warn("fragment cache read failed", zap.String("language", lang), zap.Error(err))
		}
		e.metrics.CacheLookup(lang, ok)
		if ok {
			e.logger.Debug("fragment cache hit", zap.String("language", lang), zap.Int("units", len(units)))
			res.source = SourceCache
			res.fragment = f
			return res, nil
		}
	}

	f, err := b.Build(ctx, e.profile.ProjectRoot, units)
	if err != nil {
		return nil, err
	}
	e.logger.Info("fragment built",
		zap.String("language", lang),
		zap.Int("units", len(units)),
		zap.Int("nodes", len(f.Nodes)),
		zap.Int("edges", len(f.Edges)),
		zap.Int("ambiguities", len(f.Ambiguities)))

	if e.cache != nil {
		if err := e.cache.Put(key, lang, f); err != nil {
			e.logger.Warn("fragment cache write failed", zap.String("language", lang), zap.Error(err))
		}
	}
	res.fragment = f
	return res, nil
}

// CachedLanguages returns the languages with a cached fragment, sorted.
func (e *Engine) CachedLanguages() ([]string, error) {
	if e.cache == nil {
		return nil, ErrCacheDisabled
	}
	return e.cache.Languages()
}

// ClearCache drops the cached fragments of langs, or of every cached
// language when langs is empty, and returns the languages it dropped.
func (e *Engine) ClearCache(langs ...string) ([]string, error) {
	if e.cache == nil {
		return nil, ErrCacheDisabled
	}
	if len(langs) == 0 {
		var err error
		if langs, err = e.cache.Languages(); err != nil {
			return nil, err
		}
	}
	cleared := make([]string, 0, len(langs))
	for _, lang := range langs {
		if err := e.cache.Invalidate(lang); err != nil {
			return cleared, err
		}
		cleared = append(cleared, lang)
	}
	e.logger.Info("fragment cache cleared", zap.Strings("languages", cleared))
	return cleared, nil
}
