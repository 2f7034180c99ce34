// Package watch reports batches of source changes under a project root,
// debounced so that an editor save burst triggers one rebuild.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period before a batch is delivered.
const DefaultDebounce = 300 * time.Millisecond

// Handler receives the sorted, de-duplicated slash-separated paths that
// changed. A returned error stops the watcher.
type Handler func(ctx context.Context, changed []string) error

// SkipFunc reports whether a root-relative path should be ignored.
type SkipFunc func(rel string, isDir bool) bool

// Watcher watches a directory tree.
type Watcher struct {
	root     string
	debounce time.Duration
	skip     SkipFunc
	logger   *zap.Logger
	fsw      *fsnotify.Watcher
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the debounce window.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithSkip sets the path filter.
func WithSkip(fn SkipFunc) Option {
	return func(w *Watcher) { w.skip = fn }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New registers every directory under root that the filter keeps.
func New(root string, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		root:     root,
		debounce: DefaultDebounce,
		skip:     func(string, bool) bool { return false },
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	w.fsw = fsw
	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Close releases the underlying watcher. Safe after Run returns.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.skip(w.rel(path), true) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add %s: %w", path, err)
		}
		return nil
	})
}

// Run delivers change batches to h until ctx is done or h fails. It owns no
// goroutines; everything happens on the caller's.
func (w *Watcher) Run(ctx context.Context, h Handler) error {
	pending := make(map[string]bool)
	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.accept(ev) {
				continue
			}
			pending[w.rel(ev.Name)] = true
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))

		case <-timerC:
			timer, timerC = nil, nil
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			sort.Strings(batch)
			clear(pending)
			w.logger.Info("changes detected", zap.Int("files", len(batch)))
			if err := h(ctx, batch); err != nil {
				return err
			}
		}
	}
}

// accept filters an event and starts watching directories created under
// the root.
func (w *Watcher) accept(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	rel := w.rel(ev.Name)
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if w.skip(rel, true) {
				return false
			}
			if err := w.addTree(ev.Name); err != nil && !errors.Is(err, fs.ErrNotExist) {
				w.logger.Warn("watch add failed", zap.String("dir", rel), zap.Error(err))
			}
			return false
		}
	}
	return !w.skip(rel, false)
}
