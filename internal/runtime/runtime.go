// Package runtime embeds a Risor VM for scripted builders. Go owns parsing,
// gating and id assignment; a per-language script walks the syntax tree and
// decides what to emit through host functions.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"
	"go.uber.org/zap"
)

// scriptExt is the extension of builder scripts and importable modules.
const scriptExt = ".risor"

// ErrNoScripts is returned when a Runtime has no script source configured.
var ErrNoScripts = errors.New("runtime: no script source configured")

// Runtime evaluates builder scripts with tree-sitter host functions.
// Scripts and the modules they import come from one fs.FS: the embedded
// set, or a directory on disk.
type Runtime struct {
	scripts fs.FS
	sources *sourceStore
	logger  *zap.Logger
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS loads scripts from fsys instead of a directory.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.scripts = fsys
	}
}

// WithLogger sets the logger used by scripts and builders.
func WithLogger(l *zap.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = l
	}
}

// NewRuntime returns a Runtime reading scripts from scriptsDir, or from
// the fs.FS given with WithRuntimeFS. With neither, only RunSource works
// and imports are unavailable.
func NewRuntime(scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{sources: newSourceStore(), logger: zap.NewNop()}
	if scriptsDir != "" {
		r.scripts = os.DirFS(scriptsDir)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ScriptPath returns the path of a language's builder script.
func ScriptPath(language string) string {
	return language + scriptExt
}

// LoadScript reads a script by its slash-separated path in the script
// source.
func (r *Runtime) LoadScript(name string) (string, error) {
	if r.scripts == nil {
		return "", fmt.Errorf("%w: load %s", ErrNoScripts, name)
	}
	clean := path.Clean(filepath.ToSlash(name))
	data, err := fs.ReadFile(r.scripts, clean)
	if err != nil {
		return "", fmt.Errorf("runtime: load script %s: %w", clean, err)
	}
	return string(data), nil
}

// RunScript loads and evaluates a script with the host functions plus
// extra.
func (r *Runtime) RunScript(ctx context.Context, name string, extra map[string]any) error {
	src, err := r.LoadScript(name)
	if err != nil {
		return err
	}
	return r.eval(ctx, src, name, extra)
}

// RunSource evaluates source with the host functions plus extra.
func (r *Runtime) RunSource(ctx context.Context, source string, extra map[string]any) error {
	return r.eval(ctx, source, "<inline>", extra)
}

func (r *Runtime) eval(ctx context.Context, source, label string, extra map[string]any) error {
	globals := r.hostGlobals()
	for k, v := range extra {
		globals[k] = v
	}

	names := make([]string, 0, len(globals))
	for name := range globals {
		names = append(names, name)
	}
	sort.Strings(names)

	opts := make([]risor.Option, 0, len(names)+1)
	for _, name := range names {
		opts = append(opts, risor.WithGlobal(name, globals[name]))
	}
	if r.scripts != nil {
		opts = append(opts, risor.WithImporter(importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: names,
			SourceFS:    r.scripts,
			Extensions:  []string{scriptExt},
		})))
	}

	if _, err := risor.Eval(ctx, source, opts...); err != nil {
		return fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return nil
}

// hostGlobals returns the tree-walking functions every script can call.
// Scripted builders add the emit_* functions and unit variables per run.
func (r *Runtime) hostGlobals() map[string]any {
	return map[string]any{
		"parse":       makeParseFn(r.sources),
		"parse_src":   makeParseSrcFn(r.sources),
		"node_text":   makeNodeTextFn(r.sources),
		"node_child":  makeNodeChildFn(),
		"node_parent": makeNodeParentFn(),
		"node_line":   makeNodeLineFn(),
		"query":       makeQueryFn(r.sources),
		"log":         proxy(&logObject{logger: r.logger}),
	}
}

func proxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy %T: %v", v, err))
	}
	return p
}
