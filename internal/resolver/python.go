// Package resolver is the Python builder. It resolves references with a
// two-pass scoped symbol resolver over tree-sitter syntax trees: pass one
// registers every declaration of every unit, pass two re-walks each unit
// with a hierarchical symbol table and emits only edges whose targets are
// registered. Everything else becomes an ambiguity ticket.
package resolver

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
	"go.uber.org/zap"

	"github.com/mpcoder1111/Spashta-CKG/internal/builder"
	"github.com/mpcoder1111/Spashta-CKG/internal/graph"
	"github.com/mpcoder1111/Spashta-CKG/internal/schema"
)

const (
	// Language is the builder language name.
	Language = "python"

	// BuildVersion is bumped when resolution output changes for unchanged
	// sources.
	BuildVersion = "1"
)

// Builder is the Python language builder.
type Builder struct {
	schema  *schema.Schema
	mapping *schema.Mapping
	logger  *zap.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) {
		b.logger = l
	}
}

// New returns a Python builder gated by s.
func New(s *schema.Schema, opts ...Option) (*Builder, error) {
	m, err := schema.LoadMapping(Language)
	if err != nil {
		return nil, fmt.Errorf("resolver: %w", err)
	}
	b := &Builder{schema: s, mapping: m, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Language implements builder.Builder.
func (b *Builder) Language() string {
	return Language
}

// Version implements builder.Versioned.
func (b *Builder) Version() string {
	return BuildVersion
}

// unit is one parsed source file.
type unit struct {
	rel  string
	src  []byte
	tree *sitter.Tree
}

func (u *unit) text(n *sitter.Node) string {
	return n.Content(u.src)
}

// Build parses every unit under root and returns the Python fragment. Units
// are paths relative to root; they are processed in sorted order. Units that
// cannot be read or parsed are recorded as fragment logs and skipped.
func (b *Builder) Build(ctx context.Context, root string, units []string) (*graph.Fragment, error) {
	lang, ok := builder.Grammar(Language)
	if !ok {
		return nil, fmt.Errorf("resolver: no grammar for %s", Language)
	}
	bc := builder.NewContext(b.schema, b.mapping, b.logger)

	sorted := make([]string, len(units))
	for i, u := range units {
		sorted[i] = filepath.ToSlash(u)
	}
	sort.Strings(sorted)

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	parsed := make([]*unit, 0, len(sorted))
	defer func() {
		for _, u := range parsed {
			u.tree.Close()
		}
	}()

	for _, rel := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			bc.Log(builder.LogReadError, rel, err.Error())
			continue
		}
		tree, err := parser.ParseCtx(ctx, nil, src)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			bc.Log(builder.LogParseError, rel, err.Error())
			continue
		}
		if bad := firstError(tree.RootNode()); bad != nil {
			bc.Log(builder.LogParseError, rel,
				fmt.Sprintf("invalid syntax at line %d", bad.StartPoint().Row+1))
			tree.Close()
			continue
		}
		u := &unit{rel: rel, src: src, tree: tree}
		parsed = append(parsed, u)
		registerStructure(bc, u)
	}

	for _, u := range parsed {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resolveRelations(bc, u)
	}

	frag := bc.Fragment()
	b.logger.Info("python fragment built",
		zap.Int("units", len(parsed)),
		zap.Int("nodes", len(frag.Nodes)),
		zap.Int("edges", len(frag.Edges)),
		zap.Int("ambiguities", len(frag.Ambiguities)))
	return frag, nil
}

// firstError returns the first error or missing node in n, or nil.
func firstError(n *sitter.Node) *sitter.Node {
	if !n.HasError() {
		return nil
	}
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if bad := firstError(n.Child(i)); bad != nil {
			return bad
		}
	}
	return n
}

// fileName returns the base name of a slash-separated unit path.
func fileName(rel string) string {
	return path.Base(rel)
}
