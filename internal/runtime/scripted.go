package runtime

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/mpcoder1111/Spashta-CKG/internal/builder"
	"github.com/mpcoder1111/Spashta-CKG/internal/graph"
	"github.com/mpcoder1111/Spashta-CKG/internal/schema"
)

// ScriptBuilder is a language builder whose observation logic lives in a
// Risor script. It implements builder.Builder.
type ScriptBuilder struct {
	language string
	rt       *Runtime
	schema   *schema.Schema
	mapping  *schema.Mapping
	source   string
}

var _ builder.Builder = (*ScriptBuilder)(nil)

// NewScriptBuilder returns the scripted builder for language. The language
// needs an embedded mapping and a script the runtime can load.
func NewScriptBuilder(rt *Runtime, language string, s *schema.Schema) (*ScriptBuilder, error) {
	m, err := schema.LoadMapping(language)
	if err != nil {
		return nil, fmt.Errorf("runtime: %w", err)
	}
	src, err := rt.LoadScript(ScriptPath(language))
	if err != nil {
		return nil, err
	}
	return &ScriptBuilder{language: language, rt: rt, schema: s, mapping: m, source: src}, nil
}

// Language implements builder.Builder.
func (b *ScriptBuilder) Language() string {
	return b.language
}

// Build runs the script once per unit, in sorted order. The script sees
// unit_path, unit_source and mapping plus the emit_* host functions. Units
// that cannot be read or whose script run fails are logged in the fragment
// and do not stop the build.
func (b *ScriptBuilder) Build(ctx context.Context, root string, units []string) (*graph.Fragment, error) {
	script := ScriptPath(b.language)
	sorted := append([]string(nil), units...)
	sort.Strings(sorted)

	bc := builder.NewContext(b.schema, b.mapping, b.rt.logger)
	mapping := mappingObject(b.mapping)
	for _, rel := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			bc.Log(builder.LogReadError, rel, err.Error())
			continue
		}

		u := &unitEmitter{bc: bc, path: rel, hash: builder.ContentHash(content)}
		globals := u.globals()
		globals["unit_path"] = rel
		globals["unit_source"] = string(content)
		globals["mapping"] = mapping
		if err := b.rt.eval(ctx, b.source, script, globals); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			bc.Log(builder.LogScriptLog, rel, err.Error())
		}
	}

	f := bc.Fragment()
	b.rt.logger.Info("scripted fragment built",
		zap.String("language", b.language),
		zap.Int("units", len(sorted)),
		zap.Int("nodes", len(f.Nodes)),
		zap.Int("edges", len(f.Edges)),
		zap.Int("ambiguities", len(f.Ambiguities)))
	return f, nil
}
