package runtime

import (
	"context"
	"fmt"
	"sort"

	"github.com/risor-io/risor/object"

	"github.com/mpcoder1111/Spashta-CKG/internal/builder"
	"github.com/mpcoder1111/Spashta-CKG/internal/graph"
	"github.com/mpcoder1111/Spashta-CKG/internal/schema"
)

// unitEmitter binds the emit_* host functions to one unit of a builder
// run. Ids are assigned Go-side: the unit's file-kind node is keyed by its
// path, symbolic nodes by path::Type::name.
type unitEmitter struct {
	bc     *builder.Context
	path   string
	hash   string
	fileID string
}

func (u *unitEmitter) globals() map[string]any {
	return map[string]any{
		"emit_file":      u.emitFileFn(),
		"emit_symbol":    u.emitSymbolFn(),
		"emit_edge":      u.emitEdgeFn(),
		"emit_ambiguity": u.emitAmbiguityFn(),
	}
}

// emit_file(node_type) → id
func (u *unitEmitter) emitFileFn() *object.Builtin {
	return object.NewBuiltin("emit_file", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("emit_file", 1, len(args))
		}
		name, errObj := stringArg("emit_file", "node_type", args[0])
		if errObj != nil {
			return errObj
		}
		t, ok := graph.ParseNodeType(name)
		if !ok || !t.IsFileKind() {
			return object.Errorf("emit_file: %q is not a file-kind node type", name)
		}
		u.bc.Register("", graph.Node{
			ID:         u.path,
			Type:       t,
			Name:       u.path,
			FilePath:   u.path,
			Confidence: graph.ConfidenceStructural,
			Hash:       u.hash,
		})
		u.fileID = u.path
		return object.NewString(u.fileID)
	})
}

// emit_symbol(node_type, name, line, attributes) → id
//
// Symbolic nodes are owned by the unit's file node through containment, which
// the script still has to emit as an edge.
func (u *unitEmitter) emitSymbolFn() *object.Builtin {
	return object.NewBuiltin("emit_symbol", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 4 {
			return object.NewArgsError("emit_symbol", 4, len(args))
		}
		if u.fileID == "" {
			return object.Errorf("emit_symbol: emit_file must be called first")
		}
		typeName, errObj := stringArg("emit_symbol", "node_type", args[0])
		if errObj != nil {
			return errObj
		}
		name, errObj := stringArg("emit_symbol", "name", args[1])
		if errObj != nil {
			return errObj
		}
		line, ok := args[2].(*object.Int)
		if !ok {
			return object.Errorf("emit_symbol: line must be an int, got %s", args[2].Type())
		}
		attrs, err := stringMap(args[3])
		if err != nil {
			return object.Errorf("emit_symbol: attributes: %v", err)
		}
		t, ok := graph.ParseNodeType(typeName)
		if !ok || t.IsFileKind() {
			return object.Errorf("emit_symbol: %q is not a symbolic node type", typeName)
		}

		id := u.path + "::" + t.String() + "::" + name
		u.bc.Register(u.fileID, graph.Node{
			ID:         id,
			Type:       t,
			Name:       name,
			FilePath:   u.path,
			LineStart:  int(line.Value()),
			Confidence: graph.ConfidenceHeuristic,
			Attributes: attrs,
		})
		return object.NewString(id)
	})
}

// emit_edge(logical, src, dst) → bool
func (u *unitEmitter) emitEdgeFn() *object.Builtin {
	return object.NewBuiltin("emit_edge", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 3 {
			return object.NewArgsError("emit_edge", 3, len(args))
		}
		var parts [3]string
		for i, what := range []string{"edge", "src", "dst"} {
			s, errObj := stringArg("emit_edge", what, args[i])
			if errObj != nil {
				return errObj
			}
			parts[i] = s
		}
		return object.NewBool(u.bc.EmitEdge(parts[0], parts[1], parts[2], 0))
	})
}

// emit_ambiguity(kind, expression, reason)
func (u *unitEmitter) emitAmbiguityFn() *object.Builtin {
	return object.NewBuiltin("emit_ambiguity", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 3 {
			return object.NewArgsError("emit_ambiguity", 3, len(args))
		}
		var parts [3]string
		for i, what := range []string{"kind", "expression", "reason"} {
			s, errObj := stringArg("emit_ambiguity", what, args[i])
			if errObj != nil {
				return errObj
			}
			parts[i] = s
		}
		u.bc.Ambiguity(parts[0], parts[1], parts[2], u.path, "")
		return object.Nil
	})
}

// stringMap converts a Risor map of strings. Nil and empty maps yield nil.
func stringMap(obj object.Object) (map[string]string, error) {
	if obj == object.Nil {
		return nil, nil
	}
	m, err := extractMap(obj)
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		s, err := toString(v)
		if err != nil {
			return nil, err
		}
		out[k] = s
	}
	return out, nil
}

func extractMap(obj object.Object) (map[string]object.Object, error) {
	m, ok := obj.(*object.Map)
	if !ok {
		return nil, fmt.Errorf("expected map, got %s", obj.Type())
	}
	return m.Value(), nil
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}

func stringList(values []string) *object.List {
	items := make([]object.Object, len(values))
	for i, v := range values {
		items[i] = object.NewString(v)
	}
	return object.NewList(items)
}

func interactionObject(in schema.Interaction) *object.Map {
	m := map[string]object.Object{
		"attribute":        object.NewString(in.Attribute),
		"target_node_type": object.NewString(in.TargetNodeType),
		"emits_edge":       object.NewString(in.EmitsEdge),
	}
	if len(in.Condition) > 0 {
		cond := make(map[string]object.Object, len(in.Condition))
		for k, v := range in.Condition {
			cond[k] = stringList(v)
		}
		m["condition"] = object.NewMap(cond)
	}
	return object.NewMap(m)
}

// mappingObject exposes the parts of a language mapping scripts consult.
func mappingObject(m *schema.Mapping) *object.Map {
	attrs := make([]object.Object, 0, len(m.AttributeInteractions))
	for _, in := range m.AttributeInteractions {
		attrs = append(attrs, interactionObject(in))
	}

	tagNames := make([]string, 0, len(m.TagInteractions))
	for tag := range m.TagInteractions {
		tagNames = append(tagNames, tag)
	}
	sort.Strings(tagNames)
	tags := make(map[string]object.Object, len(tagNames))
	for _, tag := range tagNames {
		rules := make([]object.Object, 0, len(m.TagInteractions[tag]))
		for _, in := range m.TagInteractions[tag] {
			rules = append(rules, interactionObject(in))
		}
		tags[tag] = object.NewList(rules)
	}

	strict := make(map[string]object.Object, len(m.StrictRules))
	for k, v := range m.StrictRules {
		strict[k] = object.NewBool(v)
	}

	return object.NewMap(map[string]object.Object{
		"language":               object.NewString(m.Language),
		"dynamic_patterns":       stringList(m.DynamicPatterns),
		"attribute_interactions": object.NewList(attrs),
		"tag_interactions":       object.NewMap(tags),
		"strict_rules":           object.NewMap(strict),
	})
}
