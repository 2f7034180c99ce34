package runtime

import (
	"context"
	"os"
	"sync"
	"unsafe"

	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"
	"go.uber.org/zap"

	"github.com/mpcoder1111/Spashta-CKG/internal/builder"
)

// parsedTree is the source and grammar behind one parsed tree.
type parsedTree struct {
	src  []byte
	lang *sitter.Language
}

// sourceStore remembers every tree parsed during a script run, keyed by
// root node pointer. smacker/go-tree-sitter has no Node.Tree(), so lookups
// walk a node up to its root first.
type sourceStore struct {
	mu    sync.RWMutex
	trees map[uintptr]parsedTree
}

func newSourceStore() *sourceStore {
	return &sourceStore{trees: make(map[uintptr]parsedTree)}
}

func rootKey(node *sitter.Node) uintptr {
	for p := node.Parent(); p != nil; p = node.Parent() {
		node = p
	}
	return uintptr(unsafe.Pointer(node))
}

func (s *sourceStore) store(tree *sitter.Tree, src []byte, lang *sitter.Language) {
	key := uintptr(unsafe.Pointer(tree.RootNode()))
	s.mu.Lock()
	s.trees[key] = parsedTree{src: src, lang: lang}
	s.mu.Unlock()
}

func (s *sourceStore) lookup(node *sitter.Node) (parsedTree, bool) {
	key := rootKey(node)
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trees[key]
	return t, ok
}

func nodeArg(fn string, arg object.Object) (*sitter.Node, object.Object) {
	proxy, ok := arg.(*object.Proxy)
	if !ok {
		return nil, object.Errorf("%s: expected proxy (Node), got %s", fn, arg.Type())
	}
	node, ok := proxy.Interface().(*sitter.Node)
	if !ok {
		return nil, object.Errorf("%s: expected *sitter.Node, got %T", fn, proxy.Interface())
	}
	return node, nil
}

func stringArg(fn, what string, arg object.Object) (string, object.Object) {
	s, ok := arg.(*object.String)
	if !ok {
		return "", object.Errorf("%s: %s must be a string, got %s", fn, what, arg.Type())
	}
	return s.Value(), nil
}

// proxyNode wraps node for Risor, mapping a Go nil to Risor nil.
func proxyNode(fn string, node *sitter.Node) object.Object {
	if node == nil {
		return object.Nil
	}
	p, err := object.NewProxy(node)
	if err != nil {
		return object.Errorf("%s: proxy error: %v", fn, err)
	}
	return p
}

// parse(path, language) → *sitter.Tree
func makeParseFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("parse", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("parse", 2, len(args))
		}
		path, errObj := stringArg("parse", "path", args[0])
		if errObj != nil {
			return errObj
		}
		lang, errObj := stringArg("parse", "language", args[1])
		if errObj != nil {
			return errObj
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return object.Errorf("parse: reading %s: %v", path, err)
		}
		return parseSource(ctx, ss, src, lang)
	})
}

// parse_src(source, language) → *sitter.Tree
func makeParseSrcFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("parse_src", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("parse_src", 2, len(args))
		}
		src, errObj := stringArg("parse_src", "source", args[0])
		if errObj != nil {
			return errObj
		}
		lang, errObj := stringArg("parse_src", "language", args[1])
		if errObj != nil {
			return errObj
		}
		return parseSource(ctx, ss, []byte(src), lang)
	})
}

func parseSource(ctx context.Context, ss *sourceStore, src []byte, langName string) object.Object {
	lang, found := builder.Grammar(langName)
	if !found {
		return object.Errorf("parse: unsupported language %q", langName)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return object.Errorf("parse: %s: %v", langName, err)
	}
	ss.store(tree, src, lang)

	p, err := object.NewProxy(tree)
	if err != nil {
		return object.Errorf("parse: wrap tree: %v", err)
	}
	return p
}

// node_text(node) → string
//
// Risor's proxy cannot hand a []byte to node.Content, so the source is
// looked up Go-side.
func makeNodeTextFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("node_text", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_text", 1, len(args))
		}
		node, errObj := nodeArg("node_text", args[0])
		if errObj != nil {
			return errObj
		}
		t, found := ss.lookup(node)
		if !found {
			return object.Errorf("node_text: node does not belong to a parsed tree")
		}
		return object.NewString(node.Content(t.src))
	})
}

// query(pattern, node) → []map[string]Node
func makeQueryFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("query", 2, len(args))
		}
		pattern, errObj := stringArg("query", "pattern", args[0])
		if errObj != nil {
			return errObj
		}
		node, errObj := nodeArg("query", args[1])
		if errObj != nil {
			return errObj
		}
		t, found := ss.lookup(node)
		if !found {
			return object.Errorf("query: node does not belong to a parsed tree")
		}

		q, err := sitter.NewQuery([]byte(pattern), t.lang)
		if err != nil {
			return object.Errorf("query: invalid pattern: %v", err)
		}
		defer q.Close()

		cursor := sitter.NewQueryCursor()
		defer cursor.Close()
		cursor.Exec(q, node)

		results := []object.Object{}
		for {
			match, ok := cursor.NextMatch()
			if !ok {
				break
			}
			match = cursor.FilterPredicates(match, t.src)

			captures := make(map[string]object.Object, len(match.Captures))
			for _, c := range match.Captures {
				name := q.CaptureNameForId(c.Index)
				p := proxyNode("query", c.Node)
				if errObj, isErr := p.(*object.Error); isErr {
					return errObj
				}
				captures[name] = p
			}
			results = append(results, object.NewMap(captures))
		}
		return object.NewList(results)
	})
}

// node_child(node, fieldName) → Node or nil
func makeNodeChildFn() *object.Builtin {
	return object.NewBuiltin("node_child", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("node_child", 2, len(args))
		}
		node, errObj := nodeArg("node_child", args[0])
		if errObj != nil {
			return errObj
		}
		field, errObj := stringArg("node_child", "field", args[1])
		if errObj != nil {
			return errObj
		}
		return proxyNode("node_child", node.ChildByFieldName(field))
	})
}

// node_parent(node) → Node or nil
func makeNodeParentFn() *object.Builtin {
	return object.NewBuiltin("node_parent", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_parent", 1, len(args))
		}
		node, errObj := nodeArg("node_parent", args[0])
		if errObj != nil {
			return errObj
		}
		return proxyNode("node_parent", node.Parent())
	})
}

// node_line(node) → 1-based start line
func makeNodeLineFn() *object.Builtin {
	return object.NewBuiltin("node_line", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_line", 1, len(args))
		}
		node, errObj := nodeArg("node_line", args[0])
		if errObj != nil {
			return errObj
		}
		return object.NewInt(int64(node.StartPoint().Row) + 1)
	})
}

// logObject provides log.Info/Warn/Error methods for Risor scripts.
type logObject struct {
	logger *zap.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg, zap.String("source", "script"))
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg, zap.String("source", "script"))
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg, zap.String("source", "script"))
}
