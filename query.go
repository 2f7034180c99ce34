package spashta

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/mpcoder1111/Spashta-CKG/internal/graph"
)

// MaxSearchResults caps Search output.
const MaxSearchResults = 50

// QueryBuilder answers read-only questions over a published graph.
type QueryBuilder struct {
	graph  *graph.Graph
	index  *graph.Index
	root   string
	source string
}

// NewQueryBuilder returns a QueryBuilder over g. root is the project root
// that node file paths are relative to.
func NewQueryBuilder(g *graph.Graph, root string) *QueryBuilder {
	return &QueryBuilder{graph: g, index: g.Index(), root: root}
}

// LoadQuery reads the published enriched graph from outDir. It fails with
// graph.ErrNoArtifact until an enrich or run has passed verification.
func LoadQuery(outDir, root string) (*QueryBuilder, error) {
	return loadQuery(outDir, ArtifactEnriched, root)
}

// LoadMergedQuery reads the merged graph from outDir. It carries no
// semantic roles and has not been checked by the equivalence guard.
func LoadMergedQuery(outDir, root string) (*QueryBuilder, error) {
	return loadQuery(outDir, ArtifactMerged, root)
}

func loadQuery(outDir, artifact, root string) (*QueryBuilder, error) {
	g, err := graph.ReadGraph(filepath.Join(outDir, artifact))
	if err != nil {
		return nil, fmt.Errorf("spashta: load graph: %w", err)
	}
	q := NewQueryBuilder(g, root)
	q.source = artifact
	return q, nil
}

// Source returns the artifact the graph was loaded from, or "" for a graph
// passed to NewQueryBuilder.
func (q *QueryBuilder) Source() string {
	return q.source
}

// Graph returns the underlying graph.
func (q *QueryBuilder) Graph() *graph.Graph {
	return q.graph
}

func (q *QueryBuilder) node(id string) (*graph.Node, error) {
	n, ok := q.graph.Node(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return n, nil
}

// Search returns up to MaxSearchResults nodes matching term, in graph
// order. term is a case-insensitive substring of the name or id, or a
// key:value filter. Filters match an attribute, a signature decorator for
// keys "decorator" and "@", a semantic role for key "role", or a node
// field. "@name" is shorthand for "decorator:name". typeFilter, when set,
// restricts results to one node type.
func (q *QueryBuilder) Search(term, typeFilter string) []*graph.Node {
	match := substringMatcher(strings.ToLower(term))
	switch {
	case strings.HasPrefix(term, "@") && len(term) > 1 && !strings.Contains(term, ":"):
		match = filterMatcher("decorator", strings.ToLower(term[1:]))
	case strings.Contains(term, ":") && !strings.Contains(term, "::"):
		k, v, _ := strings.Cut(term, ":")
		match = filterMatcher(strings.ToLower(k), strings.ToLower(v))
	}

	out := []*graph.Node{}
	for _, n := range q.graph.Nodes() {
		if typeFilter != "" && !strings.EqualFold(n.Type.String(), typeFilter) {
			continue
		}
		if !match(n) {
			continue
		}
		out = append(out, n)
		if len(out) == MaxSearchResults {
			break
		}
	}
	return out
}

type matcher func(n *graph.Node) bool

func substringMatcher(term string) matcher {
	return func(n *graph.Node) bool {
		return strings.Contains(strings.ToLower(n.Name), term) ||
			strings.Contains(strings.ToLower(n.ID), term)
	}
}

func filterMatcher(key, value string) matcher {
	return func(n *graph.Node) bool {
		if a, ok := n.Attributes[key]; ok && strings.ToLower(a) == value {
			return true
		}
		if key == "decorator" || key == "@" {
			if n.Signature != nil {
				for _, d := range n.Signature.Decorators {
					if strings.Contains(strings.ToLower(d), value) {
						return true
					}
				}
			}
			return false
		}
		if key == "role" {
			for _, r := range n.SemanticRoles {
				if strings.ToLower(r) == value {
					return true
				}
			}
			return false
		}
		f, ok := nodeField(n, key)
		return ok && strings.ToLower(f) == value
	}
}

// nodeField returns a scalar node field by its JSON name.
func nodeField(n *graph.Node, key string) (string, bool) {
	switch key {
	case "id":
		return n.ID, true
	case "name":
		return n.Name, true
	case "node_type", "type":
		return n.Type.String(), true
	case "file_path":
		return n.FilePath, true
	case "docstring":
		return n.Docstring, true
	case "hash":
		return n.Hash, true
	case "analysis_confidence", "confidence":
		return string(n.Confidence), true
	case "is_async":
		return strconv.FormatBool(n.IsAsync), true
	case "line_start":
		return strconv.Itoa(n.LineStart), true
	case "line_end":
		return strconv.Itoa(n.LineEnd), true
	}
	return "", false
}

// Location is where a node lives in source.
type Location struct {
	ID        string `json:"id"`
	File      string `json:"file"`
	LineStart int    `json:"line_start,omitempty"`
	LineEnd   int    `json:"line_end,omitempty"`
	Docstring string `json:"docstring,omitempty"`
}

// Locate returns the file and line range of id.
func (q *QueryBuilder) Locate(id string) (*Location, error) {
	n, err := q.node(id)
	if err != nil {
		return nil, err
	}
	return &Location{
		ID:        n.ID,
		File:      nodeFile(n),
		LineStart: n.LineStart,
		LineEnd:   n.LineEnd,
		Docstring: n.Docstring,
	}, nil
}

// Snippet modes.
const (
	ModeSnippet  = "snippet"
	ModeFullFile = "full_file"
)

// Snippet is source text read for a node.
type Snippet struct {
	ID      string `json:"id"`
	File    string `json:"file"`
	Mode    string `json:"mode"`
	Lines   string `json:"lines,omitempty"`
	Content string `json:"content"`
}

// Read returns the source of id's line range, or the whole file when the
// node has no line range. The file must lie inside the project root.
func (q *QueryBuilder) Read(id string) (*Snippet, error) {
	n, err := q.node(id)
	if err != nil {
		return nil, err
	}
	file := nodeFile(n)
	if file == "" {
		return nil, fmt.Errorf("spashta: read %s: no file path", id)
	}
	root, err := filepath.Abs(q.root)
	if err != nil {
		return nil, fmt.Errorf("spashta: read %s: %w", id, err)
	}
	path := filepath.Join(root, filepath.FromSlash(file))
	if rel, err := filepath.Rel(root, path); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("spashta: read %s: %s is outside the project root", id, file)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("spashta: read %s: %w", id, err)
	}

	s := &Snippet{ID: n.ID, File: file}
	if n.LineStart <= 0 {
		s.Mode = ModeFullFile
		s.Content = string(data)
		return s, nil
	}
	lines := strings.SplitAfter(string(data), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if n.LineStart > len(lines) {
		return nil, fmt.Errorf("spashta: read %s: line start %d out of bounds (%d lines)", id, n.LineStart, len(lines))
	}
	end := n.LineEnd
	if end <= 0 || end > len(lines) {
		end = len(lines)
	}
	if end < n.LineStart {
		end = n.LineStart
	}
	s.Mode = ModeSnippet
	s.Lines = fmt.Sprintf("%d-%d", n.LineStart, end)
	s.Content = strings.Join(lines[n.LineStart-1:end], "")
	return s, nil
}

// nodeFile returns the node's file path, inferred from a scoped id when
// the node carries none.
func nodeFile(n *graph.Node) string {
	if n.FilePath != "" {
		return n.FilePath
	}
	id := n.ID
	if prefix, _, ok := strings.Cut(id, "::"); ok {
		id = prefix
	} else if !n.Type.IsFileKind() {
		return ""
	}
	if typ, rest, ok := strings.Cut(id, ":"); ok {
		if _, known := graph.ParseNodeType(typ); known {
			id = rest
		}
	}
	return id
}

// Details returns a copy of the full node.
func (q *QueryBuilder) Details(id string) (*graph.Node, error) {
	n, err := q.node(id)
	if err != nil {
		return nil, err
	}
	c := n.Clone()
	return &c, nil
}

// FileEntry is one indexed source file.
type FileEntry struct {
	Path     string `json:"path"`
	ID       string `json:"id"`
	NodeType string `json:"node_type"`
	Hash     string `json:"hash,omitempty"`
}

// ListFiles returns every file-kind node, sorted by path.
func (q *QueryBuilder) ListFiles() []FileEntry {
	out := []FileEntry{}
	for _, n := range q.graph.Nodes() {
		if !n.Type.IsFileKind() {
			continue
		}
		out = append(out, FileEntry{Path: nodeFile(n), ID: n.ID, NodeType: n.Type.String(), Hash: n.Hash})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
