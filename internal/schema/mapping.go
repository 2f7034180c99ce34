package schema

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mpcoder1111/Spashta-CKG/internal/graph"
)

// Interaction maps a markup attribute to a symbolic node and the edge that
// links the owning template to it.
type Interaction struct {
	Attribute      string              `json:"attribute"`
	TargetNodeType string              `json:"target_node_type"`
	EmitsEdge      string              `json:"emits_edge"`
	Condition      map[string][]string `json:"condition,omitempty"`
}

// Mapping declares, for one language, which logical relationships exist and
// the core edge each one becomes.
type Mapping struct {
	Language              string                   `json:"language"`
	SupportedCoreSchema   string                   `json:"supported_core_schema"`
	Extensions            []string                 `json:"extensions"`
	NodeMappings          map[string]string        `json:"node_mappings"`
	EdgeMappings          map[string]string        `json:"edge_mappings"`
	DynamicPatterns       []string                 `json:"dynamic_patterns,omitempty"`
	AttributeInteractions []Interaction            `json:"attribute_interactions,omitempty"`
	TagInteractions       map[string][]Interaction `json:"tag_interactions,omitempty"`
	StrictRules           map[string]bool          `json:"strict_rules,omitempty"`
}

var (
	mappingsOnce sync.Once
	mappings     map[string]*Mapping
	mappingsErr  error
	extLanguage  map[string]string
)

func loadMappings() {
	mappings = make(map[string]*Mapping)
	extLanguage = make(map[string]string)
	entries, err := fs.ReadDir(dataFS, "data")
	if err != nil {
		mappingsErr = err
		return
	}
	for _, e := range entries {
		if e.Name() == "core.json" {
			continue
		}
		data, err := dataFS.ReadFile(path.Join("data", e.Name()))
		if err != nil {
			mappingsErr = err
			return
		}
		var m Mapping
		if err := json.Unmarshal(data, &m); err != nil {
			mappingsErr = fmt.Errorf("schema: mapping %s: %w", e.Name(), err)
			return
		}
		mappings[m.Language] = &m
		for _, ext := range m.Extensions {
			extLanguage[ext] = m.Language
		}
	}
}

// LoadMapping returns the embedded mapping for language.
func LoadMapping(language string) (*Mapping, error) {
	mappingsOnce.Do(loadMappings)
	if mappingsErr != nil {
		return nil, mappingsErr
	}
	m, ok := mappings[language]
	if !ok {
		return nil, fmt.Errorf("schema: no mapping for language %q", language)
	}
	return m, nil
}

// Languages returns every language with an embedded mapping, sorted.
func Languages() []string {
	mappingsOnce.Do(loadMappings)
	out := make([]string, 0, len(mappings))
	for lang := range mappings {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// LanguageForFile detects the builder language from a file extension.
func LanguageForFile(p string) (string, bool) {
	mappingsOnce.Do(loadMappings)
	lang, ok := extLanguage[strings.ToLower(filepath.Ext(p))]
	return lang, ok
}

// CoreEdge returns the core edge type for a logical relationship name.
// Names absent from the mapping are not declared for the language.
func (m *Mapping) CoreEdge(logical string) (string, bool) {
	core, ok := m.EdgeMappings[logical]
	return core, ok && core != ""
}

// NodeType maps a language construct name to a core node type.
func (m *Mapping) NodeType(construct string) (graph.NodeType, bool) {
	name, ok := m.NodeMappings[construct]
	if !ok {
		return graph.NodeUnknown, false
	}
	return graph.ParseNodeType(name)
}

// Rejection describes why a proposed edge became an ambiguity.
type Rejection struct {
	Kind       string
	Expression string
	Reason     string
}

// Gate runs the mapping check and then the schema check for a proposed
// logical edge. On success it returns the core edge type.
func (m *Mapping) Gate(s *Schema, logical string, src, dst graph.NodeType) (string, *Rejection) {
	core, ok := m.CoreEdge(logical)
	if !ok {
		return "", &Rejection{
			Kind:       graph.KindMappingViolation,
			Expression: logical,
			Reason:     fmt.Sprintf("Logical edge '%s' not found in %s language mapping", logical, m.Language),
		}
	}
	if !s.IsAllowed(core, src, dst) {
		return "", &Rejection{
			Kind:       graph.KindSchemaViolation,
			Expression: fmt.Sprintf("%s -> %s", logical, core),
			Reason:     fmt.Sprintf("Edge not allowed between %s and %s", src, dst),
		}
	}
	return core, nil
}

// DataDigest hashes every embedded schema and mapping document, in name
// order.
func DataDigest() string {
	entries, err := fs.ReadDir(dataFS, "data")
	if err != nil {
		panic(fmt.Sprintf("schema: embedded data: %v", err))
	}
	h := sha256.New()
	for _, e := range entries {
		data, err := dataFS.ReadFile(path.Join("data", e.Name()))
		if err != nil {
			panic(fmt.Sprintf("schema: embedded data: %v", err))
		}
		fmt.Fprintf(h, "%s=%x\n", e.Name(), sha256.Sum256(data))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
