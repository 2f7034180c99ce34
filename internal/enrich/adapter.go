package enrich

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/mpcoder1111/Spashta-CKG/internal/graph"
	"github.com/mpcoder1111/Spashta-CKG/internal/schema"
)

//go:embed adapters/*.yaml
var builtinFS embed.FS

// ErrGovernanceFailed is returned when an adapter breaks the rule contract.
var ErrGovernanceFailed = errors.New("enrich: adapter governance failed")

// Severities accepted for adapter contracts.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// StringList decodes either a scalar or a sequence of strings.
type StringList []string

func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*l = StringList{value.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	return fmt.Errorf("line %d: expected a string or a list of strings", value.Line)
}

// DetectionRules is a conjunction of predicates. Absent predicates are not
// evaluated.
type DetectionRules struct {
	InheritanceIncludes StringList `yaml:"inheritance_includes,omitempty" json:"inheritance_includes,omitempty"`
	FilePathContains    string     `yaml:"file_path_contains,omitempty" json:"file_path_contains,omitempty"`
	DecoratedBy         StringList `yaml:"decorated_by,omitempty" json:"decorated_by,omitempty"`
	RequiresImport      string     `yaml:"requires_import,omitempty" json:"requires_import,omitempty"`
	UsedInCalls         StringList `yaml:"used_in_calls,omitempty" json:"used_in_calls,omitempty"`
	FunctionName        StringList `yaml:"function_name,omitempty" json:"function_name,omitempty"`
}

// Rule attaches SemanticRole to CoreNode nodes that satisfy DetectionRules.
type Rule struct {
	SemanticRole   string         `yaml:"semantic_role" json:"semantic_role" validate:"required"`
	CoreNode       string         `yaml:"core_node" json:"core_node" validate:"required"`
	DetectionRules DetectionRules `yaml:"detection_rules" json:"detection_rules"`
}

// Contract is a framework convention surfaced to downstream reasoning.
type Contract struct {
	ID          string `yaml:"id" json:"id" validate:"required"`
	Description string `yaml:"description" json:"description"`
	Severity    string `yaml:"severity" json:"severity" validate:"required,oneof=info warning error"`
}

// Adapter is one framework's ordered rule set.
type Adapter struct {
	Framework string     `yaml:"framework" json:"framework" validate:"required"`
	Mappings  []Rule     `yaml:"mappings" json:"mappings" validate:"dive"`
	Contracts []Contract `yaml:"contracts" json:"contracts" validate:"dive"`

	// Source is where the adapter was loaded from.
	Source string `yaml:"-" json:"source"`
}

var validate = validator.New()

// Builtins returns the names of the embedded adapters, sorted.
func Builtins() []string {
	entries, _ := builtinFS.ReadDir("adapters")
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}
	sort.Strings(out)
	return out
}

// ParseAdapter decodes an adapter document. Keys outside the rule contract
// are rejected.
func ParseAdapter(data []byte, source string) (*Adapter, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var a Adapter
	if err := dec.Decode(&a); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("enrich: %s: empty adapter", source)
		}
		return nil, fmt.Errorf("enrich: %s: %w", source, err)
	}
	a.Source = source
	return &a, nil
}

// LoadAdapter finds the adapter for framework, preferring rulesDir over the
// embedded set. rulesDir may be empty.
func LoadAdapter(framework, rulesDir string) (*Adapter, error) {
	if rulesDir != "" {
		for _, ext := range []string{".yaml", ".yml", ".json"} {
			p := filepath.Join(rulesDir, framework+ext)
			data, err := os.ReadFile(p)
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("enrich: read %s: %w", p, err)
			}
			return ParseAdapter(data, p)
		}
	}
	name := "adapters/" + framework + ".yaml"
	data, err := builtinFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("enrich: no adapter for framework %q", framework)
	}
	return ParseAdapter(data, "builtin:"+framework)
}

// LoadAdapters loads every framework in order. All failures are reported.
func LoadAdapters(frameworks []string, rulesDir string) ([]*Adapter, error) {
	var (
		out  []*Adapter
		errs error
	)
	for _, fw := range frameworks {
		a, err := LoadAdapter(fw, rulesDir)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		out = append(out, a)
	}
	if errs != nil {
		return nil, errs
	}
	return out, nil
}

// Violation is one governance finding.
type Violation struct {
	Issue string `json:"issue"`
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
}

// GovernanceReport is the per-adapter result of the governance check.
type GovernanceReport struct {
	Framework  string      `json:"framework"`
	Source     string      `json:"source"`
	Status     string      `json:"status"`
	Violations []Violation `json:"violations"`
}

// Passed reports whether the adapter may run.
func (r *GovernanceReport) Passed() bool {
	return r.Status == schema.StatusPass
}

// Govern checks a against the rule contract and s: required fields,
// severities, and core_node naming a modeled node type.
func Govern(s *schema.Schema, a *Adapter) *GovernanceReport {
	r := &GovernanceReport{
		Framework:  a.Framework,
		Source:     a.Source,
		Status:     schema.StatusPass,
		Violations: []Violation{},
	}
	if err := validate.Struct(a); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				r.Violations = append(r.Violations, Violation{
					Issue: "Invalid field (" + fe.Tag() + ")",
					Key:   fe.Namespace(),
					Value: fmt.Sprint(fe.Value()),
				})
			}
		} else {
			r.Violations = append(r.Violations, Violation{Issue: "Invalid adapter", Key: a.Framework, Value: err.Error()})
		}
	}
	for i, m := range a.Mappings {
		if m.CoreNode == "" {
			continue
		}
		t, ok := graph.ParseNodeType(m.CoreNode)
		if !ok || !s.HasNodeType(t) {
			r.Violations = append(r.Violations, Violation{
				Issue: "Invalid Core Node",
				Key:   fmt.Sprintf("mappings[%d].core_node", i),
				Value: m.CoreNode,
			})
		}
	}
	if len(r.Violations) > 0 {
		r.Status = schema.StatusFail
	}
	return r
}

// GovernAll checks every adapter and returns ErrGovernanceFailed when any
// adapter does not pass.
func GovernAll(s *schema.Schema, adapters []*Adapter) ([]*GovernanceReport, error) {
	reports := make([]*GovernanceReport, 0, len(adapters))
	var failed []string
	for _, a := range adapters {
		r := Govern(s, a)
		reports = append(reports, r)
		if !r.Passed() {
			failed = append(failed, a.Framework)
		}
	}
	if len(failed) > 0 {
		return reports, fmt.Errorf("%w: %s", ErrGovernanceFailed, strings.Join(failed, ", "))
	}
	return reports, nil
}
