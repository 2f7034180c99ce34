package graph

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DefaultResolver is assigned to ambiguities whose builder does not name one.
const DefaultResolver = "agent"

// Ambiguity kinds emitted by the engine's own builders.
const (
	KindMappingViolation        = "mapping_violation"
	KindSchemaViolation         = "schema_violation"
	KindNestedClassUnmodeled    = "nested_class_unmodeled"
	KindNestedFunctionUnmodeled = "nested_function_unmodeled"
	KindDecoratorUnknown        = "decorator_unknown"
	KindInheritanceUnproven     = "inheritance_target_unproven"
	KindCallTargetUnknown       = "call_target_unknown"
	KindImportModuleUnknown     = "import_module_unknown"
	KindImportSymbolTypeUnknown = "import_symbol_type_unknown"
	KindDynamicValueUnresolved  = "dynamic_value_unresolved"
	KindExternalReference       = "external_reference_unmodeled"
	KindImportTargetUnresolved  = "import_target_unresolved"
	KindResponsiveBreakpoint    = "responsive_breakpoint"
	KindAnimationDefined        = "css_animation_defined"
)

// Ambiguity is a ticket for a fact that could not be proven.
type Ambiguity struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	SourceFile  string     `json:"source_file"`
	SourceScope string     `json:"source_scope"`
	Expression  string     `json:"expression"`
	Reason      string     `json:"reason"`
	Confidence  Confidence `json:"confidence"`
	Resolver    string     `json:"resolver"`
}

var ambiguityNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("spashta-ckg/ambiguity"))

// NewAmbiguity builds a ticket with a deterministic id derived from its
// content and ordinal within the emitting fragment.
func NewAmbiguity(kind, expression, reason, scope string, confidence Confidence, ordinal int) Ambiguity {
	if confidence == "" {
		confidence = ConfidenceUnresolved
	}
	return Ambiguity{
		ID:          AmbiguityID(kind, scope, expression, ordinal),
		Kind:        kind,
		SourceFile:  ScopeFile(scope),
		SourceScope: scope,
		Expression:  expression,
		Reason:      reason,
		Confidence:  confidence,
		Resolver:    DefaultResolver,
	}
}

// AmbiguityID returns a name-based UUID for the given ticket content.
func AmbiguityID(kind, scope, expression string, ordinal int) string {
	key := fmt.Sprintf("%s\x00%s\x00%s\x00%d", kind, scope, expression, ordinal)
	return uuid.NewSHA1(ambiguityNamespace, []byte(key)).String()
}

// ScopeFile returns the file part of a scope-path id.
func ScopeFile(scope string) string {
	if i := strings.Index(scope, "::"); i >= 0 {
		return scope[:i]
	}
	return scope
}
