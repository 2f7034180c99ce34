package graph

import (
	"encoding/json"
	"fmt"
)

// Edge is a typed, directed relationship between two node ids.
type Edge struct {
	Type     string
	From     string
	To       string
	CallLine int
	// Meta carries any additional fields a builder attached.
	Meta map[string]any
}

// EdgeKey identifies an edge for deduplication.
type EdgeKey struct {
	Type string
	From string
	To   string
}

func (e Edge) Key() EdgeKey {
	return EdgeKey{Type: e.Type, From: e.From, To: e.To}
}

func (k EdgeKey) String() string {
	return fmt.Sprintf("%s:%s->%s", k.Type, k.From, k.To)
}

var (
	edgeTypeKeys = []string{"edge", "type", "edge_type"}
	edgeFromKeys = []string{"from", "source", "from_id"}
	edgeToKeys   = []string{"to", "target", "to_id"}
)

func isReservedEdgeKey(k string) bool {
	for _, group := range [][]string{edgeTypeKeys, edgeFromKeys, edgeToKeys} {
		for _, r := range group {
			if r == k {
				return true
			}
		}
	}
	return k == "call_line"
}

// MarshalJSON writes the normalized source/target/type form with metadata
// flattened alongside.
func (e Edge) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Meta)+4)
	for k, v := range e.Meta {
		out[k] = v
	}
	out["type"] = e.Type
	out["source"] = e.From
	out["target"] = e.To
	if e.CallLine > 0 {
		out["call_line"] = e.CallLine
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts edge/type/edge_type, from/source and to/target key
// aliases. Unrecognized keys are kept in Meta.
func (e *Edge) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Edge{}

	var err error
	if e.Type, err = firstString(raw, edgeTypeKeys); err != nil {
		return err
	}
	if e.From, err = firstString(raw, edgeFromKeys); err != nil {
		return err
	}
	if e.To, err = firstString(raw, edgeToKeys); err != nil {
		return err
	}
	if v, ok := raw["call_line"]; ok && string(v) != "null" {
		if err := json.Unmarshal(v, &e.CallLine); err != nil {
			return fmt.Errorf("graph: edge call_line: %w", err)
		}
	}
	for k, v := range raw {
		if isReservedEdgeKey(k) {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return err
		}
		if e.Meta == nil {
			e.Meta = make(map[string]any)
		}
		e.Meta[k] = val
	}
	return nil
}

func firstString(raw map[string]json.RawMessage, keys []string) (string, error) {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || string(v) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return "", fmt.Errorf("graph: edge field %s: %w", k, err)
		}
		if s != "" {
			return s, nil
		}
	}
	return "", nil
}
