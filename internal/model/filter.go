package model

import (
	"bytes"
	"encoding/json"
	"reflect"
)

// FilterOp is the comparison a predicate applies to a column.
type FilterOp string

const (
	OpEq       FilterOp = "eq"
	OpIn       FilterOp = "in"
	OpContains FilterOp = "contains"
	OpBetween  FilterOp = "between"
)

// FilterPredicate is the filter a control applies to a target widget's
// bound dataset column.
type FilterPredicate struct {
	ControlID string   `json:"control_id"`
	DatasetID string   `json:"dataset_id,omitempty"`
	Column    string   `json:"column"`
	Op        FilterOp `json:"op"`
	Value     any      `json:"value"`
}

// Clone returns a deep copy of the predicate.
func (p *FilterPredicate) Clone() *FilterPredicate {
	if p == nil {
		return nil
	}
	c := *p
	c.Value = cloneJSON(p.Value)
	return &c
}

// ValuesEqual reports whether two control values are the same. Values are
// compared by their JSON encoding so that 1 and 1.0, or a []string and an
// []any holding the same strings, compare equal.
func ValuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return IsEmptyValue(a) && IsEmptyValue(b)
	}
	if reflect.DeepEqual(a, b) {
		return true
	}
	ja, err := json.Marshal(a)
	if err != nil {
		return false
	}
	jb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(normalizeJSON(ja), normalizeJSON(jb))
}

// IsEmptyValue reports whether v clears a control: nil, "", or an empty list.
func IsEmptyValue(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	}
	return false
}

// normalizeJSON re-encodes data through a generic value so that numbers and
// object key order have a single representation.
func normalizeJSON(data []byte) []byte {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return data
	}
	out, err := json.Marshal(v)
	if err != nil {
		return data
	}
	return out
}
