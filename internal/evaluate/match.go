package evaluate

import (
	"fmt"
	"math"
	"strings"

	"github.com/alfredjeanlab/canvas/internal/model"
)

// Match reports whether a cell value satisfies the predicate. Missing cells
// never match.
func Match(p *model.FilterPredicate, v any) bool {
	if f, ok := v.(float64); ok && math.IsNaN(f) {
		return false
	}
	if v == nil {
		return false
	}
	switch p.Op {
	case model.OpEq:
		return equal(v, p.Value)
	case model.OpIn:
		for _, want := range list(p.Value) {
			if equal(v, want) {
				return true
			}
		}
		return false
	case model.OpContains:
		return strings.Contains(strings.ToLower(fmt.Sprint(v)), strings.ToLower(fmt.Sprint(p.Value)))
	case model.OpBetween:
		lo, hi := bounds(p.Value)
		if lo != nil && less(v, lo) {
			return false
		}
		if hi != nil && less(hi, v) {
			return false
		}
		return true
	}
	return false
}

func equal(a, b any) bool {
	if model.ValuesEqual(a, b) {
		return true
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func list(v any) []any {
	switch x := v.(type) {
	case []any:
		return x
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case nil:
		return nil
	}
	return []any{v}
}

// bounds extracts the inclusive range of a between predicate, given either
// as {"from": a, "to": b} or as a two-element list. A nil bound is open.
func bounds(v any) (lo, hi any) {
	switch x := v.(type) {
	case map[string]any:
		lo, hi = x["from"], x["to"]
		if lo == nil {
			lo = x["min"]
		}
		if hi == nil {
			hi = x["max"]
		}
	default:
		l := list(v)
		if len(l) > 0 {
			lo = l[0]
		}
		if len(l) > 1 {
			hi = l[1]
		}
	}
	if model.IsEmptyValue(lo) {
		lo = nil
	}
	if model.IsEmptyValue(hi) {
		hi = nil
	}
	return lo, hi
}

// less orders values: numbers numerically, booleans false first, and
// everything else by its string form. Nil sorts first.
func less(a, b any) bool {
	switch {
	case a == nil:
		return b != nil
	case b == nil:
		return false
	}
	fa, aok := a.(float64)
	fb, bok := b.(float64)
	if aok && bok {
		return fa < fb
	}
	if aok || bok {
		if x, ok := model.Coerce(a, model.FieldNumber); ok {
			if y, ok := model.Coerce(b, model.FieldNumber); ok {
				return x.(float64) < y.(float64)
			}
		}
	}
	ba, aok := a.(bool)
	bb, bok := b.(bool)
	if aok && bok {
		return !ba && bb
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}
