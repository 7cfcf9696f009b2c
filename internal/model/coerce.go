package model

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical encoding of date values.
const DateLayout = "2006-01-02"

// Coerce converts v to the Go representation of field type t: float64 for
// numbers, bool for booleans, string for strings and dates. Lists and maps
// are converted element-wise. The second result is false if any scalar
// could not be converted.
func Coerce(v any, t FieldType) (any, bool) {
	switch x := v.(type) {
	case nil:
		return nil, true
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			c, ok := Coerce(e, t)
			if !ok {
				return v, false
			}
			out[i] = c
		}
		return out, true
	case []string:
		out := make([]any, len(x))
		for i, e := range x {
			c, ok := Coerce(e, t)
			if !ok {
				return v, false
			}
			out[i] = c
		}
		return out, true
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			c, ok := Coerce(e, t)
			if !ok {
				return v, false
			}
			out[k] = c
		}
		return out, true
	}

	switch t {
	case FieldNumber:
		if f, ok := toFloat(v); ok {
			return f, true
		}
	case FieldBoolean:
		switch x := v.(type) {
		case bool:
			return x, true
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(x))
			return b, err == nil
		}
		if f, ok := toFloat(v); ok {
			return f != 0, true
		}
	case FieldDate:
		switch x := v.(type) {
		case time.Time:
			return x.UTC().Format(DateLayout), true
		case string:
			s := strings.TrimSpace(x)
			if d, err := time.Parse(DateLayout, s); err == nil {
				return d.Format(DateLayout), true
			}
			if d, err := time.Parse(time.RFC3339, s); err == nil {
				return d.UTC().Format(DateLayout), true
			}
		}
	case FieldString:
		switch x := v.(type) {
		case string:
			return x, true
		case bool:
			return strconv.FormatBool(x), true
		case time.Time:
			return x.UTC().Format(DateLayout), true
		}
		if f, ok := toFloat(v); ok {
			return strconv.FormatFloat(f, 'f', -1, 64), true
		}
	}
	return v, false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}
