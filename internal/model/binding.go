package model

import (
	"strconv"
	"strings"
)

// Aggregation reduces the values of a measure within one dimension bucket.
type Aggregation string

const (
	AggSum     Aggregation = "sum"
	AggAvg     Aggregation = "avg"
	AggMin     Aggregation = "min"
	AggMax     Aggregation = "max"
	AggCount   Aggregation = "count"
	AggMedian  Aggregation = "median"
	AggGeoMean Aggregation = "geomean"
)

// IsValid checks whether the aggregation is a known value.
func (a Aggregation) IsValid() bool {
	switch a {
	case AggSum, AggAvg, AggMin, AggMax, AggCount, AggMedian, AggGeoMean:
		return true
	}
	return false
}

// Transform post-processes an aggregated series.
type Transform string

const (
	TransformNone           Transform = "none"
	TransformCumulative     Transform = "cumulative"
	TransformPercentOfTotal Transform = "percent_of_total"
)

// IsValid checks whether the transform is a known value.
func (t Transform) IsValid() bool {
	switch t {
	case TransformNone, TransformCumulative, TransformPercentOfTotal:
		return true
	}
	return false
}

// FormatKind selects how measure values are displayed.
type FormatKind string

const (
	FormatNumber   FormatKind = "number"
	FormatCurrency FormatKind = "currency"
	FormatPercent  FormatKind = "percent"
)

// IsValid checks whether the format kind is a known value.
func (k FormatKind) IsValid() bool {
	switch k {
	case FormatNumber, FormatCurrency, FormatPercent:
		return true
	}
	return false
}

// Format describes the presentation of a measure.
type Format struct {
	Kind     FormatKind `json:"kind"`
	Decimals int        `json:"decimals,omitempty"`
	Prefix   string     `json:"prefix,omitempty"`
	Suffix   string     `json:"suffix,omitempty"`
}

// Apply renders v for display. Numbers and currency get thousands
// separators; percent values are taken as percentage points. Currency
// defaults to a "$" prefix when none is set.
func (f Format) Apply(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	digits := strconv.FormatFloat(v, 'f', max(f.Decimals, 0), 64)
	if f.Kind != FormatPercent {
		digits = groupThousands(digits)
	}
	prefix, suffix := f.Prefix, f.Suffix
	switch f.Kind {
	case FormatCurrency:
		if prefix == "" {
			prefix = "$"
		}
	case FormatPercent:
		if suffix == "" {
			suffix = "%"
		}
	}
	out := prefix + digits + suffix
	if neg {
		out = "-" + out
	}
	return out
}

func groupThousands(s string) string {
	intPart, frac, hasFrac := strings.Cut(s, ".")
	if len(intPart) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

// Measure is a numeric field bound to a chart together with its
// per-measure settings.
type Measure struct {
	Field       string      `json:"field"`
	Aggregation Aggregation `json:"aggregation"`
	Transform   Transform   `json:"transform"`
	Format      Format      `json:"format"`
}

// NewMeasure returns a measure on field with default settings.
func NewMeasure(field string) Measure {
	return Measure{
		Field:       field,
		Aggregation: AggSum,
		Transform:   TransformNone,
		Format:      Format{Kind: FormatNumber},
	}
}

// ConditionalRule colors a measure's values that satisfy a comparison.
type ConditionalRule struct {
	Field    string  `json:"field"`
	Operator string  `json:"operator"` // one of gt, gte, lt, lte, eq, neq
	Value    float64 `json:"value"`
	Color    string  `json:"color"`
}

// ReferenceLine draws a constant line on a chart's value axis.
type ReferenceLine struct {
	Label string  `json:"label,omitempty"`
	Value float64 `json:"value"`
	Color string  `json:"color,omitempty"`
}

// Binding maps a chart's dimension and measures onto catalog fields.
type Binding struct {
	DatasetID        string            `json:"dataset_id,omitempty"`
	Dimension        string            `json:"dimension,omitempty"`
	Measures         []Measure         `json:"measures,omitempty"`
	ConditionalRules []ConditionalRule `json:"conditional_rules,omitempty"`
	ReferenceLines   []ReferenceLine   `json:"reference_lines,omitempty"`
}

// Clone returns a deep copy of the binding.
func (b *Binding) Clone() *Binding {
	if b == nil {
		return nil
	}
	c := *b
	c.Measures = append([]Measure(nil), b.Measures...)
	c.ConditionalRules = append([]ConditionalRule(nil), b.ConditionalRules...)
	c.ReferenceLines = append([]ReferenceLine(nil), b.ReferenceLines...)
	return &c
}

// MeasureFields returns the field IDs of the bound measures, in order.
func (b *Binding) MeasureFields() []string {
	fields := make([]string, len(b.Measures))
	for i, m := range b.Measures {
		fields[i] = m.Field
	}
	return fields
}

// MeasureIndex returns the position of the measure on field, or -1.
func (b *Binding) MeasureIndex(field string) int {
	for i, m := range b.Measures {
		if m.Field == field {
			return i
		}
	}
	return -1
}

var ruleOperators = map[string]bool{"gt": true, "gte": true, "lt": true, "lte": true, "eq": true, "neq": true}

// Matches reports whether v satisfies the rule's comparison.
func (r ConditionalRule) Matches(v float64) bool {
	switch r.Operator {
	case "gt":
		return v > r.Value
	case "gte":
		return v >= r.Value
	case "lt":
		return v < r.Value
	case "lte":
		return v <= r.Value
	case "eq":
		return v == r.Value
	case "neq":
		return v != r.Value
	}
	return false
}
