// Package evaluate computes the series a chart displays: the bound dataset
// narrowed by the chart's filter state, grouped by the dimension, with each
// measure aggregated and transformed.
package evaluate

import (
	"fmt"
	"math"
	"sort"

	"github.com/aclements/go-gg/generic/slice"
	"github.com/aclements/go-gg/table"
	"github.com/aclements/go-moremath/stats"

	"github.com/alfredjeanlab/canvas/internal/catalog"
	"github.com/alfredjeanlab/canvas/internal/model"
)

// Series is one evaluated measure.
type Series struct {
	Field       string            `json:"field"`
	Aggregation model.Aggregation `json:"aggregation"`
	Transform   model.Transform   `json:"transform"`
	Format      model.Format      `json:"format"`
	Values      []*float64        `json:"values"`
	Colors      []string          `json:"colors,omitempty"`
}

// Result is the evaluated data of one chart. Labels and every series'
// Values are index-aligned.
type Result struct {
	WidgetID       string                   `json:"widget_id"`
	DatasetID      string                   `json:"dataset_id"`
	Dimension      string                   `json:"dimension,omitempty"`
	Labels         []any                    `json:"labels"`
	Series         []Series                 `json:"series"`
	ReferenceLines []model.ReferenceLine    `json:"reference_lines,omitempty"`
	Filters        []*model.FilterPredicate `json:"filters,omitempty"`
	RowCount       int                      `json:"row_count"`
}

// Chart evaluates a chart widget against the catalog.
func Chart(cat catalog.Provider, w *model.Widget) (*Result, error) {
	if !w.Kind.IsChart() {
		return nil, fmt.Errorf("evaluate %s: %w", w.ID, model.ErrNotChart)
	}
	res := &Result{WidgetID: w.ID, Labels: []any{}, Series: []Series{}}
	b := w.Binding
	if b == nil || b.DatasetID == "" {
		return res, nil
	}
	res.DatasetID, res.Dimension = b.DatasetID, b.Dimension
	res.ReferenceLines = b.ReferenceLines

	ds, ok := cat.GetDataset(b.DatasetID)
	if !ok {
		return nil, fmt.Errorf("evaluate %s: %q: %w", w.ID, b.DatasetID, model.ErrUnknownDataset)
	}
	for _, f := range append([]string{b.Dimension}, b.MeasureFields()...) {
		if f == "" {
			continue
		}
		if _, ok := ds.Field(f); !ok {
			return nil, fmt.Errorf("evaluate %s: %q: %w", w.ID, f, model.ErrUnknownField)
		}
	}

	g, applied := applyFilters(frame(ds), ds, w.Filters)
	res.Filters = applied
	res.RowCount = rowCount(g)
	if b.Dimension != "" {
		g = table.GroupBy(g, b.Dimension)
	}

	type bucket struct {
		label any
		t     *table.Table
	}
	var buckets []bucket
	for _, gid := range g.Tables() {
		t := g.Table(gid)
		if t.Len() == 0 {
			continue
		}
		var label any
		if b.Dimension != "" {
			label = gid.Label()
		}
		buckets = append(buckets, bucket{label, t})
	}
	sort.SliceStable(buckets, func(i, j int) bool { return less(buckets[i].label, buckets[j].label) })

	for _, bk := range buckets {
		res.Labels = append(res.Labels, bk.label)
	}
	for _, m := range b.Measures {
		s := Series{Field: m.Field, Aggregation: m.Aggregation, Transform: m.Transform, Format: m.Format}
		vals := make([]float64, len(buckets))
		for i, bk := range buckets {
			var xs []float64
			slice.Convert(&xs, bk.t.MustColumn(m.Field))
			vals[i] = aggregate(m.Aggregation, present(xs), bk.t.Len())
		}
		vals = transform(m.Transform, vals)
		s.Values = make([]*float64, len(vals))
		for i, v := range vals {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				x := v
				s.Values[i] = &x
			}
		}
		s.Colors = colors(b.ConditionalRules, m.Field, s.Values)
		res.Series = append(res.Series, s)
	}
	return res, nil
}

// Distinct returns the distinct non-empty values of column after filters
// are applied, in ascending order.
func Distinct(ds *model.Dataset, column string, filters map[string]*model.FilterPredicate) ([]any, error) {
	f, ok := ds.Field(column)
	if !ok {
		return nil, fmt.Errorf("%q: %w", column, model.ErrUnknownField)
	}
	g, _ := applyFilters(frame(ds), ds, filters)
	seen := make(map[any]bool)
	out := []any{}
	for _, gid := range g.Tables() {
		col := g.Table(gid).Column(f.ID)
		if col == nil {
			continue
		}
		for _, v := range cells(col) {
			if v == nil || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out, nil
}

// frame builds a column table from the dataset rows. Number columns are
// []float64 with NaN for missing cells; all others are []any with nil.
func frame(ds *model.Dataset) *table.Table {
	b := new(table.Builder)
	for _, f := range ds.Fields {
		if f.Type == model.FieldNumber {
			col := make([]float64, len(ds.Rows))
			for i, row := range ds.Rows {
				col[i] = math.NaN()
				if v, ok := row[f.ID].(float64); ok {
					col[i] = v
				}
			}
			b.Add(f.ID, col)
			continue
		}
		col := make([]any, len(ds.Rows))
		for i, row := range ds.Rows {
			col[i] = row[f.ID]
		}
		b.Add(f.ID, col)
	}
	return b.Done()
}

// applyFilters narrows g by every predicate that targets a column of ds.
// Predicates for other datasets or unknown columns are skipped. It returns
// the predicates that were applied, ordered by control ID.
func applyFilters(g table.Grouping, ds *model.Dataset, filters map[string]*model.FilterPredicate) (table.Grouping, []*model.FilterPredicate) {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var applied []*model.FilterPredicate
	for _, k := range keys {
		p := filters[k]
		if p == nil || p.Column == "" || (p.DatasetID != "" && p.DatasetID != ds.ID) {
			continue
		}
		f, ok := ds.Field(p.Column)
		if !ok {
			continue
		}
		pred := p
		g = table.Filter(g, func(v any) bool { return Match(pred, v) }, f.ID)
		applied = append(applied, p)
	}
	return g, applied
}

func rowCount(g table.Grouping) int {
	n := 0
	for _, gid := range g.Tables() {
		n += g.Table(gid).Len()
	}
	return n
}

// cells returns the elements of a table column as []any.
func cells(col slice.T) []any {
	switch c := col.(type) {
	case []any:
		return c
	case []float64:
		out := make([]any, 0, len(c))
		for _, v := range c {
			if !math.IsNaN(v) {
				out = append(out, v)
			}
		}
		return out
	}
	var out []any
	slice.Convert(&out, col)
	return out
}

func present(xs []float64) []float64 {
	out := xs[:0:0]
	for _, x := range xs {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}

func aggregate(agg model.Aggregation, xs []float64, rows int) float64 {
	if agg == model.AggCount {
		return float64(rows)
	}
	if len(xs) == 0 {
		return math.NaN()
	}
	switch agg {
	case model.AggSum:
		s := stats.Sample{Xs: xs}
		return s.Sum()
	case model.AggAvg:
		return stats.Mean(xs)
	case model.AggMin:
		lo, _ := stats.Bounds(xs)
		return lo
	case model.AggMax:
		_, hi := stats.Bounds(xs)
		return hi
	case model.AggMedian:
		s := stats.Sample{Xs: xs}
		return s.Quantile(0.5)
	case model.AggGeoMean:
		for _, x := range xs {
			if x <= 0 {
				return math.NaN()
			}
		}
		return stats.GeoMean(xs)
	}
	return math.NaN()
}

func transform(t model.Transform, vals []float64) []float64 {
	switch t {
	case model.TransformCumulative:
		out := make([]float64, len(vals))
		run := 0.0
		for i, v := range vals {
			if !math.IsNaN(v) {
				run += v
			}
			out[i] = run
		}
		return out
	case model.TransformPercentOfTotal:
		var xs []float64
		for _, v := range vals {
			if !math.IsNaN(v) {
				xs = append(xs, v)
			}
		}
		sample := stats.Sample{Xs: xs}
		total := sample.Sum()
		out := make([]float64, len(vals))
		for i, v := range vals {
			if total == 0 {
				out[i] = math.NaN()
				continue
			}
			out[i] = v / total * 100
		}
		return out
	}
	return vals
}

// colors returns the color of the first matching rule for each value, or
// nil when no rule targets field.
func colors(rules []model.ConditionalRule, field string, vals []*float64) []string {
	var mine []model.ConditionalRule
	for _, r := range rules {
		if r.Field == field {
			mine = append(mine, r)
		}
	}
	if len(mine) == 0 {
		return nil
	}
	out := make([]string, len(vals))
	for i, v := range vals {
		if v == nil {
			continue
		}
		for _, r := range mine {
			if r.Matches(*v) {
				out[i] = r.Color
				break
			}
		}
	}
	return out
}
