// Package binding edits a chart's mapping from dimension and measure roles
// onto catalog fields. Every operation resolves fields through the catalog
// and writes the new binding back through the registry in one update.
package binding

import (
	"fmt"

	"github.com/alfredjeanlab/canvas/internal/catalog"
	"github.com/alfredjeanlab/canvas/internal/model"
	"github.com/alfredjeanlab/canvas/internal/registry"
)

// Model applies binding operations to chart widgets.
type Model struct {
	reg *registry.Registry
	cat catalog.Provider
}

// New returns a binding model over reg, resolving fields through cat.
func New(reg *registry.Registry, cat catalog.Provider) *Model {
	return &Model{reg: reg, cat: cat}
}

// SetDimension binds the chart's dimension to a string or date field,
// replacing any previous dimension.
func (m *Model) SetDimension(id, fieldID string) (*model.Binding, error) {
	return m.edit(id, "set dimension", func(b *model.Binding) (bool, error) {
		f, err := m.field(b, fieldID)
		if err != nil {
			return false, err
		}
		if !isDimensionType(f.Type) {
			return false, fmt.Errorf("%w: dimension %s is %s, want string or date", model.ErrInvalidFieldType, f.ID, f.Type)
		}
		if b.Dimension == f.ID {
			return false, nil
		}
		b.Dimension = f.ID
		return true, nil
	})
}

// AddMeasure appends a numeric field as a measure with default settings.
// Adding a field that is already a measure changes nothing.
func (m *Model) AddMeasure(id, fieldID string) (*model.Binding, error) {
	return m.edit(id, "add measure", func(b *model.Binding) (bool, error) {
		f, err := m.field(b, fieldID)
		if err != nil {
			return false, err
		}
		if f.Type != model.FieldNumber {
			return false, fmt.Errorf("%w: measure %s is %s, want number", model.ErrInvalidFieldType, f.ID, f.Type)
		}
		if b.MeasureIndex(f.ID) >= 0 {
			return false, nil
		}
		b.Measures = append(b.Measures, model.NewMeasure(f.ID))
		return true, nil
	})
}

// RemoveMeasure drops the measure on fieldID together with its settings.
// Removing a field that is not a measure changes nothing.
func (m *Model) RemoveMeasure(id, fieldID string) (*model.Binding, error) {
	return m.edit(id, "remove measure", func(b *model.Binding) (bool, error) {
		i := m.measureIndex(b, fieldID)
		if i < 0 {
			return false, nil
		}
		field := b.Measures[i].Field
		b.Measures = append(b.Measures[:i], b.Measures[i+1:]...)
		rules := b.ConditionalRules[:0]
		for _, r := range b.ConditionalRules {
			if r.Field != field {
				rules = append(rules, r)
			}
		}
		b.ConditionalRules = rules
		return true, nil
	})
}

// SetDatasetID points the chart at another dataset. Field identity is
// dataset-scoped, so the dimension, measures, conditional rules, reference
// lines and any filters on the chart are all cleared. Setting the current
// dataset again changes nothing.
func (m *Model) SetDatasetID(id, datasetID string) (*model.Binding, error) {
	w, err := m.chart(id)
	if err != nil {
		return nil, fmt.Errorf("set dataset on %s: %w", id, err)
	}
	if w.Binding != nil && w.Binding.DatasetID == datasetID {
		return w.Binding, nil
	}
	if datasetID != "" {
		if _, ok := m.cat.GetDataset(datasetID); !ok {
			return nil, fmt.Errorf("set dataset on %s: %q: %w", id, datasetID, model.ErrUnknownDataset)
		}
	}
	b := &model.Binding{DatasetID: datasetID}
	if err := m.reg.Update(id, model.WidgetPatch{Binding: b, Filters: map[string]*model.FilterPredicate{}}); err != nil {
		return nil, err
	}
	return b, nil
}

// SetAggregation sets the aggregation of one measure.
func (m *Model) SetAggregation(id, fieldID string, agg model.Aggregation) (*model.Binding, error) {
	return m.editMeasure(id, fieldID, "set aggregation", func(ms *model.Measure) { ms.Aggregation = agg })
}

// SetTransform sets the transform of one measure.
func (m *Model) SetTransform(id, fieldID string, t model.Transform) (*model.Binding, error) {
	return m.editMeasure(id, fieldID, "set transform", func(ms *model.Measure) { ms.Transform = t })
}

// SetFormat sets the display format of one measure.
func (m *Model) SetFormat(id, fieldID string, f model.Format) (*model.Binding, error) {
	return m.editMeasure(id, fieldID, "set format", func(ms *model.Measure) { ms.Format = f })
}

// MeasurePatch is a partial update of one measure's settings.
type MeasurePatch struct {
	Aggregation *model.Aggregation `json:"aggregation,omitempty"`
	Transform   *model.Transform   `json:"transform,omitempty"`
	Format      *model.Format      `json:"format,omitempty"`
}

// UpdateMeasure applies several measure settings in one step.
func (m *Model) UpdateMeasure(id, fieldID string, p MeasurePatch) (*model.Binding, error) {
	return m.editMeasure(id, fieldID, "update measure", func(ms *model.Measure) {
		if p.Aggregation != nil {
			ms.Aggregation = *p.Aggregation
		}
		if p.Transform != nil {
			ms.Transform = *p.Transform
		}
		if p.Format != nil {
			ms.Format = *p.Format
		}
	})
}

// Update replaces the chart's binding wholesale after checking every field
// reference against the catalog. Field names are canonicalized to IDs.
func (m *Model) Update(id string, b *model.Binding) (*model.Binding, error) {
	w, err := m.chart(id)
	if err != nil {
		return nil, fmt.Errorf("update binding on %s: %w", id, err)
	}
	next := b.Clone()
	if next == nil {
		next = &model.Binding{}
	}
	if err := m.resolve(next); err != nil {
		return nil, fmt.Errorf("update binding on %s: %w", id, err)
	}
	patch := model.WidgetPatch{Binding: next}
	if w.Binding == nil || w.Binding.DatasetID != next.DatasetID {
		patch.Filters = map[string]*model.FilterPredicate{}
	}
	if err := m.reg.Update(id, patch); err != nil {
		return nil, err
	}
	return next, nil
}

// resolve canonicalizes and type-checks every field reference in b.
func (m *Model) resolve(b *model.Binding) error {
	if b.DatasetID == "" {
		if b.Dimension != "" || len(b.Measures) > 0 || len(b.ConditionalRules) > 0 {
			return fmt.Errorf("binding has fields but no dataset: %w", model.ErrUnknownDataset)
		}
		return nil
	}
	ds, ok := m.cat.GetDataset(b.DatasetID)
	if !ok {
		return fmt.Errorf("%q: %w", b.DatasetID, model.ErrUnknownDataset)
	}
	if b.Dimension != "" {
		f, ok := ds.Field(b.Dimension)
		if !ok {
			return fmt.Errorf("dimension %q: %w", b.Dimension, model.ErrUnknownField)
		}
		if !isDimensionType(f.Type) {
			return fmt.Errorf("%w: dimension %s is %s, want string or date", model.ErrInvalidFieldType, f.ID, f.Type)
		}
		b.Dimension = f.ID
	}
	for i := range b.Measures {
		f, ok := ds.Field(b.Measures[i].Field)
		if !ok {
			return fmt.Errorf("measure %q: %w", b.Measures[i].Field, model.ErrUnknownField)
		}
		if f.Type != model.FieldNumber {
			return fmt.Errorf("%w: measure %s is %s, want number", model.ErrInvalidFieldType, f.ID, f.Type)
		}
		b.Measures[i].Field = f.ID
	}
	for i := range b.ConditionalRules {
		f, ok := ds.Field(b.ConditionalRules[i].Field)
		if !ok || b.MeasureIndex(f.ID) < 0 {
			return fmt.Errorf("conditional rule on %q: %w", b.ConditionalRules[i].Field, model.ErrUnknownMeasure)
		}
		b.ConditionalRules[i].Field = f.ID
	}
	return nil
}

// edit loads the chart's binding, lets fn change a copy and writes it back
// if fn reports a change.
func (m *Model) edit(id, op string, fn func(b *model.Binding) (bool, error)) (*model.Binding, error) {
	w, err := m.chart(id)
	if err != nil {
		return nil, fmt.Errorf("%s on %s: %w", op, id, err)
	}
	b := w.Binding.Clone()
	if b == nil {
		b = &model.Binding{}
	}
	changed, err := fn(b)
	if err != nil {
		return nil, fmt.Errorf("%s on %s: %w", op, id, err)
	}
	if !changed {
		return b, nil
	}
	if err := m.reg.Update(id, model.WidgetPatch{Binding: b}); err != nil {
		return nil, err
	}
	return b, nil
}

func (m *Model) editMeasure(id, fieldID, op string, fn func(ms *model.Measure)) (*model.Binding, error) {
	return m.edit(id, op, func(b *model.Binding) (bool, error) {
		i := m.measureIndex(b, fieldID)
		if i < 0 {
			return false, fmt.Errorf("%q: %w", fieldID, model.ErrUnknownMeasure)
		}
		fn(&b.Measures[i])
		return true, nil
	})
}

// measureIndex finds a measure by field ID, or by field name through the
// catalog.
func (m *Model) measureIndex(b *model.Binding, fieldID string) int {
	if i := b.MeasureIndex(fieldID); i >= 0 {
		return i
	}
	if ds, ok := m.cat.GetDataset(b.DatasetID); ok {
		if f, ok := ds.Field(fieldID); ok {
			return b.MeasureIndex(f.ID)
		}
	}
	return -1
}

func (m *Model) chart(id string) (*model.Widget, error) {
	w, ok := m.reg.Get(id)
	if !ok {
		return nil, model.ErrNotFound
	}
	if !w.Kind.IsChart() {
		return nil, fmt.Errorf("%w: %s is %s", model.ErrNotChart, id, w.Kind)
	}
	return w, nil
}

func (m *Model) field(b *model.Binding, fieldID string) (model.Field, error) {
	if b.DatasetID == "" {
		return model.Field{}, fmt.Errorf("no dataset bound: %w", model.ErrUnknownDataset)
	}
	return catalog.Field(m.cat, b.DatasetID, fieldID)
}

func isDimensionType(t model.FieldType) bool {
	return t == model.FieldString || t == model.FieldDate
}
