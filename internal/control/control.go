// Package control configures input controls: where their selectable values
// come from, which widgets they filter and which peers they stay in step
// with. Value changes themselves go through the propagation engine.
package control

import (
	"fmt"
	"slices"
	"sort"

	"github.com/alfredjeanlab/canvas/internal/catalog"
	"github.com/alfredjeanlab/canvas/internal/evaluate"
	"github.com/alfredjeanlab/canvas/internal/model"
	"github.com/alfredjeanlab/canvas/internal/registry"
)

// Presets are the named value lists a preset-sourced control can offer.
var Presets = map[string][]string{
	"quarters": {"Q1", "Q2", "Q3", "Q4"},
	"months":   {"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
	"weekdays": {"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"},
	"yes-no":   {"Yes", "No"},
}

// Model applies configuration operations to control widgets.
type Model struct {
	reg *registry.Registry
	cat catalog.Provider
}

// New returns a control model over reg, resolving datasets through cat.
func New(reg *registry.Registry, cat catalog.Provider) *Model {
	return &Model{reg: reg, cat: cat}
}

// AddTarget makes the control filter another widget. Adding an existing
// target replaces its column mapping. When t carries no mapping and the
// control has a source column that the target's dataset also has, the two
// are mapped by name.
func (m *Model) AddTarget(id string, t model.Target) (*model.ControlConfig, error) {
	return m.edit(id, "add target", func(tx *registry.Registry, c *model.ControlConfig) error {
		if t.ElementID == id {
			return fmt.Errorf("%w: a control cannot target itself", model.ErrIncompatibleTarget)
		}
		tw, ok := tx.Get(t.ElementID)
		if !ok {
			return fmt.Errorf("%q: %w", t.ElementID, model.ErrUnknownTarget)
		}
		t = t.Clone()
		if len(t.ColumnMapping) == 0 {
			t.ColumnMapping = m.defaultMapping(c, tw)
		}
		if err := m.checkMapping(tw, t.ColumnMapping); err != nil {
			return err
		}
		t.ElementType = tw.Kind
		if i := c.TargetIndex(t.ElementID); i >= 0 {
			c.Targets[i] = t
		} else {
			c.Targets = append(c.Targets, t)
		}
		return nil
	})
}

// RemoveTarget stops the control filtering elementID and drops the filter
// it had applied there.
func (m *Model) RemoveTarget(id, elementID string) (*model.ControlConfig, error) {
	return m.edit(id, "remove target", func(tx *registry.Registry, c *model.ControlConfig) error {
		i := c.TargetIndex(elementID)
		if i < 0 {
			return fmt.Errorf("%q: %w", elementID, model.ErrUnknownTarget)
		}
		c.Targets = slices.Delete(c.Targets, i, i+1)
		return dropFilter(tx, elementID, id)
	})
}

// SetColumnMapping replaces the column mapping on an existing target.
func (m *Model) SetColumnMapping(id, elementID string, mapping map[string]string) (*model.ControlConfig, error) {
	return m.edit(id, "set column mapping", func(tx *registry.Registry, c *model.ControlConfig) error {
		i := c.TargetIndex(elementID)
		if i < 0 {
			return fmt.Errorf("%q: %w", elementID, model.ErrUnknownTarget)
		}
		tw, ok := tx.Get(elementID)
		if !ok {
			return fmt.Errorf("%q: %w", elementID, model.ErrUnknownTarget)
		}
		if err := m.checkMapping(tw, mapping); err != nil {
			return err
		}
		c.Targets[i].ColumnMapping = model.Target{ColumnMapping: mapping}.Clone().ColumnMapping
		return nil
	})
}

// Sync adds b to a's synced group. The registry mirrors the change onto b.
func (m *Model) Sync(a, b string) (*model.ControlConfig, error) {
	return m.edit(a, "sync", func(tx *registry.Registry, c *model.ControlConfig) error {
		if a == b {
			return fmt.Errorf("%w: a control cannot sync with itself", model.ErrIncompatibleTarget)
		}
		if _, ok := tx.Get(b); !ok {
			return fmt.Errorf("%q: %w", b, model.ErrUnknownTarget)
		}
		if !c.IsSyncedWith(b) {
			c.SyncedControlIDs = append(c.SyncedControlIDs, b)
		}
		return nil
	})
}

// Unsync removes b from a's synced group and a from b's.
func (m *Model) Unsync(a, b string) (*model.ControlConfig, error) {
	return m.edit(a, "unsync", func(_ *registry.Registry, c *model.ControlConfig) error {
		c.SyncedControlIDs = slices.DeleteFunc(c.SyncedControlIDs, func(s string) bool { return s == b })
		return nil
	})
}

// Source describes where a control's selectable values come from.
type Source struct {
	ValueSource  model.ValueSource `json:"value_source"`
	Dataset      string            `json:"source_dataset,omitempty"`
	Column       string            `json:"source_column,omitempty"`
	ManualValues []string          `json:"manual_values,omitempty"`
	Preset       string            `json:"preset,omitempty"`
}

// SetValueSource replaces the control's value source. Settings that belong
// to other source kinds are cleared.
func (m *Model) SetValueSource(id string, s Source) (*model.ControlConfig, error) {
	return m.edit(id, "set value source", func(_ *registry.Registry, c *model.ControlConfig) error {
		c.ValueSource = s.ValueSource
		c.SourceDataset, c.SourceColumn, c.ManualValues, c.Preset = "", "", nil, ""
		switch s.ValueSource {
		case model.SourceColumn:
			c.SourceDataset, c.SourceColumn = s.Dataset, s.Column
		case model.SourceManual:
			c.ManualValues = slices.Clone(s.ManualValues)
		case model.SourcePreset:
			c.Preset = s.Preset
		}
		return m.checkSource(c)
	})
}

// Update replaces the control's configuration wholesale. Targets and synced
// peers are checked by the registry; the value source is checked against
// the catalog.
func (m *Model) Update(id string, cfg *model.ControlConfig) (*model.ControlConfig, error) {
	return m.edit(id, "update control", func(_ *registry.Registry, c *model.ControlConfig) error {
		if cfg == nil {
			return &model.ValidationError{Errors: []model.FieldError{{Field: "control", Message: "is required"}}}
		}
		*c = *cfg.Clone()
		return m.checkSource(c)
	})
}

// Options returns the values the control offers. Column sources yield the
// distinct values of the column, narrowed by any filters other controls
// have applied to this control.
func (m *Model) Options(id string) ([]any, error) {
	w, err := m.control(m.reg, id)
	if err != nil {
		return nil, fmt.Errorf("options for %s: %w", id, err)
	}
	c := w.Control
	switch c.ValueSource {
	case model.SourceManual:
		return stringsToAny(c.ManualValues), nil
	case model.SourcePreset:
		return stringsToAny(Presets[c.Preset]), nil
	case model.SourceColumn:
		ds, ok := m.cat.GetDataset(c.SourceDataset)
		if !ok {
			return nil, fmt.Errorf("options for %s: %q: %w", id, c.SourceDataset, model.ErrUnknownDataset)
		}
		vals, err := evaluate.Distinct(ds, c.SourceColumn, w.Filters)
		if err != nil {
			return nil, fmt.Errorf("options for %s: %w", id, err)
		}
		return vals, nil
	}
	return nil, nil
}

// edit runs fn on a copy of the control's configuration inside one registry
// transaction and writes the result back.
func (m *Model) edit(id, op string, fn func(tx *registry.Registry, c *model.ControlConfig) error) (*model.ControlConfig, error) {
	var out *model.ControlConfig
	err := m.reg.Tx(func(tx *registry.Registry) error {
		w, err := m.control(tx, id)
		if err != nil {
			return err
		}
		c := w.Control.Clone()
		if err := fn(tx, c); err != nil {
			return err
		}
		if err := tx.Update(id, model.WidgetPatch{Control: c}); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s on %s: %w", op, id, err)
	}
	if w, ok := m.reg.Get(id); ok {
		out = w.Control
	}
	return out, nil
}

func (m *Model) control(r *registry.Registry, id string) (*model.Widget, error) {
	w, ok := r.Get(id)
	if !ok {
		return nil, model.ErrNotFound
	}
	if !w.Kind.IsControl() {
		return nil, fmt.Errorf("%w: %s is %s", model.ErrNotControl, id, w.Kind)
	}
	return w, nil
}

func (m *Model) checkSource(c *model.ControlConfig) error {
	switch c.ValueSource {
	case model.SourceColumn:
		if _, err := catalog.Field(m.cat, c.SourceDataset, c.SourceColumn); err != nil {
			return err
		}
	case model.SourcePreset:
		if _, ok := Presets[c.Preset]; !ok {
			return &model.ValidationError{Errors: []model.FieldError{{Field: "control.preset", Message: fmt.Sprintf("unknown preset %q", c.Preset)}}}
		}
	}
	return nil
}

// targetDataset returns the dataset a target widget's filters apply to.
func targetDataset(w *model.Widget) string {
	switch {
	case w.Binding != nil:
		return w.Binding.DatasetID
	case w.Control != nil:
		return w.Control.SourceDataset
	}
	return ""
}

func (m *Model) checkMapping(tw *model.Widget, mapping map[string]string) error {
	dsID := targetDataset(tw)
	if dsID == "" {
		return nil
	}
	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := catalog.Field(m.cat, dsID, mapping[k]); err != nil {
			return fmt.Errorf("column mapping %s -> %s: %w", k, mapping[k], err)
		}
	}
	return nil
}

func (m *Model) defaultMapping(c *model.ControlConfig, tw *model.Widget) map[string]string {
	if c.SourceColumn == "" {
		return nil
	}
	ds, ok := m.cat.GetDataset(targetDataset(tw))
	if !ok {
		return nil
	}
	if f, ok := ds.Field(c.SourceColumn); ok {
		return map[string]string{c.SourceColumn: f.ID}
	}
	return nil
}

// dropFilter removes the filter controlID applied to widget id.
func dropFilter(tx *registry.Registry, id, controlID string) error {
	w, ok := tx.Get(id)
	if !ok {
		return nil
	}
	if _, ok := w.Filters[controlID]; !ok {
		return nil
	}
	delete(w.Filters, controlID)
	return tx.Update(id, model.WidgetPatch{Filters: w.Filters})
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
