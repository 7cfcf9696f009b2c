// Package propagation fans a control's value change out to its synced peers
// and to the widgets they filter. A pass is synchronous, visits every widget
// at most once and commits as one registry transaction.
package propagation

import (
	"fmt"
	"sort"

	"github.com/alfredjeanlab/canvas/internal/catalog"
	"github.com/alfredjeanlab/canvas/internal/model"
	"github.com/alfredjeanlab/canvas/internal/registry"
)

// FilterHook is notified once per affected widget after a pass commits.
// A nil predicate means the widget no longer has a filter from the group.
type FilterHook interface {
	OnFilterStateChanged(widgetID string, p *model.FilterPredicate)
}

// HookFunc adapts a function to FilterHook.
type HookFunc func(widgetID string, p *model.FilterPredicate)

// OnFilterStateChanged calls f.
func (f HookFunc) OnFilterStateChanged(widgetID string, p *model.FilterPredicate) { f(widgetID, p) }

// Affected is one widget whose filter state a pass rewrote.
type Affected struct {
	WidgetID  string                 `json:"widget_id"`
	ControlID string                 `json:"control_id"`
	Predicate *model.FilterPredicate `json:"predicate"`
}

// Pass is the outcome of one SetValue call.
type Pass struct {
	ControlID string `json:"control_id"`
	Value     any    `json:"value"`
	// Changed is false when the value equalled the control's current value
	// and nothing was done.
	Changed bool `json:"changed"`
	// Assigned lists the controls whose current value was set, in visit
	// order, starting with ControlID.
	Assigned []string   `json:"assigned"`
	Affected []Affected `json:"affected"`
}

// Engine runs propagation passes over a registry.
type Engine struct {
	reg   *registry.Registry
	cat   catalog.Provider
	hooks []FilterHook
	busy  bool
}

// New returns an engine over reg. Target field types are looked up in cat
// for value coercion.
func New(reg *registry.Registry, cat catalog.Provider, hooks ...FilterHook) *Engine {
	return &Engine{reg: reg, cat: cat, hooks: hooks}
}

// AddHook registers another filter hook.
func (e *Engine) AddHook(h FilterHook) {
	e.hooks = append(e.hooks, h)
}

// Busy reports whether a pass is running.
func (e *Engine) Busy() bool { return e.busy }

type edge struct {
	from   *model.Widget
	target model.Target
}

// SetValue stores value on the control and propagates it. Setting a value
// equal to the current one is a no-op. Calling SetValue while a pass is
// running, for instance from a hook, returns ErrPropagationInProgress.
func (e *Engine) SetValue(controlID string, value any) (*Pass, error) {
	if e.busy {
		return nil, fmt.Errorf("set value on %s: %w", controlID, model.ErrPropagationInProgress)
	}
	w, ok := e.reg.Get(controlID)
	if !ok {
		return nil, fmt.Errorf("set value on %s: %w", controlID, model.ErrNotFound)
	}
	if w.Control == nil {
		return nil, fmt.Errorf("set value on %s: %w", controlID, model.ErrNotControl)
	}
	pass := &Pass{ControlID: controlID, Value: value}
	if model.ValuesEqual(w.Control.CurrentValue, value) {
		return pass, nil
	}

	e.busy = true
	defer func() { e.busy = false }()

	err := e.reg.Tx(func(tx *registry.Registry) error {
		// The synced walk and the target walk keep separate seen sets: a
		// control reached first as a target still belongs to the group and
		// must take the value, while each target is filtered at most once.
		inGroup := map[string]bool{controlID: true}
		targeted := map[string]bool{controlID: true}
		queue := []string{controlID}
		var group []string
		var edges []edge

		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			cw, _ := tx.Get(id)
			group = append(group, id)

			if id == controlID || !model.ValuesEqual(cw.Control.CurrentValue, value) {
				c := cw.Control.Clone()
				c.CurrentValue = value
				if err := tx.Update(id, model.WidgetPatch{Control: c}); err != nil {
					return err
				}
				pass.Assigned = append(pass.Assigned, id)
			}
			for _, peer := range cw.Control.SyncedControlIDs {
				if !inGroup[peer] {
					inGroup[peer] = true
					queue = append(queue, peer)
				}
			}
			for _, t := range cw.Control.Targets {
				if !targeted[t.ElementID] {
					targeted[t.ElementID] = true
					edges = append(edges, edge{from: cw, target: t})
				}
			}
		}

		for _, ed := range edges {
			tw, _ := tx.Get(ed.target.ElementID)
			pred := e.predicate(ed.from, ed.target, tw, value)
			filters := tw.Filters
			if filters == nil {
				filters = map[string]*model.FilterPredicate{}
			}
			for _, id := range group {
				delete(filters, id)
			}
			if pred != nil {
				filters[ed.from.ID] = pred
			}
			if err := tx.Update(tw.ID, model.WidgetPatch{Filters: filters}); err != nil {
				return err
			}
			pass.Affected = append(pass.Affected, Affected{WidgetID: tw.ID, ControlID: ed.from.ID, Predicate: pred})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("set value on %s: %w", controlID, err)
	}
	pass.Changed = true

	for _, a := range pass.Affected {
		for _, h := range e.hooks {
			h.OnFilterStateChanged(a.WidgetID, a.Predicate.Clone())
		}
	}
	return pass, nil
}

// predicate translates a control value into a filter on the target's
// dataset. It returns nil when the value is empty or no column resolves.
func (e *Engine) predicate(src *model.Widget, t model.Target, tw *model.Widget, value any) *model.FilterPredicate {
	if model.IsEmptyValue(value) {
		return nil
	}
	dsID := datasetOf(tw)
	column := mappedColumn(src.Control, t.ColumnMapping)
	if column == "" {
		return nil
	}
	p := &model.FilterPredicate{
		ControlID: src.ID,
		DatasetID: dsID,
		Column:    column,
		Op:        opFor(src, value),
		Value:     value,
	}
	if ds, ok := e.cat.GetDataset(dsID); ok {
		if f, ok := ds.Field(column); ok {
			p.Column = f.ID
			if v, ok := model.Coerce(value, f.Type); ok {
				p.Value = v
			}
		}
	}
	return p
}

// datasetOf returns the dataset a widget's filters apply to.
func datasetOf(w *model.Widget) string {
	switch {
	case w.Binding != nil:
		return w.Binding.DatasetID
	case w.Control != nil:
		return w.Control.SourceDataset
	}
	return ""
}

// mappedColumn picks the target column from a column mapping: the entry for
// the control's source column if there is one, otherwise the first entry by
// key. With no mapping the source column itself is used.
func mappedColumn(c *model.ControlConfig, mapping map[string]string) string {
	if len(mapping) == 0 {
		return c.SourceColumn
	}
	if col, ok := mapping[c.SourceColumn]; ok && c.SourceColumn != "" {
		return col
	}
	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return mapping[keys[0]]
}

// opFor chooses the predicate operator from the control kind and value.
func opFor(src *model.Widget, value any) model.FilterOp {
	switch src.Kind {
	case model.KindDateRange, model.KindSlider:
		if isRange(value) {
			return model.OpBetween
		}
	case model.KindTextInput:
		return model.OpContains
	}
	switch value.(type) {
	case []any, []string:
		return model.OpIn
	}
	return model.OpEq
}

func isRange(v any) bool {
	switch x := v.(type) {
	case map[string]any:
		return true
	case []any:
		return len(x) == 2
	}
	return false
}
