// Package registry holds the authoritative set of widgets on one dashboard
// canvas. Every mutation is atomic: it is applied to a working copy, the
// copy is checked against the grid and relation invariants, and only then
// does it replace the live state.
package registry

import (
	"fmt"
	"slices"
	"time"

	"github.com/alfredjeanlab/canvas/internal/grid"
	"github.com/alfredjeanlab/canvas/internal/idgen"
	"github.com/alfredjeanlab/canvas/internal/model"
)

// Registry is the single mutable source of truth for a canvas. It is not
// safe for concurrent use; callers serialize access.
type Registry struct {
	columns int
	widgets map[string]*model.Widget
	order   []string

	// inTx is set on working copies. Mutations on a working copy skip
	// cross-widget checks; the whole graph is checked once before commit.
	inTx bool

	now   func() time.Time
	newID func() (string, error)
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the time source used for created/updated timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithIDGenerator sets the function used to assign IDs to new widgets.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(r *Registry) { r.newID = gen }
}

// New returns an empty registry for a grid with the given column count.
// A non-positive count selects model.DefaultColumns.
func New(columns int, opts ...Option) *Registry {
	if columns <= 0 {
		columns = model.DefaultColumns
	}
	r := &Registry{
		columns: columns,
		widgets: make(map[string]*model.Widget),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   idgen.Widget,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Load builds a registry from persisted widget records. The records must
// already satisfy every invariant; nothing is repaired.
func Load(columns int, widgets []*model.Widget, opts ...Option) (*Registry, error) {
	r := New(columns, opts...)
	for _, w := range widgets {
		if w == nil {
			continue
		}
		if w.ID == "" {
			return nil, fmt.Errorf("load widget: %w", &model.ValidationError{Errors: []model.FieldError{{Field: "id", Message: "is required"}}})
		}
		if _, dup := r.widgets[w.ID]; dup {
			return nil, fmt.Errorf("load widget %s: %w", w.ID, model.ErrDuplicateID)
		}
		if err := model.ValidateWidget(w, r.columns); err != nil {
			return nil, fmt.Errorf("load widget %s: %w", w.ID, err)
		}
		r.widgets[w.ID] = w.Clone()
		r.order = append(r.order, w.ID)
	}
	if err := r.checkAll(); err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	return r, nil
}

// Columns returns the grid column count.
func (r *Registry) Columns() int { return r.columns }

// Len returns the number of widgets.
func (r *Registry) Len() int { return len(r.order) }

// Get returns a copy of the widget with the given ID.
func (r *Registry) Get(id string) (*model.Widget, bool) {
	w, ok := r.widgets[id]
	if !ok {
		return nil, false
	}
	return w.Clone(), true
}

// All returns copies of every widget in insertion order.
func (r *Registry) All() []*model.Widget {
	out := make([]*model.Widget, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.widgets[id].Clone())
	}
	return out
}

// Placements returns the geometry of every widget in insertion order.
func (r *Registry) Placements() []grid.Placement {
	out := make([]grid.Placement, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, grid.Placement{ID: id, Geometry: r.widgets[id].Geometry})
	}
	return out
}

// Tx runs fn against a working copy of the registry. Mutations made through
// tx are not checked against one another until fn returns; the resulting
// graph is then checked once and either committed whole or discarded.
// A Tx inside a Tx joins the outer one.
func (r *Registry) Tx(fn func(tx *Registry) error) error {
	if r.inTx {
		return fn(r)
	}
	work := r.clone()
	work.inTx = true
	if err := fn(work); err != nil {
		return err
	}
	if err := work.checkAll(); err != nil {
		return err
	}
	r.widgets = work.widgets
	r.order = work.order
	return nil
}

// Add inserts a widget and returns its ID. A fresh ID is generated when
// w.ID is empty. Synced control IDs listed on w are mirrored onto the peers.
func (r *Registry) Add(w *model.Widget) (string, error) {
	if w == nil {
		return "", fmt.Errorf("add widget: %w", &model.ValidationError{Errors: []model.FieldError{{Field: "widget", Message: "is required"}}})
	}
	nw := w.Clone()
	if nw.ID == "" {
		id, err := r.newID()
		if err != nil {
			return "", fmt.Errorf("add widget: %w", err)
		}
		nw.ID = id
	}
	if _, dup := r.widgets[nw.ID]; dup {
		return "", fmt.Errorf("add widget %s: %w", nw.ID, model.ErrDuplicateID)
	}
	normalize(nw)
	if err := model.ValidateWidget(nw, r.columns); err != nil {
		return "", fmt.Errorf("add widget: %w", err)
	}
	if !r.inTx {
		if hits := grid.ConflictsWith(nw.ID, nw.Geometry, r.Placements()); len(hits) > 0 {
			return "", fmt.Errorf("add widget %s: %w: overlaps %s", nw.ID, model.ErrGeometryConflict, hits[0])
		}
	}

	standalone := !r.inTx
	err := r.Tx(func(tx *Registry) error {
		now := tx.now()
		nw.CreatedAt, nw.UpdatedAt = now, now
		tx.widgets[nw.ID] = nw
		tx.order = append(tx.order, nw.ID)
		if nw.Control != nil {
			tx.mirrorSync(nw.ID, nil, nw.Control.SyncedControlIDs)
		}
		tx.fillTargetTypes(nw)
		if standalone {
			return tx.checkRelations(nw.ID)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("add widget %s: %w", nw.ID, err)
	}
	return nw.ID, nil
}

// Update merges patch into the widget with the given ID. Top-level keys are
// replaced shallowly; a nested object in the patch replaces the existing one
// wholesale. Changes to a control's synced list are mirrored onto the peers
// in the same step.
func (r *Registry) Update(id string, patch model.WidgetPatch) error {
	err := r.Tx(func(tx *Registry) error {
		cur, ok := tx.widgets[id]
		if !ok {
			return model.ErrNotFound
		}
		next := cur.Clone()
		if patch.Kind != nil && *patch.Kind != cur.Kind {
			return model.ErrKindImmutable
		}
		if patch.Title != nil {
			next.Title = *patch.Title
		}
		if patch.Geometry != nil {
			next.Geometry = *patch.Geometry
		}
		if patch.Binding != nil {
			next.Binding = patch.Binding.Clone()
		}
		if patch.Control != nil {
			next.Control = patch.Control.Clone()
		}
		if patch.Filters != nil {
			next.Filters = (&model.Widget{Filters: patch.Filters}).Clone().Filters
			if len(next.Filters) == 0 {
				next.Filters = nil
			}
		}
		normalize(next)
		if err := model.ValidateWidget(next, tx.columns); err != nil {
			return err
		}
		next.UpdatedAt = tx.now()
		tx.widgets[id] = next
		tx.fillTargetTypes(next)

		if cur.Control != nil && next.Control != nil {
			tx.mirrorSync(id, cur.Control.SyncedControlIDs, next.Control.SyncedControlIDs)
			tx.dropStaleFilters(id, cur.Control.Targets, next.Control.Targets)
		}
		if !r.inTx {
			// Standalone update: report the specific violation before the
			// generic whole-graph check runs.
			if patch.Geometry != nil {
				if hits := grid.ConflictsWith(id, next.Geometry, tx.Placements()); len(hits) > 0 {
					return fmt.Errorf("%w: overlaps %s", model.ErrGeometryConflict, hits[0])
				}
			}
			return tx.checkRelations(id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update widget %s: %w", id, err)
	}
	return nil
}

// Remove deletes the widget and prunes it from every other widget's
// targets, synced control list and filter state, all in one step.
func (r *Registry) Remove(id string) error {
	err := r.Tx(func(tx *Registry) error {
		if _, ok := tx.widgets[id]; !ok {
			return model.ErrNotFound
		}
		delete(tx.widgets, id)
		tx.order = slices.DeleteFunc(tx.order, func(s string) bool { return s == id })

		now := tx.now()
		for _, oid := range tx.order {
			w := tx.widgets[oid]
			changed := false
			if c := w.Control; c != nil {
				if i := c.TargetIndex(id); i >= 0 {
					c.Targets = slices.Delete(c.Targets, i, i+1)
					changed = true
				}
				if c.IsSyncedWith(id) {
					c.SyncedControlIDs = slices.DeleteFunc(c.SyncedControlIDs, func(s string) bool { return s == id })
					changed = true
				}
			}
			if _, ok := w.Filters[id]; ok {
				delete(w.Filters, id)
				if len(w.Filters) == 0 {
					w.Filters = nil
				}
				changed = true
			}
			if changed {
				w.UpdatedAt = now
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove widget %s: %w", id, err)
	}
	return nil
}

// clone returns a deep copy of the registry state.
func (r *Registry) clone() *Registry {
	c := *r
	c.widgets = make(map[string]*model.Widget, len(r.widgets))
	for id, w := range r.widgets {
		c.widgets[id] = w.Clone()
	}
	c.order = slices.Clone(r.order)
	return &c
}

// mirrorSync makes the synced relation symmetric after id's list changed
// from before to after: new peers gain id, dropped peers lose it. Peers that
// do not exist or are not controls are left for checkRelations to reject.
func (r *Registry) mirrorSync(id string, before, after []string) {
	now := r.now()
	for _, peer := range after {
		if slices.Contains(before, peer) {
			continue
		}
		pw, ok := r.widgets[peer]
		if !ok || pw.Control == nil || pw.Control.IsSyncedWith(id) {
			continue
		}
		pw.Control.SyncedControlIDs = append(pw.Control.SyncedControlIDs, id)
		pw.UpdatedAt = now
	}
	for _, peer := range before {
		if slices.Contains(after, peer) {
			continue
		}
		pw, ok := r.widgets[peer]
		if !ok || pw.Control == nil || !pw.Control.IsSyncedWith(id) {
			continue
		}
		pw.Control.SyncedControlIDs = slices.DeleteFunc(pw.Control.SyncedControlIDs, func(s string) bool { return s == id })
		pw.UpdatedAt = now
	}
}

// dropStaleFilters removes the filter id applied to each widget that was a
// target in before but is not in after.
func (r *Registry) dropStaleFilters(id string, before, after []model.Target) {
	now := r.now()
	for _, t := range before {
		if slices.ContainsFunc(after, func(n model.Target) bool { return n.ElementID == t.ElementID }) {
			continue
		}
		tw, ok := r.widgets[t.ElementID]
		if !ok {
			continue
		}
		if _, ok := tw.Filters[id]; !ok {
			continue
		}
		delete(tw.Filters, id)
		if len(tw.Filters) == 0 {
			tw.Filters = nil
		}
		tw.UpdatedAt = now
	}
}

// fillTargetTypes records the kind of each existing target on the target
// entry itself. Missing targets are left for checkRelations.
func (r *Registry) fillTargetTypes(w *model.Widget) {
	if w.Control == nil {
		return
	}
	for i, t := range w.Control.Targets {
		if tw, ok := r.widgets[t.ElementID]; ok {
			w.Control.Targets[i].ElementType = tw.Kind
		}
	}
}

// normalize collapses empty collections to nil.
func normalize(w *model.Widget) {
	if w.Control != nil && len(w.Control.SyncedControlIDs) == 0 {
		w.Control.SyncedControlIDs = nil
	}
	if len(w.Filters) == 0 {
		w.Filters = nil
	}
}
