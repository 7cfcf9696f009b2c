package registry

import (
	"fmt"

	"github.com/alfredjeanlab/canvas/internal/grid"
	"github.com/alfredjeanlab/canvas/internal/model"
)

// checkAll validates the whole canvas: the layout and every control's
// targets and synced group.
func (r *Registry) checkAll() error {
	if err := grid.Check(r.Placements(), r.columns); err != nil {
		return err
	}
	for _, id := range r.order {
		if err := r.checkRelations(id); err != nil {
			return err
		}
	}
	return nil
}

// checkRelations validates the outgoing references of one widget. Targets
// must exist and be charts or controls of the same value shape. Synced peers
// must exist, be controls of the same value shape and list id back.
func (r *Registry) checkRelations(id string) error {
	w, ok := r.widgets[id]
	if !ok {
		return fmt.Errorf("widget %s: %w", id, model.ErrNotFound)
	}
	if w.Control == nil {
		return nil
	}
	shape := w.Kind.Shape()

	for _, t := range w.Control.Targets {
		tw, ok := r.widgets[t.ElementID]
		if !ok {
			return fmt.Errorf("control %s target %s: %w", id, t.ElementID, model.ErrUnknownTarget)
		}
		if err := compatibleTarget(w, tw, shape); err != nil {
			return fmt.Errorf("control %s target %s: %w", id, t.ElementID, err)
		}
	}

	for _, peer := range w.Control.SyncedControlIDs {
		pw, ok := r.widgets[peer]
		if !ok {
			return fmt.Errorf("control %s synced with %s: %w", id, peer, model.ErrUnknownTarget)
		}
		if pw.Control == nil || pw.Kind.Shape() != shape {
			return fmt.Errorf("control %s synced with %s (%s): %w", id, peer, pw.Kind, model.ErrIncompatibleTarget)
		}
		if !pw.Control.IsSyncedWith(id) {
			return fmt.Errorf("control %s synced with %s: %w: relation is not symmetric", id, peer, model.ErrIncompatibleTarget)
		}
	}
	return nil
}

func compatibleTarget(src, dst *model.Widget, shape model.ValueShape) error {
	switch {
	case src.ID == dst.ID:
		return fmt.Errorf("%w: a control cannot target itself", model.ErrIncompatibleTarget)
	case dst.Kind.IsChart():
		return nil
	case dst.Kind.IsControl() && dst.Kind.Shape() == shape:
		return nil
	}
	return fmt.Errorf("%w: %s cannot receive values from %s", model.ErrIncompatibleTarget, dst.Kind, src.Kind)
}
