// Package layout maps move and resize requests onto the registry, keeping
// the canvas free of overlaps. A rejected request leaves the widget at its
// last valid geometry; nothing is rearranged automatically.
package layout

import (
	"fmt"
	"math"

	"github.com/alfredjeanlab/canvas/internal/grid"
	"github.com/alfredjeanlab/canvas/internal/model"
	"github.com/alfredjeanlab/canvas/internal/registry"
)

// Engine applies geometry changes through a registry.
type Engine struct {
	reg *registry.Registry
}

// New returns a layout engine bound to reg.
func New(reg *registry.Registry) *Engine {
	return &Engine{reg: reg}
}

// Change is one entry of a batch layout update.
type Change struct {
	ID       string         `json:"id"`
	Geometry model.Geometry `json:"geometry"`
}

// Move places the widget's top-left corner at (x, y), keeping its size.
func (e *Engine) Move(id string, x, y int) (model.Geometry, error) {
	w, ok := e.reg.Get(id)
	if !ok {
		return model.Geometry{}, fmt.Errorf("move %s: %w", id, model.ErrNotFound)
	}
	g := w.Geometry
	g.X, g.Y = x, y
	if err := e.Place(id, g); err != nil {
		return w.Geometry, err
	}
	return g, nil
}

// Resize sets the widget's width and height, keeping its position.
func (e *Engine) Resize(id string, width, height int) (model.Geometry, error) {
	w, ok := e.reg.Get(id)
	if !ok {
		return model.Geometry{}, fmt.Errorf("resize %s: %w", id, model.ErrNotFound)
	}
	g := w.Geometry
	g.Width, g.Height = width, height
	if err := e.Place(id, g); err != nil {
		return w.Geometry, err
	}
	return g, nil
}

// Place sets the widget's geometry after checking it against every other
// widget on the canvas.
func (e *Engine) Place(id string, g model.Geometry) error {
	if _, ok := e.reg.Get(id); !ok {
		return fmt.Errorf("place %s: %w", id, model.ErrNotFound)
	}
	if !grid.InBounds(g, e.reg.Columns()) {
		return fmt.Errorf("place %s: %w: %+v is outside a %d-column grid", id, model.ErrGeometryConflict, g, e.reg.Columns())
	}
	if hits := grid.ConflictsWith(id, g, e.reg.Placements()); len(hits) > 0 {
		return fmt.Errorf("place %s: %w: overlaps %s", id, model.ErrGeometryConflict, hits[0])
	}
	return e.reg.Update(id, model.WidgetPatch{Geometry: &g})
}

// ApplyBatch applies every change speculatively and validates the resulting
// layout once. Either all changes are committed or none are.
func (e *Engine) ApplyBatch(changes []Change) error {
	seen := make(map[string]bool, len(changes))
	for _, c := range changes {
		if seen[c.ID] {
			return fmt.Errorf("layout batch: widget %s listed twice: %w", c.ID, model.ErrDuplicateID)
		}
		seen[c.ID] = true
	}
	err := e.reg.Tx(func(tx *registry.Registry) error {
		for _, c := range changes {
			g := c.Geometry
			if err := tx.Update(c.ID, model.WidgetPatch{Geometry: &g}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("layout batch: %w", err)
	}
	return nil
}

// FindSlot returns the first free position for a width x height widget.
func (e *Engine) FindSlot(width, height int) (model.Geometry, bool) {
	return grid.FindSlot(e.reg.Placements(), e.reg.Columns(), width, height)
}

// GestureKind is the type of a pointer gesture.
type GestureKind string

const (
	GestureMove   GestureKind = "move"
	GestureResize GestureKind = "resize"
)

// Gesture is a completed drag or resize in screen pixels, relative to the
// widget's geometry when the gesture started.
type Gesture struct {
	WidgetID string      `json:"widget_id"`
	Kind     GestureKind `json:"kind"`
	DX       float64     `json:"dx_px"`
	DY       float64     `json:"dy_px"`
}

// Metrics is the pixel size of one grid cell as rendered.
type Metrics struct {
	CellWidth float64 `json:"cell_width"`
	RowHeight float64 `json:"row_height"`
}

// ApplyGesture snaps a pixel gesture to whole grid units and applies it as a
// move or resize. Positions are clamped to the grid edges and sizes to at
// least one cell; overlaps are still rejected.
func (e *Engine) ApplyGesture(gs Gesture, m Metrics) (model.Geometry, error) {
	if m.CellWidth <= 0 || m.RowHeight <= 0 {
		return model.Geometry{}, fmt.Errorf("gesture: %w", &model.ValidationError{Errors: []model.FieldError{
			{Field: "metrics", Message: "cell_width and row_height must be positive"},
		}})
	}
	w, ok := e.reg.Get(gs.WidgetID)
	if !ok {
		return model.Geometry{}, fmt.Errorf("gesture %s: %w", gs.WidgetID, model.ErrNotFound)
	}
	dx := int(math.Round(gs.DX / m.CellWidth))
	dy := int(math.Round(gs.DY / m.RowHeight))
	cols := e.reg.Columns()
	g := w.Geometry

	switch gs.Kind {
	case GestureMove:
		g.X = clamp(g.X+dx, 0, cols-g.Width)
		g.Y = max(g.Y+dy, 0)
		if g == w.Geometry {
			return g, nil
		}
		return e.Move(gs.WidgetID, g.X, g.Y)
	case GestureResize:
		g.Width = clamp(g.Width+dx, 1, cols-g.X)
		g.Height = max(g.Height+dy, 1)
		if g == w.Geometry {
			return g, nil
		}
		return e.Resize(gs.WidgetID, g.Width, g.Height)
	}
	return w.Geometry, fmt.Errorf("gesture: %w", &model.ValidationError{Errors: []model.FieldError{
		{Field: "kind", Message: fmt.Sprintf("invalid value %q", gs.Kind)},
	}})
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
