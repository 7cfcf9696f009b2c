// Package grid implements placement checks on a fixed-column, unbounded-row
// grid. Rectangles are half-open: a widget at x with width w covers columns
// x through x+w-1.
package grid

import (
	"fmt"
	"sort"

	"github.com/alfredjeanlab/canvas/internal/model"
)

// Placement is a widget ID together with its geometry.
type Placement struct {
	ID       string
	Geometry model.Geometry
}

// Overlaps reports whether two rectangles overlap on both axes.
func Overlaps(a, b model.Geometry) bool {
	return a.X < b.Right() && b.X < a.Right() &&
		a.Y < b.Bottom() && b.Y < a.Bottom()
}

// InBounds reports whether g is a legal rectangle on a grid with the given
// column count.
func InBounds(g model.Geometry, columns int) bool {
	return g.X >= 0 && g.Y >= 0 && g.Width >= 1 && g.Height >= 1 && g.Right() <= columns
}

// Conflict describes two placements that overlap.
type Conflict struct {
	A, B string
}

// ConflictsWith returns the IDs of placements in others that overlap g,
// skipping the entry whose ID is id.
func ConflictsWith(id string, g model.Geometry, others []Placement) []string {
	var hits []string
	for _, o := range others {
		if o.ID == id {
			continue
		}
		if Overlaps(g, o.Geometry) {
			hits = append(hits, o.ID)
		}
	}
	return hits
}

// Conflicts returns every overlapping pair in the layout, ordered by the
// IDs of the first and then second member.
func Conflicts(layout []Placement) []Conflict {
	ps := append([]Placement(nil), layout...)
	sort.Slice(ps, func(i, j int) bool { return ps[i].ID < ps[j].ID })

	var out []Conflict
	for i := range ps {
		for j := i + 1; j < len(ps); j++ {
			if Overlaps(ps[i].Geometry, ps[j].Geometry) {
				out = append(out, Conflict{A: ps[i].ID, B: ps[j].ID})
			}
		}
	}
	return out
}

// Check validates a whole layout: every rectangle in bounds and no two
// overlapping. The returned error wraps model.ErrGeometryConflict.
func Check(layout []Placement, columns int) error {
	for _, p := range layout {
		if !InBounds(p.Geometry, columns) {
			return fmt.Errorf("%w: widget %s at %+v is outside a %d-column grid", model.ErrGeometryConflict, p.ID, p.Geometry, columns)
		}
	}
	if cs := Conflicts(layout); len(cs) > 0 {
		return fmt.Errorf("%w: widget %s overlaps %s", model.ErrGeometryConflict, cs[0].A, cs[0].B)
	}
	return nil
}

// FindSlot returns the first top-left position, scanning rows top to bottom
// and columns left to right, where a width x height rectangle fits without
// overlapping any placement. It returns false if width exceeds the column
// count.
func FindSlot(layout []Placement, columns, width, height int) (model.Geometry, bool) {
	if width < 1 || height < 1 || width > columns {
		return model.Geometry{}, false
	}
	bottom := 0
	for _, p := range layout {
		if b := p.Geometry.Bottom(); b > bottom {
			bottom = b
		}
	}
	for y := 0; y <= bottom; y++ {
		for x := 0; x+width <= columns; x++ {
			g := model.Geometry{X: x, Y: y, Width: width, Height: height}
			if len(ConflictsWith("", g, layout)) == 0 {
				return g, true
			}
		}
	}
	// Unreachable: row `bottom` is always free.
	return model.Geometry{X: 0, Y: bottom, Width: width, Height: height}, true
}
