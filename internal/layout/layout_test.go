package layout

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/alfredjeanlab/canvas/internal/grid"
	"github.com/alfredjeanlab/canvas/internal/model"
	"github.com/alfredjeanlab/canvas/internal/registry"
)

func geom(x, y, w, h int) model.Geometry {
	return model.Geometry{X: x, Y: y, Width: w, Height: h}
}

func addChart(t *testing.T, reg *registry.Registry, g model.Geometry) string {
	t.Helper()
	id, err := reg.Add(&model.Widget{Kind: model.KindKPI, Geometry: g, Binding: &model.Binding{}})
	if err != nil {
		t.Fatalf("Add %+v: %v", g, err)
	}
	return id
}

func geometryOf(t *testing.T, reg *registry.Registry, id string) model.Geometry {
	t.Helper()
	w, ok := reg.Get(id)
	if !ok {
		t.Fatalf("widget %s missing", id)
	}
	return w.Geometry
}

func TestOverlapRejection(t *testing.T) {
	reg := registry.New(12)
	addChart(t, reg, geom(0, 0, 4, 3))

	_, err := reg.Add(&model.Widget{Kind: model.KindBar, Geometry: geom(2, 1, 4, 3), Binding: &model.Binding{}})
	if !errors.Is(err, model.ErrGeometryConflict) {
		t.Fatalf("Add overlapping = %v, want ErrGeometryConflict", err)
	}
	if reg.Len() != 1 {
		t.Errorf("B was added: Len() = %d", reg.Len())
	}
}

func TestMove(t *testing.T) {
	reg := registry.New(12)
	a := addChart(t, reg, geom(0, 0, 4, 3))
	addChart(t, reg, geom(4, 0, 4, 3))
	e := New(reg)

	g, err := e.Move(a, 0, 3)
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if g != geom(0, 3, 4, 3) {
		t.Errorf("Move returned %+v", g)
	}

	g, err = e.Move(a, 2, 0)
	if !errors.Is(err, model.ErrGeometryConflict) {
		t.Fatalf("Move onto b = %v, want ErrGeometryConflict", err)
	}
	if g != geom(0, 3, 4, 3) || geometryOf(t, reg, a) != geom(0, 3, 4, 3) {
		t.Errorf("rejected move changed geometry: returned %+v, stored %+v", g, geometryOf(t, reg, a))
	}

	if _, err := e.Move(a, 10, 0); !errors.Is(err, model.ErrGeometryConflict) {
		t.Fatalf("Move past last column = %v, want ErrGeometryConflict", err)
	}
	if _, err := e.Move("w-missing", 0, 0); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Move missing = %v, want ErrNotFound", err)
	}
}

func TestResize(t *testing.T) {
	reg := registry.New(12)
	a := addChart(t, reg, geom(0, 0, 4, 3))
	addChart(t, reg, geom(6, 0, 2, 2))
	e := New(reg)

	if _, err := e.Resize(a, 6, 3); err != nil {
		t.Fatalf("Resize into free space: %v", err)
	}
	if _, err := e.Resize(a, 7, 3); !errors.Is(err, model.ErrGeometryConflict) {
		t.Fatalf("Resize into neighbour = %v, want ErrGeometryConflict", err)
	}
	if _, err := e.Resize(a, 0, 3); !errors.Is(err, model.ErrGeometryConflict) {
		t.Fatalf("Resize to zero width = %v, want ErrGeometryConflict", err)
	}
	if got := geometryOf(t, reg, a); got != geom(0, 0, 6, 3) {
		t.Errorf("geometry = %+v", got)
	}
}

func TestApplyBatch_Swap(t *testing.T) {
	reg := registry.New(12)
	a := addChart(t, reg, geom(0, 0, 4, 3))
	b := addChart(t, reg, geom(4, 0, 4, 3))
	e := New(reg)

	err := e.ApplyBatch([]Change{
		{ID: a, Geometry: geom(4, 0, 4, 3)},
		{ID: b, Geometry: geom(0, 0, 4, 3)},
	})
	if err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	if geometryOf(t, reg, a).X != 4 || geometryOf(t, reg, b).X != 0 {
		t.Error("swap not applied")
	}
}

func TestApplyBatch_AllOrNothing(t *testing.T) {
	reg := registry.New(12)
	a := addChart(t, reg, geom(0, 0, 4, 3))
	b := addChart(t, reg, geom(4, 0, 4, 3))
	addChart(t, reg, geom(8, 0, 4, 3))
	e := New(reg)

	err := e.ApplyBatch([]Change{
		{ID: a, Geometry: geom(0, 5, 4, 3)},
		{ID: b, Geometry: geom(6, 0, 4, 3)}, // overlaps the chart at x=8
	})
	if !errors.Is(err, model.ErrGeometryConflict) {
		t.Fatalf("ApplyBatch = %v, want ErrGeometryConflict", err)
	}
	if geometryOf(t, reg, a) != geom(0, 0, 4, 3) {
		t.Error("first change of a rejected batch was committed")
	}

	if err := e.ApplyBatch([]Change{{ID: a, Geometry: geom(0, 5, 4, 3)}, {ID: a, Geometry: geom(0, 9, 4, 3)}}); !errors.Is(err, model.ErrDuplicateID) {
		t.Fatalf("ApplyBatch duplicate = %v, want ErrDuplicateID", err)
	}
}

func TestApplyGesture(t *testing.T) {
	reg := registry.New(12)
	a := addChart(t, reg, geom(0, 0, 4, 3))
	addChart(t, reg, geom(8, 0, 4, 3))
	e := New(reg)
	m := Metrics{CellWidth: 100, RowHeight: 40}

	// 190px right, 30px down snaps to +2 columns, +1 row.
	g, err := e.ApplyGesture(Gesture{WidgetID: a, Kind: GestureMove, DX: 190, DY: 30}, m)
	if err != nil {
		t.Fatalf("move gesture: %v", err)
	}
	if g != geom(2, 1, 4, 3) {
		t.Errorf("move gesture = %+v", g)
	}

	// Dragging far left clamps to column 0.
	g, err = e.ApplyGesture(Gesture{WidgetID: a, Kind: GestureMove, DX: -5000}, m)
	if err != nil {
		t.Fatalf("clamped move: %v", err)
	}
	if g.X != 0 {
		t.Errorf("clamped move x = %d", g.X)
	}

	// Widening into the neighbour is rejected.
	if _, err := e.ApplyGesture(Gesture{WidgetID: a, Kind: GestureResize, DX: 500}, m); !errors.Is(err, model.ErrGeometryConflict) {
		t.Fatalf("resize gesture = %v, want ErrGeometryConflict", err)
	}

	if _, err := e.ApplyGesture(Gesture{WidgetID: a, Kind: GestureMove}, Metrics{}); err == nil {
		t.Fatal("zero metrics accepted")
	}
	if _, err := e.ApplyGesture(Gesture{WidgetID: a, Kind: "spin"}, m); err == nil {
		t.Fatal("unknown gesture kind accepted")
	}
}

func TestFindSlot(t *testing.T) {
	reg := registry.New(12)
	addChart(t, reg, geom(0, 0, 12, 2))
	e := New(reg)
	g, ok := e.FindSlot(3, 3)
	if !ok || g != geom(0, 2, 3, 3) {
		t.Errorf("FindSlot = %+v, %v", g, ok)
	}
}

// TestNoOverlapUnderRandomOperations drives random add, move and resize
// requests and checks the layout after every accepted one.
func TestNoOverlapUnderRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	reg := registry.New(12)
	e := New(reg)
	var ids []string

	for i := 0; i < 500; i++ {
		w, h := 1+rng.IntN(5), 1+rng.IntN(4)
		x, y := rng.IntN(12), rng.IntN(12)
		switch op := rng.IntN(3); {
		case op == 0 || len(ids) == 0:
			id, err := reg.Add(&model.Widget{Kind: model.KindTable, Geometry: geom(x, y, w, h), Binding: &model.Binding{}})
			if err == nil {
				ids = append(ids, id)
			}
		case op == 1:
			_, _ = e.Move(ids[rng.IntN(len(ids))], x, y)
		default:
			_, _ = e.Resize(ids[rng.IntN(len(ids))], w, h)
		}
		if err := grid.Check(reg.Placements(), reg.Columns()); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if len(ids) == 0 {
		t.Fatal("no widget was ever accepted")
	}
}
