package grid

import (
	"errors"
	"testing"

	"github.com/alfredjeanlab/canvas/internal/model"
)

func geom(x, y, w, h int) model.Geometry {
	return model.Geometry{X: x, Y: y, Width: w, Height: h}
}

func TestOverlaps(t *testing.T) {
	a := geom(0, 0, 4, 3)
	for _, tc := range []struct {
		name string
		b    model.Geometry
		want bool
	}{
		{"partial overlap", geom(2, 1, 4, 3), true},
		{"contained", geom(1, 1, 1, 1), true},
		{"identical", geom(0, 0, 4, 3), true},
		{"touching right edge", geom(4, 0, 4, 3), false},
		{"touching bottom edge", geom(0, 3, 4, 3), false},
		{"diagonal corner", geom(4, 3, 1, 1), false},
		{"same columns, disjoint rows", geom(0, 10, 4, 1), false},
		{"same rows, disjoint columns", geom(8, 0, 2, 3), false},
	} {
		if got := Overlaps(a, tc.b); got != tc.want {
			t.Errorf("%s: Overlaps(%+v, %+v) = %v, want %v", tc.name, a, tc.b, got, tc.want)
		}
		if got := Overlaps(tc.b, a); got != tc.want {
			t.Errorf("%s: Overlaps is not symmetric", tc.name)
		}
	}
}

func TestInBounds(t *testing.T) {
	for _, tc := range []struct {
		g    model.Geometry
		want bool
	}{
		{geom(0, 0, 12, 1), true},
		{geom(11, 500, 1, 1), true},
		{geom(11, 0, 2, 1), false},
		{geom(-1, 0, 1, 1), false},
		{geom(0, -1, 1, 1), false},
		{geom(0, 0, 0, 1), false},
		{geom(0, 0, 1, 0), false},
	} {
		if got := InBounds(tc.g, 12); got != tc.want {
			t.Errorf("InBounds(%+v) = %v, want %v", tc.g, got, tc.want)
		}
	}
}

func TestCheck(t *testing.T) {
	ok := []Placement{
		{ID: "a", Geometry: geom(0, 0, 4, 3)},
		{ID: "b", Geometry: geom(4, 0, 4, 3)},
		{ID: "c", Geometry: geom(0, 3, 12, 2)},
	}
	if err := Check(ok, 12); err != nil {
		t.Fatalf("Check(valid layout) = %v", err)
	}

	bad := append(ok, Placement{ID: "d", Geometry: geom(2, 1, 4, 3)})
	err := Check(bad, 12)
	if !errors.Is(err, model.ErrGeometryConflict) {
		t.Fatalf("Check(overlapping layout) = %v, want ErrGeometryConflict", err)
	}

	wide := []Placement{{ID: "a", Geometry: geom(10, 0, 4, 1)}}
	if err := Check(wide, 12); !errors.Is(err, model.ErrGeometryConflict) {
		t.Fatalf("Check(out of bounds) = %v, want ErrGeometryConflict", err)
	}
}

func TestConflicts_Ordered(t *testing.T) {
	layout := []Placement{
		{ID: "c", Geometry: geom(0, 0, 2, 2)},
		{ID: "a", Geometry: geom(1, 1, 2, 2)},
		{ID: "b", Geometry: geom(5, 5, 1, 1)},
	}
	got := Conflicts(layout)
	if len(got) != 1 || got[0] != (Conflict{A: "a", B: "c"}) {
		t.Errorf("Conflicts() = %+v", got)
	}
}

func TestConflictsWith_SkipsSelf(t *testing.T) {
	layout := []Placement{
		{ID: "a", Geometry: geom(0, 0, 4, 3)},
		{ID: "b", Geometry: geom(4, 0, 4, 3)},
	}
	if hits := ConflictsWith("a", geom(1, 0, 3, 3), layout); len(hits) != 0 {
		t.Errorf("moving a within its own footprint should not conflict, got %v", hits)
	}
	if hits := ConflictsWith("a", geom(2, 0, 4, 3), layout); len(hits) != 1 || hits[0] != "b" {
		t.Errorf("ConflictsWith = %v, want [b]", hits)
	}
}

func TestFindSlot(t *testing.T) {
	layout := []Placement{
		{ID: "a", Geometry: geom(0, 0, 4, 3)},
		{ID: "b", Geometry: geom(4, 0, 4, 3)},
	}
	g, ok := FindSlot(layout, 12, 4, 2)
	if !ok || g != geom(8, 0, 4, 2) {
		t.Errorf("FindSlot = %+v, %v; want (8,0)", g, ok)
	}

	g, ok = FindSlot(layout, 12, 6, 1)
	if !ok || g != geom(0, 3, 6, 1) {
		t.Errorf("FindSlot(6x1) = %+v, %v; want (0,3)", g, ok)
	}

	if _, ok := FindSlot(layout, 12, 13, 1); ok {
		t.Error("FindSlot wider than grid should fail")
	}

	g, ok = FindSlot(nil, 12, 3, 3)
	if !ok || g != geom(0, 0, 3, 3) {
		t.Errorf("FindSlot(empty) = %+v, %v", g, ok)
	}
}
