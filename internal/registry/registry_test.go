package registry

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alfredjeanlab/canvas/internal/model"
)

// newTestRegistry returns a 12-column registry with sequential IDs and a
// fixed clock.
func newTestRegistry() *Registry {
	n := 0
	return New(12,
		WithIDGenerator(func() (string, error) {
			n++
			return fmt.Sprintf("w-%d", n), nil
		}),
		WithClock(func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }),
	)
}

func chart(x, y, w, h int) *model.Widget {
	return &model.Widget{
		Kind:     model.KindBar,
		Geometry: model.Geometry{X: x, Y: y, Width: w, Height: h},
		Binding:  &model.Binding{DatasetID: "sales", Dimension: "region", Measures: []model.Measure{model.NewMeasure("revenue")}},
	}
}

func control(kind model.Kind, x, y int) *model.Widget {
	return &model.Widget{
		Kind:     kind,
		Geometry: model.Geometry{X: x, Y: y, Width: 2, Height: 1},
		Control:  &model.ControlConfig{ValueSource: model.SourceManual},
	}
}

func mustAdd(t *testing.T, r *Registry, w *model.Widget) string {
	t.Helper()
	id, err := r.Add(w)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	return id
}

func mustGet(t *testing.T, r *Registry, id string) *model.Widget {
	t.Helper()
	w, ok := r.Get(id)
	if !ok {
		t.Fatalf("Get(%s): not found", id)
	}
	return w
}

func TestAdd_AssignsIDAndTimestamps(t *testing.T) {
	r := newTestRegistry()
	id := mustAdd(t, r, chart(0, 0, 4, 3))
	if id != "w-1" {
		t.Errorf("id = %q, want w-1", id)
	}
	w := mustGet(t, r, id)
	if w.CreatedAt.IsZero() || !w.CreatedAt.Equal(w.UpdatedAt) {
		t.Errorf("timestamps = %v / %v", w.CreatedAt, w.UpdatedAt)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d", r.Len())
	}
}

func TestAdd_RejectsOverlap(t *testing.T) {
	r := newTestRegistry()
	mustAdd(t, r, chart(0, 0, 4, 3))
	_, err := r.Add(chart(2, 1, 4, 3))
	if !errors.Is(err, model.ErrGeometryConflict) {
		t.Fatalf("Add(overlapping) = %v, want ErrGeometryConflict", err)
	}
	if r.Len() != 1 {
		t.Errorf("registry changed after rejected add: Len() = %d", r.Len())
	}
}

func TestAdd_RejectsDuplicateID(t *testing.T) {
	r := newTestRegistry()
	w := chart(0, 0, 2, 2)
	w.ID = "w-fixed"
	mustAdd(t, r, w)
	w2 := chart(4, 0, 2, 2)
	w2.ID = "w-fixed"
	if _, err := r.Add(w2); !errors.Is(err, model.ErrDuplicateID) {
		t.Fatalf("Add(duplicate) = %v, want ErrDuplicateID", err)
	}
}

func TestAdd_RejectsUnknownTarget(t *testing.T) {
	r := newTestRegistry()
	c := control(model.KindListValues, 0, 0)
	c.Control.Targets = []model.Target{{ElementID: "w-missing"}}
	if _, err := r.Add(c); !errors.Is(err, model.ErrUnknownTarget) {
		t.Fatalf("Add = %v, want ErrUnknownTarget", err)
	}
	if r.Len() != 0 {
		t.Error("rejected add left a widget behind")
	}
}

func TestAdd_TargetShapeCompatibility(t *testing.T) {
	r := newTestRegistry()
	sw := mustAdd(t, r, control(model.KindSwitch, 0, 0))
	txt := mustAdd(t, r, control(model.KindTextInput, 2, 0))
	ch := mustAdd(t, r, chart(0, 1, 4, 3))

	c := control(model.KindListValues, 6, 0)
	c.Control.Targets = []model.Target{{ElementID: sw}}
	if _, err := r.Add(c); !errors.Is(err, model.ErrIncompatibleTarget) {
		t.Fatalf("list-values -> switch = %v, want ErrIncompatibleTarget", err)
	}

	c.Control.Targets = []model.Target{{ElementID: txt}, {ElementID: ch}}
	id, err := r.Add(c)
	if err != nil {
		t.Fatalf("list-values -> text-input, chart: %v", err)
	}
	got := mustGet(t, r, id)
	if got.Control.Targets[0].ElementType != model.KindTextInput || got.Control.Targets[1].ElementType != model.KindBar {
		t.Errorf("element types not recorded: %+v", got.Control.Targets)
	}
}

func TestAdd_MirrorsSyncedPeers(t *testing.T) {
	r := newTestRegistry()
	a := mustAdd(t, r, control(model.KindListValues, 0, 0))
	b := control(model.KindTextInput, 2, 0)
	b.Control.SyncedControlIDs = []string{a}
	bid := mustAdd(t, r, b)

	if aw := mustGet(t, r, a); !aw.Control.IsSyncedWith(bid) {
		t.Errorf("peer %s not updated: %v", a, aw.Control.SyncedControlIDs)
	}
}

func TestAdd_RejectsSyncAcrossShapes(t *testing.T) {
	r := newTestRegistry()
	a := mustAdd(t, r, control(model.KindSlider, 0, 0))
	b := control(model.KindTextInput, 2, 0)
	b.Control.SyncedControlIDs = []string{a}
	if _, err := r.Add(b); !errors.Is(err, model.ErrIncompatibleTarget) {
		t.Fatalf("Add = %v, want ErrIncompatibleTarget", err)
	}
	if aw := mustGet(t, r, a); len(aw.Control.SyncedControlIDs) != 0 {
		t.Errorf("rejected add leaked into peer: %v", aw.Control.SyncedControlIDs)
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	r := newTestRegistry()
	id := mustAdd(t, r, chart(0, 0, 4, 3))
	w := mustGet(t, r, id)
	w.Geometry.X = 8
	w.Binding.Dimension = "mutated"
	if again := mustGet(t, r, id); again.Geometry.X != 0 || again.Binding.Dimension != "region" {
		t.Errorf("caller mutation reached the registry: %+v", again)
	}
}

func TestUpdate_ShallowMerge(t *testing.T) {
	r := newTestRegistry()
	id := mustAdd(t, r, chart(0, 0, 4, 3))
	title := "Revenue"
	if err := r.Update(id, model.WidgetPatch{Title: &title}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	w := mustGet(t, r, id)
	if w.Title != "Revenue" || w.Binding == nil || w.Binding.Dimension != "region" {
		t.Errorf("after title patch: %+v", w)
	}

	// A nested object replaces the existing one wholesale.
	if err := r.Update(id, model.WidgetPatch{Binding: &model.Binding{DatasetID: "sales"}}); err != nil {
		t.Fatalf("Update binding: %v", err)
	}
	w = mustGet(t, r, id)
	if w.Binding.Dimension != "" || len(w.Binding.Measures) != 0 {
		t.Errorf("binding not replaced: %+v", w.Binding)
	}
}

func TestUpdate_KindImmutable(t *testing.T) {
	r := newTestRegistry()
	id := mustAdd(t, r, chart(0, 0, 4, 3))
	k := model.KindLine
	if err := r.Update(id, model.WidgetPatch{Kind: &k}); !errors.Is(err, model.ErrKindImmutable) {
		t.Fatalf("Update(kind) = %v, want ErrKindImmutable", err)
	}
	same := model.KindBar
	if err := r.Update(id, model.WidgetPatch{Kind: &same}); err != nil {
		t.Fatalf("Update(same kind) = %v", err)
	}
}

func TestUpdate_GeometryConflictLeavesStateUnchanged(t *testing.T) {
	r := newTestRegistry()
	a := mustAdd(t, r, chart(0, 0, 4, 3))
	mustAdd(t, r, chart(4, 0, 4, 3))
	title := "moved"
	g := model.Geometry{X: 2, Y: 0, Width: 4, Height: 3}
	err := r.Update(a, model.WidgetPatch{Title: &title, Geometry: &g})
	if !errors.Is(err, model.ErrGeometryConflict) {
		t.Fatalf("Update = %v, want ErrGeometryConflict", err)
	}
	w := mustGet(t, r, a)
	if w.Title != "" || w.Geometry.X != 0 {
		t.Errorf("rejected update partially applied: %+v", w)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	r := newTestRegistry()
	title := "x"
	if err := r.Update("w-nope", model.WidgetPatch{Title: &title}); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Update = %v, want ErrNotFound", err)
	}
}

func TestUpdate_SyncChangesArePaired(t *testing.T) {
	r := newTestRegistry()
	a := mustAdd(t, r, control(model.KindListValues, 0, 0))
	b := mustAdd(t, r, control(model.KindListValues, 2, 0))

	cfg := mustGet(t, r, a).Control
	cfg.SyncedControlIDs = []string{b}
	if err := r.Update(a, model.WidgetPatch{Control: cfg}); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !mustGet(t, r, b).Control.IsSyncedWith(a) {
		t.Fatal("sync not mirrored onto peer")
	}

	cfg = mustGet(t, r, b).Control
	cfg.SyncedControlIDs = nil
	if err := r.Update(b, model.WidgetPatch{Control: cfg}); err != nil {
		t.Fatalf("unsync: %v", err)
	}
	if mustGet(t, r, a).Control.IsSyncedWith(b) {
		t.Fatal("unsync not mirrored onto peer")
	}
}

func TestUpdate_DroppedTargetLosesFilter(t *testing.T) {
	r := newTestRegistry()
	ch := mustAdd(t, r, chart(0, 0, 4, 3))
	a := control(model.KindListValues, 4, 0)
	a.Control.Targets = []model.Target{{ElementID: ch}}
	aid := mustAdd(t, r, a)
	b := control(model.KindListValues, 6, 0)
	b.Control.Targets = []model.Target{{ElementID: ch}}
	bid := mustAdd(t, r, b)

	filters := map[string]*model.FilterPredicate{
		aid: {ControlID: aid, Column: "region", Op: model.OpEq, Value: "EU"},
		bid: {ControlID: bid, Column: "region", Op: model.OpEq, Value: "US"},
	}
	if err := r.Update(ch, model.WidgetPatch{Filters: filters}); err != nil {
		t.Fatalf("set filters: %v", err)
	}

	cfg := mustGet(t, r, aid).Control
	cfg.Targets = nil
	if err := r.Update(aid, model.WidgetPatch{Control: cfg}); err != nil {
		t.Fatalf("untarget: %v", err)
	}
	fs := mustGet(t, r, ch).Filters
	if _, ok := fs[aid]; ok {
		t.Errorf("filter from %s survived dropping the target: %+v", aid, fs)
	}
	if fs[bid] == nil {
		t.Errorf("filter from %s was removed: %+v", bid, fs)
	}
}

func TestRemove_CascadesReferences(t *testing.T) {
	r := newTestRegistry()
	ch := mustAdd(t, r, chart(0, 0, 4, 3))
	a := control(model.KindListValues, 4, 0)
	a.Control.Targets = []model.Target{{ElementID: ch}}
	aid := mustAdd(t, r, a)
	b := control(model.KindListValues, 6, 0)
	b.Control.SyncedControlIDs = []string{aid}
	b.Control.Targets = []model.Target{{ElementID: ch}}
	bid := mustAdd(t, r, b)

	f := map[string]*model.FilterPredicate{
		aid: {ControlID: aid, Column: "region", Op: model.OpEq, Value: "EU"},
		bid: {ControlID: bid, Column: "region", Op: model.OpEq, Value: "US"},
	}
	if err := r.Update(ch, model.WidgetPatch{Filters: f}); err != nil {
		t.Fatalf("set filters: %v", err)
	}

	if err := r.Remove(aid); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := r.Get(aid); ok {
		t.Fatal("widget still present")
	}
	if bw := mustGet(t, r, bid); bw.Control.IsSyncedWith(aid) {
		t.Error("synced reference to removed control survived")
	}
	cw := mustGet(t, r, ch)
	if _, ok := cw.Filters[aid]; ok {
		t.Error("filter from removed control survived")
	}
	if _, ok := cw.Filters[bid]; !ok {
		t.Error("filter from surviving control was dropped")
	}

	if err := r.Remove(ch); err != nil {
		t.Fatalf("Remove chart: %v", err)
	}
	if bw := mustGet(t, r, bid); len(bw.Control.Targets) != 0 {
		t.Errorf("target to removed chart survived: %+v", bw.Control.Targets)
	}
}

func TestRemove_NotFound(t *testing.T) {
	r := newTestRegistry()
	if err := r.Remove("w-nope"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Remove = %v, want ErrNotFound", err)
	}
}

func TestTx_DefersOverlapUntilCommit(t *testing.T) {
	r := newTestRegistry()
	a := mustAdd(t, r, chart(0, 0, 4, 3))
	b := mustAdd(t, r, chart(4, 0, 4, 3))

	// Swap a and b: each intermediate step overlaps, the final layout does not.
	err := r.Tx(func(tx *Registry) error {
		ga := model.Geometry{X: 4, Y: 0, Width: 4, Height: 3}
		gb := model.Geometry{X: 0, Y: 0, Width: 4, Height: 3}
		if err := tx.Update(a, model.WidgetPatch{Geometry: &ga}); err != nil {
			return err
		}
		return tx.Update(b, model.WidgetPatch{Geometry: &gb})
	})
	if err != nil {
		t.Fatalf("Tx swap: %v", err)
	}
	if mustGet(t, r, a).Geometry.X != 4 || mustGet(t, r, b).Geometry.X != 0 {
		t.Error("swap not committed")
	}
}

func TestTx_RollsBackOnFailure(t *testing.T) {
	r := newTestRegistry()
	a := mustAdd(t, r, chart(0, 0, 4, 3))
	mustAdd(t, r, chart(4, 0, 4, 3))

	err := r.Tx(func(tx *Registry) error {
		g := model.Geometry{X: 2, Y: 0, Width: 4, Height: 3}
		return tx.Update(a, model.WidgetPatch{Geometry: &g})
	})
	if !errors.Is(err, model.ErrGeometryConflict) {
		t.Fatalf("Tx = %v, want ErrGeometryConflict", err)
	}
	if mustGet(t, r, a).Geometry.X != 0 {
		t.Error("failed transaction was committed")
	}

	boom := errors.New("boom")
	err = r.Tx(func(tx *Registry) error {
		title := "x"
		if err := tx.Update(a, model.WidgetPatch{Title: &title}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Tx = %v, want boom", err)
	}
	if mustGet(t, r, a).Title != "" {
		t.Error("aborted transaction was committed")
	}
}

func TestLoad_RejectsInconsistentRecords(t *testing.T) {
	a := control(model.KindListValues, 0, 0)
	a.ID = "w-a"
	b := control(model.KindListValues, 2, 0)
	b.ID = "w-b"
	a.Control.SyncedControlIDs = []string{"w-b"}

	if _, err := Load(12, []*model.Widget{a, b}); !errors.Is(err, model.ErrIncompatibleTarget) {
		t.Fatalf("Load(one-sided sync) = %v, want ErrIncompatibleTarget", err)
	}

	b.Control.SyncedControlIDs = []string{"w-a"}
	r, err := Load(12, []*model.Widget{a, b})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	all := r.All()
	if len(all) != 2 || all[0].ID != "w-a" || all[1].ID != "w-b" {
		t.Errorf("All() order = %v", all)
	}
}
