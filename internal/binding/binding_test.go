package binding

import (
	"errors"
	"testing"

	"github.com/alfredjeanlab/canvas/internal/catalog"
	"github.com/alfredjeanlab/canvas/internal/model"
	"github.com/alfredjeanlab/canvas/internal/registry"
)

func setup(t *testing.T) (*Model, *registry.Registry, string) {
	t.Helper()
	cat, err := catalog.New(
		&model.Dataset{ID: "sales-performance", Name: "Sales", Fields: []model.Field{
			{ID: "quarter", Name: "Quarter", Type: model.FieldString},
			{ID: "closed_on", Name: "Closed on", Type: model.FieldDate},
			{ID: "revenue", Name: "Revenue", Type: model.FieldNumber},
			{ID: "cost", Name: "Cost", Type: model.FieldNumber},
		}},
		&model.Dataset{ID: "web", Name: "Web", Fields: []model.Field{
			{ID: "page", Name: "Page", Type: model.FieldString},
			{ID: "views", Name: "Views", Type: model.FieldNumber},
		}},
	)
	if err != nil {
		t.Fatal(err)
	}
	reg := registry.New(12)
	id, err := reg.Add(&model.Widget{
		Kind:     model.KindBar,
		Geometry: model.Geometry{Width: 4, Height: 3},
		Binding:  &model.Binding{DatasetID: "sales-performance"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return New(reg, cat), reg, id
}

func stored(t *testing.T, reg *registry.Registry, id string) *model.Binding {
	t.Helper()
	w, ok := reg.Get(id)
	if !ok {
		t.Fatalf("widget %s missing", id)
	}
	return w.Binding
}

func TestBarChartBinding(t *testing.T) {
	m, reg, w1 := setup(t)
	if _, err := m.SetDimension(w1, "quarter"); err != nil {
		t.Fatalf("SetDimension: %v", err)
	}
	if _, err := m.AddMeasure(w1, "revenue"); err != nil {
		t.Fatalf("AddMeasure: %v", err)
	}
	b := stored(t, reg, w1)
	if b.Dimension != "quarter" {
		t.Errorf("Dimension = %q", b.Dimension)
	}
	if fields := b.MeasureFields(); len(fields) != 1 || fields[0] != "revenue" {
		t.Errorf("MeasureFields = %v", fields)
	}
	want := model.NewMeasure("revenue")
	if b.Measures[0] != want {
		t.Errorf("measure = %+v, want %+v", b.Measures[0], want)
	}
}

func TestAddMeasure_RejectsStringField(t *testing.T) {
	m, reg, w1 := setup(t)
	if _, err := m.AddMeasure(w1, "revenue"); err != nil {
		t.Fatal(err)
	}
	before := stored(t, reg, w1)

	_, err := m.AddMeasure(w1, "quarter")
	if !errors.Is(err, model.ErrInvalidFieldType) {
		t.Fatalf("AddMeasure(quarter) = %v, want ErrInvalidFieldType", err)
	}
	after := stored(t, reg, w1)
	if len(after.Measures) != len(before.Measures) || after.Measures[0] != before.Measures[0] {
		t.Errorf("binding changed: %+v -> %+v", before, after)
	}
}

func TestSetDimension_RejectsNumber(t *testing.T) {
	m, _, w1 := setup(t)
	if _, err := m.SetDimension(w1, "revenue"); !errors.Is(err, model.ErrInvalidFieldType) {
		t.Fatalf("SetDimension(revenue) = %v, want ErrInvalidFieldType", err)
	}
	if _, err := m.SetDimension(w1, "Closed on"); err != nil {
		t.Fatalf("SetDimension(date by name): %v", err)
	}
	if _, err := m.SetDimension(w1, "missing"); !errors.Is(err, model.ErrUnknownField) {
		t.Fatalf("SetDimension(missing) = %v, want ErrUnknownField", err)
	}
}

func TestAddMeasure_Idempotent(t *testing.T) {
	m, reg, w1 := setup(t)
	for i := 0; i < 3; i++ {
		if _, err := m.AddMeasure(w1, "revenue"); err != nil {
			t.Fatal(err)
		}
	}
	if n := len(stored(t, reg, w1).Measures); n != 1 {
		t.Errorf("measures = %d, want 1", n)
	}
}

func TestRemoveMeasure_DropsSettings(t *testing.T) {
	m, reg, w1 := setup(t)
	for _, f := range []string{"revenue", "cost"} {
		if _, err := m.AddMeasure(w1, f); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := m.SetAggregation(w1, "revenue", model.AggAvg); err != nil {
		t.Fatal(err)
	}
	b := stored(t, reg, w1)
	b.ConditionalRules = []model.ConditionalRule{{Field: "revenue", Operator: "gt", Value: 1, Color: "red"}}
	if _, err := m.Update(w1, b); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, err := m.RemoveMeasure(w1, "revenue"); err != nil {
		t.Fatalf("RemoveMeasure: %v", err)
	}
	b = stored(t, reg, w1)
	if len(b.Measures) != 1 || b.Measures[0].Field != "cost" || b.Measures[0].Aggregation != model.AggSum {
		t.Errorf("measures after remove = %+v", b.Measures)
	}
	if len(b.ConditionalRules) != 0 {
		t.Errorf("rule on removed measure survived: %+v", b.ConditionalRules)
	}

	// Re-adding starts from defaults.
	if _, err := m.AddMeasure(w1, "revenue"); err != nil {
		t.Fatal(err)
	}
	if got := stored(t, reg, w1).Measures[1].Aggregation; got != model.AggSum {
		t.Errorf("re-added aggregation = %q, want sum", got)
	}
}

func TestSetDatasetID_Resets(t *testing.T) {
	m, reg, w1 := setup(t)
	if _, err := m.SetDimension(w1, "quarter"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddMeasure(w1, "revenue"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SetDatasetID(w1, "web"); err != nil {
		t.Fatalf("SetDatasetID: %v", err)
	}
	b := stored(t, reg, w1)
	if b.DatasetID != "web" || b.Dimension != "" || len(b.Measures) != 0 {
		t.Errorf("binding after dataset change = %+v", b)
	}
	if _, err := m.SetDatasetID(w1, "nope"); !errors.Is(err, model.ErrUnknownDataset) {
		t.Fatalf("SetDatasetID(nope) = %v, want ErrUnknownDataset", err)
	}
}

func TestMeasureSetters(t *testing.T) {
	m, reg, w1 := setup(t)
	if _, err := m.AddMeasure(w1, "revenue"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SetTransform(w1, "revenue", model.TransformCumulative); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SetFormat(w1, "Revenue", model.Format{Kind: model.FormatCurrency, Decimals: 2, Prefix: "$"}); err != nil {
		t.Fatal(err)
	}
	ms := stored(t, reg, w1).Measures[0]
	if ms.Transform != model.TransformCumulative || ms.Format.Kind != model.FormatCurrency || ms.Format.Prefix != "$" {
		t.Errorf("measure = %+v", ms)
	}

	if _, err := m.SetAggregation(w1, "cost", model.AggMax); !errors.Is(err, model.ErrUnknownMeasure) {
		t.Errorf("SetAggregation(cost) = %v, want ErrUnknownMeasure", err)
	}
	var ve *model.ValidationError
	if _, err := m.SetAggregation(w1, "revenue", "mode"); !errors.As(err, &ve) {
		t.Errorf("SetAggregation(mode) = %v, want validation error", err)
	}
}

func TestUpdate_ValidatesAgainstCatalog(t *testing.T) {
	m, reg, w1 := setup(t)
	_, err := m.Update(w1, &model.Binding{DatasetID: "sales-performance", Dimension: "revenue"})
	if !errors.Is(err, model.ErrInvalidFieldType) {
		t.Fatalf("Update(numeric dimension) = %v, want ErrInvalidFieldType", err)
	}
	b, err := m.Update(w1, &model.Binding{
		DatasetID: "sales-performance",
		Dimension: "Quarter",
		Measures:  []model.Measure{model.NewMeasure("Revenue")},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if b.Dimension != "quarter" || b.Measures[0].Field != "revenue" {
		t.Errorf("fields not canonicalized: %+v", b)
	}
	if got := stored(t, reg, w1); got.Dimension != "quarter" {
		t.Errorf("stored = %+v", got)
	}
}

func TestNotChart(t *testing.T) {
	m, reg, _ := setup(t)
	id, err := reg.Add(&model.Widget{
		Kind:     model.KindSwitch,
		Geometry: model.Geometry{X: 6, Width: 2, Height: 1},
		Control:  &model.ControlConfig{ValueSource: model.SourceManual},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddMeasure(id, "revenue"); !errors.Is(err, model.ErrNotChart) {
		t.Fatalf("AddMeasure on control = %v, want ErrNotChart", err)
	}
}
