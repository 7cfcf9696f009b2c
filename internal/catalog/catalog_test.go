package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alfredjeanlab/canvas/internal/model"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestBuiltin(t *testing.T) {
	c, err := Builtin()
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	ds, ok := c.GetDataset("sales-performance")
	if !ok {
		t.Fatal("sales-performance missing from builtin catalog")
	}
	if f, ok := ds.Field("revenue"); !ok || f.Type != model.FieldNumber {
		t.Errorf("revenue field = %+v, %v", f, ok)
	}
	if len(ds.Rows) == 0 {
		t.Fatal("no rows")
	}
	if _, ok := ds.Rows[0]["revenue"].(float64); !ok {
		t.Errorf("revenue cell is %T, want float64", ds.Rows[0]["revenue"])
	}
	if _, ok := ds.Rows[0]["renewal"].(bool); !ok {
		t.Errorf("renewal cell is %T, want bool", ds.Rows[0]["renewal"])
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "orders.yaml", `
id: orders
name: Orders
fields:
  - {id: status, name: Status, type: string}
  - {id: amount, name: Amount, type: number}
rows:
  - {status: open, amount: 3}
  - {status: closed, amount: "4.5"}
`)
	writeFile(t, dir, "users.json", `{"id":"users","name":"Users","fields":[{"id":"email","name":"Email","type":"string"}],"rows":[{"email":"a@example.com"}]}`)
	writeFile(t, dir, "README.md", "not a dataset")

	c, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	list := c.ListDatasets()
	if len(list) != 2 || list[0].ID != "orders" || list[1].ID != "users" {
		t.Fatalf("ListDatasets = %v", list)
	}
	orders, _ := c.GetDataset("orders")
	if got := orders.Rows[1]["amount"]; got != 4.5 {
		t.Errorf("amount = %v (%T), want 4.5", got, got)
	}
}

func TestLoadDir_RejectsBadFiles(t *testing.T) {
	for _, tc := range []struct {
		name, file, body string
	}{
		{"unknown key", "a.yaml", "id: a\ncolour: red\nfields: []\n"},
		{"bad field type", "b.yaml", "id: b\nfields:\n  - {id: x, name: X, type: float}\n"},
		{"missing id", "c.json", `{"name":"no id","fields":[]}`},
		{"uncoercible cell", "d.yaml", "id: d\nfields:\n  - {id: n, name: N, type: number}\nrows:\n  - {n: lots}\n"},
	} {
		dir := t.TempDir()
		writeFile(t, dir, tc.file, tc.body)
		if _, err := LoadDir(dir); err == nil {
			t.Errorf("%s: LoadDir succeeded", tc.name)
		}
	}
}

func TestLoadDir_DuplicateID(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "id: same\nfields: []\n")
	writeFile(t, dir, "b.yaml", "id: same\nfields: []\n")
	if _, err := LoadDir(dir); !errors.Is(err, model.ErrDuplicateID) {
		t.Fatalf("LoadDir = %v, want ErrDuplicateID", err)
	}
}

func TestField(t *testing.T) {
	c, err := New(&model.Dataset{ID: "d", Fields: []model.Field{{ID: "q", Name: "Quarter", Type: model.FieldString}}})
	if err != nil {
		t.Fatal(err)
	}
	if f, err := Field(c, "d", "Quarter"); err != nil || f.ID != "q" {
		t.Errorf("Field by name = %+v, %v", f, err)
	}
	if _, err := Field(c, "nope", "q"); !errors.Is(err, model.ErrUnknownDataset) {
		t.Errorf("unknown dataset = %v", err)
	}
	if _, err := Field(c, "d", "nope"); !errors.Is(err, model.ErrUnknownField) {
		t.Errorf("unknown field = %v", err)
	}
}

func TestMerge(t *testing.T) {
	b, err := Builtin()
	if err != nil {
		t.Fatal(err)
	}
	extra, err := New(&model.Dataset{ID: "ops", Fields: []model.Field{{ID: "host", Type: model.FieldString}}})
	if err != nil {
		t.Fatal(err)
	}
	m, err := Merge(b, extra)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if _, ok := m.GetDataset("ops"); !ok {
		t.Error("merged catalog lacks ops")
	}
	if _, ok := m.GetDataset("sales-performance"); !ok {
		t.Error("merged catalog lacks builtin dataset")
	}
	if _, err := Merge(b, b); !errors.Is(err, model.ErrDuplicateID) {
		t.Errorf("Merge(dup) = %v, want ErrDuplicateID", err)
	}
}
