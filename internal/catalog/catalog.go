// Package catalog provides the read-only field catalog: datasets with typed
// columns that chart bindings and control value sources refer to by ID.
package catalog

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alfredjeanlab/canvas/internal/model"
)

// Provider is the inbound catalog contract. Datasets returned by a Provider
// are shared snapshots and must not be modified.
type Provider interface {
	ListDatasets() []*model.Dataset
	GetDataset(id string) (*model.Dataset, bool)
}

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Catalog is an in-memory Provider. It is safe for concurrent reads once
// construction has finished.
type Catalog struct {
	datasets map[string]*model.Dataset
}

// New returns a catalog holding the given datasets.
func New(datasets ...*model.Dataset) (*Catalog, error) {
	c := &Catalog{datasets: make(map[string]*model.Dataset, len(datasets))}
	for _, ds := range datasets {
		if err := c.add(ds, ""); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Builtin returns a catalog of the sample datasets compiled into the binary.
func Builtin() (*Catalog, error) {
	return loadFS(builtinFS, "builtin")
}

// LoadDir reads every .yaml, .yml and .json file in dir as one dataset.
func LoadDir(dir string) (*Catalog, error) {
	return loadFS(os.DirFS(dir), ".")
}

// Merge combines catalogs into one. A dataset ID present in more than one
// of them is an error.
func Merge(cats ...*Catalog) (*Catalog, error) {
	out := &Catalog{datasets: make(map[string]*model.Dataset)}
	for _, c := range cats {
		for _, ds := range c.ListDatasets() {
			if err := out.add(ds, ""); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func loadFS(fsys fs.FS, root string) (*Catalog, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("read catalog dir: %w", err)
	}
	c := &Catalog{datasets: make(map[string]*model.Dataset)}
	for _, e := range entries {
		if e.IsDir() || !isDatasetFile(e.Name()) {
			continue
		}
		name := filepath.ToSlash(filepath.Join(root, e.Name()))
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read dataset %s: %w", e.Name(), err)
		}
		ds, err := Parse(e.Name(), data)
		if err != nil {
			return nil, err
		}
		if err := c.add(ds, e.Name()); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func isDatasetFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// Parse decodes one dataset file. The format is chosen by the file
// extension; unknown keys are rejected.
func Parse(name string, data []byte) (*model.Dataset, error) {
	var ds model.Dataset
	if strings.EqualFold(filepath.Ext(name), ".json") {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&ds); err != nil {
			return nil, fmt.Errorf("parse dataset %s: %w", name, err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&ds); err != nil {
			return nil, fmt.Errorf("parse dataset %s: %w", name, err)
		}
	}
	if err := normalizeRows(&ds); err != nil {
		return nil, fmt.Errorf("parse dataset %s: %w", name, err)
	}
	return &ds, nil
}

// Validate checks a dataset's header: ID present, field IDs unique and
// field types known.
func Validate(ds *model.Dataset) error {
	var errs []model.FieldError
	if strings.TrimSpace(ds.ID) == "" {
		errs = append(errs, model.FieldError{Field: "id", Message: "is required"})
	}
	seen := make(map[string]bool, len(ds.Fields))
	for i, f := range ds.Fields {
		name := fmt.Sprintf("fields[%d]", i)
		if f.ID == "" {
			errs = append(errs, model.FieldError{Field: name + ".id", Message: "is required"})
		}
		if seen[f.ID] {
			errs = append(errs, model.FieldError{Field: name + ".id", Message: fmt.Sprintf("duplicate field %q", f.ID)})
		}
		seen[f.ID] = true
		if !f.Type.IsValid() {
			errs = append(errs, model.FieldError{Field: name + ".type", Message: fmt.Sprintf("invalid value %q", f.Type)})
		}
	}
	if len(errs) > 0 {
		return &model.ValidationError{Errors: errs}
	}
	return nil
}

// normalizeRows converts every cell to the Go type of its column, so that
// consumers see float64 numbers regardless of the source encoding. Cells for
// undeclared columns are dropped.
func normalizeRows(ds *model.Dataset) error {
	if err := Validate(ds); err != nil {
		return err
	}
	for i, row := range ds.Rows {
		out := make(map[string]any, len(ds.Fields))
		for _, f := range ds.Fields {
			v, ok := row[f.ID]
			if !ok || v == nil {
				continue
			}
			c, ok := model.Coerce(v, f.Type)
			if !ok {
				return fmt.Errorf("row %d column %s: %w: %v is not a %s", i, f.ID, model.ErrInvalidFieldType, v, f.Type)
			}
			out[f.ID] = c
		}
		ds.Rows[i] = out
	}
	return nil
}

func (c *Catalog) add(ds *model.Dataset, source string) error {
	if ds == nil {
		return nil
	}
	if err := Validate(ds); err != nil {
		return fmt.Errorf("dataset %s: %w", ds.ID, err)
	}
	if _, dup := c.datasets[ds.ID]; dup {
		if source != "" {
			return fmt.Errorf("dataset %s (%s): %w", ds.ID, source, model.ErrDuplicateID)
		}
		return fmt.Errorf("dataset %s: %w", ds.ID, model.ErrDuplicateID)
	}
	c.datasets[ds.ID] = ds
	return nil
}

// ListDatasets returns every dataset ordered by ID.
func (c *Catalog) ListDatasets() []*model.Dataset {
	out := make([]*model.Dataset, 0, len(c.datasets))
	for _, ds := range c.datasets {
		out = append(out, ds)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetDataset returns the dataset with the given ID.
func (c *Catalog) GetDataset(id string) (*model.Dataset, bool) {
	ds, ok := c.datasets[id]
	return ds, ok
}

// Field resolves a field of a dataset, wrapping ErrUnknownDataset or
// ErrUnknownField when either lookup fails.
func Field(p Provider, datasetID, field string) (model.Field, error) {
	ds, ok := p.GetDataset(datasetID)
	if !ok {
		return model.Field{}, fmt.Errorf("dataset %q: %w", datasetID, model.ErrUnknownDataset)
	}
	f, ok := ds.Field(field)
	if !ok {
		return model.Field{}, fmt.Errorf("field %q in dataset %s: %w", field, datasetID, model.ErrUnknownField)
	}
	return f, nil
}
