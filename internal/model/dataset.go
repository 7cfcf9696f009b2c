package model

// FieldType is the type of a dataset column.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldDate    FieldType = "date"
	FieldBoolean FieldType = "boolean"
)

// IsValid checks whether the field type is a known value.
func (t FieldType) IsValid() bool {
	switch t {
	case FieldString, FieldNumber, FieldDate, FieldBoolean:
		return true
	}
	return false
}

// Field is a typed column supplied by a Dataset.
type Field struct {
	ID   string    `json:"id" yaml:"id"`
	Name string    `json:"name" yaml:"name"`
	Type FieldType `json:"type" yaml:"type"`
}

// Dataset is an immutable snapshot of typed columns and rows. Widgets refer
// to datasets by ID only.
type Dataset struct {
	ID     string           `json:"id" yaml:"id"`
	Name   string           `json:"name" yaml:"name"`
	Fields []Field          `json:"fields" yaml:"fields"`
	Rows   []map[string]any `json:"rows,omitempty" yaml:"rows"`
}

// Field returns the field with the given ID, falling back to a match on
// name. The second result is false if no field matches.
func (d *Dataset) Field(idOrName string) (Field, bool) {
	for _, f := range d.Fields {
		if f.ID == idOrName {
			return f, true
		}
	}
	for _, f := range d.Fields {
		if f.Name == idOrName {
			return f, true
		}
	}
	return Field{}, false
}

// DatasetSummary is the catalog listing view of a dataset.
type DatasetSummary struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Fields   []Field `json:"fields"`
	RowCount int     `json:"row_count"`
}

// Summary returns the listing view of the dataset.
func (d *Dataset) Summary() DatasetSummary {
	return DatasetSummary{ID: d.ID, Name: d.Name, Fields: d.Fields, RowCount: len(d.Rows)}
}
