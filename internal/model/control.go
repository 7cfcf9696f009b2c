package model

import "slices"

// ValueSource selects where a control's selectable values come from.
type ValueSource string

const (
	SourceManual ValueSource = "manual"
	SourceColumn ValueSource = "column"
	SourcePreset ValueSource = "preset"
)

// IsValid checks whether the value source is a known value.
func (s ValueSource) IsValid() bool {
	switch s {
	case SourceManual, SourceColumn, SourcePreset:
		return true
	}
	return false
}

// Target is a directed binding from a control to a widget it filters.
// ColumnMapping maps the control's source field to the target's field.
type Target struct {
	ElementID     string            `json:"element_id"`
	ElementType   Kind              `json:"element_type,omitempty"`
	ColumnMapping map[string]string `json:"column_mapping,omitempty"`
}

// ControlConfig is the configuration payload of a control widget.
type ControlConfig struct {
	Label         string      `json:"label,omitempty"`
	ValueSource   ValueSource `json:"value_source"`
	SourceDataset string      `json:"source_dataset,omitempty"`
	SourceColumn  string      `json:"source_column,omitempty"`
	ManualValues  []string    `json:"manual_values,omitempty"`
	Preset        string      `json:"preset,omitempty"`
	CurrentValue  any         `json:"current_value,omitempty"`

	Targets          []Target `json:"targets,omitempty"`
	SyncedControlIDs []string `json:"synced_control_ids,omitempty"`

	MultiSelect bool     `json:"multi_select,omitempty"`
	Required    bool     `json:"required,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	Step        *float64 `json:"step,omitempty"`
}

// Clone returns a deep copy of the control configuration.
func (c *ControlConfig) Clone() *ControlConfig {
	if c == nil {
		return nil
	}
	out := *c
	out.ManualValues = slices.Clone(c.ManualValues)
	out.SyncedControlIDs = slices.Clone(c.SyncedControlIDs)
	out.CurrentValue = cloneJSON(c.CurrentValue)
	if c.Targets != nil {
		out.Targets = make([]Target, len(c.Targets))
		for i, t := range c.Targets {
			out.Targets[i] = t.Clone()
		}
	}
	out.Min = cloneFloat(c.Min)
	out.Max = cloneFloat(c.Max)
	out.Step = cloneFloat(c.Step)
	return &out
}

// Clone returns a deep copy of the target.
func (t Target) Clone() Target {
	if t.ColumnMapping != nil {
		m := make(map[string]string, len(t.ColumnMapping))
		for k, v := range t.ColumnMapping {
			m[k] = v
		}
		t.ColumnMapping = m
	}
	return t
}

// TargetIndex returns the position of the target for elementID, or -1.
func (c *ControlConfig) TargetIndex(elementID string) int {
	for i, t := range c.Targets {
		if t.ElementID == elementID {
			return i
		}
	}
	return -1
}

// IsSyncedWith reports whether id is in the control's synced group list.
func (c *ControlConfig) IsSyncedWith(id string) bool {
	return slices.Contains(c.SyncedControlIDs, id)
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
