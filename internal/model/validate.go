package model

import (
	"fmt"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// ValidateWidget checks a widget's own shape: kind, payload, geometry bounds
// and configuration enums. Relations to other widgets (overlap, targets,
// synced peers) are checked by the registry.
// It returns a *ValidationError if any rules fail, or nil if the widget is valid.
func ValidateWidget(w *Widget, columns int) error {
	var ve ValidationError

	if !w.Kind.IsValid() {
		ve.add("kind", "invalid value %q", w.Kind)
	}
	if len([]rune(w.Title)) > 200 {
		ve.add("title", "must be 200 characters or fewer")
	}

	validateGeometry(&ve, w.Geometry, columns)

	switch {
	case w.Kind.IsChart():
		if w.Control != nil {
			ve.add("control", "must be empty for chart kind %q", w.Kind)
		}
		if w.Binding == nil {
			ve.add("binding", "is required for chart kind %q", w.Kind)
		} else {
			validateBinding(&ve, w.Binding)
		}
	case w.Kind.IsControl():
		if w.Binding != nil {
			ve.add("binding", "must be empty for control kind %q", w.Kind)
		}
		if w.Control == nil {
			ve.add("control", "is required for control kind %q", w.Kind)
		} else {
			validateControl(&ve, w.ID, w.Control)
		}
	}

	for key, p := range w.Filters {
		if p == nil {
			ve.add("filters."+key, "must not be null")
			continue
		}
		if p.ControlID != key {
			ve.add("filters."+key, "control_id %q does not match key", p.ControlID)
		}
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

func validateGeometry(ve *ValidationError, g Geometry, columns int) {
	if g.X < 0 || g.Y < 0 {
		ve.add("geometry", "position must be non-negative, got (%d,%d)", g.X, g.Y)
	}
	if g.Width < 1 || g.Height < 1 {
		ve.add("geometry", "size must be at least 1x1, got %dx%d", g.Width, g.Height)
	}
	if columns > 0 && g.Right() > columns {
		ve.add("geometry", "x+width must not exceed %d columns, got %d", columns, g.Right())
	}
}

func validateBinding(ve *ValidationError, b *Binding) {
	seen := make(map[string]bool, len(b.Measures))
	for i, m := range b.Measures {
		name := fmt.Sprintf("binding.measures[%d]", i)
		if m.Field == "" {
			ve.add(name+".field", "is required")
		}
		if seen[m.Field] {
			ve.add(name+".field", "duplicate measure %q", m.Field)
		}
		seen[m.Field] = true
		if !m.Aggregation.IsValid() {
			ve.add(name+".aggregation", "invalid value %q", m.Aggregation)
		}
		if !m.Transform.IsValid() {
			ve.add(name+".transform", "invalid value %q", m.Transform)
		}
		if !m.Format.Kind.IsValid() {
			ve.add(name+".format.kind", "invalid value %q", m.Format.Kind)
		}
		if m.Format.Decimals < 0 || m.Format.Decimals > 10 {
			ve.add(name+".format.decimals", "must be between 0 and 10, got %d", m.Format.Decimals)
		}
	}
	if (b.Dimension != "" || len(b.Measures) > 0) && b.DatasetID == "" {
		ve.add("binding.dataset_id", "is required when fields are bound")
	}
	for i, r := range b.ConditionalRules {
		if !ruleOperators[r.Operator] {
			ve.add(fmt.Sprintf("binding.conditional_rules[%d].operator", i), "invalid value %q", r.Operator)
		}
	}
}

func validateControl(ve *ValidationError, id string, c *ControlConfig) {
	if !c.ValueSource.IsValid() {
		ve.add("control.value_source", "invalid value %q", c.ValueSource)
	}
	if c.ValueSource == SourceColumn && (c.SourceDataset == "" || c.SourceColumn == "") {
		ve.add("control.value_source", "column source requires source_dataset and source_column")
	}
	if c.ValueSource == SourcePreset && c.Preset == "" {
		ve.add("control.preset", "is required for preset source")
	}
	if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
		ve.add("control.min", "must not exceed max")
	}

	targets := make(map[string]bool, len(c.Targets))
	for i, t := range c.Targets {
		name := fmt.Sprintf("control.targets[%d].element_id", i)
		if t.ElementID == "" {
			ve.add(name, "is required")
			continue
		}
		if targets[t.ElementID] {
			ve.add(name, "duplicate target %q", t.ElementID)
		}
		targets[t.ElementID] = true
	}

	synced := make(map[string]bool, len(c.SyncedControlIDs))
	for i, peer := range c.SyncedControlIDs {
		name := fmt.Sprintf("control.synced_control_ids[%d]", i)
		if peer == "" {
			ve.add(name, "must not be empty")
		}
		if id != "" && peer == id {
			ve.add(name, "must not reference the control itself")
		}
		if synced[peer] {
			ve.add(name, "duplicate peer %q", peer)
		}
		synced[peer] = true
	}
}
