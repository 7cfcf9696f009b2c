package model

import (
	"encoding/json"
	"time"
)

// Kind identifies what a widget is. The set is closed: charts carry a
// Binding, controls carry a ControlConfig.
type Kind string

// Chart kinds.
const (
	KindBar       Kind = "bar"
	KindLine      Kind = "line"
	KindPie       Kind = "pie"
	KindArea      Kind = "area"
	KindScatter   Kind = "scatter"
	KindTable     Kind = "table"
	KindKPI       Kind = "kpi"
	KindHistogram Kind = "histogram"
)

// Control kinds.
const (
	KindTextInput   Kind = "text-input"
	KindNumberInput Kind = "number-input"
	KindListValues  Kind = "list-values"
	KindSlider      Kind = "slider"
	KindDateRange   Kind = "date-range"
	KindSwitch      Kind = "switch"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// IsChart reports whether the kind is one of the chart kinds.
func (k Kind) IsChart() bool {
	switch k {
	case KindBar, KindLine, KindPie, KindArea, KindScatter, KindTable, KindKPI, KindHistogram:
		return true
	}
	return false
}

// IsControl reports whether the kind is one of the input-control kinds.
func (k Kind) IsControl() bool {
	return k.Shape() != ""
}

// IsValid checks whether the kind is a known value.
func (k Kind) IsValid() bool {
	return k.IsChart() || k.IsControl()
}

// ValueShape groups control kinds by the kind of value they hold. Controls
// may only target or sync with controls of the same shape.
type ValueShape string

const (
	ShapeText    ValueShape = "text"
	ShapeNumber  ValueShape = "number"
	ShapeDate    ValueShape = "date"
	ShapeBoolean ValueShape = "boolean"
)

// Shape returns the value shape of a control kind, or "" for charts and
// unknown kinds.
func (k Kind) Shape() ValueShape {
	switch k {
	case KindTextInput, KindListValues:
		return ShapeText
	case KindNumberInput, KindSlider:
		return ShapeNumber
	case KindDateRange:
		return ShapeDate
	case KindSwitch:
		return ShapeBoolean
	}
	return ""
}

// Geometry is a widget's placement in grid units.
type Geometry struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Right returns the first column to the right of the rectangle.
func (g Geometry) Right() int { return g.X + g.Width }

// Bottom returns the first row below the rectangle.
func (g Geometry) Bottom() int { return g.Y + g.Height }

// Widget is a placed, configured unit on a dashboard canvas.
type Widget struct {
	ID       string         `json:"id"`
	Kind     Kind           `json:"kind"`
	Title    string         `json:"title,omitempty"`
	Geometry Geometry       `json:"geometry"`
	Binding  *Binding                    `json:"binding,omitempty"`
	Control  *ControlConfig              `json:"control,omitempty"`

	// Filters holds the predicates applied to this widget by controls that
	// target it, keyed by control ID.
	Filters map[string]*FilterPredicate `json:"filters,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the widget.
func (w *Widget) Clone() *Widget {
	if w == nil {
		return nil
	}
	c := *w
	c.Binding = w.Binding.Clone()
	c.Control = w.Control.Clone()
	if w.Filters != nil {
		c.Filters = make(map[string]*FilterPredicate, len(w.Filters))
		for k, p := range w.Filters {
			c.Filters[k] = p.Clone()
		}
	}
	return &c
}

// WidgetPatch is a shallow top-level merge applied to a widget. Nil fields
// are left untouched; non-nil nested objects replace the existing value
// wholesale.
type WidgetPatch struct {
	Kind     *Kind                       `json:"kind,omitempty"`
	Title    *string                     `json:"title,omitempty"`
	Geometry *Geometry                   `json:"geometry,omitempty"`
	Binding  *Binding                    `json:"binding,omitempty"`
	Control  *ControlConfig              `json:"control,omitempty"`
	Filters  map[string]*FilterPredicate `json:"filters,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p WidgetPatch) Empty() bool {
	return p.Kind == nil && p.Title == nil && p.Geometry == nil &&
		p.Binding == nil && p.Control == nil && p.Filters == nil
}

// cloneJSON deep-copies an arbitrary JSON-shaped value.
func cloneJSON(v any) any {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}
