package model

import "time"

// DefaultColumns is the grid column count used when a dashboard does not
// specify one.
const DefaultColumns = 12

// Dashboard is the persisted state of one canvas: its grid settings and the
// full list of widget records. Targets, synced groups and bindings are all
// stored inline on the widgets.
type Dashboard struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Columns   int       `json:"columns"`
	Widgets   []*Widget `json:"widgets"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DashboardSummary is the listing view of a dashboard.
type DashboardSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Columns     int       `json:"columns"`
	WidgetCount int       `json:"widget_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}
