package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/canvas/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanDashboard scans a single row into a model.Dashboard without widgets.
// The row must contain columns in the order defined by dashboardColumns.
func scanDashboard(row scannable) (*model.Dashboard, error) {
	var d model.Dashboard
	var createdBy sql.NullString
	err := row.Scan(&d.ID, &d.Name, &d.Columns, &d.CreatedAt, &createdBy, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.CreatedBy = createdBy.String
	return &d, nil
}

// scanSummary scans a dashboard listing row (dashboard columns plus a
// widget count).
func scanSummary(row scannable) (*model.DashboardSummary, error) {
	var s model.DashboardSummary
	err := row.Scan(&s.ID, &s.Name, &s.Columns, &s.UpdatedAt, &s.WidgetCount)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// scanWidgets decodes the doc column of each row into a widget.
func scanWidgets(rows *sql.Rows) ([]*model.Widget, error) {
	var widgets []*model.Widget
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var w model.Widget
		if err := json.Unmarshal(doc, &w); err != nil {
			return nil, fmt.Errorf("decode widget: %w", err)
		}
		widgets = append(widgets, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return widgets, nil
}

// scanEvent scans a single row into a model.Event.
func scanEvent(row scannable) (*model.Event, error) {
	var e model.Event
	var (
		widgetID sql.NullString
		actor    sql.NullString
		payload  []byte
	)
	err := row.Scan(&e.ID, &e.Topic, &e.DashboardID, &widgetID, &actor, &payload, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.WidgetID = widgetID.String
	e.Actor = actor.String
	if len(payload) > 0 {
		e.Payload = json.RawMessage(payload)
	}
	return &e, nil
}

// scanEvents scans multiple rows into a slice of model.Event pointers.
func scanEvents(rows *sql.Rows) ([]*model.Event, error) {
	var events []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// jsonbBytes converts json.RawMessage to a []byte suitable for JSONB columns.
func jsonbBytes(m json.RawMessage) []byte {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}
