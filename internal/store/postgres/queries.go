package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/canvas/internal/model"
)

// dashboardColumns is the column list used for SELECT statements on the
// dashboards table.
const dashboardColumns = `id, name, columns, created_at, created_by, updated_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryCreateDashboard(ctx context.Context, db executor, d *model.Dashboard) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO dashboards (id, name, columns, created_at, created_by, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		d.ID,
		d.Name,
		d.Columns,
		d.CreatedAt,
		nullString(d.CreatedBy),
		d.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return insertWidgets(ctx, db, d.ID, d.Widgets)
}

func queryGetDashboard(ctx context.Context, db executor, id string) (*model.Dashboard, error) {
	row := db.QueryRowContext(ctx, `SELECT `+dashboardColumns+` FROM dashboards WHERE id = $1`, id)
	d, err := scanDashboard(row)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT doc FROM widgets
		WHERE dashboard_id = $1
		ORDER BY position ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	widgets, err := scanWidgets(rows)
	if err != nil {
		return nil, err
	}
	d.Widgets = widgets
	return d, nil
}

func queryListDashboards(ctx context.Context, db executor) ([]*model.DashboardSummary, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT d.id, d.name, d.columns, d.updated_at, COUNT(w.id)
		FROM dashboards d
		LEFT JOIN widgets w ON w.dashboard_id = d.id
		GROUP BY d.id
		ORDER BY d.updated_at DESC, d.id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.DashboardSummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// querySaveDashboard updates the dashboard row and rewrites its widgets.
// Callers run it inside a transaction.
func querySaveDashboard(ctx context.Context, db executor, d *model.Dashboard) error {
	err := db.QueryRowContext(ctx, `
		UPDATE dashboards SET
			name = $2,
			columns = $3,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		d.ID,
		d.Name,
		d.Columns,
	).Scan(&d.UpdatedAt)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM widgets WHERE dashboard_id = $1`, d.ID); err != nil {
		return err
	}
	return insertWidgets(ctx, db, d.ID, d.Widgets)
}

func insertWidgets(ctx context.Context, db executor, dashboardID string, widgets []*model.Widget) error {
	for i, w := range widgets {
		doc, err := json.Marshal(w)
		if err != nil {
			return fmt.Errorf("encode widget %s: %w", w.ID, err)
		}
		if _, err := db.ExecContext(ctx, `
			INSERT INTO widgets (dashboard_id, id, position, kind, doc)
			VALUES ($1, $2, $3, $4, $5)`,
			dashboardID, w.ID, i, string(w.Kind), doc,
		); err != nil {
			return err
		}
	}
	return nil
}

func queryDeleteDashboard(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM dashboards WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func queryRecordEvent(ctx context.Context, db executor, e *model.Event) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO events (topic, dashboard_id, widget_id, actor, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		e.Topic, e.DashboardID, nullString(e.WidgetID), nullString(e.Actor), jsonbBytes(e.Payload),
	).Scan(&e.ID, &e.CreatedAt)
}

func queryGetEvents(ctx context.Context, db executor, dashboardID string) ([]*model.Event, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, topic, dashboard_id, widget_id, actor, payload, created_at
		FROM events
		WHERE dashboard_id = $1
		ORDER BY id ASC`,
		dashboardID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}
