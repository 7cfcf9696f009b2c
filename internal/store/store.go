package store

import (
	"context"

	"github.com/alfredjeanlab/canvas/internal/model"
)

// Store defines the persistence interface for dashboards. Lookups of a
// missing dashboard return sql.ErrNoRows.
type Store interface {
	// Dashboards
	CreateDashboard(ctx context.Context, d *model.Dashboard) error
	GetDashboard(ctx context.Context, id string) (*model.Dashboard, error)
	ListDashboards(ctx context.Context) ([]*model.DashboardSummary, error)
	// SaveDashboard replaces the dashboard's settings and full widget list.
	SaveDashboard(ctx context.Context, d *model.Dashboard) error
	DeleteDashboard(ctx context.Context, id string) error

	// Events
	RecordEvent(ctx context.Context, event *model.Event) error
	GetEvents(ctx context.Context, dashboardID string) ([]*model.Event, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
