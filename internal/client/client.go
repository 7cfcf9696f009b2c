// Package client provides a transport-agnostic interface for the canvas
// service and an HTTP/JSON implementation that talks to the canvas REST API.
package client

import (
	"context"

	"github.com/alfredjeanlab/canvas/internal/binding"
	"github.com/alfredjeanlab/canvas/internal/control"
	"github.com/alfredjeanlab/canvas/internal/evaluate"
	"github.com/alfredjeanlab/canvas/internal/layout"
	"github.com/alfredjeanlab/canvas/internal/model"
	"github.com/alfredjeanlab/canvas/internal/presence"
	"github.com/alfredjeanlab/canvas/internal/propagation"
)

// CanvasClient is the interface that all cv commands use to communicate with
// the canvas server. It is implemented by HTTPClient.
type CanvasClient interface {
	// Datasets
	ListDatasets(ctx context.Context) ([]model.DatasetSummary, error)
	GetDataset(ctx context.Context, id string) (*model.Dataset, error)

	// Dashboards
	CreateDashboard(ctx context.Context, d *model.Dashboard) (*model.Dashboard, error)
	ListDashboards(ctx context.Context) ([]*model.DashboardSummary, error)
	GetDashboard(ctx context.Context, id string) (*model.Dashboard, error)
	DeleteDashboard(ctx context.Context, id string) error
	GetEvents(ctx context.Context, dashboardID string) ([]*model.Event, error)
	Presence(ctx context.Context, dashboardID string) ([]presence.Entry, error)

	// Widgets
	AddWidget(ctx context.Context, dashboardID string, w *model.Widget) (*model.Widget, error)
	ListWidgets(ctx context.Context, dashboardID string) ([]*model.Widget, error)
	GetWidget(ctx context.Context, dashboardID, widgetID string) (*model.Widget, error)
	UpdateWidget(ctx context.Context, dashboardID, widgetID string, p *model.WidgetPatch) (*model.Widget, error)
	RemoveWidget(ctx context.Context, dashboardID, widgetID string) error
	WidgetData(ctx context.Context, dashboardID, widgetID string) (*evaluate.Result, error)

	// Layout
	ApplyLayout(ctx context.Context, dashboardID string, changes []layout.Change) (map[string]model.Geometry, error)
	ApplyGesture(ctx context.Context, dashboardID string, g layout.Gesture, m layout.Metrics) (map[string]model.Geometry, error)
	MoveWidget(ctx context.Context, dashboardID, widgetID string, x, y int) (model.Geometry, error)
	ResizeWidget(ctx context.Context, dashboardID, widgetID string, width, height int) (model.Geometry, error)

	// Binding
	SetDimension(ctx context.Context, dashboardID, widgetID, field string) (*model.Binding, error)
	SetDataset(ctx context.Context, dashboardID, widgetID, datasetID string) (*model.Binding, error)
	AddMeasure(ctx context.Context, dashboardID, widgetID, field string) (*model.Binding, error)
	UpdateMeasure(ctx context.Context, dashboardID, widgetID, field string, p binding.MeasurePatch) (*model.Binding, error)
	RemoveMeasure(ctx context.Context, dashboardID, widgetID, field string) (*model.Binding, error)

	// Controls
	AddTarget(ctx context.Context, dashboardID, widgetID string, t model.Target) (*model.ControlConfig, error)
	RemoveTarget(ctx context.Context, dashboardID, widgetID, targetID string) (*model.ControlConfig, error)
	SetColumnMapping(ctx context.Context, dashboardID, widgetID, targetID string, mapping map[string]string) (*model.ControlConfig, error)
	Sync(ctx context.Context, dashboardID, widgetID, peerID string) (*model.ControlConfig, error)
	Unsync(ctx context.Context, dashboardID, widgetID, peerID string) (*model.ControlConfig, error)
	SetSource(ctx context.Context, dashboardID, widgetID string, s control.Source) (*model.ControlConfig, error)
	Options(ctx context.Context, dashboardID, widgetID string) ([]any, error)
	SetValue(ctx context.Context, dashboardID, widgetID string, value any) (*propagation.Pass, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

var _ CanvasClient = (*HTTPClient)(nil)
