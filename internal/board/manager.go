package board

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/canvas/internal/catalog"
	"github.com/alfredjeanlab/canvas/internal/idgen"
	"github.com/alfredjeanlab/canvas/internal/model"
	"github.com/alfredjeanlab/canvas/internal/registry"
	"github.com/alfredjeanlab/canvas/internal/store"
)

// Manager opens dashboards from the store and keeps them in memory.
type Manager struct {
	store   store.Store
	cat     catalog.Provider
	columns int
	newID   func() (string, error)
	now     func() time.Time

	mu     sync.Mutex
	boards map[string]*Board
}

// NewManager returns a manager over s. New dashboards default to columns
// grid columns.
func NewManager(s store.Store, cat catalog.Provider, columns int) *Manager {
	if columns < 1 {
		columns = model.DefaultColumns
	}
	return &Manager{
		store:   s,
		cat:     cat,
		columns: columns,
		newID:   idgen.Dashboard,
		now:     func() time.Time { return time.Now().UTC() },
		boards:  make(map[string]*Board),
	}
}

// Catalog returns the field catalog dashboards are bound against.
func (m *Manager) Catalog() catalog.Provider { return m.cat }

// Create stores a new empty dashboard and opens it.
func (m *Manager) Create(ctx context.Context, name string, columns int, createdBy string) (*Board, error) {
	return m.Import(ctx, &model.Dashboard{Name: name, Columns: columns, CreatedBy: createdBy})
}

// Import stores a dashboard given in its persisted form, widgets included,
// and opens it. The widget records must satisfy every layout and relation
// invariant. A missing ID is generated.
func (m *Manager) Import(ctx context.Context, d *model.Dashboard) (*Board, error) {
	if strings.TrimSpace(d.Name) == "" {
		return nil, &model.ValidationError{Errors: []model.FieldError{{Field: "name", Message: "is required"}}}
	}
	if d.Columns == 0 {
		d.Columns = m.columns
	}
	if d.Columns < 0 {
		return nil, &model.ValidationError{Errors: []model.FieldError{{Field: "columns", Message: fmt.Sprintf("must be positive, got %d", d.Columns)}}}
	}
	if d.ID == "" {
		id, err := m.newID()
		if err != nil {
			return nil, fmt.Errorf("generate dashboard id: %w", err)
		}
		d.ID = id
	}
	now := m.now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	// Load validates the widgets before anything is stored.
	if _, err := registry.Load(d.Columns, d.Widgets); err != nil {
		return nil, fmt.Errorf("import dashboard %s: %w", d.ID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.boards[d.ID]; ok {
		return nil, fmt.Errorf("dashboard %s: %w", d.ID, model.ErrDuplicateID)
	}
	if err := m.store.CreateDashboard(ctx, d); err != nil {
		return nil, fmt.Errorf("create dashboard: %w", err)
	}
	b, err := newBoard(d, m.cat, m.store)
	if err != nil {
		return nil, err
	}
	m.boards[d.ID] = b
	return b, nil
}

// Open returns the dashboard with the given ID, loading it from the store
// on first use.
func (m *Manager) Open(ctx context.Context, id string) (*Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.boards[id]; ok {
		return b, nil
	}
	d, err := m.store.GetDashboard(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dashboard %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get dashboard %s: %w", id, err)
	}
	b, err := newBoard(d, m.cat, m.store)
	if err != nil {
		return nil, err
	}
	m.boards[id] = b
	return b, nil
}

// List returns a summary of every stored dashboard.
func (m *Manager) List(ctx context.Context) ([]*model.DashboardSummary, error) {
	return m.store.ListDashboards(ctx)
}

// Delete removes the dashboard from the store and closes it.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.store.DeleteDashboard(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("dashboard %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete dashboard %s: %w", id, err)
	}
	delete(m.boards, id)
	return nil
}
