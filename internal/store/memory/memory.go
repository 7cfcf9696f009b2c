// Package memory implements store.Store in process memory. It backs the
// server when no database is configured and in tests.
package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/canvas/internal/model"
	"github.com/alfredjeanlab/canvas/internal/store"
)

// Store keeps dashboards as encoded JSON so that callers never share
// memory with it.
type Store struct {
	mu         sync.Mutex
	dashboards map[string][]byte
	events     []*model.Event
	nextEvent  int64
	now        func() time.Time
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{dashboards: make(map[string][]byte), now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) CreateDashboard(_ context.Context, d *model.Dashboard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dashboards[d.ID]; ok {
		return fmt.Errorf("dashboard %s: %w", d.ID, model.ErrDuplicateID)
	}
	return s.put(d)
}

func (s *Store) GetDashboard(_ context.Context, id string) (*model.Dashboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id)
}

func (s *Store) ListDashboards(_ context.Context) ([]*model.DashboardSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.DashboardSummary, 0, len(s.dashboards))
	for id := range s.dashboards {
		d, err := s.get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, &model.DashboardSummary{
			ID: d.ID, Name: d.Name, Columns: d.Columns, WidgetCount: len(d.Widgets), UpdatedAt: d.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) SaveDashboard(_ context.Context, d *model.Dashboard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, err := s.get(d.ID)
	if err != nil {
		return err
	}
	d.CreatedAt, d.CreatedBy = old.CreatedAt, old.CreatedBy
	d.UpdatedAt = s.now()
	return s.put(d)
}

func (s *Store) DeleteDashboard(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dashboards[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.dashboards, id)
	return nil
}

func (s *Store) RecordEvent(_ context.Context, e *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEvent++
	e.ID = s.nextEvent
	e.CreatedAt = s.now()
	c := *e
	s.events = append(s.events, &c)
	return nil
}

func (s *Store) GetEvents(_ context.Context, dashboardID string) ([]*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Event
	for _, e := range s.events {
		if e.DashboardID == dashboardID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

// RunInTransaction runs fn against the store itself. Each call inside fn is
// atomic on its own; there is no rollback across calls.
func (s *Store) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

func (s *Store) Close() error { return nil }

func (s *Store) put(d *model.Dashboard) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode dashboard %s: %w", d.ID, err)
	}
	s.dashboards[d.ID] = data
	return nil
}

func (s *Store) get(id string) (*model.Dashboard, error) {
	data, ok := s.dashboards[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	var d model.Dashboard
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode dashboard %s: %w", id, err)
	}
	return &d, nil
}
