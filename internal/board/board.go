// Package board holds open dashboards. Each dashboard's registry and the
// engines over it are reached only through its Board, which runs one
// operation at a time and writes the result through to the store.
package board

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alfredjeanlab/canvas/internal/binding"
	"github.com/alfredjeanlab/canvas/internal/catalog"
	"github.com/alfredjeanlab/canvas/internal/control"
	"github.com/alfredjeanlab/canvas/internal/evaluate"
	"github.com/alfredjeanlab/canvas/internal/layout"
	"github.com/alfredjeanlab/canvas/internal/model"
	"github.com/alfredjeanlab/canvas/internal/propagation"
	"github.com/alfredjeanlab/canvas/internal/registry"
	"github.com/alfredjeanlab/canvas/internal/store"
)

// Core bundles a dashboard's registry with the engines that operate on it.
type Core struct {
	Registry    *registry.Registry
	Layout      *layout.Engine
	Binding     *binding.Model
	Control     *control.Model
	Propagation *propagation.Engine
	Cache       *evaluate.Cache
}

func newCore(reg *registry.Registry, cat catalog.Provider) *Core {
	cache := evaluate.NewCache(cat)
	prop := propagation.New(reg, cat)
	prop.AddHook(cache)
	return &Core{
		Registry:    reg,
		Layout:      layout.New(reg),
		Binding:     binding.New(reg, cat),
		Control:     control.New(reg, cat),
		Propagation: prop,
		Cache:       cache,
	}
}

// Place adds w to the dashboard. A widget without a geometry is given its
// kind's default size at the first free slot.
func (c *Core) Place(w *model.Widget) (*model.Widget, error) {
	if w.Geometry == (model.Geometry{}) {
		width, height := DefaultSize(w.Kind, c.Registry.Columns())
		g, ok := c.Layout.FindSlot(width, height)
		if !ok {
			return nil, fmt.Errorf("place %s widget: %w", w.Kind, model.ErrGeometryConflict)
		}
		w.Geometry = g
	}
	id, err := c.Registry.Add(w)
	if err != nil {
		return nil, err
	}
	out, _ := c.Registry.Get(id)
	return out, nil
}

// DefaultSize is the footprint given to a new widget placed without a
// geometry: charts take 4x3 cells and controls 3x1, capped at the grid
// width.
func DefaultSize(k model.Kind, columns int) (width, height int) {
	width, height = 4, 3
	if k.IsControl() {
		width, height = 3, 1
	}
	return min(width, columns), height
}

// Board is one open dashboard.
type Board struct {
	mu    sync.Mutex
	meta  model.Dashboard
	cat   catalog.Provider
	store store.Store
	core  *Core
}

func newBoard(d *model.Dashboard, cat catalog.Provider, s store.Store) (*Board, error) {
	reg, err := registry.Load(d.Columns, d.Widgets)
	if err != nil {
		return nil, fmt.Errorf("load dashboard %s: %w", d.ID, err)
	}
	meta := *d
	meta.Widgets = nil
	return &Board{meta: meta, cat: cat, store: s, core: newCore(reg, cat)}, nil
}

// ID returns the dashboard ID.
func (b *Board) ID() string { return b.meta.ID }

// Snapshot returns the dashboard's persisted form.
func (b *Board) Snapshot() *model.Dashboard {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot()
}

func (b *Board) snapshot() *model.Dashboard {
	d := b.meta
	d.Columns = b.core.Registry.Columns()
	d.Widgets = b.core.Registry.All()
	return &d
}

// Read runs fn with exclusive access to the dashboard without saving.
func (b *Board) Read(fn func(c *Core) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return fn(b.core)
}

// Mutate runs fn with exclusive access to the dashboard and saves the
// result. If fn fails or the save fails, the dashboard is restored to its
// state before the call, so several operations inside one fn commit
// together.
func (b *Board) Mutate(ctx context.Context, fn func(c *Core) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	before := b.core.Registry.All()
	if err := fn(b.core); err != nil {
		b.restore(before)
		return err
	}
	d := b.snapshot()
	if err := b.store.SaveDashboard(ctx, d); err != nil {
		b.restore(before)
		return fmt.Errorf("save dashboard %s: %w", b.meta.ID, err)
	}
	b.meta.UpdatedAt = d.UpdatedAt
	return nil
}

// restore rebuilds the core from a previous widget list.
func (b *Board) restore(widgets []*model.Widget) {
	reg, err := registry.Load(b.core.Registry.Columns(), widgets)
	if err != nil {
		// The list came out of a consistent registry.
		slog.Error("restore dashboard", "dashboard_id", b.meta.ID, "error", err)
		return
	}
	b.core = newCore(reg, b.cat)
}
