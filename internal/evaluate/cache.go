package evaluate

import (
	"sync"
	"time"

	"github.com/alfredjeanlab/canvas/internal/catalog"
	"github.com/alfredjeanlab/canvas/internal/model"
)

// Cache memoizes chart results. An entry is dropped when the chart's filter
// state changes and is ignored once the widget has been updated since it
// was computed.
type Cache struct {
	cat catalog.Provider

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	stamp time.Time
	res   *Result
}

// NewCache returns an empty cache evaluating against cat.
func NewCache(cat catalog.Provider) *Cache {
	return &Cache{cat: cat, entries: make(map[string]cacheEntry)}
}

// Chart returns the evaluated data for w, computing it if needed.
func (c *Cache) Chart(w *model.Widget) (*Result, error) {
	c.mu.Lock()
	e, ok := c.entries[w.ID]
	c.mu.Unlock()
	if ok && e.stamp.Equal(w.UpdatedAt) {
		return e.res, nil
	}
	res, err := Chart(c.cat, w)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.entries[w.ID] = cacheEntry{stamp: w.UpdatedAt, res: res}
	c.mu.Unlock()
	return res, nil
}

// OnFilterStateChanged drops the cached result for widgetID.
func (c *Cache) OnFilterStateChanged(widgetID string, _ *model.FilterPredicate) {
	c.Invalidate(widgetID)
}

// Invalidate drops the cached result for id.
func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

// Len returns the number of cached results.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
