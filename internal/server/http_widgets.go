package server

import (
	"fmt"
	"net/http"

	"github.com/alfredjeanlab/canvas/internal/board"
	"github.com/alfredjeanlab/canvas/internal/evaluate"
	"github.com/alfredjeanlab/canvas/internal/events"
	"github.com/alfredjeanlab/canvas/internal/model"
)

// handleAddWidget handles POST /v1/dashboards/{id}/widgets. A widget posted
// without a geometry is placed at the first free slot.
func (s *Server) handleAddWidget(w http.ResponseWriter, r *http.Request) {
	var in model.Widget
	if !decodeBody(w, r, &in) {
		return
	}
	b, ok := s.openBoard(w, r)
	if !ok {
		return
	}
	var added *model.Widget
	err := b.Mutate(r.Context(), func(c *board.Core) error {
		var err error
		added, err = c.Place(&in)
		return err
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	s.recordAndPublish(r.Context(), events.TopicWidgetAdded, b.ID(), added.ID, actor(r), events.WidgetAdded{
		DashboardID: b.ID(),
		Widget:      added,
	})
	writeJSON(w, http.StatusCreated, added)
}

// handleListWidgets handles GET /v1/dashboards/{id}/widgets.
func (s *Server) handleListWidgets(w http.ResponseWriter, r *http.Request) {
	b, ok := s.openBoard(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"widgets": b.Snapshot().Widgets})
}

// handleGetWidget handles GET /v1/dashboards/{id}/widgets/{wid}.
func (s *Server) handleGetWidget(w http.ResponseWriter, r *http.Request) {
	b, ok := s.openBoard(w, r)
	if !ok {
		return
	}
	var out *model.Widget
	err := b.Read(func(c *board.Core) error {
		var found bool
		if out, found = c.Registry.Get(r.PathValue("wid")); !found {
			return fmt.Errorf("widget %s: %w", r.PathValue("wid"), model.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleUpdateWidget handles PATCH /v1/dashboards/{id}/widgets/{wid}.
// Binding and control payloads are checked against the catalog the same
// way their dedicated endpoints check them; the whole patch commits or
// none of it does.
func (s *Server) handleUpdateWidget(w http.ResponseWriter, r *http.Request) {
	var patch model.WidgetPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	if patch.Empty() {
		writeError(w, http.StatusBadRequest, "patch is empty")
		return
	}
	s.editWidget(w, r, patchKeys(patch), func(c *board.Core, id string) (any, error) {
		rest := patch
		rest.Binding, rest.Control = nil, nil
		if !rest.Empty() {
			if err := c.Registry.Update(id, rest); err != nil {
				return nil, err
			}
		}
		if patch.Binding != nil {
			if _, err := c.Binding.Update(id, patch.Binding); err != nil {
				return nil, err
			}
		}
		if patch.Control != nil {
			if _, err := c.Control.Update(id, patch.Control); err != nil {
				return nil, err
			}
		}
		out, _ := c.Registry.Get(id)
		return out, nil
	})
}

// patchKeys lists the top-level keys a patch replaces.
func patchKeys(p model.WidgetPatch) []string {
	var keys []string
	if p.Kind != nil {
		keys = append(keys, "kind")
	}
	if p.Title != nil {
		keys = append(keys, "title")
	}
	if p.Geometry != nil {
		keys = append(keys, "geometry")
	}
	if p.Binding != nil {
		keys = append(keys, "binding")
	}
	if p.Control != nil {
		keys = append(keys, "control")
	}
	if p.Filters != nil {
		keys = append(keys, "filters")
	}
	return keys
}

// handleRemoveWidget handles DELETE /v1/dashboards/{id}/widgets/{wid}.
func (s *Server) handleRemoveWidget(w http.ResponseWriter, r *http.Request) {
	b, ok := s.openBoard(w, r)
	if !ok {
		return
	}
	wid := r.PathValue("wid")
	err := b.Mutate(r.Context(), func(c *board.Core) error {
		if err := c.Registry.Remove(wid); err != nil {
			return err
		}
		c.Cache.Invalidate(wid)
		return nil
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	s.recordAndPublish(r.Context(), events.TopicWidgetRemoved, b.ID(), wid, actor(r), events.WidgetRemoved{
		DashboardID: b.ID(),
		WidgetID:    wid,
	})
	w.WriteHeader(http.StatusNoContent)
}

// handleWidgetData handles GET /v1/dashboards/{id}/widgets/{wid}/data.
func (s *Server) handleWidgetData(w http.ResponseWriter, r *http.Request) {
	b, ok := s.openBoard(w, r)
	if !ok {
		return
	}
	wid := r.PathValue("wid")
	var res *evaluate.Result
	err := b.Read(func(c *board.Core) error {
		cw, found := c.Registry.Get(wid)
		if !found {
			return fmt.Errorf("widget %s: %w", wid, model.ErrNotFound)
		}
		var err error
		res, err = c.Cache.Chart(cw)
		return err
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
