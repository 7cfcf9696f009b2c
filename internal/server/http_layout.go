package server

import (
	"net/http"

	"github.com/alfredjeanlab/canvas/internal/board"
	"github.com/alfredjeanlab/canvas/internal/events"
	"github.com/alfredjeanlab/canvas/internal/layout"
	"github.com/alfredjeanlab/canvas/internal/model"
)

type layoutInput struct {
	Changes []layout.Change `json:"changes"`
}

type gestureInput struct {
	layout.Gesture
	layout.Metrics
}

type moveInput struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type resizeInput struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// changeLayout runs fn on the {id} dashboard and publishes the geometry of
// every widget it reports as moved.
func (s *Server) changeLayout(w http.ResponseWriter, r *http.Request, fn func(c *board.Core) (map[string]model.Geometry, error)) {
	b, ok := s.openBoard(w, r)
	if !ok {
		return
	}
	var moved map[string]model.Geometry
	err := b.Mutate(r.Context(), func(c *board.Core) error {
		var err error
		moved, err = fn(c)
		return err
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	if len(moved) > 0 {
		s.recordAndPublish(r.Context(), events.TopicLayoutChanged, b.ID(), "", actor(r), events.LayoutChanged{
			DashboardID: b.ID(),
			Geometry:    moved,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"geometry": moved})
}

// handleApplyLayout handles POST /v1/dashboards/{id}/layout.
func (s *Server) handleApplyLayout(w http.ResponseWriter, r *http.Request) {
	var in layoutInput
	if !decodeBody(w, r, &in) {
		return
	}
	if len(in.Changes) == 0 {
		writeError(w, http.StatusBadRequest, "changes is required")
		return
	}
	s.changeLayout(w, r, func(c *board.Core) (map[string]model.Geometry, error) {
		if err := c.Layout.ApplyBatch(in.Changes); err != nil {
			return nil, err
		}
		moved := make(map[string]model.Geometry, len(in.Changes))
		for _, ch := range in.Changes {
			moved[ch.ID] = ch.Geometry
		}
		return moved, nil
	})
}

// handleGesture handles POST /v1/dashboards/{id}/gestures.
func (s *Server) handleGesture(w http.ResponseWriter, r *http.Request) {
	var in gestureInput
	if !decodeBody(w, r, &in) {
		return
	}
	s.changeLayout(w, r, func(c *board.Core) (map[string]model.Geometry, error) {
		before, _ := c.Registry.Get(in.WidgetID)
		g, err := c.Layout.ApplyGesture(in.Gesture, in.Metrics)
		if err != nil {
			return nil, err
		}
		if before != nil && before.Geometry == g {
			return map[string]model.Geometry{}, nil
		}
		return map[string]model.Geometry{in.WidgetID: g}, nil
	})
}

// handleMove handles POST /v1/dashboards/{id}/widgets/{wid}/move.
func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var in moveInput
	if !decodeBody(w, r, &in) {
		return
	}
	wid := r.PathValue("wid")
	s.changeLayout(w, r, func(c *board.Core) (map[string]model.Geometry, error) {
		g, err := c.Layout.Move(wid, in.X, in.Y)
		if err != nil {
			return nil, err
		}
		return map[string]model.Geometry{wid: g}, nil
	})
}

// handleResize handles POST /v1/dashboards/{id}/widgets/{wid}/resize.
func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	var in resizeInput
	if !decodeBody(w, r, &in) {
		return
	}
	wid := r.PathValue("wid")
	s.changeLayout(w, r, func(c *board.Core) (map[string]model.Geometry, error) {
		g, err := c.Layout.Resize(wid, in.Width, in.Height)
		if err != nil {
			return nil, err
		}
		return map[string]model.Geometry{wid: g}, nil
	})
}
