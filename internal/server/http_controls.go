package server

import (
	"net/http"

	"github.com/alfredjeanlab/canvas/internal/board"
	"github.com/alfredjeanlab/canvas/internal/control"
	"github.com/alfredjeanlab/canvas/internal/events"
	"github.com/alfredjeanlab/canvas/internal/model"
	"github.com/alfredjeanlab/canvas/internal/propagation"
)

type peerInput struct {
	PeerID string `json:"peer_id"`
}

type valueInput struct {
	Value any `json:"value"`
}

var controlChanged = []string{"control"}

// handleUpdateControl handles PUT /v1/dashboards/{id}/widgets/{wid}/control.
func (s *Server) handleUpdateControl(w http.ResponseWriter, r *http.Request) {
	var in model.ControlConfig
	if !decodeBody(w, r, &in) {
		return
	}
	s.editWidget(w, r, controlChanged, func(c *board.Core, id string) (any, error) {
		return c.Control.Update(id, &in)
	})
}

// handleAddTarget handles POST .../targets.
func (s *Server) handleAddTarget(w http.ResponseWriter, r *http.Request) {
	var in model.Target
	if !decodeBody(w, r, &in) {
		return
	}
	if in.ElementID == "" {
		writeError(w, http.StatusBadRequest, "element_id is required")
		return
	}
	s.editWidget(w, r, controlChanged, func(c *board.Core, id string) (any, error) {
		return c.Control.AddTarget(id, in)
	})
}

// handleSetColumnMapping handles PUT .../targets/{target}/mapping.
func (s *Server) handleSetColumnMapping(w http.ResponseWriter, r *http.Request) {
	var in map[string]string
	if !decodeBody(w, r, &in) {
		return
	}
	target := r.PathValue("target")
	s.editWidget(w, r, controlChanged, func(c *board.Core, id string) (any, error) {
		return c.Control.SetColumnMapping(id, target, in)
	})
}

// handleRemoveTarget handles DELETE .../targets/{target}. The target loses
// the filter this control applied to it.
func (s *Server) handleRemoveTarget(w http.ResponseWriter, r *http.Request) {
	target := r.PathValue("target")
	s.editWidget(w, r, controlChanged, func(c *board.Core, id string) (any, error) {
		return c.Control.RemoveTarget(id, target)
	})
}

// handleSync handles POST .../sync.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var in peerInput
	if !decodeBody(w, r, &in) {
		return
	}
	if in.PeerID == "" {
		writeError(w, http.StatusBadRequest, "peer_id is required")
		return
	}
	s.editWidget(w, r, controlChanged, func(c *board.Core, id string) (any, error) {
		return c.Control.Sync(id, in.PeerID)
	})
}

// handleUnsync handles DELETE .../sync/{peer}.
func (s *Server) handleUnsync(w http.ResponseWriter, r *http.Request) {
	peer := r.PathValue("peer")
	s.editWidget(w, r, controlChanged, func(c *board.Core, id string) (any, error) {
		return c.Control.Unsync(id, peer)
	})
}

// handleSetSource handles PUT .../source.
func (s *Server) handleSetSource(w http.ResponseWriter, r *http.Request) {
	var in control.Source
	if !decodeBody(w, r, &in) {
		return
	}
	s.editWidget(w, r, controlChanged, func(c *board.Core, id string) (any, error) {
		return c.Control.SetValueSource(id, in)
	})
}

// handleOptions handles GET .../options.
func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	b, ok := s.openBoard(w, r)
	if !ok {
		return
	}
	var vals []any
	err := b.Read(func(c *board.Core) error {
		var err error
		vals, err = c.Control.Options(r.PathValue("wid"))
		return err
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	if vals == nil {
		vals = []any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"values": vals})
}

// handleSetValue handles POST .../value. The value is propagated to the
// control's synced group and their targets before the response is written.
func (s *Server) handleSetValue(w http.ResponseWriter, r *http.Request) {
	var in valueInput
	if !decodeBody(w, r, &in) {
		return
	}
	b, ok := s.openBoard(w, r)
	if !ok {
		return
	}
	wid := r.PathValue("wid")
	var pass *propagation.Pass
	err := b.Mutate(r.Context(), func(c *board.Core) error {
		var err error
		pass, err = c.Propagation.SetValue(wid, in.Value)
		return err
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	if pass.Changed {
		who := actor(r)
		s.recordAndPublish(r.Context(), events.TopicValueChanged, b.ID(), wid, who, events.ValueChanged{
			DashboardID: b.ID(),
			ControlID:   wid,
			Value:       pass.Value,
			Assigned:    pass.Assigned,
		})
		for _, a := range pass.Affected {
			s.recordAndPublish(r.Context(), events.TopicFilterChanged, b.ID(), a.WidgetID, who, events.FilterChanged{
				DashboardID: b.ID(),
				WidgetID:    a.WidgetID,
				ControlID:   a.ControlID,
				Predicate:   a.Predicate,
			})
		}
	}
	writeJSON(w, http.StatusOK, pass)
}
