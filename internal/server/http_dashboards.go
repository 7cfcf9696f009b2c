package server

import (
	"net/http"
	"time"

	"github.com/alfredjeanlab/canvas/internal/events"
	"github.com/alfredjeanlab/canvas/internal/model"
)

// handleListDatasets handles GET /v1/datasets.
func (s *Server) handleListDatasets(w http.ResponseWriter, _ *http.Request) {
	sets := s.boards.Catalog().ListDatasets()
	out := make([]model.DatasetSummary, 0, len(sets))
	for _, ds := range sets {
		out = append(out, ds.Summary())
	}
	writeJSON(w, http.StatusOK, map[string]any{"datasets": out})
}

// handleGetDataset handles GET /v1/datasets/{id}.
func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.boards.Catalog().GetDataset(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "dataset not found")
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

// handleCreateDashboard handles POST /v1/dashboards. The body is a dashboard
// in its persisted form; widgets, when present, are imported as they are.
func (s *Server) handleCreateDashboard(w http.ResponseWriter, r *http.Request) {
	var d model.Dashboard
	if !decodeBody(w, r, &d) {
		return
	}
	if d.CreatedBy == "" {
		d.CreatedBy = actor(r)
	}
	b, err := s.boards.Import(r.Context(), &d)
	if err != nil {
		writeErr(w, err)
		return
	}
	snap := b.Snapshot()
	s.recordAndPublish(r.Context(), events.TopicDashboardCreated, snap.ID, "", d.CreatedBy, events.DashboardCreated{
		Dashboard: &model.DashboardSummary{
			ID:          snap.ID,
			Name:        snap.Name,
			Columns:     snap.Columns,
			WidgetCount: len(snap.Widgets),
			UpdatedAt:   snap.UpdatedAt,
		},
	})
	writeJSON(w, http.StatusCreated, snap)
}

// handleListDashboards handles GET /v1/dashboards.
func (s *Server) handleListDashboards(w http.ResponseWriter, r *http.Request) {
	list, err := s.boards.List(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	if list == nil {
		list = []*model.DashboardSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"dashboards": list})
}

// handleGetDashboard handles GET /v1/dashboards/{id}.
func (s *Server) handleGetDashboard(w http.ResponseWriter, r *http.Request) {
	b, ok := s.openBoard(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, b.Snapshot())
}

// handleDeleteDashboard handles DELETE /v1/dashboards/{id}.
func (s *Server) handleDeleteDashboard(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.boards.Delete(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	s.recordAndPublish(r.Context(), events.TopicDashboardDeleted, id, "", actor(r), events.DashboardDeleted{DashboardID: id})
	s.presence.Forget(id)
	w.WriteHeader(http.StatusNoContent)
}

// handleGetEvents handles GET /v1/dashboards/{id}/events.
func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	b, ok := s.openBoard(w, r)
	if !ok {
		return
	}
	evts, err := s.store.GetEvents(r.Context(), b.ID())
	if err != nil {
		writeErr(w, err)
		return
	}
	if evts == nil {
		evts = []*model.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evts})
}

// handlePresence handles GET /v1/dashboards/{id}/presence. ?stale= drops
// editors idle for longer than the given duration.
func (s *Server) handlePresence(w http.ResponseWriter, r *http.Request) {
	b, ok := s.openBoard(w, r)
	if !ok {
		return
	}
	var stale time.Duration
	if v := r.URL.Query().Get("stale"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			writeError(w, http.StatusBadRequest, "invalid stale duration")
			return
		}
		stale = d
	}
	writeJSON(w, http.StatusOK, map[string]any{"editors": s.presence.Roster(b.ID(), stale)})
}
