package server

import (
	"encoding/json"
	"net/http"

	"github.com/alfredjeanlab/canvas/internal/board"
	"github.com/alfredjeanlab/canvas/internal/events"
	"github.com/alfredjeanlab/canvas/internal/model"
)

// ActorHeader names the caller on recorded events.
const ActorHeader = "X-Canvas-Actor"

// NewHTTPHandler returns an http.Handler with all routes registered, wrapped
// in request logging and panic recovery. When authToken is non-empty,
// requests (except GET /v1/health) must include a valid
// Authorization: Bearer <token> header.
func (s *Server) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/datasets", s.handleListDatasets)
	mux.HandleFunc("GET /v1/datasets/{id}", s.handleGetDataset)

	mux.HandleFunc("POST /v1/dashboards", s.handleCreateDashboard)
	mux.HandleFunc("GET /v1/dashboards", s.handleListDashboards)
	mux.HandleFunc("GET /v1/dashboards/{id}", s.handleGetDashboard)
	mux.HandleFunc("DELETE /v1/dashboards/{id}", s.handleDeleteDashboard)
	mux.HandleFunc("GET /v1/dashboards/{id}/events", s.handleGetEvents)
	mux.HandleFunc("GET /v1/dashboards/{id}/presence", s.handlePresence)

	mux.HandleFunc("POST /v1/dashboards/{id}/widgets", s.handleAddWidget)
	mux.HandleFunc("GET /v1/dashboards/{id}/widgets", s.handleListWidgets)
	mux.HandleFunc("GET /v1/dashboards/{id}/widgets/{wid}", s.handleGetWidget)
	mux.HandleFunc("PATCH /v1/dashboards/{id}/widgets/{wid}", s.handleUpdateWidget)
	mux.HandleFunc("DELETE /v1/dashboards/{id}/widgets/{wid}", s.handleRemoveWidget)
	mux.HandleFunc("GET /v1/dashboards/{id}/widgets/{wid}/data", s.handleWidgetData)

	mux.HandleFunc("POST /v1/dashboards/{id}/layout", s.handleApplyLayout)
	mux.HandleFunc("POST /v1/dashboards/{id}/gestures", s.handleGesture)
	mux.HandleFunc("POST /v1/dashboards/{id}/widgets/{wid}/move", s.handleMove)
	mux.HandleFunc("POST /v1/dashboards/{id}/widgets/{wid}/resize", s.handleResize)

	mux.HandleFunc("PUT /v1/dashboards/{id}/widgets/{wid}/binding", s.handleUpdateBinding)
	mux.HandleFunc("PUT /v1/dashboards/{id}/widgets/{wid}/binding/dimension", s.handleSetDimension)
	mux.HandleFunc("PUT /v1/dashboards/{id}/widgets/{wid}/binding/dataset", s.handleSetDataset)
	mux.HandleFunc("POST /v1/dashboards/{id}/widgets/{wid}/binding/measures", s.handleAddMeasure)
	mux.HandleFunc("PATCH /v1/dashboards/{id}/widgets/{wid}/binding/measures/{field}", s.handleUpdateMeasure)
	mux.HandleFunc("DELETE /v1/dashboards/{id}/widgets/{wid}/binding/measures/{field}", s.handleRemoveMeasure)

	mux.HandleFunc("PUT /v1/dashboards/{id}/widgets/{wid}/control", s.handleUpdateControl)
	mux.HandleFunc("POST /v1/dashboards/{id}/widgets/{wid}/targets", s.handleAddTarget)
	mux.HandleFunc("PUT /v1/dashboards/{id}/widgets/{wid}/targets/{target}/mapping", s.handleSetColumnMapping)
	mux.HandleFunc("DELETE /v1/dashboards/{id}/widgets/{wid}/targets/{target}", s.handleRemoveTarget)
	mux.HandleFunc("POST /v1/dashboards/{id}/widgets/{wid}/sync", s.handleSync)
	mux.HandleFunc("DELETE /v1/dashboards/{id}/widgets/{wid}/sync/{peer}", s.handleUnsync)
	mux.HandleFunc("PUT /v1/dashboards/{id}/widgets/{wid}/source", s.handleSetSource)
	mux.HandleFunc("GET /v1/dashboards/{id}/widgets/{wid}/options", s.handleOptions)
	mux.HandleFunc("POST /v1/dashboards/{id}/widgets/{wid}/value", s.handleSetValue)

	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	return RecoveryMiddleware(LoggingMiddleware(AuthMiddleware(authToken, mux)))
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// openBoard opens the dashboard named by the {id} path value. On failure the
// error response is written and ok is false.
func (s *Server) openBoard(w http.ResponseWriter, r *http.Request) (b *board.Board, ok bool) {
	b, err := s.boards.Open(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return nil, false
	}
	return b, true
}

// editWidget runs fn against the {wid} widget of the {id} dashboard, saves
// the dashboard and reports the widget as updated. fn's result is the
// response body.
func (s *Server) editWidget(w http.ResponseWriter, r *http.Request, changes []string, fn func(c *board.Core, id string) (any, error)) {
	b, ok := s.openBoard(w, r)
	if !ok {
		return
	}
	wid := r.PathValue("wid")
	var out any
	var updated *model.Widget
	err := b.Mutate(r.Context(), func(c *board.Core) error {
		var err error
		if out, err = fn(c, wid); err != nil {
			return err
		}
		updated, _ = c.Registry.Get(wid)
		return nil
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	s.recordAndPublish(r.Context(), events.TopicWidgetUpdated, b.ID(), wid, actor(r), events.WidgetUpdated{
		DashboardID: b.ID(),
		Widget:      updated,
		Changes:     changes,
	})
	writeJSON(w, http.StatusOK, out)
}

func actor(r *http.Request) string {
	return r.Header.Get(ActorHeader)
}

// decodeBody decodes the JSON request body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
