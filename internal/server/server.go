package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alfredjeanlab/canvas/internal/board"
	"github.com/alfredjeanlab/canvas/internal/events"
	"github.com/alfredjeanlab/canvas/internal/model"
	"github.com/alfredjeanlab/canvas/internal/presence"
	"github.com/alfredjeanlab/canvas/internal/store"
)

// Server exposes the dashboard manager over HTTP and reports every accepted
// mutation as an event.
type Server struct {
	boards    *board.Manager
	store     store.Store
	publisher events.Publisher
	sseHub    *sseHub
	presence  *presence.Tracker
}

// New returns a server over the given manager. Events are recorded in s and
// published through p.
func New(m *board.Manager, s store.Store, p events.Publisher) *Server {
	return &Server{
		boards:    m,
		store:     s,
		publisher: p,
		sseHub:    newSSEHub(),
		presence:  presence.New(),
	}
}

// Presence returns the tracker of who is editing which dashboard.
func (s *Server) Presence() *presence.Tracker { return s.presence }

// recordAndPublish persists an event to the store and publishes it to NATS.
// Both operations are best-effort; failures are logged but do not block the caller.
func (s *Server) recordAndPublish(ctx context.Context, topic, dashboardID, widgetID, actor string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Warn("failed to marshal event", "topic", topic, "dashboard_id", dashboardID, "error", err)
		return
	}
	if err := s.store.RecordEvent(ctx, &model.Event{
		Topic:       topic,
		DashboardID: dashboardID,
		WidgetID:    widgetID,
		Actor:       actor,
		Payload:     payload,
	}); err != nil {
		slog.Warn("failed to record event", "topic", topic, "dashboard_id", dashboardID, "error", err)
	}
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "dashboard_id", dashboardID, "error", err)
	}
	s.sseHub.broadcast(topic, dashboardID, payload)
	s.presence.Record(presence.Activity{DashboardID: dashboardID, Actor: actor, Topic: topic, WidgetID: widgetID})
}

// statusFor maps a core error to the HTTP status reported to the caller.
func statusFor(err error) int {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve),
		errors.Is(err, model.ErrInvalidFieldType),
		errors.Is(err, model.ErrKindImmutable),
		errors.Is(err, model.ErrNotChart),
		errors.Is(err, model.ErrNotControl),
		errors.Is(err, model.ErrUnknownDataset),
		errors.Is(err, model.ErrUnknownField),
		errors.Is(err, model.ErrUnknownMeasure):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrGeometryConflict),
		errors.Is(err, model.ErrDuplicateID),
		errors.Is(err, model.ErrPropagationInProgress):
		return http.StatusConflict
	case errors.Is(err, model.ErrUnknownTarget),
		errors.Is(err, model.ErrIncompatibleTarget):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// writeErr writes err with the status statusFor picks for it.
func writeErr(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeError(w, code, err.Error())
}
