package events

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/alfredjeanlab/canvas/internal/model"
)

// Event topic constants
const (
	TopicDashboardCreated = "canvas.dashboard.created"
	TopicDashboardDeleted = "canvas.dashboard.deleted"

	TopicWidgetAdded   = "canvas.widget.added"
	TopicWidgetUpdated = "canvas.widget.updated"
	TopicWidgetRemoved = "canvas.widget.removed"

	TopicLayoutChanged = "canvas.layout.changed"

	// Propagation events. One value_changed per accepted SetValue, then one
	// filter_changed per widget whose filter state the pass rewrote.
	TopicValueChanged  = "canvas.control.value_changed"
	TopicFilterChanged = "canvas.filter.changed"
)

// Event types

type DashboardCreated struct {
	Dashboard *model.DashboardSummary `json:"dashboard"`
}

type DashboardDeleted struct {
	DashboardID string `json:"dashboard_id"`
}

type WidgetAdded struct {
	DashboardID string        `json:"dashboard_id"`
	Widget      *model.Widget `json:"widget"`
}

type WidgetUpdated struct {
	DashboardID string        `json:"dashboard_id"`
	Widget      *model.Widget `json:"widget"`
	Changes     []string      `json:"changes"` // top-level keys that were replaced
}

type WidgetRemoved struct {
	DashboardID string `json:"dashboard_id"`
	WidgetID    string `json:"widget_id"`
}

type LayoutChanged struct {
	DashboardID string                    `json:"dashboard_id"`
	Geometry    map[string]model.Geometry `json:"geometry"` // widget ID -> new geometry
}

type ValueChanged struct {
	DashboardID string   `json:"dashboard_id"`
	ControlID   string   `json:"control_id"`
	Value       any      `json:"value"`
	Assigned    []string `json:"assigned"`
}

type FilterChanged struct {
	DashboardID string                 `json:"dashboard_id"`
	WidgetID    string                 `json:"widget_id"`
	ControlID   string                 `json:"control_id"`
	Predicate   *model.FilterPredicate `json:"predicate"` // nil when cleared
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// PayloadDashboardID returns the dashboard an encoded event belongs to, or
// "" when the payload names none.
func PayloadDashboardID(data []byte) string {
	var head struct {
		DashboardID string `json:"dashboard_id"`
		Dashboard   *struct {
			ID string `json:"id"`
		} `json:"dashboard"`
	}
	if json.Unmarshal(data, &head) != nil {
		return ""
	}
	if head.DashboardID == "" && head.Dashboard != nil {
		return head.Dashboard.ID
	}
	return head.DashboardID
}

// MatchTopic matches a dot-separated topic against a pattern.
// Supports "*" as a single-segment wildcard and ">" as a multi-segment
// suffix wildcard (NATS-style).
func MatchTopic(pattern, topic string) bool {
	if pattern == topic {
		return true
	}

	patParts := strings.Split(pattern, ".")
	topParts := strings.Split(topic, ".")

	for i, pp := range patParts {
		if pp == ">" {
			// ">" matches one or more remaining segments.
			return i < len(topParts)
		}
		if i >= len(topParts) {
			return false
		}
		if pp != "*" && pp != topParts[i] {
			return false
		}
	}

	return len(patParts) == len(topParts)
}
