package events

import (
	"context"
	"log/slog"
)

// NoopPublisher drops every event. The server uses it when CANVAS_NATS_URL is
// not set; events are still recorded in the store and sent to SSE clients.
type NoopPublisher struct{}

func (n *NoopPublisher) Publish(ctx context.Context, topic string, event any) error {
	slog.Debug("event not published (no NATS)", "topic", topic)
	return nil
}

func (n *NoopPublisher) Close() error {
	return nil
}
