package hooks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BurntSushi/toml"
	"github.com/alfredjeanlab/canvas/internal/events"
)

// Hook runs Command for every event whose topic matches Topic. Topic uses
// NATS wildcards: "*" matches one token and a trailing ">" matches the rest.
// When Dashboard is set only that dashboard's events trigger the hook.
type Hook struct {
	Name      string `toml:"name"`
	Topic     string `toml:"topic"`
	Dashboard string `toml:"dashboard"`
	Command   string `toml:"command"`
	Timeout   int    `toml:"timeout"` // seconds
}

// File is the on-disk layout of a hooks file:
//
//	[[hook]]
//	name    = "notify"
//	topic   = "canvas.filter.>"
//	command = "curl -s -d @- https://example.test/hook"
type File struct {
	Hooks []Hook `toml:"hook"`
}

// LoadFile reads hooks from a TOML file.
func LoadFile(path string) ([]Hook, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("hooks: reading %s: %w", path, err)
	}
	for i, h := range f.Hooks {
		if h.Topic == "" || h.Command == "" {
			return nil, fmt.Errorf("hooks: %s: hook %d needs topic and command", path, i+1)
		}
		if h.Name == "" {
			f.Hooks[i].Name = fmt.Sprintf("hook-%d", i+1)
		}
	}
	return f.Hooks, nil
}

// Handler runs the configured hooks for incoming events.
type Handler struct {
	hooks  []Hook
	logger *slog.Logger
}

// NewHandler creates a handler over the given hooks.
func NewHandler(hooks []Hook, logger *slog.Logger) *Handler {
	return &Handler{hooks: hooks, logger: logger}
}

// HandleEvent runs every hook matching the event, in file order. The event
// payload is passed on stdin and summarized in CANVAS_* variables.
func (h *Handler) HandleEvent(ctx context.Context, topic string, data []byte) []Result {
	dashboardID := events.PayloadDashboardID(data)
	var results []Result
	for _, hk := range h.hooks {
		if !events.MatchTopic(hk.Topic, topic) {
			continue
		}
		if hk.Dashboard != "" && hk.Dashboard != dashboardID {
			continue
		}
		env := map[string]string{
			"CANVAS_TOPIC":     topic,
			"CANVAS_DASHBOARD": dashboardID,
			"CANVAS_HOOK":      hk.Name,
		}
		res := Execute(ctx, hk.Command, hk.Timeout, env, data)
		res.Hook = hk.Name
		if res.Err != nil {
			h.logger.Warn("hooks: command failed",
				"hook", hk.Name, "topic", topic, "exit_code", res.ExitCode,
				"duration", res.Duration, "err", res.Err, "output", res.Output)
		} else {
			h.logger.Info("hooks: executed hook",
				"hook", hk.Name, "topic", topic, "duration", res.Duration, "truncated", res.Truncated)
		}
		results = append(results, res)
	}
	return results
}

// StartSubscriber listens for canvas events on the bus and runs matching
// hooks. It blocks until ctx is cancelled.
func (h *Handler) StartSubscriber(ctx context.Context, sub events.Subscriber) error {
	ch, cancel, err := sub.Subscribe("canvas.>")
	if err != nil {
		return fmt.Errorf("hooks: subscribe: %w", err)
	}
	defer cancel()

	h.logger.Info("hooks: subscriber started", "hooks", len(h.hooks))

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("hooks: subscriber stopping")
			return nil
		case msg, ok := <-ch:
			if !ok {
				h.logger.Info("hooks: subscription channel closed")
				return nil
			}
			h.HandleEvent(ctx, msg.Topic, msg.Data)
		}
	}
}
