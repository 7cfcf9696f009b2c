package main

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"slices"
	"strings"
	"time"

	"github.com/alfredjeanlab/canvas/internal/events"
	"github.com/alfredjeanlab/canvas/internal/model"
	"github.com/alfredjeanlab/canvas/internal/ui"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream dashboard events as they happen",
	Long: `Stream dashboard events. With a NATS URL (--nats-url, CANVAS_NATS_URL or
the active remote) events arrive as they are published; otherwise the
dashboard's event log is polled. --dashboard limits the stream to one
dashboard and is required when polling.`,
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")
		natsURL, _ := cmd.Flags().GetString("nats-url")
		if natsURL == "" {
			natsURL = os.Getenv("CANVAS_NATS_URL")
		}
		if natsURL == "" {
			natsURL = activeRemoteNATSURL()
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if natsURL != "" {
			return watchNATS(ctx, natsURL, dashboard)
		}
		dashID, err := requireDashboard()
		if err != nil {
			return err
		}
		return watchPoll(ctx, interval, dashID)
	},
}

// watchNATS prints every canvas event on the bus that belongs to dashID
// (all dashboards when dashID is empty).
func watchNATS(ctx context.Context, natsURL, dashID string) error {
	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe("canvas.>")
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if dashID != "" && msg.Dashboard != dashID {
				continue
			}
			printEvent(os.Stdout, msg.Topic, msg.Data, time.Now())
		}
	}
}

// watchPoll re-reads the dashboard's event log at the given interval and
// prints records it has not shown yet.
func watchPoll(ctx context.Context, interval time.Duration, dashID string) error {
	var lastID int64
	first := true
	for {
		list, err := canvasClient.GetEvents(ctx, dashID)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading events: %w", err)
		}
		fresh := newEvents(list, lastID)
		if first {
			// Only show what happens from now on.
			fresh = nil
			first = false
		}
		for _, e := range fresh {
			printEvent(os.Stdout, e.Topic, e.Payload, e.CreatedAt)
		}
		lastID = max(lastID, maxEventID(list))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// newEvents returns the events with an ID above lastID, oldest first.
func newEvents(list []*model.Event, lastID int64) []*model.Event {
	var out []*model.Event
	for _, e := range list {
		if e.ID > lastID {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b *model.Event) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func maxEventID(list []*model.Event) int64 {
	var id int64
	for _, e := range list {
		id = max(id, e.ID)
	}
	return id
}

func printEvent(w io.Writer, topic string, data []byte, at time.Time) {
	if jsonOutput {
		out, _ := json.Marshal(map[string]any{"topic": topic, "data": json.RawMessage(data), "at": at})
		fmt.Fprintln(w, string(out))
		return
	}
	fmt.Fprintf(w, "%s %s %s\n", at.Format("15:04:05"), ui.RenderAccent(strings.TrimPrefix(topic, "canvas.")), summarizeEvent(topic, data))
}

// summarizeEvent renders the interesting part of an event payload on one line.
func summarizeEvent(topic string, data []byte) string {
	switch topic {
	case events.TopicDashboardCreated:
		var e events.DashboardCreated
		if json.Unmarshal(data, &e) == nil && e.Dashboard != nil {
			return fmt.Sprintf("%s %q", e.Dashboard.ID, e.Dashboard.Name)
		}
	case events.TopicDashboardDeleted:
		var e events.DashboardDeleted
		if json.Unmarshal(data, &e) == nil {
			return e.DashboardID
		}
	case events.TopicWidgetAdded:
		var e events.WidgetAdded
		if json.Unmarshal(data, &e) == nil && e.Widget != nil {
			return fmt.Sprintf("%s (%s)", e.Widget.ID, e.Widget.Kind)
		}
	case events.TopicWidgetUpdated:
		var e events.WidgetUpdated
		if json.Unmarshal(data, &e) == nil && e.Widget != nil {
			return fmt.Sprintf("%s [%s]", e.Widget.ID, strings.Join(e.Changes, ", "))
		}
	case events.TopicWidgetRemoved:
		var e events.WidgetRemoved
		if json.Unmarshal(data, &e) == nil {
			return e.WidgetID
		}
	case events.TopicLayoutChanged:
		var e events.LayoutChanged
		if json.Unmarshal(data, &e) == nil {
			parts := make([]string, 0, len(e.Geometry))
			for _, id := range sortedKeys(e.Geometry) {
				g := e.Geometry[id]
				parts = append(parts, fmt.Sprintf("%s@%d,%d", id, g.X, g.Y))
			}
			return strings.Join(parts, " ")
		}
	case events.TopicValueChanged:
		var e events.ValueChanged
		if json.Unmarshal(data, &e) == nil {
			return fmt.Sprintf("%s = %v", e.ControlID, e.Value)
		}
	case events.TopicFilterChanged:
		var e events.FilterChanged
		if json.Unmarshal(data, &e) == nil {
			if e.Predicate == nil {
				return fmt.Sprintf("%s cleared by %s", e.WidgetID, e.ControlID)
			}
			return fmt.Sprintf("%s %s %s %v (from %s)", e.WidgetID, e.Predicate.Column, e.Predicate.Op, e.Predicate.Value, e.ControlID)
		}
	}
	return string(data)
}

func init() {
	watchCmd.Flags().Duration("interval", 2*time.Second, "polling interval when NATS is not configured")
	watchCmd.Flags().String("nats-url", "", "NATS server URL")
}
