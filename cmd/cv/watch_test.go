package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/canvas/internal/events"
	"github.com/alfredjeanlab/canvas/internal/model"
)

func TestNewEvents_FiltersAndSorts(t *testing.T) {
	list := []*model.Event{
		{ID: 5, Topic: "b"},
		{ID: 2, Topic: "old"},
		{ID: 4, Topic: "a"},
	}
	got := newEvents(list, 3)
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].ID != 4 || got[1].ID != 5 {
		t.Errorf("got IDs %d,%d, want 4,5", got[0].ID, got[1].ID)
	}
	if maxEventID(list) != 5 {
		t.Errorf("maxEventID = %d, want 5", maxEventID(list))
	}
}

func TestNewEvents_NothingNew(t *testing.T) {
	list := []*model.Event{{ID: 1}, {ID: 2}}
	if got := newEvents(list, 2); len(got) != 0 {
		t.Fatalf("got %d events, want 0", len(got))
	}
}

func TestSummarizeEvent(t *testing.T) {
	tests := []struct {
		topic string
		data  string
		want  string
	}{
		{events.TopicWidgetAdded, `{"dashboard_id":"d1","widget":{"id":"w1","kind":"bar"}}`, "w1 (bar)"},
		{events.TopicWidgetUpdated, `{"widget":{"id":"w1","kind":"bar"},"changes":["binding","filters"]}`, "w1 [binding, filters]"},
		{events.TopicWidgetRemoved, `{"widget_id":"w3"}`, "w3"},
		{events.TopicLayoutChanged, `{"geometry":{"b":{"x":4,"y":0},"a":{"x":0,"y":3}}}`, "a@0,3 b@4,0"},
		{events.TopicValueChanged, `{"control_id":"c1","value":"West"}`, "c1 = West"},
		{events.TopicFilterChanged, `{"widget_id":"w1","control_id":"c1","predicate":null}`, "w1 cleared by c1"},
		{events.TopicFilterChanged, `{"widget_id":"w1","control_id":"c1","predicate":{"column":"region","op":"eq","value":"West"}}`, "w1 region eq West (from c1)"},
		{"canvas.unknown", `{"x":1}`, `{"x":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			if got := summarizeEvent(tt.topic, []byte(tt.data)); got != tt.want {
				t.Errorf("summarizeEvent = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrintEvent_JSON(t *testing.T) {
	jsonOutput = true
	defer func() { jsonOutput = false }()

	var buf bytes.Buffer
	printEvent(&buf, events.TopicWidgetRemoved, []byte(`{"widget_id":"w1"}`), time.Unix(0, 0).UTC())
	out := buf.String()
	if !strings.Contains(out, `"topic":"canvas.widget.removed"`) || !strings.Contains(out, `"widget_id":"w1"`) {
		t.Errorf("unexpected JSON line: %s", out)
	}
}
