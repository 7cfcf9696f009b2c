package hooks

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alfredjeanlab/canvas/internal/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// chanSubscriber delivers whatever the test sends on ch.
type chanSubscriber struct {
	ch    chan events.Message
	topic string
}

func (s *chanSubscriber) Subscribe(topic string) (<-chan events.Message, func(), error) {
	s.topic = topic
	return s.ch, func() {}, nil
}

func (s *chanSubscriber) Close() error { return nil }

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hooks.toml")
	content := `
[[hook]]
name = "notify"
topic = "canvas.filter.>"
command = "cat"
timeout = 5

[[hook]]
topic = "canvas.widget.*"
dashboard = "db-1"
command = "true"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	hooks, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(hooks) != 2 {
		t.Fatalf("got %d hooks, want 2", len(hooks))
	}
	if hooks[0].Name != "notify" || hooks[0].Timeout != 5 {
		t.Errorf("hooks[0] = %+v", hooks[0])
	}
	if hooks[1].Name != "hook-2" || hooks[1].Dashboard != "db-1" {
		t.Errorf("hooks[1] = %+v", hooks[1])
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	dir := t.TempDir()

	missing := filepath.Join(dir, "hooks.toml")
	if err := os.WriteFile(missing, []byte("[[hook]]\nname = \"x\"\ntopic = \"canvas.>\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(missing); err == nil {
		t.Error("expected error for hook without command")
	}

	if _, err := LoadFile(filepath.Join(dir, "nope.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestHandleEvent_RunsMatchingHooks(t *testing.T) {
	h := NewHandler([]Hook{
		{Name: "echo", Topic: "canvas.filter.changed", Command: `echo "$CANVAS_TOPIC $CANVAS_DASHBOARD $CANVAS_HOOK"`},
		{Name: "stdin", Topic: "canvas.>", Command: "cat"},
		{Name: "other", Topic: "canvas.widget.added", Command: "echo nope"},
	}, testLogger())

	data := []byte(`{"dashboard_id":"db-1","widget_id":"w1"}`)
	results := h.HandleEvent(context.Background(), "canvas.filter.changed", data)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Hook != "echo" || results[0].Output != "canvas.filter.changed db-1 echo" {
		t.Errorf("results[0] = %+v", results[0])
	}
	if results[1].Hook != "stdin" || results[1].Output != string(data) {
		t.Errorf("results[1] = %+v", results[1])
	}
}

func TestHandleEvent_DashboardScoping(t *testing.T) {
	h := NewHandler([]Hook{
		{Name: "scoped", Topic: "canvas.>", Dashboard: "db-2", Command: "echo hit"},
	}, testLogger())

	if res := h.HandleEvent(context.Background(), "canvas.widget.added", []byte(`{"dashboard_id":"db-1"}`)); len(res) != 0 {
		t.Errorf("expected no results for another dashboard, got %+v", res)
	}
	res := h.HandleEvent(context.Background(), "canvas.dashboard.created", []byte(`{"dashboard":{"id":"db-2"}}`))
	if len(res) != 1 || res[0].Output != "hit" {
		t.Errorf("expected scoped hook to run, got %+v", res)
	}
}

func TestHandleEvent_FailureReported(t *testing.T) {
	h := NewHandler([]Hook{
		{Name: "fail", Topic: "canvas.>", Command: "echo broken >&2; exit 3"},
	}, testLogger())

	res := h.HandleEvent(context.Background(), "canvas.widget.removed", []byte(`{}`))
	if len(res) != 1 {
		t.Fatalf("got %d results, want 1", len(res))
	}
	if res[0].Err == nil {
		t.Error("expected error from failing command")
	}
	if res[0].Output != "broken" {
		t.Errorf("output = %q, want stderr fallback %q", res[0].Output, "broken")
	}
	if res[0].ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", res[0].ExitCode)
	}
}

func TestExecute_Timeout(t *testing.T) {
	start := time.Now()
	res := Execute(context.Background(), "sleep 5; echo late", 1, nil, nil)
	if res.Err == nil {
		t.Error("expected timeout error")
	}
	if res.Output == "late" {
		t.Error("command ran past its timeout")
	}
	if time.Since(start) > 1*time.Second+waitDelay+time.Second {
		t.Errorf("timeout not enforced, took %v", time.Since(start))
	}
}

func TestStartSubscriber(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "seen")
	h := NewHandler([]Hook{
		{Name: "record", Topic: "canvas.control.*", Command: "cat > " + out},
	}, testLogger())

	sub := &chanSubscriber{ch: make(chan events.Message, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.StartSubscriber(ctx, sub) }()

	sub.ch <- events.Message{Topic: "canvas.control.value_changed", Data: []byte(`{"control_id":"c1"}`)}

	deadline := time.Now().Add(3 * time.Second)
	for {
		data, err := os.ReadFile(out)
		if err == nil && string(data) == `{"control_id":"c1"}` {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("hook did not run; last read %q, %v", data, err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("StartSubscriber: %v", err)
	}
	if sub.topic != "canvas.>" {
		t.Errorf("subscribed to %q, want canvas.>", sub.topic)
	}
}

func TestExecute_CapsOutput(t *testing.T) {
	res := Execute(context.Background(), "head -c 20000 /dev/zero | tr '\\0' x", 5, nil, nil)
	if res.Err != nil {
		t.Fatalf("Execute: %v", res.Err)
	}
	if !res.Truncated {
		t.Error("expected output to be marked truncated")
	}
	if len(res.Output) != maxOutput {
		t.Errorf("output length = %d, want %d", len(res.Output), maxOutput)
	}
}
