package presence

import (
	"testing"
	"time"
)

// fakeClock returns a tracker whose clock the test advances by hand.
func fakeClock(t *testing.T) (*Tracker, *time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tr := New()
	tr.now = func() time.Time { return now }
	return tr, &now
}

func TestRecord_BasicTracking(t *testing.T) {
	tr := New()

	tr.Record(Activity{DashboardID: "d1", Actor: "alice", Topic: "canvas.widget.added", WidgetID: "w1"})

	roster := tr.Roster("d1", 0)
	if len(roster) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(roster))
	}
	e := roster[0]
	if e.Actor != "alice" {
		t.Errorf("expected actor alice, got %s", e.Actor)
	}
	if e.LastTopic != "canvas.widget.added" {
		t.Errorf("expected last_topic canvas.widget.added, got %s", e.LastTopic)
	}
	if e.WidgetID != "w1" {
		t.Errorf("expected widget_id w1, got %s", e.WidgetID)
	}
	if e.EditCount != 1 {
		t.Errorf("expected edit_count 1, got %d", e.EditCount)
	}
}

func TestRecord_UpdatesExistingEditor(t *testing.T) {
	tr := New()

	tr.Record(Activity{DashboardID: "d1", Actor: "bob", Topic: "canvas.widget.added", WidgetID: "w1"})
	tr.Record(Activity{DashboardID: "d1", Actor: "bob", Topic: "canvas.layout.changed"})
	tr.Record(Activity{DashboardID: "d1", Actor: "bob", Topic: "canvas.widget.updated", WidgetID: "w2"})

	roster := tr.Roster("d1", 0)
	if len(roster) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(roster))
	}
	e := roster[0]
	if e.EditCount != 3 {
		t.Errorf("expected 3 edits, got %d", e.EditCount)
	}
	if e.WidgetID != "w2" {
		t.Errorf("expected last widget w2, got %s", e.WidgetID)
	}
}

func TestRecord_IgnoresAnonymousEdits(t *testing.T) {
	tr := New()

	tr.Record(Activity{DashboardID: "d1", Actor: ""})
	tr.Record(Activity{DashboardID: "", Actor: "alice"})

	if roster := tr.Roster("d1", 0); len(roster) != 0 {
		t.Fatalf("expected 0 entries, got %d", len(roster))
	}
}

func TestRoster_ScopedToDashboard(t *testing.T) {
	tr := New()

	tr.Record(Activity{DashboardID: "d1", Actor: "alice"})
	tr.Record(Activity{DashboardID: "d2", Actor: "alice"})
	tr.Record(Activity{DashboardID: "d2", Actor: "bob"})

	if got := len(tr.Roster("d1", 0)); got != 1 {
		t.Errorf("d1 roster has %d entries, want 1", got)
	}
	if got := len(tr.Roster("d2", 0)); got != 2 {
		t.Errorf("d2 roster has %d entries, want 2", got)
	}
}

func TestRoster_StaleThreshold(t *testing.T) {
	tr, now := fakeClock(t)

	tr.Record(Activity{DashboardID: "d1", Actor: "old"})
	*now = now.Add(20 * time.Minute)
	tr.Record(Activity{DashboardID: "d1", Actor: "new"})

	roster := tr.Roster("d1", 10*time.Minute)
	if len(roster) != 1 {
		t.Fatalf("expected 1 entry with threshold, got %d", len(roster))
	}
	if roster[0].Actor != "new" {
		t.Errorf("expected new, got %s", roster[0].Actor)
	}
	if all := tr.Roster("d1", 0); len(all) != 2 {
		t.Fatalf("expected 2 entries without threshold, got %d", len(all))
	}
}

func TestRoster_SortedByMostRecent(t *testing.T) {
	tr, now := fakeClock(t)

	for _, name := range []string{"first", "second", "third"} {
		tr.Record(Activity{DashboardID: "d1", Actor: name})
		*now = now.Add(time.Second)
	}

	roster := tr.Roster("d1", 0)
	if len(roster) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(roster))
	}
	if roster[0].Actor != "third" {
		t.Errorf("expected third first, got %s", roster[0].Actor)
	}
	if roster[2].Actor != "first" {
		t.Errorf("expected first last, got %s", roster[2].Actor)
	}
}

func TestForget(t *testing.T) {
	tr := New()
	tr.Record(Activity{DashboardID: "d1", Actor: "alice"})
	tr.Record(Activity{DashboardID: "d2", Actor: "alice"})

	tr.Forget("d1")

	if got := len(tr.Roster("d1", 0)); got != 0 {
		t.Errorf("d1 roster has %d entries after Forget, want 0", got)
	}
	if got := len(tr.Roster("d2", 0)); got != 1 {
		t.Errorf("d2 roster has %d entries, want 1", got)
	}
}

func TestSweep_MarksIdleEditorsAway(t *testing.T) {
	tr, now := fakeClock(t)
	tr.Record(Activity{DashboardID: "d1", Actor: "idle"})
	*now = now.Add(20 * time.Minute)

	var away []string
	cfg := &ReaperConfig{
		AwayAfter:  15 * time.Minute,
		EvictAfter: 30 * time.Minute,
		OnAway: func(dashboardID, actor string) {
			away = append(away, dashboardID+"/"+actor)
		},
	}
	tr.sweep(cfg)

	if len(away) != 1 || away[0] != "d1/idle" {
		t.Errorf("expected d1/idle to be marked away, got %v", away)
	}
	roster := tr.Roster("d1", 0)
	if len(roster) != 1 || !roster[0].Away {
		t.Errorf("expected idle editor listed as away, got %+v", roster)
	}

	// A second sweep does not report the editor again.
	tr.sweep(cfg)
	if len(away) != 1 {
		t.Errorf("expected one away notification, got %v", away)
	}
}

func TestSweep_ReturningEditorNotAway(t *testing.T) {
	tr, now := fakeClock(t)
	tr.Record(Activity{DashboardID: "d1", Actor: "alice"})
	*now = now.Add(20 * time.Minute)
	tr.sweep(&ReaperConfig{AwayAfter: 15 * time.Minute, EvictAfter: 30 * time.Minute})

	tr.Record(Activity{DashboardID: "d1", Actor: "alice", Topic: "canvas.control.value_changed"})

	roster := tr.Roster("d1", 0)
	if len(roster) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(roster))
	}
	if roster[0].Away {
		t.Error("expected alice back (away=false)")
	}
	if roster[0].EditCount != 2 {
		t.Errorf("expected 2 edits, got %d", roster[0].EditCount)
	}
}

func TestSweep_EvictsLongAwayEditors(t *testing.T) {
	tr, now := fakeClock(t)
	tr.Record(Activity{DashboardID: "d1", Actor: "gone"})
	cfg := &ReaperConfig{AwayAfter: 10 * time.Minute, EvictAfter: 30 * time.Minute}

	*now = now.Add(15 * time.Minute)
	tr.sweep(cfg)
	*now = now.Add(31 * time.Minute)
	tr.sweep(cfg)

	tr.mu.RLock()
	_, exists := tr.editors[key{"d1", "gone"}]
	tr.mu.RUnlock()
	if exists {
		t.Error("expected editor to be evicted after EvictAfter")
	}
}

func TestStartReaper_StopsCleanly(t *testing.T) {
	tr := New()

	tr.StartReaper(&ReaperConfig{
		SweepInterval: 50 * time.Millisecond,
	})

	// Let it run a couple sweeps.
	time.Sleep(150 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		tr.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return within 2 seconds")
	}
}
