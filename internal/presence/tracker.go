// Package presence tracks which actors are editing which dashboards.
//
// The server records an Activity for every accepted mutation that carries an
// actor. A background reaper marks editors away once they have been idle for
// a while and later forgets them, so the roster only holds people who are
// plausibly still looking at the dashboard.
package presence

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Entry is one editor's presence on one dashboard.
type Entry struct {
	DashboardID string    `json:"dashboard_id"`
	Actor       string    `json:"actor"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	LastTopic   string    `json:"last_topic"`          // e.g. "canvas.widget.updated"
	WidgetID    string    `json:"widget_id,omitempty"` // last widget touched
	IdleSecs    float64   `json:"idle_secs"`
	EditCount   int64     `json:"edit_count"`
	Away        bool      `json:"away,omitempty"`
	AwaySince   time.Time `json:"away_since,omitempty"`
}

// Activity is one recorded edit.
type Activity struct {
	DashboardID string
	Actor       string
	Topic       string
	WidgetID    string
}

// ReaperConfig configures the background away-marking reaper.
type ReaperConfig struct {
	// AwayAfter is how long an editor must be idle before being marked away.
	// Default: 10 minutes.
	AwayAfter time.Duration

	// EvictAfter is how long an editor stays listed after being marked away.
	// Default: 30 minutes.
	EvictAfter time.Duration

	// SweepInterval is how often the reaper scans the roster.
	// Default: 60 seconds.
	SweepInterval time.Duration

	// OnAway is called for each editor newly marked away, outside the lock.
	OnAway func(dashboardID, actor string)
}

type key struct {
	dashboard string
	actor     string
}

type editorState struct {
	firstSeen time.Time
	lastSeen  time.Time
	lastTopic string
	widgetID  string
	edits     int64
	away      bool
	awaySince time.Time
}

// Tracker maintains an in-memory roster of dashboard editors.
type Tracker struct {
	mu      sync.RWMutex
	editors map[key]*editorState
	now     func() time.Time

	reaperStop chan struct{}
	reaperDone chan struct{}
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{
		editors: make(map[key]*editorState),
		now:     time.Now,
	}
}

// Record notes an edit. Activities without an actor or dashboard are ignored.
func (t *Tracker) Record(a Activity) {
	if a.Actor == "" || a.DashboardID == "" {
		return
	}

	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()

	k := key{a.DashboardID, a.Actor}
	st, ok := t.editors[k]
	if !ok {
		st = &editorState{firstSeen: now}
		t.editors[k] = st
	}
	if st.away {
		slog.Info("presence: editor back", "dashboard_id", a.DashboardID, "actor", a.Actor)
		st.away = false
		st.awaySince = time.Time{}
	}
	st.lastSeen = now
	st.lastTopic = a.Topic
	st.edits++
	if a.WidgetID != "" {
		st.widgetID = a.WidgetID
	}
}

// Forget drops every editor of a dashboard, as when it is deleted.
func (t *Tracker) Forget(dashboardID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.editors {
		if k.dashboard == dashboardID {
			delete(t.editors, k)
		}
	}
}

// Roster returns the editors of dashboardID, most recently active first.
// Editors idle for longer than staleThreshold are left out; pass 0 to
// include everyone still tracked.
func (t *Tracker) Roster(dashboardID string, staleThreshold time.Duration) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := t.now()
	entries := make([]Entry, 0)
	for k, st := range t.editors {
		if k.dashboard != dashboardID {
			continue
		}
		idle := now.Sub(st.lastSeen)
		if staleThreshold > 0 && idle > staleThreshold {
			continue
		}
		entries = append(entries, Entry{
			DashboardID: k.dashboard,
			Actor:       k.actor,
			FirstSeen:   st.firstSeen,
			LastSeen:    st.lastSeen,
			LastTopic:   st.lastTopic,
			WidgetID:    st.widgetID,
			IdleSecs:    idle.Seconds(),
			EditCount:   st.edits,
			Away:        st.away,
			AwaySince:   st.awaySince,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].LastSeen.Equal(entries[j].LastSeen) {
			return entries[i].LastSeen.After(entries[j].LastSeen)
		}
		return entries[i].Actor < entries[j].Actor
	})
	return entries
}

// StartReaper launches a background goroutine that periodically marks idle
// editors away. Call Stop to shut it down.
func (t *Tracker) StartReaper(cfg *ReaperConfig) {
	if cfg == nil {
		cfg = &ReaperConfig{}
	}
	if cfg.AwayAfter == 0 {
		cfg.AwayAfter = 10 * time.Minute
	}
	if cfg.EvictAfter == 0 {
		cfg.EvictAfter = 30 * time.Minute
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 60 * time.Second
	}

	t.reaperStop = make(chan struct{})
	t.reaperDone = make(chan struct{})
	go t.reapLoop(cfg)
	slog.Info("presence: reaper started",
		"away_after", cfg.AwayAfter,
		"sweep_interval", cfg.SweepInterval)
}

// Stop shuts down the reaper goroutine.
func (t *Tracker) Stop() {
	if t.reaperStop != nil {
		close(t.reaperStop)
		<-t.reaperDone
		t.reaperStop = nil
		t.reaperDone = nil
	}
}

func (t *Tracker) reapLoop(cfg *ReaperConfig) {
	defer close(t.reaperDone)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.reaperStop:
			return
		case <-ticker.C:
			t.sweep(cfg)
		}
	}
}

func (t *Tracker) sweep(cfg *ReaperConfig) {
	now := t.now()
	var newlyAway []key

	t.mu.Lock()
	for k, st := range t.editors {
		if st.away {
			if now.Sub(st.awaySince) > cfg.EvictAfter {
				delete(t.editors, k)
			}
			continue
		}
		if now.Sub(st.lastSeen) > cfg.AwayAfter {
			st.away = true
			st.awaySince = now
			newlyAway = append(newlyAway, k)
		}
	}
	t.mu.Unlock()

	for _, k := range newlyAway {
		slog.Info("presence: editor away",
			"dashboard_id", k.dashboard,
			"actor", k.actor,
			"threshold", cfg.AwayAfter)
		if cfg.OnAway != nil {
			cfg.OnAway(k.dashboard, k.actor)
		}
	}
}
