package sync

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/canvas/internal/model"
	"github.com/alfredjeanlab/canvas/internal/store"
)

// Header is the first JSONL record written by ExportJSONL.
type Header struct {
	Version        string    `json:"version"`
	Type           string    `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
	DashboardCount int       `json:"dashboard_count"`
	WidgetCount    int       `json:"widget_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	exportVersion   = "1"
	recordHeader    = "header"
	recordDashboard = "dashboard"
)

// ExportJSONL writes every dashboard in the store, widgets included, as JSONL
// to w. Dashboards are sorted by ID and widgets keep their stored order.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	list, err := s.ListDashboards(ctx)
	if err != nil {
		return fmt.Errorf("list dashboards: %w", err)
	}

	dashboards := make([]*model.Dashboard, 0, len(list))
	widgets := 0
	for _, sum := range list {
		d, err := s.GetDashboard(ctx, sum.ID)
		if err != nil {
			return fmt.Errorf("get dashboard %s: %w", sum.ID, err)
		}
		widgets += len(d.Widgets)
		dashboards = append(dashboards, d)
	}
	sort.Slice(dashboards, func(i, j int) bool {
		return dashboards[i].ID < dashboards[j].ID
	})

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(Header{
		Version:        exportVersion,
		Type:           recordHeader,
		Timestamp:      time.Now().UTC(),
		DashboardCount: len(dashboards),
		WidgetCount:    widgets,
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, d := range dashboards {
		data, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("encode dashboard %s: %w", d.ID, err)
		}
		if err := enc.Encode(record{Type: recordDashboard, Data: data}); err != nil {
			return fmt.Errorf("encode dashboard %s: %w", d.ID, err)
		}
	}
	return nil
}

// ReadJSONL parses an export written by ExportJSONL. The header must come
// first; record types other than dashboard are skipped.
func ReadJSONL(r io.Reader) (*Header, []*model.Dashboard, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var h *Header
	var out []*model.Dashboard
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		if h == nil {
			var hdr Header
			if err := json.Unmarshal(raw, &hdr); err != nil || hdr.Type != recordHeader {
				return nil, nil, fmt.Errorf("line %d: missing export header", line)
			}
			if hdr.Version != exportVersion {
				return nil, nil, fmt.Errorf("line %d: unsupported export version %q", line, hdr.Version)
			}
			h = &hdr
			continue
		}
		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", line, err)
		}
		if rec.Type != recordDashboard {
			continue
		}
		var d model.Dashboard
		if err := json.Unmarshal(rec.Data, &d); err != nil {
			return nil, nil, fmt.Errorf("line %d: decode dashboard: %w", line, err)
		}
		out = append(out, &d)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("read export: %w", err)
	}
	if h == nil {
		return nil, nil, fmt.Errorf("empty export")
	}
	return h, out, nil
}

// exportHeader decodes the header line of an export.
func exportHeader(data []byte) (Header, bool) {
	first, _, _ := bytes.Cut(data, []byte("\n"))
	var h Header
	if err := json.Unmarshal(first, &h); err != nil || h.Type != recordHeader {
		return Header{}, false
	}
	return h, true
}
