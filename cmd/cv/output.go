package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/alfredjeanlab/canvas/internal/evaluate"
	"github.com/alfredjeanlab/canvas/internal/model"
	"github.com/alfredjeanlab/canvas/internal/propagation"
	"github.com/alfredjeanlab/canvas/internal/ui"
)

const timeLayout = "2006-01-02 15:04:05"

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

// printOr prints v as JSON under --json, otherwise calls table.
func printOr(v any, table func()) {
	if jsonOutput {
		printJSON(v)
		return
	}
	table()
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

func printDashboardList(w io.Writer, list []*model.DashboardSummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCOLUMNS\tWIDGETS\tUPDATED")
	for _, d := range list {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
			d.ID, truncate(d.Name, 40), d.Columns, d.WidgetCount, d.UpdatedAt.Format(timeLayout))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d dashboards\n", len(list))
}

func printDashboard(w io.Writer, d *model.Dashboard) {
	fmt.Fprintf(w, "ID:          %s\n", d.ID)
	fmt.Fprintf(w, "Name:        %s\n", d.Name)
	fmt.Fprintf(w, "Columns:     %d\n", d.Columns)
	if d.CreatedBy != "" {
		fmt.Fprintf(w, "Created By:  %s\n", d.CreatedBy)
	}
	if !d.CreatedAt.IsZero() {
		fmt.Fprintf(w, "Created At:  %s\n", d.CreatedAt.Format(timeLayout))
	}
	if !d.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "Updated At:  %s\n", d.UpdatedAt.Format(timeLayout))
	}
	if len(d.Widgets) == 0 {
		return
	}
	fmt.Fprintln(w)
	printWidgetList(w, d.Widgets)
	fmt.Fprintln(w)
	printGrid(w, d.Columns, d.Widgets)
}

func printWidgetList(w io.Writer, widgets []*model.Widget) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tGEOMETRY\tTITLE\tDETAIL")
	for _, wd := range widgets {
		g := wd.Geometry
		fmt.Fprintf(tw, "%s\t%s\t%d,%d %dx%d\t%s\t%s\n",
			wd.ID, wd.Kind, g.X, g.Y, g.Width, g.Height, truncate(wd.Title, 30), widgetDetail(wd))
	}
	tw.Flush()
}

// widgetDetail summarizes what a widget is wired to in one short line.
func widgetDetail(wd *model.Widget) string {
	switch {
	case wd.Binding != nil:
		b := wd.Binding
		s := b.DatasetID
		if b.Dimension != "" {
			s += " by " + b.Dimension
		}
		if fields := b.MeasureFields(); len(fields) > 0 {
			s += ": " + strings.Join(fields, ", ")
		}
		if len(wd.Filters) > 0 {
			s += fmt.Sprintf(" (%d filters)", len(wd.Filters))
		}
		return s
	case wd.Control != nil:
		c := wd.Control
		s := string(c.ValueSource)
		if c.CurrentValue != nil {
			s += fmt.Sprintf(" = %v", c.CurrentValue)
		}
		if n := len(c.Targets); n > 0 {
			s += fmt.Sprintf(" -> %d targets", n)
		}
		if n := len(c.SyncedControlIDs); n > 0 {
			s += fmt.Sprintf(" ~ %d synced", n)
		}
		return s
	}
	return ""
}

func printWidget(w io.Writer, wd *model.Widget) {
	g := wd.Geometry
	fmt.Fprintf(w, "ID:          %s\n", wd.ID)
	fmt.Fprintf(w, "Kind:        %s\n", wd.Kind)
	if wd.Title != "" {
		fmt.Fprintf(w, "Title:       %s\n", wd.Title)
	}
	fmt.Fprintf(w, "Geometry:    x=%d y=%d %dx%d\n", g.X, g.Y, g.Width, g.Height)
	if b := wd.Binding; b != nil {
		fmt.Fprintf(w, "Dataset:     %s\n", b.DatasetID)
		if b.Dimension != "" {
			fmt.Fprintf(w, "Dimension:   %s\n", b.Dimension)
		}
		for _, m := range b.Measures {
			fmt.Fprintf(w, "Measure:     %s (%s, %s, %s)\n", m.Field, m.Aggregation, m.Transform, m.Format.Kind)
		}
	}
	if c := wd.Control; c != nil {
		fmt.Fprintf(w, "Source:      %s\n", c.ValueSource)
		if c.SourceDataset != "" {
			fmt.Fprintf(w, "Column:      %s.%s\n", c.SourceDataset, c.SourceColumn)
		}
		if len(c.ManualValues) > 0 {
			fmt.Fprintf(w, "Values:      %s\n", strings.Join(c.ManualValues, ", "))
		}
		if c.CurrentValue != nil {
			fmt.Fprintf(w, "Value:       %v\n", c.CurrentValue)
		}
		for _, t := range c.Targets {
			fmt.Fprintf(w, "Target:      %s%s\n", t.ElementID, mappingSuffix(t.ColumnMapping))
		}
		if len(c.SyncedControlIDs) > 0 {
			fmt.Fprintf(w, "Synced:      %s\n", strings.Join(c.SyncedControlIDs, ", "))
		}
	}
	for _, id := range sortedKeys(wd.Filters) {
		p := wd.Filters[id]
		fmt.Fprintf(w, "Filter:      %s %s %v (from %s)\n", p.Column, p.Op, p.Value, id)
	}
}

func mappingSuffix(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	parts := make([]string, 0, len(m))
	for _, ds := range sortedKeys(m) {
		parts = append(parts, ds+"="+m[ds])
	}
	return " [" + strings.Join(parts, ", ") + "]"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// printGrid draws the canvas as a character map, one cell per column and
// row. Charts are drawn with upper-case letters in list order, controls
// with lower-case ones.
func printGrid(w io.Writer, columns int, widgets []*model.Widget) {
	rows := 0
	for _, wd := range widgets {
		rows = max(rows, wd.Geometry.Bottom())
	}
	if columns <= 0 || rows == 0 {
		return
	}
	cells := make([][]rune, rows)
	for y := range cells {
		cells[y] = []rune(strings.Repeat(".", columns))
	}
	for i, wd := range widgets {
		mark := gridMark(wd, i)
		g := wd.Geometry
		for y := g.Y; y < g.Bottom() && y < rows; y++ {
			for x := g.X; x < g.Right() && x < columns; x++ {
				cells[y][x] = mark
			}
		}
	}
	for _, row := range cells {
		fmt.Fprintln(w, ui.RenderMuted("|")+string(row)+ui.RenderMuted("|"))
	}
}

func gridMark(wd *model.Widget, i int) rune {
	const marks = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	if wd.Kind.IsControl() {
		return rune(marks[(i+26)%len(marks)])
	}
	return rune(marks[i%len(marks)])
}

// printChartData prints evaluated chart data as a table of labels by
// measure, formatted per measure.
func printChartData(w io.Writer, res *evaluate.Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := []string{strings.ToUpper(res.Dimension)}
	if res.Dimension == "" {
		header[0] = "LABEL"
	}
	for _, s := range res.Series {
		header = append(header, strings.ToUpper(fmt.Sprintf("%s(%s)", s.Aggregation, s.Field)))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for i, label := range res.Labels {
		row := []string{fmt.Sprint(label)}
		for _, s := range res.Series {
			cell := "-"
			if i < len(s.Values) && s.Values[i] != nil {
				cell = s.Format.Apply(*s.Values[i])
			}
			if i < len(s.Colors) && s.Colors[i] != "" {
				cell += " [" + s.Colors[i] + "]"
			}
			row = append(row, cell)
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
	for _, rl := range res.ReferenceLines {
		fmt.Fprintf(w, "reference %s: %v\n", rl.Label, rl.Value)
	}
	if len(res.Filters) > 0 {
		parts := make([]string, 0, len(res.Filters))
		for _, p := range res.Filters {
			parts = append(parts, fmt.Sprintf("%s %s %v", p.Column, p.Op, p.Value))
		}
		fmt.Fprintf(w, "filtered by %s\n", strings.Join(parts, "; "))
	}
	fmt.Fprintf(w, "%d rows\n", res.RowCount)
}

func printPass(w io.Writer, pass *propagation.Pass) {
	if !pass.Changed {
		fmt.Fprintln(w, ui.RenderWarn(fmt.Sprintf("%s already holds %v; nothing changed", pass.ControlID, pass.Value)))
		return
	}
	fmt.Fprintf(w, "%s = %v\n", ui.RenderAccent(pass.ControlID), pass.Value)
	if len(pass.Assigned) > 1 {
		fmt.Fprintf(w, "  synced: %s\n", strings.Join(pass.Assigned[1:], ", "))
	}
	for _, a := range pass.Affected {
		if a.Predicate == nil {
			fmt.Fprintf(w, "  %s: filter from %s cleared\n", a.WidgetID, a.ControlID)
			continue
		}
		fmt.Fprintf(w, "  %s: %s %s %v\n", a.WidgetID, a.Predicate.Column, a.Predicate.Op, a.Predicate.Value)
	}
}
