package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/canvas/internal/layout"
	"github.com/alfredjeanlab/canvas/internal/model"
	"github.com/spf13/cobra"
)

var widgetCmd = &cobra.Command{
	Use:     "widget",
	Aliases: []string{"w"},
	Short:   "Add, place and remove widgets",
	GroupID: "widgets",
}

var widgetAddCmd = &cobra.Command{
	Use:   "add <kind>",
	Short: "Add a chart or control widget",
	Long: `Add a chart or control widget to the selected dashboard.

Chart kinds: bar, line, pie, area, scatter, table, kpi, histogram.
Control kinds: text-input, number-input, list-values, slider, date-range, switch.

Without --at the widget is placed at the first free slot.`,
	Example: `  cv widget add bar --title Revenue --at 0,0 --size 4x3
  cv widget add list-values --values Gold,Silver,Bronze`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dashID, err := requireDashboard()
		if err != nil {
			return err
		}
		kind := model.Kind(args[0])
		if !kind.IsValid() {
			return fmt.Errorf("unknown widget kind %q", args[0])
		}
		title, _ := cmd.Flags().GetString("title")
		id, _ := cmd.Flags().GetString("id")
		at, _ := cmd.Flags().GetString("at")
		size, _ := cmd.Flags().GetString("size")
		values, _ := cmd.Flags().GetStringSlice("values")

		w := &model.Widget{ID: id, Kind: kind, Title: title}
		if at != "" {
			x, y, err := parsePair(at, ",")
			if err != nil {
				return fmt.Errorf("--at: %w", err)
			}
			width, height := 4, 3
			if kind.IsControl() {
				width, height = 3, 1
			}
			if size != "" {
				if width, height, err = parsePair(size, "x"); err != nil {
					return fmt.Errorf("--size: %w", err)
				}
			}
			w.Geometry = model.Geometry{X: x, Y: y, Width: width, Height: height}
		} else if size != "" {
			return fmt.Errorf("--size needs --at")
		}
		if kind.IsChart() {
			w.Binding = &model.Binding{}
		} else {
			w.Control = &model.ControlConfig{ValueSource: model.SourceManual, ManualValues: values}
		}

		out, err := canvasClient.AddWidget(context.Background(), dashID, w)
		if err != nil {
			return fmt.Errorf("adding widget: %w", err)
		}
		printOr(out, func() {
			g := out.Geometry
			fmt.Printf("Added %s %s at %d,%d (%dx%d)\n", out.Kind, out.ID, g.X, g.Y, g.Width, g.Height)
		})
		return nil
	},
}

var widgetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the widgets of the selected dashboard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dashID, err := requireDashboard()
		if err != nil {
			return err
		}
		widgets, err := canvasClient.ListWidgets(context.Background(), dashID)
		if err != nil {
			return fmt.Errorf("listing widgets: %w", err)
		}
		printOr(widgets, func() { printWidgetList(os.Stdout, widgets) })
		return nil
	},
}

var widgetShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one widget",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dashID, err := requireDashboard()
		if err != nil {
			return err
		}
		w, err := canvasClient.GetWidget(context.Background(), dashID, args[0])
		if err != nil {
			return fmt.Errorf("getting widget: %w", err)
		}
		printOr(w, func() { printWidget(os.Stdout, w) })
		return nil
	},
}

var widgetUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change a widget's title, or patch it from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dashID, err := requireDashboard()
		if err != nil {
			return err
		}
		var patch model.WidgetPatch
		if from, _ := cmd.Flags().GetString("from"); from != "" {
			data, err := readInput(from)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(data, &patch); err != nil {
				return fmt.Errorf("parsing %s: %w", from, err)
			}
		}
		if cmd.Flags().Changed("title") {
			title, _ := cmd.Flags().GetString("title")
			patch.Title = &title
		}
		if patch.Empty() {
			return fmt.Errorf("nothing to update; pass --title or --from")
		}
		w, err := canvasClient.UpdateWidget(context.Background(), dashID, args[0], &patch)
		if err != nil {
			return fmt.Errorf("updating widget: %w", err)
		}
		printOr(w, func() { printWidget(os.Stdout, w) })
		return nil
	},
}

var widgetMoveCmd = &cobra.Command{
	Use:   "move <id> <x,y>",
	Short: "Move a widget to a grid position",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dashID, err := requireDashboard()
		if err != nil {
			return err
		}
		x, y, err := parsePair(args[1], ",")
		if err != nil {
			return err
		}
		g, err := canvasClient.MoveWidget(context.Background(), dashID, args[0], x, y)
		if err != nil {
			return fmt.Errorf("moving widget: %w", err)
		}
		printGeometry(args[0], g)
		return nil
	},
}

var widgetResizeCmd = &cobra.Command{
	Use:   "resize <id> <WxH>",
	Short: "Resize a widget in grid cells",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dashID, err := requireDashboard()
		if err != nil {
			return err
		}
		width, height, err := parsePair(args[1], "x")
		if err != nil {
			return err
		}
		g, err := canvasClient.ResizeWidget(context.Background(), dashID, args[0], width, height)
		if err != nil {
			return fmt.Errorf("resizing widget: %w", err)
		}
		printGeometry(args[0], g)
		return nil
	},
}

var widgetDragCmd = &cobra.Command{
	Use:   "drag <id>",
	Short: "Apply a pixel drag or resize gesture, snapped to the grid",
	Example: `  cv widget drag w1 --dx 160 --dy 95 --cell-width 80 --row-height 40
  cv widget drag w1 --resize --dx 80`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dashID, err := requireDashboard()
		if err != nil {
			return err
		}
		dx, _ := cmd.Flags().GetFloat64("dx")
		dy, _ := cmd.Flags().GetFloat64("dy")
		cw, _ := cmd.Flags().GetFloat64("cell-width")
		rh, _ := cmd.Flags().GetFloat64("row-height")
		resize, _ := cmd.Flags().GetBool("resize")

		gs := layout.Gesture{WidgetID: args[0], Kind: layout.GestureMove, DX: dx, DY: dy}
		if resize {
			gs.Kind = layout.GestureResize
		}
		moved, err := canvasClient.ApplyGesture(context.Background(), dashID, gs, layout.Metrics{CellWidth: cw, RowHeight: rh})
		if err != nil {
			return fmt.Errorf("applying gesture: %w", err)
		}
		g, ok := moved[args[0]]
		if !ok {
			printOr(moved, func() { fmt.Println("No change") })
			return nil
		}
		printGeometry(args[0], g)
		return nil
	},
}

var widgetLayoutCmd = &cobra.Command{
	Use:   "layout <file>",
	Short: "Apply several geometry changes at once (- reads stdin)",
	Long: `Apply a batch of geometry changes as one step. The file holds a JSON
array of {"id": ..., "geometry": {...}} objects. Widgets may trade places
within one batch; only the final arrangement must be free of overlaps.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dashID, err := requireDashboard()
		if err != nil {
			return err
		}
		data, err := readInput(args[0])
		if err != nil {
			return err
		}
		var changes []layout.Change
		if err := json.Unmarshal(data, &changes); err != nil {
			return fmt.Errorf("parsing %s: %w", args[0], err)
		}
		moved, err := canvasClient.ApplyLayout(context.Background(), dashID, changes)
		if err != nil {
			return fmt.Errorf("applying layout: %w", err)
		}
		printOr(moved, func() {
			for _, id := range sortedKeys(moved) {
				g := moved[id]
				fmt.Printf("%s -> %d,%d (%dx%d)\n", id, g.X, g.Y, g.Width, g.Height)
			}
		})
		return nil
	},
}

var widgetDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a widget; controls drop it from their targets",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dashID, err := requireDashboard()
		if err != nil {
			return err
		}
		if err := canvasClient.RemoveWidget(context.Background(), dashID, args[0]); err != nil {
			return fmt.Errorf("removing widget: %w", err)
		}
		printOr(map[string]string{"deleted": args[0]}, func() {
			fmt.Printf("Removed widget %s\n", args[0])
		})
		return nil
	},
}

func printGeometry(id string, g model.Geometry) {
	printOr(map[string]model.Geometry{id: g}, func() {
		fmt.Printf("%s at %d,%d (%dx%d)\n", id, g.X, g.Y, g.Width, g.Height)
	})
}

// parsePair parses two integers separated by sep, as in "3,2" or "4x3".
func parsePair(s, sep string) (int, int, error) {
	a, b, ok := strings.Cut(s, sep)
	if !ok {
		return 0, 0, fmt.Errorf("expected two numbers separated by %q, got %q", sep, s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return 0, 0, fmt.Errorf("parsing %q: %w", s, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(b))
	if err != nil {
		return 0, 0, fmt.Errorf("parsing %q: %w", s, err)
	}
	return x, y, nil
}

func init() {
	widgetAddCmd.Flags().String("title", "", "widget title")
	widgetAddCmd.Flags().String("id", "", "widget ID (generated when empty)")
	widgetAddCmd.Flags().String("at", "", "grid position as x,y")
	widgetAddCmd.Flags().String("size", "", "size in cells as WxH (needs --at)")
	widgetAddCmd.Flags().StringSlice("values", nil, "manual values for a control")

	widgetUpdateCmd.Flags().String("title", "", "new title")
	widgetUpdateCmd.Flags().String("from", "", "JSON patch file (- reads stdin)")

	widgetDragCmd.Flags().Float64("dx", 0, "horizontal pixel delta")
	widgetDragCmd.Flags().Float64("dy", 0, "vertical pixel delta")
	widgetDragCmd.Flags().Float64("cell-width", 80, "rendered cell width in pixels")
	widgetDragCmd.Flags().Float64("row-height", 40, "rendered row height in pixels")
	widgetDragCmd.Flags().Bool("resize", false, "treat the gesture as a resize")

	widgetCmd.AddCommand(widgetAddCmd)
	widgetCmd.AddCommand(widgetListCmd)
	widgetCmd.AddCommand(widgetShowCmd)
	widgetCmd.AddCommand(widgetUpdateCmd)
	widgetCmd.AddCommand(widgetMoveCmd)
	widgetCmd.AddCommand(widgetResizeCmd)
	widgetCmd.AddCommand(widgetDragCmd)
	widgetCmd.AddCommand(widgetLayoutCmd)
	widgetCmd.AddCommand(widgetDeleteCmd)
}
