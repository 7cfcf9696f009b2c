package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/canvas/internal/binding"
	"github.com/alfredjeanlab/canvas/internal/model"
	"github.com/spf13/cobra"
)

var bindCmd = &cobra.Command{
	Use:     "bind",
	Short:   "Bind chart widgets to dataset fields",
	GroupID: "widgets",
}

var bindDatasetCmd = &cobra.Command{
	Use:   "dataset <widget> <dataset>",
	Short: "Switch a chart to another dataset (resets its binding)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editBinding(args[0], func(ctx context.Context, dashID string) (*model.Binding, error) {
			return canvasClient.SetDataset(ctx, dashID, args[0], args[1])
		})
	},
}

var bindDimensionCmd = &cobra.Command{
	Use:   "dimension <widget> <field>",
	Short: "Set the grouping dimension of a chart",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editBinding(args[0], func(ctx context.Context, dashID string) (*model.Binding, error) {
			return canvasClient.SetDimension(ctx, dashID, args[0], args[1])
		})
	},
}

var bindMeasureCmd = &cobra.Command{
	Use:   "measure <widget> <field>",
	Short: "Add a measure, or change how an existing one is aggregated and shown",
	Example: `  cv bind measure w1 revenue
  cv bind measure w1 revenue --agg avg --format currency --decimals 2
  cv bind measure w1 share --transform percent_of_total`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, err := measurePatchFromFlags(cmd)
		if err != nil {
			return err
		}
		return editBinding(args[0], func(ctx context.Context, dashID string) (*model.Binding, error) {
			w, err := canvasClient.GetWidget(ctx, dashID, args[0])
			if err != nil {
				return nil, err
			}
			b := w.Binding
			if !hasMeasure(b, args[1]) {
				if b, err = canvasClient.AddMeasure(ctx, dashID, args[0], args[1]); err != nil {
					return nil, err
				}
			}
			if patch == nil {
				return b, nil
			}
			return canvasClient.UpdateMeasure(ctx, dashID, args[0], args[1], *patch)
		})
	},
}

var bindUnmeasureCmd = &cobra.Command{
	Use:   "unmeasure <widget> <field>",
	Short: "Remove a measure from a chart",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editBinding(args[0], func(ctx context.Context, dashID string) (*model.Binding, error) {
			return canvasClient.RemoveMeasure(ctx, dashID, args[0], args[1])
		})
	},
}

func editBinding(widgetID string, fn func(ctx context.Context, dashID string) (*model.Binding, error)) error {
	dashID, err := requireDashboard()
	if err != nil {
		return err
	}
	b, err := fn(context.Background(), dashID)
	if err != nil {
		return fmt.Errorf("binding %s: %w", widgetID, err)
	}
	printOr(b, func() { printBinding(b) })
	return nil
}

func printBinding(b *model.Binding) {
	if b == nil {
		fmt.Println("(unbound)")
		return
	}
	fmt.Printf("dataset:   %s\n", orNone(b.DatasetID))
	fmt.Printf("dimension: %s\n", orNone(b.Dimension))
	if len(b.Measures) == 0 {
		fmt.Println("measures:  -")
		return
	}
	fmt.Println("measures:")
	for _, m := range b.Measures {
		fmt.Printf("  %-16s %s %s %s\n", m.Field, m.Aggregation, m.Transform, m.Format.Kind)
	}
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func hasMeasure(b *model.Binding, field string) bool {
	return b != nil && b.MeasureIndex(field) >= 0
}

// measurePatchFromFlags returns nil when no measure flag was given.
func measurePatchFromFlags(cmd *cobra.Command) (*binding.MeasurePatch, error) {
	var p binding.MeasurePatch
	set := false
	if cmd.Flags().Changed("agg") {
		s, _ := cmd.Flags().GetString("agg")
		a := model.Aggregation(strings.ToLower(s))
		if !a.IsValid() {
			return nil, fmt.Errorf("unknown aggregation %q", s)
		}
		p.Aggregation = &a
		set = true
	}
	if cmd.Flags().Changed("transform") {
		s, _ := cmd.Flags().GetString("transform")
		t := model.Transform(strings.ToLower(s))
		if !t.IsValid() {
			return nil, fmt.Errorf("unknown transform %q", s)
		}
		p.Transform = &t
		set = true
	}
	if cmd.Flags().Changed("format") || cmd.Flags().Changed("decimals") {
		kind, _ := cmd.Flags().GetString("format")
		decimals, _ := cmd.Flags().GetInt("decimals")
		f := model.Format{Kind: model.FormatKind(strings.ToLower(kind)), Decimals: decimals}
		if !f.Kind.IsValid() {
			return nil, fmt.Errorf("unknown format %q", kind)
		}
		p.Format = &f
		set = true
	}
	if !set {
		return nil, nil
	}
	return &p, nil
}

func init() {
	bindMeasureCmd.Flags().String("agg", "", "aggregation: sum, avg, min, max, count, median, geomean")
	bindMeasureCmd.Flags().String("transform", "", "transform: none, cumulative, percent_of_total")
	bindMeasureCmd.Flags().String("format", "number", "format: number, currency, percent")
	bindMeasureCmd.Flags().Int("decimals", 0, "decimal places shown")

	bindCmd.AddCommand(bindDatasetCmd)
	bindCmd.AddCommand(bindDimensionCmd)
	bindCmd.AddCommand(bindMeasureCmd)
	bindCmd.AddCommand(bindUnmeasureCmd)
}
