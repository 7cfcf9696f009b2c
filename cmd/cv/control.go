package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/alfredjeanlab/canvas/internal/control"
	"github.com/alfredjeanlab/canvas/internal/model"
	"github.com/spf13/cobra"
)

var controlCmd = &cobra.Command{
	Use:     "control",
	Aliases: []string{"ctl"},
	Short:   "Wire controls to charts and set their values",
	GroupID: "widgets",
}

var controlTargetCmd = &cobra.Command{
	Use:   "target <control> <widget>",
	Short: "Make a control filter another widget",
	Example: `  cv control target c1 w1
  cv control target c1 w2 --map region=sales_region`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mapping, err := parseMapping(cmd)
		if err != nil {
			return err
		}
		return editControl(func(ctx context.Context, dashID string) (*model.ControlConfig, error) {
			return canvasClient.AddTarget(ctx, dashID, args[0], model.Target{ElementID: args[1], ColumnMapping: mapping})
		})
	},
}

var controlMapCmd = &cobra.Command{
	Use:   "map <control> <widget>",
	Short: "Replace the column mapping of an existing target",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mapping, err := parseMapping(cmd)
		if err != nil {
			return err
		}
		if len(mapping) == 0 {
			return fmt.Errorf("pass at least one --map source=target")
		}
		return editControl(func(ctx context.Context, dashID string) (*model.ControlConfig, error) {
			return canvasClient.SetColumnMapping(ctx, dashID, args[0], args[1], mapping)
		})
	},
}

var controlUntargetCmd = &cobra.Command{
	Use:   "untarget <control> <widget>",
	Short: "Stop a control from filtering a widget",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editControl(func(ctx context.Context, dashID string) (*model.ControlConfig, error) {
			return canvasClient.RemoveTarget(ctx, dashID, args[0], args[1])
		})
	},
}

var controlSyncCmd = &cobra.Command{
	Use:   "sync <control> <peer>",
	Short: "Link two controls so they always share a value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editControl(func(ctx context.Context, dashID string) (*model.ControlConfig, error) {
			return canvasClient.Sync(ctx, dashID, args[0], args[1])
		})
	},
}

var controlUnsyncCmd = &cobra.Command{
	Use:   "unsync <control> <peer>",
	Short: "Remove the link between two controls",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editControl(func(ctx context.Context, dashID string) (*model.ControlConfig, error) {
			return canvasClient.Unsync(ctx, dashID, args[0], args[1])
		})
	},
}

var controlSourceCmd = &cobra.Command{
	Use:   "source <control> <manual|column|preset>",
	Short: "Choose where a control's selectable values come from",
	Example: `  cv control source c1 manual --values Gold,Silver
  cv control source c1 column --dataset sales --column region
  cv control source c2 preset --preset last_30_days`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		src := control.Source{ValueSource: model.ValueSource(args[1])}
		if !src.ValueSource.IsValid() {
			return fmt.Errorf("unknown value source %q", args[1])
		}
		src.ManualValues, _ = cmd.Flags().GetStringSlice("values")
		src.Dataset, _ = cmd.Flags().GetString("dataset")
		src.Column, _ = cmd.Flags().GetString("column")
		src.Preset, _ = cmd.Flags().GetString("preset")
		return editControl(func(ctx context.Context, dashID string) (*model.ControlConfig, error) {
			return canvasClient.SetSource(ctx, dashID, args[0], src)
		})
	},
}

var controlOptionsCmd = &cobra.Command{
	Use:   "options <control>",
	Short: "List the values a control offers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dashID, err := requireDashboard()
		if err != nil {
			return err
		}
		vals, err := canvasClient.Options(context.Background(), dashID, args[0])
		if err != nil {
			return fmt.Errorf("listing options: %w", err)
		}
		printOr(vals, func() {
			if len(vals) == 0 {
				fmt.Println("No options")
				return
			}
			for _, v := range vals {
				fmt.Println(v)
			}
		})
		return nil
	},
}

var controlSetCmd = &cobra.Command{
	Use:   "set <control> [value]",
	Short: "Set a control's value and propagate it",
	Long: `Set a control's value. Synced controls take the same value and every
target widget gets a new filter. The value is read as JSON when it parses
(numbers, true/false, arrays, objects) and as a plain string otherwise.
Omit the value or pass --clear to remove the filter.`,
	Example: `  cv control set c1 West
  cv control set c2 '["2026-01-01","2026-03-31"]'
  cv control set c1 --clear`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dashID, err := requireDashboard()
		if err != nil {
			return err
		}
		clearValue, _ := cmd.Flags().GetBool("clear")
		var value any
		switch {
		case clearValue && len(args) == 2:
			return fmt.Errorf("--clear takes no value")
		case len(args) == 2:
			value = parseValue(args[1])
		}
		pass, err := canvasClient.SetValue(context.Background(), dashID, args[0], value)
		if err != nil {
			return fmt.Errorf("setting value: %w", err)
		}
		printOr(pass, func() { printPass(os.Stdout, pass) })
		return nil
	},
}

func editControl(fn func(ctx context.Context, dashID string) (*model.ControlConfig, error)) error {
	dashID, err := requireDashboard()
	if err != nil {
		return err
	}
	c, err := fn(context.Background(), dashID)
	if err != nil {
		return err
	}
	printOr(c, func() { printControl(c) })
	return nil
}

func printControl(c *model.ControlConfig) {
	fmt.Printf("source:  %s", c.ValueSource)
	switch c.ValueSource {
	case model.SourceColumn:
		fmt.Printf(" (%s.%s)", c.SourceDataset, c.SourceColumn)
	case model.SourcePreset:
		fmt.Printf(" (%s)", c.Preset)
	}
	fmt.Println()
	if c.CurrentValue != nil {
		fmt.Printf("value:   %v\n", c.CurrentValue)
	}
	if len(c.SyncedControlIDs) > 0 {
		fmt.Printf("synced:  %s\n", strings.Join(c.SyncedControlIDs, ", "))
	}
	for _, t := range c.Targets {
		fmt.Printf("target:  %s%s\n", t.ElementID, mappingSuffix(t.ColumnMapping))
	}
}

// parseValue reads s as JSON when it parses, as a plain string otherwise.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}

func parseMapping(cmd *cobra.Command) (map[string]string, error) {
	pairs, _ := cmd.Flags().GetStringSlice("map")
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		src, dst, ok := strings.Cut(p, "=")
		if !ok || src == "" || dst == "" {
			return nil, fmt.Errorf("invalid --map %q (want source=target)", p)
		}
		out[src] = dst
	}
	return out, nil
}

func init() {
	controlTargetCmd.Flags().StringSlice("map", nil, "column mapping as source=target (repeatable)")
	controlMapCmd.Flags().StringSlice("map", nil, "column mapping as source=target (repeatable)")

	controlSourceCmd.Flags().StringSlice("values", nil, "manual values")
	controlSourceCmd.Flags().String("dataset", "", "source dataset for a column source")
	controlSourceCmd.Flags().String("column", "", "source column for a column source")
	controlSourceCmd.Flags().String("preset", "", "preset name")

	controlSetCmd.Flags().Bool("clear", false, "clear the value")

	controlCmd.AddCommand(controlTargetCmd)
	controlCmd.AddCommand(controlMapCmd)
	controlCmd.AddCommand(controlUntargetCmd)
	controlCmd.AddCommand(controlSyncCmd)
	controlCmd.AddCommand(controlUnsyncCmd)
	controlCmd.AddCommand(controlSourceCmd)
	controlCmd.AddCommand(controlOptionsCmd)
	controlCmd.AddCommand(controlSetCmd)
}
