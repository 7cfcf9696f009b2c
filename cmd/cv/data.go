package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var dataCmd = &cobra.Command{
	Use:     "data <widget>",
	Short:   "Evaluate a chart against its dataset and active filters",
	GroupID: "views",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dashID, err := requireDashboard()
		if err != nil {
			return err
		}
		res, err := canvasClient.WidgetData(context.Background(), dashID, args[0])
		if err != nil {
			return fmt.Errorf("evaluating %s: %w", args[0], err)
		}
		printOr(res, func() { printChartData(os.Stdout, res) })
		return nil
	},
}
