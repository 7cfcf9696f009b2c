package main

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/canvas/internal/ui"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the canvas service",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := canvasClient.Health(context.Background())
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}

		printOr(map[string]string{"status": status}, func() {
			if status == "ok" {
				fmt.Printf("Health: %s\n", ui.RenderOK(status))
			} else {
				fmt.Printf("Health: %s\n", ui.RenderWarn(status))
			}
		})

		if status != "ok" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		return nil
	},
}
