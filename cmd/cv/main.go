package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/alfredjeanlab/canvas/internal/client"
	"github.com/alfredjeanlab/canvas/internal/ui"
	"github.com/spf13/cobra"
)

var (
	httpURL    string
	token      string
	jsonOutput bool
	noColor    bool
	actor      string
	dashboard  string

	canvasClient client.CanvasClient
)

func defaultActor() string {
	if s := os.Getenv("CANVAS_ACTOR"); s != "" {
		return s
	}
	out, err := exec.Command("git", "config", "user.name").Output()
	if err == nil {
		name := strings.TrimSpace(string(out))
		if name != "" {
			return name
		}
	}
	return "unknown"
}

// requireDashboard returns the dashboard selected with --dashboard.
func requireDashboard() (string, error) {
	if dashboard == "" {
		return "", fmt.Errorf("no dashboard selected; pass --dashboard or set CANVAS_DASHBOARD")
	}
	return dashboard, nil
}

func defaultHTTPURL() string {
	if s := os.Getenv("CANVAS_HTTP_URL"); s != "" {
		return s
	}
	if u := activeRemoteURL(); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func defaultToken() string {
	if s := os.Getenv("CANVAS_TOKEN"); s != "" {
		return s
	}
	return activeRemoteToken()
}

var rootCmd = &cobra.Command{
	Use:           "cv <command>",
	Short:         "CLI client for the Canvas dashboard service",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor {
			ui.ForceNoColor()
		}
		canvasClient = client.NewHTTPClient(httpURL, token, actor)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if canvasClient != nil {
			canvasClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "HTTP server URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", defaultToken(), "bearer token")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", defaultActor(), "actor name recorded on events")
	rootCmd.PersistentFlags().StringVarP(&dashboard, "dashboard", "d", os.Getenv("CANVAS_DASHBOARD"), "dashboard ID for widget commands")

	rootCmd.AddGroup(
		&cobra.Group{ID: "dashboards", Title: "Dashboards:"},
		&cobra.Group{ID: "widgets", Title: "Widgets:"},
		&cobra.Group{ID: "views", Title: "Views:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Dashboards
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(datasetCmd)

	// Widgets
	rootCmd.AddCommand(widgetCmd)
	rootCmd.AddCommand(bindCmd)
	rootCmd.AddCommand(controlCmd)

	// Views
	rootCmd.AddCommand(dataCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
