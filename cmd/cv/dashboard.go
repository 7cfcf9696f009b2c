package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/canvas/internal/model"
	cvsync "github.com/alfredjeanlab/canvas/internal/sync"
	"github.com/spf13/cobra"
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	Aliases: []string{"db"},
	Short:   "Create, inspect and delete dashboards",
	GroupID: "dashboards",
}

var dashboardCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an empty dashboard, or import one from a JSON file",
	Example: `  cv dashboard create "Quarterly sales" --columns 12
  cv dashboard create --from board.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		columns, _ := cmd.Flags().GetInt("columns")
		id, _ := cmd.Flags().GetString("id")

		d := &model.Dashboard{}
		if from != "" {
			data, err := readInput(from)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(data, d); err != nil {
				return fmt.Errorf("parsing %s: %w", from, err)
			}
		}
		if len(args) == 1 {
			d.Name = args[0]
		}
		if d.Name == "" {
			return fmt.Errorf("a dashboard name is required")
		}
		if cmd.Flags().Changed("columns") || d.Columns == 0 {
			d.Columns = columns
		}
		if id != "" {
			d.ID = id
		}
		d.CreatedBy = actor

		out, err := canvasClient.CreateDashboard(context.Background(), d)
		if err != nil {
			return fmt.Errorf("creating dashboard: %w", err)
		}
		printOr(out, func() {
			fmt.Printf("Created dashboard %s (%d columns, %d widgets)\n", out.ID, out.Columns, len(out.Widgets))
		})
		return nil
	},
}

var dashboardListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dashboards, most recently updated first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := canvasClient.ListDashboards(context.Background())
		if err != nil {
			return fmt.Errorf("listing dashboards: %w", err)
		}
		printOr(list, func() { printDashboardList(os.Stdout, list) })
		return nil
	},
}

var dashboardShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a dashboard with its widgets and grid",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := dashboardArg(args)
		if err != nil {
			return err
		}
		d, err := canvasClient.GetDashboard(context.Background(), id)
		if err != nil {
			return fmt.Errorf("getting dashboard: %w", err)
		}
		printOr(d, func() { printDashboard(os.Stdout, d) })
		return nil
	},
}

var dashboardDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a dashboard",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := canvasClient.DeleteDashboard(context.Background(), args[0]); err != nil {
			return fmt.Errorf("deleting dashboard: %w", err)
		}
		printOr(map[string]string{"deleted": args[0]}, func() {
			fmt.Printf("Deleted dashboard %s\n", args[0])
		})
		return nil
	},
}

var dashboardEventsCmd = &cobra.Command{
	Use:   "events [id]",
	Short: "Show the recorded event history of a dashboard",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := dashboardArg(args)
		if err != nil {
			return err
		}
		evts, err := canvasClient.GetEvents(context.Background(), id)
		if err != nil {
			return fmt.Errorf("getting events: %w", err)
		}
		printOr(evts, func() {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTIME\tTOPIC\tWIDGET\tACTOR")
			for _, e := range evts {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", e.ID, e.CreatedAt.Format(timeLayout), e.Topic, e.WidgetID, e.Actor)
			}
			w.Flush()
		})
		return nil
	},
}

var dashboardWhoCmd = &cobra.Command{
	Use:   "who [id]",
	Short: "Show who has been editing a dashboard",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := dashboardArg(args)
		if err != nil {
			return err
		}
		eds, err := canvasClient.Presence(context.Background(), id)
		if err != nil {
			return fmt.Errorf("getting presence: %w", err)
		}
		printOr(eds, func() {
			if len(eds) == 0 {
				fmt.Println("Nobody has edited this dashboard recently")
				return
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ACTOR	IDLE	EDITS	LAST	WIDGET")
			for _, e := range eds {
				idle := (time.Duration(e.IdleSecs) * time.Second).String()
				if e.Away {
					idle += " (away)"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", e.Actor, idle, e.EditCount, e.LastTopic, e.WidgetID)
			}
			w.Flush()
		})
		return nil
	},
}

var dashboardImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import dashboards from a JSONL export (- reads stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(args[0])
		if err != nil {
			return err
		}
		return importExport(context.Background(), data)
	},
}

var dashboardRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Import the last sync export from S3 or git",
	Example: `  cv dashboard restore --s3-bucket backups --s3-key canvas/dashboards.jsonl
  cv dashboard restore --git-repo ./backup --git-file dashboards.jsonl`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		src, err := restoreSource(ctx, cmd)
		if err != nil {
			return err
		}
		data, err := src.Read(ctx)
		if err != nil {
			return fmt.Errorf("reading export: %w", err)
		}
		return importExport(ctx, data)
	},
}

func restoreSource(ctx context.Context, cmd *cobra.Command) (cvsync.Source, error) {
	bucket, _ := cmd.Flags().GetString("s3-bucket")
	repo, _ := cmd.Flags().GetString("git-repo")
	switch {
	case bucket != "" && repo != "":
		return nil, fmt.Errorf("pass only one of --s3-bucket and --git-repo")
	case bucket != "":
		key, _ := cmd.Flags().GetString("s3-key")
		region, _ := cmd.Flags().GetString("s3-region")
		endpoint, _ := cmd.Flags().GetString("s3-endpoint")
		return cvsync.NewS3Destination(ctx, bucket, key, region, endpoint)
	case repo != "":
		file, _ := cmd.Flags().GetString("git-file")
		branch, _ := cmd.Flags().GetString("git-branch")
		return cvsync.NewGitDestination(repo, file, branch), nil
	}
	return nil, fmt.Errorf("pass --s3-bucket or --git-repo")
}

// importExport creates every dashboard in a JSONL export. Dashboards that
// already exist are reported and skipped.
func importExport(ctx context.Context, data []byte) error {
	_, dashboards, err := cvsync.ReadJSONL(bytes.NewReader(data))
	if err != nil {
		return err
	}
	var created []*model.Dashboard
	for _, d := range dashboards {
		out, err := canvasClient.CreateDashboard(ctx, d)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", d.ID, err)
			continue
		}
		created = append(created, out)
	}
	printOr(created, func() {
		fmt.Printf("Imported %d of %d dashboards\n", len(created), len(dashboards))
	})
	return nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// dashboardArg takes the dashboard ID from args, falling back to
// --dashboard.
func dashboardArg(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return requireDashboard()
}

func init() {
	dashboardCreateCmd.Flags().Int("columns", model.DefaultColumns, "grid width in columns")
	dashboardCreateCmd.Flags().String("id", "", "dashboard ID (generated when empty)")
	dashboardCreateCmd.Flags().String("from", "", "JSON file holding a dashboard with widgets (- reads stdin)")

	dashboardRestoreCmd.Flags().String("s3-bucket", "", "S3 bucket holding the export")
	dashboardRestoreCmd.Flags().String("s3-key", "canvas/dashboards.jsonl", "object key of the export")
	dashboardRestoreCmd.Flags().String("s3-region", "us-east-1", "S3 region")
	dashboardRestoreCmd.Flags().String("s3-endpoint", "", "custom S3 endpoint (MinIO and similar)")
	dashboardRestoreCmd.Flags().String("git-repo", "", "local clone holding the export")
	dashboardRestoreCmd.Flags().String("git-file", "dashboards.jsonl", "export path within the repo")
	dashboardRestoreCmd.Flags().String("git-branch", "main", "branch to read")

	dashboardCmd.AddCommand(dashboardCreateCmd)
	dashboardCmd.AddCommand(dashboardListCmd)
	dashboardCmd.AddCommand(dashboardShowCmd)
	dashboardCmd.AddCommand(dashboardDeleteCmd)
	dashboardCmd.AddCommand(dashboardEventsCmd)
	dashboardCmd.AddCommand(dashboardWhoCmd)
	dashboardCmd.AddCommand(dashboardImportCmd)
	dashboardCmd.AddCommand(dashboardRestoreCmd)
}
