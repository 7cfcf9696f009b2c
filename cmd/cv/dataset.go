package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var datasetCmd = &cobra.Command{
	Use:     "dataset",
	Short:   "Browse the dataset catalog",
	GroupID: "dashboards",
}

var datasetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List datasets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sets, err := canvasClient.ListDatasets(context.Background())
		if err != nil {
			return fmt.Errorf("listing datasets: %w", err)
		}
		printOr(sets, func() {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tFIELDS\tROWS")
			for _, ds := range sets {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", ds.ID, ds.Name, len(ds.Fields), ds.RowCount)
			}
			w.Flush()
		})
		return nil
	},
}

var datasetShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a dataset's fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := canvasClient.GetDataset(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("getting dataset: %w", err)
		}
		printOr(ds, func() {
			fmt.Printf("ID:    %s\n", ds.ID)
			fmt.Printf("Name:  %s\n", ds.Name)
			fmt.Printf("Rows:  %d\n\n", len(ds.Rows))
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FIELD\tNAME\tTYPE")
			for _, f := range ds.Fields {
				fmt.Fprintf(w, "%s\t%s\t%s\n", f.ID, f.Name, f.Type)
			}
			w.Flush()
		})
		return nil
	},
}

func init() {
	datasetCmd.AddCommand(datasetListCmd)
	datasetCmd.AddCommand(datasetShowCmd)
}
