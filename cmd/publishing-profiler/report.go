// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/publishing-profiler/internal/runstore"
)

var reportCmd = &cobra.Command{
	Use:   "report [institution]",
	Short: "Show the stored run of an institution",
	Long: `Report prints the tables of an institution from the most recent run in the
run store without rereading its input. Without an institution it lists the
stored runs.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	top := topFromFlags(cmd, cfg)

	store, err := runstore.NewStore(cfg.Output.StoreDir)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if len(args) == 0 {
		runs, err := store.Runs(ctx)
		if err != nil {
			return err
		}
		formatRuns(runs)
		return nil
	}

	rep, err := store.Load(ctx, args[0])
	if err != nil {
		return err
	}

	switch format {
	case "table", "":
		runstore.FormatTable(rep, os.Stdout, top)
		return nil
	case "json":
		return runstore.FormatJSON(rep, os.Stdout)
	case "yaml":
		return runstore.FormatYAML(rep, os.Stdout)
	default:
		return fmt.Errorf("unsupported format %q: use table, json, or yaml", format)
	}
}

func formatRuns(runs []runstore.Run) {
	if len(runs) == 0 {
		fmt.Println("No stored runs.")
		return
	}
	fmt.Fprintf(os.Stdout, "%-28s  %-20s  %8s  %8s  %s\n", "Institution", "Run at", "Records", "Target", "ID")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))
	for _, r := range runs {
		fmt.Fprintf(os.Stdout, "%-28s  %-20s  %8d  %8d  %s\n",
			r.Institution, r.CreatedAt.Format(time.RFC3339), r.Records, r.Target, r.ID)
	}
}

func init() {
	reportCmd.Flags().String("format", "table", "output format: table, json, or yaml")
	reportCmd.Flags().Int("top", 0, "journals to show (default from config, 20)")
	reportCmd.Flags().Bool("all-journals", false, "show all journals")

	rootCmd.AddCommand(reportCmd)
}
