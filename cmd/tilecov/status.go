package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"tilecov/pkg/checkpoint"
	"tilecov/pkg/config"
	"tilecov/pkg/logger"
	"tilecov/pkg/store"
	"tilecov/pkg/ui"
)

var (
	// Status command flags
	statusZoom int
	statusDB   string
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show catalogue coverage progress",
	Long: `Show how much of the occurrence catalogue has a coverage verdict at
the configured zoom, plus the state of the most recent probe run.`,
	Args: cobra.NoArgs,
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().IntVar(&statusZoom, "zoom", 14, "tile zoom level")
	statusCmd.Flags().StringVar(&statusDB, "db", "", "path to the occurrence catalogue database")
}

func runStatus(cmd *cobra.Command, args []string) {
	flags := make(map[string]interface{})
	if cmd.Flags().Changed("zoom") {
		flags["zoom"] = statusZoom
	}
	if cmd.Flags().Changed("db") {
		flags["db"] = statusDB
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	logger.Initialize(&cfg.Logging)

	st, err := store.Open(cfg.Database, store.Options{}, nil)
	if err != nil {
		ui.PrintError("Failed to open catalogue", err.Error())
		os.Exit(1)
	}
	defer st.Close()

	stats, err := st.Stats(context.Background(), cfg.Probe.Zoom)
	if err != nil {
		ui.PrintError("Failed to read catalogue stats", err.Error())
		os.Exit(1)
	}

	ui.PrintHighlight(fmt.Sprintf("Coverage at zoom %d", cfg.Probe.Zoom))
	fmt.Println()
	fmt.Printf("  Occurrences:        %d\n", stats.Occurrences)
	fmt.Printf("  With tile assigned: %d\n", stats.TiledOccurrences)
	fmt.Printf("  With verdict:       %d\n", stats.FlaggedOccurrences)
	fmt.Println()
	fmt.Printf("  Checked tiles:      %d\n", stats.CheckedTiles)
	fmt.Printf("  Covered:            %d\n", stats.CoveredTiles)
	fmt.Printf("  Uncovered:          %d\n", stats.UncoveredTiles)
	fmt.Printf("  Errored:            %d\n", stats.ErroredTiles)
	fmt.Printf("  Pending:            %d\n", stats.PendingTiles)

	if total := stats.CheckedTiles + stats.PendingTiles; total > 0 {
		fmt.Printf("\n  Progress:           %.1f%%\n", float64(stats.CheckedTiles)/float64(total)*100)
	}

	// Last run state, if a checkpoint exists for this zoom
	mgr, err := checkpoint.NewManager(fmt.Sprintf("z%d", cfg.Probe.Zoom))
	if err != nil || !mgr.Exists() {
		return
	}

	state, err := mgr.Load()
	if err != nil || state == nil {
		return
	}

	fmt.Println()
	ui.PrintHighlight("Last Run")
	fmt.Println()
	fmt.Printf("  Run ID:    %s\n", state.RunID)
	fmt.Printf("  Started:   %s\n", state.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("  Updated:   %s\n", state.UpdatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("  Processed: %d (%d covered, %d uncovered, %d failed)\n",
		state.Processed, state.Covered, state.Uncovered, state.Failed)
	fmt.Printf("  Batches:   %d\n", state.BatchesCommitted)
	if state.Completed {
		fmt.Println("  Status:    completed")
	} else {
		fmt.Println("  Status:    interrupted")
	}
}
