package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"gemsmith/internal/store"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "Show run history, or the outcome log of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  showRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "maximum number of runs to list")
}

func showRuns(cmd *cobra.Command, args []string) error {
	db, err := store.OpenPath(filepath.Join(workspace, cfg.Store.DatabasePath))
	if err != nil {
		return fmt.Errorf("failed to open run store: %w", err)
	}
	defer db.Close()

	if len(args) == 1 {
		return showOutcomes(db, args[0])
	}

	records, err := db.LoadRuns(runsLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	fmt.Printf("%-36s %-20s %-24s %-8s %s\n", "ID", "STARTED", "STATE", "OPS", "ARTIFACT")
	for _, r := range records {
		fmt.Printf("%-36s %-20s %-24s %-8d %s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.State, r.OperationCount, r.ArtifactName)
	}
	return nil
}

func showOutcomes(db *store.Store, runID string) error {
	outcomes, err := db.LoadOutcomes(runID)
	if err != nil {
		return err
	}
	if len(outcomes) == 0 {
		fmt.Printf("No outcomes recorded for run %s.\n", runID)
		return nil
	}

	fmt.Printf("%-5s %-24s %-26s %-10s %s\n", "IDX", "OPERATION", "STATUS", "DURATION", "ERROR")
	for _, o := range outcomes {
		fmt.Printf("%-5d %-24s %-26s %-10s %s\n", o.Index, o.Operation, o.Status, o.Duration, o.Error)
	}
	return nil
}
