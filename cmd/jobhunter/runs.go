package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dozie/my-job-hunter/internal/store"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent ingestion runs",
	Long:  "Prints the run log: per-provider fetch and insert counts for recent runs.",
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum entries")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	sqlStore, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer sqlStore.Close()

	entries, err := sqlStore.RecentRuns(runsLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load runs: %v\n", err)
		os.Exit(1)
	}

	if len(entries) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	fmt.Printf("%-8s %-12s %-12s %8s %6s %6s %7s  %-16s %s\n",
		"Run", "Provider", "Tier", "Fetched", "New", "Dup", "Scored", "Started", "Error")
	fmt.Println(strings.Repeat("─", 100))
	for _, e := range entries {
		fmt.Printf("%-8s %-12s %-12s %8d %6d %6d %7d  %-16s %s\n",
			shortID(e.RunID), e.Provider, e.Tier, e.Fetched, e.Inserted, e.Duplicates, e.Scored,
			e.StartedAt.UTC().Format("2006-01-02 15:04"), truncate(e.Error, 32))
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
