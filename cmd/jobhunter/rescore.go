package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dozie/my-job-hunter/internal/scoring"
	"github.com/dozie/my-job-hunter/internal/store"
)

var rescoreExtract bool

var rescoreCmd = &cobra.Command{
	Use:   "rescore",
	Short: "Recompute scores for stored postings",
	Long:  "Reapplies the score formula to every active posting using stored metadata. With --extract the LLM extraction runs again too.",
	RunE:  runRescore,
}

func init() {
	rescoreCmd.Flags().BoolVar(&rescoreExtract, "extract", false, "redo LLM extraction, not just the formula")
	rootCmd.AddCommand(rescoreCmd)
}

func runRescore(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if !cfg.Scoring.Enabled {
		logger.Error("scoring is disabled in config")
		os.Exit(1)
	}

	sqlStore, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer sqlStore.Close()

	records, err := sqlStore.ActiveRecords()
	if err != nil {
		logger.Error("failed to load records", "error", err)
		os.Exit(1)
	}
	if len(records) == 0 {
		logger.Info("no active records to rescore")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scorer := scoring.NewScorer(cfg.Scoring, sqlStore, logger)
	rescored, err := scorer.Rescore(ctx, records, rescoreExtract)
	if err != nil {
		logger.Error("rescore finished with errors", "rescored", rescored, "error", err)
		os.Exit(1)
	}

	logger.Info("rescore complete", "rescored", rescored, "records", len(records), "extract", rescoreExtract)
	return nil
}
