package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dozie/my-job-hunter/internal/ingest"
	"github.com/dozie/my-job-hunter/internal/scheduler"
	"github.com/dozie/my-job-hunter/internal/store"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the ingestion daemon",
	Long:  "Start the scheduler daemon; blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("config loaded",
		"interval", cfg.PollingInterval.String(),
		"tiers", len(cfg.Tiers),
		"providers", cfg.EnabledProviderCount(),
		"retention_days", cfg.RetentionDays,
		"scoring", cfg.Scoring.Enabled,
	)

	sqlStore, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer sqlStore.Close()

	httpClient := &http.Client{Timeout: 30 * time.Second}
	n := setupNotifier(cfg, httpClient, logger)
	scorer := setupScorer(cfg, sqlStore, logger)

	tiers := buildTiers(cfg, sqlStore, httpClient, logger)
	if len(tiers) == 0 {
		logger.Error("no providers enabled")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch := ingest.NewOrchestrator(*cfg, tiers, sqlStore, scorer, n, logger)
	sched := scheduler.NewScheduler(orch, cfg.PollingInterval, logger)
	if err := sched.Run(ctx); err != nil {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}
