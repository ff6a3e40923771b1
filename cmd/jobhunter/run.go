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
	"github.com/dozie/my-job-hunter/internal/model"
	"github.com/dozie/my-job-hunter/internal/notifier"
	"github.com/dozie/my-job-hunter/internal/scoring"
	"github.com/dozie/my-job-hunter/internal/store"
)

var runDryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one ingestion cycle, then exit",
	Long:  "Fetches every tier once, persists and scores new postings, then exits. With --dry-run nothing is persisted, scored, or posted.",
	RunE:  runRunOnce,
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "fetch and count in memory, persist nothing")
	rootCmd.AddCommand(runCmd)
}

func runRunOnce(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	var st jobStore
	var scorer ingest.Scorer
	var n model.Notifier
	if runDryRun {
		logger.Info("dry-run mode: nothing will be persisted, scored, or posted")
		st = store.NewNopStore()
		scorer = scoring.NewNopScorer()
		n = notifier.NewLogNotifier(logger)
	} else {
		sqlStore, err := store.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			logger.Error("failed to open store", "error", err)
			os.Exit(1)
		}
		defer sqlStore.Close()
		st = sqlStore
		scorer = setupScorer(cfg, sqlStore, logger)
		n = setupNotifier(cfg, httpClient, logger)
	}

	tiers := buildTiers(cfg, st, httpClient, logger)
	if len(tiers) == 0 {
		logger.Error("no providers enabled")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch := ingest.NewOrchestrator(*cfg, tiers, st, scorer, n, logger)
	summary, err := orch.RunOnce(ctx)
	if err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}

	logger.Info("run complete",
		"run_id", summary.RunID,
		"new", summary.TotalNew,
		"stale_marked", summary.StaleMarked,
		"elapsed", summary.FinishedAt.Sub(summary.StartedAt).String(),
	)
	return nil
}
