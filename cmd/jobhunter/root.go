package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dozie/my-job-hunter/internal/adapter"
	"github.com/dozie/my-job-hunter/internal/config"
	"github.com/dozie/my-job-hunter/internal/ingest"
	"github.com/dozie/my-job-hunter/internal/model"
	"github.com/dozie/my-job-hunter/internal/notifier"
	"github.com/dozie/my-job-hunter/internal/retry"
	"github.com/dozie/my-job-hunter/internal/scoring"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "jobhunter",
	Short: "Tiered job-posting radar",
	Long:  "Jobhunter pulls postings from boards, scrapers, and aggregators into one deduplicated, scored local queue.",
	// Default to `start` so that `jobhunter` with no args runs the daemon.
	// This keeps systemd unit files that invoke the binary directly working.
	RunE: runStart,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: JOBHUNTER_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// jobStore is the store surface the CLI wires together: the pipeline store
// plus the newness and budget gates the serpapi adapter reads.
type jobStore interface {
	model.JobStore
	HasSeen(externalID, sourceName string) (bool, error)
	BudgetSpent(provider, month string) (int, error)
	AddBudgetSpend(provider, month string, calls int) error
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > JOBHUNTER_CONFIG env var > "./config.yaml".
// A .env file in the working directory is folded into the environment first
// so ${VAR} references in the YAML resolve to keys kept out of the file.
func loadConfig(path string) (*config.Config, error) {
	_ = godotenv.Load()
	if path == "" {
		if env := os.Getenv("JOBHUNTER_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

func setupNotifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.Notifier {
	switch cfg.Notification.Type {
	case "slack":
		logger.Info("using slack notifier")
		return notifier.NewSlackNotifier(cfg.Notification.WebhookURL, httpClient, logger)
	default:
		return notifier.NewLogNotifier(logger)
	}
}

func setupScorer(cfg *config.Config, st scoring.ScoreStore, logger *slog.Logger) ingest.Scorer {
	if !cfg.Scoring.Enabled {
		logger.Info("scoring disabled, new postings keep score zero")
		return scoring.NewNopScorer()
	}
	return scoring.NewScorer(cfg.Scoring, st, logger)
}

func createProvider(name string, cfg *config.Config, st jobStore, httpClient *http.Client, logger *slog.Logger) (model.Provider, bool) {
	switch name {
	case "greenhouse":
		p := adapter.NewGreenhouseAdapter(cfg.Providers.Greenhouse.Boards, httpClient, logger)
		return retry.New(p, 2, 5*time.Second, logger), true
	case "lever":
		p := adapter.NewLeverAdapter(cfg.Providers.Lever.Boards, httpClient, logger)
		return retry.New(p, 2, 5*time.Second, logger), true
	case "adzuna":
		return adapter.NewAdzunaAdapter(cfg.Providers.Adzuna, httpClient, logger), true
	case "coresignal":
		return adapter.NewCoresignalAdapter(cfg.Providers.Coresignal, httpClient, logger), true
	case "brightdata":
		return adapter.NewBrightdataAdapter(cfg.Providers.Brightdata, httpClient, logger), true
	case "serpapi":
		return adapter.NewSerpAPIAdapter(cfg.Providers.SerpAPI, st, httpClient, logger), true
	default:
		logger.Warn("unknown provider in tier, skipping", "provider", name)
		return nil, false
	}
}

// buildTiers assembles the configured tiers in file order. Only the free
// board APIs get the retry wrapper; metered adapters are wired bare so a
// retry never burns paid credits.
func buildTiers(cfg *config.Config, st jobStore, httpClient *http.Client, logger *slog.Logger) []ingest.Tier {
	var tiers []ingest.Tier
	for _, tc := range cfg.Tiers {
		var providers []model.Provider
		for _, name := range tc.Providers {
			if !cfg.ProviderEnabled(name) {
				logger.Debug("provider disabled, skipping", "tier", tc.Name, "provider", name)
				continue
			}
			p, ok := createProvider(name, cfg, st, httpClient, logger)
			if !ok {
				continue
			}
			providers = append(providers, p)
			logger.Info("registered provider", "tier", tc.Name, "provider", name)
		}
		if len(providers) == 0 {
			continue
		}
		tiers = append(tiers, ingest.Tier{Name: tc.Name, Providers: providers})
	}
	return tiers
}
