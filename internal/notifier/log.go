package notifier

import (
	"log/slog"

	"github.com/dozie/my-job-hunter/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes run summaries to the structured logger. It is the
// default sink when no webhook is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs one line per provider entry followed by the run totals.
// Logging cannot fail, so the error is always nil.
func (n *LogNotifier) Notify(summary model.RunSummary) error {
	for _, entry := range summary.Entries {
		args := []any{
			"run_id", entry.RunID,
			"provider", entry.Provider,
			"tier", entry.Tier,
			"fetched", entry.Fetched,
			"new", entry.Inserted,
			"duplicates", entry.Duplicates,
			"scored", entry.Scored,
		}
		if entry.Error != "" {
			args = append(args, "error", entry.Error)
			n.logger.Warn("provider summary", args...)
			continue
		}
		n.logger.Info("provider summary", args...)
	}
	n.logger.Info("run summary",
		"run_id", summary.RunID,
		"new", summary.TotalNew,
		"stale_marked", summary.StaleMarked,
		"providers", len(summary.Entries),
		"elapsed", summary.FinishedAt.Sub(summary.StartedAt).String(),
	)
	return nil
}
