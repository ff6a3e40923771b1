// Package scheduler owns the long-running loop around the ingestion
// pipeline.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dozie/my-job-hunter/internal/ingest"
	"github.com/dozie/my-job-hunter/internal/model"
)

// Runner is one ingestion run as the scheduler sees it.
type Runner interface {
	RunOnce(ctx context.Context) (model.RunSummary, error)
}

// Scheduler triggers one ingestion run immediately and one per tick after
// that. Ticks keep their cadence regardless of how long a run takes; a tick
// landing mid-run is skipped by the runner's own guard, never queued.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a scheduler running runner every interval.
func NewScheduler(runner Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger,
	}
}

// Run starts the loop and blocks. It returns nil when ctx is cancelled
// (graceful shutdown), after waiting for an in-flight run to wind down.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("starting scheduler", "interval", s.interval.String())

	var wg sync.WaitGroup
	launch := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runOnce(ctx)
		}()
	}

	launch()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down scheduler")
			wg.Wait()
			return nil
		case <-ticker.C:
			launch()
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	_, err := s.runner.RunOnce(ctx)
	switch {
	case errors.Is(err, ingest.ErrRunInProgress):
		s.logger.Info("previous run still in progress, tick skipped")
	case err != nil:
		s.logger.Error("ingestion run failed", "error", err)
	}
}
