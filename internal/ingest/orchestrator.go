// Package ingest drives the tiered ingestion pipeline: tiers run in order,
// providers inside a tier fetch concurrently, and every posting flows
// through filtering, normalization, dedup, and the scoring stage.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dozie/my-job-hunter/internal/config"
	"github.com/dozie/my-job-hunter/internal/dedup"
	"github.com/dozie/my-job-hunter/internal/filter"
	"github.com/dozie/my-job-hunter/internal/model"
	"github.com/dozie/my-job-hunter/internal/normalize"
	"github.com/dozie/my-job-hunter/internal/parallel"
)

// ErrRunInProgress is returned when RunOnce is called while another run is
// still active. The caller skips; runs are never queued.
var ErrRunInProgress = errors.New("ingestion run already in progress")

// Scorer is the scoring stage as the pipeline sees it. scoring.Scorer is the
// real implementation; scoring.NopScorer serves disabled and dry-run modes.
type Scorer interface {
	ScoreBatch(ctx context.Context, records []*model.JobRecord) int
}

// Tier is one ordered group of providers fetched concurrently. Tier order is
// what gives cross-source dedup its primacy: earlier tiers insert first, so
// their records become the primaries later tiers link against.
type Tier struct {
	Name      string
	Providers []model.Provider
}

// Orchestrator owns one ingestion run end to end: tiers, staleness sweep,
// run log, and the summary notification.
type Orchestrator struct {
	tiers    []Tier
	store    model.JobStore
	dedup    *dedup.Engine
	scorer   Scorer
	notifier model.Notifier
	cfg      config.Config
	logger   *slog.Logger
	running  atomic.Bool
}

// NewOrchestrator wires an orchestrator over the given store. cfg is the
// configuration value for this run series; reloading produces a new
// orchestrator, never a mutation.
func NewOrchestrator(cfg config.Config, tiers []Tier, store model.JobStore, scorer Scorer, notifier model.Notifier, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		tiers:    tiers,
		store:    store,
		dedup:    dedup.NewEngine(store, logger),
		scorer:   scorer,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
}

// RunOnce executes one full ingestion run and returns its summary. A run
// already in progress returns ErrRunInProgress immediately. Cancelling ctx
// stops the run between tiers; the tier in flight still finishes its
// fetches and bookkeeping.
func (o *Orchestrator) RunOnce(ctx context.Context) (model.RunSummary, error) {
	if !o.running.CompareAndSwap(false, true) {
		return model.RunSummary{}, ErrRunInProgress
	}
	defer o.running.Store(false)

	runID := uuid.NewString()
	started := time.Now().UTC()
	o.logger.Info("ingestion run started", "run_id", runID, "tiers", len(o.tiers))

	var entries []model.RunLogEntry
	for _, tier := range o.tiers {
		if err := ctx.Err(); err != nil {
			o.logger.Warn("run cancelled between tiers",
				"run_id", runID, "next_tier", tier.Name, "error", err)
			break
		}
		entries = append(entries, o.runTier(ctx, runID, tier)...)
	}

	staleMarked := o.sweepStale()

	summary := model.RunSummary{
		RunID:       runID,
		Entries:     entries,
		StaleMarked: staleMarked,
		StartedAt:   started,
		FinishedAt:  time.Now().UTC(),
	}
	for _, e := range entries {
		summary.TotalNew += e.Inserted
	}

	if err := o.store.SaveRunEntries(entries); err != nil {
		o.logger.Error("persisting run log failed", "run_id", runID, "error", err)
	}
	if err := o.notifier.Notify(summary); err != nil {
		o.logger.Error("run summary notification failed", "run_id", runID, "error", err)
	}

	o.logger.Info("ingestion run finished",
		"run_id", runID,
		"providers", len(entries),
		"new", summary.TotalNew,
		"stale_marked", staleMarked,
		"elapsed", summary.FinishedAt.Sub(summary.StartedAt),
	)
	return summary, nil
}

// runTier fans the tier's providers out and waits for every one of them.
// A provider failure lands in its run entry, never in its siblings'. The
// scoring calls happen at fan-in so the scorer's concurrency limit stays
// global instead of multiplying per provider.
func (o *Orchestrator) runTier(ctx context.Context, runID string, tier Tier) []model.RunLogEntry {
	o.logger.Info("tier started", "run_id", runID, "tier", tier.Name, "providers", len(tier.Providers))

	type providerResult struct {
		entry model.RunLogEntry
		fresh []*model.JobRecord
	}
	results := parallel.ForEach(ctx, 0, tier.Providers, func(ctx context.Context, p model.Provider) (providerResult, error) {
		entry, fresh := o.runProvider(ctx, runID, tier.Name, p)
		return providerResult{entry: entry, fresh: fresh}, nil
	})

	entries := make([]model.RunLogEntry, 0, len(results))
	for _, res := range results {
		entry := res.Value.entry
		if len(res.Value.fresh) > 0 {
			entry.Scored = o.scorer.ScoreBatch(ctx, res.Value.fresh)
		}
		entry.FinishedAt = time.Now().UTC()
		entries = append(entries, entry)
	}
	return entries
}

// runProvider runs the fetch-filter-normalize-dedup slice for one provider
// and returns its run entry plus the fresh primaries for the scoring stage.
// Per-record persistence failures degrade this provider's counts, not the
// run.
func (o *Orchestrator) runProvider(ctx context.Context, runID, tierName string, p model.Provider) (model.RunLogEntry, []*model.JobRecord) {
	entry := model.RunLogEntry{
		RunID:     runID,
		Provider:  p.Name(),
		Tier:      tierName,
		StartedAt: time.Now().UTC(),
	}

	postings, err := p.FetchJobs(ctx)
	if err != nil {
		o.logger.Error("provider fetch failed",
			"run_id", runID, "provider", p.Name(), "error", err)
		entry.Error = err.Error()
		return entry, nil
	}
	entry.Fetched = len(postings)

	var fresh []*model.JobRecord
	for _, posting := range postings {
		if !filter.PassesRoleFilter(posting, o.cfg.Filters) {
			entry.RoleFiltered++
			continue
		}
		if !filter.PassesLocationFilter(posting, o.cfg.Filters) {
			entry.LocationFiltered++
			continue
		}

		rec := normalize.Record(posting, p.Name(), o.cfg.Filters.RemoteInference)
		out, err := o.dedup.Process(&rec)
		if err != nil {
			o.logger.Error("record persist failed",
				"run_id", runID, "provider", p.Name(),
				"external_id", rec.ExternalID, "error", err)
			continue
		}
		if !out.Inserted {
			continue
		}
		if out.DuplicateOf != nil {
			entry.Duplicates++
			continue
		}
		entry.Inserted++
		fresh = append(fresh, &rec)
	}

	o.logger.Info("provider finished",
		"run_id", runID,
		"provider", p.Name(),
		"fetched", entry.Fetched,
		"role_filtered", entry.RoleFiltered,
		"location_filtered", entry.LocationFiltered,
		"inserted", entry.Inserted,
		"duplicates", entry.Duplicates,
	)
	return entry, fresh
}

// sweepStale flags records not re-observed within the retention window.
// The flag only ever goes one way; nothing in the pipeline unsets it.
func (o *Orchestrator) sweepStale() int64 {
	cutoff := time.Now().UTC().AddDate(0, 0, -o.cfg.RetentionDays)
	n, err := o.store.MarkStale(cutoff)
	if err != nil {
		o.logger.Error("staleness sweep failed", "error", err)
		return 0
	}
	if n > 0 {
		o.logger.Info("stale records marked", "count", n, "cutoff", cutoff)
	}
	return n
}
