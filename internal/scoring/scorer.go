package scoring

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dozie/my-job-hunter/internal/config"
	"github.com/dozie/my-job-hunter/internal/model"
	"github.com/dozie/my-job-hunter/internal/parallel"
)

// ScoreStore is the slice of the store the scoring stage writes to.
type ScoreStore interface {
	SaveExtraction(id int64, meta model.Metadata) error
	SaveScore(id int64, score float64, breakdown map[string]float64, fromDefaults bool) error
	SaveSummary(id int64, summary string) error
}

// Scorer runs the scoring stage: a bounded-concurrency extraction call per
// record, the deterministic formula, and a summarization call gated on the
// resulting score. One Scorer is shared by every provider in a run, which is
// what makes the concurrency limit global.
type Scorer struct {
	extractor  *Extractor
	summarizer *Summarizer
	store      ScoreStore
	cfg        config.ScoringConfig
	logger     *slog.Logger
}

// NewScorer wires the extraction and summarization providers from cfg and
// returns a Scorer persisting through store.
func NewScorer(cfg config.ScoringConfig, store ScoreStore, logger *slog.Logger) *Scorer {
	client := &http.Client{Timeout: cfg.Timeout}
	extractProvider := NewStructuredOpenAIProvider(cfg.BaseURL, cfg.APIKey, cfg.ExtractModel,
		extractSystemPrompt, metadataSchemaName, metadataSchema, client)
	summaryProvider := NewOpenAIProvider(cfg.BaseURL, cfg.APIKey, cfg.SummaryModel,
		summarySystemPrompt, client)
	return &Scorer{
		extractor:  NewExtractor(extractProvider, ExtractTemplate, logger),
		summarizer: NewSummarizer(summaryProvider, SummarizeTemplate, logger),
		store:      store,
		cfg:        cfg,
		logger:     logger,
	}
}

// ScoreBatch scores records with at most cfg.Concurrency extraction calls in
// flight and returns how many were scored. A record failing to extract is
// scored from defaults; a record failing to persist is logged and skipped,
// never stopping the batch.
func (s *Scorer) ScoreBatch(ctx context.Context, records []*model.JobRecord) int {
	if len(records) == 0 {
		return 0
	}

	results := parallel.ForEach(ctx, s.cfg.Concurrency, records, s.scoreRecord)

	scored := 0
	for _, res := range results {
		if res.Err != nil {
			s.logger.Error("scoring record failed",
				"id", res.Input.ID, "title", res.Input.Title, "error", res.Err)
			continue
		}
		if res.Value {
			scored++
		}
	}
	return scored
}

// scoreRecord runs the full stage for one record. It reports false when the
// record was skipped because there is nothing to classify.
func (s *Scorer) scoreRecord(ctx context.Context, rec *model.JobRecord) (bool, error) {
	if rec.Description == "" {
		// Nothing to classify; the zero score stands.
		return false, nil
	}

	meta, err := s.extractor.Extract(ctx, rec)
	fromDefaults := false
	if err != nil {
		s.logger.Warn("extraction failed, scoring from defaults",
			"id", rec.ID, "title", rec.Title, "error", err)
		meta = model.DefaultMetadata()
		fromDefaults = true
	} else {
		if err := s.store.SaveExtraction(rec.ID, meta); err != nil {
			return false, err
		}
		rec.Seniority = meta.Seniority
		rec.RemoteEligible = meta.RemoteEligible
		rec.InterviewStyle = meta.InterviewStyle
		rec.RoleType = meta.RoleType
	}

	score, breakdown := ComputeScore(meta, rec.Location, s.cfg)
	if err := s.store.SaveScore(rec.ID, score, breakdown, fromDefaults); err != nil {
		return false, err
	}
	rec.Score = score
	rec.ScoreBreakdown = breakdown
	rec.ScoredFromDefaults = fromDefaults

	if score >= s.cfg.SummaryThreshold {
		if err := s.summarize(ctx, rec); err != nil {
			// The score already stands; a missing summary degrades display only.
			s.logger.Warn("summary failed", "id", rec.ID, "title", rec.Title, "error", err)
		}
	}
	return true, nil
}

func (s *Scorer) summarize(ctx context.Context, rec *model.JobRecord) error {
	text, err := s.summarizer.Summarize(ctx, rec)
	if err != nil {
		return err
	}
	if err := s.store.SaveSummary(rec.ID, text); err != nil {
		return err
	}
	rec.Summary = text
	return nil
}

// Rescore re-applies the formula to records under the current config and
// returns how many were rescored. Extraction re-runs for records scored
// from defaults (their metadata is fallback, not signal) and for every
// record when extract is true; everything else is recomputed from the
// metadata already on the record, with no completion calls. Per-record
// failures are logged and the first one is returned after the pass.
func (s *Scorer) Rescore(ctx context.Context, records []model.JobRecord, extract bool) (int, error) {
	var targets []*model.JobRecord
	for i := range records {
		if records[i].Description != "" {
			targets = append(targets, &records[i])
		}
	}

	results := parallel.ForEach(ctx, s.cfg.Concurrency, targets, func(ctx context.Context, rec *model.JobRecord) (bool, error) {
		if extract || rec.ScoredFromDefaults {
			return s.scoreRecord(ctx, rec)
		}
		score, breakdown := ComputeScore(rec.ExtractedMetadata(), rec.Location, s.cfg)
		if err := s.store.SaveScore(rec.ID, score, breakdown, false); err != nil {
			return false, err
		}
		rec.Score = score
		rec.ScoreBreakdown = breakdown
		return true, nil
	})

	rescored := 0
	var firstErr error
	for _, res := range results {
		if res.Err != nil {
			s.logger.Error("rescoring record failed",
				"id", res.Input.ID, "title", res.Input.Title, "error", res.Err)
			if firstErr == nil {
				firstErr = res.Err
			}
			continue
		}
		if res.Value {
			rescored++
		}
	}
	return rescored, firstErr
}

// NopScorer is used when scoring is disabled. Records keep their zero score
// and no completion calls are made.
type NopScorer struct{}

// NewNopScorer returns a NopScorer.
func NewNopScorer() *NopScorer {
	return &NopScorer{}
}

// ScoreBatch does nothing and reports zero records scored.
func (n *NopScorer) ScoreBatch(_ context.Context, _ []*model.JobRecord) int {
	return 0
}
