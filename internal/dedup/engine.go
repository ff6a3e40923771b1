// Package dedup resolves per-source identity and cross-source duplicate
// linkage for normalized records.
package dedup

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dozie/my-job-hunter/internal/model"
	"github.com/dozie/my-job-hunter/internal/normalize"
)

// Outcome reports what the engine did with one record.
type Outcome struct {
	Inserted    bool             // fresh row; false means a re-observation refresh
	DuplicateOf *model.JobRecord // primary the fresh row was linked to, if any
}

// Engine persists records with per-source uniqueness and links cross-source
// duplicates softly: duplicates are retained and point at their primary,
// never the other way around, so the linkage stays a flat forest.
type Engine struct {
	store  model.JobStore
	logger *slog.Logger
}

// NewEngine creates a dedup engine over the given store.
func NewEngine(store model.JobStore, logger *slog.Logger) *Engine {
	return &Engine{store: store, logger: logger}
}

// Process inserts or refreshes one record. A fresh insert is checked against
// existing primaries sharing its canonical key: if one exists the new record
// is linked as its duplicate; otherwise it becomes a primary and an advisory
// same-company-same-title check runs, which only logs.
//
// The canonical lookup runs after the insert, not inside one transaction
// with it, so two copies of the same job arriving at nearly the same instant
// can both become primaries. A single-process run makes this window small
// and a later run flags nothing retroactively.
func (e *Engine) Process(rec *model.JobRecord) (Outcome, error) {
	inserted, err := e.store.InsertIfAbsent(rec)
	if err != nil {
		return Outcome{}, fmt.Errorf("dedup insert: %w", err)
	}

	if !inserted {
		if err := e.store.RefreshObservation(rec); err != nil {
			return Outcome{}, fmt.Errorf("dedup refresh: %w", err)
		}
		return Outcome{Inserted: false}, nil
	}

	// Descriptionless postings all carry the same sentinel fingerprint,
	// which never links two records together.
	if strings.HasSuffix(rec.CanonicalKey, "::"+normalize.NoDescriptionFingerprint) {
		return Outcome{Inserted: true}, nil
	}

	primary, err := e.store.FindPrimaryByCanonicalKey(rec.CanonicalKey, rec.ID)
	if err != nil {
		// The record is already persisted as a primary; losing the linkage
		// lookup degrades dedup, not ingestion.
		e.logger.Warn("canonical key lookup failed",
			"source", rec.SourceName, "external_id", rec.ExternalID, "error", err)
		return Outcome{Inserted: true}, nil
	}

	if primary != nil {
		if err := e.store.LinkDuplicate(rec.ID, primary.ID); err != nil {
			e.logger.Warn("duplicate link failed",
				"source", rec.SourceName, "external_id", rec.ExternalID, "error", err)
			return Outcome{Inserted: true}, nil
		}
		id := primary.ID
		rec.DuplicateOfID = &id
		e.logger.Info("likely duplicate",
			"source", rec.SourceName,
			"external_id", rec.ExternalID,
			"primary_source", primary.SourceName,
			"primary_id", primary.ID,
		)
		return Outcome{Inserted: true, DuplicateOf: primary}, nil
	}

	e.advisoryCheck(rec)
	return Outcome{Inserted: true}, nil
}

// advisoryCheck warns about records sharing the new primary's company and
// title but not its description fingerprint, a same-role-different-team
// signal. It never alters any field: two identical postings phrased
// differently enough to fingerprint-mismatch stay unlinked.
func (e *Engine) advisoryCheck(rec *model.JobRecord) {
	prefix := normalize.CanonicalPrefix(rec.Company, rec.Title)
	matches, err := e.store.FindByCanonicalPrefix(prefix, rec.ID)
	if err != nil {
		e.logger.Warn("canonical prefix lookup failed",
			"source", rec.SourceName, "external_id", rec.ExternalID, "error", err)
		return
	}

	for _, m := range matches {
		if m.CanonicalKey == rec.CanonicalKey {
			continue
		}
		e.logger.Warn("same company and title with a different description",
			"source", rec.SourceName,
			"external_id", rec.ExternalID,
			"other_source", m.SourceName,
			"other_id", m.ID,
		)
	}
}
