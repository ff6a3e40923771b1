package model

import (
	"context"
	"time"
)

// RawPosting is a single posting exactly as one provider reported it, before
// filtering and normalization. Optional fields stay zero-valued when the
// source does not supply them.
type RawPosting struct {
	ExternalID     string
	Title          string
	Company        string
	Link           string            // direct apply link
	Description    string            // may contain HTML
	Location       string
	RemoteEligible *bool             // provider-asserted; nil means not asserted
	Seniority      string            // provider-asserted, often empty
	Compensation   string            // free-form pay text
	Metadata       map[string]string // source-specific extras
}

// JobRecord is the canonical persisted form of a posting. One row per
// (ExternalID, SourceName) pair; cross-source copies of the same real-world
// job share a CanonicalKey.
type JobRecord struct {
	ID           int64
	ExternalID   string
	SourceName   string
	CanonicalKey string

	Title          string
	Company        string
	Link           string
	Description    string // HTML-stripped
	Location       string
	RemoteEligible bool
	Seniority      string
	InterviewStyle string
	RoleType       string
	Compensation   string

	Score              float64            // 0.0 to 10.0, two decimal places
	ScoreBreakdown     map[string]float64 // dimension -> weighted contribution
	ScoredFromDefaults bool               // extraction failed, scored from fallback metadata
	Summary            string             // set only above the summary threshold

	DuplicateOfID *int64     // primary record's ID; nil for primaries
	IsStale       bool
	AppliedAt     *time.Time // written by the review surface, never by ingestion

	ExportStatus string // owned by the export collaborator after initialization
	ExportCursor int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsDuplicate reports whether this record points at a primary.
func (j *JobRecord) IsDuplicate() bool {
	return j.DuplicateOfID != nil
}

// ExtractedMetadata reassembles the persisted extraction fields, so the
// scoring formula can be re-applied without another extraction call.
func (j *JobRecord) ExtractedMetadata() Metadata {
	return Metadata{
		Seniority:      j.Seniority,
		RemoteEligible: j.RemoteEligible,
		InterviewStyle: j.InterviewStyle,
		RoleType:       j.RoleType,
	}
}

// Provider fetches raw postings from one external job source. Each transport
// pattern (simple REST board, paginated search, two-step collect, async
// trigger/poll, adaptive crawl) is its own implementation.
type Provider interface {
	Name() string
	FetchJobs(ctx context.Context) ([]RawPosting, error)
}

// ListingOptions narrows the ranked listing query.
type ListingOptions struct {
	Seniority      string // exact match when non-empty
	IncludeApplied bool   // include records already marked applied
	PerCompany     bool   // one slot per employer first, remainder appended
	Limit          int    // 0 means unlimited
}

// JobStore persists job records and ingestion run logs.
type JobStore interface {
	// InsertIfAbsent atomically inserts rec unless a row with the same
	// (ExternalID, SourceName) already exists. On insert it assigns rec.ID
	// and returns true; on an existing row it returns false untouched.
	InsertIfAbsent(rec *JobRecord) (bool, error)
	// RefreshObservation updates the mutable descriptive fields of an already
	// known posting and bumps UpdatedAt. Identity, score, and dedup linkage
	// are never touched by a re-observation.
	RefreshObservation(rec *JobRecord) error
	// FindPrimaryByCanonicalKey returns the non-duplicate record holding key,
	// excluding the given record ID, or nil if none exists.
	FindPrimaryByCanonicalKey(key string, excludeID int64) (*JobRecord, error)
	// FindByCanonicalPrefix returns records whose canonical key starts with
	// prefix (same company and title, any fingerprint), excluding one ID.
	FindByCanonicalPrefix(prefix string, excludeID int64) ([]JobRecord, error)
	// LinkDuplicate points id at primaryID as a soft duplicate.
	LinkDuplicate(id, primaryID int64) error

	SaveScore(id int64, score float64, breakdown map[string]float64, fromDefaults bool) error
	// SaveExtraction persists the structured metadata of a successful
	// extraction call onto the record's descriptive fields.
	SaveExtraction(id int64, meta Metadata) error
	SaveSummary(id int64, summary string) error

	// MarkStale flags every record whose UpdatedAt is older than cutoff and
	// returns how many rows were flagged. Staleness is never cleared here.
	MarkStale(cutoff time.Time) (int64, error)
	// RankedListings returns non-stale, non-duplicate records ordered by
	// score descending, narrowed by opts.
	RankedListings(opts ListingOptions) ([]JobRecord, error)
	// ActiveRecords returns every non-stale, non-duplicate record, for rescoring.
	ActiveRecords() ([]JobRecord, error)
	MarkApplied(id int64) error

	SaveRunEntries(entries []RunLogEntry) error
	RecentRuns(limit int) ([]RunLogEntry, error)
}

// Notifier delivers the aggregate summary of a finished ingestion run.
type Notifier interface {
	Notify(summary RunSummary) error
}
