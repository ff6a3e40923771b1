package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dozie/my-job-hunter/internal/model"
)

// SQLiteStore persists job records, ingestion run logs, and API call budgets
// in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS job_records (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	external_id          TEXT NOT NULL,
	source_name          TEXT NOT NULL,
	canonical_key        TEXT NOT NULL,
	title                TEXT NOT NULL,
	company              TEXT NOT NULL,
	link                 TEXT NOT NULL DEFAULT '',
	description          TEXT NOT NULL DEFAULT '',
	location             TEXT NOT NULL DEFAULT '',
	remote_eligible      INTEGER NOT NULL DEFAULT 0,
	seniority            TEXT NOT NULL DEFAULT '',
	interview_style      TEXT NOT NULL DEFAULT '',
	role_type            TEXT NOT NULL DEFAULT '',
	compensation         TEXT NOT NULL DEFAULT '',
	score                REAL NOT NULL DEFAULT 0,
	score_breakdown      TEXT NOT NULL DEFAULT '{}',
	scored_from_defaults INTEGER NOT NULL DEFAULT 0,
	summary              TEXT NOT NULL DEFAULT '',
	duplicate_of_id      INTEGER,
	is_stale             INTEGER NOT NULL DEFAULT 0,
	applied_at           DATETIME,
	export_status        TEXT NOT NULL DEFAULT 'pending',
	export_cursor        INTEGER NOT NULL DEFAULT 0,
	created_at           DATETIME NOT NULL,
	updated_at           DATETIME NOT NULL,
	UNIQUE(external_id, source_name)
);
CREATE INDEX IF NOT EXISTS idx_job_records_canonical_key ON job_records(canonical_key);

CREATE TABLE IF NOT EXISTS ingestion_runs (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id            TEXT NOT NULL,
	provider          TEXT NOT NULL,
	tier              TEXT NOT NULL DEFAULT '',
	fetched           INTEGER NOT NULL DEFAULT 0,
	role_filtered     INTEGER NOT NULL DEFAULT 0,
	location_filtered INTEGER NOT NULL DEFAULT 0,
	inserted          INTEGER NOT NULL DEFAULT 0,
	duplicates        INTEGER NOT NULL DEFAULT 0,
	scored            INTEGER NOT NULL DEFAULT 0,
	error             TEXT NOT NULL DEFAULT '',
	started_at        DATETIME NOT NULL,
	finished_at       DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ingestion_runs_run_id ON ingestion_runs(run_id);

CREATE TABLE IF NOT EXISTS api_call_budget (
	provider TEXT NOT NULL,
	month    TEXT NOT NULL,
	calls    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (provider, month)
);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection keeps
	// the tier fan-out from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// InsertIfAbsent inserts rec unless a row with the same (external_id,
// source_name) already exists. On a fresh insert it stamps CreatedAt and
// UpdatedAt, assigns rec.ID, and returns true.
func (s *SQLiteStore) InsertIfAbsent(rec *model.JobRecord) (bool, error) {
	now := time.Now().UTC()
	breakdown, err := marshalBreakdown(rec.ScoreBreakdown)
	if err != nil {
		return false, fmt.Errorf("inserting %s/%s: %w", rec.SourceName, rec.ExternalID, err)
	}
	if rec.ExportStatus == "" {
		rec.ExportStatus = "pending"
	}

	res, err := s.db.Exec(`INSERT OR IGNORE INTO job_records (
		external_id, source_name, canonical_key, title, company, link,
		description, location, remote_eligible, seniority, interview_style,
		role_type, compensation, score, score_breakdown, scored_from_defaults,
		summary, duplicate_of_id, is_stale, applied_at, export_status,
		export_cursor, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ExternalID, rec.SourceName, rec.CanonicalKey, rec.Title, rec.Company, rec.Link,
		rec.Description, rec.Location, rec.RemoteEligible, rec.Seniority, rec.InterviewStyle,
		rec.RoleType, rec.Compensation, rec.Score, breakdown, rec.ScoredFromDefaults,
		rec.Summary, rec.DuplicateOfID, rec.IsStale, rec.AppliedAt, rec.ExportStatus,
		rec.ExportCursor, now, now,
	)
	if err != nil {
		return false, fmt.Errorf("inserting %s/%s: %w", rec.SourceName, rec.ExternalID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting %s/%s: %w", rec.SourceName, rec.ExternalID, err)
	}
	if affected == 0 {
		return false, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("inserting %s/%s: %w", rec.SourceName, rec.ExternalID, err)
	}
	rec.ID = id
	rec.CreatedAt = now
	rec.UpdatedAt = now
	return true, nil
}

// RefreshObservation updates the mutable descriptive fields of an already
// known posting and bumps updated_at. Identity, score, and dedup linkage are
// never touched here.
func (s *SQLiteStore) RefreshObservation(rec *model.JobRecord) error {
	_, err := s.db.Exec(`UPDATE job_records
		SET description = ?, compensation = ?, location = ?, updated_at = ?
		WHERE external_id = ? AND source_name = ?`,
		rec.Description, rec.Compensation, rec.Location, time.Now().UTC(),
		rec.ExternalID, rec.SourceName,
	)
	if err != nil {
		return fmt.Errorf("refreshing %s/%s: %w", rec.SourceName, rec.ExternalID, err)
	}
	return nil
}

const recordColumns = `id, external_id, source_name, canonical_key, title, company, link,
	description, location, remote_eligible, seniority, interview_style, role_type,
	compensation, score, score_breakdown, scored_from_defaults, summary, duplicate_of_id,
	is_stale, applied_at, export_status, export_cursor, created_at, updated_at`

// FindPrimaryByCanonicalKey returns the primary (non-duplicate) record
// holding the given canonical key, excluding one record ID, or nil if none.
func (s *SQLiteStore) FindPrimaryByCanonicalKey(key string, excludeID int64) (*model.JobRecord, error) {
	row := s.db.QueryRow(`SELECT `+recordColumns+` FROM job_records
		WHERE canonical_key = ? AND duplicate_of_id IS NULL AND id != ?
		ORDER BY id LIMIT 1`, key, excludeID)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up canonical key: %w", err)
	}
	return rec, nil
}

// FindByCanonicalPrefix returns records whose canonical key starts with
// prefix (same normalized company and title, any description fingerprint),
// excluding one record ID.
func (s *SQLiteStore) FindByCanonicalPrefix(prefix string, excludeID int64) ([]model.JobRecord, error) {
	rows, err := s.db.Query(`SELECT `+recordColumns+` FROM job_records
		WHERE substr(canonical_key, 1, length(?)) = ? AND id != ?
		ORDER BY id`, prefix, prefix, excludeID)
	if err != nil {
		return nil, fmt.Errorf("looking up canonical prefix: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// LinkDuplicate marks id as a soft duplicate of primaryID.
func (s *SQLiteStore) LinkDuplicate(id, primaryID int64) error {
	_, err := s.db.Exec(`UPDATE job_records SET duplicate_of_id = ? WHERE id = ?`, primaryID, id)
	if err != nil {
		return fmt.Errorf("linking record %d to primary %d: %w", id, primaryID, err)
	}
	return nil
}

// SaveScore stores the extraction result and the computed score for a record.
func (s *SQLiteStore) SaveScore(id int64, score float64, breakdown map[string]float64, fromDefaults bool) error {
	encoded, err := marshalBreakdown(breakdown)
	if err != nil {
		return fmt.Errorf("saving score for record %d: %w", id, err)
	}
	_, err = s.db.Exec(`UPDATE job_records
		SET score = ?, score_breakdown = ?, scored_from_defaults = ?, updated_at = ?
		WHERE id = ?`,
		score, encoded, fromDefaults, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("saving score for record %d: %w", id, err)
	}
	return nil
}

// SaveExtraction stores the structured metadata fields a successful
// extraction call produced for a record.
func (s *SQLiteStore) SaveExtraction(id int64, meta model.Metadata) error {
	_, err := s.db.Exec(`UPDATE job_records
		SET seniority = ?, interview_style = ?, role_type = ?, remote_eligible = ?
		WHERE id = ?`,
		meta.Seniority, meta.InterviewStyle, meta.RoleType, meta.RemoteEligible, id)
	if err != nil {
		return fmt.Errorf("saving extraction for record %d: %w", id, err)
	}
	return nil
}

// SaveSummary stores the summarization output for a record.
func (s *SQLiteStore) SaveSummary(id int64, summary string) error {
	_, err := s.db.Exec(`UPDATE job_records SET summary = ? WHERE id = ?`, summary, id)
	if err != nil {
		return fmt.Errorf("saving summary for record %d: %w", id, err)
	}
	return nil
}

// MarkStale flags every record whose updated_at is older than cutoff and
// returns how many rows were flagged. Staleness is never cleared here.
func (s *SQLiteStore) MarkStale(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`UPDATE job_records SET is_stale = 1
		WHERE is_stale = 0 AND updated_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("marking stale records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("marking stale records: %w", err)
	}
	return n, nil
}

// RankedListings returns non-stale, non-duplicate records ordered by score
// descending, narrowed by opts. With PerCompany set, the best record of each
// company is listed first and the remainder appended, both score-ordered.
func (s *SQLiteStore) RankedListings(opts model.ListingOptions) ([]model.JobRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM job_records
		WHERE is_stale = 0 AND duplicate_of_id IS NULL`
	var args []any
	if opts.Seniority != "" {
		query += ` AND seniority = ?`
		args = append(args, opts.Seniority)
	}
	if !opts.IncludeApplied {
		query += ` AND applied_at IS NULL`
	}
	query += ` ORDER BY score DESC, created_at DESC, id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("ranked listings: %w", err)
	}
	defer rows.Close()

	records, err := collectRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("ranked listings: %w", err)
	}

	if opts.PerCompany {
		records = interleavePerCompany(records)
	}
	if opts.Limit > 0 && len(records) > opts.Limit {
		records = records[:opts.Limit]
	}
	return records, nil
}

// interleavePerCompany reorders a score-sorted slice so each company's best
// record appears before any company's second one.
func interleavePerCompany(records []model.JobRecord) []model.JobRecord {
	seen := make(map[string]bool, len(records))
	first := make([]model.JobRecord, 0, len(records))
	var rest []model.JobRecord
	for _, rec := range records {
		if !seen[rec.Company] {
			seen[rec.Company] = true
			first = append(first, rec)
			continue
		}
		rest = append(rest, rec)
	}
	return append(first, rest...)
}

// ActiveRecords returns every non-stale, non-duplicate record, for rescoring.
func (s *SQLiteStore) ActiveRecords() ([]model.JobRecord, error) {
	rows, err := s.db.Query(`SELECT ` + recordColumns + ` FROM job_records
		WHERE is_stale = 0 AND duplicate_of_id IS NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("loading active records: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// MarkApplied stamps applied_at on a record. Applying twice keeps the
// original timestamp.
func (s *SQLiteStore) MarkApplied(id int64) error {
	_, err := s.db.Exec(`UPDATE job_records SET applied_at = ?
		WHERE id = ? AND applied_at IS NULL`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("marking record %d applied: %w", id, err)
	}
	return nil
}

// HasSeen reports whether a posting from the given source is already stored.
func (s *SQLiteStore) HasSeen(externalID, sourceName string) (bool, error) {
	var exists int
	err := s.db.QueryRow(`SELECT 1 FROM job_records
		WHERE external_id = ? AND source_name = ?`, externalID, sourceName).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking seen status for %s/%s: %w", sourceName, externalID, err)
	}
	return true, nil
}

// BudgetSpent returns how many billed calls a provider has recorded for the
// given month (formatted YYYY-MM).
func (s *SQLiteStore) BudgetSpent(provider, month string) (int, error) {
	var calls int
	err := s.db.QueryRow(`SELECT calls FROM api_call_budget
		WHERE provider = ? AND month = ?`, provider, month).Scan(&calls)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading %s budget for %s: %w", provider, month, err)
	}
	return calls, nil
}

// AddBudgetSpend records billed calls against a provider's monthly budget.
func (s *SQLiteStore) AddBudgetSpend(provider, month string, calls int) error {
	_, err := s.db.Exec(`INSERT INTO api_call_budget (provider, month, calls)
		VALUES (?, ?, ?)
		ON CONFLICT(provider, month) DO UPDATE SET calls = calls + excluded.calls`,
		provider, month, calls)
	if err != nil {
		return fmt.Errorf("recording %s budget spend: %w", provider, err)
	}
	return nil
}

// SaveRunEntries writes the per-provider log entries of a finished run.
func (s *SQLiteStore) SaveRunEntries(entries []model.RunLogEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("saving run entries: %w", err)
	}
	for _, e := range entries {
		_, err := tx.Exec(`INSERT INTO ingestion_runs (
			run_id, provider, tier, fetched, role_filtered, location_filtered,
			inserted, duplicates, scored, error, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.RunID, e.Provider, e.Tier, e.Fetched, e.RoleFiltered, e.LocationFiltered,
			e.Inserted, e.Duplicates, e.Scored, e.Error, e.StartedAt.UTC(), e.FinishedAt.UTC())
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("saving run entry for %s: %w", e.Provider, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("saving run entries: %w", err)
	}
	return nil
}

// RecentRuns returns the latest run log entries, newest first.
func (s *SQLiteStore) RecentRuns(limit int) ([]model.RunLogEntry, error) {
	rows, err := s.db.Query(`SELECT run_id, provider, tier, fetched, role_filtered,
		location_filtered, inserted, duplicates, scored, error, started_at, finished_at
		FROM ingestion_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("loading recent runs: %w", err)
	}
	defer rows.Close()

	var entries []model.RunLogEntry
	for rows.Next() {
		var e model.RunLogEntry
		if err := rows.Scan(&e.RunID, &e.Provider, &e.Tier, &e.Fetched, &e.RoleFiltered,
			&e.LocationFiltered, &e.Inserted, &e.Duplicates, &e.Scored, &e.Error,
			&e.StartedAt, &e.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning run entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*model.JobRecord, error) {
	var rec model.JobRecord
	var breakdown string
	var duplicateOf sql.NullInt64
	var appliedAt sql.NullTime

	err := row.Scan(&rec.ID, &rec.ExternalID, &rec.SourceName, &rec.CanonicalKey,
		&rec.Title, &rec.Company, &rec.Link, &rec.Description, &rec.Location,
		&rec.RemoteEligible, &rec.Seniority, &rec.InterviewStyle, &rec.RoleType,
		&rec.Compensation, &rec.Score, &breakdown, &rec.ScoredFromDefaults, &rec.Summary,
		&duplicateOf, &rec.IsStale, &appliedAt, &rec.ExportStatus, &rec.ExportCursor,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if duplicateOf.Valid {
		rec.DuplicateOfID = &duplicateOf.Int64
	}
	if appliedAt.Valid {
		t := appliedAt.Time
		rec.AppliedAt = &t
	}
	if breakdown != "" && breakdown != "{}" {
		if err := json.Unmarshal([]byte(breakdown), &rec.ScoreBreakdown); err != nil {
			return nil, fmt.Errorf("decoding score breakdown for record %d: %w", rec.ID, err)
		}
	}
	return &rec, nil
}

func collectRecords(rows *sql.Rows) ([]model.JobRecord, error) {
	var records []model.JobRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func marshalBreakdown(breakdown map[string]float64) (string, error) {
	if len(breakdown) == 0 {
		return "{}", nil
	}
	encoded, err := json.Marshal(breakdown)
	if err != nil {
		return "", fmt.Errorf("encoding score breakdown: %w", err)
	}
	return string(encoded), nil
}
