package model

import "time"

// RunLogEntry records one provider's outcome within one ingestion run.
// Entries are written once when the provider finishes and never mutated.
type RunLogEntry struct {
	RunID            string // shared by every entry of the same run
	Provider         string
	Tier             string
	Fetched          int // raw postings returned by the provider
	RoleFiltered     int // rejected by the role filter
	LocationFiltered int // rejected by the location filter
	Inserted         int // fresh primaries
	Duplicates       int // fresh rows linked to an existing primary
	Scored           int
	Error            string // empty on success
	StartedAt        time.Time
	FinishedAt       time.Time
}

// RunSummary aggregates a whole ingestion run for the notifier.
type RunSummary struct {
	RunID       string
	Entries     []RunLogEntry
	TotalNew    int   // primaries inserted across all providers
	StaleMarked int64 // records flagged by the staleness sweep
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Failed returns the entries that recorded a provider error.
func (s RunSummary) Failed() []RunLogEntry {
	var failed []RunLogEntry
	for _, e := range s.Entries {
		if e.Error != "" {
			failed = append(failed, e)
		}
	}
	return failed
}
