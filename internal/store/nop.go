package store

import (
	"sync/atomic"
	"time"

	"github.com/dozie/my-job-hunter/internal/model"
)

// NopStore is a no-op store used in dry-run mode. Every posting inserts as
// new, nothing is retained, and the run log evaporates.
type NopStore struct {
	nextID atomic.Int64
}

func NewNopStore() *NopStore { return &NopStore{} }

func (s *NopStore) InsertIfAbsent(rec *model.JobRecord) (bool, error) {
	rec.ID = s.nextID.Add(1)
	return true, nil
}

func (s *NopStore) RefreshObservation(rec *model.JobRecord) error { return nil }

func (s *NopStore) FindPrimaryByCanonicalKey(key string, excludeID int64) (*model.JobRecord, error) {
	return nil, nil
}

func (s *NopStore) FindByCanonicalPrefix(prefix string, excludeID int64) ([]model.JobRecord, error) {
	return nil, nil
}

func (s *NopStore) LinkDuplicate(id, primaryID int64) error { return nil }

func (s *NopStore) SaveScore(id int64, score float64, breakdown map[string]float64, fromDefaults bool) error {
	return nil
}

func (s *NopStore) SaveExtraction(id int64, meta model.Metadata) error { return nil }

func (s *NopStore) SaveSummary(id int64, summary string) error { return nil }

func (s *NopStore) MarkStale(cutoff time.Time) (int64, error) { return 0, nil }

func (s *NopStore) RankedListings(opts model.ListingOptions) ([]model.JobRecord, error) {
	return nil, nil
}

func (s *NopStore) ActiveRecords() ([]model.JobRecord, error) { return nil, nil }

func (s *NopStore) MarkApplied(id int64) error { return nil }

func (s *NopStore) HasSeen(externalID, sourceName string) (bool, error) { return false, nil }

func (s *NopStore) BudgetSpent(provider, month string) (int, error) { return 0, nil }

func (s *NopStore) AddBudgetSpend(provider, month string, calls int) error { return nil }

func (s *NopStore) SaveRunEntries(entries []model.RunLogEntry) error { return nil }

func (s *NopStore) RecentRuns(limit int) ([]model.RunLogEntry, error) { return nil, nil }
