package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dozie/my-job-hunter/internal/config"
	"github.com/dozie/my-job-hunter/internal/model"
	"github.com/dozie/my-job-hunter/internal/store"
)

// fakeProvider returns canned postings or an error. FetchJobs may run
// concurrently with siblings in the same tier.
type fakeProvider struct {
	name     string
	postings []model.RawPosting
	err      error
	onFetch  func(ctx context.Context)

	mu    sync.Mutex
	calls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) FetchJobs(ctx context.Context) ([]model.RawPosting, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.onFetch != nil {
		f.onFetch(ctx)
	}
	return f.postings, f.err
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeScorer records every batch handed to the scoring stage.
type fakeScorer struct {
	mu      sync.Mutex
	batches [][]*model.JobRecord
}

func (f *fakeScorer) ScoreBatch(_ context.Context, records []*model.JobRecord) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, records)
	return len(records)
}

func (f *fakeScorer) scoredIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for _, batch := range f.batches {
		for _, rec := range batch {
			ids = append(ids, rec.ID)
		}
	}
	return ids
}

// fakeNotifier records run summaries.
type fakeNotifier struct {
	mu        sync.Mutex
	summaries []model.RunSummary
}

func (f *fakeNotifier) Notify(summary model.RunSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, summary)
	return nil
}

func (f *fakeNotifier) last(t *testing.T) model.RunSummary {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.summaries)
	return f.summaries[len(f.summaries)-1]
}

func testConfig() config.Config {
	return config.Config{
		RetentionDays: 30,
		Filters: config.FilterConfig{
			TitleKeywords:        []string{"engineer"},
			TitleExcludeKeywords: []string{"frontend"},
			RemoteIndicators:     []string{"remote"},
			OnsiteIndicators:     []string{"hybrid"},
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func posting(id, company, title, desc string) model.RawPosting {
	return model.RawPosting{
		ExternalID:  id,
		Title:       title,
		Company:     company,
		Link:        "https://example.com/" + id,
		Description: desc,
		Location:    "Remote",
	}
}

func TestRunOnce_EndToEndCounts(t *testing.T) {
	s := newTestStore(t)
	scorer := &fakeScorer{}
	notifier := &fakeNotifier{}

	provider := &fakeProvider{name: "greenhouse", postings: []model.RawPosting{
		posting("1", "Acme", "Backend Engineer", "Build the backend."),
		posting("2", "Acme", "Frontend Engineer", "Excluded by role."),
		{ExternalID: "3", Company: "Acme", Title: "Platform Engineer",
			Description: "No location signal at all.", Location: "HQ only"},
	}}
	tiers := []Tier{{Name: "boards", Providers: []model.Provider{provider}}}

	orch := NewOrchestrator(testConfig(), tiers, s, scorer, notifier, discardLogger())
	summary, err := orch.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Entries, 1)
	entry := summary.Entries[0]
	assert.Equal(t, "greenhouse", entry.Provider)
	assert.Equal(t, "boards", entry.Tier)
	assert.Equal(t, 3, entry.Fetched)
	assert.Equal(t, 1, entry.RoleFiltered)
	assert.Equal(t, 1, entry.LocationFiltered)
	assert.Equal(t, 1, entry.Inserted)
	assert.Equal(t, 0, entry.Duplicates)
	assert.Equal(t, 1, entry.Scored)
	assert.Empty(t, entry.Error)
	assert.Equal(t, 1, summary.TotalNew)

	records, err := s.ActiveRecords()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1", records[0].ExternalID)
}

func TestRunOnce_TierOrderGivesPrimacy(t *testing.T) {
	s := newTestStore(t)
	scorer := &fakeScorer{}
	notifier := &fakeNotifier{}

	// The same real-world job reported by two sources in different tiers.
	first := &fakeProvider{name: "coresignal", postings: []model.RawPosting{
		posting("cs-1", "Acme Inc.", "Sr Engineer", "Build the backend."),
	}}
	second := &fakeProvider{name: "lever", postings: []model.RawPosting{
		posting("lv-9", "Acme, Inc.", "Senior Engineer", "Build   the backend."),
	}}
	tiers := []Tier{
		{Name: "premium", Providers: []model.Provider{first}},
		{Name: "boards", Providers: []model.Provider{second}},
	}

	orch := NewOrchestrator(testConfig(), tiers, s, scorer, notifier, discardLogger())
	summary, err := orch.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Entries, 2)
	assert.Equal(t, 1, summary.Entries[0].Inserted)
	assert.Equal(t, 0, summary.Entries[0].Duplicates)
	assert.Equal(t, 0, summary.Entries[1].Inserted)
	assert.Equal(t, 1, summary.Entries[1].Duplicates)
	assert.Equal(t, 1, summary.TotalNew, "the duplicate is not new")

	// Only the earlier tier's primary reaches the scoring stage.
	listings, err := s.RankedListings(model.ListingOptions{})
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "coresignal", listings[0].SourceName)
	assert.Equal(t, []int64{listings[0].ID}, scorer.scoredIDs())
}

func TestRunOnce_ProviderFailureIsolated(t *testing.T) {
	s := newTestStore(t)
	scorer := &fakeScorer{}
	notifier := &fakeNotifier{}

	failing := &fakeProvider{name: "adzuna", err: errors.New("quota exhausted")}
	healthy := &fakeProvider{name: "serpapi", postings: []model.RawPosting{
		posting("sp-1", "Beta", "Data Engineer", "Pipelines."),
	}}
	tiers := []Tier{{Name: "aggregators", Providers: []model.Provider{failing, healthy}}}

	orch := NewOrchestrator(testConfig(), tiers, s, scorer, notifier, discardLogger())
	summary, err := orch.RunOnce(context.Background())
	require.NoError(t, err, "a provider failure never fails the run")

	require.Len(t, summary.Entries, 2)
	failed := summary.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "adzuna", failed[0].Provider)
	assert.Contains(t, failed[0].Error, "quota exhausted")
	assert.Equal(t, 1, summary.TotalNew, "the healthy sibling still ingests")
}

func TestRunOnce_SecondCallSkipsWhileRunning(t *testing.T) {
	s := newTestStore(t)
	release := make(chan struct{})
	started := make(chan struct{})

	var once sync.Once
	blocked := &fakeProvider{name: "greenhouse", onFetch: func(ctx context.Context) {
		once.Do(func() { close(started) })
		<-release
	}}
	tiers := []Tier{{Name: "boards", Providers: []model.Provider{blocked}}}
	orch := NewOrchestrator(testConfig(), tiers, s, &fakeScorer{}, &fakeNotifier{}, discardLogger())

	done := make(chan error, 1)
	go func() {
		_, err := orch.RunOnce(context.Background())
		done <- err
	}()

	<-started
	_, err := orch.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(release)
	require.NoError(t, <-done)

	// With the first run finished the guard is released again.
	_, err = orch.RunOnce(context.Background())
	assert.NoError(t, err)
}

func TestRunOnce_CancelBetweenTiersStopsLaterTiers(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	cancelling := &fakeProvider{name: "coresignal", onFetch: func(context.Context) { cancel() }}
	never := &fakeProvider{name: "lever"}
	tiers := []Tier{
		{Name: "premium", Providers: []model.Provider{cancelling}},
		{Name: "boards", Providers: []model.Provider{never}},
	}

	orch := NewOrchestrator(testConfig(), tiers, s, &fakeScorer{}, &fakeNotifier{}, discardLogger())
	summary, err := orch.RunOnce(ctx)
	require.NoError(t, err)

	assert.Len(t, summary.Entries, 1, "only the tier in flight completes")
	assert.Equal(t, 0, never.callCount(), "later tiers must not start after cancellation")
}

func TestRunOnce_ReobservationNotScoredAgain(t *testing.T) {
	s := newTestStore(t)
	scorer := &fakeScorer{}

	provider := &fakeProvider{name: "greenhouse", postings: []model.RawPosting{
		posting("1", "Acme", "Backend Engineer", "Build the backend."),
	}}
	tiers := []Tier{{Name: "boards", Providers: []model.Provider{provider}}}
	orch := NewOrchestrator(testConfig(), tiers, s, scorer, &fakeNotifier{}, discardLogger())

	_, err := orch.RunOnce(context.Background())
	require.NoError(t, err)
	summary, err := orch.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.TotalNew)
	assert.Equal(t, 0, summary.Entries[0].Scored, "re-observations skip the scoring stage")
	assert.Len(t, scorer.scoredIDs(), 1, "only the first observation was scored")
}

func TestRunOnce_PersistsRunLog(t *testing.T) {
	s := newTestStore(t)
	provider := &fakeProvider{name: "greenhouse", postings: []model.RawPosting{
		posting("1", "Acme", "Backend Engineer", "Build the backend."),
	}}
	tiers := []Tier{{Name: "boards", Providers: []model.Provider{provider}}}
	orch := NewOrchestrator(testConfig(), tiers, s, &fakeScorer{}, &fakeNotifier{}, discardLogger())

	summary, err := orch.RunOnce(context.Background())
	require.NoError(t, err)

	runs, err := s.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, summary.RunID, runs[0].RunID)
	assert.Equal(t, "greenhouse", runs[0].Provider)
	assert.Equal(t, 1, runs[0].Inserted)
	assert.False(t, runs[0].FinishedAt.IsZero())
}

func TestRunOnce_NotifierGetsSummary(t *testing.T) {
	s := newTestStore(t)
	notifier := &fakeNotifier{}
	provider := &fakeProvider{name: "greenhouse", postings: []model.RawPosting{
		posting("1", "Acme", "Backend Engineer", "Build the backend."),
	}}
	tiers := []Tier{{Name: "boards", Providers: []model.Provider{provider}}}
	orch := NewOrchestrator(testConfig(), tiers, s, &fakeScorer{}, notifier, discardLogger())

	summary, err := orch.RunOnce(context.Background())
	require.NoError(t, err)

	got := notifier.last(t)
	assert.Equal(t, summary.RunID, got.RunID)
	assert.Equal(t, summary.TotalNew, got.TotalNew)
}

func TestRunOnce_SweepCountsInSummary(t *testing.T) {
	s := newTestStore(t)
	seed := &fakeProvider{name: "greenhouse", postings: []model.RawPosting{
		posting("1", "Acme", "Backend Engineer", "Build the backend."),
	}}
	tiers := []Tier{{Name: "boards", Providers: []model.Provider{seed}}}

	cfg := testConfig()
	orch := NewOrchestrator(cfg, tiers, s, &fakeScorer{}, &fakeNotifier{}, discardLogger())
	summary, err := orch.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.StaleMarked, "fresh records stay inside the window")

	// A negative retention puts the cutoff in the future, aging every record
	// immediately; the sweep count must surface in the summary.
	cfg.RetentionDays = -1
	aggressive := NewOrchestrator(cfg, tiers, s, &fakeScorer{}, &fakeNotifier{}, discardLogger())
	summary, err = aggressive.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.StaleMarked)
}

func TestRunOnce_ProvidersInTierRunConcurrently(t *testing.T) {
	s := newTestStore(t)

	var mu sync.Mutex
	inFlight, peak := 0, 0
	track := func(context.Context) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
	}

	tiers := []Tier{{Name: "boards", Providers: []model.Provider{
		&fakeProvider{name: "greenhouse", onFetch: track},
		&fakeProvider{name: "lever", onFetch: track},
	}}}
	orch := NewOrchestrator(testConfig(), tiers, s, &fakeScorer{}, &fakeNotifier{}, discardLogger())

	_, err := orch.RunOnce(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, peak, "both providers should be in flight together")
}
