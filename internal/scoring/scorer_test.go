package scoring

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dozie/my-job-hunter/internal/model"
)

// fakeScoreStore records scoring-stage writes. Safe for the concurrent
// batch path.
type fakeScoreStore struct {
	mu           sync.Mutex
	extractions  map[int64]model.Metadata
	scores       map[int64]float64
	fromDefaults map[int64]bool
	summaries    map[int64]string
	saveScoreErr error
}

func newFakeScoreStore() *fakeScoreStore {
	return &fakeScoreStore{
		extractions:  make(map[int64]model.Metadata),
		scores:       make(map[int64]float64),
		fromDefaults: make(map[int64]bool),
		summaries:    make(map[int64]string),
	}
}

func (f *fakeScoreStore) SaveExtraction(id int64, meta model.Metadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extractions[id] = meta
	return nil
}

func (f *fakeScoreStore) SaveScore(id int64, score float64, _ map[string]float64, fromDefaults bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveScoreErr != nil {
		return f.saveScoreErr
	}
	f.scores[id] = score
	f.fromDefaults[id] = fromDefaults
	return nil
}

func (f *fakeScoreStore) SaveSummary(id int64, summary string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries[id] = summary
	return nil
}

func newTestScorer(store ScoreStore, extract, summarize LLMProvider) *Scorer {
	logger := discardLogger()
	return &Scorer{
		extractor:  NewExtractor(extract, ExtractTemplate, logger),
		summarizer: NewSummarizer(summarize, SummarizeTemplate, logger),
		store:      store,
		cfg:        testScoringConfig(),
		logger:     logger,
	}
}

func scorableRecord(id int64, desc string) *model.JobRecord {
	return &model.JobRecord{
		ID:          id,
		Title:       "Senior Backend Engineer",
		Company:     "acme",
		Location:    "Berlin, Germany",
		Description: desc,
	}
}

func TestScoreBatch_ScoresAndSummarizesHighMatch(t *testing.T) {
	store := newFakeScoreStore()
	extract := &mockProvider{response: validMetadataJSON}
	summarize := &mockProvider{response: "Great team, practical process."}
	scorer := newTestScorer(store, extract, summarize)

	rec := scorableRecord(1, "We build the payments backend in Go.")
	scored := scorer.ScoreBatch(context.Background(), []*model.JobRecord{rec})

	require.Equal(t, 1, scored)
	assert.Equal(t, 10.0, store.scores[1])
	assert.False(t, store.fromDefaults[1])
	assert.Equal(t, model.SenioritySenior, store.extractions[1].Seniority)
	assert.Equal(t, "Great team, practical process.", store.summaries[1])
	assert.Equal(t, 10.0, rec.Score)
	assert.Equal(t, "Great team, practical process.", rec.Summary)
}

func TestScoreBatch_BelowThresholdSkipsSummary(t *testing.T) {
	store := newFakeScoreStore()
	lowJSON := `{"seniority":"intern","remote_eligible":false,"interview_style":"leetcode","role_type":"other"}`
	extract := &mockProvider{response: lowJSON}
	summarize := &mockProvider{response: "should never be requested"}
	scorer := newTestScorer(store, extract, summarize)

	rec := scorableRecord(1, "Intern position, daily algorithm drills.")
	rec.Location = "Austin, TX"
	scored := scorer.ScoreBatch(context.Background(), []*model.JobRecord{rec})

	require.Equal(t, 1, scored)
	assert.Less(t, store.scores[1], 7.0)
	assert.Zero(t, summarize.callCount(), "summarization must be gated on the threshold")
	assert.Empty(t, store.summaries)
}

func TestScoreBatch_EmptyDescriptionNeverExtracted(t *testing.T) {
	store := newFakeScoreStore()
	extract := &mockProvider{response: validMetadataJSON}
	scorer := newTestScorer(store, extract, &mockProvider{})

	rec := scorableRecord(1, "")
	scored := scorer.ScoreBatch(context.Background(), []*model.JobRecord{rec})

	assert.Equal(t, 0, scored)
	assert.Zero(t, extract.callCount(), "no description means no extraction attempt")
	assert.Empty(t, store.scores, "the zero score stands unwritten")
}

func TestScoreBatch_ExtractionFailureScoresFromDefaults(t *testing.T) {
	store := newFakeScoreStore()
	extract := &mockProvider{err: errors.New("upstream timeout")}
	summarize := &mockProvider{response: "unused"}
	scorer := newTestScorer(store, extract, summarize)

	rec := scorableRecord(1, "A perfectly fine description.")
	scored := scorer.ScoreBatch(context.Background(), []*model.JobRecord{rec})

	require.Equal(t, 1, scored)
	assert.True(t, store.fromDefaults[1])
	assert.True(t, rec.ScoredFromDefaults)
	assert.Empty(t, store.extractions, "fallback metadata is never persisted as extraction output")
	// Default metadata at a full-bucket location: role fallback 0.75 plus
	// location 1.5 over the weight sum of 10.
	assert.Equal(t, 2.25, store.scores[1])
	assert.Zero(t, summarize.callCount())
}

func TestScoreBatch_PersistFailureSkipsRecordOnly(t *testing.T) {
	store := newFakeScoreStore()
	store.saveScoreErr = errors.New("disk full")
	extract := &mockProvider{response: validMetadataJSON}
	scorer := newTestScorer(store, extract, &mockProvider{response: "s"})

	recs := []*model.JobRecord{
		scorableRecord(1, "First posting."),
		scorableRecord(2, "Second posting."),
	}
	scored := scorer.ScoreBatch(context.Background(), recs)

	assert.Equal(t, 0, scored, "persist failures are logged, not counted as scored")
}

func TestScoreBatch_CountsAcrossRecords(t *testing.T) {
	store := newFakeScoreStore()
	extract := &mockProvider{response: validMetadataJSON}
	scorer := newTestScorer(store, extract, &mockProvider{response: "s"})

	recs := []*model.JobRecord{
		scorableRecord(1, "First posting."),
		scorableRecord(2, ""),
		scorableRecord(3, "Third posting."),
	}
	scored := scorer.ScoreBatch(context.Background(), recs)

	assert.Equal(t, 2, scored)
	assert.Equal(t, 2, extract.callCount())
}

func TestRescore_FormulaOnlyMakesNoCalls(t *testing.T) {
	store := newFakeScoreStore()
	extract := &mockProvider{response: validMetadataJSON}
	summarize := &mockProvider{response: "unused"}
	scorer := newTestScorer(store, extract, summarize)

	records := []model.JobRecord{{
		ID:             1,
		Title:          "Senior Backend Engineer",
		Location:       "Berlin",
		Description:    "desc",
		Seniority:      model.SenioritySenior,
		RemoteEligible: true,
		InterviewStyle: model.InterviewPractical,
		RoleType:       model.RoleBackend,
	}}

	rescored, err := scorer.Rescore(context.Background(), records, false)
	require.NoError(t, err)
	assert.Equal(t, 1, rescored)
	assert.Equal(t, 10.0, store.scores[1])
	assert.Zero(t, extract.callCount(), "persisted metadata is enough to re-apply the formula")
	assert.Zero(t, summarize.callCount())
}

func TestRescore_DefaultsScoredRecordsAreReExtracted(t *testing.T) {
	store := newFakeScoreStore()
	extract := &mockProvider{response: validMetadataJSON}
	scorer := newTestScorer(store, extract, &mockProvider{response: "s"})

	records := []model.JobRecord{{
		ID:                 1,
		Title:              "Senior Backend Engineer",
		Location:           "Berlin",
		Description:        "desc",
		ScoredFromDefaults: true,
	}}

	rescored, err := scorer.Rescore(context.Background(), records, false)
	require.NoError(t, err)
	assert.Equal(t, 1, rescored)
	assert.Equal(t, 1, extract.callCount(), "fallback metadata must be replaced by a real extraction")
	assert.False(t, store.fromDefaults[1])
	assert.Equal(t, 10.0, store.scores[1])
}

func TestRescore_ExtractFlagReExtractsEverything(t *testing.T) {
	store := newFakeScoreStore()
	extract := &mockProvider{response: validMetadataJSON}
	scorer := newTestScorer(store, extract, &mockProvider{response: "s"})

	records := []model.JobRecord{
		{ID: 1, Title: "A", Location: "Berlin", Description: "desc", Seniority: model.SeniorityMid},
		{ID: 2, Title: "B", Location: "Berlin", Description: "desc", Seniority: model.SenioritySenior},
		{ID: 3, Title: "C", Location: "Berlin", Description: ""},
	}

	rescored, err := scorer.Rescore(context.Background(), records, true)
	require.NoError(t, err)
	assert.Equal(t, 2, rescored, "descriptionless records stay skipped")
	assert.Equal(t, 2, extract.callCount())
}

func TestRescore_ReportsFirstError(t *testing.T) {
	store := newFakeScoreStore()
	store.saveScoreErr = errors.New("disk full")
	scorer := newTestScorer(store, &mockProvider{response: validMetadataJSON}, &mockProvider{})

	records := []model.JobRecord{{
		ID: 1, Title: "A", Location: "Berlin", Description: "desc", Seniority: model.SeniorityMid,
	}}

	rescored, err := scorer.Rescore(context.Background(), records, false)
	assert.Error(t, err)
	assert.Equal(t, 0, rescored)
}

func TestNopScorer_DoesNothing(t *testing.T) {
	n := NewNopScorer()
	scored := n.ScoreBatch(context.Background(), []*model.JobRecord{scorableRecord(1, "desc")})
	assert.Equal(t, 0, scored)
}
