package notifier

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dozie/my-job-hunter/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleSummary(withFailure bool) model.RunSummary {
	started := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	finished := started.Add(90 * time.Second)
	summary := model.RunSummary{
		RunID: "run-42",
		Entries: []model.RunLogEntry{
			{
				RunID: "run-42", Provider: "greenhouse", Tier: "boards",
				Fetched: 40, Inserted: 5, Duplicates: 3, Scored: 5,
				StartedAt: started, FinishedAt: finished,
			},
			{
				RunID: "run-42", Provider: "lever", Tier: "boards",
				Fetched: 12, Inserted: 1, Scored: 1,
				StartedAt: started, FinishedAt: finished,
			},
		},
		TotalNew:    6,
		StaleMarked: 2,
		StartedAt:   started,
		FinishedAt:  finished,
	}
	if withFailure {
		summary.Entries = append(summary.Entries, model.RunLogEntry{
			RunID: "run-42", Provider: "adzuna", Tier: "aggregators",
			Error:     "quota exhausted",
			StartedAt: started, FinishedAt: finished,
		})
	}
	return summary
}

func TestSlackNotifier_EmptySummary(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, srv.Client(), discardLogger())

	if err := n.Notify(model.RunSummary{RunID: "empty"}); err != nil {
		t.Errorf("Notify(empty) = %v, want nil", err)
	}
	if c := calls.Load(); c != 0 {
		t.Errorf("expected 0 HTTP calls, got %d", c)
	}
}

func TestSlackNotifier_SingleDigestPerRun(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, srv.Client(), discardLogger())

	if err := n.Notify(sampleSummary(true)); err != nil {
		t.Fatalf("Notify() = %v, want nil", err)
	}
	if c := calls.Load(); c != 1 {
		t.Errorf("expected 1 HTTP call for 3 entries, got %d", c)
	}
}

func TestSlackNotifier_DigestPayload(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, srv.Client(), discardLogger())

	if err := n.Notify(sampleSummary(false)); err != nil {
		t.Fatalf("Notify() = %v, want nil", err)
	}

	var payload slackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if len(payload.Blocks) != 4 {
		t.Fatalf("expected 4 blocks (header, totals, providers, divider), got %d", len(payload.Blocks))
	}

	header := payload.Blocks[0]
	if header.Type != "header" || header.Text.Text != "🔎 Job hunt: 6 new postings" {
		t.Errorf("header = %q, want total in header text", header.Text.Text)
	}

	totals := payload.Blocks[1]
	if totals.Type != "section" || len(totals.Fields) != 4 {
		t.Fatalf("block[1] not a 4-field section")
	}
	if totals.Fields[0].Text != "*New:*\n6" {
		t.Errorf("new field = %q", totals.Fields[0].Text)
	}
	if totals.Fields[1].Text != "*Marked stale:*\n2" {
		t.Errorf("stale field = %q", totals.Fields[1].Text)
	}
	if totals.Fields[3].Text != "*Elapsed:*\n1m30s" {
		t.Errorf("elapsed field = %q", totals.Fields[3].Text)
	}

	providers := payload.Blocks[2]
	if providers.Type != "section" || providers.Text == nil {
		t.Fatalf("block[2] not a text section")
	}
	want := "• *Greenhouse* (boards): 40 fetched, 5 new, 3 duplicates, 5 scored"
	if !strings.Contains(providers.Text.Text, want) {
		t.Errorf("provider lines = %q, want to contain %q", providers.Text.Text, want)
	}
	if !strings.Contains(providers.Text.Text, "*Lever*") {
		t.Errorf("provider lines missing lever entry: %q", providers.Text.Text)
	}

	if payload.Blocks[3].Type != "divider" {
		t.Errorf("last block type = %q, want divider", payload.Blocks[3].Type)
	}
}

func TestSlackNotifier_FailedProvidersSection(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, srv.Client(), discardLogger())

	if err := n.Notify(sampleSummary(true)); err != nil {
		t.Fatalf("Notify() = %v, want nil", err)
	}

	var payload slackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if len(payload.Blocks) != 5 {
		t.Fatalf("expected 5 blocks with a failure section, got %d", len(payload.Blocks))
	}

	failures := payload.Blocks[3]
	if failures.Text == nil || !strings.Contains(failures.Text.Text, "Failed providers") {
		t.Fatalf("block[3] is not the failure section: %+v", failures)
	}
	if !strings.Contains(failures.Text.Text, "*Adzuna*: quota exhausted") {
		t.Errorf("failure section = %q, want provider and error", failures.Text.Text)
	}

	// The failed provider must not appear in the per-provider counts.
	if strings.Contains(payload.Blocks[2].Text.Text, "Adzuna") {
		t.Errorf("failed provider leaked into counts section: %q", payload.Blocks[2].Text.Text)
	}
}

func TestSlackNotifier_SlackReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, srv.Client(), discardLogger())

	if err := n.Notify(sampleSummary(false)); err == nil {
		t.Error("expected error when slack returns 500, got nil")
	}
}

func TestSlackNotifier_RateLimited(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := calls.Add(1)
		if c == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
		} else {
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, srv.Client(), discardLogger())

	if err := n.Notify(sampleSummary(false)); err != nil {
		t.Fatalf("expected nil after retry, got %v", err)
	}
	if c := calls.Load(); c != 2 {
		t.Errorf("expected 2 HTTP calls (initial + retry), got %d", c)
	}
}

func TestSlackNotifier_RateLimitedRetryFails(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := calls.Add(1)
		if c == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
		} else {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, srv.Client(), discardLogger())

	err := n.Notify(sampleSummary(false))
	if err == nil {
		t.Fatal("expected error when retry also fails, got nil")
	}
	if !strings.Contains(err.Error(), "on retry") {
		t.Errorf("error = %v, want retry failure", err)
	}
	if c := calls.Load(); c != 2 {
		t.Errorf("expected 2 HTTP calls, got %d", c)
	}
}

func TestSendTestMessage(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, srv.Client(), discardLogger())

	if err := SendTestMessage(n); err != nil {
		t.Fatalf("SendTestMessage() = %v, want nil", err)
	}

	var payload slackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if !strings.Contains(payload.Blocks[0].Text.Text, "3 new postings") {
		t.Errorf("test digest header = %q", payload.Blocks[0].Text.Text)
	}
}
