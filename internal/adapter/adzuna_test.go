package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/dozie/my-job-hunter/internal/config"
)

func adzunaTestConfig() config.AdzunaConfig {
	return config.AdzunaConfig{
		AppID:          "app",
		AppKey:         "key",
		Countries:      []string{"us"},
		Query:          "software engineer",
		MaxPages:       5,
		ResultsPerPage: 2,
		MinDelay:       0,
	}
}

func adzunaPagePayload(ids ...string) string {
	payload := `{"count": 10, "results": [`
	for i, id := range ids {
		if i > 0 {
			payload += ","
		}
		payload += fmt.Sprintf(`{
			"id": "%s",
			"title": "Backend Engineer",
			"company": {"display_name": "Acme"},
			"location": {"display_name": "Austin, TX"},
			"description": "Ship services.",
			"redirect_url": "https://adzuna.example/%s",
			"salary_min": 120000,
			"salary_max": 150000,
			"contract_time": "full_time"
		}`, id, id)
	}
	return payload + `]}`
}

func TestAdzuna_FetchJobs_StopsOnShortPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/api/jobs/us/search/1":
			if r.URL.Query().Get("app_id") != "app" || r.URL.Query().Get("app_key") != "key" {
				t.Errorf("missing credentials in query: %s", r.URL.RawQuery)
			}
			w.Write([]byte(adzunaPagePayload("a1", "a2")))
		case "/v1/api/jobs/us/search/2":
			w.Write([]byte(adzunaPagePayload("a3")))
		default:
			t.Errorf("unexpected page request: %s", r.URL.Path)
			w.Write([]byte(adzunaPagePayload()))
		}
	}))
	defer srv.Close()

	adapter := NewAdzunaAdapter(adzunaTestConfig(), testClient(srv), testLogger())

	postings, err := adapter.FetchJobs(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(postings) != 3 {
		t.Fatalf("expected 3 postings over 2 pages, got %d", len(postings))
	}

	p := postings[0]
	if p.ExternalID != "a1" {
		t.Errorf("expected ExternalID a1, got %s", p.ExternalID)
	}
	if p.Company != "Acme" {
		t.Errorf("expected company Acme, got %s", p.Company)
	}
	if p.Compensation != "120000-150000" {
		t.Errorf("unexpected compensation %q", p.Compensation)
	}
	if p.Metadata["country"] != "us" {
		t.Errorf("expected country metadata us, got %q", p.Metadata["country"])
	}
}

func TestAdzuna_FetchJobs_RespectsPageCap(t *testing.T) {
	var pages atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages.Add(1)
		w.Header().Set("Content-Type", "application/json")
		// Every page full, so only the cap stops the loop.
		w.Write([]byte(adzunaPagePayload(fmt.Sprintf("p%d-1", pages.Load()), fmt.Sprintf("p%d-2", pages.Load()))))
	}))
	defer srv.Close()

	cfg := adzunaTestConfig()
	cfg.MaxPages = 3
	adapter := NewAdzunaAdapter(cfg, testClient(srv), testLogger())

	postings, err := adapter.FetchJobs(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := pages.Load(); got != 3 {
		t.Errorf("expected exactly 3 page requests, got %d", got)
	}
	if len(postings) != 6 {
		t.Errorf("expected 6 postings, got %d", len(postings))
	}
}

func TestAdzuna_FetchJobs_MidPaginationFailureKeepsEarlierPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/api/jobs/us/search/1":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(adzunaPagePayload("a1", "a2")))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	cfg := adzunaTestConfig()
	cfg.Countries = []string{"us", "gb"}
	adapter := NewAdzunaAdapter(cfg, testClient(srv), testLogger())

	// us fails on page 2 but keeps page 1; gb fails outright. Not every
	// country failed, so the fetch succeeds with the partial set.
	postings, err := adapter.FetchJobs(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(postings) != 2 {
		t.Fatalf("expected the 2 postings from the first us page, got %d", len(postings))
	}
}

func TestAdzuna_FetchJobs_AllCountriesFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := adzunaTestConfig()
	cfg.Countries = []string{"us", "gb"}
	adapter := NewAdzunaAdapter(cfg, testClient(srv), testLogger())

	_, err := adapter.FetchJobs(context.Background())
	if err == nil {
		t.Fatal("expected error when every country fails, got nil")
	}
}

func TestAdzunaCompensation(t *testing.T) {
	tests := []struct {
		name     string
		min, max float64
		want     string
	}{
		{"band", 120000, 150000, "120000-150000"},
		{"single figure", 0, 90000, "90000"},
		{"equal bounds", 100000, 100000, "100000"},
		{"absent", 0, 0, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := adzunaCompensation(tc.min, tc.max); got != tc.want {
				t.Errorf("adzunaCompensation(%v, %v) = %q, want %q", tc.min, tc.max, got, tc.want)
			}
		})
	}
}
