package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dozie/my-job-hunter/internal/config"
)

func TestLever_FetchJobs_Success(t *testing.T) {
	payload := `[
		{
			"id": "ff7ef527-b0d3-4c44-836a-8d6b58ac321e",
			"text": "Software Engineer",
			"description": "<div>Full HTML description</div>",
			"descriptionPlain": "Plain text job description",
			"categories": {
				"team": "Engineering",
				"department": "Platform",
				"location": "San Francisco, CA",
				"commitment": "Full-time",
				"allLocations": ["San Francisco, CA", "Remote"]
			},
			"workplaceType": "remote",
			"salaryRange": {"min": 120000, "max": 160000, "currency": "USD", "interval": "per-year-salary"},
			"hostedUrl": "https://jobs.lever.co/acme/ff7ef527-b0d3-4c44-836a-8d6b58ac321e"
		},
		{
			"id": "a1b2c3d4-e5f6-7890-abcd-ef1234567890",
			"text": "Backend Engineer",
			"description": "<div>Backend job description</div>",
			"descriptionPlain": "Backend job description",
			"categories": {
				"team": "Engineering",
				"department": "Backend",
				"location": "New York, NY",
				"commitment": "Full-time",
				"allLocations": []
			},
			"workplaceType": "hybrid",
			"hostedUrl": "https://jobs.lever.co/acme/a1b2c3d4-e5f6-7890-abcd-ef1234567890"
		}
	]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v0/postings/acme" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	boards := []config.BoardConfig{{Company: "Acme Corp", Token: "acme"}}
	adapter := NewLeverAdapter(boards, testClient(srv), testLogger())

	postings, err := adapter.FetchJobs(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(postings) != 2 {
		t.Fatalf("expected 2 postings, got %d", len(postings))
	}

	p := postings[0]
	if p.ExternalID != "ff7ef527-b0d3-4c44-836a-8d6b58ac321e" {
		t.Errorf("unexpected ExternalID %s", p.ExternalID)
	}
	if p.Company != "Acme Corp" {
		t.Errorf("expected company Acme Corp, got %s", p.Company)
	}
	if p.Location != "San Francisco, CA, Remote" {
		t.Errorf("expected joined allLocations, got %s", p.Location)
	}
	if p.Description != "Plain text job description" {
		t.Errorf("expected descriptionPlain, got %q", p.Description)
	}
	if p.RemoteEligible == nil || !*p.RemoteEligible {
		t.Error("workplaceType remote must assert RemoteEligible true")
	}
	if p.Compensation != "USD 120000-160000 per year salary" {
		t.Errorf("unexpected compensation %q", p.Compensation)
	}
	if p.Metadata["team"] != "Engineering" {
		t.Errorf("expected team metadata, got %q", p.Metadata["team"])
	}

	p2 := postings[1]
	if p2.Location != "New York, NY" {
		t.Errorf("expected fallback to categories.location, got %s", p2.Location)
	}
	if p2.RemoteEligible == nil || *p2.RemoteEligible {
		t.Error("workplaceType hybrid must assert RemoteEligible false")
	}
	if p2.Compensation != "" {
		t.Errorf("expected empty compensation without salaryRange, got %q", p2.Compensation)
	}
}

func TestLever_FetchJobs_EmptyBoard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	boards := []config.BoardConfig{{Company: "Empty Co", Token: "empty-co"}}
	adapter := NewLeverAdapter(boards, testClient(srv), testLogger())

	postings, err := adapter.FetchJobs(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(postings) != 0 {
		t.Fatalf("expected 0 postings, got %d", len(postings))
	}
}

func TestLever_FetchJobs_FailingBoardSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v0/postings/broken" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id": "x1", "text": "Engineer", "descriptionPlain": "desc", "categories": {"location": "NYC"}, "hostedUrl": "https://x"}]`))
	}))
	defer srv.Close()

	boards := []config.BoardConfig{
		{Company: "Broken Co", Token: "broken"},
		{Company: "Fine Co", Token: "fine"},
	}
	adapter := NewLeverAdapter(boards, testClient(srv), testLogger())

	postings, err := adapter.FetchJobs(context.Background())
	if err != nil {
		t.Fatalf("one failing board must not fail the fetch: %v", err)
	}
	if len(postings) != 1 || postings[0].Company != "Fine Co" {
		t.Fatalf("expected only the healthy board's posting, got %+v", postings)
	}
}

func TestLever_FetchJobs_AllBoardsFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	boards := []config.BoardConfig{{Company: "Fail Co", Token: "fail-co"}}
	adapter := NewLeverAdapter(boards, testClient(srv), testLogger())

	_, err := adapter.FetchJobs(context.Background())
	if err == nil {
		t.Fatal("expected error when every board fails, got nil")
	}
}

func TestLeverRemote(t *testing.T) {
	if got := leverRemote("remote"); got == nil || !*got {
		t.Error("remote must map to true")
	}
	if got := leverRemote("onsite"); got == nil || *got {
		t.Error("onsite must map to false")
	}
	if got := leverRemote("hybrid"); got == nil || *got {
		t.Error("hybrid must map to false")
	}
	if got := leverRemote("unspecified"); got != nil {
		t.Error("unspecified must stay unasserted")
	}
	if got := leverRemote(""); got != nil {
		t.Error("empty must stay unasserted")
	}
}
