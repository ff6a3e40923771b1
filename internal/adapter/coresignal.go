package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	neturl "net/url"
	"strings"

	"github.com/dozie/my-job-hunter/internal/config"
	"github.com/dozie/my-job-hunter/internal/model"
	"github.com/dozie/my-job-hunter/internal/parallel"
)

const coresignalBaseURL = "https://api.coresignal.com/cdapi/v2/job_base"

// coresignalNextPageHeader carries the cursor for the next search page.
const coresignalNextPageHeader = "X-Next-Page-After"

// coresignalFilter is the POST body for the search endpoint.
type coresignalFilter struct {
	Title             string `json:"title,omitempty"`
	Country           string `json:"country,omitempty"`
	ApplicationActive bool   `json:"application_active"`
	Deleted           bool   `json:"deleted"`
}

// coresignalRecord is the full posting returned by the collect endpoint.
type coresignalRecord struct {
	ID                int64  `json:"id"`
	Title             string `json:"title"`
	CompanyName       string `json:"company_name"`
	Location          string `json:"location"`
	Country           string `json:"country"`
	Description       string `json:"description"`
	URL               string `json:"url"`
	Salary            string `json:"salary"`
	Seniority         string `json:"seniority"`
	EmploymentType    string `json:"employment_type"`
	Remote            *bool  `json:"remote"`
	Deleted           int    `json:"deleted"`
	ApplicationActive int    `json:"application_active"`
}

// CoresignalAdapter fetches postings through the credit-metered search and
// collect endpoints: search returns candidate IDs, collect resolves each one
// to a full record.
type CoresignalAdapter struct {
	cfg    config.CoresignalConfig
	client *http.Client
	logger *slog.Logger
}

// NewCoresignalAdapter creates an adapter over the configured title and
// country filters.
func NewCoresignalAdapter(cfg config.CoresignalConfig, client *http.Client, logger *slog.Logger) *CoresignalAdapter {
	return &CoresignalAdapter{cfg: cfg, client: client, logger: logger}
}

// Name identifies this provider in tier config, run logs, and stored records.
func (a *CoresignalAdapter) Name() string { return "coresignal" }

// FetchJobs searches for candidate IDs, then collects each one under the
// configured concurrency limit. Every collect call spends a credit, so the
// search phase caps the ID list at max_collect before any collect fires.
// A failed collect is logged and skipped; deleted or inactive records are
// dropped before returning.
func (a *CoresignalAdapter) FetchJobs(ctx context.Context) ([]model.RawPosting, error) {
	ids, err := a.searchIDs(ctx)
	if err != nil {
		return nil, &model.ProviderError{Provider: a.Name(), Err: err}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	results := parallel.ForEach(ctx, a.cfg.CollectConcurrency, ids, a.collect)

	postings := make([]model.RawPosting, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			a.logger.Warn("coresignal collect failed", "id", res.Input, "error", res.Err)
			continue
		}
		rec := res.Value
		if rec.Deleted != 0 || rec.ApplicationActive == 0 {
			continue
		}
		postings = append(postings, a.posting(rec))
	}
	return postings, nil
}

// searchIDs pages the search cursor until max_collect IDs are queued or the
// cursor runs out. A page failure after the first keeps the IDs already
// queued rather than forfeiting the whole run.
func (a *CoresignalAdapter) searchIDs(ctx context.Context) ([]int64, error) {
	filter := coresignalFilter{
		Title:             orQuery(a.cfg.Titles),
		Country:           orQuery(a.cfg.Countries),
		ApplicationActive: true,
	}
	body, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("coresignal search marshal: %w", err)
	}

	var ids []int64
	cursor := ""
	for {
		pageIDs, next, err := a.searchPage(ctx, body, cursor)
		if err != nil {
			if len(ids) == 0 {
				return nil, err
			}
			a.logger.Warn("coresignal search page failed, collecting partial set", "queued", len(ids), "error", err)
			break
		}
		for _, id := range pageIDs {
			ids = append(ids, id)
			if len(ids) >= a.cfg.MaxCollect {
				return ids, nil
			}
		}
		if next == "" || len(pageIDs) == 0 {
			break
		}
		cursor = next
	}
	return ids, nil
}

func (a *CoresignalAdapter) searchPage(ctx context.Context, body []byte, cursor string) ([]int64, string, error) {
	url := coresignalBaseURL + "/search/filter"
	if cursor != "" {
		url += "?after=" + neturl.QueryEscape(cursor)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("coresignal search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", a.cfg.APIKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("coresignal search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", statusError(resp, fmt.Errorf("coresignal search: unexpected status %d", resp.StatusCode))
	}

	var ids []int64
	if err := json.NewDecoder(resp.Body).Decode(&ids); err != nil {
		return nil, "", fmt.Errorf("coresignal search decode: %w", err)
	}
	return ids, resp.Header.Get(coresignalNextPageHeader), nil
}

func (a *CoresignalAdapter) collect(ctx context.Context, id int64) (coresignalRecord, error) {
	url := fmt.Sprintf("%s/collect/%d", coresignalBaseURL, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return coresignalRecord{}, fmt.Errorf("coresignal collect %d: %w", id, err)
	}
	req.Header.Set("apikey", a.cfg.APIKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return coresignalRecord{}, fmt.Errorf("coresignal collect %d: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return coresignalRecord{}, statusError(resp, fmt.Errorf("coresignal collect %d: unexpected status %d", id, resp.StatusCode))
	}

	var rec coresignalRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return coresignalRecord{}, fmt.Errorf("coresignal collect %d decode: %w", id, err)
	}
	return rec, nil
}

func (a *CoresignalAdapter) posting(rec coresignalRecord) model.RawPosting {
	location := rec.Location
	if location == "" {
		location = rec.Country
	}

	return model.RawPosting{
		ExternalID:     fmt.Sprintf("%d", rec.ID),
		Title:          rec.Title,
		Company:        rec.CompanyName,
		Link:           rec.URL,
		Description:    rec.Description,
		Location:       location,
		RemoteEligible: rec.Remote,
		Seniority:      strings.ToLower(rec.Seniority),
		Compensation:   rec.Salary,
		Metadata:       map[string]string{"employment_type": rec.EmploymentType},
	}
}

// orQuery joins terms into the boolean OR syntax the search filter accepts,
// e.g. ["backend engineer", "platform engineer"] becomes
// "(backend engineer) OR (platform engineer)".
func orQuery(terms []string) string {
	if len(terms) == 0 {
		return ""
	}
	wrapped := make([]string, len(terms))
	for i, t := range terms {
		wrapped[i] = "(" + t + ")"
	}
	return strings.Join(wrapped, " OR ")
}
