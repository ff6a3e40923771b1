package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dozie/my-job-hunter/internal/config"
	"github.com/dozie/my-job-hunter/internal/model"
	"github.com/dozie/my-job-hunter/internal/ratelimit"
)

const adzunaBaseURL = "https://api.adzuna.com/v1/api/jobs"

// adzunaResult is a single posting in the Adzuna search response.
type adzunaResult struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Company      adzunaCompany  `json:"company"`
	Location     adzunaLocation `json:"location"`
	Description  string         `json:"description"`
	RedirectURL  string         `json:"redirect_url"`
	SalaryMin    float64        `json:"salary_min"`
	SalaryMax    float64        `json:"salary_max"`
	ContractTime string         `json:"contract_time"`
}

type adzunaCompany struct {
	DisplayName string `json:"display_name"`
}

type adzunaLocation struct {
	DisplayName string `json:"display_name"`
}

// adzunaResponse is the top-level Adzuna search response.
type adzunaResponse struct {
	Count   int            `json:"count"`
	Results []adzunaResult `json:"results"`
}

// AdzunaAdapter fetches postings from the Adzuna search API, paginating each
// configured country until a short page or the page cap.
type AdzunaAdapter struct {
	cfg    config.AdzunaConfig
	client *http.Client
	pacer  *ratelimit.Pacer
	logger *slog.Logger
}

// NewAdzunaAdapter creates an adapter over the configured countries. Every
// request shares one pacer key: the Adzuna rate ceiling is per account, not
// per country.
func NewAdzunaAdapter(cfg config.AdzunaConfig, client *http.Client, logger *slog.Logger) *AdzunaAdapter {
	return &AdzunaAdapter{
		cfg:    cfg,
		client: client,
		pacer:  ratelimit.NewPacer(cfg.MinDelay),
		logger: logger,
	}
}

// Name identifies this provider in tier config, run logs, and stored records.
func (a *AdzunaAdapter) Name() string { return "adzuna" }

// FetchJobs pages through the search results of every configured country.
// A country that fails mid-pagination keeps the pages it already returned;
// the fetch is fatal only when every country fails with nothing fetched.
func (a *AdzunaAdapter) FetchJobs(ctx context.Context) ([]model.RawPosting, error) {
	var (
		all     []model.RawPosting
		failed  int
		lastErr error
	)
	for _, country := range a.cfg.Countries {
		postings, err := a.fetchCountry(ctx, country)
		all = append(all, postings...)
		if err != nil {
			failed++
			lastErr = err
			a.logger.Warn("adzuna country failed", "country", country, "kept", len(postings), "error", err)
		}
	}
	if len(a.cfg.Countries) > 0 && failed == len(a.cfg.Countries) && len(all) == 0 {
		return nil, &model.ProviderError{Provider: a.Name(), Err: fmt.Errorf("all %d countries failed, last: %w", failed, lastErr)}
	}
	return all, nil
}

// fetchCountry returns the postings collected so far even on error, so a
// mid-pagination failure keeps earlier pages.
func (a *AdzunaAdapter) fetchCountry(ctx context.Context, country string) ([]model.RawPosting, error) {
	var postings []model.RawPosting
	for page := 1; page <= a.cfg.MaxPages; page++ {
		if err := a.pacer.Wait(ctx, a.Name()); err != nil {
			return postings, err
		}

		results, err := a.fetchPage(ctx, country, page)
		if err != nil {
			return postings, err
		}
		for _, r := range results {
			postings = append(postings, a.posting(r, country))
		}
		if len(results) < a.cfg.ResultsPerPage {
			break
		}
	}
	return postings, nil
}

func (a *AdzunaAdapter) fetchPage(ctx context.Context, country string, page int) ([]adzunaResult, error) {
	u, err := url.Parse(fmt.Sprintf("%s/%s/search/%d", adzunaBaseURL, country, page))
	if err != nil {
		return nil, fmt.Errorf("adzuna page %d for %s: %w", page, country, err)
	}
	q := u.Query()
	q.Set("app_id", a.cfg.AppID)
	q.Set("app_key", a.cfg.AppKey)
	q.Set("what", a.cfg.Query)
	q.Set("results_per_page", strconv.Itoa(a.cfg.ResultsPerPage))
	q.Set("content-type", "application/json")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("adzuna page %d for %s: %w", page, country, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("adzuna page %d for %s: %w", page, country, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, fmt.Errorf("adzuna page %d for %s: unexpected status %d", page, country, resp.StatusCode))
	}

	var adzResp adzunaResponse
	if err := json.NewDecoder(resp.Body).Decode(&adzResp); err != nil {
		return nil, fmt.Errorf("adzuna page %d for %s decode: %w", page, country, err)
	}
	return adzResp.Results, nil
}

func (a *AdzunaAdapter) posting(r adzunaResult, country string) model.RawPosting {
	return model.RawPosting{
		ExternalID:   r.ID,
		Title:        r.Title,
		Company:      r.Company.DisplayName,
		Link:         r.RedirectURL,
		Description:  r.Description,
		Location:     r.Location.DisplayName,
		Compensation: adzunaCompensation(r.SalaryMin, r.SalaryMax),
		Metadata: map[string]string{
			"country":       country,
			"contract_time": r.ContractTime,
		},
	}
}

// adzunaCompensation formats the salary band. Adzuna reports figures in the
// country's local currency without naming it.
func adzunaCompensation(min, max float64) string {
	if max <= 0 {
		return ""
	}
	if min <= 0 || min == max {
		return fmt.Sprintf("%.0f", max)
	}
	return fmt.Sprintf("%.0f-%.0f", min, max)
}
