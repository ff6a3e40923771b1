package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dozie/my-job-hunter/internal/config"
	"github.com/dozie/my-job-hunter/internal/model"
	"github.com/dozie/my-job-hunter/internal/ratelimit"
)

const (
	serpapiBaseURL  = "https://serpapi.com/search.json"
	serpapiPageSize = 10
)

// serpapiJob is one result in the google_jobs response.
type serpapiJob struct {
	JobID              string               `json:"job_id"`
	Title              string               `json:"title"`
	CompanyName        string               `json:"company_name"`
	Location           string               `json:"location"`
	Description        string               `json:"description"`
	ShareLink          string               `json:"share_link"`
	ApplyOptions       []serpapiApplyOption `json:"apply_options"`
	DetectedExtensions serpapiExtensions    `json:"detected_extensions"`
}

type serpapiApplyOption struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

type serpapiExtensions struct {
	Salary       string `json:"salary"`
	ScheduleType string `json:"schedule_type"`
	WorkFromHome bool   `json:"work_from_home"`
	PostedAt     string `json:"posted_at"`
}

// serpapiResponse is the top-level google_jobs response.
type serpapiResponse struct {
	JobsResults []serpapiJob `json:"jobs_results"`
}

// serpapiStore is the slice of the job store this adapter needs: the newness
// gate and the persisted monthly call budget.
type serpapiStore interface {
	HasSeen(externalID, sourceName string) (bool, error)
	BudgetSpent(provider, month string) (int, error)
	AddBudgetSpend(provider, month string, calls int) error
}

// SerpAPIAdapter fetches postings from the google_jobs engine. Crawl depth
// adapts to the time of day, to a persisted monthly call budget, and to
// whether the first page still contains anything new.
type SerpAPIAdapter struct {
	cfg    config.SerpAPIConfig
	store  serpapiStore
	client *http.Client
	pacer  *ratelimit.Pacer
	logger *slog.Logger
	now    func() time.Time
}

// NewSerpAPIAdapter creates an adapter over the configured query. The store
// backs the newness gate and the budget counter.
func NewSerpAPIAdapter(cfg config.SerpAPIConfig, store serpapiStore, client *http.Client, logger *slog.Logger) *SerpAPIAdapter {
	return &SerpAPIAdapter{
		cfg:    cfg,
		store:  store,
		client: client,
		pacer:  ratelimit.NewPacer(cfg.MinDelay),
		logger: logger,
		now:    time.Now,
	}
}

// Name identifies this provider in tier config, run logs, and stored records.
func (a *SerpAPIAdapter) Name() string { return "serpapi" }

// FetchJobs crawls google_jobs pages up to the depth for the current time of
// day: morning_pages before the boundary hour, evening_pages from it on.
// Crossing the monthly budget reserve forces depth 1. If every result on the
// first page is already stored, deeper pages are skipped.
func (a *SerpAPIAdapter) FetchJobs(ctx context.Context) ([]model.RawPosting, error) {
	depth := a.crawlDepth()

	var all []model.RawPosting
	for page := 0; page < depth; page++ {
		if err := a.pacer.Wait(ctx, a.Name()); err != nil {
			return all, err
		}

		jobs, err := a.fetchPage(ctx, page)
		if err != nil {
			if page == 0 {
				return nil, &model.ProviderError{Provider: a.Name(), Err: err}
			}
			a.logger.Warn("serpapi page failed, keeping earlier pages", "page", page, "error", err)
			return all, nil
		}
		a.recordSpend(1)

		for _, j := range jobs {
			all = append(all, a.posting(j))
		}

		if len(jobs) < serpapiPageSize {
			break
		}
		if page == 0 && a.allSeen(jobs) {
			a.logger.Info("serpapi first page fully seen, skipping deeper pages")
			break
		}
	}
	return all, nil
}

// crawlDepth picks the page depth for this run.
func (a *SerpAPIAdapter) crawlDepth() int {
	depth := a.cfg.EveningPages
	if a.now().Hour() < a.cfg.BoundaryHour {
		depth = a.cfg.MorningPages
	}

	if a.cfg.MonthlyCallBudget > 0 {
		month := a.now().Format("2006-01")
		spent, err := a.store.BudgetSpent(a.Name(), month)
		if err != nil {
			a.logger.Warn("serpapi budget lookup failed, crawling shallow", "error", err)
			return 1
		}
		if spent >= a.cfg.MonthlyCallBudget-a.cfg.BudgetReserve {
			a.logger.Info("serpapi monthly budget reserve reached, crawling shallow",
				"spent", spent, "budget", a.cfg.MonthlyCallBudget)
			return 1
		}
	}

	if depth < 1 {
		depth = 1
	}
	return depth
}

// recordSpend counts one billed search against the current month.
func (a *SerpAPIAdapter) recordSpend(calls int) {
	month := a.now().Format("2006-01")
	if err := a.store.AddBudgetSpend(a.Name(), month, calls); err != nil {
		a.logger.Warn("serpapi budget update failed", "error", err)
	}
}

// allSeen reports whether every job on the page is already stored. A lookup
// error counts as unseen.
func (a *SerpAPIAdapter) allSeen(jobs []serpapiJob) bool {
	if len(jobs) == 0 {
		return false
	}
	for _, j := range jobs {
		seen, err := a.store.HasSeen(j.JobID, a.Name())
		if err != nil || !seen {
			return false
		}
	}
	return true
}

func (a *SerpAPIAdapter) fetchPage(ctx context.Context, page int) ([]serpapiJob, error) {
	u, err := url.Parse(serpapiBaseURL)
	if err != nil {
		return nil, fmt.Errorf("serpapi page %d: %w", page, err)
	}
	q := u.Query()
	q.Set("engine", "google_jobs")
	q.Set("q", a.cfg.Query)
	if a.cfg.Location != "" {
		q.Set("location", a.cfg.Location)
	}
	q.Set("api_key", a.cfg.APIKey)
	if page > 0 {
		q.Set("start", strconv.Itoa(page*serpapiPageSize))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("serpapi page %d: %w", page, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serpapi page %d: %w", page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, fmt.Errorf("serpapi page %d: unexpected status %d", page, resp.StatusCode))
	}

	var serpResp serpapiResponse
	if err := json.NewDecoder(resp.Body).Decode(&serpResp); err != nil {
		return nil, fmt.Errorf("serpapi page %d decode: %w", page, err)
	}
	return serpResp.JobsResults, nil
}

func (a *SerpAPIAdapter) posting(j serpapiJob) model.RawPosting {
	link := j.ShareLink
	if len(j.ApplyOptions) > 0 && j.ApplyOptions[0].Link != "" {
		link = j.ApplyOptions[0].Link
	}

	var remote *bool
	if j.DetectedExtensions.WorkFromHome {
		t := true
		remote = &t
	}

	return model.RawPosting{
		ExternalID:     j.JobID,
		Title:          j.Title,
		Company:        j.CompanyName,
		Link:           link,
		Description:    j.Description,
		Location:       j.Location,
		RemoteEligible: remote,
		Compensation:   j.DetectedExtensions.Salary,
		Metadata: map[string]string{
			"schedule_type": j.DetectedExtensions.ScheduleType,
			"posted_at":     j.DetectedExtensions.PostedAt,
		},
	}
}
