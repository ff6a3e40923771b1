package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dozie/my-job-hunter/internal/config"
	"github.com/dozie/my-job-hunter/internal/model"
)

const leverBaseURL = "https://api.lever.co/v0/postings"

// leverCategories represents the categories object in a Lever posting.
type leverCategories struct {
	Team         string   `json:"team"`
	Department   string   `json:"department"`
	Location     string   `json:"location"`
	Commitment   string   `json:"commitment"`
	AllLocations []string `json:"allLocations"`
}

// leverSalary is the optional salaryRange object on a Lever posting.
type leverSalary struct {
	Min      int64  `json:"min"`
	Max      int64  `json:"max"`
	Currency string `json:"currency"`
	Interval string `json:"interval"`
}

// leverJob represents a single posting in the Lever API response.
type leverJob struct {
	ID               string          `json:"id"`
	Text             string          `json:"text"`
	Description      string          `json:"description"`
	DescriptionPlain string          `json:"descriptionPlain"`
	Categories       leverCategories `json:"categories"`
	WorkplaceType    string          `json:"workplaceType"`
	SalaryRange      leverSalary     `json:"salaryRange"`
	HostedURL        string          `json:"hostedUrl"`
}

// LeverAdapter fetches postings from the Lever public postings API, one GET
// per configured site slug.
type LeverAdapter struct {
	boards []config.BoardConfig
	client *http.Client
	logger *slog.Logger
}

// NewLeverAdapter creates an adapter over the given boards. The board token
// is the Lever site slug.
func NewLeverAdapter(boards []config.BoardConfig, client *http.Client, logger *slog.Logger) *LeverAdapter {
	return &LeverAdapter{boards: boards, client: client, logger: logger}
}

// Name identifies this provider in tier config, run logs, and stored records.
func (a *LeverAdapter) Name() string { return "lever" }

// FetchJobs retrieves postings from every configured board. A failing board
// is logged and skipped so siblings still report; the fetch is fatal only
// when every board fails.
func (a *LeverAdapter) FetchJobs(ctx context.Context) ([]model.RawPosting, error) {
	var (
		all     []model.RawPosting
		failed  int
		lastErr error
	)
	for _, board := range a.boards {
		postings, err := a.fetchBoard(ctx, board)
		if err != nil {
			failed++
			lastErr = err
			a.logger.Warn("lever board failed", "board", board.Token, "error", err)
			continue
		}
		all = append(all, postings...)
	}
	if len(a.boards) > 0 && failed == len(a.boards) {
		return nil, &model.ProviderError{Provider: a.Name(), Err: fmt.Errorf("all %d boards failed, last: %w", failed, lastErr)}
	}
	return all, nil
}

func (a *LeverAdapter) fetchBoard(ctx context.Context, board config.BoardConfig) ([]model.RawPosting, error) {
	url := fmt.Sprintf("%s/%s?mode=json", leverBaseURL, board.Token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("lever fetch for %s: %w", board.Token, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lever fetch for %s: %w", board.Token, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, fmt.Errorf("lever fetch for %s: unexpected status %d", board.Token, resp.StatusCode))
	}

	var leverJobs []leverJob
	if err := json.NewDecoder(resp.Body).Decode(&leverJobs); err != nil {
		return nil, fmt.Errorf("lever decode for %s: %w", board.Token, err)
	}

	postings := make([]model.RawPosting, 0, len(leverJobs))
	for _, lj := range leverJobs {
		desc := lj.DescriptionPlain
		if desc == "" {
			desc = lj.Description
		}

		postings = append(postings, model.RawPosting{
			ExternalID:     lj.ID,
			Title:          lj.Text,
			Company:        board.Company,
			Link:           lj.HostedURL,
			Description:    desc,
			Location:       leverLocation(lj.Categories),
			RemoteEligible: leverRemote(lj.WorkplaceType),
			Compensation:   leverCompensation(lj.SalaryRange),
			Metadata: map[string]string{
				"team":       lj.Categories.Team,
				"commitment": lj.Categories.Commitment,
			},
		})
	}
	return postings, nil
}

// leverLocation joins allLocations, falling back to the single location field.
func leverLocation(c leverCategories) string {
	if len(c.AllLocations) > 0 {
		return strings.Join(c.AllLocations, ", ")
	}
	return c.Location
}

// leverRemote maps workplaceType onto the tri-state remote assertion. Lever
// leaves the field empty or "unspecified" when the company never set it.
func leverRemote(workplaceType string) *bool {
	switch workplaceType {
	case "remote":
		t := true
		return &t
	case "onsite", "hybrid":
		f := false
		return &f
	}
	return nil
}

// leverCompensation formats the salaryRange, e.g. "USD 120000-160000 per year".
func leverCompensation(s leverSalary) string {
	if s.Max <= 0 {
		return ""
	}
	comp := fmt.Sprintf("%s %d-%d", s.Currency, s.Min, s.Max)
	if s.Interval != "" {
		comp += " " + strings.ToLower(strings.ReplaceAll(s.Interval, "-", " "))
	}
	return strings.TrimSpace(comp)
}
