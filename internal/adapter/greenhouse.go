package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dozie/my-job-hunter/internal/config"
	"github.com/dozie/my-job-hunter/internal/model"
)

const greenhouseBaseURL = "https://boards-api.greenhouse.io/v1/boards"

// greenhouseJob represents a single job in the Greenhouse API response.
type greenhouseJob struct {
	ID          int64              `json:"id"`
	Title       string             `json:"title"`
	Location    greenhouseLocation `json:"location"`
	AbsoluteURL string             `json:"absolute_url"`
	Content     string             `json:"content"`
	UpdatedAt   string             `json:"updated_at"`
}

type greenhouseLocation struct {
	Name string `json:"name"`
}

// greenhouseResponse is the top-level Greenhouse jobs API response.
type greenhouseResponse struct {
	Jobs []greenhouseJob `json:"jobs"`
}

// GreenhouseAdapter fetches postings from the Greenhouse public boards API,
// one GET per configured board.
type GreenhouseAdapter struct {
	boards []config.BoardConfig
	client *http.Client
	logger *slog.Logger
}

// NewGreenhouseAdapter creates an adapter over the given boards.
func NewGreenhouseAdapter(boards []config.BoardConfig, client *http.Client, logger *slog.Logger) *GreenhouseAdapter {
	return &GreenhouseAdapter{boards: boards, client: client, logger: logger}
}

// Name identifies this provider in tier config, run logs, and stored records.
func (a *GreenhouseAdapter) Name() string { return "greenhouse" }

// FetchJobs retrieves postings from every configured board. A failing board
// is logged and skipped so siblings still report; the fetch is fatal only
// when every board fails.
func (a *GreenhouseAdapter) FetchJobs(ctx context.Context) ([]model.RawPosting, error) {
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
			a.logger.Warn("greenhouse board failed", "board", board.Token, "error", err)
			continue
		}
		all = append(all, postings...)
	}
	if len(a.boards) > 0 && failed == len(a.boards) {
		return nil, &model.ProviderError{Provider: a.Name(), Err: fmt.Errorf("all %d boards failed, last: %w", failed, lastErr)}
	}
	return all, nil
}

func (a *GreenhouseAdapter) fetchBoard(ctx context.Context, board config.BoardConfig) ([]model.RawPosting, error) {
	// content=true inlines the HTML description into the listing payload.
	url := fmt.Sprintf("%s/%s/jobs?content=true", greenhouseBaseURL, board.Token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("greenhouse fetch for %s: %w", board.Token, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("greenhouse fetch for %s: %w", board.Token, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, fmt.Errorf("greenhouse fetch for %s: unexpected status %d", board.Token, resp.StatusCode))
	}

	var ghResp greenhouseResponse
	if err := json.NewDecoder(resp.Body).Decode(&ghResp); err != nil {
		return nil, fmt.Errorf("greenhouse decode for %s: %w", board.Token, err)
	}

	postings := make([]model.RawPosting, 0, len(ghResp.Jobs))
	for _, gj := range ghResp.Jobs {
		postings = append(postings, model.RawPosting{
			ExternalID:  fmt.Sprintf("%d", gj.ID),
			Title:       gj.Title,
			Company:     board.Company,
			Link:        gj.AbsoluteURL,
			Description: gj.Content,
			Location:    gj.Location.Name,
			Metadata:    map[string]string{"board": board.Token},
		})
	}
	return postings, nil
}
