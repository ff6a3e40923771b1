package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dozie/my-job-hunter/internal/config"
	"github.com/dozie/my-job-hunter/internal/model"
	"github.com/dozie/my-job-hunter/internal/parallel"
)

const (
	brightdataBaseURL = "https://api.brightdata.com/datasets/v3"

	// Poll delays grow linearly from first by step up to cap.
	brightdataPollFirst = 15 * time.Second
	brightdataPollStep  = 15 * time.Second
	brightdataPollCap   = 60 * time.Second
)

// brightdataTriggerResponse is the response from the dataset trigger endpoint.
type brightdataTriggerResponse struct {
	SnapshotID string `json:"snapshot_id"`
}

// brightdataProgress is the response from the snapshot progress endpoint.
type brightdataProgress struct {
	Status string `json:"status"`
}

// brightdataRecord is one scraped posting in the downloaded snapshot.
type brightdataRecord struct {
	JobPostingID   string `json:"job_posting_id"`
	JobTitle       string `json:"job_title"`
	CompanyName    string `json:"company_name"`
	JobLocation    string `json:"job_location"`
	JobSummary     string `json:"job_summary"`
	URL            string `json:"url"`
	SeniorityLevel string `json:"job_seniority_level"`
	EmploymentType string `json:"job_employment_type"`
	BasePayRange   string `json:"job_base_pay_range"`
}

// BrightdataAdapter fetches postings through the Brightdata dataset API:
// trigger a discovery run per sub-board, poll the snapshot until ready,
// download the result set. Sub-boards run concurrently under the configured
// trigger limit, each against its own wall-clock deadline.
type BrightdataAdapter struct {
	cfg    config.BrightdataConfig
	client *http.Client
	logger *slog.Logger

	pollFirst time.Duration
	pollStep  time.Duration
	pollCap   time.Duration
}

// NewBrightdataAdapter creates an adapter over the configured sub-boards.
func NewBrightdataAdapter(cfg config.BrightdataConfig, client *http.Client, logger *slog.Logger) *BrightdataAdapter {
	return &BrightdataAdapter{
		cfg:       cfg,
		client:    client,
		logger:    logger,
		pollFirst: brightdataPollFirst,
		pollStep:  brightdataPollStep,
		pollCap:   brightdataPollCap,
	}
}

// Name identifies this provider in tier config, run logs, and stored records.
func (a *BrightdataAdapter) Name() string { return "brightdata" }

// FetchJobs runs every configured sub-board. A sub-board that fails or times
// out is logged and skipped without touching its siblings; the fetch is fatal
// only when every sub-board fails.
func (a *BrightdataAdapter) FetchJobs(ctx context.Context) ([]model.RawPosting, error) {
	results := parallel.ForEach(ctx, a.cfg.TriggerConcurrency, a.cfg.Boards, a.fetchBoard)

	var (
		all     []model.RawPosting
		failed  int
		lastErr error
	)
	for _, res := range results {
		if res.Err != nil {
			failed++
			lastErr = res.Err
			a.logger.Warn("brightdata board failed", "board", res.Input.Name, "error", res.Err)
			continue
		}
		all = append(all, res.Value...)
	}
	if len(a.cfg.Boards) > 0 && failed == len(a.cfg.Boards) {
		return nil, &model.ProviderError{Provider: a.Name(), Err: fmt.Errorf("all %d boards failed, last: %w", failed, lastErr)}
	}
	return all, nil
}

// fetchBoard triggers one discovery run and sees it through to download.
// The deadline covers the whole trigger/poll/download cycle.
func (a *BrightdataAdapter) fetchBoard(ctx context.Context, board config.BrightdataBoard) ([]model.RawPosting, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.PollTimeout)
	defer cancel()

	snapshotID, err := a.trigger(ctx, board)
	if err != nil {
		return nil, err
	}
	if err := a.awaitSnapshot(ctx, board, snapshotID); err != nil {
		return nil, err
	}
	return a.download(ctx, board, snapshotID)
}

// trigger starts a discovery run for the board URL. Trigger calls are billed
// on acceptance; a failed trigger surfaces immediately and is never retried.
func (a *BrightdataAdapter) trigger(ctx context.Context, board config.BrightdataBoard) (string, error) {
	body, err := json.Marshal([]map[string]string{{"url": board.URL}})
	if err != nil {
		return "", fmt.Errorf("brightdata trigger marshal for %s: %w", board.Name, err)
	}

	u, err := url.Parse(brightdataBaseURL + "/trigger")
	if err != nil {
		return "", fmt.Errorf("brightdata trigger for %s: %w", board.Name, err)
	}
	q := u.Query()
	q.Set("dataset_id", a.cfg.DatasetID)
	q.Set("include_errors", "true")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("brightdata trigger request for %s: %w", board.Name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIToken)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("brightdata trigger for %s: %w", board.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp, fmt.Errorf("brightdata trigger for %s: unexpected status %d", board.Name, resp.StatusCode))
	}

	var trig brightdataTriggerResponse
	if err := json.NewDecoder(resp.Body).Decode(&trig); err != nil {
		return "", fmt.Errorf("brightdata trigger decode for %s: %w", board.Name, err)
	}
	if trig.SnapshotID == "" {
		return "", fmt.Errorf("brightdata trigger for %s: empty snapshot id", board.Name)
	}
	return trig.SnapshotID, nil
}

// awaitSnapshot polls the snapshot status on a linear backoff until the
// snapshot is ready, the remote run fails, or the board deadline expires.
func (a *BrightdataAdapter) awaitSnapshot(ctx context.Context, board config.BrightdataBoard, snapshotID string) error {
	delay := a.pollFirst
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("brightdata snapshot %s for %s: %w", snapshotID, board.Name, ctx.Err())
		case <-time.After(delay):
		}

		status, err := a.snapshotStatus(ctx, snapshotID, board)
		if err != nil {
			return err
		}
		switch status {
		case "ready":
			return nil
		case "failed":
			return fmt.Errorf("brightdata snapshot %s for %s: remote run failed", snapshotID, board.Name)
		}

		delay += a.pollStep
		if delay > a.pollCap {
			delay = a.pollCap
		}
	}
}

func (a *BrightdataAdapter) snapshotStatus(ctx context.Context, snapshotID string, board config.BrightdataBoard) (string, error) {
	url := brightdataBaseURL + "/progress/" + snapshotID

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("brightdata progress request for %s: %w", board.Name, err)
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIToken)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("brightdata progress for %s: %w", board.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp, fmt.Errorf("brightdata progress for %s: unexpected status %d", board.Name, resp.StatusCode))
	}

	var prog brightdataProgress
	if err := json.NewDecoder(resp.Body).Decode(&prog); err != nil {
		return "", fmt.Errorf("brightdata progress decode for %s: %w", board.Name, err)
	}
	return prog.Status, nil
}

// download streams the snapshot as newline-delimited JSON records.
func (a *BrightdataAdapter) download(ctx context.Context, board config.BrightdataBoard, snapshotID string) ([]model.RawPosting, error) {
	url := brightdataBaseURL + "/snapshot/" + snapshotID + "?format=ndjson"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("brightdata download request for %s: %w", board.Name, err)
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIToken)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brightdata download for %s: %w", board.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, fmt.Errorf("brightdata download for %s: unexpected status %d", board.Name, resp.StatusCode))
	}

	var postings []model.RawPosting
	dec := json.NewDecoder(resp.Body)
	for {
		var rec brightdataRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("brightdata download decode for %s: %w", board.Name, err)
		}
		if rec.JobPostingID == "" {
			continue
		}
		postings = append(postings, a.posting(rec, board))
	}
	return postings, nil
}

func (a *BrightdataAdapter) posting(rec brightdataRecord, board config.BrightdataBoard) model.RawPosting {
	return model.RawPosting{
		ExternalID:   rec.JobPostingID,
		Title:        rec.JobTitle,
		Company:      rec.CompanyName,
		Link:         rec.URL,
		Description:  rec.JobSummary,
		Location:     rec.JobLocation,
		Seniority:    strings.ToLower(rec.SeniorityLevel),
		Compensation: rec.BasePayRange,
		Metadata: map[string]string{
			"board":           board.Name,
			"employment_type": rec.EmploymentType,
		},
	}
}
