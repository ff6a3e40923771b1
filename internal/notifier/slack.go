package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dozie/my-job-hunter/internal/model"
)

// Ensure SlackNotifier implements model.Notifier.
var _ model.Notifier = (*SlackNotifier)(nil)

// SlackNotifier sends run digests to a Slack channel via Incoming Webhooks.
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSlackNotifier returns a notifier that posts one digest message per run.
func NewSlackNotifier(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Notify posts the run summary as a single Block Kit digest. Runs that
// produced no entries post nothing.
func (s *SlackNotifier) Notify(summary model.RunSummary) error {
	if len(summary.Entries) == 0 {
		return nil
	}

	payload := buildPayload(summary)
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	if err := s.post(body); err != nil {
		return err
	}
	s.logger.Info("slack digest sent", "run_id", summary.RunID, "new", summary.TotalNew)
	return nil
}

// post delivers the payload, retrying once when Slack answers 429.
func (s *SlackNotifier) post(body []byte) error {
	resp, err := s.httpClient.Post(s.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := resp.Header.Get("Retry-After")
		secs, _ := strconv.Atoi(retryAfter)
		if secs <= 0 {
			secs = 1
		}
		s.logger.Warn("slack rate limited, retrying", "retry_after_secs", secs)
		time.Sleep(time.Duration(secs) * time.Second)

		resp2, err := s.httpClient.Post(s.webhookURL, "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("post to slack (retry): %w", err)
		}
		defer resp2.Body.Close()

		if resp2.StatusCode != http.StatusOK {
			return fmt.Errorf("slack returned %d on retry", resp2.StatusCode)
		}
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned %d", resp.StatusCode)
	}
	return nil
}

// Block Kit payload types.

type slackPayload struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SendTestMessage pushes a fabricated run digest through the notifier to
// verify the integration end to end.
func SendTestMessage(n model.Notifier) error {
	now := time.Now().UTC()
	return n.Notify(model.RunSummary{
		RunID: "test-run",
		Entries: []model.RunLogEntry{
			{
				RunID: "test-run", Provider: "greenhouse", Tier: "boards",
				Fetched: 12, Inserted: 3, Duplicates: 2, Scored: 3,
				StartedAt: now.Add(-time.Minute), FinishedAt: now,
			},
			{
				RunID: "test-run", Provider: "adzuna", Tier: "aggregators",
				Error:     "sample failure for the test digest",
				StartedAt: now.Add(-time.Minute), FinishedAt: now,
			},
		},
		TotalNew:    3,
		StaleMarked: 1,
		StartedAt:   now.Add(-time.Minute),
		FinishedAt:  now,
	})
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func buildPayload(summary model.RunSummary) slackPayload {
	elapsed := summary.FinishedAt.Sub(summary.StartedAt).Round(time.Second)

	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: fmt.Sprintf("🔎 Job hunt: %d new postings", summary.TotalNew)},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("*New:*\n%d", summary.TotalNew)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Marked stale:*\n%d", summary.StaleMarked)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Providers:*\n%d", len(summary.Entries))},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Elapsed:*\n%s", elapsed)},
			},
		},
	}

	var lines []string
	for _, entry := range summary.Entries {
		if entry.Error != "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("• *%s* (%s): %d fetched, %d new, %d duplicates, %d scored",
			capitalize(entry.Provider), entry.Tier, entry.Fetched, entry.Inserted, entry.Duplicates, entry.Scored))
	}
	if len(lines) > 0 {
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: strings.Join(lines, "\n")},
		})
	}

	if failed := summary.Failed(); len(failed) > 0 {
		var failLines []string
		for _, entry := range failed {
			failLines = append(failLines, fmt.Sprintf("• *%s*: %s", capitalize(entry.Provider), entry.Error))
		}
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: "⚠️ *Failed providers*\n" + strings.Join(failLines, "\n")},
		})
	}

	blocks = append(blocks, slackBlock{Type: "divider"})
	return slackPayload{Blocks: blocks}
}
