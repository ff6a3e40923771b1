package scoring

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/dozie/my-job-hunter/internal/model"
)

// Summarizer produces the short natural-language rationale for records whose
// score clears the summary threshold. This is the expensive call of the two;
// the Scorer gates it, the Summarizer only executes it.
type Summarizer struct {
	provider LLMProvider
	tmpl     *template.Template
	logger   *slog.Logger
}

// NewSummarizer creates a summarizer using provider for completion calls.
func NewSummarizer(provider LLMProvider, tmpl *template.Template, logger *slog.Logger) *Summarizer {
	return &Summarizer{
		provider: provider,
		tmpl:     tmpl,
		logger:   logger,
	}
}

// Summarize renders the prompt for rec and returns the completion text.
func (s *Summarizer) Summarize(ctx context.Context, rec *model.JobRecord) (string, error) {
	desc := rec.Description
	if len(desc) > maxDescriptionChars {
		desc = desc[:maxDescriptionChars]
	}

	var promptBuf bytes.Buffer
	err := s.tmpl.Execute(&promptBuf, struct {
		Title       string
		Company     string
		Location    string
		Description string
	}{Title: rec.Title, Company: rec.Company, Location: rec.Location, Description: desc})
	if err != nil {
		return "", fmt.Errorf("render summary prompt: %w", err)
	}

	text, err := s.provider.Complete(ctx, promptBuf.String())
	if err != nil {
		return "", fmt.Errorf("llm complete: %w", err)
	}
	return strings.TrimSpace(text), nil
}
