package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"text/template"

	"github.com/dozie/my-job-hunter/internal/model"
)

// maxDescriptionChars caps the description text sent with a prompt.
// Postings routinely run to tens of thousands of characters while the
// classification signal sits in the opening paragraphs.
const maxDescriptionChars = 4000

const (
	metadataSchemaName  = "job_metadata"
	extractSystemPrompt = "You are a precise structured data extractor for job postings."
	summarySystemPrompt = "You are a concise technical recruiter writing for a software engineer."
)

// metadataSchema is the JSON Schema enforced server-side via structured
// outputs. It matches rawMetadata exactly so the response parses directly.
var metadataSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"properties": map[string]any{
		"seniority": map[string]any{
			"type": "string",
			"enum": model.Seniorities(),
		},
		"remote_eligible": map[string]any{"type": "boolean"},
		"interview_style": map[string]any{
			"type": "string",
			"enum": model.InterviewStyles(),
		},
		"role_type": map[string]any{
			"type": "string",
			"enum": model.RoleTypes(),
		},
	},
	"required": []string{"seniority", "remote_eligible", "interview_style", "role_type"},
}

// Extractor turns a record's description into structured metadata via the
// extraction call. Callers fall back to model.DefaultMetadata on error, so
// a failing call degrades one record instead of blocking the batch.
type Extractor struct {
	provider LLMProvider
	tmpl     *template.Template
	logger   *slog.Logger
}

// NewExtractor creates an extractor using provider for completion calls.
func NewExtractor(provider LLMProvider, tmpl *template.Template, logger *slog.Logger) *Extractor {
	return &Extractor{
		provider: provider,
		tmpl:     tmpl,
		logger:   logger,
	}
}

// Extract classifies rec. The description is truncated before the call.
func (e *Extractor) Extract(ctx context.Context, rec *model.JobRecord) (model.Metadata, error) {
	desc := rec.Description
	if len(desc) > maxDescriptionChars {
		desc = desc[:maxDescriptionChars]
	}

	var promptBuf bytes.Buffer
	err := e.tmpl.Execute(&promptBuf, struct {
		Title       string
		Location    string
		Description string
	}{Title: rec.Title, Location: rec.Location, Description: desc})
	if err != nil {
		return model.Metadata{}, fmt.Errorf("render extraction prompt: %w", err)
	}

	raw, err := e.provider.Complete(ctx, promptBuf.String())
	if err != nil {
		return model.Metadata{}, fmt.Errorf("llm complete: %w", err)
	}

	return parseMetadata(raw)
}

// rawMetadata is the JSON shape returned by the extraction call (matches
// metadataSchema).
type rawMetadata struct {
	Seniority      string `json:"seniority"`
	RemoteEligible bool   `json:"remote_eligible"`
	InterviewStyle string `json:"interview_style"`
	RoleType       string `json:"role_type"`
}

// parseMetadata deserializes the extraction response. Structured outputs
// guarantees valid JSON conforming to metadataSchema, but base_url may point
// at a gateway that does not enforce enum membership, so out-of-range values
// are coerced to their unknown/other fallbacks rather than trusted.
func parseMetadata(raw string) (model.Metadata, error) {
	var rm rawMetadata
	if err := json.Unmarshal([]byte(raw), &rm); err != nil {
		return model.Metadata{}, fmt.Errorf("unmarshal metadata JSON: %w", err)
	}

	meta := model.Metadata{
		Seniority:      rm.Seniority,
		RemoteEligible: rm.RemoteEligible,
		InterviewStyle: rm.InterviewStyle,
		RoleType:       rm.RoleType,
	}
	if !slices.Contains(model.Seniorities(), meta.Seniority) {
		meta.Seniority = model.SeniorityUnknown
	}
	if !slices.Contains(model.InterviewStyles(), meta.InterviewStyle) {
		meta.InterviewStyle = model.InterviewUnknown
	}
	if !slices.Contains(model.RoleTypes(), meta.RoleType) {
		meta.RoleType = model.RoleOther
	}
	return meta, nil
}
