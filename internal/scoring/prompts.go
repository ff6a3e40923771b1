package scoring

import (
	_ "embed"
	"text/template"
)

//go:embed prompts/extract_metadata.md
var extractPromptRaw string

//go:embed prompts/summarize.md
var summarizePromptRaw string

// ExtractTemplate is the parsed prompt for the metadata extraction call.
// Parsed once at package init; reused for every record.
var ExtractTemplate = template.Must(template.New("extract_metadata").Parse(extractPromptRaw))

// SummarizeTemplate is the parsed prompt for the summarization call.
var SummarizeTemplate = template.Must(template.New("summarize").Parse(summarizePromptRaw))
