package scoring

import "context"

// LLMProvider sends a prompt to a completion endpoint and returns the raw
// text of the first choice. The extractor and summarizer only see this
// interface; the HTTP details live in OpenAIProvider.
type LLMProvider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
