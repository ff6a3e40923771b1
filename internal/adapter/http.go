package adapter

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dozie/my-job-hunter/internal/model"
)

// parseRetryAfter parses the Retry-After header value into a duration.
// Supports seconds format (e.g. "120"). Returns zero if absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// statusError wraps a non-200 response into an HTTPError carrying the status
// code and any Retry-After hint.
func statusError(resp *http.Response, err error) *model.HTTPError {
	return &model.HTTPError{
		StatusCode: resp.StatusCode,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		Err:        err,
	}
}
