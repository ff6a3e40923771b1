// Package filter holds the stateless predicates applied to raw postings
// before they enter the pipeline. Matching is case-insensitive substring
// throughout; empty keyword lists are treated as "match all".
package filter

import (
	"strings"

	"github.com/dozie/my-job-hunter/internal/config"
	"github.com/dozie/my-job-hunter/internal/model"
)

// PassesRoleFilter checks the posting title against the exclude list first,
// then the include list. Any exclude hit rejects the posting regardless of
// include matches; exclusion always wins.
func PassesRoleFilter(p model.RawPosting, cfg config.FilterConfig) bool {
	title := strings.ToLower(p.Title)

	for _, kw := range cfg.TitleExcludeKeywords {
		if kw != "" && strings.Contains(title, strings.ToLower(kw)) {
			return false
		}
	}

	if len(cfg.TitleKeywords) == 0 {
		return true
	}
	for _, kw := range cfg.TitleKeywords {
		if kw != "" && strings.Contains(title, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// PassesLocationFilter scans location and description text. An always-pass
// location token (the home metro) short-circuits to pass regardless of any
// onsite signal. Otherwise a remote indicator passes, unless an onsite or
// hybrid counter-indicator appears alongside it; a posting with neither a
// location token nor a remote indicator is rejected.
func PassesLocationFilter(p model.RawPosting, cfg config.FilterConfig) bool {
	if len(cfg.Locations) == 0 && len(cfg.RemoteIndicators) == 0 {
		return true
	}

	text := strings.ToLower(p.Location) + " " + strings.ToLower(p.Description)

	for _, loc := range cfg.Locations {
		if loc != "" && strings.Contains(text, strings.ToLower(loc)) {
			return true
		}
	}

	if containsAny(text, cfg.RemoteIndicators) {
		return !containsAny(text, cfg.OnsiteIndicators)
	}
	return false
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
