package scoring

import (
	"math"
	"strings"

	"github.com/dozie/my-job-hunter/internal/config"
	"github.com/dozie/my-job-hunter/internal/model"
)

// Breakdown dimension names, persisted in score_breakdown.
const (
	dimRemote           = "remote"
	dimSeniority        = "seniority"
	dimEmployerLocation = "employer_location"
	dimInterviewStyle   = "interview_style"
	dimRoleType         = "role_type"
)

// seniorityRank orders levels so "one tier above target" is computable.
// Staff and lead share a tier; unknown has no rank.
var seniorityRank = map[string]int{
	model.SeniorityIntern: 0,
	model.SeniorityJunior: 1,
	model.SeniorityMid:    2,
	model.SenioritySenior: 3,
	model.SeniorityStaff:  4,
	model.SeniorityLead:   4,
}

// ComputeScore applies the weighted formula to extracted metadata and the
// record's location text. It is pure: identical inputs always produce the
// identical score. The breakdown holds each dimension's weighted
// contribution and is persisted so a score can be explained later without
// recomputing anything.
func ComputeScore(meta model.Metadata, location string, cfg config.ScoringConfig) (float64, map[string]float64) {
	w := cfg.Weights
	breakdown := map[string]float64{
		dimRemote:           remoteFactor(meta.RemoteEligible) * w.Remote,
		dimSeniority:        seniorityFactor(meta.Seniority, cfg.TargetSeniorities) * w.Seniority,
		dimEmployerLocation: locationFactor(location, cfg.LocationFull, cfg.LocationHalf) * w.EmployerLocation,
		dimInterviewStyle:   cfg.InterviewFactors[meta.InterviewStyle] * w.InterviewStyle,
		dimRoleType:         cfg.RoleTypeFactors[meta.RoleType] * w.RoleType,
	}

	var sum float64
	for _, contribution := range breakdown {
		sum += contribution
	}
	return round2(sum / w.Sum() * 10), breakdown
}

func remoteFactor(remoteEligible bool) float64 {
	if remoteEligible {
		return 1.0
	}
	return 0.0
}

// seniorityFactor is 1.0 inside the target set, 0.3 exactly one tier above
// the highest target, 0.0 everywhere else (unknown included).
func seniorityFactor(seniority string, targets []string) float64 {
	for _, t := range targets {
		if seniority == t {
			return 1.0
		}
	}
	rank, ok := seniorityRank[seniority]
	if !ok {
		return 0.0
	}
	maxTarget := -1
	for _, t := range targets {
		if r, ok := seniorityRank[t]; ok && r > maxTarget {
			maxTarget = r
		}
	}
	if maxTarget >= 0 && rank == maxTarget+1 {
		return 0.3
	}
	return 0.0
}

// locationFactor buckets the employer location into 1.0 / 0.5 / 0.0 by the
// configured geography keywords. An absent location is neutral 0.5 rather
// than 0.0: remote-first postings routinely omit it.
func locationFactor(location string, full, half []string) float64 {
	loc := strings.ToLower(strings.TrimSpace(location))
	if loc == "" {
		return 0.5
	}
	for _, kw := range full {
		if strings.Contains(loc, strings.ToLower(kw)) {
			return 1.0
		}
	}
	for _, kw := range half {
		if strings.Contains(loc, strings.ToLower(kw)) {
			return 0.5
		}
	}
	return 0.0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
