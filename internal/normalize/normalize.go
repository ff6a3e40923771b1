// Package normalize converts raw postings into the canonical record shape
// and computes the cross-source identity key.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/dozie/my-job-hunter/internal/model"
)

// NoDescriptionFingerprint is the fingerprint segment for postings without a
// description. The dedup engine never links two records on this segment, so
// descriptionless postings cannot match each other by fingerprint.
const NoDescriptionFingerprint = "no-description"

// fingerprintLength caps how much of the description feeds the hash. Job
// boards append tracking footers and EEO boilerplate past this point.
const fingerprintLength = 500

// legalSuffixes are stripped from company names as whole words.
var legalSuffixes = map[string]bool{
	"inc":          true,
	"incorporated": true,
	"ltd":          true,
	"limited":      true,
	"llc":          true,
	"corp":         true,
	"corporation":  true,
	"co":           true,
	"gmbh":         true,
	"plc":          true,
}

// titleExpansions maps abbreviated title words to their long form.
var titleExpansions = map[string]string{
	"sr":  "senior",
	"jr":  "junior",
	"mgr": "manager",
}

// Company lowercases a company name, strips commas, periods, and legal-entity
// suffixes, and collapses whitespace. "Acme, Inc." becomes "acme".
func Company(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, ",", " ")
	s = strings.ReplaceAll(s, ".", " ")
	words := strings.Fields(s)
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if legalSuffixes[w] {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// Title lowercases a job title, expands abbreviations as whole words, and
// collapses whitespace. "Sr. Engineer" becomes "senior engineer".
func Title(title string) string {
	words := strings.Fields(strings.ToLower(title))
	for i, w := range words {
		if long, ok := titleExpansions[strings.TrimSuffix(w, ".")]; ok {
			words[i] = long
		}
	}
	return strings.Join(words, " ")
}

// Fingerprint hashes the first 500 characters of the lowercased,
// whitespace-collapsed description. An empty description yields
// NoDescriptionFingerprint instead of a hash.
func Fingerprint(description string) string {
	collapsed := strings.Join(strings.Fields(strings.ToLower(description)), " ")
	if collapsed == "" {
		return NoDescriptionFingerprint
	}
	if runes := []rune(collapsed); len(runes) > fingerprintLength {
		collapsed = string(runes[:fingerprintLength])
	}
	sum := sha256.Sum256([]byte(collapsed))
	return hex.EncodeToString(sum[:])
}

// CanonicalKey derives the cross-source identity of a posting from its
// normalized company, normalized title, and description fingerprint.
func CanonicalKey(company, title, description string) string {
	return Company(company) + "::" + Title(title) + "::" + Fingerprint(description)
}

// CanonicalPrefix is the company and title portion of a canonical key,
// used for the advisory same-role-different-team lookup.
func CanonicalPrefix(company, title string) string {
	return Company(company) + "::" + Title(title) + "::"
}

var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

// StripHTML converts an HTML or HTML-encoded description to plain text.
// Entities are unescaped first (some boards double-encode their payloads),
// then tags are dropped and whitespace is collapsed.
func StripHTML(content string) string {
	unescaped := html.UnescapeString(content)
	if !strings.Contains(unescaped, "<") {
		return strings.Join(strings.Fields(unescaped), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(unescaped))
	if err != nil {
		plain := htmlTagRegex.ReplaceAllString(unescaped, "")
		return strings.Join(strings.Fields(plain), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// InferRemote scans location and description text for remote-indicator
// keywords. Used only when the provider did not assert remote eligibility.
func InferRemote(location, description string, keywords []string) bool {
	loc := strings.ToLower(location)
	desc := strings.ToLower(description)
	for _, kw := range keywords {
		k := strings.ToLower(kw)
		if k == "" {
			continue
		}
		if strings.Contains(loc, k) || strings.Contains(desc, k) {
			return true
		}
	}
	return false
}

// Record builds the canonical record for a raw posting from one source:
// description stripped, remote eligibility resolved, canonical key assigned.
// Identity, score, and lifecycle fields are left for the store and the
// dedup engine.
func Record(p model.RawPosting, source string, remoteKeywords []string) model.JobRecord {
	description := StripHTML(p.Description)

	remote := false
	if p.RemoteEligible != nil {
		remote = *p.RemoteEligible
	} else {
		remote = InferRemote(p.Location, description, remoteKeywords)
	}

	return model.JobRecord{
		ExternalID:     p.ExternalID,
		SourceName:     source,
		CanonicalKey:   CanonicalKey(p.Company, p.Title, description),
		Title:          p.Title,
		Company:        p.Company,
		Link:           p.Link,
		Description:    description,
		Location:       p.Location,
		RemoteEligible: remote,
		Seniority:      p.Seniority,
		Compensation:   p.Compensation,
		ExportStatus:   "pending",
	}
}
