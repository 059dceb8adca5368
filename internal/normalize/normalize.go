// Package normalize validates and cleans raw postings before fingerprinting
// and storage. Every field is mapped and defaulted exactly once here, so the
// rest of the pipeline can assume a well-formed model.Posting.
package normalize

import (
	"net/url"
	"regexp"
	"strings"
)

// UnknownCompany is the placeholder used when no company name can be
// resolved. The health monitor treats postings carrying it as low quality.
const UnknownCompany = "Unknown Company"

const maxDescriptionLen = 2000

// jobBoardDomains are aggregator hosts that must never be mistaken for an
// employer when extracting a company name from a URL.
var jobBoardDomains = []string{
	"indeed.com", "linkedin.com", "glassdoor.com",
	"ziprecruiter.com", "monster.com", "careerbuilder.com",
}

var (
	whitespaceRe    = regexp.MustCompile(`\s+`)
	companySuffixRe = regexp.MustCompile(`(?i)\b(?:Inc|LLC|Ltd|Corp|Corporation|Company|Co)\b\.?`)

	// Patterns tried, in order, against the head of a description when the
	// board returned no company field.
	descriptionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:join|at)\s+([A-Z][a-zA-Z &]+?)(?:\s+(?:is|as|in|and)|,)`),
		regexp.MustCompile(`([A-Z][a-zA-Z &]+?)\s+is\s+(?:looking|seeking|hiring)`),
		regexp.MustCompile(`Company:\s*([A-Za-z &]+)`),
		regexp.MustCompile(`([A-Z][a-zA-Z &]+?)\s+offers`),
	}
)

// Raw is the loosely-typed row shape returned by the fetcher wire format.
type Raw struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Description string `json:"description"`
	Salary      string `json:"salary"`
	JobURL      string `json:"job_url"`
	CompanyURL  string `json:"company_url"`
	DatePosted  string `json:"date_posted"`
	Remote      bool   `json:"is_remote"`
}

// Company resolves a usable company name for the raw row: the provided
// field when present, otherwise extraction from the job URL, description,
// or company URL, falling back to UnknownCompany.
func Company(r Raw) string {
	if c := CleanCompany(r.Company); c != UnknownCompany {
		return c
	}
	if c := companyFromURL(r.JobURL); c != "" {
		return CleanCompany(c)
	}
	if c := companyFromDescription(r.Description); c != "" {
		return CleanCompany(c)
	}
	if c := companyFromURL(r.CompanyURL); c != "" {
		return CleanCompany(c)
	}
	return UnknownCompany
}

// CleanCompany strips corporate suffixes and normalises casing. Empty or
// null-ish input yields UnknownCompany.
func CleanCompany(company string) string {
	c := strings.TrimSpace(company)
	switch strings.ToLower(c) {
	case "", "null", "none":
		return UnknownCompany
	}
	c = companySuffixRe.ReplaceAllString(c, "")
	c = strings.TrimSpace(whitespaceRe.ReplaceAllString(c, " "))
	if c == "" {
		return UnknownCompany
	}
	if c == strings.ToUpper(c) || c == strings.ToLower(c) {
		c = titleCase(c)
	}
	return c
}

// titleCase capitalises the first letter of each word. Company names from
// boards are ASCII in practice; anything fancier belongs to the enricher.
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// companyFromURL guesses an employer from a careers-page hostname.
// Aggregator domains are skipped — a linkedin.com URL says nothing about
// the employer.
func companyFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Host)
	for _, board := range jobBoardDomains {
		if strings.Contains(host, board) {
			return ""
		}
	}
	parts := strings.Split(host, ".")
	if len(parts) < 2 {
		return ""
	}
	// jobs.acme.com → acme; acme.com → acme
	name := parts[0]
	if name == "jobs" || name == "careers" || name == "www" {
		name = parts[1]
	}
	if len(name) < 3 {
		return ""
	}
	return name
}

// companyFromDescription scans the first 500 characters for hiring phrases.
func companyFromDescription(description string) string {
	if description == "" {
		return ""
	}
	head := description
	if len(head) > 500 {
		head = head[:500]
	}
	for _, re := range descriptionPatterns {
		if m := re.FindStringSubmatch(head); m != nil {
			candidate := strings.TrimSpace(m[1])
			if len(candidate) > 2 && len(candidate) < 50 {
				return candidate
			}
		}
	}
	return ""
}

// Description collapses whitespace and truncates overly long text.
func Description(description string) string {
	d := strings.TrimSpace(whitespaceRe.ReplaceAllString(description, " "))
	if len(d) > maxDescriptionLen {
		d = d[:maxDescriptionLen-3] + "..."
	}
	return d
}

// Field trims a free-text field, mapping null-ish markers to empty.
func Field(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "null", "none", "nan":
		return ""
	}
	return s
}
