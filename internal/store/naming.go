package store

import (
	"net/url"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/raphaelgruber/factsheet-go/internal/models"
)

const (
	fallbackFileName    = "factsheet.md"
	fallbackCompanyName = "Unknown Company"
)

var hostPrefixes = []string{"www.", "app.", "api."}

// companyLabel returns the first DNS label of rawURL's host after dropping
// common service prefixes, e.g. "https://www.acme.co.uk" -> "acme".
func companyLabel(rawURL string) string {
	raw := strings.TrimSpace(rawURL)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	for _, p := range hostPrefixes {
		host = strings.TrimPrefix(host, p)
	}
	label, _, _ := strings.Cut(host, ".")
	return label
}

// FileNameForURL derives the factsheet file name from a company URL.
func FileNameForURL(rawURL string) string {
	slug := strings.Trim(models.Slugify(companyLabel(rawURL)), "-")
	if slug == "" {
		return fallbackFileName
	}
	return slug + ".md"
}

// CompanyNameForURL derives a display name from a company URL.
func CompanyNameForURL(rawURL string) string {
	name := titleName(companyLabel(rawURL))
	if name == "" {
		return fallbackCompanyName
	}
	return name
}

func titleName(label string) string {
	label = strings.NewReplacer("-", " ", "_", " ").Replace(label)
	label = strings.Join(strings.Fields(label), " ")
	if label == "" {
		return ""
	}
	// Casers keep state, so one is built per call.
	return cases.Title(language.English).String(label)
}
