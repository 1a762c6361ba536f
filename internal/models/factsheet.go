package models

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// FactsheetMetadata describes a stored factsheet file.
type FactsheetMetadata struct {
	Filename    string    `json:"filename"`
	CompanyName string    `json:"company_name"`
	URL         string    `json:"url"`
	WordCount   int       `json:"word_count"`
	CreatedAt   time.Time `json:"created_at"`
	FileSize    int64     `json:"file_size"`
	Provider    string    `json:"provider"`
	Model       string    `json:"model,omitempty"`
}

// Factsheet is a stored factsheet with its Markdown body.
type Factsheet struct {
	Metadata FactsheetMetadata `json:"metadata"`
	Content  string            `json:"content"`
}

// GenerateRequest asks for a factsheet to be generated for one URL.
type GenerateRequest struct {
	URL      string `json:"url"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// ErrInvalidURL is returned when a request URL is not an absolute http(s) URL.
var ErrInvalidURL = errors.New("URL must start with http:// or https://")

// Validate checks that the request carries a usable URL.
func (r GenerateRequest) Validate() error {
	raw := strings.TrimSpace(r.URL)
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return ErrInvalidURL
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ErrInvalidURL
	}
	return nil
}
