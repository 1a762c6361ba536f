package cli

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// company is one row of a companies CSV file.
type company struct {
	URL      string
	Industry string
}

// loadCompanies reads a CSV file with a header row containing URL and
// Industry columns. Column names are matched case-insensitively; extra
// columns are ignored and rows without a URL are skipped.
func loadCompanies(path string) ([]company, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return parseCompanies(f)
}

func parseCompanies(r io.Reader) ([]company, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("CSV file is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	urlCol, industryCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "url":
			urlCol = i
		case "industry":
			industryCol = i
		}
	}
	if urlCol < 0 {
		return nil, errors.New(`CSV header has no "URL" column`)
	}

	var companies []company
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		c := company{URL: field(rec, urlCol), Industry: field(rec, industryCol)}
		if c.URL == "" {
			continue
		}
		companies = append(companies, c)
	}
	return companies, nil
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
