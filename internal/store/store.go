// Package store persists generated factsheets as Markdown files.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/raphaelgruber/factsheet-go/internal/models"
	"github.com/raphaelgruber/factsheet-go/internal/parser"
)

var (
	// ErrNotFound is returned when a factsheet file does not exist.
	ErrNotFound = errors.New("factsheet not found")
	// ErrInvalidName is returned for names that are not plain .md file names.
	ErrInvalidName = errors.New("invalid factsheet name")
)

const unknownURL = "Unknown URL"

// Frontmatter is the YAML header written above every factsheet body.
type Frontmatter struct {
	SourceURL   string    `yaml:"source_url"`
	CompanyName string    `yaml:"company_name"`
	Provider    string    `yaml:"provider,omitempty"`
	Model       string    `yaml:"model,omitempty"`
	GeneratedAt time.Time `yaml:"generated_at"`
}

// FileStore keeps one Markdown file per factsheet under a base directory.
type FileStore struct {
	basePath string
	now      func() time.Time
}

// NewFileStore initializes a FileStore rooted at basePath.
func NewFileStore(basePath string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("store: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("store: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath, now: time.Now}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// Path returns the on-disk path for name.
func (s *FileStore) Path(name string) (string, error) {
	clean, err := sanitizeName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, clean), nil
}

// Write stores content under name with fm as frontmatter and returns the
// metadata of the written file. An existing file with the same name is
// replaced.
func (s *FileStore) Write(ctx context.Context, name, content string, fm Frontmatter) (models.FactsheetMetadata, error) {
	if err := ctx.Err(); err != nil {
		return models.FactsheetMetadata{}, err
	}
	path, err := s.Path(name)
	if err != nil {
		return models.FactsheetMetadata{}, err
	}
	if fm.GeneratedAt.IsZero() {
		fm.GeneratedAt = s.now().UTC()
	}

	doc, err := parser.RenderMarkdown(fm, content)
	if err != nil {
		return models.FactsheetMetadata{}, fmt.Errorf("store: %w", err)
	}

	// Write to a temp file first so readers never see a partial factsheet.
	tmp, err := os.CreateTemp(s.basePath, ".factsheet-*.tmp")
	if err != nil {
		return models.FactsheetMetadata{}, fmt.Errorf("store: create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.WriteString(doc); err != nil {
		_ = tmp.Close()
		return models.FactsheetMetadata{}, fmt.Errorf("store: write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return models.FactsheetMetadata{}, fmt.Errorf("store: write file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return models.FactsheetMetadata{}, fmt.Errorf("store: write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return models.FactsheetMetadata{}, fmt.Errorf("store: write file: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return models.FactsheetMetadata{}, fmt.Errorf("store: stat file: %w", err)
	}
	return metadataFor(filepath.Base(path), info, mustParse(doc)), nil
}

// List returns metadata for every factsheet, newest first.
func (s *FileStore) List(ctx context.Context) ([]models.FactsheetMetadata, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []models.FactsheetMetadata{}, nil
		}
		return nil, fmt.Errorf("store: read dir: %w", err)
	}

	out := make([]models.FactsheetMetadata, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		fs, err := s.Read(ctx, e.Name())
		if err != nil {
			// Skip files that vanished or cannot be read; the rest still list.
			continue
		}
		out = append(out, fs.Metadata)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Filename < out[j].Filename
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Read returns a factsheet's body and metadata.
func (s *FileStore) Read(ctx context.Context, name string) (*models.Factsheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("store: read file: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("store: stat file: %w", err)
	}
	doc := mustParse(string(raw))
	return &models.Factsheet{
		Metadata: metadataFor(filepath.Base(path), info, doc),
		Content:  doc.Content,
	}, nil
}

// Document parses a stored factsheet into sections.
func (s *FileStore) Document(ctx context.Context, name string) (*parser.MarkdownDoc, error) {
	fs, err := s.Read(ctx, name)
	if err != nil {
		return nil, err
	}
	return parser.ParseMarkdown(fs.Content)
}

// Delete removes a factsheet file.
func (s *FileStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("store: delete file: %w", err)
	}
	return nil
}

func mustParse(content string) *parser.MarkdownDoc {
	// ParseMarkdown never fails; YAML errors degrade to empty frontmatter.
	doc, _ := parser.ParseMarkdown(content)
	return doc
}

func metadataFor(name string, info os.FileInfo, doc *parser.MarkdownDoc) models.FactsheetMetadata {
	meta := models.FactsheetMetadata{
		Filename:    name,
		CompanyName: doc.GetFrontmatterString("company_name"),
		URL:         doc.GetFrontmatterString("source_url"),
		WordCount:   models.WordCount(doc.Content),
		CreatedAt:   info.ModTime(),
		FileSize:    info.Size(),
		Provider:    doc.GetFrontmatterString("provider"),
		Model:       doc.GetFrontmatterString("model"),
	}
	if ts, ok := doc.GetFrontmatterTime("generated_at"); ok {
		meta.CreatedAt = ts
	}
	if meta.CompanyName == "" {
		meta.CompanyName = titleName(strings.TrimSuffix(name, ".md"))
	}
	if meta.URL == "" {
		meta.URL = parser.FindWebsiteURL(doc.Content)
	}
	if meta.URL == "" {
		meta.URL = unknownURL
	}
	if meta.Provider == "" {
		meta.Provider = "unknown"
	}
	return meta
}

// sanitizeName accepts only plain file names ending in .md.
func sanitizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" ||
		strings.ContainsAny(name, `/\`) ||
		strings.Contains(name, "..") ||
		strings.HasPrefix(name, ".") ||
		!strings.HasSuffix(name, ".md") ||
		name == ".md" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return name, nil
}
