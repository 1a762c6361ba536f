package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestNewFileStoreRequiresPath(t *testing.T) {
	_, err := NewFileStore("  ")
	assert.Error(t, err)
}

func TestWriteAndRead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	meta, err := s.Write(ctx, "acme.md", "# Acme\n\nRockets and anvils.", Frontmatter{
		SourceURL:   "https://acme.com",
		CompanyName: "Acme",
		Provider:    "openai",
		Model:       "gpt-4o-mini",
		GeneratedAt: at,
	})
	require.NoError(t, err)

	assert.Equal(t, "acme.md", meta.Filename)
	assert.Equal(t, "Acme", meta.CompanyName)
	assert.Equal(t, "https://acme.com", meta.URL)
	assert.Equal(t, 5, meta.WordCount)
	assert.Equal(t, "openai", meta.Provider)
	assert.Equal(t, "gpt-4o-mini", meta.Model)
	assert.True(t, at.Equal(meta.CreatedAt))
	assert.Positive(t, meta.FileSize)

	fs, err := s.Read(ctx, "acme.md")
	require.NoError(t, err)
	assert.Equal(t, "# Acme\n\nRockets and anvils.\n", fs.Content)
	assert.Equal(t, meta, fs.Metadata)

	raw, err := os.ReadFile(filepath.Join(s.BasePath(), "acme.md"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "source_url: https://acme.com")
}

func TestWriteOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Write(ctx, "acme.md", "first", Frontmatter{})
	require.NoError(t, err)
	_, err = s.Write(ctx, "acme.md", "second version", Frontmatter{})
	require.NoError(t, err)

	fs, err := s.Read(ctx, "acme.md")
	require.NoError(t, err)
	assert.Equal(t, "second version\n", fs.Content)

	entries, err := os.ReadDir(s.BasePath())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestListNewestFirstAndLegacyFiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Write(ctx, "old.md", "old", Frontmatter{GeneratedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	_, err = s.Write(ctx, "new.md", "new", Frontmatter{GeneratedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)

	legacy := filepath.Join(s.BasePath(), "big_co.md")
	require.NoError(t, os.WriteFile(legacy, []byte("# Big Co\n**Website:** [https://bigco.com](https://bigco.com)\n"), 0o644))
	legacyTime := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(legacy, legacyTime, legacyTime))

	require.NoError(t, os.WriteFile(filepath.Join(s.BasePath(), "notes.txt"), []byte("skip"), 0o644))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "new.md", list[0].Filename)
	assert.Equal(t, "old.md", list[1].Filename)

	assert.Equal(t, "big_co.md", list[2].Filename)
	assert.Equal(t, "Big Co", list[2].CompanyName)
	assert.Equal(t, "https://bigco.com", list[2].URL)
	assert.Equal(t, "unknown", list[2].Provider)

	assert.Equal(t, unknownURL, list[1].URL)
}

func TestListMissingDir(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.RemoveAll(s.BasePath()))

	list, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestReadDeleteNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Read(ctx, "nope.md")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "nope.md"), ErrNotFound)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Write(ctx, "acme.md", "x", Frontmatter{})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "acme.md"))

	_, err = s.Read(ctx, "acme.md")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDocumentSections(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Write(ctx, "acme.md", "# Acme\n\n## Overview\nRockets.\n", Frontmatter{CompanyName: "Acme"})
	require.NoError(t, err)

	doc, err := s.Document(ctx, "acme.md")
	require.NoError(t, err)
	sec, ok := doc.Section("overview")
	require.True(t, ok)
	assert.Equal(t, "Rockets.", sec.Content)
}

func TestInvalidNames(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"", "../etc.md", "a/b.md", `a\b.md`, "notes.txt", ".md", ".hidden.md", "a..b.md"} {
		t.Run(name, func(t *testing.T) {
			_, err := s.Write(ctx, name, "x", Frontmatter{})
			assert.ErrorIs(t, err, ErrInvalidName)
			_, err = s.Read(ctx, name)
			assert.ErrorIs(t, err, ErrInvalidName)
			assert.ErrorIs(t, s.Delete(ctx, name), ErrInvalidName)
		})
	}
}

func TestWriteCanceledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Write(ctx, "acme.md", "x", Frontmatter{})
	assert.ErrorIs(t, err, context.Canceled)
}
