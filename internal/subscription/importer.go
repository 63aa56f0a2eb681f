// Package subscription imports batches of ss:// links from files, stdin or
// HTTP endpoints.
package subscription

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"shadowdeck/internal/config/parser"
	"shadowdeck/internal/storage"
	"shadowdeck/internal/storage/models"
)

// Result summarises one import.
type Result struct {
	Source  string
	Total   int
	Added   int
	Skipped int // already present
	Failed  int
	Errors  []error
}

// Importer reads link lists and appends the decoded profiles to a store.
type Importer struct {
	fetcher *Fetcher
	stdin   io.Reader
	logger  *slog.Logger
}

// NewImporter creates an importer using fetcher for URLs.
func NewImporter(fetcher *Fetcher, logger *slog.Logger) *Importer {
	if fetcher == nil {
		fetcher = NewFetcher(DefaultFetcherConfig())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		fetcher: fetcher,
		stdin:   os.Stdin,
		logger:  logger.With("component", "import"),
	}
}

// Read returns the raw content of source: "-" for stdin, an http(s) URL, or
// a file path.
func (i *Importer) Read(ctx context.Context, source string) ([]byte, error) {
	switch {
	case source == "-":
		return io.ReadAll(i.stdin)
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return i.fetcher.Fetch(ctx, source)
	default:
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", source, err)
		}
		return data, nil
	}
}

// Import reads source and appends every new profile to store. Profiles
// already present (same server, port, method and password) are skipped.
// The store is saved when anything was added; the current selection is kept.
func (i *Importer) Import(ctx context.Context, source string, store *storage.Store) (*Result, error) {
	content, err := i.Read(ctx, source)
	if err != nil {
		return nil, err
	}

	entries, err := parser.DecodeList(content)
	if err != nil {
		return nil, err
	}

	result := &Result{Source: source, Total: len(entries)}
	existing := store.Profiles()
	current := store.CurrentIndex()

	for _, entry := range entries {
		if entry.Err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Errorf("line %d: %w", entry.Line, entry.Err))
			continue
		}

		p := entry.Profile
		if containsEndpoint(existing, p) {
			result.Skipped++
			continue
		}
		if p.Name == "" {
			p.Name = p.Server + ":" + p.ServerPort
		}

		store.Append(p)
		existing = append(existing, p)
		result.Added++
	}

	if result.Added == 0 {
		return result, nil
	}
	if current >= 0 {
		store.SetCurrentIndex(current)
	}
	if err := store.Save(); err != nil {
		return result, err
	}

	i.logger.Info("imported profiles",
		"source", source, "added", result.Added, "skipped", result.Skipped, "failed", result.Failed)
	return result, nil
}

func containsEndpoint(profiles []models.Profile, p models.Profile) bool {
	for _, e := range profiles {
		if e.Server == p.Server && e.ServerPort == p.ServerPort &&
			e.Method == p.Method && e.Password == p.Password {
			return true
		}
	}
	return false
}
