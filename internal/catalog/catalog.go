// Package catalog runs discovery across sources and persists the resulting
// immutable catalog, one discovered_<source>.json per upstream.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/legal-llama/corpus-pipeline/internal/corpus"
)

// Store persists per-source catalogs in a state directory.
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore constructs a Store rooted at dir.
func NewStore(dir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dir: dir, logger: logger}
}

// Path returns the catalog file for a source.
func (s *Store) Path(kind corpus.SourceKind) string {
	return filepath.Join(s.dir, fmt.Sprintf("discovered_%s.json", kind))
}

// Save writes one source's entries atomically.
func (s *Store) Save(kind corpus.SourceKind, entries []corpus.CatalogEntry) error {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return corpus.NewError(corpus.KindDisk, err)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode catalog for %s: %w", kind, err)
	}
	path := s.Path(kind)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return corpus.NewError(corpus.KindDisk, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return corpus.NewError(corpus.KindDisk, err)
	}
	return nil
}

// Load reads one source's entries. A missing file is an empty catalog.
func (s *Store) Load(kind corpus.SourceKind) ([]corpus.CatalogEntry, error) {
	data, err := os.ReadFile(s.Path(kind))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, corpus.NewError(corpus.KindDisk, err)
	}
	var entries []corpus.CatalogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", s.Path(kind), err)
	}
	return entries, nil
}

// LoadAll merges every persisted source catalog.
func (s *Store) LoadAll() ([]corpus.CatalogEntry, error) {
	kinds := []corpus.SourceKind{corpus.SourceGovUK, corpus.SourceLegislation, corpus.SourceBailii}
	var lists [][]corpus.CatalogEntry
	for _, kind := range kinds {
		entries, err := s.Load(kind)
		if err != nil {
			return nil, err
		}
		lists = append(lists, entries)
	}
	return Merge(lists...), nil
}

// Merge concatenates catalogs preserving order, dropping duplicate ids.
func Merge(lists ...[]corpus.CatalogEntry) []corpus.CatalogEntry {
	seen := make(map[string]bool)
	var merged []corpus.CatalogEntry
	for _, list := range lists {
		for _, entry := range list {
			if entry.ID == "" || seen[entry.ID] {
				continue
			}
			seen[entry.ID] = true
			merged = append(merged, entry)
		}
	}
	return merged
}

// Discover enumerates every source, persists each source's catalog and
// returns the merged result. One source failing never blocks entries found
// by another; only total failure is an error.
func Discover(ctx context.Context, discoverers []corpus.Discoverer, maxEntries int, store *Store, logger *zap.Logger) ([]corpus.CatalogEntry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var merged []corpus.CatalogEntry
	failures := 0

	for _, d := range discoverers {
		if err := ctx.Err(); err != nil {
			return merged, err
		}
		budget := 0
		if maxEntries > 0 {
			budget = maxEntries - len(merged)
			if budget <= 0 {
				break
			}
		}
		entries, err := d.Discover(ctx, budget)
		if err != nil {
			failures++
			logger.Warn("source discovery failed",
				zap.String("source", string(d.Kind())),
				zap.Error(err),
			)
			continue
		}
		if err := store.Save(d.Kind(), entries); err != nil {
			return merged, err
		}
		logger.Info("source discovered",
			zap.String("source", string(d.Kind())),
			zap.Int("entries", len(entries)),
		)
		merged = Merge(merged, entries)
	}

	if len(discoverers) > 0 && failures == len(discoverers) {
		return nil, corpus.Errorf(corpus.KindDiscovery, "all %d sources failed discovery", failures)
	}
	return merged, nil
}
