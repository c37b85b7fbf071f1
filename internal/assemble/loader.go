package assemble

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/legal-llama/corpus-pipeline/internal/corpus"
)

// formatPriority orders the formats of an entry from most to least reliable
// for text extraction. One document is assembled per entry, from the best
// verified format available.
var formatPriority = []corpus.Format{
	corpus.FormatText,
	corpus.FormatJSON,
	corpus.FormatXML,
	corpus.FormatHTML,
}

// Loader materializes assembly-ready documents from success records and their
// stored artifacts.
type Loader struct {
	artifacts corpus.ArtifactStore
	logger    *zap.Logger
}

// NewLoader constructs a Loader.
func NewLoader(artifacts corpus.ArtifactStore, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{artifacts: artifacts, logger: logger}
}

// Load returns one Document per entry with at least one success record,
// ordered by entry id. Entries whose artifacts cannot be read or yield no
// text are skipped and counted; assembly is a read-only consumer and never
// mutates the ledger.
func (l *Loader) Load(ctx context.Context, entries []corpus.CatalogEntry, records []corpus.FetchRecord) ([]Document, int, error) {
	byEntry := make(map[string]map[corpus.Format]corpus.FetchRecord)
	for _, rec := range records {
		if rec.Status != corpus.StatusSuccess {
			continue
		}
		if byEntry[rec.EntryID] == nil {
			byEntry[rec.EntryID] = make(map[corpus.Format]corpus.FetchRecord)
		}
		byEntry[rec.EntryID][rec.Format] = rec
	}

	sorted := make([]corpus.CatalogEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var (
		docs    []Document
		skipped int
	)
	for _, entry := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, skipped, err
		}
		formats, ok := byEntry[entry.ID]
		if !ok {
			continue
		}
		doc, ok := l.loadOne(ctx, entry, formats)
		if !ok {
			skipped++
			continue
		}
		docs = append(docs, doc)
	}
	l.logger.Info("documents loaded for assembly",
		zap.Int("documents", len(docs)),
		zap.Int("skipped", skipped),
	)
	return docs, skipped, nil
}

func (l *Loader) loadOne(ctx context.Context, entry corpus.CatalogEntry, formats map[corpus.Format]corpus.FetchRecord) (Document, bool) {
	for _, format := range formatPriority {
		rec, ok := formats[format]
		if !ok {
			continue
		}
		payload, err := l.artifacts.Get(ctx, rec.ArtifactPath)
		if err != nil {
			l.logger.Warn("artifact unreadable during assembly",
				zap.String("key", rec.Key()),
				zap.Error(err),
			)
			continue
		}
		text, err := ExtractText(format, payload)
		if err != nil || text == "" {
			l.logger.Warn("artifact yielded no text",
				zap.String("key", rec.Key()),
				zap.Error(err),
			)
			continue
		}
		return Document{
			EntryID: entry.ID,
			Source:  entry.Source,
			Title:   entry.Title,
			DocType: entry.DocType,
			Year:    entry.Year,
			Text:    text,
		}, true
	}
	return Document{}, false
}
