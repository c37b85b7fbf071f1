// Package legislation implements discovery and fetch against
// legislation.gov.uk. Acts are enumerated from type/year browse pages; each
// item is retrievable as machine-readable XML (data.xml) or the rendered
// page.
package legislation

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/legal-llama/corpus-pipeline/internal/corpus"
	"github.com/legal-llama/corpus-pipeline/internal/source/collyfetch"
)

// itemPath matches item links on browse pages, e.g. /ukpga/2010/15 or
// /id/ukpga/2010/15, capturing type, year and number.
var itemPath = regexp.MustCompile(`^(?:/id)?/([a-z]+)/(\d{4})/(\d+)`)

// Config controls the legislation.gov.uk client.
type Config struct {
	// BaseURL defaults to https://www.legislation.gov.uk.
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	// Types are the legislation categories to browse (default ukpga, uksi).
	Types []string
	// StartYear and EndYear bound the browsed year range.
	StartYear int
	EndYear   int
}

// Source fetches documents and enumerates the catalog for legislation.gov.uk.
type Source struct {
	client *collyfetch.Client
	cfg    Config
	logger *zap.Logger
}

// New builds a Source.
func New(cfg Config, logger *zap.Logger) *Source {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.legislation.gov.uk"
	}
	if len(cfg.Types) == 0 {
		cfg.Types = []string{"ukpga", "uksi"}
	}
	if cfg.StartYear == 0 {
		cfg.StartYear = 1980
	}
	if cfg.EndYear == 0 {
		cfg.EndYear = time.Now().UTC().Year()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		client: collyfetch.New(collyfetch.Config{UserAgent: cfg.UserAgent, Timeout: cfg.Timeout}),
		cfg:    cfg,
		logger: logger,
	}
}

// Kind implements corpus.DocumentSource.
func (s *Source) Kind() corpus.SourceKind { return corpus.SourceLegislation }

// Fetch retrieves one format of an item. XML uses the data.xml rendition;
// HTML fetches the item page.
func (s *Source) Fetch(ctx context.Context, entry corpus.CatalogEntry, format corpus.Format) ([]byte, error) {
	switch format {
	case corpus.FormatXML:
		return s.client.Get(ctx, strings.TrimSuffix(entry.Location, "/")+"/data.xml")
	case corpus.FormatHTML:
		return s.client.Get(ctx, entry.Location)
	default:
		return nil, corpus.Errorf(corpus.KindValidate, "legislation cannot serve format %q", format)
	}
}

// Discover browses every configured (type, year) listing and returns the
// deduplicated catalog. A failing year page is logged and skipped; only
// total failure is an error.
func (s *Source) Discover(ctx context.Context, maxEntries int) ([]corpus.CatalogEntry, error) {
	seen := make(map[string]bool)
	var entries []corpus.CatalogEntry
	pages, failures := 0, 0

	for _, legType := range s.cfg.Types {
		for year := s.cfg.EndYear; year >= s.cfg.StartYear; year-- {
			if err := ctx.Err(); err != nil {
				return entries, err
			}
			if maxEntries > 0 && len(entries) >= maxEntries {
				return entries[:maxEntries], nil
			}
			pages++
			browseURL := fmt.Sprintf("%s/%s/%d", s.cfg.BaseURL, legType, year)
			err := s.client.Visit(ctx, browseURL, "a[href]", func(e *colly.HTMLElement) {
				s.collectItem(e, seen, &entries)
			})
			if err != nil {
				failures++
				s.logger.Warn("browse page failed",
					zap.String("url", browseURL),
					zap.Error(err),
				)
			}
		}
	}

	if pages > 0 && failures == pages {
		return nil, corpus.Errorf(corpus.KindDiscovery, "all %d legislation browse pages failed", pages)
	}
	if maxEntries > 0 && len(entries) > maxEntries {
		entries = entries[:maxEntries]
	}
	s.logger.Info("legislation catalog enumerated", zap.Int("entries", len(entries)))
	return entries, nil
}

func (s *Source) collectItem(e *colly.HTMLElement, seen map[string]bool, entries *[]corpus.CatalogEntry) {
	m := itemPath.FindStringSubmatch(e.Attr("href"))
	if m == nil {
		return
	}
	legType, yearStr, number := m[1], m[2], m[3]
	id := NormalizeID(legType, yearStr, number)
	if seen[id] {
		return
	}
	seen[id] = true
	year, _ := strconv.Atoi(yearStr)
	*entries = append(*entries, corpus.CatalogEntry{
		ID:              id,
		Source:          corpus.SourceLegislation,
		Title:           strings.TrimSpace(e.Text),
		Location:        fmt.Sprintf("%s/%s/%s/%s", s.cfg.BaseURL, legType, yearStr, number),
		ExpectedFormats: []corpus.Format{corpus.FormatXML, corpus.FormatHTML},
		Year:            year,
		DocType:         legType,
	})
}

// NormalizeID builds the stable catalog id for an item. Browse pages link the
// same act as /ukpga/2010/15, /id/ukpga/2010/15 and /ukpga/2010/15/contents;
// all collapse to one id.
func NormalizeID(legType, year, number string) string {
	return fmt.Sprintf("%s-%s-%s", legType, year, number)
}
