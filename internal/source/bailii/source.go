// Package bailii implements discovery and fetch against BAILII case-law
// databases. Judgments exist only as rendered HTML; discovery walks per-court
// year indexes.
package bailii

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

// defaultDatabases is the subset of court databases browsed by default,
// chosen for tax and housing relevance.
var defaultDatabases = []string{
	"/ew/cases/EWCA/Civ/",
	"/ew/cases/EWHC/Admin/",
	"/ew/cases/EWHC/Ch/",
	"/uk/cases/UKSC/",
	"/uk/cases/UKUT/TCC/",
	"/uk/cases/UKFTT/TC/",
}

// casePath matches judgment links inside a database,
// e.g. /ew/cases/EWCA/Civ/2021/100.html.
var casePath = regexp.MustCompile(`^(/(?:ew|uk)/cases/[A-Za-z/]+)/(\d{4})/(\w+)\.html$`)

// Config controls the BAILII client.
type Config struct {
	// BaseURL defaults to https://www.bailii.org.
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	// Databases are the court index paths to walk.
	Databases []string
	// StartYear and EndYear bound the walked year range.
	StartYear int
	EndYear   int
}

// Source fetches judgments and enumerates the catalog for BAILII.
type Source struct {
	client *collyfetch.Client
	cfg    Config
	logger *zap.Logger
}

// New builds a Source.
func New(cfg Config, logger *zap.Logger) *Source {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.bailii.org"
	}
	if len(cfg.Databases) == 0 {
		cfg.Databases = defaultDatabases
	}
	if cfg.StartYear == 0 {
		cfg.StartYear = 2000
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
func (s *Source) Kind() corpus.SourceKind { return corpus.SourceBailii }

// Fetch retrieves a judgment page. Only HTML exists upstream.
func (s *Source) Fetch(ctx context.Context, entry corpus.CatalogEntry, format corpus.Format) ([]byte, error) {
	if format != corpus.FormatHTML {
		return nil, corpus.Errorf(corpus.KindValidate, "bailii cannot serve format %q", format)
	}
	return s.client.Get(ctx, entry.Location)
}

// Discover walks each database's year indexes and returns the deduplicated
// catalog. A failing index is logged and skipped; only total failure is an
// error.
func (s *Source) Discover(ctx context.Context, maxEntries int) ([]corpus.CatalogEntry, error) {
	seen := make(map[string]bool)
	var entries []corpus.CatalogEntry
	pages, failures := 0, 0

	for _, db := range s.cfg.Databases {
		for year := s.cfg.EndYear; year >= s.cfg.StartYear; year-- {
			if err := ctx.Err(); err != nil {
				return entries, err
			}
			if maxEntries > 0 && len(entries) >= maxEntries {
				return entries[:maxEntries], nil
			}
			pages++
			indexURL := fmt.Sprintf("%s%s%d/", s.cfg.BaseURL, db, year)
			err := s.client.Visit(ctx, indexURL, "a[href]", func(e *colly.HTMLElement) {
				s.collectCase(e, seen, &entries)
			})
			if err != nil {
				failures++
				s.logger.Debug("case index failed",
					zap.String("url", indexURL),
					zap.Error(err),
				)
			}
		}
	}

	if pages > 0 && failures == pages {
		return nil, corpus.Errorf(corpus.KindDiscovery, "all %d bailii indexes failed", pages)
	}
	if maxEntries > 0 && len(entries) > maxEntries {
		entries = entries[:maxEntries]
	}
	s.logger.Info("bailii catalog enumerated", zap.Int("entries", len(entries)))
	return entries, nil
}

func (s *Source) collectCase(e *colly.HTMLElement, seen map[string]bool, entries *[]corpus.CatalogEntry) {
	href := e.Attr("href")
	m := casePath.FindStringSubmatch(href)
	if m == nil {
		return
	}
	court, yearStr, number := m[1], m[2], m[3]
	id := NormalizeID(court, yearStr, number)
	if seen[id] {
		return
	}
	seen[id] = true
	year, _ := strconv.Atoi(yearStr)
	*entries = append(*entries, corpus.CatalogEntry{
		ID:              id,
		Source:          corpus.SourceBailii,
		Title:           strings.TrimSpace(e.Text),
		Location:        s.cfg.BaseURL + href,
		ExpectedFormats: []corpus.Format{corpus.FormatHTML},
		Year:            year,
		DocType:         "judgment",
	})
}

// NormalizeID builds the stable catalog id for a judgment from its court
// path, year and neutral citation number.
func NormalizeID(courtPath, year, number string) string {
	court := strings.Trim(strings.TrimPrefix(strings.TrimPrefix(courtPath, "/ew/cases/"), "/uk/cases/"), "/")
	court = strings.ToLower(strings.ReplaceAll(court, "/", "-"))
	return fmt.Sprintf("bailii-%s-%s-%s", court, year, number)
}
