// Package govuk implements discovery and fetch against GOV.UK. Structured
// content comes from the Content API; the rendered page serves as the HTML
// fallback.
package govuk

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/legal-llama/corpus-pipeline/internal/corpus"
)

// defaultSearchSections are the GOV.UK search verticals enumerated for HMRC
// material.
var defaultSearchSections = []string{
	"/search/guidance-and-regulation?organisations%5B%5D=hm-revenue-customs",
	"/search/research-and-statistics?organisations%5B%5D=hm-revenue-customs",
	"/search/policy-papers-and-consultations?organisations%5B%5D=hm-revenue-customs",
	"/search/transparency?organisations%5B%5D=hm-revenue-customs",
}

// documentPathPrefixes are the link shapes on search result pages that point
// at fetchable documents.
var documentPathPrefixes = []string{
	"/guidance/",
	"/government/publications/",
	"/hmrc-internal-manuals/",
}

// Config controls the GOV.UK client.
type Config struct {
	// BaseURL defaults to https://www.gov.uk; overridable for tests.
	BaseURL        string
	UserAgent      string
	Timeout        time.Duration
	SearchSections []string
	// MaxPages bounds pagination per search section (default 50).
	MaxPages int
}

// Source fetches documents and enumerates the catalog for GOV.UK.
type Source struct {
	client *resty.Client
	cfg    Config
	logger *zap.Logger
}

// New builds a Source.
func New(cfg Config, logger *zap.Logger) *Source {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.gov.uk"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "corpus-pipeline/1.0 (research; contact: data@legal-llama.dev)"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if len(cfg.SearchSections) == 0 {
		cfg.SearchSections = defaultSearchSections
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetHeader("User-Agent", cfg.UserAgent)
	client.SetTimeout(cfg.Timeout)

	return &Source{client: client, cfg: cfg, logger: logger}
}

// Kind implements corpus.DocumentSource.
func (s *Source) Kind() corpus.SourceKind { return corpus.SourceGovUK }

// Fetch retrieves one format of a document. JSON goes through the Content
// API mirror of the page path; HTML fetches the page itself.
func (s *Source) Fetch(ctx context.Context, entry corpus.CatalogEntry, format corpus.Format) ([]byte, error) {
	path, err := pagePath(entry.Location)
	if err != nil {
		return nil, corpus.NewError(corpus.KindValidate, err)
	}
	var target string
	switch format {
	case corpus.FormatJSON:
		target = "/api/content" + path
	case corpus.FormatHTML:
		target = path
	default:
		return nil, corpus.Errorf(corpus.KindValidate, "govuk cannot serve format %q", format)
	}

	resp, err := s.client.R().SetContext(ctx).Get(target)
	if err != nil {
		return nil, corpus.NewError(corpus.KindNetwork, fmt.Errorf("get %s: %w", target, err))
	}
	if err := corpus.ClassifyHTTPStatus(resp.StatusCode(), target); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// Discover walks the search verticals and returns catalog entries for every
// linked document, deduplicated by normalized page path. A failing section is
// logged and skipped; only total failure is an error.
func (s *Source) Discover(ctx context.Context, maxEntries int) ([]corpus.CatalogEntry, error) {
	seen := make(map[string]bool)
	var entries []corpus.CatalogEntry
	failedSections := 0

	for _, section := range s.cfg.SearchSections {
		if err := ctx.Err(); err != nil {
			return entries, err
		}
		found, err := s.discoverSection(ctx, section, maxEntries, seen, &entries)
		if err != nil {
			failedSections++
			s.logger.Warn("search section failed",
				zap.String("section", section),
				zap.Error(err),
			)
			continue
		}
		s.logger.Info("search section enumerated",
			zap.String("section", section),
			zap.Int("found", found),
		)
		if maxEntries > 0 && len(entries) >= maxEntries {
			break
		}
	}

	if failedSections == len(s.cfg.SearchSections) {
		return nil, corpus.Errorf(corpus.KindDiscovery, "all %d govuk search sections failed", failedSections)
	}
	return entries, nil
}

func (s *Source) discoverSection(ctx context.Context, section string, maxEntries int, seen map[string]bool, entries *[]corpus.CatalogEntry) (int, error) {
	found := 0
	for page := 1; page <= s.cfg.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return found, err
		}
		target := section
		if strings.Contains(section, "?") {
			target += fmt.Sprintf("&page=%d", page)
		} else {
			target += fmt.Sprintf("?page=%d", page)
		}

		resp, err := s.client.R().SetContext(ctx).Get(target)
		if err != nil {
			return found, corpus.NewError(corpus.KindDiscovery, err)
		}
		if err := corpus.ClassifyHTTPStatus(resp.StatusCode(), target); err != nil {
			return found, corpus.NewError(corpus.KindDiscovery, err)
		}

		added, err := s.collectLinks(resp.Body(), seen, entries, maxEntries)
		if err != nil {
			return found, err
		}
		found += added
		// An exhausted result list stops pagination for the section.
		if added == 0 {
			break
		}
		if maxEntries > 0 && len(*entries) >= maxEntries {
			break
		}
	}
	return found, nil
}

func (s *Source) collectLinks(body []byte, seen map[string]bool, entries *[]corpus.CatalogEntry, maxEntries int) (int, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return 0, corpus.NewError(corpus.KindDiscovery, err)
	}
	added := 0
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if !isDocumentPath(href) {
			return true
		}
		id := NormalizeID(href)
		if id == "" || seen[id] {
			return true
		}
		seen[id] = true
		*entries = append(*entries, corpus.CatalogEntry{
			ID:              id,
			Source:          corpus.SourceGovUK,
			Title:           strings.TrimSpace(sel.Text()),
			Location:        s.cfg.BaseURL + href,
			ExpectedFormats: []corpus.Format{corpus.FormatJSON, corpus.FormatHTML},
			DocType:         docTypeFor(href),
		})
		added++
		return maxEntries <= 0 || len(*entries) < maxEntries
	})
	return added, nil
}

func isDocumentPath(href string) bool {
	for _, prefix := range documentPathPrefixes {
		if strings.HasPrefix(href, prefix) {
			return true
		}
	}
	return false
}

func docTypeFor(href string) string {
	switch {
	case strings.HasPrefix(href, "/guidance/"):
		return "guidance"
	case strings.HasPrefix(href, "/government/publications/"):
		return "publication"
	case strings.HasPrefix(href, "/hmrc-internal-manuals/"):
		return "manual"
	default:
		return ""
	}
}

// NormalizeID derives the stable catalog id from a page path or URL, so the
// same document reached via different URL spellings deduplicates.
func NormalizeID(location string) string {
	path, err := pagePath(location)
	if err != nil {
		return ""
	}
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return ""
	}
	return "govuk-" + strings.ReplaceAll(trimmed, "/", "-")
}

func pagePath(location string) (string, error) {
	if strings.HasPrefix(location, "/") {
		return strings.TrimSuffix(location, "/"), nil
	}
	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("parse location %q: %w", location, err)
	}
	if u.Path == "" {
		return "", fmt.Errorf("location %q has no path", location)
	}
	return strings.TrimSuffix(u.Path, "/"), nil
}
