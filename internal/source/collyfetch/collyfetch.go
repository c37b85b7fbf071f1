// Package collyfetch wraps a colly collector behind single-shot, context
// aware calls for the scrape-based upstreams.
package collyfetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/legal-llama/corpus-pipeline/internal/corpus"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

const defaultUserAgent = "corpus-pipeline/1.0 (research; contact: data@legal-llama.dev)"

// Client issues one-shot requests through cloned collectors, so callbacks
// never leak between calls.
type Client struct {
	cfg       Config
	base      *colly.Collector
	transport http.RoundTripper
}

// New builds a Client.
func New(cfg Config) *Client {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	transport := newTransport()
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.WithTransport(transport)
	return &Client{cfg: cfg, base: c, transport: transport}
}

// Get fetches one URL and returns the raw body.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var (
		body   []byte
		status int
	)
	collector := c.clone()
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})
	return body, c.run(ctx, collector, url, &status)
}

// Visit fetches one URL and streams matched elements to fn. Used for
// discovery pages; fn must not block.
func (c *Client) Visit(ctx context.Context, url, selector string, fn func(e *colly.HTMLElement)) error {
	var status int
	collector := c.clone()
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
	})
	collector.OnHTML(selector, fn)
	return c.run(ctx, collector, url, &status)
}

func (c *Client) clone() *colly.Collector {
	collector := c.base.Clone()
	collector.UserAgent = c.cfg.UserAgent
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(c.cfg.Timeout)
	collector.WithTransport(c.transport)
	return collector
}

func (c *Client) run(ctx context.Context, collector *colly.Collector, url string, status *int) error {
	var visitErr error
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			*status = r.StatusCode
		}
		visitErr = err
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := collector.Visit(url); err != nil && visitErr == nil {
			visitErr = err
		}
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return corpus.NewError(corpus.KindNetwork, fmt.Errorf("fetch %s: %w", url, ctx.Err()))
	}

	if *status != 0 {
		if err := corpus.ClassifyHTTPStatus(*status, url); err != nil {
			return err
		}
	}
	if visitErr != nil {
		return corpus.NewError(corpus.KindNetwork, fmt.Errorf("fetch %s: %w", url, visitErr))
	}
	if *status == 0 {
		return corpus.Errorf(corpus.KindNetwork, "fetch %s: no response", url)
	}
	return nil
}

func newTransport() *http.Transport {
	return &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
}
