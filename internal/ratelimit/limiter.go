// Package ratelimit implements the per-source token bucket shared by all
// fetch workers.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/legal-llama/corpus-pipeline/internal/corpus"
	"github.com/legal-llama/corpus-pipeline/internal/metrics"
)

// Config holds pacing knobs. Zero values fall back to DefaultRPS/DefaultBurst;
// PerSourceRPS overrides pacing for individual upstreams.
type Config struct {
	DefaultRPS   float64
	DefaultBurst int
	PerSourceRPS map[corpus.SourceKind]float64
}

// Limiter manages one token bucket per logical source. Waiting workers are
// served in FIFO order by rate.Limiter, so no worker starves and a slow
// source never serializes requests to the others.
type Limiter struct {
	mu           sync.Mutex
	limiters     map[corpus.SourceKind]*rate.Limiter
	cfg          Config
	defaultLimit rate.Limit
	defaultBurst int
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	limit := rate.Limit(cfg.DefaultRPS)
	if cfg.DefaultRPS <= 0 {
		limit = rate.Inf
	}
	burst := cfg.DefaultBurst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters:     make(map[corpus.SourceKind]*rate.Limiter),
		cfg:          cfg,
		defaultLimit: limit,
		defaultBurst: burst,
	}
}

// NewFixedDelay builds a limiter enforcing a minimum inter-request delay for
// every source.
func NewFixedDelay(delay time.Duration) *Limiter {
	rps := 0.0
	if delay > 0 {
		rps = float64(time.Second) / float64(delay)
	}
	return New(Config{DefaultRPS: rps, DefaultBurst: 1})
}

// Acquire blocks until the next request slot for source is available. Running
// out of tokens is never an error, only a suspension; the only error is a
// canceled context.
func (l *Limiter) Acquire(ctx context.Context, source corpus.SourceKind) error {
	limiter := l.bucketFor(source)

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", source, err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(string(source), waited)
	}
	return nil
}

func (l *Limiter) bucketFor(source corpus.SourceKind) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, ok := l.limiters[source]; ok {
		return limiter
	}
	limit := l.defaultLimit
	if rps, ok := l.cfg.PerSourceRPS[source]; ok && rps > 0 {
		limit = rate.Limit(rps)
	}
	limiter := rate.NewLimiter(limit, l.defaultBurst)
	l.limiters[source] = limiter
	return limiter
}
