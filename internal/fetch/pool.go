// Package fetch implements the bounded worker pool that drains the catalog
// through the rate limiter and records every outcome in the progress ledger.
package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/legal-llama/corpus-pipeline/internal/corpus"
	"github.com/legal-llama/corpus-pipeline/internal/metrics"
	"github.com/legal-llama/corpus-pipeline/internal/storage/local"
)

// Ledger is the slice of the progress store the pool needs.
type Ledger interface {
	Record(rec corpus.FetchRecord) error
	Get(entryID string, format corpus.Format) (corpus.FetchRecord, bool)
}

// Config controls pool behavior.
type Config struct {
	// Workers bounds fetch concurrency (default 4).
	Workers int
	// MaxAttempts bounds the weighted retry budget per (entry, format)
	// (default 3).
	MaxAttempts int
	// RequestTimeout caps a single upstream fetch (default 30s).
	RequestTimeout time.Duration
}

const (
	defaultWorkers        = 4
	defaultMaxAttempts    = 3
	defaultRequestTimeout = 30 * time.Second
)

// Result summarizes one pool run. Exhausted pairs are enumerated from the
// ledger by the caller; the pool only counts them.
type Result struct {
	Succeeded    int
	Exhausted    int
	Corrupt      int
	Skipped      int
	BytesFetched int64
}

// Pool drains catalog entries through per-source fetchers. Workers share one
// rate limiter; a stalled source suspends only the workers waiting on it.
type Pool struct {
	sources   map[corpus.SourceKind]corpus.DocumentSource
	limiter   corpus.RateLimiter
	ledger    Ledger
	artifacts corpus.ArtifactStore
	hasher    corpus.Hasher
	clock     corpus.Clock
	backoff   *ExponentialBackoff
	cfg       Config
	logger    *zap.Logger
}

type task struct {
	entry  corpus.CatalogEntry
	format corpus.Format
}

// New constructs a Pool.
func New(
	sources []corpus.DocumentSource,
	limiter corpus.RateLimiter,
	ledger Ledger,
	artifacts corpus.ArtifactStore,
	hasher corpus.Hasher,
	clock corpus.Clock,
	cfg Config,
	logger *zap.Logger,
) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	byKind := make(map[corpus.SourceKind]corpus.DocumentSource, len(sources))
	for _, src := range sources {
		byKind[src.Kind()] = src
	}
	return &Pool{
		sources:   byKind,
		limiter:   limiter,
		ledger:    ledger,
		artifacts: artifacts,
		hasher:    hasher,
		clock:     clock,
		backoff:   NewExponentialBackoff(),
		cfg:       cfg,
		logger:    logger,
	}
}

// Run fetches every non-terminal (entry, format) pair and blocks until all
// workers drain. Transient failures are retried in place and never surfaced;
// the returned error is reserved for fatal conditions (disk failures,
// canceled context) after which durable state is still safe to resume from.
func (p *Pool) Run(ctx context.Context, entries []corpus.CatalogEntry) (Result, error) {
	var res Result
	tasks := make([]task, 0, len(entries))
	for _, entry := range entries {
		if len(entry.ExpectedFormats) == 0 {
			p.logger.Warn("entry advertises no formats, skipping",
				zap.String("entry_id", entry.ID))
			res.Skipped++
			continue
		}
		if _, ok := p.sources[entry.Source]; !ok {
			p.logger.Error("no fetcher registered for source, skipping entry",
				zap.String("entry_id", entry.ID),
				zap.String("source", string(entry.Source)))
			res.Skipped++
			continue
		}
		for _, format := range entry.ExpectedFormats {
			// Corrupt pairs belong to the verification pass, which
			// requeues them to pending at most once.
			if rec, ok := p.ledger.Get(entry.ID, format); ok &&
				(rec.Status.Terminal() || rec.Status == corpus.StatusCorrupt) {
				res.Skipped++
				continue
			}
			tasks = append(tasks, task{entry: entry, format: format})
		}
	}

	p.logger.Info("fetch pool starting",
		zap.Int("tasks", len(tasks)),
		zap.Int("workers", p.cfg.Workers),
		zap.Int("skipped", res.Skipped),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	work := make(chan task)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		fatalErr error
	)
	setFatal := func(err error) {
		mu.Lock()
		if fatalErr == nil {
			fatalErr = err
		}
		mu.Unlock()
		cancel()
	}

	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range work {
				outcome, err := p.process(ctx, t)
				if err != nil {
					setFatal(err)
					return
				}
				mu.Lock()
				res.Succeeded += outcome.Succeeded
				res.Exhausted += outcome.Exhausted
				res.Corrupt += outcome.Corrupt
				res.BytesFetched += outcome.BytesFetched
				mu.Unlock()
			}
		}()
	}

dispatch:
	for _, t := range tasks {
		select {
		case work <- t:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(work)
	wg.Wait()

	if fatalErr != nil {
		return res, fatalErr
	}
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("fetch run interrupted: %w", err)
	}
	p.logger.Info("fetch pool finished",
		zap.Int("succeeded", res.Succeeded),
		zap.Int("exhausted", res.Exhausted),
		zap.Int("corrupt", res.Corrupt),
		zap.Int64("bytes", res.BytesFetched),
	)
	return res, nil
}

// process drives one (entry, format) pair to a terminal or requeued state.
func (p *Pool) process(ctx context.Context, t task) (Result, error) {
	var res Result
	source := p.sources[t.entry.Source]
	rec, _ := p.ledger.Get(t.entry.ID, t.format)
	rec.EntryID = t.entry.ID
	rec.Format = t.format

	for {
		if err := ctx.Err(); err != nil {
			// Leave the pair pending; resume picks it up with its
			// attempt history intact.
			rec.Status = corpus.StatusPending
			if recErr := p.ledger.Record(rec); recErr != nil {
				return res, recErr
			}
			return res, nil
		}

		rec.Status = corpus.StatusInProgress
		rec.LastAttemptAt = p.clock.Now()
		if err := p.ledger.Record(rec); err != nil {
			return res, err
		}

		if err := p.limiter.Acquire(ctx, t.entry.Source); err != nil {
			rec.Status = corpus.StatusPending
			if recErr := p.ledger.Record(rec); recErr != nil {
				return res, recErr
			}
			return res, nil
		}

		metrics.IncActiveWorkers()
		payload, fetchErr := p.fetchOnce(ctx, source, t)
		metrics.DecActiveWorkers()

		if fetchErr == nil {
			if sanityErr := SanityCheck(t.format, payload); sanityErr != nil {
				metrics.ObserveFetchAttempt(string(t.entry.Source), "corrupt")
				metrics.ObserveDocument(string(t.entry.Source), string(corpus.StatusCorrupt), 0)
				rec.Status = corpus.StatusCorrupt
				rec.ErrorKind = corpus.KindOf(sanityErr)
				rec.ErrorText = sanityErr.Error()
				if err := p.ledger.Record(rec); err != nil {
					return res, err
				}
				p.logger.Warn("payload failed sanity check",
					zap.String("entry_id", t.entry.ID),
					zap.String("format", string(t.format)),
					zap.Error(sanityErr),
				)
				res.Corrupt++
				return res, nil
			}
			return p.finalize(ctx, t, rec, payload, res)
		}

		if ctx.Err() != nil {
			// Shutdown interrupted the fetch; the attempt is not charged
			// and the pair stays pending for resume.
			rec.Status = corpus.StatusPending
			if err := p.ledger.Record(rec); err != nil {
				return res, err
			}
			return res, nil
		}

		classified := corpus.ClassifyFetchError(fetchErr)
		rec.AttemptCount++
		if classified.Kind == corpus.KindRateLimit {
			rec.RateLimitHits++
		}
		rec.ErrorKind = classified.Kind
		rec.ErrorText = classified.Err.Error()
		rec.Status = corpus.StatusFailed
		if err := p.ledger.Record(rec); err != nil {
			return res, err
		}
		metrics.ObserveFetchAttempt(string(t.entry.Source), string(classified.Kind))

		retryable := classified.Kind.Retryable() &&
			rec.EffectiveAttempts() < p.cfg.MaxAttempts
		if !retryable {
			rec.Status = corpus.StatusExhausted
			if err := p.ledger.Record(rec); err != nil {
				return res, err
			}
			metrics.ObserveDocument(string(t.entry.Source), string(corpus.StatusExhausted), 0)
			p.logger.Warn("fetch exhausted",
				zap.String("entry_id", t.entry.ID),
				zap.String("format", string(t.format)),
				zap.String("error_kind", string(classified.Kind)),
				zap.Int("attempts", rec.AttemptCount),
			)
			res.Exhausted++
			return res, nil
		}

		rec.Status = corpus.StatusPending
		if err := p.ledger.Record(rec); err != nil {
			return res, err
		}
		delay := p.backoff.Delay(rec.AttemptCount, classified.Kind)
		p.logger.Debug("retrying after backoff",
			zap.String("entry_id", t.entry.ID),
			zap.String("format", string(t.format)),
			zap.Duration("delay", delay),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
	}
}

func (p *Pool) fetchOnce(ctx context.Context, source corpus.DocumentSource, t task) ([]byte, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()
	return source.Fetch(fetchCtx, t.entry, t.format)
}

// finalize hashes and persists a sane payload, then marks success. Disk
// failures are fatal: retrying against a broken disk only burns the attempt
// budget.
func (p *Pool) finalize(ctx context.Context, t task, rec corpus.FetchRecord, payload []byte, res Result) (Result, error) {
	hash, err := p.hasher.Hash(payload)
	if err != nil {
		return res, fmt.Errorf("hash payload for %s: %w", rec.Key(), err)
	}
	path, err := p.artifacts.Put(ctx, local.ArtifactPath(t.entry.ID, t.format), payload)
	if err != nil {
		return res, fmt.Errorf("store artifact for %s: %w", rec.Key(), err)
	}

	rec.Status = corpus.StatusSuccess
	rec.AttemptCount++
	rec.LastAttemptAt = p.clock.Now()
	rec.ContentHash = hash
	rec.ArtifactPath = path
	rec.ErrorKind = ""
	rec.ErrorText = ""
	if err := p.ledger.Record(rec); err != nil {
		return res, err
	}

	metrics.ObserveFetchAttempt(string(t.entry.Source), "success")
	metrics.ObserveDocument(string(t.entry.Source), string(corpus.StatusSuccess), len(payload))
	p.logger.Debug("fetched document",
		zap.String("entry_id", t.entry.ID),
		zap.String("format", string(t.format)),
		zap.Int("bytes", len(payload)),
	)
	res.Succeeded++
	res.BytesFetched += int64(len(payload))
	return res, nil
}
