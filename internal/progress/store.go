// Package progress implements the durable fetch ledger that makes runs
// resumable. The store is the single source of truth for per-(entry, format)
// status; every snapshot is derivable solely from the current records.
package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/legal-llama/corpus-pipeline/internal/corpus"
)

// SnapshotFile is the on-disk shape of progress.json.
type SnapshotFile struct {
	SavedAt time.Time            `json:"saved_at"`
	Records []corpus.FetchRecord `json:"records"`
}

// Config controls flush cadence.
type Config struct {
	// Path is the snapshot file location (progress.json).
	Path string
	// FlushEvery flushes after this many mutations (default 50).
	FlushEvery int
	// FlushInterval flushes on this wall-clock cadence (default 30s).
	FlushInterval time.Duration
}

const (
	defaultFlushEvery    = 50
	defaultFlushInterval = 30 * time.Second
)

// ErrInvalidTransition is returned when a mutation would violate the status
// machine, including any overwrite of a success record.
var ErrInvalidTransition = errors.New("invalid fetch status transition")

// Store serializes all FetchRecord mutations behind a single lock and
// persists snapshots atomically (write-temp-then-rename).
type Store struct {
	cfg    Config
	clock  corpus.Clock
	logger *zap.Logger

	mu      sync.Mutex
	records map[string]corpus.FetchRecord
	dirty   int

	stopCh    chan struct{}
	doneCh    chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

// New constructs a Store. Call Load before scheduling work, and Start to
// begin periodic flushing.
func New(cfg Config, clock corpus.Clock, logger *zap.Logger) *Store {
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = defaultFlushEvery
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		cfg:     cfg,
		clock:   clock,
		logger:  logger,
		records: make(map[string]corpus.FetchRecord),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Load reconstructs the snapshot from disk. A missing file is an empty
// ledger, not an error. Records left in_progress by a crash are demoted to
// pending: in_progress means "not confirmed complete" and is never trusted
// across restarts.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.cfg.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return corpus.NewError(corpus.KindDisk, fmt.Errorf("read snapshot: %w", err))
	}
	var file SnapshotFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("decode snapshot %s: %w", s.cfg.Path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	demoted := 0
	for _, rec := range file.Records {
		// A snapshot can capture a pair mid-retry, between the failed
		// write and its requeue. Neither in_progress nor failed is
		// confirmed complete, so both resume as pending.
		if rec.Status == corpus.StatusInProgress || rec.Status == corpus.StatusFailed {
			rec.Status = corpus.StatusPending
			demoted++
		}
		s.records[rec.Key()] = rec
	}
	s.logger.Info("progress snapshot loaded",
		zap.Int("records", len(file.Records)),
		zap.Int("requeued", demoted),
	)
	return nil
}

// Start launches the periodic flusher.
func (s *Store) Start() {
	s.startOnce.Do(func() {
		go s.run()
	})
}

func (s *Store) run() {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.flushIfDirty(); err != nil {
				s.logger.Warn("periodic progress flush failed", zap.Error(err))
			}
		case <-s.stopCh:
			return
		}
	}
}

// Record is the single mutation entry point. It enforces the status machine
// and flushes once enough mutations accumulate.
func (s *Store) Record(rec corpus.FetchRecord) error {
	s.mu.Lock()
	prev, exists := s.records[rec.Key()]
	if exists && prev.Status != rec.Status && !prev.CanTransition(rec.Status) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s for %s", ErrInvalidTransition, prev.Status, rec.Status, rec.Key())
	}
	s.records[rec.Key()] = rec
	s.dirty++
	shouldFlush := s.dirty >= s.cfg.FlushEvery
	s.mu.Unlock()

	if shouldFlush {
		if err := s.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the record for an (entry, format) pair. A pair with no record
// is implicitly pending.
func (s *Store) Get(entryID string, format corpus.Format) (corpus.FetchRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[corpus.RecordKey(entryID, format)]
	return rec, ok
}

// All returns a copy of every record, ordered by key for stable output.
func (s *Store) All() []corpus.FetchRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]corpus.FetchRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Counts aggregates the ledger by status.
func (s *Store) Counts() corpus.ProgressCounts {
	s.mu.Lock()
	defer s.mu.Unlock()
	var c corpus.ProgressCounts
	for _, rec := range s.records {
		switch rec.Status {
		case corpus.StatusPending:
			c.Pending++
		case corpus.StatusInProgress:
			c.InProgress++
		case corpus.StatusSuccess:
			c.Success++
		case corpus.StatusFailed:
			c.Failed++
		case corpus.StatusCorrupt:
			c.Corrupt++
		case corpus.StatusExhausted:
			c.Exhausted++
		}
	}
	return c
}

// Exhausted lists terminally failed pairs for the final report.
func (s *Store) Exhausted() []corpus.ExhaustedEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []corpus.ExhaustedEntry
	for _, rec := range s.records {
		if rec.Status == corpus.StatusExhausted {
			out = append(out, corpus.ExhaustedEntry{
				EntryID:   rec.EntryID,
				Format:    rec.Format,
				ErrorKind: rec.ErrorKind,
				ErrorText: rec.ErrorText,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EntryID != out[j].EntryID {
			return out[i].EntryID < out[j].EntryID
		}
		return out[i].Format < out[j].Format
	})
	return out
}

// Flush persists the snapshot atomically regardless of the dirty counter.
func (s *Store) Flush() error {
	s.mu.Lock()
	file := SnapshotFile{
		SavedAt: s.clock.Now(),
		Records: make([]corpus.FetchRecord, 0, len(s.records)),
	}
	for _, rec := range s.records {
		file.Records = append(file.Records, rec)
	}
	s.dirty = 0
	s.mu.Unlock()

	sort.Slice(file.Records, func(i, j int) bool {
		return file.Records[i].Key() < file.Records[j].Key()
	})

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	tmp := s.cfg.Path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.cfg.Path), 0o750); err != nil {
		return corpus.NewError(corpus.KindDisk, fmt.Errorf("create snapshot dir: %w", err))
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return corpus.NewError(corpus.KindDisk, fmt.Errorf("write snapshot temp: %w", err))
	}
	if err := os.Rename(tmp, s.cfg.Path); err != nil {
		return corpus.NewError(corpus.KindDisk, fmt.Errorf("rename snapshot: %w", err))
	}
	return nil
}

func (s *Store) flushIfDirty() error {
	s.mu.Lock()
	dirty := s.dirty
	s.mu.Unlock()
	if dirty == 0 {
		return nil
	}
	return s.Flush()
}

// Close stops the flusher and writes a final snapshot.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopCh)
		select {
		case <-s.doneCh:
		case <-time.After(5 * time.Second):
			s.logger.Warn("progress flusher did not stop in time")
		}
		err = s.Flush()
	})
	return err
}
