// Package verify reconciles recorded success with artifacts actually present
// and intact on disk. It is the only component allowed to demote a success
// record, and the only one that requeues corrupt pairs.
package verify

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/legal-llama/corpus-pipeline/internal/corpus"
)

// Ledger is the slice of the progress store the pass needs.
type Ledger interface {
	Record(rec corpus.FetchRecord) error
	All() []corpus.FetchRecord
}

// maxCorruptRequeues bounds how many verification cycles may requeue the same
// pair before it is written off as exhausted.
const maxCorruptRequeues = 1

// Pass re-checks every success artifact and routes corrupt pairs back to
// pending or on to exhausted. Safe to run repeatedly: an artifact that cannot
// be re-checked (transient storage error) is counted inconclusive and left
// untouched.
type Pass struct {
	ledger    Ledger
	artifacts corpus.ArtifactStore
	hasher    corpus.Hasher
	clock     corpus.Clock
	logger    *zap.Logger
}

// New constructs a Pass.
func New(ledger Ledger, artifacts corpus.ArtifactStore, hasher corpus.Hasher, clock corpus.Clock, logger *zap.Logger) *Pass {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pass{
		ledger:    ledger,
		artifacts: artifacts,
		hasher:    hasher,
		clock:     clock,
		logger:    logger,
	}
}

// Run executes one verification cycle over the whole ledger and returns the
// report. Requeued pairs are left pending for the next fetch run.
func (p *Pass) Run(ctx context.Context) (corpus.VerificationReport, error) {
	report := corpus.VerificationReport{
		RunID:     uuid.NewString(),
		StartedAt: p.clock.Now(),
	}

	for _, rec := range p.ledger.All() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		switch rec.Status {
		case corpus.StatusSuccess:
			report.Checked++
			if err := p.checkSuccess(ctx, rec, &report); err != nil {
				return report, err
			}
		case corpus.StatusCorrupt:
			// Left behind by a fetch sanity failure or a previous
			// cycle; give it its one requeue or write it off.
			if err := p.routeCorrupt(rec, &report); err != nil {
				return report, err
			}
		}
	}

	report.FinishedAt = p.clock.Now()
	p.logger.Info("verification cycle finished",
		zap.String("run_id", report.RunID),
		zap.Int("checked", report.Checked),
		zap.Int("intact", report.Intact),
		zap.Int("requeued", report.Requeued),
		zap.Int("exhausted", report.Exhausted),
		zap.Int("inconclusive", report.Inconclusive),
	)
	return report, nil
}

func (p *Pass) checkSuccess(ctx context.Context, rec corpus.FetchRecord, report *corpus.VerificationReport) error {
	payload, err := p.artifacts.Get(ctx, rec.ArtifactPath)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		return p.demote(rec, "artifact missing", report)
	default:
		// Could not actually re-check; never downgrade on a guess.
		report.Inconclusive++
		p.logger.Warn("artifact re-check inconclusive",
			zap.String("key", rec.Key()),
			zap.Error(err),
		)
		return nil
	}

	if len(payload) == 0 {
		return p.demote(rec, "artifact is empty", report)
	}
	hash, err := p.hasher.Hash(payload)
	if err != nil {
		report.Inconclusive++
		return nil
	}
	if hash != rec.ContentHash {
		return p.demote(rec, "content hash mismatch", report)
	}
	report.Intact++
	return nil
}

// demote moves a success record to corrupt and immediately routes it onward.
func (p *Pass) demote(rec corpus.FetchRecord, reason string, report *corpus.VerificationReport) error {
	p.logger.Warn("success artifact failed verification",
		zap.String("key", rec.Key()),
		zap.String("reason", reason),
	)
	rec.Status = corpus.StatusCorrupt
	rec.ErrorKind = corpus.KindValidate
	rec.ErrorText = reason
	rec.ContentHash = ""
	if err := p.ledger.Record(rec); err != nil {
		return err
	}
	return p.routeCorrupt(rec, report)
}

// routeCorrupt requeues a corrupt pair once, then exhausts it if corruption
// recurs on a later cycle.
func (p *Pass) routeCorrupt(rec corpus.FetchRecord, report *corpus.VerificationReport) error {
	if rec.CorruptRequeues >= maxCorruptRequeues {
		rec.Status = corpus.StatusExhausted
		if err := p.ledger.Record(rec); err != nil {
			return err
		}
		report.Exhausted++
		return nil
	}
	rec.Status = corpus.StatusPending
	rec.CorruptRequeues++
	if err := p.ledger.Record(rec); err != nil {
		return err
	}
	report.Requeued++
	report.RequeuedIDs = append(report.RequeuedIDs, rec.Key())
	return nil
}

// WriteReport persists the report as verification_report.json in dir.
func WriteReport(dir string, report corpus.VerificationReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return corpus.NewError(corpus.KindDisk, err)
	}
	path := filepath.Join(dir, "verification_report.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return corpus.NewError(corpus.KindDisk, err)
	}
	return nil
}
