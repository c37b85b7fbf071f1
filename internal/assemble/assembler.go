// Package assemble turns verified raw documents into typed training records.
// Each variant is an independent, deterministic projection: record ids derive
// from (entry, variant, sequence), so reruns on unchanged input reproduce the
// exact same records.
package assemble

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/legal-llama/corpus-pipeline/internal/corpus"
	"github.com/legal-llama/corpus-pipeline/internal/hash/sha256"
	"github.com/legal-llama/corpus-pipeline/internal/metrics"
)

// Output is the result of one assembly run.
type Output struct {
	Records map[corpus.Variant][]corpus.TrainingRecord
	Stats   Stats
}

// Stats counts assembled and validation-dropped records per variant.
type Stats struct {
	Documents int                    `json:"documents"`
	Assembled map[corpus.Variant]int `json:"assembled"`
	Dropped   map[corpus.Variant]int `json:"dropped"`
}

// Assembler applies every registered transform to every document. Documents
// are processed in parallel; output order follows document order, never
// completion order.
type Assembler struct {
	transforms []Transform
	logger     *zap.Logger
}

// New constructs an Assembler.
func New(transforms []Transform, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{transforms: transforms, logger: logger}
}

// Run assembles all variants from docs. Records failing the structural check
// are dropped and counted, never silently included.
func (a *Assembler) Run(ctx context.Context, docs []Document) (Output, error) {
	out := Output{
		Records: make(map[corpus.Variant][]corpus.TrainingRecord),
		Stats: Stats{
			Documents: len(docs),
			Assembled: make(map[corpus.Variant]int),
			Dropped:   make(map[corpus.Variant]int),
		},
	}

	for _, tr := range a.transforms {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		variant := tr.Variant()
		perDoc := a.applyParallel(tr, docs)

		for i := range docs {
			seq := 0
			for _, rec := range perDoc[i] {
				rec.Variant = variant
				rec.EntryID = docs[i].EntryID
				rec.Source = string(docs[i].Source)
				rec.Sequence = seq
				rec.RecordID = sha256.RecordID(docs[i].EntryID, string(variant), seq)
				seq++

				if err := validateRecord(rec); err != nil {
					out.Stats.Dropped[variant]++
					a.logger.Debug("record dropped by validation",
						zap.String("record_id", rec.RecordID),
						zap.Error(err),
					)
					continue
				}
				out.Records[variant] = append(out.Records[variant], rec)
			}
		}
		out.Stats.Assembled[variant] = len(out.Records[variant])
		metrics.ObserveAssembled(string(variant), out.Stats.Assembled[variant])
		metrics.ObserveDropped(string(variant), out.Stats.Dropped[variant])
		a.logger.Info("variant assembled",
			zap.String("variant", string(variant)),
			zap.Int("records", out.Stats.Assembled[variant]),
			zap.Int("dropped", out.Stats.Dropped[variant]),
		)
	}
	return out, nil
}

// applyParallel fans documents out over the available cores and returns
// per-document results indexed by input position.
func (a *Assembler) applyParallel(tr Transform, docs []Document) [][]corpus.TrainingRecord {
	perDoc := make([][]corpus.TrainingRecord, len(docs))
	sem := make(chan struct{}, runtime.GOMAXPROCS(0))
	var wg sync.WaitGroup
	for i := range docs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			perDoc[i] = tr.Apply(docs[i])
		}(i)
	}
	wg.Wait()
	return perDoc
}

// validateRecord is the structural gate: a record must carry trainable text
// and full provenance.
func validateRecord(rec corpus.TrainingRecord) error {
	if strings.TrimSpace(rec.Body()) == "" {
		return corpus.Errorf(corpus.KindValidate, "record has empty body")
	}
	if rec.EntryID == "" || rec.RecordID == "" {
		return corpus.Errorf(corpus.KindValidate, "record is missing provenance")
	}
	if rec.Variant == corpus.VariantQA && strings.TrimSpace(rec.Question) == "" {
		return corpus.Errorf(corpus.KindValidate, "qa record has no question")
	}
	if rec.Variant == corpus.VariantInstruction && strings.TrimSpace(rec.Instruction) == "" {
		return corpus.Errorf(corpus.KindValidate, "instruction record has no instruction")
	}
	return nil
}

// WriteProcessed persists one variant's records as JSON lines under
// processed/<variant>/records.jsonl.
func WriteProcessed(baseDir string, variant corpus.Variant, records []corpus.TrainingRecord) error {
	dir := filepath.Join(baseDir, "processed", string(variant))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return corpus.NewError(corpus.KindDisk, err)
	}
	f, err := os.Create(filepath.Join(dir, "records.jsonl"))
	if err != nil {
		return corpus.NewError(corpus.KindDisk, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return corpus.NewError(corpus.KindDisk, err)
		}
	}
	return nil
}
