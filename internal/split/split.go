// Package split deterministically partitions assembled records into named
// splits and drives them through the dataset sink. Assignment is a pure
// function of the record id, so reruns on unchanged input reproduce identical
// splits with no seed to manage.
package split

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/legal-llama/corpus-pipeline/internal/corpus"
	"github.com/legal-llama/corpus-pipeline/internal/hash/sha256"
)

// Split names.
const (
	SplitTrain      = "train"
	SplitValidation = "validation"
)

// buckets is the resolution of the hash partition. A train fraction of 0.9
// maps to 9,000 of 10,000 buckets.
const buckets = 10000

// Config controls the partition.
type Config struct {
	// TrainFraction is the share of records assigned to train
	// (default 0.9).
	TrainFraction float64
}

// Stats describes one (split, variant) slice of the output.
type Stats struct {
	Count     int            `json:"count"`
	MinLength int            `json:"min_length"`
	MaxLength int            `json:"max_length"`
	AvgLength float64        `json:"avg_length"`
	BySource  map[string]int `json:"by_source"`
}

// Report is the final/validation_report.json payload.
type Report struct {
	TrainFraction float64                     `json:"train_fraction"`
	Splits        map[string]map[string]Stats `json:"splits"`
	Totals        map[string]int              `json:"totals"`
}

// Writer assigns records to splits and serializes them.
type Writer struct {
	sink   corpus.DatasetSink
	cfg    Config
	logger *zap.Logger
}

// NewWriter constructs a Writer.
func NewWriter(sink corpus.DatasetSink, cfg Config, logger *zap.Logger) (*Writer, error) {
	if cfg.TrainFraction == 0 {
		cfg.TrainFraction = 0.9
	}
	if cfg.TrainFraction <= 0 || cfg.TrainFraction >= 1 {
		return nil, fmt.Errorf("train fraction %v must be inside (0, 1)", cfg.TrainFraction)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{sink: sink, cfg: cfg, logger: logger}, nil
}

// Assign returns the split for a record id. Every id lands in exactly one
// split regardless of arrival order.
func Assign(recordID string, trainFraction float64) string {
	boundary := uint64(trainFraction * buckets)
	if sha256.Bucket(recordID, buckets) < boundary {
		return SplitTrain
	}
	return SplitValidation
}

// Write partitions every variant's records and hands each (split, variant)
// batch to the sink. Returns the report for final/validation_report.json.
func (w *Writer) Write(ctx context.Context, records map[corpus.Variant][]corpus.TrainingRecord) (Report, error) {
	report := Report{
		TrainFraction: w.cfg.TrainFraction,
		Splits: map[string]map[string]Stats{
			SplitTrain:      {},
			SplitValidation: {},
		},
		Totals: make(map[string]int),
	}

	variants := make([]corpus.Variant, 0, len(records))
	for variant := range records {
		variants = append(variants, variant)
	}
	sort.Slice(variants, func(i, j int) bool { return variants[i] < variants[j] })

	for _, variant := range variants {
		partitioned := map[string][]corpus.TrainingRecord{
			SplitTrain:      nil,
			SplitValidation: nil,
		}
		for _, rec := range records[variant] {
			name := Assign(rec.RecordID, w.cfg.TrainFraction)
			partitioned[name] = append(partitioned[name], rec)
		}

		for _, name := range []string{SplitTrain, SplitValidation} {
			batch := partitioned[name]
			if err := w.sink.Write(ctx, name, variant, batch); err != nil {
				return report, fmt.Errorf("write %s %s: %w", name, variant, err)
			}
			report.Splits[name][string(variant)] = computeStats(batch)
			w.logger.Info("split written",
				zap.String("split", name),
				zap.String("variant", string(variant)),
				zap.Int("records", len(batch)),
			)
		}
		report.Totals[string(variant)] = len(records[variant])
	}
	return report, nil
}

func computeStats(records []corpus.TrainingRecord) Stats {
	stats := Stats{BySource: make(map[string]int)}
	stats.Count = len(records)
	total := 0
	for i, rec := range records {
		length := len([]rune(rec.Body()))
		if i == 0 || length < stats.MinLength {
			stats.MinLength = length
		}
		if length > stats.MaxLength {
			stats.MaxLength = length
		}
		total += length
		stats.BySource[rec.Source]++
	}
	if stats.Count > 0 {
		stats.AvgLength = float64(total) / float64(stats.Count)
	}
	return stats
}

// WriteReport persists the report as final/validation_report.json in baseDir.
func WriteReport(baseDir string, report Report) error {
	dir := filepath.Join(baseDir, "final")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return corpus.NewError(corpus.KindDisk, err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(dir, "validation_report.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return corpus.NewError(corpus.KindDisk, err)
	}
	return nil
}
