// Package parquet serializes dataset splits as snappy-compressed parquet
// files under final/.
package parquet

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
	"go.uber.org/zap"

	"github.com/legal-llama/corpus-pipeline/internal/corpus"
)

// recordSchema is the JSON schema for TrainingRecord rows. All text columns
// are optional: each variant populates only its own fields.
var recordSchema = buildSchema(
	"name=record_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=REQUIRED",
	"name=variant, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=REQUIRED",
	"name=entry_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=REQUIRED",
	"name=source, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL",
	"name=sequence, type=INT64, repetitiontype=REQUIRED",
	"name=instruction, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL",
	"name=input, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL",
	"name=output, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL",
	"name=text, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL",
	"name=question, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL",
	"name=answer, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL",
	"name=context, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL",
)

const parallelWriters = 4

// Sink writes one parquet file per (split, variant) under baseDir/final.
type Sink struct {
	baseDir string
	logger  *zap.Logger
}

// NewSink constructs the parquet sink.
func NewSink(baseDir string, logger *zap.Logger) (*Sink, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Join(baseDir, "final"), 0o750); err != nil {
		return nil, corpus.NewError(corpus.KindDisk, err)
	}
	return &Sink{baseDir: baseDir, logger: logger}, nil
}

// Path returns the output file for a (split, variant) pair.
func (s *Sink) Path(split string, variant corpus.Variant) string {
	return filepath.Join(s.baseDir, "final", fmt.Sprintf("%s_%s.parquet", split, variant))
}

// Write serializes one batch. The file is rewritten whole; partial output
// from an interrupted run is replaced on the next one.
func (s *Sink) Write(ctx context.Context, split string, variant corpus.Variant, records []corpus.TrainingRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := s.Path(split, variant)
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return corpus.NewError(corpus.KindDisk, fmt.Errorf("open %s: %w", path, err))
	}

	pw, err := writer.NewJSONWriter(recordSchema, fw, parallelWriters)
	if err != nil {
		_ = fw.Close()
		return fmt.Errorf("parquet writer for %s: %w", path, err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, rec := range records {
		row, err := json.Marshal(recordRow(rec))
		if err != nil {
			_ = pw.WriteStop()
			_ = fw.Close()
			return fmt.Errorf("encode record %s: %w", rec.RecordID, err)
		}
		if err := pw.Write(string(row)); err != nil {
			_ = pw.WriteStop()
			_ = fw.Close()
			return corpus.NewError(corpus.KindDisk, fmt.Errorf("write record %s: %w", rec.RecordID, err))
		}
	}
	if err := pw.WriteStop(); err != nil {
		_ = fw.Close()
		return corpus.NewError(corpus.KindDisk, fmt.Errorf("finish %s: %w", path, err))
	}
	if err := fw.Close(); err != nil {
		return corpus.NewError(corpus.KindDisk, fmt.Errorf("close %s: %w", path, err))
	}

	s.logger.Info("parquet file written",
		zap.String("path", path),
		zap.Int("records", len(records)),
	)
	return nil
}

// Close satisfies corpus.DatasetSink; files are closed per batch.
func (s *Sink) Close(context.Context) error { return nil }

func recordRow(rec corpus.TrainingRecord) map[string]any {
	return map[string]any{
		"record_id":   rec.RecordID,
		"variant":     string(rec.Variant),
		"entry_id":    rec.EntryID,
		"source":      rec.Source,
		"sequence":    rec.Sequence,
		"instruction": rec.Instruction,
		"input":       rec.Input,
		"output":      rec.Output,
		"text":        rec.Text,
		"question":    rec.Question,
		"answer":      rec.Answer,
		"context":     rec.Context,
	}
}

func buildSchema(fieldTags ...string) string {
	fields := make([]map[string]string, 0, len(fieldTags))
	for _, tag := range fieldTags {
		fields = append(fields, map[string]string{"Tag": tag})
	}
	out := map[string]any{
		"Tag":    "name=parquet_go_root, repetitiontype=REQUIRED",
		"Fields": fields,
	}
	b, _ := json.Marshal(out)
	return string(b)
}
