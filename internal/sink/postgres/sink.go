// Package postgres provides a Postgres-backed dataset sink for deployments
// that load training records into a warehouse instead of parquet files.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/legal-llama/corpus-pipeline/internal/corpus"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for record rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Sink writes training records into Postgres. Rows are keyed by
// (record_id, split); a rerun upserts rather than duplicating.
type Sink struct {
	pool   execCloser
	table  string
	logger *zap.Logger
}

// NewSink creates a Postgres-backed sink using the provided config.
func NewSink(ctx context.Context, cfg Config, logger *zap.Logger) (*Sink, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "training_records"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{pool: pool, table: table, logger: logger}, nil
}

// NewSinkWithPool constructs a sink from an existing pool (primarily for
// testing).
func NewSinkWithPool(pool execCloser, table string, logger *zap.Logger) (*Sink, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "training_records"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{pool: pool, table: table, logger: logger}, nil
}

// Write upserts one batch of records for a (split, variant).
func (s *Sink) Write(ctx context.Context, split string, variant corpus.Variant, records []corpus.TrainingRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("postgres sink is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	record_id,
	split,
	variant,
	entry_id,
	source,
	sequence,
	instruction,
	input,
	output,
	text,
	question,
	answer,
	context
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
) ON CONFLICT (record_id, split) DO UPDATE SET
	variant = EXCLUDED.variant,
	entry_id = EXCLUDED.entry_id,
	source = EXCLUDED.source,
	sequence = EXCLUDED.sequence,
	instruction = EXCLUDED.instruction,
	input = EXCLUDED.input,
	output = EXCLUDED.output,
	text = EXCLUDED.text,
	question = EXCLUDED.question,
	answer = EXCLUDED.answer,
	context = EXCLUDED.context`, s.table)

	for _, rec := range records {
		if rec.RecordID == "" {
			return fmt.Errorf("record id is required")
		}
		args := []any{
			rec.RecordID,
			split,
			string(rec.Variant),
			rec.EntryID,
			rec.Source,
			rec.Sequence,
			rec.Instruction,
			rec.Input,
			rec.Output,
			rec.Text,
			rec.Question,
			rec.Answer,
			rec.Context,
		}
		if _, err := s.pool.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("insert record %s: %w", rec.RecordID, err)
		}
	}
	s.logger.Info("records loaded into postgres",
		zap.String("split", split),
		zap.String("variant", string(variant)),
		zap.Int("records", len(records)),
	)
	return nil
}

// Close releases the underlying pool resources.
func (s *Sink) Close(context.Context) error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}
