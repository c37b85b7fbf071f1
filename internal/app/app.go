// Package app wires configuration into the concrete services the CLI
// commands share: sources, stores, limiter and sinks.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/legal-llama/corpus-pipeline/internal/catalog"
	"github.com/legal-llama/corpus-pipeline/internal/clock/system"
	"github.com/legal-llama/corpus-pipeline/internal/config"
	"github.com/legal-llama/corpus-pipeline/internal/corpus"
	"github.com/legal-llama/corpus-pipeline/internal/hash/sha256"
	"github.com/legal-llama/corpus-pipeline/internal/metrics"
	"github.com/legal-llama/corpus-pipeline/internal/progress"
	"github.com/legal-llama/corpus-pipeline/internal/ratelimit"
	"github.com/legal-llama/corpus-pipeline/internal/sink/parquet"
	"github.com/legal-llama/corpus-pipeline/internal/sink/postgres"
	"github.com/legal-llama/corpus-pipeline/internal/source/bailii"
	"github.com/legal-llama/corpus-pipeline/internal/source/govuk"
	"github.com/legal-llama/corpus-pipeline/internal/source/legislation"
	"github.com/legal-llama/corpus-pipeline/internal/storage/local"
)

// App holds the long-lived services shared by every pipeline phase.
type App struct {
	Cfg         config.Config
	Logger      *zap.Logger
	Clock       *system.Clock
	Hasher      *sha256.Hasher
	Progress    *progress.Store
	Catalog     *catalog.Store
	Artifacts   *local.Store
	Limiter     *ratelimit.Limiter
	Sources     []corpus.DocumentSource
	Discoverers []corpus.Discoverer
}

// New builds an App from config, loading any existing progress snapshot so
// every phase resumes where the last run stopped.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()

	outDir := cfg.Pipeline.OutputDir
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	artifacts, err := local.New(local.Config{BaseDir: outDir})
	if err != nil {
		return nil, fmt.Errorf("init artifact store: %w", err)
	}

	clock := system.New()
	store := progress.New(progress.Config{
		Path: filepath.Join(outDir, "progress.json"),
	}, clock, logger.Named("progress"))
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("load progress snapshot: %w", err)
	}
	store.Start()

	perSource := make(map[corpus.SourceKind]float64, len(cfg.RateLimit.PerSource))
	for name, rps := range cfg.RateLimit.PerSource {
		perSource[corpus.SourceKind(name)] = rps
	}
	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.RateLimit.DefaultRPS,
		DefaultBurst: cfg.RateLimit.Burst,
		PerSourceRPS: perSource,
	})

	a := &App{
		Cfg:       cfg,
		Logger:    logger,
		Clock:     clock,
		Hasher:    sha256.New(),
		Progress:  store,
		Catalog:   catalog.NewStore(outDir, logger.Named("catalog")),
		Artifacts: artifacts,
		Limiter:   limiter,
	}
	a.buildSources()
	return a, nil
}

func (a *App) buildSources() {
	cfg := a.Cfg
	timeout := cfg.RequestTimeout()

	if cfg.Sources.GovUK.Enabled {
		src := govuk.New(govuk.Config{
			BaseURL:        cfg.Sources.GovUK.BaseURL,
			UserAgent:      cfg.Sources.UserAgent,
			Timeout:        timeout,
			SearchSections: cfg.Sources.GovUK.Sections,
			MaxPages:       cfg.Sources.GovUK.MaxPages,
		}, a.Logger.Named("govuk"))
		a.Sources = append(a.Sources, src)
		a.Discoverers = append(a.Discoverers, src)
	}
	if cfg.Sources.Legislation.Enabled {
		src := legislation.New(legislation.Config{
			BaseURL:   cfg.Sources.Legislation.BaseURL,
			UserAgent: cfg.Sources.UserAgent,
			Timeout:   timeout,
			Types:     cfg.Sources.Legislation.Types,
			StartYear: cfg.Sources.Legislation.StartYear,
			EndYear:   cfg.Sources.Legislation.EndYear,
		}, a.Logger.Named("legislation"))
		a.Sources = append(a.Sources, src)
		a.Discoverers = append(a.Discoverers, src)
	}
	if cfg.Sources.Bailii.Enabled {
		src := bailii.New(bailii.Config{
			BaseURL:   cfg.Sources.Bailii.BaseURL,
			UserAgent: cfg.Sources.UserAgent,
			Timeout:   timeout,
			Databases: cfg.Sources.Bailii.Databases,
			StartYear: cfg.Sources.Bailii.StartYear,
			EndYear:   cfg.Sources.Bailii.EndYear,
		}, a.Logger.Named("bailii"))
		a.Sources = append(a.Sources, src)
		a.Discoverers = append(a.Discoverers, src)
	}
}

// BuildSink constructs the configured dataset sink. The caller owns Close.
func (a *App) BuildSink(ctx context.Context) (corpus.DatasetSink, error) {
	switch a.Cfg.Sink.Kind {
	case "postgres":
		pg := a.Cfg.Sink.Postgres
		return postgres.NewSink(ctx, postgres.Config{
			DSN:      pg.DSN,
			Table:    pg.Table,
			MaxConns: int32(pg.MaxConns),
			MinConns: int32(pg.MinConns),
		}, a.Logger.Named("postgres"))
	default:
		return parquet.NewSink(a.Cfg.Pipeline.OutputDir, a.Logger.Named("parquet"))
	}
}

// Close flushes and stops the progress store.
func (a *App) Close() error {
	return a.Progress.Close()
}
