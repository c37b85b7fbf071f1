package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/legal-llama/corpus-pipeline/internal/config"
	"github.com/legal-llama/corpus-pipeline/internal/corpus"
	"github.com/legal-llama/corpus-pipeline/internal/sink/parquet"
)

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Pipeline.OutputDir = filepath.Join(t.TempDir(), "out")
	return cfg
}

func TestNewWiresAllEnabledSources(t *testing.T) {
	t.Parallel()

	a, err := New(baseConfig(t), nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, a.Close()) }()

	require.Len(t, a.Sources, 3)
	require.Len(t, a.Discoverers, 3)

	kinds := map[corpus.SourceKind]bool{}
	for _, src := range a.Sources {
		kinds[src.Kind()] = true
	}
	require.True(t, kinds[corpus.SourceGovUK])
	require.True(t, kinds[corpus.SourceLegislation])
	require.True(t, kinds[corpus.SourceBailii])
}

func TestNewSkipsDisabledSources(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	cfg.Sources.GovUK.Enabled = false
	cfg.Sources.Bailii.Enabled = false

	a, err := New(cfg, nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, a.Close()) }()

	require.Len(t, a.Sources, 1)
	require.Equal(t, corpus.SourceLegislation, a.Sources[0].Kind())
}

func TestBuildSinkDefaultsToParquet(t *testing.T) {
	t.Parallel()

	a, err := New(baseConfig(t), nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, a.Close()) }()

	sink, err := a.BuildSink(context.Background())
	require.NoError(t, err)
	defer func() { require.NoError(t, sink.Close(context.Background())) }()

	require.IsType(t, &parquet.Sink{}, sink)
}

func TestProgressSurvivesReopen(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)

	a, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, a.Progress.Record(corpus.FetchRecord{
		EntryID: "ukpga-2010-15",
		Format:  corpus.FormatXML,
		Status:  corpus.StatusPending,
	}))
	require.NoError(t, a.Close())

	reopened, err := New(cfg, nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, reopened.Close()) }()

	_, ok := reopened.Progress.Get("ukpga-2010-15", corpus.FormatXML)
	require.True(t, ok)
}
