package parquet

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/legal-llama/corpus-pipeline/internal/corpus"
)

func TestWriteRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sink, err := NewSink(dir, nil)
	require.NoError(t, err)

	records := []corpus.TrainingRecord{
		{
			RecordID: "aaaa1111bbbb2222",
			Variant:  corpus.VariantCompletion,
			EntryID:  "ukpga-2010-15",
			Source:   "legislation",
			Sequence: 0,
			Text:     "An Act to make provision about discrimination.",
		},
		{
			RecordID: "cccc3333dddd4444",
			Variant:  corpus.VariantCompletion,
			EntryID:  "ukpga-2010-15",
			Source:   "legislation",
			Sequence: 1,
			Text:     "Further provisions follow.",
		},
	}
	require.NoError(t, sink.Write(context.Background(), "train", corpus.VariantCompletion, records))

	path := sink.Path("train", corpus.VariantCompletion)
	require.Equal(t, filepath.Join(dir, "final", "train_completion.parquet"), path)

	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, nil, 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	require.EqualValues(t, 2, pr.GetNumRows())
}

func TestWriteEmptyBatch(t *testing.T) {
	t.Parallel()

	sink, err := NewSink(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, sink.Write(context.Background(), "validation", corpus.VariantQA, nil))

	info, err := os.Stat(sink.Path("validation", corpus.VariantQA))
	require.NoError(t, err)
	require.Positive(t, info.Size())
}

func TestWriteReplacesPreviousFile(t *testing.T) {
	t.Parallel()

	sink, err := NewSink(t.TempDir(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	many := make([]corpus.TrainingRecord, 50)
	for i := range many {
		many[i] = corpus.TrainingRecord{
			RecordID: "id", Variant: corpus.VariantQA, EntryID: "e",
			Sequence: i, Question: "q?", Answer: "a",
		}
	}
	require.NoError(t, sink.Write(ctx, "train", corpus.VariantQA, many))
	require.NoError(t, sink.Write(ctx, "train", corpus.VariantQA, many[:1]))

	fr, err := local.NewLocalFileReader(sink.Path("train", corpus.VariantQA))
	require.NoError(t, err)
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, nil, 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	require.EqualValues(t, 1, pr.GetNumRows())
}

func TestNewSinkRequiresBaseDir(t *testing.T) {
	t.Parallel()

	_, err := NewSink("", nil)
	require.Error(t, err)
}
