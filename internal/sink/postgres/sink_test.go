package postgres

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/legal-llama/corpus-pipeline/internal/corpus"
)

func TestWriteUpsertsRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sink, err := NewSinkWithPool(mock, "training_records", nil)
	require.NoError(t, err)

	rec := corpus.TrainingRecord{
		RecordID: "aaaa1111bbbb2222",
		Variant:  corpus.VariantQA,
		EntryID:  "ukpga-2010-15",
		Source:   "legislation",
		Sequence: 2,
		Question: "What year was this document published?",
		Answer:   "2010",
		Context:  "An Act to make provision...",
	}

	mock.ExpectExec("INSERT INTO training_records").
		WithArgs(
			rec.RecordID,
			"train",
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
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = sink.Write(context.Background(), "train", corpus.VariantQA, []corpus.TrainingRecord{rec})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteRejectsMissingRecordID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sink, err := NewSinkWithPool(mock, "training_records", nil)
	require.NoError(t, err)

	err = sink.Write(context.Background(), "train", corpus.VariantQA,
		[]corpus.TrainingRecord{{Question: "q?"}})
	require.Error(t, err)
}

func TestNewSinkWithPoolValidatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewSinkWithPool(mock, "records; drop table users", nil)
	require.Error(t, err)
}
