package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/legal-llama/corpus-pipeline/internal/corpus"
	"github.com/legal-llama/corpus-pipeline/internal/hash/sha256"
	"github.com/legal-llama/corpus-pipeline/internal/progress"
)

func TestRunIntactArtifactsUntouched(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t)
	artifacts := newMemArtifacts()
	payload := []byte(`{"title": "VAT Notice 700"}`)
	seedSuccess(t, ledger, artifacts, "vat-700", corpus.FormatJSON, payload)

	pass := New(ledger, artifacts, sha256.New(), fakeClock{}, nil)
	report, err := pass.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, report.Checked)
	require.Equal(t, 1, report.Intact)
	require.Zero(t, report.Requeued)
	require.Zero(t, report.Exhausted)

	rec, _ := ledger.Get("vat-700", corpus.FormatJSON)
	require.Equal(t, corpus.StatusSuccess, rec.Status)
}

func TestRunMissingArtifactRequeues(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t)
	artifacts := newMemArtifacts()
	seedSuccess(t, ledger, artifacts, "gone", corpus.FormatXML, []byte("<a/>"))
	delete(artifacts.blobs, "raw/xml/gone.xml")

	pass := New(ledger, artifacts, sha256.New(), fakeClock{}, nil)
	report, err := pass.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, report.Requeued)
	require.Equal(t, []string{"gone/xml"}, report.RequeuedIDs)

	rec, _ := ledger.Get("gone", corpus.FormatXML)
	require.Equal(t, corpus.StatusPending, rec.Status)
	require.Equal(t, 1, rec.CorruptRequeues)
	require.Empty(t, rec.ContentHash)
}

func TestRunHashMismatchRequeues(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t)
	artifacts := newMemArtifacts()
	seedSuccess(t, ledger, artifacts, "tampered", corpus.FormatText, []byte("original text"))
	artifacts.blobs["raw/text/tampered.txt"] = []byte("silently truncated")

	pass := New(ledger, artifacts, sha256.New(), fakeClock{}, nil)
	report, err := pass.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, report.Requeued)
	rec, _ := ledger.Get("tampered", corpus.FormatText)
	require.Equal(t, corpus.StatusPending, rec.Status)
}

func TestRunRecurringCorruptionExhausts(t *testing.T) {
	t.Parallel()

	// The pair already spent its requeue on a previous cycle.
	ledger := newTestLedger(t)
	require.NoError(t, ledger.Record(corpus.FetchRecord{
		EntryID: "flaky", Format: corpus.FormatHTML, Status: corpus.StatusInProgress,
	}))
	require.NoError(t, ledger.Record(corpus.FetchRecord{
		EntryID: "flaky", Format: corpus.FormatHTML,
		Status: corpus.StatusCorrupt, CorruptRequeues: 1,
		ErrorKind: corpus.KindParse, ErrorText: "payload is not valid json",
	}))

	pass := New(ledger, newMemArtifacts(), sha256.New(), fakeClock{}, nil)
	report, err := pass.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, report.Exhausted)
	require.Zero(t, report.Requeued)
	rec, _ := ledger.Get("flaky", corpus.FormatHTML)
	require.Equal(t, corpus.StatusExhausted, rec.Status)
}

func TestRunTransientStorageErrorIsInconclusive(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t)
	artifacts := newMemArtifacts()
	seedSuccess(t, ledger, artifacts, "unreadable", corpus.FormatJSON, []byte(`{}`))
	artifacts.failWith = fmt.Errorf("read artifact: input/output error")

	pass := New(ledger, artifacts, sha256.New(), fakeClock{}, nil)
	report, err := pass.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, report.Inconclusive)
	require.Zero(t, report.Requeued)

	// Inability to check never downgrades the record.
	rec, _ := ledger.Get("unreadable", corpus.FormatJSON)
	require.Equal(t, corpus.StatusSuccess, rec.Status)
}

func TestRunIsIdempotentOnCleanLedger(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t)
	artifacts := newMemArtifacts()
	for i := 0; i < 5; i++ {
		seedSuccess(t, ledger, artifacts,
			fmt.Sprintf("doc-%d", i), corpus.FormatText,
			[]byte(fmt.Sprintf("contents %d", i)))
	}

	pass := New(ledger, artifacts, sha256.New(), fakeClock{}, nil)
	first, err := pass.Run(context.Background())
	require.NoError(t, err)
	second, err := pass.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, first.Intact, second.Intact)
	require.Equal(t, 5, second.Intact)
	require.Zero(t, second.Requeued)
}

func TestWriteReport(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	report := corpus.VerificationReport{
		RunID:   "run-1",
		Checked: 3,
		Intact:  2,
	}
	require.NoError(t, WriteReport(dir, report))

	data, err := os.ReadFile(filepath.Join(dir, "verification_report.json"))
	require.NoError(t, err)
	var got corpus.VerificationReport
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, report.RunID, got.RunID)
	require.Equal(t, 3, got.Checked)
}

func seedSuccess(t *testing.T, ledger *progress.Store, artifacts *memArtifacts, entryID string, format corpus.Format, payload []byte) {
	t.Helper()
	path := filepath.Join("raw", string(format), entryID+format.Ext())
	_, err := artifacts.Put(context.Background(), path, payload)
	require.NoError(t, err)
	hash, err := sha256.New().Hash(payload)
	require.NoError(t, err)

	require.NoError(t, ledger.Record(corpus.FetchRecord{
		EntryID: entryID, Format: format, Status: corpus.StatusInProgress,
	}))
	require.NoError(t, ledger.Record(corpus.FetchRecord{
		EntryID: entryID, Format: format, Status: corpus.StatusSuccess,
		ContentHash: hash, ArtifactPath: path, AttemptCount: 1,
	}))
}

func newTestLedger(t *testing.T) *progress.Store {
	t.Helper()
	return progress.New(progress.Config{
		Path:       filepath.Join(t.TempDir(), "progress.json"),
		FlushEvery: 10000,
	}, fakeClock{}, nil)
}

type memArtifacts struct {
	blobs    map[string][]byte
	failWith error
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{blobs: make(map[string][]byte)}
}

func (m *memArtifacts) Put(_ context.Context, path string, data []byte) (string, error) {
	m.blobs[path] = append([]byte(nil), data...)
	return path, nil
}

func (m *memArtifacts) Get(_ context.Context, path string) ([]byte, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	data, ok := m.blobs[path]
	if !ok {
		return nil, fmt.Errorf("artifact %s: %w", path, fs.ErrNotExist)
	}
	return data, nil
}

func (m *memArtifacts) Stat(_ context.Context, path string) (int64, error) {
	data, ok := m.blobs[path]
	if !ok {
		return 0, fmt.Errorf("artifact %s: %w", path, fs.ErrNotExist)
	}
	return int64(len(data)), nil
}

type fakeClock struct{}

func (fakeClock) Now() time.Time {
	return time.Date(2026, 2, 2, 8, 0, 0, 0, time.UTC)
}
