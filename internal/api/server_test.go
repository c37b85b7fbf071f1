package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/legal-llama/corpus-pipeline/internal/corpus"
)

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := NewServer(&fakeProgress{}, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
}

func TestGetProgressCounts(t *testing.T) {
	t.Parallel()

	progress := &fakeProgress{
		counts: corpus.ProgressCounts{Pending: 3, Success: 7, Exhausted: 1},
	}
	srv := NewServer(progress, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/progress", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Counts corpus.ProgressCounts `json:"counts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, progress.counts, body.Counts)
}

func TestGetExhausted(t *testing.T) {
	t.Parallel()

	progress := &fakeProgress{
		exhausted: []corpus.ExhaustedEntry{
			{EntryID: "ukpga-2010-15", Format: corpus.FormatXML, ErrorKind: corpus.KindNetwork},
		},
	}
	srv := NewServer(progress, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/progress/exhausted", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Exhausted []corpus.ExhaustedEntry `json:"exhausted"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, progress.exhausted, body.Exhausted)
}

func TestGetExhaustedEmptyIsArray(t *testing.T) {
	t.Parallel()

	srv := NewServer(&fakeProgress{}, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/progress/exhausted", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"exhausted":[]`)
}

func TestNilProgressIsUnavailable(t *testing.T) {
	t.Parallel()

	srv := NewServer(nil, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/progress", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type fakeProgress struct {
	counts    corpus.ProgressCounts
	exhausted []corpus.ExhaustedEntry
}

func (f *fakeProgress) Counts() corpus.ProgressCounts      { return f.counts }
func (f *fakeProgress) Exhausted() []corpus.ExhaustedEntry { return f.exhausted }
