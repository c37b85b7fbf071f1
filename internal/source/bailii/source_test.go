package bailii

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/legal-llama/corpus-pipeline/internal/corpus"
)

func TestDiscoverYearIndexes(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ew/cases/EWCA/Civ/2021/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `<html><body>
			<a href="/ew/cases/EWCA/Civ/2021/100.html">Smith v HMRC [2021] EWCA Civ 100</a>
			<a href="/ew/cases/EWCA/Civ/2021/100.html">duplicate link</a>
			<a href="/ew/cases/EWCA/Civ/2021/215.html">Jones v Jones [2021] EWCA Civ 215</a>
			<a href="/ew/cases/EWCA/Civ/2021/">index link</a>
		</body></html>`)
	}))
	defer srv.Close()

	source := New(Config{
		BaseURL:   srv.URL,
		Databases: []string{"/ew/cases/EWCA/Civ/"},
		StartYear: 2021,
		EndYear:   2021,
	}, nil)

	entries, err := source.Discover(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "bailii-ewca-civ-2021-100", entries[0].ID)
	require.Equal(t, 2021, entries[0].Year)
	require.Equal(t, "judgment", entries[0].DocType)
	require.Equal(t, srv.URL+"/ew/cases/EWCA/Civ/2021/100.html", entries[0].Location)
	require.Equal(t, []corpus.Format{corpus.FormatHTML}, entries[0].ExpectedFormats)
}

func TestDiscoverHonorsMaxEntries(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body>
			<a href="%s/1.html">Case 1</a>
			<a href="%s/2.html">Case 2</a>
			<a href="%s/3.html">Case 3</a>
		</body></html>`,
			"/uk/cases/UKSC/2020", "/uk/cases/UKSC/2020", "/uk/cases/UKSC/2020")
	}))
	defer srv.Close()

	source := New(Config{
		BaseURL:   srv.URL,
		Databases: []string{"/uk/cases/UKSC/"},
		StartYear: 2019,
		EndYear:   2020,
	}, nil)

	entries, err := source.Discover(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestFetchJudgmentHTML(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ew/cases/EWCA/Civ/2021/100.html", r.URL.Path)
		fmt.Fprint(w, `<html><body><h1>Judgment</h1></body></html>`)
	}))
	defer srv.Close()

	source := New(Config{BaseURL: srv.URL}, nil)
	entry := corpus.CatalogEntry{
		ID:       "bailii-ewca-civ-2021-100",
		Location: srv.URL + "/ew/cases/EWCA/Civ/2021/100.html",
	}
	payload, err := source.Fetch(context.Background(), entry, corpus.FormatHTML)
	require.NoError(t, err)
	require.Contains(t, string(payload), "Judgment")
}

func TestFetchRejectsNonHTML(t *testing.T) {
	t.Parallel()

	source := New(Config{BaseURL: "http://localhost:1"}, nil)
	_, err := source.Fetch(context.Background(), corpus.CatalogEntry{}, corpus.FormatXML)
	require.Error(t, err)
	require.Equal(t, corpus.KindValidate, corpus.KindOf(err))
}

func TestDiscoverFailsWhenAllIndexesFail(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	source := New(Config{
		BaseURL:   srv.URL,
		Databases: []string{"/uk/cases/UKSC/"},
		StartYear: 2022,
		EndYear:   2023,
	}, nil)

	_, err := source.Discover(context.Background(), 0)
	require.Error(t, err)
	require.Equal(t, corpus.KindDiscovery, corpus.KindOf(err))
}
