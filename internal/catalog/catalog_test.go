package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/legal-llama/corpus-pipeline/internal/corpus"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir(), nil)
	entries := []corpus.CatalogEntry{
		{
			ID:              "ukpga-2010-15",
			Source:          corpus.SourceLegislation,
			Title:           "Equality Act 2010",
			Location:        "https://www.legislation.gov.uk/ukpga/2010/15",
			ExpectedFormats: []corpus.Format{corpus.FormatXML, corpus.FormatHTML},
			Year:            2010,
			DocType:         "ukpga",
		},
	}
	require.NoError(t, store.Save(corpus.SourceLegislation, entries))

	got, err := store.Load(corpus.SourceLegislation)
	require.NoError(t, err)
	require.Equal(t, entries, got)
}

func TestLoadMissingIsEmpty(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir(), nil)
	got, err := store.Load(corpus.SourceBailii)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestMergeDeduplicates(t *testing.T) {
	t.Parallel()

	a := []corpus.CatalogEntry{{ID: "one"}, {ID: "two"}}
	b := []corpus.CatalogEntry{{ID: "two"}, {ID: "three"}, {ID: ""}}

	merged := Merge(a, b)
	require.Len(t, merged, 3)
	require.Equal(t, "one", merged[0].ID)
	require.Equal(t, "two", merged[1].ID)
	require.Equal(t, "three", merged[2].ID)
}

func TestDiscoverMergesAndPersists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := NewStore(dir, nil)
	discoverers := []corpus.Discoverer{
		&fakeDiscoverer{kind: corpus.SourceGovUK, entries: makeEntries(corpus.SourceGovUK, 3)},
		&fakeDiscoverer{kind: corpus.SourceLegislation, entries: makeEntries(corpus.SourceLegislation, 2)},
	}

	merged, err := Discover(context.Background(), discoverers, 0, store, nil)
	require.NoError(t, err)
	require.Len(t, merged, 5)

	persisted, err := store.Load(corpus.SourceGovUK)
	require.NoError(t, err)
	require.Len(t, persisted, 3)

	all, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, all, 5)
}

func TestDiscoverPartialFailure(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir(), nil)
	discoverers := []corpus.Discoverer{
		&fakeDiscoverer{kind: corpus.SourceGovUK, err: corpus.Errorf(corpus.KindDiscovery, "unreachable")},
		&fakeDiscoverer{kind: corpus.SourceBailii, entries: makeEntries(corpus.SourceBailii, 2)},
	}

	merged, err := Discover(context.Background(), discoverers, 0, store, nil)
	require.NoError(t, err)
	require.Len(t, merged, 2)
}

func TestDiscoverTotalFailure(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir(), nil)
	discoverers := []corpus.Discoverer{
		&fakeDiscoverer{kind: corpus.SourceGovUK, err: corpus.Errorf(corpus.KindDiscovery, "down")},
		&fakeDiscoverer{kind: corpus.SourceBailii, err: corpus.Errorf(corpus.KindDiscovery, "down")},
	}

	_, err := Discover(context.Background(), discoverers, 0, store, nil)
	require.Error(t, err)
	require.Equal(t, corpus.KindDiscovery, corpus.KindOf(err))
}

func TestDiscoverRespectsBudget(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir(), nil)
	first := &fakeDiscoverer{kind: corpus.SourceGovUK, entries: makeEntries(corpus.SourceGovUK, 4)}
	second := &fakeDiscoverer{kind: corpus.SourceBailii, entries: makeEntries(corpus.SourceBailii, 4)}

	merged, err := Discover(context.Background(), []corpus.Discoverer{first, second}, 6, store, nil)
	require.NoError(t, err)
	require.Len(t, merged, 6)
	// The second source only gets the remaining budget.
	require.Equal(t, 2, second.askedFor)
}

func makeEntries(kind corpus.SourceKind, n int) []corpus.CatalogEntry {
	entries := make([]corpus.CatalogEntry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, corpus.CatalogEntry{
			ID:              fmt.Sprintf("%s-doc-%d", kind, i),
			Source:          kind,
			Location:        fmt.Sprintf("https://example.test/%s/%d", kind, i),
			ExpectedFormats: []corpus.Format{corpus.FormatHTML},
		})
	}
	return entries
}

type fakeDiscoverer struct {
	kind     corpus.SourceKind
	entries  []corpus.CatalogEntry
	err      error
	askedFor int
}

func (f *fakeDiscoverer) Kind() corpus.SourceKind { return f.kind }

func (f *fakeDiscoverer) Discover(_ context.Context, maxEntries int) ([]corpus.CatalogEntry, error) {
	f.askedFor = maxEntries
	if f.err != nil {
		return nil, f.err
	}
	if maxEntries > 0 && len(f.entries) > maxEntries {
		return f.entries[:maxEntries], nil
	}
	return f.entries, nil
}
