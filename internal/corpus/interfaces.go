package corpus

import (
	"context"
	"time"
)

// DocumentSource fetches one document format from an upstream. One
// implementation exists per SourceKind.
type DocumentSource interface {
	Kind() SourceKind
	Fetch(ctx context.Context, entry CatalogEntry, format Format) ([]byte, error)
}

// Discoverer enumerates catalog entries for a source. Implementations apply
// their own retry budget; a DiscoveryError from one source never blocks
// entries found by another.
type Discoverer interface {
	Kind() SourceKind
	Discover(ctx context.Context, maxEntries int) ([]CatalogEntry, error)
}

// DatasetSink persists assembled training records for one (split, variant).
type DatasetSink interface {
	Write(ctx context.Context, split string, variant Variant, records []TrainingRecord) error
	Close(ctx context.Context) error
}

// ArtifactStore persists and re-reads raw fetch payloads.
type ArtifactStore interface {
	Put(ctx context.Context, path string, data []byte) (string, error)
	Get(ctx context.Context, path string) ([]byte, error)
	Stat(ctx context.Context, path string) (int64, error)
}

// RateLimiter admits outbound requests per logical source. Acquire blocks
// until a slot is available or the context ends.
type RateLimiter interface {
	Acquire(ctx context.Context, source SourceKind) error
}

// Hasher computes digests for integrity checks and record ids.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (swapped for a fake in tests).
type Clock interface {
	Now() time.Time
}
