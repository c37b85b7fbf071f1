// Package corpus defines core types shared across pipeline subsystems.
package corpus

import (
	"fmt"
	"time"
)

// SourceKind identifies the upstream a catalog entry came from.
type SourceKind string

// Known source kinds.
const (
	SourceGovUK       SourceKind = "govuk"
	SourceLegislation SourceKind = "legislation"
	SourceBailii      SourceKind = "bailii"
)

// Format is the shape a document is retrieved in.
type Format string

// Formats a source may advertise for an entry.
const (
	FormatJSON Format = "json"
	FormatXML  Format = "xml"
	FormatHTML Format = "html"
	FormatText Format = "text"
)

// Ext returns the artifact file extension for the format.
func (f Format) Ext() string {
	switch f {
	case FormatJSON:
		return ".json"
	case FormatXML:
		return ".xml"
	case FormatHTML:
		return ".html"
	case FormatText:
		return ".txt"
	default:
		return ".bin"
	}
}

// CatalogEntry is one discovered document. Immutable once discovered.
type CatalogEntry struct {
	ID              string     `json:"id"`
	Source          SourceKind `json:"source"`
	Title           string     `json:"title,omitempty"`
	Location        string     `json:"location"`
	ExpectedFormats []Format   `json:"expected_formats"`
	Year            int        `json:"year,omitempty"`
	DocType         string     `json:"doc_type,omitempty"`
}

// FetchStatus is the lifecycle state of one (entry, format) fetch.
type FetchStatus string

// Fetch status values persisted in the progress ledger.
const (
	StatusPending    FetchStatus = "pending"
	StatusInProgress FetchStatus = "in_progress"
	StatusSuccess    FetchStatus = "success"
	StatusFailed     FetchStatus = "failed"
	StatusCorrupt    FetchStatus = "corrupt"
	StatusExhausted  FetchStatus = "exhausted"
)

// Terminal reports whether no further transitions are allowed without a
// manual reset.
func (s FetchStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusExhausted
}

// FetchRecord is the per-(entry, format) resume ledger entry.
type FetchRecord struct {
	EntryID         string      `json:"entry_id"`
	Format          Format      `json:"format"`
	Status          FetchStatus `json:"status"`
	AttemptCount    int         `json:"attempt_count"`
	RateLimitHits   int         `json:"rate_limit_hits,omitempty"`
	CorruptRequeues int         `json:"corrupt_requeues,omitempty"`
	LastAttemptAt   time.Time   `json:"last_attempt_at,omitzero"`
	ContentHash     string      `json:"content_hash,omitempty"`
	ArtifactPath    string      `json:"artifact_path,omitempty"`
	ErrorKind       ErrorKind   `json:"error_kind,omitempty"`
	ErrorText       string      `json:"error_text,omitempty"`
}

// Key identifies the record within a snapshot.
func (r FetchRecord) Key() string {
	return RecordKey(r.EntryID, r.Format)
}

// EffectiveAttempts is the weighted attempt count checked against the retry
// budget. Upstream throttling is the pipeline's own pacing problem, so a
// rate-limited attempt costs half a regular one.
func (r FetchRecord) EffectiveAttempts() int {
	full := r.AttemptCount - r.RateLimitHits
	if full < 0 {
		full = 0
	}
	return full + (r.RateLimitHits+1)/2
}

// RecordKey builds the snapshot key for an (entry, format) pair.
func RecordKey(entryID string, format Format) string {
	return entryID + "/" + string(format)
}

// CanTransition enforces the forward-only state machine with the explicit
// requeue edges failed->pending and corrupt->pending. A later fetch can never
// overwrite success; only verification may demote it to corrupt after
// re-checking the artifact.
func (r FetchRecord) CanTransition(next FetchStatus) bool {
	switch r.Status {
	case StatusPending, "":
		return next == StatusInProgress || next == StatusPending
	case StatusInProgress:
		return next == StatusSuccess || next == StatusFailed ||
			next == StatusCorrupt || next == StatusPending
	case StatusFailed:
		return next == StatusPending || next == StatusExhausted
	case StatusCorrupt:
		return next == StatusPending || next == StatusExhausted
	case StatusSuccess:
		return next == StatusCorrupt
	case StatusExhausted:
		return false
	default:
		return false
	}
}

// RawDocument is a verified fetched payload ready for assembly.
type RawDocument struct {
	EntryID     string
	Source      SourceKind
	Format      Format
	Title       string
	DocType     string
	Year        int
	Payload     []byte
	ContentHash string
	RetrievedAt time.Time
}

// Variant is one of the training-record projections.
type Variant string

// Training record variants.
const (
	VariantInstruction Variant = "instruction"
	VariantCompletion  Variant = "completion"
	VariantQA          Variant = "qa"
)

// Variants lists all projections in a stable order.
func Variants() []Variant {
	return []Variant{VariantInstruction, VariantCompletion, VariantQA}
}

// TrainingRecord is a tagged variant over instruction, completion and QA
// shapes. Exactly one of the variant field groups is populated, selected by
// Variant. Provenance always traces back to the entry the record derives from.
type TrainingRecord struct {
	RecordID string  `json:"record_id"`
	Variant  Variant `json:"variant"`
	EntryID  string  `json:"entry_id"`
	Source   string  `json:"source"`
	Sequence int     `json:"sequence"`

	// instruction variant
	Instruction string `json:"instruction,omitempty"`
	Input       string `json:"input,omitempty"`
	Output      string `json:"output,omitempty"`

	// completion variant
	Text string `json:"text,omitempty"`

	// qa variant
	Question string `json:"question,omitempty"`
	Answer   string `json:"answer,omitempty"`
	Context  string `json:"context,omitempty"`
}

// Body returns the text field carrying the record's trainable content.
func (t TrainingRecord) Body() string {
	switch t.Variant {
	case VariantInstruction:
		return t.Output
	case VariantCompletion:
		return t.Text
	case VariantQA:
		return t.Answer
	default:
		return ""
	}
}

// ProgressCounts aggregates a snapshot by status.
type ProgressCounts struct {
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Success    int `json:"success"`
	Failed     int `json:"failed"`
	Corrupt    int `json:"corrupt"`
	Exhausted  int `json:"exhausted"`
}

// Total sums all buckets.
func (c ProgressCounts) Total() int {
	return c.Pending + c.InProgress + c.Success + c.Failed + c.Corrupt + c.Exhausted
}

// VerificationReport summarizes one verification pass.
type VerificationReport struct {
	RunID        string    `json:"run_id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Checked      int       `json:"checked"`
	Intact       int       `json:"intact"`
	Requeued     int       `json:"requeued"`
	Exhausted    int       `json:"exhausted"`
	Inconclusive int       `json:"inconclusive"`
	RequeuedIDs  []string  `json:"requeued_ids,omitempty"`
}

// ExhaustedEntry names a terminally failed (entry, format) pair for the
// final report.
type ExhaustedEntry struct {
	EntryID   string    `json:"entry_id"`
	Format    Format    `json:"format"`
	ErrorKind ErrorKind `json:"error_kind"`
	ErrorText string    `json:"error_text,omitempty"`
}

func (e ExhaustedEntry) String() string {
	return fmt.Sprintf("%s/%s (%s)", e.EntryID, e.Format, e.ErrorKind)
}
