package progress

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/legal-llama/corpus-pipeline/internal/corpus"
)

// ExhaustedReport enumerates the pairs that ran out of retry budget at the
// end of a fetch run, alongside the overall ledger counts.
type ExhaustedReport struct {
	Counts  corpus.ProgressCounts   `json:"counts"`
	Entries []corpus.ExhaustedEntry `json:"entries"`
}

// WriteExhaustedReport persists the report as exhausted_report.json in dir.
func WriteExhaustedReport(dir string, report ExhaustedReport) error {
	if report.Entries == nil {
		report.Entries = []corpus.ExhaustedEntry{}
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return corpus.NewError(corpus.KindDisk, err)
	}
	path := filepath.Join(dir, "exhausted_report.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return corpus.NewError(corpus.KindDisk, err)
	}
	return nil
}
