package fetch

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/legal-llama/corpus-pipeline/internal/corpus"
)

// SanityCheck verifies a payload minimally parses as its declared format. It
// gates the success status: a payload that fails here is recorded corrupt and
// left for the verification pass, never retried in the same run.
func SanityCheck(format corpus.Format, payload []byte) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		return corpus.Errorf(corpus.KindParse, "empty payload")
	}

	switch format {
	case corpus.FormatJSON:
		if !json.Valid(payload) {
			return corpus.Errorf(corpus.KindParse, "payload is not valid json")
		}
	case corpus.FormatXML:
		if err := wellFormedXML(payload); err != nil {
			return corpus.NewError(corpus.KindParse, err)
		}
	case corpus.FormatHTML:
		lower := strings.ToLower(string(payload[:min(len(payload), 512)]))
		if !strings.Contains(lower, "<") {
			return corpus.Errorf(corpus.KindParse, "payload has no markup")
		}
	case corpus.FormatText:
		if !utf8.Valid(payload) {
			return corpus.Errorf(corpus.KindParse, "payload is not valid utf-8")
		}
	}
	return nil
}

func wellFormedXML(payload []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(payload))
	for {
		_, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
