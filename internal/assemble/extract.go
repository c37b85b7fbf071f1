package assemble

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"io"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/legal-llama/corpus-pipeline/internal/corpus"
)

// jsonTextKeys are the fields mined for prose when a payload is structured
// JSON (content API responses carry their text under these).
var jsonTextKeys = map[string]bool{
	"title":       true,
	"description": true,
	"body":        true,
	"text":        true,
	"content":     true,
}

// ExtractText reduces a raw payload to plain text for assembly. Extraction is
// deterministic: identical payloads always yield identical text.
func ExtractText(format corpus.Format, payload []byte) (string, error) {
	switch format {
	case corpus.FormatText:
		return normalizeText(string(payload)), nil
	case corpus.FormatJSON:
		return extractJSON(payload)
	case corpus.FormatXML:
		return extractXML(payload)
	case corpus.FormatHTML:
		return extractHTML(payload)
	default:
		return "", corpus.Errorf(corpus.KindValidate, "no text extractor for format %q", format)
	}
}

func extractJSON(payload []byte) (string, error) {
	var root any
	if err := json.Unmarshal(payload, &root); err != nil {
		return "", corpus.NewError(corpus.KindParse, err)
	}
	var parts []string
	collectJSONText(root, &parts)
	return normalizeText(strings.Join(parts, "\n\n")), nil
}

// collectJSONText walks the document gathering prose fields. Map keys are
// visited in sorted order so output never depends on map iteration.
func collectJSONText(node any, parts *[]string) {
	switch v := node.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if s, ok := v[k].(string); ok && jsonTextKeys[k] {
				if looksLikeHTML(s) {
					if text, err := extractHTML([]byte(s)); err == nil {
						*parts = append(*parts, text)
						continue
					}
				}
				if trimmed := strings.TrimSpace(s); trimmed != "" {
					*parts = append(*parts, trimmed)
				}
				continue
			}
			collectJSONText(v[k], parts)
		}
	case []any:
		for _, item := range v {
			collectJSONText(item, parts)
		}
	}
}

func looksLikeHTML(s string) bool {
	return strings.Contains(s, "<") && strings.Contains(s, ">")
}

func extractXML(payload []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(payload))
	var sb strings.Builder
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", corpus.NewError(corpus.KindParse, err)
		}
		if cd, ok := tok.(xml.CharData); ok {
			text := strings.TrimSpace(string(cd))
			if text != "" {
				sb.WriteString(text)
				sb.WriteString("\n")
			}
		}
	}
	return normalizeText(sb.String()), nil
}

func extractHTML(payload []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload))
	if err != nil {
		return "", corpus.NewError(corpus.KindParse, err)
	}
	doc.Find("script, style, noscript").Remove()
	return normalizeText(doc.Text()), nil
}

// normalizeText collapses runs of blank lines and trims line edges.
func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
