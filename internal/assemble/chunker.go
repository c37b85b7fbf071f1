package assemble

import (
	"fmt"
	"strings"
)

// Chunker segments document text into fixed-size overlapping windows.
// Segmentation is a pure function of (text, window, overlap, tokenizer), so
// reruns on unchanged input produce identical chunks.
type Chunker struct {
	// Window is the chunk size, measured in tokenizer units (default 4000).
	Window int
	// OverlapFrac is the fraction of a window shared with its predecessor
	// (default 0.1).
	OverlapFrac float64
	// Tokenizer selects the unit of measure: "chars" counts runes,
	// "whitespace" counts space-separated words.
	Tokenizer string
}

const (
	defaultWindow      = 4000
	defaultOverlapFrac = 0.1

	// Tokenizer names accepted by the chunker.
	TokenizerChars      = "chars"
	TokenizerWhitespace = "whitespace"
)

// NewChunker validates the configuration and applies defaults.
func NewChunker(window int, overlapFrac float64, tokenizer string) (*Chunker, error) {
	if window <= 0 {
		window = defaultWindow
	}
	if overlapFrac < 0 {
		overlapFrac = 0
	}
	if overlapFrac == 0 {
		overlapFrac = defaultOverlapFrac
	}
	if overlapFrac >= 1 {
		return nil, fmt.Errorf("overlap fraction %v must be below 1", overlapFrac)
	}
	if tokenizer == "" {
		tokenizer = TokenizerChars
	}
	if tokenizer != TokenizerChars && tokenizer != TokenizerWhitespace {
		return nil, fmt.Errorf("unknown tokenizer %q", tokenizer)
	}
	return &Chunker{Window: window, OverlapFrac: overlapFrac, Tokenizer: tokenizer}, nil
}

// Chunk splits text into windows advancing by window minus overlap. The last
// window may be shorter; a text within one window yields a single chunk.
func (c *Chunker) Chunk(text string) []string {
	switch c.Tokenizer {
	case TokenizerWhitespace:
		return joinUnits(strings.Fields(text), c.Window, c.stride(), " ")
	default:
		units := strings.Split(text, "")
		return joinUnits(units, c.Window, c.stride(), "")
	}
}

func (c *Chunker) stride() int {
	stride := c.Window - int(float64(c.Window)*c.OverlapFrac)
	if stride < 1 {
		stride = 1
	}
	return stride
}

func joinUnits(units []string, window, stride int, sep string) []string {
	if len(units) == 0 {
		return nil
	}
	var chunks []string
	for start := 0; start < len(units); start += stride {
		end := start + window
		if end > len(units) {
			end = len(units)
		}
		chunk := strings.TrimSpace(strings.Join(units[start:end], sep))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(units) {
			break
		}
	}
	return chunks
}
