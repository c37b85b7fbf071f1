package assemble

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkWindowArithmetic(t *testing.T) {
	t.Parallel()

	// 10,000 characters, window 4,000, 10% overlap: stride 3,600, so
	// windows start at 0, 3600 and 7200.
	chunker, err := NewChunker(4000, 0.1, TokenizerChars)
	require.NoError(t, err)

	text := strings.Repeat("a", 10000)
	chunks := chunker.Chunk(text)
	require.Len(t, chunks, 3)
	require.Len(t, chunks[0], 4000)
	require.Len(t, chunks[1], 4000)
	require.Len(t, chunks[2], 2800)
}

func TestChunkOverlapSharesTail(t *testing.T) {
	t.Parallel()

	chunker, err := NewChunker(10, 0.2, TokenizerChars)
	require.NoError(t, err)

	chunks := chunker.Chunk("abcdefghijklmnop")
	require.Len(t, chunks, 2)
	require.Equal(t, "abcdefghij", chunks[0])
	// stride 8: the second window re-reads the last two characters.
	require.Equal(t, "ijklmnop", chunks[1])
}

func TestChunkShortTextIsSingleChunk(t *testing.T) {
	t.Parallel()

	chunker, err := NewChunker(4000, 0.1, TokenizerChars)
	require.NoError(t, err)

	chunks := chunker.Chunk("short document")
	require.Equal(t, []string{"short document"}, chunks)
}

func TestChunkEmptyText(t *testing.T) {
	t.Parallel()

	chunker, err := NewChunker(100, 0.1, TokenizerChars)
	require.NoError(t, err)
	require.Empty(t, chunker.Chunk(""))
}

func TestChunkWhitespaceTokenizer(t *testing.T) {
	t.Parallel()

	chunker, err := NewChunker(4, 0.25, TokenizerWhitespace)
	require.NoError(t, err)

	chunks := chunker.Chunk("one two three four five six seven")
	// stride 3 words: the second window reaches the end, so it is the last.
	require.Equal(t, []string{
		"one two three four",
		"four five six seven",
	}, chunks)
}

func TestChunkIsDeterministic(t *testing.T) {
	t.Parallel()

	chunker, err := NewChunker(50, 0.1, TokenizerChars)
	require.NoError(t, err)

	text := strings.Repeat("the quick brown fox ", 40)
	require.Equal(t, chunker.Chunk(text), chunker.Chunk(text))
}

func TestNewChunkerRejectsBadConfig(t *testing.T) {
	t.Parallel()

	_, err := NewChunker(100, 1.5, TokenizerChars)
	require.Error(t, err)

	_, err = NewChunker(100, 0.1, "sentencepiece")
	require.Error(t, err)
}
