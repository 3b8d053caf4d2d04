package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkTextEmpty(t *testing.T) {
	c := New(1000, 200, 100)

	assert.Empty(t, c.ChunkText("/p/a.txt", ""))
	assert.Empty(t, c.ChunkText("/p/a.txt", "\n\n\n"))
}

func TestChunkTextSingleChunk(t *testing.T) {
	c := New(1000, 200, 100)

	chunks := c.ChunkText("/p/a.py", "print(1)")
	require.Len(t, chunks, 1)

	assert.Equal(t, "/p/a.py:0", chunks[0].ChunkID)
	assert.Equal(t, "/p/a.py", chunks[0].ParentIdentity)
	assert.Equal(t, 0, chunks[0].Order)
	assert.Equal(t, "print(1)", chunks[0].Text)
	assert.Equal(t, 8, chunks[0].CharCount)
	assert.Equal(t, 1, chunks[0].WordCount)
}

func TestChunkTextSplitsOnParagraphs(t *testing.T) {
	c := New(300, 50, 100)

	var paragraphs []string
	for i := 0; i < 10; i++ {
		paragraphs = append(paragraphs, fmt.Sprintf("Paragraph %d. %s", i, strings.Repeat("word ", 30)))
	}
	text := strings.Join(paragraphs, "\n\n")

	chunks := c.ChunkText("/p/doc.md", text)
	require.Greater(t, len(chunks), 1)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Order, "orders must be gapless and 0-based")
		assert.Equal(t, fmt.Sprintf("/p/doc.md:%d", i), chunk.ChunkID)
		assert.NotEmpty(t, chunk.Text)
	}
}

func TestChunkTextDeterministic(t *testing.T) {
	c := New(300, 50, 100)
	text := strings.Repeat("Some sentence here. ", 100)

	first := c.ChunkText("/p/a.txt", text)
	second := c.ChunkText("/p/a.txt", text)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ChunkID, second[i].ChunkID)
		assert.Equal(t, first[i].Text, second[i].Text)
	}
}

func TestChunkTextOverlapCarriesContext(t *testing.T) {
	c := New(200, 80, 50)

	text := "First sentence ends here. Second sentence is also present. " +
		strings.Repeat("Filler content words. ", 10) +
		"\n\n" +
		strings.Repeat("Second paragraph content. ", 10)

	chunks := c.ChunkText("/p/a.txt", text)
	require.Greater(t, len(chunks), 1)

	// The second chunk carries trailing context from the first in addition
	// to its own paragraph
	assert.Contains(t, chunks[1].Text, "Second paragraph content.")
	assert.Contains(t, chunks[1].Text, "Filler content words.")
}
