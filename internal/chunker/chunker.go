package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"knowledge-ingest-platform/models"
)

// Chunker splits normalized text into ordered, overlapping chunks along
// paragraph boundaries.
type Chunker struct {
	maxChunkSize   int
	overlap        int
	minChunkSize   int
	sentenceRegex  *regexp.Regexp
	paragraphRegex *regexp.Regexp
}

func New(maxChunkSize, overlap, minChunkSize int) *Chunker {
	return &Chunker{
		maxChunkSize:   maxChunkSize,
		overlap:        overlap,
		minChunkSize:   minChunkSize,
		sentenceRegex:  regexp.MustCompile(`[.!?]+[\s]+`),
		paragraphRegex: regexp.MustCompile(`\n\n+`),
	}
}

// ChunkText splits text into chunks for parentIdentity. Order values are
// 0-based and gapless; chunk ids are deterministic ("identity:index") so a
// re-ingest of unchanged content produces identical ids.
func (c *Chunker) ChunkText(parentIdentity, text string) []models.Chunk {
	paragraphs := filterEmpty(c.paragraphRegex.Split(text, -1))
	if len(paragraphs) == 0 {
		return []models.Chunk{}
	}

	var chunks []models.Chunk
	currentChunk := new(strings.Builder)
	currentSize := 0
	chunkIndex := 0

	for _, paragraph := range paragraphs {
		paragraph = strings.TrimSpace(paragraph)
		if len(paragraph) == 0 {
			continue
		}

		paraSize := len(paragraph)

		// Finalize the current chunk when this paragraph would overflow it
		if currentSize+paraSize > c.maxChunkSize && currentSize >= c.minChunkSize {
			if currentChunk.Len() > 0 {
				chunks = append(chunks, c.createChunk(parentIdentity, currentChunk.String(), chunkIndex))
				chunkIndex++
			}

			currentChunk = new(strings.Builder)
			currentSize = 0

			// Carry overlap from the previous chunk into the next one
			if len(chunks) > 0 && c.overlap > 0 {
				overlapText := c.getOverlapText(chunks[len(chunks)-1].Text, c.overlap)
				if len(overlapText) > 0 {
					currentChunk.WriteString(overlapText)
					currentSize += len(overlapText)
				}
			}
		}

		if currentChunk.Len() > 0 {
			currentChunk.WriteString("\n\n")
		}
		currentChunk.WriteString(paragraph)
		currentSize += paraSize
	}

	if currentChunk.Len() > 0 {
		chunks = append(chunks, c.createChunk(parentIdentity, currentChunk.String(), chunkIndex))
	}

	return chunks
}

func (c *Chunker) createChunk(parentIdentity, text string, order int) models.Chunk {
	return models.Chunk{
		ChunkID:        fmt.Sprintf("%s:%d", parentIdentity, order),
		ParentIdentity: parentIdentity,
		Order:          order,
		Text:           text,
		CharCount:      len(text),
		WordCount:      len(strings.Fields(text)),
	}
}

// getOverlapText extracts overlap text from the end of the previous chunk,
// preferring whole sentences over a raw byte cut.
func (c *Chunker) getOverlapText(text string, overlapSize int) string {
	if len(text) <= overlapSize {
		return text
	}

	sentences := filterEmpty(c.sentenceRegex.Split(text, -1))
	if len(sentences) <= 1 {
		return text[len(text)-overlapSize:]
	}

	result := strings.Join(sentences[1:], ". ")
	if len(result) > overlapSize {
		// Drop leading sentences until the overlap fits
		for len(sentences) > 1 && len(result) > overlapSize {
			sentences = sentences[1:]
			result = strings.Join(sentences[1:], ". ")
		}
	}
	return result
}

func filterEmpty(slice []string) []string {
	result := make([]string, 0, len(slice))
	for _, s := range slice {
		if len(strings.TrimSpace(s)) > 0 {
			result = append(result, s)
		}
	}
	return result
}
