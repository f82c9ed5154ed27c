// Package indexer builds and maintains the chunk vector index over a corpus folder.
package indexer

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/tanya/internal/models"
)

// Chunker splits text into overlapping character windows.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in characters).
// An overlap that is negative or not smaller than size is clamped to size-1.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize < 1 {
		chunkSize = 1
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize - 1
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Split splits a source document into chunks. Window k covers characters
// [k*(size-overlap), k*(size-overlap)+size) of the content; the last window may be shorter.
// Blank content yields no chunks.
func (c *Chunker) Split(doc *models.SourceDocument) []*models.Chunk {
	return c.Chunk(doc.ID, doc.Content)
}

// Chunk splits text from the given source into chunks with ChunkIndex and ChunkCount set.
func (c *Chunker) Chunk(sourceID, text string) []*models.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)
	step := c.chunkSize - c.chunkOverlap
	var windows []string
	for start := 0; start < len(runes); start += step {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		windows = append(windows, string(runes[start:end]))
		if end >= len(runes) {
			break
		}
	}
	now := time.Now().UTC()
	chunks := make([]*models.Chunk, len(windows))
	for i, w := range windows {
		chunks[i] = &models.Chunk{
			ID:         fmt.Sprintf("%s_%s", sourceID, uuid.New().String()[:8]),
			Source:     sourceID,
			Content:    w,
			ChunkIndex: i,
			ChunkCount: len(windows),
			CreatedAt:  now,
		}
	}
	return chunks
}

// Overlap returns the configured overlap in characters.
func (c *Chunker) Overlap() int {
	return c.chunkOverlap
}
