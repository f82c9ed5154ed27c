package rag

import (
	"fmt"
	"sync"

	"github.com/hyperjump/tanya/internal/models"
	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// TokenCounter counts model tokens in a text.
type TokenCounter interface {
	Count(text string) int
}

// TiktokenCounter counts tokens with the cl100k_base encoding.
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

var (
	tiktokenOnce     sync.Once
	tiktokenInstance *TiktokenCounter
	tiktokenErr      error
)

// NewTiktokenCounter returns the shared cl100k_base counter. The encoding is loaded offline.
func NewTiktokenCounter() (*TiktokenCounter, error) {
	tiktokenOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			tiktokenErr = fmt.Errorf("load cl100k_base encoding: %w", err)
			return
		}
		tiktokenInstance = &TiktokenCounter{encoding: enc}
	})
	return tiktokenInstance, tiktokenErr
}

// Count returns the number of tokens in text.
func (c *TiktokenCounter) Count(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}

// fitBudget keeps the best-ranked chunks whose combined token count stays within limit.
// Chunks arrive best first, so the lowest-ranked ones are dropped. A limit <= 0 keeps all.
func fitBudget(chunks []*models.RetrievedChunk, counter TokenCounter, limit int) []*models.RetrievedChunk {
	if limit <= 0 || counter == nil {
		return chunks
	}
	used := 0
	for i, rc := range chunks {
		used += counter.Count(rc.Chunk.Content)
		if used > limit {
			return chunks[:i]
		}
	}
	return chunks
}
