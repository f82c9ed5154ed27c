// Package keyword provides BM25 keyword search over indexed chunks.
package keyword

import (
	"context"

	"github.com/hyperjump/tanya/internal/models"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// SourceBoost multiplies the score contribution from matches in the source file name.
	// Use 1.0 for no boost.
	SourceBoost float64
	// PhraseBoost multiplies the score when query terms appear close together.
	// Use 1.0 for no boost.
	PhraseBoost float64
	// FuzzyEnabled enables typo tolerant matching.
	FuzzyEnabled bool
	// Fuzziness is the maximum edit distance for fuzzy matching (1 or 2). Default 2.
	Fuzziness int
}

// KeywordIndex defines keyword search operations over chunks.
type KeywordIndex interface {
	// Index adds or replaces chunks by chunk ID.
	Index(ctx context.Context, chunks []*models.Chunk) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	// DocCount returns the number of indexed chunks.
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit keyed by chunk ID.
type KeywordResult struct {
	ID    string
	Score float64
}
