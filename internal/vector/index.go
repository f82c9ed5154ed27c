// Package vector provides the chunk vector index and its on-disk persistence.
package vector

import "context"

// VectorIndex defines vector storage and similarity search. Vectors are addressed by string ID
// and remember their insertion position.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	// Search returns up to k results ordered by score descending, then insertion order.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	// Save writes the index files into dir.
	Save(dir string) error
	// Load replaces the contents with the index files in dir.
	Load(dir string) error
	Size() int
	Dimensions() int
	Type() string
	Close() error
}

// VectorResult is a single vector search hit (ID is the chunk ID).
type VectorResult struct {
	ID    string
	Score float64 // Inner product; cosine similarity for normalized vectors
	Seq   int64   // Insertion position, used to break score ties
}
