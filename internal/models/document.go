// Package models defines core data structures for source documents, chunks, and transcripts.
package models

import "time"

// SourceDocument is the raw text of one corpus file, identified by its file name.
type SourceDocument struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	Ext     string `json:"ext"`
	Content string `json:"content"`
}

// Chunk is a window of a source document's text, the unit of embedding and retrieval.
type Chunk struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Content    string    `json:"content"`
	ChunkIndex int       `json:"chunk_index"`
	ChunkCount int       `json:"chunk_count"`
	Embedding  []float32 `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// IngestionRecord records that a source has been chunked and embedded at least once.
type IngestionRecord struct {
	SourceID    string    `json:"source_id" db:"filename"`
	ProcessedAt time.Time `json:"processed_at" db:"processed_at"`
}

// RetrievedChunk is a chunk returned by a retriever with its similarity score.
type RetrievedChunk struct {
	Chunk *Chunk  `json:"chunk"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}
