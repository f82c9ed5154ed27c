// Package storage defines the ingestion ledger and its SQLite implementation.
package storage

import (
	"context"

	"github.com/hyperjump/tanya/internal/models"
)

// Ledger records which corpus sources have already been chunked and embedded.
// Membership is the deduplication gate for ingestion; records are never removed.
type Ledger interface {
	// IsProcessed reports whether sourceID has been ingested.
	IsProcessed(ctx context.Context, sourceID string) (bool, error)
	// MarkProcessed records sourceIDs as ingested. Marking an existing source is a no-op.
	MarkProcessed(ctx context.Context, sourceIDs ...string) error
	// List returns all records ordered by source id.
	List(ctx context.Context) ([]*models.IngestionRecord, error)
	// Count returns the number of records.
	Count(ctx context.Context) (int64, error)

	Close() error
}
