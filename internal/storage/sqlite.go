package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/tanya/internal/models"
)

// SQLiteLedger implements Ledger using SQLite.
type SQLiteLedger struct {
	db *sql.DB
}

var _ Ledger = (*SQLiteLedger)(nil)

// NewSQLiteLedger opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: create database directory: %v", models.ErrPersistence, err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", models.ErrPersistence, err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: enable WAL: %v", models.ErrPersistence, err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: initialize schema: %v", models.ErrPersistence, err)
	}

	return &SQLiteLedger{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS processed_files (
		filename TEXT PRIMARY KEY,
		processed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// IsProcessed reports whether sourceID has a record.
func (s *SQLiteLedger) IsProcessed(ctx context.Context, sourceID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM processed_files WHERE filename = ?`, sourceID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("%w: query ledger: %v", models.ErrPersistence, err)
	}
	return n > 0, nil
}

// MarkProcessed inserts a record for each source in one transaction. Existing records keep
// their original timestamp.
func (s *SQLiteLedger) MarkProcessed(ctx context.Context, sourceIDs ...string) error {
	if len(sourceIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", models.ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO processed_files (filename, processed_at) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare insert: %v", models.ErrPersistence, err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, id := range sourceIDs {
		if _, err := stmt.ExecContext(ctx, id, now); err != nil {
			return fmt.Errorf("%w: mark %s processed: %v", models.ErrPersistence, id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", models.ErrPersistence, err)
	}
	return nil
}

// List returns all records ordered by source id.
func (s *SQLiteLedger) List(ctx context.Context) ([]*models.IngestionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT filename, processed_at FROM processed_files ORDER BY filename`)
	if err != nil {
		return nil, fmt.Errorf("%w: list ledger: %v", models.ErrPersistence, err)
	}
	defer rows.Close()

	var records []*models.IngestionRecord
	for rows.Next() {
		var rec models.IngestionRecord
		if err := rows.Scan(&rec.SourceID, &rec.ProcessedAt); err != nil {
			return nil, fmt.Errorf("%w: scan ledger row: %v", models.ErrPersistence, err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list ledger: %v", models.ErrPersistence, err)
	}
	return records, nil
}

// Count returns the number of records.
func (s *SQLiteLedger) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM processed_files`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count ledger: %v", models.ErrPersistence, err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteLedger) Close() error {
	return s.db.Close()
}
