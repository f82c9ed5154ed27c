package keyword

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/tanya/internal/models"
)

func newTestIndex(t *testing.T) *BleveIndex {
	t.Helper()
	idx, err := NewBleveIndex(filepath.Join(t.TempDir(), "bleve"))
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func testChunks() []*models.Chunk {
	return []*models.Chunk{
		{ID: "hours.txt_1", Source: "hours.txt", Content: "Office hours are 9 to 5 on weekdays."},
		{ID: "leave_policy.docx_1", Source: "leave_policy.docx", Content: "Annual leave must be requested two weeks ahead."},
		{ID: "parking.doc_1", Source: "parking.doc", Content: "Parking permits are issued by the front office."},
	}
}

func TestBleveIndex_SearchFindsContent(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	if err := idx.Index(ctx, testChunks()); err != nil {
		t.Fatalf("Index: %v", err)
	}

	results, err := idx.Search(ctx, "weekdays", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "hours.txt_1" {
		t.Fatalf("results = %+v, want hours.txt_1", results)
	}

	n, err := idx.DocCount()
	if err != nil || n != 3 {
		t.Errorf("DocCount = %d, %v; want 3", n, err)
	}
}

func TestBleveIndex_SearchFindsSource(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	if err := idx.Index(ctx, testChunks()); err != nil {
		t.Fatalf("Index: %v", err)
	}

	// "policy" only appears in the file name.
	results, err := idx.Search(ctx, "policy", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 || results[0].ID != "leave_policy.docx_1" {
		t.Fatalf("results = %+v, want leave_policy.docx_1 first", results)
	}
}

func TestBleveIndex_SourceBoost(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	chunks := append(testChunks(), &models.Chunk{ID: "faq.txt_1", Source: "faq.txt", Content: "Where do I find parking? Ask about parking at reception."})
	if err := idx.Index(ctx, chunks); err != nil {
		t.Fatalf("Index: %v", err)
	}

	results, err := idx.Search(ctx, "parking", 10, &SearchOptions{SourceBoost: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) < 2 || results[0].ID != "parking.doc_1" {
		t.Fatalf("results = %+v, want parking.doc_1 first", results)
	}
}

func TestBleveIndex_Fuzzy(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	if err := idx.Index(ctx, testChunks()); err != nil {
		t.Fatalf("Index: %v", err)
	}

	exact, err := idx.Search(ctx, "permts", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(exact) != 0 {
		t.Errorf("exact search for typo returned %d results", len(exact))
	}
	fuzzy, err := idx.Search(ctx, "permts", 10, &SearchOptions{FuzzyEnabled: true, Fuzziness: 1})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(fuzzy) == 0 || fuzzy[0].ID != "parking.doc_1" {
		t.Errorf("fuzzy results = %+v, want parking.doc_1", fuzzy)
	}
}

func TestBleveIndex_ReopenKeepsChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bleve")
	idx, err := NewBleveIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Index(context.Background(), testChunks()); err != nil {
		t.Fatal(err)
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	idx, err = NewBleveIndex(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = idx.Close() }()
	n, err := idx.DocCount()
	if err != nil || n != 3 {
		t.Errorf("DocCount after reopen = %d, %v; want 3", n, err)
	}
}

func TestBleveIndex_EmptyQuery(t *testing.T) {
	idx := newTestIndex(t)
	results, err := idx.Search(context.Background(), "   ", 10, nil)
	if err != nil || len(results) != 0 {
		t.Errorf("Search(blank) = %v, %v; want no results", results, err)
	}
}

func TestNormalizeSource(t *testing.T) {
	if got := normalizeSource("hr/leave_policy-2024.docx"); got != "hr leave policy 2024 docx" {
		t.Errorf("normalizeSource = %q", got)
	}
}
