package search

import (
	"testing"

	"github.com/hyperjump/tanya/internal/keyword"
	"github.com/hyperjump/tanya/internal/models"
)

func TestNormalizeKeywordScores(t *testing.T) {
	results := []*keyword.KeywordResult{
		{ID: "a", Score: 2},
		{ID: "b", Score: 4},
		{ID: "c", Score: 1},
	}
	m := NormalizeKeywordScores(results)
	if m["b"] != 1.0 {
		t.Errorf("max score should be 1.0, got %f", m["b"])
	}
	if m["a"] != 0.5 {
		t.Errorf("a should be 0.5, got %f", m["a"])
	}
	if len(m) != 3 {
		t.Errorf("expected 3 entries, got %d", len(m))
	}
	if len(NormalizeKeywordScores(nil)) != 0 {
		t.Error("nil results should give an empty map")
	}
}

func TestNormalizeSemanticScores(t *testing.T) {
	results := []*models.RetrievedChunk{
		{Chunk: &models.Chunk{ID: "c1"}, Score: 1},
		{Chunk: &models.Chunk{ID: "c2"}, Score: 0},
		{Chunk: &models.Chunk{ID: "c3"}, Score: -1},
	}
	m := NormalizeSemanticScores(results)
	if m["c1"] != 1 || m["c2"] != 0.5 || m["c3"] != 0 {
		t.Errorf("unexpected map %v", m)
	}
}

func TestFuse(t *testing.T) {
	kw := map[string]float64{"c1": 1.0, "c2": 0.5}
	sem := map[string]float64{"c1": 0.5, "c2": 1.0, "c3": 0.2}
	results := Fuse(kw, sem, 0.3, 0.7)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].ChunkID != "c2" || results[2].ChunkID != "c3" {
		t.Errorf("order = %s,%s,%s", results[0].ChunkID, results[1].ChunkID, results[2].ChunkID)
	}
	if results[2].KeywordScore != 0 {
		t.Errorf("c3 keyword score = %f, want 0", results[2].KeywordScore)
	}
}

func TestFuse_TiesByChunkID(t *testing.T) {
	results := Fuse(map[string]float64{"b": 1, "a": 1}, nil, 1, 1)
	if results[0].ChunkID != "a" || results[1].ChunkID != "b" {
		t.Errorf("ties should be ordered by chunk id, got %s,%s", results[0].ChunkID, results[1].ChunkID)
	}
}
