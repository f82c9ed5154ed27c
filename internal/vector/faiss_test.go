//go:build faiss && cgo
// +build faiss,cgo

package vector

import (
	"context"
	"testing"
)

func TestFAISSIndex_AddSearch(t *testing.T) {
	idx, err := NewFAISSIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	if err := idx.Add(ctx, []string{"a", "b", "c"}, [][]float32{{1, 0, 0}, {0.9, 0.1, 0}, {0, 1, 0}}); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 {
		t.Errorf("Size=%d", idx.Size())
	}
	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].ID != "a" {
		t.Errorf("unexpected results: %+v", results)
	}
}

func TestFAISSIndex_TiesKeepInsertionOrder(t *testing.T) {
	idx, err := NewFAISSIndex(2)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"x", "y", "z"}, [][]float32{{1, 0}, {1, 0}, {1, 0}})
	results, err := idx.Search(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].ID != "x" || results[1].ID != "y" {
		t.Errorf("unexpected order: %+v", results)
	}
}

func TestFAISSIndex_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	idx, err := NewFAISSIndex(2)
	if err != nil {
		t.Fatal(err)
	}
	_ = idx.Add(ctx, []string{"p", "q"}, [][]float32{{0.6, 0.8}, {1, 0}})
	if err := idx.Save(dir); err != nil {
		t.Fatal(err)
	}
	_ = idx.Close()

	idx2, err := NewFAISSIndex(2)
	if err != nil {
		t.Fatal(err)
	}
	defer idx2.Close()
	if err := idx2.Load(dir); err != nil {
		t.Fatal(err)
	}
	results, _ := idx2.Search(ctx, []float32{1, 0}, 1)
	if len(results) != 1 || results[0].ID != "q" {
		t.Errorf("unexpected results after load: %+v", results)
	}
}
