package vector

import (
	"context"
	"testing"
)

func TestNewVectorIndex_Memory(t *testing.T) {
	for _, typ := range []string{"memory", ""} {
		idx, err := NewVectorIndex(typ, 3)
		if err != nil {
			t.Fatalf("NewVectorIndex(%q): %v", typ, err)
		}
		if err := idx.Add(context.Background(), []string{"a"}, [][]float32{{1, 0, 0}}); err != nil {
			t.Fatalf("Add: %v", err)
		}
		if idx.Size() != 1 || idx.Type() != "memory" || idx.Dimensions() != 3 {
			t.Errorf("unexpected index: size=%d type=%s dims=%d", idx.Size(), idx.Type(), idx.Dimensions())
		}
		_ = idx.Close()
	}
}

func TestNewVectorIndex_Unknown(t *testing.T) {
	if _, err := NewVectorIndex("annoy", 3); err == nil {
		t.Error("expected error for unknown index type")
	}
}

func TestNewVectorIndex_FAISSMatchesAvailability(t *testing.T) {
	idx, err := NewVectorIndex("faiss", 3)
	if IsFAISSAvailable() {
		if err != nil {
			t.Fatalf("FAISS available but NewVectorIndex failed: %v", err)
		}
		_ = idx.Close()
		return
	}
	if err == nil {
		t.Error("expected error when FAISS is not compiled in")
	}
}
