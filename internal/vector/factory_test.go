package vector

import (
	"context"
	"testing"
)

func TestNewIndex_Memory(t *testing.T) {
	idx, err := NewIndex("memory", 3)
	if err != nil {
		t.Fatalf("NewIndex(memory): %v", err)
	}
	defer idx.Close()

	ctx := context.Background()
	if err := idx.Add(ctx, [][]float32{{1, 0, 0}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if idx.Size() != 1 {
		t.Errorf("Size=%d, want 1", idx.Size())
	}
	if idx.Type() != "memory" || idx.Dimensions() != 3 {
		t.Errorf("Type=%s Dimensions=%d", idx.Type(), idx.Dimensions())
	}
}

func TestNewIndex_Empty(t *testing.T) {
	idx, err := NewIndex("", 3)
	if err != nil {
		t.Fatalf("NewIndex(''): %v", err)
	}
	defer idx.Close()
	if idx.Size() != 0 {
		t.Errorf("Size=%d, want 0", idx.Size())
	}
}

func TestNewIndex_Unknown(t *testing.T) {
	if _, err := NewIndex("unknown", 3); err == nil {
		t.Error("expected error for unknown index type")
	}
}

func TestNewIndex_InvalidDimension(t *testing.T) {
	if _, err := NewIndex("memory", 0); err == nil {
		t.Error("expected error for zero dimension")
	}
}

func TestNewIndex_FAISS(t *testing.T) {
	if !IsFAISSAvailable() {
		t.Skip("FAISS not available (build with -tags=faiss)")
	}
	idx, err := NewIndex("faiss", 2)
	if err != nil {
		t.Fatalf("NewIndex(faiss): %v", err)
	}
	defer idx.Close()

	ctx := context.Background()
	if err := idx.Add(ctx, [][]float32{{0, 0}, {3, 4}, {1, 1}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	results, err := idx.Search(ctx, []float32{3, 4}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].Ordinal != 1 {
		t.Fatalf("unexpected results %+v", results)
	}
	if err := idx.Truncate(1); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 1 {
		t.Errorf("Size after truncate = %d", idx.Size())
	}
}

func TestNewIndexWithFallback(t *testing.T) {
	idx, err := NewIndexWithFallback("faiss", 4, nil)
	if err != nil {
		t.Fatalf("NewIndexWithFallback(faiss): %v", err)
	}
	defer idx.Close()
	want := "memory"
	if IsFAISSAvailable() {
		want = "faiss"
	}
	if idx.Type() != want || idx.Dimensions() != 4 {
		t.Errorf("Type=%s Dimensions=%d, want %s/4", idx.Type(), idx.Dimensions(), want)
	}

	if _, err := NewIndexWithFallback("annoy", 4, nil); err == nil {
		t.Error("unknown type should not fall back")
	}
	if _, err := NewIndexWithFallback("memory", 0, nil); err == nil {
		t.Error("invalid dimension should not fall back")
	}
}
