package vector

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryIndex_AddSearch(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	}
	if err := idx.Add(ctx, vecs); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 {
		t.Errorf("Size=%d", idx.Size())
	}

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Ordinal != 0 {
		t.Errorf("top result should be ordinal 0, got %d", results[0].Ordinal)
	}
	if results[0].Distance > 1e-6 {
		t.Errorf("exact match distance = %f, want 0", results[0].Distance)
	}
	if results[1].Ordinal != 1 {
		t.Errorf("second result should be ordinal 1, got %d", results[1].Ordinal)
	}
}

func TestMemoryIndex_SearchAscendingAndBounded(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, [][]float32{{5, 5}, {1, 1}, {3, 3}, {0, 0}, {4, 4}})
	for k := 0; k <= 7; k++ {
		results, err := idx.Search(ctx, []float32{0, 0}, k)
		if err != nil {
			t.Fatal(err)
		}
		want := k
		if want > 5 {
			want = 5
		}
		if len(results) != want {
			t.Errorf("k=%d: got %d results, want %d", k, len(results), want)
		}
		for i := 1; i < len(results); i++ {
			if results[i].Distance < results[i-1].Distance {
				t.Errorf("k=%d: results not ascending at %d", k, i)
			}
		}
	}
}

func TestMemoryIndex_EmptySearch(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	results, err := idx.Search(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestMemoryIndex_DimensionMismatch(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	if err := idx.Add(ctx, [][]float32{{1, 0}, {1, 0, 0}}); err == nil {
		t.Error("expected error for mismatched vector")
	}
	if idx.Size() != 0 {
		t.Errorf("partial add leaked %d vectors", idx.Size())
	}
	if _, err := idx.Search(ctx, []float32{1}, 1); err == nil {
		t.Error("expected error for mismatched query")
	}
}

func TestMemoryIndex_Truncate(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, [][]float32{{1, 0}, {0, 1}, {1, 1}})
	if err := idx.Truncate(1); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 1 {
		t.Errorf("expected size 1, got %d", idx.Size())
	}
	if err := idx.Truncate(5); err == nil {
		t.Error("expected error truncating beyond size")
	}
}

func TestMemoryIndex_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "vectors.idx")
	ctx := context.Background()
	idx, _ := NewMemoryIndex(3)
	_ = idx.Add(ctx, [][]float32{{1, 2, 3}, {-1, 0.5, 2}})
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, _ := NewMemoryIndex(3)
	if err := loaded.Load(path); err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != 2 {
		t.Fatalf("loaded size %d, want 2", loaded.Size())
	}
	a, _ := idx.Search(ctx, []float32{0, 0, 1}, 2)
	b, _ := loaded.Search(ctx, []float32{0, 0, 1}, 2)
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("result %d differs after reload: %+v vs %+v", i, a[i], b[i])
		}
	}

	wrongDim, _ := NewMemoryIndex(4)
	if err := wrongDim.Load(path); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestMemoryIndex_LoadMissingFile(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	if err := idx.Load(filepath.Join(t.TempDir(), "missing.idx")); err != nil {
		t.Errorf("missing file should be ignored: %v", err)
	}
	if idx.Size() != 0 {
		t.Errorf("Size=%d", idx.Size())
	}
}

func TestMemoryIndex_LoadRejectsBadCount(t *testing.T) {
	tests := []struct {
		name  string
		count uint32
		body  int
	}{
		{"huge count, header only", 0xFFFFFFF0, 0},
		{"truncated body", 3, 2 * 16 * 4},
		{"trailing bytes", 1, 2 * 16 * 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := make([]byte, 8+tt.body)
			binary.LittleEndian.PutUint32(data[0:4], 16)
			binary.LittleEndian.PutUint32(data[4:8], tt.count)
			path := filepath.Join(t.TempDir(), "vectors.idx")
			if err := os.WriteFile(path, data, 0644); err != nil {
				t.Fatal(err)
			}
			idx, _ := NewMemoryIndex(16)
			if err := idx.Load(path); err == nil {
				t.Error("expected error for mismatched count")
			}
			if idx.Size() != 0 {
				t.Errorf("Size=%d, index should be unchanged", idx.Size())
			}
		})
	}
}
