package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSized(t *testing.T, path string, n int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, n), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "documents.db")
	writeSized(t, db, 4096)
	writeSized(t, db+"-wal", 512)
	index := filepath.Join(dir, "semantic")
	writeSized(t, filepath.Join(index, "CURRENT"), 7)
	writeSized(t, filepath.Join(index, "snap-000001", "vectors.idx"), 100)
	writeSized(t, filepath.Join(index, "snap-000001", "meta.json"), 20)
	kw := filepath.Join(dir, "keyword.bleve")
	writeSized(t, filepath.Join(kw, "store", "root.bolt"), 64)

	tests := []struct {
		name  string
		paths []string
		want  int64
	}{
		{"database with wal, shm missing", DatabaseFiles(db), 4608},
		{"snapshot tree", []string{index}, 127},
		{"everything", append([]string{index, kw}, DatabaseFiles(db)...), 4799},
		{"missing and empty paths count as zero", []string{"", filepath.Join(dir, "nope")}, 0},
		{"no paths", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DiskUsageBytes(tt.paths...)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("DiskUsageBytes = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDatabaseFiles(t *testing.T) {
	got := DatabaseFiles("/data/records.db")
	want := []string{"/data/records.db", "/data/records.db-wal", "/data/records.db-shm"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if DatabaseFiles("") != nil {
		t.Error("empty path should return nil")
	}
}
