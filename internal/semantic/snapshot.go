package semantic

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hyperjump/docreader/internal/models"
	"go.uber.org/zap"
)

// On-disk layout:
//
//	<dir>/CURRENT             name of the live snapshot, e.g. "snap-000000000007"
//	<dir>/snap-<seq>/vectors.idx
//	<dir>/snap-<seq>/meta.json
//
// A snapshot is written in full under a temporary name, renamed into place, and only then
// published by atomically replacing CURRENT. Readers never see a half-written pair.
const (
	currentFile  = "CURRENT"
	snapPrefix   = "snap-"
	tmpSuffix    = ".tmp"
	vectorsFile  = "vectors.idx"
	metadataFile = "meta.json"
)

func snapName(seq uint64) string {
	return fmt.Sprintf("%s%012d", snapPrefix, seq)
}

func parseSnapName(name string) (uint64, bool) {
	if !strings.HasPrefix(name, snapPrefix) || strings.HasSuffix(name, tmpSuffix) {
		return 0, false
	}
	seq, err := strconv.ParseUint(strings.TrimPrefix(name, snapPrefix), 10, 64)
	return seq, err == nil
}

// load reads the snapshot named by CURRENT. Called once from Open.
func (i *Index) load() error {
	if err := os.MkdirAll(i.dir, 0755); err != nil {
		return fmt.Errorf("semantic index: create dir: %w", err)
	}
	b, err := os.ReadFile(filepath.Join(i.dir, currentFile))
	if errors.Is(err, os.ErrNotExist) {
		i.removeStale("")
		return nil
	}
	if err != nil {
		return fmt.Errorf("semantic index: read %s: %w", currentFile, err)
	}
	name := strings.TrimSpace(string(b))
	seq, ok := parseSnapName(name)
	if !ok {
		return fmt.Errorf("%w: bad %s entry %q", ErrCorrupt, currentFile, name)
	}

	snapDir := filepath.Join(i.dir, name)
	vecPath := filepath.Join(snapDir, vectorsFile)
	metaPath := filepath.Join(snapDir, metadataFile)
	for _, p := range []string{vecPath, metaPath} {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrCorrupt, p, err)
		}
	}

	if err := i.vectors.Load(vecPath); err != nil {
		return fmt.Errorf("%w: load vectors: %v", ErrCorrupt, err)
	}
	mb, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("%w: read metadata: %v", ErrCorrupt, err)
	}
	var meta []models.EntryMeta
	if err := json.Unmarshal(mb, &meta); err != nil {
		return fmt.Errorf("%w: decode metadata: %v", ErrCorrupt, err)
	}
	if len(meta) != i.vectors.Size() {
		return fmt.Errorf("%w: %d vectors but %d metadata entries", ErrCorrupt, i.vectors.Size(), len(meta))
	}
	if meta == nil {
		meta = []models.EntryMeta{}
	}
	i.meta = meta
	i.seq = seq
	i.removeStale(name)
	return nil
}

// persist writes the current state as a new snapshot and publishes it. Caller holds the write lock.
func (i *Index) persist() error {
	seq := i.seq + 1
	name := snapName(seq)
	final := filepath.Join(i.dir, name)
	tmp := final + tmpSuffix

	if err := os.RemoveAll(tmp); err != nil {
		return fmt.Errorf("clear %s: %w", tmp, err)
	}
	if err := os.MkdirAll(tmp, 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := i.writeSnapshot(tmp); err != nil {
		_ = os.RemoveAll(tmp)
		return err
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.RemoveAll(tmp)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(i.dir, currentFile), []byte(name+"\n")); err != nil {
		_ = os.RemoveAll(final)
		return fmt.Errorf("publish snapshot: %w", err)
	}
	syncDir(i.dir)

	prev := i.seq
	i.seq = seq
	if prev > 0 {
		if err := os.RemoveAll(filepath.Join(i.dir, snapName(prev))); err != nil {
			i.logger.Warn("remove old snapshot", zap.Uint64("seq", prev), zap.Error(err))
		}
	}
	return nil
}

func (i *Index) writeSnapshot(dir string) error {
	if err := i.vectors.Save(filepath.Join(dir, vectorsFile)); err != nil {
		return fmt.Errorf("save vectors: %w", err)
	}
	b, err := json.Marshal(i.meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := writeFileSync(filepath.Join(dir, metadataFile), b); err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}
	return nil
}

// removeStale deletes every snapshot directory other than keep, including leftovers of
// interrupted writes.
func (i *Index) removeStale(keep string) {
	entries, err := os.ReadDir(i.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), snapPrefix) || e.Name() == keep {
			continue
		}
		if err := os.RemoveAll(filepath.Join(i.dir, e.Name())); err != nil {
			i.logger.Warn("remove stale snapshot", zap.String("name", e.Name()), zap.Error(err))
			continue
		}
		i.logger.Info("removed stale snapshot", zap.String("name", e.Name()))
	}
}

func writeFileSync(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + tmpSuffix
	if err := writeFileSync(tmp, data); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// syncDir flushes directory entries so renames survive a crash. Best effort.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
