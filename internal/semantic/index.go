// Package semantic keeps the nearest-neighbor index over document text: one embedding per
// document at ordinal i of the vector index, and its metadata at ordinal i of a side-car list.
//
// Every mutation is serialized by a single writer lock and persisted before it returns.
// Search holds the read lock, so it waits for an in-flight Add and never sees a half-applied one.
// Metadata is resident in memory; the memory vector backend scans every vector per query.
package semantic

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hyperjump/docreader/internal/embedding"
	"github.com/hyperjump/docreader/internal/models"
	"github.com/hyperjump/docreader/internal/vector"
	"github.com/hyperjump/docreader/pkg/utils"
	"go.uber.org/zap"
)

// PreviewChars is the length of the text preview stored with each entry.
const PreviewChars = 500

var (
	// ErrCorrupt is returned by Open when the persisted pair is inconsistent. It is fatal.
	ErrCorrupt = errors.New("semantic index: corrupt on disk")
	// ErrEmbedding is returned when the embedder fails.
	ErrEmbedding = errors.New("semantic index: embedding failed")
	// ErrPersist is returned when an add cannot be made durable. The add is rolled back.
	ErrPersist = errors.New("semantic index: persist failed")
	// ErrSearch is returned when the vector backend fails a query.
	ErrSearch = errors.New("semantic index: search failed")
)

// Index is the semantic index. It is safe for concurrent use.
type Index struct {
	dir      string
	embedder embedding.Embedder
	vectors  vector.Index
	logger   *zap.Logger

	mu   sync.RWMutex
	meta []models.EntryMeta
	seq  uint64
	// broken is set when a failed add could not be rolled back in memory.
	broken bool
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(i *Index) { i.logger = utils.OrNop(l) }
}

// Open loads the index persisted in dir, or starts empty when nothing has been saved yet.
// vectors must be empty and sized to the embedder's dimension.
func Open(ctx context.Context, dir string, embedder embedding.Embedder, vectors vector.Index, opts ...Option) (*Index, error) {
	if embedder.Dimensions() != vectors.Dimensions() {
		return nil, fmt.Errorf("semantic index: embedder has %d dimensions, vector index %d",
			embedder.Dimensions(), vectors.Dimensions())
	}
	idx := &Index{
		dir:      dir,
		embedder: embedder,
		vectors:  vectors,
		logger:   zap.NewNop(),
		meta:     []models.EntryMeta{},
	}
	for _, opt := range opts {
		opt(idx)
	}
	if err := idx.load(); err != nil {
		return nil, err
	}
	idx.logger.Info("semantic index ready",
		zap.String("dir", dir),
		zap.String("backend", vectors.Type()),
		zap.Int("dimensions", vectors.Dimensions()),
		zap.Int("entries", len(idx.meta)))
	return idx, nil
}

// Add embeds text and appends it under docID. The new entry is on disk when Add returns nil.
func (i *Index) Add(ctx context.Context, docID, text, filename string) error {
	vec, err := i.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if len(vec) != i.vectors.Dimensions() {
		return fmt.Errorf("%w: got %d dimensions, expected %d", ErrEmbedding, len(vec), i.vectors.Dimensions())
	}
	entry := models.EntryMeta{DocID: docID, Filename: filename, Preview: utils.TruncateRunes(text, PreviewChars)}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.broken {
		return fmt.Errorf("%w: index needs a restart after a failed rollback", ErrPersist)
	}
	prev := len(i.meta)
	if err := i.vectors.Add(ctx, [][]float32{vec}); err != nil {
		return fmt.Errorf("%w: append vector: %v", ErrPersist, err)
	}
	i.meta = append(i.meta, entry)

	if err := i.persist(); err != nil {
		i.meta = i.meta[:prev]
		if terr := i.vectors.Truncate(prev); terr != nil {
			i.broken = true
			i.logger.Error("rollback of vector append failed", zap.String("doc_id", docID), zap.Error(terr))
		}
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	i.logger.Debug("indexed document", zap.String("doc_id", docID), zap.Int("ordinal", prev))
	return nil
}

// Search returns up to k entries nearest to query by L2 distance, nearest first.
// An empty index or k <= 0 yields an empty slice.
func (i *Index) Search(ctx context.Context, query string, k int) ([]models.SearchHit, error) {
	hits := []models.SearchHit{}
	if k <= 0 || i.Size() == 0 {
		return hits, nil
	}
	vec, err := i.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}

	i.mu.RLock()
	defer i.mu.RUnlock()
	neighbors, err := i.vectors.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearch, err)
	}
	for _, n := range neighbors {
		if n.Ordinal < 0 || n.Ordinal >= len(i.meta) {
			continue
		}
		hits = append(hits, models.SearchHit{Distance: n.Distance, Meta: i.meta[n.Ordinal]})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

// Size returns the number of entries.
func (i *Index) Size() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.meta)
}

// Dimensions returns the vector dimension.
func (i *Index) Dimensions() int {
	return i.vectors.Dimensions()
}

// Backend returns the vector backend type.
func (i *Index) Backend() string {
	return i.vectors.Type()
}

// Entries returns a copy of the metadata list in ordinal order.
func (i *Index) Entries() []models.EntryMeta {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return append([]models.EntryMeta(nil), i.meta...)
}

// Close releases the vector index. The on-disk snapshot is already current.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.vectors.Close()
}
