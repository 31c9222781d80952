package vector

import (
	"fmt"

	"github.com/hyperjump/docreader/pkg/utils"
	"go.uber.org/zap"
)

// IndexType names a vector backend in configuration.
type IndexType string

const (
	// IndexTypeMemory is the flat in-process backend persisted as a little-endian blob.
	IndexTypeMemory IndexType = "memory"
	// IndexTypeFAISS is a FAISS IndexFlatL2. Requires -tags=faiss and libfaiss_c.
	IndexTypeFAISS IndexType = "faiss"
)

// NewIndex creates an empty index of the given type. "" means memory.
func NewIndex(indexType string, dimensions int) (Index, error) {
	switch IndexType(indexType) {
	case IndexTypeMemory, "":
		return NewMemoryIndex(dimensions)
	case IndexTypeFAISS:
		idx, err := NewFAISSIndex(dimensions)
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown index type %q (supported: memory, faiss)", indexType)
	}
}

// NewIndexWithFallback is NewIndex, except that a backend which cannot be built
// (FAISS not compiled in, library missing) is replaced by the memory backend.
// An unknown type or an invalid dimension is still an error.
func NewIndexWithFallback(indexType string, dimensions int, logger *zap.Logger) (Index, error) {
	idx, err := NewIndex(indexType, dimensions)
	if err == nil {
		return idx, nil
	}
	if IndexType(indexType) != IndexTypeFAISS {
		return nil, fmt.Errorf("vector index: %w", err)
	}
	utils.OrNop(logger).Warn("vector backend unavailable, falling back to memory",
		zap.String("requested_type", indexType),
		zap.Error(err))
	return NewMemoryIndex(dimensions)
}

// IsFAISSAvailable reports whether the FAISS backend can be built in this binary.
func IsFAISSAvailable() bool {
	idx, err := NewFAISSIndex(1)
	if err != nil {
		return false
	}
	_ = idx.Close()
	return true
}
