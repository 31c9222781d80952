// Package vector provides append-only vector indexes with Euclidean (L2) nearest-neighbor search.
package vector

import "context"

// Index stores vectors at consecutive ordinals (0, 1, 2, ...) and answers k-nearest-neighbor queries.
// Ordinals are assigned in insertion order and never change; the only removal is Truncate.
type Index interface {
	Add(ctx context.Context, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]Neighbor, error)
	// Truncate drops every vector at ordinal >= n.
	Truncate(n int) error
	Save(path string) error
	Load(path string) error
	Size() int
	Dimensions() int
	Type() string
	Close() error
}

// Neighbor is a single search hit: the ordinal of the stored vector and its L2 distance to the query.
type Neighbor struct {
	Ordinal  int
	Distance float64
}
