// Package keyword provides a Bleve full-text index over stored records. It is derived from the
// record store and can be rebuilt from it at any time.
package keyword

import (
	"context"

	"github.com/hyperjump/docreader/internal/models"
)

// SearchOptions are optional parameters for keyword search. Nil means defaults.
type SearchOptions struct {
	// FilenameBoost multiplies the score of filename matches. Values <= 1 disable the boost.
	FilenameBoost float64
	// Fuzzy matches terms within Fuzziness edits, which helps with OCR misreads.
	Fuzzy     bool
	Fuzziness int
	// DocType restricts results to one stored doc_type label.
	DocType string
}

// Result is a single keyword hit.
type Result struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// RecordIndex indexes records for keyword lookup.
type RecordIndex interface {
	IndexRecord(ctx context.Context, rec *models.Record) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]Result, error)
	Delete(ctx context.Context, id string) error
	DocCount() (uint64, error)
	Close() error
}
