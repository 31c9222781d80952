// Package models defines core data structures for document records, index entries, and search hits.
package models

import "time"

// Record is a processed document as persisted in the record store.
type Record struct {
	ID            string    `json:"id" db:"id"`
	Filename      string    `json:"filename" db:"filename"`
	DocType       string    `json:"doc_type" db:"doc_type"`
	RawText       string    `json:"raw_text" db:"raw_text"`
	ExtractedJSON string    `json:"extracted_json" db:"extracted_json"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// EntryMeta is the side-car metadata stored at the same ordinal as a vector in the semantic index.
type EntryMeta struct {
	DocID    string `json:"doc_id"`
	Filename string `json:"filename"`
	Preview  string `json:"preview"`
}

// SearchHit is a single semantic search result. Smaller distance means more similar.
type SearchHit struct {
	Distance float64   `json:"distance"`
	Meta     EntryMeta `json:"meta"`
}

// VerifyResult is returned to the caller after a document has been ingested.
type VerifyResult struct {
	ID              string         `json:"id"`
	Filename        string         `json:"filename"`
	DocType         string         `json:"doc_type"`
	FullText        string         `json:"full_text"`
	ExtractedFields map[string]any `json:"extracted_fields"`
}
