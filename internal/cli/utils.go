// Package cli provides output formatting and an HTTP client for the docreader CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hyperjump/docreader/internal/models"
	"github.com/hyperjump/docreader/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
	// OutputCompact prints one line per result.
	OutputCompact OutputFormat = "compact"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON, OutputCompact:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

// StatusConfig is the configuration block of a status report.
type StatusConfig struct {
	VectorIndexType     string `json:"vector_index_type"`
	EmbeddingDimensions int    `json:"embedding_dimensions,omitempty"`
	SearchDefaultK      int    `json:"search_default_k,omitempty"`
	SearchMaxK          int    `json:"search_max_k,omitempty"`
}

// Status is the shape of GET /api/status.
type Status struct {
	Documents         int64         `json:"documents"`
	SemanticIndexSize int           `json:"semantic_index_size"`
	KeywordIndexSize  *uint64       `json:"keyword_index_size,omitempty"`
	DiskUsageBytes    *int64        `json:"disk_usage_bytes,omitempty"`
	Config            *StatusConfig `json:"config,omitempty"`
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchHits writes semantic search hits to w in the given format.
func WriteSearchHits(w io.Writer, query string, hits []models.SearchHit, format OutputFormat) error {
	switch format {
	case OutputJSON:
		if hits == nil {
			hits = []models.SearchHit{}
		}
		return writeJSON(w, hits)
	case OutputCompact:
		for i, h := range hits {
			fmt.Fprintf(w, "%d\t%.4f\t%s\t%s\t%s\n", i+1, h.Distance, h.Meta.DocID, h.Meta.Filename, oneLine(h.Meta.Preview, 80))
		}
		return nil
	default:
		fmt.Fprintf(w, "\nFound %d results for %q (smaller distance = closer)\n\n", len(hits), query)
		for i, h := range hits {
			fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
			fmt.Fprintf(w, "Rank: %d | Distance: %.4f\n", i+1, h.Distance)
			fmt.Fprintf(w, "ID: %s\n", h.Meta.DocID)
			fmt.Fprintf(w, "File: %s\n", h.Meta.Filename)
			fmt.Fprintf(w, "\n%s\n\n", Truncate(h.Meta.Preview, 200))
		}
		return nil
	}
}

// WriteVerifyResult writes a verification result to w in the given format.
func WriteVerifyResult(w io.Writer, res *models.VerifyResult, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, res)
	case OutputCompact:
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", res.ID, res.Filename, res.DocType, fieldStatus(res.ExtractedFields))
		return nil
	default:
		fmt.Fprintf(w, "ID:       %s\n", res.ID)
		fmt.Fprintf(w, "File:     %s\n", res.Filename)
		fmt.Fprintf(w, "Type:     %s\n", res.DocType)
		fmt.Fprintf(w, "Status:   %s\n", fieldStatus(res.ExtractedFields))
		fmt.Fprintf(w, "Text:     %d characters\n", utils.RuneLen(res.FullText))
		keys := make([]string, 0, len(res.ExtractedFields))
		for k := range res.ExtractedFields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if len(keys) > 0 {
			fmt.Fprintln(w, "\nExtracted fields:")
		}
		for _, k := range keys {
			v, _ := json.Marshal(res.ExtractedFields[k])
			fmt.Fprintf(w, "  %-22s %s\n", k+":", Truncate(string(v), 120))
		}
		return nil
	}
}

// WriteStatus writes a status report to w. Compact is treated as text.
func WriteStatus(w io.Writer, s *Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	fmt.Fprintf(w, "documents:            %d   # records in the record store\n", s.Documents)
	fmt.Fprintf(w, "semantic_index_size:  %d   # vectors in the semantic index\n", s.SemanticIndexSize)
	if s.KeywordIndexSize != nil {
		fmt.Fprintf(w, "keyword_index_size:   %d   # records in the keyword index\n", *s.KeywordIndexSize)
	}
	if s.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:     %d   # storage + indices on disk\n", *s.DiskUsageBytes)
	}
	if s.Config != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		fmt.Fprintf(w, "vector_index_type:    %s\n", s.Config.VectorIndexType)
		if s.Config.EmbeddingDimensions > 0 {
			fmt.Fprintf(w, "embedding_dims:       %d\n", s.Config.EmbeddingDimensions)
		}
		if s.Config.SearchMaxK > 0 {
			fmt.Fprintf(w, "search_k:             %d (max %d)\n", s.Config.SearchDefaultK, s.Config.SearchMaxK)
		}
	}
	return nil
}

func fieldStatus(fields map[string]any) string {
	if s, ok := fields["status"].(string); ok && s != "" {
		return s
	}
	return "extracted"
}

func oneLine(s string, maxLen int) string {
	return Truncate(strings.Join(strings.Fields(s), " "), maxLen)
}

// Truncate shortens s to maxLen characters and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utils.RuneLen(s) <= maxLen {
		return s
	}
	return utils.TruncateRunes(s, maxLen) + "..."
}
