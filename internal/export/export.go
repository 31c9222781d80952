// Package export writes stored records to an XLSX workbook.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hyperjump/docreader/internal/models"
	"github.com/hyperjump/docreader/pkg/utils"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// SheetName is the worksheet holding one row per record.
const SheetName = "Documents"

// previewChars caps the text column; Excel cells hold at most 32767 characters.
const previewChars = 1000

var headers = []string{"ID", "Created At", "Filename", "Doc Type", "Status", "Confidence", "Extracted Fields", "Text"}

// RecordSource iterates stored records.
type RecordSource interface {
	ForEachRecord(ctx context.Context, fn func(*models.Record) error) error
}

// Filter narrows an export. Zero values match everything.
type Filter struct {
	DocType string
	From    time.Time
	To      time.Time
}

func (f Filter) match(r *models.Record) bool {
	if f.DocType != "" && r.DocType != f.DocType {
		return false
	}
	if !f.From.IsZero() && r.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.CreatedAt.After(f.To) {
		return false
	}
	return true
}

// Exporter builds workbooks from a record source.
type Exporter struct {
	src    RecordSource
	logger *zap.Logger
}

// NewExporter creates an Exporter.
func NewExporter(src RecordSource, logger *zap.Logger) *Exporter {
	return &Exporter{src: src, logger: utils.OrNop(logger)}
}

// WriteXLSX returns the workbook bytes and the number of records written.
func (e *Exporter) WriteXLSX(ctx context.Context, filter Filter) ([]byte, int, error) {
	start := time.Now()
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, 0, fmt.Errorf("rename sheet: %w", err)
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return nil, 0, err
		}
	}

	row := 2
	err := e.src.ForEachRecord(ctx, func(r *models.Record) error {
		if !filter.match(r) {
			return nil
		}
		status, confidence := summarize(r.ExtractedJSON)
		values := []any{
			r.ID,
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.Filename,
			r.DocType,
			status,
			confidence,
			r.ExtractedJSON,
			utils.TruncateRunes(r.RawText, previewChars),
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return fmt.Errorf("write %s: %w", cell, err)
			}
		}
		row++
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("read records: %w", err)
	}

	_ = f.SetColWidth(SheetName, "A", "A", 38)
	_ = f.SetColWidth(SheetName, "B", "B", 22)
	_ = f.SetColWidth(SheetName, "C", "C", 30)
	_ = f.SetColWidth(SheetName, "D", "F", 14)
	_ = f.SetColWidth(SheetName, "G", "H", 60)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, 0, fmt.Errorf("xlsx write: %w", err)
	}
	n := row - 2
	e.logger.Info("export written", zap.Int("rows", n), zap.Duration("took", time.Since(start)))
	return buf.Bytes(), n, nil
}

// summarize reads status and confidence out of stored extracted JSON when present.
func summarize(extractedJSON string) (string, any) {
	var m map[string]any
	if err := json.Unmarshal([]byte(extractedJSON), &m); err != nil {
		return "", ""
	}
	status, _ := m["status"].(string)
	confidence, ok := m["confidence"]
	if !ok || confidence == nil {
		confidence = ""
	}
	return status, confidence
}
