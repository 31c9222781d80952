package ocr

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// TextLayer returns the embedded text of a digital PDF, one newline after each page, and the
// page count. Scanned PDFs return empty text.
func TextLayer(content []byte) (text string, pages int, err error) {
	defer recoverParse(&err)
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", 0, fmt.Errorf("open PDF: %w", err)
	}
	var buf bytes.Buffer
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", 0, fmt.Errorf("extract page %d: %w", i, err)
		}
		buf.WriteString(pageText)
		buf.WriteByte('\n')
	}
	return buf.String(), numPages, nil
}

// PageCount returns the number of pages declared by a PDF's page tree. The extractor checks
// the rasterizer's output against it so a renderer that drops pages fails loudly.
func PageCount(content []byte) (n int, err error) {
	defer recoverParse(&err)
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return 0, fmt.Errorf("open PDF: %w", err)
	}
	return r.NumPage(), nil
}

// recoverParse turns a panic inside the PDF parser, which malformed input can trigger, into an error.
func recoverParse(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("parse PDF: %v", r)
	}
}
