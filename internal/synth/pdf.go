package synth

import (
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
)

// Layout of the generated pages, in points on US Letter.
const (
	maxLineChars = 120
	marginLeft   = 40.0
	marginTop    = 42.0
	lineHeight   = 15.0
	fontSize     = 9.0
)

// WritePDF lays text out one line per row, cutting lines at 120 characters and starting a
// new page when the current one is full. It returns the page count.
func WritePDF(text, path string) (int, error) {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetFont("Helvetica", "", fontSize)
	pdf.SetMargins(marginLeft, marginTop, marginLeft)
	pdf.SetAutoPageBreak(false, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	_, pageHeight := pdf.GetPageSize()
	bottom := pageHeight - marginTop

	pdf.AddPage()
	y := marginTop
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if y+lineHeight > bottom {
			pdf.AddPage()
			y = marginTop
		}
		pdf.Text(marginLeft, y, tr(truncateLine(line)))
		y += lineHeight
	}
	pages := pdf.PageCount()
	if err := pdf.OutputFileAndClose(path); err != nil {
		return 0, fmt.Errorf("write pdf %s: %w", path, err)
	}
	return pages, nil
}

func truncateLine(line string) string {
	r := []rune(line)
	if len(r) <= maxLineChars {
		return line
	}
	return string(r[:maxLineChars])
}
