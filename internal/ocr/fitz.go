//go:build cgo

package ocr

import (
	"context"
	"fmt"

	"github.com/gen2brain/go-fitz"
)

// FitzRasterizer renders PDF pages with MuPDF.
type FitzRasterizer struct {
	dpi float64
}

// NewFitzRasterizer returns a MuPDF rasterizer rendering at dpi.
func NewFitzRasterizer(dpi int) (*FitzRasterizer, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &FitzRasterizer{dpi: float64(dpi)}, nil
}

// IsFitzAvailable reports whether the MuPDF backend is compiled in.
func IsFitzAvailable() bool { return true }

// Name returns the backend name.
func (r *FitzRasterizer) Name() string { return "mupdf" }

// RenderPages renders every page as PNG.
func (r *FitzRasterizer) RenderPages(ctx context.Context, pdf []byte) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	pages := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := doc.ImagePNG(i, r.dpi)
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", i+1, err)
		}
		pages = append(pages, img)
	}
	return pages, nil
}
