//go:build !cgo

package ocr

import (
	"context"
	"fmt"
)

// FitzRasterizer is a stub when built without cgo.
type FitzRasterizer struct{}

// NewFitzRasterizer returns an error when built without cgo.
func NewFitzRasterizer(dpi int) (*FitzRasterizer, error) {
	return nil, fmt.Errorf("mupdf rasterizer not available (build with cgo)")
}

// IsFitzAvailable reports whether the MuPDF backend is compiled in.
func IsFitzAvailable() bool { return false }

// Name returns the backend name.
func (r *FitzRasterizer) Name() string { return "mupdf" }

// RenderPages is not implemented in the stub.
func (r *FitzRasterizer) RenderPages(ctx context.Context, pdf []byte) ([][]byte, error) {
	return nil, fmt.Errorf("mupdf rasterizer not available")
}
