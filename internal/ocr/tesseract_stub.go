//go:build !(gosseract && cgo)

package ocr

import (
	"context"
	"fmt"
)

// TesseractRecognizer is a stub when built without the gosseract tag.
type TesseractRecognizer struct{}

// NewTesseractRecognizer returns an error when libtesseract is not compiled in.
func NewTesseractRecognizer(languages []string) (*TesseractRecognizer, error) {
	return nil, fmt.Errorf("gosseract recognizer not available (build with -tags gosseract)")
}

// IsTesseractAvailable reports whether the libtesseract backend is compiled in.
func IsTesseractAvailable() bool { return false }

// Name returns the backend name.
func (r *TesseractRecognizer) Name() string { return "gosseract" }

// Recognize is not implemented in the stub.
func (r *TesseractRecognizer) Recognize(ctx context.Context, img []byte) (string, error) {
	return "", fmt.Errorf("gosseract recognizer not available")
}
