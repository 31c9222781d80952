//go:build gosseract && cgo

package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TesseractRecognizer runs libtesseract in-process through gosseract.
type TesseractRecognizer struct {
	languages []string
}

// NewTesseractRecognizer returns a recognizer for the given languages (default "eng").
func NewTesseractRecognizer(languages []string) (*TesseractRecognizer, error) {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &TesseractRecognizer{languages: languages}, nil
}

// IsTesseractAvailable reports whether the libtesseract backend is compiled in.
func IsTesseractAvailable() bool { return true }

// Name returns the backend name.
func (r *TesseractRecognizer) Name() string { return "gosseract" }

type recognizeResult struct {
	text string
	err  error
}

// Recognize returns the text in img. A client is created per call; gosseract clients are not
// safe for concurrent use. libtesseract cannot be interrupted, so on cancellation the call
// returns immediately and the worker finishes in the background.
func (r *TesseractRecognizer) Recognize(ctx context.Context, img []byte) (string, error) {
	done := make(chan recognizeResult, 1)
	go func() {
		c := gosseract.NewClient()
		defer c.Close()
		if err := c.SetLanguage(r.languages...); err != nil {
			done <- recognizeResult{err: fmt.Errorf("set languages: %w", err)}
			return
		}
		if err := c.SetImageFromBytes(img); err != nil {
			done <- recognizeResult{err: fmt.Errorf("set image: %w", err)}
			return
		}
		text, err := c.Text()
		if err != nil {
			done <- recognizeResult{err: fmt.Errorf("recognize text: %w", err)}
			return
		}
		done <- recognizeResult{text: strings.TrimSpace(text)}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		return res.text, res.err
	}
}
