// Package ocr turns uploaded documents into text: PDFs are rasterized page by page and every
// page image goes through a recognizer.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/docreader/pkg/utils"
	"go.uber.org/zap"
)

// DefaultDPI is the resolution PDF pages are rendered at before recognition.
const DefaultDPI = 200

// DefaultTimeout bounds the OCR of a whole document.
const DefaultTimeout = 5 * time.Minute

var (
	// ErrRasterize is returned when a PDF cannot be rendered to page images.
	ErrRasterize = errors.New("ocr: rasterize failed")
	// ErrRecognize is returned when text recognition fails on an image.
	ErrRecognize = errors.New("ocr: recognize failed")
)

// Rasterizer renders every page of a PDF to an encoded image, in page order.
type Rasterizer interface {
	RenderPages(ctx context.Context, pdf []byte) ([][]byte, error)
	Name() string
}

// Recognizer returns the text found in one encoded image.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
	Name() string
}

// Extraction methods reported in Result.Method.
const (
	MethodImageOCR  = "image-ocr"
	MethodPDFOCR    = "pdf-ocr"
	MethodTextLayer = "pdf-text-layer"
)

// Result is the text of one document.
type Result struct {
	Text   string
	Pages  int
	Method string
}

// Extractor composes a Rasterizer and a Recognizer.
type Extractor struct {
	rasterizer Rasterizer
	recognizer Recognizer
	timeout    time.Duration
	textLayer  bool
	logger     *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) { e.logger = utils.OrNop(l) }
}

// WithTimeout bounds ExtractText.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithTextLayer lets PDFs that carry an embedded text layer skip rasterization.
func WithTextLayer(enabled bool) Option {
	return func(e *Extractor) { e.textLayer = enabled }
}

// NewExtractor creates an Extractor.
func NewExtractor(rasterizer Rasterizer, recognizer Recognizer, opts ...Option) *Extractor {
	e := &Extractor{
		rasterizer: rasterizer,
		recognizer: recognizer,
		timeout:    DefaultTimeout,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IsPDF reports whether filename names a PDF by its suffix.
func IsPDF(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".pdf")
}

// ExtractText returns the text of content. PDFs (by filename suffix) are rendered page by page;
// anything else is recognized as a single image. Each page's text is followed by a newline.
func (e *Extractor) ExtractText(ctx context.Context, filename string, content []byte) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if !IsPDF(filename) {
		img, err := NormalizeImage(content)
		if err != nil {
			e.logger.Debug("image normalization skipped", zap.String("filename", filename), zap.Error(err))
			img = content
		}
		text, err := e.recognize(ctx, img, 1)
		if err != nil {
			return nil, err
		}
		return &Result{Text: text + "\n", Pages: 1, Method: MethodImageOCR}, nil
	}

	if e.textLayer {
		if text, pages, err := TextLayer(content); err == nil && strings.TrimSpace(text) != "" {
			e.logger.Debug("using embedded text layer", zap.String("filename", filename), zap.Int("pages", pages))
			return &Result{Text: text, Pages: pages, Method: MethodTextLayer}, nil
		}
	}

	start := time.Now()
	pages, err := e.rasterizer.RenderPages(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRasterize, e.rasterizer.Name(), err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: %s: no pages rendered", ErrRasterize, e.rasterizer.Name())
	}
	if want, err := PageCount(content); err == nil && want != len(pages) {
		return nil, fmt.Errorf("%w: %s: rendered %d of %d pages", ErrRasterize, e.rasterizer.Name(), len(pages), want)
	} else if err != nil {
		e.logger.Debug("page count unavailable", zap.String("filename", filename), zap.Error(err))
	}
	var b strings.Builder
	for i, page := range pages {
		text, err := e.recognize(ctx, page, i+1)
		if err != nil {
			return nil, err
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}
	e.logger.Debug("pdf recognized",
		zap.String("filename", filename),
		zap.Int("pages", len(pages)),
		zap.Duration("took", time.Since(start)))
	return &Result{Text: b.String(), Pages: len(pages), Method: MethodPDFOCR}, nil
}

func (e *Extractor) recognize(ctx context.Context, img []byte, page int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: page %d: %v", ErrRecognize, page, err)
	}
	text, err := e.recognizer.Recognize(ctx, img)
	if err != nil {
		return "", fmt.Errorf("%w: %s: page %d: %v", ErrRecognize, e.recognizer.Name(), page, err)
	}
	return text, nil
}
