package fields

import (
	"context"
	"time"

	"github.com/hyperjump/docreader/internal/llm"
	"github.com/hyperjump/docreader/pkg/utils"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single extraction call.
const DefaultTimeout = 120 * time.Second

// Result is the outcome of one extraction.
type Result struct {
	Fields map[string]any
	// Degraded is true when Fields is the unverified sentinel.
	Degraded bool
	// Warnings lists non-fatal schema violations.
	Warnings []string
	// Raw is the unparsed model output.
	Raw string
}

// Extractor asks a generator for the fields of a document.
type Extractor struct {
	gen            llm.Generator
	timeout        time.Duration
	degradeOnError bool
	logger         *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) { e.logger = utils.OrNop(l) }
}

// WithTimeout sets the per-call generation timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithDegradeOnError makes generator failures return the degraded sentinel instead of an error.
func WithDegradeOnError(v bool) Option {
	return func(e *Extractor) { e.degradeOnError = v }
}

// NewExtractor creates an Extractor over gen.
func NewExtractor(gen llm.Generator, opts ...Option) *Extractor {
	e := &Extractor{gen: gen, timeout: DefaultTimeout, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the fields found in text. A model reply that is not a JSON object yields the
// degraded sentinel and a nil error. Generator failures are returned as llm.ErrTimeout or
// llm.ErrUnavailable unless degrade-on-error is set.
func (e *Extractor) Extract(ctx context.Context, text, docType string) (*Result, error) {
	raw, err := e.gen.Generate(ctx, llm.Request{Prompt: BuildPrompt(text, docType), Timeout: e.timeout})
	if err != nil {
		if !e.degradeOnError {
			return nil, err
		}
		e.logger.Warn("generator failed, storing unverified fields", zap.String("doc_type", docType), zap.Error(err))
		return &Result{Fields: Degraded(), Degraded: true}, nil
	}

	fields, ok := LenientParse(raw)
	if !ok {
		e.logger.Warn("model output is not a JSON object",
			zap.String("doc_type", docType),
			zap.String("output", utils.Truncate(raw, 200)))
		return &Result{Fields: Degraded(), Degraded: true, Raw: raw}, nil
	}

	res := &Result{Fields: fields, Raw: raw}
	if err := Validate(docType, fields); err != nil {
		e.logger.Warn("extracted fields do not match schema", zap.String("doc_type", docType), zap.Error(err))
		res.Warnings = append(res.Warnings, err.Error())
	}
	return res, nil
}
