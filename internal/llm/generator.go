// Package llm provides text generation backends used for field extraction and synthetic documents.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout is returned when generation does not finish before its deadline.
	ErrTimeout = errors.New("llm: generation timed out")
	// ErrUnavailable is returned for any other generator failure.
	ErrUnavailable = errors.New("llm: generator unavailable")
)

// Request is one generation call.
type Request struct {
	Prompt string
	// Timeout bounds the call. Zero means the generator's default.
	Timeout time.Duration
}

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// withTimeout derives the context for a single call.
func withTimeout(ctx context.Context, req Request, def time.Duration) (context.Context, context.CancelFunc) {
	d := req.Timeout
	if d <= 0 {
		d = def
	}
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// classify wraps err with ErrTimeout or ErrUnavailable.
func classify(ctx context.Context, backend string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", ErrTimeout, backend, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, backend, err)
}
