package llm

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited bounds how often the wrapped generator is called. Local models serve one
// request at a time, so bursts only queue up behind each other.
type RateLimited struct {
	next    Generator
	limiter *rate.Limiter
}

// NewRateLimited wraps next with a token bucket of perSecond requests and the given burst.
// A perSecond <= 0 returns next unchanged.
func NewRateLimited(next Generator, perSecond float64, burst int) Generator {
	if perSecond <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Generate waits for a token, then delegates.
func (r *RateLimited) Generate(ctx context.Context, req Request) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		// Wait refuses up front when the token would arrive after the deadline.
		if _, ok := ctx.Deadline(); ok && !errors.Is(ctx.Err(), context.Canceled) {
			return "", fmt.Errorf("%w: rate limiter: %v", ErrTimeout, err)
		}
		return "", classify(ctx, "rate limiter", fmt.Errorf("wait: %w", err))
	}
	return r.next.Generate(ctx, req)
}
