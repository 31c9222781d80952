package llm

import (
	"context"
	"sync"
)

// Static returns a fixed response or error. It backs `provider: static` for offline runs and tests.
type Static struct {
	Response string
	Err      error

	mu      sync.Mutex
	prompts []string
}

// Generate records the prompt and returns the configured result.
func (s *Static) Generate(ctx context.Context, req Request) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, req.Prompt)
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", classify(ctx, "static", err)
	}
	if s.Err != nil {
		return "", s.Err
	}
	return s.Response, nil
}

// Prompts returns every prompt seen so far.
func (s *Static) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}
