package fields

import (
	"context"
	"testing"

	"github.com/hyperjump/docreader/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractor_Parsed(t *testing.T) {
	gen := &llm.Static{Response: "Here: {\"loanNumber\":\"L-9\",\"principal\":5000,\"status\":\"active\",\"confidence\":0.8} done"}
	res, err := NewExtractor(gen).Extract(context.Background(), "LOAN L-9", "loan_agreement")
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.Equal(t, "L-9", res.Fields["loanNumber"])
	assert.Empty(t, res.Warnings)
	require.Len(t, gen.Prompts(), 1)
	assert.Contains(t, gen.Prompts()[0], "LOAN L-9")
}

func TestExtractor_NoJSONDegrades(t *testing.T) {
	gen := &llm.Static{Response: "I'm sorry, I can't read this document."}
	res, err := NewExtractor(gen).Extract(context.Background(), "???", "statement")
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, Degraded(), res.Fields)
}

func TestExtractor_SchemaWarning(t *testing.T) {
	gen := &llm.Static{Response: `{"accountNumber":"123"}`}
	res, err := NewExtractor(gen).Extract(context.Background(), "x", "statement")
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.Len(t, res.Warnings, 1)
	assert.Equal(t, "123", res.Fields["accountNumber"])
}

func TestExtractor_GeneratorError(t *testing.T) {
	gen := &llm.Static{Err: llm.ErrUnavailable}
	_, err := NewExtractor(gen).Extract(context.Background(), "x", "invoice")
	assert.ErrorIs(t, err, llm.ErrUnavailable)

	res, err := NewExtractor(gen, WithDegradeOnError(true)).Extract(context.Background(), "x", "invoice")
	require.NoError(t, err)
	assert.True(t, res.Degraded)
}
