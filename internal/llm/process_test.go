package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hyperjump/docreader/internal/execrun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessGenerator_PromptOnStdin(t *testing.T) {
	fake := &execrun.Fake{Func: func(_ context.Context, c execrun.Call) ([]byte, []byte, error) {
		return []byte("answer \xff\xfeok"), nil, nil
	}}
	g := NewProcessGenerator(ProcessConfig{Model: "llama3.2"}, fake, nil)
	out, err := g.Generate(context.Background(), Request{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "answer ok", out)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "ollama run llama3.2", calls[0].String())
	assert.Equal(t, "hello", string(calls[0].Stdin))
}

func TestProcessGenerator_Failure(t *testing.T) {
	fake := &execrun.Fake{Func: func(_ context.Context, _ execrun.Call) ([]byte, []byte, error) {
		return nil, []byte("could not connect"), errors.New("exit status 1")
	}}
	_, err := NewProcessGenerator(ProcessConfig{}, fake, nil).Generate(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "could not connect")
}

func TestProcessGenerator_Timeout(t *testing.T) {
	fake := &execrun.Fake{Func: func(ctx context.Context, _ execrun.Call) ([]byte, []byte, error) {
		<-ctx.Done()
		return nil, nil, ctx.Err()
	}}
	g := NewProcessGenerator(ProcessConfig{Timeout: 20 * time.Millisecond}, fake, nil)
	_, err := g.Generate(context.Background(), Request{Prompt: "x"})
	assert.ErrorIs(t, err, ErrTimeout)
}
