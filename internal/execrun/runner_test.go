package execrun

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunner_Stdin(t *testing.T) {
	if runtime.GOOS == "windows" || !LookPath("cat") {
		t.Skip("cat not available")
	}
	r := NewExecRunner(nil)
	out, _, err := r.Run(context.Background(), []byte("hello"), "cat")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))
}

func TestExecRunner_ContextKills(t *testing.T) {
	if runtime.GOOS == "windows" || !LookPath("sleep") {
		t.Skip("sleep not available")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, _, err := NewExecRunner(nil).Run(ctx, nil, "sleep", "5")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestExecRunner_MissingBinary(t *testing.T) {
	_, _, err := NewExecRunner(nil).Run(context.Background(), nil, "docreader-no-such-binary")
	require.Error(t, err)
}

func TestFake(t *testing.T) {
	f := &Fake{Func: func(_ context.Context, c Call) ([]byte, []byte, error) {
		if c.Name == "fail" {
			return nil, []byte("boom"), errors.New("exit status 1")
		}
		return []byte("ok"), nil, nil
	}}
	out, _, err := f.Run(context.Background(), []byte("in"), "echo", "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(out))
	_, stderr, err := f.Run(context.Background(), nil, "fail")
	require.Error(t, err)
	assert.Equal(t, "boom", string(stderr))

	calls := f.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "echo a b", calls[0].String())
	assert.Equal(t, []byte("in"), calls[0].Stdin)
}
