package execrun

import (
	"context"
	"strings"
	"sync"
)

// Call records one invocation seen by a Fake.
type Call struct {
	Name  string
	Args  []string
	Stdin []byte
}

// Fake is a scripted Runner for tests. Func decides the result of each call.
type Fake struct {
	Func func(ctx context.Context, call Call) (stdout, stderr []byte, err error)

	mu    sync.Mutex
	calls []Call
}

// Run records the call and delegates to Func. A nil Func returns empty output.
func (f *Fake) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, []byte, error) {
	call := Call{Name: name, Args: append([]string(nil), args...), Stdin: stdin}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	if f.Func == nil {
		return nil, nil, nil
	}
	return f.Func(ctx, call)
}

// Calls returns a copy of the recorded invocations.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// String renders the call as a command line.
func (c Call) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}
