// Package execrun runs external programs (pdftoppm, tesseract, ollama) so they can be stubbed in tests.
package execrun

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/hyperjump/docreader/pkg/utils"
	"go.uber.org/zap"
)

// maxLoggedStderr caps how much stderr ends up in a single log entry.
const maxLoggedStderr = 8 << 10

// Runner executes a command and returns its captured output.
type Runner interface {
	Run(ctx context.Context, stdin []byte, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with exec.CommandContext; the process is killed when ctx is done.
type ExecRunner struct {
	logger *zap.Logger
}

// NewExecRunner returns a Runner backed by os/exec.
func NewExecRunner(logger *zap.Logger) *ExecRunner {
	return &ExecRunner{logger: utils.OrNop(logger)}
}

// Run executes name with args, feeding stdin when non-nil.
func (r *ExecRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()
	r.logger.Debug("running command", zap.String("cmd", name), zap.String("args", strings.Join(args, " ")))

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	err := cmd.Run()
	dur := time.Since(start)
	if err != nil {
		r.logger.Error("exec failed",
			zap.String("cmd", name),
			zap.Int64("duration_ms", dur.Milliseconds()),
			zap.Error(err),
			zap.String("stderr", utils.Truncate(errb.String(), maxLoggedStderr)),
		)
	} else {
		r.logger.Debug("exec ok",
			zap.String("cmd", name),
			zap.Int64("duration_ms", dur.Milliseconds()),
			zap.Int("stdout_bytes", out.Len()),
			zap.Int("stderr_bytes", errb.Len()),
		)
	}
	return out.Bytes(), errb.Bytes(), err
}

// LookPath reports whether name resolves to an executable on PATH.
func LookPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
