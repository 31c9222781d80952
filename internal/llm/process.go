package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/docreader/internal/execrun"
	"github.com/hyperjump/docreader/pkg/utils"
	"go.uber.org/zap"
)

// ProcessConfig configures ProcessGenerator.
type ProcessConfig struct {
	// Command is the ollama binary. Default "ollama".
	Command string
	Model   string
	Timeout time.Duration
}

// ProcessGenerator runs `ollama run <model>` and writes the prompt to its stdin.
type ProcessGenerator struct {
	runner  execrun.Runner
	command string
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewProcessGenerator creates a generator that shells out through runner.
func NewProcessGenerator(cfg ProcessConfig, runner execrun.Runner, logger *zap.Logger) *ProcessGenerator {
	if cfg.Command == "" {
		cfg.Command = "ollama"
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &ProcessGenerator{
		runner:  runner,
		command: cfg.Command,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  utils.OrNop(logger),
	}
}

// Generate runs the model once. Invalid UTF-8 in the output is dropped.
func (g *ProcessGenerator) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := withTimeout(ctx, req, g.timeout)
	defer cancel()

	out, stderr, err := g.runner.Run(ctx, []byte(req.Prompt), g.command, "run", g.model)
	if err != nil {
		if msg := strings.TrimSpace(string(stderr)); msg != "" {
			err = fmt.Errorf("%w: %s", err, utils.Truncate(msg, 512))
		}
		return "", classify(ctx, g.command+" run", err)
	}
	return strings.ToValidUTF8(string(out), ""), nil
}
