// Package synth produces synthetic sample documents: a model writes the text and it is laid
// out as a plain PDF.
package synth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/docreader/internal/llm"
	"github.com/hyperjump/docreader/pkg/utils"
	"go.uber.org/zap"
)

// ErrInvalidKind is returned when kind cannot be used in a file name.
var ErrInvalidKind = errors.New("synth: invalid document kind")

var kindPattern = regexp.MustCompile(`^[a-z0-9_-]{1,40}$`)

// DefaultKind is used when the caller does not name one.
const DefaultKind = "statement"

// DefaultTimeout bounds text generation for one document.
const DefaultTimeout = 120 * time.Second

// Generator writes synthetic PDFs into a directory.
type Generator struct {
	gen     llm.Generator
	outDir  string
	timeout time.Duration
	logger  *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) { g.logger = utils.OrNop(l) }
}

// WithTimeout bounds the model call.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// NewGenerator returns a Generator writing into outDir.
func NewGenerator(gen llm.Generator, outDir string, opts ...Option) *Generator {
	g := &Generator{gen: gen, outDir: outDir, timeout: DefaultTimeout, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ValidKind reports whether kind is usable.
func ValidKind(kind string) bool {
	return kindPattern.MatchString(kind)
}

// Prompt is the instruction sent to the model for kind.
func Prompt(kind string) string {
	return fmt.Sprintf(`
Generate a synthetic %s document as plain text.
Use realistic formatting and amounts.
Do NOT include any JSON. Output clean text only.
`, kind)
}

// Generate asks the model for a document of kind and writes it as
// <outDir>/synth_<kind>_<6 hex>.pdf. It returns the path written.
func (g *Generator) Generate(ctx context.Context, kind string) (string, error) {
	if kind == "" {
		kind = DefaultKind
	}
	if !ValidKind(kind) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	text, err := g.gen.Generate(ctx, llm.Request{Prompt: Prompt(kind), Timeout: g.timeout})
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(g.outDir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	id := strings.ReplaceAll(uuid.New().String(), "-", "")[:6]
	path := filepath.Join(g.outDir, fmt.Sprintf("synth_%s_%s.pdf", kind, id))
	pages, err := WritePDF(text, path)
	if err != nil {
		return "", err
	}
	g.logger.Info("synthetic document written",
		zap.String("kind", kind),
		zap.String("path", path),
		zap.Int("pages", pages))
	return path, nil
}
