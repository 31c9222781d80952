package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/hyperjump/docreader/internal/execrun"
	"github.com/hyperjump/docreader/pkg/utils"
)

// PdftoppmRasterizer renders pages with poppler's pdftoppm.
type PdftoppmRasterizer struct {
	runner  execrun.Runner
	command string
	dpi     int
}

// NewPdftoppmRasterizer returns a rasterizer that runs command (default "pdftoppm") at dpi.
func NewPdftoppmRasterizer(runner execrun.Runner, command string, dpi int) *PdftoppmRasterizer {
	if command == "" {
		command = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &PdftoppmRasterizer{runner: runner, command: command, dpi: dpi}
}

// Name returns the backend name.
func (r *PdftoppmRasterizer) Name() string { return "pdftoppm" }

// RenderPages writes pdf to a scratch directory and collects the PNG pages pdftoppm produces.
func (r *PdftoppmRasterizer) RenderPages(ctx context.Context, pdf []byte) ([][]byte, error) {
	dir, err := os.MkdirTemp("", "docreader-pp-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in.pdf")
	if err := os.WriteFile(in, pdf, 0600); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	prefix := filepath.Join(dir, "page")
	_, stderr, err := r.runner.Run(ctx, nil, r.command, "-r", strconv.Itoa(r.dpi), "-png", in, prefix)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", r.command, err, utils.Truncate(strings.TrimSpace(string(stderr)), 512))
	}

	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	sort.Slice(matches, func(i, j int) bool { return pageNumber(matches[i]) < pageNumber(matches[j]) })
	pages := make([][]byte, 0, len(matches))
	for _, m := range matches {
		b, err := os.ReadFile(m)
		if err != nil {
			return nil, fmt.Errorf("read page: %w", err)
		}
		pages = append(pages, b)
	}
	return pages, nil
}

// pageNumber parses the N out of ".../page-N.png". pdftoppm pads N to the width of the page count.
func pageNumber(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), ".png")
	i := strings.LastIndexByte(base, '-')
	n, err := strconv.Atoi(base[i+1:])
	if err != nil {
		return 0
	}
	return n
}

// TesseractCLIRecognizer runs the tesseract binary with the image on stdin.
type TesseractCLIRecognizer struct {
	runner      execrun.Runner
	command     string
	languages   string
	tessdataDir string
}

// NewTesseractCLIRecognizer returns a recognizer that runs command (default "tesseract").
func NewTesseractCLIRecognizer(runner execrun.Runner, command string, languages []string, tessdataDir string) *TesseractCLIRecognizer {
	if command == "" {
		command = "tesseract"
	}
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &TesseractCLIRecognizer{
		runner:      runner,
		command:     command,
		languages:   strings.Join(languages, "+"),
		tessdataDir: tessdataDir,
	}
}

// Name returns the backend name.
func (r *TesseractCLIRecognizer) Name() string { return "tesseract" }

// Recognize runs `tesseract stdin stdout -l <langs>`.
func (r *TesseractCLIRecognizer) Recognize(ctx context.Context, img []byte) (string, error) {
	args := []string{"stdin", "stdout", "-l", r.languages}
	if r.tessdataDir != "" {
		args = append(args, "--tessdata-dir", r.tessdataDir)
	}
	out, stderr, err := r.runner.Run(ctx, img, r.command, args...)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %s", r.command, err, utils.Truncate(strings.TrimSpace(string(stderr)), 512))
	}
	return strings.TrimSpace(string(out)), nil
}
