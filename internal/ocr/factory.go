package ocr

import (
	"fmt"

	"github.com/hyperjump/docreader/internal/execrun"
	"github.com/hyperjump/docreader/pkg/utils"
	"go.uber.org/zap"
)

// Backend names accepted by the factories.
const (
	BackendAuto      = "auto"
	BackendMuPDF     = "mupdf"
	BackendPdftoppm  = "pdftoppm"
	BackendGosseract = "gosseract"
	BackendTesseract = "tesseract"
)

// BackendConfig selects and configures the OCR backends.
type BackendConfig struct {
	Rasterizer    string
	Recognizer    string
	DPI           int
	Languages     []string
	PdftoppmPath  string
	TesseractPath string
	TessdataDir   string
}

// NewRasterizer builds the configured rasterizer. "auto" and "mupdf" fall back to pdftoppm
// with a warning when MuPDF is not compiled in.
func NewRasterizer(cfg BackendConfig, runner execrun.Runner, logger *zap.Logger) (Rasterizer, error) {
	logger = utils.OrNop(logger)
	switch cfg.Rasterizer {
	case "", BackendAuto, BackendMuPDF:
		r, err := NewFitzRasterizer(cfg.DPI)
		if err == nil {
			return r, nil
		}
		if cfg.Rasterizer == BackendMuPDF {
			logger.Warn("mupdf not available, falling back to pdftoppm", zap.Error(err))
		}
		return NewPdftoppmRasterizer(runner, cfg.PdftoppmPath, cfg.DPI), nil
	case BackendPdftoppm:
		return NewPdftoppmRasterizer(runner, cfg.PdftoppmPath, cfg.DPI), nil
	default:
		return nil, fmt.Errorf("unknown rasterizer %q", cfg.Rasterizer)
	}
}

// NewRecognizer builds the configured recognizer. "auto" and "gosseract" fall back to the
// tesseract CLI with a warning when libtesseract is not compiled in.
func NewRecognizer(cfg BackendConfig, runner execrun.Runner, logger *zap.Logger) (Recognizer, error) {
	logger = utils.OrNop(logger)
	switch cfg.Recognizer {
	case "", BackendAuto, BackendGosseract:
		r, err := NewTesseractRecognizer(cfg.Languages)
		if err == nil {
			return r, nil
		}
		if cfg.Recognizer == BackendGosseract {
			logger.Warn("gosseract not available, falling back to tesseract CLI", zap.Error(err))
		}
		return NewTesseractCLIRecognizer(runner, cfg.TesseractPath, cfg.Languages, cfg.TessdataDir), nil
	case BackendTesseract:
		return NewTesseractCLIRecognizer(runner, cfg.TesseractPath, cfg.Languages, cfg.TessdataDir), nil
	default:
		return nil, fmt.Errorf("unknown recognizer %q", cfg.Recognizer)
	}
}
