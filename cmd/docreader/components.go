package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/docreader/internal/config"
	"github.com/hyperjump/docreader/internal/embedding"
	"github.com/hyperjump/docreader/internal/execrun"
	"github.com/hyperjump/docreader/internal/export"
	"github.com/hyperjump/docreader/internal/fields"
	"github.com/hyperjump/docreader/internal/keyword"
	"github.com/hyperjump/docreader/internal/llm"
	"github.com/hyperjump/docreader/internal/ocr"
	"github.com/hyperjump/docreader/internal/pipeline"
	"github.com/hyperjump/docreader/internal/semantic"
	"github.com/hyperjump/docreader/internal/server"
	"github.com/hyperjump/docreader/internal/storage"
	"github.com/hyperjump/docreader/internal/synth"
	"github.com/hyperjump/docreader/internal/vector"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	Store     *storage.SQLStorage
	Embedder  embedding.Embedder
	Semantic  *semantic.Index
	Keyword   *keyword.BleveIndex
	Pipeline  *pipeline.Pipeline
	Generator *synth.Generator
	Exporter  *export.Exporter
	diskPaths []string
}

// Deps returns the server dependencies backed by c.
func (c *Components) Deps() server.Deps {
	return server.Deps{
		Verifier:  c.Pipeline,
		Generator: c.Generator,
		Semantic:  c.Semantic,
		Keyword:   c.Keyword,
		Store:     c.Store,
		Exporter:  c.Exporter,
		DiskPaths: c.diskPaths,
		Version:   version,
	}
}

func (c *Components) Close() {
	if c.Semantic != nil {
		_ = c.Semantic.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Keyword != nil {
		_ = c.Keyword.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	if cfg.Storage.Driver != storage.DriverPostgres {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	store, err := storage.NewSQLStorage(cfg.Storage.Driver, cfg.Storage.DataSource())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Store = store

	embedder, err := newEmbedder(ctx, cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.Embedder = embedder

	vectors, err := vector.NewIndexWithFallback(cfg.Index.Type, embedder.Dimensions(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	logger.Info("vector index initialized",
		zap.String("type", vectors.Type()),
		zap.Bool("faiss_available", vector.IsFAISSAvailable()))

	sem, err := semantic.Open(ctx, cfg.Index.Dir, embedder, vectors, semantic.WithLogger(logger))
	if err != nil {
		_ = vectors.Close()
		return nil, err
	}
	c.Semantic = sem

	kw, err := keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	c.Keyword = kw
	if _, err := keyword.Backfill(ctx, kw, store, logger); err != nil {
		logger.Warn("keyword backfill failed", zap.Error(err))
	}

	runner := execrun.NewExecRunner(logger)
	gen := newGenerator(cfg.LLM, runner, logger)

	backends := ocr.BackendConfig{
		Rasterizer:    cfg.OCR.Rasterizer,
		Recognizer:    cfg.OCR.Recognizer,
		DPI:           cfg.OCR.DPI,
		Languages:     cfg.OCR.Languages,
		PdftoppmPath:  cfg.OCR.PdftoppmPath,
		TesseractPath: cfg.OCR.TesseractPath,
		TessdataDir:   cfg.OCR.TessdataDir,
	}
	rasterizer, err := ocr.NewRasterizer(backends, runner, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rasterizer: %w", err)
	}
	recognizer, err := ocr.NewRecognizer(backends, runner, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize recognizer: %w", err)
	}
	logger.Info("ocr backends initialized",
		zap.String("rasterizer", rasterizer.Name()),
		zap.String("recognizer", recognizer.Name()),
		zap.Int("dpi", cfg.OCR.DPI))

	textX := ocr.NewExtractor(rasterizer, recognizer,
		ocr.WithLogger(logger),
		ocr.WithTimeout(cfg.OCR.Timeout),
		ocr.WithTextLayer(cfg.OCR.TextLayer))
	fieldsX := fields.NewExtractor(gen,
		fields.WithLogger(logger),
		fields.WithTimeout(cfg.LLM.Timeout),
		fields.WithDegradeOnError(cfg.LLM.DegradeOnErrorOrDefault()))

	c.Pipeline = pipeline.New(textX, fieldsX, store, sem,
		pipeline.WithLogger(logger),
		pipeline.WithTimeout(cfg.Pipeline.Timeout),
		pipeline.WithDefaultDocType(cfg.Pipeline.DefaultDocType),
		pipeline.WithKeywordIndex(kw))
	c.Generator = synth.NewGenerator(gen, cfg.Generate.OutputDir,
		synth.WithLogger(logger),
		synth.WithTimeout(cfg.Generate.Timeout))
	c.Exporter = export.NewExporter(store, logger)

	c.diskPaths = []string{cfg.Index.Dir, cfg.Storage.KeywordIndexPath}
	if cfg.Storage.Driver != storage.DriverPostgres {
		c.diskPaths = append(c.diskPaths, storage.DatabaseFiles(cfg.Storage.DatabasePath)...)
	}

	ok = true
	return c, nil
}

func newEmbedder(ctx context.Context, cfg config.EmbeddingConfig, logger *zap.Logger) (embedding.Embedder, error) {
	var e embedding.Embedder
	switch cfg.Provider {
	case "ollama":
		oe := embedding.NewOllamaEmbedder(embedding.OllamaConfig{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Timeout:    cfg.Timeout,
			Dimensions: cfg.Dimensions,
		})
		if err := oe.DetectDimensions(ctx); err != nil {
			return nil, err
		}
		e = oe
	case "onnx":
		oe, err := embedding.NewONNXEmbedder(embedding.ONNXConfig{
			ModelPath:  cfg.ModelPath,
			Dimensions: cfg.Dimensions,
			MaxTokens:  cfg.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		e = oe
	default:
		logger.Warn("using mock embedder; search results carry no meaning", zap.Int("dimensions", cfg.Dimensions))
		e = embedding.NewMockEmbedder(cfg.Dimensions)
	}
	logger.Info("embedder initialized", zap.String("provider", cfg.Provider), zap.Int("dimensions", e.Dimensions()))
	return embedding.WithCache(e, cfg.CacheSize), nil
}

func newGenerator(cfg config.LLMConfig, runner execrun.Runner, logger *zap.Logger) llm.Generator {
	var gen llm.Generator
	switch cfg.Provider {
	case "process":
		gen = llm.NewProcessGenerator(llm.ProcessConfig{
			Command: cfg.Command,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}, runner, logger)
	case "static":
		gen = &llm.Static{Response: cfg.StaticResponse}
	default:
		gen = llm.NewHTTPGenerator(llm.HTTPConfig{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Timeout:     cfg.Timeout,
			Temperature: cfg.Temperature,
		}, logger)
	}
	return llm.NewRateLimited(gen, cfg.RatePerSecond, cfg.Burst)
}
