// Package server provides the HTTP API for docreader.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/docreader/internal/config"
	"github.com/hyperjump/docreader/internal/export"
	"github.com/hyperjump/docreader/internal/keyword"
	"github.com/hyperjump/docreader/internal/models"
	"github.com/hyperjump/docreader/internal/pipeline"
	"github.com/hyperjump/docreader/internal/storage"
	"github.com/hyperjump/docreader/pkg/utils"
	"go.uber.org/zap"
)

// Verifier ingests one upload.
type Verifier interface {
	Verify(ctx context.Context, up pipeline.Upload) (*models.VerifyResult, error)
}

// SampleGenerator writes a synthetic document and returns its path.
type SampleGenerator interface {
	Generate(ctx context.Context, kind string) (string, error)
}

// SemanticSearcher answers nearest-neighbour queries over stored documents.
type SemanticSearcher interface {
	Search(ctx context.Context, query string, k int) ([]models.SearchHit, error)
	Size() int
	Dimensions() int
	Backend() string
}

// KeywordSearcher answers full-text queries over stored records.
type KeywordSearcher interface {
	Search(ctx context.Context, query string, limit int, opts *keyword.SearchOptions) ([]keyword.Result, error)
	DocCount() (uint64, error)
}

// Exporter renders stored records as a workbook.
type Exporter interface {
	WriteXLSX(ctx context.Context, filter export.Filter) ([]byte, int, error)
}

// Deps are the services behind the API. Keyword, Exporter and Generator may be nil.
type Deps struct {
	Verifier  Verifier
	Generator SampleGenerator
	Semantic  SemanticSearcher
	Keyword   KeywordSearcher
	Store     storage.RecordStore
	Exporter  Exporter
	// DiskPaths are summed for the status endpoint.
	DiskPaths []string
	Version   string
}

// Server is the HTTP server for the docreader API.
type Server struct {
	deps     Deps
	config   *config.ServerConfig
	search   config.SearchConfig
	logger   *zap.Logger
	server   *http.Server
	maxBytes int64
}

// NewServer creates a server with the given dependencies.
func NewServer(deps Deps, cfg *config.ServerConfig, search config.SearchConfig, logger *zap.Logger) *Server {
	if search.DefaultK <= 0 {
		search.DefaultK = 5
	}
	if search.MaxK <= 0 {
		search.MaxK = 100
	}
	maxBytes := cfg.MaxUploadMB << 20
	if maxBytes <= 0 {
		maxBytes = 50 << 20
	}
	return &Server{
		deps:     deps,
		config:   cfg,
		search:   search,
		logger:   utils.OrNop(logger),
		maxBytes: maxBytes,
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	timeout := s.config.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/verify", s.handleVerify)
		r.Get("/generate", s.handleGenerate)
		r.Get("/search", s.handleSearch)
		r.Get("/status", s.handleStatus)
		r.Get("/documents", s.handleListDocuments)
		r.Get("/documents/{id}", s.handleGetDocument)
		r.Get("/export.xlsx", s.handleExport)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
