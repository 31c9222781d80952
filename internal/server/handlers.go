package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/docreader/internal/export"
	"github.com/hyperjump/docreader/internal/keyword"
	"github.com/hyperjump/docreader/internal/models"
	"github.com/hyperjump/docreader/internal/pipeline"
	"github.com/hyperjump/docreader/internal/storage"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "docreader document intake service",
		"version": s.deps.Version,
		"endpoints": []string{
			"POST /api/verify",
			"GET /api/generate",
			"GET /api/search",
			"GET /api/status",
			"GET /api/documents",
			"GET /api/documents/{id}",
			"GET /api/export.xlsx",
			"GET /health",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store != nil {
		if err := s.deps.Store.Ping(r.Context()); err != nil {
			s.logger.Warn("health: record store unreachable", zap.Error(err))
			s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if s.deps.Verifier == nil {
		s.respondError(w, http.StatusNotImplemented, "verify not enabled")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes)
	filename, content, err := s.readUpload(r)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	docType := r.URL.Query().Get("doc_type")
	s.logger.Debug("verify request", zap.String("filename", filename), zap.String("doc_type", docType), zap.Int("bytes", len(content)))
	res, err := s.deps.Verifier.Verify(r.Context(), pipeline.Upload{
		Filename: filename,
		Content:  content,
		DocType:  docType,
	})
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

// readUpload accepts a multipart "file" field, or a raw body named by ?filename=.
func (s *Server) readUpload(r *http.Request) (string, []byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return "", nil, uploadError(err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", nil, pipeline.InvalidInput("multipart field \"file\" is required")
		}
		defer file.Close()
		content, err := io.ReadAll(file)
		if err != nil {
			return "", nil, uploadError(err)
		}
		return header.Filename, content, nil
	}
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		return "", nil, pipeline.InvalidInput("upload a multipart \"file\" field or pass ?filename= with a raw body")
	}
	content, err := io.ReadAll(r.Body)
	if err != nil {
		return "", nil, uploadError(err)
	}
	return filename, content, nil
}

func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return pipeline.InvalidInput(fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
	}
	return &pipeline.Error{Code: pipeline.CodeInvalidInput, Message: "unreadable upload", Err: err}
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.deps.Generator == nil {
		s.respondError(w, http.StatusNotImplemented, "generation not enabled")
		return
	}
	kind := r.URL.Query().Get("kind")
	s.logger.Debug("generate request", zap.String("kind", kind))
	path, err := s.deps.Generator.Generate(r.Context(), kind)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"generated_pdf": path})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.respondErr(w, pipeline.InvalidInput("q is required"))
		return
	}
	k, err := intParam(r, "k", s.search.DefaultK)
	if err != nil {
		s.respondErr(w, pipeline.InvalidInput("k must be an integer"))
		return
	}
	if k <= 0 {
		s.respondJSON(w, http.StatusOK, []models.SearchHit{})
		return
	}
	if k > s.search.MaxK {
		k = s.search.MaxK
	}
	s.logger.Debug("search request", zap.String("query", q), zap.Int("k", k))
	hits, err := s.deps.Semantic.Search(r.Context(), q, k)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	if hits == nil {
		hits = []models.SearchHit{}
	}
	s.respondJSON(w, http.StatusOK, hits)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docCount, err := s.deps.Store.CountRecords(ctx)
	if err != nil {
		s.logger.Error("status: count records failed", zap.Error(err))
		s.respondErr(w, &pipeline.Error{Code: pipeline.CodeStorageUnavailable, Message: "record store unavailable", Err: err})
		return
	}
	resp := map[string]interface{}{
		"documents":           docCount,
		"semantic_index_size": s.deps.Semantic.Size(),
		"config": map[string]interface{}{
			"vector_index_type":    s.deps.Semantic.Backend(),
			"embedding_dimensions": s.deps.Semantic.Dimensions(),
			"search_default_k":     s.search.DefaultK,
			"search_max_k":         s.search.MaxK,
		},
	}
	if s.deps.Keyword != nil {
		if n, err := s.deps.Keyword.DocCount(); err == nil {
			resp["keyword_index_size"] = n
		}
	}
	if len(s.deps.DiskPaths) > 0 {
		if diskBytes, err := storage.DiskUsageBytes(s.deps.DiskPaths...); err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// documentView is a stored record with its extracted fields decoded.
type documentView struct {
	ID              string         `json:"id"`
	Filename        string         `json:"filename"`
	DocType         string         `json:"doc_type"`
	CreatedAt       time.Time      `json:"created_at"`
	RawText         string         `json:"raw_text,omitempty"`
	ExtractedFields map[string]any `json:"extracted_fields"`
	Score           float64        `json:"score,omitempty"`
}

func newDocumentView(rec *models.Record, withText bool) documentView {
	v := documentView{
		ID:        rec.ID,
		Filename:  rec.Filename,
		DocType:   rec.DocType,
		CreatedAt: rec.CreatedAt,
	}
	if withText {
		v.RawText = rec.RawText
	}
	if err := json.Unmarshal([]byte(rec.ExtractedJSON), &v.ExtractedFields); err != nil || v.ExtractedFields == nil {
		v.ExtractedFields = map[string]any{}
	}
	return v
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, err := intParam(r, "limit", defaultListLimit)
	if err != nil || limit < 1 {
		s.respondErr(w, pipeline.InvalidInput("limit must be a positive integer"))
		return
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil || offset < 0 {
		s.respondErr(w, pipeline.InvalidInput("offset must be a non-negative integer"))
		return
	}

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q != "" {
		s.keywordLookup(w, r, q, limit)
		return
	}

	recs, err := s.deps.Store.ListRecords(ctx, offset, limit)
	if err != nil {
		s.respondErr(w, &pipeline.Error{Code: pipeline.CodeStorageUnavailable, Message: "record store unavailable", Err: err})
		return
	}
	total, err := s.deps.Store.CountRecords(ctx)
	if err != nil {
		s.respondErr(w, &pipeline.Error{Code: pipeline.CodeStorageUnavailable, Message: "record store unavailable", Err: err})
		return
	}
	docs := make([]documentView, 0, len(recs))
	for _, rec := range recs {
		docs = append(docs, newDocumentView(rec, false))
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"total":     total,
		"offset":    offset,
		"limit":     limit,
	})
}

// keywordLookup resolves keyword hits against the record store. Hits whose
// record has since been deleted are skipped.
func (s *Server) keywordLookup(w http.ResponseWriter, r *http.Request, q string, limit int) {
	if s.deps.Keyword == nil {
		s.respondError(w, http.StatusNotImplemented, "keyword lookup not enabled")
		return
	}
	ctx := r.Context()
	opts := &keyword.SearchOptions{
		FilenameBoost: 5,
		Fuzzy:         r.URL.Query().Get("fuzzy") == "true",
		DocType:       r.URL.Query().Get("doc_type"),
	}
	results, err := s.deps.Keyword.Search(ctx, q, limit, opts)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	docs := make([]documentView, 0, len(results))
	for _, res := range results {
		rec, err := s.deps.Store.GetRecord(ctx, res.ID)
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Debug("keyword hit without record", zap.String("doc_id", res.ID))
			continue
		}
		if err != nil {
			s.respondErr(w, &pipeline.Error{Code: pipeline.CodeStorageUnavailable, Message: "record store unavailable", Err: err})
			return
		}
		v := newDocumentView(rec, false)
		v.Score = res.Score
		docs = append(docs, v)
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"total":     len(docs),
		"query":     q,
	})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.deps.Store.GetRecord(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondErr(w, err)
			return
		}
		s.respondErr(w, &pipeline.Error{Code: pipeline.CodeStorageUnavailable, Message: "record store unavailable", Err: err})
		return
	}
	s.respondJSON(w, http.StatusOK, newDocumentView(rec, true))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Exporter == nil {
		s.respondError(w, http.StatusNotImplemented, "export not enabled")
		return
	}
	filter := export.Filter{DocType: r.URL.Query().Get("doc_type")}
	var err error
	if filter.From, err = dateParam(r, "from", false); err != nil {
		s.respondErr(w, pipeline.InvalidInput("from must be YYYY-MM-DD"))
		return
	}
	if filter.To, err = dateParam(r, "to", true); err != nil {
		s.respondErr(w, pipeline.InvalidInput("to must be YYYY-MM-DD"))
		return
	}
	data, n, err := s.deps.Exporter.WriteXLSX(r.Context(), filter)
	if err != nil {
		s.respondErr(w, &pipeline.Error{Code: pipeline.CodeStorageUnavailable, Message: "export failed", Err: err})
		return
	}
	s.logger.Debug("export written", zap.Int("records", n), zap.Int("bytes", len(data)))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="documents.xlsx"`)
	w.Header().Set("X-Record-Count", strconv.Itoa(n))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// dateParam parses a YYYY-MM-DD query value in UTC. endOfDay moves the time to
// the last instant of that day so the bound is inclusive.
func dateParam(r *http.Request, name string, endOfDay bool) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondErr classifies err and writes {"error", "code"} with the mapped status.
func (s *Server) respondErr(w http.ResponseWriter, err error) {
	pe := pipeline.Classify(err)
	status := pe.Code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("code", string(pe.Code)), zap.Error(err))
	} else {
		s.logger.Debug("request rejected", zap.String("code", string(pe.Code)), zap.Error(err))
	}
	s.respondJSON(w, status, map[string]string{"error": pe.Message, "code": string(pe.Code)})
}
