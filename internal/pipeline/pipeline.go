// Package pipeline runs a document through intake: text extraction, field extraction, the
// record store and the semantic index.
//
// Records and index entries are kept consistent by compensation: when the index add fails, the
// record inserted for the same document is deleted and the request fails. If that delete also
// fails, the orphaned record id is logged at error level.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/docreader/internal/fields"
	"github.com/hyperjump/docreader/internal/models"
	"github.com/hyperjump/docreader/internal/ocr"
	"github.com/hyperjump/docreader/internal/storage"
	"github.com/hyperjump/docreader/pkg/utils"
	"go.uber.org/zap"
)

// MaxRawTextChars is how much OCR text is kept in the stored record.
const MaxRawTextChars = 15000

// DefaultTimeout bounds one Verify call end to end.
const DefaultTimeout = 10 * time.Minute

// compensateTimeout bounds the compensating delete, which runs even if the request was cancelled.
const compensateTimeout = 10 * time.Second

// TextExtractor turns an upload into text.
type TextExtractor interface {
	ExtractText(ctx context.Context, filename string, content []byte) (*ocr.Result, error)
}

// FieldExtractor pulls structured fields out of text.
type FieldExtractor interface {
	Extract(ctx context.Context, text, docType string) (*fields.Result, error)
}

// SemanticIndex receives the full text of every stored record.
type SemanticIndex interface {
	Add(ctx context.Context, docID, text, filename string) error
}

// KeywordIndexer receives every stored record. It is optional and best effort.
type KeywordIndexer interface {
	IndexRecord(ctx context.Context, rec *models.Record) error
}

// Upload is one submitted document.
type Upload struct {
	Filename string
	Content  []byte
	// DocType is stored verbatim. Empty means the pipeline default.
	DocType string
}

// Pipeline orchestrates Verify. All collaborators are injected.
type Pipeline struct {
	text           TextExtractor
	fields         FieldExtractor
	store          storage.RecordStore
	index          SemanticIndex
	keyword        KeywordIndexer
	timeout        time.Duration
	defaultDocType string
	logger         *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = utils.OrNop(l) }
}

// WithTimeout bounds each Verify call.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithDefaultDocType sets the doc type used when an upload has none.
func WithDefaultDocType(dt string) Option {
	return func(p *Pipeline) {
		if dt != "" {
			p.defaultDocType = dt
		}
	}
}

// WithKeywordIndex adds a keyword index that is fed after the semantic index.
func WithKeywordIndex(k KeywordIndexer) Option {
	return func(p *Pipeline) { p.keyword = k }
}

// New creates a Pipeline.
func New(text TextExtractor, fieldsX FieldExtractor, store storage.RecordStore, index SemanticIndex, opts ...Option) *Pipeline {
	p := &Pipeline{
		text:           text,
		fields:         fieldsX,
		store:          store,
		index:          index,
		timeout:        DefaultTimeout,
		defaultDocType: string(models.DocTypeStatement),
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Verify ingests one document and returns its id, text and extracted fields.
// Failures are returned as *Error.
func (p *Pipeline) Verify(ctx context.Context, up Upload) (*models.VerifyResult, error) {
	filename := strings.ToLower(strings.TrimSpace(up.Filename))
	if filename == "" {
		return nil, InvalidInput("filename is required")
	}
	if len(up.Content) == 0 {
		return nil, InvalidInput("file is empty")
	}
	docType := strings.TrimSpace(up.DocType)
	if docType == "" {
		docType = p.defaultDocType
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	start := time.Now()
	log := p.logger.With(zap.String("filename", filename), zap.String("doc_type", docType))

	text, err := p.text.ExtractText(ctx, filename, up.Content)
	if err != nil {
		log.Warn("text extraction failed", zap.Error(err))
		return nil, Classify(err)
	}

	extracted, err := p.fields.Extract(ctx, text.Text, docType)
	if err != nil {
		log.Warn("field extraction failed", zap.Error(err))
		return nil, Classify(err)
	}
	extractedJSON, err := json.Marshal(extracted.Fields)
	if err != nil {
		return nil, newError(CodeInternal, "encode extracted fields", err)
	}

	rec := &models.Record{
		ID:            uuid.New().String(),
		Filename:      filename,
		DocType:       docType,
		RawText:       utils.TruncateRunes(text.Text, MaxRawTextChars),
		ExtractedJSON: string(extractedJSON),
	}
	log = log.With(zap.String("doc_id", rec.ID))
	if err := p.store.CreateRecord(ctx, rec); err != nil {
		log.Error("record insert failed", zap.Error(err))
		return nil, newError(CodeStorageUnavailable, "record store unavailable", err)
	}

	if err := p.index.Add(ctx, rec.ID, text.Text, filename); err != nil {
		log.Error("semantic index add failed, removing record", zap.Error(err))
		p.compensate(ctx, rec.ID, log)
		return nil, Classify(err)
	}

	if p.keyword != nil {
		if err := p.keyword.IndexRecord(ctx, rec); err != nil {
			log.Warn("keyword index add failed", zap.Error(err))
		}
	}

	log.Info("document verified",
		zap.String("method", text.Method),
		zap.Int("pages", text.Pages),
		zap.Int("chars", utils.RuneLen(text.Text)),
		zap.Bool("degraded", extracted.Degraded),
		zap.Duration("took", time.Since(start)))

	return &models.VerifyResult{
		ID:              rec.ID,
		Filename:        filename,
		DocType:         docType,
		FullText:        text.Text,
		ExtractedFields: extracted.Fields,
	}, nil
}

// compensate deletes the record of a document whose index add failed.
func (p *Pipeline) compensate(ctx context.Context, id string, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
	defer cancel()
	if err := p.store.DeleteRecord(ctx, id); err != nil {
		log.Error("record store and semantic index diverged: record has no index entry",
			zap.String("orphan_doc_id", id),
			zap.Error(fmt.Errorf("compensating delete: %w", err)))
	}
}
