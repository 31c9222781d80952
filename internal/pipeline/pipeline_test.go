package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/docreader/internal/embedding"
	"github.com/hyperjump/docreader/internal/fields"
	"github.com/hyperjump/docreader/internal/llm"
	"github.com/hyperjump/docreader/internal/models"
	"github.com/hyperjump/docreader/internal/ocr"
	"github.com/hyperjump/docreader/internal/semantic"
	"github.com/hyperjump/docreader/internal/storage"
	"github.com/hyperjump/docreader/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dims = 16

// pageRasterizer returns one image per entry in pages.
type pageRasterizer struct{ pages []string }

func (r pageRasterizer) Name() string { return "test-raster" }

func (r pageRasterizer) RenderPages(context.Context, []byte) ([][]byte, error) {
	out := make([][]byte, len(r.pages))
	for i, p := range r.pages {
		out[i] = []byte(p)
	}
	return out, nil
}

// echoRecognizer treats the image bytes as the recognized text.
type echoRecognizer struct{ err error }

func (echoRecognizer) Name() string { return "echo" }

func (e echoRecognizer) Recognize(_ context.Context, img []byte) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	return string(img), nil
}

type harness struct {
	pipeline *Pipeline
	store    *storage.SQLStorage
	index    *semantic.Index
	gen      *llm.Static
}

type harnessOpts struct {
	pages      []string
	recognizer ocr.Recognizer
	response   string
	embedder   embedding.Embedder
	store      storage.RecordStore
}

func newHarness(t *testing.T, o harnessOpts) *harness {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLStorage(storage.DriverSQLite, filepath.Join(dir, "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	if o.embedder == nil {
		o.embedder = embedding.NewMockEmbedder(dims)
	}
	vi, err := vector.NewMemoryIndex(dims)
	require.NoError(t, err)
	idx, err := semantic.Open(context.Background(), filepath.Join(dir, "index"), o.embedder, vi)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	if o.recognizer == nil {
		o.recognizer = echoRecognizer{}
	}
	gen := &llm.Static{Response: o.response}
	var rs storage.RecordStore = store
	if o.store != nil {
		rs = o.store
	}
	p := New(
		ocr.NewExtractor(pageRasterizer{pages: o.pages}, o.recognizer),
		fields.NewExtractor(gen),
		rs,
		idx,
	)
	return &harness{pipeline: p, store: store, index: idx, gen: gen}
}

func TestVerify_TwoPagePDF(t *testing.T) {
	h := newHarness(t, harnessOpts{
		pages:    []string{"ACME BANK statement page one", "closing balance 1,200.00"},
		response: "Extracted:\n{\"accountNumber\":\"99-1\",\"period\":\"2024-01\",\"avgBalance\":1100,\"status\":\"ok\",\"confidence\":0.9}",
	})
	ctx := context.Background()

	res, err := h.pipeline.Verify(ctx, Upload{Filename: "Scan_March.PDF", Content: []byte("%PDF-1.7"), DocType: "statement"})
	require.NoError(t, err)

	wantText := "ACME BANK statement page one\nclosing balance 1,200.00\n"
	assert.Equal(t, wantText, res.FullText)
	assert.Equal(t, "scan_march.pdf", res.Filename)
	assert.Equal(t, "statement", res.DocType)
	assert.Equal(t, "99-1", res.ExtractedFields["accountNumber"])

	rec, err := h.store.GetRecord(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, wantText, rec.RawText)
	assert.Equal(t, "scan_march.pdf", rec.Filename)
	var stored map[string]any
	require.NoError(t, json.Unmarshal([]byte(rec.ExtractedJSON), &stored))
	assert.Equal(t, "99-1", stored["accountNumber"])

	entries := h.index.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, models.EntryMeta{DocID: res.ID, Filename: "scan_march.pdf", Preview: wantText}, entries[0])

	hits, err := h.index.Search(ctx, wantText, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, res.ID, hits[0].Meta.DocID)
}

func TestVerify_LongTextTruncatedInRecordOnly(t *testing.T) {
	long := strings.Repeat("x", 20000)
	h := newHarness(t, harnessOpts{response: `{"summary":"s","keyValues":{},"confidence":1}`})
	ctx := context.Background()

	res, err := h.pipeline.Verify(ctx, Upload{Filename: "big.png", Content: []byte(long), DocType: "generic"})
	require.NoError(t, err)
	assert.Equal(t, long+"\n", res.FullText)

	rec, err := h.store.GetRecord(ctx, res.ID)
	require.NoError(t, err)
	assert.Len(t, rec.RawText, MaxRawTextChars)

	entries := h.index.Entries()
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].Preview, semantic.PreviewChars)

	hits, err := h.index.Search(ctx, long+"\n", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 0, hits[0].Distance, 1e-5, "the full text, not the truncated one, is indexed")
}

func TestVerify_UnparseableOutputDegrades(t *testing.T) {
	h := newHarness(t, harnessOpts{response: "Sorry, I cannot help with that."})
	ctx := context.Background()
	res, err := h.pipeline.Verify(ctx, Upload{Filename: "x.jpg", Content: []byte("blurry")})
	require.NoError(t, err)
	assert.Equal(t, fields.Degraded(), res.ExtractedFields)
	assert.Equal(t, "statement", res.DocType, "default doc type")

	rec, err := h.store.GetRecord(ctx, res.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"unverified","confidence":0.0}`, rec.ExtractedJSON)
}

func TestVerify_UnknownDocTypeStoredVerbatim(t *testing.T) {
	h := newHarness(t, harnessOpts{response: `{"summary":"pay"}`})
	res, err := h.pipeline.Verify(context.Background(), Upload{Filename: "p.png", Content: []byte("salary"), DocType: "payslip"})
	require.NoError(t, err)
	assert.Equal(t, "payslip", res.DocType)
	require.Len(t, h.gen.Prompts(), 1)
	assert.Contains(t, h.gen.Prompts()[0], `["summary","keyValues","confidence"]`)
}

func TestVerify_InvalidInput(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	for _, up := range []Upload{
		{Filename: "a.png"},
		{Content: []byte("x")},
	} {
		_, err := h.pipeline.Verify(context.Background(), up)
		var pe *Error
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, CodeInvalidInput, pe.Code)
		assert.Equal(t, 400, pe.Code.HTTPStatus())
	}
}

func TestVerify_OCRFailureIsUpstream(t *testing.T) {
	h := newHarness(t, harnessOpts{recognizer: echoRecognizer{err: errors.New("tesseract missing")}})
	_, err := h.pipeline.Verify(context.Background(), Upload{Filename: "a.png", Content: []byte("x")})
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, CodeUpstreamUnavailable, pe.Code)
	assert.Equal(t, 502, pe.Code.HTTPStatus())

	n, err := h.store.CountRecords(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

type brokenEmbedder struct{ *embedding.MockEmbedder }

func (brokenEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("ollama: connection refused")
}

func TestVerify_IndexFailureRemovesRecord(t *testing.T) {
	h := newHarness(t, harnessOpts{response: "{}", embedder: brokenEmbedder{embedding.NewMockEmbedder(dims)}})
	ctx := context.Background()
	_, err := h.pipeline.Verify(ctx, Upload{Filename: "a.png", Content: []byte("text")})
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, CodeUpstreamUnavailable, pe.Code)
	assert.ErrorIs(t, err, semantic.ErrEmbedding)

	n, err := h.store.CountRecords(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "record must be deleted when the index add fails")
	assert.Zero(t, h.index.Size())
}

// undeletableStore fails every delete.
type undeletableStore struct {
	storage.RecordStore
	deletes int
}

func (s *undeletableStore) DeleteRecord(context.Context, string) error {
	s.deletes++
	return errors.New("database is locked")
}

func TestVerify_FailedCompensationKeepsOriginalError(t *testing.T) {
	dir := t.TempDir()
	inner, err := storage.NewSQLStorage(storage.DriverSQLite, filepath.Join(dir, "r.db"))
	require.NoError(t, err)
	defer inner.Close()
	store := &undeletableStore{RecordStore: inner}

	h := newHarness(t, harnessOpts{response: "{}", embedder: brokenEmbedder{embedding.NewMockEmbedder(dims)}, store: store})
	_, err = h.pipeline.Verify(context.Background(), Upload{Filename: "a.png", Content: []byte("text")})
	assert.ErrorIs(t, err, semantic.ErrEmbedding)
	assert.Equal(t, 1, store.deletes)
}

func TestVerify_KeywordIndexIsBestEffort(t *testing.T) {
	h := newHarness(t, harnessOpts{response: "{}"})
	kw := &failingKeyword{}
	h.pipeline.keyword = kw
	res, err := h.pipeline.Verify(context.Background(), Upload{Filename: "a.png", Content: []byte("text")})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, 1, kw.calls)
}

type failingKeyword struct{ calls int }

func (f *failingKeyword) IndexRecord(context.Context, *models.Record) error {
	f.calls++
	return errors.New("bleve closed")
}
