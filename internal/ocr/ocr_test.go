package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRasterizer struct {
	pages [][]byte
	err   error
	calls int
}

func (f *fakeRasterizer) Name() string { return "fake-raster" }

func (f *fakeRasterizer) RenderPages(ctx context.Context, pdf []byte) ([][]byte, error) {
	f.calls++
	return f.pages, f.err
}

// fakeRecognizer echoes the image bytes back as text.
type fakeRecognizer struct {
	err   error
	delay time.Duration
	seen  [][]byte
}

func (f *fakeRecognizer) Name() string { return "fake-ocr" }

func (f *fakeRecognizer) Recognize(ctx context.Context, img []byte) (string, error) {
	f.seen = append(f.seen, img)
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return string(img), nil
}

func TestExtractText_PDFPagesInOrder(t *testing.T) {
	r := &fakeRasterizer{pages: [][]byte{[]byte("PAGE ONE"), []byte("PAGE TWO")}}
	rec := &fakeRecognizer{}
	res, err := NewExtractor(r, rec).ExtractText(context.Background(), "Scan.PDF", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "PAGE ONE\nPAGE TWO\n", res.Text)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, MethodPDFOCR, res.Method)
	assert.Equal(t, 1, r.calls)
}

func blankPDF(t *testing.T, pages int) []byte {
	t.Helper()
	doc := fpdf.New("P", "pt", "Letter", "")
	doc.SetFont("Helvetica", "", 9)
	for i := 0; i < pages; i++ {
		doc.AddPage()
		doc.Text(40, 42, fmt.Sprintf("page %d", i+1))
	}
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

func TestPageCount(t *testing.T) {
	n, err := PageCount(blankPDF(t, 3))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = PageCount([]byte("%PDF-1.4 truncated"))
	assert.Error(t, err)
}

func TestExtractText_RenderedPagesMustMatchPageTree(t *testing.T) {
	content := blankPDF(t, 3)
	r := &fakeRasterizer{pages: [][]byte{[]byte("one"), []byte("two")}}
	_, err := NewExtractor(r, &fakeRecognizer{}).ExtractText(context.Background(), "scan.pdf", content)
	assert.ErrorIs(t, err, ErrRasterize)

	r.pages = append(r.pages, []byte("three"))
	res, err := NewExtractor(r, &fakeRecognizer{}).ExtractText(context.Background(), "scan.pdf", content)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\nthree\n", res.Text)
}

func TestExtractText_ImageIsOnePage(t *testing.T) {
	r := &fakeRasterizer{}
	rec := &fakeRecognizer{}
	res, err := NewExtractor(r, rec).ExtractText(context.Background(), "photo.jpg", []byte("not really an image"))
	require.NoError(t, err)
	assert.Equal(t, "not really an image\n", res.Text)
	assert.Equal(t, MethodImageOCR, res.Method)
	assert.Zero(t, r.calls)
	require.Len(t, rec.seen, 1)
	assert.Equal(t, []byte("not really an image"), rec.seen[0])
}

func TestExtractText_Errors(t *testing.T) {
	r := &fakeRasterizer{err: fmt.Errorf("bad xref")}
	_, err := NewExtractor(r, &fakeRecognizer{}).ExtractText(context.Background(), "a.pdf", nil)
	assert.ErrorIs(t, err, ErrRasterize)

	r = &fakeRasterizer{}
	_, err = NewExtractor(r, &fakeRecognizer{}).ExtractText(context.Background(), "a.pdf", nil)
	assert.ErrorIs(t, err, ErrRasterize)

	r = &fakeRasterizer{pages: [][]byte{[]byte("x")}}
	_, err = NewExtractor(r, &fakeRecognizer{err: errors.New("no tessdata")}).ExtractText(context.Background(), "a.pdf", nil)
	assert.ErrorIs(t, err, ErrRecognize)
	assert.Contains(t, err.Error(), "page 1")
}

func TestExtractText_Timeout(t *testing.T) {
	rec := &fakeRecognizer{delay: time.Second}
	start := time.Now()
	_, err := NewExtractor(&fakeRasterizer{}, rec, WithTimeout(20*time.Millisecond)).
		ExtractText(context.Background(), "a.png", []byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRecognize)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF("a.pdf"))
	assert.True(t, IsPDF("A.PDF"))
	assert.False(t, IsPDF("a.pdf.png"))
	assert.False(t, IsPDF("pdf"))
}
