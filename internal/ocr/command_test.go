package ocr

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/hyperjump/docreader/internal/execrun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPdftoppmRasterizer_OrdersPages(t *testing.T) {
	fake := &execrun.Fake{Func: func(_ context.Context, c execrun.Call) ([]byte, []byte, error) {
		prefix := c.Args[len(c.Args)-1]
		for _, n := range []string{"10", "2", "1"} {
			if err := os.WriteFile(prefix+"-"+n+".png", []byte("p"+n), 0600); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil
	}}
	r := NewPdftoppmRasterizer(fake, "", 0)
	pages, err := r.RenderPages(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, "p1", string(pages[0]))
	assert.Equal(t, "p2", string(pages[1]))
	assert.Equal(t, "p10", string(pages[2]))

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "pdftoppm", calls[0].Name)
	assert.Equal(t, []string{"-r", "200", "-png"}, calls[0].Args[:3])
}

func TestPdftoppmRasterizer_Failure(t *testing.T) {
	fake := &execrun.Fake{Func: func(_ context.Context, _ execrun.Call) ([]byte, []byte, error) {
		return nil, []byte("Syntax Error: Couldn't read xref table"), errors.New("exit status 1")
	}}
	_, err := NewPdftoppmRasterizer(fake, "", 200).RenderPages(context.Background(), []byte("junk"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xref")
}

func TestTesseractCLIRecognizer(t *testing.T) {
	fake := &execrun.Fake{Func: func(_ context.Context, _ execrun.Call) ([]byte, []byte, error) {
		return []byte("  INVOICE 42\n\n"), nil, nil
	}}
	r := NewTesseractCLIRecognizer(fake, "", []string{"eng", "deu"}, "/data/tess")
	text, err := r.Recognize(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "INVOICE 42", text)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "tesseract stdin stdout -l eng+deu --tessdata-dir /data/tess", calls[0].String())
	assert.Equal(t, []byte("img"), calls[0].Stdin)
}

func TestPageNumber(t *testing.T) {
	assert.Equal(t, 7, pageNumber("/tmp/x/page-07.png"))
	assert.Equal(t, 12, pageNumber("page-12.png"))
	assert.Equal(t, 0, pageNumber("garbage.png"))
}
