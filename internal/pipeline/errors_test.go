package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/hyperjump/docreader/internal/llm"
	"github.com/hyperjump/docreader/internal/ocr"
	"github.com/hyperjump/docreader/internal/semantic"
	"github.com/hyperjump/docreader/internal/storage"
	"github.com/hyperjump/docreader/internal/synth"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		code Code
	}{
		{fmt.Errorf("wrap: %w", synth.ErrInvalidKind), CodeInvalidInput},
		{fmt.Errorf("%w: x", storage.ErrNotFound), CodeNotFound},
		{fmt.Errorf("%w: mupdf", ocr.ErrRasterize), CodeUpstreamUnavailable},
		{fmt.Errorf("%w: page 2", ocr.ErrRecognize), CodeUpstreamUnavailable},
		{llm.ErrTimeout, CodeUpstreamUnavailable},
		{llm.ErrUnavailable, CodeUpstreamUnavailable},
		{semantic.ErrEmbedding, CodeUpstreamUnavailable},
		{semantic.ErrPersist, CodeStorageUnavailable},
		{fmt.Errorf("%w: faiss", semantic.ErrSearch), CodeStorageUnavailable},
		{context.DeadlineExceeded, CodeUpstreamUnavailable},
		{errors.New("boom"), CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			got := Classify(tt.err)
			assert.Equal(t, tt.code, got.Code)
			assert.ErrorIs(t, got, tt.err)
		})
	}
	assert.Nil(t, Classify(nil))

	pe := InvalidInput("bad")
	assert.Same(t, pe, Classify(fmt.Errorf("outer: %w", pe)))
}

func TestCodeHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, CodeInvalidInput.HTTPStatus())
	assert.Equal(t, http.StatusNotFound, CodeNotFound.HTTPStatus())
	assert.Equal(t, http.StatusBadGateway, CodeUpstreamUnavailable.HTTPStatus())
	assert.Equal(t, http.StatusServiceUnavailable, CodeStorageUnavailable.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, CodeInternal.HTTPStatus())
}
