package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hyperjump/docreader/internal/llm"
	"github.com/hyperjump/docreader/internal/ocr"
	"github.com/hyperjump/docreader/internal/semantic"
	"github.com/hyperjump/docreader/internal/storage"
	"github.com/hyperjump/docreader/internal/synth"
)

// Code classifies a failure for the caller.
type Code string

const (
	CodeInvalidInput        Code = "invalid_input"
	CodeNotFound            Code = "not_found"
	CodeUpstreamUnavailable Code = "upstream_unavailable"
	CodeStorageUnavailable  Code = "storage_unavailable"
	CodeInternal            Code = "internal"
)

// HTTPStatus returns the status code a Code maps to.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUpstreamUnavailable:
		return http.StatusBadGateway
	case CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified pipeline failure.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code Code, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// InvalidInput returns an invalid_input error.
func InvalidInput(msg string) *Error {
	return newError(CodeInvalidInput, msg, nil)
}

// Classify maps an error from any collaborator onto an *Error. Errors that are already
// classified are returned unchanged.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	switch {
	case errors.Is(err, synth.ErrInvalidKind):
		return newError(CodeInvalidInput, "invalid document kind", err)
	case errors.Is(err, storage.ErrNotFound):
		return newError(CodeNotFound, "record not found", err)
	case errors.Is(err, ocr.ErrRasterize), errors.Is(err, ocr.ErrRecognize):
		return newError(CodeUpstreamUnavailable, "text extraction failed", err)
	case errors.Is(err, llm.ErrTimeout):
		return newError(CodeUpstreamUnavailable, "text generation timed out", err)
	case errors.Is(err, llm.ErrUnavailable):
		return newError(CodeUpstreamUnavailable, "text generation failed", err)
	case errors.Is(err, semantic.ErrEmbedding):
		return newError(CodeUpstreamUnavailable, "embedding failed", err)
	case errors.Is(err, semantic.ErrPersist), errors.Is(err, semantic.ErrCorrupt), errors.Is(err, semantic.ErrSearch):
		return newError(CodeStorageUnavailable, "semantic index unavailable", err)
	case errors.Is(err, context.DeadlineExceeded):
		return newError(CodeUpstreamUnavailable, "request timed out", err)
	default:
		return newError(CodeInternal, "internal error", err)
	}
}
