package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/docreader/internal/models"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server returned %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Client talks to a running docreader server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for baseURL. Zero timeout means no client-side limit.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Verify uploads the file at path as a multipart "file" field.
func (c *Client) Verify(ctx context.Context, path, docType string) (*models.VerifyResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	q := url.Values{}
	if docType != "" {
		q.Set("doc_type", docType)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/verify", q), &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var res models.VerifyResult
	if err := c.do(req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Search runs a semantic search. k <= 0 uses the server default.
func (c *Client) Search(ctx context.Context, query string, k int) ([]models.SearchHit, error) {
	q := url.Values{"q": {query}}
	if k > 0 {
		q.Set("k", strconv.Itoa(k))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/api/search", q), nil)
	if err != nil {
		return nil, err
	}
	var hits []models.SearchHit
	if err := c.do(req, &hits); err != nil {
		return nil, err
	}
	return hits, nil
}

// Generate asks the server for a synthetic document and returns its path on the server.
func (c *Client) Generate(ctx context.Context, kind string) (string, error) {
	q := url.Values{}
	if kind != "" {
		q.Set("kind", kind)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/api/generate", q), nil)
	if err != nil {
		return "", err
	}
	var out struct {
		GeneratedPDF string `json:"generated_pdf"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return out.GeneratedPDF, nil
}

// Status returns record and index counts.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/api/status", nil), nil)
	if err != nil {
		return nil, err
	}
	var s Status
	if err := c.do(req, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Export downloads the records workbook, optionally restricted to docType.
func (c *Client) Export(ctx context.Context, docType string) ([]byte, error) {
	q := url.Values{}
	if docType != "" {
		q.Set("doc_type", docType)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/api/export.xlsx", q), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) endpoint(path string, q url.Values) string {
	if len(q) == 0 {
		return c.baseURL + path
	}
	return c.baseURL + path + "?" + q.Encode()
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	b, _ := io.ReadAll(resp.Body)
	apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(b))}
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if json.Unmarshal(b, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Code = body.Code
	}
	return apiErr
}
