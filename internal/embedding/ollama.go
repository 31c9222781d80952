package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Defaults for the Ollama embedding backend.
const (
	DefaultOllamaBaseURL = "http://localhost:11434"
	DefaultOllamaModel   = "nomic-embed-text"
	DefaultOllamaTimeout = 60 * time.Second
)

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	// Dimensions is the expected vector size. Zero means learn it with DetectDimensions.
	Dimensions int
}

// OllamaEmbedder produces embeddings through a local Ollama server's /api/embeddings endpoint.
type OllamaEmbedder struct {
	client     *http.Client
	baseURL    string
	model      string
	mu         sync.RWMutex
	dimensions int
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// NewOllamaEmbedder creates an Ollama embedder. No request is made until Embed or DetectDimensions.
func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOllamaBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultOllamaTimeout
	}
	return &OllamaEmbedder{
		client:     &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// DetectDimensions embeds a short text to learn (or confirm) the model's output dimension.
func (e *OllamaEmbedder) DetectDimensions(ctx context.Context) error {
	v, err := e.embed(ctx, "dimension check")
	if err != nil {
		return fmt.Errorf("ollama: detect dimensions of %s: %w", e.model, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dimensions != 0 && e.dimensions != len(v) {
		return fmt.Errorf("ollama: model %s returns %d dimensions, configured %d", e.model, len(v), e.dimensions)
	}
	e.dimensions = len(v)
	return nil
}

// Embed returns the model's embedding for text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := e.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if dims := e.Dimensions(); dims != 0 && len(v) != dims {
		return nil, fmt.Errorf("ollama: got %d dimensions, expected %d", len(v), dims)
	}
	return v, nil
}

func (e *OllamaEmbedder) embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(b))
	}
	var out ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("ollama: empty embedding from model %s", e.model)
	}
	v := make([]float32, len(out.Embedding))
	for i, f := range out.Embedding {
		v[i] = float32(f)
	}
	return v, nil
}

// EmbedBatch calls Embed for each text; Ollama has no batch endpoint for this API.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, e, texts)
}

// Dimensions returns the embedding dimension, or 0 before a successful DetectDimensions when unconfigured.
func (e *OllamaEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dimensions
}

// Close is a no-op; the HTTP client needs no cleanup.
func (e *OllamaEmbedder) Close() error {
	return nil
}
