package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hyperjump/docreader/pkg/utils"
	"go.uber.org/zap"
)

// Defaults for the Ollama HTTP backend.
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2"
	DefaultTimeout = 120 * time.Second
)

// HTTPConfig configures HTTPGenerator.
type HTTPConfig struct {
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float64
}

// HTTPGenerator calls Ollama's /api/generate with streaming disabled.
type HTTPGenerator struct {
	client  *http.Client
	baseURL string
	model   string
	timeout time.Duration
	temp    float64
	logger  *zap.Logger
}

type generateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	Stream  bool     `json:"stream"`
	Options *options `json:"options,omitempty"`
}

type options struct {
	Temperature float64 `json:"temperature,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewHTTPGenerator creates an Ollama HTTP generator.
func NewHTTPGenerator(cfg HTTPConfig, logger *zap.Logger) *HTTPGenerator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &HTTPGenerator{
		client:  &http.Client{},
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		temp:    cfg.Temperature,
		logger:  utils.OrNop(logger),
	}
}

// Generate sends the prompt and returns the full response text.
func (g *HTTPGenerator) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := withTimeout(ctx, req, g.timeout)
	defer cancel()

	start := time.Now()
	out, err := g.generate(ctx, req.Prompt)
	if err != nil {
		g.logger.Warn("generation failed", zap.String("model", g.model), zap.Error(err))
		return "", classify(ctx, "ollama http", err)
	}
	g.logger.Debug("generation done",
		zap.String("model", g.model),
		zap.Duration("took", time.Since(start)),
		zap.Int("response_bytes", len(out)))
	return out, nil
}

func (g *HTTPGenerator) generate(ctx context.Context, prompt string) (string, error) {
	body := generateRequest{Model: g.model, Prompt: prompt}
	if g.temp > 0 {
		body.Options = &options{Temperature: g.temp}
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/generate", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(b))
	}
	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.Response, nil
}
