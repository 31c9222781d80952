// Package config provides configuration loading and structs for the docreader server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Index     IndexConfig     `yaml:"index"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	OCR       OCRConfig       `yaml:"ocr"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Generate  GenerateConfig  `yaml:"generate"`
	Search    SearchConfig    `yaml:"search"`
	Inbox     InboxConfig     `yaml:"inbox"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxUploadMB    int64         `yaml:"max_upload_mb"`
}

// StorageConfig holds the record store and keyword index locations.
type StorageConfig struct {
	// Driver is sqlite3 (cgo), sqlite (pure Go) or pgx.
	Driver           string `yaml:"driver"`
	DatabasePath     string `yaml:"database_path"`
	DSN              string `yaml:"dsn"`
	KeywordIndexPath string `yaml:"keyword_index_path"`
}

// DataSource returns the DSN for pgx and the database path for the SQLite drivers.
func (s *StorageConfig) DataSource() string {
	if s.Driver == "pgx" {
		return s.DSN
	}
	if s.DSN != "" {
		return s.DSN
	}
	return s.DatabasePath
}

// IndexConfig holds the semantic index location and vector backend.
type IndexConfig struct {
	Dir  string `yaml:"dir"`
	Type string `yaml:"type"`
}

// EmbeddingConfig selects the text embedder.
type EmbeddingConfig struct {
	// Provider is mock, ollama or onnx.
	Provider   string        `yaml:"provider"`
	BaseURL    string        `yaml:"base_url"`
	Model      string        `yaml:"model"`
	ModelPath  string        `yaml:"model_path"`
	Dimensions int           `yaml:"dimensions"`
	MaxTokens  int           `yaml:"max_tokens"`
	CacheSize  int           `yaml:"cache_size"`
	Timeout    time.Duration `yaml:"timeout"`
}

// LLMConfig selects the text generator used for field extraction and synthesis.
type LLMConfig struct {
	// Provider is http, process or static.
	Provider    string        `yaml:"provider"`
	BaseURL     string        `yaml:"base_url"`
	Command     string        `yaml:"command"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float64       `yaml:"temperature"`
	// RatePerSecond limits generator calls; zero disables the limit.
	RatePerSecond  float64 `yaml:"rate_per_second"`
	Burst          int     `yaml:"burst"`
	DegradeOnError *bool   `yaml:"degrade_on_error"`
	// StaticResponse is returned by the static provider.
	StaticResponse string `yaml:"static_response"`
}

// DegradeOnErrorOrDefault returns whether generator failures degrade to the
// unverified sentinel; defaults to false when unset.
func (l *LLMConfig) DegradeOnErrorOrDefault() bool {
	if l.DegradeOnError != nil {
		return *l.DegradeOnError
	}
	return false
}

// OCRConfig selects the rasterizer and recognizer backends.
type OCRConfig struct {
	Rasterizer    string        `yaml:"rasterizer"`
	Recognizer    string        `yaml:"recognizer"`
	DPI           int           `yaml:"dpi"`
	Languages     []string      `yaml:"languages"`
	PdftoppmPath  string        `yaml:"pdftoppm_path"`
	TesseractPath string        `yaml:"tesseract_path"`
	TessdataDir   string        `yaml:"tessdata_dir"`
	Timeout       time.Duration `yaml:"timeout"`
	TextLayer     bool          `yaml:"text_layer"`
}

// PipelineConfig holds verification settings.
type PipelineConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	DefaultDocType string        `yaml:"default_doc_type"`
}

// GenerateConfig holds synthetic document settings.
type GenerateConfig struct {
	OutputDir string        `yaml:"output_dir"`
	Timeout   time.Duration `yaml:"timeout"`
}

// SearchConfig holds semantic search limits.
type SearchConfig struct {
	DefaultK int `yaml:"default_k"`
	MaxK     int `yaml:"max_k"`
}

// InboxConfig holds the watched inbox directories.
type InboxConfig struct {
	Directories []string      `yaml:"directories"`
	Extensions  []string      `yaml:"extensions"`
	Recursive   *bool         `yaml:"recursive"`
	DocType     string        `yaml:"doc_type"`
	Debounce    time.Duration `yaml:"debounce"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *InboxConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.KeywordIndexPath = expandPath(cfg.Storage.KeywordIndexPath, configDir)
	cfg.Index.Dir = expandPath(cfg.Index.Dir, configDir)
	cfg.Generate.OutputDir = expandPath(cfg.Generate.OutputDir, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	if cfg.OCR.TessdataDir != "" {
		cfg.OCR.TessdataDir = expandPath(cfg.OCR.TessdataDir, configDir)
	}
	for i := range cfg.Inbox.Directories {
		cfg.Inbox.Directories[i] = expandPath(cfg.Inbox.Directories[i], configDir)
	}

	return &cfg, nil
}

// Validate rejects settings that cannot be served.
func Validate(cfg *Config) error {
	switch cfg.Storage.Driver {
	case "sqlite3", "sqlite":
	case "pgx":
		if cfg.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for driver pgx")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q (supported: sqlite3, sqlite, pgx)", cfg.Storage.Driver)
	}
	switch cfg.Embedding.Provider {
	case "mock", "ollama", "onnx":
	default:
		return fmt.Errorf("unknown embedding.provider %q (supported: mock, ollama, onnx)", cfg.Embedding.Provider)
	}
	switch cfg.LLM.Provider {
	case "http", "process", "static":
	default:
		return fmt.Errorf("unknown llm.provider %q (supported: http, process, static)", cfg.LLM.Provider)
	}
	if cfg.Search.DefaultK > cfg.Search.MaxK {
		return fmt.Errorf("search.default_k (%d) exceeds search.max_k (%d)", cfg.Search.DefaultK, cfg.Search.MaxK)
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
