package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 15 * time.Minute
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 50
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite3"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/docreader/data/db/documents.db"
	}
	if cfg.Storage.KeywordIndexPath == "" {
		cfg.Storage.KeywordIndexPath = "/usr/local/var/docreader/data/indices/bleve"
	}
	if cfg.Index.Dir == "" {
		cfg.Index.Dir = "/usr/local/var/docreader/data/indices/semantic"
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "memory"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "mock"
	}
	if cfg.Embedding.Dimensions == 0 && cfg.Embedding.Provider != "ollama" {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 60 * time.Second
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "http"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "llama3.2"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 120 * time.Second
	}
	if cfg.LLM.Burst == 0 {
		cfg.LLM.Burst = 1
	}
	if cfg.OCR.Rasterizer == "" {
		cfg.OCR.Rasterizer = "auto"
	}
	if cfg.OCR.Recognizer == "" {
		cfg.OCR.Recognizer = "auto"
	}
	if cfg.OCR.DPI == 0 {
		cfg.OCR.DPI = 200
	}
	if len(cfg.OCR.Languages) == 0 {
		cfg.OCR.Languages = []string{"eng"}
	}
	if cfg.OCR.Timeout == 0 {
		cfg.OCR.Timeout = 5 * time.Minute
	}
	if cfg.Pipeline.Timeout == 0 {
		cfg.Pipeline.Timeout = 10 * time.Minute
	}
	if cfg.Pipeline.DefaultDocType == "" {
		cfg.Pipeline.DefaultDocType = "statement"
	}
	if cfg.Generate.OutputDir == "" {
		cfg.Generate.OutputDir = "/usr/local/var/docreader/data/generated"
	}
	if cfg.Generate.Timeout == 0 {
		cfg.Generate.Timeout = cfg.LLM.Timeout
	}
	if cfg.Search.DefaultK == 0 {
		cfg.Search.DefaultK = 5
	}
	if cfg.Search.MaxK == 0 {
		cfg.Search.MaxK = 100
	}
	if cfg.Inbox.Extensions == nil {
		cfg.Inbox.Extensions = []string{".pdf", ".png", ".jpg", ".jpeg", ".tif", ".tiff", ".bmp", ".gif", ".webp"}
	}
	if cfg.Inbox.DocType == "" {
		cfg.Inbox.DocType = cfg.Pipeline.DefaultDocType
	}
	if cfg.Inbox.Debounce == 0 {
		cfg.Inbox.Debounce = time.Second
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Inbox.Directories) > 0 && cfg.Inbox.Recursive == nil {
		t := true
		cfg.Inbox.Recursive = &t
	}
}
