package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_durationsAreStrings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
llm:
  timeout: "45s"
ocr:
  timeout: "2m"
pipeline:
  timeout: "3m30s"
inbox:
  debounce: "250ms"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.Timeout != 45*time.Second {
		t.Errorf("llm.timeout = %v", cfg.LLM.Timeout)
	}
	if cfg.OCR.Timeout != 2*time.Minute {
		t.Errorf("ocr.timeout = %v", cfg.OCR.Timeout)
	}
	if cfg.Pipeline.Timeout != 3*time.Minute+30*time.Second {
		t.Errorf("pipeline.timeout = %v", cfg.Pipeline.Timeout)
	}
	if cfg.Inbox.Debounce != 250*time.Millisecond {
		t.Errorf("inbox.debounce = %v", cfg.Inbox.Debounce)
	}
	if cfg.Generate.Timeout != 45*time.Second {
		t.Errorf("generate.timeout should follow llm.timeout, got %v", cfg.Generate.Timeout)
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./data/db/documents.db"
index:
  dir: "./data/indices/semantic"
generate:
  output_dir: "./generated"
inbox:
  directories: ["./inbox"]
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "data", "db", "documents.db"); cfg.Storage.DatabasePath != want {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, want)
	}
	if want := filepath.Join(dir, "data", "indices", "semantic"); cfg.Index.Dir != want {
		t.Errorf("index.dir = %s, want %s", cfg.Index.Dir, want)
	}
	if want := filepath.Join(dir, "generated"); cfg.Generate.OutputDir != want {
		t.Errorf("generate.output_dir = %s, want %s", cfg.Generate.OutputDir, want)
	}
	if len(cfg.Inbox.Directories) != 1 || cfg.Inbox.Directories[0] != filepath.Join(dir, "inbox") {
		t.Errorf("inbox directories = %v", cfg.Inbox.Directories)
	}
}

func TestLoad_rejectsUnknownProviders(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"storage driver", "storage:\n  driver: mysql\n", "storage.driver"},
		{"pgx without dsn", "storage:\n  driver: pgx\n", "storage.dsn"},
		{"embedding", "embedding:\n  provider: openai\n", "embedding.provider"},
		{"llm", "llm:\n  provider: grpc\n", "llm.provider"},
		{"k bounds", "search:\n  default_k: 50\n  max_k: 10\n", "search.default_k"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Storage.Driver != "sqlite3" {
		t.Errorf("default driver: got %s", cfg.Storage.Driver)
	}
	if cfg.Search.DefaultK != 5 {
		t.Errorf("default k: got %d", cfg.Search.DefaultK)
	}
	if cfg.OCR.DPI != 200 {
		t.Errorf("default dpi: got %d", cfg.OCR.DPI)
	}
	if cfg.Pipeline.DefaultDocType != "statement" || cfg.Inbox.DocType != "statement" {
		t.Errorf("default doc types: pipeline=%s inbox=%s", cfg.Pipeline.DefaultDocType, cfg.Inbox.DocType)
	}
	if cfg.Embedding.Provider != "mock" || cfg.Embedding.Dimensions != 384 {
		t.Errorf("default embedding: %+v", cfg.Embedding)
	}
	if cfg.LLM.DegradeOnErrorOrDefault() {
		t.Error("degrade_on_error should default to false")
	}
	if len(cfg.Inbox.Extensions) != 9 || cfg.Inbox.Extensions[0] != ".pdf" {
		t.Errorf("inbox extensions: got %v", cfg.Inbox.Extensions)
	}
}

func TestApplyDefaults_OllamaDimensionsLearned(t *testing.T) {
	cfg := &Config{Embedding: EmbeddingConfig{Provider: "ollama"}}
	ApplyDefaults(cfg)
	if cfg.Embedding.Dimensions != 0 {
		t.Errorf("ollama dimensions should stay unset for probing, got %d", cfg.Embedding.Dimensions)
	}
}

func TestApplyDefaults_InboxRecursiveWhenDirectoriesSet(t *testing.T) {
	cfg := &Config{Inbox: InboxConfig{Directories: []string{"/tmp/inbox"}}}
	ApplyDefaults(cfg)
	if cfg.Inbox.Recursive == nil || !*cfg.Inbox.Recursive {
		t.Error("recursive should default to true when directories are set")
	}
}

func TestInboxConfig_RecursiveOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		w := &InboxConfig{}
		if got := w.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		w := &InboxConfig{Recursive: &f}
		if got := w.RecursiveOrDefault(); got {
			t.Errorf("RecursiveOrDefault() = %v, want false", got)
		}
	})
}

func TestStorageConfig_DataSource(t *testing.T) {
	s := StorageConfig{Driver: "sqlite3", DatabasePath: "/var/db/documents.db"}
	if got := s.DataSource(); got != "/var/db/documents.db" {
		t.Errorf("sqlite DataSource() = %s", got)
	}
	s = StorageConfig{Driver: "pgx", DatabasePath: "/ignored", DSN: "postgres://localhost/docs"}
	if got := s.DataSource(); got != "postgres://localhost/docs" {
		t.Errorf("pgx DataSource() = %s", got)
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{DatabasePath: "/tmp/db"},
		LLM:     LLMConfig{Timeout: 30 * time.Second},
	}
	ApplyDefaults(cfg)
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.LLM.Timeout != 30*time.Second {
		t.Errorf("loaded llm timeout: got %v", loaded.LLM.Timeout)
	}
}
