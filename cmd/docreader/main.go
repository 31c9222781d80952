// Package main is the docreader CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/docreader/internal/cli"
	"github.com/hyperjump/docreader/internal/config"
	"github.com/hyperjump/docreader/internal/export"
	"github.com/hyperjump/docreader/internal/models"
	"github.com/hyperjump/docreader/internal/pipeline"
	"github.com/hyperjump/docreader/internal/server"
	"github.com/hyperjump/docreader/internal/storage"
	"github.com/hyperjump/docreader/internal/watcher"
	"github.com/hyperjump/docreader/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/docreader/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "verify":
		runVerify()
	case "search":
		runSearch()
	case "generate":
		runGenerate()
	case "status":
		runStatus()
	case "export":
		runExport()
	case "version", "--version", "-v":
		fmt.Printf("docreader version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// direct loads config and components for commands run without a server.
func direct(configPath string) (*config.Config, *Components, func()) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return cfg, components, func() {
		components.Close()
		_ = logger.Sync()
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	// The watcher runs even with no directories so a reload can add some.
	inbox := watcher.NewWatcher(
		cfg.Inbox.Directories,
		cfg.Inbox.Extensions,
		cfg.Inbox.RecursiveOrDefault(),
		inboxHandler(components.Pipeline, cfg.Inbox.DocType, cfg.Server.MaxUploadMB<<20),
		watcher.WithLogger(logger),
		watcher.WithDebounce(cfg.Inbox.Debounce),
	)
	if err := inbox.Start(ctx); err != nil {
		logger.Fatal("Failed to start inbox watcher", zap.Error(err))
	}
	inbox.SyncExistingFiles()

	srv := server.NewServer(components.Deps(), &cfg.Server, cfg.Search, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range sigChan {
		if sig != syscall.SIGHUP {
			break
		}
		reloadInbox(inbox, resolvedConfigPath, logger)
	}

	logger.Info("Shutting down...")
	cancel()
	inbox.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// inboxHandler verifies one dropped file with the inbox doc type.
func inboxHandler(v server.Verifier, docType string, maxBytes int64) watcher.Handler {
	return func(ctx context.Context, path string) error {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if maxBytes > 0 && info.Size() > maxBytes {
			return fmt.Errorf("%s is %d bytes, limit %d", path, info.Size(), maxBytes)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		_, err = v.Verify(ctx, pipeline.Upload{
			Filename: filepath.Base(path),
			Content:  content,
			DocType:  docType,
		})
		return err
	}
}

// reloadInbox re-reads the inbox directories from configPath. Other settings need a restart.
func reloadInbox(inbox *watcher.Watcher, configPath string, logger *zap.Logger) {
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("config reload failed", zap.String("config_path", configPath), zap.Error(err))
		return
	}
	if err := inbox.SetDirectories(cfg.Inbox.Directories); err != nil {
		logger.Error("inbox reload failed", zap.Error(err))
		return
	}
	logger.Info("inbox directories reloaded", zap.Strings("directories", inbox.Directories()))
}

// reorderArgs moves any flags (and their values) that appear after the positional
// arguments to the front so that flag.Parse() sees them. Go's flag package stops
// at the first non-flag argument.
func reorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func parseOutput(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

func runVerify() {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = process locally without a server)")
	docType := fs.String("doc-type", "", "statement | invoice | loan_agreement | generic (default from config)")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: docreader verify [flags] <file>...")
		os.Exit(1)
	}
	format := parseOutput(*outputFormat)
	ctx := context.Background()

	var verify func(path string) (*models.VerifyResult, error)
	if *serverURL != "" {
		client := cli.NewClient(*serverURL, 0)
		verify = func(path string) (*models.VerifyResult, error) {
			return client.Verify(ctx, path, *docType)
		}
	} else {
		_, components, done := direct(*configPath)
		defer done()
		verify = func(path string) (*models.VerifyResult, error) {
			content, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			return components.Pipeline.Verify(ctx, pipeline.Upload{
				Filename: filepath.Base(path),
				Content:  content,
				DocType:  *docType,
			})
		}
	}

	failed := 0
	for _, path := range fs.Args() {
		res, err := verify(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Verify %s failed: %v\n", path, err)
			failed++
			continue
		}
		if err := cli.WriteVerifyResult(os.Stdout, res, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage when server is not running)")
	k := fs.Int("k", 0, "number of results (default from config)")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	query := buildSearchQuery(fs.Args())
	if query == "" {
		fmt.Println("Usage: docreader search [flags] <query>")
		os.Exit(1)
	}
	format := parseOutput(*outputFormat)
	ctx := context.Background()

	var hits []models.SearchHit
	var err error
	if *serverURL != "" {
		// Use HTTP API when server is running (avoids Bleve/SQLite lock conflict).
		hits, err = cli.NewClient(*serverURL, 0).Search(ctx, query, *k)
	} else {
		cfg, components, done := direct(*configPath)
		defer done()
		n := *k
		if n <= 0 {
			n = cfg.Search.DefaultK
		}
		if n > cfg.Search.MaxK {
			n = cfg.Search.MaxK
		}
		hits, err = components.Semantic.Search(ctx, query, n)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchHits(os.Stdout, query, hits, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runGenerate() {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = generate locally)")
	kind := fs.String("kind", "statement", "document kind, e.g. statement, invoice, loan_agreement")
	_ = fs.Parse(os.Args[2:])

	ctx := context.Background()
	var path string
	var err error
	if *serverURL != "" {
		path, err = cli.NewClient(*serverURL, 0).Generate(ctx, *kind)
	} else {
		_, components, done := direct(*configPath)
		defer done()
		path, err = components.Generator.Generate(ctx, *kind)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Generate failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(path)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseOutput(*outputFormat)

	var status *cli.Status
	if *serverURL != "" {
		res, err := cli.NewClient(*serverURL, 10*time.Second).Status(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = res
	} else {
		_, components, done := direct(*configPath)
		defer done()
		res, err := localStatus(context.Background(), components)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = res
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func localStatus(ctx context.Context, c *Components) (*cli.Status, error) {
	docCount, err := c.Store.CountRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	s := &cli.Status{
		Documents:         docCount,
		SemanticIndexSize: c.Semantic.Size(),
		Config: &cli.StatusConfig{
			VectorIndexType:     c.Semantic.Backend(),
			EmbeddingDimensions: c.Semantic.Dimensions(),
		},
	}
	if n, err := c.Keyword.DocCount(); err == nil {
		s.KeywordIndexSize = &n
	}
	if diskBytes, err := storage.DiskUsageBytes(c.diskPaths...); err == nil {
		s.DiskUsageBytes = &diskBytes
	}
	return s, nil
}

func runExport() {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read storage directly)")
	docType := fs.String("doc-type", "", "only export records with this doc type")
	out := fs.String("o", "documents.xlsx", "output file")
	_ = fs.Parse(os.Args[2:])

	ctx := context.Background()
	var data []byte
	var err error
	if *serverURL != "" {
		data, err = cli.NewClient(*serverURL, 0).Export(ctx, *docType)
	} else {
		_, components, done := direct(*configPath)
		defer done()
		data, _, err = components.Exporter.WriteXLSX(ctx, export.Filter{DocType: *docType})
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Write %s failed: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s (%d bytes)\n", *out, len(data))
}

func printUsage() {
	fmt.Println(`docreader - Document intake: OCR, field extraction, semantic search

Usage:
  docreader server [flags]            Start the HTTP server (and inbox watcher)
  docreader verify [flags] <file>...  OCR a document, extract fields, store and index it
  docreader search [flags] <query>    Semantic search over stored documents
  docreader generate [flags]          Generate a synthetic sample PDF
  docreader status [flags]            Show record/index counts
  docreader export [flags]            Export records to an XLSX workbook
  docreader version                   Show version
  docreader help                      Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/docreader/config.yaml, or ./config.yaml if present)
  --server string    Server URL (default: http://localhost:8080). Use --server "" to run against local storage.

Server Flags:
  --debug            Enable debug logging

Verify Flags:
  --doc-type string  statement | invoice | loan_agreement | generic
  --output string    text, compact, or json (default: text)

Search Flags:
  --k int            Number of results (default from config, 5)
  --output string    text, compact, or json (default: text)

Generate Flags:
  --kind string      Document kind (default: statement)

Export Flags:
  --doc-type string  Only export this doc type
  -o string          Output file (default: documents.xlsx)

Examples:
  docreader server
  docreader verify --doc-type invoice scan.pdf
  docreader search "late payment fee"
  docreader search --output json -k 10 mortgage
  docreader generate --kind invoice
  docreader export -o invoices.xlsx --doc-type invoice`)
}
