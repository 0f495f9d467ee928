package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/zombor/receipt-vision/internal/audit"
	"github.com/zombor/receipt-vision/internal/config"
	"github.com/zombor/receipt-vision/internal/logging"
	"github.com/zombor/receipt-vision/internal/receipt"
	"github.com/zombor/receipt-vision/internal/scanning"
	"github.com/zombor/receipt-vision/internal/server"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

const shutdownTimeout = 30 * time.Second

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	cfg, err := config.Load(os.Args[1:], version)
	if err != nil {
		if cfg != nil {
			fmt.Fprintf(os.Stderr, "%s\n", cfg.Usage())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser, err := logging.New(logging.Options{Level: cfg.LogLevel, Dir: cfg.LogDir})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	if err := run(cfg); err != nil {
		slog.Error("Fatal error", "error", err)
		logCloser.Close()
		os.Exit(1)
	}
	logCloser.Close()
}

func run(cfg *config.Config) error {
	slog.Info("Starting receipt-vision",
		"version", cfg.Version,
		"app_env", cfg.AppEnv,
		"env_file", cfg.EnvFile,
		"analyzer", cfg.Analyzer,
	)

	httpClient := &http.Client{}

	slog.Info("Initializing vision client...", "endpoint", cfg.AzureVisionEndpoint)
	vision, err := scanning.NewVision(cfg.AzureVisionEndpoint, cfg.AzureVisionAPIEndpoint, cfg.AzureVisionKey, httpClient)
	if err != nil {
		return fmt.Errorf("initializing vision client: %w", err)
	}

	analyzer, err := newAnalyzer(cfg, httpClient)
	if err != nil {
		return err
	}
	defer analyzer.Close()

	slog.Info("Initializing storage...", "dir", cfg.UploadDir)
	storage, err := receipt.NewLocalStorage(cfg.UploadDir)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	opts := []receipt.ServiceOption{
		receipt.WithSink(receipt.LogSink{Logger: slog.Default()}),
		receipt.WithTimeout(cfg.ProviderTimeout),
	}

	var auditLog server.AuditLog
	if cfg.AuditDB != "" {
		slog.Info("Initializing audit store...", "path", cfg.AuditDB)
		store, err := audit.NewStore(cfg.AuditDB)
		if err != nil {
			return fmt.Errorf("initializing audit store: %w", err)
		}
		defer store.Close()
		opts = append(opts, receipt.WithRecorder(store))
		auditLog = store
	}

	service := receipt.NewService(analyzer, storage, opts...)
	srv := server.NewServer(vision, service, server.Options{
		Title:          cfg.APITitle,
		SplitDocuments: cfg.SplitDocuments,
		OCRTimeout:     cfg.ProviderTimeout,
		Audit:          auditLog,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.Addr())
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://%s", cfg.Addr()))

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-sigChan:
	}

	slog.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return <-errCh
}

// newAnalyzer builds the receipt analyzer selected by cfg.Analyzer
func newAnalyzer(cfg *config.Config, httpClient *http.Client) (scanning.Analyzer, error) {
	switch cfg.Analyzer {
	case config.AnalyzerGemini:
		slog.Info("Initializing Gemini analyzer...", "model", cfg.GeminiModel)
		a, err := scanning.NewGemini(context.Background(), cfg.GeminiKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("initializing Gemini: %w", err)
		}
		return a, nil
	case config.AnalyzerOllama:
		slog.Info("Initializing Ollama analyzer...", "url", cfg.OllamaURL, "model", cfg.OllamaModel)
		a, err := scanning.NewOllama(cfg.OllamaURL, cfg.OllamaModel, httpClient)
		if err != nil {
			return nil, fmt.Errorf("initializing Ollama: %w", err)
		}
		return a, nil
	default:
		slog.Info("Initializing Form Recognizer analyzer...", "endpoint", cfg.FormRecognizerEndpoint)
		a, err := scanning.NewFormRecognizer(cfg.FormRecognizerEndpoint, cfg.FormRecognizerKey, httpClient, cfg.PollInterval)
		if err != nil {
			return nil, fmt.Errorf("initializing Form Recognizer: %w", err)
		}
		return a, nil
	}
}
