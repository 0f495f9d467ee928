// Package config builds the service configuration from flags, the
// environment and the per-environment env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
)

const (
	AnalyzerAzure  = "azure"
	AnalyzerGemini = "gemini"
	AnalyzerOllama = "ollama"
)

// Config holds everything main needs to wire the service
type Config struct {
	ServerHost string
	ServerPort int
	APITitle   string
	AppEnv     string
	Version    string

	AzureVisionKey         string
	AzureVisionEndpoint    string
	AzureVisionAPIEndpoint string

	FormRecognizerKey      string
	FormRecognizerEndpoint string

	Analyzer    string
	GeminiKey   string
	GeminiModel string
	OllamaURL   string
	OllamaModel string

	UploadDir       string
	AuditDB         string
	ProviderTimeout time.Duration
	PollInterval    time.Duration
	SplitDocuments  bool

	LogDir   string
	LogLevel string

	// EnvFile is the env file that was loaded, if any
	EnvFile string

	fs *ff.FlagSet
}

// Addr is the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// Usage renders the flag help
func (c *Config) Usage() string {
	return ffhelp.Flags(c.fs).String()
}

// EnvName returns the env file selector. The lower case variant is
// accepted for existing deployments.
func EnvName() string {
	for _, key := range []string{"AZURE_VISION_ENV", "azure_vision_env"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return strings.ToLower(v)
		}
	}
	return "dev"
}

// loadEnvFile loads conf/<env>.env into the environment without
// overriding variables that are already set
func loadEnvFile() (string, error) {
	dir := os.Getenv("CONF_DIR")
	if dir == "" {
		dir = "conf"
	}
	path := filepath.Join(dir, EnvName()+".env")

	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("loading %s: %w", path, err)
	}
	return path, nil
}

// Load parses args on top of the environment. version is the build version
// used as the default of --version.
func Load(args []string, version string) (*Config, error) {
	envFile, err := loadEnvFile()
	if err != nil {
		return nil, err
	}

	fs := ff.NewFlagSet("receipt-vision")
	var (
		serverHost  = fs.StringLong("server-host", "0.0.0.0", "HTTP listen host")
		serverPort  = fs.IntLong("server-port", 8080, "HTTP listen port")
		apiTitle    = fs.StringLong("api-title", "Azure Vision API", "name reported by GET /")
		appEnv      = fs.StringLong("app-env", "local", "application environment: local, staging or production")
		appVersion  = fs.StringLong("version", version, "version reported in logs")
		visionKey   = fs.StringLong("azure-vision-key", "", "Azure AI Vision subscription key")
		visionURL   = fs.StringLong("azure-vision-endpoint", "", "Azure AI Vision resource endpoint")
		visionPath  = fs.StringLong("azure-vision-api-endpoint", "/computervision/imageanalysis:analyze?api-version=2023-02-01-preview", "image analysis path appended to the endpoint")
		formKey     = fs.StringLong("azure-form-recognizer-key", "", "Azure Form Recognizer subscription key")
		formURL     = fs.StringLong("azure-form-recognizer-endpoint", "", "Azure Form Recognizer resource endpoint")
		analyzer    = fs.StringLong("analyzer", AnalyzerAzure, "receipt analyzer: 'azure', 'gemini' or 'ollama'")
		geminiKey   = fs.StringLong("gemini-api-key", "", "Google Gemini API key")
		geminiModel = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL   = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl)")
		uploadDir   = fs.StringLong("upload-dir", filepath.Join(os.TempDir(), "receipt-vision"), "directory for uploads being analyzed")
		auditDB     = fs.StringLong("audit-db", "", "bbolt file recording field confidences (disabled when empty)")
		timeout     = fs.DurationLong("provider-timeout", 60*time.Second, "deadline for a single provider analysis")
		poll        = fs.DurationLong("poll-interval", time.Second, "delay between analysis status polls")
		split       = fs.BoolLong("split-documents", "answer one receipt per analyzed document")
		logDir      = fs.StringLong("log-dir", "logs", "directory for the info and error log files (disabled when empty)")
		logLevel    = fs.StringLong("log-level", "info", "log level: debug, info, warn or error")
	)

	c := &Config{fs: fs, EnvFile: envFile}
	if err := ff.Parse(fs, args, ff.WithEnvVars()); err != nil {
		return c, err
	}

	c.ServerHost = *serverHost
	c.ServerPort = *serverPort
	c.APITitle = *apiTitle
	c.AppEnv = *appEnv
	c.Version = *appVersion
	c.AzureVisionKey = *visionKey
	c.AzureVisionEndpoint = *visionURL
	c.AzureVisionAPIEndpoint = *visionPath
	c.FormRecognizerKey = *formKey
	c.FormRecognizerEndpoint = *formURL
	c.Analyzer = strings.ToLower(strings.TrimSpace(*analyzer))
	c.GeminiKey = *geminiKey
	c.GeminiModel = *geminiModel
	c.OllamaURL = *ollamaURL
	c.OllamaModel = *ollamaModel
	c.UploadDir = *uploadDir
	c.AuditDB = *auditDB
	c.ProviderTimeout = *timeout
	c.PollInterval = *poll
	c.SplitDocuments = *split
	c.LogDir = *logDir
	c.LogLevel = *logLevel

	if err := c.validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c *Config) validate() error {
	var errs []error

	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("server-port %d out of range", c.ServerPort))
	}
	if c.AzureVisionEndpoint == "" {
		errs = append(errs, errors.New("azure-vision-endpoint is required"))
	}
	if c.AzureVisionKey == "" {
		errs = append(errs, errors.New("azure-vision-key is required"))
	}

	switch c.Analyzer {
	case AnalyzerAzure:
		if c.FormRecognizerEndpoint == "" {
			errs = append(errs, errors.New("azure-form-recognizer-endpoint is required for the azure analyzer"))
		}
		if c.FormRecognizerKey == "" {
			errs = append(errs, errors.New("azure-form-recognizer-key is required for the azure analyzer"))
		}
	case AnalyzerGemini:
		if c.GeminiKey == "" {
			errs = append(errs, errors.New("gemini-api-key is required for the gemini analyzer"))
		}
	case AnalyzerOllama:
	default:
		errs = append(errs, fmt.Errorf("invalid analyzer %q, valid: azure, gemini or ollama", c.Analyzer))
	}

	if c.ProviderTimeout <= 0 {
		errs = append(errs, errors.New("provider-timeout must be positive"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll-interval must be positive"))
	}

	return errors.Join(errs...)
}
