package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/dgallion1/docqa/internal/chunker"
	"github.com/dgallion1/docqa/internal/completion"
)

// ConfigEnv names the environment variable that points at a config file.
const ConfigEnv = "DOCQA_CONFIG"

var configCandidates = []string{
	"./docqa.yaml",
	"./config/docqa.yaml",
}

type Config struct {
	Port     string `yaml:"port" envconfig:"PORT"`
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"`

	// Completion provider
	ProviderAPIKey  string        `yaml:"provider_api_key" envconfig:"PPLX_API_KEY"`
	ProviderBaseURL string        `yaml:"provider_base_url" envconfig:"PROVIDER_BASE_URL"`
	ProviderModels  []string      `yaml:"provider_models" envconfig:"PROVIDER_MODELS"`
	AttemptTimeout  time.Duration `yaml:"provider_attempt_timeout" envconfig:"PROVIDER_ATTEMPT_TIMEOUT"`
	MaxOutputTokens int64         `yaml:"provider_max_tokens" envconfig:"PROVIDER_MAX_TOKENS"`
	Temperature     float64       `yaml:"provider_temperature" envconfig:"PROVIDER_TEMPERATURE"`

	// Upload limits
	MaxUploadBytes int64 `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES"`

	// Chunking and retrieval defaults
	DefaultChunkSize    int    `yaml:"default_chunk_size" envconfig:"DEFAULT_CHUNK_SIZE"`
	DefaultChunkOverlap int    `yaml:"default_chunk_overlap" envconfig:"DEFAULT_CHUNK_OVERLAP"`
	DefaultTopK         int    `yaml:"default_top_k" envconfig:"DEFAULT_TOP_K"`
	PageEstimate        string `yaml:"page_estimate" envconfig:"PAGE_ESTIMATE"`
	TokenizerEncoding   string `yaml:"tokenizer_encoding" envconfig:"TOKENIZER_ENCODING"`

	// Worker pool
	WorkerCount  int           `yaml:"worker_count" envconfig:"WORKER_COUNT"`
	MaxQueueSize int           `yaml:"max_queue_size" envconfig:"MAX_QUEUE_SIZE"`
	JobTTL       time.Duration `yaml:"job_ttl" envconfig:"JOB_TTL"`

	// PDF
	PDFFallbackPdftotext bool `yaml:"pdf_fallback_pdftotext" envconfig:"PDF_FALLBACK_PDFTOTEXT"`

	CORSOrigins []string `yaml:"cors_origins" envconfig:"CORS_ORIGINS"`

	// Path of the config file that was loaded, if any.
	Source string `yaml:"-" ignored:"true"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:     "5000",
		LogLevel: "info",

		ProviderBaseURL: completion.DefaultBaseURL,
		ProviderModels:  completion.DefaultModels(),
		AttemptTimeout:  30 * time.Second,
		MaxOutputTokens: 1000,
		Temperature:     0.1,

		MaxUploadBytes: 50 << 20,

		DefaultChunkSize:    1000,
		DefaultChunkOverlap: 200,
		DefaultTopK:         5,
		PageEstimate:        string(chunker.PageLinear),
		TokenizerEncoding:   "cl100k_base",

		WorkerCount:  2,
		MaxQueueSize: 16,
		JobTTL:       time.Hour,

		PDFFallbackPdftotext: true,

		CORSOrigins: []string{"*"},
	}
}

// Load resolves configuration: defaults < YAML < env < changed flags.
// fs gets the flag definitions bound and is parsed with args.
func Load(fs *pflag.FlagSet, args []string) (Config, error) {
	cfg := Default()
	BindFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	path, err := discover(fs)
	if err != nil {
		return Config{}, err
	}
	if path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("load yaml %s: %w", path, err)
		}
		cfg.Source = path
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("env override: %w", err)
	}

	applyChangedFlags(fs, &cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.DefaultChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("default chunk size must be positive, got %d", c.DefaultChunkSize))
	}
	if c.DefaultChunkOverlap < 0 || c.DefaultChunkOverlap >= c.DefaultChunkSize {
		errs = append(errs, fmt.Errorf("default chunk overlap %d must be in [0, %d)", c.DefaultChunkOverlap, c.DefaultChunkSize))
	}
	if c.DefaultTopK <= 0 {
		errs = append(errs, fmt.Errorf("default top_k must be positive, got %d", c.DefaultTopK))
	}
	if c.WorkerCount <= 0 {
		errs = append(errs, fmt.Errorf("worker count must be positive, got %d", c.WorkerCount))
	}
	if c.MaxQueueSize <= 0 {
		errs = append(errs, fmt.Errorf("max queue size must be positive, got %d", c.MaxQueueSize))
	}
	if len(c.ProviderModels) == 0 {
		errs = append(errs, errors.New("provider model list is empty"))
	}
	switch chunker.PageMode(c.PageEstimate) {
	case chunker.PageLinear, chunker.PageTracked:
	default:
		errs = append(errs, fmt.Errorf("unknown page estimate mode %q", c.PageEstimate))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}
	if c.AttemptTimeout <= 0 {
		errs = append(errs, fmt.Errorf("provider attempt timeout must be positive, got %s", c.AttemptTimeout))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("max upload bytes must be positive, got %d", c.MaxUploadBytes))
	}
	return errors.Join(errs...)
}

// Chunking returns the default chunk window.
func (c Config) Chunking() chunker.Config {
	return chunker.Config{
		ChunkSize: c.DefaultChunkSize,
		Overlap:   c.DefaultChunkOverlap,
		PageMode:  chunker.PageMode(c.PageEstimate),
	}
}

// Completion returns the provider client settings.
func (c Config) Completion() completion.Config {
	return completion.Config{
		BaseURL:        c.ProviderBaseURL,
		Models:         c.ProviderModels,
		AttemptTimeout: c.AttemptTimeout,
		MaxTokens:      c.MaxOutputTokens,
		Temperature:    c.Temperature,
	}
}

// Level parses LogLevel, falling back to info.
func (c Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// BindFlags registers the command-line flags with defaults taken from c.
func BindFlags(fs *pflag.FlagSet, c Config) {
	fs.String("config", "", "Path to config file")

	fs.String("port", c.Port, "HTTP listen port")
	fs.String("log-level", c.LogLevel, "Log level (debug|info|warn|error)")

	fs.String("provider-base-url", c.ProviderBaseURL, "Completion provider base URL")
	fs.StringSlice("provider-models", c.ProviderModels, "Models to try, in order")
	fs.Duration("provider-attempt-timeout", c.AttemptTimeout, "Timeout for a single model attempt")

	fs.Int64("max-upload-bytes", c.MaxUploadBytes, "Maximum upload size in bytes")

	fs.Int("chunk-size", c.DefaultChunkSize, "Default chunk size in words")
	fs.Int("chunk-overlap", c.DefaultChunkOverlap, "Default chunk overlap in words")
	fs.Int("top-k", c.DefaultTopK, "Default number of chunks per query")
	fs.String("page-estimate", c.PageEstimate, "Page estimate mode (linear|tracked)")
	fs.String("tokenizer-encoding", c.TokenizerEncoding, "tiktoken encoding for prompt token counts (empty disables)")

	fs.Int("workers", c.WorkerCount, "Async ingest workers")
	fs.Bool("pdf-fallback-pdftotext", c.PDFFallbackPdftotext, "Fall back to pdftotext when PDF extraction fails")
	fs.StringSlice("cors-origins", c.CORSOrigins, "Allowed CORS origins")
}

// ---------- helpers ----------

func discover(fs *pflag.FlagSet) (string, error) {
	path, _ := fs.GetString("config")
	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	if path != "" {
		if !fileExists(path) {
			return "", fmt.Errorf("config file not found: %s", path)
		}
		return path, nil
	}
	for _, cand := range configCandidates {
		if fileExists(cand) {
			return cand, nil
		}
	}
	return "", nil
}

func loadYAML(path string, into any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, into)
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}

func applyChangedFlags(fs *pflag.FlagSet, c *Config) {
	setStr := func(name string, dst *string) {
		if fs.Changed(name) {
			v, _ := fs.GetString(name)
			*dst = strings.TrimSpace(v)
		}
	}
	setInt := func(name string, dst *int) {
		if fs.Changed(name) {
			v, _ := fs.GetInt(name)
			*dst = v
		}
	}
	setSlice := func(name string, dst *[]string) {
		if fs.Changed(name) {
			v, _ := fs.GetStringSlice(name)
			*dst = v
		}
	}

	setStr("port", &c.Port)
	setStr("log-level", &c.LogLevel)

	setStr("provider-base-url", &c.ProviderBaseURL)
	setSlice("provider-models", &c.ProviderModels)
	if fs.Changed("provider-attempt-timeout") {
		c.AttemptTimeout, _ = fs.GetDuration("provider-attempt-timeout")
	}

	if fs.Changed("max-upload-bytes") {
		c.MaxUploadBytes, _ = fs.GetInt64("max-upload-bytes")
	}

	setInt("chunk-size", &c.DefaultChunkSize)
	setInt("chunk-overlap", &c.DefaultChunkOverlap)
	setInt("top-k", &c.DefaultTopK)
	setStr("page-estimate", &c.PageEstimate)
	setStr("tokenizer-encoding", &c.TokenizerEncoding)

	setInt("workers", &c.WorkerCount)
	if fs.Changed("pdf-fallback-pdftotext") {
		c.PDFFallbackPdftotext, _ = fs.GetBool("pdf-fallback-pdftotext")
	}
	setSlice("cors-origins", &c.CORSOrigins)
}
