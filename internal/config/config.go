// Package config provides configuration management for the research workspace.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the service reads.
const EnvPrefix = "RESEARCH"

// Config holds all configuration for the research workspace.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Search contains aggregator and controller settings.
	Search SearchConfig `mapstructure:"search"`
	// PDF contains PDF viewer proxy settings.
	PDF PDFConfig `mapstructure:"pdf"`
	// PaperSources contains paper source API configurations.
	PaperSources PaperSourcesConfig `mapstructure:"paper_sources"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// SessionTTL is how long an idle search session is kept before it is reaped.
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
	// Namespace prefixes every metric name.
	Namespace string `mapstructure:"namespace"`
}

// SearchConfig holds aggregator, adapter and controller settings.
type SearchConfig struct {
	// DefaultLimit is the result cap when a request sets none (default: 30).
	DefaultLimit int `mapstructure:"default_limit"`
	// SourceTimeout bounds one adapter search (default: 10s).
	SourceTimeout time.Duration `mapstructure:"source_timeout"`
	// Debounce is the controller's quiet period after the last input (default: 400ms).
	Debounce time.Duration `mapstructure:"debounce"`
	// MaxRetries is the number of provider retries on 429/5xx (default: 1).
	MaxRetries int `mapstructure:"max_retries"`
	// RetryDelay is the base delay between provider retries (default: 500ms).
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// Dedupe drops later records matching an earlier one by DOI or title (default: false).
	Dedupe bool `mapstructure:"dedupe"`
}

// PDFConfig holds PDF proxy settings.
type PDFConfig struct {
	// Timeout bounds one PDF fetch.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxSize is the largest PDF the proxy will stream, in bytes.
	MaxSize int64 `mapstructure:"max_size"`
	// AllowPrivateHosts disables the private-address guard. Test use only.
	AllowPrivateHosts bool `mapstructure:"allow_private_hosts"`
}

// PaperSourcesConfig holds configuration for all paper source APIs.
type PaperSourcesConfig struct {
	// PubMed contains NCBI E-utilities settings.
	PubMed PaperSourceConfig `mapstructure:"pubmed"`
	// ArXiv contains arXiv API settings.
	ArXiv PaperSourceConfig `mapstructure:"arxiv"`
	// BioRxiv contains bioRxiv (Europe PMC) settings.
	BioRxiv PaperSourceConfig `mapstructure:"biorxiv"`
	// MedRxiv contains medRxiv (Europe PMC) settings.
	MedRxiv PaperSourceConfig `mapstructure:"medrxiv"`
	// CrossRef contains CrossRef API settings.
	CrossRef PaperSourceConfig `mapstructure:"crossref"`
	// SemanticScholar contains Semantic Scholar API settings.
	SemanticScholar PaperSourceConfig `mapstructure:"semantic_scholar"`
	// CORE contains CORE API settings. Requires an API key.
	CORE PaperSourceConfig `mapstructure:"core"`
	// IEEE contains IEEE Xplore API settings. Requires an API key.
	IEEE PaperSourceConfig `mapstructure:"ieee"`
	// BASE contains BASE search interface settings.
	BASE PaperSourceConfig `mapstructure:"base"`
}

// PaperSourceConfig holds configuration for a single paper source API.
type PaperSourceConfig struct {
	// Enabled controls whether this source is used.
	Enabled bool `mapstructure:"enabled"`
	// APIKey is the API key (loaded from environment variable, e.g. RESEARCH_PAPER_SOURCES_CORE_API_KEY).
	APIKey string `mapstructure:"-"`
	// BaseURL is the API base URL. Empty selects the client's default.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// Mailto identifies the caller to providers with a polite pool (CrossRef).
	Mailto string `mapstructure:"mailto"`
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file path. An empty path searches
// the default locations.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/research-workspace")
	}

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
func loadSecrets(cfg *Config) {
	cfg.PaperSources.PubMed.APIKey = os.Getenv(EnvPrefix + "_PAPER_SOURCES_PUBMED_API_KEY")
	cfg.PaperSources.SemanticScholar.APIKey = os.Getenv(EnvPrefix + "_PAPER_SOURCES_SEMANTIC_SCHOLAR_API_KEY")
	cfg.PaperSources.CORE.APIKey = os.Getenv(EnvPrefix + "_PAPER_SOURCES_CORE_API_KEY")
	cfg.PaperSources.IEEE.APIKey = os.Getenv(EnvPrefix + "_PAPER_SOURCES_IEEE_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.session_ttl", "30m")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "research_workspace")

	// Search defaults
	v.SetDefault("search.default_limit", 30)
	v.SetDefault("search.source_timeout", "10s")
	v.SetDefault("search.debounce", "400ms")
	v.SetDefault("search.max_retries", 1)
	v.SetDefault("search.retry_delay", "500ms")
	v.SetDefault("search.dedupe", false)

	// PDF proxy defaults
	v.SetDefault("pdf.timeout", "30s")
	v.SetDefault("pdf.max_size", 50<<20)
	v.SetDefault("pdf.allow_private_hosts", false)

	// Paper sources. The free set is enabled by default; Semantic Scholar and
	// BASE are keyless but opt-in per request. CORE and IEEE need keys.
	// API keys are loaded exclusively from environment variables (see loadSecrets).
	v.SetDefault("paper_sources.pubmed.enabled", true)
	v.SetDefault("paper_sources.pubmed.timeout", "10s")
	v.SetDefault("paper_sources.pubmed.rate_limit", 3.0) // NCBI allows 3 req/sec without an API key

	v.SetDefault("paper_sources.arxiv.enabled", true)
	v.SetDefault("paper_sources.arxiv.timeout", "10s")
	v.SetDefault("paper_sources.arxiv.rate_limit", 3.0)

	v.SetDefault("paper_sources.biorxiv.enabled", true)
	v.SetDefault("paper_sources.biorxiv.timeout", "10s")
	v.SetDefault("paper_sources.biorxiv.rate_limit", 5.0)

	v.SetDefault("paper_sources.medrxiv.enabled", true)
	v.SetDefault("paper_sources.medrxiv.timeout", "10s")
	v.SetDefault("paper_sources.medrxiv.rate_limit", 5.0)

	v.SetDefault("paper_sources.crossref.enabled", true)
	v.SetDefault("paper_sources.crossref.timeout", "10s")
	v.SetDefault("paper_sources.crossref.rate_limit", 10.0)
	v.SetDefault("paper_sources.crossref.mailto", "")

	v.SetDefault("paper_sources.semantic_scholar.enabled", true)
	v.SetDefault("paper_sources.semantic_scholar.timeout", "10s")
	v.SetDefault("paper_sources.semantic_scholar.rate_limit", 1.0)

	v.SetDefault("paper_sources.core.enabled", false)
	v.SetDefault("paper_sources.core.timeout", "10s")
	v.SetDefault("paper_sources.core.rate_limit", 1.0)

	v.SetDefault("paper_sources.ieee.enabled", false)
	v.SetDefault("paper_sources.ieee.timeout", "10s")
	v.SetDefault("paper_sources.ieee.rate_limit", 10.0)

	v.SetDefault("paper_sources.base.enabled", true)
	v.SetDefault("paper_sources.base.timeout", "10s")
	v.SetDefault("paper_sources.base.rate_limit", 1.0)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate server ports
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}
	if c.Server.HTTPPort == c.Server.MetricsPort {
		return fmt.Errorf("HTTP and metrics ports must differ: %d", c.Server.HTTPPort)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate search config
	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("search default_limit must be positive")
	}
	if c.Search.SourceTimeout <= 0 {
		return fmt.Errorf("search source_timeout must be positive")
	}
	if c.Search.Debounce < 0 {
		return fmt.Errorf("search debounce must not be negative")
	}

	if c.PDF.MaxSize <= 0 {
		return fmt.Errorf("pdf max_size must be positive")
	}

	// Key-gated providers enabled in config must carry a key.
	if c.PaperSources.CORE.Enabled && c.PaperSources.CORE.APIKey == "" {
		return fmt.Errorf("paper source CORE requires %s_PAPER_SOURCES_CORE_API_KEY to be set", EnvPrefix)
	}
	if c.PaperSources.IEEE.Enabled && c.PaperSources.IEEE.APIKey == "" {
		return fmt.Errorf("paper source IEEE requires %s_PAPER_SOURCES_IEEE_API_KEY to be set", EnvPrefix)
	}

	return nil
}
