package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// Clear any existing env vars that might interfere
	clearEnvVars(t)
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Server defaults
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 9091, cfg.Server.MetricsPort)
	assert.Equal(t, 30*time.Minute, cfg.Server.SessionTTL)

	// Logging defaults
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	// Metrics defaults
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)

	// Search defaults
	assert.Equal(t, 30, cfg.Search.DefaultLimit)
	assert.Equal(t, 10*time.Second, cfg.Search.SourceTimeout)
	assert.Equal(t, 400*time.Millisecond, cfg.Search.Debounce)
	assert.Equal(t, 1, cfg.Search.MaxRetries)
	assert.False(t, cfg.Search.Dedupe)

	// PDF defaults
	assert.Equal(t, int64(50<<20), cfg.PDF.MaxSize)
	assert.False(t, cfg.PDF.AllowPrivateHosts)

	// Paper sources defaults
	assert.True(t, cfg.PaperSources.PubMed.Enabled)
	assert.True(t, cfg.PaperSources.ArXiv.Enabled)
	assert.True(t, cfg.PaperSources.BioRxiv.Enabled)
	assert.True(t, cfg.PaperSources.MedRxiv.Enabled)
	assert.True(t, cfg.PaperSources.CrossRef.Enabled)
	assert.True(t, cfg.PaperSources.SemanticScholar.Enabled)
	assert.True(t, cfg.PaperSources.BASE.Enabled)
	assert.False(t, cfg.PaperSources.CORE.Enabled) // Requires API key
	assert.False(t, cfg.PaperSources.IEEE.Enabled) // Requires API key
	assert.Equal(t, 3.0, cfg.PaperSources.ArXiv.RateLimit)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	clearEnvVars(t)
	t.Chdir(t.TempDir())

	// Set environment variables with RESEARCH prefix
	t.Setenv("RESEARCH_SERVER_HTTP_PORT", "8888")
	t.Setenv("RESEARCH_LOGGING_LEVEL", "debug")
	t.Setenv("RESEARCH_SEARCH_DEFAULT_LIMIT", "50")
	t.Setenv("RESEARCH_SEARCH_DEBOUNCE", "250ms")
	t.Setenv("RESEARCH_SEARCH_DEDUPE", "true")
	t.Setenv("RESEARCH_PAPER_SOURCES_CROSSREF_MAILTO", "lab@example.org")
	t.Setenv("RESEARCH_PAPER_SOURCES_ARXIV_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 50, cfg.Search.DefaultLimit)
	assert.Equal(t, 250*time.Millisecond, cfg.Search.Debounce)
	assert.True(t, cfg.Search.Dedupe)
	assert.Equal(t, "lab@example.org", cfg.PaperSources.CrossRef.Mailto)
	assert.False(t, cfg.PaperSources.ArXiv.Enabled)
}

func TestLoadFile(t *testing.T) {
	clearEnvVars(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "research.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  http_port: 8181
search:
  source_timeout: 5s
paper_sources:
  semantic_scholar:
    enabled: false
    api_key: from-file
  crossref:
    base_url: http://crossref.local
`), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 8181, cfg.Server.HTTPPort)
	assert.Equal(t, 5*time.Second, cfg.Search.SourceTimeout)
	assert.False(t, cfg.PaperSources.SemanticScholar.Enabled)
	assert.Empty(t, cfg.PaperSources.SemanticScholar.APIKey, "API keys are never read from files")
	assert.Equal(t, "http://crossref.local", cfg.PaperSources.CrossRef.BaseURL)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_APIKeysFromEnvOnly(t *testing.T) {
	clearEnvVars(t)
	t.Chdir(t.TempDir())

	t.Setenv("RESEARCH_PAPER_SOURCES_PUBMED_API_KEY", "ncbi-key-test")
	t.Setenv("RESEARCH_PAPER_SOURCES_SEMANTIC_SCHOLAR_API_KEY", "ss-key-test")
	t.Setenv("RESEARCH_PAPER_SOURCES_CORE_API_KEY", "core-key-test")
	t.Setenv("RESEARCH_PAPER_SOURCES_CORE_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ncbi-key-test", cfg.PaperSources.PubMed.APIKey)
	assert.Equal(t, "ss-key-test", cfg.PaperSources.SemanticScholar.APIKey)
	assert.Equal(t, "core-key-test", cfg.PaperSources.CORE.APIKey)
	assert.True(t, cfg.PaperSources.CORE.Enabled)

	// Unset keys should be empty.
	assert.Empty(t, cfg.PaperSources.IEEE.APIKey)
}

func TestLoad_KeyGatedSourceWithoutKey(t *testing.T) {
	clearEnvVars(t)
	t.Chdir(t.TempDir())

	t.Setenv("RESEARCH_PAPER_SOURCES_IEEE_ENABLED", "true")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RESEARCH_PAPER_SOURCES_IEEE_API_KEY")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		modifyFunc  func(*Config)
		expectedErr string
	}{
		{
			name:       "valid config",
			modifyFunc: func(c *Config) {},
		},
		{
			name: "HTTP port zero",
			modifyFunc: func(c *Config) {
				c.Server.HTTPPort = 0
			},
			expectedErr: "invalid HTTP port: 0",
		},
		{
			name: "HTTP port too high",
			modifyFunc: func(c *Config) {
				c.Server.HTTPPort = 70000
			},
			expectedErr: "invalid HTTP port: 70000",
		},
		{
			name: "metrics port negative",
			modifyFunc: func(c *Config) {
				c.Server.MetricsPort = -1
			},
			expectedErr: "invalid metrics port: -1",
		},
		{
			name: "ports collide",
			modifyFunc: func(c *Config) {
				c.Server.MetricsPort = c.Server.HTTPPort
			},
			expectedErr: "must differ",
		},
		{
			name: "invalid log level",
			modifyFunc: func(c *Config) {
				c.Logging.Level = "verbose"
			},
			expectedErr: "invalid log level: verbose",
		},
		{
			name: "upper case log level",
			modifyFunc: func(c *Config) {
				c.Logging.Level = "WARN"
			},
		},
		{
			name: "zero default limit",
			modifyFunc: func(c *Config) {
				c.Search.DefaultLimit = 0
			},
			expectedErr: "default_limit must be positive",
		},
		{
			name: "zero source timeout",
			modifyFunc: func(c *Config) {
				c.Search.SourceTimeout = 0
			},
			expectedErr: "source_timeout must be positive",
		},
		{
			name: "negative debounce",
			modifyFunc: func(c *Config) {
				c.Search.Debounce = -time.Millisecond
			},
			expectedErr: "debounce must not be negative",
		},
		{
			name: "zero debounce allowed",
			modifyFunc: func(c *Config) {
				c.Search.Debounce = 0
			},
		},
		{
			name: "zero pdf size",
			modifyFunc: func(c *Config) {
				c.PDF.MaxSize = 0
			},
			expectedErr: "pdf max_size must be positive",
		},
		{
			name: "CORE enabled without key",
			modifyFunc: func(c *Config) {
				c.PaperSources.CORE.Enabled = true
			},
			expectedErr: "RESEARCH_PAPER_SOURCES_CORE_API_KEY",
		},
		{
			name: "CORE enabled with key",
			modifyFunc: func(c *Config) {
				c.PaperSources.CORE.Enabled = true
				c.PaperSources.CORE.APIKey = "k"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modifyFunc(cfg)

			err := cfg.Validate()
			if tt.expectedErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedErr)
		})
	}
}

func TestServerConfig_Addresses(t *testing.T) {
	cfg := ServerConfig{Host: "127.0.0.1", HTTPPort: 8080, MetricsPort: 9091}

	assert.Equal(t, "127.0.0.1:8080", cfg.HTTPAddress())
	assert.Equal(t, "127.0.0.1:9091", cfg.MetricsAddress())
}

// clearEnvVars removes all RESEARCH_ prefixed environment variables for the
// duration of the test.
func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, env := range os.Environ() {
		key, _, _ := strings.Cut(env, "=")
		if strings.HasPrefix(key, EnvPrefix+"_") {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
}

// validConfig returns a valid configuration for testing
func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			HTTPPort:    8080,
			MetricsPort: 9091,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Search: SearchConfig{
			DefaultLimit:  30,
			SourceTimeout: 10 * time.Second,
			Debounce:      400 * time.Millisecond,
		},
		PDF: PDFConfig{
			MaxSize: 50 << 20,
		},
	}
}
