// Manages server configuration stored in server_config.yaml.

package storage

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const configFile = "server_config.yaml"

// ServerConfig stores all server-wide configuration.
// Loaded from server_config.yaml, created with defaults if missing.
type ServerConfig struct {
	// MaxPageSize bounds the limit of every paginated query.
	MaxPageSize int `yaml:"max_page_size"`

	// DefaultPageSize is the limit used when a request omits it.
	DefaultPageSize int `yaml:"default_page_size"`

	// DatabasePath is the SQLite file holding imported tables. Relative paths
	// are resolved against the data directory.
	DatabasePath string `yaml:"database_path"`

	// ImportRoot confines the server-side paths accepted by batch uploads.
	// Empty means the data directory.
	ImportRoot string `yaml:"import_root"`

	// MaxRequestBodyBytes limits the size of any single HTTP request body.
	MaxRequestBodyBytes int64 `yaml:"max_request_body_bytes"`

	// IngestWorkers is the number of files a batch upload imports concurrently.
	IngestWorkers int `yaml:"ingest_workers"`

	LLM LLMConfig `yaml:"llm"`

	RateLimits RateLimits `yaml:"rate_limits"`
}

// LLMConfig configures the upstream chat completion endpoint.
type LLMConfig struct {
	// BaseURL is the OpenAI-compatible API root, e.g. http://localhost:8000/v1.
	// Empty disables the LLM endpoints.
	BaseURL      string        `yaml:"base_url"`
	APIKey       string        `yaml:"api_key,omitempty"`
	DefaultModel string        `yaml:"default_model"`
	MaxTokens    int           `yaml:"max_tokens"`
	Temperature  float64       `yaml:"temperature"`
	TopP         float64       `yaml:"top_p"`
	TopK         int           `yaml:"top_k"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Validate checks the LLM settings.
func (l *LLMConfig) Validate() error {
	if l.BaseURL != "" {
		u, err := url.Parse(l.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("base_url %q must be an http(s) URL", l.BaseURL)
		}
	}
	if l.MaxTokens < 0 {
		return errors.New("max_tokens must be non-negative")
	}
	if l.Temperature < 0 {
		return errors.New("temperature must be non-negative")
	}
	if l.TopP < 0 || l.TopP > 1 {
		return errors.New("top_p must be within [0, 1]")
	}
	if l.TopK < 0 {
		return errors.New("top_k must be non-negative")
	}
	if l.Timeout < 0 {
		return errors.New("timeout must be non-negative")
	}
	return nil
}

// RateLimits defines rate limiting configuration (requests per minute).
type RateLimits struct {
	// ReadPerMin limits GET requests. 0 means unlimited.
	ReadPerMin int `yaml:"read_per_min"`

	// WritePerMin limits uploads and imports. 0 means unlimited.
	WritePerMin int `yaml:"write_per_min"`

	// LLMPerMin limits LLM proxy calls. 0 means unlimited.
	LLMPerMin int `yaml:"llm_per_min"`
}

// Validate checks that rate limit values are non-negative.
func (r *RateLimits) Validate() error {
	if r.ReadPerMin < 0 {
		return errors.New("read_per_min must be non-negative")
	}
	if r.WritePerMin < 0 {
		return errors.New("write_per_min must be non-negative")
	}
	if r.LLMPerMin < 0 {
		return errors.New("llm_per_min must be non-negative")
	}
	return nil
}

// DefaultRateLimits returns the default rate limits.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		ReadPerMin:  6000, // 100 req/s
		WritePerMin: 60,
		LLMPerMin:   30,
	}
}

// DefaultServerConfig returns the configuration written on first start.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		MaxPageSize:         1000,
		DefaultPageSize:     50,
		DatabasePath:        "tabserve.db",
		MaxRequestBodyBytes: 32 * 1024 * 1024, // 32 MiB
		IngestWorkers:       4,
		LLM: LLMConfig{
			DefaultModel: "qwen2.5-7b-instruct",
			MaxTokens:    1024,
			Temperature:  0.7,
			TopP:         0.9,
			TopK:         50,
			Timeout:      60 * time.Second,
		},
		RateLimits: DefaultRateLimits(),
	}
}

// Validate checks that the configuration is valid.
func (c *ServerConfig) Validate() error {
	if c.MaxPageSize <= 0 {
		return errors.New("max_page_size must be positive")
	}
	if c.DefaultPageSize < 0 || c.DefaultPageSize > c.MaxPageSize {
		return fmt.Errorf("default_page_size must be within [0, %d]", c.MaxPageSize)
	}
	if c.DatabasePath == "" {
		return errors.New("database_path is required")
	}
	if c.MaxRequestBodyBytes < 0 {
		return errors.New("max_request_body_bytes must be non-negative")
	}
	if c.IngestWorkers <= 0 {
		return errors.New("ingest_workers must be positive")
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := c.RateLimits.Validate(); err != nil {
		return fmt.Errorf("rate_limits: %w", err)
	}
	return nil
}

// ResolveDatabasePath returns DatabasePath, made absolute against dataDir.
func (c *ServerConfig) ResolveDatabasePath(dataDir string) string {
	if filepath.IsAbs(c.DatabasePath) {
		return c.DatabasePath
	}
	return filepath.Join(dataDir, c.DatabasePath)
}

// ResolveImportRoot returns ImportRoot, defaulting to dataDir.
func (c *ServerConfig) ResolveImportRoot(dataDir string) string {
	switch {
	case c.ImportRoot == "":
		return dataDir
	case filepath.IsAbs(c.ImportRoot):
		return c.ImportRoot
	default:
		return filepath.Join(dataDir, c.ImportRoot)
	}
}

// LoadServerConfig loads configuration from dataDir/server_config.yaml.
// Creates the file with defaults if it doesn't exist.
func LoadServerConfig(dataDir string) (*ServerConfig, error) {
	path := filepath.Join(dataDir, configFile)

	cfg := DefaultServerConfig()

	data, err := os.ReadFile(path) //nolint:gosec // G304: path is constructed from dataDir, not user input
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read %s: %w", configFile, err)
		}
		// File doesn't exist, will create with defaults
		if err := cfg.Save(dataDir); err != nil {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", configFile, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", configFile, err)
	}
	return &cfg, nil
}

// Save saves configuration to dataDir/server_config.yaml.
func (c *ServerConfig) Save(dataDir string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, configFile), data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", configFile, err)
	}
	return nil
}
