// Package config provides configuration loading and management for Ruleforge.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harmonizehq/ruleforge/docsource"
)

// Config represents the complete Ruleforge configuration
type Config struct {
	Extractor ExtractorConfig       `yaml:"extractor"`
	Backend   BackendConfig         `yaml:"backend"`
	Server    ServerConfig          `yaml:"server"`
	Repo      RepoConfig            `yaml:"repo"`
	NATS      NATSConfig            `yaml:"nats"`
	Inbox     docsource.WatchConfig `yaml:"inbox"`
}

// ExtractorConfig configures the extraction backend client
type ExtractorConfig struct {
	// URL is the extraction service base URL (empty = fallback-only intake)
	URL string `yaml:"url"`
	// APIKey authenticates against the extraction service. Usually set via
	// the RULEFORGE_EXTRACTOR_API_KEY environment variable.
	APIKey string `yaml:"api_key"`
	// Timeout is the per-request timeout
	Timeout time.Duration `yaml:"timeout"`
	// MaxAttempts is the retry budget for transient extraction failures
	MaxAttempts int `yaml:"max_attempts"`
}

// BackendConfig configures the rules backend (projects directory and pack submission)
type BackendConfig struct {
	// URL is the rules backend base URL
	URL string `yaml:"url"`
}

// ServerConfig configures the review HTTP server
type ServerConfig struct {
	// Addr is the listen address (default: :8085)
	Addr string `yaml:"addr"`
	// CORSOrigins lists allowed origins for browser clients (empty = allow all)
	CORSOrigins []string `yaml:"cors_origins"`
}

// RepoConfig configures the repository settings
type RepoConfig struct {
	// Path is the repository root path (auto-detected from git if empty).
	// Saved packs live under <path>/.ruleforge.
	Path string `yaml:"path"`
}

// NATSConfig configures the event bus connection
type NATSConfig struct {
	// URL is the NATS server URL (empty = events disabled)
	URL string `yaml:"url"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Extractor: ExtractorConfig{
			URL:         "http://localhost:8000",
			Timeout:     60 * time.Second,
			MaxAttempts: 3,
		},
		Backend: BackendConfig{
			URL: "http://localhost:8000",
		},
		Server: ServerConfig{
			Addr:        ":8085",
			CORSOrigins: nil, // Allow all
		},
		Repo: RepoConfig{
			Path: "", // Auto-detect
		},
		NATS: NATSConfig{
			URL: "",
		},
		Inbox: docsource.DefaultWatchConfig(),
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("backend.url is required")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Extractor.MaxAttempts < 1 {
		return fmt.Errorf("extractor.max_attempts must be at least 1")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Extractor
	if other.Extractor.URL != "" {
		c.Extractor.URL = other.Extractor.URL
	}
	if other.Extractor.APIKey != "" {
		c.Extractor.APIKey = other.Extractor.APIKey
	}
	if other.Extractor.Timeout != 0 {
		c.Extractor.Timeout = other.Extractor.Timeout
	}
	if other.Extractor.MaxAttempts != 0 {
		c.Extractor.MaxAttempts = other.Extractor.MaxAttempts
	}

	// Backend
	if other.Backend.URL != "" {
		c.Backend.URL = other.Backend.URL
	}

	// Server
	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if len(other.Server.CORSOrigins) > 0 {
		c.Server.CORSOrigins = other.Server.CORSOrigins
	}

	// Repo
	if other.Repo.Path != "" {
		c.Repo.Path = other.Repo.Path
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}

	// Inbox
	if other.Inbox.Enabled {
		c.Inbox.Enabled = true
	}
	if other.Inbox.Dir != "" {
		c.Inbox.Dir = other.Inbox.Dir
	}
	if len(other.Inbox.Patterns) > 0 {
		c.Inbox.Patterns = other.Inbox.Patterns
	}
	if other.Inbox.DebounceDelay != 0 {
		c.Inbox.DebounceDelay = other.Inbox.DebounceDelay
	}
	if len(other.Inbox.ExcludeDirs) > 0 {
		c.Inbox.ExcludeDirs = other.Inbox.ExcludeDirs
	}
}
