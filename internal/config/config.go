// Package config handles application configuration
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"taskmaster/internal/recent"
)

//go:embed config.sample.yaml
var sampleConfig string

// GetSampleConfig returns the embedded sample configuration content
func GetSampleConfig() string {
	return sampleConfig
}

// appName names the XDG directories
const appName = "taskmaster"

// Config represents the application configuration
type Config struct {
	Backends       BackendsConfig `yaml:"backends"`
	DefaultBackend string         `yaml:"default_backend"`
	NoPrompt       bool           `yaml:"no_prompt"`
	OutputFormat   string         `yaml:"output_format"`
	Posts          PostsConfig    `yaml:"posts"`
	Recent         RecentConfig   `yaml:"recent"`
	Cache          CacheConfig    `yaml:"cache"`
	Server         ServerConfig   `yaml:"server"`
	Logging        LoggingConfig  `yaml:"logging"`
}

// BackendsConfig holds configuration for all task backends
type BackendsConfig struct {
	SQLite SQLiteConfig `yaml:"sqlite"`
	REST   RESTConfig   `yaml:"rest"`
}

// SQLiteConfig holds SQLite backend configuration
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// RESTConfig holds REST backend configuration
type RESTConfig struct {
	BaseURL    string `yaml:"base_url"`
	Username   string `yaml:"username"`
	UseKeyring bool   `yaml:"use_keyring"`
	Timeout    string `yaml:"timeout"`     // e.g. "30s"
	MaxRetries int    `yaml:"max_retries"` // 429 retries
}

// PostsConfig holds blog post storage settings
type PostsConfig struct {
	Path     string `yaml:"path"`
	PageSize int    `yaml:"page_size"`
	Latency  string `yaml:"latency"` // Artificial delay, e.g. "500ms"
}

// RecentConfig holds recently updated list settings
type RecentConfig struct {
	Capacity int `yaml:"capacity"`
}

// CacheConfig holds optimistic cache settings
type CacheConfig struct {
	MutationTimeout string `yaml:"mutation_timeout"` // Bound on one remote mutation, e.g. "10s"
}

// ServerConfig holds settings for the serve command
type ServerConfig struct {
	Addr  string `yaml:"addr"`
	Token string `yaml:"token"` // Bearer token required by the server; empty disables auth
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Verbose           bool  `yaml:"verbose"`
	BackgroundEnabled *bool `yaml:"background_enabled"` // Controls the serve access log file (default: true)
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Backends: BackendsConfig{
			SQLite: SQLiteConfig{
				Path: filepath.Join(GetDataDir(), "tasks.db"),
			},
		},
		DefaultBackend: "sqlite",
		OutputFormat:   "text",
		Posts: PostsConfig{
			Path: filepath.Join(GetDataDir(), "posts.json"),
		},
	}
}

// Load loads configuration from the specified path, or the default XDG path if empty.
// If the config file doesn't exist, it creates one from the sample.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = filepath.Join(GetConfigDir(), "config.yaml")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := cfg.save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration and fills in defaults for unset fields.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	// Backend paths from the file replace the defaults; an empty document keeps them
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in config file: %w", err)
	}

	if cfg.DefaultBackend == "" {
		cfg.DefaultBackend = "sqlite"
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = "text"
	}
	if cfg.Backends.SQLite.Path == "" {
		cfg.Backends.SQLite.Path = filepath.Join(GetDataDir(), "tasks.db")
	}
	if cfg.Posts.Path == "" {
		cfg.Posts.Path = filepath.Join(GetDataDir(), "posts.json")
	}
	if cfg.Backends.SQLite.Path != ":memory:" {
		cfg.Backends.SQLite.Path = ExpandPath(cfg.Backends.SQLite.Path)
	}
	cfg.Posts.Path = ExpandPath(cfg.Posts.Path)

	return cfg, nil
}

// save writes the sample configuration to the specified path
func (c *Config) save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The sample documents every key and matches DefaultConfig
	if err := os.WriteFile(path, []byte(sampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.OutputFormat != "text" && c.OutputFormat != "json" {
		return fmt.Errorf("invalid output_format: %q (must be 'text' or 'json')", c.OutputFormat)
	}

	switch c.DefaultBackend {
	case "sqlite":
		if c.Backends.SQLite.Path == "" {
			return errors.New("default backend 'sqlite' has no path configured")
		}
	case "rest":
		if c.Backends.REST.BaseURL == "" {
			return errors.New("default backend 'rest' has no base_url configured")
		}
	default:
		return fmt.Errorf("unknown default_backend: %q", c.DefaultBackend)
	}

	durations := []struct {
		key   string
		value string
	}{
		{"backends.rest.timeout", c.Backends.REST.Timeout},
		{"posts.latency", c.Posts.Latency},
		{"cache.mutation_timeout", c.Cache.MutationTimeout},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %q", d.key, d.value)
		}
		if v < 0 {
			return fmt.Errorf("%s must not be negative, got %q", d.key, d.value)
		}
	}

	if c.Recent.Capacity < 0 {
		return fmt.Errorf("recent.capacity must not be negative, got %d", c.Recent.Capacity)
	}
	if c.Posts.PageSize < 0 {
		return fmt.Errorf("posts.page_size must not be negative, got %d", c.Posts.PageSize)
	}
	return nil
}

// ApplyFlags applies CLI flag overrides to the configuration
func (c *Config) ApplyFlags(noPrompt bool, outputFormat, backendName string, verbose bool) {
	if noPrompt {
		c.NoPrompt = true
	}
	if outputFormat != "" {
		c.OutputFormat = outputFormat
	}
	if backendName != "" {
		c.DefaultBackend = backendName
	}
	if verbose {
		c.Logging.Verbose = true
	}
}

// GetDatabasePath returns the path to the SQLite database
func (c *Config) GetDatabasePath() string {
	return c.Backends.SQLite.Path
}

// GetRESTTimeout returns the per-request REST timeout.
// Returns 30 seconds if not configured or invalid.
func (c *Config) GetRESTTimeout() time.Duration {
	return parseDurationOr(c.Backends.REST.Timeout, 30*time.Second)
}

// GetRecentCapacity returns how many recently updated tasks are kept.
// Returns 5 if not configured.
func (c *Config) GetRecentCapacity() int {
	if c.Recent.Capacity <= 0 {
		return recent.DefaultCapacity
	}
	return c.Recent.Capacity
}

// GetMutationTimeout returns the bound on a single remote mutation.
// Returns 10 seconds if not configured or invalid.
func (c *Config) GetMutationTimeout() time.Duration {
	return parseDurationOr(c.Cache.MutationTimeout, 10*time.Second)
}

// GetPostsPageSize returns the posts page size. Returns 5 if not configured.
func (c *Config) GetPostsPageSize() int {
	if c.Posts.PageSize <= 0 {
		return 5
	}
	return c.Posts.PageSize
}

// GetPostsLatency returns the artificial posts latency. Returns 0 if not configured.
func (c *Config) GetPostsLatency() time.Duration {
	return parseDurationOr(c.Posts.Latency, 0)
}

// GetServerAddr returns the serve listen address. Returns "localhost:3001" if not configured.
func (c *Config) GetServerAddr() string {
	if c.Server.Addr == "" {
		return "localhost:3001"
	}
	return c.Server.Addr
}

// IsBackgroundLoggingEnabled returns true if the serve access log file is enabled.
// Returns true (default) if not configured.
func (c *Config) IsBackgroundLoggingEnabled() bool {
	if c.Logging.BackgroundEnabled == nil {
		return true
	}
	return *c.Logging.BackgroundEnabled
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// getXDGDir returns a directory path following the XDG base directory layout.
// envVar is the XDG environment variable (e.g., "XDG_CONFIG_HOME").
// fallbackPath is the relative path from home (e.g., ".config").
func getXDGDir(envVar, fallbackPath string) string {
	if xdgDir := os.Getenv(envVar); xdgDir != "" {
		return filepath.Join(xdgDir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", fallbackPath, appName)
	}
	return filepath.Join(home, fallbackPath, appName)
}

// GetConfigDir returns the configuration directory following the XDG base directory layout
func GetConfigDir() string {
	return getXDGDir("XDG_CONFIG_HOME", ".config")
}

// GetDataDir returns the data directory following the XDG base directory layout
func GetDataDir() string {
	return getXDGDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// GetStateDir returns the state directory following the XDG base directory layout
func GetStateDir() string {
	return getXDGDir("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	return os.ExpandEnv(path)
}
