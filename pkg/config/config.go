package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values exported for documentation and validation
const (
	DefaultBaseURL        = "http://localhost:8000/api"
	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxUploadMB    = 10
	DefaultLogLevel       = "info"
)

// Config represents the complete Vexa client configuration
type Config struct {
	API     APIConfig     `yaml:"api"`
	Upload  UploadConfig  `yaml:"upload"`
	Logging LoggingConfig `yaml:"logging"`

	// DataDir holds credentials, the offline cache, and logs.
	// Defaults to ~/.vexa.
	DataDir string `yaml:"data_dir"`
}

// APIConfig configures the remote Vexa API endpoint
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// UploadConfig configures caller-side upload validation
type UploadConfig struct {
	MaxFileSizeMB int `yaml:"max_file_size_mb"`
}

// LoggingConfig configures the structured client log
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the configuration defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: DefaultBaseURL,
			Timeout: DefaultRequestTimeout,
		},
		Upload: UploadConfig{
			MaxFileSizeMB: DefaultMaxUploadMB,
		},
		Logging: LoggingConfig{
			Level: DefaultLogLevel,
		},
	}
}

// Load loads configuration from the default location (~/.vexa/config.yaml)
// with environment variable overrides applied on top.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	if home != "" {
		userConfigPath := filepath.Join(home, ".vexa", "config.yaml")
		if err := loadAndMerge(cfg, userConfigPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading user config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.applyDataDirDefault(home)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := loadAndMerge(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	cfg.applyDataDirDefault(home)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadAndMerge loads a YAML file and merges the set fields into cfg.
func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	if override.API.BaseURL != "" {
		cfg.API.BaseURL = override.API.BaseURL
	}
	if override.API.Timeout != 0 {
		cfg.API.Timeout = override.API.Timeout
	}
	if override.Upload.MaxFileSizeMB != 0 {
		cfg.Upload.MaxFileSizeMB = override.Upload.MaxFileSizeMB
	}
	if override.Logging.Level != "" {
		cfg.Logging.Level = override.Logging.Level
	}
	if override.DataDir != "" {
		cfg.DataDir = override.DataDir
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("VEXA_API_URL")); v != "" {
		cfg.API.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("VEXA_API_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.API.Timeout = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("VEXA_DATA_DIR")); v != "" {
		cfg.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv("VEXA_LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("VEXA_MAX_UPLOAD_MB")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Upload.MaxFileSizeMB = n
		}
	}
}

func (c *Config) applyDataDirDefault(home string) {
	if c.DataDir != "" {
		return
	}
	if home == "" {
		home = "."
	}
	c.DataDir = filepath.Join(home, ".vexa")
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("api.base_url must not be empty")
	}
	if !strings.Contains(c.API.BaseURL, "://") {
		return fmt.Errorf("api.base_url must include a scheme: %q", c.API.BaseURL)
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative")
	}
	if c.Upload.MaxFileSizeMB <= 0 {
		return fmt.Errorf("upload.max_file_size_mb must be positive")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error: %q", c.Logging.Level)
	}
	return nil
}

// MaxUploadBytes returns the upload size cap in bytes
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Upload.MaxFileSizeMB) << 20
}
