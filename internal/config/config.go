package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"fsguard/internal/logging"
	"fsguard/internal/safety"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath overrides the default config location.
const EnvConfigPath = "FSGUARD_CONFIG"

type MetricsCfg struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address" json:"address"` // Listen address for /metrics and /health
}

type APICfg struct {
	Address      string  `yaml:"address" json:"address"`
	RateLimit    float64 `yaml:"rate_limit" json:"rate_limit"` // Requests per second per client, 0 disables
	Burst        int     `yaml:"burst" json:"burst"`
	MaxBodyBytes int64   `yaml:"max_body_bytes" json:"max_body_bytes"`
}

type Config struct {
	AllowedPaths                []string       `yaml:"allowed_paths" json:"allowed_paths"`
	AdditionalProtectedPaths    []string       `yaml:"additional_protected_paths" json:"additional_protected_paths"`
	AdditionalProtectedPatterns []string       `yaml:"additional_protected_patterns" json:"additional_protected_patterns"` // Regex, or gobwas glob with a "glob:" prefix
	Logging                     logging.Config `yaml:"logging" json:"logging"`
	DatabasePath                string         `yaml:"database_path" json:"database_path"` // SQLite audit history
	Metrics                     MetricsCfg     `yaml:"metrics" json:"metrics"`
	API                         APICfg         `yaml:"api" json:"api"`
}

var (
	errInvalidPath = errors.New("path must be absolute or start with ~")

	// ErrMalformed marks a config file that exists but could not be decoded.
	ErrMalformed = errors.New("malformed config")
)

// DefaultPath returns the per-user config file location, honoring
// FSGUARD_CONFIG.
func DefaultPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "fsguard", "config.yaml")
}

// Default returns the built-in configuration. Its allow-list is empty, so
// every mutation is rejected until one is configured.
func Default(path string) *Config {
	cfg := &Config{}
	// An empty config cannot fail validation.
	_ = cfg.validateAndDefault(path)
	return cfg
}

// Load reads and validates the config at path. A missing file returns an
// error wrapping fs.ErrNotExist and an undecodable one wraps ErrMalformed.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := decode(f)
	if err != nil {
		return nil, err
	}
	if err := cfg.validateAndDefault(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: decode yaml: %v", ErrMalformed, err)
	}
	return cfg, nil
}

func (c *Config) validateAndDefault(path string) error {
	var err error
	if c.AllowedPaths, err = cleanPaths(c.AllowedPaths); err != nil {
		return fmt.Errorf("allowed_paths: %w", err)
	}
	if c.AdditionalProtectedPaths, err = cleanPaths(c.AdditionalProtectedPaths); err != nil {
		return fmt.Errorf("additional_protected_paths: %w", err)
	}

	// Compile every pattern now so a bad one fails the load
	if _, err := safety.NewPolicy(c.PolicyOptions()); err != nil {
		return fmt.Errorf("additional_protected_patterns: %w", err)
	}

	defaults := logging.DefaultConfig()
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Format
	}
	if c.Logging.RotationDays <= 0 {
		c.Logging.RotationDays = defaults.RotationDays
	}

	// Set default database path next to the config file
	if c.DatabasePath == "" && path != "" {
		c.DatabasePath = filepath.Join(filepath.Dir(path), "audit.db")
	}

	if c.Metrics.Address == "" {
		c.Metrics.Address = "127.0.0.1:9464"
	}
	if c.API.Address == "" {
		c.API.Address = "127.0.0.1:8470"
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit must not be negative")
	}
	if c.API.RateLimit > 0 && c.API.Burst <= 0 {
		c.API.Burst = 20
	}
	if c.API.MaxBodyBytes <= 0 {
		c.API.MaxBodyBytes = 1 << 20
	}

	return nil
}

func cleanPaths(paths []string) ([]string, error) {
	cleaned := make([]string, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if p != "~" && !strings.HasPrefix(p, "~/") && !strings.HasPrefix(p, `~\`) && !filepath.IsAbs(p) {
			return nil, fmt.Errorf("%w: %s", errInvalidPath, p)
		}
		cleaned = append(cleaned, p)
	}
	return cleaned, nil
}

// PolicyOptions maps the config onto policy construction options.
func (c *Config) PolicyOptions() safety.Options {
	return safety.Options{
		AllowedPaths:                c.AllowedPaths,
		AdditionalProtectedPaths:    c.AdditionalProtectedPaths,
		AdditionalProtectedPatterns: c.AdditionalProtectedPatterns,
	}
}
