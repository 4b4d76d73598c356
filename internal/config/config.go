// Package config provides configuration management for oemprint.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mmp/oem"
)

// Config represents the oemprint configuration.
type Config struct {
	Source SourceConfig `yaml:"source"`
	Parse  ParseConfig  `yaml:"parse"`
	Store  StoreConfig  `yaml:"store"`
}

// SourceConfig describes where OEM documents are fetched from and where
// the local copy is kept.
type SourceConfig struct {
	URL         string `yaml:"url"`
	HTTPTimeout string `yaml:"http_timeout"`
	CacheDir    string `yaml:"cache_dir"`
}

// ParseConfig contains parser settings.
type ParseConfig struct {
	MaxLines int `yaml:"max_lines"` // 0 scans the whole document
}

// StoreConfig contains SQLite persistence settings.
type StoreConfig struct {
	Path string `yaml:"path"` // empty disables storage
}

// Timeout returns the parsed HTTP timeout.
func (s SourceConfig) Timeout() (time.Duration, error) {
	if s.HTTPTimeout == "" {
		return 60 * time.Second, nil
	}
	d, err := time.ParseDuration(s.HTTPTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid source.http_timeout %q: %w", s.HTTPTimeout, err)
	}
	return d, nil
}

func baseDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".oem")
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			URL:         oem.ISSURL,
			HTTPTimeout: "60s",
			CacheDir:    filepath.Join(baseDir(), "cache"),
		},
	}
}

// DefaultPath returns the default configuration file path.
func DefaultPath() string {
	return filepath.Join(baseDir(), "config.yaml")
}

// Load loads the configuration from a file. Settings missing from the
// file keep their default values.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return default config if file doesn't exist
			return Default(), nil
		}
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if _, err := cfg.Source.Timeout(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if cfg.Parse.MaxLines < 0 {
		return nil, fmt.Errorf("%s: parse.max_lines must not be negative", path)
	}

	return cfg, nil
}

// Save saves the configuration to a file.
func Save(path string, cfg *Config) error {
	if path == "" {
		path = DefaultPath()
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
