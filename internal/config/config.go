// Package config handles loading and validation of larkmd configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/larkmd/larkmd/internal/lark"
)

// DefaultConfigFile is looked up in the working directory when --config is
// not given.
const DefaultConfigFile = "larkmd.yaml"

// Upload tuning bounds. The batch ceiling is the service's per-call limit;
// the concurrency ceiling matches the worker pool cap.
const (
	DefaultBatchSize   = lark.MaxAppendChildren
	DefaultConcurrency = 5
	MaxConcurrency     = 20
)

// APIConfig selects the open-platform endpoint.
type APIConfig struct {
	BaseURL string `yaml:"base_url,omitempty"`
}

// AuthConfig locates the token cache.
type AuthConfig struct {
	TokenFile string `yaml:"token_file,omitempty"`
}

// UploadConfig tunes the batched writer.
type UploadConfig struct {
	BatchSize   int `yaml:"batch_size,omitempty"`
	Concurrency int `yaml:"concurrency,omitempty"`
}

// Config is the top-level configuration structure.
type Config struct {
	API    APIConfig    `yaml:"api"`
	Auth   AuthConfig   `yaml:"auth"`
	Upload UploadConfig `yaml:"upload"`

	// App credentials are loaded from the environment, never the file.
	AppID     string `yaml:"-"`
	AppSecret string `yaml:"-"`
}

// Load reads configuration from a YAML file and the environment. A missing
// file is fine unless the path was given explicitly: every field has a
// default. LARK_APP_ID and LARK_APP_SECRET come from the environment only;
// a .env file in the working directory is folded in first.
func Load(path string) (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{}
	explicit := path != ""
	if path == "" {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// No config file: defaults apply.
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg.applyDefaults()
	cfg.AppID = os.Getenv("LARK_APP_ID")
	cfg.AppSecret = os.Getenv("LARK_APP_SECRET")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = lark.DefaultBaseURL
	}
	if c.Auth.TokenFile == "" {
		c.Auth.TokenFile = defaultTokenFile()
	}
	if c.Upload.BatchSize == 0 {
		c.Upload.BatchSize = DefaultBatchSize
	}
	if c.Upload.Concurrency == 0 {
		c.Upload.Concurrency = DefaultConcurrency
	}
}

// defaultTokenFile is the per-user config location, falling back to a
// dotfile in the working directory when the home lookup fails.
func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".larkmd-token.json"
	}
	return filepath.Join(dir, "larkmd", "token.json")
}

// Validate checks the tuning ranges. Violations are joined so the user sees
// all of them at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Upload.BatchSize < 1 || c.Upload.BatchSize > lark.MaxAppendChildren {
		errs = append(errs, fmt.Errorf("upload.batch_size must be between 1 and %d", lark.MaxAppendChildren))
	}

	if c.Upload.Concurrency < 1 || c.Upload.Concurrency > MaxConcurrency {
		errs = append(errs, fmt.Errorf("upload.concurrency must be between 1 and %d", MaxConcurrency))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}
