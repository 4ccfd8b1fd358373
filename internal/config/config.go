// Package config loads the mirror configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvGithubToken is the environment variable that overrides the configured
// GitHub API token.
const EnvGithubToken = "GITHUB_TOKEN"

// Config holds the settings for one mirrored repository.
type Config struct {
	// Repository to mirror, in the format "owner/name".
	Repository string `yaml:"repository"`

	// GitHubToken authenticates API calls. Optional; the GITHUB_TOKEN
	// environment variable and the gh CLI are consulted as fallbacks.
	GitHubToken string `yaml:"github_token"`

	// DatabasePath is where the SQLite mirror lives. Relative paths are
	// resolved against the config file's directory.
	DatabasePath string `yaml:"database_path"`

	// Budget is the maximum number of API calls per quota window.
	Budget int `yaml:"budget"`

	// PerPage is the page size requested from listing endpoints.
	PerPage int `yaml:"per_page"`

	// IntervalSeconds is the pause between sync cycles in daemon mode.
	IntervalSeconds int `yaml:"interval_seconds"`

	// Workers is the number of concurrent fetch workers.
	Workers int `yaml:"workers"`

	// RetryAttempts is how many tries a transient fetch failure gets.
	RetryAttempts int `yaml:"retry_attempts"`

	// JournalDir, when set, receives payloads discarded by revision
	// conflicts. Empty disables journaling.
	JournalDir string `yaml:"journal_dir"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Load reads and validates a config file, applying defaults and the token
// environment override.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if envToken := os.Getenv(EnvGithubToken); envToken != "" {
		cfg.GitHubToken = envToken
	}

	cfg.applyDefaults()

	if !filepath.IsAbs(cfg.DatabasePath) {
		cfg.DatabasePath = filepath.Join(filepath.Dir(path), cfg.DatabasePath)
	}
	if cfg.JournalDir != "" && !filepath.IsAbs(cfg.JournalDir) {
		cfg.JournalDir = filepath.Join(filepath.Dir(path), cfg.JournalDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default(repo string) *Config {
	cfg := &Config{Repository: repo}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.DatabasePath == "" {
		c.DatabasePath = "mirror.db"
	}
	if c.Budget <= 0 {
		c.Budget = 5000
	}
	if c.PerPage <= 0 {
		c.PerPage = 100
	}
	if c.IntervalSeconds <= 0 {
		c.IntervalSeconds = 300
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks the settings that cannot be defaulted away.
func (c *Config) Validate() error {
	owner, name, ok := strings.Cut(c.Repository, "/")
	if !ok || owner == "" || name == "" {
		return fmt.Errorf("invalid repository %q: must be in the format owner/name", c.Repository)
	}
	if c.PerPage > 100 {
		return fmt.Errorf("per_page %d exceeds the API maximum of 100", c.PerPage)
	}
	return nil
}

// OwnerName splits the repository into its owner and name parts. Call only
// after Validate.
func (c *Config) OwnerName() (string, string) {
	owner, name, _ := strings.Cut(c.Repository, "/")
	return owner, name
}
