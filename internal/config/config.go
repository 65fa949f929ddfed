/*
PURPOSE:
  Defines the configuration structure and loading logic for Forecast Runner.
  Adheres to "Config IS Code" philosophy.

REQUIREMENTS:
  User-specified:
  - Allow configuration of scratch directory, timeouts, database and server settings.

  Implementation-discovered:
  - Needs to support YAML parsing.
  - Needs to support Environment variables overrides (FORECAST_...), read from .env when present.

ARCHITECTURE INTEGRATION:
  - Used by: internal/cli, internal/engine, internal/server
  - Dependencies: gopkg.in/yaml.v3, github.com/joho/godotenv

ERROR HANDLING:
  - Returns explicit error if config file is invalid.
  - A missing default config file falls back to defaults.
  - Malformed environment overrides are errors, not silently ignored.

IMPLEMENTATION RULES:
  - Config struct tags should support yaml.
  - Defaults should be sensible (no script timeout, 10s persistence retry budget).

USAGE:
  cfg, err := config.Load("forecast_runner.yaml")

SELF-HEALING INSTRUCTIONS:
  - If new fields are needed, add to Config struct, DefaultConfig() and applyEnv().

RELATED FILES:
  - internal/cli/root.go
*/

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the full configuration for Forecast Runner.
type Config struct {
	// TempDir is where uploaded scripts are materialized. Empty means os.TempDir().
	TempDir    string `yaml:"temp_dir"`
	EntryPoint string `yaml:"entry_point"`
	// Timeout bounds one real invocation. Zero disables the limit.
	Timeout        time.Duration `yaml:"timeout"`
	SampleInterval time.Duration `yaml:"sample_interval"`

	OutputDir  string `yaml:"output_dir"`
	OutputFile string `yaml:"output_file"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// DatabaseURL selects PostgreSQL persistence. Empty keeps runs in memory.
	DatabaseURL       string        `yaml:"database_url"`
	PersistMaxElapsed time.Duration `yaml:"persist_max_elapsed"`

	ListenAddr  string  `yaml:"listen_addr"`
	RateLimit   float64 `yaml:"rate_limit"` // requests per second
	RateBurst   int     `yaml:"rate_burst"`
	MaxUploadMB int64   `yaml:"max_upload_mb"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		EntryPoint:        "Forecast",
		SampleInterval:    5 * time.Millisecond,
		OutputDir:         ".",
		OutputFile:        "forecast_results.csv",
		LogLevel:          "info",
		LogFormat:         "console",
		PersistMaxElapsed: 10 * time.Second,
		ListenAddr:        ":8080",
		RateLimit:         2,
		RateBurst:         4,
		MaxUploadMB:       32,
	}
}

// Load reads configuration from a file, then applies environment overrides.
// If path is specified, it attempts to load that file.
// If path is empty, it searches for default files in order.
// If no file found, the defaults are used.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to parse .env: %w", err)
	}

	var data []byte
	var err error

	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
	} else {
		// Search for defaults
		defaults := []string{"forecast_runner.yaml", "runner.yaml"}
		for _, name := range defaults {
			data, err = os.ReadFile(name)
			if err == nil {
				path = name // record which file we loaded
				break
			}
		}
	}

	if data != nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	str("FORECAST_TEMP_DIR", &cfg.TempDir)
	str("FORECAST_LOG_LEVEL", &cfg.LogLevel)
	str("FORECAST_LOG_FORMAT", &cfg.LogFormat)
	str("FORECAST_DATABASE_URL", &cfg.DatabaseURL)
	str("FORECAST_LISTEN_ADDR", &cfg.ListenAddr)
	str("FORECAST_OUTPUT_DIR", &cfg.OutputDir)

	if v := os.Getenv("FORECAST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("FORECAST_TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}
	if v := os.Getenv("FORECAST_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("FORECAST_RATE_LIMIT: %w", err)
		}
		cfg.RateLimit = f
	}
	return nil
}
