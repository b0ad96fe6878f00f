// Package config loads engine settings from an optional YAML file with
// environment-variable overrides on top.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Inputs names the five source tables a run reads.
type Inputs struct {
	Variables    string `yaml:"variables"`
	Flags        string `yaml:"flags"`
	Main         string `yaml:"main"`
	InterimRules string `yaml:"interim_rules"`
	FinalRules   string `yaml:"final_rules"`
}

// Database holds run persistence settings. Persistence is optional: a
// run without a configured database still writes its file exports.
type Database struct {
	Enabled          bool   `yaml:"enabled"`
	ConnectionString string `yaml:"connection_string"`
}

// Config is the full engine configuration.
type Config struct {
	Inputs    Inputs   `yaml:"inputs"`
	OutputDir string   `yaml:"output_dir"`
	Workers   int      `yaml:"workers"`
	Database  Database `yaml:"database"`
	Listen    string   `yaml:"listen"`
	LogLevel  string   `yaml:"log_level"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	return Config{
		Inputs: Inputs{
			Variables:    "data/variables.csv",
			Flags:        "data/flags.csv",
			Main:         "data/main.csv",
			InterimRules: "data/interim_rules.csv",
			FinalRules:   "data/final_rules.csv",
		},
		OutputDir: "output",
		Listen:    ":8080",
		LogLevel:  "info",
	}
}

// Load reads the YAML file at path (when non-empty), then applies
// environment overrides. An empty path means defaults plus environment
// only; an explicit path that cannot be read is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if cfg.Workers < 0 {
		return cfg, fmt.Errorf("workers must be >= 0, got %d", cfg.Workers)
	}
	if cfg.Database.Enabled && cfg.Database.ConnectionString == "" {
		return cfg, fmt.Errorf("database enabled but no connection string configured")
	}
	return cfg, nil
}

// applyEnv layers ISRR_* environment variables over the file values.
func applyEnv(cfg *Config) {
	if v := os.Getenv("ISRR_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("ISRR_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("ISRR_DB_CONN_STRING"); v != "" {
		cfg.Database.Enabled = true
		cfg.Database.ConnectionString = v
	}
	if v := os.Getenv("ISRR_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("ISRR_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// IsDatabaseEnabled reports whether run persistence is configured,
// either through the file or the environment.
func (c Config) IsDatabaseEnabled() bool {
	return c.Database.Enabled && c.Database.ConnectionString != ""
}

// SlogLevel maps the configured level name onto slog's scale. Unknown
// names fall back to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
