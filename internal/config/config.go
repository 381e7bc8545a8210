// Package config loads the client configuration from a YAML file with
// environment overrides. Secrets come from the environment (optionally a
// .env file) so config files can be checked in without leaking tokens.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Graph GraphConfig `yaml:"graph"`
	Sync  SyncConfig  `yaml:"sync"`
	Log   LogConfig   `yaml:"log"`
	State StateConfig `yaml:"state"`
}

// GraphConfig identifies the remote graph and how to authenticate.
type GraphConfig struct {
	Name  string `yaml:"name"`
	Token string `yaml:"token"`
	// BaseURL overrides the hosted endpoint, for self-hosted backends
	// and tests.
	BaseURL string `yaml:"base_url"`
}

func (c *GraphConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.Token, validation.Required),
	)
}

// SyncConfig tunes the background refresh and write retry behaviour.
type SyncConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	MaxRetries      int           `yaml:"max_retries"`
}

func (c *SyncConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.RefreshInterval, validation.Required, validation.Min(5*time.Second)),
		validation.Field(&c.MaxRetries, validation.Min(1), validation.Max(10)),
	)
}

// LogConfig routes structured logs to a file. Logging to stderr would
// corrupt the terminal UI, so an empty path disables logging entirely.
type LogConfig struct {
	Path  string   `yaml:"path"`
	Level LogLevel `yaml:"level"`
}

// LogLevel wraps slog.Level so YAML can spell levels by name ("DEBUG",
// "warn") rather than by number.
type LogLevel struct {
	slog.Level
}

func (l *LogLevel) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return l.Level.UnmarshalText([]byte(s))
}

// StateConfig holds the local SQLite database for UI state and the
// write journal.
type StateConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Graph.Validate(); err != nil {
		return err
	}
	return c.Sync.Validate()
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Sync: SyncConfig{
			RefreshInterval: 30 * time.Second,
			MaxRetries:      3,
		},
		Log: LogConfig{
			Level: LogLevel{slog.LevelInfo},
		},
		State: StateConfig{
			Path: defaultStatePath(),
		},
	}
}

// Load reads the YAML file at path (if it exists), applies environment
// overrides, and validates the result. A .env file in the working
// directory is honoured before the environment is read.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// Fine, run on defaults plus environment.
		default:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if v := os.Getenv("ROAM_GRAPH"); v != "" {
		cfg.Graph.Name = v
	}
	if v := os.Getenv("ROAM_API_TOKEN"); v != "" {
		cfg.Graph.Token = v
	}
	if v := os.Getenv("ROAM_BASE_URL"); v != "" {
		cfg.Graph.BaseURL = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if cfg.State.Path == "" {
		cfg.State.Path = defaultStatePath()
	}
	return cfg, nil
}

// Logger opens the configured log file and returns a slog logger writing
// to it. With no path configured, logs are discarded.
func (c *Config) Logger() (*slog.Logger, func() error, error) {
	if c.Log.Path == "" {
		return slog.New(slog.DiscardHandler), func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(c.Log.Path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("config: create log dir: %w", err)
	}
	f, err := os.OpenFile(c.Log.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("config: open log file: %w", err)
	}
	h := slog.NewTextHandler(f, &slog.HandlerOptions{Level: c.Log.Level.Level})
	return slog.New(h), f.Close, nil
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "rhizome.sqlite"
	}
	return filepath.Join(dir, "rhizome", "state.sqlite")
}
