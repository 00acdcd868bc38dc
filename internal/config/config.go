// Package config handles configuration loading and validation for predictd.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds the complete daemon configuration.
type Config struct {
	// Schema locates the active input schema.
	Schema SchemaConfig `toml:"schema"`

	// Database configures the prediction database.
	Database DatabaseConfig `toml:"database"`

	// Engine tunes the prediction engine.
	Engine EngineConfig `toml:"engine"`

	// Logging configures diagnostics output.
	Logging LoggingConfig `toml:"logging"`
}

// SchemaConfig locates and supervises the input schema file.
type SchemaConfig struct {
	// Path is the YAML schema file.
	Path string `toml:"path"`

	// WatchReload reloads the schema when the file changes on disk.
	WatchReload bool `toml:"watch_reload"`

	// DebounceMs is how long the file must be stable before a reload.
	DebounceMs int `toml:"debounce_ms"`
}

// DatabaseConfig configures the prediction database.
type DatabaseConfig struct {
	// Path is the SQLite database file.
	Path string `toml:"path"`

	// VerifyOnOpen recomputes the corpus digest at startup.
	VerifyOnOpen bool `toml:"verify_on_open"`
}

// EngineConfig tunes prediction behavior.
type EngineConfig struct {
	// CandidateLimit caps candidates loaded per query.
	CandidateLimit int `toml:"candidate_limit"`

	// MaxIterations bounds consecutive accepted continuations; zero or
	// negative means unbounded.
	MaxIterations int `toml:"max_iterations"`
}

// LoggingConfig configures diagnostics output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`

	// Format is text or json.
	Format string `toml:"format"`

	// Output is stdout, stderr, or file.
	Output string `toml:"output"`

	// FilePath is the log file when Output is file.
	FilePath string `toml:"file_path"`
}

// Default returns the default configuration rooted in the user's data
// directory.
func Default() *Config {
	dataDir := defaultDataDir()
	return &Config{
		Schema: SchemaConfig{
			Path:        filepath.Join(dataDir, "prose.schema.yaml"),
			WatchReload: true,
			DebounceMs:  500,
		},
		Database: DatabaseConfig{
			Path:         filepath.Join(dataDir, "predict.db"),
			VerifyOnOpen: false,
		},
		Engine: EngineConfig{
			CandidateLimit: 10,
			MaxIterations:  5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// defaultDataDir returns the platform data directory for predictd.
func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "predictd")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "predictd"
	}
	return filepath.Join(home, ".local", "share", "predictd")
}

// Load reads the TOML file at path over the defaults and validates the
// result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Schema.Path == "" {
		return errors.New("schema.path is required")
	}
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if c.Schema.DebounceMs < 0 {
		return errors.New("schema.debounce_ms must not be negative")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not text or json", c.Logging.Format)
	}
	switch c.Logging.Output {
	case "", "stdout", "stderr", "file":
	default:
		return fmt.Errorf("logging.output %q is not stdout, stderr, or file", c.Logging.Output)
	}
	if c.Logging.Output == "file" && c.Logging.FilePath == "" {
		return errors.New("logging.file_path is required when logging.output is file")
	}
	return nil
}
