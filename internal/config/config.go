// Package config loads runtime configuration for the helpdesk client.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultUploadMaxBytes is the client-side document upload cap (10 MiB).
const DefaultUploadMaxBytes int64 = 10 * 1024 * 1024

// Config holds all configuration values.
type Config struct {
	// Backend
	APIURL        string        `env:"HELPDESK_API_URL" envDefault:"http://localhost:8000"`
	ClientTimeout time.Duration `env:"HELPDESK_CLIENT_TIMEOUT" envDefault:"0s"`

	// Session store
	Profile   string `env:"HELPDESK_PROFILE" envDefault:"default"`
	StateDir  string `env:"HELPDESK_STATE_DIR"`
	Ephemeral bool   `env:"HELPDESK_EPHEMERAL" envDefault:"false"`

	// Logging
	LogFile     string `env:"HELPDESK_LOG_FILE" envDefault:"/tmp/helpdesk.log"`
	LogLevelRaw string `env:"HELPDESK_LOG_LEVEL" envDefault:"INFO"`

	// LogLevel is derived from LogLevelRaw by Load.
	LogLevel slog.Level `env:"-"`

	// Documents
	UploadMaxBytes int64 `env:"HELPDESK_UPLOAD_MAX_BYTES" envDefault:"10485760"`
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first if present; variables already set in
// the environment take precedence over it.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.LogLevel = ParseLogLevel(cfg.LogLevelRaw)
	if cfg.StateDir == "" {
		cfg.StateDir = defaultStateDir()
	}
	if cfg.UploadMaxBytes <= 0 {
		cfg.UploadMaxBytes = DefaultUploadMaxBytes
	}
	if cfg.Profile == "" {
		cfg.Profile = "default"
	}

	return cfg, nil
}

// SessionFile returns the path of the file-backed session store for the
// configured profile.
func (c Config) SessionFile() string {
	return filepath.Join(c.StateDir, c.Profile+".json")
}

// defaultStateDir follows XDG_STATE_HOME, falling back to ~/.local/state.
func defaultStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "helpdesk")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "helpdesk")
	}
	return filepath.Join(home, ".local", "state", "helpdesk")
}

// ParseLogLevel maps a level name to a slog.Level, defaulting to INFO.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
