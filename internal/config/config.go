// Package config handles configuration loading, validation, and defaults
// for the screening daemon and CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config holds the complete configuration.
type Config struct {
	// Storage configuration for persistence.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// Capture configuration for keystroke recording.
	Capture CaptureConfig `toml:"capture" json:"capture" yaml:"capture"`

	// Server configuration for the HTTP/WebSocket daemon.
	Server ServerConfig `toml:"server" json:"server" yaml:"server"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// StorageConfig holds persistence configuration.
type StorageConfig struct {
	// Path is the path to the SQLite database file.
	Path string `toml:"path" json:"path" yaml:"path"`

	// WatchForChanges reloads the baseline when another process writes
	// new baseline sessions to the database.
	WatchForChanges bool `toml:"watch_for_changes" json:"watch_for_changes" yaml:"watch_for_changes"`
}

// CaptureConfig holds keystroke capture configuration.
type CaptureConfig struct {
	// SessionSeconds is the default recording duration for CLI sessions.
	SessionSeconds int `toml:"session_seconds" json:"session_seconds" yaml:"session_seconds"`

	// MinBaselineSessions is the recommended corpus size before
	// screening; smaller corpora fit but are flagged in reports.
	MinBaselineSessions int `toml:"min_baseline_sessions" json:"min_baseline_sessions" yaml:"min_baseline_sessions"`
}

// ServerConfig holds daemon listen configuration.
type ServerConfig struct {
	// Addr is the listen address, host:port.
	Addr string `toml:"addr" json:"addr" yaml:"addr"`

	// ReadTimeoutSec and WriteTimeoutSec bound HTTP request handling.
	ReadTimeoutSec  int `toml:"read_timeout_sec" json:"read_timeout_sec" yaml:"read_timeout_sec"`
	WriteTimeoutSec int `toml:"write_timeout_sec" json:"write_timeout_sec" yaml:"write_timeout_sec"`

	// AllowedOrigins restricts websocket origins; empty allows any,
	// for local single-user deployments.
	AllowedOrigins []string `toml:"allowed_origins" json:"allowed_origins" yaml:"allowed_origins"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is the log output: "stdout" or "stderr".
	Output string `toml:"output" json:"output" yaml:"output"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := DataDir()

	return &Config{
		Storage: StorageConfig{
			Path:            filepath.Join(dir, "screening.db"),
			WatchForChanges: true,
		},
		Capture: CaptureConfig{
			SessionSeconds:      60,
			MinBaselineSessions: 5,
		},
		Server: ServerConfig{
			Addr:            "127.0.0.1:8700",
			ReadTimeoutSec:  30,
			WriteTimeoutSec: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.toml")
}

// DataDir returns the base data directory, honoring the
// PDSCREEN_DATA_DIR environment override.
func DataDir() string {
	if envDir := os.Getenv("PDSCREEN_DATA_DIR"); envDir != "" {
		return envDir
	}
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "pdscreen")
	case "windows":
		appData := os.Getenv("LOCALAPPDATA")
		if appData == "" {
			appData = os.Getenv("APPDATA")
		}
		return filepath.Join(appData, "pdscreen")
	default:
		if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
			return filepath.Join(dataHome, "pdscreen")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "pdscreen")
	}
}

// Load reads configuration from path. A missing file yields defaults.
// TOML, JSON, and YAML formats are supported, chosen by file extension.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = ConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	switch filepath.Ext(path) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// ApplyEnvOverrides applies PDSCREEN_-prefixed environment overrides.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("PDSCREEN_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("PDSCREEN_LISTEN_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("PDSCREEN_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path must not be empty")
	}
	if c.Capture.SessionSeconds <= 0 {
		return fmt.Errorf("capture.session_seconds must be positive, got %d", c.Capture.SessionSeconds)
	}
	if c.Capture.MinBaselineSessions < 1 {
		return fmt.Errorf("capture.min_baseline_sessions must be at least 1, got %d", c.Capture.MinBaselineSessions)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if !strings.Contains(c.Server.Addr, ":") {
		return fmt.Errorf("server.addr must be host:port, got %q", c.Server.Addr)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// EnsureDirectories creates directories the configuration points into.
func (c *Config) EnsureDirectories() error {
	dir := filepath.Dir(c.Storage.Path)
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}
