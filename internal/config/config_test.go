package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:8700" {
		t.Errorf("addr = %q, want default", cfg.Server.Addr)
	}
	if cfg.Capture.MinBaselineSessions != 5 {
		t.Errorf("min_baseline_sessions = %d, want 5", cfg.Capture.MinBaselineSessions)
	}
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[storage]
path = "/tmp/test-screening.db"

[server]
addr = "127.0.0.1:9999"

[logging]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Path != "/tmp/test-screening.db" {
		t.Errorf("storage.path = %q", cfg.Storage.Path)
	}
	if cfg.Server.Addr != "127.0.0.1:9999" {
		t.Errorf("server.addr = %q", cfg.Server.Addr)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging.level = %q", cfg.Logging.Level)
	}
	// Untouched sections keep their defaults.
	if cfg.Capture.SessionSeconds != 60 {
		t.Errorf("capture.session_seconds = %d, want default 60", cfg.Capture.SessionSeconds)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  addr: "0.0.0.0:8701"
logging:
  format: json
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != "0.0.0.0:8701" {
		t.Errorf("server.addr = %q", cfg.Server.Addr)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("logging.format = %q", cfg.Logging.Format)
	}
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"capture": {"session_seconds": 120, "min_baseline_sessions": 8}}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Capture.SessionSeconds != 120 || cfg.Capture.MinBaselineSessions != 8 {
		t.Errorf("capture = %+v", cfg.Capture)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PDSCREEN_STORAGE_PATH", "/tmp/env-override.db")
	t.Setenv("PDSCREEN_LOG_LEVEL", "warn")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Path != "/tmp/env-override.db" {
		t.Errorf("storage.path = %q", cfg.Storage.Path)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("logging.level = %q", cfg.Logging.Level)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty storage path", func(c *Config) { c.Storage.Path = "" }},
		{"zero session seconds", func(c *Config) { c.Capture.SessionSeconds = 0 }},
		{"zero baseline sessions", func(c *Config) { c.Capture.MinBaselineSessions = 0 }},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"addr without port", func(c *Config) { c.Server.Addr = "localhost" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestDataDirEnvOverride(t *testing.T) {
	t.Setenv("PDSCREEN_DATA_DIR", "/tmp/pdscreen-test")
	if got := DataDir(); got != "/tmp/pdscreen-test" {
		t.Errorf("DataDir = %q", got)
	}
}
