package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	if cfg.Server.HTTPPort != 8080 {
		t.Errorf("expected HTTPPort 8080, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Server.ReadTimeout.Std() != 30*time.Second {
		t.Errorf("expected ReadTimeout 30s, got %v", cfg.Server.ReadTimeout)
	}

	if cfg.Queue.Size != 10000 {
		t.Errorf("expected Queue.Size 10000, got %d", cfg.Queue.Size)
	}
	if cfg.Queue.BatchSize != 256 {
		t.Errorf("expected Queue.BatchSize 256, got %d", cfg.Queue.BatchSize)
	}

	if !cfg.Generator.Enabled {
		t.Error("expected Generator.Enabled to be true by default")
	}
	if cfg.Generator.BenignInterval.Std() != 1600*time.Millisecond {
		t.Errorf("expected BenignInterval 1600ms, got %v", cfg.Generator.BenignInterval)
	}

	if cfg.Engine.EventCap != 4000 || cfg.Engine.EventKeep != 3100 {
		t.Errorf("unexpected event retention: cap %d keep %d",
			cfg.Engine.EventCap, cfg.Engine.EventKeep)
	}

	if cfg.Detection.BruteForceFails != 8 {
		t.Errorf("expected BruteForceFails 8, got %d", cfg.Detection.BruteForceFails)
	}
	if cfg.Detection.EarlyWarnings {
		t.Error("expected EarlyWarnings to be off by default")
	}

	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging defaults: %s/%s", cfg.Logging.Level, cfg.Logging.Format)
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should be valid, got error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.HTTPPort = -1 }},
		{"zero queue", func(c *Config) { c.Queue.Size = 0 }},
		{"zero batch", func(c *Config) { c.Queue.BatchSize = 0 }},
		{"zero poll interval", func(c *Config) { c.Queue.PollInterval = 0 }},
		{"keep above cap", func(c *Config) { c.Engine.AlertKeep = c.Engine.AlertCap }},
		{"trim above cap", func(c *Config) { c.Generator.EventLogTrim = c.Generator.EventLogCap }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("SOCWATCH_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load with missing file should not error: %v", err)
	}
	if cfg.Server.HTTPPort != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.HTTPPort)
	}
}

func TestLoadParsesFileAndDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
server:
  http_port: 9090
  read_timeout: 15s
generator:
  enabled: false
  benign_interval: 800ms
detection:
  brute_force_fails: 12
  dedup_seconds: 9999
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SOCWATCH_CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.HTTPPort != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Server.ReadTimeout.Std() != 15*time.Second {
		t.Errorf("expected ReadTimeout 15s, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Generator.Enabled {
		t.Error("expected generator disabled")
	}
	if cfg.Generator.BenignInterval.Std() != 800*time.Millisecond {
		t.Errorf("expected BenignInterval 800ms, got %v", cfg.Generator.BenignInterval)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}

	// Unspecified keys keep defaults.
	if cfg.Queue.Size != 10000 {
		t.Errorf("expected default queue size, got %d", cfg.Queue.Size)
	}

	// Detection knobs arrive clamped.
	if cfg.Detection.BruteForceFails != 12 {
		t.Errorf("expected BruteForceFails 12, got %d", cfg.Detection.BruteForceFails)
	}
	if cfg.Detection.DedupSeconds != 300 {
		t.Errorf("expected DedupSeconds clamped to 300, got %d", cfg.Detection.DedupSeconds)
	}
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "server:\n  read_timeout: soon\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SOCWATCH_CONFIG_PATH", path)

	if _, err := Load(); err == nil {
		t.Error("expected error for malformed duration")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SOCWATCH_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("SOCWATCH_HTTP_PORT", "7070")
	t.Setenv("SOCWATCH_LOG_LEVEL", "warn")
	t.Setenv("SOCWATCH_GENERATOR_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.HTTPPort != 7070 {
		t.Errorf("expected port 7070 from env, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected log level warn from env, got %s", cfg.Logging.Level)
	}
	if cfg.Generator.Enabled {
		t.Error("expected generator disabled via env")
	}
}

func TestDurationRoundTrip(t *testing.T) {
	d := Duration(90 * time.Second)
	if d.String() != "1m30s" {
		t.Errorf("expected 1m30s, got %s", d.String())
	}
	out, err := d.MarshalYAML()
	if err != nil {
		t.Fatal(err)
	}
	if out != "1m30s" {
		t.Errorf("expected yaml value 1m30s, got %v", out)
	}
}
