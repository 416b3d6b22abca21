package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default configuration is invalid: %v", err)
	}
	if cfg.Bridge.Listen != ":4532" {
		t.Errorf("expected default listen :4532, got %q", cfg.Bridge.Listen)
	}
	if cfg.Bridge.PTTTimeout() != 3*time.Minute {
		t.Errorf("expected default PTT timeout 3m, got %v", cfg.Bridge.PTTTimeout())
	}
	if cfg.FLRig.MinInterval() != 50*time.Millisecond {
		t.Errorf("expected default request spacing 50ms, got %v", cfg.FLRig.MinInterval())
	}
	if cfg.Sync.Interval() != 500*time.Millisecond {
		t.Errorf("expected default sync interval 500ms, got %v", cfg.Sync.Interval())
	}
	if !cfg.Sync.Enabled {
		t.Error("expected sync to be enabled by default")
	}
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if *cfg != *Default() {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadFromFile(t *testing.T) {
	filename := writeConfigFile(t, `
bridge:
  listen: ":14532"
  pttTimeoutSec: 60
flrig:
  host: rig.local
  port: 12346
sync:
  enabled: false
`)

	cfg, err := Load(filename)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Bridge.Listen != ":14532" {
		t.Errorf("expected listen :14532, got %q", cfg.Bridge.Listen)
	}
	if cfg.Bridge.PTTTimeout() != time.Minute {
		t.Errorf("expected PTT timeout 1m, got %v", cfg.Bridge.PTTTimeout())
	}
	if cfg.FLRig.Host != "rig.local" || cfg.FLRig.Port != 12346 {
		t.Errorf("expected rig.local:12346, got %s:%d", cfg.FLRig.Host, cfg.FLRig.Port)
	}
	if cfg.Sync.Enabled {
		t.Error("expected sync to be disabled")
	}
	// untouched values keep their defaults
	if cfg.Display.Port != 4533 {
		t.Errorf("expected default display port 4533, got %d", cfg.Display.Port)
	}
}

func TestLoadFileNotFound(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected load to fail for a missing file")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("G90BRIDGE_LISTEN", "127.0.0.1:14532")
	t.Setenv("G90BRIDGE_PTT_TIMEOUT_SEC", "60")
	t.Setenv("G90BRIDGE_FLRIG_HOST", "rig.local")
	t.Setenv("G90BRIDGE_FLRIG_PORT", "12346")
	t.Setenv("G90BRIDGE_FLRIG_MIN_INTERVAL_MS", "100")
	t.Setenv("G90BRIDGE_SYNC_ENABLED", "false")
	t.Setenv("G90BRIDGE_SYNC_INTERVAL_MS", "1000")
	t.Setenv("G90BRIDGE_LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Bridge.Listen != "127.0.0.1:14532" {
		t.Errorf("expected listen override, got %q", cfg.Bridge.Listen)
	}
	if cfg.Bridge.PTTTimeout() != time.Minute {
		t.Errorf("expected PTT timeout 1m, got %v", cfg.Bridge.PTTTimeout())
	}
	if cfg.FLRig.Host != "rig.local" || cfg.FLRig.Port != 12346 {
		t.Errorf("expected rig.local:12346, got %s:%d", cfg.FLRig.Host, cfg.FLRig.Port)
	}
	if cfg.FLRig.MinInterval() != 100*time.Millisecond {
		t.Errorf("expected request spacing 100ms, got %v", cfg.FLRig.MinInterval())
	}
	if cfg.Sync.Enabled {
		t.Error("expected sync to be disabled")
	}
	if cfg.Sync.Interval() != time.Second {
		t.Errorf("expected sync interval 1s, got %v", cfg.Sync.Interval())
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level debug, got %q", cfg.Log.Level)
	}
}

func TestEnvironmentNamesConfigFile(t *testing.T) {
	filename := writeConfigFile(t, "bridge:\n  listen: \":14532\"\n")
	t.Setenv("G90BRIDGE_CONFIG", filename)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Bridge.Listen != ":14532" {
		t.Errorf("expected listen :14532, got %q", cfg.Bridge.Listen)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen", func(c *Config) { c.Bridge.Listen = "" }},
		{"zero PTT timeout", func(c *Config) { c.Bridge.PTTTimeoutSec = 0 }},
		{"huge PTT timeout", func(c *Config) { c.Bridge.PTTTimeoutSec = 601 }},
		{"invalid flrig port", func(c *Config) { c.FLRig.Port = 0 }},
		{"invalid display port", func(c *Config) { c.Display.Port = 70000 }},
		{"negative request spacing", func(c *Config) { c.FLRig.MinIntervalMs = -1 }},
		{"sync interval too short", func(c *Config) { c.Sync.IntervalMs = 50 }},
		{"sync interval too long", func(c *Config) { c.Sync.IntervalMs = 20000 }},
		{"unknown log level", func(c *Config) { c.Log.Level = "verbose" }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			test.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation to fail")
			}
		})
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), "g90bridge.yaml")
	if err := os.WriteFile(filename, []byte(content), 0644); err != nil {
		t.Fatalf("cannot write config file: %v", err)
	}
	return filename
}
