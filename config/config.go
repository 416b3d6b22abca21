// Package config loads the mediator configuration from defaults, an
// optional YAML file and environment overrides, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is the complete mediator configuration.
type Config struct {
	Bridge  BridgeConfig  `yaml:"bridge"`
	FLRig   FLRigConfig   `yaml:"flrig"`
	Display DisplayConfig `yaml:"display"`
	Sync    SyncConfig    `yaml:"sync"`
	Log     LogConfig     `yaml:"log"`
}

// BridgeConfig holds the rigctld bridge server settings.
type BridgeConfig struct {
	Listen        string `yaml:"listen"`
	PTTTimeoutSec int    `yaml:"pttTimeoutSec"`
}

// PTTTimeout returns the forced PTT release ceiling.
func (c BridgeConfig) PTTTimeout() time.Duration {
	return time.Duration(c.PTTTimeoutSec) * time.Second
}

// FLRigConfig holds the CAT gateway endpoint settings.
type FLRigConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	MinIntervalMs int    `yaml:"minIntervalMs"`
}

// MinInterval returns the minimum spacing between CAT requests.
func (c FLRigConfig) MinInterval() time.Duration {
	return time.Duration(c.MinIntervalMs) * time.Millisecond
}

// DisplayConfig holds the spectrum display endpoint settings.
type DisplayConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// SyncConfig holds the frequency synchronizer settings.
type SyncConfig struct {
	Enabled    bool `yaml:"enabled"`
	IntervalMs int  `yaml:"intervalMs"`
}

// Interval returns the pause between synchronization cycles.
func (c SyncConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// LogConfig holds the logging settings. File is optional; when set, log
// output additionally goes to a rotating file.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
}

// Default returns the built-in configuration: bridge on the standard
// rigctld port, FLRig and display on localhost.
func Default() *Config {
	return &Config{
		Bridge: BridgeConfig{
			Listen:        ":4532",
			PTTTimeoutSec: 180,
		},
		FLRig: FLRigConfig{
			Host:          "127.0.0.1",
			Port:          12345,
			MinIntervalMs: 50,
		},
		Display: DisplayConfig{
			Host: "127.0.0.1",
			Port: 4533,
		},
		Sync: SyncConfig{
			Enabled:    true,
			IntervalMs: 500,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Load builds the configuration. path may be empty; the G90BRIDGE_CONFIG
// environment variable names a file to load when no path is given.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("G90BRIDGE_CONFIG")
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("cannot load config from %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("G90BRIDGE_LISTEN"); v != "" {
		cfg.Bridge.Listen = v
	}
	if v := os.Getenv("G90BRIDGE_PTT_TIMEOUT_SEC"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil {
			cfg.Bridge.PTTTimeoutSec = sec
		}
	}
	if v := os.Getenv("G90BRIDGE_FLRIG_HOST"); v != "" {
		cfg.FLRig.Host = v
	}
	if v := os.Getenv("G90BRIDGE_FLRIG_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.FLRig.Port = port
		}
	}
	if v := os.Getenv("G90BRIDGE_FLRIG_MIN_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.FLRig.MinIntervalMs = ms
		}
	}
	if v := os.Getenv("G90BRIDGE_DISPLAY_HOST"); v != "" {
		cfg.Display.Host = v
	}
	if v := os.Getenv("G90BRIDGE_DISPLAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Display.Port = port
		}
	}
	if v := os.Getenv("G90BRIDGE_SYNC_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Sync.Enabled = enabled
		}
	}
	if v := os.Getenv("G90BRIDGE_SYNC_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Sync.IntervalMs = ms
		}
	}
	if v := os.Getenv("G90BRIDGE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// Validate checks the configuration for values that would misbehave at
// runtime.
func (c *Config) Validate() error {
	if c.Bridge.Listen == "" {
		return fmt.Errorf("bridge listen address must not be empty")
	}
	if c.Bridge.PTTTimeoutSec < 1 || c.Bridge.PTTTimeoutSec > 600 {
		return fmt.Errorf("PTT timeout %d seconds is outside range [1, 600]", c.Bridge.PTTTimeoutSec)
	}
	if err := validatePort("flrig", c.FLRig.Port); err != nil {
		return err
	}
	if err := validatePort("display", c.Display.Port); err != nil {
		return err
	}
	if c.FLRig.MinIntervalMs < 0 || c.FLRig.MinIntervalMs > 1000 {
		return fmt.Errorf("flrig minimum request interval %d ms is outside range [0, 1000]", c.FLRig.MinIntervalMs)
	}
	if c.Sync.IntervalMs < 100 || c.Sync.IntervalMs > 10000 {
		return fmt.Errorf("sync interval %d ms is outside range [100, 10000]", c.Sync.IntervalMs)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.Log.Level)
	}
	return nil
}

func validatePort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid %s port %d", name, port)
	}
	return nil
}
