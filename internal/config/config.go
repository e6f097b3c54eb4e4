// Package config provides YAML configuration loading and validation for the
// watchtree daemon.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure for watchtreed.
type Config struct {
	// SocketPath is the filesystem path of the control socket the (external)
	// request/reply transport binds. Required.
	SocketPath string `yaml:"socket_path"`

	// StateFile is the path of the persisted rewatch-eligible root set
	// (spec.md §4.7/§6). Defaults to "/var/lib/watchtreed/roots.state".
	StateFile string `yaml:"state_file"`

	// DefaultMaxEvents is used for watch requests that pass max_events=0.
	// Defaults to 4096.
	DefaultMaxEvents int `yaml:"default_max_events"`

	// TickInterval is the housekeeping tick period (spec.md §4.6). Defaults
	// to 10s.
	TickInterval time.Duration `yaml:"tick_interval"`

	// MemcleanEvery is the number of ticks between memclean sweeps.
	// Defaults to 1 (every tick).
	MemcleanEvery int `yaml:"memclean_every"`

	// RewatchSweepEvery is the number of ticks between rewatch sweeps.
	// Defaults to 6 (roughly once a minute at the default tick interval).
	RewatchSweepEvery int `yaml:"rewatch_sweep_every"`

	// LogLevel sets the minimum log severity: "debug", "info", "warn", or
	// "error". Defaults to "info" when omitted.
	LogLevel string `yaml:"log_level"`

	// OpsAddr is the listen address for the ops HTTP server (/healthz,
	// /metrics). Defaults to "127.0.0.1:9090" when omitted.
	OpsAddr string `yaml:"ops_addr"`

	// path is the file this Config was loaded from, and modTime is its
	// mtime at load time; Changed compares the file's current mtime
	// against modTime.
	path    string
	modTime time.Time
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// LoadConfig reads the YAML file at path, unmarshals it into Config, applies
// defaults, and validates all required fields. A validation error joins
// (errors.Join) every validation failure found, not only the first.
func LoadConfig(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("config: cannot stat %q: %w", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: cannot read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: cannot parse %q: %w", path, err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed for %q: %w", path, err)
	}

	cfg.path = path
	cfg.modTime = info.ModTime()

	return &cfg, nil
}

// Changed reports whether the file this Config was loaded from has a newer
// modification time than when it was loaded. It only reports: nothing in
// watchtreed calls it on the housekeeping tick, and the daemon does not
// reload its configuration; the file is read once, at startup.
func (c *Config) Changed() (bool, error) {
	if c.path == "" {
		return false, nil
	}
	info, err := os.Stat(c.path)
	if err != nil {
		return false, fmt.Errorf("config: stat %q: %w", c.path, err)
	}
	return info.ModTime().After(c.modTime), nil
}

// Path returns the file this Config was loaded from, or "" for a Config
// built without LoadConfig (e.g. in tests).
func (c *Config) Path() string { return c.path }

// applyDefaults fills in zero-value optional fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.OpsAddr == "" {
		cfg.OpsAddr = "127.0.0.1:9090"
	}
	if cfg.StateFile == "" {
		cfg.StateFile = "/var/lib/watchtreed/roots.state"
	}
	if cfg.DefaultMaxEvents == 0 {
		cfg.DefaultMaxEvents = 4096
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = 10 * time.Second
	}
	if cfg.MemcleanEvery == 0 {
		cfg.MemcleanEvery = 1
	}
	if cfg.RewatchSweepEvery == 0 {
		cfg.RewatchSweepEvery = 6
	}
}

// validate checks that all required fields are populated and that enumerated
// fields contain only valid values.
func validate(cfg *Config) error {
	var errs []error

	if cfg.SocketPath == "" {
		errs = append(errs, errors.New("socket_path is required"))
	}
	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level %q must be one of: debug, info, warn, error", cfg.LogLevel))
	}
	if cfg.DefaultMaxEvents < 0 {
		errs = append(errs, fmt.Errorf("default_max_events %d must be non-negative", cfg.DefaultMaxEvents))
	}
	if cfg.TickInterval < 0 {
		errs = append(errs, fmt.Errorf("tick_interval %s must be non-negative", cfg.TickInterval))
	}

	return errors.Join(errs...)
}
