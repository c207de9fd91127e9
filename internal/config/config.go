// Package config loads the YAML session configuration for the command-line
// decoder host.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Input describes where the demodulated bit stream comes from.
type Input struct {
	// Path is the input file; "-" reads standard input.
	Path string `yaml:"path"`
	// Listen is a UDP address to receive the stream on instead of reading
	// Path, e.g. ":7355".
	Listen string `yaml:"listen"`
	// Format is "bits" for one bit per byte, or "packed" for packed bytes,
	// most significant bit first.
	Format string `yaml:"format"`
	// ChunkBits is how many bits are offered to the decoder per step.
	ChunkBits int `yaml:"chunk_bits"`
}

// Log configures the rotating log file; an empty path logs to stderr.
type Log struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Metrics configures the optional Prometheus endpoint.
type Metrics struct {
	// Listen is the HTTP listen address, e.g. ":9090"; empty disables it.
	Listen string `yaml:"listen"`
}

// Lookup configures callsign enrichment.
type Lookup struct {
	// File is a CSV radio ID list (id,callsign per line).
	File string `yaml:"file"`
	// Database is the SQLite identity store; takes precedence over File.
	Database  string `yaml:"database"`
	CacheSize int    `yaml:"cache_size"`
	// Sync keeps the database populated from the RadioID.net registry.
	Sync bool `yaml:"sync"`
	// SyncIntervalHours is the refresh period; zero means daily.
	SyncIntervalHours int `yaml:"sync_interval_hours"`
}

// Config is the full session configuration.
type Config struct {
	Protocol      string  `yaml:"protocol"`
	Threshold     float64 `yaml:"threshold"`
	MaxFrameBits  int     `yaml:"max_frame_bits"`
	TimeoutFrames int     `yaml:"timeout_frames"`

	Input   Input   `yaml:"input"`
	Log     Log     `yaml:"log"`
	Metrics Metrics `yaml:"metrics"`
	Lookup  Lookup  `yaml:"lookup"`
}

// Default returns the configuration defaults applied before loading.
func Default() Config {
	return Config{
		Protocol:      "p25",
		Threshold:     0.95,
		MaxFrameBits:  8192,
		TimeoutFrames: 120,
		Input: Input{
			Path:      "-",
			Format:    "bits",
			ChunkBits: 4096,
		},
		Log: Log{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads and validates a configuration file.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for construction-time errors.
func (c Config) Validate() error {
	if c.Protocol == "" {
		return fmt.Errorf("config: protocol is required")
	}
	if c.Threshold <= 0 || c.Threshold > 1 {
		return fmt.Errorf("config: threshold %v outside (0, 1]", c.Threshold)
	}
	if c.MaxFrameBits <= 0 {
		return fmt.Errorf("config: max_frame_bits must be positive, got %d", c.MaxFrameBits)
	}
	if c.TimeoutFrames < 0 {
		return fmt.Errorf("config: timeout_frames must not be negative, got %d", c.TimeoutFrames)
	}
	if c.Input.Format != "bits" && c.Input.Format != "packed" {
		return fmt.Errorf("config: input format %q (want \"bits\" or \"packed\")", c.Input.Format)
	}
	if c.Input.ChunkBits <= 0 {
		return fmt.Errorf("config: chunk_bits must be positive, got %d", c.Input.ChunkBits)
	}
	if c.Lookup.Sync && c.Lookup.Database == "" {
		return fmt.Errorf("config: lookup sync requires a database path")
	}
	return nil
}
