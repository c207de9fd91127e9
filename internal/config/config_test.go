package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dvdecode.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "protocol: pocsag\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Protocol != "pocsag" {
		t.Errorf("Protocol = %q", cfg.Protocol)
	}
	if cfg.Threshold != 0.95 {
		t.Errorf("Threshold default = %v, want 0.95", cfg.Threshold)
	}
	if cfg.Input.Format != "bits" {
		t.Errorf("Input.Format default = %q, want bits", cfg.Input.Format)
	}
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
protocol: p25
threshold: 0.9
max_frame_bits: 4096
timeout_frames: 60
input:
  path: /tmp/stream.bits
  format: packed
  chunk_bits: 8192
metrics:
  listen: ":9090"
lookup:
  database: /tmp/radioids.db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Threshold != 0.9 || cfg.MaxFrameBits != 4096 || cfg.TimeoutFrames != 60 {
		t.Errorf("unexpected decode values: %+v", cfg)
	}
	if cfg.Input.Format != "packed" || cfg.Input.ChunkBits != 8192 {
		t.Errorf("unexpected input values: %+v", cfg.Input)
	}
	if cfg.Metrics.Listen != ":9090" {
		t.Errorf("Metrics.Listen = %q", cfg.Metrics.Listen)
	}
	if cfg.Lookup.Database != "/tmp/radioids.db" {
		t.Errorf("Lookup.Database = %q", cfg.Lookup.Database)
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "empty protocol", mutate: func(c *Config) { c.Protocol = "" }},
		{name: "zero threshold", mutate: func(c *Config) { c.Threshold = 0 }},
		{name: "threshold above one", mutate: func(c *Config) { c.Threshold = 1.2 }},
		{name: "zero max frame", mutate: func(c *Config) { c.MaxFrameBits = 0 }},
		{name: "negative timeout", mutate: func(c *Config) { c.TimeoutFrames = -1 }},
		{name: "bad input format", mutate: func(c *Config) { c.Input.Format = "hex" }},
		{name: "zero chunk", mutate: func(c *Config) { c.Input.ChunkBits = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() accepted invalid config")
			}
		})
	}
}
