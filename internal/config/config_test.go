package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zsiec/espipe/internal/avc"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "espipe.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := Load(writeConfig(t, "video:\n  width: 640\n  height: 480\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Video.Width != 640 || cfg.Video.Height != 480 {
		t.Errorf("geometry = %dx%d, want 640x480", cfg.Video.Width, cfg.Video.Height)
	}
	if cfg.Video.FPS != 25 {
		t.Errorf("fps default = %d, want 25", cfg.Video.FPS)
	}
	if cfg.Video.Frames != 0 {
		t.Errorf("frames = %d, want 0 (stdin source)", cfg.Video.Frames)
	}
	if cfg.Profile() != avc.ProfileDefault {
		t.Errorf("profile default = %q, want %q", cfg.Profile(), avc.ProfileDefault)
	}
	if cfg.Output.Path != "out.264" {
		t.Errorf("output path default = %q, want out.264", cfg.Output.Path)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log_level default = %q, want info", cfg.LogLevel)
	}
}

func TestDefaultUsesSyntheticFrames(t *testing.T) {
	t.Parallel()
	cfg := Default()
	if cfg.Video.Frames != 100 {
		t.Errorf("frames = %d, want 100", cfg.Video.Frames)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	_, err := Load(writeConfig(t, "video:\n  widht: 640\n"))
	if err == nil || !strings.Contains(err.Error(), "decode") {
		t.Errorf("got %v, want decode error for unknown field", err)
	}
}

func TestLoadFullConfig(t *testing.T) {
	t.Parallel()
	cfg, err := Load(writeConfig(t, `
video:
  width: 1920
  height: 1080
  fps: 30
  frames: 250
encoder:
  profile: quicksync
  zero_latency: true
  bitrate: 30000k
output:
  path: stream.264
  serve_addr: ":7843"
  metrics_addr: ":9100"
log_level: debug
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Profile() != avc.ProfileQuickSync {
		t.Errorf("profile = %q, want quicksync", cfg.Profile())
	}
	if !cfg.Encoder.ZeroLatency {
		t.Error("zero_latency not set")
	}
	if cfg.Output.ServeAddr != ":7843" || cfg.Output.MetricsAddr != ":9100" {
		t.Errorf("output addrs = %q, %q", cfg.Output.ServeAddr, cfg.Output.MetricsAddr)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"bad profile", func(c *Config) { c.Encoder.Profile = "vaapi" }, true},
		{"negative frames", func(c *Config) { c.Video.Frames = -1 }, true},
		{"zero latency with delay", func(c *Config) {
			c.Encoder.ZeroLatency = true
			c.Encoder.LatencyFrames = 26
		}, true},
		{"buffered with delay", func(c *Config) { c.Encoder.LatencyFrames = 26 }, false},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, true},
	}
	for _, tt := range tests {
		cfg := Default()
		tt.mutate(cfg)
		if err := cfg.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate() = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load of missing file succeeded")
	}
}
