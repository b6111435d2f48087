// Package config loads the espipe run configuration from YAML with strict
// field checking and explicit defaults. Every field maps either to the
// encoder invocation or to an output surface; the demux core itself has no
// configuration beyond the encoder profile.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zsiec/espipe/internal/avc"
)

// Config is the complete run configuration.
type Config struct {
	Video    VideoConfig   `yaml:"video"`
	Encoder  EncoderConfig `yaml:"encoder"`
	Output   OutputConfig  `yaml:"output"`
	LogLevel string        `yaml:"log_level,omitempty"` // debug, info, warn, error
}

// VideoConfig describes the raw input frames.
type VideoConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	FPS    int `yaml:"fps"`
	Frames int `yaml:"frames"` // synthetic frame count; 0 means stdin is the frame source
}

// EncoderConfig selects the encoder family and its latency behavior.
type EncoderConfig struct {
	Profile       string `yaml:"profile"`        // "default" or "quicksync"
	ZeroLatency   bool   `yaml:"zero_latency"`
	LatencyFrames int    `yaml:"latency_frames"` // encoder's internal buffering when not zero-latency
	GOP           int    `yaml:"gop,omitempty"`
	BFrames       int    `yaml:"bframes,omitempty"`
	Bitrate       string `yaml:"bitrate,omitempty"`
	CRF           int    `yaml:"crf,omitempty"`
}

// OutputConfig lists the destinations for the Annex B stream.
type OutputConfig struct {
	Path        string `yaml:"path,omitempty"`         // elementary-stream file; empty disables
	ServeAddr   string `yaml:"serve_addr,omitempty"`   // QUIC fan-out listener; empty disables
	MetricsAddr string `yaml:"metrics_addr,omitempty"` // Prometheus endpoint; empty disables
}

// Load reads configuration from a YAML file. Unknown fields are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given: 720p25
// synthetic frames, software encoding, file output.
func Default() *Config {
	cfg := &Config{}
	cfg.Video.Frames = 100
	cfg.setDefaults()
	return cfg
}

func (c *Config) setDefaults() {
	if c.Video.Width == 0 {
		c.Video.Width = 1280
	}
	if c.Video.Height == 0 {
		c.Video.Height = 720
	}
	if c.Video.FPS == 0 {
		c.Video.FPS = 25
	}
	if c.Encoder.Profile == "" {
		c.Encoder.Profile = string(avc.ProfileDefault)
	}
	if c.Output.Path == "" && c.Output.ServeAddr == "" {
		c.Output.Path = "out.264"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate rejects configurations the encoder or pipeline cannot run.
func (c *Config) Validate() error {
	if c.Video.Width <= 0 || c.Video.Height <= 0 {
		return fmt.Errorf("config: invalid geometry %dx%d", c.Video.Width, c.Video.Height)
	}
	if c.Video.FPS <= 0 {
		return fmt.Errorf("config: invalid fps %d", c.Video.FPS)
	}
	if c.Video.Frames < 0 {
		return fmt.Errorf("config: negative frame count %d", c.Video.Frames)
	}
	if _, err := avc.ParseProfile(c.Encoder.Profile); err != nil {
		return err
	}
	if c.Encoder.LatencyFrames < 0 {
		return fmt.Errorf("config: negative latency_frames %d", c.Encoder.LatencyFrames)
	}
	if c.Encoder.ZeroLatency && c.Encoder.LatencyFrames > 0 {
		return fmt.Errorf("config: zero_latency excludes latency_frames > 0")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	return nil
}

// Profile returns the validated encoder profile.
func (c *Config) Profile() avc.Profile {
	p, _ := avc.ParseProfile(c.Encoder.Profile)
	return p
}
