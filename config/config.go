// Package config holds the settings of the driver stack and the host tool.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"cfcard/diag"
	"cfcard/pata"
)

// Config is the top level configuration.
type Config struct {
	Drive  DriveConfig  `yaml:"drive"`
	Serial SerialConfig `yaml:"serial"`
	Log    LogConfig    `yaml:"log"`
	Image  ImageConfig  `yaml:"image"`
}

// DriveConfig tunes the PATA protocol.
type DriveConfig struct {
	// StatusTimeoutMs bounds every status wait, one poll per millisecond.
	// Slow disks need more.
	StatusTimeoutMs int `yaml:"status_timeout_ms"`

	// PreferLBA requests LBA addressing at init.
	PreferLBA bool `yaml:"prefer_lba"`

	// ReadyTimeoutS bounds the power-up wait, one poll per second.
	ReadyTimeoutS int `yaml:"ready_timeout_s"`
}

// SerialConfig is the port the monitor command reads firmware logs from.
type SerialConfig struct {
	Device        string `yaml:"device"`
	Baud          int    `yaml:"baud"`
	ReadTimeoutMs int    `yaml:"read_timeout_ms"`
}

// LogConfig selects level and format of the diagnostics.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// ImageConfig describes the disk image used by the simulator commands.
type ImageConfig struct {
	Path string `yaml:"path"`

	// Sectors is the size of a newly created image.
	Sectors int `yaml:"sectors"`
}

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		Drive: DriveConfig{
			StatusTimeoutMs: 100,
			PreferLBA:       true,
			ReadyTimeoutS:   30,
		},
		Serial: SerialConfig{
			Device:        "/dev/ttyACM0",
			Baud:          115200,
			ReadTimeoutMs: 100,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Image: ImageConfig{
			Path:    "disk.img",
			Sectors: 2048,
		},
	}
}

// Load parses YAML. Keys that are not present keep their default.
func Load(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads and parses a YAML file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings the stack cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Drive.StatusTimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("drive.status_timeout_ms must be positive, got %d", c.Drive.StatusTimeoutMs))
	}
	if c.Drive.ReadyTimeoutS <= 0 {
		errs = append(errs, fmt.Errorf("drive.ready_timeout_s must be positive, got %d", c.Drive.ReadyTimeoutS))
	}
	if c.Serial.Baud <= 0 {
		errs = append(errs, fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud))
	}
	if c.Serial.ReadTimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("serial.read_timeout_ms must not be negative, got %d", c.Serial.ReadTimeoutMs))
	}
	if c.Image.Sectors <= 0 {
		errs = append(errs, fmt.Errorf("image.sectors must be positive, got %d", c.Image.Sectors))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// PATA returns the protocol timing for these settings.
func (d DriveConfig) PATA() pata.Config {
	cfg := pata.DefaultConfig()
	cfg.StatusTimeout = d.StatusTimeoutMs
	cfg.PollInterval = time.Millisecond
	cfg.ReadyTimeout = d.ReadyTimeoutS
	cfg.ReadyInterval = time.Second
	return cfg
}

// ReadTimeout returns the port read timeout.
func (s SerialConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutMs) * time.Millisecond
}

// Apply routes the diag loggers to w.
func (l LogConfig) Apply(w io.Writer) {
	diag.SetLogLevel(diag.ParseLevel(l.Level))
	format := diag.LogFormatText
	if strings.EqualFold(l.Format, "json") {
		format = diag.LogFormatJSON
	}
	diag.SetOutput(w, format)
}
