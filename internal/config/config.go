package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/VeeLume/streamdeck-counter/internal/logger"
)

// Config holds plugin-wide settings that are not part of any button's settings.
type Config struct {
	// LogLevel is the minimum level written to the log (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
	// LogFile optionally mirrors log output into a file next to the plugin.
	LogFile string `yaml:"log_file"`
	// LongPress is the hold threshold used when a button does not set longPressMs.
	LongPress time.Duration `yaml:"long_press"`
	// TickInterval is the period of the timer and stopwatch update loops.
	TickInterval time.Duration `yaml:"tick_interval"`
	// ConnectTimeout bounds how long the plugin retries connecting to the Stream Deck app.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	// MetricsAddress enables the Prometheus endpoint when set (e.g. 127.0.0.1:9464).
	MetricsAddress string `yaml:"metrics_address"`
	// HealthAddress enables the gRPC health endpoint when set (e.g. 127.0.0.1:9465).
	HealthAddress string `yaml:"health_address"`
}

const (
	// DefaultConfigFilename is the default filename for plugin settings.
	DefaultConfigFilename = "counter-settings.yaml"

	// DefaultLogLevel is used when log_level is empty.
	DefaultLogLevel = "info"

	// DefaultLongPress is the hold threshold separating short and long presses.
	DefaultLongPress = 500 * time.Millisecond

	// DefaultTickInterval is the period of the duration update loops.
	DefaultTickInterval = 100 * time.Millisecond

	// DefaultConnectTimeout is how long the initial host connection is retried.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownLogLevel is returned when log_level cannot be parsed.
	errUnknownLogLevel = errors.New("unknown log level")
)

// Default returns a configuration with every field set to its default.
func Default() *Config {
	return &Config{
		LogLevel:       DefaultLogLevel,
		LongPress:      DefaultLongPress,
		TickInterval:   DefaultTickInterval,
		ConnectTimeout: DefaultConnectTimeout,
	}
}

// Load reads configuration from the provided path and validates it.
// A missing file is not an error: the plugin runs on defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings and fills in defaults for unset durations.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, cfg.LogLevel)
	}

	if cfg.LongPress <= 0 {
		cfg.LongPress = DefaultLongPress
	}

	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}

	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}

	for _, addr := range []string{cfg.MetricsAddress, cfg.HealthAddress} {
		if addr == "" {
			continue
		}

		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("invalid listen address %q: %w", addr, err)
		}
	}

	return nil
}
