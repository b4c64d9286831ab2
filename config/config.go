// Package config loads the bridge configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var v = validator.New()

// Config holds the bridge configuration.
type Config struct {
	// Listen is the address the HTTP and WebSocket server binds to.
	Listen string `yaml:"listen"`

	// CallbackURL is the absolute root URL the hub reaches this process
	// under. The /callback/{id} path is appended to it.
	CallbackURL string `yaml:"callback_url" validate:"required,url"`

	// LeaseSeconds is the default lease duration requested from the hub.
	LeaseSeconds int `yaml:"lease_seconds" validate:"min=60"`

	// LeaseSkewSeconds is subtracted from a verified lease when
	// scheduling its renewal, so renewal lands before expiry.
	LeaseSkewSeconds int `yaml:"lease_skew_seconds" validate:"min=1"`

	// WebsocketOrigins is the allow-list of WebSocket origin hostnames.
	WebsocketOrigins []string `yaml:"websocket_origins"`

	// LogLevel is one of DEBUG, INFO, WARN, ERROR.
	LogLevel string `yaml:"log_level"`
}

// Load reads and parses configuration from a file, applies defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)

	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	cfg := &Config{}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", path, err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %q: %w", path, err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Listen == "" {
		cfg.Listen = ":3000"
	}

	if cfg.LeaseSeconds == 0 {
		cfg.LeaseSeconds = 300
	}

	if cfg.LeaseSkewSeconds == 0 {
		cfg.LeaseSkewSeconds = 10
	}

	if len(cfg.WebsocketOrigins) == 0 {
		cfg.WebsocketOrigins = []string{"localhost"}
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "INFO"
	}

	// One normalization convention: no trailing slash, the callback path
	// segment is always inserted when building hub.callback.
	cfg.CallbackURL = strings.TrimRight(cfg.CallbackURL, "/")
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if err := v.Struct(c); err != nil {
		return err
	}

	if c.LeaseSkewSeconds >= c.LeaseSeconds {
		return fmt.Errorf("lease_skew_seconds (%d) must be smaller than lease_seconds (%d)",
			c.LeaseSkewSeconds, c.LeaseSeconds)
	}

	return nil
}
