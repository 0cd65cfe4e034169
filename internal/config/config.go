// Package config loads the YAML configuration consumed by cmd/bolt-server: listen address,
// supported protocol versions, logging, admission control, and auth mode.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration document.
type Config struct {
	ListenAddr        string   `yaml:"listen_addr"`
	SupportedVersions []uint32 `yaml:"supported_versions"`
	LogLevel          string   `yaml:"log_level"`
	Admission         Admission `yaml:"admission"`
	Auth              Auth      `yaml:"auth"`
}

// Admission configures the token-bucket rate limiter guarding the accept loop.
type Admission struct {
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
}

// Auth selects how INIT's auth token is checked.
type Auth struct {
	Mode        string `yaml:"mode"` // "accept_all" or "static_token"
	Principal   string `yaml:"principal"`
	Credentials string `yaml:"credentials"`
}

const (
	AuthModeAcceptAll   = "accept_all"
	AuthModeStaticToken = "static_token"
)

// applyDefaults fills zero values with the built-in defaults, mirroring the teacher's
// Config.applyDefaults convention.
func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":7687"
	}
	if len(c.SupportedVersions) == 0 {
		c.SupportedVersions = []uint32{1}
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Admission.RatePerSecond == 0 {
		c.Admission.RatePerSecond = 100
	}
	if c.Admission.Burst == 0 {
		c.Admission.Burst = 50
	}
	if c.Auth.Mode == "" {
		c.Auth.Mode = AuthModeAcceptAll
	}
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Auth.Mode) {
	case AuthModeAcceptAll:
	case AuthModeStaticToken:
		if c.Auth.Principal == "" || c.Auth.Credentials == "" {
			return fmt.Errorf("auth.principal and auth.credentials are required for static_token mode")
		}
	default:
		return fmt.Errorf("auth.mode must be %q or %q, got %q", AuthModeAcceptAll, AuthModeStaticToken, c.Auth.Mode)
	}
	if c.Admission.RatePerSecond < 0 {
		return fmt.Errorf("admission.rate_per_second must be >= 0, got %v", c.Admission.RatePerSecond)
	}
	if c.Admission.Burst < 0 {
		return fmt.Errorf("admission.burst must be >= 0, got %d", c.Admission.Burst)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return nil
}

// Default returns a Config populated entirely with built-in defaults, used when no config
// file is supplied.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads and validates the YAML configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}
