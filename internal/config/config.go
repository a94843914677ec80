// Package config loads the server's YAML configuration and carries build
// metadata injected at link time.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Build metadata, set via -ldflags at release time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Config is the process-wide server configuration, loaded once at startup
// and read-only for the process lifetime.
type Config struct {
	ServerAddr string `yaml:"server_address"`
	Port       string `yaml:"port"`
	RedisAddr  string `yaml:"redis_address"`

	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig holds the immutable credential material of the auth subsystem:
// the bearer signing secret and the provisioned administrator credential.
type AuthConfig struct {
	// BearerSecret signs bearer identity tokens (HS256).
	BearerSecret string `yaml:"bearer_secret"`
	// BearerTTL bounds the lifetime of issued bearer tokens.
	BearerTTL time.Duration `yaml:"bearer_ttl"`

	// AdminUsername and AdminSecretHash are the out-of-band-provisioned
	// administrator credential. The hash is hex SHA-256 of the secret, so
	// the plaintext never lives in config or process logic.
	AdminUsername   string `yaml:"admin_username"`
	AdminSecretHash string `yaml:"admin_secret_hash"`

	// ElevatedMaxAge bounds the age of the timestamp carried in elevated
	// tokens. Zero disables the check and accepts any timestamp.
	ElevatedMaxAge time.Duration `yaml:"elevated_max_age"`
}

// Load reads and validates the YAML config at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port == "" {
		return errors.New("missing port")
	}
	if c.RedisAddr == "" {
		return errors.New("missing redis_address")
	}
	if c.Auth.BearerSecret == "" {
		return errors.New("missing auth.bearer_secret")
	}
	if c.Auth.BearerTTL <= 0 {
		return errors.New("auth.bearer_ttl must be positive")
	}
	if c.Auth.AdminUsername == "" || c.Auth.AdminSecretHash == "" {
		return errors.New("missing provisioned admin credential")
	}
	return nil
}
