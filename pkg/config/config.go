// SPDX-FileCopyrightText: Copyright 2026 ApexID, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config contains the definition of the application config structure
// and the logic required to load it.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// Token subsystem defaults. A week for long-lived artifacts, a day for
// access tokens. All expiration settings are milliseconds.
const (
	// DefaultTokenSecretSalt is the signing salt used when none is
	// configured. Every real deployment must override it.
	DefaultTokenSecretSalt = "super secret token value"

	// DefaultAccessTokenAgeMillis bounds the age of Access tokens.
	DefaultAccessTokenAgeMillis = int64(24 * time.Hour / time.Millisecond)

	// DefaultTokenAgeMillis bounds the age of Refresh, Email and Offline
	// tokens, and doubles as the default record persistence TTL.
	DefaultTokenAgeMillis = int64(7 * 24 * time.Hour / time.Millisecond)
)

// Config represents the configuration of the application.
type Config struct {
	Auth      Auth      `yaml:"auth"`
	Server    Server    `yaml:"server"`
	Storage   Storage   `yaml:"storage"`
	Telemetry Telemetry `yaml:"telemetry"`
}

// Auth holds the token subsystem settings.
type Auth struct {
	TokenSecretSalt         string    `yaml:"token_secret_salt"`
	TokenExpiresFromLastUse bool      `yaml:"token_expires_from_last_use"`
	TokenRefreshReusesID    bool      `yaml:"token_refresh_reuses_id"`
	Token                   TokenAges `yaml:"token"`
}

// TokenAges groups the per-category maximum token ages and the persistence
// TTL applied to every stored record column.
type TokenAges struct {
	Persistence Expires `yaml:"persistence"`
	Access      Expires `yaml:"access"`
	Refresh     Expires `yaml:"refresh"`
	Email       Expires `yaml:"email"`
	Offline     Expires `yaml:"offline"`
}

// Expires wraps a single expiration setting in milliseconds.
type Expires struct {
	Expires int64 `yaml:"expires"`
}

// Duration returns the setting as a time.Duration.
func (e Expires) Duration() time.Duration {
	return time.Duration(e.Expires) * time.Millisecond
}

// Server contains the settings for the API listener.
type Server struct {
	Address    string `yaml:"address"`
	UnixSocket bool   `yaml:"unix_socket"`
}

// Storage selects and configures the column store backend.
type Storage struct {
	Backend string        `yaml:"backend"`
	Redis   RedisStorage  `yaml:"redis"`
	SQLite  SQLiteStorage `yaml:"sqlite"`
}

// RedisStorage contains the settings for the Redis backend.
type RedisStorage struct {
	Address   string `yaml:"address"`
	Password  string `yaml:"password,omitempty"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// SQLiteStorage contains the settings for the SQLite backend. An empty path
// resolves to the XDG data directory at startup.
type SQLiteStorage struct {
	Path string `yaml:"path"`
}

// Telemetry contains the settings for the metrics endpoint.
type Telemetry struct {
	Metrics bool `yaml:"metrics"`
}

// defaultPathGenerator generates the default config path using xdg
var defaultPathGenerator = func() (string, error) {
	return xdg.ConfigFile("tokend/config.yaml")
}

// getConfigPath is the current path generator, can be replaced in tests
var getConfigPath = defaultPathGenerator

// Default returns a config populated with default values.
func Default() *Config {
	return &Config{
		Auth: Auth{
			TokenSecretSalt:         DefaultTokenSecretSalt,
			TokenExpiresFromLastUse: false,
			TokenRefreshReusesID:    true,
			Token: TokenAges{
				Persistence: Expires{Expires: DefaultTokenAgeMillis},
				Access:      Expires{Expires: DefaultAccessTokenAgeMillis},
				Refresh:     Expires{Expires: DefaultTokenAgeMillis},
				Email:       Expires{Expires: DefaultTokenAgeMillis},
				Offline:     Expires{Expires: DefaultTokenAgeMillis},
			},
		},
		Server: Server{
			Address: "127.0.0.1:8740",
		},
		Storage: Storage{
			Backend: "memory",
			Redis: RedisStorage{
				Address:   "127.0.0.1:6379",
				KeyPrefix: "tokend",
			},
		},
		Telemetry: Telemetry{
			Metrics: true,
		},
	}
}

// Load reads the configuration file at path, or the default XDG location
// when path is empty. A missing file yields the defaults. Values from the
// file are merged over the defaults, then environment overrides and the
// non-positive-expiration fallback are applied.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = getConfigPath()
		if err != nil {
			return nil, fmt.Errorf("unable to fetch config path: %w", err)
		}
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// No file is fine; run on defaults.
	case err != nil:
		return nil, fmt.Errorf("error reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	cfg.applyEnvOverrides(os.Getenv)
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets deployment environments inject values that do not
// belong in a config file, most importantly the signing salt.
func (c *Config) applyEnvOverrides(getenv func(string) string) {
	if v := getenv("TOKEND_TOKEN_SECRET_SALT"); v != "" {
		c.Auth.TokenSecretSalt = v
	}
	if v := getenv("TOKEND_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := getenv("TOKEND_REDIS_ADDRESS"); v != "" {
		c.Storage.Redis.Address = v
	}
	if v := getenv("TOKEND_REDIS_PASSWORD"); v != "" {
		c.Storage.Redis.Password = v
	}
}

// normalize applies the documented fallback: a non-positive value in any
// expiration setting is ignored in favor of its default.
func (c *Config) normalize() {
	def := Default()
	fix := func(v *Expires, d Expires) {
		if v.Expires <= 0 {
			*v = d
		}
	}
	fix(&c.Auth.Token.Persistence, def.Auth.Token.Persistence)
	fix(&c.Auth.Token.Access, def.Auth.Token.Access)
	fix(&c.Auth.Token.Refresh, def.Auth.Token.Refresh)
	fix(&c.Auth.Token.Email, def.Auth.Token.Email)
	fix(&c.Auth.Token.Offline, def.Auth.Token.Offline)

	if c.Auth.TokenSecretSalt == "" {
		c.Auth.TokenSecretSalt = DefaultTokenSecretSalt
	}
	if c.Storage.Redis.KeyPrefix == "" {
		c.Storage.Redis.KeyPrefix = def.Storage.Redis.KeyPrefix
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "memory", "redis", "sqlite":
	default:
		return fmt.Errorf("unknown storage backend %q (valid backends: memory, redis, sqlite)", c.Storage.Backend)
	}
	if c.Server.Address == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.Storage.Backend == "redis" && c.Storage.Redis.Address == "" {
		return fmt.Errorf("redis backend requires an address")
	}
	return nil
}
