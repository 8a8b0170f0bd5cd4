// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

// Package config defines the A2E API server configuration. Values come
// from struct defaults, an optional YAML file, A2E__ environment variables,
// and CLI flags, in increasing priority.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/a2e-project/a2e/internal/agentauth"
	"github.com/a2e-project/a2e/internal/audit"
	"github.com/a2e-project/a2e/internal/cache"
	"github.com/a2e-project/a2e/internal/config"
	"github.com/a2e-project/a2e/internal/logging"
	"github.com/a2e-project/a2e/internal/ratelimit"
	"github.com/a2e-project/a2e/internal/registry"
	"github.com/a2e-project/a2e/internal/retry"
	"github.com/a2e-project/a2e/internal/search"
	"github.com/a2e-project/a2e/internal/workflow/engine"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port         int           `koanf:"port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"`
}

// VaultConfig locates the credential vault and its master key.
type VaultConfig struct {
	Path string `koanf:"path"`
	// MasterKeyEnv names the environment variable carrying the master
	// key; the key itself never appears in config files.
	MasterKeyEnv string `koanf:"master_key_env"`
}

// StoreConfig selects the StoreData backend.
type StoreConfig struct {
	// SQLitePath enables the persistent backend; empty keeps values in
	// memory for the process lifetime.
	SQLitePath string `koanf:"sqlite_path"`
}

// Config is the full A2E API server configuration.
type Config struct {
	Server    ServerConfig            `koanf:"server"`
	Logging   logging.Config          `koanf:"logging"`
	Vault     VaultConfig             `koanf:"vault"`
	Auth      agentauth.Config        `koanf:"auth"`
	RateLimit ratelimit.Config        `koanf:"rate_limit"`
	Cache     cache.Config            `koanf:"cache"`
	Audit     audit.Config            `koanf:"audit"`
	Registry  registry.Config         `koanf:"registry"`
	Retry     retry.Config            `koanf:"retry"`
	Engine    engine.Limits           `koanf:"engine"`
	Search    search.OpenSearchConfig `koanf:"search"`
	Store     StoreConfig             `koanf:"store"`
}

// Defaults returns the full default configuration.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Logging: logging.Defaults(),
		Vault: VaultConfig{
			Path:         "data/vault.json",
			MasterKeyEnv: "A2E_VAULT_MASTER_KEY",
		},
		Auth:      agentauth.Defaults(),
		RateLimit: ratelimit.DefaultConfig(),
		Cache:     cache.DefaultConfig(),
		Audit:     audit.Defaults(),
		Registry:  registry.Defaults(),
		Retry:     retry.Defaults(),
		Engine:    engine.DefaultLimits(),
		Search:    search.DefaultOpenSearchConfig(),
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Engine.MaxOperations < 1 {
		return fmt.Errorf("engine.max_operations must be positive, got %d", c.Engine.MaxOperations)
	}
	if c.Engine.MaxExecutionTime <= 0 {
		return fmt.Errorf("engine.max_execution_time must be positive")
	}
	return nil
}

// FlagMappings maps CLI flag names to configuration keys.
func FlagMappings() map[string]string {
	return map[string]string{
		"port":      "server.port",
		"log-level": "logging.level",
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// configPath, A2E__ environment variables, and explicitly set flags.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	loader := config.NewLoader("A2E")
	if err := loader.LoadWithDefaults(Defaults(), configPath); err != nil {
		return nil, err
	}
	if flags != nil {
		if err := loader.LoadFlags(flags, FlagMappings()); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := loader.UnmarshalAndValidate("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
