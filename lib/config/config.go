// Copyright 2026 The Opine Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Opine components.
//
// Configuration is loaded from a single file specified by:
//   - OPINE_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures deterministic,
// auditable configuration with no hidden overrides.
//
// The config file may contain environment-specific sections (development,
// staging, production) that override base values when the environment matches.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for the Opine bot.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Telegram configures the Bot API client.
	Telegram TelegramConfig `yaml:"telegram"`

	// Database configures the SQLite result store.
	Database DatabaseConfig `yaml:"database"`

	// Surveys configures survey definition loading.
	Surveys SurveysConfig `yaml:"surveys"`

	// Sessions configures conversation session handling.
	Sessions SessionsConfig `yaml:"sessions"`

	// Locales configures language handling.
	Locales LocalesConfig `yaml:"locales"`

	// Admins lists the Telegram user IDs allowed to run admin
	// commands and to receive shared results.
	Admins []int64 `yaml:"admins"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Telegram *TelegramConfig `yaml:"telegram,omitempty"`
	Database *DatabaseConfig `yaml:"database,omitempty"`
	Surveys  *SurveysConfig  `yaml:"surveys,omitempty"`
	Sessions *SessionsConfig `yaml:"sessions,omitempty"`
}

// TelegramConfig configures the Bot API client.
type TelegramConfig struct {
	// APIBaseURL is the Bot API endpoint.
	// Default: https://api.telegram.org
	APIBaseURL string `yaml:"api_base_url"`

	// TokenFile is the path to a file containing the bot token.
	// The token is never placed in the config file itself.
	TokenFile string `yaml:"token_file"`

	// PollTimeout is the long-poll timeout for getUpdates.
	// Default: 50s
	PollTimeout time.Duration `yaml:"poll_timeout"`

	// SendRate is the per-chat outbound message rate in messages
	// per second. Default: 1
	SendRate float64 `yaml:"send_rate"`

	// SendBurst is the per-chat outbound burst allowance.
	// Default: 3
	SendBurst int `yaml:"send_burst"`
}

// DatabaseConfig configures the SQLite result store.
type DatabaseConfig struct {
	// Path is the SQLite database file path.
	Path string `yaml:"path"`

	// PoolSize is the number of pooled connections.
	// Default: 4
	PoolSize int `yaml:"pool_size"`
}

// SurveysConfig configures survey definition loading.
type SurveysConfig struct {
	// Dir is the directory containing survey definition files
	// (*.json or *.jsonc, JSONC syntax allowed in both).
	Dir string `yaml:"dir"`
}

// SessionsConfig configures conversation session handling.
type SessionsConfig struct {
	// IdleTTL is how long an inactive conversation is kept before
	// its in-memory state is discarded. Default: 30m
	IdleTTL time.Duration `yaml:"idle_ttl"`
}

// LocalesConfig configures language handling.
type LocalesConfig struct {
	// Default is the locale used before the user has chosen one
	// and when a definition lacks the user's locale.
	// Default: ru
	Default string `yaml:"default"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
// They exist primarily to ensure all fields have sensible zero-values,
// not as a fallback - the config file is required.
func Default() *Config {
	return &Config{
		Environment: Development,
		Telegram: TelegramConfig{
			APIBaseURL:  "https://api.telegram.org",
			PollTimeout: 50 * time.Second,
			SendRate:    1,
			SendBurst:   3,
		},
		Database: DatabaseConfig{
			Path:     "opine.db",
			PoolSize: 4,
		},
		Surveys: SurveysConfig{
			Dir: "surveys",
		},
		Sessions: SessionsConfig{
			IdleTTL: 30 * time.Minute,
		},
		Locales: LocalesConfig{
			Default: "ru",
		},
	}
}

// Load loads configuration from the OPINE_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or defaults - if OPINE_CONFIG is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("OPINE_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("OPINE_CONFIG environment variable not set; " +
			"set it to the path of your opine.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables do not
// override config values - this ensures deterministic, auditable configuration.
// The only expansion performed is ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	// Apply environment-specific overrides (development/staging/production sections in the file).
	cfg.applyEnvironmentOverrides()

	// Expand ${HOME} and similar variables in paths for portability.
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, c)
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if overrides.Telegram != nil {
		if overrides.Telegram.APIBaseURL != "" {
			c.Telegram.APIBaseURL = overrides.Telegram.APIBaseURL
		}
		if overrides.Telegram.TokenFile != "" {
			c.Telegram.TokenFile = overrides.Telegram.TokenFile
		}
		if overrides.Telegram.PollTimeout != 0 {
			c.Telegram.PollTimeout = overrides.Telegram.PollTimeout
		}
		if overrides.Telegram.SendRate != 0 {
			c.Telegram.SendRate = overrides.Telegram.SendRate
		}
		if overrides.Telegram.SendBurst != 0 {
			c.Telegram.SendBurst = overrides.Telegram.SendBurst
		}
	}

	if overrides.Database != nil {
		if overrides.Database.Path != "" {
			c.Database.Path = overrides.Database.Path
		}
		if overrides.Database.PoolSize != 0 {
			c.Database.PoolSize = overrides.Database.PoolSize
		}
	}

	if overrides.Surveys != nil {
		if overrides.Surveys.Dir != "" {
			c.Surveys.Dir = overrides.Surveys.Dir
		}
	}

	if overrides.Sessions != nil {
		if overrides.Sessions.IdleTTL != 0 {
			c.Sessions.IdleTTL = overrides.Sessions.IdleTTL
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Telegram.TokenFile = expandVars(c.Telegram.TokenFile, vars)
	c.Database.Path = expandVars(c.Database.Path, vars)
	c.Surveys.Dir = expandVars(c.Surveys.Dir, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Telegram.APIBaseURL == "" {
		errs = append(errs, fmt.Errorf("telegram.api_base_url is required"))
	}
	if c.Telegram.TokenFile == "" {
		errs = append(errs, fmt.Errorf("telegram.token_file is required"))
	}
	if c.Telegram.PollTimeout <= 0 {
		errs = append(errs, fmt.Errorf("telegram.poll_timeout must be positive"))
	}
	if c.Telegram.SendRate <= 0 {
		errs = append(errs, fmt.Errorf("telegram.send_rate must be positive"))
	}
	if c.Telegram.SendBurst < 1 {
		errs = append(errs, fmt.Errorf("telegram.send_burst must be at least 1"))
	}

	if c.Database.Path == "" {
		errs = append(errs, fmt.Errorf("database.path is required"))
	}
	if c.Database.PoolSize < 1 {
		errs = append(errs, fmt.Errorf("database.pool_size must be at least 1"))
	}

	if c.Surveys.Dir == "" {
		errs = append(errs, fmt.Errorf("surveys.dir is required"))
	}

	if c.Sessions.IdleTTL <= 0 {
		errs = append(errs, fmt.Errorf("sessions.idle_ttl must be positive"))
	}

	if c.Locales.Default == "" {
		errs = append(errs, fmt.Errorf("locales.default is required"))
	}

	if len(c.Admins) == 0 {
		errs = append(errs, fmt.Errorf("admins must list at least one user ID"))
	}
	for _, id := range c.Admins {
		if id <= 0 {
			errs = append(errs, fmt.Errorf("admins entries must be positive user IDs, got %d", id))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// IsAdmin reports whether the given Telegram user ID is configured
// as an administrator.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admins {
		if id == userID {
			return true
		}
	}
	return false
}
