// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the client's configuration.
//
// Configuration comes from one YAML file named by the DRAGON_CONFIG
// environment variable or the --config flag. Without either the
// built-in defaults apply, so a fresh install runs without a file.
//
// The file may contain development, staging and production sections
// that override base values when the environment matches.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "DRAGON_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Duration is a time.Duration that reads from YAML as "15s", "2m".
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var text string
	if err := node.Decode(&text); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration in Go syntax.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config is the client configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	// Servers holds the default endpoints offered on the login screen.
	// Values stored in the settings file after a login take precedence.
	Servers ServersConfig `yaml:"servers"`

	Session SessionConfig `yaml:"session"`

	Paths PathsConfig `yaml:"paths"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Servers  *ServersConfig `yaml:"servers,omitempty"`
	Session  *SessionConfig `yaml:"session,omitempty"`
	LogLevel string         `yaml:"log_level,omitempty"`
}

// ServersConfig names the three services the client talks to.
type ServersConfig struct {
	Homeserver   string `yaml:"homeserver_url"`
	Media        string `yaml:"media_url"`
	TokenService string `yaml:"token_service_url"`
}

// SessionConfig tunes the reconciliation engine.
type SessionConfig struct {
	// EchoTimeout bounds the wait for a sent message's echo.
	EchoTimeout Duration `yaml:"echo_timeout"`

	// ConnectTimeout bounds token request plus media connect.
	ConnectTimeout Duration `yaml:"connect_timeout"`

	// TimelineRetention is the per-room message bound.
	TimelineRetention int `yaml:"timeline_retention"`

	// VoicePrefix marks a room name as a voice channel.
	VoicePrefix string `yaml:"voice_prefix"`
}

// PathsConfig configures on-disk locations.
type PathsConfig struct {
	// State holds settings.json and the sealing key.
	State string `yaml:"state"`

	// Log is the TUI's log file.
	Log string `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	stateDir := filepath.Join("${XDG_CONFIG_HOME:-${HOME}/.config}", "dragon")
	return &Config{
		Environment: Development,
		Servers: ServersConfig{
			Homeserver:   "https://matrix.y7xyz.com",
			Media:        "wss://livekit.y7xyz.com",
			TokenService: "https://livekit.y7xyz.com",
		},
		Session: SessionConfig{
			EchoTimeout:       Duration(15 * time.Second),
			ConnectTimeout:    Duration(20 * time.Second),
			TimelineRetention: 50,
			VoicePrefix:       "🔊",
		},
		Paths: PathsConfig{
			State: stateDir,
			Log:   filepath.Join(stateDir, "dragon.log"),
		},
		LogLevel: "info",
	}
}

// Load reads the file named by DRAGON_CONFIG, or returns the defaults
// (with variables expanded) when it is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		cfg := Default()
		cfg.applyEnvironmentOverrides()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(path)
}

// LoadFile reads configuration from path on top of the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		if overrides == nil {
			overrides = &ConfigOverrides{LogLevel: "warn"}
		}
	}
	if overrides == nil {
		return
	}

	if overrides.Servers != nil {
		if overrides.Servers.Homeserver != "" {
			c.Servers.Homeserver = overrides.Servers.Homeserver
		}
		if overrides.Servers.Media != "" {
			c.Servers.Media = overrides.Servers.Media
		}
		if overrides.Servers.TokenService != "" {
			c.Servers.TokenService = overrides.Servers.TokenService
		}
	}
	if overrides.Session != nil {
		if overrides.Session.EchoTimeout != 0 {
			c.Session.EchoTimeout = overrides.Session.EchoTimeout
		}
		if overrides.Session.ConnectTimeout != 0 {
			c.Session.ConnectTimeout = overrides.Session.ConnectTimeout
		}
		if overrides.Session.TimelineRetention != 0 {
			c.Session.TimelineRetention = overrides.Session.TimelineRetention
		}
		if overrides.Session.VoicePrefix != "" {
			c.Session.VoicePrefix = overrides.Session.VoicePrefix
		}
	}
	if overrides.LogLevel != "" {
		c.LogLevel = overrides.LogLevel
	}
}

func (c *Config) expandVariables() {
	// Expand twice so a default may itself reference a variable, as in
	// ${XDG_CONFIG_HOME:-${HOME}/.config}.
	for range 2 {
		c.Paths.State = expandVars(c.Paths.State)
		c.Paths.Log = expandVars(c.Paths.Log)
		c.Servers.Homeserver = expandVars(c.Servers.Homeserver)
		c.Servers.Media = expandVars(c.Servers.Media)
		c.Servers.TokenService = expandVars(c.Servers.TokenService)
	}
}

// varPattern matches ${VAR} and ${VAR:-default}. The default may hold
// one nested ${...}.
var varPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^{}]|\$\{[^}]*\})*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Environment {
	case Development, Staging, Production:
	default:
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	for name, raw := range map[string]string{
		"servers.homeserver_url":    c.Servers.Homeserver,
		"servers.media_url":         c.Servers.Media,
		"servers.token_service_url": c.Servers.TokenService,
	} {
		if err := validateURL(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if c.Session.EchoTimeout <= 0 {
		errs = append(errs, fmt.Errorf("session.echo_timeout must be positive"))
	}
	if c.Session.ConnectTimeout <= 0 {
		errs = append(errs, fmt.Errorf("session.connect_timeout must be positive"))
	}
	if c.Session.TimelineRetention < 1 {
		errs = append(errs, fmt.Errorf("session.timeline_retention must be at least 1"))
	}
	if strings.TrimSpace(c.Session.VoicePrefix) == "" {
		errs = append(errs, fmt.Errorf("session.voice_prefix is required"))
	}
	if c.Paths.State == "" {
		errs = append(errs, fmt.Errorf("paths.state is required"))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// SlogLevel converts LogLevel to a slog.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// SettingsPath is the settings file inside the state directory.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.Paths.State, "settings.json")
}

// KeyPath is the age identity that seals the stored access token.
func (c *Config) KeyPath() string {
	return filepath.Join(c.Paths.State, "key.age")
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	switch parsed.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
