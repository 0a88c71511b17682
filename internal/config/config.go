// Package config loads client settings from defaults, an optional YAML or TOML
// file, and TB_* environment variables, in increasing precedence.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config is the resolved client configuration.
type Config struct {
	APIBaseURL     string        `mapstructure:"api_base_url"`
	WSURL          string        `mapstructure:"ws_url"`
	DemoMode       bool          `mapstructure:"demo_mode"`
	FeatureFlags   []string      `mapstructure:"feature_flags"`
	Origin         string        `mapstructure:"origin"`
	DefaultAPIPort int           `mapstructure:"default_api_port"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`

	Realtime RealtimeConfig `mapstructure:"realtime"`
	Session  SessionConfig  `mapstructure:"session"`
	Demo     DemoConfig     `mapstructure:"demo"`
	Log      LogConfig      `mapstructure:"log"`
}

// RealtimeConfig configures the presence channel.
type RealtimeConfig struct {
	Endpoint   string        `mapstructure:"endpoint"`
	MinDelay   time.Duration `mapstructure:"min_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
	GrowFactor float64       `mapstructure:"grow_factor"`
}

// SessionConfig locates the token/user cache.
type SessionConfig struct {
	Path string `mapstructure:"path"`
}

// DemoConfig configures the demo dataset.
type DemoConfig struct {
	SeedFile string `mapstructure:"seed_file"`
	RedisURL string `mapstructure:"redis_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level     string `mapstructure:"level"`
	File      string `mapstructure:"file"`
	MaxSizeMB int    `mapstructure:"max_size_mb"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		Origin:         "http://localhost:3000",
		DefaultAPIPort: 3001,
		PollInterval:   15 * time.Second,
		Realtime: RealtimeConfig{
			Endpoint:   "/ws",
			MinDelay:   500 * time.Millisecond,
			MaxDelay:   5 * time.Second,
			GrowFactor: 1.5,
		},
		Session: SessionConfig{Path: DefaultSessionPath()},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
	}
}

// DefaultSessionPath is the session cache under the user config directory.
func DefaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".taskboards", "session.db")
	}
	return filepath.Join(dir, "taskboards", "session.db")
}

// HasFlag reports whether a feature flag is enabled.
func (c *Config) HasFlag(name string) bool {
	for _, f := range c.FeatureFlags {
		if strings.EqualFold(f, name) {
			return true
		}
	}
	return false
}

// APIBase returns the configured API base, or the origin with its port
// replaced by DefaultAPIPort.
func (c *Config) APIBase() (string, error) {
	if c.APIBaseURL != "" {
		return strings.TrimRight(c.APIBaseURL, "/"), nil
	}
	u, err := url.Parse(c.Origin)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("cannot derive API base from origin %q", c.Origin)
	}
	return fmt.Sprintf("%s://%s", u.Scheme, net.JoinHostPort(u.Hostname(), strconv.Itoa(c.DefaultAPIPort))), nil
}

// WSBase returns the configured WebSocket base, or the API base with its
// scheme switched to ws or wss.
func (c *Config) WSBase() (string, error) {
	if c.WSURL != "" {
		return strings.TrimRight(c.WSURL, "/"), nil
	}
	base, err := c.APIBase()
	if err != nil {
		return "", err
	}
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://"), nil
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://"), nil
	}
	return base, nil
}

// APIBaseConfigured reports whether the API base was set explicitly.
func (c *Config) APIBaseConfigured() bool {
	return c.APIBaseURL != ""
}

// Validate checks values that would otherwise fail later in odd ways.
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.DefaultAPIPort <= 0 || c.DefaultAPIPort > 65535 {
		return fmt.Errorf("default_api_port %d out of range", c.DefaultAPIPort)
	}
	if c.Realtime.MinDelay <= 0 || c.Realtime.MaxDelay < c.Realtime.MinDelay {
		return fmt.Errorf("realtime delays must satisfy 0 < min_delay <= max_delay")
	}
	if c.Realtime.GrowFactor < 1 {
		return fmt.Errorf("realtime.grow_factor must be at least 1")
	}
	if _, err := c.APIBase(); err != nil {
		return err
	}
	return nil
}

func parseFlags(raw any) []string {
	var parts []string
	switch v := raw.(type) {
	case string:
		parts = strings.Split(v, ",")
	case []string:
		parts = v
	case []any:
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
	}
	var flags []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			flags = append(flags, p)
		}
	}
	return flags
}
