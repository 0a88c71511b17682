package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. TB_API_BASE_URL or
// TB_REALTIME_MIN_DELAY.
const EnvPrefix = "TB"

// Loader reads configuration and optionally follows changes to the file.
type Loader struct {
	v  *viper.Viper
	mu sync.Mutex
}

// NewLoader prepares a loader. path may be empty, in which case
// taskboards.{yaml,toml} is looked up in the working directory and then in
// the user config directory; a missing file is not an error.
func NewLoader(path string) *Loader {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("taskboards")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "taskboards"))
		}
	}
	return &Loader{v: v}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("api_base_url", "")
	v.SetDefault("ws_url", "")
	v.SetDefault("demo_mode", false)
	v.SetDefault("feature_flags", "")
	v.SetDefault("origin", d.Origin)
	v.SetDefault("default_api_port", d.DefaultAPIPort)
	v.SetDefault("poll_interval", d.PollInterval)
	v.SetDefault("realtime.endpoint", d.Realtime.Endpoint)
	v.SetDefault("realtime.min_delay", d.Realtime.MinDelay)
	v.SetDefault("realtime.max_delay", d.Realtime.MaxDelay)
	v.SetDefault("realtime.grow_factor", d.Realtime.GrowFactor)
	v.SetDefault("session.path", d.Session.Path)
	v.SetDefault("demo.seed_file", "")
	v.SetDefault("demo.redis_url", "")
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
}

// Load reads the file (if any) and the environment.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	cfg := DefaultConfig()
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.FeatureFlags = parseFlags(l.v.Get("feature_flags"))
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// File returns the config file in use, or "".
func (l *Loader) File() string {
	return l.v.ConfigFileUsed()
}

// Watch calls onChange with the new configuration every time the file
// changes. Invalid edits are reported through onError and otherwise ignored.
// Without a config file Watch does nothing.
func (l *Loader) Watch(onChange func(*Config), onError func(error)) {
	if l.v.ConfigFileUsed() == "" {
		return
	}
	l.v.OnConfigChange(func(fsnotify.Event) {
		l.mu.Lock()
		cfg, err := l.decode()
		l.mu.Unlock()
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	l.v.WatchConfig()
}
