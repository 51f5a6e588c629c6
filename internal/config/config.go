// Package config loads guieduc settings from defaults, an optional config
// file, a .env file and GUIEDUC_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable: remote.url is
// GUIEDUC_REMOTE_URL.
const EnvPrefix = "GUIEDUC"

// Config is the full settings tree.
type Config struct {
	Namespace NamespaceConfig `mapstructure:"namespace"`
	Remote    RemoteConfig    `mapstructure:"remote"`
	Server    ServerConfig    `mapstructure:"server"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Assets    AssetsConfig    `mapstructure:"assets"`
	Daemon    DaemonConfig    `mapstructure:"daemon"`
	Log       LogConfig       `mapstructure:"log"`
}

// NamespaceConfig locates the local key/value store.
type NamespaceConfig struct {
	Path     string `mapstructure:"path"`
	MaxBytes int64  `mapstructure:"max_bytes"`
}

// RemoteConfig points the sync client at the event store. An empty URL
// keeps the device offline. Timeout 0 means requests never time out.
type RemoteConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ServerConfig configures `guieduc serve`.
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// FeedConfig configures the live feed. Port 0 disables it.
type FeedConfig struct {
	Port int `mapstructure:"port"`
}

// AssetsConfig locates the asset cache.
type AssetsConfig struct {
	Dir string `mapstructure:"dir"`
}

// DaemonConfig configures `guieduc daemon`.
type DaemonConfig struct {
	CheckInterval time.Duration `mapstructure:"check_interval"`
	Watch         bool          `mapstructure:"watch"`
}

// LogConfig configures the rotating log file.
type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// DataDir is where guieduc keeps its files unless configured otherwise.
func DataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "guieduc")
	}
	return ".guieduc"
}

func setDefaults(v *viper.Viper) {
	dir := DataDir()

	v.SetDefault("namespace.path", filepath.Join(dir, "namespace.db"))
	v.SetDefault("namespace.max_bytes", 5<<20)
	v.SetDefault("remote.url", "")
	v.SetDefault("remote.timeout", time.Duration(0))
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.driver", "sqlite")
	v.SetDefault("server.dsn", filepath.Join(dir, "remote.db"))
	v.SetDefault("feed.port", 8081)
	v.SetDefault("assets.dir", filepath.Join(dir, "assets"))
	v.SetDefault("daemon.check_interval", 30*time.Second)
	v.SetDefault("daemon.watch", true)
	v.SetDefault("log.file", filepath.Join(dir, "guieduc.log"))
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
}

// Default returns the built-in settings.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

// Options controls where Load looks.
type Options struct {
	// File is an explicit config file. When empty, guieduc.{yaml,yml,toml}
	// is searched in the working directory and DataDir.
	File string

	// DotEnv is the .env file to load; missing files are ignored.
	DotEnv string
}

// Load resolves the settings.
func Load(opts Options) (*Config, error) {
	if opts.DotEnv == "" {
		opts.DotEnv = ".env"
	}
	if err := godotenv.Load(opts.DotEnv); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", opts.DotEnv, err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName("guieduc")
		v.AddConfigPath(".")
		v.AddConfigPath(DataDir())
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values viper cannot type-check.
func (c *Config) Validate() error {
	switch c.Server.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("server.driver must be sqlite or postgres, got %q", c.Server.Driver)
	}
	if c.Namespace.Path == "" {
		return fmt.Errorf("namespace.path is required")
	}
	if c.Remote.URL != "" && !strings.HasPrefix(c.Remote.URL, "http://") && !strings.HasPrefix(c.Remote.URL, "https://") {
		return fmt.Errorf("remote.url must be an http(s) URL, got %q", c.Remote.URL)
	}
	if c.Feed.Port < 0 || c.Feed.Port > 65535 {
		return fmt.Errorf("feed.port out of range: %d", c.Feed.Port)
	}
	return nil
}
