package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// tree renders cfg as nested maps keyed like the viper settings, with
// durations as strings so both encoders write "30s" rather than nanoseconds.
func (c *Config) tree() map[string]any {
	return map[string]any{
		"namespace": map[string]any{
			"path":      c.Namespace.Path,
			"max_bytes": c.Namespace.MaxBytes,
		},
		"remote": map[string]any{
			"url":     c.Remote.URL,
			"timeout": c.Remote.Timeout.String(),
		},
		"server": map[string]any{
			"listen": c.Server.Listen,
			"driver": c.Server.Driver,
			"dsn":    c.Server.DSN,
		},
		"feed": map[string]any{
			"port": c.Feed.Port,
		},
		"assets": map[string]any{
			"dir": c.Assets.Dir,
		},
		"daemon": map[string]any{
			"check_interval": c.Daemon.CheckInterval.String(),
			"watch":          c.Daemon.Watch,
		},
		"log": map[string]any{
			"file":         c.Log.File,
			"max_size_mb":  c.Log.MaxSizeMB,
			"max_backups":  c.Log.MaxBackups,
			"max_age_days": c.Log.MaxAgeDays,
		},
	}
}

// Marshal encodes cfg in the format named by ext (.yaml, .yml or .toml).
func (c *Config) Marshal(ext string) ([]byte, error) {
	var buf bytes.Buffer
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(c.tree()); err != nil {
			return nil, fmt.Errorf("failed to encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to encode yaml: %w", err)
		}
	case ".toml":
		if err := toml.NewEncoder(&buf).Encode(c.tree()); err != nil {
			return nil, fmt.Errorf("failed to encode toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q (use .yaml, .yml or .toml)", ext)
	}
	return buf.Bytes(), nil
}

// WriteTemplate writes cfg to path, choosing the format from the
// extension. An existing file is left alone unless force is set.
func WriteTemplate(path string, cfg *Config, force bool) error {
	data, err := cfg.Marshal(filepath.Ext(path))
	if err != nil {
		return err
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
