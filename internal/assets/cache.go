// Package assets is the on-disk cache of downloaded assets (report
// templates, exported files, fetched remote snapshots). The version guard
// clears it whenever the application version changes.
package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

const manifestName = "manifest.json"

// Manifest records which application version filled the cache.
type Manifest struct {
	Version     string    `json:"version"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// DirCache is a cache rooted at one directory.
type DirCache struct {
	dir    string
	logger *log.Logger
}

// NewDirCache creates a cache in dir. The directory is created on first
// write. If logger is nil, a default logger writing to stderr is used.
func NewDirCache(dir string, logger *log.Logger) *DirCache {
	if logger == nil {
		logger = log.New(os.Stderr, "[assets] ", log.LstdFlags)
	}
	return &DirCache{dir: dir, logger: logger}
}

// Dir returns the cache root.
func (c *DirCache) Dir() string {
	return c.dir
}

// Put stores data under name.
func (c *DirCache) Put(name string, data []byte) error {
	path, err := c.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache entry %s: %w", name, err)
	}
	return nil
}

// Get returns the entry stored under name. ok is false when it is absent.
func (c *DirCache) Get(name string) ([]byte, bool, error) {
	path, err := c.path(name)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry %s: %w", name, err)
	}
	return data, true, nil
}

// Clear removes every entry, the manifest included.
func (c *DirCache) Clear(ctx context.Context) error {
	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := os.RemoveAll(filepath.Join(c.dir, entry.Name())); err != nil {
			return fmt.Errorf("failed to remove %s: %w", entry.Name(), err)
		}
		removed++
	}
	c.logger.Printf("Cleared %d cached asset(s) from %s", removed, c.dir)
	return nil
}

// Refresh stamps the cache as belonging to version.
func (c *DirCache) Refresh(ctx context.Context, version string) error {
	data, err := json.MarshalIndent(Manifest{Version: version, RefreshedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return c.Put(manifestName, data)
}

// Version returns the version the cache was last refreshed for, or "" when
// it never was.
func (c *DirCache) Version() (string, error) {
	data, ok, err := c.Get(manifestName)
	if err != nil || !ok {
		return "", err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return "", fmt.Errorf("failed to decode manifest: %w", err)
	}
	return m.Version, nil
}

func (c *DirCache) path(name string) (string, error) {
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("invalid cache entry name %q", name)
	}
	return filepath.Join(c.dir, name), nil
}
