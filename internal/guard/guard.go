// Package guard reconciles the version markers stored in the namespace with
// the running build.
//
// Two independent checks run on every start:
//
//   - App version changed: cached assets are cleared and refreshed, and the
//     new version is recorded. User data is untouched, so ordinary releases
//     are cheap.
//   - Data schema changed: every application key is copied into one backup
//     record, then deleted, and the new schema is recorded. This is the
//     deliberate, destructive path for incompatible data shapes.
//
// When either check fires, Result.Reload asks the caller to reopen whatever
// it built on top of the namespace before going on.
package guard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/guieduc/guieduc/internal/kv"
	"github.com/guieduc/guieduc/internal/schema"
)

// SchemaVersion is the shape of the data this build reads and writes.
// Bumping it wipes local data on the next start (after a backup).
const SchemaVersion = "2"

// AppVersion is the build version, set with
// -ldflags "-X github.com/guieduc/guieduc/internal/guard.AppVersion=1.4.0".
var AppVersion = "0.9.0"

// AssetCache is the cache invalidated on version changes.
type AssetCache interface {
	Clear(ctx context.Context) error
	Refresh(ctx context.Context, version string) error
}

// Config configures a Guard.
type Config struct {
	Version string // defaults to AppVersion
	Schema  string // defaults to SchemaVersion
	Assets  AssetCache
	Now     func() schema.Millis
	Logger  *log.Logger
}

// Result reports what Run did.
type Result struct {
	VersionChanged  bool
	PreviousVersion string
	SchemaChanged   bool
	PreviousSchema  string
	BackedUp        int // keys copied into the backup record
	Reload          bool
}

// Guard runs the version checks against a namespace.
type Guard struct {
	ns     kv.Namespace
	cfg    Config
	logger *log.Logger
}

// New creates a Guard. A nil cfg uses the build constants and no asset cache.
func New(ns kv.Namespace, cfg *Config) *Guard {
	c := Config{}
	if cfg != nil {
		c = *cfg
	}
	if c.Version == "" {
		c.Version = AppVersion
	}
	if c.Schema == "" {
		c.Schema = SchemaVersion
	}
	if c.Now == nil {
		c.Now = schema.Now
	}
	if c.Logger == nil {
		c.Logger = log.New(os.Stderr, "[guard] ", log.LstdFlags)
	}
	return &Guard{ns: ns, cfg: c, logger: c.Logger}
}

// Run performs both checks. Asset cache failures are logged and do not stop
// the run; namespace failures are returned.
func (g *Guard) Run(ctx context.Context) (Result, error) {
	var res Result

	storedVersion, err := g.marker(ctx, schema.VersionKey)
	if err != nil {
		return res, err
	}
	storedSchema, err := g.marker(ctx, schema.SchemaKey)
	if err != nil {
		return res, err
	}

	if storedVersion != g.cfg.Version {
		res.VersionChanged = true
		res.PreviousVersion = storedVersion
		g.logger.Printf("App version %s -> %s (%s)", display(storedVersion), g.cfg.Version,
			describeChange(storedVersion, g.cfg.Version))
		g.refreshAssets(ctx)
		if err := g.ns.Set(ctx, schema.VersionKey, g.cfg.Version); err != nil {
			return res, fmt.Errorf("failed to record app version: %w", err)
		}
	}

	if storedSchema != g.cfg.Schema {
		res.SchemaChanged = true
		res.PreviousSchema = storedSchema
		n, err := g.wipe(ctx, storedSchema)
		if err != nil {
			return res, err
		}
		res.BackedUp = n
		if err := g.ns.Set(ctx, schema.SchemaKey, g.cfg.Schema); err != nil {
			return res, fmt.Errorf("failed to record schema version: %w", err)
		}
		g.logger.Printf("Data schema %s -> %s: backed up and removed %d key(s)",
			display(storedSchema), g.cfg.Schema, n)
	}

	res.Reload = res.VersionChanged || res.SchemaChanged
	return res, nil
}

func (g *Guard) refreshAssets(ctx context.Context) {
	if g.cfg.Assets == nil {
		return
	}
	if err := g.cfg.Assets.Clear(ctx); err != nil {
		g.logger.Printf("WARNING: failed to clear asset cache: %v", err)
	}
	if err := g.cfg.Assets.Refresh(ctx, g.cfg.Version); err != nil {
		g.logger.Printf("WARNING: failed to refresh asset cache: %v", err)
	}
}

// wipe snapshots and deletes every application key. Nothing is deleted
// unless the backup was written.
func (g *Guard) wipe(ctx context.Context, fromSchema string) (int, error) {
	keys, err := g.ns.Keys(ctx, schema.KeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list application keys: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	backup := Backup{
		CreatedAt:  g.cfg.Now(),
		FromSchema: fromSchema,
		ToSchema:   g.cfg.Schema,
		Data:       make(map[string]string, len(keys)),
	}
	for _, k := range keys {
		e, ok, err := g.ns.Get(ctx, k)
		if err != nil {
			return 0, fmt.Errorf("failed to read %s: %w", k, err)
		}
		if ok {
			backup.Data[k] = e.Value
		}
	}

	raw, err := json.Marshal(backup)
	if err != nil {
		return 0, fmt.Errorf("failed to encode backup: %w", err)
	}
	if err := g.ns.Set(ctx, schema.BackupKey, string(raw)); err != nil {
		return 0, fmt.Errorf("failed to write backup: %w", err)
	}

	for k := range backup.Data {
		if err := g.ns.Delete(ctx, k); err != nil {
			return 0, fmt.Errorf("failed to delete %s: %w", k, err)
		}
	}
	return len(backup.Data), nil
}

func (g *Guard) marker(ctx context.Context, key string) (string, error) {
	e, ok, err := g.ns.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok {
		return "", nil
	}
	return strings.TrimSpace(e.Value), nil
}

// describeChange classifies a version change for the log.
func describeChange(from, to string) string {
	if from == "" {
		return "first run"
	}
	a, b := canonical(from), canonical(to)
	if !semver.IsValid(a) || !semver.IsValid(b) {
		return "non-semver"
	}
	switch semver.Compare(a, b) {
	case -1:
		return "upgrade"
	case 1:
		return "downgrade"
	}
	return "rebuild"
}

func canonical(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

func display(v string) string {
	if v == "" {
		return "(none)"
	}
	return v
}
