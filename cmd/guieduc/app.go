package main

import (
	"context"
	"fmt"
	"time"

	"github.com/guieduc/guieduc/internal/assets"
	"github.com/guieduc/guieduc/internal/classroom"
	"github.com/guieduc/guieduc/internal/config"
	"github.com/guieduc/guieduc/internal/eventlog"
	"github.com/guieduc/guieduc/internal/guard"
	"github.com/guieduc/guieduc/internal/hydrate"
	"github.com/guieduc/guieduc/internal/kv"
	"github.com/guieduc/guieduc/internal/logging"
	"github.com/guieduc/guieduc/internal/replay"
	"github.com/guieduc/guieduc/internal/store"
	gsync "github.com/guieduc/guieduc/internal/sync"
)

// App is the local side of guieduc wired together for one command.
type App struct {
	Config  *config.Config
	NS      *kv.SQLite
	Store   *store.Store
	Queue   *eventlog.Queue
	Service *classroom.Service
	Replay  *replay.Engine
	Assets  *assets.DirCache

	// Client and Flusher are nil when no remote is configured.
	Client  *gsync.Client
	Flusher *gsync.Flusher

	logs *logging.Factory
}

// OpenApp opens the namespace and runs the start sequence:
//
//  1. version/schema guard (reopening the namespace when it asks to reload)
//  2. legacy layout detection
//  3. hydration of an empty store from the remote
//  4. flush of pending events
//
// Steps 3 and 4 only log their network failures.
func OpenApp(ctx context.Context, cfg *config.Config, logs *logging.Factory) (*App, error) {
	a := &App{
		Config: cfg,
		Assets: assets.NewDirCache(cfg.Assets.Dir, logs.Logger("assets")),
		logs:   logs,
	}
	if err := a.open(); err != nil {
		return nil, err
	}

	res, err := guard.New(a.NS, &guard.Config{
		Assets: a.Assets,
		Logger: logs.Logger("guard"),
	}).Run(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("version guard failed: %w", err)
	}
	if res.Reload {
		a.Close()
		if err := a.open(); err != nil {
			return nil, err
		}
	}

	if _, err := a.Store.LegacyKeys(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Remote.URL != "" {
		client, err := gsync.NewClient(gsync.Config{BaseURL: cfg.Remote.URL, Timeout: cfg.Remote.Timeout})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Client = client
		a.Flusher = gsync.NewFlusher(a.Queue, client, logs.Logger("sync"))

		if _, err := hydrate.New(a.Store, client, a.Replay, logs.Logger("hydrate")).Run(ctx); err != nil {
			a.Close()
			return nil, err
		}
		a.FlushQuietly(ctx)
	}
	return a, nil
}

func (a *App) open() error {
	ns, err := kv.OpenSQLite(a.Config.Namespace.Path, kv.SQLiteOptions{MaxBytes: a.Config.Namespace.MaxBytes})
	if err != nil {
		return err
	}
	a.NS = ns
	a.Store = store.New(ns, &store.Config{Logger: a.logs.Logger("store")})
	a.Queue = eventlog.New(ns, &eventlog.Config{Logger: a.logs.Logger("queue")})
	a.Service = classroom.New(a.Store, a.Queue, a.logs.Logger("classroom"))
	a.Replay = replay.New(a.Store, a.logs.Logger("replay"))
	return nil
}

// FlushQuietly pushes pending events and only logs failures.
func (a *App) FlushQuietly(ctx context.Context) {
	if a.Flusher == nil {
		return
	}
	ctx, cancel := flushContext(ctx, a.Config.Remote.Timeout)
	defer cancel()
	_, _ = a.Flusher.Flush(ctx)
}

// flushContext bounds a flush by twice the request timeout when one is
// set. Without one the flush runs as long as it needs.
func flushContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, 2*timeout+time.Second)
}

// Close releases the namespace.
func (a *App) Close() {
	if a.NS != nil {
		_ = a.NS.Close()
		a.NS = nil
	}
}
