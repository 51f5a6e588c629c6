// Package daemon keeps the outbound event queue moving while the device is
// online.
//
// The daemon:
//  1. Flushes the queue once on start
//  2. Checks the remote every CheckInterval
//  3. Flushes again whenever the remote comes back (offline → online)
//  4. Optionally watches the namespace file and flushes when another
//     process writes to it
//
// Flush failures are logged and never stop the daemon.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/guieduc/guieduc/internal/kv"
	gsync "github.com/guieduc/guieduc/internal/sync"
)

// Flusher drains the event queue.
type Flusher interface {
	Flush(ctx context.Context) (gsync.FlushResult, error)
}

// Pinger reports whether the remote is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds configuration for the daemon.
type Config struct {
	// CheckInterval is how often the remote is checked
	CheckInterval time.Duration

	// PingTimeout bounds a single health check
	PingTimeout time.Duration

	// NamespacePath, when set, is watched for writes by other processes
	NamespacePath string

	// DebounceInterval batches bursts of namespace writes
	DebounceInterval time.Duration

	// OnExternalChange is called after a debounced namespace write
	OnExternalChange func()

	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		CheckInterval:    30 * time.Second,
		PingTimeout:     5 * time.Second,
		DebounceInterval: 250 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon runs the flush triggers.
type Daemon struct {
	flusher Flusher
	pinger  Pinger
	config  *Config

	mu      sync.Mutex
	online  bool
	flushes int

	wg sync.WaitGroup
}

// New creates a daemon. Use Run to start it.
func New(flusher Flusher, pinger Pinger, config *Config) (*Daemon, error) {
	if flusher == nil {
		return nil, fmt.Errorf("flusher cannot be nil")
	}
	if pinger == nil {
		return nil, fmt.Errorf("pinger cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	def := DefaultConfig()
	if config.CheckInterval <= 0 {
		config.CheckInterval = def.CheckInterval
	}
	if config.PingTimeout <= 0 {
		config.PingTimeout = def.PingTimeout
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = def.DebounceInterval
	}
	if config.Logger == nil {
		config.Logger = def.Logger
	}

	return &Daemon{flusher: flusher, pinger: pinger, config: config}, nil
}

// Online reports whether the remote answered the last health check.
func (d *Daemon) Online() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.online
}

// Flushes returns how many flushes the daemon has attempted.
func (d *Daemon) Flushes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flushes
}

// Run blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	if d.flush(ctx, "start") == nil {
		d.setOnline(true)
	} else {
		d.setOnline(d.ping(ctx) == nil)
	}

	if d.config.NamespacePath != "" {
		d.wg.Add(1)
		go d.watchNamespace(ctx)
	}

	ticker := time.NewTicker(d.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.wg.Wait()
			d.config.Logger.Println("Daemon stopped")
			return nil

		case <-ticker.C:
			d.check(ctx)
		}
	}
}

// check flushes only on an offline to online transition. A flush the
// remote rejects waits for the next transition or namespace change.
func (d *Daemon) check(ctx context.Context) {
	if err := d.ping(ctx); err != nil {
		if d.setOnline(false) {
			d.config.Logger.Printf("Remote unreachable: %v", err)
		}
		return
	}
	if d.setOnline(true) {
		return
	}
	d.config.Logger.Println("Remote reachable again")
	_ = d.flush(ctx, "reconnect")
}

func (d *Daemon) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.config.PingTimeout)
	defer cancel()
	return d.pinger.Ping(ctx)
}

func (d *Daemon) watchNamespace(ctx context.Context) {
	defer d.wg.Done()

	d.config.Logger.Printf("Watching %s", d.config.NamespacePath)
	err := kv.Watch(ctx, d.config.NamespacePath, d.config.DebounceInterval, func() {
		if d.config.OnExternalChange != nil {
			d.config.OnExternalChange()
		}
		if d.Online() {
			_ = d.flush(ctx, "namespace change")
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		d.config.Logger.Printf("WARNING: namespace watch stopped: %v", err)
	}
}

func (d *Daemon) flush(ctx context.Context, reason string) error {
	d.mu.Lock()
	d.flushes++
	d.mu.Unlock()

	res, err := d.flusher.Flush(ctx)
	if err != nil {
		d.config.Logger.Printf("Flush on %s failed: %v", reason, err)
		return err
	}
	if res.Pushed > 0 {
		d.config.Logger.Printf("Flush on %s: pushed %d, remote saved %d", reason, res.Pushed, res.Saved)
	}
	return nil
}

// setOnline records the new state and returns the previous one.
func (d *Daemon) setOnline(online bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	was := d.online
	d.online = online
	return was
}
