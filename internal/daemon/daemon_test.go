package daemon

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gsync "github.com/guieduc/guieduc/internal/sync"
)

type fakeFlusher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeFlusher) Flush(ctx context.Context) (gsync.FlushResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return gsync.FlushResult{Pushed: 1, Saved: 1}, f.err
}

func (f *fakeFlusher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeFlusher) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fakePinger struct {
	down atomic.Bool
}

func (p *fakePinger) Ping(ctx context.Context) error {
	if p.down.Load() {
		return errors.New("offline")
	}
	return nil
}

func testConfig() *Config {
	return &Config{
		CheckInterval:    5 * time.Millisecond,
		DebounceInterval: 10 * time.Millisecond,
		Logger:           log.New(io.Discard, "", 0),
	}
}

// runDaemon starts d and stops it when the test ends.
func runDaemon(t *testing.T, d *Daemon) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run() = %v", err)
		}
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		flusher Flusher
		pinger  Pinger
		wantErr bool
	}{
		{"valid", &fakeFlusher{}, &fakePinger{}, false},
		{"nil flusher", nil, &fakePinger{}, true},
		{"nil pinger", &fakeFlusher{}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.flusher, tt.pinger, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFlushesOnStart(t *testing.T) {
	flusher := &fakeFlusher{}
	d, _ := New(flusher, &fakePinger{}, testConfig())
	runDaemon(t, d)

	waitFor(t, "start flush", func() bool { return flusher.count() >= 1 })
	waitFor(t, "online", d.Online)
}

func TestFlushesOnReconnect(t *testing.T) {
	flusher := &fakeFlusher{err: errors.New("offline")}
	pinger := &fakePinger{}
	pinger.down.Store(true)

	d, _ := New(flusher, pinger, testConfig())
	runDaemon(t, d)

	waitFor(t, "start flush", func() bool { return flusher.count() == 1 })
	time.Sleep(30 * time.Millisecond)
	if n := flusher.count(); n != 1 {
		t.Fatalf("flushed %d times while offline, want 1", n)
	}

	flusher.setErr(nil)
	pinger.down.Store(false)
	waitFor(t, "reconnect flush", func() bool { return flusher.count() == 2 })
	waitFor(t, "online", d.Online)

	// Staying online does not flush on every health check.
	time.Sleep(30 * time.Millisecond)
	if n := flusher.count(); n != 2 {
		t.Errorf("flushed %d times, want 2", n)
	}
}

func TestRejectedFlushIsNotRetriedOnHealthCheck(t *testing.T) {
	flusher := &fakeFlusher{err: errors.New("500 internal error")}
	d, _ := New(flusher, &fakePinger{}, testConfig())
	runDaemon(t, d)

	// Health answers but pushes fail: online, and health checks do not re-flush.
	waitFor(t, "start flush", func() bool { return flusher.count() == 1 })
	waitFor(t, "online", d.Online)
	time.Sleep(30 * time.Millisecond)
	if n := flusher.count(); n != 1 {
		t.Errorf("flushed %d times, want 1", n)
	}
}

func TestWatchNamespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guieduc.db")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	var changes atomic.Int32
	flusher := &fakeFlusher{}
	cfg := testConfig()
	cfg.CheckInterval = time.Hour
	cfg.NamespacePath = path
	cfg.OnExternalChange = func() { changes.Add(1) }

	d, _ := New(flusher, &fakePinger{}, cfg)
	runDaemon(t, d)
	waitFor(t, "online", d.Online)

	// The watcher starts asynchronously; keep writing until it reports.
	waitFor(t, "external change", func() bool {
		_ = os.WriteFile(path, []byte(time.Now().String()), 0644)
		time.Sleep(20 * time.Millisecond)
		return changes.Load() > 0
	})
	waitFor(t, "flush after change", func() bool { return flusher.count() >= 2 })
}
