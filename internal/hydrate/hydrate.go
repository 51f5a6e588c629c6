// Package hydrate fills an empty local store from the remote event history
// the first time the application starts on a device.
package hydrate

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/guieduc/guieduc/internal/replay"
	"github.com/guieduc/guieduc/internal/schema"
)

// Puller fetches the remote event history, oldest first.
type Puller interface {
	Pull(ctx context.Context) ([]schema.Event, error)
}

// Replayer applies events to the local store.
type Replayer interface {
	ApplyEvents(ctx context.Context, events []schema.Event) (replay.Stats, error)
}

// Checker reports whether the local store already holds data.
type Checker interface {
	Exists(ctx context.Context) (bool, error)
}

// Result describes what Run did.
type Result struct {
	Skipped  bool // the local store already had data
	Pulled   int
	Replayed replay.Stats
}

// Bootstrapper runs the first-boot hydration.
type Bootstrapper struct {
	local    Checker
	puller   Puller
	replayer Replayer
	logger   *log.Logger
}

// New creates a Bootstrapper. If logger is nil, a default logger writing to
// stderr is used.
func New(local Checker, puller Puller, replayer Replayer, logger *log.Logger) *Bootstrapper {
	if logger == nil {
		logger = log.New(os.Stderr, "[hydrate] ", log.LstdFlags)
	}
	return &Bootstrapper{local: local, puller: puller, replayer: replayer, logger: logger}
}

// Run hydrates the local store when it is empty.
//
// It never merges: a store that already has data is left alone. Pull
// failures are logged and swallowed, leaving the store as it was. An empty
// pull writes nothing, so the next start tries again. Only local write
// errors such as kv.ErrQuotaExceeded are returned.
func (b *Bootstrapper) Run(ctx context.Context) (Result, error) {
	exists, err := b.local.Exists(ctx)
	if err != nil {
		return Result{}, err
	}
	if exists {
		return Result{Skipped: true}, nil
	}

	events, err := b.puller.Pull(ctx)
	if err != nil {
		b.logger.Printf("Hydration skipped, pull failed: %v", err)
		return Result{}, nil
	}
	if len(events) == 0 {
		b.logger.Printf("Remote has no history, nothing to hydrate")
		return Result{}, nil
	}

	stats, err := b.replayer.ApplyEvents(ctx, events)
	if err != nil {
		return Result{Pulled: len(events)}, fmt.Errorf("failed to replay pulled events: %w", err)
	}

	b.logger.Printf("Hydrated local store from %d remote event(s)", len(events))
	return Result{Pulled: len(events), Replayed: stats}, nil
}
