package sync

import (
	"context"
	"fmt"
	"log"
	"os"
	gosync "sync"

	"github.com/guieduc/guieduc/internal/eventlog"
	"github.com/guieduc/guieduc/internal/schema"
)

// Pusher sends a batch of events to the remote.
type Pusher interface {
	Push(ctx context.Context, events []schema.Event) (int, error)
}

// FlushResult describes one flush.
type FlushResult struct {
	Pushed  int  // events sent and removed from the queue
	Saved   int  // events the remote had not seen before
	Skipped bool // another flush was already running
}

// Flusher drains the event log into a Pusher.
type Flusher struct {
	queue  *eventlog.Queue
	pusher Pusher
	logger *log.Logger

	mu gosync.Mutex
}

// NewFlusher creates a Flusher. If logger is nil, a default logger writing
// to stderr is used.
func NewFlusher(queue *eventlog.Queue, pusher Pusher, logger *log.Logger) *Flusher {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Flusher{queue: queue, pusher: pusher, logger: logger}
}

// Flush pushes every queued event as one batch. It returns the push error
// with the queue untouched; callers log it and wait for the next trigger.
// Concurrent calls in the same process do not overlap: a call made while
// another is running returns immediately with Skipped set.
func (f *Flusher) Flush(ctx context.Context) (FlushResult, error) {
	if !f.mu.TryLock() {
		return FlushResult{Skipped: true}, nil
	}
	defer f.mu.Unlock()

	pending, err := f.queue.Pending(ctx)
	if err != nil {
		return FlushResult{}, err
	}
	if len(pending) == 0 {
		return FlushResult{}, nil
	}

	saved, err := f.pusher.Push(ctx, pending)
	if err != nil {
		f.logger.Printf("Flush of %d event(s) failed, keeping queue: %v", len(pending), err)
		return FlushResult{}, fmt.Errorf("failed to push events: %w", err)
	}

	ids := make([]string, len(pending))
	for i, ev := range pending {
		ids[i] = ev.ID
	}
	if err := f.queue.Remove(ctx, ids...); err != nil {
		// The remote dedupes by id, so re-pushing these later is harmless.
		return FlushResult{Saved: saved}, err
	}

	f.logger.Printf("Flushed %d event(s) (%d new on remote)", len(pending), saved)
	return FlushResult{Pushed: len(pending), Saved: saved}, nil
}
