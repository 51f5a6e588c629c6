// Package eventlog is the outbound queue of mutation events waiting to be
// pushed to the remote store.
//
// The queue is one JSON array under schema.QueueKey. Appends and removals
// are optimistic read-modify-writes, so several processes can enqueue into
// the same namespace without losing events.
package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"slices"

	"github.com/guieduc/guieduc/internal/kv"
	"github.com/guieduc/guieduc/internal/schema"
)

// Config configures a Queue.
type Config struct {
	MaxAttempts int
	Now         func() schema.Millis
	Logger      *log.Logger
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: kv.DefaultMaxAttempts,
		Now:         schema.Now,
		Logger:      log.New(os.Stderr, "[eventlog] ", log.LstdFlags),
	}
}

// Queue is the outbound event log.
type Queue struct {
	ns     kv.Namespace
	cfg    Config
	logger *log.Logger
}

// New creates a Queue over ns. A nil cfg uses DefaultConfig.
func New(ns kv.Namespace, cfg *Config) *Queue {
	c := DefaultConfig()
	if cfg != nil {
		if cfg.MaxAttempts > 0 {
			c.MaxAttempts = cfg.MaxAttempts
		}
		if cfg.Now != nil {
			c.Now = cfg.Now
		}
		if cfg.Logger != nil {
			c.Logger = cfg.Logger
		}
	}
	return &Queue{ns: ns, cfg: c, logger: c.Logger}
}

// Enqueue appends a new event for the mutation and returns it.
func (q *Queue) Enqueue(ctx context.Context, entity schema.Entity, op schema.Op, payload any) (schema.Event, error) {
	ev, err := schema.NewEvent(entity, op, payload, q.cfg.Now())
	if err != nil {
		return schema.Event{}, err
	}
	if err := q.Append(ctx, ev); err != nil {
		return schema.Event{}, err
	}
	return ev, nil
}

// Append adds already-built events to the end of the queue.
func (q *Queue) Append(ctx context.Context, events ...schema.Event) error {
	if len(events) == 0 {
		return nil
	}
	err := q.update(ctx, func(pending []schema.Event) ([]schema.Event, bool) {
		return append(pending, events...), true
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue %d event(s): %w", len(events), err)
	}
	return nil
}

// Pending returns the queued events, oldest first.
func (q *Queue) Pending(ctx context.Context) ([]schema.Event, error) {
	entry, ok, err := q.ns.Get(ctx, schema.QueueKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return q.decode(entry.Value), nil
}

// Len returns the number of queued events.
func (q *Queue) Len(ctx context.Context) (int, error) {
	pending, err := q.Pending(ctx)
	if err != nil {
		return 0, err
	}
	return len(pending), nil
}

// Remove drops the events with the given ids. Unknown ids are ignored.
// Events enqueued after the ids were read stay in the queue.
func (q *Queue) Remove(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	err := q.update(ctx, func(pending []schema.Event) ([]schema.Event, bool) {
		kept := slices.DeleteFunc(pending, func(ev schema.Event) bool { return drop[ev.ID] })
		return kept, true
	})
	if err != nil {
		return fmt.Errorf("failed to remove events from queue: %w", err)
	}
	return nil
}

// Clear empties the queue.
func (q *Queue) Clear(ctx context.Context) error {
	if err := q.ns.Delete(ctx, schema.QueueKey); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	return nil
}

func (q *Queue) update(ctx context.Context, fn func([]schema.Event) ([]schema.Event, bool)) error {
	return kv.Update(ctx, q.ns, schema.QueueKey, q.cfg.MaxAttempts,
		func(current string, exists bool) (string, bool, error) {
			var pending []schema.Event
			if exists {
				pending = q.decode(current)
			}
			next, changed := fn(pending)
			if !changed {
				return "", false, nil
			}
			if next == nil {
				next = []schema.Event{}
			}
			data, err := json.Marshal(next)
			if err != nil {
				return "", false, fmt.Errorf("failed to encode queue: %w", err)
			}
			return string(data), true, nil
		})
}

func (q *Queue) decode(raw string) []schema.Event {
	if raw == "" {
		return nil
	}
	var events []schema.Event
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		q.logger.Printf("WARNING: failed to decode queue, treating it as empty: %v", err)
		return nil
	}
	return events
}
