package replay

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/guieduc/guieduc/internal/schema"
	"github.com/guieduc/guieduc/internal/store"
)

// Stats counts what a replay did.
type Stats struct {
	Applied int
	Ignored int
}

// Engine applies event sequences to a store.
type Engine struct {
	store  *store.Store
	logger *log.Logger
}

// New creates an Engine. If logger is nil, a default logger writing to
// stderr is used.
func New(st *store.Store, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(os.Stderr, "[replay] ", log.LstdFlags)
	}
	return &Engine{store: st, logger: logger}
}

// ApplyEvents reduces events into the store in slice order and saves the
// result in one write. The caller orders the events; they are not sorted
// here. An empty slice writes nothing.
func (e *Engine) ApplyEvents(ctx context.Context, events []schema.Event) (Stats, error) {
	if len(events) == 0 {
		return Stats{}, nil
	}

	var stats Stats
	err := e.store.Mutate(ctx, func(st *store.State) (bool, error) {
		stats = Reduce(st, events)
		return true, nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("failed to save replayed state: %w", err)
	}

	if stats.Ignored > 0 {
		e.logger.Printf("Replayed %d event(s), ignored %d", stats.Applied, stats.Ignored)
	} else {
		e.logger.Printf("Replayed %d event(s)", stats.Applied)
	}
	return stats, nil
}

// Reduce applies events to st in order.
func Reduce(st *store.State, events []schema.Event) Stats {
	var stats Stats
	for _, ev := range events {
		if Apply(st, ev) {
			stats.Applied++
		} else {
			stats.Ignored++
		}
	}
	return stats
}
