package dashboard

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/guieduc/guieduc/internal/schema"
)

// EventSummary is the feed view of one event; payloads are not forwarded.
type EventSummary struct {
	ID     string        `json:"id"`
	Entity schema.Entity `json:"entity"`
	Op     schema.Op     `json:"op"`
	TS     schema.Millis `json:"ts"`
}

// EventsSavedData is the data of an events_saved message.
type EventsSavedData struct {
	Saved  int            `json:"saved"`
	Events []EventSummary `json:"events"`
}

// StatsData is the data of a stats message.
type StatsData struct {
	Pushes   int            `json:"pushes"`
	Saved    int            `json:"saved"`
	ByEntity map[string]int `json:"by_entity"`
	ByOp     map[string]int `json:"by_op"`
}

// Stats accumulates totals over the life of the server.
type Stats struct {
	mu   sync.Mutex
	data StatsData
}

func newStats() *Stats {
	return &Stats{data: StatsData{
		ByEntity: make(map[string]int),
		ByOp:     make(map[string]int),
	}}
}

// Snapshot returns a copy of the totals.
func (s *Stats) Snapshot() StatsData {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.data
	out.ByEntity = make(map[string]int, len(s.data.ByEntity))
	for k, v := range s.data.ByEntity {
		out.ByEntity[k] = v
	}
	out.ByOp = make(map[string]int, len(s.data.ByOp))
	for k, v := range s.data.ByOp {
		out.ByOp[k] = v
	}
	return out
}

// record counts a push. The per-entity and per-op tallies cover every
// event of the push, since the store does not say which ids were new.
func (s *Stats) record(saved int, events []schema.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Pushes++
	s.data.Saved += saved
	for _, ev := range events {
		s.data.ByEntity[string(ev.Entity)]++
		s.data.ByOp[string(ev.Op)]++
	}
}

func (s *Stats) message() Message {
	data, _ := json.Marshal(s.Snapshot())
	return Message{Type: MessageTypeStats, Timestamp: time.Now(), Data: data}
}

// Stats returns the running totals.
func (s *Server) Stats() StatsData {
	return s.stats.Snapshot()
}

// EventsSaved implements remote.Notifier.
func (s *Server) EventsSaved(saved int, events []schema.Event) {
	s.stats.record(saved, events)

	data := EventsSavedData{Saved: saved, Events: make([]EventSummary, len(events))}
	for i, ev := range events {
		data.Events[i] = EventSummary{ID: ev.ID, Entity: ev.Entity, Op: ev.Op, TS: ev.TS}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		s.logger.Printf("Failed to marshal events: %v", err)
		return
	}
	s.Broadcast(Message{Type: MessageTypeEventsSaved, Timestamp: time.Now(), Data: raw})
}
