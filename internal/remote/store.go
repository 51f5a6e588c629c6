// Package remote is the server side of event replication: a relational
// event store and the HTTP endpoints the sync client talks to.
//
//	device ──POST /api/sync/push──> Server ──Save──> sync_events
//	device <──GET /api/sync/pull─── Server <──List── (ts ASC, ≤20000)
//	                                   │
//	                                   └──EventsSaved──> Notifier (live feed)
//
// The store never interprets payloads. Deduplication by event id is the
// only rule it enforces.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/guieduc/guieduc/internal/schema"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/ncruces/go-sqlite3/gormlite"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// EventRecord is one row of sync_events.
type EventRecord struct {
	Seq       uint64         `gorm:"primaryKey;autoIncrement"`
	ID        string         `gorm:"size:64;not null;uniqueIndex"`
	Entity    string         `gorm:"size:32;not null"`
	Op        string         `gorm:"size:16;not null"`
	Payload   datatypes.JSON `gorm:"not null"`
	TS        int64          `gorm:"not null;index"`
	CreatedAt time.Time
}

// TableName implements gorm's tabler.
func (EventRecord) TableName() string { return "sync_events" }

// Event converts the row back to its wire form.
func (r EventRecord) Event() schema.Event {
	return schema.Event{
		ID:      r.ID,
		Entity:  schema.Entity(r.Entity),
		Op:      schema.Op(r.Op),
		Payload: json.RawMessage(r.Payload),
		TS:      schema.Millis(r.TS),
	}
}

// Config configures Open.
type Config struct {
	Driver string // postgres or sqlite
	DSN    string // connection string, or a file path for sqlite

	BatchSize int
	Logger    *log.Logger
}

// DefaultConfig returns a local SQLite configuration.
func DefaultConfig() *Config {
	return &Config{
		Driver:    DriverSQLite,
		DSN:       "guieduc-remote.db",
		BatchSize: 500,
		Logger:    log.New(os.Stderr, "[remote] ", log.LstdFlags),
	}
}

// Store persists events with gorm.
type Store struct {
	db        *gorm.DB
	batchSize int
	logger    *log.Logger
}

// Open connects to the database and migrates sync_events.
//
// The caller MUST call Close() when done.
func Open(cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	def := DefaultConfig()
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}

	dialector, err := dialectorFor(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(cfg.Logger, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s event store: %w", cfg.Driver, err)
	}

	if err := db.AutoMigrate(&EventRecord{}); err != nil {
		if sqlDB, derr := db.DB(); derr == nil {
			_ = sqlDB.Close()
		}
		return nil, fmt.Errorf("failed to migrate event store: %w", err)
	}

	return &Store{db: db, batchSize: cfg.BatchSize, logger: cfg.Logger}, nil
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case DriverPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("postgres event store needs a DSN")
		}
		return postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), nil
	case DriverSQLite, "":
		if dsn == "" {
			dsn = DefaultConfig().DSN
		}
		if dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return nil, fmt.Errorf("failed to create event store directory: %w", err)
			}
		}
		params := url.Values{}
		params.Add("_pragma", "busy_timeout(5000)")
		params.Add("_pragma", "journal_mode(wal)")
		return gormlite.Open("file:" + dsn + "?" + params.Encode()), nil
	default:
		return nil, fmt.Errorf("unknown event store driver %q", driver)
	}
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save inserts events whose id is not stored yet and returns how many were
// inserted. Events without an id are skipped.
func (s *Store) Save(ctx context.Context, events []schema.Event) (int, error) {
	seen := make(map[string]bool, len(events))
	rows := make([]EventRecord, 0, len(events))
	for _, ev := range events {
		if ev.ID == "" || seen[ev.ID] {
			continue
		}
		seen[ev.ID] = true
		rows = append(rows, toRecord(ev))
	}
	if skipped := len(events) - len(rows); skipped > 0 {
		s.logger.Printf("skipped %d event(s) without id or repeated in batch", skipped)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&rows, s.batchSize)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to save events: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// List returns up to limit events by ascending ts, ties in arrival order.
// A limit outside (0, MaxPullEvents] means MaxPullEvents.
func (s *Store) List(ctx context.Context, limit int) ([]schema.Event, error) {
	if limit <= 0 || limit > schema.MaxPullEvents {
		limit = schema.MaxPullEvents
	}

	var rows []EventRecord
	err := s.db.WithContext(ctx).
		Order("ts ASC").
		Order("seq ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events := make([]schema.Event, len(rows))
	for i, r := range rows {
		events[i] = r.Event()
	}
	return events, nil
}

// Count returns the number of stored events.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&EventRecord{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

func toRecord(ev schema.Event) EventRecord {
	payload := datatypes.JSON(ev.Payload)
	if !json.Valid(payload) {
		payload = datatypes.JSON("{}")
	}
	return EventRecord{
		ID:      ev.ID,
		Entity:  string(ev.Entity),
		Op:      string(ev.Op),
		Payload: payload,
		TS:      int64(ev.TS),
	}
}
