package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// SQLite is a Namespace stored in an embedded SQLite database file.
//
// The database runs in WAL mode so several processes can share one file,
// the way browser tabs share one origin's storage. Writes use immediate
// transactions, which makes CompareAndSwap atomic across processes.
type SQLite struct {
	conn     *sql.DB
	path     string
	maxBytes int64
}

// SQLiteOptions configures OpenSQLite.
type SQLiteOptions struct {
	// MaxBytes limits the total size of keys plus values (0 = unlimited).
	MaxBytes int64
}

// OpenSQLite opens or creates the namespace database at path.
//
// The caller MUST call Close() when done.
func OpenSQLite(path string, opts SQLiteOptions) (*SQLite, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create namespace directory: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	params := url.Values{}
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "journal_mode(wal)")
	params.Add("_pragma", "synchronous(normal)")
	params.Set("_txlock", "immediate")
	dsn := "file:" + path + "?" + params.Encode()

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open namespace: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping namespace: %w", err)
	}

	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &SQLite{
		conn:     conn,
		path:     path,
		maxBytes: opts.MaxBytes,
	}

	if err := s.initSchema(context.Background()); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLite) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		version INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize namespace schema: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.path
}

// Close checkpoints the WAL and closes the database.
func (s *SQLite) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close namespace: %w", err)
	}

	s.conn = nil
	return nil
}

// Get implements Namespace.
func (s *SQLite) Get(ctx context.Context, key string) (Entry, bool, error) {
	var e Entry
	err := s.conn.QueryRowContext(ctx,
		`SELECT value, version FROM kv WHERE key = ?`, key).Scan(&e.Value, &e.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return e, true, nil
}

// Set implements Namespace.
func (s *SQLite) Set(ctx context.Context, key, value string) error {
	_, err := s.write(ctx, key, value, 0, false)
	return err
}

// CompareAndSwap implements Namespace.
func (s *SQLite) CompareAndSwap(ctx context.Context, key, value string, version int64) (int64, error) {
	return s.write(ctx, key, value, version, true)
}

func (s *SQLite) write(ctx context.Context, key, value string, version int64, conditional bool) (int64, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, mapWriteErr(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	var current int64
	err = tx.QueryRowContext(ctx, `SELECT version FROM kv WHERE key = ?`, key).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to read version of %s: %w", key, err)
	}

	if conditional && current != version {
		return 0, ErrConflict
	}

	if err := s.checkQuota(ctx, tx, key, value); err != nil {
		return 0, err
	}

	next := current + 1
	query := `
	INSERT INTO kv (key, value, version, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		version = excluded.version,
		updated_at = excluded.updated_at
	`
	if _, err := tx.ExecContext(ctx, query, key, value, next, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return 0, mapWriteErr(fmt.Errorf("failed to write %s: %w", key, err))
	}

	if err := tx.Commit(); err != nil {
		return 0, mapWriteErr(fmt.Errorf("failed to commit %s: %w", key, err))
	}
	return next, nil
}

func (s *SQLite) checkQuota(ctx context.Context, tx *sql.Tx, key, value string) error {
	if s.maxBytes <= 0 {
		return nil
	}
	var used int64
	err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(LENGTH(CAST(key AS BLOB)) + LENGTH(CAST(value AS BLOB))), 0)
		FROM kv WHERE key <> ?`, key).Scan(&used)
	if err != nil {
		return fmt.Errorf("failed to compute namespace size: %w", err)
	}
	if used+int64(len(key)+len(value)) > s.maxBytes {
		return ErrQuotaExceeded
	}
	return nil
}

// Delete implements Namespace.
func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Keys implements Namespace.
func (s *SQLite) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT key FROM kv WHERE substr(key, 1, ?) = ? ORDER BY key ASC`, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating keys: %w", err)
	}
	return keys, nil
}

// mapWriteErr turns a full disk into ErrQuotaExceeded.
func mapWriteErr(err error) error {
	if errors.Is(err, sqlite3.FULL) {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return err
}
