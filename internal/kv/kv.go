// Package kv provides the key/value namespace the local store persists into.
//
// A Namespace plays the role of browser local storage: string keys, string
// values, shared by every process that opens the same backing file. Each key
// carries a version counter so writers can do optimistic read-modify-write
// with CompareAndSwap instead of taking a lock.
//
// Two adapters are provided:
//   - Memory: process-local, used by tests and dry runs
//   - SQLite: a single embedded database file (ncruces/go-sqlite3, WAL mode)
package kv

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrQuotaExceeded is returned when a write would exceed the configured
	// storage quota. It is the only fatal write error; callers propagate it
	// and do not retry.
	ErrQuotaExceeded = errors.New("kv: storage quota exceeded")

	// ErrConflict is returned by CompareAndSwap when the stored version no
	// longer matches the expected one.
	ErrConflict = errors.New("kv: version conflict")
)

// Entry is a stored value with its version. Versions start at 1 and grow by
// one on every write of the key.
type Entry struct {
	Value   string
	Version int64
}

// Namespace is a versioned string key/value store.
type Namespace interface {
	// Get returns the entry for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (entry Entry, ok bool, err error)

	// Set writes value unconditionally (last write wins).
	Set(ctx context.Context, key, value string) error

	// CompareAndSwap writes value only if the key is currently at version.
	// Version 0 means the key must not exist. Returns the new version, or
	// ErrConflict.
	CompareAndSwap(ctx context.Context, key, value string, version int64) (int64, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists keys starting with prefix in ascending order.
	// An empty prefix lists every key.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// DefaultMaxAttempts bounds the retries of Update.
const DefaultMaxAttempts = 5

// UpdateFunc computes the new value of a key from its current value.
// Returning changed=false skips the write.
type UpdateFunc func(current string, exists bool) (next string, changed bool, err error)

// Update runs an optimistic read-modify-write of key. On ErrConflict the
// key is re-read and fn runs again, at most attempts times. fn must not have
// side effects outside its return values.
func Update(ctx context.Context, ns Namespace, key string, attempts int, fn UpdateFunc) error {
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	for i := 0; i < attempts; i++ {
		entry, exists, err := ns.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", key, err)
		}

		next, changed, err := fn(entry.Value, exists)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}

		version := entry.Version
		if !exists {
			version = 0
		}
		_, err = ns.CompareAndSwap(ctx, key, next, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConflict) {
			return err
		}
	}

	return fmt.Errorf("failed to write %s after %d attempts: %w", key, attempts, ErrConflict)
}
