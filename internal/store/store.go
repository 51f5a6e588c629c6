// Package store is the local store: typed CRUD for turmas, alunos, chamadas
// and conteudos over a single JSON blob kept in a kv.Namespace.
//
// Every write is an optimistic read-modify-write of the blob. The mutation
// runs on a fresh read, and the result is written back with CompareAndSwap
// on the version that was read. When another process wrote in between, the
// mutation is re-run on the new state. No lock is ever taken.
//
// Error policy:
//
//   - Corrupt blobs are logged and read as an empty state
//   - Missing targets of updates and removes are not errors
//   - Rejected input returns a *schema.ValidationError and persists nothing
//   - kv.ErrQuotaExceeded is propagated unchanged
package store

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/guieduc/guieduc/internal/kv"
	"github.com/guieduc/guieduc/internal/schema"
)

// ErrConflict is returned when a write kept losing the race against other
// writers of the namespace until the attempts ran out.
var ErrConflict = kv.ErrConflict

// Config configures a Store.
type Config struct {
	// MaxAttempts bounds the optimistic retries of a write.
	MaxAttempts int

	// Now stamps createdAt/updatedAt. Defaults to schema.Now.
	Now func() schema.Millis

	// NewID generates entity ids. Defaults to schema.NewID.
	NewID func() string

	Logger *log.Logger
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: kv.DefaultMaxAttempts,
		Now:         schema.Now,
		NewID:       schema.NewID,
		Logger:      log.New(os.Stderr, "[store] ", log.LstdFlags),
	}
}

// Store provides the entity operations. It holds no cached state; every
// call reads the namespace.
type Store struct {
	ns     kv.Namespace
	cfg    Config
	logger *log.Logger
}

// New creates a Store over ns. A nil cfg uses DefaultConfig.
func New(ns kv.Namespace, cfg *Config) *Store {
	c := DefaultConfig()
	if cfg != nil {
		if cfg.MaxAttempts > 0 {
			c.MaxAttempts = cfg.MaxAttempts
		}
		if cfg.Now != nil {
			c.Now = cfg.Now
		}
		if cfg.NewID != nil {
			c.NewID = cfg.NewID
		}
		if cfg.Logger != nil {
			c.Logger = cfg.Logger
		}
	}
	return &Store{ns: ns, cfg: c, logger: c.Logger}
}

// Namespace returns the namespace the store writes to.
func (s *Store) Namespace() kv.Namespace {
	return s.ns
}

// Exists reports whether the data blob is present. An absent blob means the
// local store has never been written on this device.
func (s *Store) Exists(ctx context.Context) (bool, error) {
	_, ok, err := s.ns.Get(ctx, schema.DataKey)
	if err != nil {
		return false, fmt.Errorf("failed to check data blob: %w", err)
	}
	return ok, nil
}

// Load reads the current state and the version it was read at.
// Version 0 means the blob does not exist yet.
func (s *Store) Load(ctx context.Context) (*State, int64, error) {
	entry, ok, err := s.ns.Get(ctx, schema.DataKey)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read data blob: %w", err)
	}
	if !ok {
		return NewState(), 0, nil
	}
	return s.decode(entry.Value), entry.Version, nil
}

// Save writes st if the blob is still at version. It returns ErrConflict
// when someone else wrote first.
func (s *Store) Save(ctx context.Context, st *State, version int64) (int64, error) {
	raw, err := st.Encode()
	if err != nil {
		return 0, err
	}
	next, err := s.ns.CompareAndSwap(ctx, schema.DataKey, raw, version)
	if err != nil {
		return 0, fmt.Errorf("failed to save data blob: %w", err)
	}
	return next, nil
}

// Mutate applies fn to a fresh copy of the state and saves the result.
// fn returns false to skip the write. On a version conflict fn runs again on
// the newer state, so it must only touch st and its own local variables.
func (s *Store) Mutate(ctx context.Context, fn func(st *State) (bool, error)) error {
	return kv.Update(ctx, s.ns, schema.DataKey, s.cfg.MaxAttempts,
		func(current string, exists bool) (string, bool, error) {
			st := NewState()
			if exists {
				st = s.decode(current)
			}
			changed, err := fn(st)
			if err != nil {
				return "", false, err
			}
			if !changed {
				return "", false, nil
			}
			raw, err := st.Encode()
			if err != nil {
				return "", false, err
			}
			return raw, true, nil
		})
}

// LegacyKeys lists keys of the retired per-entity layout. Their content is
// never read; they are reported so the user can export and inspect them.
func (s *Store) LegacyKeys(ctx context.Context) ([]string, error) {
	keys, err := s.ns.Keys(ctx, schema.KeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list namespace keys: %w", err)
	}
	var legacy []string
	for _, k := range keys {
		if k == schema.LegacyAlunosKey || strings.HasPrefix(k, schema.LegacyChamadasPrefix) {
			legacy = append(legacy, k)
		}
	}
	if len(legacy) > 0 {
		s.logger.Printf("WARNING: found %d key(s) of the old per-entity layout, ignoring them: %s",
			len(legacy), strings.Join(legacy, ", "))
	}
	return legacy, nil
}

// decode parses a blob, falling back to an empty state when it is corrupt.
func (s *Store) decode(raw string) *State {
	st, err := DecodeState(raw)
	if err != nil {
		s.logger.Printf("WARNING: %v (treating local store as empty)", err)
		return NewState()
	}
	return st
}

func (s *Store) now() schema.Millis {
	return s.cfg.Now()
}

func (s *Store) newID() string {
	return s.cfg.NewID()
}

// errTurmaNotFound rejects writes scoped under a turma that does not exist.
func errTurmaNotFound() error {
	return schema.NewFieldError("turmaId", "turma não encontrada")
}
