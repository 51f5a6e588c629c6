package kv

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Namespace.
type Memory struct {
	mu       sync.Mutex
	entries  map[string]Entry
	maxBytes int64
}

// NewMemory returns an empty namespace. maxBytes limits the total size of
// keys plus values; 0 disables the quota.
func NewMemory(maxBytes int64) *Memory {
	return &Memory{
		entries:  make(map[string]Entry),
		maxBytes: maxBytes,
	}
}

// Get implements Namespace.
func (m *Memory) Get(ctx context.Context, key string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	return e, ok, nil
}

// Set implements Namespace.
func (m *Memory) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkQuota(key, value); err != nil {
		return err
	}
	e := m.entries[key]
	m.entries[key] = Entry{Value: value, Version: e.Version + 1}
	return nil
}

// CompareAndSwap implements Namespace.
func (m *Memory) CompareAndSwap(ctx context.Context, key, value string, version int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	current := int64(0)
	if ok {
		current = e.Version
	}
	if current != version {
		return 0, ErrConflict
	}
	if err := m.checkQuota(key, value); err != nil {
		return 0, err
	}
	m.entries[key] = Entry{Value: value, Version: current + 1}
	return current + 1, nil
}

// Delete implements Namespace.
func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// Keys implements Namespace.
func (m *Memory) Keys(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// checkQuota must be called with mu held.
func (m *Memory) checkQuota(key, value string) error {
	if m.maxBytes <= 0 {
		return nil
	}
	var total int64
	for k, e := range m.entries {
		if k == key {
			continue
		}
		total += int64(len(k) + len(e.Value))
	}
	if total+int64(len(key)+len(value)) > m.maxBytes {
		return ErrQuotaExceeded
	}
	return nil
}
