package kv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

// openSQLite creates a namespace in a temporary directory.
func openSQLite(t *testing.T, maxBytes int64) *SQLite {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ns.db")
	ns, err := OpenSQLite(path, SQLiteOptions{MaxBytes: maxBytes})
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	t.Cleanup(func() { _ = ns.Close() })
	return ns
}

// adapters runs fn against every Namespace implementation.
func adapters(t *testing.T, maxBytes int64, fn func(t *testing.T, ns Namespace)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemory(maxBytes)) })
	t.Run("sqlite", func(t *testing.T) { fn(t, openSQLite(t, maxBytes)) })
}

func TestNamespace_GetSetDelete(t *testing.T) {
	adapters(t, 0, func(t *testing.T, ns Namespace) {
		ctx := context.Background()

		if _, ok, err := ns.Get(ctx, "guieduc:data"); err != nil || ok {
			t.Fatalf("Get(missing) = ok %v, err %v; want absent", ok, err)
		}

		if err := ns.Set(ctx, "guieduc:data", `{"turmas":[]}`); err != nil {
			t.Fatalf("Set() failed: %v", err)
		}
		e, ok, err := ns.Get(ctx, "guieduc:data")
		if err != nil || !ok {
			t.Fatalf("Get() = ok %v, err %v", ok, err)
		}
		if e.Value != `{"turmas":[]}` || e.Version != 1 {
			t.Errorf("entry = %+v, want value and version 1", e)
		}

		if err := ns.Set(ctx, "guieduc:data", "v2"); err != nil {
			t.Fatalf("second Set() failed: %v", err)
		}
		e, _, _ = ns.Get(ctx, "guieduc:data")
		if e.Version != 2 {
			t.Errorf("version after second write = %d, want 2", e.Version)
		}

		if err := ns.Delete(ctx, "guieduc:data"); err != nil {
			t.Fatalf("Delete() failed: %v", err)
		}
		if err := ns.Delete(ctx, "guieduc:data"); err != nil {
			t.Errorf("Delete(missing) should be a no-op, got %v", err)
		}
		if _, ok, _ := ns.Get(ctx, "guieduc:data"); ok {
			t.Error("key still present after Delete")
		}
	})
}

func TestNamespace_CompareAndSwap(t *testing.T) {
	adapters(t, 0, func(t *testing.T, ns Namespace) {
		ctx := context.Background()

		v, err := ns.CompareAndSwap(ctx, "k", "a", 0)
		if err != nil || v != 1 {
			t.Fatalf("CAS create = %d, %v; want 1, nil", v, err)
		}

		if _, err := ns.CompareAndSwap(ctx, "k", "b", 0); !errors.Is(err, ErrConflict) {
			t.Errorf("CAS with version 0 on existing key: err = %v, want ErrConflict", err)
		}
		if _, err := ns.CompareAndSwap(ctx, "k", "b", 7); !errors.Is(err, ErrConflict) {
			t.Errorf("CAS with stale version: err = %v, want ErrConflict", err)
		}

		v, err = ns.CompareAndSwap(ctx, "k", "b", 1)
		if err != nil || v != 2 {
			t.Fatalf("CAS update = %d, %v; want 2, nil", v, err)
		}
		e, _, _ := ns.Get(ctx, "k")
		if e.Value != "b" {
			t.Errorf("value = %q, want b", e.Value)
		}
	})
}

func TestNamespace_Keys(t *testing.T) {
	adapters(t, 0, func(t *testing.T, ns Namespace) {
		ctx := context.Background()
		for _, k := range []string{"guieduc:queue", "other", "guieduc:data", "guieduc_version"} {
			if err := ns.Set(ctx, k, "x"); err != nil {
				t.Fatalf("Set(%s) failed: %v", k, err)
			}
		}

		got, err := ns.Keys(ctx, "guieduc:")
		if err != nil {
			t.Fatalf("Keys() failed: %v", err)
		}
		want := []string{"guieduc:data", "guieduc:queue"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Keys(guieduc:) = %v, want %v", got, want)
		}

		all, err := ns.Keys(ctx, "")
		if err != nil {
			t.Fatalf("Keys(\"\") failed: %v", err)
		}
		if len(all) != 4 {
			t.Errorf("Keys(\"\") returned %d keys, want 4", len(all))
		}
	})
}

func TestNamespace_Quota(t *testing.T) {
	adapters(t, 64, func(t *testing.T, ns Namespace) {
		ctx := context.Background()

		if err := ns.Set(ctx, "k", strings.Repeat("a", 32)); err != nil {
			t.Fatalf("Set under quota failed: %v", err)
		}
		// Overwriting the same key only counts the new value.
		if err := ns.Set(ctx, "k", strings.Repeat("b", 60)); err != nil {
			t.Fatalf("overwrite under quota failed: %v", err)
		}
		if err := ns.Set(ctx, "k2", strings.Repeat("c", 10)); !errors.Is(err, ErrQuotaExceeded) {
			t.Errorf("Set over quota: err = %v, want ErrQuotaExceeded", err)
		}
		if _, ok, _ := ns.Get(ctx, "k2"); ok {
			t.Error("rejected write was persisted")
		}
	})
}

func TestUpdate_RetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	ns := NewMemory(0)
	if err := ns.Set(ctx, "counter", "0"); err != nil {
		t.Fatal(err)
	}

	calls := 0
	err := Update(ctx, ns, "counter", 3, func(cur string, exists bool) (string, bool, error) {
		calls++
		if calls == 1 {
			// Another writer sneaks in between our read and our write.
			_ = ns.Set(ctx, "counter", "10")
		}
		return cur + "+1", true, nil
	})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("fn called %d times, want 2", calls)
	}
	e, _, _ := ns.Get(ctx, "counter")
	if e.Value != "10+1" {
		t.Errorf("value = %q, want 10+1 (re-read after conflict)", e.Value)
	}
}

func TestUpdate_GivesUp(t *testing.T) {
	ctx := context.Background()
	ns := NewMemory(0)

	err := Update(ctx, ns, "k", 2, func(cur string, exists bool) (string, bool, error) {
		_ = ns.Set(ctx, "k", "interference")
		return "mine", true, nil
	})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
}

func TestUpdate_NoChangeSkipsWrite(t *testing.T) {
	ctx := context.Background()
	ns := NewMemory(0)

	err := Update(ctx, ns, "k", 0, func(cur string, exists bool) (string, bool, error) {
		return "", false, nil
	})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if _, ok, _ := ns.Get(ctx, "k"); ok {
		t.Error("unchanged update wrote the key")
	}
}

func TestSQLite_ConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")

	// Two handles on one file stand in for two processes.
	a, err := OpenSQLite(path, SQLiteOptions{})
	if err != nil {
		t.Fatalf("OpenSQLite(a) failed: %v", err)
	}
	defer a.Close()
	b, err := OpenSQLite(path, SQLiteOptions{})
	if err != nil {
		t.Fatalf("OpenSQLite(b) failed: %v", err)
	}
	defer b.Close()

	var wg sync.WaitGroup
	for i, ns := range []Namespace{a, b, a, b} {
		wg.Add(1)
		go func(i int, ns Namespace) {
			defer wg.Done()
			err := Update(ctx, ns, "log", 50, func(cur string, exists bool) (string, bool, error) {
				return cur + "x", true, nil
			})
			if err != nil {
				t.Errorf("writer %d: %v", i, err)
			}
		}(i, ns)
	}
	wg.Wait()

	e, _, err := a.Get(ctx, "log")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if e.Value != "xxxx" {
		t.Errorf("value = %q, want xxxx (no lost update)", e.Value)
	}
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ns.db")

	ns, err := OpenSQLite(path, SQLiteOptions{})
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	if err := ns.Set(ctx, "guieduc:data", "persisted"); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if err := ns.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	ns, err = OpenSQLite(path, SQLiteOptions{})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer ns.Close()

	e, ok, err := ns.Get(ctx, "guieduc:data")
	if err != nil || !ok || e.Value != "persisted" {
		t.Errorf("after reopen: %+v ok=%v err=%v", e, ok, err)
	}
}

func TestWatch_DetectsWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ns.db")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, 20*time.Millisecond, func() {
			changed <- struct{}{}
		})
	}()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(filepath.Dir(path), "unrelated.txt"), []byte("b"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification for namespace write")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
