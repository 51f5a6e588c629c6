package assets

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"testing"
)

func setupTestCache(t *testing.T) *DirCache {
	t.Helper()
	return NewDirCache(filepath.Join(t.TempDir(), "assets"), log.New(io.Discard, "", 0))
}

func TestDirCache_PutGetClear(t *testing.T) {
	ctx := context.Background()
	c := setupTestCache(t)

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear() on missing dir failed: %v", err)
	}

	if err := c.Put("reports/chamada.tmpl", []byte("{{.Nome}}")); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	data, ok, err := c.Get("reports/chamada.tmpl")
	if err != nil || !ok || string(data) != "{{.Nome}}" {
		t.Fatalf("Get() = %q ok=%v err=%v", data, ok, err)
	}

	if err := c.Refresh(ctx, "1.2.0"); err != nil {
		t.Fatalf("Refresh() failed: %v", err)
	}
	if v, _ := c.Version(); v != "1.2.0" {
		t.Errorf("Version() = %q, want 1.2.0", v)
	}

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear() failed: %v", err)
	}
	if _, ok, _ := c.Get("reports/chamada.tmpl"); ok {
		t.Error("entry survived Clear")
	}
	if v, _ := c.Version(); v != "" {
		t.Errorf("Version() after Clear = %q, want empty", v)
	}
}

func TestDirCache_RejectsEscapingNames(t *testing.T) {
	c := setupTestCache(t)
	for _, name := range []string{"../x", "/etc/passwd", ""} {
		if err := c.Put(name, nil); err == nil {
			t.Errorf("Put(%q) succeeded, want error", name)
		}
	}
}
