package guard

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/guieduc/guieduc/internal/kv"
	"github.com/guieduc/guieduc/internal/schema"
)

type fakeAssets struct {
	cleared   int
	refreshed []string
	err       error
}

func (f *fakeAssets) Clear(ctx context.Context) error {
	f.cleared++
	return f.err
}

func (f *fakeAssets) Refresh(ctx context.Context, version string) error {
	f.refreshed = append(f.refreshed, version)
	return f.err
}

func newTestGuard(ns kv.Namespace, version, schemaVersion string, assets AssetCache) *Guard {
	return New(ns, &Config{
		Version: version,
		Schema:  schemaVersion,
		Assets:  assets,
		Now:     func() schema.Millis { return 42 },
		Logger:  log.New(io.Discard, "", 0),
	})
}

func seed(t *testing.T, ns kv.Namespace, pairs map[string]string) {
	t.Helper()
	for k, v := range pairs {
		if err := ns.Set(context.Background(), k, v); err != nil {
			t.Fatalf("Set(%s) failed: %v", k, err)
		}
	}
}

func TestRun_SchemaChangeWipesWithBackup(t *testing.T) {
	ctx := context.Background()
	ns := kv.NewMemory(0)
	seed(t, ns, map[string]string{
		schema.VersionKey:  "1.0.0",
		schema.SchemaKey:   "1",
		schema.DataKey:     `{"turmas":[{"id":"T"}]}`,
		schema.QueueKey:    `[]`,
		"guieduc:alunos":   `[{"id":"A"}]`,
		"unrelated:config": "keep me",
	})

	res, err := newTestGuard(ns, "1.0.0", "2", nil).Run(ctx)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if !res.SchemaChanged || res.VersionChanged || !res.Reload || res.BackedUp != 3 {
		t.Errorf("result = %+v", res)
	}

	left, _ := ns.Keys(ctx, schema.KeyPrefix)
	if len(left) != 0 {
		t.Errorf("application keys left after wipe: %v", left)
	}
	if e, ok, _ := ns.Get(ctx, "unrelated:config"); !ok || e.Value != "keep me" {
		t.Error("key outside the application prefix was touched")
	}
	if e, _, _ := ns.Get(ctx, schema.SchemaKey); e.Value != "2" {
		t.Errorf("schema marker = %q, want 2", e.Value)
	}

	b, ok, err := LoadBackup(ctx, ns)
	if err != nil || !ok {
		t.Fatalf("LoadBackup() = ok %v, err %v", ok, err)
	}
	if b.FromSchema != "1" || b.ToSchema != "2" || b.CreatedAt != 42 {
		t.Errorf("backup header = %+v", b)
	}
	want := map[string]string{
		schema.DataKey:   `{"turmas":[{"id":"T"}]}`,
		schema.QueueKey:  `[]`,
		"guieduc:alunos": `[{"id":"A"}]`,
	}
	if len(b.Data) != len(want) {
		t.Errorf("backup has %d keys, want %d", len(b.Data), len(want))
	}
	for k, v := range want {
		if b.Data[k] != v {
			t.Errorf("backup[%s] = %q, want %q", k, b.Data[k], v)
		}
	}
}

func TestRun_VersionChangeKeepsData(t *testing.T) {
	ctx := context.Background()
	ns := kv.NewMemory(0)
	seed(t, ns, map[string]string{
		schema.VersionKey: "1.0.0",
		schema.SchemaKey:  "2",
		schema.DataKey:    "{}",
	})
	assets := &fakeAssets{}

	res, err := newTestGuard(ns, "1.1.0", "2", assets).Run(ctx)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if !res.VersionChanged || res.SchemaChanged || !res.Reload || res.PreviousVersion != "1.0.0" {
		t.Errorf("result = %+v", res)
	}
	if assets.cleared != 1 || len(assets.refreshed) != 1 || assets.refreshed[0] != "1.1.0" {
		t.Errorf("assets = %+v", assets)
	}
	if _, ok, _ := ns.Get(ctx, schema.DataKey); !ok {
		t.Error("data removed on a plain version change")
	}
	if e, _, _ := ns.Get(ctx, schema.VersionKey); e.Value != "1.1.0" {
		t.Errorf("version marker = %q", e.Value)
	}
}

func TestRun_NoChangeIsNoop(t *testing.T) {
	ctx := context.Background()
	ns := kv.NewMemory(0)
	seed(t, ns, map[string]string{
		schema.VersionKey: "1.0.0",
		schema.SchemaKey:  "2",
		schema.DataKey:    "{}",
	})
	before, _, _ := ns.Get(ctx, schema.VersionKey)
	assets := &fakeAssets{}

	res, err := newTestGuard(ns, "1.0.0", "2", assets).Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res != (Result{}) {
		t.Errorf("result = %+v, want zero", res)
	}
	if assets.cleared != 0 {
		t.Error("assets cleared without a version change")
	}
	after, _, _ := ns.Get(ctx, schema.VersionKey)
	if before.Version != after.Version {
		t.Error("version marker rewritten")
	}
}

func TestRun_FirstRun(t *testing.T) {
	ctx := context.Background()
	ns := kv.NewMemory(0)

	res, err := newTestGuard(ns, "1.0.0", "2", nil).Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !res.VersionChanged || !res.SchemaChanged || res.BackedUp != 0 {
		t.Errorf("result = %+v", res)
	}
	if _, ok, _ := ns.Get(ctx, schema.BackupKey); ok {
		t.Error("backup written with nothing to back up")
	}

	// Second start is quiet.
	res, _ = newTestGuard(ns, "1.0.0", "2", nil).Run(ctx)
	if res.Reload {
		t.Error("second run asked for reload")
	}
}

func TestRun_AssetErrorsAreNotFatal(t *testing.T) {
	ns := kv.NewMemory(0)
	seed(t, ns, map[string]string{schema.SchemaKey: "2"})

	_, err := newTestGuard(ns, "2.0.0", "2", &fakeAssets{err: errors.New("disk gone")}).Run(context.Background())
	if err != nil {
		t.Errorf("Run() = %v, want nil", err)
	}
}

func TestRun_BackupFailureKeepsData(t *testing.T) {
	ctx := context.Background()
	// Room for the data but not for a second copy of it.
	ns := kv.NewMemory(120)
	seed(t, ns, map[string]string{
		schema.SchemaKey: "1",
		schema.DataKey:   `{"turmas":[{"id":"T","nome":"uma turma com nome comprido"}]}`,
	})

	_, err := newTestGuard(ns, "1.0.0", "2", nil).Run(ctx)
	if !errors.Is(err, kv.ErrQuotaExceeded) {
		t.Fatalf("err = %v, want kv.ErrQuotaExceeded", err)
	}
	if _, ok, _ := ns.Get(ctx, schema.DataKey); !ok {
		t.Error("data deleted although the backup failed")
	}
}

func TestRestoreBackup(t *testing.T) {
	ctx := context.Background()
	ns := kv.NewMemory(0)
	seed(t, ns, map[string]string{
		schema.SchemaKey: "1",
		schema.DataKey:   `{"old":true}`,
	})
	if _, err := newTestGuard(ns, "1.0.0", "2", nil).Run(ctx); err != nil {
		t.Fatal(err)
	}

	n, err := RestoreBackup(ctx, ns)
	if err != nil || n != 1 {
		t.Fatalf("RestoreBackup() = %d, %v", n, err)
	}
	if e, _, _ := ns.Get(ctx, schema.DataKey); e.Value != `{"old":true}` {
		t.Errorf("restored value = %q", e.Value)
	}

	if _, err := RestoreBackup(ctx, kv.NewMemory(0)); err == nil {
		t.Error("RestoreBackup() without backup succeeded")
	}
}

func TestDescribeChange(t *testing.T) {
	tests := []struct {
		from, to, want string
	}{
		{"", "1.0.0", "first run"},
		{"1.0.0", "1.1.0", "upgrade"},
		{"v2.0.0", "1.9.9", "downgrade"},
		{"1.0.0", "v1.0.0", "rebuild"},
		{"2024-05-01", "2024-06-01", "non-semver"},
	}
	for _, tt := range tests {
		if got := describeChange(tt.from, tt.to); got != tt.want {
			t.Errorf("describeChange(%q, %q) = %q, want %q", tt.from, tt.to, got, tt.want)
		}
	}
}
