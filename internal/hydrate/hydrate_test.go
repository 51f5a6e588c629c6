package hydrate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/guieduc/guieduc/internal/kv"
	"github.com/guieduc/guieduc/internal/replay"
	"github.com/guieduc/guieduc/internal/schema"
	"github.com/guieduc/guieduc/internal/store"
)

type fakePuller struct {
	events []schema.Event
	err    error
	calls  int
}

func (p *fakePuller) Pull(ctx context.Context) ([]schema.Event, error) {
	p.calls++
	return p.events, p.err
}

var quiet = log.New(io.Discard, "", 0)

func setup(t *testing.T, ns kv.Namespace, puller *fakePuller) (*Bootstrapper, *store.Store) {
	t.Helper()

	st := store.New(ns, &store.Config{Logger: quiet})
	return New(st, puller, replay.New(st, quiet), quiet), st
}

func history() []schema.Event {
	return []schema.Event{
		{ID: "1", Entity: schema.EntityTurma, Op: schema.OpCreate, Payload: json.RawMessage(`{"id":"T","nome":"9º ano"}`), TS: 1},
		{ID: "2", Entity: schema.EntityAluno, Op: schema.OpCreate, Payload: json.RawMessage(`{"id":"A","nome":"Ana","turmaId":"T"}`), TS: 2},
	}
}

func TestRun_HydratesEmptyStore(t *testing.T) {
	ctx := context.Background()
	puller := &fakePuller{events: history()}
	b, st := setup(t, kv.NewMemory(0), puller)

	res, err := b.Run(ctx)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if res.Skipped || res.Pulled != 2 || res.Replayed.Applied != 2 {
		t.Errorf("result = %+v", res)
	}
	alunos, _ := st.ListAlunos(ctx, "T")
	if len(alunos) != 1 || alunos[0].Nome != "Ana" {
		t.Errorf("alunos = %+v", alunos)
	}

	// Second start: data exists, no pull.
	res, err = b.Run(ctx)
	if err != nil || !res.Skipped {
		t.Errorf("second Run() = %+v, %v; want skipped", res, err)
	}
	if puller.calls != 1 {
		t.Errorf("pulled %d times, want 1", puller.calls)
	}
}

func TestRun_NeverMerges(t *testing.T) {
	ctx := context.Background()
	puller := &fakePuller{events: history()}
	b, st := setup(t, kv.NewMemory(0), puller)

	if _, err := st.AddTurma(ctx, "Local"); err != nil {
		t.Fatal(err)
	}
	res, err := b.Run(ctx)
	if err != nil || !res.Skipped {
		t.Fatalf("Run() = %+v, %v; want skipped", res, err)
	}
	if puller.calls != 0 {
		t.Error("pulled although local data exists")
	}
}

func TestRun_PullFailureSwallowed(t *testing.T) {
	ctx := context.Background()
	b, st := setup(t, kv.NewMemory(0), &fakePuller{err: errors.New("connection refused")})

	res, err := b.Run(ctx)
	if err != nil {
		t.Fatalf("Run() returned %v, want nil", err)
	}
	if res.Pulled != 0 {
		t.Errorf("result = %+v", res)
	}
	if ok, _ := st.Exists(ctx); ok {
		t.Error("failed hydration wrote the data blob")
	}
}

func TestRun_EmptyPullRetriedNextStart(t *testing.T) {
	ctx := context.Background()
	puller := &fakePuller{}
	b, _ := setup(t, kv.NewMemory(0), puller)

	b.Run(ctx)
	puller.events = history()
	res, _ := b.Run(ctx)
	if res.Pulled != 2 || puller.calls != 2 {
		t.Errorf("result = %+v after %d pulls, want hydration on second start", res, puller.calls)
	}
}

func TestRun_QuotaPropagates(t *testing.T) {
	b, _ := setup(t, kv.NewMemory(10), &fakePuller{events: history()})

	if _, err := b.Run(context.Background()); !errors.Is(err, kv.ErrQuotaExceeded) {
		t.Errorf("err = %v, want kv.ErrQuotaExceeded", err)
	}
}
