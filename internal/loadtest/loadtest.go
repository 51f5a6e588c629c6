// Package loadtest simulates several browser tabs writing to one namespace
// at the same time.
//
// Each tab is a separate SQLite handle on the same file with its own store,
// queue and service, like separate processes would have. Tabs add alunos
// and mark presencas concurrently; afterwards Verify checks that no write
// was lost and that replaying the event queue reproduces the store.
package loadtest

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/guieduc/guieduc/internal/classroom"
	"github.com/guieduc/guieduc/internal/eventlog"
	"github.com/guieduc/guieduc/internal/kv"
	"github.com/guieduc/guieduc/internal/replay"
	"github.com/guieduc/guieduc/internal/schema"
	"github.com/guieduc/guieduc/internal/store"
)

// Config describes one run.
type Config struct {
	Dir          string // directory for the namespace file
	Tabs         int    // concurrent writers
	OpsPerTab    int    // alunos each tab adds
	MaxAttempts  int    // CAS attempts per mutation
	PresencaRate float64

	Logger *log.Logger
}

// DefaultConfig returns a small run.
func DefaultConfig(dir string) *Config {
	return &Config{
		Dir:          dir,
		Tabs:         8,
		OpsPerTab:    25,
		MaxAttempts:  200,
		PresencaRate: 0.5,
		Logger:       log.New(io.Discard, "", 0),
	}
}

// LatencyStats captures per-operation latency.
type LatencyStats struct {
	Min        time.Duration `json:"min_ns"`
	Max        time.Duration `json:"max_ns"`
	Mean       time.Duration `json:"mean_ns"`
	P50        time.Duration `json:"p50_ns"`
	P95        time.Duration `json:"p95_ns"`
	P99        time.Duration `json:"p99_ns"`
	Operations int           `json:"operations"`
	Errors     int           `json:"errors"`
}

// Report is the outcome of Run.
type Report struct {
	Latency  LatencyStats  `json:"latency"`
	Elapsed  time.Duration `json:"elapsed_ns"`
	Alunos   int           `json:"alunos"`   // alunos in the final state
	Expected int           `json:"expected"` // alunos the tabs added without error
	Events   int           `json:"events"`   // events left in the queue
}

type tab struct {
	ns  *kv.SQLite
	svc *classroom.Service
}

// Run performs the load and returns the report. The namespace file is
// left in cfg.Dir for inspection.
func Run(ctx context.Context, cfg *Config) (*Report, error) {
	if cfg.Tabs <= 0 || cfg.OpsPerTab <= 0 {
		return nil, fmt.Errorf("tabs and ops must be positive")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	path := filepath.Join(cfg.Dir, "loadtest.db")

	tabs := make([]*tab, cfg.Tabs)
	for i := range tabs {
		ns, err := kv.OpenSQLite(path, kv.SQLiteOptions{})
		if err != nil {
			closeTabs(tabs)
			return nil, fmt.Errorf("failed to open tab %d: %w", i, err)
		}
		st := store.New(ns, &store.Config{MaxAttempts: cfg.MaxAttempts, Logger: cfg.Logger})
		q := eventlog.New(ns, &eventlog.Config{MaxAttempts: cfg.MaxAttempts, Logger: cfg.Logger})
		tabs[i] = &tab{ns: ns, svc: classroom.New(st, q, cfg.Logger)}
	}
	defer closeTabs(tabs)

	turma, err := tabs[0].svc.AddTurma(ctx, "Carga")
	if err != nil {
		return nil, err
	}
	chamada, err := tabs[0].svc.AddChamada(ctx, turma.ID, "", 0)
	if err != nil {
		return nil, err
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		durations []time.Duration
		errCount  int
		added     int
	)
	start := time.Now()
	for i, tb := range tabs {
		wg.Add(1)
		go func(id int, tb *tab) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(uint64(id), 42))

			local := make([]time.Duration, 0, cfg.OpsPerTab)
			var localErrs, localAdded int
			for j := 0; j < cfg.OpsPerTab && ctx.Err() == nil; j++ {
				t0 := time.Now()
				a, err := tb.svc.AddAluno(ctx, turma.ID, fmt.Sprintf("Aluno %02d-%03d", id, j))
				if err == nil {
					localAdded++
					if rng.Float64() < cfg.PresencaRate {
						_, _, err = tb.svc.SetPresenca(ctx, turma.ID, chamada.ID, a.ID, true)
					}
				}
				local = append(local, time.Since(t0))
				if err != nil {
					localErrs++
					cfg.Logger.Printf("tab %d op %d: %v", id, j, err)
				}
			}

			mu.Lock()
			durations = append(durations, local...)
			errCount += localErrs
			added += localAdded
			mu.Unlock()
		}(i, tb)
	}
	wg.Wait()

	rep := &Report{
		Latency:  computeLatencyStats(durations),
		Elapsed:  time.Since(start),
		Expected: added,
	}
	rep.Latency.Errors = errCount

	alunos, err := tabs[0].svc.Store().ListAlunos(ctx, turma.ID)
	if err != nil {
		return nil, err
	}
	rep.Alunos = len(alunos)
	if rep.Events, err = tabs[0].svc.Queue().Len(ctx); err != nil {
		return nil, err
	}
	return rep, nil
}

// Verify checks the namespace Run left behind: every aluno a tab added is
// there, and replaying the queue into an empty store gives the same
// turmas, alunos and chamada ids. Presencas are not compared: each event
// carries the whole chamada, so two tabs marking at once can reach the
// queue in the opposite order from the store.
func Verify(ctx context.Context, cfg *Config, rep *Report) error {
	if rep.Alunos != rep.Expected {
		return fmt.Errorf("lost updates: %d alunos stored, %d added", rep.Alunos, rep.Expected)
	}

	ns, err := kv.OpenSQLite(filepath.Join(cfg.Dir, "loadtest.db"), kv.SQLiteOptions{})
	if err != nil {
		return err
	}
	defer ns.Close()

	quiet := log.New(io.Discard, "", 0)
	st := store.New(ns, &store.Config{Logger: quiet})
	events, err := eventlog.New(ns, &eventlog.Config{Logger: quiet}).Pending(ctx)
	if err != nil {
		return err
	}

	fresh := store.New(kv.NewMemory(0), &store.Config{Logger: quiet})
	if _, err := replay.New(fresh, quiet).ApplyEvents(ctx, events); err != nil {
		return err
	}

	want, _, err := st.Load(ctx)
	if err != nil {
		return err
	}
	got, _, err := fresh.Load(ctx)
	if err != nil {
		return err
	}
	if !sameRecords(want, got) {
		return fmt.Errorf("replaying %d queued events does not reproduce the store", len(events))
	}
	return nil
}

// sameRecords compares the synced part of two states, ignoring order.
func sameRecords(a, b *store.State) bool {
	byID := func(x, y schema.Aluno) int { return strings.Compare(x.ID, y.ID) }
	if !reflect.DeepEqual(a.Turmas, b.Turmas) || len(a.Alunos) != len(b.Alunos) {
		return false
	}
	for turmaID, list := range a.Alunos {
		x, y := slices.Clone(list), slices.Clone(b.Alunos[turmaID])
		slices.SortFunc(x, byID)
		slices.SortFunc(y, byID)
		if !reflect.DeepEqual(x, y) {
			return false
		}
	}
	return slices.Equal(chamadaIDs(a), chamadaIDs(b))
}

func chamadaIDs(st *store.State) []string {
	var ids []string
	for _, list := range st.Chamadas {
		for _, c := range list {
			ids = append(ids, c.ID)
		}
	}
	slices.Sort(ids)
	return ids
}

func closeTabs(tabs []*tab) {
	for _, tb := range tabs {
		if tb != nil {
			_ = tb.ns.Close()
		}
	}
}

func computeLatencyStats(durations []time.Duration) LatencyStats {
	if len(durations) == 0 {
		return LatencyStats{}
	}

	sorted := slices.Clone(durations)
	slices.Sort(sorted)

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}

	return LatencyStats{
		Min:        sorted[0],
		Max:        sorted[len(sorted)-1],
		Mean:       sum / time.Duration(len(sorted)),
		P50:        sorted[len(sorted)*50/100],
		P95:        sorted[len(sorted)*95/100],
		P99:        sorted[len(sorted)*99/100],
		Operations: len(sorted),
	}
}

// Print writes the report in the format of the load test command.
func (r *Report) Print(w io.Writer) {
	fmt.Fprintf(w, "Latency Statistics:\n")
	fmt.Fprintf(w, "  Operations:    %d\n", r.Latency.Operations)
	fmt.Fprintf(w, "  Errors:        %d\n", r.Latency.Errors)
	fmt.Fprintf(w, "  Min:           %v\n", r.Latency.Min)
	fmt.Fprintf(w, "  P50 (Median):  %v\n", r.Latency.P50)
	fmt.Fprintf(w, "  Mean:          %v\n", r.Latency.Mean)
	fmt.Fprintf(w, "  P95:           %v\n", r.Latency.P95)
	fmt.Fprintf(w, "  P99:           %v\n", r.Latency.P99)
	fmt.Fprintf(w, "  Max:           %v\n", r.Latency.Max)
	fmt.Fprintf(w, "Elapsed %v, %d alunos (%d added), %d events queued\n",
		r.Elapsed.Round(time.Millisecond), r.Alunos, r.Expected, r.Events)
}
