package loadtest

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestRun_NoLostUpdates(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping load test in short mode")
	}
	ctx := context.Background()
	cfg := DefaultConfig(t.TempDir())
	cfg.Tabs = 4
	cfg.OpsPerTab = 10

	rep, err := Run(ctx, cfg)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if rep.Latency.Errors != 0 {
		t.Errorf("%d operations failed", rep.Latency.Errors)
	}
	if rep.Expected != cfg.Tabs*cfg.OpsPerTab {
		t.Errorf("added %d alunos, want %d", rep.Expected, cfg.Tabs*cfg.OpsPerTab)
	}
	// turma + chamada + one create per aluno, plus presenca updates.
	if rep.Events < 2+rep.Expected {
		t.Errorf("queued %d events, want at least %d", rep.Events, 2+rep.Expected)
	}
	if err := Verify(ctx, cfg, rep); err != nil {
		t.Errorf("Verify() failed: %v", err)
	}
}

func TestVerify_DetectsLostUpdates(t *testing.T) {
	err := Verify(context.Background(), DefaultConfig(t.TempDir()), &Report{Alunos: 9, Expected: 10})
	if err == nil || !strings.Contains(err.Error(), "lost updates") {
		t.Errorf("Verify() = %v, want lost updates error", err)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.Tabs = 0
	if _, err := Run(context.Background(), cfg); err == nil {
		t.Error("Run() with zero tabs succeeded")
	}
}

func TestComputeLatencyStats(t *testing.T) {
	var durations []time.Duration
	for i := 100; i >= 1; i-- {
		durations = append(durations, time.Duration(i)*time.Millisecond)
	}

	stats := computeLatencyStats(durations)
	if stats.Min != time.Millisecond || stats.Max != 100*time.Millisecond {
		t.Errorf("min/max = %v/%v", stats.Min, stats.Max)
	}
	if stats.P50 != 51*time.Millisecond || stats.P95 != 96*time.Millisecond || stats.P99 != 100*time.Millisecond {
		t.Errorf("percentiles = %v/%v/%v", stats.P50, stats.P95, stats.P99)
	}
	if stats.Mean != 50500*time.Microsecond {
		t.Errorf("mean = %v", stats.Mean)
	}
	if durations[0] != 100*time.Millisecond {
		t.Error("input slice was reordered")
	}

	if (computeLatencyStats(nil) != LatencyStats{}) {
		t.Error("empty input should give zero stats")
	}
}

func TestReport_Print(t *testing.T) {
	var buf bytes.Buffer
	(&Report{Alunos: 3, Expected: 3, Events: 5}).Print(&buf)
	if !strings.Contains(buf.String(), "3 alunos (3 added), 5 events queued") {
		t.Errorf("output = %q", buf.String())
	}
}
