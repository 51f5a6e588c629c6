package gesture

import (
	"testing"
	"time"
)

// fakeTimer is fired by hand.
type fakeTimer struct {
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type harness struct {
	now     time.Time
	timers  []*fakeTimer
	long    int
	taps    int
	doubles int
}

func newHarness() (*harness, *Detector) {
	h := &harness{now: time.Unix(1_700_000_000, 0)}
	d := New(Config{
		LongPress:       500 * time.Millisecond,
		DoubleTapWindow: 300 * time.Millisecond,
		OnLongPress:     func() { h.long++ },
		OnTap:           func() { h.taps++ },
		OnDoubleTap:     func() { h.doubles++ },
		AfterFunc: func(d time.Duration, f func()) Timer {
			t := &fakeTimer{f: f}
			h.timers = append(h.timers, t)
			return t
		},
		Now: func() time.Time { return h.now },
	})
	return h, d
}

// fire runs the most recent timer the way time.AfterFunc would, even if it
// was stopped too late.
func (h *harness) fire() {
	h.timers[len(h.timers)-1].f()
}

func TestLongPress(t *testing.T) {
	h, d := newHarness()

	d.Press()
	if d.State() != Pressing {
		t.Fatalf("state = %s, want pressing", d.State())
	}
	h.fire()
	if d.State() != LongPressFired || h.long != 1 {
		t.Fatalf("state = %s long = %d", d.State(), h.long)
	}

	d.Release()
	if d.State() != Idle || h.taps != 0 {
		t.Errorf("release after long press: state = %s taps = %d", d.State(), h.taps)
	}
}

func TestTapCancelsTimer(t *testing.T) {
	h, d := newHarness()

	d.Press()
	d.Release()
	if h.taps != 1 || d.State() != Released {
		t.Fatalf("taps = %d state = %s", h.taps, d.State())
	}
	if !h.timers[0].stopped {
		t.Error("timer not stopped on release")
	}

	// A stale fire after release must not count as a long press.
	h.fire()
	if h.long != 0 {
		t.Error("stale timer fired a long press")
	}
}

func TestDoubleTap(t *testing.T) {
	h, d := newHarness()

	d.Press()
	d.Release()
	h.now = h.now.Add(200 * time.Millisecond)
	d.Press()
	d.Release()
	if h.doubles != 1 || h.taps != 1 {
		t.Fatalf("doubles = %d taps = %d, want 1 and 1", h.doubles, h.taps)
	}

	// A third quick tap starts a new pair instead of another double.
	h.now = h.now.Add(100 * time.Millisecond)
	d.Press()
	d.Release()
	if h.doubles != 1 || h.taps != 2 {
		t.Errorf("after third tap doubles = %d taps = %d", h.doubles, h.taps)
	}
}

func TestSlowTapsAreSingles(t *testing.T) {
	h, d := newHarness()

	d.Press()
	d.Release()
	h.now = h.now.Add(time.Second)
	d.Press()
	d.Release()
	if h.doubles != 0 || h.taps != 2 {
		t.Errorf("doubles = %d taps = %d", h.doubles, h.taps)
	}
}

func TestStaleTimerFromEarlierPress(t *testing.T) {
	h, d := newHarness()

	d.Press()
	d.Release()
	d.Press()
	// The first press's timer fires late; only the current one counts.
	h.timers[0].f()
	if h.long != 0 || d.State() != Pressing {
		t.Errorf("long = %d state = %s", h.long, d.State())
	}
	h.fire()
	if h.long != 1 {
		t.Errorf("long = %d, want 1", h.long)
	}
}

func TestCancel(t *testing.T) {
	h, d := newHarness()

	d.Press()
	d.Cancel()
	h.fire()
	d.Release()
	if h.long != 0 || h.taps != 0 || d.State() != Idle {
		t.Errorf("long = %d taps = %d state = %s", h.long, h.taps, d.State())
	}
}

func TestRealTimer(t *testing.T) {
	fired := make(chan struct{})
	d := New(Config{LongPress: 10 * time.Millisecond, OnLongPress: func() { close(fired) }})

	d.Press()
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("long press never fired")
	}
	d.Release()
}
