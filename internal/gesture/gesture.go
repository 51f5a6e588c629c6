// Package gesture detects long presses and double taps from raw press and
// release signals, independent of any UI toolkit.
//
//	Idle ──Press──> Pressing ──timer──> LongPressFired ──Release──> Idle
//	                   │
//	                   └──Release──> Released (tap, or double tap when the
//	                                 previous tap was within the window)
package gesture

import (
	"sync"
	"time"
)

// State is the detector state.
type State int

const (
	Idle State = iota
	Pressing
	LongPressFired
	Released
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pressing:
		return "pressing"
	case LongPressFired:
		return "long-press"
	case Released:
		return "released"
	}
	return "unknown"
}

// Timer is the part of *time.Timer the detector uses.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d, like time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

// Config configures a Detector.
type Config struct {
	LongPress       time.Duration // default 600ms
	DoubleTapWindow time.Duration // default 300ms

	OnLongPress func()
	OnTap       func()
	OnDoubleTap func()

	// AfterFunc and Now default to the time package.
	AfterFunc AfterFunc
	Now       func() time.Time
}

// Detector is safe for concurrent use. Callbacks run without the lock
// held, on the goroutine that triggered them (the timer's for long press).
type Detector struct {
	cfg Config

	mu          sync.Mutex
	state       State
	timer       Timer
	generation  uint64
	lastRelease time.Time
}

// New creates a Detector.
func New(cfg Config) *Detector {
	if cfg.LongPress <= 0 {
		cfg.LongPress = 600 * time.Millisecond
	}
	if cfg.DoubleTapWindow <= 0 {
		cfg.DoubleTapWindow = 300 * time.Millisecond
	}
	if cfg.AfterFunc == nil {
		cfg.AfterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Detector{cfg: cfg}
}

// State returns the current state.
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Press starts a press. A press while already pressing is ignored.
func (d *Detector) Press() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == Pressing {
		return
	}
	d.state = Pressing
	d.generation++
	gen := d.generation
	d.timer = d.cfg.AfterFunc(d.cfg.LongPress, func() { d.fire(gen) })
}

func (d *Detector) fire(gen uint64) {
	d.mu.Lock()
	if d.state != Pressing || d.generation != gen {
		d.mu.Unlock()
		return
	}
	d.state = LongPressFired
	d.timer = nil
	d.lastRelease = time.Time{}
	d.mu.Unlock()

	call(d.cfg.OnLongPress)
}

// Release ends a press. Releasing after a long press fired only returns to
// Idle; it is not a tap.
func (d *Detector) Release() {
	d.mu.Lock()

	switch d.state {
	case LongPressFired:
		d.state = Idle
		d.mu.Unlock()
		return
	case Pressing:
	default:
		d.mu.Unlock()
		return
	}

	d.stopTimer()
	d.state = Released
	now := d.cfg.Now()
	double := !d.lastRelease.IsZero() && now.Sub(d.lastRelease) <= d.cfg.DoubleTapWindow
	if double {
		d.lastRelease = time.Time{}
	} else {
		d.lastRelease = now
	}
	d.mu.Unlock()

	if double {
		call(d.cfg.OnDoubleTap)
	} else {
		call(d.cfg.OnTap)
	}
}

// Cancel abandons a press without firing anything.
func (d *Detector) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopTimer()
	d.state = Idle
	d.lastRelease = time.Time{}
}

// stopTimer must be called with mu held.
func (d *Detector) stopTimer() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.generation++
}

func call(f func()) {
	if f != nil {
		f()
	}
}
