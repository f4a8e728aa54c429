// Package activity decides when the daemon has been idle long enough to exit.
package activity

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Tracker holds the single inactivity timer. It is not safe for concurrent
// use; the event loop owns it.
type Tracker struct {
	clock      clock.Clock
	window     time.Duration
	inShutdown func() bool

	timer *clock.Timer
}

// New creates an unarmed Tracker. inShutdown is consulted on expiry.
func New(clk clock.Clock, window time.Duration, inShutdown func() bool) *Tracker {
	return &Tracker{
		clock:      clk,
		window:     window,
		inShutdown: inShutdown,
	}
}

// Touch records activity, replacing any pending expiry with a fresh one.
func (t *Tracker) Touch() {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = t.clock.Timer(t.window)
}

// C delivers the expiry of the current window. It is nil while unarmed so
// that a select on it blocks.
func (t *Tracker) C() <-chan time.Time {
	if t.timer == nil {
		return nil
	}
	return t.timer.C
}

// Expired handles a fired timer and reports whether the daemon should exit.
// The tracker stays unarmed until the next Touch.
func (t *Tracker) Expired() bool {
	t.timer = nil
	return !t.inShutdown()
}
