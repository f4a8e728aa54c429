package shim

import (
	"context"
	"errors"

	"github.com/trly/systemd-shim/internal/activity"
	"github.com/trly/systemd-shim/internal/log"
)

// ErrStopped is returned for work submitted after the loop has exited.
var ErrStopped = errors.New("event loop stopped")

type request struct {
	fn   func(ctx context.Context)
	done chan struct{}
}

// Loop runs handlers one at a time on a single goroutine. The bus library
// calls handlers concurrently; funnelling them through the loop keeps the
// backends, the shutdown flag and the idle timer single-owner.
type Loop struct {
	requests chan request
	stopped  chan struct{}
	tracker  *activity.Tracker
	logger   log.Logger
}

// NewLoop creates a Loop that reports activity to tracker.
func NewLoop(tracker *activity.Tracker, logger log.Logger) *Loop {
	return &Loop{
		requests: make(chan request),
		stopped:  make(chan struct{}),
		tracker:  tracker,
		logger:   logger,
	}
}

// Do runs fn on the loop and waits for it to finish. The activity tracker
// has been touched by the time Do returns.
func (l *Loop) Do(ctx context.Context, fn func(ctx context.Context)) error {
	req := request{fn: fn, done: make(chan struct{})}

	select {
	case l.requests <- req:
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	<-req.done
	return nil
}

// Run processes requests until the idle timer expires outside of a
// shutdown, in which case it returns nil, or until ctx is cancelled. The
// timer is armed on entry so that an activation without any request still
// ends. Run must be called once.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.stopped)

	l.tracker.Touch()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case req := <-l.requests:
			req.fn(ctx)
			l.tracker.Touch()
			close(req.done)

		case <-l.tracker.C():
			if l.tracker.Expired() {
				l.logger.Info("Exiting after inactivity")
				return nil
			}
			l.logger.Debug("Inactivity timer expired during shutdown, staying up")
		}
	}
}
