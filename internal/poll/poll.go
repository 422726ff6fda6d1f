// Package poll runs the periodic background refresh that backstops the
// push channel. Polling guarantees eventual consistency within one
// interval even when the real-time path is silently broken (token
// expiry, proxy timeout, half-dead sockets).
package poll

import (
	"context"
	"sync"
	"time"
)

// DefaultInterval is how often the transcript is refreshed while the
// widget is open.
const DefaultInterval = 15 * time.Second

// Scheduler issues ticks at a fixed interval. Ticks are silent: the
// tick callback owns error handling, the scheduler never reports.
type Scheduler struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a stopped scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Start begins calling tick at the given interval until Stop is called
// or ctx is cancelled. The first tick fires after one interval, not
// immediately; the caller performs the initial load itself.
//
// Start is idempotent: calling it while running restarts cleanly
// instead of stacking intervals.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration, tick func(ctx context.Context)) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	s.mu.Lock()
	s.stopLocked()
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				tick(runCtx)
			}
		}
	}()
}

// Stop cancels the interval and waits for an in-flight tick to return.
// Safe to call when not running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
}

// Running reports whether the scheduler currently has an active interval.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}
