package poll

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestStartTicks(t *testing.T) {
	s := New()
	defer s.Stop()

	var ticks atomic.Int32
	s.Start(context.Background(), 20*time.Millisecond, func(ctx context.Context) {
		ticks.Add(1)
	})

	time.Sleep(150 * time.Millisecond)
	if got := ticks.Load(); got < 2 {
		t.Fatalf("ticks = %d, want at least 2", got)
	}
}

func TestStopCancelsTicks(t *testing.T) {
	s := New()

	var ticks atomic.Int32
	s.Start(context.Background(), 20*time.Millisecond, func(ctx context.Context) {
		ticks.Add(1)
	})
	time.Sleep(70 * time.Millisecond)
	s.Stop()
	if s.Running() {
		t.Fatal("Running should be false after Stop")
	}

	seen := ticks.Load()
	time.Sleep(100 * time.Millisecond)
	if got := ticks.Load(); got != seen {
		t.Fatalf("ticks advanced after Stop: %d -> %d", seen, got)
	}
}

func TestStartIsIdempotent(t *testing.T) {
	s := New()
	defer s.Stop()

	var first, second atomic.Int32
	s.Start(context.Background(), 20*time.Millisecond, func(ctx context.Context) {
		first.Add(1)
	})
	// Restart; the first interval must not keep ticking underneath.
	s.Start(context.Background(), 20*time.Millisecond, func(ctx context.Context) {
		second.Add(1)
	})

	time.Sleep(120 * time.Millisecond)
	s.Stop()

	if got := first.Load(); got > 1 {
		t.Fatalf("old interval still ticking after restart: %d ticks", got)
	}
	if second.Load() == 0 {
		t.Fatal("restarted interval never ticked")
	}
}

func TestStopDuringTickWaits(t *testing.T) {
	s := New()

	tickStarted := make(chan struct{})
	tickDone := make(chan struct{})
	s.Start(context.Background(), 10*time.Millisecond, func(ctx context.Context) {
		select {
		case <-tickStarted:
		default:
			close(tickStarted)
			time.Sleep(50 * time.Millisecond)
			close(tickDone)
		}
	})

	<-tickStarted
	s.Stop()
	select {
	case <-tickDone:
	default:
		t.Fatal("Stop returned before the in-flight tick completed")
	}
}

func TestContextCancelStopsTicks(t *testing.T) {
	s := New()
	defer s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	var ticks atomic.Int32
	s.Start(ctx, 20*time.Millisecond, func(ctx context.Context) {
		ticks.Add(1)
	})
	cancel()

	time.Sleep(80 * time.Millisecond)
	if got := ticks.Load(); got > 1 {
		t.Fatalf("ticks = %d after parent cancel, want at most 1", got)
	}
}
