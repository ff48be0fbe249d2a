package clock

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestTimerTicksAtInterval(t *testing.T) {
	tm := New(10 * time.Millisecond)
	var ticks int64

	ctx, cancel := context.WithCancel(context.Background())
	go tm.Run(ctx, func(ctx context.Context) {
		atomic.AddInt64(&ticks, 1)
	})

	time.Sleep(55 * time.Millisecond)
	cancel()
	time.Sleep(15 * time.Millisecond)

	got := atomic.LoadInt64(&ticks)
	if got < 3 || got > 8 {
		t.Fatalf("expected roughly 3-8 ticks in 55ms at 10ms interval, got %d", got)
	}
}

func TestTimerNoCatchUpBurst(t *testing.T) {
	tm := New(10 * time.Millisecond)
	var ticks int64

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go tm.Run(ctx, func(ctx context.Context) {
		atomic.AddInt64(&ticks, 1)
		time.Sleep(40 * time.Millisecond)
	})

	time.Sleep(35 * time.Millisecond)
	got := atomic.LoadInt64(&ticks)
	if got > 1 {
		t.Fatalf("expected at most 1 tick while fn is still overrunning the interval, got %d", got)
	}
}
