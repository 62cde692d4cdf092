package flood

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestLoopStopWaitsForInFlightStep(t *testing.T) {
	var steps, inStep atomic.Int32
	l := NewLoop(time.Millisecond, func() {
		inStep.Store(1)
		time.Sleep(3 * time.Millisecond)
		steps.Add(1)
		inStep.Store(0)
	})
	if !l.Start() {
		t.Fatal("first start should arm the loop")
	}
	if l.Start() {
		t.Fatal("second start should report the loop already running")
	}
	deadline := time.Now().Add(2 * time.Second)
	for steps.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	l.Stop()
	if inStep.Load() != 0 {
		t.Fatal("stop returned while a step was still running")
	}
	after := steps.Load()
	if after < 3 {
		t.Fatalf("expected at least 3 steps, got %d", after)
	}
	time.Sleep(20 * time.Millisecond)
	if steps.Load() != after {
		t.Fatal("loop kept stepping after stop")
	}
	l.Stop()
	if l.Running() {
		t.Fatal("loop should report stopped")
	}
}

func TestLoopCoalescesLateTicks(t *testing.T) {
	var steps atomic.Int32
	l := NewLoop(time.Millisecond, func() {
		steps.Add(1)
		time.Sleep(20 * time.Millisecond)
	})
	l.Start()
	time.Sleep(100 * time.Millisecond)
	l.Stop()
	// A 20ms step against a 1ms ticker must not queue up a backlog.
	if n := steps.Load(); n > 8 {
		t.Fatalf("expected late ticks to be dropped, ran %d steps in 100ms", n)
	}
}
