package engine

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestClockDeliversTicks(t *testing.T) {
	var ticks atomic.Int64
	c := NewClock(time.Millisecond, func() { ticks.Add(1) })

	c.Start()
	defer c.Stop()

	deadline := time.Now().Add(time.Second)
	for ticks.Load() < 5 {
		if time.Now().After(deadline) {
			t.Fatalf("expected at least 5 ticks, got %d", ticks.Load())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestClockStartIsReentrant(t *testing.T) {
	var ticks atomic.Int64
	c := NewClock(time.Millisecond, func() { ticks.Add(1) })

	c.Start()
	c.Start() // no-op: must not double the tick rate or leak a goroutine
	defer c.Stop()

	if !c.Running() {
		t.Fatal("clock should be running after Start")
	}
}

func TestClockStopDeliversNoFurtherTicks(t *testing.T) {
	var ticks atomic.Int64
	c := NewClock(time.Millisecond, func() { ticks.Add(1) })

	c.Start()
	time.Sleep(10 * time.Millisecond)
	c.Stop()

	if c.Running() {
		t.Fatal("clock should not be running after Stop")
	}

	after := ticks.Load()
	time.Sleep(20 * time.Millisecond)
	if got := ticks.Load(); got != after {
		t.Fatalf("ticks delivered after Stop: %d -> %d", after, got)
	}
}

func TestClockStopWhenNotRunning(t *testing.T) {
	c := NewClock(time.Millisecond, func() {})
	c.Stop() // must not panic or block
	c.Start()
	c.Stop()
	c.Stop()
}

func TestClockRestartAfterStop(t *testing.T) {
	var ticks atomic.Int64
	c := NewClock(time.Millisecond, func() { ticks.Add(1) })

	c.Start()
	time.Sleep(5 * time.Millisecond)
	c.Stop()

	before := ticks.Load()
	c.Start()
	defer c.Stop()

	deadline := time.Now().Add(time.Second)
	for ticks.Load() <= before {
		if time.Now().After(deadline) {
			t.Fatal("clock did not tick after restart")
		}
		time.Sleep(time.Millisecond)
	}
}
