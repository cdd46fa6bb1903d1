package engine

import (
	"sync"
	"time"
)

// TickInterval is the production tick rate. Tests inject shorter intervals.
const TickInterval = time.Second

// Clock emits ticks at a fixed interval on a dedicated goroutine. Ticks are
// serialized: the next tick is not delivered until the callback returns.
type Clock struct {
	interval time.Duration
	fn       func()

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewClock creates a stopped clock that invokes fn once per interval.
func NewClock(interval time.Duration, fn func()) *Clock {
	return &Clock{interval: interval, fn: fn}
}

// Start launches the tick goroutine. No-op if already running.
func (c *Clock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop != nil {
		return
	}

	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.run(c.stop, c.done)
}

func (c *Clock) run(stop, done chan struct{}) {
	defer close(done)

	t := time.NewTicker(c.interval)
	defer t.Stop()

	for {
		select {
		case <-stop:
			return
		case <-t.C:
			// Re-check stop so a tick racing the Stop call is dropped.
			select {
			case <-stop:
				return
			default:
			}
			c.fn()
		}
	}
}

// Stop halts the clock and waits for the tick goroutine to exit. After Stop
// returns, no further tick is delivered. No-op if not running.
//
// Stop must not be called from inside the tick callback; use StopAsync there.
func (c *Clock) Stop() {
	done := c.signalStop()
	if done != nil {
		<-done
	}
}

// StopAsync halts the clock without waiting for the goroutine to exit. Safe
// to call from the tick callback itself (the time-end path).
func (c *Clock) StopAsync() {
	c.signalStop()
}

func (c *Clock) signalStop() chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop == nil {
		return nil
	}

	close(c.stop)
	done := c.done
	c.stop, c.done = nil, nil
	return done
}

// Running reports whether the clock is currently ticking.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop != nil
}
