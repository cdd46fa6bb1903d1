package engine

import (
	"sync"

	"github.com/falsumairi/ielts-sub001/internal/model"
)

// WarningAutoDismissSeconds is how long the UI should display a threshold
// warning before dismissing it on its own.
const WarningAutoDismissSeconds = 5

// Warning is a one-shot countdown threshold notification.
type Warning struct {
	ThresholdSeconds   int `json:"threshold_seconds"`
	RemainingSeconds   int `json:"remaining_seconds"`
	AutoDismissSeconds int `json:"auto_dismiss_seconds"`
}

// EventSink receives engine events. Sinks are purely observational: they
// cannot alter engine state and must not block for long.
type EventSink interface {
	Tick(remaining int)
	Warning(w Warning)
	TimeEnd()
	StateChange(status model.AttemptStatus)
	// PersistWarning reports a non-fatal persistence degradation
	// (*PersistTransientError); the in-memory value remains authoritative.
	PersistWarning(err error)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Tick(int)                        {}
func (NopSink) Warning(Warning)                 {}
func (NopSink) TimeEnd()                        {}
func (NopSink) StateChange(model.AttemptStatus) {}
func (NopSink) PersistWarning(error)            {}

// FanoutSink broadcasts events to any number of attached sinks. Attach may
// be called while the session is live (e.g. a websocket reconnect).
type FanoutSink struct {
	mu    sync.RWMutex
	next  int
	sinks map[int]EventSink
}

func NewFanoutSink() *FanoutSink {
	return &FanoutSink{sinks: make(map[int]EventSink)}
}

// Attach registers a sink and returns a detach function.
func (f *FanoutSink) Attach(s EventSink) func() {
	f.mu.Lock()
	id := f.next
	f.next++
	f.sinks[id] = s
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.sinks, id)
		f.mu.Unlock()
	}
}

func (f *FanoutSink) each(fn func(EventSink)) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, s := range f.sinks {
		fn(s)
	}
}

func (f *FanoutSink) Tick(remaining int) { f.each(func(s EventSink) { s.Tick(remaining) }) }
func (f *FanoutSink) Warning(w Warning)  { f.each(func(s EventSink) { s.Warning(w) }) }
func (f *FanoutSink) TimeEnd()           { f.each(func(s EventSink) { s.TimeEnd() }) }
func (f *FanoutSink) StateChange(st model.AttemptStatus) {
	f.each(func(s EventSink) { s.StateChange(st) })
}
func (f *FanoutSink) PersistWarning(err error) { f.each(func(s EventSink) { s.PersistWarning(err) }) }
