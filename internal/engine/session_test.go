package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/falsumairi/ielts-sub001/internal/model"
)

// newTestSession wires a session whose clock never fires on its own
// (hour-long interval); tests drive ticks deterministically via tick().
func newTestSession(t *testing.T, durationMinutes int, ap *fakeAttemptProvider, ansP *fakeAnswerProvider, sink EventSink) (*Session, *model.Test) {
	t.Helper()
	test, passages, questions := fixtureTest(durationMinutes)
	tp := &fakeTestProvider{test: test, passages: passages, questions: questions}
	cfg := Config{
		TickInterval:  time.Hour,
		DebounceQuiet: 10 * time.Millisecond,
	}
	s := NewSession(cfg, tp, ap, ansP, sink, zerolog.Nop())
	return s, test
}

func TestSessionStartCreatesAttempt(t *testing.T) {
	ap := &fakeAttemptProvider{}
	sink := &recordingSink{}
	s, test := newTestSession(t, 60, ap, &fakeAnswerProvider{}, sink)

	if err := s.Start(context.Background(), test.ID, 42); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Complete(context.Background())

	if got := s.State(); got != StateInProgress {
		t.Fatalf("state = %s, want %s", got, StateInProgress)
	}
	if got := s.Remaining(); got != 3600 {
		t.Fatalf("remaining = %d, want 3600", got)
	}
	if ap.created != 1 {
		t.Fatalf("attempts created = %d, want 1", ap.created)
	}

	st := sink.snapshot()
	if len(st.states) != 1 || st.states[0] != model.AttemptStatusInProgress {
		t.Fatalf("state events = %v", st.states)
	}
}

func TestSessionStartResumesExistingAttempt(t *testing.T) {
	test, _, questions := fixtureTest(60)
	q := questions[0].ID
	existing := &model.Attempt{
		ID:            uuid.New(),
		TestID:        test.ID,
		UserID:        42,
		Status:        model.AttemptStatusInProgress,
		StartedAt:     time.Now().Add(-10 * time.Minute),
		TimeRemaining: 3000,
	}
	ap := &fakeAttemptProvider{existing: existing}
	ansP := &fakeAnswerProvider{existing: map[uuid.UUID]string{q: "B"}}

	s, test := newTestSession(t, 60, ap, ansP, nil)
	if err := s.Start(context.Background(), test.ID, 42); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Complete(context.Background())

	if ap.created != 0 {
		t.Fatalf("a duplicate attempt was created")
	}
	if got := s.Remaining(); got != 3000 {
		t.Fatalf("remaining = %d, want preserved 3000", got)
	}
	if got := s.Answers().Get(q); got != "B" {
		t.Fatalf("hydrated answer = %q, want %q", got, "B")
	}
}

func TestSessionStartFailures(t *testing.T) {
	t.Run("load error", func(t *testing.T) {
		tp := &fakeTestProvider{err: errors.New("gone")}
		s := NewSession(Config{TickInterval: time.Hour}, tp, &fakeAttemptProvider{}, &fakeAnswerProvider{}, nil, zerolog.Nop())

		err := s.Start(context.Background(), uuid.New(), 1)
		var le *LoadError
		if !errors.As(err, &le) {
			t.Fatalf("err = %v, want *LoadError", err)
		}
		if s.State() != StateNotStarted {
			t.Fatalf("state = %s after failed start", s.State())
		}
	})

	t.Run("init error", func(t *testing.T) {
		ap := &fakeAttemptProvider{createErr: errors.New("db down")}
		s, test := newTestSession(t, 60, ap, &fakeAnswerProvider{}, nil)

		err := s.Start(context.Background(), test.ID, 1)
		var ie *SessionInitError
		if !errors.As(err, &ie) {
			t.Fatalf("err = %v, want *SessionInitError", err)
		}
	})

	t.Run("double start", func(t *testing.T) {
		s, test := newTestSession(t, 60, &fakeAttemptProvider{}, &fakeAnswerProvider{}, nil)
		if err := s.Start(context.Background(), test.ID, 1); err != nil {
			t.Fatalf("start: %v", err)
		}
		defer s.Complete(context.Background())

		var ie *SessionInitError
		if err := s.Start(context.Background(), test.ID, 1); !errors.As(err, &ie) {
			t.Fatalf("second start err = %v, want *SessionInitError", err)
		}
	})
}

func TestSessionCountdownIsMonotonic(t *testing.T) {
	sink := &recordingSink{}
	s, test := newTestSession(t, 1, &fakeAttemptProvider{}, &fakeAnswerProvider{}, sink)
	if err := s.Start(context.Background(), test.ID, 1); err != nil {
		t.Fatalf("start: %v", err)
	}

	for i := 0; i < 10; i++ {
		s.tick()
	}

	st := sink.snapshot()
	prev := 61
	for _, r := range st.ticks {
		if r >= prev {
			t.Fatalf("remaining not strictly decreasing: %v", st.ticks)
		}
		prev = r
	}
	if got := s.Remaining(); got != 50 {
		t.Fatalf("remaining = %d, want 50", got)
	}
	s.Complete(context.Background())
}

func TestSessionPauseResumePreservesCountdown(t *testing.T) {
	s, test := newTestSession(t, 1, &fakeAttemptProvider{}, &fakeAnswerProvider{}, nil)
	if err := s.Start(context.Background(), test.ID, 1); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Complete(context.Background())

	s.tick()
	s.tick()
	before := s.Remaining()

	if err := s.Pause(context.Background()); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if s.State() != StatePaused {
		t.Fatalf("state = %s, want paused", s.State())
	}

	// Ticks while paused are dropped, countdown constant.
	s.tick()
	s.tick()
	if got := s.Remaining(); got != before {
		t.Fatalf("remaining changed while paused: %d -> %d", before, got)
	}

	if err := s.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if got := s.Remaining(); got != before {
		t.Fatalf("remaining changed across pause/resume: %d -> %d", before, got)
	}
	if s.State() != StateInProgress {
		t.Fatalf("state = %s, want in progress", s.State())
	}
}

func TestSessionPauseResumeIdempotent(t *testing.T) {
	ap := &fakeAttemptProvider{}
	s, test := newTestSession(t, 1, ap, &fakeAnswerProvider{}, nil)
	if err := s.Start(context.Background(), test.ID, 1); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Complete(context.Background())

	// Resume while already in progress is a no-op.
	if err := s.Resume(context.Background()); err != nil {
		t.Fatalf("resume no-op: %v", err)
	}
	if ap.resumes != 0 {
		t.Fatalf("resume synced on no-op")
	}

	s.Pause(context.Background())
	s.Pause(context.Background())
	if ap.pauses != 1 {
		t.Fatalf("pauses synced = %d, want 1", ap.pauses)
	}
}

func TestSessionWarningThresholdsFireOnce(t *testing.T) {
	sink := &recordingSink{}
	s, test := newTestSession(t, 1, &fakeAttemptProvider{}, &fakeAnswerProvider{}, sink)
	// 60s session: the 300s threshold is crossed on the very first tick,
	// the 60s threshold likewise. Both fire exactly once.
	if err := s.Start(context.Background(), test.ID, 1); err != nil {
		t.Fatalf("start: %v", err)
	}

	for i := 0; i < 30; i++ {
		s.tick()
	}

	st := sink.snapshot()
	if len(st.warnings) != 2 {
		t.Fatalf("warnings = %d, want 2 (%v)", len(st.warnings), st.warnings)
	}
	seen := map[int]bool{}
	for _, w := range st.warnings {
		if seen[w.ThresholdSeconds] {
			t.Fatalf("threshold %d fired twice", w.ThresholdSeconds)
		}
		seen[w.ThresholdSeconds] = true
		if w.AutoDismissSeconds != WarningAutoDismissSeconds {
			t.Fatalf("auto dismiss = %d, want %d", w.AutoDismissSeconds, WarningAutoDismissSeconds)
		}
	}
	if !seen[300] || !seen[60] {
		t.Fatalf("expected thresholds 300 and 60, got %v", st.warnings)
	}
	s.Complete(context.Background())
}

func TestSessionTimeEndFiresExactlyOnce(t *testing.T) {
	sink := &recordingSink{}
	ap := &fakeAttemptProvider{}
	s, test := newTestSession(t, 1, ap, &fakeAnswerProvider{}, sink)
	if err := s.Start(context.Background(), test.ID, 1); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Drive all 60 ticks down to zero, then keep ticking.
	for i := 0; i < 70; i++ {
		s.tick()
	}

	if s.State() != StateCompleted {
		t.Fatalf("state = %s, want completed", s.State())
	}
	if got := s.Remaining(); got != 0 {
		t.Fatalf("remaining = %d, want 0", got)
	}

	st := sink.snapshot()
	if st.timeEnds != 1 {
		t.Fatalf("time end fired %d times, want exactly 1", st.timeEnds)
	}
	if ap.completes != 1 {
		t.Fatalf("complete synced %d times, want 1", ap.completes)
	}

	// The final tick event is the 1 -> 0 transition.
	if last := st.ticks[len(st.ticks)-1]; last != 0 {
		t.Fatalf("last tick = %d, want 0", last)
	}
}

func TestSessionTerminalIsFinal(t *testing.T) {
	ap := &fakeAttemptProvider{}
	s, test := newTestSession(t, 1, ap, &fakeAnswerProvider{}, nil)
	if err := s.Start(context.Background(), test.ID, 1); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := s.Complete(context.Background()); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// Every later transition is a no-op, not an error.
	if err := s.Pause(context.Background()); err != nil {
		t.Fatalf("pause after complete: %v", err)
	}
	if err := s.Resume(context.Background()); err != nil {
		t.Fatalf("resume after complete: %v", err)
	}
	if err := s.Complete(context.Background()); err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if err := s.MarkAbandoned(context.Background()); err != nil {
		t.Fatalf("abandon after complete: %v", err)
	}
	if ap.completes != 1 {
		t.Fatalf("complete synced %d times, want 1", ap.completes)
	}

	// Even an erroneously restarted clock must not move a finished session.
	before := s.Remaining()
	s.clock.Start()
	s.tick()
	s.clock.Stop()
	if got := s.Remaining(); got != before {
		t.Fatalf("remaining moved on terminal session: %d -> %d", before, got)
	}
}

func TestSessionSixHundredSecondScenario(t *testing.T) {
	sink := &recordingSink{}
	s, test := newTestSession(t, 10, &fakeAttemptProvider{}, &fakeAnswerProvider{}, sink)
	if err := s.Start(context.Background(), test.ID, 1); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := s.Remaining(); got != 600 {
		t.Fatalf("remaining = %d, want 600", got)
	}

	var at300, at60 int
	for s.State() == StateInProgress {
		s.tick()
		st := sink.snapshot()
		switch s.Remaining() {
		case 300:
			at300 = len(st.warnings)
		case 60:
			at60 = len(st.warnings)
		}
	}

	if at300 != 1 {
		t.Fatalf("warnings at t=300: %d, want 1", at300)
	}
	if at60 != 2 {
		t.Fatalf("warnings at t=60: %d, want 2", at60)
	}

	st := sink.snapshot()
	if st.timeEnds != 1 || s.State() != StateCompleted {
		t.Fatalf("time end = %d, state = %s", st.timeEnds, s.State())
	}
	if len(st.ticks) != 600 {
		t.Fatalf("ticks processed = %d, want 600", len(st.ticks))
	}
}

func TestSessionCompleteFlushesPendingAnswers(t *testing.T) {
	ansP := &fakeAnswerProvider{}
	s, test := newTestSession(t, 1, &fakeAttemptProvider{}, ansP, nil)
	if err := s.Start(context.Background(), test.ID, 1); err != nil {
		t.Fatalf("start: %v", err)
	}

	q := s.Questions()[0].ID
	s.Answers().Set(q, "draft")
	s.Answers().Set(q, "final")

	// Complete before the debounce window elapses: the edit must not be lost.
	if err := s.Complete(context.Background()); err != nil {
		t.Fatalf("complete: %v", err)
	}

	subs := ansP.submissions()
	if len(subs) != 1 {
		t.Fatalf("persisted %d values, want exactly 1 (last write wins): %v", len(subs), subs)
	}
	if subs[0].value != "final" {
		t.Fatalf("persisted %q, want %q", subs[0].value, "final")
	}
}

func TestSessionAbandonment(t *testing.T) {
	sink := &recordingSink{}
	ap := &fakeAttemptProvider{}
	s, test := newTestSession(t, 1, ap, &fakeAnswerProvider{}, sink)
	if err := s.Start(context.Background(), test.ID, 1); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := s.MarkAbandoned(context.Background()); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if s.State() != StateAbandoned {
		t.Fatalf("state = %s, want abandoned", s.State())
	}
	if ap.abandons != 1 {
		t.Fatalf("abandons synced = %d, want 1", ap.abandons)
	}

	st := sink.snapshot()
	if st.timeEnds != 0 {
		t.Fatal("abandonment must not fire the time end event")
	}
}
