package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/falsumairi/ielts-sub001/internal/model"
)

// State enumerates the lifecycle of a live session. The attempt does not
// exist until the session leaves StateNotStarted.
type State string

const (
	StateNotStarted State = "NOT_STARTED"
	StateInProgress State = "IN_PROGRESS"
	StatePaused     State = "PAUSED"
	StateCompleted  State = "COMPLETED"
	StateAbandoned  State = "ABANDONED"
)

// Terminal reports whether the session accepts no further transitions.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAbandoned
}

// Config tunes a session. Zero values fall back to production defaults.
type Config struct {
	TickInterval      time.Duration
	DebounceQuiet     time.Duration
	WarningThresholds []int
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = TickInterval
	}
	if c.DebounceQuiet <= 0 {
		c.DebounceQuiet = DefaultDebounceQuiet
	}
	if len(c.WarningThresholds) == 0 {
		c.WarningThresholds = []int{300, 60}
	}
	return c
}

// Session owns one test attempt from start to completion: the countdown,
// the answer store and every state transition. All mutation is serialized
// behind its mutex; the clock goroutine and API calls never race.
//
// The countdown decrements by exactly 1 per delivered tick rather than by
// wall-clock delta, so delayed ticks slow the countdown instead of jumping
// it. Carried over from the original timing behavior.
type Session struct {
	cfg      Config
	tests    TestProvider
	attempts AttemptProvider
	answersP AnswerProvider
	sink     EventSink
	log      zerolog.Logger

	clock   *Clock
	answers *AnswerStore

	mu        sync.Mutex
	state     State
	test      *model.Test
	passages  []model.Passage
	questions []model.Question
	attempt   *model.Attempt
	remaining int
	warned    map[int]bool
}

// NewSession creates a session in StateNotStarted. sink may be nil.
func NewSession(cfg Config, tests TestProvider, attempts AttemptProvider, answers AnswerProvider, sink EventSink, log zerolog.Logger) *Session {
	if sink == nil {
		sink = NopSink{}
	}
	s := &Session{
		cfg:      cfg.withDefaults(),
		tests:    tests,
		attempts: attempts,
		answersP: answers,
		sink:     sink,
		log:      log.With().Str("component", "session").Logger(),
		state:    StateNotStarted,
		warned:   make(map[int]bool),
	}
	s.clock = NewClock(s.cfg.TickInterval, s.tick)
	return s
}

// Start loads the test and creates the attempt, or resumes the open attempt
// for this user if one exists, never a duplicate. On resume the answer
// store is hydrated and the persisted countdown is preserved.
func (s *Session) Start(ctx context.Context, testID uuid.UUID, userID int) error {
	s.mu.Lock()
	if s.state != StateNotStarted {
		s.mu.Unlock()
		return &SessionInitError{Reason: "session already started"}
	}
	s.mu.Unlock()

	test, err := s.tests.FetchTest(ctx, testID)
	if err != nil {
		return &LoadError{Resource: "test", Err: err}
	}
	passages, err := s.tests.FetchPassages(ctx, testID)
	if err != nil {
		return &LoadError{Resource: "passages", Err: err}
	}
	questions, err := s.tests.FetchQuestions(ctx, testID)
	if err != nil {
		return &LoadError{Resource: "questions", Err: err}
	}

	attempt, resumed, err := s.attempts.CreateOrResume(ctx, testID, userID)
	if err != nil {
		return &SessionInitError{Reason: "create or resume attempt", Err: err}
	}
	if attempt.Status.Terminal() {
		return &SessionInitError{Reason: "attempt already finished"}
	}

	store := NewAnswerStore(attempt.ID, s.answersP, s.cfg.DebounceQuiet, s.sink.PersistWarning, s.log)

	remaining := attempt.TimeRemaining
	if remaining <= 0 && !resumed {
		remaining = test.DurationMinutes * 60
	}

	if resumed {
		existing, err := s.answersP.FetchExisting(ctx, attempt.ID)
		if err != nil {
			// Non-fatal: the durable copies are untouched, the taker just
			// starts from a blank sheet locally.
			s.log.Warn().Err(err).Str("attempt_id", attempt.ID.String()).Msg("Answer hydration failed")
		} else {
			store.Hydrate(existing)
		}
		if attempt.Status == model.AttemptStatusPaused {
			if err := s.attempts.Resume(ctx, attempt.ID); err != nil {
				return &SessionInitError{Reason: "resume paused attempt", Err: err}
			}
		}
	}

	s.mu.Lock()
	s.test = test
	s.passages = passages
	s.questions = questions
	s.attempt = attempt
	s.attempt.Status = model.AttemptStatusInProgress
	s.attempt.TimeRemaining = remaining
	s.answers = store
	s.remaining = remaining
	s.state = StateInProgress
	s.mu.Unlock()

	s.sink.StateChange(model.AttemptStatusInProgress)
	s.clock.Start()

	s.log.Info().
		Str("test_id", testID.String()).
		Str("attempt_id", attempt.ID.String()).
		Bool("resumed", resumed).
		Int("remaining", remaining).
		Msg("Session started")
	return nil
}

// Pause stops the clock and persists the countdown. No-op if already paused
// or terminal.
func (s *Session) Pause(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateInProgress {
		state := s.state
		s.mu.Unlock()
		s.log.Debug().Str("state", string(state)).Msg("Pause ignored")
		return nil
	}
	s.state = StatePaused
	s.attempt.Status = model.AttemptStatusPaused
	remaining := s.remaining
	attemptID := s.attempt.ID
	s.mu.Unlock()

	s.clock.Stop()

	if err := s.attempts.Pause(ctx, attemptID, remaining); err != nil {
		// Status sync failure does not threaten in-memory state.
		s.log.Warn().Err(err).Msg("Pause sync failed")
	}
	s.sink.StateChange(model.AttemptStatusPaused)
	return nil
}

// Resume restarts the clock from the preserved countdown. No-op if already
// in progress or terminal.
func (s *Session) Resume(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StatePaused {
		state := s.state
		s.mu.Unlock()
		s.log.Debug().Str("state", string(state)).Msg("Resume ignored")
		return nil
	}
	s.state = StateInProgress
	s.attempt.Status = model.AttemptStatusInProgress
	attemptID := s.attempt.ID
	s.mu.Unlock()

	if err := s.attempts.Resume(ctx, attemptID); err != nil {
		s.log.Warn().Err(err).Msg("Resume sync failed")
	}
	s.sink.StateChange(model.AttemptStatusInProgress)
	s.clock.Start()
	return nil
}

// Complete is the manual submission path. It stops the clock, flushes every
// pending answer synchronously, then marks the attempt completed. No-op on a
// terminal session.
func (s *Session) Complete(ctx context.Context) error {
	if !s.finish(StateCompleted) {
		return nil
	}
	s.clock.Stop()
	return s.settle(ctx, model.AttemptStatusCompleted, false)
}

// MarkAbandoned records an externally triggered abandonment (the taker
// navigated away without completing). Not exposed to the taker directly.
func (s *Session) MarkAbandoned(ctx context.Context) error {
	if !s.finish(StateAbandoned) {
		return nil
	}
	s.clock.Stop()
	return s.settle(ctx, model.AttemptStatusAbandoned, false)
}

// finish attempts the transition into a terminal state. Returns false (and
// logs) when the session is not in a finishable state.
func (s *Session) finish(to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress && s.state != StatePaused {
		s.log.Debug().Str("state", string(s.state)).Str("to", string(to)).Msg("Finish ignored")
		return false
	}
	now := time.Now()
	s.state = to
	s.attempt.FinishedAt = &now
	if to == StateAbandoned {
		s.attempt.Status = model.AttemptStatusAbandoned
	} else {
		s.attempt.Status = model.AttemptStatusCompleted
	}
	return true
}

// settle flushes answers and persists the terminal status. Answer flush
// failures degrade to warnings; the terminal status sync is authoritative
// and its error is returned.
func (s *Session) settle(ctx context.Context, status model.AttemptStatus, timeEnd bool) error {
	s.mu.Lock()
	attemptID := s.attempt.ID
	s.mu.Unlock()

	if err := s.answers.FlushAll(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Flush on finish incomplete")
	}

	var err error
	if status == model.AttemptStatusAbandoned {
		err = s.attempts.Abandon(ctx, attemptID)
	} else {
		err = s.attempts.Complete(ctx, attemptID)
	}
	if err != nil {
		s.log.Error().Err(err).Str("attempt_id", attemptID.String()).Msg("Terminal status sync failed")
	}

	s.sink.StateChange(status)
	if timeEnd {
		s.sink.TimeEnd()
	}
	s.log.Info().Str("attempt_id", attemptID.String()).Str("status", string(status)).Msg("Session finished")
	return err
}

// tick handles one clock tick: decrement by exactly 1, emit the observer
// update, fire any newly crossed warning threshold once, and complete the
// session when the countdown reaches 0. Ticks on a non-running session are
// reported and dropped.
func (s *Session) tick() {
	s.mu.Lock()
	if s.state != StateInProgress {
		state := s.state
		s.mu.Unlock()
		s.log.Debug().Str("state", string(state)).Msg("Late tick dropped")
		return
	}

	s.remaining--
	if s.remaining < 0 {
		s.remaining = 0
	}
	remaining := s.remaining
	s.attempt.TimeRemaining = remaining

	var warnings []Warning
	for _, th := range s.cfg.WarningThresholds {
		if remaining > 0 && remaining <= th && !s.warned[th] {
			s.warned[th] = true
			warnings = append(warnings, Warning{
				ThresholdSeconds:   th,
				RemainingSeconds:   remaining,
				AutoDismissSeconds: WarningAutoDismissSeconds,
			})
		}
	}

	ended := remaining == 0
	if ended {
		now := time.Now()
		s.state = StateCompleted
		s.attempt.Status = model.AttemptStatusCompleted
		s.attempt.FinishedAt = &now
	}
	attemptID := s.attempt.ID
	s.mu.Unlock()

	s.sink.Tick(remaining)
	for _, w := range warnings {
		s.sink.Warning(w)
	}

	if ended {
		// Cannot join the clock goroutine from inside its own callback.
		s.clock.StopAsync()
		_ = s.settle(context.Background(), model.AttemptStatusCompleted, true)
		return
	}

	if err := s.attempts.SaveRemaining(context.Background(), attemptID, remaining); err != nil {
		s.log.Warn().Err(err).Msg("Countdown sync failed")
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Remaining returns the countdown in seconds.
func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// Attempt returns a copy of the owned attempt, or nil before Start.
func (s *Session) Attempt() *model.Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempt == nil {
		return nil
	}
	cp := *s.attempt
	return &cp
}

// Answers exposes the answer store. Nil before Start.
func (s *Session) Answers() *AnswerStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers
}

// Progress derives the current completion breakdown.
func (s *Session) Progress() Progress {
	s.mu.Lock()
	passages := s.passages
	questions := s.questions
	store := s.answers
	s.mu.Unlock()

	var snapshot map[uuid.UUID]string
	if store != nil {
		snapshot = store.Snapshot()
	}
	return ComputeProgress(passages, questions, snapshot)
}

// Questions returns the loaded question set (read-only view).
func (s *Session) Questions() []model.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questions
}
