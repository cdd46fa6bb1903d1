package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultDebounceQuiet is the quiet period after the last edit before a
// question's answer is persisted. Rapid keystrokes collapse into one call.
const DefaultDebounceQuiet = 2 * time.Second

// AnswerStore holds the in-memory answer map for one attempt and pushes
// values to the provider on a per-question debounce. The in-memory copy is
// always authoritative: persist failures degrade to a warning, never a loss.
type AnswerStore struct {
	attemptID uuid.UUID
	provider  AnswerProvider
	quiet     time.Duration
	warn      func(error)
	log       zerolog.Logger

	mu      sync.Mutex
	answers map[uuid.UUID]string
	dirty   map[uuid.UUID]bool
	timers  map[uuid.UUID]*time.Timer
}

// NewAnswerStore creates an empty store. warn receives a
// *PersistTransientError whenever a persist fails after its retry; pass nil
// to only log.
func NewAnswerStore(attemptID uuid.UUID, provider AnswerProvider, quiet time.Duration, warn func(error), log zerolog.Logger) *AnswerStore {
	if quiet <= 0 {
		quiet = DefaultDebounceQuiet
	}
	if warn == nil {
		warn = func(error) {}
	}
	return &AnswerStore{
		attemptID: attemptID,
		provider:  provider,
		quiet:     quiet,
		warn:      warn,
		log:       log.With().Str("component", "answer_store").Logger(),
		answers:   make(map[uuid.UUID]string),
		dirty:     make(map[uuid.UUID]bool),
		timers:    make(map[uuid.UUID]*time.Timer),
	}
}

// Hydrate seeds existing answers (session resume). Hydrated values are
// considered already persisted.
func (s *AnswerStore) Hydrate(existing map[uuid.UUID]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for q, v := range existing {
		s.answers[q] = v
	}
}

// Set upserts the answer locally and schedules a debounced persist.
// Last write wins.
func (s *AnswerStore) Set(questionID uuid.UUID, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.answers[questionID] = value
	s.dirty[questionID] = true

	if t, ok := s.timers[questionID]; ok {
		t.Reset(s.quiet)
		return
	}
	s.timers[questionID] = time.AfterFunc(s.quiet, func() {
		s.persistOne(context.Background(), questionID)
	})
}

// Get returns the current value for a question, or "" if unanswered.
func (s *AnswerStore) Get(questionID uuid.UUID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers[questionID]
}

// Snapshot returns a copy of the answer map for read-only consumers.
func (s *AnswerStore) Snapshot() map[uuid.UUID]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uuid.UUID]string, len(s.answers))
	for q, v := range s.answers {
		out[q] = v
	}
	return out
}

// FlushAll bypasses debouncing and persists every pending answer, returning
// once each has been acknowledged or has failed its retry. Used at session
// completion. The returned error (if any) wraps the last
// *PersistTransientError and is non-fatal.
func (s *AnswerStore) FlushAll(ctx context.Context) error {
	s.mu.Lock()
	for q, t := range s.timers {
		t.Stop()
		delete(s.timers, q)
	}
	pending := make([]uuid.UUID, 0, len(s.dirty))
	for q, d := range s.dirty {
		if d {
			pending = append(pending, q)
		}
	}
	s.mu.Unlock()

	var lastErr error
	for _, q := range pending {
		if err := s.persistOne(ctx, q); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// PendingCount returns how many answers still await persistence.
func (s *AnswerStore) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, d := range s.dirty {
		if d {
			n++
		}
	}
	return n
}

// persistOne submits the current value of one question with a single silent
// retry. On repeated failure the value stays dirty so a later FlushAll picks
// it up again.
func (s *AnswerStore) persistOne(ctx context.Context, questionID uuid.UUID) error {
	s.mu.Lock()
	if !s.dirty[questionID] {
		s.mu.Unlock()
		return nil
	}
	value := s.answers[questionID]
	s.dirty[questionID] = false
	s.mu.Unlock()

	err := s.provider.Submit(ctx, s.attemptID, questionID, value)
	if err != nil {
		err = s.provider.Submit(ctx, s.attemptID, questionID, value)
	}
	if err == nil {
		// A newer Set may have re-dirtied the question meanwhile; its own
		// timer handles that write.
		return nil
	}

	s.mu.Lock()
	// Only re-mark dirty if no newer value was written in between.
	if s.answers[questionID] == value {
		s.dirty[questionID] = true
	}
	s.mu.Unlock()

	perr := &PersistTransientError{QuestionID: questionID, Err: err}
	s.log.Warn().Err(err).Str("question_id", questionID.String()).Msg("Answer persist degraded to in-memory")
	s.warn(perr)
	return perr
}
