package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func newTestStore(quiet time.Duration, provider AnswerProvider, warn func(error)) *AnswerStore {
	return NewAnswerStore(uuid.New(), provider, quiet, warn, zerolog.Nop())
}

func TestAnswerStoreLastWriteWins(t *testing.T) {
	p := &fakeAnswerProvider{}
	s := newTestStore(time.Hour, p, nil) // debounce never fires on its own

	q := uuid.New()
	s.Set(q, "v1")
	s.Set(q, "v2")

	if got := s.Get(q); got != "v2" {
		t.Fatalf("get = %q, want %q", got, "v2")
	}

	if err := s.FlushAll(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	subs := p.submissions()
	if len(subs) != 1 || subs[0].value != "v2" {
		t.Fatalf("persisted %v, want single %q", subs, "v2")
	}
}

func TestAnswerStoreDebounceCollapsesEdits(t *testing.T) {
	p := &fakeAnswerProvider{}
	s := newTestStore(20*time.Millisecond, p, nil)

	q := uuid.New()
	// Rapid keystrokes within the quiet period.
	for _, v := range []string{"h", "he", "hel", "hell", "hello"} {
		s.Set(q, v)
		time.Sleep(2 * time.Millisecond)
	}

	deadline := time.Now().Add(time.Second)
	for len(p.submissions()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("debounced persist never fired")
		}
		time.Sleep(5 * time.Millisecond)
	}

	subs := p.submissions()
	if len(subs) != 1 {
		t.Fatalf("persisted %d times, want 1: %v", len(subs), subs)
	}
	if subs[0].value != "hello" {
		t.Fatalf("persisted %q, want final value %q", subs[0].value, "hello")
	}
}

func TestAnswerStoreFlushWithPendingAndAcknowledged(t *testing.T) {
	p := &fakeAnswerProvider{}
	s := newTestStore(10*time.Millisecond, p, nil)

	acked := uuid.New()
	s.Set(acked, "done")

	// Wait for the first answer to be acknowledged.
	deadline := time.Now().Add(time.Second)
	for len(p.submissions()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first persist never fired")
		}
		time.Sleep(2 * time.Millisecond)
	}

	pending := uuid.New()
	s.Set(pending, "in flight")

	// Flush before the debounce window elapses.
	if err := s.FlushAll(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	values := map[uuid.UUID]string{}
	for _, sub := range p.submissions() {
		values[sub.questionID] = sub.value
	}
	if values[acked] != "done" || values[pending] != "in flight" {
		t.Fatalf("persisted values = %v", values)
	}
	if s.PendingCount() != 0 {
		t.Fatalf("pending after flush = %d", s.PendingCount())
	}
}

func TestAnswerStoreRetriesOnceThenKeepsValue(t *testing.T) {
	var warned []error
	p := &fakeAnswerProvider{failNext: 1} // first call fails, retry succeeds
	s := newTestStore(time.Hour, p, func(err error) { warned = append(warned, err) })

	q := uuid.New()
	s.Set(q, "answer")

	if err := s.FlushAll(context.Background()); err != nil {
		t.Fatalf("flush with one transient failure: %v", err)
	}
	if len(warned) != 0 {
		t.Fatalf("warning on recovered retry: %v", warned)
	}
	if subs := p.submissions(); len(subs) != 1 || subs[0].value != "answer" {
		t.Fatalf("persisted %v", subs)
	}
}

func TestAnswerStoreDegradesToMemoryOnRepeatedFailure(t *testing.T) {
	var warned []error
	p := &fakeAnswerProvider{failNext: 2} // both attempts fail
	s := newTestStore(time.Hour, p, func(err error) { warned = append(warned, err) })

	q := uuid.New()
	s.Set(q, "answer")

	err := s.FlushAll(context.Background())
	var perr *PersistTransientError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *PersistTransientError", err)
	}
	if perr.QuestionID != q {
		t.Fatalf("error question = %s, want %s", perr.QuestionID, q)
	}
	if len(warned) != 1 {
		t.Fatalf("warnings = %d, want 1", len(warned))
	}

	// Value stays authoritative in memory and still pending.
	if got := s.Get(q); got != "answer" {
		t.Fatalf("value lost on persist failure: %q", got)
	}
	if s.PendingCount() != 1 {
		t.Fatalf("pending = %d, want 1", s.PendingCount())
	}

	// A later flush against a healthy backend lands the value.
	if err := s.FlushAll(context.Background()); err != nil {
		t.Fatalf("second flush: %v", err)
	}
	if subs := p.submissions(); len(subs) != 1 || subs[0].value != "answer" {
		t.Fatalf("persisted %v", subs)
	}
}

func TestAnswerStoreHydrateIsNotDirty(t *testing.T) {
	p := &fakeAnswerProvider{}
	s := newTestStore(time.Hour, p, nil)

	q := uuid.New()
	s.Hydrate(map[uuid.UUID]string{q: "restored"})

	if got := s.Get(q); got != "restored" {
		t.Fatalf("get = %q", got)
	}
	if err := s.FlushAll(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if subs := p.submissions(); len(subs) != 0 {
		t.Fatalf("hydrated values re-persisted: %v", subs)
	}
}
