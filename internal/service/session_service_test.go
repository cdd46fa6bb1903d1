package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newBareSessionService() *SessionService {
	return &SessionService{
		live:     make(map[uuid.UUID]*liveSession),
		starting: make(map[startKey]chan struct{}),
	}
}

func TestLockStartSerializesSameKey(t *testing.T) {
	s := newBareSessionService()
	key := startKey{testID: uuid.New(), userID: 1}

	unlock, err := s.lockStart(context.Background(), key)
	if err != nil {
		t.Fatalf("first lock failed: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		u, err := s.lockStart(context.Background(), key)
		if err != nil {
			t.Errorf("second lock failed: %v", err)
			return
		}
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second start acquired the lock while the first still held it")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second start never acquired the lock after release")
	}
}

func TestLockStartDifferentKeysDoNotBlock(t *testing.T) {
	s := newBareSessionService()
	testID := uuid.New()

	unlock1, err := s.lockStart(context.Background(), startKey{testID: testID, userID: 1})
	if err != nil {
		t.Fatalf("lock user 1: %v", err)
	}
	defer unlock1()

	// A different user starting the same test must not wait on user 1.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlock2, err := s.lockStart(ctx, startKey{testID: testID, userID: 2})
	if err != nil {
		t.Fatalf("lock user 2: %v", err)
	}
	unlock2()
}

func TestLockStartCanceledWhileWaiting(t *testing.T) {
	s := newBareSessionService()
	key := startKey{testID: uuid.New(), userID: 1}

	unlock, err := s.lockStart(context.Background(), key)
	if err != nil {
		t.Fatalf("first lock failed: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.lockStart(ctx, key); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLockStartReleaseRemovesReservation(t *testing.T) {
	s := newBareSessionService()
	key := startKey{testID: uuid.New(), userID: 1}

	unlock, err := s.lockStart(context.Background(), key)
	if err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	unlock()

	s.mu.Lock()
	_, left := s.starting[key]
	s.mu.Unlock()
	if left {
		t.Fatal("reservation not removed after release")
	}
}

func TestOwnedChecksUser(t *testing.T) {
	s := newBareSessionService()
	attemptID := uuid.New()
	s.live[attemptID] = &liveSession{userID: 7}

	if _, err := s.owned(attemptID, 8); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}

	ls, err := s.owned(attemptID, 7)
	if err != nil || ls == nil {
		t.Fatalf("owner lookup failed: ls=%v err=%v", ls, err)
	}

	ls, err = s.owned(uuid.New(), 7)
	if err != nil || ls != nil {
		t.Fatalf("unknown attempt should be (nil, nil), got ls=%v err=%v", ls, err)
	}
}
