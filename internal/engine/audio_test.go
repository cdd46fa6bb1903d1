package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

type failingPlayStore struct{ err error }

func (f *failingPlayStore) Get(context.Context, string) (bool, error) { return false, f.err }
func (f *failingPlayStore) Set(context.Context, string) error         { return f.err }

func TestPlayOnceGuard(t *testing.T) {
	ctx := context.Background()
	g := NewPlayOnceGuard(NewMemoryPlayStore(), zerolog.Nop())
	id := AudioID("https://cdn.example.com/listening/part1.mp3")

	if !g.CanPlay(ctx, id, false) {
		t.Fatal("fresh resource should be playable")
	}
	if g.HasPlayed(ctx, id) {
		t.Fatal("fresh resource reported as played")
	}

	if err := g.MarkPlayed(ctx, id); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if g.CanPlay(ctx, id, false) {
		t.Fatal("play-once resource playable after consumption")
	}

	// Idempotent and irreversible.
	if err := g.MarkPlayed(ctx, id); err != nil {
		t.Fatalf("second mark: %v", err)
	}
	if g.CanPlay(ctx, id, false) {
		t.Fatal("resource playable after repeated mark")
	}
}

func TestPlayOnceGuardAllowReplayBypasses(t *testing.T) {
	ctx := context.Background()
	g := NewPlayOnceGuard(NewMemoryPlayStore(), zerolog.Nop())
	id := AudioID("https://cdn.example.com/listening/part2.mp3")

	g.MarkPlayed(ctx, id)

	// allowReplay bypasses the guard regardless of prior plays.
	if !g.CanPlay(ctx, id, true) {
		t.Fatal("allowReplay resource blocked")
	}
}

func TestPlayOnceGuardStoreFailureDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	g := NewPlayOnceGuard(&failingPlayStore{err: errors.New("store down")}, zerolog.Nop())
	id := AudioID("https://cdn.example.com/listening/part3.mp3")

	// A flaky store must never lock a taker out of their audio.
	if !g.CanPlay(ctx, id, false) {
		t.Fatal("store failure blocked playback")
	}
	if err := g.MarkPlayed(ctx, id); err == nil {
		t.Fatal("mark should surface the store error")
	}
}

func TestAudioIDIsStable(t *testing.T) {
	url := "https://cdn.example.com/listening/part4.mp3"
	if AudioID(url) != AudioID(url) {
		t.Fatal("audio id not stable for identical resource")
	}
	if AudioID(url) == AudioID(url+"?v=2") {
		t.Fatal("distinct resources share an audio id")
	}
}
