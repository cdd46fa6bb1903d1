package service

import (
	"context"
	"testing"
)

// Replayable audio bypasses the guard entirely. No store is wired up in
// these tests, so any read or write attempt would panic and fail them.

func TestPlayStateReplayableSkipsStore(t *testing.T) {
	s := &AudioService{}
	src := &audioSource{audioID: "audio-1", allowReplay: true}

	state := s.playState(context.Background(), "profile-1", src)
	if !state.CanPlay {
		t.Error("replayable audio must always be playable")
	}
	if state.Played {
		t.Error("replayable audio keeps no play record")
	}
	if !state.AllowReplay {
		t.Error("allow_replay flag lost")
	}
}

func TestMarkPlayedReplayableKeepsNoRecord(t *testing.T) {
	s := &AudioService{}
	src := &audioSource{audioID: "audio-1", allowReplay: true}

	for i := 0; i < 2; i++ {
		state, err := s.markPlayed(context.Background(), "profile-1", src)
		if err != nil {
			t.Fatalf("mark played: %v", err)
		}
		if !state.CanPlay || state.Played {
			t.Fatalf("marking replayable audio must stay a no-op: %+v", state)
		}
	}
}
