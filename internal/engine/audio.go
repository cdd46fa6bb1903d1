package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// audioNamespace salts derived audio identifiers so they never collide with
// entity ids.
var audioNamespace = uuid.MustParse("9f2c1a52-7b1e-4a07-9c64-02c0d8f84a11")

// AudioID derives the stable identifier for an audio resource from its URL.
func AudioID(audioURL string) string {
	return uuid.NewSHA1(audioNamespace, []byte(audioURL)).String()
}

// PlayStore is the key-value persistence behind the play-once guard. The
// medium (Redis, file, memory) is swappable without touching guard logic.
type PlayStore interface {
	Get(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key string) error
}

// MemoryPlayStore is an in-process PlayStore, used in tests and as a
// degraded fallback when the backing store is unreachable.
type MemoryPlayStore struct {
	mu sync.Mutex
	m  map[string]bool
}

func NewMemoryPlayStore() *MemoryPlayStore {
	return &MemoryPlayStore{m: make(map[string]bool)}
}

func (s *MemoryPlayStore) Get(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[key], nil
}

func (s *MemoryPlayStore) Set(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = true
	return nil
}

// PlayOnceGuard enforces the one-time-playable audio policy. Records are
// scoped to a client profile by the store's key construction, not by the
// guard.
//
// A blocked autoplay still consumes the single play: callers mark the
// resource as played on the attempt, not on confirmed playback start.
type PlayOnceGuard struct {
	store PlayStore
	log   zerolog.Logger
}

func NewPlayOnceGuard(store PlayStore, log zerolog.Logger) *PlayOnceGuard {
	return &PlayOnceGuard{
		store: store,
		log:   log.With().Str("component", "play_once_guard").Logger(),
	}
}

// HasPlayed reports whether the resource already consumed its play. Store
// errors are logged and read as "not played" so a flaky store never locks a
// taker out of their audio.
func (g *PlayOnceGuard) HasPlayed(ctx context.Context, audioID string) bool {
	played, err := g.store.Get(ctx, audioID)
	if err != nil {
		g.log.Warn().Err(err).Str("audio_id", audioID).Msg("Play store read failed")
		return false
	}
	return played
}

// MarkPlayed records the play. Idempotent and irreversible for the lifetime
// of the client profile.
func (g *PlayOnceGuard) MarkPlayed(ctx context.Context, audioID string) error {
	if err := g.store.Set(ctx, audioID); err != nil {
		g.log.Warn().Err(err).Str("audio_id", audioID).Msg("Play store write failed")
		return err
	}
	return nil
}

// CanPlay reports whether playback may start. When allowReplay is true the
// guard is bypassed entirely and no record is consulted or written.
func (g *PlayOnceGuard) CanPlay(ctx context.Context, audioID string, allowReplay bool) bool {
	if allowReplay {
		return true
	}
	return !g.HasPlayed(ctx, audioID)
}
