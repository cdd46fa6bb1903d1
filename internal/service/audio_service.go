package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/falsumairi/ielts-sub001/internal/engine"
	"github.com/falsumairi/ielts-sub001/internal/repository"
)

// ErrNoAudio means the passage or question has no recording attached.
var ErrNoAudio = errors.New("no audio attached")

// ErrPassageNotFound means the passage does not belong to the test.
var ErrPassageNotFound = errors.New("passage not found")

// ErrQuestionNotFound means the question does not belong to the test.
var ErrQuestionNotFound = errors.New("question not found")

// AudioPlayState is what the player needs to decide whether the play
// button is enabled.
type AudioPlayState struct {
	AudioID     string `json:"audio_id"`
	AllowReplay bool   `json:"allow_replay"`
	Played      bool   `json:"played"`
	CanPlay     bool   `json:"can_play"`
}

// audioSource is a resolved recording: a passage's section audio or a
// single question's clip. Both share the same guard.
type audioSource struct {
	audioID     string
	allowReplay bool
}

// AudioService enforces the play-once rule for listening audio. Play
// state is tracked per client profile, so a taker switching devices gets
// a fresh allowance, mirroring how browser-local storage behaves.
type AudioService struct {
	testRepo *repository.TestRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewAudioService creates a new AudioService.
func NewAudioService(testRepo *repository.TestRepository, rdb *redis.Client, log zerolog.Logger) *AudioService {
	return &AudioService{
		testRepo: testRepo,
		rdb:      rdb,
		log:      log.With().Str("component", "audio_service").Logger(),
	}
}

// PassagePlayState reports whether the passage's recording may still be
// played for this client profile.
func (s *AudioService) PassagePlayState(ctx context.Context, profileID string, testID, passageID uuid.UUID) (*AudioPlayState, error) {
	src, err := s.resolvePassage(ctx, testID, passageID)
	if err != nil {
		return nil, err
	}
	return s.playState(ctx, profileID, src), nil
}

// MarkPassagePlayed records that the passage's recording started playing.
func (s *AudioService) MarkPassagePlayed(ctx context.Context, profileID string, testID, passageID uuid.UUID) (*AudioPlayState, error) {
	src, err := s.resolvePassage(ctx, testID, passageID)
	if err != nil {
		return nil, err
	}
	return s.markPlayed(ctx, profileID, src)
}

// QuestionPlayState reports whether a question's own clip may still be
// played for this client profile.
func (s *AudioService) QuestionPlayState(ctx context.Context, profileID string, testID, questionID uuid.UUID) (*AudioPlayState, error) {
	src, err := s.resolveQuestion(ctx, testID, questionID)
	if err != nil {
		return nil, err
	}
	return s.playState(ctx, profileID, src), nil
}

// MarkQuestionPlayed records that a question's clip started playing.
func (s *AudioService) MarkQuestionPlayed(ctx context.Context, profileID string, testID, questionID uuid.UUID) (*AudioPlayState, error) {
	src, err := s.resolveQuestion(ctx, testID, questionID)
	if err != nil {
		return nil, err
	}
	return s.markPlayed(ctx, profileID, src)
}

func (s *AudioService) playState(ctx context.Context, profileID string, src *audioSource) *AudioPlayState {
	guard := engine.NewPlayOnceGuard(NewRedisPlayStore(s.rdb, profileID), s.log)

	played := false
	if !src.allowReplay {
		played = guard.HasPlayed(ctx, src.audioID)
	}
	return &AudioPlayState{
		AudioID:     src.audioID,
		AllowReplay: src.allowReplay,
		Played:      played,
		CanPlay:     guard.CanPlay(ctx, src.audioID, src.allowReplay),
	}
}

// markPlayed consumes the single play. Idempotent and never unwound; a
// blocked replay attempt later is the intended outcome. Replayable audio
// keeps no record at all, so marking it is a no-op.
func (s *AudioService) markPlayed(ctx context.Context, profileID string, src *audioSource) (*AudioPlayState, error) {
	if src.allowReplay {
		return &AudioPlayState{
			AudioID:     src.audioID,
			AllowReplay: true,
			Played:      false,
			CanPlay:     true,
		}, nil
	}

	guard := engine.NewPlayOnceGuard(NewRedisPlayStore(s.rdb, profileID), s.log)
	if err := guard.MarkPlayed(ctx, src.audioID); err != nil {
		return nil, fmt.Errorf("mark played: %w", err)
	}

	return &AudioPlayState{
		AudioID:     src.audioID,
		AllowReplay: false,
		Played:      true,
		CanPlay:     false,
	}, nil
}

func (s *AudioService) resolvePassage(ctx context.Context, testID, passageID uuid.UUID) (*audioSource, error) {
	passages, err := s.testRepo.ListPassages(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("list passages: %w", err)
	}
	for i := range passages {
		if passages[i].ID != passageID {
			continue
		}
		if passages[i].AudioURL == nil || *passages[i].AudioURL == "" {
			return nil, ErrNoAudio
		}
		return &audioSource{
			audioID:     engine.AudioID(*passages[i].AudioURL),
			allowReplay: passages[i].AllowReplay,
		}, nil
	}
	return nil, ErrPassageNotFound
}

func (s *AudioService) resolveQuestion(ctx context.Context, testID, questionID uuid.UUID) (*audioSource, error) {
	questions, err := s.testRepo.ListQuestions(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	for i := range questions {
		if questions[i].ID != questionID {
			continue
		}
		if questions[i].AudioURL == nil || *questions[i].AudioURL == "" {
			return nil, ErrNoAudio
		}
		return &audioSource{
			audioID:     engine.AudioID(*questions[i].AudioURL),
			allowReplay: questions[i].AllowReplay,
		}, nil
	}
	return nil, ErrQuestionNotFound
}
