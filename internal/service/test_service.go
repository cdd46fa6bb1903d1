package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/falsumairi/ielts-sub001/internal/config"
	"github.com/falsumairi/ielts-sub001/internal/model"
	"github.com/falsumairi/ielts-sub001/internal/repository"
)

// ErrPaperNotCached is returned when a test has no cached paper, which in
// practice means it is not published.
var ErrPaperNotCached = errors.New("test not published or paper not cached")

// ErrTestNotFound is returned when a test does not exist or is hidden
// from takers.
var ErrTestNotFound = errors.New("test not found")

// TestService serves test content. Published papers are cached whole in
// Redis so the read path during a live session never touches PostgreSQL.
type TestService struct {
	testRepo *repository.TestRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewTestService creates a new TestService.
func NewTestService(testRepo *repository.TestRepository, rdb *redis.Client, log zerolog.Logger) *TestService {
	return &TestService{
		testRepo: testRepo,
		rdb:      rdb,
		log:      log.With().Str("component", "test_service").Logger(),
	}
}

// GetByID retrieves a single test. Drafts and archived tests are hidden
// from takers.
func (s *TestService) GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	test, err := s.testRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("get test: %w", err)
	}
	if test.Status != model.TestStatusPublished {
		return nil, ErrTestNotFound
	}
	return test, nil
}

// ListPublished retrieves tests open to takers.
func (s *TestService) ListPublished(ctx context.Context) ([]model.Test, error) {
	return s.testRepo.ListPublished(ctx)
}

// WarmTestCache builds and stores the taker-facing paper and the duration
// key for one test. Answer keys never enter the cache.
func (s *TestService) WarmTestCache(ctx context.Context, test *model.Test) error {
	passages, err := s.testRepo.ListPassages(ctx, test.ID)
	if err != nil {
		return fmt.Errorf("list passages: %w", err)
	}
	questions, err := s.testRepo.ListQuestions(ctx, test.ID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}

	paper := model.TestPaper{
		TestID:   test.ID,
		Title:    test.Title,
		Module:   test.Module,
		Duration: test.DurationMinutes,
		Passages: passages,
	}
	for _, q := range questions {
		paper.Questions = append(paper.Questions, q.ForTaker())
	}

	data, err := json.Marshal(paper)
	if err != nil {
		return fmt.Errorf("marshal paper: %w", err)
	}

	if err := s.rdb.Set(ctx, config.CacheKey.TestPaperKey(test.ID.String()), data, 0).Err(); err != nil {
		return fmt.Errorf("cache paper: %w", err)
	}
	if err := s.rdb.Set(ctx, config.CacheKey.TestDurationKey(test.ID.String()), test.DurationMinutes, 0).Err(); err != nil {
		return fmt.Errorf("cache duration: %w", err)
	}
	return nil
}

// PrewarmAllCaches loads all published tests into Redis on application
// startup, avoiding lazy-load races under a thundering herd.
func (s *TestService) PrewarmAllCaches(ctx context.Context) error {
	tests, err := s.testRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published tests: %w", err)
	}

	if len(tests) == 0 {
		s.log.Info().Msg("No published tests to prewarm")
		return nil
	}

	s.log.Info().Int("count", len(tests)).Msg("Prewarming published tests...")

	warmed := 0
	for i := range tests {
		if err := s.WarmTestCache(ctx, &tests[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("test_id", tests[i].ID.String()).
				Msg("Failed to warm test, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(tests)).
		Msg("Prewarming complete")
	return nil
}

// GetPaper retrieves the cached taker payload from Redis.
func (s *TestService) GetPaper(ctx context.Context, testID uuid.UUID) (*model.TestPaper, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.TestPaperKey(testID.String())).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrPaperNotCached
		}
		return nil, fmt.Errorf("get paper: %w", err)
	}

	var paper model.TestPaper
	if err := json.Unmarshal(data, &paper); err != nil {
		return nil, fmt.Errorf("unmarshal paper: %w", err)
	}
	return &paper, nil
}

// GetDuration retrieves the cached duration in minutes, falling back to
// PostgreSQL and self-healing the cache on a miss.
func (s *TestService) GetDuration(ctx context.Context, testID uuid.UUID) (int, error) {
	val, err := s.rdb.Get(ctx, config.CacheKey.TestDurationKey(testID.String())).Result()
	if err == nil {
		return strconv.Atoi(val)
	}
	if !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("get duration: %w", err)
	}

	test, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		return 0, fmt.Errorf("duration not cached or stored: %w", err)
	}
	_ = s.rdb.Set(ctx, config.CacheKey.TestDurationKey(testID.String()), test.DurationMinutes, 0)
	return test.DurationMinutes, nil
}
