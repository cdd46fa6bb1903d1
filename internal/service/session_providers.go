package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"github.com/falsumairi/ielts-sub001/internal/config"
	"github.com/falsumairi/ielts-sub001/internal/model"
	"github.com/falsumairi/ielts-sub001/internal/repository"
)

// remainingSyncEvery is how many countdown syncs go to Redis before one is
// also queued for durable persistence. At a 1 Hz tick this lands the
// countdown in PostgreSQL roughly every 15 seconds.
const remainingSyncEvery = 15

// testProvider adapts TestRepository to the engine's TestProvider.
type testProvider struct {
	testRepo *repository.TestRepository
}

func (p *testProvider) FetchTest(ctx context.Context, testID uuid.UUID) (*model.Test, error) {
	test, err := p.testRepo.GetByID(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("get test: %w", err)
	}
	if test.Status != model.TestStatusPublished {
		return nil, errors.New("test is not published")
	}
	return test, nil
}

func (p *testProvider) FetchPassages(ctx context.Context, testID uuid.UUID) ([]model.Passage, error) {
	return p.testRepo.ListPassages(ctx, testID)
}

func (p *testProvider) FetchQuestions(ctx context.Context, testID uuid.UUID) ([]model.Question, error) {
	return p.testRepo.ListQuestions(ctx, testID)
}

// attemptProvider adapts AttemptRepository plus the Redis hot keys to the
// engine's AttemptProvider.
type attemptProvider struct {
	attemptRepo *repository.AttemptRepository
	tests       *TestService
	rdb         *redis.Client
	syncCount   int
}

func (p *attemptProvider) CreateOrResume(ctx context.Context, testID uuid.UUID, userID int) (*model.Attempt, bool, error) {
	existing, err := p.attemptRepo.GetOpen(ctx, testID, userID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("check open attempt: %w", err)
	}
	if existing != nil {
		// Prefer the fresher Redis countdown if one survived (e.g. the
		// previous process died between durable syncs).
		if val, err := p.rdb.Get(ctx, config.CacheKey.AttemptRemainingKey(existing.ID.String())).Int(); err == nil && val >= 0 && val < existing.TimeRemaining {
			existing.TimeRemaining = val
		}
		return existing, true, nil
	}

	// The duration comes from the prewarmed cache so a cold start does not
	// add a PostgreSQL round trip to the critical path.
	minutes, err := p.tests.GetDuration(ctx, testID)
	if err != nil {
		return nil, false, fmt.Errorf("get duration: %w", err)
	}

	attempt := &model.Attempt{
		TestID:        testID,
		UserID:        userID,
		Status:        model.AttemptStatusInProgress,
		TimeRemaining: minutes * 60,
	}
	if err := p.attemptRepo.Create(ctx, attempt); err != nil {
		// Concurrent start from a second tab: the partial unique index
		// rejects the insert, fetch the winner.
		winner, fetchErr := p.attemptRepo.GetOpen(ctx, testID, userID)
		if fetchErr != nil {
			return nil, false, fmt.Errorf("create attempt: %w", err)
		}
		return winner, true, nil
	}

	if err := p.rdb.Set(ctx, config.CacheKey.AttemptRemainingKey(attempt.ID.String()), attempt.TimeRemaining, 0).Err(); err != nil {
		// The durable row is the fallback; not fatal.
		return attempt, false, nil
	}
	_ = p.rdb.Set(ctx, config.CacheKey.UserOpenAttemptKey(testID.String(), userID), attempt.ID.String(), 0)
	return attempt, false, nil
}

func (p *attemptProvider) Pause(ctx context.Context, attemptID uuid.UUID, remaining int) error {
	if err := p.attemptRepo.SetStatus(ctx, attemptID, model.AttemptStatusPaused); err != nil {
		return fmt.Errorf("pause attempt: %w", err)
	}
	if err := p.attemptRepo.SaveRemaining(ctx, attemptID, remaining); err != nil {
		return fmt.Errorf("save remaining: %w", err)
	}
	_ = p.rdb.Set(ctx, config.CacheKey.AttemptRemainingKey(attemptID.String()), remaining, 0)
	return nil
}

func (p *attemptProvider) Resume(ctx context.Context, attemptID uuid.UUID) error {
	if err := p.attemptRepo.SetStatus(ctx, attemptID, model.AttemptStatusInProgress); err != nil {
		return fmt.Errorf("resume attempt: %w", err)
	}
	return nil
}

func (p *attemptProvider) Complete(ctx context.Context, attemptID uuid.UUID) error {
	return p.finish(ctx, attemptID, model.AttemptStatusCompleted)
}

func (p *attemptProvider) Abandon(ctx context.Context, attemptID uuid.UUID) error {
	return p.finish(ctx, attemptID, model.AttemptStatusAbandoned)
}

func (p *attemptProvider) finish(ctx context.Context, attemptID uuid.UUID, status model.AttemptStatus) error {
	if err := p.attemptRepo.Finish(ctx, attemptID, status); err != nil {
		return fmt.Errorf("finish attempt: %w", err)
	}
	// The hot countdown key is done; the answer hash stays for state reads.
	_ = p.rdb.Del(ctx, config.CacheKey.AttemptRemainingKey(attemptID.String()))
	return nil
}

// SaveRemaining runs on the tick path: always refresh the Redis key, and
// every remainingSyncEvery calls queue a durable snapshot for the worker.
func (p *attemptProvider) SaveRemaining(ctx context.Context, attemptID uuid.UUID, remaining int) error {
	if err := p.rdb.Set(ctx, config.CacheKey.AttemptRemainingKey(attemptID.String()), remaining, 0).Err(); err != nil {
		return fmt.Errorf("cache remaining: %w", err)
	}

	p.syncCount++
	if p.syncCount%remainingSyncEvery != 0 {
		return nil
	}

	payload, _ := json.Marshal(attemptSnapshotPayload{
		AttemptID: attemptID.String(),
		Remaining: remaining,
		Status:    string(model.AttemptStatusInProgress),
	})
	return p.rdb.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, payload).Err()
}

// attemptSnapshotPayload is the queue item consumed by the timer sync worker.
type attemptSnapshotPayload struct {
	AttemptID string `json:"attempt_id"`
	Remaining int    `json:"remaining_seconds"`
	Status    string `json:"status"`
}

// answerPersistPayload is the queue item consumed by the autosave worker.
type answerPersistPayload struct {
	AttemptID  string `json:"attempt_id"`
	QuestionID string `json:"question_id"`
	Value      string `json:"value"`
}

// answerProvider adapts the Redis answer hash + persist queue (hot path)
// and AnswerRepository (resume fallback) to the engine's AnswerProvider.
type answerProvider struct {
	answerRepo *repository.AnswerRepository
	rdb        *redis.Client
}

func (p *answerProvider) Submit(ctx context.Context, attemptID, questionID uuid.UUID, value string) error {
	key := config.CacheKey.AttemptAnswersKey(attemptID.String())
	if err := p.rdb.HSet(ctx, key, questionID.String(), value).Err(); err != nil {
		return fmt.Errorf("cache answer: %w", err)
	}

	payload, _ := json.Marshal(answerPersistPayload{
		AttemptID:  attemptID.String(),
		QuestionID: questionID.String(),
		Value:      value,
	})
	if err := p.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload).Err(); err != nil {
		return fmt.Errorf("queue answer: %w", err)
	}
	return nil
}

func (p *answerProvider) FetchExisting(ctx context.Context, attemptID uuid.UUID) (map[uuid.UUID]string, error) {
	key := config.CacheKey.AttemptAnswersKey(attemptID.String())
	cached, err := p.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("get cached answers: %w", err)
	}

	if len(cached) > 0 {
		return parseAnswerHash(cached), nil
	}

	// Cache miss (evicted or different node): fall back to PostgreSQL and
	// self-heal the hash so the next reload is fast.
	rows, err := p.answerRepo.ListByAttempt(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("list stored answers: %w", err)
	}

	out := make(map[uuid.UUID]string, len(rows))
	for _, a := range rows {
		out[a.QuestionID] = a.Value
		_ = p.rdb.HSet(ctx, key, a.QuestionID.String(), a.Value)
	}
	return out, nil
}

func parseAnswerHash(raw map[string]string) map[uuid.UUID]string {
	out := make(map[uuid.UUID]string, len(raw))
	for k, v := range raw {
		qid, err := uuid.Parse(k)
		if err != nil {
			continue
		}
		out[qid] = v
	}
	return out
}
