package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/falsumairi/ielts-sub001/internal/config"
	"github.com/falsumairi/ielts-sub001/internal/repository"
)

// TimerSyncWorker consumes persist_attempts_queue and writes countdown
// snapshots to PostgreSQL. Redis keeps the authoritative per-second value;
// this keeps the database close enough for crash recovery.
type TimerSyncWorker struct {
	attemptRepo *repository.AttemptRepository
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewTimerSyncWorker creates a new TimerSyncWorker.
func NewTimerSyncWorker(attemptRepo *repository.AttemptRepository, rdb *redis.Client, log zerolog.Logger) *TimerSyncWorker {
	return &TimerSyncWorker{
		attemptRepo: attemptRepo,
		rdb:         rdb,
		log:         log.With().Str("component", "timer_sync_worker").Logger(),
	}
}

type attemptSnapshot struct {
	AttemptID string `json:"attempt_id"`
	Remaining int    `json:"remaining_seconds"`
	Status    string `json:"status"`
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *TimerSyncWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *TimerSyncWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistAttemptsQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var snap attemptSnapshot
	if err := json.Unmarshal([]byte(result[1]), &snap); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return
	}

	if err := w.persistSnapshot(ctx, &snap); err != nil {
		w.log.Error().Err(err).
			Str("attempt_id", snap.AttemptID).
			Msg("Persist error, retrying in 5s")
		w.rdb.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

func (w *TimerSyncWorker) persistSnapshot(ctx context.Context, s *attemptSnapshot) error {
	attemptID, err := uuid.Parse(s.AttemptID)
	if err != nil {
		return err
	}

	// SaveRemaining guards on status, so a snapshot queued before the
	// attempt finished never overwrites the terminal row.
	return w.attemptRepo.SaveRemaining(ctx, attemptID, s.Remaining)
}

func (w *TimerSyncWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.PersistAttemptsQueue).Result()
		if err != nil {
			break
		}

		var snap attemptSnapshot
		if err := json.Unmarshal([]byte(result), &snap); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if err := w.persistSnapshot(ctx, &snap); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining snapshots")
	}
}
