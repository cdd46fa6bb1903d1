package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/falsumairi/ielts-sub001/internal/model"
)

// AttemptRepository handles test attempt data access. A partial unique index
// on (test_id, user_id) WHERE status IN ('IN_PROGRESS','PAUSED') enforces at
// most one open attempt per user per test.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// GetByID retrieves a single attempt.
func (r *AttemptRepository) GetByID(ctx context.Context, attemptID uuid.UUID) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, test_id, user_id, status, started_at, finished_at, time_remaining_seconds
		 FROM attempts
		 WHERE id = $1`, attemptID,
	).Scan(&a.ID, &a.TestID, &a.UserID, &a.Status, &a.StartedAt, &a.FinishedAt, &a.TimeRemaining)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetOpen retrieves the open (in progress or paused) attempt for a
// test-user combination, if any.
func (r *AttemptRepository) GetOpen(ctx context.Context, testID uuid.UUID, userID int) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, test_id, user_id, status, started_at, finished_at, time_remaining_seconds
		 FROM attempts
		 WHERE test_id = $1 AND user_id = $2 AND status IN ($3, $4)`,
		testID, userID, model.AttemptStatusInProgress, model.AttemptStatusPaused,
	).Scan(&a.ID, &a.TestID, &a.UserID, &a.Status, &a.StartedAt, &a.FinishedAt, &a.TimeRemaining)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Create inserts a new attempt with its initial countdown.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO attempts (test_id, user_id, status, time_remaining_seconds)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, started_at`,
		a.TestID, a.UserID, model.AttemptStatusInProgress, a.TimeRemaining,
	).Scan(&a.ID, &a.StartedAt)
}

// SetStatus updates the lifecycle status of an open attempt. Idempotent:
// re-applying the current status is a no-op, and terminal rows are never
// reopened.
func (r *AttemptRepository) SetStatus(ctx context.Context, attemptID uuid.UUID, status model.AttemptStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET status = $1
		 WHERE id = $2 AND status NOT IN ($3, $4)`,
		status, attemptID, model.AttemptStatusCompleted, model.AttemptStatusAbandoned)
	return err
}

// Finish marks an attempt terminal (completed or abandoned).
func (r *AttemptRepository) Finish(ctx context.Context, attemptID uuid.UUID, status model.AttemptStatus) error {
	now := time.Now()
	_, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET status = $1, finished_at = $2
		 WHERE id = $3 AND status NOT IN ($4, $5)`,
		status, now, attemptID, model.AttemptStatusCompleted, model.AttemptStatusAbandoned)
	return err
}

// SaveRemaining syncs the countdown of an open attempt.
func (r *AttemptRepository) SaveRemaining(ctx context.Context, attemptID uuid.UUID, remaining int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET time_remaining_seconds = $1
		 WHERE id = $2 AND status NOT IN ($3, $4)`,
		remaining, attemptID, model.AttemptStatusCompleted, model.AttemptStatusAbandoned)
	return err
}

// ListByUser retrieves all attempts of a user, newest first.
func (r *AttemptRepository) ListByUser(ctx context.Context, userID int) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, test_id, user_id, status, started_at, finished_at, time_remaining_seconds
		 FROM attempts
		 WHERE user_id = $1
		 ORDER BY started_at DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := rows.Scan(&a.ID, &a.TestID, &a.UserID, &a.Status, &a.StartedAt, &a.FinishedAt, &a.TimeRemaining); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
