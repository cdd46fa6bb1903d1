package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/falsumairi/ielts-sub001/internal/model"
)

// TestRepository handles test, passage and question data access.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

// GetByID retrieves a single test.
func (r *TestRepository) GetByID(ctx context.Context, testID uuid.UUID) (*model.Test, error) {
	t := &model.Test{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, module, duration_minutes, passage_count, status, created_at, updated_at
		 FROM tests
		 WHERE id = $1`, testID,
	).Scan(&t.ID, &t.Title, &t.Module, &t.DurationMinutes, &t.PassageCount, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListPublished retrieves all tests open to takers.
func (r *TestRepository) ListPublished(ctx context.Context) ([]model.Test, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, module, duration_minutes, passage_count, status, created_at, updated_at
		 FROM tests
		 WHERE status = $1
		 ORDER BY created_at DESC`, model.TestStatusPublished,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []model.Test
	for rows.Next() {
		var t model.Test
		if err := rows.Scan(&t.ID, &t.Title, &t.Module, &t.DurationMinutes, &t.PassageCount, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

// ListPassages retrieves the passages of a test ordered by position.
func (r *TestRepository) ListPassages(ctx context.Context, testID uuid.UUID) ([]model.Passage, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, test_id, passage_index, title, body, audio_url, allow_replay
		 FROM passages
		 WHERE test_id = $1
		 ORDER BY passage_index ASC`, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var passages []model.Passage
	for rows.Next() {
		var p model.Passage
		if err := rows.Scan(&p.ID, &p.TestID, &p.PassageIndex, &p.Title, &p.Body, &p.AudioURL, &p.AllowReplay); err != nil {
			return nil, err
		}
		passages = append(passages, p)
	}
	return passages, rows.Err()
}

// ListQuestions retrieves the questions of a test ordered by number.
func (r *TestRepository) ListQuestions(ctx context.Context, testID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, test_id, passage_id, number, type, prompt, options, answer_key, audio_url, allow_replay
		 FROM questions
		 WHERE test_id = $1
		 ORDER BY number ASC`, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.TestID, &q.PassageID, &q.Number, &q.Type, &q.Prompt, &q.Options, &q.AnswerKey, &q.AudioURL, &q.AllowReplay); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
