package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/falsumairi/ielts-sub001/internal/model"
)

// TestProvider supplies the static descriptive data of a test. Failures
// bubble as *LoadError.
type TestProvider interface {
	FetchTest(ctx context.Context, testID uuid.UUID) (*model.Test, error)
	FetchPassages(ctx context.Context, testID uuid.UUID) ([]model.Passage, error)
	FetchQuestions(ctx context.Context, testID uuid.UUID) ([]model.Question, error)
}

// AttemptProvider is the authoritative persistence boundary for session
// status. Every call is expected to be idempotent on the remote side.
type AttemptProvider interface {
	// CreateOrResume returns the open attempt for (testID, userID) if one
	// exists, otherwise creates a fresh one. resumed reports which case hit.
	CreateOrResume(ctx context.Context, testID uuid.UUID, userID int) (attempt *model.Attempt, resumed bool, err error)
	Pause(ctx context.Context, attemptID uuid.UUID, remaining int) error
	Resume(ctx context.Context, attemptID uuid.UUID) error
	Complete(ctx context.Context, attemptID uuid.UUID) error
	Abandon(ctx context.Context, attemptID uuid.UUID) error
	// SaveRemaining syncs the countdown; called on the tick path, so
	// implementations must be cheap and errors are absorbed by the caller.
	SaveRemaining(ctx context.Context, attemptID uuid.UUID, remaining int) error
}

// AnswerProvider persists answer values and hydrates them on resume.
type AnswerProvider interface {
	Submit(ctx context.Context, attemptID, questionID uuid.UUID, value string) error
	FetchExisting(ctx context.Context, attemptID uuid.UUID) (map[uuid.UUID]string, error)
}
