package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates test attempt states. Transitions are monotonic
// except the paused/in_progress pair.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusPaused     AttemptStatus = "PAUSED"
	AttemptStatusCompleted  AttemptStatus = "COMPLETED"
	AttemptStatusAbandoned  AttemptStatus = "ABANDONED"
)

// Terminal reports whether no further transitions are allowed.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptStatusCompleted || s == AttemptStatusAbandoned
}

// Attempt represents a single test-taking instance for one user.
type Attempt struct {
	ID            uuid.UUID     `json:"id"`
	TestID        uuid.UUID     `json:"test_id"`
	UserID        int           `json:"user_id"`
	Status        AttemptStatus `json:"status"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    *time.Time    `json:"finished_at,omitempty"`
	TimeRemaining int           `json:"time_remaining_seconds"`
}

// AttemptState is the reload payload: everything the frontend needs to
// restore an in-flight attempt (answers so far plus the countdown).
type AttemptState struct {
	AttemptID     uuid.UUID         `json:"attempt_id"`
	TestID        uuid.UUID         `json:"test_id"`
	Status        AttemptStatus     `json:"status"`
	Answers       map[string]string `json:"answers"`
	TimeRemaining int               `json:"time_remaining_seconds"`
}
