package model

import (
	"time"

	"github.com/google/uuid"
)

// Answer is the live value for one question within an attempt. At most one
// row exists per (attempt_id, question_id); later writes overwrite earlier
// ones.
type Answer struct {
	AttemptID  uuid.UUID `json:"attempt_id"`
	QuestionID uuid.UUID `json:"question_id"`
	Value      string    `json:"value"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SubmitAnswerRequest is the payload for the REST answer upsert. An empty
// value is valid and marks the question as unanswered again.
type SubmitAnswerRequest struct {
	Value string `json:"value" binding:"max=10000"`
}
