package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// QuestionType enumerates supported answer formats.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeFillBlank      QuestionType = "FILL_BLANK"
	QuestionTypeMatching       QuestionType = "MATCHING"
	QuestionTypeEssay          QuestionType = "ESSAY"
)

// Question represents a single test question.
type Question struct {
	ID          uuid.UUID       `json:"id"`
	TestID      uuid.UUID       `json:"test_id"`
	PassageID   uuid.UUID       `json:"passage_id"`
	Number      int             `json:"number"`
	Type        QuestionType    `json:"type"`
	Prompt      string          `json:"prompt"`
	Options     json.RawMessage `json:"options,omitempty"`
	AnswerKey   string          `json:"answer_key,omitempty"`
	AudioURL    *string         `json:"audio_url,omitempty"`
	AllowReplay bool            `json:"allow_replay"`
}

// QuestionForTaker is a question with the answer key stripped, safe to send
// to an active test taker.
type QuestionForTaker struct {
	ID          uuid.UUID       `json:"id"`
	PassageID   uuid.UUID       `json:"passage_id"`
	Number      int             `json:"number"`
	Type        QuestionType    `json:"type"`
	Prompt      string          `json:"prompt"`
	Options     json.RawMessage `json:"options,omitempty"`
	AudioURL    *string         `json:"audio_url,omitempty"`
	AllowReplay bool            `json:"allow_replay"`
}

// ForTaker strips grading fields from a question.
func (q Question) ForTaker() QuestionForTaker {
	return QuestionForTaker{
		ID:          q.ID,
		PassageID:   q.PassageID,
		Number:      q.Number,
		Type:        q.Type,
		Prompt:      q.Prompt,
		Options:     q.Options,
		AudioURL:    q.AudioURL,
		AllowReplay: q.AllowReplay,
	}
}
