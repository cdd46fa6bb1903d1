package model

import (
	"github.com/google/uuid"
)

// Passage represents one reading passage or listening section of a test.
// PassageIndex is the 1-based position within the test.
type Passage struct {
	ID           uuid.UUID `json:"id"`
	TestID       uuid.UUID `json:"test_id"`
	PassageIndex int       `json:"passage_index"`
	Title        string    `json:"title"`
	Body         string    `json:"body,omitempty"`
	AudioURL     *string   `json:"audio_url,omitempty"`
	AllowReplay  bool      `json:"allow_replay"`
}
