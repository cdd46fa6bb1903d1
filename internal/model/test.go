package model

import (
	"time"

	"github.com/google/uuid"
)

// TestModule enumerates the four practice modules.
type TestModule string

const (
	TestModuleListening TestModule = "LISTENING"
	TestModuleReading   TestModule = "READING"
	TestModuleWriting   TestModule = "WRITING"
	TestModuleSpeaking  TestModule = "SPEAKING"
)

// TestStatus enumerates the possible states of a test.
type TestStatus string

const (
	TestStatusDraft     TestStatus = "DRAFT"
	TestStatusPublished TestStatus = "PUBLISHED"
	TestStatusArchived  TestStatus = "ARCHIVED"
)

// Test represents a practice test entity.
type Test struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Module          TestModule `json:"module"`
	DurationMinutes int        `json:"duration_minutes"`
	PassageCount    int        `json:"passage_count"`
	Status          TestStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TestPaper is the Redis-cached payload sent to test takers (no answer keys).
type TestPaper struct {
	TestID    uuid.UUID          `json:"test_id"`
	Title     string             `json:"title"`
	Module    TestModule         `json:"module"`
	Duration  int                `json:"duration_minutes"`
	Passages  []Passage          `json:"passages"`
	Questions []QuestionForTaker `json:"questions"`
}
