package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// AttemptAnswersKey returns the cache key for an attempt's answer hash.
func (r *CacheKeyStruct) AttemptAnswersKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:answers", attemptID)
}

// AttemptRemainingKey returns the cache key for an attempt's countdown.
func (r *CacheKeyStruct) AttemptRemainingKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:remaining", attemptID)
}

// UserOpenAttemptKey returns the cache key for a user's open attempt on a test.
func (r *CacheKeyStruct) UserOpenAttemptKey(testID string, userID int) string {
	return fmt.Sprintf("user:%d:test:%s:open_attempt", userID, testID)
}

// TestPaperKey returns the cache key for a test's taker-facing paper.
func (r *CacheKeyStruct) TestPaperKey(testID string) string {
	return fmt.Sprintf("test:%s:paper", testID)
}

// TestDurationKey returns the cache key for a test's duration in minutes.
func (r *CacheKeyStruct) TestDurationKey(testID string) string {
	return fmt.Sprintf("test:%s:duration", testID)
}

// AudioPlaysKey returns the cache key for a client profile's play-once hash.
func (r *CacheKeyStruct) AudioPlaysKey(profileID string) string {
	return fmt.Sprintf("profile:%s:audio_plays", profileID)
}

var CacheKey = NewCacheKeyStruct()
