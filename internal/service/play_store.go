package service

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/falsumairi/ielts-sub001/internal/config"
)

// RedisPlayStore backs the play-once guard with one Redis hash per client
// profile. The profile id is client-chosen and not server-authoritative:
// clearing it resets the plays, exactly like clearing browser storage did.
type RedisPlayStore struct {
	rdb       *redis.Client
	profileID string
}

// NewRedisPlayStore scopes a play store to one client profile.
func NewRedisPlayStore(rdb *redis.Client, profileID string) *RedisPlayStore {
	return &RedisPlayStore{rdb: rdb, profileID: profileID}
}

func (s *RedisPlayStore) key() string {
	return config.CacheKey.AudioPlaysKey(s.profileID)
}

// Get reports whether the audio id has a play record.
func (s *RedisPlayStore) Get(ctx context.Context, audioID string) (bool, error) {
	v, err := s.rdb.HGet(ctx, s.key(), audioID).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("play store get: %w", err)
	}
	return v == "1", nil
}

// Set records the play. Irreversible: there is no delete path.
func (s *RedisPlayStore) Set(ctx context.Context, audioID string) error {
	if err := s.rdb.HSet(ctx, s.key(), audioID, "1").Err(); err != nil {
		return fmt.Errorf("play store set: %w", err)
	}
	return nil
}
