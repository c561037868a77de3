package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"briefly/pkg/domain"
)

// RedisSettingsStore keeps session settings in Redis with TTL, so idle
// sessions expire instead of accumulating.
type RedisSettingsStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSettingsStore builds a Redis-backed settings store.
func NewRedisSettingsStore(addr, password string, ttl time.Duration) *RedisSettingsStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisSettingsStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		prefix: "briefly:settings",
		ttl:    ttl,
	}
}

// GetSettings returns session settings when present.
func (s *RedisSettingsStore) GetSettings(sessionID string) (domain.Settings, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	raw, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if err == redis.Nil {
		return domain.Settings{}, false, nil
	}
	if err != nil {
		return domain.Settings{}, false, err
	}
	var settings domain.Settings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return domain.Settings{}, false, fmt.Errorf("decode settings: %w", err)
	}
	return settings, true, nil
}

// SaveSettings stores session settings, refreshing the TTL.
func (s *RedisSettingsStore) SaveSettings(sessionID string, settings domain.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return s.client.Set(ctx, s.key(sessionID), raw, s.ttl).Err()
}

func (s *RedisSettingsStore) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}
