package daypnl

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSnapshotStore persists DailyPnLState under a per-key Redis string
// so a restarted host can recover today's accounting instead of starting
// the day from zero (spec.md §9's host-cache persistence contract).
type RedisSnapshotStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisSnapshotStore wraps an existing go-redis client. ttl bounds how
// long a snapshot survives without being refreshed; pass 0 for no
// expiry (the daily reset naturally overwrites the key every day).
func NewRedisSnapshotStore(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisSnapshotStore {
	if keyPrefix == "" {
		keyPrefix = "wfrisk:daypnl:"
	}
	return &RedisSnapshotStore{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (r *RedisSnapshotStore) redisKey(key string) string {
	return r.keyPrefix + key
}

// Save writes state as JSON. Uses a short bounded context since this is
// called from the live path and must never block it indefinitely.
func (r *RedisSnapshotStore) Save(key string, state DailyPnLState) error {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("daypnl: marshal snapshot for %q: %w", key, err)
	}
	if err := r.client.Set(ctx, r.redisKey(key), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("daypnl: redis set for %q: %w", key, err)
	}
	return nil
}

// Load reads back a previously saved state. Returns found=false (not an
// error) when no snapshot exists for key.
func (r *RedisSnapshotStore) Load(key string) (DailyPnLState, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	raw, err := r.client.Get(ctx, r.redisKey(key)).Bytes()
	if err == redis.Nil {
		return DailyPnLState{}, false, nil
	}
	if err != nil {
		return DailyPnLState{}, false, fmt.Errorf("daypnl: redis get for %q: %w", key, err)
	}

	var state DailyPnLState
	if err := json.Unmarshal(raw, &state); err != nil {
		return DailyPnLState{}, false, fmt.Errorf("daypnl: unmarshal snapshot for %q: %w", key, err)
	}
	return state, true, nil
}
