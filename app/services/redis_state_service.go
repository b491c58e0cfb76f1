package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dacha-ingest/app/models"
)

// stateKey is where the snapshot blob lives in Redis.
const stateKey = "dacha_ingest:state"

// RedisStateService keeps the persisted state as a JSON blob in Redis, for
// deployments where scheduled runs on different hosts share one index.
type RedisStateService struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisStateService connects and pings the server before accepting the
// store as usable.
func NewRedisStateService(redisURL string, logger *zap.Logger) (*RedisStateService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	return &RedisStateService{client: client, logger: logger}, nil
}

// Load fetches and validates the snapshot; a missing key yields a fresh
// state.
func (rs *RedisStateService) Load(ctx context.Context) (*models.PersistedState, error) {
	val, err := rs.client.Get(ctx, stateKey).Result()
	if err == redis.Nil {
		rs.logger.Info("no state in redis, starting fresh")
		return models.NewPersistedState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get state from redis: %w", err)
	}

	var state models.PersistedState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexCorrupt, err)
	}
	if state.Index == nil {
		state.Index = make(models.IdentityIndex)
	}
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexCorrupt, err)
	}

	rs.logger.Info("state loaded from redis",
		zap.Int("listings", len(state.Index)),
		zap.Int("shards", len(state.Shards)))
	return &state, nil
}

// Save replaces the snapshot. No TTL: the index must outlive any cache
// policy.
func (rs *RedisStateService) Save(ctx context.Context, state *models.PersistedState) error {
	if err := state.Validate(); err != nil {
		return fmt.Errorf("refusing to persist invalid state: %w", err)
	}
	b, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := rs.client.Set(ctx, stateKey, b, 0).Err(); err != nil {
		return fmt.Errorf("set state in redis: %w", err)
	}
	rs.logger.Debug("state saved to redis", zap.Int("listings", len(state.Index)))
	return nil
}

// Close shuts the client down.
func (rs *RedisStateService) Close() error { return rs.client.Close() }
