package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/gdmt-engine/internal/domain"
)

// RedisStore is the shared tier. Calls go through a circuit breaker so an unavailable Redis
// costs one fast failure per request instead of a timeout.
type RedisStore struct {
	redis      *redis.Client
	breaker    *gobreaker.CircuitBreaker
	defaultTTL time.Duration
	logger     *logrus.Logger
}

// NewRedisStore connects to the Redis instance named by config.RedisURL.
func NewRedisStore(ctx context.Context, config domain.CacheConfig, logger *logrus.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisStore(client, config.DefaultTTL, logger), nil
}

func newRedisStore(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisStore {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-cache",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &RedisStore{
		redis:      client,
		breaker:    breaker,
		defaultTTL: ttl,
		logger:     logger,
	}
}

// Get retrieves cached outputs. A corrupted or expired entry is deleted and reported as a miss.
func (r *RedisStore) Get(ctx context.Context, key string) ([]domain.RecommendationOutput, bool, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		val, err := r.redis.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return val, err
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached recommendations: %w", err)
	}
	if result == nil {
		return nil, false, nil
	}
	data, ok := result.([]byte)
	if !ok || data == nil {
		return nil, false, nil
	}

	var cached cachedResult
	if err := json.Unmarshal(data, &cached); err != nil || time.Now().After(cached.ExpiresAt) {
		r.redis.Del(ctx, key)
		return nil, false, nil
	}

	return cached.Outputs, true, nil
}

// Set caches outputs for the default TTL.
func (r *RedisStore) Set(ctx context.Context, key string, outputs []domain.RecommendationOutput) error {
	now := time.Now()
	data, err := json.Marshal(cachedResult{
		Outputs:   outputs,
		CachedAt:  now,
		ExpiresAt: now.Add(r.defaultTTL),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal recommendation cache data: %w", err)
	}

	_, err = r.breaker.Execute(func() (interface{}, error) {
		return nil, r.redis.Set(ctx, key, data, r.defaultTTL).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to cache recommendations: %w", err)
	}
	return nil
}

// State reports the breaker state.
func (r *RedisStore) State() gobreaker.State {
	return r.breaker.State()
}

// Name identifies the tier in logs.
func (r *RedisStore) Name() string {
	return "redis"
}

// Ping checks if Redis connection is alive
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.redis.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	return r.redis.Close()
}
