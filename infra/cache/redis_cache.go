package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/travelagency/backoffice/pkg/cache"
	"github.com/travelagency/backoffice/pkg/domain/ledger"
)

// RedisRateCache implements cache.RateCache on redis so every server
// instance sees the same resolved rates.
type RedisRateCache struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisRateCache connects to url and pings it.
func NewRedisRateCache(url, prefix string, logger *slog.Logger) (*RedisRateCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis rate cache: invalid URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis rate cache: connection failed: %w", err)
	}
	return NewRedisRateCacheWithClient(client, prefix, logger), nil
}

// NewRedisRateCacheWithClient wraps an existing client.
func NewRedisRateCacheWithClient(client *redis.Client, prefix string, logger *slog.Logger) *RedisRateCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRateCache{
		client: client,
		prefix: prefix,
		logger: logger.With("component", "redis-rate-cache"),
	}
}

func (r *RedisRateCache) key(key string) string {
	return r.prefix + key
}

func (r *RedisRateCache) Get(ctx context.Context, key string) (*ledger.ExchangeRate, error) {
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		r.logger.Debug("Redis cache miss", "key", key)
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Redis cache get error", "key", key, "error", err)
		return nil, err
	}
	var rate ledger.ExchangeRate
	if err := json.Unmarshal([]byte(val), &rate); err != nil {
		r.logger.Error("Redis cache unmarshal error", "key", key, "error", err)
		return nil, err
	}
	r.logger.Debug("Redis cache hit", "key", key, "rate", rate.Rate.String())
	return &rate, nil
}

func (r *RedisRateCache) Set(ctx context.Context, key string, rate *ledger.ExchangeRate, ttl time.Duration) error {
	data, err := json.Marshal(rate)
	if err != nil {
		r.logger.Error("Redis cache marshal error", "key", key, "error", err)
		return err
	}
	if err := r.client.Set(ctx, r.key(key), data, ttl).Err(); err != nil {
		r.logger.Error("Redis cache set error", "key", key, "error", err)
		return err
	}
	return nil
}

// Clear deletes every key under the cache prefix.
func (r *RedisRateCache) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis rate cache: scan failed: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

var _ cache.RateCache = (*RedisRateCache)(nil)
