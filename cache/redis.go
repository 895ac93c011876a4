package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"weather-dashboard/models"
)

const redisKeyPrefix = "weather:forecast:"

// RedisStore shares cached forecasts between instances
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps a client; ttl applies when Set is given none
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// DialRedis connects and pings the server
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return rdb, nil
}

func redisKey(key string) string { return redisKeyPrefix + key }

func (r *RedisStore) Get(ctx context.Context, key string) (models.ForecastData, bool, error) {
	b, err := r.rdb.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.ForecastData{}, false, nil
	}
	if err != nil {
		return models.ForecastData{}, false, fmt.Errorf("failed to read cached forecast: %w", err)
	}
	var data models.ForecastData
	if err := json.Unmarshal(b, &data); err != nil {
		return models.ForecastData{}, false, fmt.Errorf("failed to decode cached forecast: %w", err)
	}
	return data, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, data models.ForecastData, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.ttl
	}
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode forecast: %w", err)
	}
	return r.rdb.Set(ctx, redisKey(key), b, ttl).Err()
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, redisKey(key)).Err()
}

func (r *RedisStore) Close() error {
	return r.rdb.Close()
}
