// Package limits enforces the per-player daily aggregate bet limit. Usage is
// tracked in redis day buckets so the count survives engine restarts and is
// shared with any other game type the operator runs.
package limits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrDailyLimitExceeded = errors.New("daily bet limit exceeded")

// Counter is the slice of redis the service needs; fakes implement it in
// tests.
type Counter interface {
	GetFloat(ctx context.Context, key string) (float64, error)
	IncrByFloat(ctx context.Context, key string, value float64, ttl time.Duration) error
}

// Service implements the engine's LimitChecker port. Redis outages fail
// open: gameplay liveness wins over limit strictness, and the miss is logged.
type Service struct {
	counter Counter
	limit   float64
	log     *zap.Logger
	now     func() time.Time
}

func New(counter Counter, dailyLimit float64, log *zap.Logger) *Service {
	return &Service{
		counter: counter,
		limit:   dailyLimit,
		log:     log,
		now:     time.Now,
	}
}

func (s *Service) CheckDailyLimit(playerID string, amount float64) error {
	if s.limit <= 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	used, err := s.counter.GetFloat(ctx, s.key(playerID))
	if err != nil {
		s.log.Warn("daily limit check unavailable, allowing bet",
			zap.String("player", playerID), zap.Error(err))
		return nil
	}

	if used+amount > s.limit {
		return ErrDailyLimitExceeded
	}
	return nil
}

func (s *Service) RecordWager(playerID string, amount float64) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	// 48h TTL keeps the bucket alive across the whole UTC day it covers.
	if err := s.counter.IncrByFloat(ctx, s.key(playerID), amount, 48*time.Hour); err != nil {
		s.log.Warn("daily limit counter update failed",
			zap.String("player", playerID), zap.Error(err))
	}
}

func (s *Service) key(playerID string) string {
	return fmt.Sprintf("wagered:%s:%s", playerID, s.now().UTC().Format("2006-01-02"))
}

// RedisCounter backs the service with a real redis client.
type RedisCounter struct {
	rdb *redis.Client
}

func NewRedisCounter(rdb *redis.Client) *RedisCounter {
	return &RedisCounter{rdb: rdb}
}

func (c *RedisCounter) GetFloat(ctx context.Context, key string) (float64, error) {
	v, err := c.rdb.Get(ctx, key).Float64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (c *RedisCounter) IncrByFloat(ctx context.Context, key string, value float64, ttl time.Duration) error {
	if err := c.rdb.IncrByFloat(ctx, key, value).Err(); err != nil {
		return err
	}
	return c.rdb.Expire(ctx, key, ttl).Err()
}

// ConnectRedis dials redis and verifies the connection.
func ConnectRedis(addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return rdb, nil
}
