// Package redisset implements the ranked session set on a Redis sorted set.
package redisset

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ZINCRBY then clamp the floor in one round trip. The clamp keeps
// health scores from going negative under concurrent penalties.
const luaIncrClamped = `
local score = redis.call('ZINCRBY', KEYS[1], ARGV[1], ARGV[2])
local floor = tonumber(ARGV[3])
if tonumber(score) < floor then
	redis.call('ZADD', KEYS[1], floor, ARGV[2])
	return floor
end
return score
`

// Set is a RankedSet backed by a Redis sorted set. Each call maps to a
// single atomic Redis command; pop and re-insert are intentionally not
// wrapped in a transaction.
type Set struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// New creates a Set around an existing go-redis client.
func New(rdb *redis.Client, logger *zap.Logger) *Set {
	return &Set{rdb: rdb, logger: logger}
}

// Connect dials Redis and verifies the connection with a ping.
func Connect(ctx context.Context, addr, password string, db int, logger *zap.Logger) (*Set, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	logger.Debug("redis connected", zap.String("addr", addr), zap.Int("db", db))
	return New(rdb, logger), nil
}

// PopMax removes and returns the member with the highest score.
// ok is false when the set is empty.
func (s *Set) PopMax(ctx context.Context, key string) (string, float64, bool, error) {
	entries, err := s.rdb.ZPopMax(ctx, key, 1).Result()
	if err != nil {
		s.logger.Error("redis ZPOPMAX failed", zap.String("key", key), zap.Error(err))
		return "", 0, false, fmt.Errorf("redis zpopmax: %w", err)
	}
	if len(entries) == 0 {
		return "", 0, false, nil
	}
	member, ok := entries[0].Member.(string)
	if !ok {
		member = fmt.Sprint(entries[0].Member)
	}
	return member, entries[0].Score, true, nil
}

// Add inserts or updates a member at the given score.
func (s *Set) Add(ctx context.Context, key, member string, score float64) error {
	if err := s.rdb.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err(); err != nil {
		s.logger.Error("redis ZADD failed",
			zap.String("key", key),
			zap.Float64("score", score),
			zap.Error(err))
		return fmt.Errorf("redis zadd: %w", err)
	}
	return nil
}

// IncrClamped adjusts a member's score by delta, clamping at floor.
// Returns the resulting score.
func (s *Set) IncrClamped(ctx context.Context, key, member string, delta, floor float64) (float64, error) {
	res, err := s.rdb.Eval(ctx, luaIncrClamped, []string{key}, delta, member, floor).Result()
	if err != nil {
		s.logger.Error("redis clamped ZINCRBY failed",
			zap.String("key", key),
			zap.String("member", member),
			zap.Float64("delta", delta),
			zap.Error(err))
		return 0, fmt.Errorf("redis clamped zincrby: %w", err)
	}
	switch v := res.(type) {
	case int64:
		return float64(v), nil
	case string:
		var score float64
		if _, err := fmt.Sscanf(v, "%g", &score); err != nil {
			return 0, fmt.Errorf("parse score %q: %w", v, err)
		}
		return score, nil
	case float64:
		return v, nil
	default:
		return 0, fmt.Errorf("unexpected eval result type %T", res)
	}
}

// Remove deletes a member from the set.
func (s *Set) Remove(ctx context.Context, key, member string) error {
	if err := s.rdb.ZRem(ctx, key, member).Err(); err != nil {
		s.logger.Error("redis ZREM failed",
			zap.String("key", key),
			zap.String("member", member),
			zap.Error(err))
		return fmt.Errorf("redis zrem: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *Set) Close() error {
	return s.rdb.Close()
}
