package store

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores each slot as a plain string key. Swap uses
// WATCH/MULTI so a concurrent writer aborts the transaction.
type RedisBackend struct {
	rdb *redis.Client
}

func NewRedisBackend(rdb *redis.Client) *RedisBackend {
	return &RedisBackend{rdb: rdb}
}

func (r *RedisBackend) Close() error {
	return r.rdb.Close()
}

// Ping reports whether the server is reachable.
func (r *RedisBackend) Ping(ctx context.Context) error {
	return classifyRedis(r.rdb.Ping(ctx).Err())
}

func (r *RedisBackend) Load(ctx context.Context, key string) ([]byte, error) {
	val, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classifyRedis(err)
	}
	return val, nil
}

func (r *RedisBackend) Swap(ctx context.Context, key string, prev, next []byte) error {
	err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		exists := true
		if errors.Is(err, redis.Nil) {
			exists = false
		} else if err != nil {
			return err
		}
		if !matches(cur, exists, prev) {
			return ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) || errors.Is(err, ErrConflict) {
		return ErrConflict
	}
	return classifyRedis(err)
}

func (r *RedisBackend) Remove(ctx context.Context, key string) error {
	return classifyRedis(r.rdb.Del(ctx, key).Err())
}

// classifyRedis maps network failures to ErrUnavailable.
func classifyRedis(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: redis: %v", ErrUnavailable, err)
	}
	return fmt.Errorf("redis: %w", err)
}
