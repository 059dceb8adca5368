package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "getwork:quota:"

// RedisStore is the shared UsageStore backing distributed collector runs.
// Counter keys carry their window in the name; expiry is set on first
// increment so stale windows clean themselves up.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore wraps an already-connected client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Incr implements UsageStore.
func (r *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := r.rdb.TxPipeline()
	incr := pipe.Incr(ctx, keyPrefix+key)
	pipe.ExpireNX(ctx, keyPrefix+key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return incr.Val(), nil
}

// Count implements UsageStore.
func (r *RedisStore) Count(ctx context.Context, key string) (int64, error) {
	n, err := r.rdb.Get(ctx, keyPrefix+key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", key, err)
	}
	return n, nil
}

// SetBlock implements UsageStore.
func (r *RedisStore) SetBlock(ctx context.Context, source string, d time.Duration) error {
	if err := r.rdb.Set(ctx, keyPrefix+"block:"+source, 1, d).Err(); err != nil {
		return fmt.Errorf("set block %s: %w", source, err)
	}
	return nil
}

// Blocked implements UsageStore.
func (r *RedisStore) Blocked(ctx context.Context, source string) (bool, error) {
	n, err := r.rdb.Exists(ctx, keyPrefix+"block:"+source).Result()
	if err != nil {
		return false, fmt.Errorf("exists block %s: %w", source, err)
	}
	return n > 0, nil
}
