package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

const (
	allocatedQuantityPrefix = "lc:allocated:"
	allocatedQuantityTTL    = 5 * time.Minute
)

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// QuantityCache keeps a short-lived copy of each LC's allocated quantity.
// The junction rows remain the source of truth; every allocation write
// invalidates the entry so the next read recomputes from source. A nil
// client disables caching entirely.
type QuantityCache struct {
	rdb *redis.Client
}

func NewQuantityCache(rdb *redis.Client) *QuantityCache {
	return &QuantityCache{rdb: rdb}
}

// GetAllocated returns the cached allocated quantity for an LC, and
// whether a cached value was present.
func (c *QuantityCache) GetAllocated(ctx context.Context, lcID string) (int64, bool) {
	if c == nil || c.rdb == nil {
		return 0, false
	}

	val, err := c.rdb.Get(ctx, allocatedQuantityPrefix+lcID).Result()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("lc_id", lcID).Msg("quantity cache read failed")
		}
		return 0, false
	}

	quantity, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return quantity, true
}

// SetAllocated stores the allocated quantity for an LC.
func (c *QuantityCache) SetAllocated(ctx context.Context, lcID string, quantity int64) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, allocatedQuantityPrefix+lcID, quantity, allocatedQuantityTTL).Err(); err != nil {
		log.Warn().Err(err).Str("lc_id", lcID).Msg("quantity cache write failed")
	}
}

// Invalidate drops the cached quantity for an LC after an allocation write.
func (c *QuantityCache) Invalidate(ctx context.Context, lcID string) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, allocatedQuantityPrefix+lcID).Err(); err != nil {
		log.Warn().Err(err).Str("lc_id", lcID).Msg("quantity cache invalidation failed")
	}
}
