package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// RedisProductionCache keeps annual production per mandatary and year.
// Entries are refreshed on every fresh aggregation and expire after ttl.
type RedisProductionCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisProductionCache(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisProductionCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisProductionCache{
		client: client,
		prefix: normalizePrefix(prefix, "crm:production"),
		ttl:    ttl,
	}
}

func (c *RedisProductionCache) key(mandataryID string, year int) string {
	return fmt.Sprintf("%s:%s:%d", c.prefix, mandataryID, year)
}

func (c *RedisProductionCache) Get(ctx context.Context, mandataryID string, year int) (decimal.Decimal, bool, error) {
	raw, err := c.client.Get(ctx, c.key(mandataryID, year)).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}

	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("corrupt cached production for %s/%d: %w", mandataryID, year, err)
	}
	return value, true, nil
}

func (c *RedisProductionCache) Set(ctx context.Context, mandataryID string, year int, production decimal.Decimal) error {
	return c.client.Set(ctx, c.key(mandataryID, year), production.String(), c.ttl).Err()
}
