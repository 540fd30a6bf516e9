package dedup

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/mstgnz/paybox/provider"
)

const defaultPrefix = "paybox:callback:"

// RedisLedger is a CallbackLedger backed by SETNX keys with a TTL
type RedisLedger struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisLedger creates a ledger. A zero ttl keeps claims forever.
func NewRedisLedger(client *redis.Client, ttl time.Duration) *RedisLedger {
	return &RedisLedger{client: client, prefix: defaultPrefix, ttl: ttl}
}

// Claim sets the key if absent; the stored value is the provider payment id
func (l *RedisLedger) Claim(ctx context.Context, key, paymentID string) (bool, error) {
	value := paymentID
	if value == "" {
		value = "1"
	}
	ok, err := l.client.SetNX(ctx, l.prefix+key, value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis claim %s: %w", key, err)
	}
	return ok, nil
}

// Release deletes the claim
func (l *RedisLedger) Release(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis release %s: %w", key, err)
	}
	return nil
}

// Ping checks the redis connection
func (l *RedisLedger) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

var _ provider.CallbackLedger = (*RedisLedger)(nil)
