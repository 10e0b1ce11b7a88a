package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "idempotency:"

// RedisCache is shared by every API instance, so the dedup guarantee holds
// when the service is scaled horizontally.
type RedisCache struct {
	client redis.UniversalClient
}

// NewRedisCache wraps an existing redis client.
func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

func redisKey(id string) string {
	return keyPrefix + id
}

// Begin implements Cache with a single SET NX.
func (c *RedisCache) Begin(ctx context.Context, id string, claimTTL time.Duration) (Claim, error) {
	if claimTTL <= 0 {
		claimTTL = DefaultClaimTTL
	}
	pending, err := encodeEntry(entry{State: entryPending})
	if err != nil {
		return Claim{}, err
	}

	// The second round covers a claim that expired between SETNX and GET.
	for range 2 {
		acquired, err := c.client.SetNX(ctx, redisKey(id), pending, claimTTL).Result()
		if err != nil {
			return Claim{}, fmt.Errorf("idempotency claim: %w", err)
		}
		if acquired {
			return Claim{State: StateAcquired}, nil
		}

		raw, err := c.client.Get(ctx, redisKey(id)).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return Claim{}, fmt.Errorf("idempotency lookup: %w", err)
		}
		e, err := decodeEntry(raw)
		if err != nil {
			return Claim{}, fmt.Errorf("idempotency decode: %w", err)
		}
		return claimFor(e), nil
	}

	return Claim{State: StateInProgress}, nil
}

// IsProcessed reports whether id finished processing and is still cached.
func (c *RedisCache) IsProcessed(ctx context.Context, id string) (bool, error) {
	_, ok, err := c.GetCachedResult(ctx, id)
	return ok, err
}

// MarkProcessed stores the result of id for ttl, DefaultResultTTL when ttl <= 0.
func (c *RedisCache) MarkProcessed(ctx context.Context, id string, result []byte, ttl time.Duration) error {
	raw, err := encodeEntry(entry{State: entryDone, Result: result})
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, redisKey(id), raw, resultTTL(ttl)).Err(); err != nil {
		return fmt.Errorf("idempotency mark: %w", err)
	}
	return nil
}

// GetCachedResult returns the stored result of a processed id.
func (c *RedisCache) GetCachedResult(ctx context.Context, id string) ([]byte, bool, error) {
	raw, err := c.client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("idempotency lookup: %w", err)
	}
	e, err := decodeEntry(raw)
	if err != nil {
		return nil, false, fmt.Errorf("idempotency decode: %w", err)
	}
	if e.State != entryDone {
		return nil, false, nil
	}
	return e.Result, true, nil
}

// Clear forgets id so the next delivery is processed again.
func (c *RedisCache) Clear(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, redisKey(id)).Err(); err != nil {
		return fmt.Errorf("idempotency clear: %w", err)
	}
	return nil
}

var _ Cache = (*RedisCache)(nil)
