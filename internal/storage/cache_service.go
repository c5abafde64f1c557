package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheService provides JSON caching on top of Redis. Claim previews and
// balance range queries are the hot read paths; both are cheap to recompute,
// so a short TTL keeps them fresh without invalidation plumbing.
type CacheService struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewCacheService creates a new cache service.
func NewCacheService(redis *RedisCache, ttl time.Duration) *CacheService {
	return &CacheService{
		redis: redis,
		ttl:   ttl,
	}
}

// CacheKeyType represents different types of cache keys.
type CacheKeyType string

const (
	// CacheKeyPreview is for claim previews.
	CacheKeyPreview CacheKeyType = "preview"
	// CacheKeyBalances is for daily balance ranges.
	CacheKeyBalances CacheKeyType = "balances"
	// CacheKeyYield is for per-day yield ranges.
	CacheKeyYield CacheKeyType = "yield"
)

// GenerateCacheKey builds a key as <type>:<param1>:<param2>:... with
// parameters lowercased so mixed-case addresses hit the same entry.
func (c *CacheService) GenerateCacheKey(keyType CacheKeyType, params ...string) string {
	normalized := make([]string, len(params))
	for i, param := range params {
		normalized[i] = strings.ToLower(param)
	}

	parts := append([]string{string(keyType)}, normalized...)
	return strings.Join(parts, ":")
}

// GeneratePreviewKey builds the key for an account's claim preview.
// Format: preview:<account>:<amount|all>
func (c *CacheService) GeneratePreviewKey(account, amount string) string {
	return c.GenerateCacheKey(CacheKeyPreview, account, amount)
}

// GenerateBalancesKey builds the key for a daily balance range.
// Format: balances:<account>:<fromDay>:<toDay>
func (c *CacheService) GenerateBalancesKey(account string, fromDay, toDay uint64) string {
	return c.GenerateCacheKey(CacheKeyBalances, account, fmt.Sprintf("%d", fromDay), fmt.Sprintf("%d", toDay))
}

// GenerateYieldKey builds the key for a per-day yield range.
// Format: yield:<account>:<fromDay>:<toDay>
func (c *CacheService) GenerateYieldKey(account string, fromDay, toDay uint64) string {
	return c.GenerateCacheKey(CacheKeyYield, account, fmt.Sprintf("%d", fromDay), fmt.Sprintf("%d", toDay))
}

// Set stores a value in cache with the configured TTL.
func (c *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	return c.SetWithTTL(ctx, key, value, c.ttl)
}

// SetWithTTL stores a value in cache with a custom TTL.
func (c *CacheService) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return c.redis.Set(ctx, key, data, ttl)
}

// Get retrieves a value from cache and deserializes it. A miss returns
// (false, nil).
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.redis.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	return true, nil
}

// Invalidate removes one or more keys from cache.
func (c *CacheService) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...)
}

// InvalidateAccount drops every cached entry for an account. Claims change
// the preview and yield projections, so the service calls this after each
// executed claim.
func (c *CacheService) InvalidateAccount(ctx context.Context, account string) error {
	account = strings.ToLower(account)
	var stale []string
	for _, keyType := range []CacheKeyType{CacheKeyPreview, CacheKeyBalances, CacheKeyYield} {
		keys, err := c.redis.Keys(ctx, string(keyType)+":"+account+":*")
		if err != nil {
			return fmt.Errorf("failed to list cache keys: %w", err)
		}
		stale = append(stale, keys...)
	}
	return c.Invalidate(ctx, stale...)
}
