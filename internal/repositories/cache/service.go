// Package cache keeps versioned copies of wallet balances in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"payledger/internal/models"

	"github.com/redis/go-redis/v9"
)

type CacheService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCacheService(client *redis.Client, defaultTTL time.Duration) *CacheService {
	return &CacheService{
		client: client,
		ttl:    defaultTTL,
	}
}

// Base operations
func (s *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	return s.SetWithTTL(ctx, key, value, s.ttl)
}

func (s *CacheService) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get cache value: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return true, nil
}

func (s *CacheService) Delete(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

// BalanceKey is the cache key of the wallet for ownerID and currency.
func BalanceKey(ownerID uint, currency string) string {
	return fmt.Sprintf("wallet:balance:%d:%s", ownerID, currency)
}

// cacheBalanceScript stores ARGV[1] unless the cached copy carries a version
// at or above ARGV[2]. ARGV[3] is the TTL in milliseconds, zero for none.
const cacheBalanceScript = `
local cur = redis.call('GET', KEYS[1])
if cur then
	local ok, decoded = pcall(cjson.decode, cur)
	if ok and type(decoded) == 'table' then
		local version = tonumber(decoded.version)
		if version and version >= tonumber(ARGV[2]) then
			return 0
		end
	end
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`

// CacheBalance stores balance unless a same or newer version is cached.
func (s *CacheService) CacheBalance(ctx context.Context, balance models.Balance) error {
	data, err := json.Marshal(balance)
	if err != nil {
		return fmt.Errorf("failed to marshal balance: %w", err)
	}
	key := BalanceKey(balance.OwnerID, balance.Currency)
	if _, err := s.client.Eval(ctx, cacheBalanceScript, []string{key},
		data, balance.Version, s.ttl.Milliseconds()).Int(); err != nil {
		return fmt.Errorf("failed to cache balance: %w", err)
	}
	return nil
}

// GetBalance returns the cached balance, or nil when nothing is cached.
func (s *CacheService) GetBalance(ctx context.Context, ownerID uint, currency string) (*models.Balance, error) {
	var balance models.Balance
	found, err := s.Get(ctx, BalanceKey(ownerID, currency), &balance)
	if err != nil || !found {
		return nil, err
	}
	return &balance, nil
}

func (s *CacheService) InvalidateBalance(ctx context.Context, ownerID uint, currency string) error {
	return s.Delete(ctx, BalanceKey(ownerID, currency))
}

// Close closes the Redis client connection
func (s *CacheService) Close() error {
	return s.client.Close()
}
