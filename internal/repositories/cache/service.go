package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pesaflow/internal/models"

	"github.com/redis/go-redis/v9"
)

// CacheService is the cache-aside layer over Redis. Account reads go
// through it; every balance or status mutation invalidates the entry.
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
		if err == redis.Nil {
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

// Key generation
func (s *CacheService) GenerateKey(entityType, keyType string, value interface{}) string {
	return fmt.Sprintf("%s:%s:%v", entityType, keyType, value)
}

// Account caching
func (s *CacheService) CacheAccount(ctx context.Context, account *models.Account) error {
	if account == nil {
		return errors.New("cannot cache nil account")
	}

	keys := []string{
		s.GenerateKey("account", "id", account.ID),
	}
	if account.Phone != "" {
		keys = append(keys, s.GenerateKey("account", "phone", account.Phone))
	}

	for _, key := range keys {
		if err := s.Set(ctx, key, account); err != nil {
			return err
		}
	}
	return nil
}

func (s *CacheService) GetAccount(ctx context.Context, id uint) (*models.Account, error) {
	var account models.Account
	found, err := s.Get(ctx, s.GenerateKey("account", "id", id), &account)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.New("account not found in cache")
	}
	return &account, nil
}

func (s *CacheService) InvalidateAccount(ctx context.Context, account *models.Account) error {
	keys := []string{
		s.GenerateKey("account", "id", account.ID),
	}
	if account.Phone != "" {
		keys = append(keys, s.GenerateKey("account", "phone", account.Phone))
	}
	return s.Delete(ctx, keys...)
}

// InvalidateAccountID drops the id-keyed entry when only the id is known.
func (s *CacheService) InvalidateAccountID(ctx context.Context, id uint) error {
	return s.Delete(ctx, s.GenerateKey("account", "id", id))
}

// HealthCheck pings Redis.
func (s *CacheService) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}

// FlushAll flushes all keys from the cache
func (s *CacheService) FlushAll(ctx context.Context) error {
	return s.client.FlushAll(ctx).Err()
}

// Close closes the Redis client connection
func (s *CacheService) Close() error {
	return s.client.Close()
}
