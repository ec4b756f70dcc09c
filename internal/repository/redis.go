package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"slotnik/internal/config"
	"slotnik/internal/models"

	"github.com/redis/go-redis/v9"
)

type RedisProfileCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisProfileCache(client *redis.Client, ttl time.Duration) *RedisProfileCache {
	return &RedisProfileCache{
		client: client,
		ttl:    ttl,
	}
}

func profileKey(uid string) string {
	return fmt.Sprintf("profile_hint:%s", uid)
}

func (r *RedisProfileCache) GetProfile(ctx context.Context, uid string) (*models.UserProfile, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, profileKey(uid)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile from redis: %w", err)
	}

	var profile models.UserProfile
	if err := json.Unmarshal([]byte(val), &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}

	return &profile, nil
}

func (r *RedisProfileCache) SetProfile(ctx context.Context, profile *models.UserProfile) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	if err := r.client.Set(ctx, profileKey(profile.UID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set profile in redis: %w", err)
	}

	return nil
}

func (r *RedisProfileCache) ClearProfile(ctx context.Context, uid string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, profileKey(uid)).Err(); err != nil {
		return fmt.Errorf("failed to delete profile from redis: %w", err)
	}
	return nil
}

func (r *RedisProfileCache) CheckRateLimit(ctx context.Context, uid string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	key := fmt.Sprintf("rate_limit:%s", uid)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit expiry: %w", err)
		}
	}

	return count <= int64(limit), nil
}
