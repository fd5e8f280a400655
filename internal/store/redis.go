package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Redis keeps each tier's entries in one hash so DropTier is a single DEL.
type Redis struct {
	client redis.Cmdable
	prefix string
}

func NewRedis(client redis.Cmdable, prefix string) *Redis {
	normalized := strings.TrimSpace(prefix)
	if normalized == "" {
		normalized = "tiercoord:tier"
	}
	return &Redis{
		client: client,
		prefix: normalized,
	}
}

func (r *Redis) Get(ctx context.Context, tierName, key string) (string, bool, error) {
	tierName = strings.TrimSpace(tierName)
	key = strings.TrimSpace(key)
	if tierName == "" || key == "" {
		return "", false, errors.New("tier name and key are required")
	}

	value, err := r.client.HGet(ctx, r.tierKey(tierName), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store hget: %w", err)
	}
	return value, true, nil
}

func (r *Redis) Put(ctx context.Context, tierName, key, value string) error {
	tierName = strings.TrimSpace(tierName)
	key = strings.TrimSpace(key)
	if tierName == "" || key == "" {
		return errors.New("tier name and key are required")
	}

	if err := r.client.HSet(ctx, r.tierKey(tierName), key, value).Err(); err != nil {
		return fmt.Errorf("store hset: %w", err)
	}
	return nil
}

func (r *Redis) Remove(ctx context.Context, tierName, key string) error {
	tierName = strings.TrimSpace(tierName)
	key = strings.TrimSpace(key)
	if tierName == "" || key == "" {
		return errors.New("tier name and key are required")
	}

	if err := r.client.HDel(ctx, r.tierKey(tierName), key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("store hdel: %w", err)
	}
	return nil
}

func (r *Redis) DropTier(ctx context.Context, tierName string) error {
	tierName = strings.TrimSpace(tierName)
	if tierName == "" {
		return errors.New("tier name is required")
	}

	if err := r.client.Del(ctx, r.tierKey(tierName)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("store del: %w", err)
	}
	return nil
}

func (r *Redis) tierKey(tierName string) string {
	return r.prefix + ":" + tierName
}
