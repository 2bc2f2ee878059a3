package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const followersCountKeyPrefix = "socialdistance:followers:"

// RedisFollowerCounts implements FollowerCounts backed by Redis.
type RedisFollowerCounts struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisFollowerCounts connects to Redis and verifies the connection.
func NewRedisFollowerCounts(ctx context.Context, address, password string, db int, ttl time.Duration) (*RedisFollowerCounts, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisFollowerCounts{client: client, ttl: ttl}, nil
}

func followersCountKey(authorID string) string {
	return followersCountKeyPrefix + authorID
}

func (s *RedisFollowerCounts) Get(ctx context.Context, authorID string) (int64, bool, error) {
	val, err := s.client.Get(ctx, followersCountKey(authorID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("redis get followers count: %w", err)
	}
	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse followers count: %w", err)
	}
	return count, true, nil
}

func (s *RedisFollowerCounts) Set(ctx context.Context, authorID string, count int64) error {
	if err := s.client.Set(ctx, followersCountKey(authorID), count, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set followers count: %w", err)
	}
	return nil
}

func (s *RedisFollowerCounts) Invalidate(ctx context.Context, authorID string) error {
	if err := s.client.Del(ctx, followersCountKey(authorID)).Err(); err != nil {
		return fmt.Errorf("redis delete followers count: %w", err)
	}
	return nil
}

func (s *RedisFollowerCounts) Close() error {
	return s.client.Close()
}
