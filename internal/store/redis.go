package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements KVStore over Redis, for deployments that want the
// session snapshot shared across hosts.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(addr, password string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return &RedisStore{client: client}, nil
}

// Get returns the value for a key and whether it exists.
func (r *RedisStore) Get(key string) (string, bool, error) {
	val, err := r.client.Get(context.Background(), key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Set stores a value under a key without expiration.
func (r *RedisStore) Set(key, value string) error {
	return r.client.Set(context.Background(), key, value, 0).Err()
}

// Remove deletes a key.
func (r *RedisStore) Remove(key string) error {
	return r.client.Del(context.Background(), key).Err()
}

// Close closes the Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

var _ KVStore = (*RedisStore)(nil)
