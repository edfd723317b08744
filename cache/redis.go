package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis implements Cache on a Redis backend, leaning on Redis's native TTL
// for expiry. All keys are namespaced with a prefix so Clear can drop the
// coordinator's entries without touching the rest of the database.
type Redis struct {
	client *redis.Client
	prefix string
}

// RedisConfig contains connection options for the Redis cache.
type RedisConfig struct {
	// Addr is the Redis server address (e.g. "localhost:6379").
	Addr string

	// Password is the Redis password (empty for no auth).
	Password string

	// DB is the Redis database number.
	DB int

	// KeyPrefix is prepended to all keys. Default: "trustkit:cache:".
	// Typically ends with a colon.
	KeyPrefix string
}

// NewRedis creates a Redis cache from an existing client and key prefix.
func NewRedis(client *redis.Client, keyPrefix string) *Redis {
	if keyPrefix == "" {
		keyPrefix = "trustkit:cache:"
	}
	return &Redis{client: client, prefix: keyPrefix}
}

// NewRedisFromConfig dials Redis and verifies the connection.
func NewRedisFromConfig(cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis: failed to connect: %w", err)
	}

	return NewRedis(client, cfg.KeyPrefix), nil
}

// Get returns the value stored under key, or ErrMiss.
func (c *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis: failed to get key: %w", err)
	}
	return val, nil
}

// Set stores value under key for ttl. A ttl <= 0 stores without expiry.
func (c *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis: failed to set key: %w", err)
	}
	return nil
}

// Invalidate removes a single key.
func (c *Redis) Invalidate(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis: failed to delete key: %w", err)
	}
	return nil
}

// Clear removes every entry under the configured prefix.
func (c *Redis) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis: failed to clear key: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis: failed to scan keys: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *Redis) Close() error {
	return c.client.Close()
}
