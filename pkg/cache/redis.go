package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jordanlanch/crmleads/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the key does not exist or has expired.
var ErrMiss = errors.New("cache: key not found")

// Client holds the Redis client
type Client struct {
	Redis  *redis.Client
	logger logger.Logger
}

// NewClient connects to the Redis server at redisURL and pings it.
func NewClient(ctx context.Context, redisURL string, log logger.Logger) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed parsing redis URL: %w", err)
	}

	c := New(redis.NewClient(opts), log)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		c.Redis.Close()
		return nil, fmt.Errorf("failed connecting to redis: %w", err)
	}

	c.logger.Info("redis connected", "addr", opts.Addr, "db", opts.DB)
	return c, nil
}

// New wraps an existing go-redis client.
func New(rdb *redis.Client, log logger.Logger) *Client {
	if log == nil {
		log = logger.Discard()
	}
	return &Client{Redis: rdb, logger: log}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.Redis.Close()
}

// Ping checks that the server answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.Redis.Ping(ctx).Err()
}

// Set sets a key-value pair with expiration
func (c *Client) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	return c.Redis.Set(ctx, key, value, expiration).Err()
}

// Get gets a value by key. Missing keys return ErrMiss.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	val, err := c.Redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return val, err
}

// GetDel reads a key and removes it in one round trip.
func (c *Client) GetDel(ctx context.Context, key string) (string, error) {
	val, err := c.Redis.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return val, err
}

// Delete deletes keys
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	return c.Redis.Del(ctx, keys...).Err()
}

// Incr increments a counter and returns its new value. A counter created by
// this call expires after expiration.
func (c *Client) Incr(ctx context.Context, key string, expiration time.Duration) (int64, error) {
	n, err := c.Redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := c.Redis.PExpire(ctx, key, expiration).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Exists checks if a key exists
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	count, err := c.Redis.Exists(ctx, key).Result()
	return count > 0, err
}

// TTL returns the time-to-live for a key
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	return c.Redis.TTL(ctx, key).Result()
}
