// Package redis implements Redis caching for the learning hub.
// The cache only ever shortens read paths: a miss, an expired entry or a
// Redis outage all fall back to PostgreSQL, which remains the source of
// truth for all progress data.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oqu-hub/oqu-learning-hub/pkg/retry"
)

var (
	// ErrCacheMiss is returned when the requested key is not found in cache.
	ErrCacheMiss = errors.New("cache: key not found")

	// ErrCacheConnection is returned when the initial Redis connection fails.
	ErrCacheConnection = errors.New("cache: connection failed")

	// ErrCacheSerialization is returned when a cached payload cannot be
	// encoded or decoded.
	ErrCacheSerialization = errors.New("cache: serialization failed")

	// ErrCacheKeyEmpty is returned when an empty key is provided.
	ErrCacheKeyEmpty = errors.New("cache: key cannot be empty")
)

// PrefixStats namespaces learner stats keys.
const PrefixStats = "stats:"

// TTLStatsCache bounds staleness of cached stats. Invalidation on every
// progress event keeps entries fresh in practice; the TTL is the
// backstop for missed events.
const TTLStatsCache = 10 * time.Minute

// Config holds Redis connection configuration.
type Config struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	}
}

func (c Config) options() *redis.Options {
	return &redis.Options{
		Addr:         net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
		MaxRetries:   c.MaxRetries,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		PoolTimeout:  c.PoolTimeout,
	}
}

// Cache is a JSON-over-Redis key/value store. Transient command errors
// get one fast retry; misses and malformed payloads do not.
type Cache struct {
	client  *redis.Client
	retrier *retry.Retrier
}

// NewCache connects to Redis and verifies the connection with a ping.
func NewCache(cfg Config) (*Cache, error) {
	client := redis.NewClient(cfg.options())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}

	return &Cache{
		client:  client,
		retrier: retry.CacheRetrier(),
	}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping checks if Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Set serializes value to JSON and stores it under key with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	return c.retrier.Do(ctx, func(ctx context.Context) error {
		return c.client.Set(ctx, key, data, ttl).Err()
	})
}

// Get loads the value stored under key into dest.
// Returns ErrCacheMiss if the key does not exist.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}

	return c.retrier.Do(ctx, func(ctx context.Context) error {
		data, err := c.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return retry.Permanent(ErrCacheMiss)
		}
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, dest); err != nil {
			return retry.Permanent(fmt.Errorf("%w: %v", ErrCacheSerialization, err))
		}
		return nil
	})
}

// Delete removes keys from the cache. Deleting an absent key is not an
// error.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.retrier.Do(ctx, func(ctx context.Context) error {
		return c.client.Del(ctx, keys...).Err()
	})
}
