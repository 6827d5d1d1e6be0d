package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/amyangfei/redlock-go/v3/redlock"
	redis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/selivandex/sentiment-fusion/internal/adapters/config"
	"github.com/selivandex/sentiment-fusion/pkg/logger"
)

// Client wraps RedLock manager for run locks + standard Redis for caching
type Client struct {
	lockManager *redlock.RedLock
	cache       *redis.Client
	lockTTL     time.Duration
}

// New creates new Redis client with RedLock support + caching
func New(ctx context.Context, cfg *config.RedisConfig) (*Client, error) {
	redisAddrs := []string{fmt.Sprintf("tcp://%s", cfg.Addr())}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	lockManager, err := redlock.NewRedLock(ctx, redisAddrs)
	if err != nil {
		return nil, fmt.Errorf("failed to create redlock manager: %w", err)
	}

	logger.Info("redis redlock manager initialized", zap.Strings("addresses", redisAddrs))

	cacheClient := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	if err := cacheClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis cache: %w", err)
	}

	logger.Info("redis cache client initialized",
		zap.String("address", cfg.Addr()),
		zap.Int("db", cfg.DB),
	)

	return &Client{
		lockManager: lockManager,
		cache:       cacheClient,
		lockTTL:     cfg.LockTTL,
	}, nil
}

// RunLocker returns the cross-process instrument locker
func (c *Client) RunLocker() *RunLocker {
	return NewRunLocker(NewRedlockFactory(c.lockManager, c.lockTTL))
}

// Cache returns the JSON cache backed by this client
func (c *Client) Cache() *Cache {
	return NewCache(c.cache)
}

// Close closes redis connections
func (c *Client) Close() error {
	if c.cache != nil {
		logger.Info("closing redis cache client")
		if err := c.cache.Close(); err != nil {
			return fmt.Errorf("failed to close redis cache: %w", err)
		}
	}
	return nil
}

// Health checks redis health
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.cache.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
