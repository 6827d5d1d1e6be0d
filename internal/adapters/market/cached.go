package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/sentiment-fusion/pkg/logger"
	"github.com/selivandex/sentiment-fusion/pkg/models"
)

// JSONCache is the key/value cache used for provider responses
type JSONCache interface {
	GetJSON(ctx context.Context, key string, dst interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// BarArchive is long-term bar storage read when the provider is down
type BarArchive interface {
	GetDailyBars(ctx context.Context, code string, days int) ([]models.PriceBar, error)
}

// Archiver accepts freshly fetched bars for long-term storage
type Archiver interface {
	Archive(code string, bars []models.PriceBar)
}

// CachedProvider wraps a Provider with a Redis cache, optional bar
// archiving and an archive fallback when the upstream call fails
type CachedProvider struct {
	provider Provider
	cache    JSONCache
	archive  BarArchive
	archiver Archiver
	ttl      time.Duration
}

// CachedOption configures a CachedProvider
type CachedOption func(*CachedProvider)

// WithArchive reads bars from archive when the provider fails
func WithArchive(archive BarArchive) CachedOption {
	return func(c *CachedProvider) { c.archive = archive }
}

// WithArchiver hands every fetched series to archiver
func WithArchiver(archiver Archiver) CachedOption {
	return func(c *CachedProvider) { c.archiver = archiver }
}

// NewCachedProvider creates a caching decorator; cache may be nil
func NewCachedProvider(provider Provider, cache JSONCache, ttl time.Duration, opts ...CachedOption) *CachedProvider {
	c := &CachedProvider{provider: provider, cache: cache, ttl: ttl}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetDailyBars returns cached bars, then upstream bars, then archived bars
func (c *CachedProvider) GetDailyBars(ctx context.Context, code string, days int) ([]models.PriceBar, error) {
	key := fmt.Sprintf("fusion:bars:%s:%d", code, days)

	var bars []models.PriceBar
	if c.lookup(ctx, key, &bars) {
		return bars, nil
	}

	bars, err := c.provider.GetDailyBars(ctx, code, days)
	if err != nil {
		if errors.Is(err, ErrNotFound) || c.archive == nil {
			return nil, err
		}

		archived, archErr := c.archive.GetDailyBars(ctx, code, days)
		if archErr != nil || len(archived) == 0 {
			logger.Warn("price archive fallback unavailable",
				zap.String("instrument", code),
				zap.NamedError("archive_error", archErr),
			)
			return nil, err
		}

		logger.Warn("serving archived bars after provider failure",
			zap.String("instrument", code),
			zap.Int("bars", len(archived)),
			zap.Error(err),
		)
		return archived, nil
	}

	c.store(ctx, key, bars)
	if c.archiver != nil && len(bars) > 0 {
		c.archiver.Archive(code, bars)
	}

	return bars, nil
}

// GetName returns the cached display name or asks the provider
func (c *CachedProvider) GetName(ctx context.Context, code string) (string, error) {
	key := "fusion:name:" + code

	var name string
	if c.lookup(ctx, key, &name) {
		return name, nil
	}

	name, err := c.provider.GetName(ctx, code)
	if err != nil {
		return "", err
	}

	// names rarely change
	c.storeFor(ctx, key, name, 24*time.Hour)
	return name, nil
}

func (c *CachedProvider) lookup(ctx context.Context, key string, dst interface{}) bool {
	if c.cache == nil {
		return false
	}
	hit, err := c.cache.GetJSON(ctx, key, dst)
	if err != nil {
		logger.Warn("price cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return hit
}

func (c *CachedProvider) store(ctx context.Context, key string, value interface{}) {
	c.storeFor(ctx, key, value, c.ttl)
}

func (c *CachedProvider) storeFor(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if c.cache == nil || ttl <= 0 {
		return
	}
	if err := c.cache.SetJSON(ctx, key, value, ttl); err != nil {
		logger.Warn("price cache write failed", zap.String("key", key), zap.Error(err))
	}
}
