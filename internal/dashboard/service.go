package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/selivandex/sentiment-fusion/internal/adapters/market"
	"github.com/selivandex/sentiment-fusion/internal/corpus"
	"github.com/selivandex/sentiment-fusion/internal/fusion"
	"github.com/selivandex/sentiment-fusion/pkg/logger"
	"github.com/selivandex/sentiment-fusion/pkg/models"
)

const (
	// DefaultFusedDays is the price window of the fused chart
	DefaultFusedDays = 30
	// infoDays is the price window used for the header card
	infoDays = 10
	// newsFetchLimit is how many recent documents are read before deduplication
	newsFetchLimit = 50
)

// DocumentReader reads documents joined with their results
type DocumentReader interface {
	ListScored(ctx context.Context, code string, opts corpus.ListOptions) ([]models.ScoredDocument, error)
}

// Invalidator drops cached entries by key prefix
type Invalidator interface {
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// Config holds dashboard tunables
type Config struct {
	DisplayCap int
	Weights    models.WeightConfig
}

// Service assembles the views shown for a tracked instrument.
// Every read recomputes from stored documents and price bars.
type Service struct {
	prices market.Provider
	docs   DocumentReader
	cache  Invalidator
	cfg    Config
}

// NewService creates new dashboard service. cache may be nil.
func NewService(prices market.Provider, docs DocumentReader, cache Invalidator, cfg Config) *Service {
	if cfg.DisplayCap <= 0 {
		cfg.DisplayCap = fusion.DisplayCap
	}
	if cfg.Weights == (models.WeightConfig{}) {
		cfg.Weights = models.DefaultWeights()
	}
	return &Service{prices: prices, docs: docs, cache: cache, cfg: cfg}
}

// Info returns the header card: display name (the code itself when the
// lookup fails) and the latest bar with its change against the previous bar
func (s *Service) Info(ctx context.Context, code string) (*models.InstrumentInfo, error) {
	var (
		name string
		bars []models.PriceBar
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.prices.GetName(gctx, code)
		if err != nil || n == "" {
			logger.Debug("instrument name unavailable", zap.String("instrument", code), zap.Error(err))
			n = code
		}
		name = n
		return nil
	})
	g.Go(func() error {
		b, err := s.prices.GetDailyBars(gctx, code, infoDays)
		if err != nil {
			return err
		}
		bars = b
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load instrument %s: %w", code, err)
	}

	info := &models.InstrumentInfo{Code: code, Name: name}
	if len(bars) == 0 {
		return info, nil
	}

	last := bars[len(bars)-1]
	info.Open = models.Float64Ptr(last.Open)
	info.High = models.Float64Ptr(last.High)
	info.Low = models.Float64Ptr(last.Low)
	info.Close = models.Float64Ptr(last.Close)

	if len(bars) > 1 {
		prev := bars[len(bars)-2]
		change := last.Close - prev.Close
		info.Change = models.Float64Ptr(models.Round(change, 2))
		if prev.Close != 0 {
			info.ChangePercent = models.Float64Ptr(models.Round(change/prev.Close*100, 2))
		}
	}

	return info, nil
}

// FusedSeries merges the last days bars with daily sentiment under weights
func (s *Service) FusedSeries(ctx context.Context, code string, days int, weights models.WeightConfig) ([]models.FusedPoint, error) {
	if days <= 0 {
		days = DefaultFusedDays
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	bars, err := s.prices.GetDailyBars(ctx, code, days)
	if err != nil {
		return nil, fmt.Errorf("failed to load bars for %s: %w", code, err)
	}
	if len(bars) == 0 {
		return []models.FusedPoint{}, nil
	}

	var since time.Time
	if first, ok := models.ParseDay(bars[0].Date); ok {
		since = first
	}

	// oldest first so each day keeps the summary of its earliest document
	docs, err := s.docs.ListScored(ctx, code, corpus.ListOptions{Since: since, AnalyzedOnly: true, OldestFirst: true})
	if err != nil {
		return nil, err
	}

	return fusion.Fuse(bars, docs, weights), nil
}

// News returns the most recent analyzed documents with distinct titles
func (s *Service) News(ctx context.Context, code string) ([]models.ScoredDocument, error) {
	docs, err := s.docs.ListScored(ctx, code, corpus.ListOptions{Limit: newsFetchLimit, AnalyzedOnly: true})
	if err != nil {
		return nil, err
	}
	return fusion.Deduplicate(docs, s.cfg.DisplayCap), nil
}

// Refresh drops cached bars for the instrument and rebuilds the default views
func (s *Service) Refresh(ctx context.Context, code string) error {
	if s.cache != nil {
		if _, err := s.cache.DeletePrefix(ctx, "fusion:bars:"+code+":"); err != nil {
			logger.Warn("failed to invalidate price cache", zap.String("instrument", code), zap.Error(err))
		}
	}

	points, err := s.FusedSeries(ctx, code, DefaultFusedDays, s.cfg.Weights)
	if err != nil && !errors.Is(err, market.ErrNotFound) {
		return fmt.Errorf("failed to rebuild fused series: %w", err)
	}

	news, err := s.News(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to rebuild news list: %w", err)
	}

	withSentiment := 0
	for _, p := range points {
		if p.Sentiment != nil {
			withSentiment++
		}
	}

	logger.Info("views refreshed",
		zap.String("instrument", code),
		zap.Int("fused_points", len(points)),
		zap.Int("days_with_sentiment", withSentiment),
		zap.Int("news", len(news)),
	)
	return nil
}
