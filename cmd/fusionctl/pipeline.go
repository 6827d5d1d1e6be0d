package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/selivandex/sentiment-fusion/internal/adapters/ai"
	"github.com/selivandex/sentiment-fusion/internal/adapters/config"
	"github.com/selivandex/sentiment-fusion/internal/adapters/database"
	"github.com/selivandex/sentiment-fusion/internal/adapters/market"
	"github.com/selivandex/sentiment-fusion/internal/adapters/news"
	"github.com/selivandex/sentiment-fusion/internal/adapters/redis"
	"github.com/selivandex/sentiment-fusion/internal/cleanup"
	"github.com/selivandex/sentiment-fusion/internal/corpus"
	"github.com/selivandex/sentiment-fusion/internal/dashboard"
	"github.com/selivandex/sentiment-fusion/internal/orchestrator"
	"github.com/selivandex/sentiment-fusion/internal/scoring"
	"github.com/selivandex/sentiment-fusion/pkg/logger"
	"github.com/selivandex/sentiment-fusion/pkg/models"
	"github.com/selivandex/sentiment-fusion/pkg/templates"
)

// pipeline is the subset of the service graph the CLI drives. Runs share the
// Redis instrument lock with the server.
type pipeline struct {
	db        *database.DB
	redis     *redis.Client
	dashboard *dashboard.Service
	orch      *orchestrator.Orchestrator
}

func newPipeline(ctx context.Context, cfg *config.Config) (*pipeline, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	redisClient, err := redis.New(ctx, &cfg.Redis)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	cache := redisClient.Cache()

	renderer, err := templates.Default()
	if err != nil {
		db.Close()
		redisClient.Close()
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	eastmoney := market.NewEastmoneyProvider(cfg.Market.BaseURL, cfg.Market.Timeout, nil)
	prices := market.NewCachedProvider(eastmoney, cache, cfg.Market.CacheTTL)

	corpusRepo := corpus.NewRepository(db.DB())

	var providers []news.Provider
	providers = append(providers, news.NewFeedProviders(models.SourceNews, cfg.News.NewsFeeds, cfg.News.Timeout)...)
	providers = append(providers, news.NewFeedProviders(models.SourceReport, cfg.News.ReportFeeds, cfg.News.Timeout)...)
	providers = append(providers, news.NewFeedProviders(models.SourceForum, cfg.News.ForumFeeds, cfg.News.Timeout)...)

	ingestor := news.NewIngestor(providers, corpusRepo, news.IngestorConfig{
		WindowDays: cfg.News.WindowDays,
		Limits: map[models.SourceKind]int{
			models.SourceNews:   cfg.News.NewsLimit,
			models.SourceReport: cfg.News.ReportLimit,
			models.SourceForum:  cfg.News.ForumLimit,
		},
	})

	scorer, _ := ai.NewFromConfig(&cfg.AI, renderer)

	dash := dashboard.NewService(prices, corpusRepo, cache, dashboard.Config{
		DisplayCap: cfg.Pipeline.DisplayCap,
		Weights: models.WeightConfig{
			NewsWeight:  cfg.Pipeline.NewsWeight,
			ForumWeight: cfg.Pipeline.ForumWeight,
		},
	})

	orch := orchestrator.New(orchestrator.Config{BatchSize: cfg.Pipeline.BatchSize}, orchestrator.Dependencies{
		Ingestor:  ingestor,
		Pending:   corpusRepo,
		Scorer:    scoring.NewService(corpusRepo, scorer, cfg.AI.Concurrency),
		Cleaner:   cleanup.NewService(corpusRepo),
		Refresher: dash,
		Reporters: []orchestrator.Reporter{orchestrator.ReporterFunc(logProgress)},
		Locker:    redisClient.RunLocker(),
	})

	return &pipeline{db: db, redis: redisClient, dashboard: dash, orch: orch}, nil
}

// Close releases connections
func (p *pipeline) Close() {
	if err := p.redis.Close(); err != nil {
		logger.Warn("failed to close redis", zap.Error(err))
	}
	if err := p.db.Close(); err != nil {
		logger.Warn("failed to close database", zap.Error(err))
	}
}

func logProgress(snap orchestrator.Snapshot) {
	logger.Info(snap.Message,
		zap.String("instrument", snap.Instrument),
		zap.String("state", string(snap.State)),
		zap.Float64("progress", snap.Progress),
		zap.Int("completed", snap.Completed),
		zap.Int("total", snap.Total),
	)
}
