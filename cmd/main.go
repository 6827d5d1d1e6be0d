package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/selivandex/sentiment-fusion/internal/adapters/ai"
	"github.com/selivandex/sentiment-fusion/internal/adapters/clickhouse"
	"github.com/selivandex/sentiment-fusion/internal/adapters/config"
	"github.com/selivandex/sentiment-fusion/internal/adapters/database"
	"github.com/selivandex/sentiment-fusion/internal/adapters/market"
	"github.com/selivandex/sentiment-fusion/internal/adapters/news"
	"github.com/selivandex/sentiment-fusion/internal/adapters/redis"
	"github.com/selivandex/sentiment-fusion/internal/adapters/telegram"
	"github.com/selivandex/sentiment-fusion/internal/api"
	"github.com/selivandex/sentiment-fusion/internal/cleanup"
	"github.com/selivandex/sentiment-fusion/internal/corpus"
	"github.com/selivandex/sentiment-fusion/internal/dashboard"
	"github.com/selivandex/sentiment-fusion/internal/indicators"
	"github.com/selivandex/sentiment-fusion/internal/orchestrator"
	"github.com/selivandex/sentiment-fusion/internal/portfolio"
	"github.com/selivandex/sentiment-fusion/internal/progress"
	"github.com/selivandex/sentiment-fusion/internal/scoring"
	"github.com/selivandex/sentiment-fusion/internal/workers"
	"github.com/selivandex/sentiment-fusion/pkg/logger"
	"github.com/selivandex/sentiment-fusion/pkg/metrics"
	"github.com/selivandex/sentiment-fusion/pkg/models"
	"github.com/selivandex/sentiment-fusion/pkg/templates"
	"github.com/selivandex/sentiment-fusion/pkg/worker"
)

const migrationsPath = "./migrations"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration and initialize logger
	cfg, err := initConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("sentiment fusion service starting", zap.String("addr", cfg.Server.Addr))

	db, err := initDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := redis.New(ctx, &cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()
	cache := redisClient.Cache()

	// ClickHouse is optional; without it bars are not archived
	sinks, err := initAnalytics(ctx, cfg)
	if err != nil {
		logger.Warn("ClickHouse not available, continuing without analytics", zap.Error(err))
		sinks = &analytics{}
	}
	defer sinks.Close()

	renderer, err := templates.Default()
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	// Market data
	eastmoney := market.NewEastmoneyProvider(cfg.Market.BaseURL, cfg.Market.Timeout, sinks.calls)
	prices := market.NewCachedProvider(eastmoney, cache, cfg.Market.CacheTTL, sinks.marketOptions()...)

	// Corpus, ingestion and scoring
	corpusRepo := corpus.NewRepository(db.DB())
	ingestor := news.NewIngestor(initNewsProviders(cfg), corpusRepo, news.IngestorConfig{
		WindowDays: cfg.News.WindowDays,
		Limits: map[models.SourceKind]int{
			models.SourceNews:   cfg.News.NewsLimit,
			models.SourceReport: cfg.News.ReportLimit,
			models.SourceForum:  cfg.News.ForumLimit,
		},
	})

	scorer, narrator := ai.NewFromConfig(&cfg.AI, renderer)
	scoringService := scoring.NewService(corpusRepo, scorer, cfg.AI.Concurrency)
	cleanupService := cleanup.NewService(corpusRepo)

	dashboardService := dashboard.NewService(prices, corpusRepo, cache, dashboard.Config{
		DisplayCap: cfg.Pipeline.DisplayCap,
		Weights: models.WeightConfig{
			NewsWeight:  cfg.Pipeline.NewsWeight,
			ForumWeight: cfg.Pipeline.ForumWeight,
		},
	})

	var indicatorNarrator indicators.Narrator
	if narrator != nil {
		indicatorNarrator = narrator
	}
	indicatorService := indicators.NewService(prices, indicatorNarrator)

	// Run orchestration and progress reporting
	hub := progress.NewHub(originChecker(cfg.Server.AllowedOrigins))
	reporters := []orchestrator.Reporter{hub}
	if sinks.events != nil {
		reporters = append(reporters, sinks.events)
	}

	if cfg.Telegram.Enabled {
		notifier, err := telegram.NewNotifier(&cfg.Telegram, renderer)
		if err != nil {
			logger.Error("failed to create telegram notifier", zap.Error(err))
		} else {
			reporters = append(reporters, notifier)
			go notifier.Run(ctx)
			logger.Info("telegram run notifications enabled")
		}
	}

	orch := orchestrator.New(orchestrator.Config{BatchSize: cfg.Pipeline.BatchSize}, orchestrator.Dependencies{
		Ingestor:  ingestor,
		Pending:   corpusRepo,
		Scorer:    scoringService,
		Cleaner:   cleanupService,
		Refresher: dashboardService,
		Reporters: reporters,
		Locker:    redisClient.RunLocker(),
	})

	portfolioRepo := portfolio.NewRepository(db.DB())

	checks := map[string]api.HealthCheck{
		"postgres": db.Health,
		"redis":    redisClient.Health,
	}
	if sinks.repo != nil {
		checks["clickhouse"] = sinks.repo.Health
	}

	server := api.NewServer(cfg.Server, api.Dependencies{
		Portfolios: portfolioRepo,
		Dashboard:  dashboardService,
		Indicators: indicatorService,
		Runner:     orch,
		Progress:   hub,
		Checks:     checks,
		RunContext: ctx,
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	server.SetReady(true)

	group := worker.NewWorkerGroup(ctx)
	if cfg.Pipeline.AutoRefreshEnabled {
		group.Add(workers.NewAutoRefreshWorker(portfolioRepo, orch), cfg.Pipeline.AutoRefreshInterval, worker.WithoutInitialRun())
	}
	group.Start()

	logger.Info("sentiment fusion service ready",
		zap.Bool("model_scorer", cfg.AI.UseModel()),
		zap.Bool("clickhouse", sinks.repo != nil),
		zap.Int("workers", group.Len()),
	)

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		logger.Error("api server failed", zap.Error(err))
	}

	logger.Info("shutting down gracefully...")
	server.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop api server", zap.Error(err))
	}
	group.Stop(cfg.Server.ShutdownTimeout)

	return nil
}

// initConfig loads configuration and initializes logger
func initConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, nil
}

// initDatabase connects to PostgreSQL and applies pending migrations
func initDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.New(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.RunMigrations(db.Conn(), migrationsPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("database connection established (sqlx)",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Name),
	)

	return db, nil
}

// initNewsProviders builds one feed provider per configured URL template
func initNewsProviders(cfg *config.Config) []news.Provider {
	var providers []news.Provider
	providers = append(providers, news.NewFeedProviders(models.SourceNews, cfg.News.NewsFeeds, cfg.News.Timeout)...)
	providers = append(providers, news.NewFeedProviders(models.SourceReport, cfg.News.ReportFeeds, cfg.News.Timeout)...)
	providers = append(providers, news.NewFeedProviders(models.SourceForum, cfg.News.ForumFeeds, cfg.News.Timeout)...)

	if len(providers) == 0 {
		logger.Warn("no document feeds configured, updates will only score existing documents")
	}

	logger.Info("news providers initialized", zap.Int("count", len(providers)))
	return providers
}

// analytics bundles the optional ClickHouse sinks. Every field is nil when
// ClickHouse is disabled.
type analytics struct {
	repo     *clickhouse.Repository
	buffer   *metrics.Buffer
	archiver *clickhouse.BarArchiver
	events   *clickhouse.RunEventReporter
	calls    metrics.Recorder
}

func initAnalytics(ctx context.Context, cfg *config.Config) (*analytics, error) {
	if !cfg.ClickHouse.Enabled {
		logger.Info("clickhouse disabled, bar archive and run events are off")
		return &analytics{}, nil
	}

	repo, err := clickhouse.Open(ctx, &cfg.ClickHouse)
	if err != nil {
		return nil, err
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to prepare clickhouse schema: %w", err)
	}

	buffer := metrics.NewBuffer(metrics.BufferConfig{
		Writer:        repo,
		BatchSize:     200,
		FlushInterval: 10 * time.Second,
	})

	return &analytics{
		repo:     repo,
		buffer:   buffer,
		archiver: clickhouse.NewBarArchiver(repo, 500, 30*time.Second),
		events:   clickhouse.NewRunEventReporter(buffer),
		calls:    buffer,
	}, nil
}

func (a *analytics) marketOptions() []market.CachedOption {
	if a.repo == nil {
		return nil
	}
	return []market.CachedOption{market.WithArchive(a.repo), market.WithArchiver(a.archiver)}
}

// Close flushes pending rows and closes the connection
func (a *analytics) Close() {
	if a.repo == nil {
		return
	}

	if err := a.archiver.Close(); err != nil {
		logger.Error("failed to flush bar archive", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.buffer.Close(ctx); err != nil {
		logger.Error("failed to flush metrics buffer", zap.Error(err))
	}

	if err := a.repo.Close(); err != nil {
		logger.Error("failed to close clickhouse", zap.Error(err))
	}
}

// originChecker accepts websocket upgrades from the configured CORS origins
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}
