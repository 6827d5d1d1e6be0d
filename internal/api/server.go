package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/selivandex/sentiment-fusion/internal/adapters/config"
	"github.com/selivandex/sentiment-fusion/internal/indicators"
	"github.com/selivandex/sentiment-fusion/internal/orchestrator"
	"github.com/selivandex/sentiment-fusion/pkg/logger"
	"github.com/selivandex/sentiment-fusion/pkg/metrics"
	"github.com/selivandex/sentiment-fusion/pkg/models"
)

// PortfolioStore manages tracked instruments and weight settings per user
type PortfolioStore interface {
	List(ctx context.Context, userID string) ([]models.Portfolio, error)
	Add(ctx context.Context, userID, code string) (*models.Portfolio, error)
	Remove(ctx context.Context, userID, code string) error
	GetWeights(ctx context.Context, userID string) (models.WeightConfig, error)
	PutWeights(ctx context.Context, userID string, w models.WeightConfig) error
}

// Dashboard serves the read views of an instrument
type Dashboard interface {
	Info(ctx context.Context, code string) (*models.InstrumentInfo, error)
	FusedSeries(ctx context.Context, code string, days int, weights models.WeightConfig) ([]models.FusedPoint, error)
	News(ctx context.Context, code string) ([]models.ScoredDocument, error)
}

// IndicatorReporter builds technical analysis reports
type IndicatorReporter interface {
	Report(ctx context.Context, code string, days int) (*indicators.Report, error)
}

// Runner starts background update runs
type Runner interface {
	Start(ctx context.Context, instrument string, withCleanup bool) (string, error)
}

// ProgressSource exposes run snapshots
type ProgressSource interface {
	Latest(instrument string) (orchestrator.Snapshot, bool)
	ServeWS(w http.ResponseWriter, r *http.Request, instrument string) error
}

// Dependencies are the services behind the routes
type Dependencies struct {
	Portfolios PortfolioStore
	Dashboard  Dashboard
	Indicators IndicatorReporter
	Runner     Runner
	Progress   ProgressSource
	Checks     map[string]HealthCheck

	// RunContext parents background runs; cancelling it stops them
	RunContext context.Context
}

// Server is the HTTP API
type Server struct {
	echo      *echo.Echo
	cfg       config.ServerConfig
	deps      Dependencies
	secret    []byte
	startTime time.Time

	readyMu sync.RWMutex
	ready   bool
}

// NewServer creates new API server and registers every route
func NewServer(cfg config.ServerConfig, deps Dependencies) *Server {
	if deps.RunContext == nil {
		deps.RunContext = context.Background()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = HTTPErrorHandler

	s := &Server{
		echo:      e,
		cfg:       cfg,
		deps:      deps,
		secret:    []byte(cfg.JWTSecret),
		startTime: time.Now(),
	}

	e.Use(middleware.Recover())
	e.Use(requestLogger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/readyz", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api", AuthMiddleware(s.secret))

	api.GET("/portfolios", s.listPortfolio)
	api.POST("/portfolios", s.addPortfolio)
	api.DELETE("/portfolios/:code", s.removePortfolio)

	api.GET("/settings", s.getSettings)
	api.PUT("/settings", s.putSettings)

	inst := api.Group("/instruments/:code", validateCode)
	inst.GET("", s.instrumentInfo)
	inst.GET("/fused", s.fusedSeries)
	inst.GET("/news", s.news)
	inst.GET("/indicators", s.indicatorReport)
	inst.POST("/update", s.startUpdate)
	inst.POST("/cleanup", s.startCleanup)
	inst.GET("/progress", s.progress)
	inst.GET("/progress/ws", s.progressStream)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until Stop is called
func (s *Server) Start() error {
	logger.Info("API server starting", zap.String("addr", s.cfg.Addr))

	if err := s.echo.Start(s.cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	logger.Info("stopping API server...")
	return s.echo.Shutdown(ctx)
}

// SetReady marks the service as ready
func (s *Server) SetReady(ready bool) {
	s.readyMu.Lock()
	defer s.readyMu.Unlock()
	s.ready = ready

	if ready {
		logger.Info("service marked as READY")
	} else {
		logger.Warn("service marked as NOT READY")
	}
}

// IsReady reports whether startup has completed
func (s *Server) IsReady() bool {
	s.readyMu.RLock()
	defer s.readyMu.RUnlock()
	return s.ready
}

// requestLogger logs each request and counts it by route
func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			status := c.Response().Status
			metrics.HTTPRequests.WithLabelValues(req.Method, c.Path(), strconv.Itoa(status)).Inc()

			logger.Debug("http request",
				zap.String("method", req.Method),
				zap.String("route", c.Path()),
				zap.Int("status", status),
				zap.Duration("duration", time.Since(start)),
			)
			return nil
		}
	}
}
