package clickhouse

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/selivandex/sentiment-fusion/internal/adapters/config"
	"github.com/selivandex/sentiment-fusion/pkg/logger"
	"github.com/selivandex/sentiment-fusion/pkg/metrics"
	"github.com/selivandex/sentiment-fusion/pkg/models"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS daily_bars (
		stock_code LowCardinality(String),
		date       Date,
		open       Float64,
		high       Float64,
		low        Float64,
		close      Float64,
		volume     Float64,
		updated_at DateTime DEFAULT now()
	) ENGINE = ReplacingMergeTree(updated_at)
	ORDER BY (stock_code, date)`,
	`CREATE TABLE IF NOT EXISTS update_run_events (
		timestamp  DateTime64(3),
		run_id     String,
		stock_code LowCardinality(String),
		state      LowCardinality(String),
		outcome    LowCardinality(String),
		message    String,
		progress   Float64,
		completed  UInt32,
		total      UInt32,
		ingested   UInt32
	) ENGINE = MergeTree
	ORDER BY (stock_code, timestamp)
	TTL toDateTime(timestamp) + INTERVAL 90 DAY`,
	`CREATE TABLE IF NOT EXISTS upstream_calls (
		timestamp   DateTime64(3),
		service     LowCardinality(String),
		stock_code  LowCardinality(String),
		duration_ms UInt32,
		success     Bool
	) ENGINE = MergeTree
	ORDER BY (service, timestamp)
	TTL toDateTime(timestamp) + INTERVAL 30 DAY`,
}

// Repository handles ClickHouse data operations
type Repository struct {
	db *sqlx.DB
}

// Open connects to ClickHouse through the database/sql driver
func Open(ctx context.Context, cfg *config.ClickHouseConfig) (*Repository, error) {
	db, err := sqlx.Open("clickhouse", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open clickhouse: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	logger.Info("clickhouse connection established",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
	)

	return NewRepository(db), nil
}

// NewRepository creates new ClickHouse repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the analytics tables when missing
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create clickhouse schema: %w", err)
		}
	}
	return nil
}

// SaveDailyBars archives daily bars for an instrument. Re-saving a date
// replaces the earlier row on merge.
func (r *Repository) SaveDailyBars(ctx context.Context, code string, bars []models.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO daily_bars (stock_code, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, bar := range bars {
		day, ok := models.ParseDay(bar.Date)
		if !ok {
			continue
		}
		if _, err := stmt.ExecContext(ctx, code, day, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert bar: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger.Debug("archived daily bars to ClickHouse",
		zap.String("instrument", code),
		zap.Int("count", len(bars)),
	)

	return nil
}

// GetDailyBars returns up to days most recent archived bars in ascending date order
func (r *Repository) GetDailyBars(ctx context.Context, code string, days int) ([]models.PriceBar, error) {
	var bars []models.PriceBar
	err := r.db.SelectContext(ctx, &bars, `
		SELECT toString(date) AS date, open, high, low, close, volume
		FROM daily_bars FINAL
		WHERE stock_code = ?
		ORDER BY date DESC
		LIMIT ?
	`, code, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily bars: %w", err)
	}

	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

// Write implements metrics.Writer: one insert transaction per table
func (r *Repository) Write(ctx context.Context, tableName string, batch []metrics.Row) error {
	if len(batch) == 0 {
		return nil
	}

	columns := batch[0].Columns()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", tableName, strings.Join(columns, ", "), placeholders)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare %s insert: %w", tableName, err)
	}
	defer stmt.Close()

	for _, m := range batch {
		if _, err := stmt.ExecContext(ctx, m.Values()...); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert into %s: %w", tableName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s batch: %w", tableName, err)
	}
	return nil
}

// Close closes the connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// Health pings ClickHouse
func (r *Repository) Health(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("clickhouse health check failed: %w", err)
	}
	return nil
}
