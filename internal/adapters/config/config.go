package config

import (
	"fmt"
	"math"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config represents application configuration
type Config struct {
	Server     ServerConfig     `envconfig:"SERVER"`
	Database   DatabaseConfig   `envconfig:"DB"`
	Redis      RedisConfig      `envconfig:"REDIS"`
	ClickHouse ClickHouseConfig `envconfig:"CLICKHOUSE"`
	AI         AIConfig         `envconfig:"AI"`
	Market     MarketConfig     `envconfig:"MARKET"`
	News       NewsConfig       `envconfig:"NEWS"`
	Pipeline   PipelineConfig   `envconfig:"PIPELINE"`
	Telegram   TelegramConfig   `envconfig:"TELEGRAM"`
	Logging    LoggingConfig    `envconfig:"LOG"`
}

// ServerConfig represents HTTP API settings
type ServerConfig struct {
	Addr            string        `envconfig:"ADDR" default:":8080"`
	JWTSecret       string        `envconfig:"JWT_SECRET" required:"true"`
	AllowedOrigins  []string      `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// DatabaseConfig represents database connection parameters
type DatabaseConfig struct {
	Host     string `envconfig:"HOST" default:"localhost"`
	Port     int    `envconfig:"PORT" default:"5432"`
	Name     string `envconfig:"NAME" default:"fusion"`
	User     string `envconfig:"USER" required:"true"`
	Password string `envconfig:"PASSWORD" required:"true"`
	SSLMode  string `envconfig:"SSLMODE" default:"disable"`
}

// RedisConfig represents Redis connection and lock parameters
type RedisConfig struct {
	Host     string        `envconfig:"HOST" default:"localhost"`
	Port     int           `envconfig:"PORT" default:"6379"`
	Password string        `envconfig:"PASSWORD" default:""`
	DB       int           `envconfig:"DB" default:"0"`
	LockTTL  time.Duration `envconfig:"LOCK_TTL" default:"2m"`
}

// ClickHouseConfig represents the optional analytics store
type ClickHouseConfig struct {
	Enabled  bool   `envconfig:"ENABLED" default:"false"`
	Host     string `envconfig:"HOST" default:"localhost"`
	Port     int    `envconfig:"PORT" default:"9000"`
	Database string `envconfig:"DATABASE" default:"fusion"`
	User     string `envconfig:"USER" default:"default"`
	Password string `envconfig:"PASSWORD" default:""`
}

// AIConfig represents the sentiment model provider
type AIConfig struct {
	APIKey      string        `envconfig:"API_KEY" default:""`
	BaseURL     string        `envconfig:"BASE_URL" default:"https://api.deepseek.com/v1"`
	Model       string        `envconfig:"MODEL" default:"deepseek-chat"`
	Timeout     time.Duration `envconfig:"TIMEOUT" default:"60s"`
	Concurrency int           `envconfig:"CONCURRENCY" default:"5"`
}

// MarketConfig represents the price provider
type MarketConfig struct {
	BaseURL  string        `envconfig:"BASE_URL" default:"https://push2his.eastmoney.com"`
	Timeout  time.Duration `envconfig:"TIMEOUT" default:"10s"`
	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"5m"`
}

// NewsConfig represents document feeds. URL templates take the instrument
// code through a single %s verb.
type NewsConfig struct {
	NewsFeeds   []string      `envconfig:"NEWS_FEEDS" default:""`
	ReportFeeds []string      `envconfig:"REPORT_FEEDS" default:""`
	ForumFeeds  []string      `envconfig:"FORUM_FEEDS" default:""`
	WindowDays  int           `envconfig:"WINDOW_DAYS" default:"10"`
	NewsLimit   int           `envconfig:"NEWS_LIMIT" default:"20"`
	ReportLimit int           `envconfig:"REPORT_LIMIT" default:"10"`
	ForumLimit  int           `envconfig:"FORUM_LIMIT" default:"20"`
	Timeout     time.Duration `envconfig:"TIMEOUT" default:"15s"`
}

// PipelineConfig represents update and fusion tunables
type PipelineConfig struct {
	BatchSize           int           `envconfig:"BATCH_SIZE" default:"5"`
	NewsWeight          float64       `envconfig:"NEWS_WEIGHT" default:"0.7"`
	ForumWeight         float64       `envconfig:"FORUM_WEIGHT" default:"0.3"`
	DisplayCap          int           `envconfig:"DISPLAY_CAP" default:"20"`
	AutoRefreshEnabled  bool          `envconfig:"AUTO_REFRESH_ENABLED" default:"false"`
	AutoRefreshInterval time.Duration `envconfig:"AUTO_REFRESH_INTERVAL" default:"1h"`
}

// TelegramConfig represents run notification settings
type TelegramConfig struct {
	Enabled  bool   `envconfig:"ENABLED" default:"false"`
	BotToken string `envconfig:"BOT_TOKEN" default:""`
	ChatID   int64  `envconfig:"CHAT_ID" default:"0"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"console"`
	File   string `envconfig:"FILE" default:""`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Pipeline.BatchSize < 1 {
		return fmt.Errorf("pipeline batch size must be at least 1")
	}
	if !unitInterval(c.Pipeline.NewsWeight) || !unitInterval(c.Pipeline.ForumWeight) {
		return fmt.Errorf("pipeline weights must be within [0, 1]")
	}
	if c.Pipeline.DisplayCap < 1 {
		return fmt.Errorf("pipeline display cap must be at least 1")
	}
	if c.Pipeline.AutoRefreshEnabled && c.Pipeline.AutoRefreshInterval < time.Minute {
		return fmt.Errorf("auto refresh interval must be at least 1m")
	}

	if c.AI.Concurrency < 1 {
		return fmt.Errorf("ai concurrency must be at least 1")
	}

	if c.News.WindowDays < 1 {
		return fmt.Errorf("news window must be at least one day")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram bot token is required")
		}
		if c.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram chat_id is required")
		}
	}

	if len(c.Server.JWTSecret) < 16 {
		return fmt.Errorf("jwt secret must be at least 16 characters")
	}

	return nil
}

// GetDSN returns PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// GetURL returns PostgreSQL URL used by the migrator
func (c *DatabaseConfig) GetURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// Addr returns host:port
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetDSN returns ClickHouse connection string
func (c *ClickHouseConfig) GetDSN() string {
	return fmt.Sprintf("clickhouse://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, c.Database)
}

// UseModel reports whether a model API key is configured
func (c *AIConfig) UseModel() bool {
	return c.APIKey != ""
}

func unitInterval(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
