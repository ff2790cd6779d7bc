// Package config provides configuration management for the kabu screener.
package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database"`
	MarketData MarketDataConfig `mapstructure:"market_data" validate:"required"`
	Backtest   BacktestConfig   `mapstructure:"backtest" validate:"required"`
	Screening  ScreeningConfig  `mapstructure:"screening" validate:"required"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host" validate:"required_if=Enabled true"`
	Port           int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Name           string `mapstructure:"name" validate:"required_if=Enabled true"`
	User           string `mapstructure:"user" validate:"required_if=Enabled true"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-full"`
	MaxConnections int    `mapstructure:"max_connections" validate:"omitempty,gt=0"`
}

// MarketDataConfig configures where daily bars come from
type MarketDataConfig struct {
	Source          string  `mapstructure:"source" validate:"required,oneof=yahoo csv"`
	BaseURL         string  `mapstructure:"base_url" validate:"omitempty,url"`
	CSVDir          string  `mapstructure:"csv_dir" validate:"required_if=Source csv"`
	TimeoutSeconds  int     `mapstructure:"timeout_seconds" validate:"gte=0"`
	MaxRetries      int     `mapstructure:"max_retries" validate:"gte=0"`
	RateLimit       float64 `mapstructure:"rate_limit" validate:"gte=0"`
	CacheTTLSeconds int     `mapstructure:"cache_ttl_seconds" validate:"gte=0"`
	Concurrency     int     `mapstructure:"concurrency" validate:"gte=0"`

	CircuitBreakerThreshold       int `mapstructure:"circuit_breaker_threshold" validate:"gte=0"`
	CircuitBreakerCooldownSeconds int `mapstructure:"circuit_breaker_cooldown_seconds" validate:"gte=0"`
}

// BacktestConfig represents backtesting configuration
type BacktestConfig struct {
	StartDate             string   `mapstructure:"start_date" validate:"required,isodate"`
	EndDate               string   `mapstructure:"end_date" validate:"required,isodate"`
	InitialCapital        float64  `mapstructure:"initial_capital" validate:"required,gt=0"`
	MaxPositions          int      `mapstructure:"max_positions" validate:"required,gte=1"`
	PositionSize          float64  `mapstructure:"position_size" validate:"required,gt=0,lte=1"`
	CommissionRate        float64  `mapstructure:"commission_rate" validate:"gte=0,lt=1"`
	SlippageRate          float64  `mapstructure:"slippage_rate" validate:"gte=0,lt=1"`
	StopLossPct           float64  `mapstructure:"stop_loss_pct" validate:"required,gt=0"`
	TakeProfitPct         float64  `mapstructure:"take_profit_pct" validate:"required,gt=0"`
	HoldingPeriodLimit    int      `mapstructure:"holding_period_limit_days" validate:"required,gte=1"`
	EntryThreshold        float64  `mapstructure:"entry_threshold" validate:"gte=0,lte=100"`
	LookbackDays          int      `mapstructure:"lookback_days" validate:"gte=0"`
	MinHistoryBars        int      `mapstructure:"min_history_bars" validate:"gte=0"`
	Universe              []string `mapstructure:"universe" validate:"required,min=1,dive,required"`
	OutputPath            string   `mapstructure:"output_path"`
}

// ScreeningConfig represents the scoring weights and live screening filters
type ScreeningConfig struct {
	Universe       []string       `mapstructure:"universe"`
	TopN           int            `mapstructure:"top_n" validate:"gte=0"`
	Schedule       string         `mapstructure:"schedule"`
	MetadataFile   string         `mapstructure:"metadata_file"`
	ScoringWeights ScoringWeights `mapstructure:"scoring_weights"`
	Filters        FilterConfig   `mapstructure:"filters"`
}

// ScoringWeights holds the point value of each scoring bucket
type ScoringWeights struct {
	VolumeSurge     float64 `mapstructure:"volume_surge"`
	GapUpModerate   float64 `mapstructure:"gap_up_moderate"`
	GapUpHigh       float64 `mapstructure:"gap_up_high"`
	GapUpExtreme    float64 `mapstructure:"gap_up_extreme"`
	MA5Breakout     float64 `mapstructure:"ma5_breakout"`
	MA25Breakout    float64 `mapstructure:"ma25_breakout"`
	LowerShadow     float64 `mapstructure:"lower_shadow"`
	HighClose       float64 `mapstructure:"high_close"`
	ResistanceBreak float64 `mapstructure:"resistance_break"`
	PositiveNews    float64 `mapstructure:"positive_news"`
	SectorMomentum  float64 `mapstructure:"sector_momentum"`
}

// FilterConfig holds the minimum requirements a live candidate must pass
type FilterConfig struct {
	MinTradingValue float64 `mapstructure:"min_trading_value" validate:"gte=0"`
	MinMarketCap    float64 `mapstructure:"min_market_cap" validate:"gte=0"`
	MaxMarketCap    float64 `mapstructure:"max_market_cap" validate:"gte=0"`
	MinVolatility   float64 `mapstructure:"min_volatility" validate:"gte=0"`
	RequireMargin   bool    `mapstructure:"require_margin"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Path    string `mapstructure:"path"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// HTTPTimeout returns the market data request timeout
func (m MarketDataConfig) HTTPTimeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// CircuitBreakerCooldown returns how long the fetch breaker stays open
func (m MarketDataConfig) CircuitBreakerCooldown() time.Duration {
	return time.Duration(m.CircuitBreakerCooldownSeconds) * time.Second
}

// CacheTTL returns how long fetched history stays cached
func (m MarketDataConfig) CacheTTL() time.Duration {
	return time.Duration(m.CacheTTLSeconds) * time.Second
}

// ScreeningUniverse returns the live screening universe, falling back to the backtest universe
func (c *Config) ScreeningUniverse() []string {
	if len(c.Screening.Universe) > 0 {
		return c.Screening.Universe
	}
	return c.Backtest.Universe
}
