// Package config provides configuration management for the kabu screener.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "KABU_SCREENER"

// Load reads and parses the configuration from file and environment variables.
// It expands environment variable placeholders in the YAML file (${VAR_NAME}).
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v := newViper()
	setDefaults(v)
	if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return cfg, nil
}

// LoadWithDefaults loads configuration, tolerating a missing file
func LoadWithDefaults(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	v := newViper()
	setDefaults(v)

	if data, err := os.ReadFile(configPath); err == nil {
		if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// setDefaults mirrors the original screener's config.yaml
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "kabu-screener")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 5)

	v.SetDefault("market_data.source", "yahoo")
	v.SetDefault("market_data.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("market_data.timeout_seconds", 30)
	v.SetDefault("market_data.max_retries", 3)
	v.SetDefault("market_data.rate_limit", 5.0)
	v.SetDefault("market_data.cache_ttl_seconds", 300)
	v.SetDefault("market_data.concurrency", 4)
	v.SetDefault("market_data.circuit_breaker_threshold", 5)
	v.SetDefault("market_data.circuit_breaker_cooldown_seconds", 60)

	v.SetDefault("backtest.initial_capital", 1000000)
	v.SetDefault("backtest.max_positions", 5)
	v.SetDefault("backtest.position_size", 0.2)
	v.SetDefault("backtest.commission_rate", 0.001)
	v.SetDefault("backtest.slippage_rate", 0.001)
	v.SetDefault("backtest.stop_loss_pct", 0.03)
	v.SetDefault("backtest.take_profit_pct", 0.05)
	v.SetDefault("backtest.holding_period_limit_days", 5)
	v.SetDefault("backtest.entry_threshold", 70)
	v.SetDefault("backtest.lookback_days", 100)
	v.SetDefault("backtest.min_history_bars", 30)
	v.SetDefault("backtest.output_path", "backtest_results")

	v.SetDefault("screening.top_n", 20)
	v.SetDefault("screening.scoring_weights.volume_surge", 30)
	v.SetDefault("screening.scoring_weights.gap_up_moderate", 20)
	v.SetDefault("screening.scoring_weights.gap_up_high", 10)
	v.SetDefault("screening.scoring_weights.gap_up_extreme", -10)
	v.SetDefault("screening.scoring_weights.ma5_breakout", 15)
	v.SetDefault("screening.scoring_weights.ma25_breakout", 20)
	v.SetDefault("screening.scoring_weights.lower_shadow", 10)
	v.SetDefault("screening.scoring_weights.high_close", 10)
	v.SetDefault("screening.scoring_weights.resistance_break", 15)
	v.SetDefault("screening.scoring_weights.positive_news", 25)
	v.SetDefault("screening.scoring_weights.sector_momentum", 10)
	v.SetDefault("screening.filters.min_trading_value", 500000000)
	v.SetDefault("screening.filters.min_market_cap", 10000000000)
	v.SetDefault("screening.filters.max_market_cap", 100000000000)
	v.SetDefault("screening.filters.min_volatility", 0.02)
	v.SetDefault("screening.filters.require_margin", true)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")
}
