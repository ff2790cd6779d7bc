package marketdata

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/kabu-screener/internal/config"
)

// NewProviderFromConfig builds the configured provider, wrapped in a cache when a TTL is set
func NewProviderFromConfig(cfg config.MarketDataConfig, logger *logrus.Logger) (Provider, error) {
	var p Provider
	switch cfg.Source {
	case "yahoo", "":
		httpCfg := DefaultHTTPClientConfig()
		if cfg.TimeoutSeconds > 0 {
			httpCfg.Timeout = cfg.HTTPTimeout()
		}
		httpCfg.MaxRetries = cfg.MaxRetries
		if cfg.RateLimit > 0 {
			httpCfg.RateLimit = cfg.RateLimit
		}
		if cfg.CircuitBreakerThreshold > 0 {
			httpCfg.CircuitBreakerMax = cfg.CircuitBreakerThreshold
		}
		if cfg.CircuitBreakerCooldownSeconds > 0 {
			httpCfg.CircuitBreakerCooldown = cfg.CircuitBreakerCooldown()
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://query1.finance.yahoo.com"
		}
		p = NewYahooProvider(baseURL, NewRateLimitedHTTPClient(httpCfg, logger), logger)
	case "csv":
		p = NewCSVProvider(cfg.CSVDir)
	default:
		return nil, fmt.Errorf("unknown market data source: %s", cfg.Source)
	}

	if cfg.CacheTTLSeconds > 0 {
		p = NewCachedProvider(p, cfg.CacheTTL())
	}
	return p, nil
}
