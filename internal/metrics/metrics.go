// Package metrics provides centralized Prometheus metrics registry for the screener and backtester.
package metrics

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kabu_screener"

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Market data metrics
var (
	MarketDataFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "market_data_failures_total",
		Help:      "Symbols whose history could not be loaded, by caller",
	}, []string{"component"})
	MarketDataCacheHits = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "market_data_cache_hits",
		Help:      "Cumulative history cache hits",
	})
	MarketDataCacheMisses = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "market_data_cache_misses",
		Help:      "Cumulative history cache misses",
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(MarketDataFailuresTotal)
		registry.MustRegister(MarketDataCacheHits)
		registry.MustRegister(MarketDataCacheMisses)

		// Register backtest metrics
		registry.MustRegister(BacktestRunsTotal)
		registry.MustRegister(BacktestDuration)
		registry.MustRegister(BacktestTradesTotal)
		registry.MustRegister(BacktestTradeReturn)
		registry.MustRegister(BacktestFinalEquity)
		registry.MustRegister(BacktestTotalReturn)

		// Register screening metrics
		registry.MustRegister(ScreeningRunsTotal)
		registry.MustRegister(ScreeningDuration)
		registry.MustRegister(ScreeningCandidates)
		registry.MustRegister(ScreeningFilteredTotal)
		registry.MustRegister(ScreeningScore)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return InitRegistry()
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// WriteTextfile dumps the registry in the text exposition format, for one-shot
// commands that exit before anything could scrape them.
func WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, GetRegistry()); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

// RecordMarketDataFailure counts one symbol that failed to load.
func RecordMarketDataFailure(component string) {
	MarketDataFailuresTotal.WithLabelValues(component).Inc()
}

// UpdateCacheStats publishes the provider cache counters.
func UpdateCacheStats(hits, misses uint64) {
	MarketDataCacheHits.Set(float64(hits))
	MarketDataCacheMisses.Set(float64(misses))
}
