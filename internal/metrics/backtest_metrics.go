package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yourusername/kabu-screener/internal/backtest"
	"github.com/yourusername/kabu-screener/internal/models"
)

// Backtest counter vectors
var (
	BacktestRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backtest_runs_total",
		Help:      "Total number of backtest runs by status",
	}, []string{"status"})

	BacktestTradesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backtest_trades_total",
		Help:      "Closed simulated trades by exit reason",
	}, []string{"exit_reason"})
)

// Backtest histograms
var (
	BacktestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backtest_duration_seconds",
		Help:      "Duration of backtest runs in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
	})

	BacktestTradeReturn = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backtest_trade_return_percent",
		Help:      "Net return of closed trades in percent",
		Buckets:   []float64{-10, -5, -3, -1, 0, 1, 3, 5, 8, 10, 20},
	})
)

// Backtest gauges
var (
	BacktestFinalEquity = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "backtest_final_equity_yen",
		Help:      "Final capital of the last successful run",
	})

	BacktestTotalReturn = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "backtest_total_return_ratio",
		Help:      "Total return of the last successful run as a fraction",
	})
)

// BacktestObserver publishes engine telemetry to the registry
type BacktestObserver struct{}

var _ backtest.RunObserver = BacktestObserver{}

// NewBacktestObserver initializes the registry and returns an observer
func NewBacktestObserver() BacktestObserver {
	InitRegistry()
	return BacktestObserver{}
}

// ObserveDataFailure records a symbol skipped for missing history.
func (BacktestObserver) ObserveDataFailure(symbol string) {
	RecordMarketDataFailure("backtest")
}

// ObserveTrade records a closed trade.
func (BacktestObserver) ObserveTrade(trade models.Trade) {
	BacktestTradesTotal.WithLabelValues(string(trade.ExitReason)).Inc()
	BacktestTradeReturn.Observe(trade.PnLPercentage)
}

// ObserveRun records the run outcome.
func (BacktestObserver) ObserveRun(result *backtest.Result, duration time.Duration, err error) {
	BacktestDuration.Observe(duration.Seconds())
	if err != nil {
		RecordBacktestRun(runStatus(err))
		return
	}
	RecordBacktestRun("success")
	if result != nil {
		BacktestFinalEquity.Set(result.FinalCapital)
		BacktestTotalReturn.Set(result.TotalReturn)
	}
}

// RecordBacktestRun records a backtest run event.
// status should be one of: "success", "invalid_config", "no_data", "failure"
func RecordBacktestRun(status string) {
	BacktestRunsTotal.WithLabelValues(status).Inc()
}

func runStatus(err error) string {
	switch {
	case backtest.IsConfigurationError(err):
		return "invalid_config"
	case errors.Is(err, backtest.ErrNoMarketData):
		return "no_data"
	default:
		return "failure"
	}
}
