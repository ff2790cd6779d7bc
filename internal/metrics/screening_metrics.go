package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yourusername/kabu-screener/internal/screener"
)

// Screening counter vectors
var (
	ScreeningRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "screening_runs_total",
		Help:      "Total number of screening runs by status",
	}, []string{"status"})

	ScreeningFilteredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "screening_filtered_total",
		Help:      "Symbols rejected by each screening filter",
	}, []string{"filter"})
)

// Screening histograms
var (
	ScreeningDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "screening_duration_seconds",
		Help:      "Duration of screening runs in seconds",
		Buckets:   prometheus.DefBuckets,
	})

	ScreeningScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "screening_candidate_score",
		Help:      "Scores of ranked candidates",
		Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
	})
)

// Screening gauges
var (
	ScreeningCandidates = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "screening_candidates",
		Help:      "Ranked candidates in the last successful screening run",
	})
)

// ScreeningObserver publishes screener telemetry to the registry
type ScreeningObserver struct{}

var _ screener.Observer = ScreeningObserver{}

// NewScreeningObserver initializes the registry and returns an observer
func NewScreeningObserver() ScreeningObserver {
	InitRegistry()
	return ScreeningObserver{}
}

// ObserveDataFailure records a symbol skipped for missing history.
func (ScreeningObserver) ObserveDataFailure(symbol string) {
	RecordMarketDataFailure("screening")
}

// ObserveFiltered records a filter rejection.
func (ScreeningObserver) ObserveFiltered(filter string) {
	ScreeningFilteredTotal.WithLabelValues(filter).Inc()
}

// ObserveScreen records the run outcome.
func (ScreeningObserver) ObserveScreen(report *screener.Report, duration time.Duration, err error) {
	ScreeningDuration.Observe(duration.Seconds())
	if err != nil {
		ScreeningRunsTotal.WithLabelValues("failure").Inc()
		return
	}
	ScreeningRunsTotal.WithLabelValues("success").Inc()
	if report == nil {
		return
	}
	ScreeningCandidates.Set(float64(len(report.Candidates)))
	for _, c := range report.Candidates {
		ScreeningScore.Observe(c.Result.Total)
	}
}
