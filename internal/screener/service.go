// Package screener ranks today's day-trade candidates from live market data.
package screener

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/kabu-screener/internal/config"
	"github.com/yourusername/kabu-screener/internal/logger"
	"github.com/yourusername/kabu-screener/internal/marketdata"
	"github.com/yourusername/kabu-screener/internal/models"
	"github.com/yourusername/kabu-screener/internal/scoring"
)

const dateLayout = "2006-01-02"

// FilterHistory is reported when a symbol has too few bars to score
const FilterHistory = "history"

// ErrNoMarketData is returned when no symbol in the universe could be loaded
var ErrNoMarketData = errors.New("no market data for any symbol in universe")

// Scorer scores one snapshot; *scoring.Engine satisfies it
type Scorer interface {
	Score(s scoring.Snapshot) scoring.Result
}

// Enricher fills the optional snapshot blocks (news, sector performance, market cap).
// Enrichment failures are logged and the snapshot is scored without the block.
type Enricher interface {
	Enrich(ctx context.Context, s *scoring.Snapshot) error
}

// Observer receives screening telemetry; implementations must not block
type Observer interface {
	ObserveDataFailure(symbol string)
	ObserveFiltered(filter string)
	ObserveScreen(report *Report, duration time.Duration, err error)
}

// Config holds the screening parameters
type Config struct {
	Universe       []string
	TopN           int
	LookbackDays   int
	MinHistoryBars int
	StopLossPct    float64
	TakeProfitPct  float64
	Concurrency    int
	Filters        scoring.Filters
}

// ConfigFromApp builds screening parameters from the application config
func ConfigFromApp(cfg *config.Config) Config {
	return Config{
		Universe:       cfg.ScreeningUniverse(),
		TopN:           cfg.Screening.TopN,
		LookbackDays:   cfg.Backtest.LookbackDays,
		MinHistoryBars: cfg.Backtest.MinHistoryBars,
		StopLossPct:    cfg.Backtest.StopLossPct,
		TakeProfitPct:  cfg.Backtest.TakeProfitPct,
		Concurrency:    cfg.MarketData.Concurrency,
		Filters:        scoring.FiltersFromConfig(cfg.Screening.Filters),
	}
}

// Option configures a Service
type Option func(*Service)

// WithScorer replaces the default scoring engine
func WithScorer(s Scorer) Option {
	return func(svc *Service) { svc.scorer = s }
}

// WithEnricher attaches a snapshot enricher
func WithEnricher(e Enricher) Option {
	return func(svc *Service) { svc.enricher = e }
}

// WithObserver attaches screening telemetry
func WithObserver(o Observer) Option {
	return func(svc *Service) { svc.observer = o }
}

// Service runs the fetch, snapshot, filter, score and rank pipeline
type Service struct {
	cfg      Config
	provider marketdata.Provider
	scorer   Scorer
	enricher Enricher
	observer Observer
	logger   *logrus.Logger
	scrLog   *logger.ScreeningLogger
}

// NewService creates a new screening service
func NewService(cfg Config, provider marketdata.Provider, log *logrus.Logger, opts ...Option) (*Service, error) {
	if provider == nil {
		return nil, fmt.Errorf("market data provider is required")
	}
	if len(cfg.Universe) == 0 {
		return nil, fmt.Errorf("screening universe is empty")
	}
	if log == nil {
		log = logger.Discard()
	}

	svc := &Service{
		cfg:      cfg,
		provider: provider,
		scorer:   scoring.NewDefaultEngine(),
		logger:   log,
		scrLog:   logger.NewScreeningLogger(log),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Report is the outcome of one screening run
type Report struct {
	AsOf       time.Time           `json:"as_of"`
	Evaluated  int                 `json:"evaluated"`
	Candidates []scoring.Candidate `json:"candidates"`
	Filtered   map[string]string   `json:"filtered"`
	Failed     []string            `json:"failed"`
}

// Screen ranks the universe using bars dated at or before asOf
func (s *Service) Screen(ctx context.Context, asOf time.Time) (report *Report, err error) {
	started := time.Now()
	defer func() {
		if s.observer != nil {
			s.observer.ObserveScreen(report, time.Since(started), err)
		}
	}()

	symbols := uniqueSorted(s.cfg.Universe)
	to := marketdata.DayOf(asOf)
	from := to.AddDate(0, 0, -s.cfg.LookbackDays)

	fetched, err := marketdata.FetchAll(ctx, s.provider, symbols, from, to, s.cfg.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to load market data: %w", err)
	}
	if len(fetched.Errors) == len(symbols) {
		for _, symbol := range symbols {
			s.dataFailure(symbol, fetched.Errors[symbol])
		}
		return nil, fmt.Errorf("%w (%d symbols requested)", ErrNoMarketData, len(symbols))
	}

	report = &Report{
		AsOf:     to,
		Filtered: make(map[string]string),
		Failed:   []string{},
	}
	snaps := make([]scoring.Snapshot, 0, len(symbols))
	for _, symbol := range symbols {
		if ferr, failed := fetched.Errors[symbol]; failed {
			s.dataFailure(symbol, ferr)
			report.Failed = append(report.Failed, symbol)
			continue
		}
		report.Evaluated++

		snap, reason := s.prepare(ctx, symbol, fetched.Bars[symbol])
		if reason != "" {
			s.reject(report, symbol, FilterHistory, reason)
			continue
		}
		snaps = append(snaps, snap)
	}

	scoring.FillSectorPerformance(snaps)

	var candidates []scoring.Candidate
	for _, snap := range snaps {
		if filter, reason := s.cfg.Filters.Reject(snap); filter != "" {
			s.reject(report, snap.Symbol, filter, reason)
			continue
		}
		res := s.scorer.Score(snap)
		res.Symbol = snap.Symbol
		candidates = append(candidates, scoring.Candidate{
			Snapshot: snap,
			Result:   res,
			Risk:     scoring.AssessRisk(snap, s.cfg.StopLossPct, s.cfg.TakeProfitPct),
		})
	}

	report.Candidates = scoring.Rank(candidates, s.cfg.TopN)
	for _, c := range report.Candidates {
		s.scrLog.LogCandidate(c.Result.Symbol, c.Result.Total, c.Result.Signals, c.Result.Warnings)
	}
	s.scrLog.LogRunCompleted(to, report.Evaluated, len(candidates), time.Since(started))
	return report, nil
}

// prepare builds and enriches the snapshot, or returns why the history is unusable
func (s *Service) prepare(ctx context.Context, symbol string, bars []models.Bar) (scoring.Snapshot, string) {
	if len(bars) == 0 || len(bars) < s.cfg.MinHistoryBars {
		return scoring.Snapshot{}, fmt.Sprintf("%d bars below minimum %d", len(bars), s.cfg.MinHistoryBars)
	}
	snap, err := scoring.BuildSnapshot(symbol, bars)
	if err != nil {
		return scoring.Snapshot{}, err.Error()
	}
	if s.enricher != nil {
		if err := s.enricher.Enrich(ctx, &snap); err != nil {
			s.logger.WithError(err).WithField("symbol", symbol).Warn("Snapshot enrichment failed")
		}
	}
	return snap, ""
}

func (s *Service) reject(report *Report, symbol, filter, reason string) {
	report.Filtered[symbol] = reason
	s.scrLog.LogFiltered(symbol, reason)
	if s.observer != nil {
		s.observer.ObserveFiltered(filter)
	}
}

func (s *Service) dataFailure(symbol string, err error) {
	s.logger.WithError(err).WithField("symbol", symbol).Warn("Market data unavailable, skipping symbol")
	if s.observer != nil {
		s.observer.ObserveDataFailure(symbol)
	}
}

func uniqueSorted(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		if _, ok := seen[sym]; ok || sym == "" {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
