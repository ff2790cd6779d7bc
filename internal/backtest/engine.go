package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/kabu-screener/internal/logger"
	"github.com/yourusername/kabu-screener/internal/marketdata"
	"github.com/yourusername/kabu-screener/internal/models"
	"github.com/yourusername/kabu-screener/internal/scoring"
)

// Scorer scores one snapshot; *scoring.Engine satisfies it
type Scorer interface {
	Score(s scoring.Snapshot) scoring.Result
}

// RunObserver receives run telemetry; implementations must not block
type RunObserver interface {
	ObserveDataFailure(symbol string)
	ObserveTrade(trade models.Trade)
	ObserveRun(result *Result, duration time.Duration, err error)
}

// Option configures an Engine
type Option func(*Engine)

// WithScorer replaces the default scoring engine
func WithScorer(s Scorer) Option {
	return func(e *Engine) { e.scorer = s }
}

// WithObserver attaches run telemetry
func WithObserver(o RunObserver) Option {
	return func(e *Engine) { e.observer = o }
}

// Engine orchestrates backtesting runs
type Engine struct {
	config   BacktestConfig
	provider marketdata.Provider
	scorer   Scorer
	observer RunObserver
	logger   *logrus.Logger
	btLog    *logger.BacktestLogger
}

// NewEngine creates a new backtesting engine. Configuration errors wrap ErrInvalidConfiguration.
func NewEngine(cfg BacktestConfig, provider marketdata.Provider, log *logrus.Logger, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, fmt.Errorf("market data provider is required")
	}
	if log == nil {
		log = logger.Discard()
	}

	e := &Engine{
		config:   cfg,
		provider: provider,
		scorer:   scoring.NewDefaultEngine(),
		logger:   log,
		btLog:    logger.NewBacktestLogger(log),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the backtest configuration
func (e *Engine) Config() BacktestConfig {
	return e.config
}

// series is one symbol's materialized history
type series struct {
	bars  []models.Bar
	index map[time.Time]int
}

func newSeries(bars []models.Bar) *series {
	s := &series{bars: bars, index: make(map[time.Time]int, len(bars))}
	for i, b := range bars {
		s.index[dayOf(b.Date)] = i
	}
	return s
}

// barOn returns the bar dated exactly on day
func (s *series) barOn(day time.Time) (models.Bar, int, bool) {
	i, ok := s.index[dayOf(day)]
	if !ok {
		return models.Bar{}, 0, false
	}
	return s.bars[i], i, true
}

// lastOnOrBefore returns the latest bar dated at or before day
func (s *series) lastOnOrBefore(day time.Time) (models.Bar, bool) {
	d := dayOf(day)
	i := sort.Search(len(s.bars), func(i int) bool { return dayOf(s.bars[i].Date).After(d) })
	if i == 0 {
		return models.Bar{}, false
	}
	return s.bars[i-1], true
}

// Run executes the simulation. The caller receives either a complete result or an error.
func (e *Engine) Run(ctx context.Context) (result *Result, err error) {
	started := time.Now()
	defer func() {
		if e.observer != nil {
			e.observer.ObserveRun(result, time.Since(started), err)
		}
	}()

	cfg := e.config
	symbols := cfg.Symbols()
	e.btLog.LogRunStarted(cfg.StartDate, cfg.EndDate, len(symbols), cfg.InitialCapital)

	history, err := e.loadHistory(ctx, symbols)
	if err != nil {
		return nil, err
	}

	ledger := NewPositionLedger(cfg, e.btLog)
	days := cfg.TradingDays()
	for i, day := range days {
		if i%20 == 0 {
			e.logger.WithFields(logrus.Fields{
				"date":     day.Format("2006-01-02"),
				"progress": fmt.Sprintf("%d/%d", i+1, len(days)),
			}).Info("Processing trading day")
		}
		e.processDay(day, symbols, history, ledger)
	}
	e.liquidate(ledger, history)

	result = CalculateResult(ledger, cfg)
	e.btLog.LogRunCompleted(result.FinalCapital, result.TotalReturn, result.TotalTrades, time.Since(started))
	return result, nil
}

// loadHistory prefetches every symbol in parallel before any decision is made
func (e *Engine) loadHistory(ctx context.Context, symbols []string) (map[string]*series, error) {
	from := dayOf(e.config.StartDate).AddDate(0, 0, -e.config.LookbackDays)
	to := dayOf(e.config.EndDate)

	fetched, err := marketdata.FetchAll(ctx, e.provider, symbols, from, to, e.config.FetchConcurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to load market data: %w", err)
	}

	history := make(map[string]*series, len(fetched.Bars))
	for _, symbol := range symbols {
		if ferr, failed := fetched.Errors[symbol]; failed {
			e.btLog.LogDataUnavailable(symbol, ferr)
			if e.observer != nil {
				e.observer.ObserveDataFailure(symbol)
			}
			continue
		}
		if bars := fetched.Bars[symbol]; len(bars) > 0 {
			history[symbol] = newSeries(bars)
		}
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("%w (%d symbols requested)", ErrNoMarketData, len(symbols))
	}
	return history, nil
}

type pendingExit struct {
	symbol string
	price  float64
	reason models.ExitReason
}

// processDay runs exit evaluation, exit execution, entry evaluation and mark-to-market, in that order
func (e *Engine) processDay(day time.Time, symbols []string, history map[string]*series, ledger *PositionLedger) {
	exits := e.evaluateExits(day, history, ledger)
	for _, x := range exits {
		if trade, ok := ledger.Close(x.symbol, day, x.price, x.reason); ok && e.observer != nil {
			e.observer.ObserveTrade(trade)
		}
	}

	if ledger.CanOpen() {
		for _, c := range e.rankCandidates(day, symbols, history, ledger) {
			if !ledger.CanOpen() {
				break
			}
			ledger.Open(c.symbol, day, c.price, c.result.Signals, c.result.Total)
		}
	}

	ledger.MarkToMarket(day, func(symbol string) (float64, bool) {
		s, ok := history[symbol]
		if !ok {
			return 0, false
		}
		bar, _, ok := s.barOn(day)
		return bar.Close, ok
	})
}

func (e *Engine) evaluateExits(day time.Time, history map[string]*series, ledger *PositionLedger) []pendingExit {
	var exits []pendingExit
	for _, symbol := range ledger.OpenSymbols() {
		s, ok := history[symbol]
		if !ok {
			continue
		}
		bar, _, ok := s.barOn(day)
		if !ok {
			// halted or missing: the exit stays pending
			continue
		}
		trade, _ := ledger.Position(symbol)
		if reason, ok := e.exitReason(trade, bar.Close, day); ok {
			exits = append(exits, pendingExit{symbol: symbol, price: bar.Close, reason: reason})
		}
	}
	return exits
}

// exitReason checks take profit, then stop loss, then the holding limit.
// When target and stop both trigger, take profit wins by evaluation order.
func (e *Engine) exitReason(trade models.Trade, price float64, day time.Time) (models.ExitReason, bool) {
	if trade.EntryPrice <= 0 {
		return "", false
	}
	ret := (price - trade.EntryPrice) / trade.EntryPrice
	switch {
	case ret >= e.config.TakeProfitPct:
		return models.ExitReasonTakeProfit, true
	case ret <= -e.config.StopLossPct:
		return models.ExitReasonStopLoss, true
	case trade.HoldingDays(day) >= e.config.HoldingPeriodLimitDays:
		return models.ExitReasonTimeLimit, true
	}
	return "", false
}

type candidate struct {
	symbol string
	price  float64
	result scoring.Result
}

// rankCandidates scores every symbol using bars dated at or before day only
func (e *Engine) rankCandidates(day time.Time, symbols []string, history map[string]*series, ledger *PositionLedger) []candidate {
	var out []candidate
	for _, symbol := range symbols {
		if ledger.IsOpen(symbol) {
			continue
		}
		s, ok := history[symbol]
		if !ok {
			continue
		}
		bar, i, ok := s.barOn(day)
		if !ok {
			continue
		}
		visible := s.bars[:i+1]
		if len(visible) < e.config.MinHistoryBars {
			continue
		}
		snap, err := scoring.BuildSnapshot(symbol, visible)
		if err != nil {
			continue
		}
		res := e.scorer.Score(snap)
		res.Symbol = symbol
		if res.Total < e.config.EntryThreshold {
			continue
		}
		out = append(out, candidate{symbol: symbol, price: bar.Close, result: res})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return scoring.Less(out[i].result, out[j].result)
	})
	return out
}

// liquidate closes every remaining position at its last close on or before the
// end date, dated the day of that bar
func (e *Engine) liquidate(ledger *PositionLedger, history map[string]*series) {
	end := dayOf(e.config.EndDate)
	for _, symbol := range ledger.OpenSymbols() {
		trade, _ := ledger.Position(symbol)
		exitDay, price := dayOf(trade.EntryDate), trade.EntryPrice
		if s, ok := history[symbol]; ok {
			if bar, ok := s.lastOnOrBefore(end); ok {
				exitDay, price = dayOf(bar.Date), bar.Close
			}
		}
		if closed, ok := ledger.Close(symbol, exitDay, price, models.ExitReasonBacktestEnd); ok && e.observer != nil {
			e.observer.ObserveTrade(closed)
		}
	}
}

// IsConfigurationError reports whether err aborted a run before it started
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration)
}
