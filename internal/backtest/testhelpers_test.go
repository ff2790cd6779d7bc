package backtest

import (
	"sort"
	"sync"
	"time"

	"github.com/yourusername/kabu-screener/internal/models"
	"github.com/yourusername/kabu-screener/internal/scoring"
)

func d(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// flatBars builds bars whose OHLC all equal the close
func flatBars(closes map[string]float64) []models.Bar {
	bars := make([]models.Bar, 0, len(closes))
	for date, c := range closes {
		bars = append(bars, models.Bar{Date: d(date), Open: c, High: c, Low: c, Close: c, Volume: 100_000})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars
}

// stubScorer returns fixed scores keyed by date then symbol
type stubScorer map[string]map[string]float64

func (s stubScorer) Score(snap scoring.Snapshot) scoring.Result {
	return scoring.Result{
		Symbol:  snap.Symbol,
		Total:   s[snap.Date.Format("2006-01-02")][snap.Symbol],
		Signals: []string{"stub"},
	}
}

func everyDay(symbol string, score float64, dates ...string) stubScorer {
	s := stubScorer{}
	for _, date := range dates {
		s[date] = map[string]float64{symbol: score}
	}
	return s
}

func scenarioConfig(universe ...string) BacktestConfig {
	cfg := DefaultConfig(d("2023-01-01"), d("2023-01-10"), universe)
	cfg.InitialCapital = 1_000_000
	cfg.MaxPositions = 1
	cfg.PositionSize = 0.5
	cfg.StopLossPct = 0.05
	cfg.TakeProfitPct = 0.08
	cfg.HoldingPeriodLimitDays = 10
	cfg.MinHistoryBars = 1
	cfg.LookbackDays = 0
	cfg.FetchConcurrency = 2
	return cfg
}

type recordingObserver struct {
	mu           sync.Mutex
	dataFailures []string
	trades       []models.Trade
	runs         int
	lastErr      error
}

func (o *recordingObserver) ObserveDataFailure(symbol string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dataFailures = append(o.dataFailures, symbol)
}

func (o *recordingObserver) ObserveTrade(trade models.Trade) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.trades = append(o.trades, trade)
}

func (o *recordingObserver) ObserveRun(result *Result, duration time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs++
	o.lastErr = err
}
