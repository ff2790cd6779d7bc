package screener

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/kabu-screener/internal/marketdata"
	"github.com/yourusername/kabu-screener/internal/models"
	"github.com/yourusername/kabu-screener/internal/scoring"
)

var asOf = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

// history returns n flat daily bars ending on end, with last replacing the final bar when set
func history(n int, end time.Time, price float64, last *models.Bar) []models.Bar {
	bars := make([]models.Bar, n)
	for i := range bars {
		date := end.AddDate(0, 0, i-n+1)
		bars[i] = models.Bar{Date: date, Open: price, High: price, Low: price, Close: price, Volume: 100_000}
	}
	if last != nil {
		l := *last
		l.Date = end
		bars[n-1] = l
	}
	return bars
}

func surgeBar() *models.Bar {
	return &models.Bar{Open: 1030, High: 1062, Low: 1025, Close: 1060, Volume: 400_000}
}

func testConfig(universe ...string) Config {
	return Config{
		Universe:       universe,
		LookbackDays:   60,
		MinHistoryBars: 25,
		StopLossPct:    0.03,
		TakeProfitPct:  0.05,
		Concurrency:    2,
	}
}

type recordingObserver struct {
	mu       sync.Mutex
	failures []string
	filters  []string
	screens  int
	lastErr  error
}

func (o *recordingObserver) ObserveDataFailure(symbol string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures = append(o.failures, symbol)
}

func (o *recordingObserver) ObserveFiltered(filter string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.filters = append(o.filters, filter)
}

func (o *recordingObserver) ObserveScreen(report *Report, duration time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.screens++
	o.lastErr = err
}

type newsEnricher struct {
	symbol string
	err    error
}

func (e newsEnricher) Enrich(ctx context.Context, s *scoring.Snapshot) error {
	if e.err != nil {
		return e.err
	}
	if s.Symbol == e.symbol {
		s.News = []scoring.NewsItem{{Title: "上方修正", Category: "earnings", Sentiment: scoring.SentimentPositive}}
	}
	return nil
}

func TestScreenRanksCandidates(t *testing.T) {
	provider := marketdata.NewStaticProvider(map[string][]models.Bar{
		"6758.T": history(30, asOf, 1000, nil),
		"7203.T": history(30, asOf, 1000, surgeBar()),
	})
	svc, err := NewService(testConfig("6758.T", "7203.T"), provider, nil)
	require.NoError(t, err)

	report, err := svc.Screen(context.Background(), asOf)
	require.NoError(t, err)

	assert.Equal(t, asOf, report.AsOf)
	assert.Equal(t, 2, report.Evaluated)
	require.Len(t, report.Candidates, 2)

	top := report.Candidates[0]
	assert.Equal(t, 1, top.Rank)
	assert.Equal(t, "7203.T", top.Result.Symbol)
	assert.Equal(t, 100.0, top.Result.Total)
	assert.Contains(t, top.Result.Signals, scoring.SignalVolumeSurge)
	assert.Contains(t, top.Result.Signals, scoring.SignalGapUpModerate)
	assert.InDelta(t, 1060*0.97, top.Risk.StopLossPrice, 1e-9)

	flat := report.Candidates[1]
	assert.Equal(t, "6758.T", flat.Result.Symbol)
	assert.Equal(t, scoring.BaseScore, flat.Result.Total)
	assert.Empty(t, flat.Result.Signals)
}

func TestScreenTopN(t *testing.T) {
	provider := marketdata.NewStaticProvider(map[string][]models.Bar{
		"6758.T": history(30, asOf, 1000, nil),
		"7203.T": history(30, asOf, 1000, surgeBar()),
		"9984.T": history(30, asOf, 1000, nil),
	})
	cfg := testConfig("9984.T", "6758.T", "7203.T")
	cfg.TopN = 2
	svc, err := NewService(cfg, provider, nil)
	require.NoError(t, err)

	report, err := svc.Screen(context.Background(), asOf)
	require.NoError(t, err)
	require.Len(t, report.Candidates, 2)
	assert.Equal(t, "7203.T", report.Candidates[0].Result.Symbol)
	assert.Equal(t, "6758.T", report.Candidates[1].Result.Symbol, "ties break by symbol")
}

func TestScreenAppliesFilters(t *testing.T) {
	provider := marketdata.NewStaticProvider(map[string][]models.Bar{
		"6758.T": history(30, asOf, 1000, nil),
		"7203.T": history(30, asOf, 1000, surgeBar()),
		"4385.T": history(5, asOf, 1000, surgeBar()),
	})
	cfg := testConfig("6758.T", "7203.T", "4385.T")
	cfg.Filters = scoring.Filters{MinTradingValue: 2e8}
	obs := &recordingObserver{}

	svc, err := NewService(cfg, provider, nil, WithObserver(obs))
	require.NoError(t, err)

	report, err := svc.Screen(context.Background(), asOf)
	require.NoError(t, err)
	require.Len(t, report.Candidates, 1)
	assert.Equal(t, "7203.T", report.Candidates[0].Result.Symbol)

	assert.Contains(t, report.Filtered["6758.T"], "trading value")
	assert.Contains(t, report.Filtered["4385.T"], "below minimum 25")
	assert.ElementsMatch(t, []string{scoring.FilterTradingValue, FilterHistory}, obs.filters)
	assert.Equal(t, 1, obs.screens)
	assert.NoError(t, obs.lastErr)
}

func TestScreenIgnoresFutureBars(t *testing.T) {
	bars := history(30, asOf.AddDate(0, 0, 3), 1000, surgeBar())
	provider := marketdata.NewStaticProvider(map[string][]models.Bar{"7203.T": bars})

	svc, err := NewService(testConfig("7203.T"), provider, nil)
	require.NoError(t, err)

	report, err := svc.Screen(context.Background(), asOf)
	require.NoError(t, err)
	require.Len(t, report.Candidates, 1)
	snap := report.Candidates[0].Snapshot
	assert.Equal(t, asOf, snap.Date)
	assert.Equal(t, 1000.0, snap.CurrentPrice)
}

func TestScreenSkipsFailedSymbols(t *testing.T) {
	provider := marketdata.NewStaticProvider(map[string][]models.Bar{
		"7203.T": history(30, asOf, 1000, nil),
	}).FailWith("6758.T", errors.New("timeout"))
	obs := &recordingObserver{}

	svc, err := NewService(testConfig("7203.T", "6758.T"), provider, nil, WithObserver(obs))
	require.NoError(t, err)

	report, err := svc.Screen(context.Background(), asOf)
	require.NoError(t, err)
	assert.Equal(t, []string{"6758.T"}, report.Failed)
	assert.Equal(t, 1, report.Evaluated)
	assert.Len(t, report.Candidates, 1)
	assert.Equal(t, []string{"6758.T"}, obs.failures)
}

func TestScreenNoData(t *testing.T) {
	obs := &recordingObserver{}
	svc, err := NewService(testConfig("7203.T", "6758.T"), marketdata.NewStaticProvider(nil), nil, WithObserver(obs))
	require.NoError(t, err)

	report, err := svc.Screen(context.Background(), asOf)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, ErrNoMarketData)
	assert.Len(t, obs.failures, 2)
	assert.ErrorIs(t, obs.lastErr, ErrNoMarketData)
}

func TestScreenCancelled(t *testing.T) {
	provider := marketdata.NewStaticProvider(map[string][]models.Bar{"7203.T": history(30, asOf, 1000, nil)})
	svc, err := NewService(testConfig("7203.T"), provider, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Screen(ctx, asOf)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScreenEnrichment(t *testing.T) {
	provider := marketdata.NewStaticProvider(map[string][]models.Bar{
		"6758.T": history(30, asOf, 1000, nil),
		"7203.T": history(30, asOf, 1000, nil),
	})

	svc, err := NewService(testConfig("6758.T", "7203.T"), provider, nil, WithEnricher(newsEnricher{symbol: "7203.T"}))
	require.NoError(t, err)
	report, err := svc.Screen(context.Background(), asOf)
	require.NoError(t, err)
	require.Len(t, report.Candidates, 2)
	assert.Equal(t, "7203.T", report.Candidates[0].Result.Symbol)
	assert.Equal(t, []string{scoring.SignalPositiveNews}, report.Candidates[0].Result.Signals)

	// a failing enricher leaves the snapshot neutral
	svc, err = NewService(testConfig("7203.T"), provider, nil, WithEnricher(newsEnricher{err: errors.New("feed down")}))
	require.NoError(t, err)
	report, err = svc.Screen(context.Background(), asOf)
	require.NoError(t, err)
	require.Len(t, report.Candidates, 1)
	assert.Equal(t, scoring.BaseScore, report.Candidates[0].Result.Total)
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(testConfig(), marketdata.NewStaticProvider(nil), nil)
	assert.Error(t, err)

	_, err = NewService(testConfig("7203.T"), nil, nil)
	assert.Error(t, err)
}

func TestReportOutput(t *testing.T) {
	provider := marketdata.NewStaticProvider(map[string][]models.Bar{
		"7203.T": history(30, asOf, 1000, surgeBar()),
		"6758.T": history(3, asOf, 1000, nil),
	}).FailWith("9984.T", errors.New("delisted"))

	svc, err := NewService(testConfig("7203.T", "6758.T", "9984.T"), provider, nil)
	require.NoError(t, err)
	report, err := svc.Screen(context.Background(), asOf)
	require.NoError(t, err)

	var table bytes.Buffer
	require.NoError(t, report.WriteTable(&table))
	out := table.String()
	assert.Contains(t, out, "Screening as of 2024-03-15: 2 evaluated, 1 ranked")
	assert.Contains(t, out, "7203.T")
	assert.Contains(t, out, "+3.00%")
	assert.Contains(t, out, "RSI")
	assert.Contains(t, out, "ADX")
	// 30 flat bars then one up day: RSI is pinned at 100, MACD still seeding,
	// ATR is the single 62 yen true range averaged over 14
	require.NotNil(t, report.Candidates[0].Snapshot.Technical)
	assert.Contains(t, out, "100.0")
	assert.Contains(t, out, "0.42%")
	assert.Nil(t, report.Candidates[0].Snapshot.Technical.MACD)
	assert.Contains(t, out, "6758.T: 3 bars below minimum 25")
	assert.True(t, strings.HasSuffix(out, "No data: 9984.T\n"))

	var raw bytes.Buffer
	require.NoError(t, report.WriteJSON(&raw))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw.Bytes(), &decoded))
	assert.Len(t, decoded["candidates"], 1)
	assert.Equal(t, float64(2), decoded["evaluated"])
}
